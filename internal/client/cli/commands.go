package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/dmitrijs2005/gophnotes/internal/common"
)

// getSimpleText, getPassword, getMultiline and getTags are indirections used
// to facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
	getTags       = GetTags
)

// readCredentials prompts for an email and a password. The caller wipes the
// returned password.
func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Register creates an account and logs into it.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}

	p, err := a.auth.Register(ctx, email, string(password), fullName)
	if err != nil {
		return err
	}
	a.setUser(p.Email)
	a.printf("Welcome, %s!\n", displayName(p.FullName, p.Email))
	a.syncer.RecordMutated()
	return nil
}

// Login authenticates and uploads notes written as a guest.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	p, err := a.auth.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	a.setUser(p.Email)
	a.printf("Logged in as %s.\n", displayName(p.FullName, p.Email))
	a.syncer.RecordMutated()
	return nil
}

// Logout drops the session. Local notes stay.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.setUser("")
	a.printf("Logged out.\n")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	p, err := a.auth.Profile(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		a.printf("guest\n")
		return nil
	}
	a.printf("%s <%s> (id %s)\n", p.FullName, p.Email, p.UserID)
	return nil
}

func displayName(fullName, email string) string {
	if fullName != "" {
		return fullName
	}
	return email
}

// Add prompts for a new note.
func (a *App) Add(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	body, err := getMultiline(a.reader, "Body", a.out)
	if err != nil {
		return err
	}
	tags, err := getTags(a.reader, "Tags", a.out)
	if err != nil {
		return err
	}

	n, err := a.notes.Add(ctx, title, body, tags)
	if err != nil {
		return err
	}
	a.printf("Added %s.\n", shortID(n.LocalID))
	return nil
}

// Edit changes a note. Empty answers keep the current value.
func (a *App) Edit(ctx context.Context, ref string) error {
	n, err := a.notes.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", n.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = n.Title
	}
	body, err := getMultiline(a.reader, "Body (empty keeps the current one)", a.out)
	if err != nil {
		return err
	}
	if body == "" {
		body = n.Body
	}
	tags, err := getTags(a.reader, fmt.Sprintf("Tags [%s]", strings.Join(n.Tags, ", ")), a.out)
	if err != nil {
		return err
	}
	if tags == nil {
		tags = n.Tags
	}

	if _, err := a.notes.Update(ctx, n.LocalID, title, body, tags); err != nil {
		return err
	}
	a.printf("Updated %s.\n", shortID(n.LocalID))
	return nil
}

func (a *App) Delete(ctx context.Context, ref string) error {
	n, err := a.notes.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := a.notes.Delete(ctx, n.LocalID); err != nil {
		return err
	}
	a.printf("Deleted %s.\n", shortID(n.LocalID))
	return nil
}

func (a *App) Pin(ctx context.Context, ref string, pinned bool) error {
	n, err := a.notes.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if _, err := a.notes.SetPinned(ctx, n.LocalID, pinned); err != nil {
		return err
	}
	verb := "Pinned"
	if !pinned {
		verb = "Unpinned"
	}
	a.printf("%s %s.\n", verb, shortID(n.LocalID))
	return nil
}

func (a *App) List(ctx context.Context) error {
	return a.Search(ctx, "")
}

func (a *App) Search(ctx context.Context, query string) error {
	list, err := a.notes.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No notes.\n")
		return nil
	}
	for _, n := range list {
		a.printf("%s\n", noteLine(n))
	}
	return nil
}

func (a *App) Show(ctx context.Context, ref string) error {
	n, err := a.notes.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	a.printf("%s", noteDetails(n))
	return nil
}

// Sync runs a pass now and reports its outcome.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.syncer.SyncNow(ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n", syncSummary(res, nil))
	return nil
}

// Status prints connectivity, session and pending changes.
func (a *App) Status(ctx context.Context) error {
	pending, err := a.notes.PendingCount(ctx)
	if err != nil {
		return err
	}
	a.printf("Server:   %s (%s)\n", a.config.ServerBaseURL, a.watcher.Mode())
	a.printf("Session:  %s\n", a.auth.State())
	a.printf("Pending:  %d note(s)\n", pending)

	last, err := a.repos.Metadata.Get(ctx, syncer.MetaLastSyncedAt)
	if err != nil {
		return client.LocalStorageError("read checkpoint", err)
	}
	if last == nil {
		a.printf("Synced:   never\n")
	} else {
		a.printf("Synced:   %s\n", string(last))
	}
	return nil
}

// describeError turns command errors into one line for the REPL.
func describeError(err error) string {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return errorColor.Sprint("error: note not found")
	case errors.Is(err, common.ErrorValidation):
		return errorColor.Sprint("error: " + err.Error())
	}
	return errorLine(err)
}
