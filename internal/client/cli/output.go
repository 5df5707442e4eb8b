package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/connectivity"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/fatih/color"
)

const shortIDLen = 8

var (
	onlineColor  = color.New(color.FgGreen)
	offlineColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
	pinColor     = color.New(color.FgCyan, color.Bold)
)

// getStatus renders the prompt status: "(user mode)" or "(guest mode)".
func (a *App) getStatus() string {
	name := a.user()
	if name == "" {
		name = "guest"
	}
	mode := offlineColor.Sprint(connectivity.ModeOffline)
	if a.watcher != nil && a.watcher.Online() {
		mode = onlineColor.Sprint(connectivity.ModeOnline)
	}
	return fmt.Sprintf("(%s %s)", name, mode)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// noteLine renders one list entry.
func noteLine(n *models.Note) string {
	var b strings.Builder
	if n.IsPinned {
		b.WriteString(pinColor.Sprint("* "))
	} else {
		b.WriteString("  ")
	}
	b.WriteString(shortID(n.LocalID))
	b.WriteString("  ")
	b.WriteString(n.Title)
	if p := strings.ReplaceAll(n.Preview(), "\n", " "); p != "" {
		b.WriteString(dimColor.Sprint("  " + p))
	}
	if n.IsDirty {
		b.WriteString(offlineColor.Sprint("  [pending]"))
	}
	return b.String()
}

// noteDetails renders a full note.
func noteDetails(n *models.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", n.LocalID)
	if n.ServerID != nil {
		fmt.Fprintf(&b, "Server ID: %s\n", *n.ServerID)
	}
	fmt.Fprintf(&b, "Title:     %s\n", n.Title)
	if len(n.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:      %s\n", strings.Join(n.Tags, ", "))
	}
	fmt.Fprintf(&b, "Pinned:    %t\n", n.IsPinned)
	fmt.Fprintf(&b, "Created:   %s\n", n.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Updated:   %s\n", n.UpdatedAt.Local().Format(time.DateTime))
	state := "synced"
	if n.IsDirty {
		state = "pending sync"
	}
	fmt.Fprintf(&b, "State:     %s\n", state)
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func errorLine(err error) string {
	return errorColor.Sprint("error: " + client.ReasonOf(err))
}

// syncSummary renders a pass outcome in one line.
func syncSummary(res syncer.Result, err error) string {
	if err != nil {
		return errorLine(err)
	}
	switch res.Skipped {
	case syncer.SkipGuest:
		return "Not logged in, notes are kept locally."
	case syncer.SkipOffline:
		return offlineColor.Sprint("Offline, changes will be synced later.")
	case syncer.SkipInFlight:
		return "Sync already in progress."
	case syncer.SkipEmpty:
		return "Nothing to sync."
	}
	msg := fmt.Sprintf("Synced %d note(s)", res.Sent)
	if res.Purged > 0 {
		msg += fmt.Sprintf(", %d deletion(s) confirmed", res.Purged)
	}
	if res.KeptDirty > 0 {
		msg += fmt.Sprintf(", %d changed meanwhile", res.KeptDirty)
	}
	return onlineColor.Sprint(msg + ".")
}

// onSyncEvent reports background passes. Manual passes are reported by the
// sync command itself, skips stay silent.
// A failed refresh that cleared the session drops the user from the prompt.
func (a *App) onSyncEvent(ev syncer.Event) {
	expired := client.KindOf(ev.Err) == client.KindRefreshFailed && !a.isLoggedIn(context.Background())
	if expired {
		a.setUser("")
	}
	if ev.Result.Trigger == syncer.TriggerManual {
		return
	}
	if expired {
		a.printf("\n[sync] %s\n", errorColor.Sprint("Session expired, please log in again."))
		return
	}
	if ev.Err == nil && ev.Result.Skipped != syncer.SkipNone {
		return
	}
	a.printf("\n[sync] %s\n", syncSummary(ev.Result, ev.Err))
}
