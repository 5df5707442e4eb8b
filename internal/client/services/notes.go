// Package services contains application services for the gophnotes client.
// This file defines the note service: local CRUD with write-ahead to the
// record store followed by a background sync trigger.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/common"
)

// Notifier is told about every successful local mutation.
type Notifier interface {
	RecordMutated()
}

// ErrAmbiguousID is returned by Resolve when a prefix matches several notes.
var ErrAmbiguousID = errors.New("ambiguous note id")

// NoteService defines note operations for the CLI.
//
// Contract:
//   - Every mutation is durable in the record store before it returns, and
//     only then is the Notifier told.
//   - Deleted notes are invisible to Get, List, Search and Resolve.
//   - Store failures are reported as client.KindLocalStorage errors; a missing
//     note is common.ErrorNotFound.
type NoteService interface {
	Add(ctx context.Context, title, body string, tags []string) (*models.Note, error)
	Update(ctx context.Context, localID, title, body string, tags []string) (*models.Note, error)
	SetPinned(ctx context.Context, localID string, pinned bool) (*models.Note, error)
	Delete(ctx context.Context, localID string) error
	Get(ctx context.Context, localID string) (*models.Note, error)
	List(ctx context.Context) ([]*models.Note, error)
	Search(ctx context.Context, query string) ([]*models.Note, error)
	// Resolve turns a full id or a unique id prefix into a live note.
	Resolve(ctx context.Context, ref string) (*models.Note, error)
	// PendingCount returns the number of notes waiting for sync.
	PendingCount(ctx context.Context) (int, error)
}

type noteService struct {
	repo     notes.Repository
	notifier Notifier
	now      func() time.Time
}

// NewNoteService constructs a NoteService over repo. notifier may be nil.
func NewNoteService(repo notes.Repository, notifier Notifier) NoteService {
	return &noteService{repo: repo, notifier: notifier, now: time.Now}
}

func (s *noteService) mutated() {
	if s.notifier != nil {
		s.notifier.RecordMutated()
	}
}

func storageErr(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return client.LocalStorageError(op, err)
}

func validate(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required: %w", common.ErrorValidation)
	}
	return nil
}

func (s *noteService) Add(ctx context.Context, title, body string, tags []string) (*models.Note, error) {
	if err := validate(title); err != nil {
		return nil, err
	}
	n := models.NewNote(strings.TrimSpace(title), body, tags, s.now())
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, storageErr("add note", err)
	}
	s.mutated()
	return n, nil
}

func (s *noteService) Update(ctx context.Context, localID, title, body string, tags []string) (*models.Note, error) {
	if err := validate(title); err != nil {
		return nil, err
	}
	n, err := s.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	n.Title = strings.TrimSpace(title)
	n.Body = body
	n.Tags = models.NormalizeTags(tags)
	return n, s.save(ctx, n)
}

func (s *noteService) SetPinned(ctx context.Context, localID string, pinned bool) (*models.Note, error) {
	n, err := s.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if n.IsPinned == pinned {
		return n, nil
	}
	n.IsPinned = pinned
	return n, s.save(ctx, n)
}

func (s *noteService) save(ctx context.Context, n *models.Note) error {
	n.Touch(s.now())
	if err := s.repo.Update(ctx, n); err != nil {
		return storageErr("update note", err)
	}
	s.mutated()
	return nil
}

func (s *noteService) Delete(ctx context.Context, localID string) error {
	if err := s.repo.MarkDeleted(ctx, localID, s.now().UTC()); err != nil {
		return storageErr("delete note", err)
	}
	s.mutated()
	return nil
}

func (s *noteService) Get(ctx context.Context, localID string) (*models.Note, error) {
	n, err := s.repo.GetByLocalID(ctx, localID)
	if err != nil {
		return nil, storageErr("get note", err)
	}
	if n.IsDeleted {
		return nil, common.ErrorNotFound
	}
	return n, nil
}

func (s *noteService) List(ctx context.Context) ([]*models.Note, error) {
	return s.Search(ctx, "")
}

func (s *noteService) Search(ctx context.Context, query string) ([]*models.Note, error) {
	result, err := s.repo.List(ctx, notes.ListOptions{Query: query})
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	return result, nil
}

func (s *noteService) Resolve(ctx context.Context, ref string) (*models.Note, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, common.ErrorNotFound
	}
	if n, err := s.Get(ctx, ref); err == nil || !errors.Is(err, common.ErrorNotFound) {
		return n, err
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *models.Note
	for _, n := range all {
		if strings.HasPrefix(n.LocalID, ref) {
			if match != nil {
				return nil, fmt.Errorf("%q: %w", ref, ErrAmbiguousID)
			}
			match = n
		}
	}
	if match == nil {
		return nil, common.ErrorNotFound
	}
	return match, nil
}

func (s *noteService) PendingCount(ctx context.Context) (int, error) {
	dirty, err := s.repo.GetAllDirty(ctx)
	if err != nil {
		return 0, storageErr("count pending notes", err)
	}
	return len(dirty), nil
}
