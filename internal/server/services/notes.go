package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

// NoteService reconciles client batches with the server copy.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager) *NoteService {
	return &NoteService{db: db, repomanager: m, now: time.Now}
}

// Sync applies batch for userID in one transaction and returns the
// authoritative state of every note in it, in input order.
//
// Conflicts are last-write-wins on updatedAt: an incoming note that is as new
// as or newer than the stored one replaces it, an older one is answered with
// the stored copy. Deleted notes become tombstones and are echoed back with
// isDeleted set.
func (s *NoteService) Sync(ctx context.Context, userID string, batch api.SyncRequest) (*api.SyncResponse, error) {
	for i := range batch {
		if err := validateNote(&batch[i]); err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
	}

	out := make([]api.NoteDTO, 0, len(batch))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Notes(tx)
		for i := range batch {
			dto, err := s.apply(ctx, repo, userID, &batch[i])
			if err != nil {
				return err
			}
			out = append(out, dto)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &api.SyncResponse{Notes: out, ServerTime: s.now().UTC()}, nil
}

func validateNote(n *api.NoteDTO) error {
	if strings.TrimSpace(n.ClientID) == "" {
		return fmt.Errorf("clientId is required: %w", common.ErrorValidation)
	}
	if !n.IsDeleted && strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("title is required: %w", common.ErrorValidation)
	}
	if n.UpdatedAt.IsZero() {
		return fmt.Errorf("updatedAt is required: %w", common.ErrorValidation)
	}
	return nil
}

func (s *NoteService) apply(ctx context.Context, repo notes.Repository, userID string, in *api.NoteDTO) (api.NoteDTO, error) {
	stored, err := s.lookup(ctx, repo, userID, in)
	if err != nil {
		return api.NoteDTO{}, err
	}

	switch {
	case stored == nil && in.IsDeleted:
		// Never reached the server, nothing to keep.
		return *in, nil

	case stored == nil:
		n := fromDTO(userID, in)
		if err := repo.Upsert(ctx, n); err != nil {
			return api.NoteDTO{}, fmt.Errorf("error creating note: %w", err)
		}
		return toDTO(n, in.ClientID), nil

	case in.UpdatedAt.Before(stored.UpdatedAt):
		return toDTO(stored, in.ClientID), nil

	case in.IsDeleted:
		if !stored.IsDeleted {
			if err := repo.MarkDeleted(ctx, userID, stored.ID, in.UpdatedAt); err != nil {
				return api.NoteDTO{}, fmt.Errorf("error deleting note: %w", err)
			}
		}
		stored.IsDeleted = true
		stored.UpdatedAt = in.UpdatedAt
		return toDTO(stored, in.ClientID), nil
	}

	n := fromDTO(userID, in)
	n.ID = stored.ID
	n.CreatedAt = stored.CreatedAt
	if err := repo.Upsert(ctx, n); err != nil {
		return api.NoteDTO{}, fmt.Errorf("error updating note: %w", err)
	}
	return toDTO(n, in.ClientID), nil
}

// lookup finds the stored copy by server id, falling back to the client id
// for notes whose id the client has not learned yet.
func (s *NoteService) lookup(ctx context.Context, repo notes.Repository, userID string, in *api.NoteDTO) (*models.Note, error) {
	if id, ok := in.ServerID(); ok {
		n, err := repo.GetByID(ctx, userID, id)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}
	n, err := repo.GetByClientID(ctx, userID, in.ClientID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

func fromDTO(userID string, in *api.NoteDTO) *models.Note {
	created := in.CreatedAt
	if created.IsZero() {
		created = in.UpdatedAt
	}
	return &models.Note{
		UserID:       userID,
		ClientID:     in.ClientID,
		Title:        in.Title,
		ShortPreview: in.ShortPreview,
		FullContent:  in.FullContent,
		IsPinned:     in.IsPinned,
		IsDeleted:    in.IsDeleted,
		CreatedAt:    created.UTC(),
		UpdatedAt:    in.UpdatedAt.UTC(),
	}
}

// toDTO answers with clientID so the client can match the entry to its
// record even when the server copy was found by id.
func toDTO(n *models.Note, clientID string) api.NoteDTO {
	id := n.ID
	return api.NoteDTO{
		ClientID:     clientID,
		Title:        n.Title,
		ShortPreview: n.ShortPreview,
		FullContent:  n.FullContent,
		IsPinned:     n.IsPinned,
		IsDeleted:    n.IsDeleted,
		CreatedAt:    n.CreatedAt.UTC(),
		UpdatedAt:    n.UpdatedAt.UTC(),
		NoteID:       &id,
		ID:           &id,
	}
}
