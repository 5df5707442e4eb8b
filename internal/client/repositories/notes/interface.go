package notes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

// ListOptions narrows List results.
type ListOptions struct {
	// Query matches title, body or tags case-insensitively. Empty matches all.
	Query string
	// PinnedOnly limits the result to pinned notes.
	PinnedOnly bool
}

// Repository describes the operations on locally stored notes.
type Repository interface {
	// Create inserts a new note.
	Create(ctx context.Context, note *models.Note) error

	// Update overwrites content and flags of a live (non-deleted) note.
	// It returns common.ErrorNotFound when no such note exists.
	Update(ctx context.Context, note *models.Note) error

	// GetByLocalID returns a note by local id, tombstones included.
	GetByLocalID(ctx context.Context, localID string) (*models.Note, error)

	// List returns live notes, pinned first, most recently updated next.
	List(ctx context.Context, opts ListOptions) ([]*models.Note, error)

	// MarkDeleted turns a live note into a dirty tombstone.
	MarkDeleted(ctx context.Context, localID string, now time.Time) error

	// GetAllDirty returns every note awaiting sync, tombstones included.
	GetAllDirty(ctx context.Context) ([]*models.Note, error)

	// Purge physically removes a note. Purging a missing note is not an error.
	Purge(ctx context.Context, localID string) error

	// ApplyServerState upserts server-confirmed content and clears the dirty
	// flag. Local tags and the original created_at of an existing row are kept.
	ApplyServerState(ctx context.Context, note *models.Note) error

	// SetServerID records the server id without touching content or flags.
	SetServerID(ctx context.Context, localID, serverID string) error
}
