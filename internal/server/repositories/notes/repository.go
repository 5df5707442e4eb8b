// Package notes stores the server copy of user notes.
package notes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

// Repository is scoped by user: every lookup takes the owner id and never
// returns another user's note.
type Repository interface {
	GetByID(ctx context.Context, userID string, id int64) (*models.Note, error)
	GetByClientID(ctx context.Context, userID, clientID string) (*models.Note, error)
	// Upsert inserts note when ID is zero (or updates the row with the same
	// client id) and fills ID. A non-zero ID updates that row.
	Upsert(ctx context.Context, note *models.Note) error
	// MarkDeleted turns a note into a tombstone.
	MarkDeleted(ctx context.Context, userID string, id int64, at time.Time) error
}
