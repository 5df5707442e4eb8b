// Package refreshtokens declares the server-side repository contract for
// refresh tokens.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores token.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque token string. Absent tokens
	// yield common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting a token that is already gone
	// yields common.ErrorNotFound so a token cannot be rotated twice.
	Delete(ctx context.Context, token string) error
}
