package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

const selectColumns = `id, user_id, client_id, title, short_preview, full_content, is_pinned, is_deleted, created_at, updated_at`

// PostgresRepository implements note storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID string, id int64) (*models.Note, error) {
	query := `SELECT ` + selectColumns + ` FROM notes
		WHERE user_id = $1 AND id = $2`
	return r.getOne(ctx, query, userID, id)
}

func (r *PostgresRepository) GetByClientID(ctx context.Context, userID, clientID string) (*models.Note, error) {
	query := `SELECT ` + selectColumns + ` FROM notes
		WHERE user_id = $1 AND client_id = $2`
	return r.getOne(ctx, query, userID, clientID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Note, error) {
	n := &models.Note{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&n.ID, &n.UserID, &n.ClientID, &n.Title, &n.ShortPreview, &n.FullContent,
		&n.IsPinned, &n.IsDeleted, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, note *models.Note) error {
	if note.ID == 0 {
		return r.insert(ctx, note)
	}
	return r.update(ctx, note)
}

func (r *PostgresRepository) insert(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (user_id, client_id, title, short_preview, full_content, is_pinned, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, client_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			short_preview = EXCLUDED.short_preview,
			full_content = EXCLUDED.full_content,
			is_pinned = EXCLUDED.is_pinned,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		note.UserID, note.ClientID, note.Title, note.ShortPreview, note.FullContent,
		note.IsPinned, note.IsDeleted, note.CreatedAt, note.UpdatedAt,
	).Scan(&note.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) update(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE notes SET
			title = $3,
			short_preview = $4,
			full_content = $5,
			is_pinned = $6,
			is_deleted = $7,
			updated_at = $8
		WHERE user_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		note.UserID, note.ID, note.Title, note.ShortPreview, note.FullContent,
		note.IsPinned, note.IsDeleted, note.UpdatedAt,
	)
	return checkOneRow(res, err)
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, userID string, id int64, at time.Time) error {
	query := `
		UPDATE notes SET is_deleted = TRUE, updated_at = $3
		WHERE user_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, id, at)
	return checkOneRow(res, err)
}

func checkOneRow(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
