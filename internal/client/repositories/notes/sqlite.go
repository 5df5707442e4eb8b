package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

const noteColumns = `local_id, server_id, title, body, tags, is_pinned, is_dirty, is_deleted, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// timeLayout is RFC 3339 with fixed nanoseconds so that stored values sort
// lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*models.Note, error) {
	var (
		n                  models.Note
		serverID           sql.NullString
		tags               string
		created, updated   string
		pinned, dirty, del bool
	)
	if err := s.Scan(&n.LocalID, &serverID, &n.Title, &n.Body, &tags,
		&pinned, &dirty, &del, &created, &updated); err != nil {
		return nil, err
	}

	if serverID.Valid {
		id := serverID.String
		n.ServerID = &id
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s: %w", n.LocalID, err)
	}
	if len(n.Tags) == 0 {
		n.Tags = nil
	}

	var err error
	if n.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of %s: %w", n.LocalID, err)
	}
	if n.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of %s: %w", n.LocalID, err)
	}

	n.IsPinned, n.IsDirty, n.IsDeleted = pinned, dirty, del
	return &n, nil
}

func (r *SQLiteRepository) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOneRow(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Create inserts a note. A duplicate local id is reported as common.ErrorAlreadyExists.
func (r *SQLiteRepository) Create(ctx context.Context, n *models.Note) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		n.LocalID, n.ServerID, n.Title, n.Body, tags,
		n.IsPinned, n.IsDirty, n.IsDeleted, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("note %s: %w", n.LocalID, common.ErrorAlreadyExists)
		}
		return err
	}
	return nil
}

// Update overwrites a live note. Tombstones cannot be edited.
func (r *SQLiteRepository) Update(ctx context.Context, n *models.Note) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `UPDATE notes SET title = ?, body = ?, tags = ?, is_pinned = ?, is_dirty = ?, updated_at = ?
		WHERE local_id = ? AND is_deleted = 0`
	res, err := r.db.ExecContext(ctx, query,
		n.Title, n.Body, tags, n.IsPinned, n.IsDirty, formatTime(n.UpdatedAt), n.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return expectOneRow(res)
}

// GetByLocalID returns a single note, including tombstones.
func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE local_id = ?`
	n, err := scanNote(r.db.QueryRowContext(ctx, query, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", localID, err)
	}
	return n, nil
}

// List returns non-deleted notes matching opts. The query is matched in Go
// because SQLite's LOWER and LIKE fold ASCII only.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]*models.Note, error) {
	where := "is_deleted = 0"
	if opts.PinnedOnly {
		where += " AND is_pinned = 1"
	}

	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + where +
		` ORDER BY is_pinned DESC, updated_at DESC, local_id`

	result, err := r.queryNotes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(opts.Query))
	if q == "" {
		return result, nil
	}
	matched := result[:0]
	for _, n := range result {
		if matches(n, q) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// matches reports whether the lowercased query q occurs in the title, the
// body or one of the tags of n.
func matches(n *models.Note, q string) bool {
	if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Body), q) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// MarkDeleted tombstones a live note and makes it dirty.
func (r *SQLiteRepository) MarkDeleted(ctx context.Context, localID string, now time.Time) error {
	query := `UPDATE notes SET is_deleted = 1, is_dirty = 1, updated_at = ? WHERE local_id = ? AND is_deleted = 0`
	res, err := r.db.ExecContext(ctx, query, formatTime(now), localID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return expectOneRow(res)
}

// GetAllDirty returns every dirty note in creation order.
func (r *SQLiteRepository) GetAllDirty(ctx context.Context) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE is_dirty = 1 ORDER BY created_at, local_id`
	result, err := r.queryNotes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty notes: %w", err)
	}
	return result, nil
}

// Purge deletes the row for localID.
func (r *SQLiteRepository) Purge(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to purge note %s: %w", localID, err)
	}
	return nil
}

// ApplyServerState upserts the server-confirmed version of a note.
func (r *SQLiteRepository) ApplyServerState(ctx context.Context, n *models.Note) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = COALESCE(excluded.server_id, notes.server_id),
			title = excluded.title,
			body = excluded.body,
			is_pinned = excluded.is_pinned,
			is_dirty = 0,
			is_deleted = 0,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		n.LocalID, n.ServerID, n.Title, n.Body, tags, n.IsPinned,
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to apply server state to %s: %w", n.LocalID, err)
	}
	return nil
}

// SetServerID stores the server id of a note.
func (r *SQLiteRepository) SetServerID(ctx context.Context, localID, serverID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notes SET server_id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id of %s: %w", localID, err)
	}
	return expectOneRow(res)
}
