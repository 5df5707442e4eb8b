package notes

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/migrations"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := dbx.OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(ctx, db, "."))
	return db
}

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db := openDB(t, ":memory:")
	return NewSQLiteRepository(db), db
}

var base = time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)

func newNote(title, body string, at time.Time) *models.Note {
	return models.NewNote(title, body, nil, at)
}

func TestCreateAndGet_RoundTrip(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := models.NewNote("Mua sữa", "", []string{"home"}, base)
	n.IsPinned = true
	require.NoError(t, r.Create(ctx, n))

	got, err := r.GetByLocalID(ctx, n.LocalID)
	require.NoError(t, err)
	assert.Equal(t, n, got)
	assert.True(t, got.CreatedAt.Equal(base), "nanoseconds must survive storage")
}

func TestCreate_Duplicate(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := newNote("a", "b", base)
	require.NoError(t, r.Create(ctx, n))
	err := r.Create(ctx, n)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestGetByLocalID_NotFound(t *testing.T) {
	r, _ := setupRepo(t)
	_, err := r.GetByLocalID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := newNote("draft", "v1", base)
	require.NoError(t, r.Create(ctx, n))

	n.Title, n.Body, n.Tags = "final", "v2", []string{"work"}
	n.Touch(base.Add(time.Minute))
	require.NoError(t, r.Update(ctx, n))

	got, err := r.GetByLocalID(ctx, n.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, "v2", got.Body)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt)
	assert.Equal(t, base, got.CreatedAt)

	missing := newNote("x", "y", base)
	assert.ErrorIs(t, r.Update(ctx, missing), common.ErrorNotFound)
}

func TestMarkDeleted_TombstoneHiddenButAddressable(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	keep := newNote("keep", "", base)
	gone := newNote("gone", "", base.Add(time.Second))
	require.NoError(t, r.Create(ctx, keep))
	require.NoError(t, r.Create(ctx, gone))

	gone.IsDirty = false
	require.NoError(t, r.Update(ctx, gone))
	require.NoError(t, r.MarkDeleted(ctx, gone.LocalID, base.Add(time.Hour)))

	list, err := r.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.LocalID, list[0].LocalID)

	search, err := r.List(ctx, ListOptions{Query: "gone"})
	require.NoError(t, err)
	assert.Empty(t, search)

	tomb, err := r.GetByLocalID(ctx, gone.LocalID)
	require.NoError(t, err)
	assert.True(t, tomb.IsDeleted)
	assert.True(t, tomb.IsDirty)
	assert.Equal(t, base.Add(time.Hour), tomb.UpdatedAt)

	assert.ErrorIs(t, r.MarkDeleted(ctx, gone.LocalID, base), common.ErrorNotFound, "already deleted")
	assert.ErrorIs(t, r.Update(ctx, tomb), common.ErrorNotFound, "tombstones are read-only")
}

func TestList_SearchAndOrder(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	old := models.NewNote("Groceries", "milk, eggs", []string{"home"}, base)
	recent := models.NewNote("Standup", "status", []string{"work"}, base.Add(time.Hour))
	pinned := models.NewNote("Ideas", "Buy MILK frother", nil, base.Add(-time.Hour))
	pinned.IsPinned = true
	for _, n := range []*models.Note{old, recent, pinned} {
		require.NoError(t, r.Create(ctx, n))
	}

	all, err := r.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{pinned.LocalID, recent.LocalID, old.LocalID},
		[]string{all[0].LocalID, all[1].LocalID, all[2].LocalID})

	milk, err := r.List(ctx, ListOptions{Query: "Milk"})
	require.NoError(t, err)
	require.Len(t, milk, 2)

	tagged, err := r.List(ctx, ListOptions{Query: "work"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, recent.LocalID, tagged[0].LocalID)

	pinnedOnly, err := r.List(ctx, ListOptions{PinnedOnly: true})
	require.NoError(t, err)
	require.Len(t, pinnedOnly, 1)
	assert.Equal(t, pinned.LocalID, pinnedOnly[0].LocalID)
}

func TestList_SearchFoldsUnicodeAndTakesQueryLiterally(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	milk := models.NewNote("Mua SỮA", "", nil, base)
	summer := models.NewNote("Notes", "trip plans", []string{"ÉTÉ"}, base.Add(time.Second))
	plain := models.NewNote("100% done", "under_score", nil, base.Add(2*time.Second))
	for _, n := range []*models.Note{milk, summer, plain} {
		require.NoError(t, r.Create(ctx, n))
	}

	got, err := r.List(ctx, ListOptions{Query: "sữa"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, milk.LocalID, got[0].LocalID)

	got, err = r.List(ctx, ListOptions{Query: "été"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, summer.LocalID, got[0].LocalID)

	for _, q := range []string{"%", "_"} {
		got, err = r.List(ctx, ListOptions{Query: q})
		require.NoError(t, err)
		require.Len(t, got, 1, "query %q is not a wildcard", q)
		assert.Equal(t, plain.LocalID, got[0].LocalID)
	}
}

func TestGetAllDirty_IncludesTombstones(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	clean := newNote("clean", "", base)
	clean.IsDirty = false
	dirty := newNote("dirty", "", base.Add(time.Second))
	tomb := newNote("tomb", "", base.Add(2*time.Second))
	for _, n := range []*models.Note{clean, dirty, tomb} {
		require.NoError(t, r.Create(ctx, n))
	}
	require.NoError(t, r.MarkDeleted(ctx, tomb.LocalID, base.Add(time.Minute)))

	got, err := r.GetAllDirty(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, dirty.LocalID, got[0].LocalID)
	assert.Equal(t, tomb.LocalID, got[1].LocalID)
	assert.True(t, got[1].IsDeleted)
}

func TestPurge(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := newNote("x", "", base)
	require.NoError(t, r.Create(ctx, n))
	require.NoError(t, r.Purge(ctx, n.LocalID))

	_, err := r.GetByLocalID(ctx, n.LocalID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NoError(t, r.Purge(ctx, n.LocalID))
}

func TestApplyServerState_UpdatesExisting(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := models.NewNote("local", "body", []string{"keep-me"}, base)
	require.NoError(t, r.Create(ctx, n))

	id := "42"
	confirmed := &models.Note{
		LocalID:   n.LocalID,
		ServerID:  &id,
		Title:     "server title",
		Body:      "server body",
		IsPinned:  true,
		CreatedAt: base.Add(time.Hour),
		UpdatedAt: base.Add(2 * time.Hour),
	}
	require.NoError(t, r.ApplyServerState(ctx, confirmed))

	got, err := r.GetByLocalID(ctx, n.LocalID)
	require.NoError(t, err)
	require.NotNil(t, got.ServerID)
	assert.Equal(t, "42", *got.ServerID)
	assert.False(t, got.IsDirty)
	assert.Equal(t, "server title", got.Title)
	assert.True(t, got.IsPinned)
	assert.Equal(t, []string{"keep-me"}, got.Tags)
	assert.Equal(t, base, got.CreatedAt, "created_at is immutable")
	assert.Equal(t, base.Add(2*time.Hour), got.UpdatedAt)
}

func TestApplyServerState_InsertsUnknown(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	id := "7"
	remote := &models.Note{LocalID: "from-other-device", ServerID: &id, Title: "t", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, r.ApplyServerState(ctx, remote))

	got, err := r.GetByLocalID(ctx, "from-other-device")
	require.NoError(t, err)
	assert.False(t, got.IsDirty)
	assert.Equal(t, "7", *got.ServerID)
}

func TestApplyServerState_KeepsServerIDWhenMissing(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	n := newNote("x", "", base)
	require.NoError(t, r.Create(ctx, n))
	require.NoError(t, r.SetServerID(ctx, n.LocalID, "9"))

	n.ServerID = nil
	require.NoError(t, r.ApplyServerState(ctx, n))

	got, err := r.GetByLocalID(ctx, n.LocalID)
	require.NoError(t, err)
	require.NotNil(t, got.ServerID)
	assert.Equal(t, "9", *got.ServerID)
}

func TestSetServerID_Missing(t *testing.T) {
	r, _ := setupRepo(t)
	assert.ErrorIs(t, r.SetServerID(context.Background(), "nope", "1"), common.ErrorNotFound)
}

func TestWritesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	db := openDB(t, path)
	n := newNote("durable", "body", base)
	require.NoError(t, NewSQLiteRepository(db).Create(ctx, n))
	require.NoError(t, db.Close())

	reopened := openDB(t, path)
	got, err := NewSQLiteRepository(reopened).GetByLocalID(ctx, n.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Title)
	assert.True(t, got.IsDirty)
}

func TestErrorsAreWrapped(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.List(ctx, ListOptions{})
	assert.ErrorContains(t, err, "failed to list notes")

	_, err = r.GetAllDirty(ctx)
	assert.ErrorContains(t, err, "failed to select dirty notes")

	err = r.Create(ctx, newNote("a", "b", base))
	assert.ErrorContains(t, err, "failed to insert note")
}
