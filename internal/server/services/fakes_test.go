package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	notesrepo "github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	refreshtokensrepo "github.com/dmitrijs2005/gophnotes/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/gophnotes/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	nextID  int
	err     error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	f.nextID++
	u.ID = string(rune('0' + f.nextID))
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeRefreshRepo struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken
	findErr   error
	delErr    error
	createErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[t.Token] = t
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	if _, ok := f.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeNotesRepo struct {
	rows   map[int64]*models.Note
	nextID int64
	err    error
}

func newFakeNotesRepo() *fakeNotesRepo {
	return &fakeNotesRepo{rows: map[int64]*models.Note{}}
}

func (f *fakeNotesRepo) GetByID(_ context.Context, userID string, id int64) (*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotesRepo) GetByClientID(_ context.Context, userID, clientID string) (*models.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, n := range f.rows {
		if n.UserID == userID && n.ClientID == clientID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeNotesRepo) Upsert(_ context.Context, n *models.Note) error {
	if f.err != nil {
		return f.err
	}
	if n.ID == 0 {
		f.nextID++
		n.ID = f.nextID
	}
	cp := *n
	f.rows[n.ID] = &cp
	return nil
}

func (f *fakeNotesRepo) MarkDeleted(_ context.Context, userID string, id int64, at time.Time) error {
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return common.ErrorNotFound
	}
	n.IsDeleted = true
	n.UpdatedAt = at
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	n *fakeNotesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo(), n: newFakeNotesRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                    { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository    { return m.r }
func (m *fakeRepoManager) Notes(dbx.DBTX) notesrepo.Repository                    { return m.n }
