package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "k"

func newUserService(t *testing.T, rm *fakeRepoManager) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	cfg := &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	s := NewUserService(db, rm, cfg)
	s.bcryptCost = bcrypt.MinCost
	return s, mock
}

func register(t *testing.T, s *UserService, mock sqlmock.Sqlmock, email string) *AuthResult {
	t.Helper()
	mock.ExpectBegin()
	mock.ExpectCommit()
	res, err := s.Register(context.Background(), email, "password1", "Ann")
	require.NoError(t, err)
	return res
}

func TestRegister_CreatesUserAndTokens(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)

	res := register(t, s, mock, "  Ann@Example.com ")

	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.Equal(t, "Ann", res.User.FullName)
	assert.NoError(t, bcrypt.CompareHashAndPassword(res.User.PasswordHash, []byte("password1")))
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, 1, rm.r.count())

	uid, err := s.Authenticate(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, uid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)
	register(t, s, mock, "ann@example.com")

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := s.Register(context.Background(), "ann@example.com", "password1", "")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newUserService(t, newFakeRepoManager())

	_, err := s.Register(context.Background(), "not-an-email", "password1", "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Register(context.Background(), "ann@example.com", "123", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestRegister_RepoError(t *testing.T) {
	rm := newFakeRepoManager()
	rm.u.err = errBoom
	s, mock := newUserService(t, rm)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := s.Register(context.Background(), "ann@example.com", "password1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error creating user")
}

func TestLogin_Flows(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)
	register(t, s, mock, "ann@example.com")

	res, err := s.Login(context.Background(), "ANN@example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.Equal(t, 2, rm.r.count())

	_, err = s.Login(context.Background(), "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(context.Background(), "ghost@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	rm.u.err = errBoom
	_, err = s.Login(context.Background(), "ann@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefreshToken_Rotates(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)
	res := register(t, s, mock, "ann@example.com")

	mock.ExpectBegin()
	mock.ExpectCommit()
	pair, err := s.RefreshToken(context.Background(), res.Tokens.AccessToken, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)
	assert.Equal(t, 1, rm.r.count())

	// The old refresh token is spent.
	_, err = s.RefreshToken(context.Background(), pair.AccessToken, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshToken_AcceptsExpiredAccessToken(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)
	res := register(t, s, mock, "ann@example.com")

	expired, err := auth.GenerateToken(res.User.ID, []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = s.RefreshToken(context.Background(), expired, res.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshToken_Rejections(t *testing.T) {
	rm := newFakeRepoManager()
	s, mock := newUserService(t, rm)
	res := register(t, s, mock, "ann@example.com")
	ctx := context.Background()

	t.Run("bad access token", func(t *testing.T) {
		_, err := s.RefreshToken(ctx, "garbage", res.Tokens.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		_, err := s.RefreshToken(ctx, res.Tokens.AccessToken, "nope")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("token of another user", func(t *testing.T) {
		other, err := auth.GenerateToken("someone-else", []byte(testSecret), time.Hour)
		require.NoError(t, err)
		_, err = s.RefreshToken(ctx, other, res.Tokens.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		require.NoError(t, rm.r.Create(ctx, &models.RefreshToken{
			UserID: res.User.ID, Token: "old", Expires: time.Now().Add(-time.Minute),
		}))
		_, err := s.RefreshToken(ctx, res.Tokens.AccessToken, "old")
		assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	})

	t.Run("find error", func(t *testing.T) {
		rm.r.findErr = errBoom
		defer func() { rm.r.findErr = nil }()
		_, err := s.RefreshToken(ctx, res.Tokens.AccessToken, res.Tokens.RefreshToken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBoom))
	})

	t.Run("delete error rolls back", func(t *testing.T) {
		rm.r.delErr = errBoom
		defer func() { rm.r.delErr = nil }()
		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := s.RefreshToken(ctx, res.Tokens.AccessToken, res.Tokens.RefreshToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error deleting refresh token")
	})

	t.Run("create error rolls back", func(t *testing.T) {
		rm.r.createErr = errBoom
		defer func() { rm.r.createErr = nil }()
		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := s.RefreshToken(ctx, res.Tokens.AccessToken, res.Tokens.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_Expired(t *testing.T) {
	s, _ := newUserService(t, newFakeRepoManager())

	tok, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	_, err = s.Authenticate(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}
