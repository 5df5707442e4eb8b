package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_OpenError(t *testing.T) {
	orig := openDB
	openDB = func(context.Context, string) (*sql.DB, error) { return nil, errors.New("refused") }
	t.Cleanup(func() { openDB = orig })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second

	app := newApp(cfg, logging.Nop(), db, repomanager.NewPostgresRepositoryManager())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	require.NoError(t, app.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
