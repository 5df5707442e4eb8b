package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/client/migrations"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/pressly/goose/v3"
)

// Repositories bundles the local stores of the client. DB is exposed so that
// callers can run several repository calls in one transaction.
type Repositories struct {
	DB       *sql.DB
	Notes    notes.Repository
	Metadata metadata.Repository
}

// Close releases the underlying database.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

// RunMigrations applies the embedded goose migrations to db. goose output goes
// to logger so that it never reaches the terminal.
func RunMigrations(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	goose.SetLogger(logging.NewPrintfLogger(logger.With("module", "migrations")))
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the SQLite database at dsn,
// migrates it and returns repositories bound to it.
func InitDatabase(ctx context.Context, dsn string, logger logging.Logger) (*Repositories, error) {
	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Notes:    notes.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}
