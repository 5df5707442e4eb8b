package dbx

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqlitePragmas make a single local file safe for one writer and many
// concurrent readers.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn and
// applies the connection pragmas. ":memory:" databases are pinned to a
// single connection, otherwise every pooled connection would see its own
// empty database.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, p := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}
