// Package notes provides the client-side Record Store for notes.
//
// # Overview
//
// The package defines a Repository interface for CRUD, listing and sync
// bookkeeping on models.Note. A SQLite-backed implementation
// (SQLiteRepository) persists data using a dbx.DBTX (either *sql.DB or
// *sql.Tx), so the sync merge can run every write of a pass inside one
// transaction.
//
// # Data Model
//
// Each row carries the note content, a dirty flag (local state not yet
// confirmed by the server) and a tombstone flag. Tombstones are invisible to
// List but remain addressable by local id until Purge removes them after the
// server confirms the deletion.
//
// # Concurrency
//
// The store relies on SQLite WAL mode (see dbx.OpenSQLite): readers never
// block, writes are serialized by the database.
//
// Typical Usage
//
//	repo := notes.NewSQLiteRepository(db)
//	_ = repo.Create(ctx, note)
//	list, _ := repo.List(ctx, notes.ListOptions{Query: "milk"})
//	_ = repo.MarkDeleted(ctx, id, time.Now())
//	dirty, _ := repo.GetAllDirty(ctx)
package notes
