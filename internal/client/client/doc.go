// Package client contains the client-side plumbing shared by the gophnotes
// services.
//
// # Overview
//
// The package provides:
//  1. Transport, a small JSON-over-HTTP channel to the sync server. It joins
//     request paths to a base URL, applies default headers and an optional
//     Decorator, enforces a per-request timeout and classifies failures.
//  2. The typed Error returned by everything built on top of the transport.
//     Its Kind tells callers whether a failure is transient, a validation
//     problem, an authentication problem, a failed session refresh, a local
//     storage problem or an undecodable response.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Errors can be matched with errors.Is against ErrUnavailable,
// ErrUnauthorized, ErrLocalStorage and ErrMalformed, or inspected with
// KindOf.
//
// Concurrency & Contexts
//
// Transport is safe for concurrent use. All network operations accept a
// context.Context and honour cancellation.
package client
