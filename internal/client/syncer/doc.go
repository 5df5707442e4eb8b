// Package syncer keeps the local note store consistent with the server.
//
// A Coordinator runs at most one pass at a time. A pass uploads every dirty
// note in one batch and merges the server's answer: confirmed notes become
// clean and receive their server id, confirmed deletions are purged. A
// failed pass leaves the store untouched so the same notes are retried later.
//
// Triggers that arrive while a pass is running are dropped unless the
// coordinator was built with TrailingPass, in which case exactly one
// follow-up pass is scheduled.
package syncer
