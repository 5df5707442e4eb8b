// Package cli provides the interactive gophnotes command-line client.
//
// It wires configuration, local storage, the auth gateway, the sync
// coordinator and a connectivity watcher behind a REPL. Notes can be written
// as a guest and stay on the device; once the user logs in they are uploaded
// in the background after every change, on reconnect, or on demand with
// "sync".
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
