// Package cli provides the interactive cropdb operator client.
//
// It wires configuration, the gRPC auth client and a small REPL. Users log
// in, inspect their entitlements and manage their own credentials; admins
// additionally register accounts, change account state and reconcile
// subscriptions.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher and runREPL for details.
package cli
