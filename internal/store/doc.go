// Package store provides SQLite-backed durable storage for the ballot ledger.
//
// The store owns four tables:
//   - users: identities, one per biometric template slot (finger_id UNIQUE)
//   - parties: registrants (name UNIQUE)
//   - votes: at most one per identity (user_id UNIQUE), never updated or deleted
//   - audit: append-only event log, never updated or deleted
//
// # Invariants
//
// Uniqueness is structural: every "at most one" rule is a UNIQUE index, and
// writers rely on the index rather than a prior existence check. InsertVote
// uses ON CONFLICT(user_id) DO NOTHING so concurrent attempts for the same
// identity resolve to exactly one inserted row.
//
// Immutability of votes and audit rows is enforced by triggers.
//
// Every mutating operation runs in one write transaction (Store.InTx); there
// is no partial effect on failure. Lookups, listings and the tally run in a
// read-only transaction (Store.View) on a separate pool. Driver errors are translated into the
// model error taxonomy before they leave the package.
//
// # Database Configuration
//
//   - WAL mode: View readers run while a writer holds the lock
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: InTx takes the write lock at BEGIN
//   - _txlock=deferred, query_only: View never takes the write lock
//
// Schema setup goes through golang-migrate with embedded migrations and is
// idempotent.
package store
