// Package model defines the ledger's shared types and error taxonomy.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key constraints:
//   - Privilege is a closed variant, never a bare boolean outside the store
//   - Display names are NFC-normalised before they reach a uniqueness check
//   - Every rejection carries a Kind so callers can tell them apart
package model
