// Package harness runs scripted elections against a fresh ledger.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: red_blue
//	description: "Second vote is rejected and the tally reconciles"
//	steps:
//	  - op: create_registrant
//	    name: Red
//	  - op: enroll
//	    name: A
//	    slot: 1
//	  - op: vote
//	    slot: 1
//	    party: Red
//	  - op: vote
//	    slot: 1
//	    party: Red
//	    expect: already_voted
//	assertions:
//	  - type: tally
//	    rows:
//	      - {party: Red, votes: 1}
//
// # Step Operations
//
//   - create_registrant: name
//   - rename_registrant: name, to
//   - remove_registrant: name
//   - enroll: name, slot, privilege (ordinary or administrator)
//   - remove_identity: slot
//   - vote: slot, party, and optionally attempts for concurrent submission
//
// Every step has an expected outcome, "ok" by default. Outcomes are
// "ok", "already_voted", "unknown_registrant", "not_found",
// "constraint_violation" and "invalid_input".
//
// # Assertion Types
//
//   - tally: exact rows and orphaned count
//   - audit_count: number of audit events of one kind
//   - audit_order: audit kinds appear in this relative order
//   - identity: whether a slot is bound
//   - reconciles: the tally accounts for every vote row
//
// # Deterministic Testing
//
// Each scenario runs on its own in-memory SQLite store with a
// testutil.DeterministicClock and a keypad sensor, so traces are
// identical across runs and can be compared against golden files.
package harness
