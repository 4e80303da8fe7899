package model

import (
	"fmt"
	"time"
)

// Template slot bounds accepted by the registry. The sensor library used by
// the kiosks exposes slots 0..1000.
const (
	MinSlot = 0
	MaxSlot = 1000
)

// Privilege is the access level of an Identity. It is fixed at creation.
type Privilege int

const (
	// PrivilegeOrdinary may cast a single vote.
	PrivilegeOrdinary Privilege = iota
	// PrivilegeAdministrator manages registrants, identities and results.
	PrivilegeAdministrator
)

// String returns the wire name of the privilege.
func (p Privilege) String() string {
	switch p {
	case PrivilegeOrdinary:
		return "ordinary"
	case PrivilegeAdministrator:
		return "administrator"
	default:
		return fmt.Sprintf("privilege(%d)", int(p))
	}
}

// Valid reports whether p is one of the declared variants.
func (p Privilege) Valid() bool {
	return p == PrivilegeOrdinary || p == PrivilegeAdministrator
}

// IsAdministrator reports whether p grants administrative access.
func (p Privilege) IsAdministrator() bool {
	return p == PrivilegeAdministrator
}

// ParsePrivilege parses the wire name produced by String.
// "admin" and "voter" are accepted as aliases.
func ParsePrivilege(s string) (Privilege, error) {
	switch s {
	case "ordinary", "voter":
		return PrivilegeOrdinary, nil
	case "administrator", "admin":
		return PrivilegeAdministrator, nil
	default:
		return 0, NewError(KindInvalidInput, "parse privilege", fmt.Sprintf("unknown privilege %q", s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Privilege) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid privilege %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Privilege) UnmarshalText(text []byte) error {
	v, err := ParsePrivilege(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Identity is a registered person bound to exactly one template slot.
type Identity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slot      int       `json:"slot"`
	Privilege Privilege `json:"privilege"`
}

// Registrant is a votable option ("party").
type Registrant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Vote is the single ballot an identity may cast.
type Vote struct {
	ID           int64     `json:"id"`
	IdentityID   int64     `json:"identity_id"`
	RegistrantID int64     `json:"registrant_id"`
	VotedAt      time.Time `json:"voted_at"`
}

// EventKind tags an audit event.
type EventKind string

const (
	EventIdentityCreated   EventKind = "identity-created"
	EventIdentityRemoved   EventKind = "identity-removed"
	EventRegistrantCreated EventKind = "registrant-created"
	EventRegistrantRenamed EventKind = "registrant-renamed"
	EventRegistrantRemoved EventKind = "registrant-removed"
	EventVoteCast          EventKind = "vote-cast"
	// EventVoteRejected records a castVote that lost to an earlier ballot.
	EventVoteRejected EventKind = "vote-rejected"
)

// Valid reports whether k is a declared event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventIdentityCreated, EventIdentityRemoved,
		EventRegistrantCreated, EventRegistrantRenamed, EventRegistrantRemoved,
		EventVoteCast, EventVoteRejected:
		return true
	}
	return false
}

// AuditEvent is one row of the append-only audit trail.
type AuditEvent struct {
	ID        int64     `json:"id"`
	Kind      EventKind `json:"event"`
	Detail    string    `json:"info"`
	CreatedAt time.Time `json:"created_at"`
}

// TallyRow is the live vote count for one registrant.
type TallyRow struct {
	Registrant string `json:"party" yaml:"party"`
	Votes      int64  `json:"votes" yaml:"votes"`
}

// Tally is the full result set. Rows are ordered by Votes descending, then
// by Registrant ascending. Orphaned counts votes whose registrant was removed;
// they are not attributed to any row.
type Tally struct {
	Rows     []TallyRow `json:"rows"`
	Orphaned int64      `json:"orphaned"`
}

// Total returns the number of committed votes the tally accounts for,
// orphans included.
func (t Tally) Total() int64 {
	total := t.Orphaned
	for _, r := range t.Rows {
		total += r.Votes
	}
	return total
}
