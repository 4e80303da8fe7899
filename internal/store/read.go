package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ballot/internal/model"
)

// IdentityBySlot returns the identity bound to slot.
// Returns model.KindNotFound if no identity is bound.
func (t *Tx) IdentityBySlot(ctx context.Context, slot int) (model.Identity, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, finger_id, is_admin
		FROM users
		WHERE finger_id = ?
	`, slot)

	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return model.Identity{}, model.NewError(model.KindNotFound, "lookup identity",
			fmt.Sprintf("no identity bound to slot %d", slot))
	}
	if err != nil {
		return model.Identity{}, translate("lookup identity", err)
	}
	return ident, nil
}

// IdentityByID returns the identity with the given id.
func (t *Tx) IdentityByID(ctx context.Context, id int64) (model.Identity, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, finger_id, is_admin
		FROM users
		WHERE id = ?
	`, id)

	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return model.Identity{}, model.NewError(model.KindNotFound, "lookup identity",
			fmt.Sprintf("identity %d does not exist", id))
	}
	if err != nil {
		return model.Identity{}, translate("lookup identity", err)
	}
	return ident, nil
}

// ListIdentities returns all identities ordered by slot.
func (t *Tx) ListIdentities(ctx context.Context) ([]model.Identity, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name, finger_id, is_admin
		FROM users
		ORDER BY finger_id ASC
	`)
	if err != nil {
		return nil, translate("list identities", err)
	}
	defer rows.Close()

	identities := []model.Identity{}
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, translate("list identities: scan", err)
		}
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list identities: iterate", err)
	}
	return identities, nil
}

// RegistrantByID returns the registrant with the given id.
// Returns model.KindNotFound if it does not exist.
func (t *Tx) RegistrantByID(ctx context.Context, id int64) (model.Registrant, error) {
	var reg model.Registrant
	err := t.tx.QueryRowContext(ctx, `SELECT id, name FROM parties WHERE id = ?`, id).Scan(&reg.ID, &reg.Name)
	if err == sql.ErrNoRows {
		return model.Registrant{}, model.NewError(model.KindNotFound, "lookup registrant",
			fmt.Sprintf("registrant %d does not exist", id))
	}
	if err != nil {
		return model.Registrant{}, translate("lookup registrant", err)
	}
	return reg, nil
}

// ListRegistrants returns all registrants ordered by name.
// Returns an empty slice (not nil) when there are none.
func (t *Tx) ListRegistrants(ctx context.Context) ([]model.Registrant, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name
		FROM parties
		ORDER BY name COLLATE BINARY ASC, id ASC
	`)
	if err != nil {
		return nil, translate("list registrants", err)
	}
	defer rows.Close()

	registrants := []model.Registrant{}
	for rows.Next() {
		var reg model.Registrant
		if err := rows.Scan(&reg.ID, &reg.Name); err != nil {
			return nil, translate("list registrants: scan", err)
		}
		registrants = append(registrants, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list registrants: iterate", err)
	}
	return registrants, nil
}

// VoteByIdentity returns the vote cast by identityID.
func (t *Tx) VoteByIdentity(ctx context.Context, identityID int64) (model.Vote, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, party_id, voted_at
		FROM votes
		WHERE user_id = ?
	`, identityID)

	vote, err := scanVote(row)
	if err == sql.ErrNoRows {
		return model.Vote{}, model.NewError(model.KindNotFound, "lookup vote",
			fmt.Sprintf("identity %d has not voted", identityID))
	}
	if err != nil {
		return model.Vote{}, translate("lookup vote", err)
	}
	return vote, nil
}

func (t *Tx) voteByID(ctx context.Context, id int64) (model.Vote, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, party_id, voted_at
		FROM votes
		WHERE id = ?
	`, id)

	vote, err := scanVote(row)
	if err != nil {
		return model.Vote{}, translate("read vote", err)
	}
	return vote, nil
}

// CountVotes returns the number of committed vote rows.
func (t *Tx) CountVotes(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&n); err != nil {
		return 0, translate("count votes", err)
	}
	return n, nil
}

// TallyRows counts votes per registrant, zero-vote registrants included.
// Ordered by count descending, then name ascending (binary collation).
func (t *Tx) TallyRows(ctx context.Context) ([]model.TallyRow, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT p.name, COUNT(v.id) AS votes
		FROM parties p
		LEFT JOIN votes v ON v.party_id = p.id
		GROUP BY p.id, p.name
		ORDER BY votes DESC, p.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, translate("tally", err)
	}
	defer rows.Close()

	tally := []model.TallyRow{}
	for rows.Next() {
		var r model.TallyRow
		if err := rows.Scan(&r.Registrant, &r.Votes); err != nil {
			return nil, translate("tally: scan", err)
		}
		tally = append(tally, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("tally: iterate", err)
	}
	return tally, nil
}

// CountOrphanedVotes counts votes whose registrant no longer exists.
func (t *Tx) CountOrphanedVotes(ctx context.Context) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM votes v
		LEFT JOIN parties p ON p.id = v.party_id
		WHERE p.id IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, translate("count orphaned votes", err)
	}
	return n, nil
}

// AuditFilter narrows ListAudit. Zero values mean "no filter".
type AuditFilter struct {
	Kind    model.EventKind
	AfterID int64
	Limit   int
}

// ListAudit returns audit events ordered by id ascending (commit order).
func (t *Tx) ListAudit(ctx context.Context, f AuditFilter) ([]model.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "event = ?")
		args = append(args, string(f.Kind))
	}
	if f.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, f.AfterID)
	}

	query := `SELECT id, event, COALESCE(info, ''), created_at FROM audit`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("list audit", err)
	}
	defer rows.Close()

	events := []model.AuditEvent{}
	for rows.Next() {
		var (
			ev      model.AuditEvent
			kind    string
			created string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Detail, &created); err != nil {
			return nil, translate("list audit: scan", err)
		}
		ev.Kind = model.EventKind(kind)
		if ev.CreatedAt, err = parseTime(created); err != nil {
			return nil, translate("list audit: created_at", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list audit: iterate", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (model.Identity, error) {
	var (
		ident   model.Identity
		isAdmin int
	)
	if err := row.Scan(&ident.ID, &ident.Name, &ident.Slot, &isAdmin); err != nil {
		return model.Identity{}, err
	}
	ident.Privilege = model.PrivilegeOrdinary
	if isAdmin != 0 {
		ident.Privilege = model.PrivilegeAdministrator
	}
	return ident, nil
}

func scanVote(row rowScanner) (model.Vote, error) {
	var (
		vote    model.Vote
		votedAt string
	)
	if err := row.Scan(&vote.ID, &vote.IdentityID, &vote.RegistrantID, &votedAt); err != nil {
		return model.Vote{}, err
	}
	t, err := parseTime(votedAt)
	if err != nil {
		return model.Vote{}, err
	}
	vote.VotedAt = t
	return vote, nil
}

// parseTime accepts both our fixed-width layout and SQLite's
// CURRENT_TIMESTAMP form; fractional seconds are optional when parsing.
func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
