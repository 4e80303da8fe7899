package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/ballot/internal/model"
)

// timeLayout is fixed-width so TEXT comparison orders timestamps correctly.
const timeLayout = "2006-01-02 15:04:05.000000"

// Tx is a single atomic unit of work. Obtain one through Store.InTx.
type Tx struct {
	tx  *sql.Tx
	now time.Time
}

// Now returns the timestamp assigned to rows written by this transaction.
func (t *Tx) Now() time.Time {
	return t.now
}

func (t *Tx) stamp() string {
	return t.now.Format(timeLayout)
}

// InsertIdentity inserts a users row. A slot already bound to another
// identity fails with model.KindConstraint and writes nothing.
func (t *Tx) InsertIdentity(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (name, finger_id, is_admin)
		VALUES (?, ?, ?)
	`, name, slot, boolToInt(p.IsAdministrator()))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Identity{}, model.NewError(model.KindConstraint, "insert identity",
				fmt.Sprintf("slot %d is already bound to an identity", slot))
		}
		return model.Identity{}, translate("insert identity", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Identity{}, translate("insert identity: last insert id", err)
	}

	return model.Identity{ID: id, Name: name, Slot: slot, Privilege: p}, nil
}

// DeleteIdentityBySlot removes the identity bound to slot and returns it.
// Votes cast by the identity are left in place.
func (t *Tx) DeleteIdentityBySlot(ctx context.Context, slot int) (model.Identity, error) {
	ident, err := t.IdentityBySlot(ctx, slot)
	if err != nil {
		return model.Identity{}, err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, ident.ID); err != nil {
		return model.Identity{}, translate("delete identity", err)
	}
	return ident, nil
}

// InsertRegistrant inserts a parties row. Name collisions fail with
// model.KindConstraint.
func (t *Tx) InsertRegistrant(ctx context.Context, name string) (model.Registrant, error) {
	result, err := t.tx.ExecContext(ctx, `INSERT INTO parties (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Registrant{}, model.NewError(model.KindConstraint, "insert registrant",
				fmt.Sprintf("registrant %q already exists", name))
		}
		return model.Registrant{}, translate("insert registrant", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Registrant{}, translate("insert registrant: last insert id", err)
	}
	return model.Registrant{ID: id, Name: name}, nil
}

// RenameRegistrant changes a registrant's name and returns the previous one.
func (t *Tx) RenameRegistrant(ctx context.Context, id int64, name string) (previous string, err error) {
	reg, err := t.RegistrantByID(ctx, id)
	if err != nil {
		return "", err
	}

	if _, err := t.tx.ExecContext(ctx, `UPDATE parties SET name = ? WHERE id = ?`, name, id); err != nil {
		if isUniqueViolation(err) {
			return "", model.NewError(model.KindConstraint, "rename registrant",
				fmt.Sprintf("registrant %q already exists", name))
		}
		return "", translate("rename registrant", err)
	}
	return reg.Name, nil
}

// DeleteRegistrant removes a registrant and returns it. Votes referencing
// the registrant keep their party_id.
func (t *Tx) DeleteRegistrant(ctx context.Context, id int64) (model.Registrant, error) {
	reg, err := t.RegistrantByID(ctx, id)
	if err != nil {
		return model.Registrant{}, err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, id); err != nil {
		return model.Registrant{}, translate("delete registrant", err)
	}
	return reg, nil
}

// InsertVote records identityID's ballot.
//
// Uses ON CONFLICT(user_id) DO NOTHING: the UNIQUE index is the only
// serialisation point, so of any number of concurrent attempts for one
// identity exactly one inserts a row. Losers get inserted=false.
//
// voted_at is clamped to the latest existing voted_at, keeping timestamps
// non-decreasing in commit order even if the wall clock steps back.
func (t *Tx) InsertVote(ctx context.Context, identityID, registrantID int64) (vote model.Vote, inserted bool, err error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO votes (user_id, party_id, voted_at)
		VALUES (?, ?, MAX(?, COALESCE((SELECT MAX(voted_at) FROM votes), '')))
		ON CONFLICT(user_id) DO NOTHING
	`, identityID, registrantID, t.stamp())
	if err != nil {
		return model.Vote{}, false, translate("insert vote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Vote{}, false, translate("insert vote: rows affected", err)
	}
	if rowsAffected == 0 {
		return model.Vote{}, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Vote{}, false, translate("insert vote: last insert id", err)
	}

	vote, err = t.voteByID(ctx, id)
	if err != nil {
		return model.Vote{}, false, err
	}
	return vote, true, nil
}

// InsertAudit appends one audit row. created_at is clamped like voted_at.
func (t *Tx) InsertAudit(ctx context.Context, kind model.EventKind, detail string) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit (event, info, created_at)
		VALUES (?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM audit), '')))
	`, string(kind), detail, t.stamp())
	if err != nil {
		return 0, translate("insert audit", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, translate("insert audit: last insert id", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
