// Package audit is the ledger's append-only audit trail.
//
// Writers append inside the transaction of the mutation they describe, so an
// event exists if and only if its mutation committed. There is no update or
// delete path; the store's triggers reject both.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// Append writes one event through tx. Called by the registry, directory and
// recorder only.
func Append(ctx context.Context, tx *store.Tx, kind model.EventKind, detail string) error {
	if !kind.Valid() {
		return model.NewError(model.KindInvalidInput, "append audit", fmt.Sprintf("unknown event kind %q", kind))
	}
	if _, err := tx.InsertAudit(ctx, kind, detail); err != nil {
		return err
	}
	return nil
}

// Trail reads the audit history and appends events that have no enclosing
// mutation of their own (rejected votes).
type Trail struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = l
	}
}

// New creates a Trail over s.
func New(s *store.Store, opts ...Option) *Trail {
	t := &Trail{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends an event in its own transaction.
func (t *Trail) Record(ctx context.Context, kind model.EventKind, detail string) error {
	err := t.store.InTx(ctx, "record audit", func(tx *store.Tx) error {
		return Append(ctx, tx, kind, detail)
	})
	if err != nil {
		t.logger.Error("audit append failed", "event", string(kind), "error", err)
		return err
	}
	return nil
}

// List returns events in commit order for compliance export.
func (t *Trail) List(ctx context.Context, f store.AuditFilter) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	err := t.store.View(ctx, "list audit", func(tx *store.Tx) error {
		var err error
		events, err = tx.ListAudit(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Detail helpers keep the info column format in one place.

// IdentityDetail formats identity-created / identity-removed info.
func IdentityDetail(id model.Identity) string {
	return fmt.Sprintf("id=%d name=%q slot=%d privilege=%s", id.ID, id.Name, id.Slot, id.Privilege)
}

// RegistrantDetail formats registrant-created / registrant-removed info.
func RegistrantDetail(r model.Registrant) string {
	return fmt.Sprintf("id=%d name=%q", r.ID, r.Name)
}

// RenameDetail formats registrant-renamed info.
func RenameDetail(id int64, from, to string) string {
	return fmt.Sprintf("id=%d from=%q to=%q", id, from, to)
}

// VoteDetail formats vote-cast / vote-rejected info.
func VoteDetail(identityID, registrantID int64) string {
	return fmt.Sprintf("user=%d party=%d", identityID, registrantID)
}

// RejectionDetail formats vote-rejected info.
func RejectionDetail(identityID, registrantID int64, reason model.Kind) string {
	return fmt.Sprintf("%s reason=%s", VoteDetail(identityID, registrantID), reason)
}
