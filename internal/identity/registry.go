// Package identity binds biometric template slots to registered people.
package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/ballot/internal/audit"
	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// Registry creates, resolves and removes identities. It keeps no state of
// its own between calls; every operation goes through the store.
type Registry struct {
	store   *store.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a Registry over s.
func New(s *store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LookupBySlot resolves a template slot to its identity. Read-only.
func (r *Registry) LookupBySlot(ctx context.Context, slot int) (model.Identity, error) {
	var ident model.Identity
	err := r.store.View(ctx, "lookup identity", func(tx *store.Tx) error {
		var err error
		ident, err = tx.IdentityBySlot(ctx, slot)
		return err
	})
	if err != nil {
		return model.Identity{}, err
	}
	return ident, nil
}

// List returns every identity ordered by slot.
func (r *Registry) List(ctx context.Context) ([]model.Identity, error) {
	var identities []model.Identity
	err := r.store.View(ctx, "list identities", func(tx *store.Tx) error {
		var err error
		identities, err = tx.ListIdentities(ctx)
		return err
	})
	return identities, err
}

// Create binds slot to a new identity and appends identity-created.
// Fails with model.KindConstraint if slot is already bound.
func (r *Registry) Create(ctx context.Context, name string, slot int, p model.Privilege) (ident model.Identity, err error) {
	const op = "create identity"
	defer r.observe(op, time.Now(), &err)

	name, err = model.ValidateName(op, name)
	if err != nil {
		return model.Identity{}, err
	}
	if err = model.ValidateSlot(op, slot); err != nil {
		return model.Identity{}, err
	}
	if !p.Valid() {
		return model.Identity{}, model.NewError(model.KindInvalidInput, op, "unknown privilege")
	}

	err = r.store.InTx(ctx, op, func(tx *store.Tx) error {
		var err error
		if ident, err = tx.InsertIdentity(ctx, name, slot, p); err != nil {
			return err
		}
		return audit.Append(ctx, tx, model.EventIdentityCreated, audit.IdentityDetail(ident))
	})
	if err != nil {
		return model.Identity{}, err
	}

	r.logger.Info("identity created", "id", ident.ID, "slot", ident.Slot, "privilege", ident.Privilege.String())
	return ident, nil
}

// Remove deletes the identity bound to slot and appends identity-removed.
// The identity's vote, if any, stays on record.
func (r *Registry) Remove(ctx context.Context, slot int) (err error) {
	const op = "remove identity"
	defer r.observe(op, time.Now(), &err)

	var removed model.Identity
	err = r.store.InTx(ctx, op, func(tx *store.Tx) error {
		var err error
		if removed, err = tx.DeleteIdentityBySlot(ctx, slot); err != nil {
			return err
		}
		return audit.Append(ctx, tx, model.EventIdentityRemoved, audit.IdentityDetail(removed))
	})
	if err != nil {
		return err
	}

	r.logger.Info("identity removed", "id", removed.ID, "slot", removed.Slot)
	return nil
}

func (r *Registry) observe(op string, start time.Time, err *error) {
	r.metrics.RecordOperation(op, *err, time.Since(start))
}
