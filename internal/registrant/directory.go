// Package registrant manages the parties a ballot can be cast for.
package registrant

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/ballot/internal/audit"
	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// Directory lists and edits registrants. Each mutation commits together with
// its audit event.
type Directory struct {
	store   *store.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) { d.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Directory) { d.metrics = m }
}

// New creates a Directory over s.
func New(s *store.Store, opts ...Option) *Directory {
	d := &Directory{store: s, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List returns all registrants ordered by name. Never nil.
func (d *Directory) List(ctx context.Context) ([]model.Registrant, error) {
	var regs []model.Registrant
	err := d.store.View(ctx, "list registrants", func(tx *store.Tx) error {
		var err error
		regs, err = tx.ListRegistrants(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// Get returns one registrant by id.
func (d *Directory) Get(ctx context.Context, id int64) (model.Registrant, error) {
	var reg model.Registrant
	err := d.store.View(ctx, "get registrant", func(tx *store.Tx) error {
		var err error
		reg, err = tx.RegistrantByID(ctx, id)
		return err
	})
	return reg, err
}

// Create adds a registrant. Names are unique after normalisation.
func (d *Directory) Create(ctx context.Context, name string) (reg model.Registrant, err error) {
	const op = "create registrant"
	defer d.observe(op, time.Now(), &err)

	if name, err = model.ValidateName(op, name); err != nil {
		return model.Registrant{}, err
	}

	err = d.store.InTx(ctx, op, func(tx *store.Tx) error {
		var err error
		if reg, err = tx.InsertRegistrant(ctx, name); err != nil {
			return err
		}
		return audit.Append(ctx, tx, model.EventRegistrantCreated, audit.RegistrantDetail(reg))
	})
	if err != nil {
		return model.Registrant{}, err
	}

	d.logger.Info("registrant created", "id", reg.ID, "name", reg.Name)
	return reg, nil
}

// Rename changes a registrant's name. Votes follow the id, so existing
// ballots count toward the new name.
func (d *Directory) Rename(ctx context.Context, id int64, name string) (reg model.Registrant, err error) {
	const op = "rename registrant"
	defer d.observe(op, time.Now(), &err)

	if name, err = model.ValidateName(op, name); err != nil {
		return model.Registrant{}, err
	}

	err = d.store.InTx(ctx, op, func(tx *store.Tx) error {
		previous, err := tx.RenameRegistrant(ctx, id, name)
		if err != nil {
			return err
		}
		reg = model.Registrant{ID: id, Name: name}
		return audit.Append(ctx, tx, model.EventRegistrantRenamed, audit.RenameDetail(id, previous, name))
	})
	if err != nil {
		return model.Registrant{}, err
	}

	d.logger.Info("registrant renamed", "id", id, "name", name)
	return reg, nil
}

// Remove deletes a registrant. Votes already cast for it are kept and show
// up as orphaned in the tally.
func (d *Directory) Remove(ctx context.Context, id int64) (err error) {
	const op = "remove registrant"
	defer d.observe(op, time.Now(), &err)

	var removed model.Registrant
	err = d.store.InTx(ctx, op, func(tx *store.Tx) error {
		var err error
		if removed, err = tx.DeleteRegistrant(ctx, id); err != nil {
			return err
		}
		return audit.Append(ctx, tx, model.EventRegistrantRemoved, audit.RegistrantDetail(removed))
	})
	if err != nil {
		return err
	}

	d.logger.Info("registrant removed", "id", removed.ID, "name", removed.Name)
	return nil
}

func (d *Directory) observe(op string, start time.Time, err *error) {
	d.metrics.RecordOperation(op, *err, time.Since(start))
}
