// Package results computes the live tally and exports it.
//
// Nothing is cached: every Tally reads the votes and parties tables inside
// one transaction, so the result always reconciles with the ledger.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// Aggregator computes tallies.
type Aggregator struct {
	store   *store.Store
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an Aggregator over s.
func New(s *store.Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: s, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tally counts votes per registrant. Zero-vote registrants are included.
// Votes for removed registrants are reported in Orphaned only.
func (a *Aggregator) Tally(ctx context.Context) (tally model.Tally, err error) {
	const op = "tally"
	defer a.observe(op, time.Now(), &err)

	err = a.store.View(ctx, op, func(tx *store.Tx) error {
		var err error
		if tally.Rows, err = tx.TallyRows(ctx); err != nil {
			return err
		}
		tally.Orphaned, err = tx.CountOrphanedVotes(ctx)
		return err
	})
	if err != nil {
		return model.Tally{}, err
	}
	return tally, nil
}

// Verify recomputes the tally and checks it against the raw vote count in
// the same snapshot.
func (a *Aggregator) Verify(ctx context.Context) (err error) {
	const op = "verify tally"
	defer a.observe(op, time.Now(), &err)

	return a.store.View(ctx, op, func(tx *store.Tx) error {
		rows, err := tx.TallyRows(ctx)
		if err != nil {
			return err
		}
		orphaned, err := tx.CountOrphanedVotes(ctx)
		if err != nil {
			return err
		}
		votes, err := tx.CountVotes(ctx)
		if err != nil {
			return err
		}

		tally := model.Tally{Rows: rows, Orphaned: orphaned}
		if tally.Total() != votes {
			a.logger.Error("tally does not reconcile", "tallied", tally.Total(), "votes", votes)
			return model.NewError(model.KindConstraint, op,
				fmt.Sprintf("tally accounts for %d votes, ledger holds %d", tally.Total(), votes))
		}
		return nil
	})
}

func (a *Aggregator) observe(op string, start time.Time, err *error) {
	a.metrics.RecordOperation(op, *err, time.Since(start))
}
