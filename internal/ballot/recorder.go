// Package ballot records votes. At most one vote per identity is ever
// accepted, however many terminals submit concurrently.
package ballot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ballot/internal/audit"
	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// Recorder casts votes.
//
// The votes.user_id UNIQUE index is the single serialisation point. CastVote
// never reads "has this identity voted?" before writing; it inserts and lets
// the store pick the winner. Competing attempts see zero rows affected and
// are rejected with model.ErrAlreadyVoted.
type Recorder struct {
	store   *store.Store
	trail   *audit.Trail
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Recorder) { r.metrics = m }
}

// New creates a Recorder. Rejections are appended to trail.
func New(s *store.Store, trail *audit.Trail, opts ...Option) *Recorder {
	r := &Recorder{store: s, trail: trail, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CastVote records identityID's vote for registrantID.
//
// Errors:
//   - model.ErrNotFound: identityID does not exist
//   - model.ErrUnknownRegistrant: registrantID does not exist
//   - model.ErrAlreadyVoted: identityID has a committed vote
//
// On success the vote row and its vote-cast event commit together.
func (r *Recorder) CastVote(ctx context.Context, identityID, registrantID int64) (vote model.Vote, err error) {
	const op = "cast vote"
	start := time.Now()
	defer func() {
		r.metrics.RecordVote(metrics.VoteOutcome(err))
		r.metrics.RecordOperation(op, err, time.Since(start))
	}()

	err = r.store.InTx(ctx, op, func(tx *store.Tx) error {
		if _, err := tx.IdentityByID(ctx, identityID); err != nil {
			return err
		}
		if _, err := tx.RegistrantByID(ctx, registrantID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewError(model.KindUnknownRegistrant, op,
					fmt.Sprintf("registrant %d does not exist", registrantID))
			}
			return err
		}

		var inserted bool
		vote, inserted, err = tx.InsertVote(ctx, identityID, registrantID)
		if err != nil {
			return err
		}
		if !inserted {
			return model.NewError(model.KindAlreadyVoted, op,
				fmt.Sprintf("identity %d has already voted", identityID))
		}
		return audit.Append(ctx, tx, model.EventVoteCast, audit.VoteDetail(identityID, registrantID))
	})
	if err != nil {
		r.reject(ctx, identityID, registrantID, err)
		return model.Vote{}, err
	}

	r.logger.Info("vote accepted", "user", identityID, "party", registrantID, "vote", vote.ID)
	return vote, nil
}

// reject audits a refused attempt. Store outages are not audited since the
// append would fail the same way.
func (r *Recorder) reject(ctx context.Context, identityID, registrantID int64, cause error) {
	kind := model.KindOf(cause)
	switch kind {
	case model.KindAlreadyVoted, model.KindUnknownRegistrant, model.KindNotFound:
	default:
		r.logger.Error("vote failed", "user", identityID, "party", registrantID, "error", cause)
		return
	}

	r.logger.Info("vote rejected", "user", identityID, "party", registrantID, "kind", string(kind))
	detail := audit.RejectionDetail(identityID, registrantID, kind)
	if err := r.trail.Record(ctx, model.EventVoteRejected, detail); err != nil {
		// The rejection stands; only its audit row is missing.
		r.logger.Warn("vote rejection not audited", "user", identityID, "party", registrantID, "error", err)
	}
}
