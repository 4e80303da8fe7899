// Package election is the caller-facing operations surface. It composes the
// registry, directory, recorder, aggregator and audit trail over one store,
// and drives the biometric reader for resolve and enrollment workflows.
package election

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/ballot/internal/audit"
	"github.com/roach88/ballot/internal/ballot"
	"github.com/roach88/ballot/internal/identity"
	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/registrant"
	"github.com/roach88/ballot/internal/results"
	"github.com/roach88/ballot/internal/sensor"
	"github.com/roach88/ballot/internal/store"
)

// Service exposes every ledger operation a kiosk or admin terminal needs.
// It holds no entity state; the store is the only source of truth.
type Service struct {
	identities  *identity.Registry
	registrants *registrant.Directory
	recorder    *ballot.Recorder
	results     *results.Aggregator
	trail       *audit.Trail
	sensor      sensor.Sensor
	probe       *sensor.Probe

	logger       *slog.Logger
	metrics      metrics.Recorder
	probeOptions []sensor.ProbeOption

	// Held from the slot lookup until the identity is committed.
	slotLocks [slotStripes]sync.Mutex
}

const slotStripes = 64

func (s *Service) lockSlot(slot int) func() {
	mu := &s.slotLocks[uint(slot)%slotStripes]
	mu.Lock()
	return mu.Unlock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics recorder passed to every component.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProbeOptions configures the biometric probe.
func WithProbeOptions(opts ...sensor.ProbeOption) Option {
	return func(s *Service) { s.probeOptions = append(s.probeOptions, opts...) }
}

// New wires a Service over st and reader.
func New(st *store.Store, reader sensor.Sensor, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if reader == nil {
		return nil, errors.New("sensor is required")
	}

	s := &Service{sensor: reader, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(s)
	}

	s.trail = audit.New(st, audit.WithLogger(s.logger))
	s.identities = identity.New(st, identity.WithLogger(s.logger), identity.WithMetrics(s.metrics))
	s.registrants = registrant.New(st, registrant.WithLogger(s.logger), registrant.WithMetrics(s.metrics))
	s.recorder = ballot.New(st, s.trail, ballot.WithLogger(s.logger), ballot.WithMetrics(s.metrics))
	s.results = results.New(st, results.WithLogger(s.logger), results.WithMetrics(s.metrics))

	probeOpts := append([]sensor.ProbeOption{
		sensor.WithLogger(s.logger),
		sensor.WithMetrics(s.metrics),
	}, s.probeOptions...)
	s.probe = sensor.NewProbe(reader, probeOpts...)
	return s, nil
}

// =============================================================================
// Sensor workflows
// =============================================================================

// Connect opens the reader and returns how many templates it holds.
func (s *Service) Connect(ctx context.Context, port string, baud int) (int, error) {
	if err := s.sensor.Connect(ctx, port, baud); err != nil {
		return 0, sensorError("connect sensor", err)
	}
	count, err := s.sensor.TemplateCount(ctx)
	if err != nil {
		return 0, sensorError("template count", err)
	}
	s.logger.Info("sensor connected", "port", port, "templates", count)
	return count, nil
}

// Resolve waits for a finger and returns the identity bound to its slot.
// The wait runs outside any transaction and ends on ctx cancellation.
// An unbound slot fails with model.ErrNotFound.
func (s *Service) Resolve(ctx context.Context) (model.Identity, error) {
	match, err := s.probe.Wait(ctx)
	if err != nil {
		return model.Identity{}, err
	}

	ident, err := s.identities.LookupBySlot(ctx, match.Slot)
	if err != nil {
		s.logger.Info("probe resolved to unknown slot", "session", match.Session, "slot", match.Slot)
		return model.Identity{}, err
	}
	s.logger.Info("identity resolved", "session", match.Session, "id", ident.ID,
		"privilege", ident.Privilege.String())
	return ident, nil
}

// Enroll captures a finger into slot and creates the identity bound to it.
//
// A slot already bound in the store is refused before the reader is
// touched. Enrollments of the same slot through one Service are serialized.
// If the store rejects the identity because another identity owns the slot,
// the template is left on the reader for that identity; any other store
// failure deletes the stored template again.
func (s *Service) Enroll(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error) {
	const op = "enroll"

	name, err := model.ValidateName(op, name)
	if err != nil {
		return model.Identity{}, err
	}
	if err := model.ValidateSlot(op, slot); err != nil {
		return model.Identity{}, err
	}

	unlock := s.lockSlot(slot)
	defer unlock()

	if _, err := s.identities.LookupBySlot(ctx, slot); err == nil {
		return model.Identity{}, model.NewError(model.KindConstraint, op,
			fmt.Sprintf("slot %d is already bound to an identity", slot))
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.Identity{}, err
	}

	stored, err := s.sensor.Enroll(ctx, slot)
	if err != nil {
		return model.Identity{}, sensorError(op, err)
	}

	ident, err := s.identities.Create(ctx, name, stored, p)
	if err != nil {
		if errors.Is(err, model.ErrConstraintViolation) {
			// The template now serves whoever holds the slot.
			s.logger.Warn("enroll lost slot to another identity", "slot", stored)
			return model.Identity{}, err
		}
		if delErr := s.sensor.Delete(context.WithoutCancel(ctx), stored); delErr != nil {
			s.logger.Error("enroll compensation failed", "slot", stored, "error", delErr)
		}
		return model.Identity{}, err
	}
	return ident, nil
}

// Unenroll deletes the template at slot from the reader, then removes the
// identity. A reader failure leaves the identity in place.
func (s *Service) Unenroll(ctx context.Context, slot int) error {
	const op = "unenroll"

	unlock := s.lockSlot(slot)
	defer unlock()

	if _, err := s.identities.LookupBySlot(ctx, slot); err != nil {
		return err
	}
	if err := s.sensor.Delete(ctx, slot); err != nil {
		return sensorError(op, err)
	}
	return s.identities.Remove(ctx, slot)
}

// TemplateCount reports the number of templates on the reader.
func (s *Service) TemplateCount(ctx context.Context) (int, error) {
	n, err := s.sensor.TemplateCount(ctx)
	if err != nil {
		return 0, sensorError("template count", err)
	}
	return n, nil
}

// =============================================================================
// Identities
// =============================================================================

// Lookup resolves a slot without the reader.
func (s *Service) Lookup(ctx context.Context, slot int) (model.Identity, error) {
	return s.identities.LookupBySlot(ctx, slot)
}

// ListIdentities returns every identity ordered by slot.
func (s *Service) ListIdentities(ctx context.Context) ([]model.Identity, error) {
	return s.identities.List(ctx)
}

// CreateIdentity binds an already-stored template slot to a new identity.
func (s *Service) CreateIdentity(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error) {
	return s.identities.Create(ctx, name, slot, p)
}

// RemoveIdentity unbinds slot without touching the reader.
func (s *Service) RemoveIdentity(ctx context.Context, slot int) error {
	return s.identities.Remove(ctx, slot)
}

// =============================================================================
// Registrants
// =============================================================================

func (s *Service) ListRegistrants(ctx context.Context) ([]model.Registrant, error) {
	return s.registrants.List(ctx)
}

func (s *Service) CreateRegistrant(ctx context.Context, name string) (model.Registrant, error) {
	return s.registrants.Create(ctx, name)
}

func (s *Service) RenameRegistrant(ctx context.Context, id int64, name string) (model.Registrant, error) {
	return s.registrants.Rename(ctx, id, name)
}

func (s *Service) RemoveRegistrant(ctx context.Context, id int64) error {
	return s.registrants.Remove(ctx, id)
}

// =============================================================================
// Ballots and results
// =============================================================================

// CastVote records identityID's single vote.
func (s *Service) CastVote(ctx context.Context, identityID, registrantID int64) (model.Vote, error) {
	return s.recorder.CastVote(ctx, identityID, registrantID)
}

// Tally returns the live tally.
func (s *Service) Tally(ctx context.Context) (model.Tally, error) {
	return s.results.Tally(ctx)
}

// VerifyTally checks that the tally reconciles with the vote rows.
func (s *Service) VerifyTally(ctx context.Context) error {
	return s.results.Verify(ctx)
}

// ExportTally writes the live tally as CSV.
func (s *Service) ExportTally(ctx context.Context, w io.Writer) error {
	tally, err := s.results.Tally(ctx)
	if err != nil {
		return err
	}
	return results.WriteCSV(w, tally)
}

// Audit returns audit events in commit order.
func (s *Service) Audit(ctx context.Context, f store.AuditFilter) ([]model.AuditEvent, error) {
	return s.trail.List(ctx, f)
}

func sensorError(op string, err error) error {
	if errors.Is(err, model.ErrSensor) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return model.WrapError(model.KindSensor, op, err)
}
