package sensor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/ballot/internal/metrics"
	"github.com/roach88/ballot/internal/model"
)

// Probe results, used as metric labels.
const (
	ProbeMatch       = "match"
	ProbeCancelled   = "cancelled"
	ProbeSensorError = "sensor_error"
)

// DefaultInterval is the pause between two polls of the reader.
const DefaultInterval = 200 * time.Millisecond

// Match is the single resolution of a successful probe.
type Match struct {
	Session string
	Slot    int
	Polls   int
}

// Probe waits for a finger. It never touches the store, so cancelling a wait
// cannot leave ledger state behind.
type Probe struct {
	sensor   Sensor
	interval time.Duration
	timeout  time.Duration
	sessions SessionGenerator
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithInterval sets the pause between polls.
func WithInterval(d time.Duration) ProbeOption {
	return func(p *Probe) { p.interval = d }
}

// WithTimeout bounds a single Wait. Zero waits until ctx is done.
func WithTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) { p.timeout = d }
}

// WithSessionGenerator overrides how session ids are generated.
func WithSessionGenerator(g SessionGenerator) ProbeOption {
	return func(p *Probe) { p.sessions = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProbeOption {
	return func(p *Probe) { p.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) ProbeOption {
	return func(p *Probe) { p.metrics = m }
}

// NewProbe creates a Probe over s.
func NewProbe(s Sensor, opts ...ProbeOption) *Probe {
	p := &Probe{
		sensor:   s,
		interval: DefaultInterval,
		sessions: UUIDv7Generator{},
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the reader until a template matches, ctx is done, or the reader
// fails. Exactly one of those outcomes is returned.
//
// Cancellation returns ctx.Err() unwrapped. Reader failures are returned as
// model.ErrSensor without retry.
func (p *Probe) Wait(ctx context.Context) (Match, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	session := p.sessions.Generate()
	logger := p.logger.With("session", session)
	logger.Debug("probe started")

	// The first poll is immediate; later polls are paced.
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for polls := 1; ; polls++ {
		if err := limiter.Wait(ctx); err != nil {
			return Match{}, p.cancelled(ctx, logger, polls-1)
		}

		slot, found, err := p.sensor.Search(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, p.cancelled(ctx, logger, polls)
			}
			p.metrics.RecordProbe(ProbeSensorError)
			logger.Warn("probe failed", "polls", polls, "error", err)
			return Match{}, sensorError("search", err)
		}
		if found {
			p.metrics.RecordProbe(ProbeMatch)
			logger.Debug("probe matched", "slot", slot, "polls", polls)
			return Match{Session: session, Slot: slot, Polls: polls}, nil
		}
	}
}

func (p *Probe) cancelled(ctx context.Context, logger *slog.Logger, polls int) error {
	p.metrics.RecordProbe(ProbeCancelled)
	logger.Debug("probe cancelled", "polls", polls)
	if err := ctx.Err(); err != nil {
		return err
	}
	// limiter.Wait refuses a wait that would outlast the deadline before
	// the deadline has actually passed.
	return context.DeadlineExceeded
}

// sensorError tags err as a sensor failure unless it already is one.
func sensorError(op string, err error) error {
	if errors.Is(err, model.ErrSensor) {
		return err
	}
	return model.WrapError(model.KindSensor, op, err)
}
