package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/ballot/internal/election"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/sensor"
	"github.com/roach88/ballot/internal/store"
	"github.com/roach88/ballot/internal/testutil"
)

// Harness executes one scenario against one ledger.
type Harness struct {
	store   *store.Store
	service *election.Service
	keypad  *sensor.Static
	logger  *slog.Logger

	// Ids are remembered after removal so later steps can refer to
	// removed identities and registrants.
	identities  map[int]int64
	registrants map[string]int64
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes ledger logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario on a fresh in-memory store and returns the
// result. The error is non-nil only when the scenario could not be run at
// all; step and assertion failures are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		identities:  make(map[int]int64),
		registrants: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:", store.WithClock(testutil.NewDeterministicClock()))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	h.keypad = sensor.NewStatic()
	if err := h.keypad.Connect(ctx, "keypad", sensor.DefaultBaud); err != nil {
		return nil, fmt.Errorf("failed to connect keypad: %w", err)
	}

	h.service, err = election.New(st, h.keypad, election.WithLogger(h.logger))
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h.service, scenario.Assertions) {
		result.AddError(msg)
	}

	if result.Tally, err = h.service.Tally(ctx); err != nil {
		return nil, fmt.Errorf("final tally: %w", err)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	expect := step.Expect
	if expect == "" {
		expect = OutcomeOK
	}

	ev := TraceEvent{Op: step.Op, Args: describe(step)}
	var err error

	switch step.Op {
	case OpCreateRegistrant:
		var reg model.Registrant
		if reg, err = h.service.CreateRegistrant(ctx, step.Name); err == nil {
			h.registrants[reg.Name] = reg.ID
		}

	case OpRenameRegistrant:
		var reg model.Registrant
		if reg, err = h.service.RenameRegistrant(ctx, h.registrants[step.Name], step.To); err == nil {
			delete(h.registrants, step.Name)
			h.registrants[reg.Name] = reg.ID
		}

	case OpRemoveRegistrant:
		err = h.service.RemoveRegistrant(ctx, h.registrants[step.Name])

	case OpEnroll:
		p := model.PrivilegeOrdinary
		if step.Privilege != "" {
			if p, err = model.ParsePrivilege(step.Privilege); err != nil {
				return err
			}
		}
		var ident model.Identity
		if ident, err = h.service.Enroll(ctx, step.Name, *step.Slot, p); err == nil {
			h.identities[ident.Slot] = ident.ID
		}

	case OpRemoveIdentity:
		err = h.service.Unenroll(ctx, *step.Slot)

	case OpVote:
		if step.Attempts > 1 {
			ev.Accepted, ev.Rejected, err = h.concurrentVote(ctx, step)
			if ev.Accepted > 1 {
				result.AddError(fmt.Sprintf("steps[%d]: %d of %d attempts accepted", i, ev.Accepted, step.Attempts))
			}
		} else {
			_, err = h.service.CastVote(ctx, h.identities[*step.Slot], h.registrants[step.Party])
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	outcome, fatal := outcomeOf(err)
	if fatal != nil {
		return fatal
	}
	ev.Outcome = outcome
	result.AddTrace(ev)

	if outcome != expect {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Op, expect, outcome))
	}
	return nil
}

// concurrentVote submits the same vote Attempts times at once. The
// returned error is the winner's (nil) or, with no winner, any rejection.
func (h *Harness) concurrentVote(ctx context.Context, step Step) (accepted, rejected int, err error) {
	identityID := h.identities[*step.Slot]
	registrantID := h.registrants[step.Party]

	var (
		mu       sync.Mutex
		rejectBy error
	)
	var g errgroup.Group
	for n := 0; n < step.Attempts; n++ {
		g.Go(func() error {
			_, err := h.service.CastVote(ctx, identityID, registrantID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return nil
			}
			if _, fatal := outcomeOf(err); fatal != nil {
				return fatal
			}
			rejected++
			rejectBy = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return accepted, rejected, err
	}
	if accepted > 0 {
		return accepted, rejected, nil
	}
	return accepted, rejected, rejectBy
}

// outcomeOf maps a ledger error to a step outcome. Errors outside the
// rejection taxonomy abort the run.
func outcomeOf(err error) (string, error) {
	if err == nil {
		return OutcomeOK, nil
	}
	switch model.KindOf(err) {
	case model.KindAlreadyVoted:
		return OutcomeAlreadyVoted, nil
	case model.KindUnknownRegistrant:
		return OutcomeUnknownRegistrant, nil
	case model.KindNotFound:
		return OutcomeNotFound, nil
	case model.KindConstraint:
		return OutcomeConstraintViolation, nil
	case model.KindInvalidInput:
		return OutcomeInvalidInput, nil
	}
	return "", errors.Join(errors.New("unexpected ledger error"), err)
}

func describe(step Step) string {
	switch step.Op {
	case OpCreateRegistrant, OpRemoveRegistrant:
		return fmt.Sprintf("name=%q", step.Name)
	case OpRenameRegistrant:
		return fmt.Sprintf("name=%q to=%q", step.Name, step.To)
	case OpEnroll:
		priv := step.Privilege
		if priv == "" {
			priv = model.PrivilegeOrdinary.String()
		}
		return fmt.Sprintf("name=%q slot=%d privilege=%s", step.Name, *step.Slot, priv)
	case OpRemoveIdentity:
		return fmt.Sprintf("slot=%d", *step.Slot)
	case OpVote:
		if step.Attempts > 1 {
			return fmt.Sprintf("slot=%d party=%q attempts=%d", *step.Slot, step.Party, step.Attempts)
		}
		return fmt.Sprintf("slot=%d party=%q", *step.Slot, step.Party)
	}
	return ""
}
