package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/ballot/internal/election"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all hold.
func EvaluateAssertions(ctx context.Context, svc *election.Service, assertions []Assertion) []string {
	msgs := []string{}
	for i, a := range assertions {
		if err := evaluate(ctx, svc, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(ctx context.Context, svc *election.Service, a Assertion) error {
	switch a.Type {
	case AssertTally:
		return assertTally(ctx, svc, a)
	case AssertAuditCount:
		return assertAuditCount(ctx, svc, a)
	case AssertAuditOrder:
		return assertAuditOrder(ctx, svc, a)
	case AssertIdentity:
		return assertIdentity(ctx, svc, a)
	case AssertReconciles:
		return svc.VerifyTally(ctx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTally(ctx context.Context, svc *election.Service, a Assertion) error {
	tally, err := svc.Tally(ctx)
	if err != nil {
		return err
	}
	want := a.Rows
	if want == nil {
		want = []model.TallyRow{}
	}
	if !reflect.DeepEqual(want, tally.Rows) || a.Orphaned != tally.Orphaned {
		return &AssertionError{
			Type:     AssertTally,
			Expected: fmt.Sprintf("%v orphaned=%d", want, a.Orphaned),
			Actual:   fmt.Sprintf("%v orphaned=%d", tally.Rows, tally.Orphaned),
		}
	}
	return nil
}

func assertAuditCount(ctx context.Context, svc *election.Service, a Assertion) error {
	events, err := svc.Audit(ctx, store.AuditFilter{Kind: model.EventKind(a.Event)})
	if err != nil {
		return err
	}
	if len(events) != a.Count {
		return &AssertionError{
			Type:     AssertAuditCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d", len(events)),
		}
	}
	return nil
}

// assertAuditOrder checks that Events appear in this relative order.
// Other events may be interleaved.
func assertAuditOrder(ctx context.Context, svc *election.Service, a Assertion) error {
	events, err := svc.Audit(ctx, store.AuditFilter{})
	if err != nil {
		return err
	}

	next := 0
	for _, ev := range events {
		if next < len(a.Events) && string(ev.Kind) == a.Events[next] {
			next++
		}
	}
	if next < len(a.Events) {
		kinds := make([]string, len(events))
		for i, ev := range events {
			kinds[i] = string(ev.Kind)
		}
		return &AssertionError{
			Type:     AssertAuditOrder,
			Expected: strings.Join(a.Events, " -> "),
			Actual:   strings.Join(kinds, " -> "),
		}
	}
	return nil
}

func assertIdentity(ctx context.Context, svc *election.Service, a Assertion) error {
	_, err := svc.Lookup(ctx, a.Slot)
	bound := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if bound != a.Bound {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("slot %d bound=%t", a.Slot, a.Bound),
			Actual:   fmt.Sprintf("bound=%t", bound),
		}
	}
	return nil
}
