package sensor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/ballot/internal/model"
)

// Static is a Sensor for keypad kiosks: the slot is typed in instead of
// read from a finger. Present queues a slot for the next Search.
//
// Enrolled slots are remembered in memory. A typed slot is always reported
// as found, whether or not a template is enrolled there; the registry decides
// whether it is bound. Search never waits on an unbound slot.
type Static struct {
	mu        sync.Mutex
	connected bool
	port      string
	templates map[int]struct{}
	pending   []int
}

// NewStatic creates a Static sensor holding templates at slots.
func NewStatic(slots ...int) *Static {
	s := &Static{templates: make(map[int]struct{})}
	for _, slot := range slots {
		s.templates[slot] = struct{}{}
	}
	return s
}

// Present queues slot as the next finger on the reader.
func (s *Static) Present(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, slot)
}

// Slots returns the enrolled slots in ascending order.
func (s *Static) Slots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make([]int, 0, len(s.templates))
	for slot := range s.templates {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

func (s *Static) Connect(_ context.Context, port string, baud int) error {
	if baud <= 0 {
		return model.NewError(model.KindSensor, "connect sensor", fmt.Sprintf("invalid baud rate %d", baud))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.port = port
	return nil
}

func (s *Static) Search(ctx context.Context) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, false, errNotConnected("search")
	}
	if len(s.pending) == 0 {
		return 0, false, nil
	}
	slot := s.pending[0]
	s.pending = s.pending[1:]
	return slot, true, nil
}

func (s *Static) Enroll(_ context.Context, slot int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, errNotConnected("enroll")
	}
	if err := model.ValidateSlot("enroll", slot); err != nil {
		return 0, model.WrapError(model.KindSensor, "enroll", err)
	}
	s.templates[slot] = struct{}{}
	return slot, nil
}

func (s *Static) Delete(_ context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return errNotConnected("delete")
	}
	delete(s.templates, slot)
	return nil
}

func (s *Static) TemplateCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, errNotConnected("template count")
	}
	return len(s.templates), nil
}

func errNotConnected(op string) error {
	return model.NewError(model.KindSensor, op, "sensor not connected")
}
