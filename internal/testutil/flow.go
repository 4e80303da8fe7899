package testutil

import "sync"

// FixedSessionGenerator returns predetermined probe session ids.
//
// This enables deterministic test execution and golden snapshot comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSessionGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSessionGenerator creates a generator that returns ids in order and
// then keeps repeating the last one. With no ids it returns "test-session".
func NewFixedSessionGenerator(ids ...string) *FixedSessionGenerator {
	if len(ids) == 0 {
		ids = []string{"test-session"}
	}
	return &FixedSessionGenerator{ids: ids}
}

// Generate returns the next id.
func (g *FixedSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
