package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/ballot/internal/model"
)

// stepClock advances by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// setClock pins the next timestamp handed out.
func (c *stepClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.Add(-time.Second)
}

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) (*Store, *stepClock) {
	t.Helper()
	clock := &stepClock{now: epoch}
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// mustIdentity inserts an ordinary identity.
func mustIdentity(t *testing.T, s *Store, name string, slot int) model.Identity {
	t.Helper()
	var ident model.Identity
	err := s.InTx(context.Background(), "test identity", func(tx *Tx) error {
		var err error
		ident, err = tx.InsertIdentity(context.Background(), name, slot, model.PrivilegeOrdinary)
		return err
	})
	if err != nil {
		t.Fatalf("InsertIdentity(%q, %d) failed: %v", name, slot, err)
	}
	return ident
}

// mustRegistrant inserts a registrant.
func mustRegistrant(t *testing.T, s *Store, name string) model.Registrant {
	t.Helper()
	var reg model.Registrant
	err := s.InTx(context.Background(), "test registrant", func(tx *Tx) error {
		var err error
		reg, err = tx.InsertRegistrant(context.Background(), name)
		return err
	})
	if err != nil {
		t.Fatalf("InsertRegistrant(%q) failed: %v", name, err)
	}
	return reg
}
