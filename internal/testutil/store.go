package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ballot/internal/store"
)

// OpenStore opens a store in a temp directory with a DeterministicClock and
// closes it when the test ends.
func OpenStore(t *testing.T) (*store.Store, *DeterministicClock) {
	t.Helper()
	clock := NewDeterministicClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "ballot.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}
