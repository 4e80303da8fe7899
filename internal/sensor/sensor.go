// Package sensor is the boundary to the biometric reader.
//
// The reader itself is an external collaborator. This package defines the
// contract the ledger consumes, a cancellable probe that turns the reader's
// single-poll search into one resolution event, and a Static adapter for
// keypad kiosks and tests.
package sensor

//go:generate mockgen -source=sensor.go -destination=mocks/mocks.go -package=mocks Sensor,SessionGenerator

import (
	"context"

	"github.com/google/uuid"
)

// DefaultBaud is the serial speed of the kiosk readers.
const DefaultBaud = 57600

// Sensor is a biometric template reader.
//
// Implementations return errors satisfying errors.Is(err, model.ErrSensor)
// for hardware or protocol failures. The ledger never retries a call.
type Sensor interface {
	// Connect opens the reader on port and verifies its password.
	Connect(ctx context.Context, port string, baud int) error
	// Search polls once. found is false when no finger is present or the
	// finger matches no stored template.
	Search(ctx context.Context) (slot int, found bool, err error)
	// Enroll captures the finger twice and stores the template at slot.
	// Fails if the two captures do not match. Returns the slot actually used.
	Enroll(ctx context.Context, slot int) (int, error)
	// Delete removes the template stored at slot.
	Delete(ctx context.Context, slot int) error
	// TemplateCount returns the number of stored templates.
	TemplateCount(ctx context.Context) (int, error)
}

// SessionGenerator names probe sessions for log correlation.
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
