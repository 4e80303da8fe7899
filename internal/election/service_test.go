package election

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/sensor"
	"github.com/roach88/ballot/internal/sensor/mocks"
	"github.com/roach88/ballot/internal/store"
	"github.com/roach88/ballot/internal/testutil"
)

// =============================================================================
// Election Service Test Suite
// =============================================================================
// The reader is mocked; the store is a real SQLite file so constraint
// behaviour is exercised end to end.

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	reader  *mocks.MockSensor
	store   *store.Store
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.reader = mocks.NewMockSensor(s.ctrl)
	s.store, _ = testutil.OpenStore(s.T())
	s.ctx = context.Background()

	svc, err := New(s.store, s.reader,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithProbeOptions(
			sensor.WithInterval(time.Millisecond),
			sensor.WithSessionGenerator(testutil.NewFixedSessionGenerator("kiosk-1")),
		),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.reader)
		s.ErrorContains(err, "store is required")
	})

	s.Run("nil sensor returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "sensor is required")
	})
}

// =============================================================================
// Connect
// =============================================================================

func (s *ServiceSuite) TestConnect() {
	s.Run("reports template count", func() {
		s.reader.EXPECT().Connect(gomock.Any(), "/dev/ttyUSB0", sensor.DefaultBaud).Return(nil)
		s.reader.EXPECT().TemplateCount(gomock.Any()).Return(4, nil)

		n, err := s.service.Connect(s.ctx, "/dev/ttyUSB0", sensor.DefaultBaud)
		s.NoError(err)
		s.Equal(4, n)
	})

	s.Run("password failure is a sensor error", func() {
		s.reader.EXPECT().Connect(gomock.Any(), "/dev/ttyUSB1", sensor.DefaultBaud).
			Return(errors.New("password verify failed"))

		_, err := s.service.Connect(s.ctx, "/dev/ttyUSB1", sensor.DefaultBaud)
		s.ErrorIs(err, model.ErrSensor)
	})
}

// =============================================================================
// Resolve
// =============================================================================

func (s *ServiceSuite) TestResolve() {
	alice, err := s.service.CreateIdentity(s.ctx, "Alice", 3, model.PrivilegeOrdinary)
	s.Require().NoError(err)
	root, err := s.service.CreateIdentity(s.ctx, "Root", 0, model.PrivilegeAdministrator)
	s.Require().NoError(err)

	s.Run("ordinary identity", func() {
		gomock.InOrder(
			s.reader.EXPECT().Search(gomock.Any()).Return(0, false, nil),
			s.reader.EXPECT().Search(gomock.Any()).Return(3, true, nil),
		)
		got, err := s.service.Resolve(s.ctx)
		s.NoError(err)
		s.Equal(alice, got)
	})

	s.Run("administrator identity", func() {
		s.reader.EXPECT().Search(gomock.Any()).Return(0, true, nil)
		got, err := s.service.Resolve(s.ctx)
		s.NoError(err)
		s.Equal(root, got)
		s.True(got.Privilege.IsAdministrator())
	})

	s.Run("unbound slot is not found", func() {
		s.reader.EXPECT().Search(gomock.Any()).Return(44, true, nil)
		_, err := s.service.Resolve(s.ctx)
		s.ErrorIs(err, model.ErrNotFound)
	})

	s.Run("sensor failure", func() {
		s.reader.EXPECT().Search(gomock.Any()).Return(0, false, errors.New("read image"))
		_, err := s.service.Resolve(s.ctx)
		s.ErrorIs(err, model.ErrSensor)
	})

	s.Run("cancelled wait leaves store untouched", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		s.reader.EXPECT().Search(gomock.Any()).DoAndReturn(func(context.Context) (int, bool, error) {
			cancel()
			return 0, false, nil
		})

		before, err := s.service.Audit(s.ctx, store.AuditFilter{})
		s.Require().NoError(err)

		_, err = s.service.Resolve(ctx)
		s.ErrorIs(err, context.Canceled)

		after, err := s.service.Audit(s.ctx, store.AuditFilter{})
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

// =============================================================================
// Enroll / Unenroll
// =============================================================================

func (s *ServiceSuite) TestEnroll() {
	s.Run("stores template then identity", func() {
		s.reader.EXPECT().Enroll(gomock.Any(), 5).Return(5, nil)

		ident, err := s.service.Enroll(s.ctx, "Alice", 5, model.PrivilegeOrdinary)
		s.NoError(err)
		s.Equal(5, ident.Slot)

		got, err := s.service.Lookup(s.ctx, 5)
		s.NoError(err)
		s.Equal(ident, got)
	})

	s.Run("identity uses the slot the reader stored", func() {
		s.reader.EXPECT().Enroll(gomock.Any(), 6).Return(7, nil)

		ident, err := s.service.Enroll(s.ctx, "Bob", 6, model.PrivilegeOrdinary)
		s.NoError(err)
		s.Equal(7, ident.Slot)
	})

	s.Run("bound slot refused before capture", func() {
		_, err := s.service.Enroll(s.ctx, "Mallory", 5, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrConstraintViolation)
	})

	s.Run("captures that do not match", func() {
		s.reader.EXPECT().Enroll(gomock.Any(), 8).Return(0, errors.New("fingerprints do not match"))

		_, err := s.service.Enroll(s.ctx, "Carol", 8, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrSensor)

		_, err = s.service.Lookup(s.ctx, 8)
		s.ErrorIs(err, model.ErrNotFound)
	})

	s.Run("slot owned by another identity keeps the template", func() {
		// Reader moved the template onto a slot the store already binds.
		s.reader.EXPECT().Enroll(gomock.Any(), 9).Return(5, nil)

		_, err := s.service.Enroll(s.ctx, "Dave", 9, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrConstraintViolation)
	})

	s.Run("identity bound during capture keeps its template", func() {
		var rival model.Identity
		s.reader.EXPECT().Enroll(gomock.Any(), 11).DoAndReturn(func(ctx context.Context, slot int) (int, error) {
			var err error
			rival, err = s.service.CreateIdentity(ctx, "Rival", slot, model.PrivilegeOrdinary)
			s.Require().NoError(err)
			return slot, nil
		})

		_, err := s.service.Enroll(s.ctx, "Frank", 11, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrConstraintViolation)

		got, err := s.service.Lookup(s.ctx, 11)
		s.NoError(err)
		s.Equal(rival, got)
	})

	s.Run("store failure deletes the stored template", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		s.reader.EXPECT().Enroll(gomock.Any(), 12).DoAndReturn(func(context.Context, int) (int, error) {
			cancel()
			return 12, nil
		})
		s.reader.EXPECT().Delete(gomock.Any(), 12).DoAndReturn(func(ctx context.Context, _ int) error {
			s.NoError(ctx.Err(), "compensation outlives the caller")
			return nil
		})

		_, err := s.service.Enroll(ctx, "Grace", 12, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrStoreUnavailable)
	})

	s.Run("invalid input never reaches the reader", func() {
		_, err := s.service.Enroll(s.ctx, " ", 10, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrInvalidInput)

		_, err = s.service.Enroll(s.ctx, "Eve", -1, model.PrivilegeOrdinary)
		s.ErrorIs(err, model.ErrInvalidInput)
	})
}

func (s *ServiceSuite) TestEnroll_ConcurrentSameSlot() {
	reader := sensor.NewStatic()
	s.Require().NoError(reader.Connect(s.ctx, "keypad", sensor.DefaultBaud))

	// Two terminals over one ledger and reader.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	terminals := make([]*Service, 2)
	for i := range terminals {
		svc, err := New(s.store, reader, WithLogger(logger))
		s.Require().NoError(err)
		terminals[i] = svc
	}

	errs := make([]error, 8)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = terminals[i%2].Enroll(s.ctx, fmt.Sprintf("Voter %d", i), 20, model.PrivilegeOrdinary)
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		s.ErrorIs(err, model.ErrConstraintViolation)
	}
	s.Equal(1, won)

	_, err := s.service.Lookup(s.ctx, 20)
	s.NoError(err)
	s.Equal([]int{20}, reader.Slots(), "losers must not delete the winner's template")
}

func (s *ServiceSuite) TestUnenroll() {
	_, err := s.service.CreateIdentity(s.ctx, "Alice", 3, model.PrivilegeOrdinary)
	s.Require().NoError(err)

	s.Run("reader failure keeps the identity", func() {
		s.reader.EXPECT().Delete(gomock.Any(), 3).Return(errors.New("no ack"))

		err := s.service.Unenroll(s.ctx, 3)
		s.ErrorIs(err, model.ErrSensor)

		_, err = s.service.Lookup(s.ctx, 3)
		s.NoError(err)
	})

	s.Run("deletes template and identity", func() {
		s.reader.EXPECT().Delete(gomock.Any(), 3).Return(nil)

		s.NoError(s.service.Unenroll(s.ctx, 3))
		_, err := s.service.Lookup(s.ctx, 3)
		s.ErrorIs(err, model.ErrNotFound)
	})

	s.Run("unbound slot", func() {
		err := s.service.Unenroll(s.ctx, 3)
		s.ErrorIs(err, model.ErrNotFound)
	})
}

// =============================================================================
// Full election
// =============================================================================

func (s *ServiceSuite) TestElection() {
	red, err := s.service.CreateRegistrant(s.ctx, "Red")
	s.Require().NoError(err)
	blue, err := s.service.CreateRegistrant(s.ctx, "Blue")
	s.Require().NoError(err)
	a, err := s.service.CreateIdentity(s.ctx, "A", 1, model.PrivilegeOrdinary)
	s.Require().NoError(err)
	b, err := s.service.CreateIdentity(s.ctx, "B", 2, model.PrivilegeOrdinary)
	s.Require().NoError(err)

	_, err = s.service.CastVote(s.ctx, a.ID, blue.ID)
	s.NoError(err)
	_, err = s.service.CastVote(s.ctx, a.ID, red.ID)
	s.ErrorIs(err, model.ErrAlreadyVoted)
	_, err = s.service.CastVote(s.ctx, b.ID, blue.ID)
	s.NoError(err)

	tally, err := s.service.Tally(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.TallyRow{{Registrant: "Blue", Votes: 2}, {Registrant: "Red", Votes: 0}}, tally.Rows)
	s.NoError(s.service.VerifyTally(s.ctx))

	var buf bytes.Buffer
	s.Require().NoError(s.service.ExportTally(s.ctx, &buf))
	s.Equal("Party,Votes\nBlue,2\nRed,0\n", buf.String())

	events, err := s.service.Audit(s.ctx, store.AuditFilter{})
	s.Require().NoError(err)
	kinds := make([]model.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	s.Equal([]model.EventKind{
		model.EventRegistrantCreated,
		model.EventRegistrantCreated,
		model.EventIdentityCreated,
		model.EventIdentityCreated,
		model.EventVoteCast,
		model.EventVoteRejected,
		model.EventVoteCast,
	}, kinds)

	_, err = s.service.RenameRegistrant(s.ctx, red.ID, "Crimson")
	s.NoError(err)
	s.NoError(s.service.RemoveRegistrant(s.ctx, blue.ID))

	tally, err = s.service.Tally(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.TallyRow{{Registrant: "Crimson", Votes: 0}}, tally.Rows)
	s.Equal(int64(2), tally.Orphaned)

	parties, err := s.service.ListRegistrants(s.ctx)
	s.NoError(err)
	s.Len(parties, 1)
}
