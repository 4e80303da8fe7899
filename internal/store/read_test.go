package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ballot/internal/model"
)

func TestIdentityBySlot(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	want := mustIdentity(t, s, "Ada", 5)

	var got model.Identity
	require.NoError(t, s.InTx(ctx, "lookup", func(tx *Tx) error {
		var err error
		got, err = tx.IdentityBySlot(ctx, 5)
		return err
	}))
	assert.Equal(t, want, got)

	err := s.InTx(ctx, "lookup", func(tx *Tx) error {
		_, err := tx.IdentityBySlot(ctx, 6)
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "slot 6")
}

func TestListIdentities_OrderedBySlot(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	mustIdentity(t, s, "Cy", 9)
	mustIdentity(t, s, "Ada", 2)

	var got []model.Identity
	require.NoError(t, s.InTx(ctx, "list", func(tx *Tx) error {
		var err error
		got, err = tx.ListIdentities(ctx)
		return err
	}))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Slot)
	assert.Equal(t, 9, got[1].Slot)
}

func TestListRegistrants_EmptyNotNil(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var got []model.Registrant
	require.NoError(t, s.InTx(ctx, "list", func(tx *Tx) error {
		var err error
		got, err = tx.ListRegistrants(ctx)
		return err
	}))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListRegistrants_OrderedByName(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	mustRegistrant(t, s, "Red")
	mustRegistrant(t, s, "Blue")
	mustRegistrant(t, s, "Green")

	var got []model.Registrant
	require.NoError(t, s.InTx(ctx, "list", func(tx *Tx) error {
		var err error
		got, err = tx.ListRegistrants(ctx)
		return err
	}))
	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"Blue", "Green", "Red"}, names)
}

func TestTallyRows(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	red := mustRegistrant(t, s, "Red")
	blue := mustRegistrant(t, s, "Blue")
	mustRegistrant(t, s, "Amber")
	green := mustRegistrant(t, s, "Green")

	votes := []struct {
		slot int
		reg  int64
	}{{1, blue.ID}, {2, blue.ID}, {3, green.ID}, {4, red.ID}}
	for _, v := range votes {
		ident := mustIdentity(t, s, "voter", v.slot)
		require.NoError(t, s.InTx(ctx, "vote", func(tx *Tx) error {
			_, _, err := tx.InsertVote(ctx, ident.ID, v.reg)
			return err
		}))
	}

	var rows []model.TallyRow
	var total int64
	require.NoError(t, s.InTx(ctx, "tally", func(tx *Tx) error {
		var err error
		if rows, err = tx.TallyRows(ctx); err != nil {
			return err
		}
		total, err = tx.CountVotes(ctx)
		return err
	}))

	assert.Equal(t, []model.TallyRow{
		{Registrant: "Blue", Votes: 2},
		{Registrant: "Green", Votes: 1},
		{Registrant: "Red", Votes: 1},
		{Registrant: "Amber", Votes: 0},
	}, rows)
	assert.Equal(t, int64(4), total)
}

func TestCountOrphanedVotes(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	red := mustRegistrant(t, s, "Red")
	mustRegistrant(t, s, "Blue")
	ident := mustIdentity(t, s, "Ada", 1)

	require.NoError(t, s.InTx(ctx, "vote", func(tx *Tx) error {
		_, _, err := tx.InsertVote(ctx, ident.ID, red.ID)
		return err
	}))
	require.NoError(t, s.InTx(ctx, "remove", func(tx *Tx) error {
		_, err := tx.DeleteRegistrant(ctx, red.ID)
		return err
	}))

	var orphaned int64
	var rows []model.TallyRow
	require.NoError(t, s.InTx(ctx, "tally", func(tx *Tx) error {
		var err error
		if rows, err = tx.TallyRows(ctx); err != nil {
			return err
		}
		orphaned, err = tx.CountOrphanedVotes(ctx)
		return err
	}))
	assert.Equal(t, int64(1), orphaned)
	assert.Equal(t, []model.TallyRow{{Registrant: "Blue", Votes: 0}}, rows)
}

func TestVoteByIdentity(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	ident := mustIdentity(t, s, "Ada", 1)
	reg := mustRegistrant(t, s, "Red")

	err := s.InTx(ctx, "lookup vote", func(tx *Tx) error {
		_, err := tx.VoteByIdentity(ctx, ident.ID)
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.InTx(ctx, "vote", func(tx *Tx) error {
		_, _, err := tx.InsertVote(ctx, ident.ID, reg.ID)
		return err
	}))

	var vote model.Vote
	require.NoError(t, s.InTx(ctx, "lookup vote", func(tx *Tx) error {
		var err error
		vote, err = tx.VoteByIdentity(ctx, ident.ID)
		return err
	}))
	assert.Equal(t, reg.ID, vote.RegistrantID)
}

func TestListAudit_Filters(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, "seed audit", func(tx *Tx) error {
		for _, ev := range []struct {
			kind   model.EventKind
			detail string
		}{
			{model.EventRegistrantCreated, "Red"},
			{model.EventIdentityCreated, "Ada"},
			{model.EventRegistrantCreated, "Blue"},
			{model.EventVoteCast, "user=1 party=1"},
		} {
			if _, err := tx.InsertAudit(ctx, ev.kind, ev.detail); err != nil {
				return err
			}
		}
		return nil
	}))

	list := func(f AuditFilter) []model.AuditEvent {
		var events []model.AuditEvent
		require.NoError(t, s.InTx(ctx, "list audit", func(tx *Tx) error {
			var err error
			events, err = tx.ListAudit(ctx, f)
			return err
		}))
		return events
	}

	all := list(AuditFilter{})
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID)
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}

	created := list(AuditFilter{Kind: model.EventRegistrantCreated})
	require.Len(t, created, 2)
	assert.Equal(t, "Red", created[0].Detail)
	assert.Equal(t, "Blue", created[1].Detail)

	tail := list(AuditFilter{AfterID: all[1].ID, Limit: 1})
	require.Len(t, tail, 1)
	assert.Equal(t, all[2].ID, tail[0].ID)
}

func TestParseTime_AcceptsCurrentTimestampForm(t *testing.T) {
	got, err := parseTime("2026-03-01 08:00:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(epoch))

	got, err = parseTime("2026-03-01 08:00:00.250000")
	require.NoError(t, err)
	assert.Equal(t, 250, got.Nanosecond()/1e6)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}
