package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ballot/internal/identity"
	"github.com/roach88/ballot/internal/model"
	"github.com/roach88/ballot/internal/registrant"
	"github.com/roach88/ballot/internal/testutil"
)

func TestLoad_Valid(t *testing.T) {
	e, err := Load("testdata/valid")
	require.NoError(t, err)

	assert.Equal(t, "Municipal 2026", e.Name)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, e.Registrants)
	assert.Equal(t, []Administrator{{Name: "Returning Officer", Slot: 0}}, e.Administrators)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", "testdata/nope", ErrCodeNotFound},
		{"no cue files", t.TempDir(), ErrCodeNoFiles},
		{"slot out of range", "testdata/invalid_slot", ErrCodeSchema},
		{"unknown field", "testdata/unknown_field", ErrCodeSchema},
		{"duplicate registrant", "testdata/duplicate", ErrCodeDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.dir)
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le), "got %T", err)
			assert.Equal(t, tt.code, le.Code, le.Error())
		})
	}
}

func TestParse_DefaultsAdministrators(t *testing.T) {
	e, err := Parse("inline.cue", []byte(`election: registrants: ["Red"]`))
	require.NoError(t, err)
	assert.Empty(t, e.Administrators)
}

func TestParse_MissingElection(t *testing.T) {
	_, err := Parse("inline.cue", []byte(`ballot: {}`))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeSchema, le.Code)
}

func TestParse_EmptyRegistrantName(t *testing.T) {
	_, err := Parse("inline.cue", []byte(`election: registrants: ["Red", "  "]`))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeSchema, le.Code)
}

type target struct {
	*registrant.Directory
	ids *identity.Registry
}

func (t target) ListRegistrants(ctx context.Context) ([]model.Registrant, error) {
	return t.List(ctx)
}

func (t target) CreateRegistrant(ctx context.Context, name string) (model.Registrant, error) {
	return t.Create(ctx, name)
}

func (t target) Lookup(ctx context.Context, slot int) (model.Identity, error) {
	return t.ids.LookupBySlot(ctx, slot)
}

func (t target) CreateIdentity(ctx context.Context, name string, slot int, p model.Privilege) (model.Identity, error) {
	return t.ids.Create(ctx, name, slot, p)
}

func newTarget(t *testing.T) target {
	t.Helper()
	s, _ := testutil.OpenStore(t)
	return target{Directory: registrant.New(s), ids: identity.New(s)}
}

func TestSeed_Idempotent(t *testing.T) {
	tgt := newTarget(t)
	ctx := context.Background()
	e, err := Load("testdata/valid")
	require.NoError(t, err)

	first, err := Seed(ctx, tgt, e)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, first.CreatedRegistrants)
	assert.Equal(t, []int{0}, first.CreatedAdministrators)

	second, err := Seed(ctx, tgt, e)
	require.NoError(t, err)
	assert.Empty(t, second.CreatedRegistrants)
	assert.Empty(t, second.CreatedAdministrators)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, second.ExistingRegistrants)
	assert.Equal(t, []int{0}, second.ExistingAdministrators)

	regs, err := tgt.List(ctx)
	require.NoError(t, err)
	assert.Len(t, regs, 3)

	officer, err := tgt.ids.LookupBySlot(ctx, 0)
	require.NoError(t, err)
	assert.True(t, officer.Privilege.IsAdministrator())
}

func TestSeed_SlotTakenByOther(t *testing.T) {
	tgt := newTarget(t)
	ctx := context.Background()
	_, err := tgt.ids.Create(ctx, "Alice", 0, model.PrivilegeOrdinary)
	require.NoError(t, err)

	e, err := Load("testdata/valid")
	require.NoError(t, err)

	res, err := Seed(ctx, tgt, e)
	assert.ErrorIs(t, err, model.ErrConstraintViolation)
	assert.Len(t, res.CreatedRegistrants, 3, "registrants are seeded before administrators")
}
