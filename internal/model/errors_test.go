package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesOwnSentinel(t *testing.T) {
	err := NewError(KindNotFound, "lookup identity", "no identity for slot 4")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConstraintViolation)
}

func TestError_AlreadyVotedIsConstraintViolation(t *testing.T) {
	err := NewError(KindAlreadyVoted, "cast vote", "identity 1 has already voted")
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestError_UnknownRegistrantIsNotFound(t *testing.T) {
	err := NewError(KindUnknownRegistrant, "cast vote", "registrant 9 does not exist")
	assert.ErrorIs(t, err, ErrUnknownRegistrant)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestError_WrappedThroughFmt(t *testing.T) {
	inner := WrapError(KindUnavailable, "open store", errors.New("disk gone"))
	err := fmt.Errorf("startup: %w", inner)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "disk gone")
}

func TestError_MessageDefaultsToSentinelText(t *testing.T) {
	err := &Error{Kind: KindSensor, Op: "enroll"}
	assert.Equal(t, "enroll: sensor error", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"bare sentinel", ErrAlreadyVoted, KindAlreadyVoted},
		{"wrapped sentinel", fmt.Errorf("x: %w", ErrInvalidInput), KindInvalidInput},
		{"typed", NewError(KindConstraint, "op", "dup"), KindConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
