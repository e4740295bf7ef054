package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemFinalizedIsRuleViolation(t *testing.T) {
	assert.ErrorIs(t, ErrItemFinalized, ErrRuleViolation)
	assert.NotErrorIs(t, ErrItemFinalized, ErrForbidden)
}

func TestWrappedKindsMatch(t *testing.T) {
	err := fmt.Errorf("reserving item 4: %w", Invalid("recipient %d is the donor", 4))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, errors.Is(err, ErrRuleViolation))
}

func TestDetail(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Invalid("content must not be empty"), "content must not be empty"},
		{fmt.Errorf("sending: %w", Violation("item is %s", "cancelled")), "item is cancelled"},
		{ErrItemFinalized, "item already finalized"},
		{ErrNotFound, "not found"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Detail(tt.err))
	}
}
