package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("check-in: %w", NotFound("route", 42))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidState))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "route", e.Entity)
	assert.Equal(t, uint64(42), e.ID)
}

func TestErrorMessageCarriesContext(t *testing.T) {
	err := Validation("returned_full_bottles", "must be >= 0, got %d", -3).WithEntity("route", 7)

	assert.Equal(t, "validation_error: route 7 (field returned_full_bottles): must be >= 0, got -3", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestWithEntityDoesNotMutateOriginal(t *testing.T) {
	orig := Computation("bottle_price", "must be positive")
	bound := orig.WithEntity("route", 3)

	assert.Empty(t, orig.Entity)
	assert.Equal(t, "route", bound.Entity)
}
