package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	err := NewAlreadyBooked("b9b2e1c4")
	assert.True(t, IsCode(err, ErrAlreadyBooked))
	assert.False(t, IsCode(err, ErrNotFound))

	// Survives wrapping.
	wrapped := fmt.Errorf("booking failed: %w", err)
	assert.True(t, IsCode(wrapped, ErrAlreadyBooked))

	assert.False(t, IsCode(nil, ErrAlreadyBooked))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrAlreadyBooked))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("no rows")
	err := NewNotFound("appointment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "appointment not found")
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := NewInvalidTransition("completed", "cancelled")
	assert.Contains(t, err.Error(), "completed")
	assert.Contains(t, err.Error(), "cancelled")
}
