package temperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("in season 2023: %w", &NetworkError{URL: "http://x", Attempts: 3, Err: cause})

	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "3 attempt(s)")
}

func TestPartialDataIs(t *testing.T) {
	err := fmt.Errorf("standings: %w", &PartialData{Season: 2025, Stored: 8, Expected: 24})

	assert.ErrorIs(t, err, ErrPartialData)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "standings: season 2025: 8 of 24 races stored", err.Error())
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Season: 2021, Round: 3, Record: "result", Field: "driverId", Reason: "is missing"}

	assert.True(t, IsValidation(err))
	assert.False(t, IsNetwork(err))
	assert.Equal(t, "invalid result in 2021 round 3: driverId is missing", err.Error())
}
