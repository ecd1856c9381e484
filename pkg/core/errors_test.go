package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionError(t *testing.T) {
	err := &TransitionError{ScheduleID: "s-1", From: StatusScheduled, To: StatusConverted, Err: ErrInvalidTransition}

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrTerminalState))
	assert.Contains(t, err.Error(), "s-1")
	assert.Contains(t, err.Error(), "SCHEDULED -> CONVERTED")
}

func TestCascadeDeleteError(t *testing.T) {
	err := &CascadeDeleteError{AnchorID: "a-1", Removed: 2, Remaining: 1, Err: ErrVersionConflict}

	assert.True(t, errors.Is(err, ErrCascadeDeleteFailed))
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Contains(t, err.Error(), "removed 2, remaining 1")

	bare := &CascadeDeleteError{AnchorID: "a-1"}
	assert.True(t, errors.Is(bare, ErrCascadeDeleteFailed))
}

func TestConversionError(t *testing.T) {
	cause := errors.New("erp offline")
	err := &ConversionError{ScheduleID: "s-9", Err: cause}

	assert.True(t, errors.Is(err, ErrConversionFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "erp offline")
}

func TestRuleError(t *testing.T) {
	err := ruleErr("interval", "must be positive, got %d", 0)
	assert.True(t, errors.Is(err, ErrInvalidRecurrenceRule))
	assert.Contains(t, err.Error(), "interval: must be positive, got 0")
}
