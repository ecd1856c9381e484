package core

import (
	"errors"
	"fmt"
)

// Error kinds returned by the engine. Match with errors.Is.
var (
	ErrInvalidRecurrenceRule = errors.New("maintsched: invalid recurrence rule")
	ErrInvalidTransition     = errors.New("maintsched: invalid status transition")
	ErrTerminalState         = errors.New("maintsched: schedule is in a terminal state")
	ErrCascadeDeleteFailed   = errors.New("maintsched: cascade delete failed")
	ErrConversionFailed      = errors.New("maintsched: conversion to service order failed")
)

// Validation and lookup errors
var (
	ErrScheduleNotFound          = errors.New("maintsched: schedule not found")
	ErrVersionConflict           = errors.New("maintsched: schedule was modified concurrently")
	ErrCompletionPayloadRequired = errors.New("maintsched: completion payload required")
	ErrInvalidCompletionPayload  = errors.New("maintsched: invalid completion payload")
	ErrAlreadyConverted          = errors.New("maintsched: schedule already converted")
	ErrConversionInProgress      = errors.New("maintsched: conversion already in progress")
	ErrNotAnchor                 = errors.New("maintsched: schedule is not a family anchor")
	ErrInvalidScope              = errors.New("maintsched: invalid delete scope")
	ErrInvalidSchedule           = errors.New("maintsched: invalid schedule")
	ErrUnknownStatus             = errors.New("maintsched: unknown status")
	ErrNoConverter               = errors.New("maintsched: no conversion adapter configured")
	ErrFamilyChanged             = errors.New("maintsched: family membership changed")
)

// RuleError reports which recurrence rule field is malformed.
type RuleError struct {
	Field  string
	Reason string
}

func ruleErr(field, format string, args ...any) *RuleError {
	return &RuleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidRecurrenceRule, e.Field, e.Reason)
}

func (e *RuleError) Unwrap() error {
	return ErrInvalidRecurrenceRule
}

// TransitionError is returned when the state machine refuses a request.
// Err is one of ErrInvalidTransition, ErrTerminalState, ErrVersionConflict,
// ErrCompletionPayloadRequired, ErrInvalidCompletionPayload,
// ErrAlreadyConverted or ErrConversionInProgress.
type TransitionError struct {
	ScheduleID string
	From       Status
	To         Status
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v (schedule %s: %s -> %s)", e.Err, e.ScheduleID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// CascadeDeleteError reports a family delete that was rolled back.
// Removed counts rows the attempt deleted before rollback; Remaining counts
// members that would still have existed. After rollback nothing is deleted.
type CascadeDeleteError struct {
	AnchorID  string
	Removed   int
	Remaining int
	Err       error
}

func (e *CascadeDeleteError) Error() string {
	msg := fmt.Sprintf("%v: family %s: removed %d, remaining %d (rolled back)",
		ErrCascadeDeleteFailed, e.AnchorID, e.Removed, e.Remaining)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CascadeDeleteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCascadeDeleteFailed}
	}
	return []error{ErrCascadeDeleteFailed, e.Err}
}

// ConversionError wraps a Converter failure. The schedule stays COMPLETED.
type ConversionError struct {
	ScheduleID string
	Err        error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%v: schedule %s: %v", ErrConversionFailed, e.ScheduleID, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversionFailed, e.Err}
}
