package core

import (
	"time"
)

// Frequency is the calendar unit a recurrence repeats in.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// TerminationMode decides when a series stops.
type TerminationMode string

const (
	TerminateIndefinite    TerminationMode = "indefinite"     // Bounded only by the expansion cap
	TerminateAfterCount    TerminationMode = "after_count"    // Count additional occurrences
	TerminateAfterDuration TerminationMode = "after_duration" // Anchor + Duration DurationUnit
	TerminateOnDate        TerminationMode = "on_date"        // Last occurrence on or before Until
)

// Valid reports whether m is a known termination mode.
func (m TerminationMode) Valid() bool {
	switch m {
	case TerminateIndefinite, TerminateAfterCount, TerminateAfterDuration, TerminateOnDate:
		return true
	}
	return false
}

// DurationUnit qualifies RecurrenceRule.Duration.
type DurationUnit string

const (
	DurationWeeks  DurationUnit = "weeks"
	DurationMonths DurationUnit = "months"
)

// Valid reports whether u is a known duration unit.
func (u DurationUnit) Valid() bool {
	return u == DurationWeeks || u == DurationMonths
}

// MaxRuleOccurrences bounds after_count rules. It matches the expansion
// safety cap so a counted series is never silently truncated.
const MaxRuleOccurrences = 500

// RecurrenceRule describes how an anchor schedule repeats.
// Only one of Count, Duration or Until is meaningful, selected by Termination.
type RecurrenceRule struct {
	Frequency    Frequency       `json:"frequency"`
	Interval     int             `json:"interval"`
	Termination  TerminationMode `json:"termination_mode"`
	Count        int             `json:"count,omitempty"`
	Duration     int             `json:"duration,omitempty"`
	DurationUnit DurationUnit    `json:"duration_unit,omitempty"`
	Until        *time.Time      `json:"until,omitempty"`
}

// IsRecurring reports whether the rule can produce occurrences.
func (r *RecurrenceRule) IsRecurring() bool {
	return r != nil && r.Frequency != "" && r.Frequency != FrequencyNone
}

// Validate checks the rule against the anchor's scheduled date.
// A rule with frequency none is valid whatever its other fields hold.
func (r RecurrenceRule) Validate(anchor time.Time) error {
	if r.Frequency == FrequencyNone {
		return nil
	}
	if !r.Frequency.Valid() {
		return ruleErr("frequency", "unknown frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return ruleErr("interval", "must be a positive integer, got %d", r.Interval)
	}

	switch r.Termination {
	case TerminateIndefinite:
	case TerminateAfterCount:
		if r.Count < 1 {
			return ruleErr("count", "must be at least 1, got %d", r.Count)
		}
		if r.Count > MaxRuleOccurrences {
			return ruleErr("count", "must not exceed %d, got %d", MaxRuleOccurrences, r.Count)
		}
	case TerminateAfterDuration:
		if r.Duration < 1 {
			return ruleErr("duration", "must be at least 1, got %d", r.Duration)
		}
		if !r.DurationUnit.Valid() {
			return ruleErr("duration_unit", "must be weeks or months, got %q", r.DurationUnit)
		}
	case TerminateOnDate:
		if r.Until == nil {
			return ruleErr("until", "required for termination mode %s", TerminateOnDate)
		}
		if !r.Until.After(anchor) {
			return ruleErr("until", "must be after the anchor date %s", anchor.Format(time.RFC3339))
		}
	default:
		return ruleErr("termination_mode", "unknown termination mode %q", r.Termination)
	}
	return nil
}
