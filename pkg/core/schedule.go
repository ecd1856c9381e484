package core

import (
	"fmt"
	"time"
)

// Schedule is one planned maintenance visit.
// Occurrences share their anchor's id in AnchorID; only the anchor carries
// the RecurrenceRule.
type Schedule struct {
	ID            string          `gorm:"primaryKey;size:36"`
	AnchorID      string          `gorm:"index;size:36;not null"`
	ScheduledDate time.Time       `gorm:"index;not null"`
	Status        Status          `gorm:"index;size:20;default:'SCHEDULED'"`
	Rule          *RecurrenceRule `gorm:"column:recurrence_rule;type:text;serializer:json"`

	// Passed through untouched by the engine
	EquipmentRef    string  `gorm:"index;size:255"`
	MaintenanceType string  `gorm:"size:50"` // preventive, corrective, ...
	Priority        string  `gorm:"size:50"`
	AssignedTo      string  `gorm:"size:255"`
	EstimatedCost   float64 `gorm:"default:0"`
	Description     string  `gorm:"type:text"`
	Observations    string  `gorm:"type:text"`

	// Completion payload
	CompletionNotes string `gorm:"type:text"`
	ActualCost      *float64
	ActualDuration  time.Duration

	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	ConvertedAt *time.Time

	ServiceOrderRef       *string    `gorm:"size:64"`
	ConversionLockedUntil *time.Time // Claim held while the Converter runs

	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// IsAnchor reports whether s heads its family.
func (s *Schedule) IsAnchor() bool {
	return s.ID != "" && s.ID == s.AnchorID
}

// IsConverted reports whether a service order already exists for s.
func (s *Schedule) IsConverted() bool {
	return s.ServiceOrderRef != nil && *s.ServiceOrderRef != ""
}

// ConversionClaimed reports whether a conversion holds s at now.
func (s *Schedule) ConversionClaimed(now time.Time) bool {
	return s.ConversionLockedUntil != nil && s.ConversionLockedUntil.After(now)
}

// Clone returns a deep copy, so callers can mutate without aliasing
// pointer fields of a stored snapshot.
func (s *Schedule) Clone() *Schedule {
	c := *s
	if s.Rule != nil {
		r := *s.Rule
		if s.Rule.Until != nil {
			u := *s.Rule.Until
			r.Until = &u
		}
		c.Rule = &r
	}
	c.ActualCost = clonePtr(s.ActualCost)
	c.StartedAt = clonePtr(s.StartedAt)
	c.CompletedAt = clonePtr(s.CompletedAt)
	c.CancelledAt = clonePtr(s.CancelledAt)
	c.ConvertedAt = clonePtr(s.ConvertedAt)
	c.ServiceOrderRef = clonePtr(s.ServiceOrderRef)
	c.ConversionLockedUntil = clonePtr(s.ConversionLockedUntil)
	return &c
}

// Occurrence builds the family member scheduled at date.
// Everything is copied from the anchor except the date, the status, the
// family link and per-visit state (completion, conversion, rule).
func (s *Schedule) Occurrence(id string, date time.Time) *Schedule {
	return &Schedule{
		ID:              id,
		AnchorID:        s.ID,
		ScheduledDate:   date,
		Status:          StatusScheduled,
		EquipmentRef:    s.EquipmentRef,
		MaintenanceType: s.MaintenanceType,
		Priority:        s.Priority,
		AssignedTo:      s.AssignedTo,
		EstimatedCost:   s.EstimatedCost,
		Description:     s.Description,
		Observations:    s.Observations,
		Version:         1,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CompletionPayload is required to move a schedule to COMPLETED.
type CompletionPayload struct {
	Notes          string        `json:"notes"`
	ActualCost     float64       `json:"actual_cost"`
	ActualDuration time.Duration `json:"actual_duration"`
}

// Validate rejects negative cost or duration.
func (p *CompletionPayload) Validate() error {
	if p.ActualCost < 0 {
		return fmt.Errorf("%w: actual cost %v is negative", ErrInvalidCompletionPayload, p.ActualCost)
	}
	if p.ActualDuration < 0 {
		return fmt.Errorf("%w: actual duration %v is negative", ErrInvalidCompletionPayload, p.ActualDuration)
	}
	return nil
}

// TransitionRequest asks the state machine to move one schedule.
type TransitionRequest struct {
	ScheduleID string             `json:"schedule_id"`
	Target     Status             `json:"target_status"`
	Payload    *CompletionPayload `json:"payload,omitempty"`
}

// DeleteScope selects what a delete removes.
type DeleteScope string

const (
	ScopeSelf   DeleteScope = "self"
	ScopeFamily DeleteScope = "family"
)

// Valid reports whether d is a known scope.
func (d DeleteScope) Valid() bool {
	return d == ScopeSelf || d == ScopeFamily
}

// FamilyInfo summarizes a schedule's recurrence family.
// A family delete removes exactly SiblingCount+1 schedules.
type FamilyInfo struct {
	AnchorID      string `json:"anchor_id"`
	HasRecurrence bool   `json:"has_recurrence"`
	SiblingCount  int    `json:"sibling_count"`
	IsAnchor      bool   `json:"is_anchor"`
}
