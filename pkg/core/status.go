package core

import "fmt"

// Status represents the lifecycle state of a schedule.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusConverted  Status = "CONVERTED" // Terminal: a service order exists
	StatusCancelled  Status = "CANCELLED" // Terminal: abandoned before completion
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusConverted,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusConverted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusConverted || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// ParseStatus parses a canonical status name.
// Legacy spellings are handled by pkg/legacy, not here.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
	return s, nil
}
