package core

import "time"

// Event is the interface for all engine events.
type Event interface {
	eventMarker()
}

// FamilyCreated is emitted after an anchor and its occurrences are stored.
type FamilyCreated struct {
	AnchorID    string
	Occurrences int
	Truncated   bool
	Timestamp   time.Time
}

func (*FamilyCreated) eventMarker() {}

// ScheduleTransitioned is emitted after a status change is persisted.
type ScheduleTransitioned struct {
	Schedule  *Schedule
	From      Status
	To        Status
	Timestamp time.Time
}

func (*ScheduleTransitioned) eventMarker() {}

// ScheduleConverted is emitted after a service order was created.
type ScheduleConverted struct {
	ScheduleID      string
	ServiceOrderRef string
	Timestamp       time.Time
}

func (*ScheduleConverted) eventMarker() {}

// SchedulesDeleted is emitted after a delete commits.
type SchedulesDeleted struct {
	AnchorID  string
	Scope     DeleteScope
	IDs       []string
	Timestamp time.Time
}

func (*SchedulesDeleted) eventMarker() {}

// ScheduleRescheduled is emitted after a single schedule's date moved.
type ScheduleRescheduled struct {
	ScheduleID string
	From       time.Time
	To         time.Time
	Timestamp  time.Time
}

func (*ScheduleRescheduled) eventMarker() {}
