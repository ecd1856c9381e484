package conversion

import (
	"time"
)

// Order statuses
const (
	OrderOpen = "OPEN"
)

// ServiceOrder is the executable work order created from a completed
// schedule. Fields other than Number and ScheduleID are a snapshot taken at
// conversion time.
type ServiceOrder struct {
	ID         string `gorm:"primaryKey;size:36"`
	Number     string `gorm:"uniqueIndex;size:64;not null"`
	ScheduleID string `gorm:"uniqueIndex;size:36;not null"`
	AnchorID   string `gorm:"index;size:36"`
	Status     string `gorm:"size:20;default:'OPEN'"`

	EquipmentRef    string `gorm:"index;size:255"`
	MaintenanceType string `gorm:"size:50"`
	Priority        string `gorm:"size:50"`
	AssignedTo      string `gorm:"size:255"`
	Description     string `gorm:"type:text"`
	Observations    string `gorm:"type:text"`

	ScheduledDate   time.Time
	EstimatedCost   float64
	ActualCost      *float64
	ActualDuration  time.Duration
	CompletionNotes string `gorm:"type:text"`
	CompletedAt     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
