// Package maintsched expands recurring maintenance schedules into
// occurrences, moves each schedule through its lifecycle and deletes or
// inspects recurrence families safely.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("maintsched.db"), &gorm.Config{TranslateError: true})
//	store := maintsched.NewGormStorage(db)
//	store.Migrate(ctx)
//	orders := maintsched.NewGormConverter(db)
//	orders.Migrate(ctx)
//	engine := maintsched.New(store, maintsched.WithConverter(orders))
//
//	// Anchor plus three biweekly occurrences
//	res, _ := engine.Create(ctx, maintsched.CreateRequest{
//	    ScheduledDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
//	    EquipmentRef:  "PUMP-7",
//	    Rule: &maintsched.RecurrenceRule{
//	        Frequency:   maintsched.FrequencyWeekly,
//	        Interval:    2,
//	        Termination: maintsched.TerminateAfterCount,
//	        Count:       3,
//	    },
//	})
//
//	// Ask before deleting, then delete exactly what was confirmed
//	info, _ := engine.FamilyInfo(ctx, res.AnchorID)
//	engine.DeleteFamily(ctx, res.AnchorID, maintsched.ScopeFamily,
//	    maintsched.ExpectMembers(info.SiblingCount+1))
package maintsched

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/fieldops/maintsched/pkg/conversion"
	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/engine"
	"github.com/fieldops/maintsched/pkg/expand"
	"github.com/fieldops/maintsched/pkg/family"
	"github.com/fieldops/maintsched/pkg/security"
	"github.com/fieldops/maintsched/pkg/storage"
)

type (
	// Schedule is one planned maintenance visit.
	Schedule = core.Schedule

	// Status is a schedule's lifecycle state.
	Status = core.Status

	// RecurrenceRule describes how an anchor schedule repeats.
	RecurrenceRule = core.RecurrenceRule

	Frequency       = core.Frequency
	TerminationMode = core.TerminationMode
	DurationUnit    = core.DurationUnit

	// CompletionPayload is required to move a schedule to COMPLETED.
	CompletionPayload = core.CompletionPayload

	// TransitionRequest asks for one status change.
	TransitionRequest = core.TransitionRequest

	// DeleteScope selects self or family deletes.
	DeleteScope = core.DeleteScope

	// FamilyInfo summarizes a recurrence family.
	FamilyInfo = core.FamilyInfo

	// Repository persists schedules.
	Repository = core.Repository

	// Converter creates service orders from completed schedules.
	Converter = core.Converter

	// ConverterFunc adapts a function to Converter.
	ConverterFunc = core.ConverterFunc

	// Event is the interface for all engine events.
	Event = core.Event

	FamilyCreated        = core.FamilyCreated
	ScheduleTransitioned = core.ScheduleTransitioned
	ScheduleConverted    = core.ScheduleConverted
	SchedulesDeleted     = core.SchedulesDeleted
	ScheduleRescheduled  = core.ScheduleRescheduled

	// RuleError reports a malformed recurrence rule field.
	RuleError = core.RuleError

	// TransitionError reports a refused status change.
	TransitionError = core.TransitionError

	// CascadeDeleteError reports a rolled back family delete.
	CascadeDeleteError = core.CascadeDeleteError

	// ConversionError wraps a Converter failure.
	ConversionError = core.ConversionError

	// Engine creates and manages schedules.
	Engine = engine.Engine

	// Option configures an Engine.
	Option = engine.Option

	CreateRequest = engine.CreateRequest
	CreateResult  = engine.CreateResult

	// Expander turns a rule into occurrence dates.
	Expander  = expand.Expander
	Expansion = expand.Expansion

	DeleteOption     = family.DeleteOption
	DeleteResult     = family.DeleteResult
	TransitionOption = family.TransitionOption
	TransitionResult = family.TransitionResult

	// GormStorage implements Repository using GORM.
	GormStorage = storage.GormStorage

	// PoolConfig holds connection pool settings.
	PoolConfig = storage.PoolConfig

	// RetryConfig controls retries of transient storage errors.
	RetryConfig = storage.RetryConfig

	// GormConverter implements Converter by writing service_orders rows.
	GormConverter = conversion.GormConverter

	// ServiceOrder is the record a conversion produces.
	ServiceOrder = conversion.ServiceOrder
)

// Status constants
const (
	StatusScheduled  = core.StatusScheduled
	StatusInProgress = core.StatusInProgress
	StatusCompleted  = core.StatusCompleted
	StatusConverted  = core.StatusConverted
	StatusCancelled  = core.StatusCancelled
)

// Recurrence constants
const (
	FrequencyNone    = core.FrequencyNone
	FrequencyDaily   = core.FrequencyDaily
	FrequencyWeekly  = core.FrequencyWeekly
	FrequencyMonthly = core.FrequencyMonthly
	FrequencyYearly  = core.FrequencyYearly

	TerminateIndefinite    = core.TerminateIndefinite
	TerminateAfterCount    = core.TerminateAfterCount
	TerminateAfterDuration = core.TerminateAfterDuration
	TerminateOnDate        = core.TerminateOnDate

	DurationWeeks  = core.DurationWeeks
	DurationMonths = core.DurationMonths
)

// Delete scopes
const (
	ScopeSelf   = core.ScopeSelf
	ScopeFamily = core.ScopeFamily
)

// Security limits
const (
	MaxOccurrences        = security.MaxOccurrences
	MaxTextLength         = security.MaxTextLength
	MaxRefLength          = security.MaxRefLength
	MaxErrorMessageLength = security.MaxErrorMessageLength
)

// Error variables
var (
	ErrInvalidRecurrenceRule = core.ErrInvalidRecurrenceRule
	ErrInvalidTransition     = core.ErrInvalidTransition
	ErrTerminalState         = core.ErrTerminalState
	ErrCascadeDeleteFailed   = core.ErrCascadeDeleteFailed
	ErrConversionFailed      = core.ErrConversionFailed
	ErrScheduleNotFound      = core.ErrScheduleNotFound
	ErrVersionConflict       = core.ErrVersionConflict
	ErrConversionInProgress  = core.ErrConversionInProgress
	ErrFamilyChanged         = core.ErrFamilyChanged
)

// New creates an Engine on top of repo.
func New(repo Repository, opts ...Option) *Engine {
	return engine.New(repo, opts...)
}

// NewGormStorage creates a GORM-backed repository.
func NewGormStorage(db *gorm.DB, opts ...storage.Option) *GormStorage {
	return storage.NewGormStorage(db, opts...)
}

// NewGormConverter creates a converter writing to db's service_orders table.
func NewGormConverter(db *gorm.DB, opts ...conversion.Option) *GormConverter {
	return conversion.NewGormConverter(db, opts...)
}

// WithLogger sets the engine's structured logger.
func WithLogger(l *slog.Logger) Option {
	return engine.WithLogger(l)
}

// WithConverter sets the adapter used for COMPLETED -> CONVERTED.
func WithConverter(c Converter) Option {
	return engine.WithConverter(c)
}

// WithLocation sets the reference timezone for calendar arithmetic.
func WithLocation(loc *time.Location) Option {
	return engine.WithLocation(loc)
}

// WithExpansionCap lowers the occurrence cap below MaxOccurrences.
func WithExpansionCap(n int) Option {
	return engine.WithExpansionCap(n)
}

// ExpectMembers makes a family delete fail unless it finds exactly n members.
func ExpectMembers(n int) DeleteOption {
	return family.ExpectMembers(n)
}
