package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/gorm"

	"github.com/fieldops/maintsched/pkg/core"
)

// NumberPrefix starts every service order number.
const NumberPrefix = "OS-"

var (
	// ErrOrderNotFound is returned when no service order matches.
	ErrOrderNotFound = errors.New("maintsched: service order not found")
	// ErrNotCompleted is returned when asked to convert a schedule that is
	// not COMPLETED.
	ErrNotCompleted = errors.New("maintsched: only completed schedules can be converted")
)

// GormConverter implements core.Converter using GORM.
type GormConverter struct {
	db        *gorm.DB
	newNumber func() string
	logger    *slog.Logger
}

// Option configures a GormConverter.
type Option interface {
	apply(*GormConverter)
}

type optionFunc func(*GormConverter)

func (f optionFunc) apply(c *GormConverter) { f(c) }

// WithNumberGenerator overrides how order numbers are minted.
func WithNumberGenerator(fn func() string) Option {
	return optionFunc(func(c *GormConverter) {
		if fn != nil {
			c.newNumber = fn
		}
	})
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *GormConverter) {
		if l != nil {
			c.logger = l
		}
	})
}

// NewGormConverter creates a converter writing to db.
func NewGormConverter(db *gorm.DB, opts ...Option) *GormConverter {
	c := &GormConverter{
		db:        db,
		newNumber: func() string { return NumberPrefix + shortuuid.New() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// Migrate creates the service_orders table.
func (c *GormConverter) Migrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(&ServiceOrder{}); err != nil {
		return fmt.Errorf("maintsched: migrate service orders: %w", err)
	}
	return nil
}

// Convert creates the service order for s and returns its number. If s
// already has an order, e.g. because an earlier attempt committed the order
// but not the schedule, the existing number is returned.
func (c *GormConverter) Convert(ctx context.Context, s *core.Schedule) (string, error) {
	if s.Status != core.StatusCompleted {
		return "", fmt.Errorf("%w: schedule %s is %s", ErrNotCompleted, s.ID, s.Status)
	}

	order := &ServiceOrder{
		ID:              uuid.New().String(),
		Number:          c.newNumber(),
		ScheduleID:      s.ID,
		AnchorID:        s.AnchorID,
		Status:          OrderOpen,
		EquipmentRef:    s.EquipmentRef,
		MaintenanceType: s.MaintenanceType,
		Priority:        s.Priority,
		AssignedTo:      s.AssignedTo,
		Description:     s.Description,
		Observations:    s.Observations,
		ScheduledDate:   s.ScheduledDate,
		EstimatedCost:   s.EstimatedCost,
		ActualCost:      s.ActualCost,
		ActualDuration:  s.ActualDuration,
		CompletionNotes: s.CompletionNotes,
		CompletedAt:     s.CompletedAt,
	}

	err := c.db.WithContext(ctx).Create(order).Error
	if err == nil {
		c.logger.Info("service order created",
			slog.String("schedule_id", s.ID),
			slog.String("service_order", order.Number))
		return order.Number, nil
	}

	existing, lookupErr := c.ForSchedule(ctx, s.ID)
	if lookupErr == nil {
		c.logger.Warn("service order already existed",
			slog.String("schedule_id", s.ID),
			slog.String("service_order", existing.Number))
		return existing.Number, nil
	}
	return "", fmt.Errorf("maintsched: create service order for schedule %s: %w", s.ID, err)
}

// Get returns the order with the given number.
func (c *GormConverter) Get(ctx context.Context, number string) (*ServiceOrder, error) {
	return c.first(ctx, "number = ?", number)
}

// ForSchedule returns the order created from scheduleID.
func (c *GormConverter) ForSchedule(ctx context.Context, scheduleID string) (*ServiceOrder, error) {
	return c.first(ctx, "schedule_id = ?", scheduleID)
}

func (c *GormConverter) first(ctx context.Context, query string, arg string) (*ServiceOrder, error) {
	var order ServiceOrder
	err := c.db.WithContext(ctx).Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
