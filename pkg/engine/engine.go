package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/expand"
	"github.com/fieldops/maintsched/pkg/family"
	"github.com/fieldops/maintsched/pkg/lifecycle"
	"github.com/fieldops/maintsched/pkg/security"
)

// CreateRequest asks for an anchor schedule and, when Rule recurs, its
// occurrences.
type CreateRequest struct {
	ScheduledDate   time.Time            `json:"scheduled_date"`
	Rule            *core.RecurrenceRule `json:"recurrence_rule,omitempty"`
	EquipmentRef    string               `json:"equipment_ref"`
	MaintenanceType string               `json:"maintenance_type,omitempty"`
	Priority        string               `json:"priority,omitempty"`
	AssignedTo      string               `json:"assigned_to,omitempty"`
	EstimatedCost   float64              `json:"estimated_cost,omitempty"`
	Description     string               `json:"description,omitempty"`
	Observations    string               `json:"observations,omitempty"`
}

// CreateResult lists what Create stored. IDs starts with the anchor and
// follows scheduled-date order. Truncated reports that the series was cut
// at Cap occurrences.
type CreateResult struct {
	AnchorID    string   `json:"anchor_id"`
	IDs         []string `json:"ids"`
	Occurrences int      `json:"occurrences"`
	Truncated   bool     `json:"truncated"`
	Cap         int      `json:"cap"`
}

// Engine is the entry point for creating and managing maintenance schedules.
type Engine struct {
	repo     core.Repository
	expander *expand.Expander
	machine  *lifecycle.Machine
	family   *family.Coordinator
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu sync.RWMutex

	// Hooks
	onCreate     []func(context.Context, *core.Schedule, CreateResult)
	onTransition []func(context.Context, *core.Schedule, core.Status)
	onDelete     []func(context.Context, family.DeleteResult)

	// Event stream
	eventSubs []chan core.Event
}

// New creates an Engine on top of repo.
func New(repo core.Repository, opts ...Option) *Engine {
	cfg := &config{}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.newID == nil {
		cfg.newID = func() string { return uuid.New().String() }
	}
	if cfg.expander == nil {
		cfg.expander = expand.New(cfg.expandOpts...)
	}

	machine := lifecycle.New(repo,
		lifecycle.WithConverter(cfg.converter),
		lifecycle.WithConversionLockTTL(cfg.lockTTL),
		lifecycle.WithClock(cfg.now),
		lifecycle.WithLogger(cfg.logger),
	)
	e := &Engine{
		repo:     repo,
		expander: cfg.expander,
		machine:  machine,
		family:   family.New(repo, machine, family.WithLogger(cfg.logger)),
		logger:   cfg.logger,
		now:      cfg.now,
		newID:    cfg.newID,
	}
	machine.OnTransition(e.transitioned)
	return e
}

// Repository returns the underlying repository.
func (e *Engine) Repository() core.Repository {
	return e.repo
}

// Expander returns the occurrence expander.
func (e *Engine) Expander() *expand.Expander {
	return e.expander
}

// Create stores the anchor described by req plus every occurrence its rule
// generates, in one batch. Nothing is stored when the rule is invalid.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	anchor, err := e.buildAnchor(req)
	if err != nil {
		return CreateResult{}, err
	}

	if req.Rule != nil {
		if err := req.Rule.Validate(anchor.ScheduledDate); err != nil {
			return CreateResult{}, err
		}
	}

	var exp expand.Expansion
	if req.Rule.IsRecurring() {
		if exp, err = e.expander.Expand(anchor.ScheduledDate, *req.Rule); err != nil {
			return CreateResult{}, err
		}
		rule := *req.Rule
		anchor.Rule = &rule
	}

	batch := make([]*core.Schedule, 0, len(exp.Dates)+1)
	batch = append(batch, anchor)
	for _, d := range exp.Dates {
		batch = append(batch, anchor.Occurrence(e.newID(), d))
	}
	if err := e.repo.CreateBatch(ctx, batch); err != nil {
		return CreateResult{}, err
	}

	res := CreateResult{
		AnchorID:    anchor.ID,
		IDs:         make([]string, len(batch)),
		Occurrences: len(exp.Dates),
		Truncated:   exp.Truncated,
		Cap:         e.expander.Cap(),
	}
	for i, s := range batch {
		res.IDs[i] = s.ID
	}

	attrs := []any{
		slog.String("anchor_id", anchor.ID),
		slog.Int("count", len(batch)),
	}
	if res.Truncated {
		e.logger.Warn("recurrence truncated at expansion cap", append(attrs, slog.Int("cap", res.Cap))...)
	} else {
		e.logger.Info("schedules created", attrs...)
	}

	e.callCreateHooks(ctx, anchor, res)
	e.Emit(&core.FamilyCreated{
		AnchorID:    anchor.ID,
		Occurrences: res.Occurrences,
		Truncated:   res.Truncated,
		Timestamp:   e.now(),
	})
	return res, nil
}

func (e *Engine) buildAnchor(req CreateRequest) (*core.Schedule, error) {
	if req.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("%w: scheduled date required", core.ErrInvalidSchedule)
	}
	if req.EstimatedCost < 0 {
		return nil, fmt.Errorf("%w: estimated cost is negative", core.ErrInvalidSchedule)
	}
	refs := map[string]string{
		"equipment_ref":    req.EquipmentRef,
		"maintenance_type": req.MaintenanceType,
		"priority":         req.Priority,
		"assigned_to":      req.AssignedTo,
	}
	for field, v := range refs {
		if err := security.ValidateRef(field, v); err != nil {
			return nil, err
		}
	}

	id := e.newID()
	return &core.Schedule{
		ID:              id,
		AnchorID:        id,
		ScheduledDate:   req.ScheduledDate.In(e.expander.Location()),
		Status:          core.StatusScheduled,
		EquipmentRef:    req.EquipmentRef,
		MaintenanceType: req.MaintenanceType,
		Priority:        req.Priority,
		AssignedTo:      req.AssignedTo,
		EstimatedCost:   req.EstimatedCost,
		Description:     security.SanitizeText(req.Description),
		Observations:    security.SanitizeText(req.Observations),
		Version:         1,
	}, nil
}

// Get loads one schedule.
func (e *Engine) Get(ctx context.Context, id string) (*core.Schedule, error) {
	return e.repo.Load(ctx, id)
}

// Transition applies one status change.
func (e *Engine) Transition(ctx context.Context, req core.TransitionRequest) (*core.Schedule, error) {
	return e.machine.Transition(ctx, req)
}

// TransitionFamily moves the members of id's family to target one at a time.
func (e *Engine) TransitionFamily(ctx context.Context, id string, target core.Status, payload *core.CompletionPayload, opts ...family.TransitionOption) (family.TransitionResult, error) {
	return e.family.TransitionFamily(ctx, id, target, payload, opts...)
}

// FamilyInfo reports what a family delete of id would remove.
func (e *Engine) FamilyInfo(ctx context.Context, id string) (core.FamilyInfo, error) {
	return e.family.FamilyInfo(ctx, id)
}

// Members lists the family of id ordered by date.
func (e *Engine) Members(ctx context.Context, id string) ([]*core.Schedule, error) {
	return e.family.Members(ctx, id)
}

// RuleFor returns the rule governing id, read from its anchor.
func (e *Engine) RuleFor(ctx context.Context, id string) (*core.RecurrenceRule, error) {
	return e.family.RuleFor(ctx, id)
}

// DeleteFamily deletes id alone or with its whole family.
func (e *Engine) DeleteFamily(ctx context.Context, id string, scope core.DeleteScope, opts ...family.DeleteOption) (family.DeleteResult, error) {
	res, err := e.family.DeleteFamily(ctx, id, scope, opts...)
	if err != nil {
		return res, err
	}
	e.callDeleteHooks(ctx, res)
	e.Emit(&core.SchedulesDeleted{
		AnchorID:  res.AnchorID,
		Scope:     res.Scope,
		IDs:       res.IDs,
		Timestamp: e.now(),
	})
	return res, nil
}

// Reschedule moves one schedule to date. Siblings keep their dates.
func (e *Engine) Reschedule(ctx context.Context, id string, date time.Time) (*core.Schedule, error) {
	before, err := e.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !date.IsZero() {
		date = date.In(e.expander.Location())
	}
	s, err := e.family.Reschedule(ctx, id, date)
	if err != nil {
		return nil, err
	}
	e.logger.Info("schedule rescheduled",
		slog.String("schedule_id", id),
		slog.Time("from", before.ScheduledDate),
		slog.Time("to", s.ScheduledDate))
	e.Emit(&core.ScheduleRescheduled{
		ScheduleID: id,
		From:       before.ScheduledDate,
		To:         s.ScheduledDate,
		Timestamp:  e.now(),
	})
	return s, nil
}

// UpdateRule replaces the rule on an anchor without regenerating occurrences.
func (e *Engine) UpdateRule(ctx context.Context, id string, rule *core.RecurrenceRule) (*core.Schedule, error) {
	return e.family.UpdateRule(ctx, id, rule)
}

// UpdateDetails changes pass-through fields of one schedule.
func (e *Engine) UpdateDetails(ctx context.Context, id string, d lifecycle.Details) (*core.Schedule, error) {
	return e.machine.UpdateDetails(ctx, id, d)
}

func (e *Engine) transitioned(ctx context.Context, s *core.Schedule, from core.Status) {
	e.callTransitionHooks(ctx, s, from)
	now := e.now()
	e.Emit(&core.ScheduleTransitioned{Schedule: s, From: from, To: s.Status, Timestamp: now})
	if s.Status == core.StatusConverted && s.ServiceOrderRef != nil {
		e.Emit(&core.ScheduleConverted{ScheduleID: s.ID, ServiceOrderRef: *s.ServiceOrderRef, Timestamp: now})
	}
}
