package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/security"
)

// Machine applies status transitions and mutations to one schedule at a time.
// Writes are optimistic: a snapshot that went stale between load and save
// fails with core.ErrVersionConflict instead of overwriting.
type Machine struct {
	repo      core.Repository
	converter core.Converter
	lockTTL   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu           sync.RWMutex
	onTransition []func(context.Context, *core.Schedule, core.Status)
}

// New creates a Machine backed by repo.
func New(repo core.Repository, opts ...Option) *Machine {
	m := &Machine{
		repo:    repo,
		lockTTL: DefaultConversionLockTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	return m
}

// OnTransition registers a callback run after a status change is persisted.
// It receives the updated schedule and the status it left.
func (m *Machine) OnTransition(fn func(ctx context.Context, s *core.Schedule, from core.Status)) {
	m.mu.Lock()
	m.onTransition = append(m.onTransition, fn)
	m.mu.Unlock()
}

// Transition loads the schedule and applies req.
func (m *Machine) Transition(ctx context.Context, req core.TransitionRequest) (*core.Schedule, error) {
	s, err := m.repo.Load(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	return m.Apply(ctx, s, req.Target, req.Payload)
}

// Apply moves the snapshot s to status to. s is not modified; the updated
// schedule is returned. payload is required when to is COMPLETED and ignored
// otherwise.
func (m *Machine) Apply(ctx context.Context, s *core.Schedule, to core.Status, payload *core.CompletionPayload) (*core.Schedule, error) {
	from := s.Status
	if err := Check(from, to); err != nil {
		return nil, m.reject(s, to, err)
	}

	if to == core.StatusConverted {
		return m.convert(ctx, s)
	}

	next := s.Clone()
	now := m.now()
	switch to {
	case core.StatusInProgress:
		next.StartedAt = &now
	case core.StatusCompleted:
		if payload == nil {
			return nil, m.reject(s, to, core.ErrCompletionPayloadRequired)
		}
		if err := payload.Validate(); err != nil {
			return nil, m.reject(s, to, err)
		}
		cost := payload.ActualCost
		next.CompletionNotes = security.SanitizeText(payload.Notes)
		next.ActualCost = &cost
		next.ActualDuration = payload.ActualDuration
		next.CompletedAt = &now
	case core.StatusCancelled:
		next.CancelledAt = &now
	}
	next.Status = to

	if err := m.repo.Save(ctx, next); err != nil {
		return nil, m.saveErr(s, to, err)
	}
	m.logger.Info("schedule transitioned",
		slog.String("schedule_id", next.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	m.fire(ctx, next, from)
	return next, nil
}

// convert runs COMPLETED -> CONVERTED in three saves: claim, call the
// adapter, record the order. The claim keeps a concurrent request from
// invoking the adapter a second time.
func (m *Machine) convert(ctx context.Context, s *core.Schedule) (*core.Schedule, error) {
	if s.IsConverted() {
		return nil, m.reject(s, core.StatusConverted, core.ErrAlreadyConverted)
	}
	if m.converter == nil {
		return nil, core.ErrNoConverter
	}

	now := m.now()
	if s.ConversionClaimed(now) {
		return nil, m.reject(s, core.StatusConverted, core.ErrConversionInProgress)
	}

	claimed := s.Clone()
	until := now.Add(m.lockTTL)
	claimed.ConversionLockedUntil = &until
	if err := m.repo.Save(ctx, claimed); err != nil {
		return nil, m.saveErr(s, core.StatusConverted, err)
	}

	ref, err := m.converter.Convert(ctx, claimed.Clone())
	if err == nil && ref == "" {
		err = errors.New("adapter returned an empty service order reference")
	}
	if err != nil {
		released := claimed.Clone()
		released.ConversionLockedUntil = nil
		if rerr := m.repo.Save(ctx, released); rerr != nil {
			m.logger.Warn("conversion claim not released, it expires on its own",
				slog.String("schedule_id", s.ID),
				slog.Time("locked_until", until),
				slog.String("error", rerr.Error()))
		}
		m.logger.Error("conversion failed",
			slog.String("schedule_id", s.ID),
			slog.String("error", err.Error()))
		return nil, &core.ConversionError{ScheduleID: s.ID, Err: err}
	}

	done, err := m.recordOrder(ctx, claimed, ref)
	if err != nil {
		// The order exists. The claim stays in place until it expires.
		m.logger.Error("service order not recorded",
			slog.String("schedule_id", s.ID),
			slog.String("service_order", ref),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("maintsched: record service order %s on schedule %s: %w", ref, s.ID, err)
	}

	m.logger.Info("schedule converted",
		slog.String("schedule_id", done.ID),
		slog.String("service_order", ref))
	m.fire(ctx, done, core.StatusCompleted)
	return done, nil
}

// maxRecordAttempts bounds how often recordOrder reloads after a version
// conflict.
const maxRecordAttempts = 3

// recordOrder writes CONVERTED and ref onto the claimed schedule. A version
// conflict while the claim is still held is resolved by reloading and
// writing again, so the adapter never has to be called a second time.
func (m *Machine) recordOrder(ctx context.Context, claimed *core.Schedule, ref string) (*core.Schedule, error) {
	cur := claimed
	for attempt := 1; ; attempt++ {
		done := cur.Clone()
		convertedAt := m.now()
		done.Status = core.StatusConverted
		done.ServiceOrderRef = &ref
		done.ConvertedAt = &convertedAt
		done.ConversionLockedUntil = nil

		err := m.repo.Save(ctx, done)
		if err == nil {
			return done, nil
		}
		if !errors.Is(err, core.ErrVersionConflict) || attempt == maxRecordAttempts {
			return nil, err
		}

		reloaded, lerr := m.repo.Load(ctx, claimed.ID)
		if lerr != nil {
			return nil, lerr
		}
		if reloaded.Status != core.StatusCompleted || reloaded.IsConverted() || !reloaded.ConversionClaimed(m.now()) {
			return nil, fmt.Errorf("%w: conversion claim lost", err)
		}
		m.logger.Warn("schedule changed during conversion, recording order again",
			slog.String("schedule_id", claimed.ID),
			slog.Int("attempt", attempt))
		cur = reloaded
	}
}

// Claimed reports whether a conversion currently holds s.
func (m *Machine) Claimed(s *core.Schedule) bool {
	return s.ConversionClaimed(m.now())
}

// Details holds the pass-through fields a mutation may change. Nil fields
// are left alone.
type Details struct {
	EquipmentRef    *string
	MaintenanceType *string
	Priority        *string
	AssignedTo      *string
	EstimatedCost   *float64
	Description     *string
	Observations    *string
}

// Reschedule moves one schedule to date. Siblings are not touched.
func (m *Machine) Reschedule(ctx context.Context, id string, date time.Time) (*core.Schedule, error) {
	return m.mutate(ctx, id, func(s *core.Schedule) error {
		if date.IsZero() {
			return fmt.Errorf("%w: scheduled date required", core.ErrInvalidSchedule)
		}
		if s.Rule.IsRecurring() {
			if err := s.Rule.Validate(date); err != nil {
				return err
			}
		}
		s.ScheduledDate = date
		return nil
	})
}

// UpdateRule replaces the rule stored on an anchor. Occurrences that were
// already materialized stay as they are.
func (m *Machine) UpdateRule(ctx context.Context, id string, rule *core.RecurrenceRule) (*core.Schedule, error) {
	return m.mutate(ctx, id, func(s *core.Schedule) error {
		if !s.IsAnchor() {
			return core.ErrNotAnchor
		}
		if rule != nil {
			if err := rule.Validate(s.ScheduledDate); err != nil {
				return err
			}
			r := *rule
			s.Rule = &r
			return nil
		}
		s.Rule = nil
		return nil
	})
}

// UpdateDetails changes pass-through fields of one schedule.
func (m *Machine) UpdateDetails(ctx context.Context, id string, d Details) (*core.Schedule, error) {
	return m.mutate(ctx, id, func(s *core.Schedule) error {
		refs := []struct {
			field string
			src   *string
			dst   *string
		}{
			{"equipment_ref", d.EquipmentRef, &s.EquipmentRef},
			{"maintenance_type", d.MaintenanceType, &s.MaintenanceType},
			{"priority", d.Priority, &s.Priority},
			{"assigned_to", d.AssignedTo, &s.AssignedTo},
		}
		for _, r := range refs {
			if r.src == nil {
				continue
			}
			if err := security.ValidateRef(r.field, *r.src); err != nil {
				return err
			}
			*r.dst = *r.src
		}
		if d.EstimatedCost != nil {
			if *d.EstimatedCost < 0 {
				return fmt.Errorf("%w: estimated cost is negative", core.ErrInvalidSchedule)
			}
			s.EstimatedCost = *d.EstimatedCost
		}
		if d.Description != nil {
			s.Description = security.SanitizeText(*d.Description)
		}
		if d.Observations != nil {
			s.Observations = security.SanitizeText(*d.Observations)
		}
		return nil
	})
}

func (m *Machine) mutate(ctx context.Context, id string, fn func(*core.Schedule) error) (*core.Schedule, error) {
	s, err := m.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return nil, m.reject(s, s.Status, core.ErrTerminalState)
	}
	if m.Claimed(s) {
		return nil, m.reject(s, s.Status, core.ErrConversionInProgress)
	}

	next := s.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, next); err != nil {
		return nil, m.saveErr(s, s.Status, err)
	}
	return next, nil
}

func (m *Machine) reject(s *core.Schedule, to core.Status, err error) error {
	m.logger.Debug("transition rejected",
		slog.String("schedule_id", s.ID),
		slog.String("from", string(s.Status)),
		slog.String("to", string(to)),
		slog.String("reason", err.Error()))
	return &core.TransitionError{ScheduleID: s.ID, From: s.Status, To: to, Err: err}
}

func (m *Machine) saveErr(s *core.Schedule, to core.Status, err error) error {
	if errors.Is(err, core.ErrVersionConflict) {
		return m.reject(s, to, core.ErrVersionConflict)
	}
	return fmt.Errorf("maintsched: save schedule %s: %w", s.ID, err)
}

func (m *Machine) fire(ctx context.Context, s *core.Schedule, from core.Status) {
	m.mu.RLock()
	hooks := make([]func(context.Context, *core.Schedule, core.Status), len(m.onTransition))
	copy(hooks, m.onTransition)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, s.Clone(), from)
	}
}
