package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/lifecycle"
)

// Coordinator runs family-aware reads, deletes and mutations.
type Coordinator struct {
	repo    core.Repository
	machine *lifecycle.Machine
	logger  *slog.Logger
}

// New creates a Coordinator. Single-schedule mutations are delegated to
// machine.
func New(repo core.Repository, machine *lifecycle.Machine, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:    repo,
		machine: machine,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// DeleteResult describes a committed delete.
type DeleteResult struct {
	AnchorID string
	Scope    core.DeleteScope
	IDs      []string
}

// Removed returns how many schedules the delete removed.
func (r DeleteResult) Removed() int { return len(r.IDs) }

// DeleteFamily removes the schedule id (scope self) or its whole family
// (scope family). The member set is read, deleted and re-read inside one
// atomic unit; any mismatch rolls the delete back and returns a
// *core.CascadeDeleteError.
func (c *Coordinator) DeleteFamily(ctx context.Context, id string, scope core.DeleteScope, opts ...DeleteOption) (DeleteResult, error) {
	if !scope.Valid() {
		return DeleteResult{}, fmt.Errorf("%w: %q", core.ErrInvalidScope, scope)
	}
	cfg := deleteConfig{expect: -1}
	for _, opt := range opts {
		opt.applyDelete(&cfg)
	}

	var res DeleteResult
	err := c.repo.Atomic(ctx, func(tx core.Repository) error {
		s, err := tx.Load(ctx, id)
		if err != nil {
			return err
		}
		anchorID := anchorOf(s)

		targets := []*core.Schedule{s}
		if scope == core.ScopeFamily {
			if targets, err = tx.LoadFamily(ctx, anchorID); err != nil {
				return fmt.Errorf("maintsched: load family %s: %w", anchorID, err)
			}
		}
		if cfg.expect >= 0 && len(targets) != cfg.expect {
			return &core.CascadeDeleteError{
				AnchorID:  anchorID,
				Remaining: len(targets),
				Err:       fmt.Errorf("%w: expected %d members, found %d", core.ErrFamilyChanged, cfg.expect, len(targets)),
			}
		}

		ids := make([]string, len(targets))
		for i, t := range targets {
			if c.machine.Claimed(t) {
				return fmt.Errorf("%w: schedule %s is being converted", core.ErrConversionInProgress, t.ID)
			}
			ids[i] = t.ID
		}
		n, err := tx.DeleteMany(ctx, ids)
		if err != nil {
			return &core.CascadeDeleteError{AnchorID: anchorID, Removed: int(n), Remaining: len(ids) - int(n), Err: err}
		}

		if err := verifyDeleted(ctx, tx, scope, anchorID, id, ids, n); err != nil {
			return err
		}
		res = DeleteResult{AnchorID: anchorID, Scope: scope, IDs: ids}
		return nil
	})
	if err != nil {
		var cde *core.CascadeDeleteError
		if errors.As(err, &cde) {
			c.logger.Error("family delete rolled back",
				slog.String("schedule_id", id),
				slog.String("anchor_id", cde.AnchorID),
				slog.Int("removed", cde.Removed),
				slog.Int("remaining", cde.Remaining),
				slog.String("error", err.Error()))
		}
		return DeleteResult{}, err
	}

	c.logger.Info("schedules deleted",
		slog.String("schedule_id", id),
		slog.String("anchor_id", res.AnchorID),
		slog.String("scope", string(scope)),
		slog.Int("count", res.Removed()))
	return res, nil
}

// verifyDeleted re-reads what the delete should have emptied. A short row
// count or a member that appeared after the snapshot fails closed.
func verifyDeleted(ctx context.Context, tx core.Repository, scope core.DeleteScope, anchorID, id string, ids []string, n int64) error {
	var left []*core.Schedule
	if scope == core.ScopeFamily {
		var err error
		if left, err = tx.LoadFamily(ctx, anchorID); err != nil {
			return fmt.Errorf("maintsched: re-validate family %s: %w", anchorID, err)
		}
	} else {
		s, err := tx.Load(ctx, id)
		switch {
		case err == nil:
			left = append(left, s)
		case !errors.Is(err, core.ErrScheduleNotFound):
			return fmt.Errorf("maintsched: re-validate schedule %s: %w", id, err)
		}
	}

	switch {
	case int(n) != len(ids):
		return &core.CascadeDeleteError{
			AnchorID:  anchorID,
			Removed:   int(n),
			Remaining: len(left),
			Err:       fmt.Errorf("deleted %d of %d rows", n, len(ids)),
		}
	case len(left) > 0:
		return &core.CascadeDeleteError{
			AnchorID:  anchorID,
			Removed:   int(n),
			Remaining: len(left),
			Err:       fmt.Errorf("%w: %d members appeared during delete", core.ErrFamilyChanged, len(left)),
		}
	}
	return nil
}

// FamilyInfo describes the family of id, read under the same isolation
// DeleteFamily uses.
func (c *Coordinator) FamilyInfo(ctx context.Context, id string) (core.FamilyInfo, error) {
	var info core.FamilyInfo
	err := c.repo.Atomic(ctx, func(tx core.Repository) error {
		s, err := tx.Load(ctx, id)
		if err != nil {
			return err
		}
		anchorID := anchorOf(s)
		members, err := tx.LoadFamily(ctx, anchorID)
		if err != nil {
			return fmt.Errorf("maintsched: load family %s: %w", anchorID, err)
		}

		recurring := len(members) > 1
		for _, m := range members {
			if m.IsAnchor() && m.Rule.IsRecurring() {
				recurring = true
			}
		}
		info = core.FamilyInfo{
			AnchorID:      anchorID,
			HasRecurrence: recurring,
			SiblingCount:  max(len(members)-1, 0),
			IsAnchor:      s.IsAnchor(),
		}
		return nil
	})
	return info, err
}

// Members returns the family of id ordered by scheduled date.
func (c *Coordinator) Members(ctx context.Context, id string) ([]*core.Schedule, error) {
	s, err := c.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.repo.LoadFamily(ctx, anchorOf(s))
}

// RuleFor returns the recurrence rule governing id, looked up on its anchor.
// It returns nil when the family has no rule or the anchor no longer exists.
func (c *Coordinator) RuleFor(ctx context.Context, id string) (*core.RecurrenceRule, error) {
	s, err := c.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	anchor := s
	if !s.IsAnchor() {
		anchor, err = c.repo.Load(ctx, anchorOf(s))
		if errors.Is(err, core.ErrScheduleNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
	if anchor.Rule == nil {
		return nil, nil
	}
	return anchor.Clone().Rule, nil
}

// Reschedule moves only the targeted schedule.
func (c *Coordinator) Reschedule(ctx context.Context, id string, date time.Time) (*core.Schedule, error) {
	return c.machine.Reschedule(ctx, id, date)
}

// UpdateRule replaces the rule on the anchor id. Materialized occurrences
// are not regenerated.
func (c *Coordinator) UpdateRule(ctx context.Context, id string, rule *core.RecurrenceRule) (*core.Schedule, error) {
	return c.machine.UpdateRule(ctx, id, rule)
}

func anchorOf(s *core.Schedule) string {
	if s.AnchorID == "" {
		return s.ID
	}
	return s.AnchorID
}
