package family

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldops/maintsched/pkg/core"
)

// Outcome is the result of transitioning one family member.
type Outcome struct {
	ScheduleID string
	Schedule   *core.Schedule // Updated schedule if successful
	Skipped    bool
	Err        error
}

// TransitionResult collects the per-member outcomes of TransitionFamily,
// in scheduled-date order.
type TransitionResult struct {
	AnchorID string
	Target   core.Status
	Outcomes []Outcome
}

// Succeeded counts members that reached the target status.
func (r TransitionResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && !o.Skipped {
			n++
		}
	}
	return n
}

// Failed counts members whose transition was rejected.
func (r TransitionResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// TransitionError reports members that failed under the FailFast strategy.
type TransitionError struct {
	AnchorID    string
	TotalCount  int
	FailedCount int
	First       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("maintsched: family %s transition failed: %d/%d members failed: %v",
		e.AnchorID, e.FailedCount, e.TotalCount, e.First)
}

func (e *TransitionError) Unwrap() error {
	return e.First
}

// TransitionFamily moves every selected member of id's family to target,
// one schedule at a time through the state machine. payload is passed to
// each transition. Members are independent: a failure never undoes members
// that already moved.
func (c *Coordinator) TransitionFamily(ctx context.Context, id string, target core.Status, payload *core.CompletionPayload, opts ...TransitionOption) (TransitionResult, error) {
	var cfg transitionConfig
	for _, opt := range opts {
		opt.applyTransition(&cfg)
	}

	members, err := c.Members(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	res := TransitionResult{Target: target}
	if len(members) > 0 {
		res.AnchorID = anchorOf(members[0])
	}

	var selected []*core.Schedule
	for _, m := range members {
		if cfg.from.IsZero() || !m.ScheduledDate.Before(cfg.from) {
			selected = append(selected, m)
		}
	}

	for _, m := range selected {
		if cfg.skipSettled && (m.Status == target || m.Status.IsTerminal()) {
			res.Outcomes = append(res.Outcomes, Outcome{ScheduleID: m.ID, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		updated, err := c.machine.Apply(ctx, m, target, payload)
		res.Outcomes = append(res.Outcomes, Outcome{ScheduleID: m.ID, Schedule: updated, Err: err})
		if err != nil && cfg.strategy == FailFast {
			c.logger.Warn("family transition stopped",
				slog.String("anchor_id", res.AnchorID),
				slog.String("schedule_id", m.ID),
				slog.String("to", string(target)),
				slog.String("error", err.Error()))
			return res, &TransitionError{
				AnchorID:    res.AnchorID,
				TotalCount:  len(selected),
				FailedCount: 1,
				First:       err,
			}
		}
	}

	c.logger.Info("family transitioned",
		slog.String("anchor_id", res.AnchorID),
		slog.String("to", string(target)),
		slog.Int("succeeded", res.Succeeded()),
		slog.Int("failed", res.Failed()))
	return res, nil
}
