package expand

import (
	"fmt"
	"time"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/security"
)

// Expansion is the materialized result of one Expand call.
type Expansion struct {
	// Dates holds the occurrence dates in ascending order, anchor excluded.
	Dates []time.Time
	// Truncated is set when the safety cap stopped the series early.
	Truncated bool
	// Cap is the bound that was in force.
	Cap int
}

// Expander generates occurrence dates.
type Expander struct {
	cap int
	loc *time.Location
}

// Option configures an Expander.
type Option interface {
	apply(*Expander)
}

type optionFunc func(*Expander)

func (f optionFunc) apply(e *Expander) { f(e) }

// WithCap lowers the safety cap. Values are clamped to
// [1, security.MaxOccurrences].
func WithCap(n int) Option {
	return optionFunc(func(e *Expander) {
		e.cap = security.ClampOccurrences(n)
	})
}

// WithLocation sets the reference timezone all calendar arithmetic runs in.
// Daylight-saving shifts inside it are not compensated. Default: UTC.
func WithLocation(loc *time.Location) Option {
	return optionFunc(func(e *Expander) {
		if loc != nil {
			e.loc = loc
		}
	})
}

// New creates an Expander.
func New(opts ...Option) *Expander {
	e := &Expander{
		cap: security.MaxOccurrences,
		loc: time.UTC,
	}
	for _, opt := range opts {
		opt.apply(e)
	}
	return e
}

// Cap returns the safety cap.
func (e *Expander) Cap() int { return e.cap }

// Location returns the reference timezone.
func (e *Expander) Location() *time.Location { return e.loc }

// Expand returns the occurrences rule generates after anchor.
// An invalid rule yields a *core.RuleError, as does an after_count rule
// asking for more occurrences than the cap; a rule with frequency none
// yields no dates.
func (e *Expander) Expand(anchor time.Time, rule core.RecurrenceRule) (Expansion, error) {
	anchor = anchor.In(e.loc)
	if err := rule.Validate(anchor); err != nil {
		return Expansion{}, err
	}
	if rule.IsRecurring() && rule.Termination == core.TerminateAfterCount && rule.Count > e.cap {
		return Expansion{}, &core.RuleError{
			Field:  "count",
			Reason: fmt.Sprintf("must not exceed the occurrence cap of %d, got %d", e.cap, rule.Count),
		}
	}

	exp := Expansion{Cap: e.cap}
	step := stepFor(rule.Frequency)
	if step == nil {
		return exp, nil
	}

	limit, bounded := e.limit(anchor, rule)
	for n := 1; ; n++ {
		if rule.Termination == core.TerminateAfterCount && n > rule.Count {
			break
		}
		if n > step.MaxUnits()/rule.Interval {
			break
		}
		next := step.At(anchor, n*rule.Interval)
		if bounded && next.After(limit) {
			break
		}
		if len(exp.Dates) == e.cap {
			exp.Truncated = true
			break
		}
		exp.Dates = append(exp.Dates, next)
	}
	return exp, nil
}

// limit returns the last instant an occurrence may fall on, if any.
func (e *Expander) limit(anchor time.Time, rule core.RecurrenceRule) (time.Time, bool) {
	switch rule.Termination {
	case core.TerminateAfterDuration:
		if rule.DurationUnit == core.DurationMonths {
			return addMonths(anchor, rule.Duration), true
		}
		return anchor.AddDate(0, 0, 7*rule.Duration), true
	case core.TerminateOnDate:
		return rule.Until.In(e.loc), true
	}
	return time.Time{}, false
}
