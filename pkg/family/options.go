package family

import (
	"log/slog"
	"time"
)

// Option configures a Coordinator.
type Option interface {
	apply(*Coordinator)
}

type optionFunc func(*Coordinator)

func (f optionFunc) apply(c *Coordinator) { f(c) }

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	})
}

// DeleteOption configures a single DeleteFamily call.
type DeleteOption interface {
	applyDelete(*deleteConfig)
}

type deleteOptionFunc func(*deleteConfig)

func (f deleteOptionFunc) applyDelete(c *deleteConfig) { f(c) }

type deleteConfig struct {
	expect int // -1: no expectation
}

// ExpectMembers makes the delete fail closed unless exactly n schedules are
// about to be removed. Pass the count the caller confirmed, usually
// FamilyInfo.SiblingCount+1.
func ExpectMembers(n int) DeleteOption {
	return deleteOptionFunc(func(c *deleteConfig) {
		c.expect = n
	})
}

// Strategy decides how TransitionFamily reacts to a member that fails.
type Strategy int

const (
	// CollectAll transitions every selected member and reports each outcome.
	CollectAll Strategy = iota
	// FailFast stops at the first member that fails.
	FailFast
)

// TransitionOption configures a TransitionFamily call.
type TransitionOption interface {
	applyTransition(*transitionConfig)
}

type transitionOptionFunc func(*transitionConfig)

func (f transitionOptionFunc) applyTransition(c *transitionConfig) { f(c) }

type transitionConfig struct {
	strategy    Strategy
	from        time.Time
	skipSettled bool
}

// WithStrategy sets the failure strategy. Default: CollectAll.
func WithStrategy(s Strategy) TransitionOption {
	return transitionOptionFunc(func(c *transitionConfig) {
		c.strategy = s
	})
}

// From restricts the transition to members scheduled at or after t.
func From(t time.Time) TransitionOption {
	return transitionOptionFunc(func(c *transitionConfig) {
		c.from = t
	})
}

// SkipSettled leaves out members that already hold the target status or
// are terminal, instead of reporting them as failures.
func SkipSettled() TransitionOption {
	return transitionOptionFunc(func(c *transitionConfig) {
		c.skipSettled = true
	})
}
