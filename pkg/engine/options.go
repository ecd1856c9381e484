package engine

import (
	"log/slog"
	"time"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/expand"
)

type config struct {
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	expander   *expand.Expander
	expandOpts []expand.Option
	converter  core.Converter
	lockTTL    time.Duration
}

// Option configures an Engine.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithLogger sets the structured logger used by the engine and its
// components. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = l
	})
}

// WithClock overrides time.Now for lifecycle timestamps and events.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *config) {
		c.now = now
	})
}

// WithIDGenerator overrides how schedule ids are minted. Default: UUIDv4.
func WithIDGenerator(fn func() string) Option {
	return optionFunc(func(c *config) {
		c.newID = fn
	})
}

// WithExpander replaces the occurrence expander. WithExpansionCap and
// WithLocation are ignored when it is set.
func WithExpander(e *expand.Expander) Option {
	return optionFunc(func(c *config) {
		c.expander = e
	})
}

// WithExpansionCap lowers the number of occurrences one creation may
// generate. Values are clamped to [1, security.MaxOccurrences].
func WithExpansionCap(n int) Option {
	return optionFunc(func(c *config) {
		c.expandOpts = append(c.expandOpts, expand.WithCap(n))
	})
}

// WithLocation sets the reference timezone for calendar arithmetic.
func WithLocation(loc *time.Location) Option {
	return optionFunc(func(c *config) {
		c.expandOpts = append(c.expandOpts, expand.WithLocation(loc))
	})
}

// WithConverter sets the service order adapter used on COMPLETED -> CONVERTED.
func WithConverter(conv core.Converter) Option {
	return optionFunc(func(c *config) {
		c.converter = conv
	})
}

// WithConversionLockTTL sets how long a conversion claim is honoured.
func WithConversionLockTTL(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.lockTTL = d
	})
}
