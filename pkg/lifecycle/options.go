package lifecycle

import (
	"log/slog"
	"time"

	"github.com/fieldops/maintsched/pkg/core"
)

// DefaultConversionLockTTL is how long a conversion claim blocks other
// conversions of the same schedule.
const DefaultConversionLockTTL = 5 * time.Minute

// Option configures a Machine.
type Option interface {
	apply(*Machine)
}

type optionFunc func(*Machine)

func (f optionFunc) apply(m *Machine) { f(m) }

// WithConverter sets the adapter invoked on COMPLETED -> CONVERTED.
func WithConverter(c core.Converter) Option {
	return optionFunc(func(m *Machine) {
		m.converter = c
	})
}

// WithConversionLockTTL sets how long a conversion claim is honoured.
// A claim older than this may be taken over, e.g. after a crash.
func WithConversionLockTTL(d time.Duration) Option {
	return optionFunc(func(m *Machine) {
		if d > 0 {
			m.lockTTL = d
		}
	})
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(m *Machine) {
		if now != nil {
			m.now = now
		}
	})
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	})
}
