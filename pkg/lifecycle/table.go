// Package lifecycle is the state machine every schedule status change and
// every schedule mutation goes through.
package lifecycle

import (
	"fmt"

	"github.com/fieldops/maintsched/pkg/core"
)

// transitions is the complete set of legal status changes. Anything not
// listed here is rejected.
var transitions = map[core.Status][]core.Status{
	core.StatusScheduled:  {core.StatusInProgress, core.StatusCompleted, core.StatusCancelled},
	core.StatusInProgress: {core.StatusCompleted, core.StatusCancelled},
	core.StatusCompleted:  {core.StatusConverted},
}

// Check reports whether from -> to is legal. It returns core.ErrTerminalState
// when from is terminal and core.ErrInvalidTransition for any pair missing
// from the table. An unknown target also matches core.ErrUnknownStatus.
func Check(from, to core.Status) error {
	if from.IsTerminal() {
		return core.ErrTerminalState
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %w %q", core.ErrInvalidTransition, core.ErrUnknownStatus, to)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return core.ErrInvalidTransition
}

// Allowed returns the statuses reachable from from in one step.
func Allowed(from core.Status) []core.Status {
	next := transitions[from]
	out := make([]core.Status, len(next))
	copy(out, next)
	return out
}
