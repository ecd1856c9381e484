package engine

import (
	"context"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/family"
)

// OnCreate registers a callback for when a family is stored.
func (e *Engine) OnCreate(fn func(context.Context, *core.Schedule, CreateResult)) {
	e.mu.Lock()
	e.onCreate = append(e.onCreate, fn)
	e.mu.Unlock()
}

// OnTransition registers a callback for when a status change is persisted.
func (e *Engine) OnTransition(fn func(context.Context, *core.Schedule, core.Status)) {
	e.mu.Lock()
	e.onTransition = append(e.onTransition, fn)
	e.mu.Unlock()
}

// OnDelete registers a callback for when a delete commits.
func (e *Engine) OnDelete(fn func(context.Context, family.DeleteResult)) {
	e.mu.Lock()
	e.onDelete = append(e.onDelete, fn)
	e.mu.Unlock()
}

// Events returns a channel for receiving engine events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (e *Engine) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	e.mu.Lock()
	e.eventSubs = append(e.eventSubs, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed. After Unsubscribe returns, no further events
// are sent to it.
func (e *Engine) Unsubscribe(ch <-chan core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.eventSubs {
		if sub == ch {
			e.eventSubs = append(e.eventSubs[:i], e.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers. Slow subscribers miss events
// rather than block the engine.
func (e *Engine) Emit(ev core.Event) {
	e.mu.RLock()
	subs := make([]chan core.Event, len(e.eventSubs))
	copy(subs, e.eventSubs)
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) callCreateHooks(ctx context.Context, anchor *core.Schedule, res CreateResult) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Schedule, CreateResult), len(e.onCreate))
	copy(hooks, e.onCreate)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, anchor.Clone(), res)
	}
}

func (e *Engine) callTransitionHooks(ctx context.Context, s *core.Schedule, from core.Status) {
	e.mu.RLock()
	hooks := make([]func(context.Context, *core.Schedule, core.Status), len(e.onTransition))
	copy(hooks, e.onTransition)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, s, from)
	}
}

func (e *Engine) callDeleteHooks(ctx context.Context, res family.DeleteResult) {
	e.mu.RLock()
	hooks := make([]func(context.Context, family.DeleteResult), len(e.onDelete))
	copy(hooks, e.onDelete)
	e.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, res)
	}
}
