package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Action runs before a transition commits. Returning an error leaves the
// machine in its current state.
type Action[S ~string, E ~string] func(ctx context.Context, from, to S, event E) error

// Listener observes committed transitions.
type Listener[S ~string, E ~string] func(ctx context.Context, from, to S, event E)

type transition[S ~string, E ~string] struct {
	to      S
	actions []Action[S, E]
}

// Definition is an immutable-after-setup transition table shared by many
// machine instances. Configure it once at startup, then call Start per run.
type Definition[S ~string, E ~string] struct {
	initial   S
	table     map[S]map[E]transition[S, E]
	listeners []Listener[S, E]
}

// NewDefinition creates an empty table whose machines start in initial.
func NewDefinition[S ~string, E ~string](initial S) *Definition[S, E] {
	return &Definition[S, E]{
		initial: initial,
		table:   make(map[S]map[E]transition[S, E]),
	}
}

// Permit allows event to move a machine from one state to another.
// Registering the same (from, event) pair twice replaces the earlier entry.
func (d *Definition[S, E]) Permit(from S, event E, to S, actions ...Action[S, E]) *Definition[S, E] {
	if d.table[from] == nil {
		d.table[from] = make(map[E]transition[S, E])
	}
	d.table[from][event] = transition[S, E]{to: to, actions: actions}
	return d
}

// OnTransition registers a listener called after every committed transition.
func (d *Definition[S, E]) OnTransition(l Listener[S, E]) *Definition[S, E] {
	if l != nil {
		d.listeners = append(d.listeners, l)
	}
	return d
}

// Start returns a new machine in the initial state.
func (d *Definition[S, E]) Start() *Machine[S, E] {
	return &Machine[S, E]{def: d, current: d.initial}
}

// Machine is a single run over a Definition. It is safe for concurrent use.
type Machine[S ~string, E ~string] struct {
	def     *Definition[S, E]
	mu      sync.Mutex
	current S
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanFire reports whether event has a transition from the current state.
func (m *Machine[S, E]) CanFire(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.def.table[m.current][event]
	return ok
}

// Fire applies event. Actions run in order while the machine is locked; the
// first failing action aborts the transition.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	m.mu.Lock()
	from := m.current
	t, ok := m.def.table[from][event]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: from %q on %q", ErrNoTransition, from, event)
	}

	for _, action := range t.actions {
		if err := action(ctx, from, t.to, event); err != nil {
			m.mu.Unlock()
			return errors.Join(ErrActionFailed, err)
		}
	}
	m.current = t.to
	m.mu.Unlock()

	for _, l := range m.def.listeners {
		l(ctx, from, t.to, event)
	}
	return nil
}
