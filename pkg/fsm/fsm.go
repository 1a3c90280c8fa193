// Package fsm is a small state machine used by the animation controllers.
// Each state has optional per-frame handlers; transitions are explicit and
// may carry an action that runs before the state changes.
package fsm

import (
	"errors"
	"fmt"
)

// ErrNoTransition is returned by GoTo for transitions that were never added.
var ErrNoTransition = errors.New("fsm: transition not defined")

// Handler runs once per frame with the frame time in seconds.
type Handler func(dt float64)

// State groups the per-frame handlers of one state. Either may be nil.
type State struct {
	Update     Handler
	LateUpdate Handler
}

type edge[S comparable] struct {
	from, to S
}

// Machine is a finite state machine over the comparable state type S.
// It is not safe for concurrent use.
type Machine[S comparable] struct {
	current     S
	states      map[S]State
	transitions map[edge[S]]func()
	listeners   []func(from, to S)
}

// New creates a machine starting in initial.
func New[S comparable](initial S) *Machine[S] {
	return &Machine[S]{
		current:     initial,
		states:      make(map[S]State),
		transitions: make(map[edge[S]]func()),
	}
}

// AddState registers the handlers for s.
func (m *Machine[S]) AddState(s S, st State) *Machine[S] {
	m.states[s] = st
	return m
}

// AddTransition allows moving from one state to another. action may be nil.
func (m *Machine[S]) AddTransition(from, to S, action func()) *Machine[S] {
	m.transitions[edge[S]{from, to}] = action
	return m
}

// OnChange registers a listener called after every state change.
func (m *Machine[S]) OnChange(fn func(from, to S)) {
	m.listeners = append(m.listeners, fn)
}

// Current returns the active state.
func (m *Machine[S]) Current() S {
	return m.current
}

// GoTo runs the transition action and switches to the target state.
func (m *Machine[S]) GoTo(to S) error {
	from := m.current
	action, ok := m.transitions[edge[S]{from, to}]
	if !ok {
		return fmt.Errorf("%w: %v -> %v", ErrNoTransition, from, to)
	}
	if action != nil {
		action()
	}
	m.current = to
	for _, fn := range m.listeners {
		fn(from, to)
	}
	return nil
}

// Update runs the active state's Update handler.
func (m *Machine[S]) Update(dt float64) {
	if h := m.states[m.current].Update; h != nil {
		h(dt)
	}
}

// LateUpdate runs the active state's LateUpdate handler.
func (m *Machine[S]) LateUpdate(dt float64) {
	if h := m.states[m.current].LateUpdate; h != nil {
		h(dt)
	}
}
