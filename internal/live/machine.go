package live

import (
	"fmt"
	"sync"
)

// State describes the connection lifecycle of a live session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// transitions is the allowed lifecycle graph. Closed and error count as idle
// for restart purposes.
var transitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateActive, StateClosing, StateError},
	StateActive:     {StateClosing, StateError},
	StateClosing:    {StateClosed, StateError},
	StateClosed:     {StateConnecting},
	StateError:      {StateConnecting},
}

// Machine is a lightweight deterministic session lifecycle machine.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves to next if the lifecycle graph allows it.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s", m.state, next)
}

// Is reports whether the current state matches any of the given states.
func (m *Machine) Is(states ...State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range states {
		if m.state == state {
			return true
		}
	}
	return false
}

// Startable reports whether a new session may begin from the current state.
func (m *Machine) Startable() bool {
	return m.Is(StateIdle, StateClosed, StateError)
}
