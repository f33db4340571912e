package modem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// State is the connection state of a Modem.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Connection state machine events.
const (
	eventOpen        = "open"
	eventEstablished = "established"
	eventFail        = "fail"
	eventClose       = "close"
	eventReset       = "reset"
)

// StateMachine tracks the connection state. Leaving the error state requires
// an explicit reset. It is safe for concurrent use.
type StateMachine struct {
	mu    sync.Mutex
	fsm   *fsm.FSM
	cause string
	since time.Time
	port  string
	now   func() time.Time
	emit  func(Event)

	// set by the enter_state callback during Event
	last *StateChanged
}

// NewStateMachine returns a machine in the disconnected state. Every
// transition is passed to emit, which may be nil.
func NewStateMachine(emit func(Event), now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	m := &StateMachine{now: now, emit: emit, since: now()}
	m.fsm = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventOpen, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventFail, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateError)},
			{Name: eventClose, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateDisconnected)},
			{Name: eventReset, Src: []string{string(StateError)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": m.onEnterState,
		},
	)
	return m
}

func (m *StateMachine) onEnterState(_ context.Context, e *fsm.Event) {
	cause, _ := e.Args[0].(string)
	m.last = &StateChanged{
		From:  State(e.Src),
		To:    State(e.Dst),
		Cause: cause,
		At:    m.now(),
	}
}

// Current returns the current state.
func (m *StateMachine) Current() State {
	return State(m.fsm.Current())
}

// Cause returns the reason given for the last transition.
func (m *StateMachine) Cause() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cause
}

// Since returns the time of the last transition.
func (m *StateMachine) Since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since
}

// Usable reports whether commands may be submitted.
func (m *StateMachine) Usable() bool {
	s := m.Current()
	return s == StateConnecting || s == StateConnected
}

func (m *StateMachine) setPort(port string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port = port
}

func (m *StateMachine) transition(event, cause string) error {
	m.mu.Lock()
	m.last = nil
	err := m.fsm.Event(context.Background(), event, cause)
	ev := m.last
	if ev != nil {
		ev.Port = m.port
		m.cause = cause
		m.since = ev.At
	}
	m.mu.Unlock()

	if err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, invalid.State)
		}
		return err
	}
	if ev != nil && m.emit != nil {
		m.emit(*ev)
	}
	return nil
}

// fail moves to the error state. It is a no-op when already failed or
// disconnected.
func (m *StateMachine) fail(cause string) bool {
	return m.transition(eventFail, cause) == nil
}
