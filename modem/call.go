package modem

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// CallState is the state of the voice call tracked from notifications.
type CallState string

const (
	CallStateIdle    CallState = "idle"
	CallStateRinging CallState = "ringing"
	CallStateActive  CallState = "active"
)

const (
	callEventRing   = "ring"
	callEventAnswer = "answer"
	callEventEnd    = "end"
)

// callTracker derives call events from RING, +CLIP, VOICE CALL and NO
// CARRIER style notifications. A ringing call that sees no further RING
// within the grace period is reported as missed.
type callTracker struct {
	mu     sync.Mutex
	fsm    *fsm.FSM
	number string
	grace  time.Duration
	timer  *time.Timer
	// gen invalidates grace timers that fired after being replaced
	gen    uint64
	now    func() time.Time
	post   func(Event)
	logger *slog.Logger
}

func newCallTracker(grace time.Duration, now func() time.Time, post func(Event), logger *slog.Logger) *callTracker {
	return &callTracker{
		fsm: fsm.NewFSM(
			string(CallStateIdle),
			fsm.Events{
				{Name: callEventRing, Src: []string{string(CallStateIdle), string(CallStateRinging)}, Dst: string(CallStateRinging)},
				{Name: callEventAnswer, Src: []string{string(CallStateIdle), string(CallStateRinging)}, Dst: string(CallStateActive)},
				{Name: callEventEnd, Src: []string{string(CallStateRinging), string(CallStateActive)}, Dst: string(CallStateIdle)},
			},
			fsm.Callbacks{},
		),
		grace:  grace,
		now:    now,
		post:   post,
		logger: logger,
	}
}

func (c *callTracker) state() CallState {
	return CallState(c.fsm.Current())
}

// event fires name, ignoring transitions that are not allowed, and reports
// whether the state machine accepted it. A self transition counts as
// accepted. Must be called with mu held.
func (c *callTracker) event(name string) bool {
	err := c.fsm.Event(context.Background(), name)
	switch err.(type) {
	case nil, fsm.NoTransitionError:
		return true
	}
	c.logger.Debug("call event ignored", "event", name, "state", c.fsm.Current(), "error", err)
	return false
}

// ring handles RING and +CRING. The first ring of a call emits CallRinging.
func (c *callTracker) ring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	first := c.state() == CallStateIdle
	if !c.event(callEventRing) {
		return
	}
	c.armLocked()
	if first {
		c.post(CallEvent{Kind: CallRinging, Number: c.number, At: c.now()})
	}
}

// callerID handles +CLIP. The number is attached to the ringing call and a
// second CallRinging carrying it is emitted.
func (c *callTracker) callerID(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() == CallStateActive {
		return
	}
	first := c.state() == CallStateIdle
	if !c.event(callEventRing) {
		return
	}
	c.armLocked()
	if first || number != c.number {
		c.number = number
		c.post(CallEvent{Kind: CallRinging, Number: number, At: c.now()})
	}
}

// begin handles VOICE CALL: BEGIN and a successful ATA.
func (c *callTracker) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state() == CallStateActive {
		return
	}
	if !c.event(callEventAnswer) {
		return
	}
	c.stopLocked()
	c.post(CallEvent{Kind: CallConnected, Number: c.number, At: c.now()})
}

// end handles VOICE CALL: END, NO CARRIER, BUSY and NO ANSWER.
func (c *callTracker) end(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(reason, false)
}

// missed handles the modem's own missed call report.
func (c *callTracker) missed(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if number != "" {
		c.number = number
	}
	if c.state() == CallStateIdle {
		c.post(CallEvent{Kind: CallDisconnected, Number: c.number, Reason: "missed", Missed: true, At: c.now()})
		c.number = ""
		return
	}
	c.endLocked("missed", true)
}

func (c *callTracker) endLocked(reason string, missed bool) {
	ringing := c.state() == CallStateRinging
	if c.state() == CallStateIdle || !c.event(callEventEnd) {
		return
	}
	c.stopLocked()
	c.post(CallEvent{
		Kind:   CallDisconnected,
		Number: c.number,
		Reason: reason,
		Missed: missed || ringing,
		At:     c.now(),
	})
	c.number = ""
}

func (c *callTracker) armLocked() {
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.state() != CallStateRinging {
			return
		}
		c.endLocked("timeout", true)
	})
}

func (c *callTracker) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *callTracker) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}
