package modem

import (
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/ltemodem/sms"
)

// Event is a domain event delivered to observers.
type Event interface {
	EventTime() time.Time
}

// StateChanged reports a connection state transition.
type StateChanged struct {
	From  State
	To    State
	Cause string
	Port  string
	At    time.Time
}

// SMSReceived carries a decoded message.
type SMSReceived struct {
	Message *sms.Message
	At      time.Time
}

// UndecodableMessage reports a message that could not be decoded, so it can
// be shown instead of silently dropped.
type UndecodableMessage struct {
	Raw string
	Err error
	At  time.Time
}

// CallEventKind distinguishes call events.
type CallEventKind int

const (
	CallRinging CallEventKind = iota
	CallConnected
	CallDisconnected
)

func (k CallEventKind) String() string {
	switch k {
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// CallEvent reports a change of the voice call.
type CallEvent struct {
	Kind   CallEventKind
	Number string
	Reason string
	Missed bool
	At     time.Time
}

// NetworkStatus reports a registration change (+CREG, +CGREG, +CEREG).
type NetworkStatus struct {
	Domain string
	Stat   int
	LAC    string
	CellID string
	At     time.Time
}

// Registered reports home or roaming registration.
func (n NetworkStatus) Registered() bool {
	return n.Stat == 1 || n.Stat == 5
}

// DTMFReceived reports a DTMF tone detected on the active call.
type DTMFReceived struct {
	Digit string
	At    time.Time
}

// StorageFull reports that message storage on the modem is full.
type StorageFull struct {
	At time.Time
}

// StatusReport reports a stored SMS status report.
type StatusReport struct {
	Storage string
	Index   int
	At      time.Time
}

func (e StateChanged) EventTime() time.Time       { return e.At }
func (e SMSReceived) EventTime() time.Time        { return e.At }
func (e UndecodableMessage) EventTime() time.Time { return e.At }
func (e CallEvent) EventTime() time.Time          { return e.At }
func (e NetworkStatus) EventTime() time.Time      { return e.At }
func (e DTMFReceived) EventTime() time.Time       { return e.At }
func (e StorageFull) EventTime() time.Time        { return e.At }
func (e StatusReport) EventTime() time.Time       { return e.At }

// Observer receives domain events. Observe is called from a single delivery
// goroutine, one event at a time, in the order events were produced.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// bus queues events without blocking the producer and delivers them in order
// to the subscribed observers.
type bus struct {
	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	queue     []Event
	draining  bool
	idle      *sync.Cond
	logger    *slog.Logger
}

func newBus(logger *slog.Logger) *bus {
	b := &bus{observers: map[int]Observer{}, logger: logger}
	b.idle = sync.NewCond(&b.mu)
	return b
}

func (b *bus) subscribe(o Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = o
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	}
}

func (b *bus) post(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, e)
	if !b.draining {
		b.draining = true
		go b.drain()
	}
}

func (b *bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.idle.Broadcast()
			b.mu.Unlock()
			return
		}
		e := b.queue[0]
		b.queue = b.queue[1:]
		observers := make([]Observer, 0, len(b.observers))
		for id := 0; id < b.nextID; id++ {
			if o, ok := b.observers[id]; ok {
				observers = append(observers, o)
			}
		}
		b.mu.Unlock()

		for _, o := range observers {
			b.deliver(o, e)
		}
	}
}

func (b *bus) deliver(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "event", e, "panic", r)
		}
	}()
	o.Observe(e)
}

// flush waits until every posted event has been delivered.
func (b *bus) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.draining {
		b.idle.Wait()
	}
}
