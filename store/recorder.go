package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/ltemodem/modem"
)

// Recorder archives received messages and remembers the port of every
// successful connection. It is a modem.Observer.
type Recorder struct {
	store   *Store
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	port string
}

// NewRecorder returns a Recorder writing to s.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger.With("component", "recorder"), timeout: 5 * time.Second}
}

func (r *Recorder) Observe(e modem.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	switch e := e.(type) {
	case modem.SMSReceived:
		m := e.Message
		rec := &Message{
			Direction: Inbound,
			Number:    m.Sender,
			Text:      m.Text,
			Encoding:  m.Encoding.String(),
			Time:      m.Time,
			Parts:     JoinInts(m.Parts),
			Partial:   m.Partial,
			Port:      r.currentPort(),
		}
		if rec.Time.IsZero() {
			rec.Time = e.At
		}
		if err := r.store.SaveMessage(ctx, rec); err != nil {
			r.logger.Error("archive received message", "sender", m.Sender, "error", err)
		}

	case modem.StateChanged:
		if e.To != modem.StateConnected || e.Port == "" {
			return
		}
		r.mu.Lock()
		r.port = e.Port
		r.mu.Unlock()
		if err := r.store.SetLastPort(ctx, e.Port); err != nil {
			r.logger.Error("remember port", "port", e.Port, "error", err)
		}
	}
}

// RecordSent archives an outbound message accepted by the network.
func (r *Recorder) RecordSent(ctx context.Context, number, text string, refs []int) error {
	return r.store.SaveMessage(ctx, &Message{
		Direction: Outbound,
		Number:    number,
		Text:      text,
		Parts:     JoinInts(refs),
		Time:      time.Now(),
		Port:      r.currentPort(),
	})
}

func (r *Recorder) currentPort() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}
