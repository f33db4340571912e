package modem

import (
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the session's reader goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
//
// A responder installed with OnWrite answers each write, which lets tests
// script a modem.
type TestTransport struct {
	mu        sync.Mutex
	readChan  chan []byte
	failChan  chan error
	closeChan chan struct{}
	leftover  []byte
	closed    bool
	written   []string
	writes    chan string
	responder func(written string) string
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan:  make(chan []byte, 64),
		failChan:  make(chan error, 1),
		closeChan: make(chan struct{}),
		writes:    make(chan string, 64),
	}
}

// OnWrite installs a responder called with every write, trailing CR removed.
// A non-empty reply is queued for reading.
func (t *TestTransport) OnWrite(fn func(written string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responder = fn
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	w := strings.TrimSuffix(string(p), "\r")
	t.written = append(t.written, w)
	respond := t.responder
	t.mu.Unlock()

	select {
	case t.writes <- w:
	default:
	}
	if respond != nil {
		if reply := respond(w); reply != "" {
			t.SendData(reply)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	if len(t.leftover) > 0 {
		n = copy(p, t.leftover)
		t.leftover = t.leftover[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	select {
	case data := <-t.readChan:
		n = copy(p, data)
		if n < len(data) {
			t.mu.Lock()
			t.leftover = append(t.leftover, data[n:]...)
			t.mu.Unlock()
		}
		return n, nil
	case err := <-t.failChan:
		return 0, err
	case <-t.closeChan:
		return 0, io.EOF
	}
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	select {
	case t.readChan <- []byte(data):
	case <-t.closeChan:
	}
}

// Fail makes the next blocked or future read return err.
func (t *TestTransport) Fail(err error) {
	select {
	case t.failChan <- err:
	default:
	}
}

// Written returns everything written so far, one entry per write.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.written))
	copy(out, t.written)
	return out
}

// Writes delivers each write as it happens.
func (t *TestTransport) Writes() <-chan string {
	return t.writes
}

// Closed reports whether Close was called.
func (t *TestTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
