package modem_test

import (
	"io"
	"sync"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/ltemodem/modem"
)

// MockSequenceBuilder scripts a modem on a MockTransport. Each expected write
// queues the modem's reply, which the session's reader goroutine picks up
// through Reads. Writes are checked in order with gomock.InOrder while reads
// may happen any number of times.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	replies   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		replies:   make(chan []byte, 32),
		closed:    make(chan struct{}),
		calls:     []any{},
	}
}

// Expect adds a command write answered with reply.
func (b *MockSequenceBuilder) Expect(cmd, reply string) *MockSequenceBuilder {
	wire := []byte(cmd + "\r")
	b.calls = append(b.calls,
		b.transport.EXPECT().Write(wire).DoAndReturn(func(p []byte) (int, error) {
			if reply != "" {
				b.replies <- []byte(reply)
			}
			return len(p), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Expect("AT", "AT\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Expect("ATE0", "ATE0\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) ReportErrors() *MockSequenceBuilder {
	return b.Expect("AT+CMEE=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimPinRequired() *MockSequenceBuilder {
	return b.Expect("AT+CPIN?", "\r\n+CPIN: SIM PIN\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimReady() *MockSequenceBuilder {
	return b.Expect("AT+CPIN?", "\r\n+CPIN: READY\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EnterPIN(pin string) *MockSequenceBuilder {
	return b.Expect(`AT+CPIN="`+pin+`"`, "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SMSTextMode() *MockSequenceBuilder {
	return b.Expect("AT+CMGF=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) PushContent() *MockSequenceBuilder {
	return b.Expect("AT+CNMI=2,2,0,0,0", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) CallerID() *MockSequenceBuilder {
	return b.Expect("AT+CLIP=1", "\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Registration() *MockSequenceBuilder {
	return b.Expect("AT+CREG=2", "\r\nOK\r\n")
}

// Init adds the complete initialization sequence of a default Config.
func (b *MockSequenceBuilder) Init() *MockSequenceBuilder {
	return b.AT().
		EchoOff().
		ReportErrors().
		SimReady().
		SMSTextMode().
		PushContent().
		CallerID().
		Registration()
}

// Reads serves queued replies to the reader goroutine, and io.EOF once the
// transport is closed.
func (b *MockSequenceBuilder) Reads() *gomock.Call {
	return b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		select {
		case r := <-b.replies:
			return copy(p, r), nil
		case <-b.closed:
			return 0, io.EOF
		}
	}).AnyTimes()
}

// Close expects the transport to be closed, returning err.
func (b *MockSequenceBuilder) Close(err error) *gomock.Call {
	return b.transport.EXPECT().Close().DoAndReturn(func() error {
		b.closeOnce.Do(func() { close(b.closed) })
		return err
	})
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
