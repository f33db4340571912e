package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/ltemodem/at"
	"i4.energy/across/ltemodem/sms"
)

// Modem represents a GSM/3G/4G cellular modem that communicates via AT commands.
// It provides thread-safe access to SMS and voice call functionality through a
// Session whose event loop handles all transport I/O, and reports what the
// modem does unprompted as events to subscribed observers.
type Modem struct {
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	state  *StateMachine
	events *bus
	calls  *callTracker

	// mu guards the connection below
	mu        sync.Mutex
	transport Transport
	session   *Session
	// cancel stops the session loop and the dispatcher
	cancel context.CancelFunc
	// done is closed when both have returned
	done chan struct{}

	charset atomic.Int32

	// sendMu serializes message submission
	sendMu   sync.Mutex
	lastSend time.Time
	msgRef   atomic.Uint32
}

// PollConfig defines configuration for polling operations like waiting for SIM readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// New creates a Modem for the given configuration. It performs no I/O; the
// modem starts disconnected until Connect is called.
func New(config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	m := &Modem{
		config: config,
		logger: config.Logger.With("component", "modem"),
		events: newBus(config.Logger),
	}
	m.state = NewStateMachine(m.events.post, config.Clock)
	m.state.setPort(config.Port)
	m.calls = newCallTracker(config.RingGrace, config.Clock, m.events.post, m.logger)
	m.charset.Store(int32(config.Charset))
	return m, nil
}

// Connect dials the modem, starts the session and initializes the modem
// hardware. On success the state is connected. A failure during
// initialization leaves the modem in the error state with the cause, and it
// must be Reset before connecting again.
func (m *Modem) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.transition(eventOpen, "connecting to "+m.config.Port); err != nil {
		return err
	}

	transport, err := m.config.Dialer.Dial(ctx)
	if err != nil {
		m.state.fail(fmt.Sprintf("dial: %v", err))
		return fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		m.state.fail(ErrNotInitialized.Error())
		return ErrNotInitialized
	}

	session := NewSession(transport, m.state, m.config)
	disp := newDispatcher(session, m.decoder, m.calls, m.events.post, m.config)
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := session.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("session stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		disp.Run(loopCtx)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	m.transport, m.session, m.cancel, m.done = transport, session, cancel, done

	initCtx, cancelInit := context.WithTimeout(ctx, m.config.InitTimeout)
	defer cancelInit()
	if err := m.init(initCtx, session); err != nil {
		m.state.fail(err.Error())
		m.teardown()
		return fmt.Errorf("initialize modem: %w", err)
	}

	return m.state.transition(eventEstablished, "initialized")
}

// Close shuts down the session and closes the transport. The modem can be
// connected again afterwards. A modem in the error state releases its
// resources but stays in the error state until Reset.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Current() == StateDisconnected {
		return ErrAlreadyClosed
	}
	err := m.teardown()
	if m.state.Current() != StateError {
		if terr := m.state.transition(eventClose, "closed"); terr != nil {
			return terr
		}
	}
	m.calls.close()
	return err
}

// Reset leaves the error state. It releases the connection if it is still
// held.
func (m *Modem) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Current() != StateError {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, m.state.Current())
	}
	if err := m.teardown(); err != nil {
		m.logger.Warn("close transport on reset", "error", err)
	}
	return m.state.transition(eventReset, "reset")
}

// teardown stops the goroutines and closes the transport. Must be called with
// mu held.
func (m *Modem) teardown() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	var err error
	if m.transport != nil {
		err = m.transport.Close()
	}
	<-m.done
	m.transport, m.session, m.cancel, m.done = nil, nil, nil, nil
	return err
}

// State returns the connection state.
func (m *Modem) State() State {
	return m.state.Current()
}

// Cause returns the reason given for the last state transition, such as the
// error that moved the modem to the error state.
func (m *Modem) Cause() string {
	return m.state.Cause()
}

// Port returns the port identifier the modem is bound to.
func (m *Modem) Port() string {
	return m.config.Port
}

// Subscribe registers an observer for domain events. Events are delivered in
// the order they happened, one at a time, from a goroutine of the modem. The
// returned function removes the observer.
func (m *Modem) Subscribe(o Observer) (unsubscribe func()) {
	return m.events.subscribe(o)
}

// Flush waits until every event produced so far has been delivered.
func (m *Modem) Flush() {
	m.events.flush()
}

// Exec executes a raw AT command. A zero timeout uses the configured AT
// timeout.
func (m *Modem) Exec(ctx context.Context, cmd string, timeout time.Duration) (*at.Result, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, cmd, timeout)
}

func (m *Modem) current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNotConnected
	}
	return m.session, nil
}

func (m *Modem) decoder() sms.Decoder {
	return sms.Decoder{Charset: sms.Charset(m.charset.Load())}
}

// init performs the initial setup sequence for the modem hardware.
// This method is called during Connect and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context, s *Session) error {
	// 1. Wake-up / sanity check
	if err := m.expectOK(ctx, s, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if !m.config.EchoOn {
		if err := m.expectOK(ctx, s, at.CmdEchoOff); err != nil {
			return fmt.Errorf("could not disable echo: %w", err)
		}
	}

	if err := m.expectOK(ctx, s, at.CmdReportErrors); err != nil {
		return fmt.Errorf("could not enable error reporting: %w", err)
	}

	// 4. Check SIM status
	res, err := s.Submit(ctx, at.CmdSimStatus, 0)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}
	simStatus := strings.Join(res.Lines, "\n")

	switch {
	case strings.Contains(simStatus, at.SimReady):
		// OK

	case strings.Contains(simStatus, at.SimPin):
		if m.config.SimPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOK(ctx, s, fmt.Sprintf(at.CmdSimPIN, m.config.SimPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}

		// Wait until SIM becomes ready
		if err := m.waitForSIMReady(ctx, s, PollConfig{}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %q", simStatus)
	}

	// 5. Select SMS mode
	mode := at.CmdSetTextMode
	if m.config.SMSMode == SMSModePDU {
		mode = at.CmdSetPDUMode
	}
	if err := m.expectOK(ctx, s, mode); err != nil {
		return fmt.Errorf("set SMS %s mode: %w", m.config.SMSMode, err)
	}

	if m.config.Charset != sms.CharsetAuto {
		if err := m.expectOK(ctx, s, fmt.Sprintf(at.CmdCharset, m.config.Charset)); err != nil {
			return fmt.Errorf("select character set %s: %w", m.config.Charset, err)
		}
	}

	// 6. New message indications
	if err := m.expectOK(ctx, s, notifyCommand(m.config.NotifyMode)); err != nil {
		return fmt.Errorf("set %s message notification: %w", m.config.NotifyMode, err)
	}

	// Optional reports, not every modem supports them
	for _, cmd := range []string{at.CmdCallerID, at.CmdRegistration} {
		if err := m.expectOK(ctx, s, cmd); err != nil {
			m.logger.Warn("optional init command failed", "command", cmd, "error", err)
		}
	}

	return nil
}

// expectOK executes an AT command that must succeed with OK.
func (m *Modem) expectOK(ctx context.Context, s *Session, cmd string) error {
	_, err := s.Submit(ctx, cmd, 0)
	return err
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational. Uses configurable polling interval
// and retry limits to avoid infinite waiting.
func (m *Modem) waitForSIMReady(ctx context.Context, s *Session, config PollConfig) error {
	var (
		pollInterval = config.Interval
		timeout      = config.Timeout
		maxRetries   = config.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			res, err := s.Submit(ctx, at.CmdSimStatus, 0)
			if err != nil {
				// Fail fast when the session is gone
				if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrTimeout) {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if strings.Contains(strings.Join(res.Lines, "\n"), at.SimReady) {
				return nil
			}
		}
	}
}

func notifyCommand(mode NotifyMode) string {
	if mode == NotifyIndex {
		return at.CmdPushIndex
	}
	return at.CmdPushContent
}
