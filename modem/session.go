package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"i4.energy/across/ltemodem/at"
)

// request is an AT command waiting to be executed by the session loop.
type request struct {
	// cmd is the AT command string to send to the modem
	cmd string
	// body is written after the input prompt when hasBody is set
	body    string
	hasBody bool
	// timeout is the per-command budget, deadline is submission time plus it
	timeout  time.Duration
	deadline time.Time
	// ctx lets the caller abandon the command
	ctx context.Context
	// resp receives the outcome exactly once
	resp chan response
}

type response struct {
	result *at.Result
	err    error
}

// inflight is the command written to the modem and awaiting its final result.
// An abandoned command keeps the slot until its final result arrives or its
// deadline passes, so its late output cannot resolve the next command.
type inflight struct {
	req       *request
	pending   *at.Pending
	lines     []string
	bodySent  bool
	abandoned bool
	timer     *time.Timer
}

type readResult struct {
	data []byte
	err  error
}

// Session executes AT commands one at a time over a Transport and separates
// their responses from unsolicited notifications.
//
// Run is the only goroutine that classifies modem output. Callers of Submit
// queue in arrival order while a command is in flight. Notifications are
// delivered on a buffered channel that the loop never blocks on.
type Session struct {
	transport Transport
	state     *StateMachine
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	framer    *at.Framer
	parser    *at.Parser
	overflows int

	requests      chan *request
	notifications chan *at.Notification
	done          chan struct{}
	running       atomic.Bool
}

// NewSession prepares a session over transport. Timeouts and failures of the
// channel are reported to state.
func NewSession(transport Transport, state *StateMachine, config Config) *Session {
	config.setDefaults()
	return &Session{
		transport:     transport,
		state:         state,
		logger:        config.Logger.With("component", "session"),
		timeout:       config.ATTimeout,
		now:           config.Clock,
		framer:        at.NewFramer(),
		parser:        at.NewParser(config.Clock),
		requests:      make(chan *request),
		notifications: make(chan *at.Notification, config.NotificationBuffer),
		done:          make(chan struct{}),
	}
}

// Notifications returns the channel of unsolicited notifications. It is
// closed when Run returns.
func (s *Session) Notifications() <-chan *at.Notification {
	return s.notifications
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Submit executes cmd and waits for its final result. A zero timeout uses the
// configured AT timeout. The deadline counts from submission, so time spent
// queued behind other commands is part of it.
//
// A result other than OK is returned together with a *CommandError. A caller
// whose ctx ends after the command was written returns at once, but the next
// command is not written before the abandoned one has its final result or
// reaches its deadline.
func (s *Session) Submit(ctx context.Context, cmd string, timeout time.Duration) (*at.Result, error) {
	return s.submit(ctx, &request{cmd: cmd, timeout: timeout})
}

// SubmitSMS executes a two phase message command: cmd is written, body is
// sent followed by Ctrl-Z once the modem prompts for it, and the final
// result is awaited. No other command is interleaved.
func (s *Session) SubmitSMS(ctx context.Context, cmd, body string, timeout time.Duration) (*at.Result, error) {
	return s.submit(ctx, &request{cmd: cmd, body: body, hasBody: true, timeout: timeout})
}

func (s *Session) submit(ctx context.Context, req *request) (*at.Result, error) {
	if !s.state.Usable() {
		return nil, ErrNotConnected
	}
	if req.timeout <= 0 {
		req.timeout = s.timeout
	}
	req.deadline = s.now().Add(req.timeout)
	req.ctx = ctx
	req.resp = make(chan response, 1)

	queued := time.NewTimer(req.timeout)
	defer queued.Stop()

	select {
	case s.requests <- req:
	case <-queued.C:
		return nil, &TimeoutError{Command: req.cmd, Timeout: req.timeout, Queued: true}
	case <-ctx.Done():
		return nil, fmt.Errorf("command %q cancelled before sending: %w", req.cmd, ctx.Err())
	case <-s.done:
		return nil, ErrNotConnected
	}

	select {
	case r := <-req.resp:
		return r.result, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("command %q abandoned: %w", req.cmd, ctx.Err())
	case <-s.done:
		select {
		case r := <-req.resp:
			return r.result, r.err
		default:
			return nil, ErrNotConnected
		}
	}
}

// Run is the main event loop that handles all transport I/O operations.
// It must be called exactly once per session. It reads and classifies modem
// output, writes queued commands and resolves them, and returns when ctx is
// cancelled or the channel fails. A channel failure moves the connection to
// the error state and is returned as a *ChannelError.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(s.done)
	defer close(s.notifications)

	stop := make(chan struct{})
	defer close(stop)
	reads := make(chan readResult)
	go s.readLoop(reads, stop)

	var cur *inflight
	resolve := func(r response) {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		if !cur.abandoned {
			cur.req.resp <- r
		}
		cur = nil
	}

	for {
		var (
			requests <-chan *request
			expired  <-chan time.Time
			abandon  <-chan struct{}
		)
		if cur == nil {
			requests = s.requests
		} else {
			expired = cur.timer.C
			if !cur.abandoned {
				abandon = cur.req.ctx.Done()
			}
		}

		select {
		case <-ctx.Done():
			if cur != nil {
				resolve(response{err: ctx.Err()})
			}
			return ctx.Err()

		case req := <-requests:
			if err := req.ctx.Err(); err != nil {
				req.resp <- response{err: err}
				continue
			}
			if !s.state.Usable() {
				req.resp <- response{err: ErrNotConnected}
				continue
			}
			left := req.deadline.Sub(s.now())
			if left <= 0 {
				req.resp <- response{err: &TimeoutError{Command: req.cmd, Timeout: req.timeout, Queued: true}}
				continue
			}
			if err := s.write(strings.TrimSpace(req.cmd) + at.CR); err != nil {
				req.resp <- response{err: err}
				s.state.fail(err.Error())
				return err
			}
			cur = &inflight{
				req:     req,
				pending: at.NewPending(req.cmd),
				timer:   time.NewTimer(left),
			}

		case <-expired:
			terr := &TimeoutError{Command: cur.req.cmd, Timeout: cur.req.timeout}
			s.logger.Warn("command timed out", "command", cur.req.cmd, "timeout", cur.req.timeout, "abandoned", cur.abandoned)
			cur.timer = nil
			resolve(response{err: terr})
			s.state.fail(terr.Error())

		case <-abandon:
			s.logger.Info("command abandoned by caller", "command", cur.req.cmd, "error", cur.req.ctx.Err())
			cur.abandoned = true

		case r := <-reads:
			if len(r.data) > 0 {
				if err := s.consume(r.data, &cur, resolve); err != nil {
					if cur != nil {
						resolve(response{err: err})
					}
					s.state.fail(err.Error())
					return err
				}
			}
			if r.err != nil {
				cerr := &ChannelError{Op: "read", Err: r.err}
				if cur != nil {
					resolve(response{err: cerr})
				}
				s.state.fail(cerr.Error())
				return cerr
			}
		}
	}
}

func (s *Session) readLoop(reads chan<- readResult, stop <-chan struct{}) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := s.transport.Read(buf)
		var data []byte
		if n > 0 {
			data = bytes.Clone(buf[:n])
		}
		if n == 0 && err == nil {
			continue
		}
		select {
		case reads <- readResult{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) write(wire string) error {
	if _, err := s.transport.Write([]byte(wire)); err != nil {
		return &ChannelError{Op: "write", Err: err}
	}
	return nil
}

// consume frames and classifies data and routes every line. It returns an
// error only when writing to the channel fails.
func (s *Session) consume(data []byte, cur **inflight, resolve func(response)) error {
	for line := range s.framer.Feed(data) {
		var pending *at.Pending
		if *cur != nil {
			pending = (*cur).pending
		}
		ev := s.parser.Parse(line, pending)
		if s.parser.WantsBody() {
			s.framer.KeepNextEmpty()
		}
		if err := s.route(ev, cur, resolve); err != nil {
			return err
		}
	}
	if n := s.framer.Overflows(); n > s.overflows {
		s.logger.Warn("discarded modem output", "error", ErrLineTooLong, "lines", n-s.overflows)
		s.overflows = n
	}
	return nil
}

func (s *Session) route(ev at.Event, cur **inflight, resolve func(response)) error {
	c := *cur
	switch ev := ev.(type) {
	case nil:
	case *at.Echo:
		s.logger.Debug("echo", "line", ev.Text)

	case *at.Data:
		if c == nil {
			s.logger.Debug("dropping data line without pending command", "line", ev.Text)
			return nil
		}
		c.lines = append(c.lines, ev.Text)

	case *at.Prompt:
		switch {
		case c == nil:
			s.logger.Warn("input prompt without pending command")
		case c.req.hasBody && !c.bodySent && c.abandoned:
			// the modem waits for input that nobody will supply
			c.bodySent = true
			if err := s.write(at.Esc); err != nil {
				return err
			}
		case c.req.hasBody && !c.bodySent:
			c.pending.ExpectEcho(c.req.body)
			c.bodySent = true
			if err := s.write(c.req.body + at.CtrlZ); err != nil {
				return err
			}
		default:
			if err := s.write(at.Esc); err != nil {
				return err
			}
			resolve(response{err: fmt.Errorf("command %q: %w", c.req.cmd, ErrUnexpectedPrompt)})
		}

	case *at.Final:
		if c == nil {
			s.logger.Warn("orphan final result", "line", ev.Text, "at", ev.At)
			return nil
		}
		if c.abandoned {
			s.logger.Warn("orphan final result", "line", ev.Text, "at", ev.At, "command", c.req.cmd, "lines", len(c.lines))
			resolve(response{})
			return nil
		}
		res := &at.Result{Final: *ev, Command: c.req.cmd, Lines: c.lines}
		var err error
		switch {
		case ev.Status != at.StatusOK:
			err = &CommandError{Command: c.req.cmd, Final: *ev}
		case c.req.hasBody && !c.bodySent:
			err = fmt.Errorf("command %q: %w", c.req.cmd, ErrNoPrompt)
		}
		resolve(response{result: res, err: err})

	case *at.Notification:
		select {
		case s.notifications <- ev:
		default:
			s.logger.Warn("notification channel full, dropping", "line", ev.Line)
		}

	case *at.Invalid:
		var perr *at.ProtocolError
		if errors.As(ev.Err, &perr) {
			s.logger.Warn("protocol error", "token", perr.Token, "line", ev.Text, "error", perr.Err)
		} else {
			s.logger.Warn("invalid line", "line", ev.Text, "error", ev.Err)
		}
	}
	return nil
}
