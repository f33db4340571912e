package modem

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/ltemodem/at"
	"i4.energy/across/ltemodem/sms"
)

// fetchQueueSize bounds the stored messages waiting to be read by index.
const fetchQueueSize = 16

type fetchRequest struct {
	storage string
	index   int
}

// dispatcher turns notifications into domain events. Notifications are
// handled in arrival order on one goroutine. Reading a stored message needs a
// command round trip, so it is handed to a separate worker and never holds up
// the notifications behind it.
type dispatcher struct {
	session   *Session
	decoder   func() sms.Decoder
	assembler *sms.Assembler
	calls     *callTracker
	post      func(Event)
	now       func() time.Time
	logger    *slog.Logger

	deleteAfterRead bool
	readTimeout     time.Duration
	expireEvery     time.Duration

	fetch chan fetchRequest
}

func newDispatcher(session *Session, decoder func() sms.Decoder, calls *callTracker, post func(Event), config Config) *dispatcher {
	every := time.Minute
	if config.PartTTL/2 < every {
		every = config.PartTTL / 2
	}
	return &dispatcher{
		session:         session,
		decoder:         decoder,
		assembler:       sms.NewAssembler(config.PartTTL, config.Clock),
		calls:           calls,
		post:            post,
		now:             config.Clock,
		logger:          config.Logger.With("component", "dispatcher"),
		deleteAfterRead: config.DeleteAfterRead,
		readTimeout:     config.ATTimeout,
		expireEvery:     every,
		fetch:           make(chan fetchRequest, fetchQueueSize),
	}
}

// Run consumes notifications until the session closes its channel or ctx is
// cancelled.
func (d *dispatcher) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.fetchLoop(ctx)

	expire := time.NewTicker(d.expireEvery)
	defer expire.Stop()

	notifications := d.session.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			d.handle(n)
		case <-expire.C:
			d.expire()
		}
	}
}

func (d *dispatcher) handle(n *at.Notification) {
	d.logger.Debug("notification", "kind", n.Kind, "line", n.Line)
	switch n.Kind {
	case at.NotifyRing:
		d.calls.ring()
	case at.NotifyCallerID:
		d.calls.callerID(n.Field(0))
	case at.NotifyCallBegin:
		d.calls.begin()
	case at.NotifyCallEnd:
		d.calls.end("end")
	case at.NotifyCallEnded:
		d.calls.end(strings.ToLower(n.Token))
	case at.NotifyMissedCall:
		d.calls.missed(missedNumber(n.Field(0)))

	case at.NotifySMSPush:
		m, err := d.decoder().FromPush(n.Fields, n.Body)
		if err != nil {
			d.undecodable(n.Line+"\n"+n.Body, err, n.At)
			return
		}
		d.deliver(m, n.At)

	case at.NotifySMSIndex:
		idx, _ := strconv.Atoi(n.Field(1))
		select {
		case d.fetch <- fetchRequest{storage: n.Field(0), index: idx}:
		default:
			d.logger.Warn("fetch queue full, message left in storage", "storage", n.Field(0), "index", idx)
		}

	case at.NotifyStatusReport:
		idx, _ := strconv.Atoi(n.Field(1))
		d.post(StatusReport{Storage: n.Field(0), Index: idx, At: n.At})

	case at.NotifyRegistration:
		stat, _ := strconv.Atoi(n.Field(0))
		d.post(NetworkStatus{
			Domain: strings.Trim(n.Token, "+:"),
			Stat:   stat,
			LAC:    n.Field(1),
			CellID: n.Field(2),
			At:     n.At,
		})

	case at.NotifyDTMF:
		d.post(DTMFReceived{Digit: n.Field(0), At: n.At})

	case at.NotifyStorageFull:
		d.post(StorageFull{At: n.At})

	default:
		d.logger.Warn("unhandled notification", "kind", n.Kind, "line", n.Line)
	}
}

func (d *dispatcher) fetchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.fetch:
			if err := d.read(ctx, req); err != nil {
				d.logger.Error("read stored message", "storage", req.storage, "index", req.index, "error", err)
			}
		}
	}
}

// read fetches the stored message at req.index and delivers it.
func (d *dispatcher) read(ctx context.Context, req fetchRequest) error {
	cmd := fmt.Sprintf(at.CmdReadMsg, req.index)
	res, err := d.session.Submit(ctx, cmd, d.readTimeout)
	if err != nil {
		return err
	}
	m, err := d.decoder().FromRead(res.Lines, req.index)
	if err != nil {
		d.undecodable(strings.Join(res.Lines, "\n"), err, res.At)
	} else {
		m.Storage = req.storage
		d.deliver(m, res.At)
	}
	if d.deleteAfterRead {
		if _, err := d.session.Submit(ctx, fmt.Sprintf(at.CmdDeleteMsg, req.index), d.readTimeout); err != nil {
			return fmt.Errorf("delete after read: %w", err)
		}
	}
	return nil
}

func (d *dispatcher) deliver(m *sms.Message, ts time.Time) {
	full, ok := d.assembler.Add(m)
	if !ok {
		d.logger.Debug("holding message part", "sender", m.Sender, "ref", m.Concat.Ref, "seq", m.Concat.Seq, "total", m.Concat.Total)
		return
	}
	d.post(SMSReceived{Message: full, At: ts})
}

func (d *dispatcher) undecodable(raw string, err error, ts time.Time) {
	d.logger.Warn("undecodable message", "raw", raw, "error", err)
	d.post(UndecodableMessage{Raw: raw, Err: err, At: ts})
}

func (d *dispatcher) expire() {
	for _, m := range d.assembler.Expire() {
		d.logger.Warn("delivering incomplete message", "sender", m.Sender, "parts", len(m.Parts))
		d.post(SMSReceived{Message: m, At: d.now()})
	}
}

// missedNumber extracts the number from a MISSED_CALL report, which leads
// with the time of the call.
func missedNumber(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}
