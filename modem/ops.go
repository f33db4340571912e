package modem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/ltemodem/at"
)

// dialTimeout bounds ATD, which completes once the call is set up or refused.
const dialTimeout = 30 * time.Second

// Dial places a voice call to number. The call is reported as connected
// through the call events once the modem signals it.
func (m *Modem) Dial(ctx context.Context, number string) error {
	_, err := m.Exec(ctx, fmt.Sprintf(at.CmdDial, NormalizeNumber(number)), dialTimeout)
	return err
}

// Answer accepts the ringing call.
func (m *Modem) Answer(ctx context.Context) error {
	if _, err := m.Exec(ctx, at.CmdAnswer, dialTimeout); err != nil {
		return err
	}
	m.calls.begin()
	return nil
}

// Hangup ends the current call.
func (m *Modem) Hangup(ctx context.Context) error {
	if _, err := m.Exec(ctx, at.CmdHangup, 0); err != nil {
		return err
	}
	m.calls.end("hangup")
	return nil
}

// CallState returns the state of the voice call.
func (m *Modem) CallState() CallState {
	m.calls.mu.Lock()
	defer m.calls.mu.Unlock()
	return m.calls.state()
}

// Signal is the received signal quality reported by AT+CSQ.
type Signal struct {
	// RSSI is 0-31, or 99 when not known.
	RSSI int
	// BER is the bit error rate class 0-7, or 99 when not known.
	BER int
}

// Known reports whether the modem could measure the signal.
func (s Signal) Known() bool {
	return s.RSSI >= 0 && s.RSSI <= 31
}

// DBm converts RSSI to dBm, from -113 up to -51.
func (s Signal) DBm() int {
	return -113 + 2*s.RSSI
}

func (s Signal) String() string {
	if !s.Known() {
		return "unknown"
	}
	return fmt.Sprintf("%d dBm (%d/31)", s.DBm(), s.RSSI)
}

// SignalQuality queries the received signal strength.
func (m *Modem) SignalQuality(ctx context.Context) (Signal, error) {
	fields, err := m.query(ctx, at.CmdSignal, "+CSQ:", 2)
	if err != nil {
		return Signal{}, err
	}
	rssi, err1 := strconv.Atoi(fields[0])
	ber, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return Signal{}, fmt.Errorf("signal quality %q: %w", strings.Join(fields, ","), ErrUnexpectedResponse)
	}
	return Signal{RSSI: rssi, BER: ber}, nil
}

// Operator returns the name of the network the modem is registered on.
func (m *Modem) Operator(ctx context.Context) (string, error) {
	fields, err := m.query(ctx, at.CmdOperator, "+COPS:", 1)
	if err != nil {
		return "", err
	}
	if len(fields) < 3 {
		// registered to no network
		return "", nil
	}
	return fields[2], nil
}

// OwnNumber returns the subscriber number stored on the SIM.
func (m *Modem) OwnNumber(ctx context.Context) (string, error) {
	fields, err := m.query(ctx, at.CmdOwnNumber, "+CNUM:", 2)
	if err != nil {
		return "", err
	}
	return fields[1], nil
}

// Info identifies the modem hardware.
type Info struct {
	Manufacturer string
	Model        string
	IMEI         string
	Revision     string
}

// Info queries manufacturer, model, IMEI and firmware revision.
func (m *Modem) Info(ctx context.Context) (Info, error) {
	var info Info
	for _, q := range []struct {
		cmd string
		dst *string
	}{
		{at.CmdManufacturer, &info.Manufacturer},
		{at.CmdModel, &info.Model},
		{at.CmdIMEI, &info.IMEI},
		{at.CmdRevision, &info.Revision},
	} {
		res, err := m.Exec(ctx, q.cmd, 0)
		if err != nil {
			return info, err
		}
		v := res.First()
		// some modems prefix the value with the command name
		prefix := strings.TrimPrefix(q.cmd, "AT") + ":"
		if rest, ok := at.CutPrefixFold(v, prefix); ok {
			v = rest
		}
		*q.dst = strings.TrimSpace(v)
	}
	return info, nil
}

// query executes cmd and splits the parameters of its first response line
// with prefix, requiring at least n of them.
func (m *Modem) query(ctx context.Context, cmd, prefix string, n int) ([]string, error) {
	res, err := m.Exec(ctx, cmd, 0)
	if err != nil {
		return nil, err
	}
	payload := res.Payload(prefix)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: %w", cmd, ErrUnexpectedResponse)
	}
	fields := at.SplitFields(payload[0])
	if len(fields) < n {
		return nil, fmt.Errorf("%s %q: %w", cmd, payload[0], ErrUnexpectedResponse)
	}
	return fields, nil
}

// NormalizeNumber prepares a phone number for dialing or sending. Spaces,
// dashes and parentheses are dropped, an 11 digit mainland China mobile
// number gets +86 and any other number without it gets a leading +.
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	switch {
	case clean == "":
		return ""
	case strings.HasPrefix(clean, "1") && len(clean) == 11:
		return "+86" + clean
	case !strings.HasPrefix(clean, "+"):
		return "+" + clean
	}
	return clean
}
