package modem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/ltemodem/at"
	"i4.energy/across/ltemodem/pdu"
	"i4.energy/across/ltemodem/sms"
)

const (
	// sendTimeout bounds one AT+CMGS exchange, which waits for the network.
	sendTimeout = 60 * time.Second
	// listTimeout bounds AT+CMGL, whose response grows with storage.
	listTimeout = 30 * time.Second
)

// List filters accepted by ListSMS.
const (
	ListUnread = "REC UNREAD"
	ListRead   = "REC READ"
	ListUnsent = "STO UNSENT"
	ListSent   = "STO SENT"
	ListAll    = "ALL"
)

var listPDUStat = map[string]int{
	ListUnread: 0,
	ListRead:   1,
	ListUnsent: 2,
	ListSent:   3,
	ListAll:    4,
}

// SendSMS sends a text message to the specified recipient and returns the
// message references assigned by the network, one per part.
//
// The recipient is normalized with NormalizeNumber. In PDU mode the message
// is encoded as GSM-7 when possible and UCS2 otherwise, split into
// concatenated parts when too long. In text mode a message outside the GSM
// alphabet is sent with the UCS2 character set selected for the duration of
// the submission.
//
// This method blocks until the message is accepted by the network or an error
// occurs. Network delivery (to the final recipient) happens asynchronously.
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) ([]int, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	number := NormalizeNumber(recipient)

	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	if err := m.throttle(ctx); err != nil {
		return nil, err
	}
	defer func() { m.lastSend = m.config.Clock() }()

	if m.config.SMSMode == SMSModePDU {
		return m.sendPDU(ctx, s, number, message)
	}
	return m.sendText(ctx, s, number, message)
}

// throttle waits out MinSendInterval since the previous submission. Must be
// called with sendMu held.
func (m *Modem) throttle(ctx context.Context) error {
	if m.config.MinSendInterval <= 0 || m.lastSend.IsZero() {
		return nil
	}
	wait := m.config.MinSendInterval - m.config.Clock().Sub(m.lastSend)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Modem) sendPDU(ctx context.Context, s *Session, number, message string) ([]int, error) {
	parts, err := pdu.EncodeSubmit(number, message, byte(m.msgRef.Add(1)))
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	refs := make([]int, 0, len(parts))
	for i, p := range parts {
		res, err := s.SubmitSMS(ctx, fmt.Sprintf(at.CmdSendPDU, p.TPDULength), p.PDU, sendTimeout)
		if err != nil {
			return refs, fmt.Errorf("send part %d of %d: %w", i+1, len(parts), err)
		}
		refs = append(refs, messageRef(res))
	}
	return refs, nil
}

func (m *Modem) sendText(ctx context.Context, s *Session, number, message string) ([]int, error) {
	current := sms.Charset(m.charset.Load())
	if current != sms.CharsetUCS2 && pdu.IsGSM7(message) {
		res, err := s.SubmitSMS(ctx, fmt.Sprintf(at.CmdSendText, number), message, sendTimeout)
		if err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
		return []int{messageRef(res)}, nil
	}

	hexNumber, err := pdu.EncodeUCS2Hex(number)
	if err != nil {
		return nil, err
	}
	hexBody, err := pdu.EncodeUCS2Hex(message)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	if current != sms.CharsetUCS2 {
		if _, err := s.Submit(ctx, fmt.Sprintf(at.CmdCharset, sms.CharsetUCS2), 0); err != nil {
			return nil, fmt.Errorf("select UCS2 character set: %w", err)
		}
		m.charset.Store(int32(sms.CharsetUCS2))
		defer m.restoreCharset(s, current)
	}

	res, err := s.SubmitSMS(ctx, fmt.Sprintf(at.CmdSendText, hexNumber), hexBody, sendTimeout)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return []int{messageRef(res)}, nil
}

// restoreCharset selects the character set in use before a UCS2 submission.
// Without a configured one the modem is returned to GSM.
func (m *Modem) restoreCharset(s *Session, prev sms.Charset) {
	name := prev
	if prev == sms.CharsetAuto {
		name = sms.CharsetGSM
	}
	if _, err := s.Submit(context.Background(), fmt.Sprintf(at.CmdCharset, name), 0); err != nil {
		m.logger.Warn("restore character set", "charset", name, "error", err)
		return
	}
	m.charset.Store(int32(prev))
}

func messageRef(res *at.Result) int {
	for _, p := range res.Payload(at.RespSendMsg) {
		if ref, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			return ref
		}
	}
	return -1
}

// ReadSMS reads the message stored at index.
func (m *Modem) ReadSMS(ctx context.Context, index int) (*sms.Message, error) {
	res, err := m.Exec(ctx, fmt.Sprintf(at.CmdReadMsg, index), 0)
	if err != nil {
		return nil, err
	}
	if len(res.Lines) == 0 {
		return nil, fmt.Errorf("read message %d: %w", index, ErrUnexpectedResponse)
	}
	return m.decoder().FromRead(res.Lines, index)
}

// ListSMS lists stored messages matching filter (ListUnread, ListAll, ...).
// Messages that fail to decode are reported in the returned error while the
// others are still returned.
func (m *Modem) ListSMS(ctx context.Context, filter string) ([]*sms.Message, error) {
	if filter == "" {
		filter = ListAll
	}
	stat, ok := listPDUStat[filter]
	if !ok {
		return nil, fmt.Errorf("unknown list filter %q", filter)
	}
	cmd := fmt.Sprintf(at.CmdListMsgText, filter)
	if m.config.SMSMode == SMSModePDU {
		cmd = fmt.Sprintf(at.CmdListMsgPDU, stat)
	}
	res, err := m.Exec(ctx, cmd, listTimeout)
	if err != nil {
		return nil, err
	}
	return m.decoder().FromList(res.Lines)
}

// DeleteSMS deletes the message stored at index.
func (m *Modem) DeleteSMS(ctx context.Context, index int) error {
	_, err := m.Exec(ctx, fmt.Sprintf(at.CmdDeleteMsg, index), 0)
	return err
}

// SetNotifyMode switches between pushed message content and stored message
// indications.
func (m *Modem) SetNotifyMode(ctx context.Context, mode NotifyMode) error {
	_, err := m.Exec(ctx, notifyCommand(mode), 0)
	return err
}

// NotifyMode queries the new message indication setting of the modem.
func (m *Modem) NotifyMode(ctx context.Context) (NotifyMode, error) {
	res, err := m.Exec(ctx, at.CmdQueryNotify, 0)
	if err != nil {
		return 0, err
	}
	payload := res.Payload("+CNMI:")
	if len(payload) == 0 {
		return 0, fmt.Errorf("query notify mode: %w", ErrUnexpectedResponse)
	}
	fields := at.SplitFields(payload[0])
	if len(fields) < 2 {
		return 0, fmt.Errorf("query notify mode %q: %w", payload[0], ErrUnexpectedResponse)
	}
	switch fields[1] {
	case "1":
		return NotifyIndex, nil
	case "2":
		return NotifyPush, nil
	}
	return 0, fmt.Errorf("unsupported notify setting %q: %w", payload[0], ErrUnexpectedResponse)
}
