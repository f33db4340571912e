// Package sms turns the text mode and PDU mode forms in which a modem reports
// short messages into one Message record.
package sms

import (
	"fmt"
	"strings"
	"time"

	"i4.energy/across/ltemodem/pdu"
)

// Mode is the modem message format a Message was decoded from.
type Mode int

const (
	ModeText Mode = iota
	ModePDU
)

func (m Mode) String() string {
	if m == ModePDU {
		return "pdu"
	}
	return "text"
}

// Message is a received short message.
type Message struct {
	Sender   string
	Time     time.Time
	Encoding pdu.Alphabet
	Text     string
	// Index is the storage position, meaningful only when Stored is set.
	Index   int
	Stored  bool
	Storage string
	Mode    Mode
	// Status is the storage status reported by read and list responses
	// ("REC UNREAD", or its PDU mode number).
	Status string
	// Concat is set on a single part of a concatenated message.
	Concat *pdu.Concat
	// Parts lists the storage indices of all stored parts of an assembled
	// message.
	Parts []int
	// Partial marks an assembled message with missing parts.
	Partial bool
}

func (m *Message) String() string {
	return fmt.Sprintf("sms from %s at %s (%s/%s): %q", m.Sender, m.Time.Format(time.RFC3339), m.Mode, m.Encoding, m.Text)
}

// Charset is the TE character set selected with AT+CSCS. It decides how text
// mode bodies and addresses are represented.
type Charset int

const (
	// CharsetAuto decodes hex shaped UCS2 and keeps anything else as text.
	CharsetAuto Charset = iota
	CharsetGSM
	CharsetIRA
	CharsetUCS2
)

var charsetNames = map[Charset]string{
	CharsetAuto: "AUTO",
	CharsetGSM:  "GSM",
	CharsetIRA:  "IRA",
	CharsetUCS2: "UCS2",
}

func (c Charset) String() string {
	if n, ok := charsetNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Charset(%d)", int(c))
}

// ParseCharset maps an AT+CSCS name to a Charset.
func ParseCharset(s string) (Charset, error) {
	s = strings.ToUpper(strings.Trim(strings.TrimSpace(s), `"`))
	for c, n := range charsetNames {
		if n == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("sms: unknown charset %q", s)
}

// DecodeError reports a message that could not be decoded. Raw holds the
// offending header and body.
type DecodeError struct {
	Form string
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sms: undecodable %s message %q: %v", e.Form, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
