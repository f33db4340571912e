package sms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"i4.energy/across/ltemodem/at"
	"i4.energy/across/ltemodem/pdu"
)

var (
	// ErrMissingBody is returned when a header line has no content line.
	ErrMissingBody = errors.New("missing body line")

	// ErrHeader is returned for a header with an unexpected shape.
	ErrHeader = errors.New("malformed header")

	// ErrTimestamp is returned for an unparseable text mode timestamp.
	ErrTimestamp = errors.New("malformed timestamp")
)

// Decoder turns modem responses into Messages. The zero value decodes with
// CharsetAuto.
type Decoder struct {
	Charset Charset
}

// FromPush decodes a +CMT notification from its parameter fields and content
// line. Two fields (<alpha>,<length>) denote PDU mode.
func (d Decoder) FromPush(fields []string, body string) (*Message, error) {
	raw := strings.Join(fields, ",") + "\n" + body
	if len(fields) == 2 {
		if n, err := strconv.Atoi(fields[1]); err == nil {
			return d.FromPDU(body, n)
		}
	}
	if len(fields) < 3 {
		return nil, &DecodeError{Form: "text", Raw: raw, Err: ErrHeader}
	}
	m, err := d.fromText(fields[0], fields[2], body)
	if err != nil {
		return nil, &DecodeError{Form: "text", Raw: raw, Err: err}
	}
	return m, nil
}

// FromRead decodes the intermediate lines of an AT+CMGR response.
func (d Decoder) FromRead(lines []string, index int) (*Message, error) {
	header, body, err := headerAndBody(lines, at.RespReadMsg)
	if err != nil {
		return nil, &DecodeError{Form: "read", Raw: strings.Join(lines, "\n"), Err: err}
	}
	m, err := d.entry(header, body, false)
	if err != nil {
		return nil, err
	}
	m.Index, m.Stored = index, true
	return m, nil
}

// FromList decodes the header and body pairs of an AT+CMGL response. Entries
// that fail to decode are reported in the joined error while the others are
// returned.
func (d Decoder) FromList(lines []string) ([]*Message, error) {
	var (
		out  []*Message
		errs []error
	)
	for i := 0; i < len(lines); i++ {
		rest, ok := at.CutPrefixFold(lines[i], at.RespListMsg)
		if !ok {
			continue
		}
		if i+1 >= len(lines) {
			errs = append(errs, &DecodeError{Form: "list", Raw: lines[i], Err: ErrMissingBody})
			break
		}
		i++
		m, err := d.entry(strings.TrimSpace(rest), lines[i], true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errors.Join(errs...)
}

// FromPDU decodes a hex SMS-DELIVER. A positive tpduLen must match the
// decoded TPDU length.
func (d Decoder) FromPDU(hex string, tpduLen int) (*Message, error) {
	hex = strings.TrimSpace(hex)
	dl, err := pdu.ParseDeliver(hex)
	if err != nil {
		return nil, &DecodeError{Form: "pdu", Raw: hex, Err: err}
	}
	if tpduLen > 0 && dl.TPDULength != tpduLen {
		return nil, &DecodeError{Form: "pdu", Raw: hex,
			Err: fmt.Errorf("%w: header says %d octets, got %d", pdu.ErrLengthMismatch, tpduLen, dl.TPDULength)}
	}
	return &Message{
		Sender:   dl.Sender,
		Time:     dl.Time,
		Encoding: dl.Alphabet,
		Text:     dl.Text,
		Mode:     ModePDU,
		Concat:   dl.Concat,
	}, nil
}

// entry decodes one read or list entry. List headers lead with the index.
func (d Decoder) entry(header, body string, listed bool) (*Message, error) {
	raw := header + "\n" + body
	fields := at.SplitFields(header)
	index := -1
	if listed {
		if len(fields) == 0 {
			return nil, &DecodeError{Form: "list", Raw: raw, Err: ErrHeader}
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &DecodeError{Form: "list", Raw: raw, Err: ErrHeader}
		}
		index, fields = n, fields[1:]
	}
	if len(fields) == 0 {
		return nil, &DecodeError{Form: "read", Raw: raw, Err: ErrHeader}
	}

	var (
		m   *Message
		err error
	)
	if _, numErr := strconv.Atoi(fields[0]); numErr == nil {
		// <stat>,[<alpha>],<length>
		n, lenErr := strconv.Atoi(fields[len(fields)-1])
		if len(fields) < 2 || lenErr != nil {
			return nil, &DecodeError{Form: "pdu", Raw: raw, Err: ErrHeader}
		}
		if m, err = d.FromPDU(body, n); err != nil {
			return nil, err
		}
	} else {
		// <stat>,<oa>,[<alpha>],<scts>
		if len(fields) < 4 {
			return nil, &DecodeError{Form: "text", Raw: raw, Err: ErrHeader}
		}
		if m, err = d.fromText(fields[1], fields[3], body); err != nil {
			return nil, &DecodeError{Form: "text", Raw: raw, Err: err}
		}
	}
	m.Status = fields[0]
	if index >= 0 {
		m.Index, m.Stored = index, true
	}
	return m, nil
}

func (d Decoder) fromText(sender, stamp, body string) (*Message, error) {
	text, enc, err := d.decodeText(body)
	if err != nil {
		return nil, err
	}
	num, err := d.decodeNumber(sender)
	if err != nil {
		return nil, err
	}
	ts, err := ParseTimestamp(stamp)
	if err != nil {
		return nil, err
	}
	return &Message{
		Sender:   num,
		Time:     ts,
		Encoding: enc,
		Text:     text,
		Mode:     ModeText,
	}, nil
}

func (d Decoder) decodeText(body string) (string, pdu.Alphabet, error) {
	switch d.Charset {
	case CharsetUCS2:
		s, err := pdu.DecodeUCS2Hex(body)
		if err != nil {
			return "", 0, err
		}
		return s, pdu.UCS2, nil
	case CharsetAuto:
		if looksUCS2(body) {
			if s, err := pdu.DecodeUCS2Hex(body); err == nil && printable(s) {
				return s, pdu.UCS2, nil
			}
		}
	}
	return body, pdu.GSM7, nil
}

func (d Decoder) decodeNumber(s string) (string, error) {
	if d.Charset == CharsetUCS2 || d.Charset == CharsetAuto && looksUCS2(s) {
		n, err := pdu.DecodeUCS2Hex(s)
		if err == nil && isNumber(n) {
			return n, nil
		}
		if d.Charset == CharsetUCS2 {
			if err == nil {
				err = fmt.Errorf("%w: sender %q", ErrHeader, n)
			}
			return "", err
		}
	}
	return s, nil
}

// looksUCS2 reports whether s is hex text holding whole code units and is not
// a plain decimal number.
func looksUCS2(s string) bool {
	if len(s) < 4 || len(s)%4 != 0 || !pdu.IsHex(s) {
		return false
	}
	return strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' }) ||
		strings.HasPrefix(s, "00")
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '+' && i == 0 || r >= '0' && r <= '9' || r == '*' || r == '#' {
			continue
		}
		return false
	}
	return true
}

// ParseTimestamp parses a text mode timestamp "yy/MM/dd,hh:mm:ss±zz" where
// the zone is in quarter hours. The zone may be omitted.
func ParseTimestamp(s string) (time.Time, error) {
	const layout = "06/01/02,15:04:05"
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if len(s) < len(layout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestamp, s)
	}
	base, err := time.Parse(layout, s[:len(layout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimestamp, s, err)
	}
	loc := time.UTC
	if zs := s[len(layout):]; zs != "" {
		q, err := strconv.Atoi(zs)
		if err != nil || (zs[0] != '+' && zs[0] != '-') || q < -48 || q > 56 {
			return time.Time{}, fmt.Errorf("%w: zone %q", ErrTimestamp, zs)
		}
		if q != 0 {
			loc = time.FixedZone("", q*15*60)
		}
	}
	return time.Date(base.Year(), base.Month(), base.Day(), base.Hour(), base.Minute(), base.Second(), 0, loc), nil
}

func headerAndBody(lines []string, prefix string) (string, string, error) {
	for i, l := range lines {
		rest, ok := at.CutPrefixFold(l, prefix)
		if !ok {
			continue
		}
		if i+1 >= len(lines) {
			return "", "", ErrMissingBody
		}
		return strings.TrimSpace(rest), lines[i+1], nil
	}
	return "", "", fmt.Errorf("%w: no %s line", ErrHeader, strings.TrimSuffix(prefix, ":"))
}
