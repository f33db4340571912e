package pdu

import (
	"fmt"
	"time"
)

// Concat identifies one part of a concatenated message.
type Concat struct {
	Ref   int
	Total int
	Seq   int
}

// Deliver is a decoded SMS-DELIVER.
type Deliver struct {
	SMSC      string
	Sender    string
	SenderTOA byte
	PID       byte
	DCS       byte
	Alphabet  Alphabet
	Time      time.Time
	Text      string
	// Concat is set when the user data header carries a concatenation
	// element.
	Concat *Concat
	// TPDULength is the octet count after the service centre field, the
	// length the modem reports in +CMGR, +CMGL and +CMT headers.
	TPDULength int
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) take(field string, n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, errorf(field, r.pos, ErrTruncated)
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) octet(field string) (byte, error) {
	v, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ParseDeliver decodes a hex encoded SMS-DELIVER including its leading
// service centre field. Data following the declared user data is rejected.
func ParseDeliver(s string) (*Deliver, error) {
	data, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	r := &reader{b: data}
	d := &Deliver{}

	smscLen, err := r.octet("smsc length")
	if err != nil {
		return nil, err
	}
	if smscLen > 0 {
		smsc, err := r.take("smsc", int(smscLen))
		if err != nil {
			return nil, err
		}
		if d.SMSC, err = decodeSMSC(smsc); err != nil {
			return nil, wrapAt(err, "smsc", 1)
		}
	}
	tpduStart := r.pos
	d.TPDULength = len(data) - tpduStart

	first, err := r.octet("first octet")
	if err != nil {
		return nil, err
	}
	if first&0x03 != 0 {
		return nil, errorf("first octet", tpduStart, ErrNotDeliver)
	}
	hasUDH := first&0x40 != 0

	addrStart := r.pos
	d.Sender, d.SenderTOA, err = decodeAddressAt(r)
	if err != nil {
		return nil, wrapAt(err, "sender", addrStart)
	}

	if d.PID, err = r.octet("pid"); err != nil {
		return nil, err
	}
	if d.DCS, err = r.octet("dcs"); err != nil {
		return nil, err
	}
	if d.Alphabet, err = AlphabetFromDCS(d.DCS); err != nil {
		return nil, errorf("dcs", r.pos-1, ErrUnsupportedDCS)
	}

	tsStart := r.pos
	ts, err := r.take("timestamp", 7)
	if err != nil {
		return nil, err
	}
	if d.Time, err = DecodeTimestamp(ts); err != nil {
		return nil, wrapAt(err, "timestamp", tsStart)
	}

	udl, err := r.octet("user data length")
	if err != nil {
		return nil, err
	}
	udStart := r.pos
	ud := data[udStart:]

	size := int(udl)
	if d.Alphabet == GSM7 {
		size = (int(udl)*7 + 7) / 8
	}
	if len(ud) < size {
		return nil, errorf("user data", udStart, ErrTruncated)
	}
	if len(ud) > size {
		return nil, errorf("user data", udStart+size,
			fmt.Errorf("%w: %d trailing octets", ErrLengthMismatch, len(ud)-size))
	}

	headerLen := 0
	if hasUDH {
		if len(ud) == 0 {
			return nil, errorf("user data header", udStart, ErrTruncated)
		}
		headerLen = 1 + int(ud[0])
		if headerLen > len(ud) {
			return nil, errorf("user data header", udStart, ErrTruncated)
		}
		if d.Concat, err = parseUDH(ud[1:headerLen]); err != nil {
			return nil, wrapAt(err, "user data header", udStart+1)
		}
	}

	switch d.Alphabet {
	case GSM7:
		skip := (headerLen*8 + 6) / 7
		fill := skip*7 - headerLen*8
		if skip > int(udl) {
			return nil, errorf("user data", udStart, ErrLengthMismatch)
		}
		septets, err := Unpack7Bit(ud[headerLen:], int(udl)-skip, fill)
		if err != nil {
			return nil, wrapAt(err, "user data", udStart+headerLen)
		}
		if d.Text, err = DecodeGSM7(septets); err != nil {
			return nil, wrapAt(err, "user data", udStart+headerLen)
		}
	case UCS2:
		if d.Text, err = DecodeUCS2(ud[headerLen:]); err != nil {
			return nil, wrapAt(err, "user data", udStart+headerLen)
		}
	case Data8Bit:
		d.Text = decode8Bit(ud[headerLen:])
	}
	return d, nil
}

func decodeSMSC(b []byte) (string, error) {
	if len(b) < 1 {
		return "", errorf("smsc", 0, ErrTruncated)
	}
	toa, digits := b[0], b[1:]
	n := 2 * len(digits)
	if n > 0 && digits[len(digits)-1]>>4 == 0x0F {
		n--
	}
	num, err := DecodeSemiOctets(digits, n)
	if err != nil {
		return "", err
	}
	if toa&0x70 == 0x10 && num != "" {
		num = "+" + num
	}
	return num, nil
}

func decodeAddressAt(r *reader) (string, byte, error) {
	num, toa, n, err := DecodeAddress(r.b[r.pos:])
	if err != nil {
		return "", 0, err
	}
	r.pos += n
	return num, toa, nil
}

func parseUDH(h []byte) (*Concat, error) {
	var c *Concat
	for i := 0; i < len(h); {
		if i+2 > len(h) {
			return nil, errorf("information element", i, ErrTruncated)
		}
		iei, l := h[i], int(h[i+1])
		body := h[i+2:]
		if l > len(body) {
			return nil, errorf("information element", i, ErrTruncated)
		}
		body = body[:l]
		switch {
		case iei == 0x00 && l == 3:
			c = &Concat{Ref: int(body[0]), Total: int(body[1]), Seq: int(body[2])}
		case iei == 0x08 && l == 4:
			c = &Concat{Ref: int(body[0])<<8 | int(body[1]), Total: int(body[2]), Seq: int(body[3])}
		}
		i += 2 + l
	}
	if c != nil && (c.Total == 0 || c.Seq == 0 || c.Seq > c.Total) {
		return nil, errorf("concatenation", -1, ErrLengthMismatch)
	}
	return c, nil
}

// wrapAt rebases the offset of a nested DecodeError onto the enclosing data.
func wrapAt(err error, field string, base int) error {
	de, ok := err.(*DecodeError)
	if !ok {
		return errorf(field, base, err)
	}
	off := base
	if de.Offset >= 0 {
		off += de.Offset
	}
	return &DecodeError{Field: field + " " + de.Field, Offset: off, Err: de.Err}
}
