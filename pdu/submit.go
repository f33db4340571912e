package pdu

import "fmt"

// Per-part capacities of a single and of a concatenated message.
const (
	MaxGSM7Septets       = 160
	MaxGSM7ConcatSeptets = 153
	MaxUCS2Units         = 70
	MaxUCS2ConcatUnits   = 67
	MaxParts             = 255
)

// Submit is one encoded SMS-SUBMIT ready for AT+CMGS in PDU mode.
type Submit struct {
	// PDU is the hex encoding including an empty service centre field.
	PDU string
	// TPDULength is the AT+CMGS length argument.
	TPDULength int
}

// EncodeSubmit encodes text for number as one or more SMS-SUBMIT PDUs. The
// GSM 7-bit alphabet is used when it can represent the text, UCS2 otherwise.
// Text that does not fit one message is split into parts carrying a
// concatenation header with reference ref.
func EncodeSubmit(number, text string, ref byte) ([]Submit, error) {
	addr, err := EncodeAddress(number)
	if err != nil {
		return nil, err
	}

	if septets, err := EncodeGSM7(text); err == nil {
		chunks := splitSeptets(septets)
		if len(chunks) > MaxParts {
			return nil, errorf("text", -1, fmt.Errorf("%w: %d parts", ErrUnencodable, len(chunks)))
		}
		out := make([]Submit, len(chunks))
		for i, c := range chunks {
			var udh []byte
			if len(chunks) > 1 {
				udh = concatHeader(ref, len(chunks), i+1)
			}
			out[i] = submitGSM7(addr, c, udh)
		}
		return out, nil
	}

	units, err := EncodeUCS2(text)
	if err != nil {
		return nil, err
	}
	chunks := splitUCS2(units)
	if len(chunks) > MaxParts {
		return nil, errorf("text", -1, fmt.Errorf("%w: %d parts", ErrUnencodable, len(chunks)))
	}
	out := make([]Submit, len(chunks))
	for i, c := range chunks {
		var udh []byte
		if len(chunks) > 1 {
			udh = concatHeader(ref, len(chunks), i+1)
		}
		out[i] = submit(addr, 0x08, len(udh)+len(c), append(udh, c...), udh != nil)
	}
	return out, nil
}

func concatHeader(ref byte, total, seq int) []byte {
	return []byte{0x05, 0x00, 0x03, ref, byte(total), byte(seq)}
}

func submitGSM7(addr, septets, udh []byte) Submit {
	if udh == nil {
		return submit(addr, 0x00, len(septets), Pack7Bit(septets, 0), false)
	}
	skip := (len(udh)*8 + 6) / 7
	fill := skip*7 - len(udh)*8
	ud := append(udh, Pack7Bit(septets, fill)...)
	return submit(addr, 0x00, skip+len(septets), ud, true)
}

func submit(addr []byte, dcs byte, udl int, ud []byte, hasUDH bool) Submit {
	first := byte(0x01)
	if hasUDH {
		first |= 0x40
	}
	b := []byte{0x00, first, 0x00}
	b = append(b, addr...)
	b = append(b, 0x00, dcs, byte(udl))
	b = append(b, ud...)
	return Submit{PDU: EncodeHex(b), TPDULength: len(b) - 1}
}

// splitSeptets cuts septets into parts without separating an escape from the
// septet it modifies.
func splitSeptets(s []byte) [][]byte {
	if len(s) <= MaxGSM7Septets {
		return [][]byte{s}
	}
	var parts [][]byte
	for len(s) > 0 {
		n := min(MaxGSM7ConcatSeptets, len(s))
		if n < len(s) && s[n-1] == esc && !escaped(s, n-1) {
			n--
		}
		parts = append(parts, s[:n])
		s = s[n:]
	}
	return parts
}

// escaped reports whether s[i] is the second septet of an escape sequence.
func escaped(s []byte, i int) bool {
	run := 0
	for j := i - 1; j >= 0 && s[j] == esc; j-- {
		run++
	}
	return run%2 == 1
}

// splitUCS2 cuts code units into parts without separating a surrogate pair.
func splitUCS2(b []byte) [][]byte {
	if len(b)/2 <= MaxUCS2Units {
		return [][]byte{b}
	}
	var parts [][]byte
	for len(b) > 0 {
		n := min(MaxUCS2ConcatUnits*2, len(b))
		if n < len(b) && b[n-2]&0xFC == 0xD8 {
			n -= 2
		}
		parts = append(parts, b[:n])
		b = b[n:]
	}
	return parts
}
