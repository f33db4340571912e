package pdu

import (
	"strings"
	"time"
)

// Type of address octets.
const (
	TOAInternational byte = 0x91
	TOAUnknown       byte = 0x81
	TOAAlphanumeric  byte = 0xD0
)

const semiOctetDigits = "0123456789*#abc"

// EncodeSemiOctets packs a digit string two digits per octet, low nibble
// first, padding an odd count with F.
func EncodeSemiOctets(digits string) ([]byte, error) {
	out := make([]byte, (len(digits)+1)/2)
	for i := 0; i < len(digits); i++ {
		v := strings.IndexByte(semiOctetDigits, digits[i])
		if v < 0 {
			return nil, errorf("semi-octets", i, ErrInvalidDigit)
		}
		if i%2 == 0 {
			out[i/2] = byte(v)
		} else {
			out[i/2] |= byte(v) << 4
		}
	}
	if len(digits)%2 != 0 {
		out[len(out)-1] |= 0xF0
	}
	return out, nil
}

// DecodeSemiOctets unpacks n digits from b. The pad nibble F is accepted only
// in the final position of an odd count.
func DecodeSemiOctets(b []byte, n int) (string, error) {
	if len(b) < (n+1)/2 {
		return "", errorf("semi-octets", len(b), ErrTruncated)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v := b[i/2]
		if i%2 != 0 {
			v >>= 4
		}
		v &= 0x0F
		if v == 0x0F {
			return "", errorf("semi-octets", i/2, ErrInvalidDigit)
		}
		sb.WriteByte(semiOctetDigits[v])
	}
	if n%2 != 0 && b[n/2]>>4 != 0x0F {
		return "", errorf("semi-octets", n/2, ErrInvalidDigit)
	}
	return sb.String(), nil
}

// EncodeAddress encodes a phone number as an address field: digit count,
// type of address and semi-octets. A leading + selects the international
// type.
func EncodeAddress(number string) ([]byte, error) {
	toa := TOAUnknown
	digits := number
	if rest, ok := strings.CutPrefix(number, "+"); ok {
		toa, digits = TOAInternational, rest
	}
	if digits == "" || len(digits) > 20 {
		return nil, errorf("address", -1, ErrUnencodable)
	}
	so, err := EncodeSemiOctets(digits)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(len(digits)), toa}, so...), nil
}

// DecodeAddress decodes an address field at the start of b and returns the
// number, its type of address and the count of octets consumed.
func DecodeAddress(b []byte) (string, byte, int, error) {
	if len(b) < 2 {
		return "", 0, 0, errorf("address", 0, ErrTruncated)
	}
	n, toa := int(b[0]), b[1]
	size := 2 + (n+1)/2
	if len(b) < size {
		return "", 0, 0, errorf("address", len(b), ErrTruncated)
	}
	field := b[2:size]

	if toa&0x70 == 0x50 {
		septets, err := Unpack7Bit(field, n*4/7, 0)
		if err != nil {
			return "", 0, 0, err
		}
		text, err := DecodeGSM7(septets)
		if err != nil {
			return "", 0, 0, err
		}
		return text, toa, size, nil
	}

	digits, err := DecodeSemiOctets(field, n)
	if err != nil {
		return "", 0, 0, err
	}
	if toa&0x70 == 0x10 {
		digits = "+" + digits
	}
	return digits, toa, size, nil
}

func bcd(v byte) (int, bool) {
	lo, hi := int(v&0x0F), int(v>>4)
	if lo > 9 || hi > 9 {
		return 0, false
	}
	return lo*10 + hi, true
}

// DecodeTimestamp decodes the seven octet service centre timestamp. Years are
// taken as 2000 + YY. The zone is given in quarter hours with its sign in
// bit 3 of the last octet.
func DecodeTimestamp(b []byte) (time.Time, error) {
	if len(b) < 7 {
		return time.Time{}, errorf("timestamp", len(b), ErrTruncated)
	}
	var v [6]int
	for i := range v {
		d, ok := bcd(b[i])
		if !ok {
			return time.Time{}, errorf("timestamp", i, ErrInvalidDigit)
		}
		v[i] = d
	}
	if v[1] < 1 || v[1] > 12 || v[2] < 1 || v[2] > 31 || v[3] > 23 || v[4] > 59 || v[5] > 59 {
		return time.Time{}, errorf("timestamp", 0, ErrInvalidDigit)
	}
	tz := b[6]
	quarters, ok := bcd(tz &^ 0x08)
	if !ok {
		return time.Time{}, errorf("timestamp", 6, ErrInvalidDigit)
	}
	offset := quarters * 15 * 60
	if tz&0x08 != 0 {
		offset = -offset
	}
	return time.Date(2000+v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, zone(offset)), nil
}

// EncodeTimestamp encodes t in its own zone.
func EncodeTimestamp(t time.Time) []byte {
	_, offset := t.Zone()
	sign := byte(0)
	if offset < 0 {
		sign, offset = 0x08, -offset
	}
	swap := func(n int) byte { return byte(n%10)<<4 | byte(n/10) }
	return []byte{
		swap(t.Year() % 100),
		swap(int(t.Month())),
		swap(t.Day()),
		swap(t.Hour()),
		swap(t.Minute()),
		swap(t.Second()),
		swap(offset/900) | sign,
	}
}

func zone(offset int) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", offset)
}
