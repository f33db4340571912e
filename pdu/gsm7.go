package pdu

import "strings"

const esc = 0x1B

// GSM 03.38 default alphabet, indexed by septet.
var gsm7Default = []rune("@£$¥èéùìòÇ\nØø\rÅå" +
	"Δ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ" +
	" !\"#¤%&'()*+,-./" +
	"0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§" +
	"¿abcdefghijklmnopqrstuvwxyzäöñüà")

// Extension table reached through the escape septet.
var gsm7Extension = map[byte]rune{
	0x0A: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2F: '\\',
	0x3C: '[',
	0x3D: '~',
	0x3E: ']',
	0x40: '|',
	0x65: '€',
}

var (
	gsm7Encode    = map[rune]byte{}
	gsm7EncodeExt = map[rune]byte{}
)

func init() {
	for i, r := range gsm7Default {
		if i != esc {
			gsm7Encode[r] = byte(i)
		}
	}
	for s, r := range gsm7Extension {
		gsm7EncodeExt[r] = s
	}
}

// EncodeGSM7 maps text to GSM 7-bit septets, using escape sequences for the
// extension table.
func EncodeGSM7(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	i := 0
	for _, r := range text {
		if s, ok := gsm7Encode[r]; ok {
			out = append(out, s)
		} else if s, ok := gsm7EncodeExt[r]; ok {
			out = append(out, esc, s)
		} else {
			return nil, errorf("gsm7", i, ErrUnencodable)
		}
		i++
	}
	return out, nil
}

// IsGSM7 reports whether text can be encoded in the GSM 7-bit alphabet.
func IsGSM7(text string) bool {
	for _, r := range text {
		if _, ok := gsm7Encode[r]; ok {
			continue
		}
		if _, ok := gsm7EncodeExt[r]; !ok {
			return false
		}
	}
	return true
}

// DecodeGSM7 maps septets to text. An escape followed by a septet with no
// extension meaning decodes as the default character of that septet.
func DecodeGSM7(septets []byte) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(septets); i++ {
		s := septets[i]
		if s > 0x7F {
			return "", errorf("gsm7", i, ErrInvalidDigit)
		}
		if s != esc {
			sb.WriteRune(gsm7Default[s])
			continue
		}
		if i+1 == len(septets) {
			sb.WriteByte(' ')
			break
		}
		i++
		next := septets[i]
		if next > 0x7F {
			return "", errorf("gsm7", i, ErrInvalidDigit)
		}
		if r, ok := gsm7Extension[next]; ok {
			sb.WriteRune(r)
		} else if next != esc {
			sb.WriteRune(gsm7Default[next])
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String(), nil
}

// Pack7Bit packs septets into octets, least significant bit first, after
// fillBits zero bits of padding.
func Pack7Bit(septets []byte, fillBits int) []byte {
	out := make([]byte, (fillBits+7*len(septets)+7)/8)
	for i, s := range septets {
		bit := fillBits + 7*i
		idx, off := bit/8, uint(bit%8)
		s &= 0x7F
		out[idx] |= s << off
		if off > 1 {
			out[idx+1] |= s >> (8 - off)
		}
	}
	return out
}

// Unpack7Bit extracts n septets from data, skipping fillBits leading bits.
func Unpack7Bit(data []byte, n, fillBits int) ([]byte, error) {
	if n < 0 || fillBits < 0 {
		return nil, errorf("septets", -1, ErrLengthMismatch)
	}
	if need := (fillBits + 7*n + 7) / 8; len(data) < need {
		return nil, errorf("septets", len(data), ErrTruncated)
	}
	out := make([]byte, n)
	for i := range out {
		bit := fillBits + 7*i
		idx, off := bit/8, uint(bit%8)
		v := data[idx] >> off
		if off > 1 {
			v |= data[idx+1] << (8 - off)
		}
		out[i] = v & 0x7F
	}
	return out, nil
}
