// Package pdu implements the SMS codecs used over the AT line: hex digit
// pairs, the GSM 03.38 7-bit alphabet, UCS2, semi-octet numbers, BCD
// timestamps and the SMS-DELIVER and SMS-SUBMIT layouts of GSM 03.40.
package pdu

import (
	"encoding/hex"
	"errors"
	"strings"
)

// DecodeHex decodes a string of hex digit pairs. Surrounding blanks are
// ignored and both letter cases are accepted.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s)%2 != 0 {
		return nil, errorf("hex", len(s), ErrOddLength)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		var ie hex.InvalidByteError
		if errors.As(err, &ie) {
			return nil, errorf("hex", strings.IndexByte(s, byte(ie)), ErrInvalidDigit)
		}
		return nil, errorf("hex", -1, err)
	}
	return b, nil
}

// EncodeHex encodes b as upper case hex digit pairs, the form modems expect.
func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// IsHex reports whether s is a non-empty even length string of hex digits.
func IsHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
