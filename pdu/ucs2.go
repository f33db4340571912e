package pdu

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// EncodeUCS2 encodes text as big endian UTF-16 code units. Characters outside
// the basic multilingual plane become surrogate pairs, as handsets do.
func EncodeUCS2(text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, errorf("ucs2", -1, ErrUnencodable)
	}
	b, err := ucs2.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, errorf("ucs2", -1, err)
	}
	return b, nil
}

// DecodeUCS2 decodes big endian UTF-16 code units.
func DecodeUCS2(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errorf("ucs2", len(b), ErrOddLength)
	}
	out, err := ucs2.NewDecoder().Bytes(b)
	if err != nil {
		return "", errorf("ucs2", -1, err)
	}
	return string(out), nil
}

// EncodeUCS2Hex is EncodeUCS2 rendered as hex digit pairs.
func EncodeUCS2Hex(text string) (string, error) {
	b, err := EncodeUCS2(text)
	if err != nil {
		return "", err
	}
	return EncodeHex(b), nil
}

// DecodeUCS2Hex decodes hex digit pairs holding UTF-16BE code units.
func DecodeUCS2Hex(s string) (string, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return "", err
	}
	if len(b)%2 != 0 {
		return "", errorf("ucs2", len(b), ErrOddLength)
	}
	return DecodeUCS2(b)
}

// UCS2Units returns the number of UTF-16 code units text occupies.
func UCS2Units(text string) int {
	n := 0
	for _, r := range text {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// decode8Bit keeps 8-bit user data that is valid UTF-8 and reads anything
// else as ISO-8859-1.
func decode8Bit(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
