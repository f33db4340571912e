package pdu

import (
	"errors"
	"fmt"
)

var (
	// ErrOddLength is returned when a hex string or UCS2 byte sequence has an
	// odd length.
	ErrOddLength = errors.New("odd length")

	// ErrTruncated is returned when a field extends past the end of the data.
	ErrTruncated = errors.New("truncated data")

	// ErrInvalidDigit is returned for a character that is not a hex or
	// semi-octet digit.
	ErrInvalidDigit = errors.New("invalid digit")

	// ErrUnsupportedDCS is returned for compressed or reserved data coding
	// schemes.
	ErrUnsupportedDCS = errors.New("unsupported data coding scheme")

	// ErrNotDeliver is returned when a PDU is not an SMS-DELIVER.
	ErrNotDeliver = errors.New("not an SMS-DELIVER")

	// ErrLengthMismatch is returned when a declared length disagrees with the
	// data that follows it.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrUnencodable is returned when text or a number cannot be represented
	// in the requested encoding.
	ErrUnencodable = errors.New("unencodable")
)

// DecodeError reports which field of an encoded message could not be handled.
type DecodeError struct {
	Field string
	// Offset is the byte offset of the field, or -1 when not applicable.
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("pdu: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("pdu: %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func errorf(field string, offset int, err error) error {
	return &DecodeError{Field: field, Offset: offset, Err: err}
}
