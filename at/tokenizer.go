package at

import (
	"bytes"
	"iter"
)

// MaxLineLength bounds a single modem line. Longer lines are discarded whole.
const MaxLineLength = 4096

// Framer splits the raw byte stream coming from a modem into lines.
//
// Lines end at CRLF, at a lone CR (modems terminate the command echo with the
// S3 character only) or at a lone LF. An LF directly following a CR belongs to
// the same terminator, even when the two bytes arrive in different reads, so the
// produced lines do not depend on how the stream was chunked.
//
// Empty lines are dropped unless KeepNextEmpty was called: a message body may
// legitimately be empty and must stay aligned with its header line.
//
// The SMS input prompt ("> ") is not followed by a terminator and is returned
// as a line of its own.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	buf       []byte
	afterCR   bool
	keepEmpty bool
	dropping  bool
	overflows int
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends p to the framer buffer and returns the lines that are complete.
// The sequence is lazy: lines are cut one at a time as the caller ranges over
// it, which lets the caller call KeepNextEmpty between two lines. Bytes not
// consumed (a partial line, or lines left when the caller stops early) stay
// buffered for the next call.
func (f *Framer) Feed(p []byte) iter.Seq[string] {
	f.buf = append(f.buf, p...)
	return func(yield func(string) bool) {
		for {
			line, ok := f.next()
			if !ok || !yield(line) {
				return
			}
		}
	}
}

// KeepNextEmpty makes the next line be returned even if it is empty.
func (f *Framer) KeepNextEmpty() {
	f.keepEmpty = true
}

// Overflows reports how many lines were discarded for exceeding MaxLineLength.
func (f *Framer) Overflows() int {
	return f.overflows
}

// Buffered reports the number of bytes held for an incomplete line.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func (f *Framer) next() (string, bool) {
	for len(f.buf) > 0 {
		if f.afterCR {
			f.afterCR = false
			if f.buf[0] == '\n' {
				f.consume(1)
				continue
			}
		}

		if !f.dropping && bytes.HasPrefix(f.buf, []byte(PromptText)) {
			f.consume(len(PromptText))
			f.keepEmpty = false
			return PromptText, true
		}

		i := bytes.IndexAny(f.buf, CRLF)
		if i < 0 {
			if len(f.buf) > MaxLineLength {
				f.buf = f.buf[:0]
				if !f.dropping {
					f.dropping = true
					f.overflows++
				}
			}
			return "", false
		}

		line := string(f.buf[:i])
		f.afterCR = f.buf[i] == '\r'
		f.consume(i + 1)

		if f.dropping {
			f.dropping = false
			continue
		}
		if len(line) > MaxLineLength {
			f.overflows++
			continue
		}
		if line == "" && !f.keepEmpty {
			continue
		}
		f.keepEmpty = false
		return line, true
	}
	return "", false
}

func (f *Framer) consume(n int) {
	f.buf = f.buf[n:]
	if len(f.buf) == 0 {
		f.buf = f.buf[:0:0]
	}
}
