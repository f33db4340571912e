package at

import (
	"fmt"
	"strings"
	"time"
)

// Event is the classification of one modem line. It is implemented by *Echo,
// *Final, *Data, *Prompt, *Notification and *Invalid.
type Event interface {
	event()
}

// Echo is the modem repeating the command that was just sent.
type Echo struct {
	Text string
}

// Data is an intermediate line belonging to the pending command's response.
type Data struct {
	Text string
}

// Prompt is the "> " request for message body input.
type Prompt struct{}

// Invalid is a line that carried a known notification token but could not be
// parsed against its shape.
type Invalid struct {
	Text string
	Err  error
}

// Status is the outcome carried by a final result line.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusCMEError
	StatusCMSError
	StatusNoCarrier
	StatusBusy
	StatusNoAnswer
	StatusNoDialtone
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusCMEError:
		return "CME ERROR"
	case StatusCMSError:
		return "CMS ERROR"
	case StatusNoCarrier:
		return "NO CARRIER"
	case StatusBusy:
		return "BUSY"
	case StatusNoAnswer:
		return "NO ANSWER"
	case StatusNoDialtone:
		return "NO DIALTONE"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Final terminates the response of a command.
type Final struct {
	Status Status
	// Code is the numeric +CME/+CMS error code, or -1 when the modem
	// reported the error verbosely or the status carries no code.
	Code int
	// Text is the line as received.
	Text string
	// At is the classification time.
	At time.Time
}

// Result is a completed command response: the final result together with the
// intermediate lines that preceded it.
type Result struct {
	Final
	Command string
	Lines   []string
}

// OK reports whether the command succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Payload returns the intermediate lines starting with prefix, with the prefix
// and the following blank trimmed.
func (r *Result) Payload(prefix string) []string {
	var out []string
	for _, l := range r.Lines {
		if rest, ok := CutPrefixFold(l, prefix); ok {
			out = append(out, strings.TrimSpace(rest))
		}
	}
	return out
}

// First returns the first intermediate line, or "" when there is none.
func (r *Result) First() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

func (*Echo) event()         {}
func (*Data) event()         {}
func (*Prompt) event()       {}
func (*Invalid) event()      {}
func (*Final) event()        {}
func (*Notification) event() {}

// CutPrefixFold is strings.CutPrefix with ASCII case folding.
func CutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
