package at

import (
	"strconv"
	"strings"
	"time"
)

// Pending is the parser's view of the command currently awaiting its final
// result. It is owned by the command session and handed to Parse explicitly.
type Pending struct {
	command     string
	echo        string
	echoDone    bool
	prefix      string
	withBody    bool
	callControl bool
}

// NewPending derives the echo text, the information response prefix and the
// call control flag from a command line.
func NewPending(cmd string) *Pending {
	cmd = strings.TrimSpace(cmd)
	p := &Pending{command: cmd, echo: cmd}

	upper := strings.ToUpper(cmd)
	switch {
	case strings.HasPrefix(upper, "ATD"), upper == CmdAnswer:
		p.callControl = true
	case strings.HasPrefix(upper, "AT+"):
		name := upper[2:]
		if i := strings.IndexAny(name, "=?"); i >= 0 {
			name = name[:i]
		}
		p.prefix = name + ":"
		p.withBody = p.prefix == RespReadMsg || p.prefix == RespListMsg
	}
	return p
}

// Command returns the command text.
func (p *Pending) Command() string { return p.command }

// ResponsePrefix returns the information response prefix ("+CNMI:" for
// "AT+CNMI?"), or "" when the command has none.
func (p *Pending) ResponsePrefix() string { return p.prefix }

// CallControl reports whether the command is a dial or answer.
func (p *Pending) CallControl() bool { return p.callControl }

// ExpectEcho re-arms echo recognition for text written after the command line,
// such as a message body typed at the prompt.
func (p *Pending) ExpectEcho(text string) {
	p.echo = strings.TrimSpace(text)
	p.echoDone = false
}

func (p *Pending) isEcho(line string) bool {
	if p.echoDone || p.echo == "" {
		return false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, PromptText))
	line = strings.TrimRight(line, CtrlZ+Esc)
	return strings.EqualFold(line, p.echo)
}

// Parser classifies framed lines. It keeps only the state needed to pair a
// header line with the content line that follows it. A Parser is not safe for
// concurrent use.
type Parser struct {
	now      func() time.Time
	header   *Notification
	dataBody bool
}

// NewParser returns a Parser stamping events with now, or time.Now if nil.
func NewParser(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now}
}

// WantsBody reports whether the next line is a content line that belongs to
// the previous one. The framer must then keep it even when it is empty.
func (p *Parser) WantsBody() bool {
	return p.header != nil || p.dataBody
}

// Parse classifies one line against the pending command, which may be nil.
// It returns nil when the line produced nothing to route yet (a blank line or
// the header of a notification whose content follows).
func (p *Parser) Parse(line string, pending *Pending) Event {
	if n := p.header; n != nil {
		p.header = nil
		n.Body = line
		return n
	}
	if p.dataBody {
		p.dataBody = false
		return &Data{Text: line}
	}
	if line == PromptText {
		return &Prompt{}
	}

	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}

	if pending != nil && pending.isEcho(text) {
		pending.echoDone = true
		return &Echo{Text: text}
	}

	if f := p.final(text, pending); f != nil {
		if pending != nil {
			pending.echoDone = true
		}
		return f
	}

	if pending != nil && pending.prefix != "" {
		if _, ok := CutPrefixFold(text, pending.prefix); ok {
			pending.echoDone = true
			p.dataBody = pending.withBody
			return &Data{Text: text}
		}
	}

	if rule, ok := LookupNotification(text); ok {
		fields, err := rule.Parse(text)
		if err != nil {
			return &Invalid{Text: text, Err: err}
		}
		n := &Notification{
			Kind:   rule.Kind,
			Token:  rule.Token,
			Line:   text,
			Fields: fields,
			At:     p.now(),
		}
		if rule.Body {
			p.header = n
			return nil
		}
		return n
	}

	if pending != nil {
		pending.echoDone = true
	}
	return &Data{Text: text}
}

var callFinals = map[string]Status{
	NoCarrier:  StatusNoCarrier,
	Busy:       StatusBusy,
	NoAnswer:   StatusNoAnswer,
	NoDialtone: StatusNoDialtone,
}

func (p *Parser) final(text string, pending *Pending) *Final {
	f := &Final{Code: -1, Text: text}
	switch {
	case strings.EqualFold(text, OK):
		f.Status = StatusOK
	case strings.EqualFold(text, ERROR):
		f.Status = StatusError
	default:
		if rest, ok := CutPrefixFold(text, CmeError); ok {
			f.Status, f.Code = StatusCMEError, errorCode(rest)
			break
		}
		if rest, ok := CutPrefixFold(text, CmsError); ok {
			f.Status, f.Code = StatusCMSError, errorCode(rest)
			break
		}
		if pending == nil || !pending.callControl {
			return nil
		}
		s, ok := callFinals[strings.ToUpper(text)]
		if !ok {
			return nil
		}
		f.Status = s
	}
	f.At = p.now()
	return f
}

func errorCode(s string) int {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return code
}
