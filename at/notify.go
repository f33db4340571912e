package at

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationKind identifies an unsolicited result code.
type NotificationKind int

const (
	NotifyRing NotificationKind = iota + 1
	NotifyCallerID
	NotifyCallEnded
	NotifyCallBegin
	NotifyCallEnd
	NotifyMissedCall
	NotifySMSIndex
	NotifySMSPush
	NotifyStatusReport
	NotifyRegistration
	NotifyDTMF
	NotifyStorageFull
)

var kindNames = map[NotificationKind]string{
	NotifyRing:         "ring",
	NotifyCallerID:     "caller-id",
	NotifyCallEnded:    "call-ended",
	NotifyCallBegin:    "call-begin",
	NotifyCallEnd:      "call-end",
	NotifyMissedCall:   "missed-call",
	NotifySMSIndex:     "sms-index",
	NotifySMSPush:      "sms-push",
	NotifyStatusReport: "status-report",
	NotifyRegistration: "registration",
	NotifyDTMF:         "dtmf",
	NotifyStorageFull:  "storage-full",
}

func (k NotificationKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("NotificationKind(%d)", int(k))
}

// Notification is an unsolicited result code with its parsed fields.
type Notification struct {
	Kind NotificationKind
	// Token is the leading token the line was matched on.
	Token string
	// Line is the header line as received.
	Line string
	// Fields are the comma separated parameters following the token, with
	// surrounding quotes removed.
	Fields []string
	// Body is the line following the header, for notifications that carry
	// one (+CMT).
	Body string
	At   time.Time
}

// Field returns the i-th field or "" when absent.
func (n *Notification) Field(i int) string {
	if i < 0 || i >= len(n.Fields) {
		return ""
	}
	return n.Fields[i]
}

// ErrFieldCount is returned when a notification carries fewer parameters than
// its shape requires.
var ErrFieldCount = errors.New("unexpected field count")

// ProtocolError reports a line that matched a known token but not its shape.
type ProtocolError struct {
	Token string
	Line  string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("at: malformed %s line %q: %v", strings.TrimSuffix(e.Token, ":"), e.Line, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotificationRule maps a leading token to its notification kind and parse
// routine.
type NotificationRule struct {
	Token string
	Kind  NotificationKind
	// Exact rules match the whole line instead of a prefix.
	Exact bool
	// Fields is the minimum number of parameters.
	Fields int
	// Body rules are followed by one content line.
	Body bool
	// Check validates the parsed parameters. May be nil.
	Check func(fields []string) error
}

// Parse splits the parameters following the token and validates them.
func (r NotificationRule) Parse(line string) ([]string, error) {
	var fields []string
	if !r.Exact {
		rest, _ := CutPrefixFold(line, r.Token)
		fields = SplitFields(rest)
	}
	if len(fields) < r.Fields {
		return nil, &ProtocolError{Token: r.Token, Line: line,
			Err: fmt.Errorf("%w: want %d, got %d", ErrFieldCount, r.Fields, len(fields))}
	}
	if r.Check != nil {
		if err := r.Check(fields); err != nil {
			return nil, &ProtocolError{Token: r.Token, Line: line, Err: err}
		}
	}
	return fields, nil
}

func (r NotificationRule) match(line string) bool {
	if r.Exact {
		return strings.EqualFold(line, r.Token)
	}
	_, ok := CutPrefixFold(line, r.Token)
	return ok
}

var notificationTable = []NotificationRule{
	{Token: UrcRing, Kind: NotifyRing, Exact: true},
	{Token: UrcCellRing, Kind: NotifyRing, Fields: 1},
	{Token: UrcCallerID, Kind: NotifyCallerID, Fields: 2},
	{Token: NoCarrier, Kind: NotifyCallEnded, Exact: true},
	{Token: Busy, Kind: NotifyCallEnded, Exact: true},
	{Token: NoAnswer, Kind: NotifyCallEnded, Exact: true},
	{Token: UrcCallBegin, Kind: NotifyCallBegin, Exact: true},
	{Token: UrcCallEnd, Kind: NotifyCallEnd, Fields: 1},
	{Token: UrcMissedCall, Kind: NotifyMissedCall, Fields: 1},
	{Token: UrcNewMsg, Kind: NotifySMSIndex, Fields: 2, Check: numericAt(1)},
	{Token: UrcMsgPush, Kind: NotifySMSPush, Fields: 2, Body: true},
	{Token: UrcMessageReport, Kind: NotifyStatusReport, Fields: 2, Check: numericAt(1)},
	{Token: UrcRegistration, Kind: NotifyRegistration, Fields: 1, Check: numericAt(0)},
	{Token: UrcGPRSReg, Kind: NotifyRegistration, Fields: 1, Check: numericAt(0)},
	{Token: UrcEPSReg, Kind: NotifyRegistration, Fields: 1, Check: numericAt(0)},
	{Token: UrcDTMF, Kind: NotifyDTMF, Fields: 1},
	{Token: UrcStorageFull, Kind: NotifyStorageFull, Exact: true},
}

// Notifications returns a copy of the notification table.
func Notifications() []NotificationRule {
	out := make([]NotificationRule, len(notificationTable))
	copy(out, notificationTable)
	return out
}

// LookupNotification returns the rule matching the leading token of line.
func LookupNotification(line string) (NotificationRule, bool) {
	for _, r := range notificationTable {
		if r.match(line) {
			return r, true
		}
	}
	return NotificationRule{}, false
}

func numericAt(i int) func([]string) error {
	return func(fields []string) error {
		if _, err := strconv.Atoi(fields[i]); err != nil {
			return fmt.Errorf("field %d: %w", i+1, err)
		}
		return nil
	}
}

// SplitFields splits an AT parameter list on commas outside double quotes and
// strips the quotes and surrounding blanks. An empty list yields no fields.
func SplitFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		fields []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}
