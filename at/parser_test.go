package at_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"i4.energy/across/ltemodem/at"
)

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newParser() *at.Parser {
	return at.NewParser(func() time.Time { return fixedNow })
}

func TestNewPending(t *testing.T) {
	tests := []struct {
		cmd         string
		prefix      string
		callControl bool
	}{
		{cmd: "AT+CNMI?", prefix: "+CNMI:"},
		{cmd: "AT+CMGR=3", prefix: "+CMGR:"},
		{cmd: "AT+CSQ", prefix: "+CSQ:"},
		{cmd: "at+creg?", prefix: "+CREG:"},
		{cmd: "AT+CMGS=\"+123\"", prefix: "+CMGS:"},
		{cmd: "ATI"},
		{cmd: "ATE0"},
		{cmd: "ATD+8613800138000;", callControl: true},
		{cmd: "ATA", callControl: true},
		{cmd: "ATH"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			p := at.NewPending(tt.cmd)
			if p.ResponsePrefix() != tt.prefix {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, p.ResponsePrefix())
			}
			if p.CallControl() != tt.callControl {
				t.Errorf("Expected call control %v, got %v", tt.callControl, p.CallControl())
			}
		})
	}
}

func TestParseQueryWithEcho(t *testing.T) {
	p := newParser()
	pending := at.NewPending("AT+CNMI?")

	if _, ok := p.Parse("AT+CNMI?", pending).(*at.Echo); !ok {
		t.Fatal("Expected echo")
	}
	d, ok := p.Parse("+CNMI: 2,2,0,0,0", pending).(*at.Data)
	if !ok || d.Text != "+CNMI: 2,2,0,0,0" {
		t.Fatalf("Expected data line, got %#v", d)
	}
	f, ok := p.Parse("OK", pending).(*at.Final)
	if !ok || f.Status != at.StatusOK {
		t.Fatalf("Expected final OK, got %#v", f)
	}
	if !f.At.Equal(fixedNow) {
		t.Errorf("Expected final stamped at %v, got %v", fixedNow, f.At)
	}
}

func TestParseEchoDisabledAfterResponse(t *testing.T) {
	p := newParser()
	pending := at.NewPending("ATI")

	if _, ok := p.Parse("Quectel", pending).(*at.Data); !ok {
		t.Fatal("Expected data")
	}
	// Same text as the command, but a response line was already seen.
	if _, ok := p.Parse("ATI", pending).(*at.Data); !ok {
		t.Fatal("Expected repeated command text to be data after first response line")
	}
}

func TestParseEchoWithoutPending(t *testing.T) {
	p := newParser()
	if _, ok := p.Parse("AT+CSQ", nil).(*at.Data); !ok {
		t.Fatal("Expected data when no command is pending")
	}
}

func TestParseFinals(t *testing.T) {
	tests := []struct {
		line   string
		cmd    string
		status at.Status
		code   int
	}{
		{line: "OK", cmd: "AT", status: at.StatusOK, code: -1},
		{line: "ERROR", cmd: "AT", status: at.StatusError, code: -1},
		{line: "+CME ERROR: 10", cmd: "AT+CPIN?", status: at.StatusCMEError, code: 10},
		{line: "+CMS ERROR: 500", cmd: "AT+CMGS=12", status: at.StatusCMSError, code: 500},
		{line: "+CME ERROR: SIM not inserted", cmd: "AT+CPIN?", status: at.StatusCMEError, code: -1},
		{line: "NO CARRIER", cmd: "ATD123;", status: at.StatusNoCarrier, code: -1},
		{line: "BUSY", cmd: "ATD123;", status: at.StatusBusy, code: -1},
		{line: "NO ANSWER", cmd: "ATA", status: at.StatusNoAnswer, code: -1},
		{line: "NO DIALTONE", cmd: "ATD123;", status: at.StatusNoDialtone, code: -1},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f, ok := newParser().Parse(tt.line, at.NewPending(tt.cmd)).(*at.Final)
			if !ok {
				t.Fatal("Expected final result")
			}
			if f.Status != tt.status || f.Code != tt.code {
				t.Errorf("Expected %v/%d, got %v/%d", tt.status, tt.code, f.Status, f.Code)
			}
		})
	}
}

func TestParseNoCarrierOutsideCallControl(t *testing.T) {
	p := newParser()
	n, ok := p.Parse("NO CARRIER", at.NewPending("AT+CSQ")).(*at.Notification)
	if !ok || n.Kind != at.NotifyCallEnded {
		t.Fatalf("Expected call-ended notification, got %#v", n)
	}
}

func TestParseResponsePrefixBeatsNotification(t *testing.T) {
	p := newParser()
	if _, ok := p.Parse("+CREG: 2,1,\"1A2B\",\"01C3\"", at.NewPending("AT+CREG?")).(*at.Data); !ok {
		t.Fatal("Expected +CREG: to be data while AT+CREG? is pending")
	}
	n, ok := p.Parse("+CREG: 1", at.NewPending("AT+CSQ")).(*at.Notification)
	if !ok || n.Kind != at.NotifyRegistration {
		t.Fatalf("Expected registration notification, got %#v", n)
	}
}

func TestParseNotifications(t *testing.T) {
	tests := []struct {
		line   string
		kind   at.NotificationKind
		fields []string
	}{
		{line: "RING", kind: at.NotifyRing},
		{line: "+CRING: VOICE", kind: at.NotifyRing, fields: []string{"VOICE"}},
		{line: "+CLIP: \"+8613800138000\",145,,,,0", kind: at.NotifyCallerID,
			fields: []string{"+8613800138000", "145", "", "", "", "0"}},
		{line: "VOICE CALL: BEGIN", kind: at.NotifyCallBegin},
		{line: "VOICE CALL: END: 000012", kind: at.NotifyCallEnd, fields: []string{"000012"}},
		{line: "MISSED_CALL: 10:31AM 13800138000", kind: at.NotifyMissedCall, fields: []string{"10:31AM 13800138000"}},
		{line: "+CMTI: \"SM\",3", kind: at.NotifySMSIndex, fields: []string{"SM", "3"}},
		{line: "+CDSI: \"SR\",7", kind: at.NotifyStatusReport, fields: []string{"SR", "7"}},
		{line: "+CGREG: 1", kind: at.NotifyRegistration, fields: []string{"1"}},
		{line: "+CEREG: 5", kind: at.NotifyRegistration, fields: []string{"5"}},
		{line: "+RXDTMF: 5", kind: at.NotifyDTMF, fields: []string{"5"}},
		{line: "+SMS FULL", kind: at.NotifyStorageFull},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			n, ok := newParser().Parse(tt.line, nil).(*at.Notification)
			if !ok {
				t.Fatal("Expected notification")
			}
			if n.Kind != tt.kind {
				t.Errorf("Expected kind %v, got %v", tt.kind, n.Kind)
			}
			if !slices.Equal(n.Fields, tt.fields) {
				t.Errorf("Expected fields %q, got %q", tt.fields, n.Fields)
			}
			if !n.At.Equal(fixedNow) {
				t.Errorf("Expected notification stamped at %v, got %v", fixedNow, n.At)
			}
		})
	}
}

func TestParsePushWithBody(t *testing.T) {
	p := newParser()
	header := "+CMT: \"+8613800138000\",\"\",\"24/01/15,10:30:00+32\""

	if ev := p.Parse(header, nil); ev != nil {
		t.Fatalf("Expected header to be held, got %#v", ev)
	}
	if !p.WantsBody() {
		t.Fatal("Expected parser to want the body line")
	}
	// Body text that looks like a final result still belongs to the push.
	n, ok := p.Parse("OK", at.NewPending("AT+CSQ")).(*at.Notification)
	if !ok {
		t.Fatal("Expected push notification")
	}
	if n.Kind != at.NotifySMSPush || n.Body != "OK" || n.Field(0) != "+8613800138000" || n.Field(2) != "24/01/15,10:30:00+32" {
		t.Errorf("Unexpected push %#v", n)
	}
	if p.WantsBody() {
		t.Error("Expected body to be consumed")
	}
}

func TestParseReadBody(t *testing.T) {
	p := newParser()
	pending := at.NewPending("AT+CMGR=3")

	if _, ok := p.Parse("+CMGR: \"REC UNREAD\",\"+8613800138000\",,\"24/01/15,10:30:00+32\"", pending).(*at.Data); !ok {
		t.Fatal("Expected header data")
	}
	if !p.WantsBody() {
		t.Fatal("Expected parser to want the body line")
	}
	d, ok := p.Parse("ERROR", pending).(*at.Data)
	if !ok || d.Text != "ERROR" {
		t.Fatalf("Expected body to be data, got %#v", d)
	}
	if _, ok := p.Parse("OK", pending).(*at.Final); !ok {
		t.Fatal("Expected final")
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"+CMTI: \"SM\"",
		"+CMTI: \"SM\",x",
		"+CLIP:",
		"+CREG: a",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			inv, ok := newParser().Parse(line, nil).(*at.Invalid)
			if !ok {
				t.Fatal("Expected invalid line")
			}
			var perr *at.ProtocolError
			if !errors.As(inv.Err, &perr) {
				t.Fatalf("Expected ProtocolError, got %v", inv.Err)
			}
		})
	}
}

func TestParsePromptAndBlank(t *testing.T) {
	p := newParser()
	if _, ok := p.Parse(at.PromptText, at.NewPending("AT+CMGS=18")).(*at.Prompt); !ok {
		t.Fatal("Expected prompt")
	}
	if ev := p.Parse("   ", nil); ev != nil {
		t.Fatalf("Expected nil for blank line, got %#v", ev)
	}
}

func TestParseBodyEcho(t *testing.T) {
	p := newParser()
	pending := at.NewPending("AT+CMGS=18")
	p.Parse("AT+CMGS=18", pending)
	p.Parse("> ", pending)
	pending.ExpectEcho("0001000D91683108108300F00008044F60597D")

	if _, ok := p.Parse("0001000D91683108108300F00008044F60597D\x1a", pending).(*at.Echo); !ok {
		t.Fatal("Expected body echo")
	}
	if d, ok := p.Parse("+CMGS: 12", pending).(*at.Data); !ok || d.Text != "+CMGS: 12" {
		t.Fatal("Expected +CMGS data")
	}
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: " \"SM\",3", want: []string{"SM", "3"}},
		{in: "\"a,b\",\"\",c", want: []string{"a,b", "", "c"}},
		{in: "2,2,0,0,0", want: []string{"2", "2", "0", "0", "0"}},
	}
	for _, tt := range tests {
		if got := at.SplitFields(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("SplitFields(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNotificationTable(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range at.Notifications() {
		if seen[r.Token] {
			t.Errorf("Duplicate token %q", r.Token)
		}
		seen[r.Token] = true
		if r.Kind.String() == "" {
			t.Errorf("Token %q has unnamed kind", r.Token)
		}
	}
}
