package sms_test

import (
	"errors"
	"testing"
	"time"

	"i4.energy/across/ltemodem/pdu"
	"i4.energy/across/ltemodem/sms"
)

const ucs2Deliver = "00040D91683108108300F000084210510103002304" + "4F60597D"

var cst = time.FixedZone("", 8*3600)

func TestFromPushText(t *testing.T) {
	tests := []struct {
		name    string
		charset sms.Charset
		fields  []string
		body    string
		sender  string
		text    string
		enc     pdu.Alphabet
	}{
		{
			name:    "plain text",
			charset: sms.CharsetAuto,
			fields:  []string{"+8613800138000", "", "24/01/15,10:30:00+32"},
			body:    "Hello",
			sender:  "+8613800138000",
			text:    "Hello",
			enc:     pdu.GSM7,
		},
		{
			name:    "ucs2 hex body detected",
			charset: sms.CharsetAuto,
			fields:  []string{"+8613800138000", "", "24/01/15,10:30:00+32"},
			body:    "4F60597D",
			sender:  "+8613800138000",
			text:    "你好",
			enc:     pdu.UCS2,
		},
		{
			name:    "ucs2 charset with hex sender",
			charset: sms.CharsetUCS2,
			fields:  []string{"002B0038003600310033003800300030003100330038003000300030", "", "24/01/15,10:30:00+32"},
			body:    "4F60597D",
			sender:  "+8613800138000",
			text:    "你好",
			enc:     pdu.UCS2,
		},
		{
			name:    "gsm charset keeps hex looking text",
			charset: sms.CharsetGSM,
			fields:  []string{"10086", "", "24/01/15,10:30:00+32"},
			body:    "CAFE",
			sender:  "10086",
			text:    "CAFE",
			enc:     pdu.GSM7,
		},
		{
			name:    "decimal digits stay text",
			charset: sms.CharsetAuto,
			fields:  []string{"10086", "", "24/01/15,10:30:00+32"},
			body:    "12345678",
			sender:  "10086",
			text:    "12345678",
			enc:     pdu.GSM7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := sms.Decoder{Charset: tt.charset}.FromPush(tt.fields, tt.body)
			if err != nil {
				t.Fatalf("FromPush: %v", err)
			}
			if m.Sender != tt.sender || m.Text != tt.text || m.Encoding != tt.enc {
				t.Errorf("Unexpected message %v", m)
			}
			if m.Mode != sms.ModeText || m.Stored {
				t.Errorf("Expected unstored text mode message, got %v stored=%v", m.Mode, m.Stored)
			}
			want := time.Date(2024, 1, 15, 10, 30, 0, 0, cst)
			if !m.Time.Equal(want) {
				t.Errorf("Expected %v, got %v", want, m.Time)
			}
		})
	}
}

func TestFromPushPDU(t *testing.T) {
	m, err := sms.Decoder{}.FromPush([]string{"", "24"}, ucs2Deliver)
	if err != nil {
		t.Fatalf("FromPush: %v", err)
	}
	if m.Mode != sms.ModePDU || m.Text != "你好" || m.Sender != "+8613800138000" {
		t.Errorf("Unexpected message %v", m)
	}
}

func TestFromPushErrors(t *testing.T) {
	tests := []struct {
		name    string
		charset sms.Charset
		fields  []string
		body    string
		err     error
	}{
		{"odd pdu", sms.CharsetAuto, []string{"", "24"}, ucs2Deliver[1:], pdu.ErrOddLength},
		{"length mismatch", sms.CharsetAuto, []string{"", "23"}, ucs2Deliver, pdu.ErrLengthMismatch},
		{"strict ucs2", sms.CharsetUCS2, []string{"10086", "", "24/01/15,10:30:00+32"}, "not hex", pdu.ErrOddLength},
		{"bad timestamp", sms.CharsetAuto, []string{"10086", "", "yesterday"}, "hi", sms.ErrTimestamp},
		{"short header", sms.CharsetAuto, []string{"10086"}, "hi", sms.ErrHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sms.Decoder{Charset: tt.charset}.FromPush(tt.fields, tt.body)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			var de *sms.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Expected DecodeError, got %T", err)
			}
		})
	}
}

func TestFromRead(t *testing.T) {
	m, err := sms.Decoder{}.FromRead([]string{"+CMGR: 0,,24", ucs2Deliver}, 3)
	if err != nil {
		t.Fatalf("FromRead: %v", err)
	}
	if m.Index != 3 || !m.Stored || m.Text != "你好" || m.Status != "0" {
		t.Errorf("Unexpected message %v index=%d stored=%v status=%q", m, m.Index, m.Stored, m.Status)
	}

	m, err = sms.Decoder{}.FromRead([]string{
		`+CMGR: "REC UNREAD","+8613800138000",,"24/01/15,10:30:00+32"`,
		"Meeting at 10",
	}, 5)
	if err != nil {
		t.Fatalf("FromRead: %v", err)
	}
	if m.Index != 5 || m.Text != "Meeting at 10" || m.Status != "REC UNREAD" || m.Mode != sms.ModeText {
		t.Errorf("Unexpected message %v", m)
	}

	if _, err := (sms.Decoder{}).FromRead([]string{"+CMGR: 0,,24"}, 1); !errors.Is(err, sms.ErrMissingBody) {
		t.Errorf("Expected ErrMissingBody, got %v", err)
	}
}

func TestFromList(t *testing.T) {
	lines := []string{
		"+CMGL: 1,0,,24", ucs2Deliver,
		"+CMGL: 2,1,,24", "0011",
		`+CMGL: 4,"REC READ","10086",,"24/01/15,10:30:00+32"`, "",
	}
	msgs, err := sms.Decoder{}.FromList(lines)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Index != 1 || msgs[0].Text != "你好" {
		t.Errorf("Unexpected first message %v", msgs[0])
	}
	if msgs[1].Index != 4 || msgs[1].Text != "" || msgs[1].Sender != "10086" {
		t.Errorf("Unexpected second message %v", msgs[1])
	}
	var de *sms.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected a DecodeError for entry 2, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		err  bool
	}{
		{in: "24/01/15,10:30:00+32", want: time.Date(2024, 1, 15, 10, 30, 0, 0, cst)},
		{in: `"24/01/15,10:30:00-12"`, want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", -3*3600))},
		{in: "24/01/15,10:30:00", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{in: "24/13/15,10:30:00+32", err: true},
		{in: "24/01/15,10:30:00x32", err: true},
	}
	for _, tt := range tests {
		got, err := sms.ParseTimestamp(tt.in)
		if tt.err {
			if !errors.Is(err, sms.ErrTimestamp) {
				t.Errorf("%q: expected ErrTimestamp, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("%q: expected %v, got %v (%v)", tt.in, tt.want, got, err)
		}
	}
}

func TestParseCharset(t *testing.T) {
	c, err := sms.ParseCharset(`"ucs2"`)
	if err != nil || c != sms.CharsetUCS2 {
		t.Errorf("Expected UCS2, got %v (%v)", c, err)
	}
	if _, err := sms.ParseCharset("EBCDIC"); err == nil {
		t.Error("Expected error for unknown charset")
	}
}

func TestAssembler(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	a := sms.NewAssembler(time.Minute, func() time.Time { return now })

	single := &sms.Message{Sender: "10086", Text: "single"}
	if m, ok := a.Add(single); !ok || m != single {
		t.Fatal("Expected single message to pass through")
	}

	part := func(seq, index int, text string) *sms.Message {
		return &sms.Message{
			Sender: "10086", Text: text, Index: index, Stored: true,
			Concat: &pdu.Concat{Ref: 9, Total: 3, Seq: seq},
		}
	}
	if _, ok := a.Add(part(3, 7, "c")); ok {
		t.Fatal("Expected incomplete group")
	}
	if _, ok := a.Add(part(1, 5, "a")); ok {
		t.Fatal("Expected incomplete group")
	}
	m, ok := a.Add(part(2, 6, "b"))
	if !ok {
		t.Fatal("Expected complete group")
	}
	if m.Text != "abc" || m.Concat != nil || m.Partial {
		t.Errorf("Unexpected joined message %v", m)
	}
	if len(m.Parts) != 3 || m.Parts[0] != 5 || m.Parts[2] != 7 {
		t.Errorf("Unexpected parts %v", m.Parts)
	}
	if a.Pending() != 0 {
		t.Errorf("Expected no pending groups, got %d", a.Pending())
	}
}

func TestAssemblerExpire(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	a := sms.NewAssembler(time.Minute, func() time.Time { return now })

	a.Add(&sms.Message{Sender: "10086", Text: "first ", Concat: &pdu.Concat{Ref: 1, Total: 2, Seq: 1}})
	if got := a.Expire(); len(got) != 0 {
		t.Fatalf("Expected nothing expired, got %d", len(got))
	}

	now = now.Add(2 * time.Minute)
	got := a.Expire()
	if len(got) != 1 || !got[0].Partial || got[0].Text != "first " {
		t.Fatalf("Expected one partial message, got %v", got)
	}
	if a.Pending() != 0 {
		t.Errorf("Expected no pending groups, got %d", a.Pending())
	}
}
