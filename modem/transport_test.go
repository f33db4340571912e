package modem

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/mock/gomock"
)

func TestSerialDialer(t *testing.T) {
	t.Run("Empty port name", func(t *testing.T) {
		transport, err := SerialDialer{}.Dial(context.Background())
		if err == nil || err.Error() != "modem: serial port name is required" {
			t.Errorf("unexpected error: %v", err)
		}
		if transport != nil {
			t.Error("expected nil transport for empty port name")
		}
	})

	t.Run("Nil context", func(t *testing.T) {
		transport, err := SerialDialer{PortName: "/dev/ttyUSB0"}.Dial(nil)
		if err == nil || err.Error() != "modem: context is nil" {
			t.Errorf("unexpected error: %v", err)
		}
		if transport != nil {
			t.Error("expected nil transport for nil context")
		}
	})

	t.Run("Context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		transport, err := SerialDialer{PortName: "/dev/nonexistent"}.Dial(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
		if transport != nil {
			t.Error("expected nil transport for canceled context")
		}
	})

	t.Run("Explicit mode", func(t *testing.T) {
		dialer := SerialDialer{
			PortName: "/dev/nonexistent",
			Mode: &serial.Mode{
				BaudRate: 9600,
				Parity:   serial.NoParity,
				DataBits: 8,
				StopBits: serial.OneStopBit,
			},
		}
		transport, err := dialer.Dial(context.Background())
		if err == nil {
			t.Fatal("expected error for non-existent port")
		}
		if transport != nil {
			t.Error("expected nil transport for non-existent port")
		}
		if !strings.Contains(err.Error(), "/dev/nonexistent") {
			t.Errorf("expected error to name the port, got: %v", err)
		}
	})

	t.Run("Baud rate without mode", func(t *testing.T) {
		transport, err := SerialDialer{PortName: "/dev/nonexistent", BaudRate: 57600}.Dial(context.Background())
		if err == nil {
			t.Error("expected error for non-existent port")
		}
		if transport != nil {
			t.Error("expected nil transport for non-existent port")
		}
	})
}

func TestTransportInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTransport := NewMockTransport(ctrl)
	var _ Transport = mockTransport

	data := []byte("AT\r")
	mockTransport.EXPECT().Write(data).Return(len(data), nil)
	mockTransport.EXPECT().Read(gomock.Any()).Return(4, nil)
	mockTransport.EXPECT().Close().Return(nil)

	n, err := mockTransport.Write(data)
	if err != nil {
		t.Errorf("unexpected write error: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected %d bytes written, got %d", len(data), n)
	}

	buf := make([]byte, 10)
	n, err = mockTransport.Read(buf)
	if err != nil {
		t.Errorf("unexpected read error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 bytes read, got %d", n)
	}

	if err := mockTransport.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestDialerInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDialer := NewMockDialer(ctrl)
	var _ Dialer = mockDialer
	var _ Dialer = SerialDialer{}

	ctx := context.Background()
	dialError := errors.New("dial failed")
	mockDialer.EXPECT().Dial(ctx).Return(nil, dialError)

	transport, err := mockDialer.Dial(ctx)
	if err != dialError {
		t.Errorf("expected dial error, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport on error")
	}
}

func TestTestTransport(t *testing.T) {
	t.Run("Short reads keep the remainder", func(t *testing.T) {
		tt := NewTestTransport()
		tt.SendData("\r\nOK\r\n")

		var got []byte
		buf := make([]byte, 2)
		for len(got) < 6 {
			n, err := tt.Read(buf)
			if err != nil {
				t.Fatalf("unexpected read error: %v", err)
			}
			got = append(got, buf[:n]...)
		}
		if string(got) != "\r\nOK\r\n" {
			t.Errorf("expected %q, got %q", "\r\nOK\r\n", got)
		}
	})

	t.Run("Responder answers writes", func(t *testing.T) {
		tt := NewTestTransport()
		tt.OnWrite(func(w string) string {
			if w == "AT" {
				return "\r\nOK\r\n"
			}
			return ""
		})
		if _, err := tt.Write([]byte("AT\r")); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
		buf := make([]byte, 16)
		n, _ := tt.Read(buf)
		if string(buf[:n]) != "\r\nOK\r\n" {
			t.Errorf("unexpected reply %q", buf[:n])
		}
		select {
		case w := <-tt.Writes():
			if w != "AT" {
				t.Errorf("unexpected write %q", w)
			}
		case <-time.After(time.Second):
			t.Error("write not reported")
		}
	})

	t.Run("Close ends reads and rejects writes", func(t *testing.T) {
		tt := NewTestTransport()
		if err := tt.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
		if _, err := tt.Read(make([]byte, 4)); err == nil {
			t.Error("expected read error after close")
		}
		if _, err := tt.Write([]byte("AT\r")); err == nil {
			t.Error("expected write error after close")
		}
		if !tt.Closed() {
			t.Error("expected Closed() to report true")
		}
	})
}
