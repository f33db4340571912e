package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"i4.energy/across/ltemodem/api"
	"i4.energy/across/ltemodem/at"
	"i4.energy/across/ltemodem/modem"
	"i4.energy/across/ltemodem/pdu"
	"i4.energy/across/ltemodem/sms"
	"i4.energy/across/ltemodem/store"
)

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("unexpected error decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectState(m *api.MockModem, state modem.State) {
	m.EXPECT().State().Return(state)
	m.EXPECT().Cause().Return("")
	m.EXPECT().Port().Return("/dev/ttyUSB2")
	m.EXPECT().CallState().Return(modem.CallStateIdle)
}

func TestSendSMS(t *testing.T) {
	t.Run("Sent and archived", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := api.NewMockModem(ctrl)
		st, err := store.Open(":memory:")
		if err != nil {
			t.Fatalf("unexpected error from Open(): %v", err)
		}
		defer st.Close()
		s := &api.Server{Modem: m, Store: st, Recorder: store.NewRecorder(st, nil)}

		m.EXPECT().SendSMS(gomock.Any(), "13800138000", "Hello").Return([]int{7}, nil)

		rec := do(t, s, http.MethodPost, "/api/sms", `{"to":"13800138000","message":"Hello"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if refs := decode(t, rec)["refs"].([]any); len(refs) != 1 || refs[0].(float64) != 7 {
			t.Errorf("unexpected refs %v", refs)
		}

		rec = do(t, s, http.MethodGet, "/api/archive?direction=out", "")
		body := decode(t, rec)
		if body["total"].(float64) != 1 {
			t.Fatalf("expected one archived message, got %v", body)
		}
		msg := body["data"].([]any)[0].(map[string]any)
		if msg["number"] != "+8613800138000" || msg["parts"] != "7" {
			t.Errorf("unexpected archived message %v", msg)
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &api.Server{Modem: api.NewMockModem(ctrl)}

		rec := do(t, s, http.MethodPost, "/api/sms", `{"to":"10086"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		rec = do(t, s, http.MethodPost, "/api/sms", `not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Error status", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			code int
		}{
			{"not connected", modem.ErrNotConnected, http.StatusServiceUnavailable},
			{"timeout", &modem.TimeoutError{Command: "AT+CMGS", Timeout: time.Second}, http.StatusGatewayTimeout},
			{"rejected", &modem.CommandError{Command: "AT+CMGS", Final: at.Final{Status: at.StatusCMSError, Code: 500}}, http.StatusBadGateway},
			{"other", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctrl := gomock.NewController(t)
				m := api.NewMockModem(ctrl)
				m.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("send message: %w", tt.err))

				rec := do(t, &api.Server{Modem: m}, http.MethodPost, "/api/sms", `{"to":"10086","message":"hi"}`)
				if rec.Code != tt.code {
					t.Errorf("expected %d, got %d", tt.code, rec.Code)
				}
				if decode(t, rec)["message"] == "" {
					t.Error("expected error message")
				}
			})
		}
	})
}

func TestStoredSMS(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := api.NewMockModem(ctrl)
	s := &api.Server{Modem: m}

	m.EXPECT().ListSMS(gomock.Any(), "REC UNREAD").Return([]*sms.Message{
		{Sender: "10086", Text: "Balance", Encoding: pdu.GSM7, Index: 2, Stored: true},
	}, nil)
	m.EXPECT().DeleteSMS(gomock.Any(), 2).Return(nil)

	rec := do(t, s, http.MethodGet, "/api/sms?filter=REC+UNREAD", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	msgs := decode(t, rec)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %v", msgs)
	}
	first := msgs[0].(map[string]any)
	if first["sender"] != "10086" || first["index"].(float64) != 2 || first["encoding"] != "gsm7" {
		t.Errorf("unexpected message %v", first)
	}

	if rec := do(t, s, http.MethodDelete, "/api/sms/2", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/sms/abc", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non numeric index, got %d", rec.Code)
	}
}

func TestConnection(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := api.NewMockModem(ctrl)
		gomock.InOrder(
			m.EXPECT().Connect(gomock.Any()).Return(nil),
			m.EXPECT().State().Return(modem.StateConnected),
		)
		m.EXPECT().Cause().Return("")
		m.EXPECT().Port().Return("/dev/ttyUSB2")
		m.EXPECT().CallState().Return(modem.CallStateIdle)

		rec := do(t, &api.Server{Modem: m}, http.MethodPost, "/api/connect", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		body := decode(t, rec)
		if body["state"] != "connected" || body["port"] != "/dev/ttyUSB2" || body["call"] != "idle" {
			t.Errorf("unexpected state %v", body)
		}
	})

	t.Run("Reset outside the error state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := api.NewMockModem(ctrl)
		m.EXPECT().Reset().Return(fmt.Errorf("%w: reset from connected", modem.ErrInvalidTransition))

		rec := do(t, &api.Server{Modem: m}, http.MethodPost, "/api/reset", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := api.NewMockModem(ctrl)
		m.EXPECT().Close().Return(nil)
		expectState(m, modem.StateDisconnected)

		rec := do(t, &api.Server{Modem: m}, http.MethodPost, "/api/disconnect", "")
		if rec.Code != http.StatusOK || decode(t, rec)["state"] != "disconnected" {
			t.Errorf("unexpected response %d", rec.Code)
		}
	})

	t.Run("Ports", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &api.Server{
			Modem: api.NewMockModem(ctrl),
			Ports: func() ([]string, error) { return []string{"/dev/ttyUSB2", "/dev/ttyUSB3"}, nil },
		}
		rec := do(t, s, http.MethodGet, "/api/ports", "")
		if ports := decode(t, rec)["ports"].([]any); len(ports) != 2 {
			t.Errorf("unexpected ports %v", ports)
		}
	})
}

func TestQueries(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := api.NewMockModem(ctrl)
	s := &api.Server{Modem: m}

	m.EXPECT().SignalQuality(gomock.Any()).Return(modem.Signal{RSSI: 20, BER: 99}, nil)
	m.EXPECT().Info(gomock.Any()).Return(modem.Info{Manufacturer: "SIMCOM", IMEI: "861234567890123"}, nil)
	m.EXPECT().Operator(gomock.Any()).Return("CHINA MOBILE", nil)

	signal := decode(t, do(t, s, http.MethodGet, "/api/signal", ""))
	if signal["dbm"].(float64) != -73 || signal["known"] != true {
		t.Errorf("unexpected signal %v", signal)
	}
	info := decode(t, do(t, s, http.MethodGet, "/api/info", ""))
	if info["imei"] != "861234567890123" || info["operator"] != "CHINA MOBILE" {
		t.Errorf("unexpected info %v", info)
	}
}

func TestCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := api.NewMockModem(ctrl)
	s := &api.Server{Modem: m}

	m.EXPECT().Dial(gomock.Any(), "10086").Return(nil)
	expectState(m, modem.StateConnected)
	if rec := do(t, s, http.MethodPost, "/api/call", `{"number":"10086"}`); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodPost, "/api/call", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without number, got %d", rec.Code)
	}

	m.EXPECT().Hangup(gomock.Any()).Return(modem.ErrNotConnected)
	if rec := do(t, s, http.MethodPost, "/api/call/hangup", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	ctrl := gomock.NewController(t)
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error from Open(): %v", err)
	}
	defer st.Close()
	s := &api.Server{Modem: api.NewMockModem(ctrl), Store: st}

	rec := do(t, s, http.MethodPut, "/api/settings", `{"auto_connect":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	body := decode(t, do(t, s, http.MethodGet, "/api/settings", ""))
	if body["auto_connect"] != true {
		t.Errorf("expected auto_connect stored, got %v", body)
	}

	without := &api.Server{Modem: api.NewMockModem(ctrl)}
	if rec := do(t, without, http.MethodGet, "/api/settings", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without store, got %d", rec.Code)
	}
}
