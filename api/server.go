// Package api exposes a Modem over HTTP and streams its events to websocket
// clients.
package api

//go:generate go tool mockgen -source=server.go -destination=mock_modem.go -package=api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"i4.energy/across/ltemodem/modem"
	"i4.energy/across/ltemodem/sms"
	"i4.energy/across/ltemodem/store"
)

// Modem is the part of *modem.Modem served over HTTP.
type Modem interface {
	Connect(ctx context.Context) error
	Close() error
	Reset() error
	State() modem.State
	Cause() string
	Port() string
	SendSMS(ctx context.Context, recipient, message string) ([]int, error)
	ListSMS(ctx context.Context, filter string) ([]*sms.Message, error)
	DeleteSMS(ctx context.Context, index int) error
	SignalQuality(ctx context.Context) (modem.Signal, error)
	Operator(ctx context.Context) (string, error)
	Info(ctx context.Context) (modem.Info, error)
	Dial(ctx context.Context, number string) error
	Answer(ctx context.Context) error
	Hangup(ctx context.Context) error
	CallState() modem.CallState
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Modem  Modem
	// Store and Recorder are optional. Without them the archive and
	// settings routes answer 404 and sent messages are not archived.
	Store    *store.Store
	Recorder *store.Recorder
	// Hub, when set, is served on /ws.
	Hub *Hub
	// Ports lists the serial ports, modem.ListPorts when nil.
	Ports func() ([]string, error)
	// ConnectTimeout bounds Connect, 60s when zero.
	ConnectTimeout time.Duration

	once   sync.Once
	router *mux.Router
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.routes)
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Ports == nil {
		s.Ports = modem.ListPorts
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = time.Minute
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/ports", s.handlePorts).Methods(http.MethodGet)
	api.HandleFunc("/signal", s.handleSignal).Methods(http.MethodGet)
	api.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	api.HandleFunc("/sms", s.handleSMS).Methods(http.MethodPost)
	api.HandleFunc("/sms", s.handleListSMS).Methods(http.MethodGet)
	api.HandleFunc("/sms/{index:[0-9]+}", s.handleDeleteSMS).Methods(http.MethodDelete)

	api.HandleFunc("/call", s.handleDial).Methods(http.MethodPost)
	api.HandleFunc("/call/answer", s.handleAnswer).Methods(http.MethodPost)
	api.HandleFunc("/call/hangup", s.handleHangup).Methods(http.MethodPost)

	api.HandleFunc("/archive", s.handleArchive).Methods(http.MethodGet)
	api.HandleFunc("/archive", s.handleArchiveDelete).Methods(http.MethodDelete)
	api.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPut)

	if s.Hub != nil {
		r.Handle("/ws", s.Hub)
	}
	s.router = r
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("write response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, statusCode, ErrorResponse{Message: message})
}

// fail answers with the status matching err.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		terr *modem.TimeoutError
		cerr *modem.CommandError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, modem.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrInvalidTransition), errors.Is(err, modem.ErrAlreadyClosed):
		status = http.StatusConflict
	case errors.As(err, &terr):
		status = http.StatusGatewayTimeout
	case errors.As(err, &cerr):
		status = http.StatusBadGateway
	}
	s.sendError(w, err.Error(), status)
}

type stateResponse struct {
	State string `json:"state"`
	Cause string `json:"cause,omitempty"`
	Port  string `json:"port"`
	Call  string `json:"call"`
}

func (s *Server) state() stateResponse {
	return stateResponse{
		State: string(s.Modem.State()),
		Cause: s.Modem.Cause(),
		Port:  s.Modem.Port(),
		Call:  string(s.Modem.CallState()),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.ConnectTimeout)
	defer cancel()
	if err := s.Modem.Connect(ctx); err != nil {
		s.Logger.Error("Failed to connect modem", "error", err)
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.Close(); err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.Reset(); err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := s.Ports()
	if err != nil {
		s.fail(w, err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"ports": ports})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	signal, err := s.Modem.SignalQuality(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := map[string]any{"rssi": signal.RSSI, "ber": signal.BER, "known": signal.Known()}
	if signal.Known() {
		resp["dbm"] = signal.DBm()
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Modem.Info(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	operator, err := s.Modem.Operator(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"manufacturer": info.Manufacturer,
		"model":        info.Model,
		"imei":         info.IMEI,
		"revision":     info.Revision,
		"operator":     operator,
	})
}

// handleSMS processes incoming HTTP POST requests to send SMS messages
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	refs, err := s.Modem.SendSMS(r.Context(), req.To, req.Message)
	if err != nil {
		s.Logger.Error("Failed to send SMS", "error", err, "to", req.To)
		s.fail(w, err)
		return
	}

	s.Logger.Info("SMS sent successfully", "to", req.To, "message_length", len(req.Message), "refs", refs)
	if s.Recorder != nil {
		if err := s.Recorder.RecordSent(r.Context(), modem.NormalizeNumber(req.To), req.Message, refs); err != nil {
			s.Logger.Error("archive sent message", "error", err)
		}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"refs": refs})
}

func (s *Server) handleListSMS(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	msgs, err := s.Modem.ListSMS(r.Context(), filter)
	if len(msgs) == 0 && err != nil {
		s.fail(w, err)
		return
	}
	views := make([]modem.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, modem.ViewMessage(m))
	}
	resp := map[string]any{"messages": views}
	if err != nil {
		// some entries could not be decoded
		resp["error"] = err.Error()
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSMS(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Modem.DeleteSMS(r.Context(), index); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number string `json:"number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Number == "" {
		s.sendError(w, "'number' is required", http.StatusBadRequest)
		return
	}
	if err := s.Modem.Dial(r.Context(), req.Number); err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.Answer(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.Hangup(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.sendError(w, "", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	filter := store.Filter{
		Direction: q.Get("direction"),
		Number:    q.Get("number"),
		Limit:     50,
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.Since = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		filter.Until = t
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 200 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		filter.Offset = o
	}

	msgs, total, err := s.Store.ListMessages(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"data":   msgs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (s *Server) handleArchiveDelete(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.sendError(w, "", http.StatusNotFound)
		return
	}
	var req struct {
		IDs []uint `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		s.sendError(w, "no IDs provided", http.StatusBadRequest)
		return
	}
	n, err := s.Store.DeleteMessages(r.Context(), req.IDs...)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

type settingsResponse struct {
	AutoConnect bool   `json:"auto_connect"`
	LastPort    string `json:"last_port"`
}

func (s *Server) settings(ctx context.Context) (settingsResponse, error) {
	auto, err := s.Store.AutoConnect(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	port, err := s.Store.LastPort(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	return settingsResponse{AutoConnect: auto, LastPort: port}, nil
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.sendError(w, "", http.StatusNotFound)
		return
	}
	resp, err := s.settings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.sendError(w, "", http.StatusNotFound)
		return
	}
	var req struct {
		AutoConnect *bool `json:"auto_connect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AutoConnect != nil {
		if err := s.Store.SetAutoConnect(r.Context(), *req.AutoConnect); err != nil {
			s.fail(w, err)
			return
		}
	}
	resp, err := s.settings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, resp)
}
