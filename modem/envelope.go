package modem

import (
	"time"

	"i4.energy/across/ltemodem/sms"
)

// Envelope is the wire form of an Event for websocket clients and brokers.
type Envelope struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// MessageView is the wire form of a received message.
type MessageView struct {
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	Encoding string    `json:"encoding"`
	Mode     string    `json:"mode"`
	Index    *int      `json:"index,omitempty"`
	Storage  string    `json:"storage,omitempty"`
	Status   string    `json:"status,omitempty"`
	Parts    []int     `json:"parts,omitempty"`
	Partial  bool      `json:"partial,omitempty"`
}

// ViewMessage converts m to its wire form.
func ViewMessage(m *sms.Message) MessageView {
	v := MessageView{
		Sender:   m.Sender,
		Text:     m.Text,
		Time:     m.Time,
		Encoding: m.Encoding.String(),
		Mode:     m.Mode.String(),
		Storage:  m.Storage,
		Status:   m.Status,
		Parts:    m.Parts,
		Partial:  m.Partial,
	}
	if m.Stored {
		idx := m.Index
		v.Index = &idx
	}
	return v
}

// NewEnvelope wraps e for publication. Type names are stable and used as
// topic suffixes.
func NewEnvelope(e Event) Envelope {
	env := Envelope{At: e.EventTime()}
	switch e := e.(type) {
	case StateChanged:
		env.Type = "state"
		env.Data = map[string]any{"from": e.From, "to": e.To, "cause": e.Cause, "port": e.Port}
	case SMSReceived:
		env.Type = "sms"
		env.Data = ViewMessage(e.Message)
	case UndecodableMessage:
		env.Type = "sms-undecodable"
		data := map[string]any{"raw": e.Raw}
		if e.Err != nil {
			data["error"] = e.Err.Error()
		}
		env.Data = data
	case CallEvent:
		env.Type = "call"
		env.Data = map[string]any{"kind": e.Kind.String(), "number": e.Number, "reason": e.Reason, "missed": e.Missed}
	case NetworkStatus:
		env.Type = "network"
		env.Data = map[string]any{
			"domain":     e.Domain,
			"stat":       e.Stat,
			"registered": e.Registered(),
			"lac":        e.LAC,
			"cell_id":    e.CellID,
		}
	case DTMFReceived:
		env.Type = "dtmf"
		env.Data = map[string]any{"digit": e.Digit}
	case StorageFull:
		env.Type = "storage-full"
		env.Data = map[string]any{}
	case StatusReport:
		env.Type = "status-report"
		env.Data = map[string]any{"storage": e.Storage, "index": e.Index}
	default:
		env.Type = "unknown"
	}
	return env
}
