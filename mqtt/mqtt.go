// Package mqtt publishes modem events to an MQTT broker and accepts send
// requests from it.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/ltemodem/modem"
)

// ErrNoBroker is returned by Dial without a broker URL.
var ErrNoBroker = errors.New("mqtt: broker is required")

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Prefix is prepended to every topic, "ltemodem" when empty.
	Prefix string
	QoS    byte
	// Timeout bounds connecting and each publish, 10s when zero.
	Timeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Prefix == "" {
		o.Prefix = "ltemodem"
	}
	if o.ClientID == "" {
		o.ClientID = "ltemodem"
	}
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Second
	}
}

// Dial connects to the broker. The client reconnects on its own after a
// lost connection.
func Dial(o Options, logger *slog.Logger) (paho.Client, error) {
	if o.Broker == "" {
		return nil, ErrNoBroker
	}
	o.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(o.Timeout)
	opts.SetWill(Topic(o.Prefix, "online"), "false", 1, true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.Info("mqtt connected", "broker", o.Broker)
		c.Publish(Topic(o.Prefix, "online"), 1, true, "true")
	})

	client := paho.NewClient(opts)
	t := client.Connect()
	if !t.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out", o.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", o.Broker, err)
	}
	return client, nil
}

// Topic joins prefix and the parts with '/'.
func Topic(prefix string, parts ...string) string {
	return strings.Join(append([]string{strings.TrimSuffix(prefix, "/")}, parts...), "/")
}

// Publisher publishes modem events to "<prefix>/event/<type>". State events
// are retained so a new subscriber learns the current connection state. It
// is a modem.Observer.
type Publisher struct {
	client  paho.Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher returns a Publisher on an established client.
func NewPublisher(client paho.Client, o Options, logger *slog.Logger) *Publisher {
	o.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		prefix:  o.Prefix,
		qos:     o.QoS,
		timeout: o.Timeout,
		logger:  logger.With("component", "mqtt"),
	}
}

func (p *Publisher) Observe(e modem.Event) {
	env := modem.NewEnvelope(e)
	payload, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("encode event", "type", env.Type, "error", err)
		return
	}
	_, retained := e.(modem.StateChanged)
	topic := Topic(p.prefix, "event", env.Type)

	t := p.client.Publish(topic, p.qos, retained, payload)
	if !t.WaitTimeout(p.timeout) {
		p.logger.Warn("publish timed out", "topic", topic)
		return
	}
	if err := t.Error(); err != nil {
		p.logger.Error("publish failed", "topic", topic, "error", err)
	}
}

// Sender sends a short message.
type Sender interface {
	SendSMS(ctx context.Context, recipient, message string) ([]int, error)
}

// SendRequest is the payload accepted on "<prefix>/send".
type SendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	// ID is echoed in the result so callers can correlate it.
	ID string `json:"id,omitempty"`
}

// SendResult is published on "<prefix>/send/result".
type SendResult struct {
	ID    string `json:"id,omitempty"`
	To    string `json:"to"`
	Refs  []int  `json:"refs,omitempty"`
	Error string `json:"error,omitempty"`
}

// HandleSend subscribes to send requests and passes them to sender, which
// is called on the client's message goroutine. Each outcome is published as
// a SendResult.
func (p *Publisher) HandleSend(ctx context.Context, sender Sender) error {
	topic := Topic(p.prefix, "send")
	t := p.client.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		p.send(ctx, sender, m.Payload())
	})
	if !t.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: subscribe %s: timed out", topic)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	p.logger.Info("accepting send requests", "topic", topic)
	return nil
}

func (p *Publisher) send(ctx context.Context, sender Sender, payload []byte) {
	var req SendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		p.logger.Warn("bad send request", "error", err)
		return
	}
	res := SendResult{ID: req.ID, To: req.To}
	if req.To == "" || req.Message == "" {
		res.Error = "both 'to' and 'message' fields are required"
	} else if refs, err := sender.SendSMS(ctx, req.To, req.Message); err != nil {
		p.logger.Error("send requested message", "to", req.To, "error", err)
		res.Error = err.Error()
	} else {
		res.Refs = refs
	}

	out, _ := json.Marshal(res)
	t := p.client.Publish(Topic(p.prefix, "send", "result"), p.qos, false, out)
	if t.WaitTimeout(p.timeout) && t.Error() != nil {
		p.logger.Error("publish send result", "error", t.Error())
	}
}
