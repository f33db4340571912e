package modem

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"i4.energy/across/ltemodem/sms"
)

// SMSMode selects the AT+CMGF message format.
type SMSMode int

const (
	SMSModeText SMSMode = iota
	SMSModePDU
)

func (m SMSMode) String() string {
	if m == SMSModePDU {
		return "pdu"
	}
	return "text"
}

// NotifyMode selects how the modem reports new messages (AT+CNMI).
type NotifyMode int

const (
	// NotifyPush has the modem push message content with +CMT.
	NotifyPush NotifyMode = iota
	// NotifyIndex has the modem store messages and report +CMTI.
	NotifyIndex
)

func (m NotifyMode) String() string {
	if m == NotifyIndex {
		return "index"
	}
	return "push"
}

// ParseSMSMode maps "text" or "pdu" to an SMSMode.
func ParseSMSMode(s string) (SMSMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return SMSModeText, nil
	case "pdu":
		return SMSModePDU, nil
	}
	return 0, fmt.Errorf("unknown sms mode %q", s)
}

// ParseNotifyMode maps "push" or "index" to a NotifyMode.
func ParseNotifyMode(s string) (NotifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "push":
		return NotifyPush, nil
	case "index":
		return NotifyIndex, nil
	}
	return 0, fmt.Errorf("unknown notify mode %q", s)
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

type Config struct {
	Dialer Dialer
	// Port identifies the channel the Dialer opens. It is reported with
	// state changes so the last used port can be persisted.
	Port            string
	SimPIN          string
	MinSendInterval time.Duration
	EchoOn          bool
	ATTimeout       time.Duration
	InitTimeout     time.Duration
	// RingGrace bounds the ringing state without a following RING.
	RingGrace  time.Duration
	SMSMode    SMSMode
	NotifyMode NotifyMode
	// Charset is selected with AT+CSCS during initialization. CharsetAuto
	// leaves the modem default in place.
	Charset            sms.Charset
	DeleteAfterRead    bool
	NotificationBuffer int
	PartTTL            time.Duration
	Logger             *slog.Logger
	// Clock stamps events. Defaults to time.Now.
	Clock func() time.Time
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 5 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.RingGrace == 0 {
		c.RingGrace = 20 * time.Second
	}
	if c.NotificationBuffer == 0 {
		c.NotificationBuffer = 100
	}
	if c.PartTTL == 0 {
		c.PartTTL = sms.DefaultPartTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithPort(port string) *ConfigBuilder {
	b.config.Port = port
	return b
}

func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.SimPIN = pin
	return b
}

func (b *ConfigBuilder) WithMinSendInterval(d time.Duration) *ConfigBuilder {
	b.config.MinSendInterval = d
	return b
}

func (b *ConfigBuilder) WithEcho(on bool) *ConfigBuilder {
	b.config.EchoOn = on
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithRingGrace(d time.Duration) *ConfigBuilder {
	b.config.RingGrace = d
	return b
}

func (b *ConfigBuilder) WithSMSMode(m SMSMode) *ConfigBuilder {
	b.config.SMSMode = m
	return b
}

func (b *ConfigBuilder) WithNotifyMode(m NotifyMode) *ConfigBuilder {
	b.config.NotifyMode = m
	return b
}

func (b *ConfigBuilder) WithCharset(c sms.Charset) *ConfigBuilder {
	b.config.Charset = c
	return b
}

func (b *ConfigBuilder) WithDeleteAfterRead(on bool) *ConfigBuilder {
	b.config.DeleteAfterRead = on
	return b
}

func (b *ConfigBuilder) WithNotificationBuffer(n int) *ConfigBuilder {
	b.config.NotificationBuffer = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithClock(now func() time.Time) *ConfigBuilder {
	b.config.Clock = now
	return b
}

// Build applies defaults and validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
