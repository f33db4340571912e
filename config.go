package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB2").
	// When empty the port used by the last successful connection is taken.
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// SimPIN is the SIM card PIN code
	SimPIN string `yaml:"sim_pin"`
	// DBPath is the sqlite database holding the message archive and settings
	DBPath string `yaml:"db_path"`
	// AutoConnect connects the modem at startup. The flag stored in the
	// database is honoured as well.
	AutoConnect bool `yaml:"auto_connect"`
	// SMSMode is "text" or "pdu"
	SMSMode string `yaml:"sms_mode"`
	// NotifyMode is "push" or "index"
	NotifyMode string `yaml:"notify_mode"`
	// Charset is "auto", "gsm" or "ucs2"
	Charset string `yaml:"charset"`
	// ATTimeout bounds a single AT command
	ATTimeout time.Duration `yaml:"at_timeout"`
	// DeleteAfterRead removes indexed messages once fetched
	DeleteAfterRead bool `yaml:"delete_after_read"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the optional broker connection. Publishing is off
// while Broker is empty.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.DBPath = "data/ltemodem.db"
		c.SMSMode = "text"
		c.NotifyMode = "push"
		c.Charset = "auto"
		c.ATTimeout = 5 * time.Second
		c.MQTT.ClientID = "ltemodem"
		c.MQTT.Prefix = "ltemodem"
		return nil
	}
}

// WithFile loads configuration from a YAML file. Keys missing from the file
// keep their current values. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		vars := map[string]*string{
			"BIND_ADDRESS":   &c.BindAddress,
			"SERIAL_PORT":    &c.SerialPort,
			"LOG_LEVEL":      &c.LogLevel,
			"SIM_PIN":        &c.SimPIN,
			"DB_PATH":        &c.DBPath,
			"SMS_MODE":       &c.SMSMode,
			"NOTIFY_MODE":    &c.NotifyMode,
			"CHARSET":        &c.Charset,
			"MQTT_BROKER":    &c.MQTT.Broker,
			"MQTT_CLIENT_ID": &c.MQTT.ClientID,
			"MQTT_PREFIX":    &c.MQTT.Prefix,
			"MQTT_USERNAME":  &c.MQTT.Username,
			"MQTT_PASSWORD":  &c.MQTT.Password,
		}
		for name, dst := range vars {
			if v := os.Getenv(name); v != "" {
				*dst = v
			}
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if timeout := os.Getenv("AT_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("AT_TIMEOUT: %w", err)
			}
			c.ATTimeout = d
		}

		if auto := os.Getenv("AUTO_CONNECT"); auto != "" {
			if b, err := strconv.ParseBool(auto); err == nil {
				c.AutoConnect = b
			}
		}

		if del := os.Getenv("DELETE_AFTER_READ"); del != "" {
			if b, err := strconv.ParseBool(del); err == nil {
				c.DeleteAfterRead = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags. Only flags set on
// the command line override earlier values.
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, e := strconv.Atoi(f.Value.String()); e == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "db-path":
				c.DBPath = f.Value.String()
			case "auto-connect":
				c.AutoConnect = f.Value.String() == "true"
			case "sms-mode":
				c.SMSMode = f.Value.String()
			case "notify-mode":
				c.NotifyMode = f.Value.String()
			case "charset":
				c.Charset = f.Value.String()
			case "at-timeout":
				d, e := time.ParseDuration(f.Value.String())
				if e != nil {
					err = fmt.Errorf("at-timeout: %w", e)
					return
				}
				c.ATTimeout = d
			case "mqtt-broker":
				c.MQTT.Broker = f.Value.String()
			case "mqtt-client-id":
				c.MQTT.ClientID = f.Value.String()
			case "mqtt-prefix":
				c.MQTT.Prefix = f.Value.String()
			}
		})
		return err
	}
}
