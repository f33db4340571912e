package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := LoadConfig(WithDefaults())
		if err != nil {
			t.Fatalf("unexpected error from LoadConfig(): %v", err)
		}
		if c.BindAddress != "0.0.0.0:8080" || c.BaudRate != 115200 || c.ATTimeout != 5*time.Second {
			t.Errorf("unexpected defaults %+v", c)
		}
		if c.SerialPort != "" {
			t.Errorf("expected no default serial port, got %q", c.SerialPort)
		}
		if c.MQTT.Broker != "" || c.MQTT.Prefix != "ltemodem" {
			t.Errorf("unexpected mqtt defaults %+v", c.MQTT)
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltemodem.yaml")
		data := "serial_port: /dev/ttyUSB3\nsms_mode: pdu\nat_timeout: 8s\nmqtt:\n  broker: tcp://localhost:1883\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("unexpected error writing config: %v", err)
		}

		c, err := LoadConfig(WithDefaults(), WithFile(path))
		if err != nil {
			t.Fatalf("unexpected error from LoadConfig(): %v", err)
		}
		if c.SerialPort != "/dev/ttyUSB3" || c.SMSMode != "pdu" || c.ATTimeout != 8*time.Second {
			t.Errorf("unexpected config %+v", c)
		}
		if c.MQTT.Broker != "tcp://localhost:1883" || c.MQTT.Prefix != "ltemodem" {
			t.Errorf("unexpected mqtt config %+v", c.MQTT)
		}
		if c.BindAddress != "0.0.0.0:8080" {
			t.Errorf("expected default bind address kept, got %q", c.BindAddress)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := LoadConfig(WithFile(filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
			t.Error("expected error for missing file")
		}
		if _, err := LoadConfig(WithFile("")); err != nil {
			t.Errorf("unexpected error from LoadConfig(): %v", err)
		}
	})

	t.Run("Env", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")
		t.Setenv("BAUD_RATE", "9600")
		t.Setenv("AUTO_CONNECT", "true")
		t.Setenv("AT_TIMEOUT", "2s")
		t.Setenv("MQTT_BROKER", "tcp://broker:1883")

		c, err := LoadConfig(WithDefaults(), WithEnv())
		if err != nil {
			t.Fatalf("unexpected error from LoadConfig(): %v", err)
		}
		if c.SerialPort != "/dev/ttyACM0" || c.BaudRate != 9600 || !c.AutoConnect || c.ATTimeout != 2*time.Second {
			t.Errorf("unexpected config %+v", c)
		}
		if c.MQTT.Broker != "tcp://broker:1883" {
			t.Errorf("unexpected broker %q", c.MQTT.Broker)
		}
	})

	t.Run("Bad env duration", func(t *testing.T) {
		t.Setenv("AT_TIMEOUT", "soon")
		if _, err := LoadConfig(WithDefaults(), WithEnv()); err == nil {
			t.Error("expected error for invalid AT_TIMEOUT")
		}
	})

	t.Run("Flags override env", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")

		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.String("serial-port", "", "")
		fs.String("log-level", "info", "")
		fs.Bool("auto-connect", false, "")
		fs.Duration("at-timeout", 0, "")
		if err := fs.Parse([]string{"-serial-port", "/dev/ttyUSB4", "-auto-connect", "-at-timeout", "3s"}); err != nil {
			t.Fatalf("unexpected error from Parse(): %v", err)
		}

		c, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
		if err != nil {
			t.Fatalf("unexpected error from LoadConfig(): %v", err)
		}
		if c.SerialPort != "/dev/ttyUSB4" || !c.AutoConnect || c.ATTimeout != 3*time.Second {
			t.Errorf("unexpected config %+v", c)
		}
		if c.LogLevel != "info" {
			t.Errorf("expected unset flag to leave log level, got %q", c.LogLevel)
		}
	})
}
