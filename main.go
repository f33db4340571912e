package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/ltemodem/api"
	"i4.energy/across/ltemodem/modem"
	"i4.energy/across/ltemodem/mqtt"
	"i4.energy/across/ltemodem/sms"
	"i4.energy/across/ltemodem/store"
)

// defaultSerialPort is used when neither the configuration nor the store
// names a port.
const defaultSerialPort = "/dev/ttyUSB2"

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", defaultSerialPort, "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("sim-pin", "", "SIM card PIN code (if required)")
	flag.String("db-path", "data/ltemodem.db", "Path to the sqlite database")
	flag.Bool("auto-connect", false, "Connect to the modem at startup")
	flag.String("sms-mode", "text", "SMS mode (text, pdu)")
	flag.String("notify-mode", "push", "New message indication (push, index)")
	flag.String("charset", "auto", "Character set (auto, gsm, ira, ucs2)")
	flag.Duration("at-timeout", 5*time.Second, "Timeout for a single AT command")
	flag.String("mqtt-broker", "", "MQTT broker URL, publishing is off when empty")
	flag.String("mqtt-client-id", "ltemodem", "MQTT client id")
	flag.String("mqtt-prefix", "ltemodem", "MQTT topic prefix")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	db, err := store.Open(config.DBPath)
	if err != nil {
		logger.Error("Failed to open store", "path", config.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	port := config.SerialPort
	if port == "" {
		if port, err = db.LastPort(ctx); err != nil {
			logger.Warn("Failed to read last port", "error", err)
		}
	}
	if port == "" {
		port = defaultSerialPort
	}

	smsMode, err := modem.ParseSMSMode(config.SMSMode)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	notifyMode, err := modem.ParseNotifyMode(config.NotifyMode)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	charset, err := sms.ParseCharset(config.Charset)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithInitTimeout(30 * time.Second).
		WithMinSendInterval(10 * time.Second).
		WithSimPIN(config.SimPIN).
		WithSMSMode(smsMode).
		WithNotifyMode(notifyMode).
		WithCharset(charset).
		WithDeleteAfterRead(config.DeleteAfterRead).
		WithLogger(logger.With("component", "modem")).
		WithPort(port).
		WithDialer(modem.SerialDialer{
			PortName: port,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	recorder := store.NewRecorder(db, logger)
	m.Subscribe(recorder)
	hub := api.NewHub(logger)
	m.Subscribe(hub)

	if config.MQTT.Broker != "" {
		opts := mqtt.Options{
			Broker:   config.MQTT.Broker,
			ClientID: config.MQTT.ClientID,
			Username: config.MQTT.Username,
			Password: config.MQTT.Password,
			Prefix:   config.MQTT.Prefix,
		}
		client, err := mqtt.Dial(opts, logger)
		if err != nil {
			logger.Error("Failed to connect to MQTT broker", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(250)

		publisher := mqtt.NewPublisher(client, opts, logger)
		m.Subscribe(publisher)
		if err := publisher.HandleSend(ctx, m); err != nil {
			logger.Error("Failed to subscribe to send requests", "error", err)
			os.Exit(1)
		}
	}

	autoConnect := config.AutoConnect
	if !autoConnect {
		if autoConnect, err = db.AutoConnect(ctx); err != nil {
			logger.Warn("Failed to read auto-connect setting", "error", err)
		}
	}
	if autoConnect {
		go func() {
			connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			logger.Info("Connecting to modem", "port", port)
			if err := m.Connect(connectCtx); err != nil {
				logger.Error("Failed to connect to modem", "port", port, "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &api.Server{
			Logger:   logger.With("component", "server"),
			Modem:    m,
			Store:    db,
			Recorder: recorder,
			Hub:      hub,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
		logger.Error("Failed to close modem", "error", err)
	}
	m.Flush()
}
