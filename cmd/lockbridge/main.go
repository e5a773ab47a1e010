package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"smart-lock/config"
	"smart-lock/internal/application"
	"smart-lock/internal/infra"
	"smart-lock/internal/infra/homeassistant"
	"smart-lock/internal/infra/httpapi"
	"smart-lock/internal/infra/mqtt"
	"smart-lock/internal/infra/pushover"
	"smart-lock/internal/infra/tuya"
	"smart-lock/internal/lock"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	dispatcher := application.NewSignalDispatcher(logger)
	manager := tuya.NewDeviceManager(newTuyaClient(cfg.Tuya), dispatcher, logger)

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Pushover.Title)
	} else {
		notifier = application.LogNotifier{Logger: logger}
	}

	var publishers []application.StatePublisher
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix, DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix}
		client, err := mqtt.Connect(mqtt.Options{
			Broker:            cfg.MQTT.Broker,
			ClientID:          cfg.MQTT.ClientID,
			Username:          cfg.MQTT.Username,
			Password:          cfg.MQTT.Password,
			TLS:               cfg.MQTT.TLS,
			QoS:               byte(cfg.MQTT.QoS),
			ReconnectInterval: time.Second,
			MaxReconnectDelay: time.Minute,
			WillTopic:         topics.BridgeStatus(),
		}, logger)
		if err != nil {
			logger.Error("connecting to mqtt", "error", err, "broker", cfg.MQTT.Broker)
			os.Exit(1)
		}
		defer client.Close()

		bridge = mqtt.NewBridge(client, topics, byte(cfg.MQTT.QoS), cfg.MQTT.Discovery, logger)
		publishers = append(publishers, bridge)
	}
	if cfg.HomeAssistant.Enabled {
		publishers = append(publishers, homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token))
	}

	hub := application.NewHub(manager, dispatcher, notifier, logger, publishers...)
	platform := lock.NewPlatform(manager, manager.API(), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx, platform.Setup)
	})

	if bridge != nil {
		if err := bridge.Start(gctx, manager, hub); err != nil {
			logger.Error("starting mqtt bridge", "error", err)
			os.Exit(1)
		}
	}

	if cfg.HTTP.Enabled {
		server := httpapi.NewServer(httpapi.Options{
			Addr:                  cfg.HTTP.Addr,
			AuthToken:             cfg.HTTP.AuthToken,
			CommandsPerMinute:     cfg.HTTP.RateLimit,
			AuthFailuresPerMinute: cfg.HTTP.AuthFailureLimit,
			TrustProxyHeaders:     cfg.HTTP.TrustProxyHeaders,
		}, hub, logger)
		g.Go(func() error {
			if err := server.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return server.Stop()
		})
	}

	syncInterval, err := cfg.SyncInterval()
	if err == nil && syncInterval > 0 {
		manager.StartPeriodicSync(gctx, syncInterval)
	}

	logger.Info("starting smart lock bridge",
		"region", cfg.Tuya.Region,
		"mqtt", cfg.MQTT.Enabled,
		"http", cfg.HTTP.Enabled,
		"categories", lock.Categories(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bridge error", "error", err)
		os.Exit(1)
	}
}

func newTuyaClient(cfg config.TuyaConfig) *tuya.Client {
	var client *tuya.Client
	if cfg.BaseURL != "" {
		client = tuya.NewClientWithURL(cfg.ClientID, cfg.Secret, cfg.BaseURL)
	} else {
		client = tuya.NewClient(cfg.ClientID, cfg.Secret, cfg.Region)
	}

	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryAttempts
	client.SetRetryConfig(retry)

	return client
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
