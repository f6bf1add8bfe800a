package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devicemonitor/internal/config"
	"devicemonitor/internal/logger"
	"devicemonitor/internal/models"
	"devicemonitor/internal/monitor"
	"devicemonitor/internal/notify"
	"devicemonitor/internal/probe"
	"devicemonitor/internal/registry"
	"devicemonitor/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the web server (overrides listen_address)")
	)
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := logger.Init(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logging")
	}
	log = logger.WithComponent("main")
	if *addr != "" {
		cfg.ListenAddress = *addr
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.MQTT.Enabled {
		publisher, err := notify.DialMQTT(cfg.MQTT, logger.WithComponent("mqtt"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect MQTT status publisher")
		}
		defer publisher.Close()
		notifier = publisher
	}

	prober := probe.WithTimeout(
		probe.NewSimulated(cfg.Probe.MinDelay, cfg.Probe.MaxDelay, cfg.Probe.SuccessRatio),
		cfg.Probe.Timeout,
	)

	mon := monitor.New(registry.New(), prober, monitor.Options{
		Schedule: models.Schedule{
			Enabled:  cfg.Schedule.Enabled,
			Interval: cfg.Interval(),
			Stagger:  cfg.Stagger(),
		},
		AllowedIntervals:  cfg.Schedule.AllowedIntervals,
		AllowedStaggers:   cfg.Schedule.AllowedStaggers,
		InitialProbeDelay: cfg.Probe.InitialDelay,
		Notifier:          notifier,
		Logger:            logger.WithComponent("monitor"),
	})
	defer mon.Close()

	for _, seed := range cfg.Devices {
		if _, err := mon.AddDevice(seed.Name, seed.Address); err != nil {
			log.Warn().Err(err).Str("name", seed.Name).Str("address", seed.Address).Msg("Skipping configured device")
		}
	}
	log.Info().Int("devices", len(mon.ListDevices())).Str("config", *configPath).Msg("Devices loaded")

	srv := server.New(cfg.ListenAddress, mon, logger.WithComponent("server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddress).
		Bool("auto_ping", cfg.Schedule.Enabled).
		Int("interval_seconds", cfg.Schedule.IntervalSeconds).
		Int("stagger_seconds", cfg.Schedule.StaggerSeconds).
		Msg("Device monitor listening")
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server error")
	}
}
