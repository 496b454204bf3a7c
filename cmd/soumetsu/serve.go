package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soumetsu-project/soumetsu/internal/api"
	"github.com/soumetsu-project/soumetsu/internal/bancho"
	"github.com/soumetsu-project/soumetsu/internal/cli"
	"github.com/soumetsu-project/soumetsu/internal/config"
	"github.com/soumetsu-project/soumetsu/internal/db"
	"github.com/soumetsu-project/soumetsu/internal/events"
	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/metrics"
	"github.com/soumetsu-project/soumetsu/internal/scheduler"
	"github.com/soumetsu-project/soumetsu/internal/telemetry"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

type serveOptions struct {
	console bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bancho server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.console, "console", true, "read operator commands from stdin")
	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	fmt.Printf(Banner, version)
	fmt.Println()

	// Defaults first, reconfigured once the config file is read.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info().
		Str("version", version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Soumetsu")

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	geo := geoloc.New()
	if cfg.Geoloc.DBPath != "" {
		if err := geo.Load(cfg.Geoloc.DBPath); err != nil {
			log.Warn().Err(err).Msg("geolocation disabled, countries come from user records")
		}
	}
	defer geo.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	eventBus := events.NewEventBus()
	eventBus.Subscribe(events.EventShutdown, "main", func(context.Context, events.Event) error {
		cancel()
		return nil
	})

	var (
		recorder bancho.Recorder
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))
		gatherer = reg
	}

	banchoCfg := cfg.GetBancho()
	svc := bancho.NewService(bancho.Config{
		MailboxLimit:    banchoCfg.MailboxLimit,
		ProtocolVersion: banchoCfg.ProtocolVersion,
		WelcomeMessage:  banchoCfg.WelcomeMessage,
		Channels:        channels(banchoCfg.Channels),
	}, bancho.Deps{
		Users:   db.NewUserRepository(database),
		HWIDs:   db.NewHWIDRepository(database),
		Geo:     geo,
		Events:  eventBus,
		Metrics: recorder,
	})

	apiServer := api.NewServer(cfg, svc, gatherer)

	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg.MQTT, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(svc, scheduler.Options{
		SweepInterval:  time.Duration(banchoCfg.SweepInterval) * time.Second,
		SessionTimeout: time.Duration(banchoCfg.SessionTimeout) * time.Second,
		Online:         svc.Sessions().Len,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv := cfg.GetServer()
		log.Info().Str("host", srv.HTTPHost).Int("port", srv.HTTPPort).Msg("starting bancho HTTP server")
		if err := startWithRetry(ctx, "HTTP server", apiServer.Start, 5); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	if opts.console {
		// Not in the wait group: the console blocks on stdin until a line arrives.
		go cli.NewCLI(svc, eventBus, os.Stdout).Start(ctx, os.Stdin)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")
	svc.Shutdown(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("Soumetsu stopped")
	return nil
}

func channels(in []config.ChannelConfig) []bancho.Channel {
	out := make([]bancho.Channel, 0, len(in))
	for _, ch := range in {
		out = append(out, bancho.Channel{Name: ch.Name, Topic: ch.Topic, AutoJoin: ch.AutoJoin})
	}
	return out
}

func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			time.Sleep(3 * time.Second)
		}
	}
	return lastErr
}
