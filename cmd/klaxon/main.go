package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/klaxon/klaxon/config"
	"github.com/klaxon/klaxon/pkg/api"
	"github.com/klaxon/klaxon/pkg/api/events"
	"github.com/klaxon/klaxon/pkg/api/handlers"
	"github.com/klaxon/klaxon/pkg/api/middleware"
	"github.com/klaxon/klaxon/pkg/cancel"
	"github.com/klaxon/klaxon/pkg/logger"
	"github.com/klaxon/klaxon/pkg/metrics"
	"github.com/klaxon/klaxon/pkg/op"
	"github.com/klaxon/klaxon/pkg/relay"
	"github.com/klaxon/klaxon/pkg/telemetry/tracing"
	"github.com/klaxon/klaxon/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	relayMode  = flag.String("relay", "", "Override relay mode (local, redis)")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Klaxon",
		"version", version.Version,
		"git_commit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Tracing
	tracingShutdown, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)
	if metricsManager.Enabled() {
		cancel.SetMetricsRecorder(metricsManager)
		relay.SetMetricsRecorder(metricsManager)
		op.SetMetricsRecorder(metricsManager)

		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Relay backend
	rel, err := buildRelay(cfg, log)
	if err != nil {
		log.Error("Failed to create relay", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rel.Close(); err != nil {
			log.Error("Error closing relay", "error", err)
		}
	}()

	// Event fan-out: runner lifecycle -> broadcaster -> websocket clients.
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()

	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	defer wsHandler.Close()
	go forwardEvents(broadcaster, wsHandler)

	origin, _ := os.Hostname()
	runner := op.NewRunner(rel, cfg.Runner.Workers, cfg.Runner.QueueSize,
		op.WithEventSink(events.NewSink(broadcaster)),
		op.WithOrigin(origin),
	)
	runner.Start()

	// HTTP API
	apiHandlers := &api.Handlers{
		Operations: handlers.NewOperationsHandler(runner, log),
		Health:     handlers.NewHealthHandler(rel, runner.Registry()),
		Events:     wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}
	if cfg.Server.RateLimit.Enabled {
		apiHandlers.CancelLimiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		})
	}
	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Hot reload of the log level when a config file is in use.
	watcher := startConfigWatcher(ctx, cfg, log)
	if watcher != nil {
		defer func() {
			_ = watcher.Stop()
		}()
	}

	log.Info("Klaxon is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"relay_mode", cfg.Relay.Mode,
		"workers", cfg.Runner.Workers,
	)

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Draining operation runner")
	runner.Close()

	if err := tracingShutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Klaxon stopped gracefully")
}

// buildRelay selects the relay backend from configuration.
func buildRelay(cfg *config.Config, log logger.Logger) (relay.Relay, error) {
	switch cfg.Relay.Mode {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Relay.Redis.Address,
			Password: cfg.Relay.Redis.Password,
			DB:       cfg.Relay.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		log.Info("Initialized Redis relay",
			"address", cfg.Relay.Redis.Address,
			"channel_prefix", cfg.Relay.ChannelPrefix,
		)
		return relay.NewRedis(client, cfg.Relay.ChannelPrefix), nil
	case "local":
		log.Info("Initialized local relay")
		return relay.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown relay mode %q", cfg.Relay.Mode)
	}
}

// forwardEvents pumps broadcaster events into the websocket handler until
// the broadcaster closes.
func forwardEvents(b *events.Broadcaster, ws *handlers.WebSocketHandler) {
	ch := b.Subscribe(256)
	for event := range ch {
		_ = ws.Broadcast(handlers.EventMessage{
			Type:      event.Type,
			Timestamp: event.Timestamp,
			Payload:   event.Payload,
		})
	}
}

// startConfigWatcher watches the config file and applies hot-reloadable
// settings. Returns nil when no config file is in use.
func startConfigWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) *config.Watcher {
	if *configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(*configPath, config.NewLoader())
	if err != nil {
		log.Warn("Config watcher unavailable", "error", err)
		return nil
	}

	watcher.OnChange(func(updated *config.Config) {
		level := logger.ParseLevel(updated.Log.Level)
		log.SetLevel(level)
		log.Info("Applied configuration change", "log_level", updated.Log.Level)
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()
	return watcher
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *relayMode != "" {
		overrides["relay.mode"] = *relayMode
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Klaxon - Cooperative Cancellation Service\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Klaxon - Cooperative cancellation service for long-running operations\n\n")
	fmt.Printf("Usage: klaxon [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  klaxon                                    # Run with default config\n")
	fmt.Printf("  klaxon -config config.yaml                # Use specific config file\n")
	fmt.Printf("  klaxon -relay redis -log-level debug      # Override specific options\n")
	fmt.Printf("  klaxon -version                           # Print version info\n")
}
