package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawinfra/outclaw/internal/api"
	"github.com/clawinfra/outclaw/internal/config"
	"github.com/clawinfra/outclaw/internal/dispatch"
	"github.com/clawinfra/outclaw/internal/netmon"
	"github.com/clawinfra/outclaw/internal/outbox"
	"github.com/clawinfra/outclaw/internal/scheduler"
	"github.com/clawinfra/outclaw/internal/store"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds all the runtime components.
type App struct {
	ConfigPath string
	Config     *config.Config
	Logger     *slog.Logger
	LogLevel   *slog.LevelVar
	Queue      *outbox.Queue
	Monitor    netmon.Monitor
	Runner     *scheduler.Runner
	APIServer  *api.Server
	Watcher    *config.Watcher

	closeStore func() error
}

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("outclaw", flag.ExitOnError)
	configPath := fs.String("config", "outclaw.json", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("outclaw v%s (built %s)\n", version, buildTime)
		fmt.Println("Offline operation outbox for edge devices")
		fmt.Println("https://github.com/clawinfra/outclaw")
		return 0
	}

	app, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}

	if err := serve(app); err != nil {
		app.Logger.Error("daemon error", "error", err)
		return 1
	}

	app.Logger.Info("outclaw stopped")
	return 0
}

// setup initializes all application components.
func setup(configPath string) (*App, error) {
	app := &App{ConfigPath: configPath}

	app.LogLevel = new(slog.LevelVar)
	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: app.LogLevel,
	}))

	app.Logger.Info("starting outclaw",
		"version", version,
		"config", configPath,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg
	app.LogLevel.Set(parseLogLevel(cfg.Server.LogLevel))

	// Durable store
	var st outbox.Store
	switch cfg.Store.Backend {
	case "sqlite":
		sqliteStore, err := store.NewSQLite(cfg.StorePath(), app.Logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		st = sqliteStore
		app.closeStore = sqliteStore.Close
	default:
		fileStore, err := store.NewFile(cfg.StorePath(), app.Logger)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		st = fileStore
	}

	// Dispatcher
	routes, err := dispatch.LoadRoutes(cfg.Dispatch.RoutesPath)
	if err != nil {
		return nil, fmt.Errorf("load dispatch routes: %w", err)
	}
	dispatcher := dispatch.NewHTTP(dispatch.HTTPConfig{
		BaseURL:   cfg.Dispatch.BaseURL,
		DeviceID:  cfg.Dispatch.DeviceID,
		JWTSecret: cfg.JWTSecret(),
		Timeout:   time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
	}, routes, app.Logger)

	// Queue
	app.Queue = outbox.New(st, dispatcher, outbox.Config{
		MaxPending:  cfg.Queue.MaxPending,
		MaxAttempts: cfg.Queue.MaxAttempts,
	}, app.Logger)

	// Connectivity monitor
	if cfg.MQTT.Enabled {
		app.Monitor = netmon.NewMQTT(cfg.MQTT.Host, cfg.MQTT.Port,
			cfg.MQTT.Username, cfg.MQTT.Password, app.Logger)
	} else {
		// Without a broker the daemon assumes it is online; the backoff
		// policy absorbs the failed dispatches when it is not.
		app.Monitor = netmon.NewManual(true)
		app.Logger.Info("mqtt disabled, assuming online")
	}

	// Periodic sync trigger
	if cfg.Sync.Kind != "" {
		sched := &scheduler.Schedule{
			Kind:       cfg.Sync.Kind,
			IntervalMs: cfg.Sync.IntervalMs,
			Expr:       cfg.Sync.Expr,
		}
		if err := sched.Validate(); err != nil {
			return nil, fmt.Errorf("sync schedule: %w", err)
		}
		app.Runner = scheduler.NewRunner(sched, app.Queue.Sync, app.Logger)
	}

	app.APIServer = api.NewServer(cfg.Server.ListenAddr, app.Queue,
		app.Monitor.Online, cfg.APIAuthSecret(), app.Logger)

	app.Watcher = config.NewWatcher(configPath, 5*time.Second, app.Logger, func() {
		app.reloadConfig()
	})

	return app, nil
}

// serve runs all services until a shutdown signal arrives.
func serve(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if m, ok := app.Monitor.(*netmon.MQTTMonitor); ok {
		if err := m.Start(ctx); err != nil {
			return fmt.Errorf("start connectivity monitor: %w", err)
		}
		defer m.Stop()
	}

	// A reconnect is the main sync trigger: queued work drains as soon as
	// the device is back online.
	unsubscribe := app.Monitor.Subscribe(func(online bool) {
		if online {
			app.Logger.Info("connectivity restored, starting sync")
			go app.Queue.Sync(ctx)
		} else {
			app.Logger.Info("connectivity lost")
		}
	})
	defer unsubscribe()

	app.Watcher.Start()
	defer app.Watcher.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.APIServer.Start(gctx)
	})

	if app.Runner != nil {
		g.Go(func() error {
			app.Runner.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		watchPlatformSignals(gctx, app)
		return nil
	})

	// Drain anything persisted from the previous run.
	if app.Monitor.Online() {
		go app.Queue.Sync(ctx)
	}

	app.Logger.Info("outclaw ready",
		"listen", app.Config.Server.ListenAddr,
		"pending", app.Queue.OperationCount())

	err := g.Wait()

	if app.closeStore != nil {
		if cerr := app.closeStore(); cerr != nil {
			app.Logger.Warn("failed to close store", "error", cerr)
		}
	}
	return err
}

// reloadConfig re-reads the config file and applies hot-reloadable fields.
func (app *App) reloadConfig() {
	result, err := app.Config.Reload(app.ConfigPath)
	if err != nil {
		app.Logger.Error("config reload failed", "error", err)
		return
	}
	result.LogResult(app.Logger)

	app.LogLevel.Set(parseLogLevel(app.Config.Server.LogLevel))
	app.Queue.SetLimits(app.Config.Queue.MaxPending, app.Config.Queue.MaxAttempts)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
