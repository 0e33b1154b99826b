package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/engine"
	"github.com/kborowski/pivot/internal/events"
	"github.com/kborowski/pivot/internal/gateway"
	"github.com/kborowski/pivot/internal/heartbeat"
	"github.com/kborowski/pivot/internal/memory"
	"github.com/kborowski/pivot/internal/mode"
	"github.com/kborowski/pivot/internal/storage"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the engine and gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.BoolFlag{
				Name:  "no-gateway",
				Usage: "Run the engine without the HTTP gateway",
			},
		},
		Action: runEngine,
	}
}

func runEngine(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}

	reg, err := mode.NewRegistry(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := os.MkdirAll(config.PivotPath(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Persistent event log, one JSONL file per day
	eventLog := storage.NewEventLogger(config.EventLogPath(), bus)
	defer eventLog.Close()

	// Transition history
	hist, err := storage.OpenHistory(config.HistoryPath())
	if err != nil {
		return fmt.Errorf("open transition history: %w", err)
	}
	defer hist.Close()

	// Mode memory
	var store memory.Store = memory.NopStore{}
	if cfg.ModeMemoryEnabled {
		store = memory.NewFileStore(config.MemoryPath())
	}

	ctrl := engine.NewController(engine.Options{
		Registry: reg,
		Config:   cfg,
		Bus:      bus,
		Memory:   store,
		History:  hist,
	})
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer ctrl.Stop()

	// Heartbeat for `pivot status`
	hb := heartbeat.NewWriter(config.HeartbeatPath(), func() string {
		return ctrl.State().Mode
	})
	hb.Start()
	defer hb.Stop()

	if cmd.Bool("no-gateway") {
		<-ctx.Done()
		return nil
	}

	srv := gateway.NewServer(bus, ctrl, reg, hist, cfg.Gateway.Host, cfg.Gateway.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("gateway shutdown", "error", err)
	}
	return nil
}
