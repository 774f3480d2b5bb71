package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lycebot/premium/adapter/api"
	"github.com/lycebot/premium/adapter/cli"
	cliBilling "github.com/lycebot/premium/adapter/cli/billing"
	cliLicense "github.com/lycebot/premium/adapter/cli/license"
	"github.com/lycebot/premium/internal/app"
	"github.com/lycebot/premium/pkg/config"
	"github.com/lycebot/premium/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		observability.LoggerFromEnv().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Commands print to stdout; keep logs on stderr and quiet unless asked
	level := observability.LogLevel(cfg.LogLevel)
	if os.Getenv("LOG_LEVEL") == "" {
		level = observability.LogLevelWarn
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:          level,
		Format:         observability.LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "premium",
		ServiceVersion: cli.Version,
	})
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// version and help still work without a database
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		cliApp = cli.NewApp(container.Licensing, container.Purchases, container.Health)
		cliApp.SweepInterval = cfg.SweepInterval
		cliApp.NewServer = func() *api.Server { return container.NewAPIServer() }
	}

	cli.SetApp(cliApp)

	cli.AddCommand(cliLicense.Cmd)
	cli.AddCommand(cliBilling.Cmd)

	err = cli.Execute(ctx)
	if container != nil {
		container.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
