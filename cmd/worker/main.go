package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/lycebot/premium/internal/app"
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/pkg/config"
	"github.com/lycebot/premium/pkg/observability"
)

const (
	shutdownTimeout = 5 * time.Second
	// outboxMaxLag marks the relay degraded when events wait longer than this.
	outboxMaxLag = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.LoggerFromEnv().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:          observability.LogLevel(cfg.LogLevel),
		Format:         observability.LogFormat(cfg.LogFormat),
		Output:         os.Stdout,
		AddSource:      cfg.IsProduction(),
		ServiceName:    "premium-worker",
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// run starts the expiration sweeper, the outbox relay, the purchase consumer
// and the health server, and blocks until a signal arrives or one of them
// fails.
func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting premium worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	var consumer *eventbus.RabbitMQConsumer
	if cfg.RabbitMQURL != "" {
		consumer, err = container.NewRabbitMQConsumer()
		if err != nil {
			return fmt.Errorf("connect purchase consumer: %w", err)
		}
		defer consumer.Close()
	} else {
		logger.Warn("RABBITMQ_URL not set, purchases are not consumed")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.Licensing.Sweeper().Run(ctx, cfg.SweepInterval)
	})

	if relay := container.NewOutboxProcessor(); relay != nil {
		container.Health.Register("outbox",
			observability.PingChecker("outbox", observability.Optional, relay.LagCheck(outboxMaxLag)))
		g.Go(func() error {
			return relay.Run(ctx)
		})
	}

	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthRouter(container),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return healthSrv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// healthRouter serves /healthz (liveness), /readyz (component checks) and
// /metrics.
func healthRouter(c *app.Container) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		health := c.Health.GetOverallHealth(checkCtx)
		if health.Status == observability.HealthStatusUnhealthy {
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, health)
	})

	r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	return r
}
