package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lycebot/premium/adapter/api"
	billingApp "github.com/lycebot/premium/internal/billing/application"
	billingPersistence "github.com/lycebot/premium/internal/billing/infrastructure/persistence"
	licensingApp "github.com/lycebot/premium/internal/licensing/application"
	licensingDomain "github.com/lycebot/premium/internal/licensing/domain"
	licensingCache "github.com/lycebot/premium/internal/licensing/infrastructure/cache"
	"github.com/lycebot/premium/internal/licensing/infrastructure/discord"
	"github.com/lycebot/premium/internal/licensing/infrastructure/notify"
	licensingPersistence "github.com/lycebot/premium/internal/licensing/infrastructure/persistence"
	sharedApplication "github.com/lycebot/premium/internal/shared/application"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/lycebot/premium/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/lycebot/premium/internal/shared/infrastructure/eventbus"
	"github.com/lycebot/premium/internal/shared/infrastructure/migrations"
	"github.com/lycebot/premium/internal/shared/infrastructure/outbox"
	"github.com/lycebot/premium/pkg/config"
	"github.com/lycebot/premium/pkg/observability"
)

const (
	connectTimeout = 10 * time.Second
	busyTimeout    = 5 * time.Second
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Metrics
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	LicenseRepo     *licensingPersistence.LicenseRepository
	EntitlementRepo *licensingPersistence.EntitlementRepository
	PaymentRepo     *billingPersistence.PaymentRepository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Outbox is nil when events are published straight after commit.
	Outbox *outbox.Store

	// Publishers
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus

	// Licensing collaborators
	OwnerCache  licensingCache.Store
	OwnerOracle licensingApp.OwnerOracle
	Notifier    licensingApp.Notifier

	// Services
	Licensing        *licensingApp.Service
	Purchases        *billingApp.PurchaseHandler
	PurchaseConsumer *billingApp.PurchaseConsumer
}

// NewContainer creates and wires all dependencies. Without DATABASE_URL,
// REDIS_URL or RABBITMQ_URL it runs on local SQLite, an in-memory owner cache
// and an in-process bus.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initCache(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initOwnerOracle(); err != nil {
		c.Close()
		return nil, err
	}

	// Create repositories
	c.LicenseRepo = licensingPersistence.NewLicenseRepository(c.DBConn)
	c.EntitlementRepo = licensingPersistence.NewEntitlementRepository(c.DBConn)
	c.PaymentRepo = billingPersistence.NewPaymentRepository(c.DBConn)
	c.UnitOfWork = database.NewUnitOfWork(c.DBConn)

	var recorder licensingApp.EventRecorder
	if cfg.OutboxEnabled {
		c.Outbox = outbox.NewStore(c.DBConn)
		recorder = c.Outbox
	}

	// Notifications leave through the broker when there is one
	if cfg.RabbitMQURL != "" && c.InProcessEventBus == nil {
		c.Notifier = notify.NewBusNotifier(c.EventPublisher)
	} else {
		c.Notifier = notify.NewLogNotifier(logger)
	}

	service, err := licensingApp.NewService(licensingApp.Deps{
		Licenses:          c.LicenseRepo,
		Entitlements:      c.EntitlementRepo,
		UnitOfWork:        c.UnitOfWork,
		Owners:            c.OwnerOracle,
		Keys:              licensingDomain.NewKeyGenerator(licensingDomain.WithKeyPrefix(cfg.LicenseKeyPrefix)),
		Notifier:          c.Notifier,
		Events:            eventbus.NewDomainEventPublisher(c.EventPublisher),
		Outbox:            recorder,
		Metrics:           c.Metrics,
		Logger:            logger,
		SideEffectTimeout: cfg.NotifyTimeout,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create licensing service: %w", err)
	}
	c.Licensing = service

	c.Purchases = billingApp.NewPurchaseHandler(c.PaymentRepo, c.Licensing, logger, c.Metrics)
	c.PurchaseConsumer = billingApp.NewPurchaseConsumer(c.Purchases)
	if c.InProcessEventBus != nil {
		c.InProcessEventBus.RegisterConsumer(c.PurchaseConsumer)
	}

	c.registerHealthChecks()

	logger.Info("container ready",
		"driver", c.DBDriver,
		"redis", c.RedisClient != nil,
		"broker", c.InProcessEventBus == nil,
		"outbox", c.Outbox != nil,
	)
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:          database.Driver(c.Config.DatabaseDriver),
		URL:             c.Config.DatabaseURL,
		SQLitePath:      c.Config.SQLitePath,
		MaxConns:        c.Config.DatabaseMaxConns,
		ConnectTimeout:  connectTimeout,
		BusyTimeout:     busyTimeout,
		ApplicationName: "premium",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrations.Run(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Logger.Info("connected to database", "driver", c.DBDriver)
	return nil
}

func (c *Container) initCache(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		c.OwnerCache = licensingCache.NewMemoryStore()
		return nil
	}

	client, err := licensingCache.NewRedisClient(ctx, c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, owner lookups will use in-memory cache", "error", err)
		c.OwnerCache = licensingCache.NewMemoryStore()
		return nil
	}

	c.RedisClient = client
	c.OwnerCache = licensingCache.NewRedisStore(client)
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		if err == nil {
			c.EventPublisher = publisher
			return nil
		}
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
	}

	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.EventPublisher = c.InProcessEventBus
	return nil
}

// initOwnerOracle uses the Discord API behind the owner cache when a bot
// token is configured, and the static owner map otherwise.
func (c *Container) initOwnerOracle() error {
	if c.Config.DiscordBotToken != "" {
		oracle := discord.NewOwnerOracle(discord.Config{
			APIURL:           c.Config.DiscordAPIURL,
			BotToken:         c.Config.DiscordBotToken,
			Timeout:          c.Config.OwnerLookupTimeout,
			FailureThreshold: uint32(max(c.Config.OwnerBreakerFailures, 0)),
			OpenTimeout:      c.Config.OwnerBreakerTimeout,
			Logger:           c.Logger,
		})
		c.Health.Register("discord", observability.PingChecker("discord", observability.Optional, oracle.Ping))
		c.OwnerOracle = licensingCache.NewOwnerOracle(oracle, c.OwnerCache, c.Config.OwnerCacheTTL, c.Metrics, c.Logger)
		return nil
	}

	owners, err := discord.ParseStaticOwners(c.Config.StaticGuildOwners)
	if err != nil {
		return fmt.Errorf("failed to parse STATIC_GUILD_OWNERS: %w", err)
	}
	if len(owners) == 0 {
		c.Logger.Warn("no owner lookup configured, every activation will be refused")
	}
	c.OwnerOracle = owners
	return nil
}

func (c *Container) registerHealthChecks() {
	c.Health.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))
	if c.RedisClient != nil {
		c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	if publisher, ok := c.EventPublisher.(*eventbus.RabbitMQPublisher); ok {
		c.Health.Register("publisher", observability.RabbitMQHealthChecker(func(context.Context) error {
			if publisher.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}))
	}
}

// NewRabbitMQConsumer connects a purchase consumer to the broker. It fails
// when RabbitMQ is not configured.
func (c *Container) NewRabbitMQConsumer() (*eventbus.RabbitMQConsumer, error) {
	if c.Config.RabbitMQURL == "" {
		return nil, errors.New("RABBITMQ_URL is not configured")
	}

	registry := eventbus.NewConsumerRegistry(c.Logger)
	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:       c.Config.RabbitMQURL,
		QueueName: c.Config.PurchaseQueue,
		Logger:    c.Logger,
	}, registry)
	if err != nil {
		return nil, err
	}
	consumer.RegisterConsumer(c.PurchaseConsumer)

	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(context.Context) error {
		if consumer.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}))
	return consumer, nil
}

// NewOutboxProcessor relays recorded events to the container's publisher.
// It returns nil when the outbox is disabled.
func (c *Container) NewOutboxProcessor() *outbox.Processor {
	if c.Outbox == nil {
		return nil
	}

	cfg := outbox.DefaultProcessorConfig()
	if c.Config.OutboxPollInterval > 0 {
		cfg.PollInterval = c.Config.OutboxPollInterval
	}
	cfg.MaxRetries = c.Config.OutboxMaxRetries
	cfg.Retention = c.Config.OutboxRetention

	return outbox.NewProcessor(c.Outbox, c.EventPublisher, cfg, c.Logger, outbox.WithMetrics(c.Metrics))
}

// NewAPIServer builds the HTTP API on top of the container's services.
func (c *Container) NewAPIServer() *api.Server {
	cfg := api.DefaultServerConfig()
	if c.Config.APIAddr != "" {
		cfg.Addr = c.Config.APIAddr
	}
	cfg.AdminToken = c.Config.APIAdminToken
	cfg.ActivationRatePerMinute = c.Config.ActivationRatePerMinute
	cfg.ActivationBurst = c.Config.ActivationBurst

	return api.NewServer(cfg, api.Deps{
		Licensing: c.Licensing,
		Purchases: c.Purchases,
		Health:    c.Health,
		Metrics:   c.Metrics.Handler(),
		Logger:    c.Logger,
	})
}

// Close cleans up all resources.
func (c *Container) Close() {
	// Let notifications and events in flight finish first
	if c.Licensing != nil {
		c.Licensing.Wait()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
