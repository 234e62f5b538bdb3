package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "andromeda-healthcare/internal/app"
	"andromeda-healthcare/internal/cache"
	"andromeda-healthcare/internal/config"
	"andromeda-healthcare/internal/metrics"
	mysqlClient "andromeda-healthcare/internal/platform/mysql"
	rabbitmqClient "andromeda-healthcare/internal/platform/rabbitmq"
	redisClient "andromeda-healthcare/internal/platform/redis"
	sqliteClient "andromeda-healthcare/internal/platform/sqlite"
	"andromeda-healthcare/internal/repository"
	"andromeda-healthcare/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	// Limiter and Publisher stay nil unless their backend is enabled.
	Limiter     appsvc.LoginLimiter
	Publisher   appsvc.EventPublisher
	EventWorker *worker.AuthEventWorker

	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	StartedAt time.Time
}

func NewWithConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		Registry:  prometheus.NewRegistry(),
		StartedAt: time.Now(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewCollector(a.Registry)

	if err := a.openDatabase(ctx); err != nil {
		return nil, err
	}
	if err := repository.Migrate(a.DB); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = redisCli
		a.Limiter = cache.NewLoginAttempts(
			redisCli,
			cfg.Redis.LoginMaxFailures,
			time.Duration(cfg.Redis.LoginWindowSeconds)*time.Second,
		)
		log.Info("login throttling enabled", slog.String("redis", cfg.Redis.Addr))
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
		a.Publisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.AuthEventQueue)

		eventRepo := repository.NewAuthEventRepository(a.DB)
		a.EventWorker = worker.NewAuthEventWorker(mqConn, eventRepo, cfg.RabbitMQ.AuthEventQueue, log)
		if err := a.EventWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start auth event worker failed: %w", err)
		}
		log.Info("auth event audit enabled", slog.String("queue", cfg.RabbitMQ.AuthEventQueue))
	}

	return a, nil
}

func (a *App) openDatabase(ctx context.Context) error {
	var err error
	switch a.Config.Database.Driver {
	case config.DriverSQLite:
		a.DB, err = sqliteClient.New(ctx, a.Config.Database.SQLitePath)
	default:
		a.DB, err = mysqlClient.New(ctx, a.Config.MySQLDSN())
	}
	return err
}

// AuthService composes the auth service from the store and whichever
// optional collaborators are enabled.
func (a *App) AuthService() (*appsvc.AuthService, error) {
	return appsvc.NewAuthService(repository.NewUserRepository(a.DB), appsvc.AuthOptions{
		BcryptCost:        a.Config.Auth.BcryptCost,
		MinPasswordLength: a.Config.Auth.MinPasswordLength,
		Limiter:           a.Limiter,
		Publisher:         a.Publisher,
		Logger:            a.Logger,
	})
}

// HealthChecks returns one probe per backing service in use.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
