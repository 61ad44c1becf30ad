package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/salonkit/appointment-notifier/internal/alerts"
	"github.com/salonkit/appointment-notifier/internal/booking"
	"github.com/salonkit/appointment-notifier/internal/config"
	"github.com/salonkit/appointment-notifier/internal/consumer"
	deliveryHTTP "github.com/salonkit/appointment-notifier/internal/delivery/http"
	repo "github.com/salonkit/appointment-notifier/internal/domain/repository"
	"github.com/salonkit/appointment-notifier/internal/gateway"
	"github.com/salonkit/appointment-notifier/internal/logger"
	"github.com/salonkit/appointment-notifier/internal/service"
	"github.com/salonkit/appointment-notifier/internal/storage/postgres"
	"github.com/salonkit/appointment-notifier/internal/storage/rabbitmq"
	"github.com/salonkit/appointment-notifier/internal/storage/redis"
)

// CommonModule provides dependencies that are shared between the API and Worker applications.
var CommonModule = fx.Options(
	fx.Provide(
		// Core components
		config.NewConfig,
		logger.NewLogger,

		// Storage Layer
		postgres.NewPool,
		redis.NewClient,
		postgres.NewRuleRepository,
		redis.NewRuleCache,
		func(pool *pgxpool.Pool, log *zerolog.Logger) repo.LedgerRepository {
			return postgres.NewLedgerRepository(pool, log)
		},
		func(pool *pgxpool.Pool, log *zerolog.Logger) repo.AppointmentSource {
			return postgres.NewAppointmentSource(pool, log)
		},
		func(pool *pgxpool.Pool, log *zerolog.Logger) repo.ChannelInstanceRepository {
			return postgres.NewChannelInstanceRepository(pool, log)
		},
		// The rule repository every consumer sees is the Redis-backed
		// cache-aside decorator over the Postgres one.
		func(pgRepo *postgres.RuleRepository, cache *redis.RuleCache, log *zerolog.Logger) repo.RuleRepository {
			return redis.NewCachedRuleRepository(pgRepo, cache, log)
		},

		// External collaborators
		func(cfg *config.Config, log *zerolog.Logger) gateway.Sender {
			return gateway.NewClient(cfg, log)
		},
		func(cfg *config.Config, log *zerolog.Logger) booking.Client {
			return booking.NewHTTPClient(cfg, log)
		},
		alerts.NewReporter,

		// Service Layer
		service.NewInterpreter,
	),
)

// APIModule defines the Fx module for the HTTP API application.
var APIModule = fx.Options(
	CommonModule, // Include all shared components
	fx.Provide(
		// API-specific components
		deliveryHTTP.NewHandlers,
		deliveryHTTP.NewServer,
	),

	fx.Invoke(func(server *deliveryHTTP.Server, lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						panic(err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
		})
	}),
)

// WorkerModule defines the Fx module for the background engine: the
// due-notification scanner, the dispatch worker pool, the expiration
// sweeper and the appointment-event consumer.
var WorkerModule = fx.Options(
	CommonModule, // Include all shared components
	fx.Provide(
		rabbitmq.NewConnection,
		service.NewScanner,
		service.NewDispatcher,
		service.NewSweeper,
		consumer.New,
	),
	fx.Invoke(func(
		lc fx.Lifecycle,
		scanner *service.Scanner,
		dispatcher *service.Dispatcher,
		sweeper *service.Sweeper,
		events *consumer.Consumer,
	) {
		// The jobs outlive OnStart's context; they run until OnStop.
		runCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go scanner.Run(runCtx)
				go dispatcher.Run(runCtx)
				go sweeper.Run(runCtx)
				go events.Start(runCtx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)
