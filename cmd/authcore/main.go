package main

import (
	"context"
	"log/slog"
	"os"

	"authcore/config"
	"authcore/internal/delivery"
	"authcore/internal/delivery/api"
	"authcore/internal/delivery/api/middleware"
	"authcore/internal/delivery/api/router/handler"
	"authcore/internal/domain/repository"
	"authcore/internal/errors"
	"authcore/internal/infra/auth"
	logs "authcore/internal/infra/log"
	"authcore/internal/infra/persistence/memory"
	"authcore/internal/infra/persistence/postgres"
	"authcore/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			newCredentialStore,
		),
	)
}

// newCredentialStore selects the store implementation from store.driver.
// The Postgres connection is only opened when it is selected.
func newCredentialStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (repository.CredentialStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("Using in-memory credential store; accounts are lost on restart")

		return memory.NewAccountStore(), nil
	case config.StoreDriverPostgres:
		db, err := postgres.New(postgres.Params{Lifecycle: lc, Config: cfg, Logger: logger})
		if err != nil {
			return nil, err
		}

		return postgres.NewAccountStore(db), nil
	default:
		return nil, errors.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewArgon2Hasher,
			auth.NewJWTCodec,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewRateLimiter,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
