package storefx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"donation-platform/internal/config"
	"donation-platform/internal/database"
	"donation-platform/internal/repository"
	"donation-platform/internal/store"
)

var Module = fx.Options(
	fx.Provide(provideDriver),
	fx.Provide(store.NewWriter),
	fx.Provide(repository.NewDonationRepository),
	fx.Provide(repository.NewTransactionRepository),
)

func provideDriver(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (database.Driver, error) {
	var (
		driver database.Driver
		err    error
	)

	switch cfg.StoreConfig.Driver {
	case config.DriverPostgres:
		driver, err = database.NewPostgres(cfg.DSN, database.PoolOptions{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
	case config.DriverSupabase:
		driver, err = database.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseSchema)
	case config.DriverMemory:
		log.Warn("using the in-memory store, data is lost on restart")
		driver = database.NewMemory(repository.MemorySchema()...)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreConfig.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("store ready", zap.String("driver", cfg.StoreConfig.Driver))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return driver.Close()
		},
	})
	return driver, nil
}
