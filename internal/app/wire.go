package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/varsitymarkets/campusmarket/internal/blob/s3"
	"github.com/varsitymarkets/campusmarket/internal/bus"
	"github.com/varsitymarkets/campusmarket/internal/cache/redis"
	"github.com/varsitymarkets/campusmarket/internal/config"
	"github.com/varsitymarkets/campusmarket/internal/directory"
	"github.com/varsitymarkets/campusmarket/internal/domain"
	"github.com/varsitymarkets/campusmarket/internal/service"
	"github.com/varsitymarkets/campusmarket/internal/store/memory"
	"github.com/varsitymarkets/campusmarket/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the engine needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Markets   domain.MarketStore
	Ledger    domain.Ledger
	Directory directory.Directory

	// Optional layers; nil when disabled in config.
	SeriesCache domain.SeriesCache
	Blob        domain.BlobWriter

	// SignalBus is always present: Redis pub/sub when Redis is enabled,
	// otherwise an in-process bus.
	SignalBus domain.SignalBus

	// Archive runs the ledger export loop; nil when archival is disabled.
	Archive *service.ArchiveService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Directory: directory.NewStatic(cfg.Admin.Usernames),
	}

	// --- Storage ---
	switch cfg.Storage.Driver {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewStore(pgClient)
		deps.Markets = store
		deps.Ledger = store
	default:
		store := memory.NewStore()
		deps.Markets = store
		deps.Ledger = store
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SeriesCache = redis.NewSeriesCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.SignalBus = bus.NewMemory()
	}

	// --- S3 blob storage + archive loop (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Blob = s3blob.NewWriter(s3Client)
		deps.Archive = service.NewArchiveService(
			deps.Markets,
			deps.Ledger,
			deps.Blob,
			cfg.Archive.Interval.Duration,
			logger.With(slog.String("component", "archive")),
		)
	}

	return deps, cleanup, nil
}

// seedMarkets creates the configured starter markets when the store is empty.
// It is a no-op when markets already exist, so restarts do not duplicate them.
func seedMarkets(ctx context.Context, cfg *config.Config, markets domain.MarketStore, logger *slog.Logger) error {
	if len(cfg.Seed.Markets) == 0 {
		return nil
	}

	existing, err := markets.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list markets: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, m := range cfg.Seed.Markets {
		created, err := markets.Create(ctx, m.Title)
		if err != nil {
			return fmt.Errorf("seed: create market %q: %w", m.Title, err)
		}
		logger.InfoContext(ctx, "seeded market",
			slog.Int64("market_id", created.ID),
			slog.String("title", created.Title),
		)
	}
	return nil
}
