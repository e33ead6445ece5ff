package dashboard

import (
	"context"

	"github.com/canopy-network/txdash/app/dashboard/types"
	"github.com/canopy-network/txdash/pkg/cache"
	"github.com/canopy-network/txdash/pkg/fetcher"
	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/logging"
	"github.com/canopy-network/txdash/pkg/metrics"
	"github.com/canopy-network/txdash/pkg/redis"
	"github.com/canopy-network/txdash/pkg/retry"
	"github.com/canopy-network/txdash/pkg/secrets"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("dashboard")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := types.LoadConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	metrics.Init()

	poll := retry.DefaultConfig()
	poll.MaxRetries = cfg.PollAttempts
	querier, err := flipside.NewQuerier(flipside.Opts{
		Mode:     cfg.Mode,
		URL:      cfg.FlipsideURL,
		Timeout:  cfg.FlipsideTimeout,
		RPS:      cfg.FlipsideRPS,
		PageSize: cfg.PageSize,
		Poll:     poll,
		Logger:   logger.With(zap.String("component", "flipside")),
	})
	if err != nil {
		logger.Fatal("Unable to build query client", zap.Error(err))
	}
	logger.Info("Query client ready",
		zap.String("mode", string(querier.Mode())),
		zap.String("endpoint", querier.Endpoint()),
		zap.String("secret", querier.Mode().SecretName()))

	app := &types.App{
		Config: cfg,
		Logger: logger,
	}

	var resultCache cache.Cache
	switch cfg.CacheBackend {
	case cache.BackendRedis:
		redisClient, err := redis.NewClient(ctx, logger)
		if err != nil {
			logger.Fatal("Unable to connect to the Redis cache", zap.Error(err))
		}
		rc := cache.NewRedis(redisClient)
		app.Closers = append(app.Closers, rc)
		resultCache = rc
	default:
		resultCache = cache.NewMemory()
	}
	logger.Info("Result cache ready", zap.String("backend", resultCache.Name()), zap.Duration("ttl", cfg.CacheTTL))

	app.Fetcher = fetcher.New(fetcher.Opts{
		Querier: querier,
		Secrets: newSecretStore(cfg, logger),
		Cache:   resultCache,
		TTL:     cfg.CacheTTL,
		Logger:  logger.With(zap.String("component", "fetcher")),
	})

	if cfg.WarmCron != "" {
		app.Warmer, err = fetcher.NewWarmer(ctx, app.Fetcher, cfg.WarmCron, flipside.DefaultDays, logger)
		if err != nil {
			logger.Fatal("Invalid CACHE_WARM_CRON", zap.String("cronSpec", cfg.WarmCron), zap.Error(err))
		}
	}

	return app
}

// newSecretStore chains the environment with the optional file and
// Kubernetes stores. A Kubernetes store that cannot be built is skipped.
func newSecretStore(cfg *types.Config, logger *zap.Logger) secrets.Store {
	stores := []secrets.Store{secrets.EnvStore{Prefix: cfg.SecretsPrefix}}

	if cfg.SecretsFile != "" {
		stores = append(stores, secrets.NewFileStore(cfg.SecretsFile))
	}

	if cfg.SecretsK8sName != "" {
		ks, err := secrets.NewKubernetesStoreFromConfig(cfg.SecretsK8sNamespace, cfg.SecretsK8sName, cfg.SecretsRefresh, logger)
		if err != nil {
			logger.Warn("Kubernetes secret store disabled", zap.String("secret", cfg.SecretsK8sName), zap.Error(err))
		} else {
			stores = append(stores, ks)
		}
	}

	chain := secrets.NewChain(logger.With(zap.String("component", "secrets")), stores...)
	logger.Info("Secret stores ready", zap.String("stores", chain.Name()))
	return chain
}
