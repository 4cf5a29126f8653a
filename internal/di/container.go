package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/allowlist"
	"github.com/savegrandma/phishguard/internal/cache"
	"github.com/savegrandma/phishguard/internal/config"
	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/engine"
	"github.com/savegrandma/phishguard/internal/factory"
	"github.com/savegrandma/phishguard/internal/logging"
	"github.com/savegrandma/phishguard/internal/persist"
	"github.com/savegrandma/phishguard/internal/scoring"
	"github.com/savegrandma/phishguard/internal/stats"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}

	// Register key-value backend
	if err := container.Provide(func(f *factory.StorageFactory) (core.KeyValueStore, error) {
		return f.CreateKeyValueStore()
	}); err != nil {
		return nil, err
	}

	// Register notifier
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}

	// Register allow-list store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *allowlist.Store {
		return allowlist.New(cfg.GetAllowlist().MaxSize, logger)
	}); err != nil {
		return nil, err
	}

	// Register analysis cache
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*cache.AnalysisCache, error) {
		cc, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		return cache.New(cc.MaxSize, cc.Expiry, cc.ForceThreshold, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register statistics model
	if err := container.Provide(stats.NewModel); err != nil {
		return nil, err
	}

	// Register persistence lock, breaker and store
	if err := container.Provide(persist.NewLock); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *persist.Breaker {
		return persist.NewBreaker(cfg.GetPersist().MaxSaveFailures, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(kv core.KeyValueStore, lock *persist.Lock, breaker *persist.Breaker, cfg *config.Config, logger *zap.Logger) *persist.Store {
		return persist.NewStore(kv, lock, breaker, cfg.GetString("engine.account"), cfg.GetPersist().MaxValueSize, logger)
	}); err != nil {
		return nil, err
	}

	// Register scorer
	if err := container.Provide(func(allow *allowlist.Store, cfg *config.Config, logger *zap.Logger) *scoring.Scorer {
		sc := cfg.GetScoring()
		return scoring.NewScorer(allow, logger, sc.UrgencyEnabled, sc.DomainCheckEnabled)
	}); err != nil {
		return nil, err
	}

	// Register engine
	if err := container.Provide(func(
		scorer *scoring.Scorer,
		analysisCache *cache.AnalysisCache,
		allow *allowlist.Store,
		model *stats.Model,
		store *persist.Store,
		notifier core.Notifier,
		cfg *config.Config,
		logger *zap.Logger,
	) (*engine.Engine, error) {
		scanCfg, err := cfg.GetScan()
		if err != nil {
			return nil, err
		}
		batchCfg, err := cfg.GetBatch()
		if err != nil {
			return nil, err
		}
		e := engine.New(scorer, analysisCache, allow, model, store, notifier, engine.Options{
			IdleAfter:     scanCfg.IdleAfter,
			CheckInterval: scanCfg.CheckInterval,
			CleanupDelay:  scanCfg.CleanupDelay,
		}, logger)
		e.SetBatching(batchCfg.SaveDelay, batchCfg.MaxSize)
		return e, nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
