package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/classify"
	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/parser"
	"github.com/sells-group/leadflow/internal/settings"
	"github.com/sells-group/leadflow/internal/store"
	"github.com/sells-group/leadflow/pkg/portal"
)

// pipelineEnv bundles the wired pipeline for commands.
type pipelineEnv struct {
	Store        store.Store
	Resolver     *settings.Resolver
	Orchestrator *ingest.Orchestrator

	redisClient *redis.Client
}

func (e *pipelineEnv) Close() {
	if e.redisClient != nil {
		_ = e.redisClient.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline wires the full ingestion stack over the configured store.
// The sink decides where metrics land: Prometheus under serve, no-op for
// one-shot CLI runs.
func initPipeline(ctx context.Context, sink metrics.Sink) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	classifier, err := classify.New()
	if err != nil {
		st.Close()
		return nil, err
	}

	registry, err := parser.NewDefaultRegistry()
	if err != nil {
		st.Close()
		return nil, err
	}

	resolver := settings.NewResolver(st, sink,
		settings.WithTTL(time.Duration(cfg.Settings.CacheTTLSecs)*time.Second))

	var redisClient *redis.Client
	var locker dedup.Locker
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The in-process lock still guards this instance.
			zap.L().Warn("redis unreachable, dedup lock is process-local", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			locker = dedup.NewRedisLocker(redisClient)
		}
	}

	engine := dedup.New(st, sink, locker)

	portalClient := portal.NewClient(portal.Options{
		UserAgent:         cfg.Portal.UserAgent,
		Timeout:           time.Duration(cfg.Portal.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Portal.MaxRetries,
		RequestsPerSecond: cfg.Portal.RequestsPerSecond,
	})

	orch := ingest.New(ingest.Options{
		Classifier: classifier,
		Registry:   registry,
		Resolver:   resolver,
		Engine:     engine,
		Store:      st,
		Portal:     portalClient,
		Sink:       sink,
	})

	return &pipelineEnv{
		Store:        st,
		Resolver:     resolver,
		Orchestrator: orch,
		redisClient:  redisClient,
	}, nil
}

func tenantFlag(defaultTenant string, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return defaultTenant
}
