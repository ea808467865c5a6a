package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/analysis"
	"github.com/rights-monitor/backend/internal/api/handlers"
	"github.com/rights-monitor/backend/internal/cache/memory"
	"github.com/rights-monitor/backend/internal/cache/redis"
	"github.com/rights-monitor/backend/internal/gazetteer"
	"github.com/rights-monitor/backend/internal/ingestion"
	"github.com/rights-monitor/backend/internal/llm"
	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/prompt"
	"github.com/rights-monitor/backend/internal/storage/batch"
	"github.com/rights-monitor/backend/internal/storage/sqlite"
	"github.com/rights-monitor/backend/pkg/config"
	appLogger "github.com/rights-monitor/backend/pkg/logger"
)

type deps struct {
	db           *sqlite.Client
	supervisor   *llm.Supervisor
	orchestrator *analysis.Orchestrator
	processor    *ingestion.Processor
	cache        ports.ResponseCache
	closers      []func()
}

func build(cfg *config.Config) (*deps, error) {
	metrics.Init()

	d := &deps{}

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite client: %w", err)
	}
	d.db = db
	d.closers = append(d.closers, func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.SeedRights(context.Background(), cfg.Rights.Seed); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to seed rights: %w", err)
	}

	districts, err := gazetteer.Load(cfg.Gazetteer.Path)
	if err != nil {
		d.Close()
		return nil, err
	}
	builder := prompt.NewBuilder(gazetteer.NewMatcher(districts))

	store, err := batch.NewFileStore(cfg.News.BatchDir)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.supervisor = llm.NewSupervisor(llm.SupervisorConfig{
		Address:       cfg.Ollama.Address(),
		StartCommand:  cfg.Ollama.StartCommand,
		ReadyAttempts: cfg.Ollama.ReadyAttempts,
		ReadyBackoff:  time.Duration(cfg.Ollama.ReadyBackoffMs) * time.Millisecond,
		ProbeTimeout:  time.Duration(cfg.Ollama.ProbeTimeoutMs) * time.Millisecond,
		ProbeInterval: time.Duration(cfg.Ollama.ProbeIntervalSec) * time.Second,
		OnStateChange: func(_, to llm.State) {
			metrics.ModelServerState.Set(float64(to))
		},
		Logger: appLogger.GetLogger(),
	})

	d.cache = d.responseCache(cfg)

	model := llm.NewClient(llm.Options{
		URL:        cfg.Ollama.GenerateURL(),
		Model:      cfg.Ollama.Model,
		Timeout:    time.Duration(cfg.Ollama.TimeoutSec) * time.Second,
		Supervisor: d.supervisor,
		Cache:      d.cache,
	})

	d.orchestrator = analysis.NewOrchestrator(db, store, builder, model)
	d.processor = ingestion.NewProcessor(model, store)

	return d, nil
}

// responseCache prefers redis when enabled and reachable, and falls back to
// an in-process cache otherwise.
func (d *deps) responseCache(cfg *config.Config) ports.ResponseCache {
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Cache.TTL(),
		)
		if err == nil {
			d.closers = append(d.closers, func() { client.Close() })
			return client
		}
		appLogger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
	}
	return memory.New(cfg.Cache.TTL())
}

// cachePinger returns the cache when it is backed by a remote server.
func (d *deps) cachePinger() handlers.Pinger {
	if p, ok := d.cache.(handlers.Pinger); ok {
		return p
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
