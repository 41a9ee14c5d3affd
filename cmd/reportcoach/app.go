package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/config"
	"github.com/legojeon/report-coach/internal/db/valkey"
	"github.com/legojeon/report-coach/internal/domain"
	"github.com/legojeon/report-coach/internal/lazy"
	logpkg "github.com/legojeon/report-coach/internal/logger"
	"github.com/legojeon/report-coach/internal/metrics"
	"github.com/legojeon/report-coach/internal/repository/chunk"
	"github.com/legojeon/report-coach/internal/repository/embcache"
	"github.com/legojeon/report-coach/internal/repository/image"
	"github.com/legojeon/report-coach/internal/repository/memindex"
	"github.com/legojeon/report-coach/internal/repository/qdrantindex"
	usagerepo "github.com/legojeon/report-coach/internal/repository/usage"
	"github.com/legojeon/report-coach/internal/repository/usagelog"
	openaiTransport "github.com/legojeon/report-coach/internal/transport/openai"
	"github.com/legojeon/report-coach/internal/usecase/analysis"
	embeddinguc "github.com/legojeon/report-coach/internal/usecase/embedding"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
	ingestuc "github.com/legojeon/report-coach/internal/usecase/ingest"
	searchuc "github.com/legojeon/report-coach/internal/usecase/search"
	usageuc "github.com/legojeon/report-coach/internal/usecase/usage"
)

// Counter key TTLs outlive their period so a late report still sees them.
const (
	dailyCounterTTL   = 48 * time.Hour
	monthlyCounterTTL = 62 * 24 * time.Hour
	closeTimeout      = 5 * time.Second
)

// vectorIndex is what every index driver offers to search and ingest.
type vectorIndex interface {
	searchuc.VectorIndex
	ingestuc.Indexer
	Reset(ctx context.Context) error
}

// app is the composition root shared by every subcommand.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	store      *valkey.Store   // nil without database.addrs
	counters   *usagerepo.Store // nil without store
	usageLog   *usagelog.Log    // nil without usage_log.dsn
	dispatcher *usageuc.Dispatcher
	budget     *embeddinguc.BudgetTracker
	generator  *openaiTransport.Generator
	images     *image.Locator

	embedders *lazy.Value[searchuc.Embedders]
	index     *lazy.Value[vectorIndex]

	mu      sync.Mutex
	closers []func()
}

func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	metrics.Register()

	a := &app{env: env, cfg: cfg, logger: logger}
	a.images = image.NewLocator(cfg.Search.ImageDir, logger)

	if len(cfg.Database.Addrs) > 0 {
		store, err := valkey.NewStore(valkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create valkey store: %w", err)
		}
		a.addCloser(store.Close)
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			a.Close()
			return nil, fmt.Errorf("valkey not ready: %w", err)
		}
		a.store = store
		a.counters = usagerepo.New(store, dailyCounterTTL, monthlyCounterTTL)
		logger.Info("Connected to valkey", zap.Strings("addrs", cfg.Database.Addrs))
	}

	a.openUsageLog(ctx)
	a.dispatcher = usageuc.NewDispatcher(cfg.UsageLog.QueueSize, logger, a.usageSinks()...)
	a.budget = a.newBudget(ctx)
	a.generator = a.newGenerator()
	a.embedders = lazy.New(a.buildEmbedders)
	a.index = lazy.New(a.openIndex)
	return a, nil
}

func (a *app) addCloser(fn func()) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// Close drains the usage queue and releases connections in reverse order.
func (a *app) Close() {
	if a.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Warn("usage queue not drained", zap.Error(err))
		}
		cancel()
	}
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	_ = a.logger.Sync()
}

// openUsageLog connects the Postgres sink. A failure only disables the sink.
func (a *app) openUsageLog(ctx context.Context) {
	if a.cfg.UsageLog.DSN == "" {
		return
	}
	l, err := usagelog.Open(ctx, a.cfg.UsageLog.DSN)
	if err != nil {
		a.logger.Warn("usage log disabled", zap.Error(err))
		return
	}
	a.usageLog = l
	a.addCloser(l.Close)
}

func (a *app) usageSinks() []usageuc.Sink {
	var sinks []usageuc.Sink
	if a.counters != nil {
		sinks = append(sinks, a.counters)
	}
	if a.usageLog != nil {
		sinks = append(sinks, a.usageLog)
	}
	return sinks
}

func (a *app) newBudget(ctx context.Context) *embeddinguc.BudgetTracker {
	bc := a.cfg.Embedding.Budget
	action := embeddinguc.BudgetActionWarn
	if bc.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	b := embeddinguc.NewBudgetTracker(bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, a.logger)
	if a.counters != nil {
		b.WithStore(ctx, a.counters)
	}
	return b
}

func (a *app) newGenerator() *openaiTransport.Generator {
	gc := a.cfg.Generation
	retry := openaiTransport.DefaultRetryConfig()
	retry.MaxRetries = gc.MaxRetries

	// A typed nil would defeat the generator's nil check.
	var counter openaiTransport.TokenCounter
	if gc.Tokenizer != "" {
		counter = openaiTransport.NewTiktokenCounter(gc.Tokenizer)
	}
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      gc.APIKey,
		BaseURL:     gc.BaseURL,
		Model:       gc.Model,
		MaxTokens:   gc.MaxTokens,
		Temperature: gc.Temperature,
		TopP:        gc.TopP,
		Timeout:     time.Duration(gc.TimeoutSec) * time.Second,
		Retry:       retry,
		Counter:     counter,
		Logger:      a.logger,
	})
}

// buildEmbedders assembles OpenAI -> cache -> budget/usage -> instruction for both sides.
func (a *app) buildEmbedders(_ context.Context) (searchuc.Embedders, error) {
	ec := a.cfg.Embedding
	var emb domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     a.logger,
	})

	if ec.Cache.Enabled {
		opts := embcache.Options{
			LRUSize: ec.Cache.LRUSize,
			TTL:     time.Duration(ec.Cache.TTLSec) * time.Second,
		}
		if a.store != nil {
			emb = embcache.New(emb, a.store, opts, metrics.EmbeddingCacheTotal, a.logger)
		} else {
			emb = embcache.New(emb, nil, opts, metrics.EmbeddingCacheTotal, a.logger)
		}
	}

	emb = embeddinguc.NewInstrumentedEmbedder(emb, ec.Provider, ec.Model, a.budget, a.logger)

	a.logger.Info("Embedders created",
		zap.String("provider", ec.Provider),
		zap.String("model", ec.Model),
		zap.Bool("cache", ec.Cache.Enabled),
	)
	return searchuc.Embedders{
		Query:   domain.NewInstructionEmbedder(emb, ec.QueryInstruction),
		Passage: domain.NewInstructionEmbedder(emb, ec.PassageInstruction),
	}, nil
}

func (a *app) openIndex(_ context.Context) (vectorIndex, error) {
	vc := a.cfg.VectorIndex
	switch vc.Driver {
	case "valkey", "redis":
		if a.store == nil {
			return nil, errors.New("vector index needs database.addrs")
		}
		return chunk.New(a.store, vc.Name, chunk.HNSWConfig{
			M:           vc.HNSWM,
			EFConstruct: vc.HNSWEFConstruct,
		}), nil
	case "qdrant":
		s, err := qdrantindex.New(qdrantindex.Config{
			Host:   vc.Qdrant.Host,
			Port:   vc.Qdrant.Port,
			APIKey: vc.Qdrant.APIKey,
			UseTLS: vc.Qdrant.UseTLS,
		}, vc.Name)
		if err != nil {
			return nil, err //nolint:wrapcheck // already describes the qdrant failure
		}
		a.addCloser(func() { _ = s.Close() })
		return s, nil
	case "memory":
		idx := memindex.New(vc.HNSWM, vc.HNSWEFSearch)
		if vc.MemoryPath == "" {
			return idx, nil
		}
		if err := idx.Load(vc.MemoryPath); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load memory index: %w", err)
			}
			a.logger.Info("Memory index snapshot not found, starting empty", zap.String("path", vc.MemoryPath))
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector index driver %q", vc.Driver)
	}
}

// searchIndex narrows the shared index provider to what search needs.
type searchIndex struct{ v *lazy.Value[vectorIndex] }

func (p searchIndex) Get(ctx context.Context) (searchuc.VectorIndex, error) {
	idx, err := p.v.Get(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // search wraps collaborator failures
	}
	return idx, nil
}

func (a *app) searchService() (*searchuc.Service, error) {
	tmpl, err := analysis.LoadTemplate(a.cfg.Generation.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("load analysis prompt: %w", err)
	}
	analyzer := analysis.New(a.generator, a.dispatcher, tmpl, a.logger)
	sc := a.cfg.Search
	return searchuc.New(analyzer, a.embedders, searchIndex{a.index}, a.images, searchuc.Options{
		Weights:         sc.Weights,
		OverfetchFactor: sc.OverfetchFactor,
		MaxK:            sc.MaxK,
		SnippetLength:   sc.SnippetLength,
	}, a.logger), nil
}

func (a *app) ingestService() (*ingestuc.Service, vectorIndex, error) {
	ctx := context.Background()
	embs, err := a.embedders.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("build embedders: %w", err)
	}
	idx, err := a.index.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open vector index: %w", err)
	}
	svc := ingestuc.New(embs.Passage, idx, ingestuc.Options{
		BatchSize: a.cfg.Ingest.BatchSize,
		Workers:   a.cfg.Ingest.Workers,
	}, a.logger)
	return svc, idx, nil
}

func (a *app) healthService() *healthuc.Service {
	checks := []healthuc.Check{
		{
			Name:     healthuc.ComponentEmbedding,
			Critical: true,
			Probe: healthuc.ProbeFunc(func(ctx context.Context) error {
				embs, err := a.embedders.Get(ctx)
				if err != nil {
					return err //nolint:wrapcheck // reported as a probe result
				}
				if hc, ok := embs.Passage.(domain.HealthChecker); ok {
					return hc.HealthCheck(ctx) //nolint:wrapcheck // reported as a probe result
				}
				return nil
			}),
		},
		{Name: healthuc.ComponentGeneration, Probe: a.generator},
	}
	if a.store != nil {
		checks = append(checks, healthuc.Check{
			Name:     healthuc.ComponentDatabase,
			Critical: true,
			Probe:    healthuc.ProbeFunc(a.store.Ping),
		})
	}
	if a.usageLog != nil {
		checks = append(checks, healthuc.Check{Name: healthuc.ComponentUsageLog, Probe: a.usageLog})
	}
	return healthuc.New(a.logger, checks...)
}

func (a *app) usageService() *usageuc.Service {
	if a.counters == nil {
		return usageuc.New(nil)
	}
	return usageuc.New(a.counters)
}
