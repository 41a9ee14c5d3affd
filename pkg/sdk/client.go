package reportcoach

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/db/valkey"
	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	"github.com/legojeon/report-coach/internal/metrics"
	"github.com/legojeon/report-coach/internal/repository/chunk"
	"github.com/legojeon/report-coach/internal/repository/embcache"
	"github.com/legojeon/report-coach/internal/repository/image"
	"github.com/legojeon/report-coach/internal/repository/memindex"
	"github.com/legojeon/report-coach/internal/repository/qdrantindex"
	usagerepo "github.com/legojeon/report-coach/internal/repository/usage"
	"github.com/legojeon/report-coach/internal/usecase/analysis"
	embeddinguc "github.com/legojeon/report-coach/internal/usecase/embedding"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
	ingestuc "github.com/legojeon/report-coach/internal/usecase/ingest"
	searchuc "github.com/legojeon/report-coach/internal/usecase/search"
	usageuc "github.com/legojeon/report-coach/internal/usecase/usage"
)

const (
	defaultIndexName  = "reports"
	defaultLRUSize    = 1024
	dailyCounterTTL   = 48 * time.Hour
	monthlyCounterTTL = 62 * 24 * time.Hour
	closeTimeout      = 5 * time.Second
	hnswM             = 16
	hnswEFConstruct   = 200
)

type searchUseCase interface {
	Search(ctx context.Context, query string, k int) (domain.SearchResponse, error)
}

type ingestUseCase interface {
	Run(ctx context.Context, dir string) (ingestuc.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type usageUseCase interface {
	Report(ctx context.Context, period domusage.Period) (domusage.Report, error)
}

// vectorIndex is what every index driver offers to search and ingest.
type vectorIndex interface {
	searchuc.VectorIndex
	ingestuc.Indexer
	Reset(ctx context.Context) error
}

// Client runs searches and ingests against one vector index.
// Safe for concurrent use.
type Client struct {
	search searchUseCase
	ingest ingestUseCase
	index  vectorIndex
	health healthUseCase
	usage  usageUseCase
	obs    *observer

	memIndex   *memindex.Index
	memoryPath string
	saveMu     sync.Mutex

	dispatcher *usageuc.Dispatcher
	closers    []func()
}

// New creates a Client. WithEmbedder is required.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{indexName: defaultIndexName}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.embedder == nil {
		return nil, errors.New("reportcoach: embedder is required, use WithEmbedder")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs, memoryPath: cfg.memoryPath}
	log := zap.NewNop()

	var store *valkey.Store
	var counters *usagerepo.Store
	if len(cfg.addrs) > 0 {
		store, err = valkey.NewStore(valkey.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("reportcoach: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("reportcoach: ping valkey: %w", err)
		}
		counters = usagerepo.New(store, dailyCounterTTL, monthlyCounterTTL)
	}

	index, err := c.openIndex(cfg, store)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.index = index

	budget := embeddinguc.NewBudgetTracker(0, 0, embeddinguc.BudgetActionWarn, log)
	var sinks []usageuc.Sink
	if counters != nil {
		budget.WithStore(ctx, counters)
		sinks = append(sinks, counters)
	}
	c.dispatcher = usageuc.NewDispatcher(0, log, sinks...)

	var emb domain.Embedder = adaptEmbedder(cfg.embedder)
	if store != nil {
		emb = embcache.New(emb, store, embcache.Options{LRUSize: defaultLRUSize}, metrics.EmbeddingCacheTotal, log)
	} else {
		emb = embcache.New(emb, nil, embcache.Options{LRUSize: defaultLRUSize}, metrics.EmbeddingCacheTotal, log)
	}
	emb = embeddinguc.NewInstrumentedEmbedder(emb, "sdk", "custom", budget, log)
	passage := domain.NewInstructionEmbedder(emb, cfg.passageInstruction)
	embs := searchuc.Embedders{
		Query:   domain.NewInstructionEmbedder(emb, cfg.queryInstruction),
		Passage: passage,
	}

	var gen domain.Generator = noGenerator{}
	if cfg.generator != nil {
		gen = &generatorAdapter{inner: cfg.generator}
	}
	analyzer := analysis.New(gen, c.dispatcher, "", log)

	weights := domain.DefaultWeights()
	if cfg.weights != nil {
		weights = *cfg.weights
	}
	var images searchuc.ImageLocator
	if cfg.imageDir != "" {
		images = image.NewLocator(cfg.imageDir, log)
	}

	c.search = searchuc.New(analyzer, ready[searchuc.Embedders]{embs}, ready[searchuc.VectorIndex]{index}, images,
		searchuc.Options{Weights: weights, MaxK: cfg.maxK, SnippetLength: cfg.snippetLength}, log)
	c.ingest = ingestuc.New(embs.Passage, index, ingestuc.Options{
		BatchSize: cfg.ingestBatch,
		Workers:   cfg.ingestWorkers,
	}, log)

	checks := []healthuc.Check{{Name: healthuc.ComponentEmbedding, Critical: true, Probe: passage}}
	if store != nil {
		checks = append(checks, healthuc.Check{
			Name:     healthuc.ComponentDatabase,
			Critical: true,
			Probe:    healthuc.ProbeFunc(store.Ping),
		})
	}
	if hc, ok := gen.(domain.HealthChecker); ok {
		checks = append(checks, healthuc.Check{Name: healthuc.ComponentGeneration, Probe: hc})
	}
	c.health = healthuc.New(log, checks...)

	if counters != nil {
		c.usage = usageuc.New(counters)
	} else {
		c.usage = usageuc.New(nil)
	}
	return c, nil
}

func (c *Client) openIndex(cfg *clientConfig, store *valkey.Store) (vectorIndex, error) {
	switch {
	case cfg.qdrant != nil:
		s, err := qdrantindex.New(qdrantindex.Config{
			Host:   cfg.qdrant.Host,
			Port:   cfg.qdrant.Port,
			APIKey: cfg.qdrant.APIKey,
			UseTLS: cfg.qdrant.UseTLS,
		}, cfg.indexName)
		if err != nil {
			return nil, fmt.Errorf("reportcoach: %w", err)
		}
		c.closers = append(c.closers, func() { _ = s.Close() })
		return s, nil
	case store != nil:
		return chunk.New(store, cfg.indexName, chunk.HNSWConfig{M: hnswM, EFConstruct: hnswEFConstruct}), nil
	default:
		idx := memindex.New(0, 0)
		if cfg.memoryPath != "" {
			if err := idx.Load(cfg.memoryPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reportcoach: load memory index: %w", err)
			}
		}
		c.memIndex = idx
		return idx, nil
	}
}

// Search returns up to k passages for query, one per report, best first.
// Errors: ErrEmptyQuery, ErrInvalidK, ErrCollaboratorUnavailable, ErrEmbeddingQuotaExceeded.
func (c *Client) Search(ctx context.Context, query string, k int) (SearchResponse, error) {
	start := time.Now()
	resp, err := c.search.Search(ctx, query, k)
	c.obs.search(start, query, k, resp, err)
	return resp, err //nolint:wrapcheck // sentinel errors are part of the SDK contract
}

// Ingest embeds and indexes every "<number>_*.json" report file in dir.
// The in-memory index is saved afterwards when WithMemoryIndex is set.
func (c *Client) Ingest(ctx context.Context, dir string) (IngestResult, error) {
	start := time.Now()
	res, err := c.ingest.Run(ctx, dir)
	if err == nil && c.memIndex != nil && c.memoryPath != "" {
		c.saveMu.Lock()
		if serr := c.memIndex.Save(c.memoryPath); serr != nil {
			err = fmt.Errorf("save memory index: %w", serr)
		}
		c.saveMu.Unlock()
	}
	c.obs.ingest(start, dir, res, err)
	return res, err //nolint:wrapcheck // ingest errors carry their own context
}

// Reset empties the vector index. The next Ingest recreates it.
func (c *Client) Reset(ctx context.Context) error {
	start := time.Now()
	err := c.index.Reset(ctx)
	c.obs.call(opReset, start, err)
	return err //nolint:wrapcheck // driver error carries its own context
}

// Health probes the embedding provider, the store and the generator.
func (c *Client) Health(ctx context.Context) HealthReport {
	start := time.Now()
	rep := c.health.Check(ctx)
	var err error
	if rep.Status == healthuc.Unhealthy {
		err = errors.New("unhealthy")
	}
	c.obs.call(opHealth, start, err)
	return rep
}

// Usage reports token totals per service for the day or month containing now.
// Without WithValkey every total is zero.
func (c *Client) Usage(ctx context.Context, period Period) (UsageReport, error) {
	start := time.Now()
	rep, err := c.usage.Report(ctx, period)
	c.obs.call(opUsage, start, err)
	return rep, err //nolint:wrapcheck // store error
}

// Close flushes pending usage records and releases connections.
func (c *Client) Close() {
	if c.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		_ = c.dispatcher.Close(ctx)
		cancel()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// ready is a Provider whose value already exists.
type ready[T any] struct{ v T }

func (r ready[T]) Get(context.Context) (T, error) { return r.v, nil }
