package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	"github.com/legojeon/report-coach/internal/metrics"
)

// Defaults for Options left at zero.
const (
	DefaultBatchSize = 32
	DefaultWorkers   = 4
)

// Options size the embedding batches and the worker pool.
type Options struct {
	BatchSize int
	Workers   int
}

// Result counts what a run did with each chunk.
type Result struct {
	Files    int           `json:"files"`
	Indexed  int64         `json:"indexed"`
	Skipped  int64         `json:"skipped"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Service loads report chunk files, embeds them and writes them into a vector index.
type Service struct {
	embed  domain.Embedder
	index  Indexer
	opts   Options
	logger *zap.Logger
}

// New creates an ingest service. embed should be the passage-side embedder.
func New(embed domain.Embedder, index Indexer, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Service{embed: embed, index: index, opts: opts, logger: logger}
}

// Run ingests every report file in dir. Batch failures are counted, not returned;
// an error means the run could not start or the index could not be created.
func (s *Service) Run(ctx context.Context, dir string) (Result, error) {
	start := time.Now()
	files, ignored, err := discover(dir)
	if err != nil {
		return Result{}, err
	}
	for _, name := range ignored {
		s.logger.Warn("ignoring file without report number prefix", zap.String("file", name))
	}

	var chunks []domain.Chunk
	var res Result
	for _, f := range files {
		cs, skipped, err := loadFile(f)
		if err != nil {
			s.logger.Warn("skipping unreadable report file", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		res.Files++
		res.Skipped += int64(skipped)
		chunks = append(chunks, cs...)
		s.logger.Debug("report file loaded",
			zap.String("file", f.Name),
			zap.Int("chunks", len(cs)),
			zap.Int("skipped", skipped),
		)
	}
	metrics.IngestChunksTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	s.logger.Info("corpus loaded",
		zap.Int("files", res.Files),
		zap.Int("chunks", len(chunks)),
		zap.Int64("skipped", res.Skipped),
	)

	indexed, failed, err := s.indexChunks(ctx, chunks)
	res.Indexed, res.Failed = indexed, failed
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	s.logger.Info("ingest finished",
		zap.Int64("indexed", res.Indexed),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// indexChunks embeds the first batch inline to learn the dimension and create the
// index, then fans the remaining batches out to the pool.
func (s *Service) indexChunks(ctx context.Context, chunks []domain.Chunk) (int64, int64, error) {
	batches := split(chunks, s.opts.BatchSize)
	if len(batches) == 0 {
		return 0, 0, nil
	}

	first, err := s.embedBatch(ctx, batches[0])
	if err != nil {
		return 0, int64(len(chunks)), fmt.Errorf("embed first batch: %w", err)
	}
	if err := s.index.EnsureIndex(ctx, len(first[0].Vector)); err != nil {
		return 0, int64(len(chunks)), fmt.Errorf("ensure index: %w", err)
	}

	var indexed, failed atomic.Int64
	record := func(n int, err error) {
		if err != nil {
			failed.Add(int64(n))
			metrics.IngestChunksTotal.WithLabelValues("failed").Add(float64(n))
			return
		}
		indexed.Add(int64(n))
		metrics.IngestChunksTotal.WithLabelValues("indexed").Add(float64(n))
	}
	record(len(first), s.index.Upsert(ctx, first))

	pool, err := ants.NewPool(s.opts.Workers)
	if err != nil {
		return 0, 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, batch := range batches[1:] {
		if ctx.Err() != nil {
			record(len(batch), ctx.Err())
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			err := s.processBatch(ctx, batch)
			if err != nil {
				s.logger.Warn("batch failed", zap.Int("batch", i+1), zap.Int("size", len(batch)), zap.Error(err))
				if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
					cancel()
				}
			}
			record(len(batch), err)
		})
		if submitErr != nil {
			wg.Done()
			record(len(batch), submitErr)
		}
	}
	wg.Wait()
	return indexed.Load(), failed.Load(), nil
}

func (s *Service) processBatch(ctx context.Context, batch []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ics, err := s.embedBatch(ctx, batch)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, ics); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (s *Service) embedBatch(ctx context.Context, batch []domain.Chunk) ([]domain.IndexedChunk, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	res, err := domain.EmbedMany(ctx, s.embed, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return nil, fmt.Errorf("embed: got %d vectors for %d chunks", len(res.Embeddings), len(batch))
	}
	out := make([]domain.IndexedChunk, len(batch))
	for i, c := range batch {
		out[i] = domain.IndexedChunk{Chunk: c, Vector: res.Embeddings[i]}
	}
	return out, nil
}

func split[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
