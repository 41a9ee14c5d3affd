// Package chunk stores report chunks in a Valkey/Redis FT index and answers
// nearest-neighbour queries over them.
package chunk

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/legojeon/report-coach/internal/db"
	"github.com/legojeon/report-coach/internal/domain"
)

// Hash field names. Metadata is kept as one JSON field so arbitrary keys round-trip.
const (
	fieldContent  = "__content"
	fieldMetadata = "__metadata"
	fieldVector   = "vector"
)

// tagFields are indexed for exact-match lookups.
var tagFields = []string{domain.MetaReportNumber, domain.MetaSection}

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the vector field.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo is the Valkey vector index driver.
type Repo struct {
	store store
	name  string
	hnsw  HNSWConfig
}

// New creates a chunk repository for the named index.
func New(s store, name string, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, name: name, hnsw: hnsw}
}

func (r *Repo) indexName() string { return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.name) }

func (r *Repo) keyPrefix() string { return fmt.Sprintf("%s%s:chunk:", domain.KeyPrefix, r.name) }

// EnsureIndex creates the FT index for vectors of dimension dim unless it exists.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	def, err := db.NewIndex(r.indexName()).
		Prefix(r.keyPrefix()).
		Tag(tagFields...).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index %s: %w", r.name, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.name, err)
	}
	return nil
}

// Reset drops the FT index and deletes every chunk hash under its prefix,
// so the next EnsureIndex starts empty, possibly with a new dimension.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.name, err)
	}
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return fmt.Errorf("scan chunks %s: %w", r.name, err)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete %d chunks %s: %w", len(keys), r.name, err)
	}
	return nil
}

// Ready reports domain.ErrIndexNotBuilt until the index exists.
func (r *Repo) Ready(ctx context.Context) error {
	ok, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("index info %s: %w", r.name, err)
	}
	if !ok {
		return domain.ErrIndexNotBuilt
	}
	return nil
}

// Upsert writes chunks and their vectors in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, chunks []domain.IndexedChunk) error {
	items := make([]db.HashSetItem, 0, len(chunks))
	for _, c := range chunks {
		fields, err := buildHashFields(c)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", c.Chunk.ID, err)
		}
		items = append(items, db.HashSetItem{Key: r.keyPrefix() + c.Chunk.ID, Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(items), err)
	}
	return nil
}

// Search returns up to n chunks nearest to vector, most similar first.
func (r *Repo) Search(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldVector,
		Vector:       vector,
		K:            n,
		ReturnFields: []string{fieldContent, fieldMetadata},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrIndexNotBuilt
		}
		return nil, fmt.Errorf("search knn %s: %w", r.name, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	prefix := r.keyPrefix()
	out := make([]domain.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		c := domain.Chunk{
			ID:       strings.TrimPrefix(e.Key, prefix),
			Content:  e.Fields[fieldContent],
			Metadata: parseMetadata(e.Fields[fieldMetadata]),
		}
		out = append(out, domain.Candidate{Chunk: c, Score: e.Score})
	}
	return out, nil
}

func buildHashFields(c domain.IndexedChunk) (map[string]string, error) {
	meta, err := json.Marshal(c.Chunk.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	m := make(map[string]string, 3+len(tagFields))
	m[fieldContent] = c.Chunk.Content
	m[fieldMetadata] = string(meta)
	m[fieldVector] = vectorToBytes(c.Vector)
	for _, tag := range tagFields {
		if v := c.Chunk.Meta(tag); v != "" {
			m[tag] = v
		}
	}
	return m, nil
}

// parseMetadata tolerates a missing or corrupt field: the chunk then has no metadata.
func parseMetadata(raw string) map[string]string {
	m := map[string]string{}
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
