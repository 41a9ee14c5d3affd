// Package memindex is an in-process vector index over a coder/hnsw graph.
// It serves tests, local runs, and small corpora without a Valkey or Qdrant server.
package memindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/legojeon/report-coach/internal/domain"
)

// Index keeps chunks in memory and their normalized vectors in an HNSW graph.
// Replaced chunks are lazily deleted: the old node stays in the graph but is
// no longer mapped to a chunk.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	dim     int
	chunks  map[uint64]domain.Chunk
	keys    map[string]uint64
	nextKey uint64
}

// snapshot is the gob-encoded sidecar written next to the exported graph.
type snapshot struct {
	Dim     int
	NextKey uint64
	Chunks  map[uint64]domain.Chunk
}

// New creates an empty index. Zero m or efSearch keep the library defaults.
func New(m, efSearch int) *Index {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	if m > 0 {
		g.M = m
	}
	if efSearch > 0 {
		g.EfSearch = efSearch
	}
	return &Index{
		graph:  g,
		chunks: make(map[uint64]domain.Chunk),
		keys:   make(map[string]uint64),
	}
}

// EnsureIndex fixes the vector dimension. Later calls must agree with it.
func (x *Index) EnsureIndex(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim != 0 && x.dim != dim {
		return fmt.Errorf("%w: index has %d, got %d", domain.ErrVectorDimMismatch, x.dim, dim)
	}
	x.dim = dim
	return nil
}

// Reset empties the index and forgets its dimension. Graph parameters are kept.
func (x *Index) Reset(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := hnsw.NewGraph[uint64]()
	g.Distance = x.graph.Distance
	g.M = x.graph.M
	g.Ml = x.graph.Ml
	g.EfSearch = x.graph.EfSearch
	x.graph = g
	x.dim = 0
	x.nextKey = 0
	x.chunks = make(map[uint64]domain.Chunk)
	x.keys = make(map[string]uint64)
	return nil
}

// Ready reports domain.ErrIndexNotBuilt until a dimension has been set.
func (x *Index) Ready(_ context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dim == 0 {
		return domain.ErrIndexNotBuilt
	}
	return nil
}

// Len returns the number of live chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.keys)
}

// Upsert adds chunks, replacing any with the same ID.
func (x *Index) Upsert(_ context.Context, chunks []domain.IndexedChunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		return domain.ErrIndexNotBuilt
	}
	for _, c := range chunks {
		if len(c.Vector) != x.dim {
			return fmt.Errorf("%w: chunk %s has %d, index has %d",
				domain.ErrVectorDimMismatch, c.Chunk.ID, len(c.Vector), x.dim)
		}
	}

	for _, c := range chunks {
		if old, ok := x.keys[c.Chunk.ID]; ok {
			delete(x.chunks, old)
		}
		key := x.nextKey
		x.nextKey++

		x.graph.Add(hnsw.MakeNode(key, normalized(c.Vector)))
		x.chunks[key] = c.Chunk
		x.keys[c.Chunk.ID] = key
	}
	return nil
}

// Search returns up to n chunks nearest to vector, most similar first.
func (x *Index) Search(_ context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dim == 0 {
		return nil, domain.ErrIndexNotBuilt
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrVectorDimMismatch, len(vector), x.dim)
	}
	if n <= 0 || x.graph.Len() == 0 {
		return nil, nil
	}

	// Orphaned nodes can occupy result slots, so ask for enough to cover them.
	k := n + x.graph.Len() - len(x.keys)
	if k > x.graph.Len() {
		k = x.graph.Len()
	}

	q := normalized(vector)
	nodes := x.graph.Search(q, k)

	out := make([]domain.Candidate, 0, len(nodes))
	for _, node := range nodes {
		c, ok := x.chunks[node.Key]
		if !ok {
			continue
		}
		sim := 1 - float64(hnsw.CosineDistance(q, node.Value))
		out = append(out, domain.Candidate{Chunk: c, Score: sim})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Save writes the graph to path and the chunk table to path+".meta".
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error { return x.graph.Export(f) }); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	snap := snapshot{Dim: x.dim, NextKey: x.nextKey, Chunks: x.chunks}
	if err := writeAtomic(path+".meta", func(f *os.File) error { return gob.NewEncoder(f).Encode(snap) }); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// Load replaces the index content with what Save wrote.
func (x *Index) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	mf, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer mf.Close()

	var snap snapshot
	if err := gob.NewDecoder(mf).Decode(&snap); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	gf, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer gf.Close()

	// Import needs an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(gf)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	x.dim = snap.Dim
	x.nextKey = snap.NextKey
	x.chunks = snap.Chunks
	if x.chunks == nil {
		x.chunks = make(map[uint64]domain.Chunk)
	}
	x.keys = make(map[string]uint64, len(x.chunks))
	for key, c := range x.chunks {
		x.keys[c.ID] = key
	}
	return nil
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	var sum float64
	for _, f := range out {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i := range out {
		out[i] /= norm
	}
	return out
}
