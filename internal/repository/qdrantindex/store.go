// Package qdrantindex is the Qdrant vector index driver.
package qdrantindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/legojeon/report-coach/internal/domain"
)

const payloadContent = "content"

// client is the subset of *qdrant.Client used by the store.
type client interface {
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Config holds connection parameters.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store keeps one point per chunk in a single collection, cosine distance.
type Store struct {
	client     client
	collection string
}

// New connects to Qdrant over gRPC.
func New(cfg Config, collection string) (*Store, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Store{client: c, collection: collection}, nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureIndex creates the collection for vectors of dimension dim unless it exists.
func (s *Store) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Reset deletes the collection with all its points.
func (s *Store) Reset(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Ready reports domain.ErrIndexNotBuilt until the collection exists.
func (s *Store) Ready(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return domain.ErrIndexNotBuilt
	}
	return nil
}

// Upsert inserts or replaces chunk points. Chunk IDs must be UUIDs.
func (s *Store) Upsert(ctx context.Context, chunks []domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]*qdrant.Value{
			payloadContent: qdrant.NewValueString(c.Chunk.Content),
		}
		for k, v := range c.Chunk.Metadata {
			if k == payloadContent {
				continue
			}
			payload[k] = qdrant.NewValueString(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.Chunk.ID),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns up to n chunks nearest to vector, most similar first.
func (s *Store) Search(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		c := domain.Chunk{ID: p.GetId().GetUuid(), Metadata: make(map[string]string)}
		for k, v := range p.GetPayload() {
			if k == payloadContent {
				c.Content = v.GetStringValue()
				continue
			}
			c.Metadata[k] = v.GetStringValue()
		}
		out = append(out, domain.Candidate{Chunk: c, Score: float64(p.GetScore())})
	}
	return out, nil
}
