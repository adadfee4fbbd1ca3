// Package qdrant provides a Qdrant-backed fact store for deployments that
// keep embeddings in a dedicated vector database. The keyword leg runs on a
// local bleve index, as with the sqlite-vec driver.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/memory/bleveidx"
)

// Store implements memory.Store on a Qdrant collection.
type Store struct {
	client     *qdrantclient.Client
	collection string
	keyword    *bleveidx.Index
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant fact store.
type Config struct {
	// Host is the Qdrant gRPC host. Defaults to localhost.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// APIKey authenticates against a managed Qdrant instance. Optional.
	APIKey string

	// Collection is the collection name. Defaults to "spool_facts".
	Collection string

	// IndexPath is the path to the bleve keyword index directory. Empty
	// builds an in-memory index.
	IndexPath string

	// Dimensions is the number of dimensions for fact embeddings. Required.
	Dimensions uint
}

// NewStore creates a fact store backed by a Qdrant collection, creating the
// collection when it does not exist.
func NewStore(ctx context.Context, c Config, logger *zap.Logger) (*Store, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "spool_facts"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrantclient.NewClient(&qdrantclient.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrantclient.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrantclient.NewVectorsConfig(&qdrantclient.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrantclient.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	keyword, err := bleveidx.New(c.IndexPath, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	logger.Info("qdrant fact store initialized",
		zap.String("host", c.Host),
		zap.String("collection", c.Collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return &Store{
		client:     client,
		collection: c.Collection,
		keyword:    keyword,
		logger:     logger,
	}, nil
}

// Put stores facts as Qdrant points. Qdrant point IDs must be UUIDs, so fact
// IDs are validated up front.
func (s *Store) Put(ctx context.Context, facts []memory.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	points := make([]*qdrantclient.PointStruct, 0, len(facts))
	for _, fact := range facts {
		if _, err := uuid.Parse(fact.ID); err != nil {
			return fmt.Errorf("fact ID %q is not a UUID: %w", fact.ID, err)
		}
		if len(fact.Embedding) == 0 {
			// Facts without embeddings live only in the keyword index.
			continue
		}

		createdAt := fact.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		lastAccessed := fact.LastAccessedAt
		if lastAccessed.IsZero() {
			lastAccessed = createdAt
		}

		points = append(points, &qdrantclient.PointStruct{
			Id:      qdrantclient.NewID(fact.ID),
			Vectors: qdrantclient.NewVectors(fact.Embedding...),
			Payload: qdrantclient.NewValueMap(map[string]any{
				"owner_id":         fact.OwnerID,
				"content":          fact.Content,
				"category":         fact.Category,
				"confidence":       fact.Confidence,
				"created_at":       createdAt.Format(time.RFC3339Nano),
				"last_accessed_at": lastAccessed.Format(time.RFC3339Nano),
			}),
		})
	}

	if len(points) > 0 {
		_, err := s.client.Upsert(ctx, &qdrantclient.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrantclient.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points: %w", err)
		}
	}

	for _, fact := range facts {
		if err := s.keyword.Put(fact); err != nil {
			return err
		}
	}

	s.logger.Debug("stored facts", zap.Int("count", len(facts)))

	return nil
}

// Get retrieves facts by ID, preserving the order of the IDs that exist.
func (s *Store) Get(ctx context.Context, ids []string) ([]memory.Fact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrantclient.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantclient.NewID(id))
	}

	points, err := s.client.Get(ctx, &qdrantclient.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrantclient.NewWithPayload(true),
		WithVectors:    qdrantclient.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving points: %w", err)
	}

	byID := make(map[string]memory.Fact, len(points))
	for _, point := range points {
		fact := factFromPayload(point.Id.GetUuid(), point.Payload)
		if vectors := point.Vectors.GetVector(); vectors != nil {
			fact.Embedding = vectors.Data
		}
		byID[fact.ID] = fact
	}

	facts := make([]memory.Fact, 0, len(byID))
	for _, id := range ids {
		if fact, ok := byID[id]; ok {
			facts = append(facts, fact)
		}
	}

	return facts, nil
}

// SemanticSearch returns the topK nearest facts matching the filter.
// Qdrant reports cosine similarity, which is converted back to a distance so
// callers see the same ascending-is-better ordering as other drivers.
func (s *Store) SemanticSearch(ctx context.Context, embedding []float32, filter memory.Filter, topK int) ([]memory.SemanticHit, error) {
	if topK <= 0 {
		topK = 10
	}

	must := []*qdrantclient.Condition{
		qdrantclient.NewMatch("owner_id", filter.OwnerID),
	}
	if filter.Category != "" {
		must = append(must, qdrantclient.NewMatch("category", filter.Category))
	}
	if filter.MinConfidence > 0 {
		must = append(must, qdrantclient.NewRange("confidence", &qdrantclient.Range{
			Gte: qdrantclient.PtrOf(filter.MinConfidence),
		}))
	}

	points, err := s.client.Query(ctx, &qdrantclient.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrantclient.NewQuery(embedding...),
		Filter:         &qdrantclient.Filter{Must: must},
		Limit:          qdrantclient.PtrOf(uint64(topK)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	hits := make([]memory.SemanticHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, memory.SemanticHit{
			ID:       point.Id.GetUuid(),
			Distance: 1 - float64(point.Score),
		})
	}

	s.logger.Debug("semantic search completed", zap.Int("hits", len(hits)))

	return hits, nil
}

// KeywordSearch runs the keyword leg over the bleve index.
func (s *Store) KeywordSearch(ctx context.Context, terms []string, filter memory.Filter, topK int) ([]memory.KeywordHit, error) {
	return s.keyword.Search(ctx, terms, filter, topK)
}

// Touch updates the last-accessed payload field for the given facts.
func (s *Store) Touch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrantclient.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantclient.NewID(id))
	}

	_, err := s.client.SetPayload(ctx, &qdrantclient.SetPayloadPoints{
		CollectionName: s.collection,
		Payload: qdrantclient.NewValueMap(map[string]any{
			"last_accessed_at": at.Format(time.RFC3339Nano),
		}),
		PointsSelector: qdrantclient.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("touching facts: %w", err)
	}

	return nil
}

// Close releases the Qdrant connection and keyword index.
func (s *Store) Close() error {
	if err := s.keyword.Close(); err != nil {
		s.client.Close()
		return err
	}
	return s.client.Close()
}

func factFromPayload(id string, payload map[string]*qdrantclient.Value) memory.Fact {
	fact := memory.Fact{
		ID:         id,
		OwnerID:    payload["owner_id"].GetStringValue(),
		Content:    payload["content"].GetStringValue(),
		Category:   payload["category"].GetStringValue(),
		Confidence: payload["confidence"].GetDoubleValue(),
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["created_at"].GetStringValue()); err == nil {
		fact.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, payload["last_accessed_at"].GetStringValue()); err == nil {
		fact.LastAccessedAt = t
	}
	return fact
}
