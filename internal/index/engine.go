// Package index provides the document store for candidate profiles and job postings:
// validated, degrade-not-fail writes plus vector similarity search over pluggable engines.
package index

import (
	"context"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// Hit is one search result.
type Hit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source types.Document `json:"_source"`
}

// SearchParams is an engine-level search.
type SearchParams struct {
	Query Query
	From  int
	Size  int
	Sort  []SortField
}

// Hits is an engine-level search result.
type Hits struct {
	Total int
	Hits  []Hit
}

// Engine is a document engine holding named collections of schemaless documents.
//
// Engines report a missing document with ErrDocumentNotFound and a missing collection with
// ErrCollectionNotFound (wrapped is fine). Put creates the collection on first write.
type Engine interface {
	// Name identifies the engine kind, e.g. "postgres".
	Name() string
	// Host describes where the engine lives, without credentials.
	Host() string
	Ping(ctx context.Context) error

	CollectionExists(ctx context.Context, collection string) (bool, error)
	// Put inserts or replaces a document and reports whether it was newly created.
	Put(ctx context.Context, collection, id string, doc types.Document) (bool, error)
	Get(ctx context.Context, collection, id string) (types.Document, error)
	Search(ctx context.Context, collection string, params SearchParams) (*Hits, error)
	Count(ctx context.Context, collection string, q Query) (int, error)
	Aggregate(ctx context.Context, collection string, q Query, aggs []TermsAggregation) (map[string][]Bucket, error)

	// VectorCapability reports whether NearestNeighbors is supported.
	VectorCapability(ctx context.Context) (bool, error)
	// NearestNeighbors returns up to k documents carrying field, ranked by cosine
	// similarity to vec. Documents without the field are never returned.
	NearestNeighbors(ctx context.Context, collection, field string, vec []float32, k int) ([]Hit, error)

	Close() error
}
