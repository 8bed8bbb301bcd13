package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
)

var validate = validator.New()

// Validate checks a request struct's validate tags.
func Validate(req any) error {
	return validate.Struct(req)
}

// RecommendRequest asks for recommendations for one candidate. user_id is accepted as an
// alias of candidate_id.
type RecommendRequest struct {
	CandidateID string `json:"candidate_id" mapstructure:"candidate_id" validate:"max=256"`
	UserID      string `json:"user_id,omitempty" mapstructure:"user_id" validate:"max=256"`
	Limit       int    `json:"limit,omitempty" mapstructure:"limit" validate:"gte=0"`
}

// ID returns the candidate identifier, preferring candidate_id.
func (r RecommendRequest) ID() string {
	if id := strings.TrimSpace(r.CandidateID); id != "" {
		return id
	}
	return strings.TrimSpace(r.UserID)
}

// SearchFilters are optional search refinements.
type SearchFilters struct {
	ExcludeEmptyDescriptions bool `json:"exclude_empty_descriptions" mapstructure:"exclude_empty_descriptions"`
}

// SearchRequest is a raw DSL query.
type SearchRequest struct {
	Query   map[string]any `json:"query" mapstructure:"query" validate:"required"`
	Index   string         `json:"index,omitempty" mapstructure:"index"`
	Size    int            `json:"size,omitempty" mapstructure:"size" validate:"gte=0"`
	From    int            `json:"from,omitempty" mapstructure:"from" validate:"gte=0"`
	Sort    any            `json:"sort,omitempty" mapstructure:"sort"`
	Filters SearchFilters  `json:"filters,omitempty" mapstructure:"filters"`
}

func (r SearchRequest) toIndex() index.SearchRequest {
	return index.SearchRequest{
		Index:                    r.Index,
		Query:                    r.Query,
		From:                     r.From,
		Size:                     r.Size,
		Sort:                     r.Sort,
		ExcludeEmptyDescriptions: r.Filters.ExcludeEmptyDescriptions,
	}
}

// AggregationRequest runs terms aggregations. A missing query matches everything.
type AggregationRequest struct {
	Query        map[string]any `json:"query,omitempty" mapstructure:"query"`
	Aggregations map[string]any `json:"aggregations" mapstructure:"aggregations" validate:"required"`
	Index        string         `json:"index,omitempty" mapstructure:"index"`
}

func (r AggregationRequest) toIndex() index.AggregationRequest {
	return index.AggregationRequest{Index: r.Index, Query: r.Query, Aggregations: r.Aggregations}
}

// Diagnostic test types
const (
	TestConnection        = "connection"
	TestEmbedding         = "embedding"
	TestStats             = "stats"
	TestMissingEmbeddings = "missing_embeddings"
)

// missingEmbeddingsSample bounds the jobs listed by a missing_embeddings diagnostic.
const missingEmbeddingsSample = 10

// TestRequest selects a diagnostic. An empty type means a connection test.
type TestRequest struct {
	TestType string `json:"test_type" mapstructure:"test_type"`
}

// IngestRequest names the stored résumé text to ingest.
type IngestRequest struct {
	Location string `json:"location" mapstructure:"location" validate:"required"`
}

// Record is one object-created notification. Both the S3 shape
// ({"s3": {"bucket": {"name"}, "object": {"key"}}}) and the flat storage shape
// ({"bucket", "name"}) are understood.
type Record struct {
	S3 struct {
		Bucket struct {
			Name string `mapstructure:"name"`
		} `mapstructure:"bucket"`
		Object struct {
			Key string `mapstructure:"key"`
		} `mapstructure:"object"`
	} `mapstructure:"s3"`
	Bucket string `mapstructure:"bucket"`
	Name   string `mapstructure:"name"`
}

// Location returns the record's bucket and decoded object key.
func (r Record) Location() (bucket, key string) {
	bucket, key = r.S3.Bucket.Name, r.S3.Object.Key
	if key == "" {
		return r.Bucket, r.Name
	}
	// S3 keys arrive form-encoded
	if decoded, err := url.QueryUnescape(key); err == nil {
		key = decoded
	}
	return bucket, key
}

// decode fills out from a loosely typed event payload.
func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return &index.ValidationError{Message: fmt.Sprintf("invalid request: %v", err)}
	}
	return nil
}
