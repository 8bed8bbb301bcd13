// Package boltstore is an index.Engine backed by a single bbolt file. Queries are evaluated
// in Go and nearest-neighbor search is a brute-force cosine scan, which suits local use and
// tests.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/vector"
)

// bucketMeta holds per-collection vector dimensions, keyed by collection name.
var bucketMeta = []byte("_meta")

// Store implements index.Engine.
type Store struct {
	db   *bbolt.DB
	path string
}

var _ index.Engine = (*Store)(nil)

// Open opens (creating if needed) the bolt file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create meta bucket: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Name implements index.Engine.
func (s *Store) Name() string { return "bolt" }

// Host implements index.Engine.
func (s *Store) Host() string { return s.path }

// Ping implements index.Engine.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketMeta) == nil {
			return fmt.Errorf("bolt db %s is not initialized", s.path)
		}
		return nil
	})
}

// Close implements index.Engine.
func (s *Store) Close() error { return s.db.Close() }

func bucketName(collection string) []byte {
	return []byte("c:" + collection)
}

// CollectionExists implements index.Engine.
func (s *Store) CollectionExists(_ context.Context, collection string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketName(collection)) != nil
		return nil
	})
	return exists, err
}

// Put implements index.Engine. The first stored vector fixes the dimensionality of the
// collection; later documents whose embedding differs are rejected with
// index.FieldRejectedError.
func (s *Store) Put(ctx context.Context, collection, id string, doc types.Document) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var dims int
	if raw, ok := doc[types.FieldEmbedding]; ok {
		v, err := vector.Validate(raw)
		if err != nil {
			return false, &index.FieldRejectedError{Field: types.FieldEmbedding, Reason: err.Error()}
		}
		dims = len(v)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	var created bool
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if dims > 0 {
			if err := checkDims(tx, collection, dims); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucketIfNotExists(bucketName(collection))
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
		created = b.Get([]byte(id)) == nil
		return b.Put([]byte(id), data)
	})
	return created, err
}

func checkDims(tx *bbolt.Tx, collection string, dims int) error {
	meta := tx.Bucket(bucketMeta)
	key := []byte(collection)
	if stored := meta.Get(key); stored != nil {
		want, err := strconv.Atoi(string(stored))
		if err == nil && want != dims {
			return &index.FieldRejectedError{
				Field:  types.FieldEmbedding,
				Reason: fmt.Sprintf("expected %d dimensions, got %d", want, dims),
			}
		}
		return nil
	}
	return meta.Put(key, []byte(strconv.Itoa(dims)))
}

// Get implements index.Engine.
func (s *Store) Get(_ context.Context, collection, id string) (types.Document, error) {
	var doc types.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(collection))
		if b == nil {
			return fmt.Errorf("%s: %w", collection, index.ErrCollectionNotFound)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", collection, id, index.ErrDocumentNotFound)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// scan calls fn for every document of collection.
func (s *Store) scan(ctx context.Context, collection string, fn func(id string, doc types.Document) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(collection))
		if b == nil {
			return fmt.Errorf("%s: %w", collection, index.ErrCollectionNotFound)
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc types.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				// Skip corrupted entries
				return nil
			}
			return fn(string(k), doc)
		})
	})
}

// Search implements index.Engine.
func (s *Store) Search(ctx context.Context, collection string, params index.SearchParams) (*index.Hits, error) {
	var hits []index.Hit
	err := s.scan(ctx, collection, func(id string, doc types.Document) error {
		if ok, score := params.Query.Evaluate(doc); ok {
			hits = append(hits, index.Hit{ID: id, Score: score, Source: doc})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	index.SortHits(hits, params.Sort)
	size := params.Size
	if size <= 0 {
		size = index.DefaultSearchSize
	}
	return &index.Hits{Total: len(hits), Hits: index.Paginate(hits, params.From, size)}, nil
}

// Count implements index.Engine.
func (s *Store) Count(ctx context.Context, collection string, q index.Query) (int, error) {
	n := 0
	err := s.scan(ctx, collection, func(_ string, doc types.Document) error {
		if ok, _ := q.Evaluate(doc); ok {
			n++
		}
		return nil
	})
	return n, err
}

// Aggregate implements index.Engine.
func (s *Store) Aggregate(ctx context.Context, collection string, q index.Query, aggs []index.TermsAggregation) (map[string][]index.Bucket, error) {
	counters := make([]*index.BucketCounter, len(aggs))
	for i, agg := range aggs {
		counters[i] = index.NewBucketCounter(agg)
	}
	err := s.scan(ctx, collection, func(_ string, doc types.Document) error {
		if ok, _ := q.Evaluate(doc); !ok {
			return nil
		}
		for _, c := range counters {
			c.Add(doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]index.Bucket, len(aggs))
	for i, agg := range aggs {
		out[agg.Name] = counters[i].Buckets()
	}
	return out, nil
}

// VectorCapability implements index.Engine.
func (s *Store) VectorCapability(context.Context) (bool, error) { return true, nil }

// NearestNeighbors implements index.Engine with an exhaustive cosine scan.
func (s *Store) NearestNeighbors(ctx context.Context, collection, field string, vec []float32, k int) ([]index.Hit, error) {
	var hits []index.Hit
	err := s.scan(ctx, collection, func(id string, doc types.Document) error {
		raw, ok := doc[field]
		if !ok {
			return nil
		}
		stored, err := vector.Validate(raw)
		if err != nil {
			return nil
		}
		if len(stored) != len(vec) {
			return &index.DimensionMismatchError{Expected: len(stored), Got: len(vec)}
		}
		hits = append(hits, index.Hit{ID: id, Score: vector.Cosine(vec, stored), Source: doc})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
