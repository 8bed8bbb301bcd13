package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/vector"
)

// CollectionExists implements index.Engine.
func (db *DB) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE name = $1)`,
		collection,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	return exists, nil
}

func (db *DB) requireCollection(ctx context.Context, collection string) error {
	exists, err := db.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", collection, index.ErrCollectionNotFound)
	}
	return nil
}

// storedDimensions returns the length of any stored embedding in collection, or 0.
func (db *DB) storedDimensions(ctx context.Context, collection string) (int, error) {
	var dims *int
	err := db.pool.QueryRow(ctx,
		`SELECT array_length(embedding, 1) FROM documents
		 WHERE collection = $1 AND embedding IS NOT NULL LIMIT 1`,
		collection,
	).Scan(&dims)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read embedding dimensions: %w", err)
	}
	if dims == nil {
		return 0, nil
	}
	return *dims, nil
}

// Put implements index.Engine. The embedding is kept in its own REAL[] column; every stored
// embedding of a collection must have the same length.
func (db *DB) Put(ctx context.Context, collection, id string, doc types.Document) (bool, error) {
	var embedding []float32
	body := make(types.Document, len(doc))
	for k, v := range doc {
		if k == types.FieldEmbedding {
			vec, err := vector.Validate(v)
			if err != nil {
				return false, &index.FieldRejectedError{Field: types.FieldEmbedding, Reason: err.Error()}
			}
			embedding = vec
			continue
		}
		body[k] = v
	}

	if embedding != nil {
		want, err := db.storedDimensions(ctx, collection)
		if err != nil {
			return false, err
		}
		if want > 0 && want != len(embedding) {
			return false, &index.FieldRejectedError{
				Field:  types.FieldEmbedding,
				Reason: fmt.Sprintf("expected %d dimensions, got %d", want, len(embedding)),
			}
		}
	}

	jsonBytes, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		collection,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	var created bool
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (collection, id, doc, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET doc = EXCLUDED.doc, embedding = EXCLUDED.embedding, updated_at = NOW()
		 RETURNING (xmax = 0)`,
		collection, id, jsonBytes, embedding,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert document %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit document %s/%s: %w", collection, id, err)
	}
	return created, nil
}

// Get implements index.Engine.
func (db *DB) Get(ctx context.Context, collection, id string) (types.Document, error) {
	var docBytes []byte
	var embedding []float32
	err := db.pool.QueryRow(ctx,
		`SELECT doc, embedding FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&docBytes, &embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := db.requireCollection(ctx, collection); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%s/%s: %w", collection, id, index.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return decodeDocument(docBytes, embedding)
}

func decodeDocument(docBytes []byte, embedding []float32) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if doc == nil {
		doc = types.Document{}
	}
	if embedding != nil {
		doc[types.FieldEmbedding] = embedding
	}
	return doc, nil
}

// Search implements index.Engine.
func (db *DB) Search(ctx context.Context, collection string, params index.SearchParams) (*index.Hits, error) {
	if err := db.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	size := params.Size
	if size <= 0 {
		size = index.DefaultSearchSize
	}

	b := &sqlBuilder{}
	coll := b.arg(collection)
	where, err := b.where(params.Query)
	if err != nil {
		return nil, err
	}
	score := b.score(params.Query)
	order := b.orderBy(params.Sort)
	query := fmt.Sprintf(
		`SELECT id, doc, embedding, (%s)::float8 AS score, COUNT(*) OVER () AS total
		 FROM documents WHERE collection = %s AND %s
		 ORDER BY %s LIMIT %s OFFSET %s`,
		score, coll, where, order, b.arg(size), b.arg(max(params.From, 0)))

	rows, err := db.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	defer rows.Close()

	res := &index.Hits{}
	for rows.Next() {
		var (
			id        string
			docBytes  []byte
			embedding []float32
			hitScore  float64
			total     int64
		)
		if err := rows.Scan(&id, &docBytes, &embedding, &hitScore, &total); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDocument(docBytes, embedding)
		if err != nil {
			return nil, err
		}
		res.Total = int(total)
		res.Hits = append(res.Hits, index.Hit{ID: id, Score: hitScore, Source: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	// A page past the end carries no window count.
	if len(res.Hits) == 0 && params.From > 0 {
		n, err := db.Count(ctx, collection, params.Query)
		if err != nil {
			return nil, err
		}
		res.Total = n
	}
	return res, nil
}

// Count implements index.Engine.
func (db *DB) Count(ctx context.Context, collection string, q index.Query) (int, error) {
	if err := db.requireCollection(ctx, collection); err != nil {
		return 0, err
	}

	b := &sqlBuilder{}
	coll := b.arg(collection)
	where, err := b.where(q)
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM documents WHERE collection = %s AND %s`, coll, where),
		b.args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return int(n), nil
}

// Aggregate implements index.Engine. Array fields contribute one bucket per element.
func (db *DB) Aggregate(ctx context.Context, collection string, q index.Query, aggs []index.TermsAggregation) (map[string][]index.Bucket, error) {
	if err := db.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	out := make(map[string][]index.Bucket, len(aggs))
	for _, agg := range aggs {
		buckets, err := db.termsBuckets(ctx, collection, q, agg)
		if err != nil {
			return nil, err
		}
		out[agg.Name] = buckets
	}
	return out, nil
}

func (db *DB) termsBuckets(ctx context.Context, collection string, q index.Query, agg index.TermsAggregation) ([]index.Bucket, error) {
	size := agg.Size
	if size <= 0 {
		size = index.DefaultBucketCount
	}

	b := &sqlBuilder{}
	coll := b.arg(collection)
	field := b.arg(agg.Field)
	where, err := b.where(q)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT elem.value, COUNT(DISTINCT documents.id) AS doc_count
		 FROM documents,
		      LATERAL jsonb_array_elements_text(
		          CASE jsonb_typeof(doc->%[2]s::text)
		              WHEN 'array' THEN doc->%[2]s::text
		              ELSE jsonb_build_array(doc->%[2]s::text)
		          END) AS elem(value)
		 WHERE collection = %[1]s AND doc ? %[2]s::text
		   AND jsonb_typeof(doc->%[2]s::text) <> 'null' AND %[3]s
		 GROUP BY elem.value
		 ORDER BY doc_count DESC, elem.value ASC
		 LIMIT %[4]s`,
		coll, field, where, b.arg(size))

	rows, err := db.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s on %s: %w", collection, agg.Field, err)
	}
	defer rows.Close()

	buckets := []index.Bucket{}
	for rows.Next() {
		var bucket index.Bucket
		var n int64
		if err := rows.Scan(&bucket.Key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		bucket.DocCount = int(n)
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

// VectorCapability implements index.Engine: true when the pgvector extension is installed.
func (db *DB) VectorCapability(ctx context.Context) (bool, error) {
	var installed bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
	).Scan(&installed)
	if err != nil {
		return false, fmt.Errorf("failed to check vector extension: %w", err)
	}
	return installed, nil
}

// NearestNeighbors implements index.Engine using pgvector cosine distance.
func (db *DB) NearestNeighbors(ctx context.Context, collection, field string, vec []float32, k int) ([]index.Hit, error) {
	if field != types.FieldEmbedding {
		return nil, fmt.Errorf("vector search is only supported on %q, not %q", types.FieldEmbedding, field)
	}
	if err := db.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	stored, err := db.storedDimensions(ctx, collection)
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return nil, nil
	}
	if stored != len(vec) {
		return nil, &index.DimensionMismatchError{Expected: stored, Got: len(vec)}
	}
	if k <= 0 {
		k = index.DefaultSearchSize
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, doc, embedding, 1 - (embedding::vector <=> $2) AS score
		 FROM documents
		 WHERE collection = $1 AND embedding IS NOT NULL
		 ORDER BY embedding::vector <=> $2
		 LIMIT $3`,
		collection, pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, mapVectorError(err, stored, len(vec))
	}
	defer rows.Close()

	var hits []index.Hit
	for rows.Next() {
		var (
			id        string
			docBytes  []byte
			embedding []float32
			score     float64
		)
		if err := rows.Scan(&id, &docBytes, &embedding, &score); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		doc, err := decodeDocument(docBytes, embedding)
		if err != nil {
			return nil, err
		}
		hits = append(hits, index.Hit{ID: id, Score: score, Source: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, mapVectorError(err, stored, len(vec))
	}
	return hits, nil
}

// mapVectorError turns pgvector's dimension complaint into index.DimensionMismatchError.
func mapVectorError(err error, stored, got int) error {
	if strings.Contains(err.Error(), "different vector dimensions") {
		return &index.DimensionMismatchError{Expected: stored, Got: got}
	}
	return fmt.Errorf("failed to run vector search: %w", err)
}
