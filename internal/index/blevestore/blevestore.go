// Package blevestore is an index.Engine backed by embedded bleve full-text indexes, one per
// collection. It has no vector support, so similarity search through it always degrades to
// recent jobs.
package blevestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// fieldsField lists the non-null top-level keys of a document so exists queries become
// term queries.
const fieldsField = "_fields"

// ErrVectorUnsupported is returned by NearestNeighbors.
var ErrVectorUnsupported = errors.New("bleve engine does not support vector search")

var (
	textFields     = []string{"title", "description", "company", "location", "source_text"}
	keywordFields  = []string{"job_id", "candidate_id", "experience_level", "embedding_status", "skills_required", "skills", "url", fieldsField}
	dateTimeFields = []string{"scraped_at", "ingested_at"}
)

// Store implements index.Engine.
type Store struct {
	dir string

	mu      sync.Mutex
	indexes map[string]bleve.Index
}

var _ index.Engine = (*Store)(nil)

// Open prepares dir to hold one <collection>.bleve index per collection.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{dir: dir, indexes: make(map[string]bleve.Index)}, nil
}

// buildIndexMapping creates the mapping shared by every collection.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.Store = false

	dateFieldMapping := bleve.NewDateTimeFieldMapping()
	dateFieldMapping.Store = false

	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	for _, f := range keywordFields {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	for _, f := range dateTimeFields {
		docMapping.AddFieldMappingsAt(f, dateFieldMapping)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = keyword.Name
	indexMapping.StoreDynamic = false
	return indexMapping
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".bleve")
}

// collection returns the open index for name, opening it from disk or creating it when
// create is set.
func (s *Store) collection(name string, create bool) (bleve.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[name]; ok {
		return idx, nil
	}

	path := s.path(name)
	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index %s: %w", name, err)
		}
	} else {
		if !create {
			return nil, fmt.Errorf("%s: %w", name, index.ErrCollectionNotFound)
		}
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index %s: %w", name, err)
		}
	}
	s.indexes[name] = idx
	return idx, nil
}

// Name implements index.Engine.
func (s *Store) Name() string { return "bleve" }

// Host implements index.Engine.
func (s *Store) Host() string { return s.dir }

// Ping implements index.Engine.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("bleve directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("bleve path %s is not a directory", s.dir)
	}
	return nil
}

// Close implements index.Engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	s.indexes = make(map[string]bleve.Index)
	return errors.Join(errs...)
}

// CollectionExists implements index.Engine.
func (s *Store) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.Lock()
	_, open := s.indexes[collection]
	s.mu.Unlock()
	if open {
		return true, nil
	}
	_, err := os.Stat(s.path(collection))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Put implements index.Engine. The full document is kept as internal data under the
// document id; only the searchable projection is indexed.
func (s *Store) Put(ctx context.Context, collection, id string, doc types.Document) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	idx, err := s.collection(collection, true)
	if err != nil {
		return false, err
	}

	source, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document %s: %w", id, err)
	}
	prev, err := idx.GetInternal([]byte(id))
	if err != nil {
		return false, fmt.Errorf("failed to read document %s: %w", id, err)
	}

	if err := idx.Index(id, searchable(doc)); err != nil {
		return false, fmt.Errorf("failed to index document %s: %w", id, err)
	}
	if err := idx.SetInternal([]byte(id), source); err != nil {
		return false, fmt.Errorf("failed to store document %s: %w", id, err)
	}
	return prev == nil, nil
}

// searchable drops the embedding and records the present fields.
func searchable(doc types.Document) map[string]any {
	out := make(map[string]any, len(doc)+1)
	fields := make([]string, 0, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		fields = append(fields, k)
		if k == types.FieldEmbedding {
			continue
		}
		out[k] = v
	}
	sort.Strings(fields)
	out[fieldsField] = fields
	return out
}

// Get implements index.Engine.
func (s *Store) Get(_ context.Context, collection, id string) (types.Document, error) {
	idx, err := s.collection(collection, false)
	if err != nil {
		return nil, err
	}
	return load(idx, collection, id)
}

func load(idx bleve.Index, collection, id string) (types.Document, error) {
	data, err := idx.GetInternal([]byte(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, index.ErrDocumentNotFound)
	}
	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return doc, nil
}

// Search implements index.Engine.
func (s *Store) Search(ctx context.Context, collection string, params index.SearchParams) (*index.Hits, error) {
	idx, err := s.collection(collection, false)
	if err != nil {
		return nil, err
	}

	size := params.Size
	if size <= 0 {
		size = index.DefaultSearchSize
	}
	req := bleve.NewSearchRequestOptions(translate(params.Query), size, params.From, false)
	req.SortBy(sortOrder(params.Sort))

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]index.Hit, 0, len(res.Hits))
	for _, m := range res.Hits {
		doc, err := load(idx, collection, m.ID)
		if err != nil {
			if errors.Is(err, index.ErrDocumentNotFound) {
				continue
			}
			return nil, err
		}
		hits = append(hits, index.Hit{ID: m.ID, Score: m.Score, Source: doc})
	}
	return &index.Hits{Total: int(res.Total), Hits: hits}, nil
}

// Count implements index.Engine.
func (s *Store) Count(ctx context.Context, collection string, q index.Query) (int, error) {
	idx, err := s.collection(collection, false)
	if err != nil {
		return 0, err
	}
	req := bleve.NewSearchRequestOptions(translate(q), 0, 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(res.Total), nil
}

// Aggregate implements index.Engine using term facets.
func (s *Store) Aggregate(ctx context.Context, collection string, q index.Query, aggs []index.TermsAggregation) (map[string][]index.Bucket, error) {
	idx, err := s.collection(collection, false)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(translate(q), 0, 0, false)
	for _, agg := range aggs {
		req.AddFacet(agg.Name, bleve.NewFacetRequest(agg.Field, agg.Size))
	}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}

	out := make(map[string][]index.Bucket, len(aggs))
	for _, agg := range aggs {
		counts := make(map[string]int)
		if facet, ok := res.Facets[agg.Name]; ok && facet.Terms != nil {
			for _, term := range facet.Terms.Terms() {
				counts[term.Term] = term.Count
			}
		}
		out[agg.Name] = index.TopBuckets(counts, agg.Size)
	}
	return out, nil
}

// VectorCapability implements index.Engine.
func (s *Store) VectorCapability(context.Context) (bool, error) { return false, nil }

// NearestNeighbors implements index.Engine.
func (s *Store) NearestNeighbors(context.Context, string, string, []float32, int) ([]index.Hit, error) {
	return nil, ErrVectorUnsupported
}

func sortOrder(fields []index.SortField) []string {
	if len(fields) == 0 {
		fields = index.DefaultSort()
	}
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Desc {
			order = append(order, "-"+f.Field)
		} else {
			order = append(order, f.Field)
		}
	}
	return order
}

// translate converts a parsed query into a bleve query.
func translate(q index.Query) query.Query {
	switch q.Kind {
	case index.KindMatch:
		m := bleve.NewMatchQuery(q.Text)
		m.SetField(q.Field)
		return m
	case index.KindTerm, index.KindTerms:
		if len(q.Values) == 1 {
			return valueQuery(q.Field, q.Values[0])
		}
		disjuncts := make([]query.Query, 0, len(q.Values))
		for _, v := range q.Values {
			disjuncts = append(disjuncts, valueQuery(q.Field, v))
		}
		return bleve.NewDisjunctionQuery(disjuncts...)
	case index.KindExists:
		t := bleve.NewTermQuery(q.Field)
		t.SetField(fieldsField)
		return t
	case index.KindBool:
		return translateBool(q)
	}
	return bleve.NewMatchAllQuery()
}

func translateBool(q index.Query) query.Query {
	b := bleve.NewBooleanQuery()
	for _, c := range q.Must {
		b.AddMust(translate(c))
	}
	for _, c := range q.Filter {
		b.AddMust(translate(c))
	}
	for _, c := range q.Should {
		b.AddShould(translate(c))
	}
	for _, c := range q.MustNot {
		b.AddMustNot(translate(c))
	}

	positive := len(q.Must) + len(q.Filter)
	switch {
	case positive == 0 && len(q.Should) > 0:
		b.SetMinShould(1)
	case positive == 0:
		b.AddMust(bleve.NewMatchAllQuery())
	}
	return b
}

func valueQuery(field string, v any) query.Query {
	switch t := v.(type) {
	case bool:
		b := bleve.NewBoolFieldQuery(t)
		b.SetField(field)
		return b
	case float64, float32, int, int64, int32:
		f := toFloat(t)
		inclusive := true
		r := bleve.NewNumericRangeInclusiveQuery(&f, &f, &inclusive, &inclusive)
		r.SetField(field)
		return r
	}
	t := bleve.NewTermQuery(fmt.Sprint(v))
	t.SetField(field)
	return t
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}
