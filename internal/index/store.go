package index

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/schemas"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/vector"
	"go.uber.org/zap"
)

// Default collection names.
const (
	DefaultCandidateCollection = "cv-index"
	DefaultJobCollection       = "job-index"
)

// Search limits
const (
	DefaultSearchSize = 10
	MaxSearchSize     = 100
)

// Options configures a Store.
type Options struct {
	// Endpoint is the resolved engine endpoint, reported by Health.
	Endpoint            string
	CandidateCollection string
	JobCollection       string
	Logger              *zap.Logger
	// Now is used for ingested_at and scraped_at defaults.
	Now func() time.Time
}

// Store owns the candidate and job collections of one Engine.
type Store struct {
	engine     Engine
	endpoint   string
	candidates string
	jobs       string
	log        *zap.Logger
	now        func() time.Time
}

// NewStore creates a Store over engine.
func NewStore(engine Engine, opts Options) *Store {
	s := &Store{
		engine:     engine,
		endpoint:   opts.Endpoint,
		candidates: opts.CandidateCollection,
		jobs:       opts.JobCollection,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if s.candidates == "" {
		s.candidates = DefaultCandidateCollection
	}
	if s.jobs == "" {
		s.jobs = DefaultJobCollection
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Engine returns the underlying engine.
func (s *Store) Engine() Engine { return s.engine }

// CandidateCollection returns the candidate collection name.
func (s *Store) CandidateCollection() string { return s.candidates }

// JobCollection returns the job collection name.
func (s *Store) JobCollection() string { return s.jobs }

// Close closes the engine.
func (s *Store) Close() error { return s.engine.Close() }

// WriteResult describes a successful upsert.
type WriteResult struct {
	Collection      string                `json:"collection"`
	ID              string                `json:"id"`
	Result          string                `json:"result"`
	EmbeddingStored bool                  `json:"embedding_stored"`
	EmbeddingStatus types.EmbeddingStatus `json:"embedding_status,omitempty"`
	// Retried is set when the first write was rejected and the document was written
	// again without its embedding.
	Retried bool `json:"retried,omitempty"`
}

// UpsertCandidate writes a candidate profile. candidate_id and source_text are required.
// An invalid embedding is dropped instead of failing the write, and ingested_at keeps the
// value of the first write.
func (s *Store) UpsertCandidate(ctx context.Context, id string, doc types.Document) (*WriteResult, error) {
	doc, id, err := prepare(doc, id, types.FieldCandidateID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.String(types.FieldSourceText)) == "" {
		return nil, &ValidationError{Field: types.FieldSourceText, Message: "source_text is required"}
	}

	if reason := sanitizeEmbedding(doc); reason != "" {
		s.log.Warn("dropped invalid candidate embedding",
			zap.String("candidate_id", id),
			zap.String("reason", reason))
	}

	ingestedAt := doc.String(types.FieldIngestedAt)
	existing, err := s.engine.Get(ctx, s.candidates, id)
	switch {
	case err == nil:
		if prev := existing.String(types.FieldIngestedAt); prev != "" {
			ingestedAt = prev
		}
	case isMissing(err):
	default:
		s.log.Warn("could not read existing candidate", zap.String("candidate_id", id), zap.Error(err))
	}
	if ingestedAt == "" {
		ingestedAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	doc[types.FieldIngestedAt] = ingestedAt

	if err := validateSchema(schemas.CandidateProfile, doc); err != nil {
		return nil, err
	}
	return s.write(ctx, s.candidates, id, doc, false)
}

// UpsertJob writes a job posting. job_id and title are required. An invalid embedding is
// dropped and embedding_status records why; a write the engine rejects because of the
// embedding is retried once without it.
func (s *Store) UpsertJob(ctx context.Context, id string, doc types.Document) (*WriteResult, error) {
	hadNullEmbedding := hasNull(doc, types.FieldEmbedding)
	doc, id, err := prepare(doc, id, types.FieldJobID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.String(types.FieldTitle)) == "" {
		return nil, &ValidationError{Field: types.FieldTitle, Message: "title is required"}
	}

	switch reason := sanitizeEmbedding(doc); {
	case hadNullEmbedding:
		doc[types.FieldEmbeddingStatus] = string(types.EmbeddingNullRemoved)
	case reason != "":
		doc[types.FieldEmbeddingStatus] = string(types.EmbeddingInvalidRemoved)
		s.log.Warn("dropped invalid job embedding",
			zap.String("job_id", id),
			zap.String("reason", reason))
	}
	if !doc.Has(types.FieldScrapedAt) {
		doc[types.FieldScrapedAt] = s.now().UTC().Format(time.RFC3339Nano)
	}

	if err := validateSchema(schemas.JobPosting, doc); err != nil {
		return nil, err
	}
	return s.write(ctx, s.jobs, id, doc, true)
}

func (s *Store) write(ctx context.Context, collection, id string, doc types.Document, tagStatus bool) (*WriteResult, error) {
	res := &WriteResult{
		Collection:      collection,
		ID:              id,
		EmbeddingStored: doc.Has(types.FieldEmbedding),
		EmbeddingStatus: types.EmbeddingStatus(doc.String(types.FieldEmbeddingStatus)),
	}

	created, err := s.engine.Put(ctx, collection, id, doc)
	if err == nil {
		res.Result = resultName(created)
		return res, nil
	}

	if !doc.Has(types.FieldEmbedding) || !IsEmbeddingRejection(err) {
		s.log.Error("index write failed",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return nil, &WriteFailedError{Collection: collection, ID: id, Cause: err}
	}

	s.log.Warn("index write rejected, retrying without embedding",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Error(err))

	retry := doc.Without(types.FieldEmbedding)
	if tagStatus {
		retry[types.FieldEmbeddingStatus] = string(types.EmbeddingRemovedOnError)
	}
	created, retryErr := s.engine.Put(ctx, collection, id, retry)
	if retryErr != nil {
		s.log.Error("index write failed after removing embedding",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(retryErr))
		return nil, &WriteFailedError{Collection: collection, ID: id, Cause: retryErr}
	}

	res.Result = resultName(created)
	res.Retried = true
	res.EmbeddingStored = false
	res.EmbeddingStatus = types.EmbeddingStatus(retry.String(types.FieldEmbeddingStatus))
	return res, nil
}

func resultName(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}

// prepare copies doc, drops null-valued keys and reconciles the key field with id.
func prepare(doc types.Document, id, keyField string) (types.Document, string, error) {
	if doc == nil {
		return nil, "", &ValidationError{Message: "document is required"}
	}
	out := make(types.Document, len(doc))
	for k, v := range doc {
		if v != nil {
			out[k] = v
		}
	}

	key := strings.TrimSpace(out.String(keyField))
	id = strings.TrimSpace(id)
	switch {
	case key == "" && id == "":
		return nil, "", &ValidationError{Field: keyField, Message: keyField + " is required"}
	case key == "":
		out[keyField] = id
		key = id
	case id == "":
		id = key
	case id != key:
		return nil, "", &ValidationError{Field: keyField, Message: "document " + keyField + " does not match the requested id"}
	}
	return out, id, nil
}

func hasNull(doc types.Document, key string) bool {
	v, ok := doc[key]
	return ok && v == nil
}

// sanitizeEmbedding replaces a valid embedding with its []float32 form, or removes an
// invalid one and returns the reason.
func sanitizeEmbedding(doc types.Document) string {
	raw, ok := doc[types.FieldEmbedding]
	if !ok {
		return ""
	}
	v, err := vector.Validate(raw)
	if err != nil {
		delete(doc, types.FieldEmbedding)
		return err.Error()
	}
	doc[types.FieldEmbedding] = v
	return ""
}

func validateSchema(name string, doc types.Document) error {
	err := schemas.ValidateDocument(name, doc)
	if err == nil {
		return nil
	}
	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		return &ValidationError{Field: strings.Join(verr.Fields(), ","), Message: verr.Error()}
	}
	return err
}

func isMissing(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrCollectionNotFound)
}

// GetCandidate returns the stored profile without its source text.
func (s *Store) GetCandidate(ctx context.Context, id string) (*types.CandidateProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: types.FieldCandidateID, Message: "candidate_id is required"}
	}
	doc, err := s.engine.Get(ctx, s.candidates, id)
	if err != nil {
		if isMissing(err) {
			return nil, &NotFoundError{Kind: KindCandidate, ID: id}
		}
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}

	doc = doc.Without(types.FieldSourceText)
	if reason := sanitizeEmbedding(doc); reason != "" {
		s.log.Warn("stored candidate embedding is invalid", zap.String("candidate_id", id), zap.String("reason", reason))
	}
	return types.CandidateFromDocument(doc)
}

// GetJob returns the stored posting without its embedding.
func (s *Store) GetJob(ctx context.Context, id string) (*types.JobPosting, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: types.FieldJobID, Message: "job_id is required"}
	}
	doc, err := s.engine.Get(ctx, s.jobs, id)
	if err != nil {
		if isMissing(err) {
			return nil, &NotFoundError{Kind: KindJob, ID: id}
		}
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	return types.JobFromDocument(doc.Without(types.FieldEmbedding))
}

// SearchMode reports how SearchSimilarJobs produced its hits.
type SearchMode string

// Search modes
const (
	ModeVector SearchMode = "vector"
	ModeRecent SearchMode = "recent"
)

// SimilarJobs is the result of SearchSimilarJobs.
type SimilarJobs struct {
	Mode SearchMode
	Hits []Hit
	// TotalJobs is the size of the job collection at query time.
	TotalJobs int
	Took      time.Duration
}

// SearchSimilarJobs returns the jobs nearest to vec. Only jobs carrying an embedding are
// vector hits. When the engine has no vector support, or the vector query fails for any
// reason other than a dimension mismatch, it returns the limit most recently scraped jobs.
func (s *Store) SearchSimilarJobs(ctx context.Context, vec []float32, limit int) (*SimilarJobs, error) {
	start := time.Now()
	if len(vec) == 0 {
		return nil, &ValidationError{Field: "vector", Message: "query vector is empty"}
	}
	if _, err := vector.Validate(vec); err != nil {
		return nil, &ValidationError{Field: "vector", Message: err.Error()}
	}
	if limit <= 0 {
		limit = DefaultSearchSize
	}

	result := &SimilarJobs{Mode: ModeVector}
	hits, err := s.vectorSearch(ctx, vec, limit)
	if err != nil {
		var mismatch *DimensionMismatchError
		if errors.As(err, &mismatch) {
			s.log.Error("query vector does not match indexed vectors",
				zap.Int("expected", mismatch.Expected),
				zap.Int("got", mismatch.Got))
			return nil, err
		}
		s.log.Warn("vector search unavailable, falling back to recent jobs", zap.Error(err))

		result.Mode = ModeRecent
		hits, err = s.recentJobs(ctx, limit)
		if err != nil {
			return nil, err
		}
	}

	for i := range hits {
		hits[i].Source = hits[i].Source.Without(types.FieldEmbedding)
	}
	result.Hits = hits
	result.TotalJobs = s.countOrZero(ctx, s.jobs, MatchAll())
	result.Took = time.Since(start)
	return result, nil
}

var errNoVectorSupport = errors.New("engine does not support vector search")

func (s *Store) vectorSearch(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	capable, err := s.engine.VectorCapability(ctx)
	if err != nil {
		return nil, err
	}
	if !capable {
		return nil, errNoVectorSupport
	}
	hits, err := s.engine.NearestNeighbors(ctx, s.jobs, types.FieldEmbedding, vec, limit)
	if errors.Is(err, ErrCollectionNotFound) {
		return []Hit{}, nil
	}
	return hits, err
}

func (s *Store) recentJobs(ctx context.Context, limit int) ([]Hit, error) {
	res, err := s.engine.Search(ctx, s.jobs, SearchParams{
		Query: MatchAll(),
		Size:  limit,
		Sort:  []SortField{{Field: types.FieldScrapedAt, Desc: true}},
	})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return []Hit{}, nil
		}
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	return res.Hits, nil
}

func (s *Store) countOrZero(ctx context.Context, collection string, q Query) int {
	n, err := s.engine.Count(ctx, collection, q)
	if err != nil {
		if !errors.Is(err, ErrCollectionNotFound) {
			s.log.Warn("count failed", zap.String("collection", collection), zap.Error(err))
		}
		return 0
	}
	return n
}

// SearchRequest is a raw query against one collection.
type SearchRequest struct {
	// Index names the collection: a collection name, or an alias such as "jobs" or "cvs".
	// Empty means the job collection.
	Index string
	Query map[string]any
	From  int
	Size  int
	// Sort accepts the forms understood by ParseSort.
	Sort                     any
	ExcludeEmptyDescriptions bool
}

// SearchResult is the result of Search.
type SearchResult struct {
	Index  string `json:"index"`
	Total  int    `json:"total"`
	Hits   []Hit  `json:"hits"`
	TookMS int64  `json:"took_ms"`
}

// ResolveCollection maps an index name or alias onto a collection.
func (s *Store) ResolveCollection(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jobs", "job", "job_postings", s.jobs:
		return s.jobs, nil
	case "cvs", "cv", "candidates", "candidate", s.candidates:
		return s.candidates, nil
	}
	return "", &ValidationError{Field: "index", Message: "unknown index " + name}
}

// Search runs a raw DSL query. Embeddings and source text are never returned.
func (s *Store) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()
	collection, err := s.ResolveCollection(req.Index)
	if err != nil {
		return nil, err
	}
	q, err := ParseQuery(req.Query)
	if err != nil {
		return nil, err
	}
	sortFields, err := ParseSort(req.Sort)
	if err != nil {
		return nil, err
	}
	if req.From < 0 {
		return nil, &ValidationError{Field: "from", Message: "from must not be negative"}
	}
	size := req.Size
	if size <= 0 {
		size = DefaultSearchSize
	}
	size = min(size, MaxSearchSize)

	if req.ExcludeEmptyDescriptions {
		q = Bool{
			Must:    []Query{q},
			Filter:  []Query{Exists(types.FieldDescription)},
			MustNot: []Query{Term(types.FieldDescription, "")},
		}.Query()
	}

	res, err := s.engine.Search(ctx, collection, SearchParams{Query: q, From: req.From, Size: size, Sort: sortFields})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return &SearchResult{Index: collection, Hits: []Hit{}, TookMS: time.Since(start).Milliseconds()}, nil
		}
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		h.Source = h.Source.Without(types.FieldEmbedding, types.FieldSourceText)
		hits = append(hits, h)
	}
	return &SearchResult{
		Index:  collection,
		Total:  res.Total,
		Hits:   hits,
		TookMS: time.Since(start).Milliseconds(),
	}, nil
}

// AggregationRequest runs terms aggregations over the documents matching Query.
type AggregationRequest struct {
	Index        string
	Query        map[string]any
	Aggregations map[string]any
}

// BucketList is the result of one terms aggregation.
type BucketList struct {
	Buckets []Bucket `json:"buckets"`
}

// AggregationResult is the result of Aggregate.
type AggregationResult struct {
	Index        string                `json:"index"`
	Total        int                   `json:"total"`
	Aggregations map[string]BucketList `json:"aggregations"`
}

// Aggregate runs terms aggregations. No hits are returned.
func (s *Store) Aggregate(ctx context.Context, req AggregationRequest) (*AggregationResult, error) {
	collection, err := s.ResolveCollection(req.Index)
	if err != nil {
		return nil, err
	}
	q, err := ParseQuery(req.Query)
	if err != nil {
		return nil, err
	}
	aggs, err := ParseAggregations(req.Aggregations)
	if err != nil {
		return nil, err
	}

	out := &AggregationResult{Index: collection, Aggregations: make(map[string]BucketList, len(aggs))}
	buckets, err := s.engine.Aggregate(ctx, collection, q, aggs)
	if err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	for _, agg := range aggs {
		list := buckets[agg.Name]
		if list == nil {
			list = []Bucket{}
		}
		out.Aggregations[agg.Name] = BucketList{Buckets: list}
	}
	out.Total = s.countOrZero(ctx, collection, q)
	return out, nil
}

// missingEmbeddingFields are the job fields JobsWithoutEmbeddings returns.
var missingEmbeddingFields = []string{types.FieldJobID, types.FieldTitle, "company", types.FieldEmbeddingStatus}

// JobsWithoutEmbeddings lists up to size jobs that carry no embedding, for debugging. Sources
// are cut down to the job id, title, company and embedding status.
func (s *Store) JobsWithoutEmbeddings(ctx context.Context, size int) (*SearchResult, error) {
	if size <= 0 {
		size = DefaultSearchSize
	}
	q := Bool{MustNot: []Query{Exists(types.FieldEmbedding)}}.Query()
	res, err := s.engine.Search(ctx, s.jobs, SearchParams{
		Query: q,
		Size:  min(size, MaxSearchSize),
		Sort:  []SortField{{Field: types.FieldScrapedAt, Desc: true}},
	})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return &SearchResult{Index: s.jobs, Hits: []Hit{}}, nil
		}
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	for i, h := range res.Hits {
		src := types.Document{}
		for _, k := range missingEmbeddingFields {
			if v, ok := h.Source[k]; ok {
				src[k] = v
			}
		}
		res.Hits[i].Source = src
	}
	return &SearchResult{Index: s.jobs, Total: res.Total, Hits: res.Hits}, nil
}

// DocumentStats summarizes collection contents.
type DocumentStats struct {
	CandidateCount        int            `json:"candidate_count"`
	JobCount              int            `json:"job_count"`
	JobsWithEmbeddings    int            `json:"jobs_with_embeddings"`
	JobsWithoutEmbeddings int            `json:"jobs_without_embeddings"`
	EmbeddingStatuses     map[string]int `json:"embedding_statuses"`
}

// Stats returns document statistics, including a breakdown of job embedding statuses.
func (s *Store) Stats(ctx context.Context) (*DocumentStats, error) {
	if err := s.engine.Ping(ctx); err != nil {
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	stats := &DocumentStats{
		CandidateCount:     s.countOrZero(ctx, s.candidates, MatchAll()),
		JobCount:           s.countOrZero(ctx, s.jobs, MatchAll()),
		JobsWithEmbeddings: s.countOrZero(ctx, s.jobs, Exists(types.FieldEmbedding)),
		EmbeddingStatuses:  map[string]int{},
	}
	stats.JobsWithoutEmbeddings = stats.JobCount - stats.JobsWithEmbeddings

	agg := TermsAggregation{Name: "statuses", Field: types.FieldEmbeddingStatus, Size: 50}
	buckets, err := s.engine.Aggregate(ctx, s.jobs, MatchAll(), []TermsAggregation{agg})
	if err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return nil, &UpstreamUnavailableError{Engine: s.engine.Name(), Cause: err}
	}
	for _, b := range buckets[agg.Name] {
		stats.EmbeddingStatuses[b.Key] = b.DocCount
	}
	return stats, nil
}
