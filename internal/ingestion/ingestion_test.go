package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/fetch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index/boltstore"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/storage"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

const sampleCV = `Jane Doe
Senior Backend Engineer
jane@example.com
I have 7 years of experience building Python and Go services on AWS with Docker and Kubernetes.`

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, 8)
	for i := range v {
		v[i] = float32(len(text)%7+i) / 10
	}
	return v, nil
}

func newTestStore(t *testing.T) *index.Store {
	t.Helper()
	engine, err := boltstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return index.NewStore(engine, index.Options{})
}

func writeCV(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newCVPipeline(t *testing.T, emb *fakeEmbedder) (*CVPipeline, *index.Store, string) {
	t.Helper()
	root := t.TempDir()
	src, err := storage.NewLocalSource(root)
	require.NoError(t, err)
	store := newTestStore(t)
	return NewCVPipeline(src, emb, store, CVConfig{Concurrency: 2}), store, root
}

func TestCVPipeline_ProcessLocation(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	p, store, root := newCVPipeline(t, emb)
	writeCV(t, root, "structured/user-123/cv.txt", sampleCV)

	res, err := p.ProcessLocation(ctx, "structured/user-123/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "user-123", res.CandidateID)
	assert.Equal(t, 8, res.EmbeddingDimensions)
	assert.Equal(t, "created", res.IndexResult)
	assert.Positive(t, res.SkillsCount)

	profile, err := store.GetCandidate(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, 7, profile.ExperienceYears)
	assert.Contains(t, profile.Skills, "Python")
	assert.Equal(t, "structured/user-123/cv.txt", profile.SourceLocation)
	assert.True(t, profile.HasEmbedding())
	assert.False(t, profile.IngestedAt.IsZero())
	assert.True(t, profile.HasEmail)
	assert.False(t, profile.HasPhone)

	res, err = p.ProcessLocation(ctx, "structured/user-123/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, "updated", res.IndexResult)
}

func TestCVPipeline_ExperienceFromDateRanges(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	src, err := storage.NewLocalSource(root)
	require.NoError(t, err)
	store := newTestStore(t)
	now := func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	p := NewCVPipeline(src, &fakeEmbedder{}, store, CVConfig{Now: now})

	writeCV(t, root, "structured/u9/cv.txt", `John Roe
Data Analyst
Acme Corp 2016 - 2020, reporting and dashboards in SQL and Excel.
Globex 2021 to present, analytics with Python. Phone: (555) 123-4567`)

	_, err = p.ProcessLocation(ctx, "structured/u9/cv.txt")
	require.NoError(t, err)
	profile, err := store.GetCandidate(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, 8, profile.ExperienceYears)
	assert.True(t, profile.HasPhone)
	assert.False(t, profile.HasEmail)
}

func TestCVPipeline_EmbeddingFailureStillStores(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{err: errors.New("quota exceeded")}
	p, store, root := newCVPipeline(t, emb)
	writeCV(t, root, "structured/u1/cv.txt", sampleCV)

	res, err := p.ProcessLocation(ctx, "structured/u1/cv.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, res.EmbeddingDimensions)
	assert.Contains(t, res.EmbeddingError, "quota")

	profile, err := store.GetCandidate(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, profile.HasEmbedding())
}

func TestCVPipeline_EmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	unavailable := &llm.EmbeddingUnavailableError{
		Models:   []string{"text-embedding-004", "embedding-001"},
		Attempts: 6,
		Cause:    errors.New("503 from provider"),
	}
	p, store, root := newCVPipeline(t, &fakeEmbedder{err: unavailable})
	writeCV(t, root, "structured/u2/cv.txt", sampleCV)

	res, err := p.ProcessLocation(ctx, "structured/u2/cv.txt")
	require.Error(t, err)
	assert.True(t, llm.IsUnavailable(err))
	var typed *llm.EmbeddingUnavailableError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 6, typed.Attempts)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "u2", res.CandidateID)
	assert.Equal(t, "created", res.IndexResult)
	assert.Contains(t, res.Error, "embedding unavailable")
	assert.Zero(t, res.EmbeddingDimensions)

	profile, err := store.GetCandidate(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, profile.HasEmbedding())

	batch, err := p.ProcessLocations(ctx, []string{"structured/u2/cv.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Failed)
	assert.Zero(t, batch.Succeeded)
}

func TestCVPipeline_Rejections(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	p, _, root := newCVPipeline(t, emb)
	writeCV(t, root, "structured/short/cv.txt", "too short")

	res, err := p.ProcessLocation(ctx, "structured/short/cv.txt")
	var short *TooShortError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, StatusError, res.Status)
	assert.NotEmpty(t, res.Error)

	_, err = p.ProcessLocation(ctx, "structured/missing/cv.txt")
	var nf *index.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = p.ProcessLocation(ctx, "structured/cv.txt")
	var verr *index.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, emb.calls, "rejected CVs are never embedded")
}

func TestCVPipeline_Truncates(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	p, store, root := newCVPipeline(t, emb)
	writeCV(t, root, "structured/long/cv.txt", strings.Repeat("python developer ", 1000))

	_, err := p.ProcessLocation(ctx, "structured/long/cv.txt")
	require.NoError(t, err)
	require.Len(t, emb.calls, 1)
	assert.Len(t, []rune(emb.calls[0]), MaxCVLength+3)

	profile, err := store.GetCandidate(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, MaxCVLength+3, profile.TextLength)
}

func TestCVPipeline_ProcessPending(t *testing.T) {
	ctx := context.Background()
	p, store, root := newCVPipeline(t, &fakeEmbedder{})
	writeCV(t, root, "structured/a-001/cv.txt", sampleCV)
	writeCV(t, root, "structured/b-002/cv.txt", sampleCV)
	writeCV(t, root, "structured/c-003/cv.txt", "short")
	writeCV(t, root, "raw/d-004/cv.pdf", "binary")

	batch, err := p.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CandidateCount)
}

type fakeListings struct {
	byTerm  map[string][]types.RawListing
	fail    map[string]error
	queries []fetch.Query
}

func (f *fakeListings) FetchListings(_ context.Context, q fetch.Query) ([]types.RawListing, error) {
	f.queries = append(f.queries, q)
	if err := f.fail[q.Term]; err != nil {
		return nil, err
	}
	found := f.byTerm[q.Term]
	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}
	return found, nil
}

func listing(title, company, desc, url string) types.RawListing {
	return types.RawListing{Title: title, Company: company, Description: desc, URL: url}
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newJobPipeline(t *testing.T, src fetch.ListingSource, emb *fakeEmbedder, terms ...string) (*JobPipeline, *index.Store) {
	t.Helper()
	store := newTestStore(t)
	p := NewJobPipeline(src, emb, store, JobConfig{
		SearchTerms: terms,
		TermDelay:   -1,
		Now:         func() time.Time { return fixedNow },
	})
	return p, store
}

type failingJobWriter struct {
	failID string
	store  *index.Store
}

func (w *failingJobWriter) UpsertJob(ctx context.Context, id string, doc types.Document) (*index.WriteResult, error) {
	if id == w.failID {
		return nil, &index.WriteFailedError{Collection: "job-index", ID: id, Cause: errors.New("disk full")}
	}
	return w.store.UpsertJob(ctx, id, doc)
}

func TestJobPipeline_IndexFailuresCountedSeparately(t *testing.T) {
	ctx := context.Background()
	src := &fakeListings{byTerm: map[string][]types.RawListing{
		"go": {
			listing("Go Developer", "Acme", "Build Go services on Kubernetes.", "https://jobs.example/1"),
			listing("Go Engineer", "Globex", "Maintain Go APIs and PostgreSQL.", "https://jobs.example/2"),
		},
	}}
	writer := &failingJobWriter{store: newTestStore(t)}
	p := NewJobPipeline(src, &fakeEmbedder{}, writer, JobConfig{
		SearchTerms: []string{"go"},
		TermDelay:   -1,
		Now:         func() time.Time { return fixedNow },
	})
	writer.failID = p.BuildPosting(src.byTerm["go"][1]).JobID

	res, err := p.Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalScraped)
	assert.Equal(t, 1, res.SuccessfullyProcessed)
	assert.Equal(t, 1, res.EmbeddingSuccess)
	assert.Zero(t, res.EmbeddingFailures)
	assert.Equal(t, 1, res.IndexFailures)
}

func TestJobPipeline_Run(t *testing.T) {
	ctx := context.Background()
	src := &fakeListings{byTerm: map[string][]types.RawListing{
		"go": {
			listing("Senior Go Developer", "Acme", "Build Go and Kubernetes services. 5+ years required.", "https://jobs.example/1"),
			listing("Go Intern", "", "", ""),
		},
		"data": {
			listing("Data Scientist", "Numbers Inc", "Python, SQL and machine learning", "https://jobs.example/2"),
		},
	}}
	emb := &fakeEmbedder{}
	p, store := newJobPipeline(t, src, emb, "go", "data")

	res, err := p.Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.TotalScraped)
	assert.Equal(t, 3, res.SuccessfullyProcessed)
	assert.Equal(t, 2, res.EmbeddingSuccess)
	assert.Equal(t, 1, res.EmbeddingFailures)
	assert.Equal(t, []string{"go", "data"}, res.SearchTerms)
	require.Len(t, res.ProcessedJobIDs, 3)
	assert.Equal(t, []fetch.Query{{Term: "go", Limit: 5}, {Term: "data", Limit: 5}}, src.queries)

	job, err := store.GetJob(ctx, res.ProcessedJobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.ExperienceSenior, job.ExperienceLevel)
	assert.Equal(t, types.NotSpecified, job.SalaryRange)
	assert.Equal(t, types.DefaultLocation, job.Location)
	assert.Equal(t, types.EmbeddingSuccess, job.EmbeddingStatus)
	assert.True(t, fixedNow.Equal(job.ScrapedAt))

	intern, err := store.GetJob(ctx, res.ProcessedJobIDs[1])
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCompany, intern.Company)
	assert.Equal(t, types.EmbeddingSkippedShort, intern.EmbeddingStatus)
	assert.Empty(t, intern.Embedding)
}

func TestJobPipeline_EmbeddingErrorRecorded(t *testing.T) {
	ctx := context.Background()
	src := &fakeListings{byTerm: map[string][]types.RawListing{
		"go": {listing("Backend Engineer", "Acme", "Design distributed systems in Go", "https://jobs.example/3")},
	}}
	p, store := newJobPipeline(t, src, &fakeEmbedder{err: errors.New("model overloaded")}, "go")

	res, err := p.Run(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessfullyProcessed)
	assert.Equal(t, 1, res.EmbeddingFailures)

	job, err := store.GetJob(ctx, res.ProcessedJobIDs[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(job.EmbeddingStatus), "failed_exception: model overloaded"))
}

func TestJobPipeline_TermFailures(t *testing.T) {
	ctx := context.Background()
	src := &fakeListings{
		byTerm: map[string][]types.RawListing{
			"ok": {listing("QA Engineer", "Acme", "Automated testing with Selenium", "https://jobs.example/4")},
		},
		fail: map[string]error{"broken": errors.New("status 503")},
	}
	p, _ := newJobPipeline(t, src, &fakeEmbedder{}, "broken", "ok")
	res, err := p.Run(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.SuccessfullyProcessed)

	p, _ = newJobPipeline(t, src, &fakeEmbedder{}, "broken")
	res, err = p.Run(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "503")
	assert.Zero(t, res.TotalScraped)
}

func TestJobPipeline_RunSmallBatch(t *testing.T) {
	ctx := context.Background()
	var found []types.RawListing
	for i := range 12 {
		found = append(found, listing("Software Engineer "+string(rune('A'+i)), "Acme", "Write software in Go and Python", ""))
	}
	src := &fakeListings{byTerm: map[string][]types.RawListing{"software engineer": found}}
	p, _ := newJobPipeline(t, src, &fakeEmbedder{}, "software engineer", "unused")

	res, err := p.RunSmallBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, SmallBatchScraped, res.TotalScraped)
	assert.Equal(t, SmallBatchProcessed, res.SuccessfullyProcessed)
	assert.Equal(t, []string{"software engineer"}, res.SearchTerms)
	assert.Len(t, src.queries, 1)
}

func TestJobPipeline_StableIDs(t *testing.T) {
	p, _ := newJobPipeline(t, &fakeListings{}, &fakeEmbedder{})
	a := p.BuildPosting(listing("Go Dev", "Acme", "x", "https://jobs.example/1"))
	b := p.BuildPosting(listing("GO DEV", "ACME", "y", "https://jobs.example/1"))
	c := p.BuildPosting(listing("Go Dev", "Acme", "x", ""))
	assert.Equal(t, a.JobID, b.JobID)
	assert.NotEqual(t, a.JobID, c.JobID)
}
