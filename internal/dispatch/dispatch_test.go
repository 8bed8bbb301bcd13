package dispatch

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index/boltstore"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/ingestion"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/recommend"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/storage"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

type fakeRecommender struct {
	resp *recommend.Response
	err  error
	ids  []string
}

func (f *fakeRecommender) Recommend(_ context.Context, id string, _ int) (*recommend.Response, error) {
	f.ids = append(f.ids, id)
	return f.resp, f.err
}

type fakeCVs struct {
	locations []string
	pending   int
}

func (f *fakeCVs) ProcessLocation(_ context.Context, location string) (*ingestion.CVResult, error) {
	f.locations = append(f.locations, location)
	if location == "bad.txt" {
		err := &ingestion.TooShortError{Location: location}
		return &ingestion.CVResult{Location: location, Status: ingestion.StatusError, Error: err.Error()}, err
	}
	return &ingestion.CVResult{Location: location, Status: ingestion.StatusSuccess}, nil
}

func (f *fakeCVs) ProcessPending(context.Context) (*ingestion.BatchResult, error) {
	f.pending++
	return &ingestion.BatchResult{}, nil
}

type fakeJobs struct {
	scheduled, small int
	err              error
}

func (f *fakeJobs) RunScheduled(context.Context) (*ingestion.ScrapeResult, error) {
	f.scheduled++
	return &ingestion.ScrapeResult{Status: ingestion.StatusSuccess}, f.err
}

func (f *fakeJobs) RunSmallBatch(context.Context) (*ingestion.ScrapeResult, error) {
	f.small++
	return &ingestion.ScrapeResult{Status: ingestion.StatusSuccess}, f.err
}

type fakeDiagnoser struct{}

func (fakeDiagnoser) Diagnose(context.Context) llm.Diagnostics {
	return llm.Diagnostics{OverallStatus: "success"}
}

func (fakeDiagnoser) ModelInfo() llm.ModelInfo {
	return llm.ModelInfo{CurrentModel: "text-embedding-004", EmbeddingDimensions: 768}
}

type fixture struct {
	d    *Dispatcher
	rec  *fakeRecommender
	cvs  *fakeCVs
	jobs *fakeJobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := boltstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	store := index.NewStore(engine, index.Options{})

	ctx := context.Background()
	for _, j := range []types.Document{
		{"job_id": "j1", "title": "Python Developer", "experience_level": "senior", "skills_required": []any{"Python"}},
		{"job_id": "j2", "title": "Accountant", "experience_level": "junior", "skills_required": []any{"Excel"}},
	} {
		_, err := store.UpsertJob(ctx, j.String("job_id"), j)
		require.NoError(t, err)
	}

	f := &fixture{
		rec:  &fakeRecommender{resp: &recommend.Response{Recommendations: []recommend.Recommendation{}}},
		cvs:  &fakeCVs{},
		jobs: &fakeJobs{},
	}
	f.d = New(NewService(Services{
		Store:       store,
		Recommender: f.rec,
		Embeddings:  fakeDiagnoser{},
		CVs:         f.cvs,
		Jobs:        f.jobs,
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	}))
	return f
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		event map[string]any
		want  string
	}{
		{"query object wins", map[string]any{"query": map[string]any{"match_all": map[string]any{}}, "httpMethod": "GET"}, KindQuery},
		{"query string is not a query", map[string]any{"query": "python", "task": "health_check"}, KindTask},
		{"http", map[string]any{"httpMethod": "POST", "Records": []any{map[string]any{}}}, KindHTTP},
		{"records", map[string]any{"Records": []any{map[string]any{}}}, KindRecords},
		{"empty records fall through", map[string]any{"Records": []any{}}, KindManual},
		{"cloud schedule", map[string]any{"source": "aws.events"}, KindScheduled},
		{"scheduler", map[string]any{"source": "scheduler", "task": "x"}, KindScheduled},
		{"other source", map[string]any{"source": "manual"}, KindManual},
		{"task", map[string]any{"task": "health_check"}, KindTask},
		{"query results", map[string]any{"total_hits": 3}, KindQueryResults},
		{"empty", map[string]any{}, KindManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.event))
		})
	}
}

func TestHandle_DirectQuery(t *testing.T) {
	f := newFixture(t)
	resp := f.d.Handle(context.Background(), map[string]any{
		"query": map[string]any{"match": map[string]any{"title": "python"}},
		"index": "job-index",
		"size":  "5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := resp.Body.(SearchResponse)
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.TotalHits)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "j1", body.Results[0].ID)
	assert.NotContains(t, body.Results[0].Source, "embedding")
}

func TestHandle_HTTPRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/recommendations", "body": `{"user_id": "u-1"}`})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"u-1"}, f.rec.ids)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/recommendations", "body": `{}`})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/recommendations", "body": `{not json`})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON in request body", resp.Body.(ErrorBody).Error)

	resp = f.d.Handle(ctx, map[string]any{
		"httpMethod": "POST",
		"path":       "/aggregations",
		"body": map[string]any{
			"aggregations": map[string]any{"levels": map[string]any{"terms": map[string]any{"field": "experience_level"}}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	agg := resp.Body.(AggregationResponse)
	assert.Equal(t, 2, agg.TotalDocuments)
	assert.Len(t, agg.Aggregations["levels"].Buckets, 2)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "GET", "path": "/status"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := resp.Body.(StatusResponse)
	assert.Equal(t, "operational", status.SystemStatus)
	assert.Equal(t, int64(1700000000000), status.Timestamp)
	require.NotNil(t, status.EmbeddingModel)
	assert.Equal(t, "text-embedding-004", status.EmbeddingModel.CurrentModel)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/test", "body": `{"test_type": "embedding"}`})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/test", "body": `{"test_type": "stats"}`})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := resp.Body.(TestResponse).Result.(*index.DocumentStats)
	assert.Equal(t, 2, stats.JobCount)
	assert.Equal(t, 2, stats.JobsWithoutEmbeddings)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/test", "body": `{"test_type": "missing_embeddings"}`})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	missing := resp.Body.(TestResponse).Result.(*index.SearchResult)
	assert.Len(t, missing.Hits, 2)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "POST", "path": "/test", "body": `{"test_type": "gpu"}`})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.d.Handle(ctx, map[string]any{"httpMethod": "DELETE", "path": "/jobs"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Endpoint not found: DELETE /jobs", resp.Body.(ErrorBody).Error)
}

func TestHandle_RecommendNotFound(t *testing.T) {
	f := newFixture(t)
	f.rec.err = &index.NotFoundError{Kind: index.KindCandidate, ID: "ghost"}

	resp := f.d.Service().Recommend(context.Background(), RecommendRequest{CandidateID: "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := resp.Body.(ErrorBody)
	assert.Equal(t, recommend.MsgCandidateNotFound, body.Error)
	assert.Equal(t, "ghost", body.CandidateID)

	f.rec.err = &index.UpstreamUnavailableError{Engine: "bolt", Cause: errors.New("closed")}
	resp = f.d.Service().Recommend(context.Background(), RecommendRequest{CandidateID: "ghost"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandle_Records(t *testing.T) {
	f := newFixture(t)
	resp := f.d.Handle(context.Background(), map[string]any{
		"Records": []any{
			map[string]any{"s3": map[string]any{
				"bucket": map[string]any{"name": "cvs"},
				"object": map[string]any{"key": "structured/u-1/my+cv.txt"},
			}},
			map[string]any{"bucket": "cvs", "name": "bad.txt"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := resp.Body.(RecordsResponse)
	assert.Equal(t, "Processed 2 CV files", body.Message)
	assert.Equal(t, []string{"structured/u-1/my cv.txt", "bad.txt"}, f.cvs.locations)
	assert.Equal(t, ingestion.StatusError, body.ProcessedFiles[1].Result.Status)
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, &llm.EmbeddingUnavailableError{Models: []string{"text-embedding-004"}, Attempts: 3, Cause: errors.New("provider down")}
}

func TestIngest_EmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	path := filepath.Join(root, "structured", "u-7", "cv.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Backend Engineer\nI have 4 years of experience building Go and Python services on AWS."), 0o600))

	src, err := storage.NewLocalSource(root)
	require.NoError(t, err)
	engine, err := boltstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	store := index.NewStore(engine, index.Options{})

	svc := NewService(Services{
		Store:       store,
		Recommender: &fakeRecommender{},
		CVs:         ingestion.NewCVPipeline(src, downEmbedder{}, store, ingestion.CVConfig{}),
	})

	resp := svc.Ingest(ctx, IngestRequest{Location: "structured/u-7/cv.txt"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	res := resp.Body.(*ingestion.CVResult)
	assert.Equal(t, ingestion.StatusError, res.Status)
	assert.Contains(t, res.Error, "embedding unavailable")

	resp = svc.ProcessRecords(ctx, []Record{{Bucket: "cvs", Name: "structured/u-7/cv.txt"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := resp.Body.(RecordsResponse).ProcessedFiles
	require.Len(t, files, 1)
	assert.Equal(t, ingestion.StatusError, files[0].Result.Status)

	profile, err := store.GetCandidate(ctx, "u-7")
	require.NoError(t, err)
	assert.False(t, profile.HasEmbedding())
}

func TestHandle_ScheduledAndTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.d.Handle(ctx, map[string]any{"source": "aws.events", "detail-type": "Scheduled Event"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.jobs.scheduled)

	resp = f.d.Handle(ctx, map[string]any{"task": TaskSmallScrape})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.jobs.small)

	resp = f.d.Handle(ctx, map[string]any{"task": TaskProcessPending})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.cvs.pending)

	resp = f.d.Handle(ctx, map[string]any{"task": TaskHealthCheck})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := resp.Body.(map[string]any)["health_status"].(HealthCheck)
	assert.Equal(t, index.StatusConnected, check.IndexStatus.Status)

	resp = f.d.Handle(ctx, map[string]any{"hello": "world"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, AvailableTasks, resp.Body.(map[string]any)["available_tasks"])

	f.jobs.err = errors.New("board unreachable")
	resp = f.d.Handle(ctx, map[string]any{"task": TaskSmallScrape})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, TaskSmallScrape, resp.Body.(ErrorBody).Task)
}

func TestHandle_QueryResultsEcho(t *testing.T) {
	f := newFixture(t)
	resp := f.d.Handle(context.Background(), map[string]any{"success": true, "results": []any{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, KindQueryResults, resp.Body.(map[string]any)["event_type"])
}

func TestHandle_MissingCollaborators(t *testing.T) {
	engine, err := boltstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer engine.Close()

	d := New(NewService(Services{Store: index.NewStore(engine, index.Options{}), Recommender: &fakeRecommender{}}))
	resp := d.Handle(context.Background(), map[string]any{"source": "scheduler"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = d.Service().Test(context.Background(), TestRequest{TestType: TestEmbedding})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&index.ValidationError{Message: "x"}, http.StatusBadRequest},
		{&llm.InputError{Length: 0}, http.StatusBadRequest},
		{&index.NotFoundError{Kind: index.KindJob}, http.StatusNotFound},
		{&llm.EmbeddingUnavailableError{}, http.StatusServiceUnavailable},
		{&index.UpstreamUnavailableError{Engine: "postgres"}, http.StatusServiceUnavailable},
		{&index.WriteFailedError{Collection: "job-index", ID: "j"}, http.StatusInternalServerError},
		{&index.DimensionMismatchError{}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}
