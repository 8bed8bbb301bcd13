package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/ingestion"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/recommend"
)

// Version is reported by the status operation.
const Version = "1.0.0"

// IndexStore is what the operations read from the index.
type IndexStore interface {
	Search(ctx context.Context, req index.SearchRequest) (*index.SearchResult, error)
	Aggregate(ctx context.Context, req index.AggregationRequest) (*index.AggregationResult, error)
	Health(ctx context.Context) index.HealthStatus
	Stats(ctx context.Context) (*index.DocumentStats, error)
	JobsWithoutEmbeddings(ctx context.Context, size int) (*index.SearchResult, error)
}

// Recommender produces recommendations.
type Recommender interface {
	Recommend(ctx context.Context, candidateID string, limit int) (*recommend.Response, error)
}

// Diagnoser probes the embedding provider.
type Diagnoser interface {
	Diagnose(ctx context.Context) llm.Diagnostics
	ModelInfo() llm.ModelInfo
}

// CVIngester ingests stored résumé text.
type CVIngester interface {
	ProcessLocation(ctx context.Context, location string) (*ingestion.CVResult, error)
	ProcessPending(ctx context.Context) (*ingestion.BatchResult, error)
}

// JobScraper runs listing scrapes.
type JobScraper interface {
	RunScheduled(ctx context.Context) (*ingestion.ScrapeResult, error)
	RunSmallBatch(ctx context.Context) (*ingestion.ScrapeResult, error)
}

// Services are the collaborators behind the operations. Store and Recommender are required;
// operations needing a nil collaborator answer 503.
type Services struct {
	Store       IndexStore
	Recommender Recommender
	Embeddings  Diagnoser
	CVs         CVIngester
	Jobs        JobScraper
	Logger      *zap.Logger
	Now         func() time.Time
}

// Service implements one operation per inbound event kind. Every operation returns a
// Response; none returns an error.
type Service struct {
	svc Services
	log *zap.Logger
}

// NewService creates a Service.
func NewService(svc Services) *Service {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	return &Service{svc: svc, log: logger.OrNop(svc.Logger)}
}

// Response is a status code and a JSON-serializable body.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body"`
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error       string `json:"error"`
	CandidateID string `json:"candidate_id,omitempty"`
	Task        string `json:"task,omitempty"`
}

func respond(status int, body any) Response {
	return Response{StatusCode: status, Body: body}
}

func (s *Service) failure(op string, err error) Response {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(op+" failed", zap.Error(err))
	} else {
		s.log.Info(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	return respond(status, ErrorBody{Error: ValidationMessage(err)})
}

func (s *Service) millis() int64 { return s.svc.Now().UnixMilli() }

// Recommend answers a recommendation request.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) Response {
	if err := Validate(req); err != nil {
		return s.failure("recommend", err)
	}
	id := req.ID()
	if id == "" {
		return s.failure("recommend", &index.ValidationError{Field: "candidate_id", Message: "candidate_id is required"})
	}

	resp, err := s.svc.Recommender.Recommend(ctx, id, req.Limit)
	if err != nil {
		if msg := recommend.Message(err); msg != "" {
			return respond(http.StatusNotFound, ErrorBody{Error: msg, CandidateID: id})
		}
		return s.failure("recommend", err)
	}
	return respond(http.StatusOK, resp)
}

// SearchResultItem is one hit of a raw search.
type SearchResultItem struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Success              bool               `json:"success"`
	Query                map[string]any     `json:"query"`
	Index                string             `json:"index"`
	TotalHits            int                `json:"total_hits"`
	ReturnedHits         int                `json:"returned_hits"`
	ExecutionTimeSeconds float64            `json:"execution_time_seconds"`
	TookMS               int64              `json:"took_ms"`
	Results              []SearchResultItem `json:"results"`
}

// Search runs a raw query.
func (s *Service) Search(ctx context.Context, req SearchRequest) Response {
	if err := Validate(req); err != nil {
		return s.failure("search", err)
	}
	start := time.Now()
	res, err := s.svc.Store.Search(ctx, req.toIndex())
	if err != nil {
		return s.failure("search", err)
	}

	items := make([]SearchResultItem, 0, len(res.Hits))
	for _, h := range res.Hits {
		items = append(items, SearchResultItem{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	s.log.Info("search executed",
		zap.String("index", res.Index),
		zap.Int("total", res.Total),
		zap.Int("returned", len(items)))
	return respond(http.StatusOK, SearchResponse{
		Success:              true,
		Query:                req.Query,
		Index:                res.Index,
		TotalHits:            res.Total,
		ReturnedHits:         len(items),
		ExecutionTimeSeconds: float64(time.Since(start).Milliseconds()) / 1000,
		TookMS:               res.TookMS,
		Results:              items,
	})
}

// AggregationResponse is the body of a successful aggregation.
type AggregationResponse struct {
	Success        bool                        `json:"success"`
	Index          string                      `json:"index"`
	Aggregations   map[string]index.BucketList `json:"aggregations"`
	TotalDocuments int                         `json:"total_documents"`
	TookMS         int64                       `json:"took_ms"`
}

// Aggregate runs terms aggregations.
func (s *Service) Aggregate(ctx context.Context, req AggregationRequest) Response {
	if err := Validate(req); err != nil {
		return s.failure("aggregate", err)
	}
	start := time.Now()
	res, err := s.svc.Store.Aggregate(ctx, req.toIndex())
	if err != nil {
		return s.failure("aggregate", err)
	}
	return respond(http.StatusOK, AggregationResponse{
		Success:        true,
		Index:          res.Index,
		Aggregations:   res.Aggregations,
		TotalDocuments: res.Total,
		TookMS:         time.Since(start).Milliseconds(),
	})
}

// StatusResponse is the body of a status check.
type StatusResponse struct {
	SystemStatus   string             `json:"system_status"`
	IndexStatus    index.HealthStatus `json:"index_status"`
	EmbeddingModel *llm.ModelInfo     `json:"embedding_model,omitempty"`
	Version        string             `json:"version"`
	Timestamp      int64              `json:"timestamp"`
}

// Status reports system health. The index status is data, so this always answers 200.
func (s *Service) Status(ctx context.Context) Response {
	health := s.svc.Store.Health(ctx)
	system := "operational"
	if health.Status != index.StatusConnected {
		system = "degraded"
	}
	status := StatusResponse{
		SystemStatus: system,
		IndexStatus:  health,
		Version:      Version,
		Timestamp:    s.millis(),
	}
	if s.svc.Embeddings != nil {
		info := s.svc.Embeddings.ModelInfo()
		status.EmbeddingModel = &info
	}
	return respond(http.StatusOK, status)
}

// TestResponse is the body of a diagnostic.
type TestResponse struct {
	TestType string `json:"test_type"`
	Result   any    `json:"result"`
}

// Test runs a diagnostic: connection, embedding, document stats or a sample of jobs missing
// embeddings. Unknown types are rejected with 400.
func (s *Service) Test(ctx context.Context, req TestRequest) Response {
	testType := req.TestType
	if testType == "" {
		testType = TestConnection
	}

	switch testType {
	case TestConnection:
		return respond(http.StatusOK, TestResponse{TestType: testType, Result: s.svc.Store.Health(ctx)})
	case TestEmbedding:
		if s.svc.Embeddings == nil {
			return s.failure("test", fmt.Errorf("embedding %w", ErrNotConfigured))
		}
		return respond(http.StatusOK, TestResponse{TestType: testType, Result: s.svc.Embeddings.Diagnose(ctx)})
	case TestStats:
		stats, err := s.svc.Store.Stats(ctx)
		if err != nil {
			return s.failure("test", err)
		}
		return respond(http.StatusOK, TestResponse{TestType: testType, Result: stats})
	case TestMissingEmbeddings:
		res, err := s.svc.Store.JobsWithoutEmbeddings(ctx, missingEmbeddingsSample)
		if err != nil {
			return s.failure("test", err)
		}
		return respond(http.StatusOK, TestResponse{TestType: testType, Result: res})
	default:
		return respond(http.StatusBadRequest, ErrorBody{Error: "Unknown test type: " + testType})
	}
}

// Ingest processes the résumé text stored at one location.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) Response {
	if err := Validate(req); err != nil {
		return s.failure("ingest", err)
	}
	if s.svc.CVs == nil {
		return s.failure("ingest", fmt.Errorf("CV ingestion %w", ErrNotConfigured))
	}
	res, err := s.svc.CVs.ProcessLocation(ctx, req.Location)
	if err != nil {
		return respond(HTTPStatus(err), res)
	}
	return respond(http.StatusOK, res)
}

// ProcessedFile is the outcome of one object-created record.
type ProcessedFile struct {
	File   string              `json:"file"`
	Bucket string              `json:"bucket,omitempty"`
	Result *ingestion.CVResult `json:"result"`
}

// RecordsResponse is the body of a records notification.
type RecordsResponse struct {
	Message        string          `json:"message"`
	ProcessedFiles []ProcessedFile `json:"processed_files"`
}

// ProcessRecords ingests one résumé per object-created record. A failed record is reported
// in its result and does not fail the batch.
func (s *Service) ProcessRecords(ctx context.Context, records []Record) Response {
	if s.svc.CVs == nil {
		return s.failure("records", fmt.Errorf("CV ingestion %w", ErrNotConfigured))
	}
	files := make([]ProcessedFile, 0, len(records))
	for _, rec := range records {
		bucket, key := rec.Location()
		if key == "" {
			s.log.Warn("record without object key", zap.String("bucket", bucket))
			continue
		}
		s.log.Info("processing uploaded CV", zap.String("bucket", bucket), zap.String("key", key))
		res, _ := s.svc.CVs.ProcessLocation(ctx, key)
		files = append(files, ProcessedFile{File: key, Bucket: bucket, Result: res})
	}
	return respond(http.StatusOK, RecordsResponse{
		Message:        fmt.Sprintf("Processed %d CV files", len(files)),
		ProcessedFiles: files,
	})
}

// ScrapeResponse is the body of a scrape.
type ScrapeResponse struct {
	Message string                  `json:"message"`
	Task    string                  `json:"task,omitempty"`
	Result  *ingestion.ScrapeResult `json:"result"`
}

// ScheduledScrape runs the scheduled job scrape.
func (s *Service) ScheduledScrape(ctx context.Context) Response {
	if s.svc.Jobs == nil {
		return s.failure("scrape", fmt.Errorf("job scraping %w", ErrNotConfigured))
	}
	res, err := s.svc.Jobs.RunScheduled(ctx)
	if err != nil {
		return s.failure("scrape", err)
	}
	return respond(http.StatusOK, ScrapeResponse{Message: "Job scraping completed", Result: res})
}

// Manual tasks
const (
	TaskSmallScrape    = "test_small_scrape"
	TaskTestConnection = "test_connection"
	TaskProcessPending = "process_pending_cvs"
	TaskHealthCheck    = "health_check"
)

// AvailableTasks lists the manual tasks.
var AvailableTasks = []string{TaskSmallScrape, TaskTestConnection, TaskProcessPending, TaskHealthCheck}

// HealthCheck is the body of the health_check task.
type HealthCheck struct {
	ServiceStatus    string             `json:"service_status"`
	Timestamp        int64              `json:"timestamp"`
	IndexStatus      index.HealthStatus `json:"index_status"`
	EmbeddingService any                `json:"embedding_service"`
}

// ManualTask runs a named task. An unknown task echoes the event and lists the tasks.
func (s *Service) ManualTask(ctx context.Context, task string, event map[string]any) Response {
	if task == "" {
		task = "test"
	}
	s.log.Info("running manual task", zap.String("task", task))

	taskFailure := func(err error) Response {
		r := s.failure(task, err)
		r.Body = ErrorBody{Error: err.Error(), Task: task}
		return r
	}

	switch task {
	case TaskSmallScrape:
		if s.svc.Jobs == nil {
			return taskFailure(fmt.Errorf("job scraping %w", ErrNotConfigured))
		}
		res, err := s.svc.Jobs.RunSmallBatch(ctx)
		if err != nil {
			return taskFailure(err)
		}
		return respond(http.StatusOK, ScrapeResponse{Message: "Test scraping completed", Task: task, Result: res})

	case TaskTestConnection:
		return respond(http.StatusOK, map[string]any{
			"message":      "Connection test completed",
			"task":         task,
			"index_status": s.svc.Store.Health(ctx),
		})

	case TaskProcessPending:
		if s.svc.CVs == nil {
			return taskFailure(fmt.Errorf("CV ingestion %w", ErrNotConfigured))
		}
		res, err := s.svc.CVs.ProcessPending(ctx)
		if err != nil {
			return taskFailure(err)
		}
		return respond(http.StatusOK, map[string]any{
			"message": "CV processing completed",
			"task":    task,
			"result":  res,
		})

	case TaskHealthCheck:
		check := HealthCheck{
			ServiceStatus: "healthy",
			Timestamp:     s.millis(),
			IndexStatus:   s.svc.Store.Health(ctx),
		}
		if s.svc.Embeddings != nil {
			check.EmbeddingService = s.svc.Embeddings.Diagnose(ctx)
		} else {
			check.EmbeddingService = "error: " + ErrNotConfigured.Error()
		}
		return respond(http.StatusOK, map[string]any{
			"message":       "Health check completed",
			"task":          task,
			"health_status": check,
		})

	default:
		return respond(http.StatusOK, map[string]any{
			"message":         "Service is working",
			"task":            task,
			"event_received":  event,
			"available_tasks": AvailableTasks,
		})
	}
}
