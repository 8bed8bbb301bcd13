package index

import (
	"context"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
	"go.uber.org/zap"
)

// Health statuses
const (
	StatusConnected = "connected"
	StatusFailed    = "failed"
)

// HealthStatus describes engine reachability and collection contents.
type HealthStatus struct {
	Status        string       `json:"status"`
	Host          string       `json:"host"`
	Engine        string       `json:"engine"`
	ClusterHealth string       `json:"cluster_health,omitempty"`
	VectorSearch  bool         `json:"vector_search"`
	Indices       *IndexCounts `json:"indices,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// IndexCounts holds per-collection document counts.
type IndexCounts struct {
	CandidateIndex         string `json:"candidate_index"`
	JobIndex               string `json:"job_index"`
	CandidateIndexExists   bool   `json:"candidate_index_exists"`
	JobIndexExists         bool   `json:"job_index_exists"`
	CandidateDocumentCount int    `json:"candidate_document_count"`
	JobDocumentCount       int    `json:"job_document_count"`
	JobsWithEmbeddings     int    `json:"jobs_with_embeddings"`
	JobsWithoutEmbeddings  int    `json:"jobs_without_embeddings"`
}

// Health reports engine status. It never fails: errors are returned as data with
// Status set to StatusFailed.
func (s *Store) Health(ctx context.Context) (status HealthStatus) {
	status = HealthStatus{Host: s.host(), Engine: s.engine.Name()}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("health check panicked", zap.Any("panic", r))
			status.Status = StatusFailed
			status.Error = "health check panicked"
		}
	}()

	fail := func(err error) HealthStatus {
		s.log.Warn("index health check failed", zap.Error(err))
		status.Status = StatusFailed
		status.Error = err.Error()
		return status
	}

	if err := s.engine.Ping(ctx); err != nil {
		return fail(err)
	}

	capable, err := s.engine.VectorCapability(ctx)
	if err != nil {
		s.log.Warn("vector capability check failed", zap.Error(err))
		capable = false
	}
	status.VectorSearch = capable
	status.ClusterHealth = "yellow"
	if capable {
		status.ClusterHealth = "green"
	}

	counts := &IndexCounts{CandidateIndex: s.candidates, JobIndex: s.jobs}
	if counts.CandidateIndexExists, err = s.engine.CollectionExists(ctx, s.candidates); err != nil {
		return fail(err)
	}
	if counts.JobIndexExists, err = s.engine.CollectionExists(ctx, s.jobs); err != nil {
		return fail(err)
	}
	if counts.CandidateIndexExists {
		if counts.CandidateDocumentCount, err = s.engine.Count(ctx, s.candidates, MatchAll()); err != nil {
			return fail(err)
		}
	}
	if counts.JobIndexExists {
		if counts.JobDocumentCount, err = s.engine.Count(ctx, s.jobs, MatchAll()); err != nil {
			return fail(err)
		}
		if counts.JobsWithEmbeddings, err = s.engine.Count(ctx, s.jobs, Exists(types.FieldEmbedding)); err != nil {
			return fail(err)
		}
		counts.JobsWithoutEmbeddings = counts.JobDocumentCount - counts.JobsWithEmbeddings
	}

	status.Status = StatusConnected
	status.Indices = counts
	return status
}

func (s *Store) host() string {
	if h := s.engine.Host(); h != "" {
		return h
	}
	return s.endpoint
}
