// Package recommend ranks indexed job postings against a candidate's résumé embedding.
package recommend

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/parsing"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// Result limits
const (
	DefaultLimit = 10
	MaxLimit     = 50

	// DescriptionPreview bounds the description shown with each recommendation.
	DescriptionPreview = 500
)

// Messages returned to callers.
const (
	MsgCandidateNotFound = "CV not found for this user. Please upload your CV first."
	MsgEmbeddingMissing  = "CV embedding not available. Please re-upload your CV."
	MsgNoMatches         = "No matching jobs found at the moment."
)

// Sentinels for missing job fields.
const (
	NoTitle       = "Job Title Not Available"
	NoCompany     = "Company Name Not Available"
	NoDescription = "No description available"
	NoLocation    = "Location not specified"
)

// Store is the subset of index.Store the engine reads from.
type Store interface {
	GetCandidate(ctx context.Context, id string) (*types.CandidateProfile, error)
	SearchSimilarJobs(ctx context.Context, vec []float32, limit int) (*index.SimilarJobs, error)
}

// Recommendation is one ranked job as shown to the candidate.
type Recommendation struct {
	JobID           string   `json:"job_id"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	JobURL          string   `json:"job_url"`
	SkillsRequired  []string `json:"skills_required"`
	ExperienceLevel string   `json:"experience_level"`
	SalaryRange     string   `json:"salary_range"`
	MatchPercentage int      `json:"match_percentage"`
	SimilarityScore float64  `json:"similarity_score"`
	ScrapedDate     string   `json:"scraped_date,omitempty"`
}

// UserProfile summarizes the candidate for display next to the list.
type UserProfile struct {
	SkillsExtracted []string `json:"skills_extracted"`
	ExperienceYears int      `json:"experience_years"`
	JobTitle        string   `json:"job_title"`
}

// SearchMetadata describes the similarity query.
type SearchMetadata struct {
	TotalJobsInDatabase int              `json:"total_jobs_in_database"`
	SearchTookMS        int64            `json:"search_took_ms"`
	SearchMode          index.SearchMode `json:"search_mode"`
}

// Response is the result of Recommend. An empty list with Message set is a normal outcome.
type Response struct {
	CandidateID          string           `json:"candidate_id"`
	TotalRecommendations int              `json:"total_recommendations"`
	UserProfile          UserProfile      `json:"user_profile"`
	Recommendations      []Recommendation `json:"recommendations"`
	SearchMetadata       SearchMetadata   `json:"search_metadata"`
	Message              string           `json:"message,omitempty"`
}

// Engine produces recommendations.
type Engine struct {
	store Store
	log   *zap.Logger
}

// NewEngine creates an Engine reading from store.
func NewEngine(store Store, log *zap.Logger) *Engine {
	return &Engine{store: store, log: logger.OrNop(log)}
}

// ClampLimit applies the default and maximum result counts.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Recommend returns up to limit jobs ranked by similarity to the candidate's embedding.
// A missing candidate or embedding is an *index.NotFoundError.
func (e *Engine) Recommend(ctx context.Context, candidateID string, limit int) (*Response, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, &index.ValidationError{Field: "candidate_id", Message: "candidate_id is required"}
	}
	limit = ClampLimit(limit)

	candidate, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if !candidate.HasEmbedding() {
		e.log.Warn("candidate has no usable embedding", zap.String("candidate_id", candidateID))
		return nil, &index.NotFoundError{Kind: index.KindEmbedding, ID: candidateID}
	}

	similar, err := e.store.SearchSimilarJobs(ctx, candidate.Embedding, limit)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		CandidateID:     candidateID,
		UserProfile:     profileOf(candidate),
		Recommendations: make([]Recommendation, 0, len(similar.Hits)),
		SearchMetadata: SearchMetadata{
			TotalJobsInDatabase: similar.TotalJobs,
			SearchTookMS:        similar.Took.Milliseconds(),
			SearchMode:          similar.Mode,
		},
	}
	for _, hit := range similar.Hits {
		resp.Recommendations = append(resp.Recommendations, toRecommendation(hit, similar.Mode))
	}
	resp.TotalRecommendations = len(resp.Recommendations)
	if resp.TotalRecommendations == 0 {
		resp.Message = MsgNoMatches
	}

	e.log.Info("generated recommendations",
		zap.String("candidate_id", candidateID),
		zap.Int("count", resp.TotalRecommendations),
		zap.String("mode", string(similar.Mode)))
	return resp, nil
}

// Message returns the caller guidance for a not-found error from Recommend, or "".
func Message(err error) string {
	var nf *index.NotFoundError
	if !errors.As(err, &nf) {
		return ""
	}
	switch nf.Kind {
	case index.KindCandidate:
		return MsgCandidateNotFound
	case index.KindEmbedding:
		return MsgEmbeddingMissing
	}
	return ""
}

// MatchPercentage maps a cosine similarity onto 0..100. It is a display heuristic, not a
// probability.
func MatchPercentage(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	p := math.Round(score * 100)
	return int(math.Max(0, math.Min(100, p)))
}

func profileOf(c *types.CandidateProfile) UserProfile {
	title := c.Title
	if title == "" {
		title = types.NotSpecified
	}
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserProfile{SkillsExtracted: skills, ExperienceYears: c.ExperienceYears, JobTitle: title}
}

func toRecommendation(hit index.Hit, mode index.SearchMode) Recommendation {
	src := hit.Source
	jobID := src.String(types.FieldJobID)
	if jobID == "" {
		jobID = hit.ID
	}
	url := src.String("url")
	if url == "" {
		url = src.String("job_url")
	}

	r := Recommendation{
		JobID:           jobID,
		Title:           orDefault(src.String(types.FieldTitle), NoTitle),
		Company:         orDefault(src.String("company"), NoCompany),
		Description:     orDefault(parsing.TruncateAtWord(src.String(types.FieldDescription), DescriptionPreview), NoDescription),
		Location:        orDefault(src.String("location"), NoLocation),
		JobURL:          url,
		SkillsRequired:  stringList(src["skills_required"]),
		ExperienceLevel: orDefault(src.String("experience_level"), types.NotSpecified),
		SalaryRange:     orDefault(src.String("salary_range"), types.NotSpecified),
		SimilarityScore: hit.Score,
		ScrapedDate:     scrapedDate(src[types.FieldScrapedAt]),
	}
	if mode == index.ModeVector {
		r.MatchPercentage = MatchPercentage(hit.Score)
	}
	return r
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func scrapedDate(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}
