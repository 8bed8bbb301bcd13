// Package ingestion turns raw résumé text and scraped listings into indexed documents.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/parsing"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/storage"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// CV text limits
const (
	MinCVLength = 50
	MaxCVLength = 8000
)

// Result statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

// DefaultPendingGlob matches extracted résumé text under the default namespace.
const DefaultPendingGlob = "structured/**/*.txt"

// CandidateWriter stores candidate profiles.
type CandidateWriter interface {
	UpsertCandidate(ctx context.Context, id string, doc types.Document) (*index.WriteResult, error)
}

// CVConfig configures a CVPipeline.
type CVConfig struct {
	Namespace   string
	PendingGlob string
	Concurrency int
	Logger      *zap.Logger
	// Now dates open-ended ranges such as "2021 - present". Defaults to time.Now.
	Now func() time.Time
}

// CVPipeline reads résumé text, embeds it and stores the candidate profile.
type CVPipeline struct {
	source   storage.TextSource
	embedder llm.Embedder
	store    CandidateWriter
	cfg      CVConfig
	log      *zap.Logger
}

// NewCVPipeline creates a CVPipeline.
func NewCVPipeline(source storage.TextSource, embedder llm.Embedder, store CandidateWriter, cfg CVConfig) *CVPipeline {
	if cfg.Namespace == "" {
		cfg.Namespace = parsing.DefaultNamespace
	}
	if cfg.PendingGlob == "" {
		cfg.PendingGlob = DefaultPendingGlob
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CVPipeline{
		source:   source,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		log:      logger.OrNop(cfg.Logger),
	}
}

// CVResult reports the outcome of one résumé.
type CVResult struct {
	CandidateID         string `json:"candidate_id,omitempty"`
	Location            string `json:"location"`
	Status              string `json:"status"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	SkillsCount         int    `json:"skills_count"`
	IndexResult         string `json:"index_result,omitempty"`
	EmbeddingError      string `json:"embedding_error,omitempty"`
	Error               string `json:"error,omitempty"`
}

// TooShortError is returned when extracted résumé text is too short to use.
type TooShortError struct {
	Location string
	Length   int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("CV text at %s is too short or empty (%d characters)", e.Location, e.Length)
}

// ProcessLocation ingests the résumé text stored at location. The returned result is always
// non-nil; its Status is "error" whenever err is non-nil. When embedding fails the profile is
// still stored without a vector, but an exhausted provider (llm.EmbeddingUnavailableError) is
// returned as the error.
func (p *CVPipeline) ProcessLocation(ctx context.Context, location string) (*CVResult, error) {
	res := &CVResult{Location: location, Status: StatusError}
	fail := func(err error) (*CVResult, error) {
		res.Error = err.Error()
		p.log.Error("failed to process CV", zap.String("location", location), zap.Error(err))
		return res, err
	}

	id, ok := parsing.ExtractIdentifierFromPath(location, p.cfg.Namespace)
	if !ok {
		return fail(&index.ValidationError{Field: "location", Message: fmt.Sprintf("cannot extract candidate id from %q", location)})
	}
	res.CandidateID = id

	raw, err := p.source.ReadText(ctx, location)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(&index.NotFoundError{Kind: "cv text", ID: location})
		}
		return fail(fmt.Errorf("failed to read CV text: %w", err))
	}

	text := parsing.CleanText(raw)
	if n := len([]rune(text)); n < MinCVLength {
		return fail(&TooShortError{Location: location, Length: n})
	}
	if r := []rune(text); len(r) > MaxCVLength {
		text = string(r[:MaxCVLength]) + llm.TruncateMarker
		p.log.Warn("CV text truncated", zap.String("candidate_id", id), zap.Int("max_chars", MaxCVLength))
	}

	_, hasEmail := parsing.ExtractEmail(text)
	_, hasPhone := parsing.ExtractPhone(text)
	profile := &types.CandidateProfile{
		CandidateID:     id,
		SourceText:      text,
		Skills:          parsing.ExtractSkills(text),
		ExperienceYears: p.experienceYears(text),
		Title:           parsing.ExtractTitle(text),
		SourceLocation:  location,
		TextLength:      len([]rune(text)),
		HasEmail:        hasEmail,
		HasPhone:        hasPhone,
	}

	vec, embedErr := p.embedder.Embed(ctx, text)
	if embedErr != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		res.EmbeddingError = embedErr.Error()
		p.log.Warn("storing CV without embedding", zap.String("candidate_id", id), zap.Error(embedErr))
	} else {
		profile.Embedding = vec
	}

	doc, err := profile.ToDocument()
	if err != nil {
		return fail(err)
	}
	written, err := p.store.UpsertCandidate(ctx, id, doc)
	if err != nil {
		return fail(err)
	}

	res.IndexResult = written.Result
	if llm.IsUnavailable(embedErr) {
		return fail(fmt.Errorf("CV %s stored without embedding: %w", id, embedErr))
	}

	res.Status = StatusSuccess
	if written.EmbeddingStored {
		res.EmbeddingDimensions = len(vec)
	}
	res.SkillsCount = len(profile.Skills)
	p.log.Info("processed CV",
		zap.String("candidate_id", id),
		zap.Int("embedding_dimensions", res.EmbeddingDimensions),
		zap.Int("skills", res.SkillsCount))
	return res, nil
}

// experienceYears prefers an explicit "N years" statement and falls back to summing the
// résumé's date ranges.
func (p *CVPipeline) experienceYears(text string) int {
	if years := parsing.ExtractExperienceYears(text); years > 0 {
		return years
	}
	return parsing.YearsFromDateRanges(text, p.cfg.Now())
}

// BatchResult summarizes a batch of résumés.
type BatchResult struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Results   []CVResult `json:"results"`
	Duration  string     `json:"duration"`
}

// ProcessLocations ingests each location with bounded concurrency. Individual failures are
// reported in the results, not returned.
func (p *CVPipeline) ProcessLocations(ctx context.Context, locations []string) (*BatchResult, error) {
	start := time.Now()
	results := make([]CVResult, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, loc := range locations {
		g.Go(func() error {
			res, _ := p.ProcessLocation(gctx, loc)
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Total: len(locations), Results: results, Duration: time.Since(start).String()}
	for _, r := range results {
		if r.Status == StatusSuccess {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}

// ProcessPending ingests every location matching the pending glob.
func (p *CVPipeline) ProcessPending(ctx context.Context) (*BatchResult, error) {
	locations, err := p.source.List(ctx, p.cfg.PendingGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending CVs: %w", err)
	}
	p.log.Info("processing pending CVs", zap.Int("count", len(locations)), zap.String("glob", p.cfg.PendingGlob))
	return p.ProcessLocations(ctx, locations)
}
