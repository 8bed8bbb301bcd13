package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/fetch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/parsing"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// Job pipeline limits
const (
	// MinJobTextLength is the shortest cleaned title+description that is embedded.
	MinJobTextLength = 20
	// DefaultTermDelay paces consecutive search terms.
	DefaultTermDelay = 3 * time.Second
	// ScheduledMaxJobs bounds a scheduled scrape.
	ScheduledMaxJobs = 100
	// SmallBatchScraped and SmallBatchProcessed bound a manual test run.
	SmallBatchScraped   = 10
	SmallBatchProcessed = 5
)

// DefaultSearchTerms are the queries a scheduled scrape runs.
var DefaultSearchTerms = []string{
	"software engineer",
	"data scientist",
	"frontend developer",
	"backend developer",
	"devops engineer",
}

// JobWriter stores job postings.
type JobWriter interface {
	UpsertJob(ctx context.Context, id string, doc types.Document) (*index.WriteResult, error)
}

// JobConfig configures a JobPipeline.
type JobConfig struct {
	SearchTerms []string
	TermDelay   time.Duration
	// ScheduledMax caps the listings RunScheduled scrapes.
	ScheduledMax int
	Logger       *zap.Logger
	Now          func() time.Time
}

// JobPipeline scrapes listings, embeds them and stores job postings.
type JobPipeline struct {
	source   fetch.ListingSource
	embedder llm.Embedder
	store    JobWriter
	cfg      JobConfig
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewJobPipeline creates a JobPipeline. A negative TermDelay disables pacing.
func NewJobPipeline(source fetch.ListingSource, embedder llm.Embedder, store JobWriter, cfg JobConfig) *JobPipeline {
	if len(cfg.SearchTerms) == 0 {
		cfg.SearchTerms = DefaultSearchTerms
	}
	if cfg.TermDelay == 0 {
		cfg.TermDelay = DefaultTermDelay
	}
	if cfg.ScheduledMax <= 0 {
		cfg.ScheduledMax = ScheduledMaxJobs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Inf
	if cfg.TermDelay > 0 {
		limit = rate.Every(cfg.TermDelay)
	}
	return &JobPipeline{
		source:   source,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		log:      logger.OrNop(cfg.Logger),
	}
}

// ScrapeResult summarizes a scrape run.
type ScrapeResult struct {
	TotalScraped          int      `json:"total_scraped"`
	SuccessfullyProcessed int      `json:"successfully_processed"`
	EmbeddingSuccess      int      `json:"embedding_success"`
	EmbeddingFailures     int      `json:"embedding_failures"`
	IndexFailures         int      `json:"index_failures"`
	ProcessedJobIDs       []string `json:"processed_job_ids"`
	SearchTerms           []string `json:"search_terms"`
	Status                string   `json:"status"`
	Error                 string   `json:"error,omitempty"`
}

// Run scrapes up to maxJobs listings spread evenly over the configured search terms and
// indexes them. A term whose fetch fails is skipped; the run fails only if every term does.
func (p *JobPipeline) Run(ctx context.Context, maxJobs int) (*ScrapeResult, error) {
	terms := p.cfg.SearchTerms
	perTerm := maxJobs / len(terms)
	if perTerm < 1 {
		perTerm = 1
	}

	var (
		listings []types.RawListing
		errs     []error
	)
	for _, term := range terms {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		found, err := p.source.FetchListings(ctx, fetch.Query{Term: term, Limit: perTerm})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("listing fetch failed", zap.String("term", term), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", term, err))
			continue
		}
		p.log.Info("fetched listings", zap.String("term", term), zap.Int("count", len(found)))
		listings = append(listings, found...)
	}

	res := p.process(ctx, listings, len(listings))
	res.SearchTerms = terms
	if len(errs) == len(terms) {
		res.Status = StatusFailed
		res.Error = errors.Join(errs...).Error()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// RunScheduled runs a full scrape of ScheduledMax listings.
func (p *JobPipeline) RunScheduled(ctx context.Context) (*ScrapeResult, error) {
	return p.Run(ctx, p.cfg.ScheduledMax)
}

// RunSmallBatch scrapes SmallBatchScraped listings for the first search term and indexes
// the first SmallBatchProcessed of them.
func (p *JobPipeline) RunSmallBatch(ctx context.Context) (*ScrapeResult, error) {
	term := p.cfg.SearchTerms[0]
	listings, err := p.source.FetchListings(ctx, fetch.Query{Term: term, Limit: SmallBatchScraped})
	if err != nil {
		return &ScrapeResult{
			SearchTerms:     []string{term},
			ProcessedJobIDs: []string{},
			Status:          StatusFailed,
			Error:           err.Error(),
		}, fmt.Errorf("failed to fetch listings for %q: %w", term, err)
	}

	total := len(listings)
	if len(listings) > SmallBatchProcessed {
		listings = listings[:SmallBatchProcessed]
	}
	res := p.process(ctx, listings, total)
	res.SearchTerms = []string{term}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *JobPipeline) process(ctx context.Context, listings []types.RawListing, scraped int) *ScrapeResult {
	res := &ScrapeResult{TotalScraped: scraped, ProcessedJobIDs: []string{}, Status: StatusSuccess}
	for _, l := range listings {
		if ctx.Err() != nil {
			break
		}
		if !l.Valid() {
			continue
		}
		posting, written, err := p.ProcessListing(ctx, l)
		if err != nil {
			p.log.Error("failed to index job", zap.String("title", l.Title), zap.Error(err))
			res.IndexFailures++
			continue
		}
		res.SuccessfullyProcessed++
		res.ProcessedJobIDs = append(res.ProcessedJobIDs, posting.JobID)
		if written.EmbeddingStored {
			res.EmbeddingSuccess++
		} else {
			res.EmbeddingFailures++
		}
	}
	p.log.Info("scrape processed",
		zap.Int("scraped", res.TotalScraped),
		zap.Int("processed", res.SuccessfullyProcessed),
		zap.Int("embedding_success", res.EmbeddingSuccess),
		zap.Int("embedding_failures", res.EmbeddingFailures),
		zap.Int("index_failures", res.IndexFailures))
	return res
}

// BuildPosting normalizes a raw listing into a posting without an embedding.
func (p *JobPipeline) BuildPosting(l types.RawListing) *types.JobPosting {
	title := strings.TrimSpace(l.Title)
	company := strings.TrimSpace(l.Company)
	if company == "" {
		company = types.DefaultCompany
	}
	location := strings.TrimSpace(l.Location)
	if location == "" {
		location = types.DefaultLocation
	}
	scrapedAt := l.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = p.cfg.Now()
	}
	disc := l.URL
	if disc == "" {
		disc = title
	}

	text := parsing.CleanText(title + " " + l.Description)
	return &types.JobPosting{
		JobID:           parsing.GenerateID(title, company, disc),
		Title:           title,
		Company:         company,
		Description:     strings.TrimSpace(l.Description),
		Location:        location,
		URL:             l.URL,
		SalaryRange:     types.NotSpecified,
		SkillsRequired:  parsing.ExtractJobSkills(text),
		ExperienceLevel: parsing.ExtractExperienceLevel(text),
		ScrapedAt:       scrapedAt.UTC(),
	}
}

// ProcessListing embeds and stores one listing. Embedding problems are recorded on the
// posting's embedding_status; only a failed write is returned as an error.
func (p *JobPipeline) ProcessListing(ctx context.Context, l types.RawListing) (*types.JobPosting, *index.WriteResult, error) {
	posting := p.BuildPosting(l)

	text := parsing.CleanText(posting.Title + " " + posting.Description)
	if len([]rune(text)) < MinJobTextLength {
		posting.EmbeddingStatus = types.EmbeddingSkippedShort
	} else if vec, err := p.embedder.Embed(ctx, text); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		p.log.Warn("job embedding failed", zap.String("job_id", posting.JobID), zap.Error(err))
		posting.EmbeddingStatus = types.EmbeddingFailed(err)
	} else {
		posting.Embedding = vec
		posting.EmbeddingStatus = types.EmbeddingSuccess
	}

	doc, err := posting.ToDocument()
	if err != nil {
		return nil, nil, err
	}
	written, err := p.store.UpsertJob(ctx, posting.JobID, doc)
	if err != nil {
		return nil, nil, err
	}
	if written.EmbeddingStatus != "" {
		posting.EmbeddingStatus = written.EmbeddingStatus
	}
	return posting, written, nil
}
