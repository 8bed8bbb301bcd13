package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/backends"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/config"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/fetch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/ingestion"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/recommend"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/storage"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *index.Store
	adapter *llm.Adapter
	cvs     *ingestion.CVPipeline
	jobs    *ingestion.JobPipeline
	svc     *dispatch.Service
	closers []func() error
}

// loadConfig reads and validates configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.New(), configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// openStore resolves the index endpoint and opens the store over it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*index.Store, error) {
	endpoint, err := config.NewResolver(cfg.Index, log).Resolve(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := backends.Open(ctx, endpoint, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	store := index.NewStore(engine, index.Options{
		Endpoint:            endpoint,
		CandidateCollection: cfg.Index.CandidateCollection,
		JobCollection:       cfg.Index.JobCollection,
		Logger:              log,
	})
	return store, nil
}

// embeddingConfig maps the embedding and cache sections onto the adapter configuration.
func embeddingConfig(cfg *config.Config) *llm.Config {
	return &llm.Config{
		Provider:    llm.ProviderKind(cfg.Embedding.Provider),
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Models:      cfg.Embedding.Models,
		Dimensions:  cfg.Embedding.Dimensions,
		MaxAttempts: cfg.Embedding.MaxAttempts,
		BaseBackoff: cfg.Embedding.BaseBackoff,
		Timeout:     cfg.Embedding.Timeout,
		CacheTTL:    cfg.Cache.TTL,
	}
}

// newApp wires every collaborator. Missing embedding credentials or an unreachable text
// source leave the dependent operations unconfigured rather than failing startup.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.adapter = a.openAdapter(ctx)
	source := a.openSource(ctx)
	listings, err := a.openListings()
	if err != nil {
		a.Close()
		return nil, err
	}

	services := dispatch.Services{
		Store:       store,
		Recommender: recommend.NewEngine(store, log),
		Logger:      log,
	}
	if a.adapter != nil {
		services.Embeddings = a.adapter
		if source != nil {
			a.cvs = ingestion.NewCVPipeline(source, a.adapter, store, ingestion.CVConfig{
				Namespace:   cfg.Storage.Namespace,
				PendingGlob: cfg.Storage.PendingGlob,
				Concurrency: cfg.Storage.Concurrency,
				Logger:      log,
			})
			services.CVs = a.cvs
		}
		a.jobs = ingestion.NewJobPipeline(listings, a.adapter, store, ingestion.JobConfig{
			SearchTerms:  cfg.Scraper.SearchTerms,
			TermDelay:    cfg.Scraper.TermDelay,
			ScheduledMax: cfg.Scraper.ScheduledMax,
			Logger:       log,
		})
		services.Jobs = a.jobs
	}
	a.svc = dispatch.NewService(services)
	return a, nil
}

func (a *app) openAdapter(ctx context.Context) *llm.Adapter {
	ecfg := embeddingConfig(a.cfg)
	provider, err := llm.NewProvider(ctx, ecfg)
	if err != nil {
		a.log.Warn("embedding provider unavailable, ingestion disabled", zap.Error(err))
		return nil
	}
	opts := []llm.AdapterOption{llm.WithLogger(a.log)}
	if url := a.cfg.Cache.RedisURL; url != "" {
		rdb, err := llm.NewRedisClient(ctx, url)
		if err != nil {
			a.log.Warn("embedding cache unavailable", zap.Error(err))
		} else {
			cache := llm.NewRedisCache(rdb)
			opts = append(opts, llm.WithCache(cache))
			a.closers = append(a.closers, cache.Close)
		}
	}
	adapter := llm.NewAdapter(provider, ecfg, opts...)
	a.closers = append(a.closers, adapter.Close)
	return adapter
}

func (a *app) openSource(ctx context.Context) storage.TextSource {
	switch a.cfg.Storage.Backend {
	case "gcs":
		src, err := storage.NewGCSSource(ctx, a.cfg.Storage.Bucket)
		if err != nil {
			a.log.Warn("text source unavailable, CV ingestion disabled", zap.Error(err))
			return nil
		}
		a.closers = append(a.closers, src.Close)
		return src
	default:
		src, err := storage.NewLocalSource(a.cfg.Storage.Root)
		if err != nil {
			a.log.Warn("text source unavailable, CV ingestion disabled", zap.Error(err))
			return nil
		}
		return src
	}
}

func (a *app) openListings() (*fetch.WuzzufSource, error) {
	opts := fetch.DefaultOptions()
	if a.cfg.Scraper.Timeout > 0 {
		opts.Timeout = a.cfg.Scraper.Timeout
	}
	if a.cfg.Scraper.UserAgent != "" {
		opts.UserAgent = a.cfg.Scraper.UserAgent
	}
	wcfg := fetch.WuzzufConfig{
		BaseURL:   a.cfg.Scraper.BaseURL,
		Location:  a.cfg.Scraper.Location,
		MaxPages:  a.cfg.Scraper.MaxPages,
		PageDelay: a.cfg.Scraper.PageDelay,
		Options:   opts,
		Logger:    a.log,
	}
	if a.cfg.Scraper.UseBrowser {
		wcfg.Render = fetch.BrowserRenderer(opts.Timeout, a.log)
	}
	return fetch.NewWuzzufSource(wcfg)
}

// Close releases everything opened by newApp, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse writes a dispatch response body and turns error statuses into an error.
func printResponse(w io.Writer, resp dispatch.Response) error {
	if err := printJSON(w, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
