package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/vector"
	"go.uber.org/zap"
)

// Embedder is what the ingestion pipelines and the dispatcher need from the adapter.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Adapter turns text into validated embeddings. It retries each model with exponential
// backoff and falls over to the next model when one is exhausted.
type Adapter struct {
	provider    Provider
	models      []string
	maxAttempts int
	baseBackoff time.Duration
	timeout     time.Duration
	cache       Cache
	cacheTTL    time.Duration
	log         *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	currentModel string
	dimensions   int
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithCache enables the embedding cache.
func WithCache(c Cache) AdapterOption {
	return func(a *Adapter) { a.cache = c }
}

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) AdapterOption {
	return func(a *Adapter) { a.sleep = fn }
}

// NewAdapter creates an adapter over provider using config's retry policy and models.
func NewAdapter(provider Provider, config *Config, opts ...AdapterOption) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.withDefaults()

	a := &Adapter{
		provider:    provider,
		models:      append([]string(nil), cfg.Models...),
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		timeout:     cfg.Timeout,
		cacheTTL:    cfg.CacheTTL,
		log:         zap.NewNop(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PrepareText trims text and enforces the input limits. Text over MaxInputLength characters
// is cut and suffixed with TruncateMarker.
func PrepareText(text string) (string, error) {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) < MinInputLength {
		return "", &InputError{Length: len(runes)}
	}
	if len(runes) > MaxInputLength {
		return string(runes[:MaxInputLength]) + TruncateMarker, nil
	}
	return text, nil
}

// Embed returns a validated embedding for text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	prepared, err := PrepareText(text)
	if err != nil {
		return nil, err
	}
	if len([]rune(prepared)) > MaxInputLength {
		a.log.Warn("text truncated for embedding generation", zap.Int("max_chars", MaxInputLength))
	}

	if v, ok := a.cached(ctx, prepared); ok {
		return v, nil
	}

	var lastErr error
	attempts := 0
	for _, model := range a.models {
		for attempt := 0; attempt < a.maxAttempts; attempt++ {
			attempts++
			v, err := a.call(ctx, model, prepared)
			if err == nil {
				a.record(model, v)
				a.store(ctx, model, prepared, v)
				return v, nil
			}
			lastErr = err
			a.log.Warn("embedding attempt failed",
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Error(err))

			if ctx.Err() != nil {
				return nil, &EmbeddingUnavailableError{Models: a.models, Attempts: attempts, Cause: ctx.Err()}
			}
			if attempt < a.maxAttempts-1 {
				if err := a.sleep(ctx, a.baseBackoff*time.Duration(1<<attempt)); err != nil {
					return nil, &EmbeddingUnavailableError{Models: a.models, Attempts: attempts, Cause: err}
				}
			}
		}
		a.log.Error("all attempts failed for model", zap.String("model", model))
	}

	return nil, &EmbeddingUnavailableError{Models: a.models, Attempts: attempts, Cause: lastErr}
}

func (a *Adapter) call(ctx context.Context, model, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.provider.EmbedText(callCtx, model, text)
	if err != nil {
		return nil, err
	}
	v, err := vector.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("provider returned unusable vector: %w", err)
	}
	return v, nil
}

// record remembers the model that answered and fixes the dimensionality on first success.
func (a *Adapter) record(model string, v []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentModel != model {
		a.log.Info("embedding model in use", zap.String("model", model), zap.Int("dimensions", len(v)))
	}
	a.currentModel = model
	if a.dimensions == 0 {
		a.dimensions = len(v)
		return
	}
	if len(v) != a.dimensions {
		a.log.Warn("embedding dimension mismatch",
			zap.Int("got", len(v)),
			zap.Int("expected", a.dimensions),
			zap.String("model", model))
	}
}

func (a *Adapter) cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

func (a *Adapter) cached(ctx context.Context, text string) ([]float32, bool) {
	if a.cache == nil {
		return nil, false
	}
	for _, model := range a.models {
		v, ok, err := a.cache.Get(ctx, a.cacheKey(model, text))
		if err != nil {
			a.log.Warn("embedding cache read failed", zap.Error(err))
			return nil, false
		}
		if !ok {
			continue
		}
		if valid, err := vector.Validate(v); err == nil {
			a.record(model, valid)
			return valid, true
		}
	}
	return nil, false
}

func (a *Adapter) store(ctx context.Context, model, text string, v []float32) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, a.cacheKey(model, text), v, a.cacheTTL); err != nil {
		a.log.Warn("embedding cache write failed", zap.Error(err))
	}
}

// CurrentModel returns the model that produced the last embedding.
func (a *Adapter) CurrentModel() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentModel
}

// Dimensions returns the dimensionality fixed by the first successful embedding, or 0.
func (a *Adapter) Dimensions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dimensions
}

// ModelInfo describes the adapter state.
type ModelInfo struct {
	CurrentModel        string       `json:"current_model"`
	EmbeddingDimensions int          `json:"embedding_dimensions"`
	AvailableModels     []string     `json:"available_models"`
	Provider            ProviderKind `json:"provider"`
}

// ModelInfo returns information about the current model.
func (a *Adapter) ModelInfo() ModelInfo {
	info := ModelInfo{
		CurrentModel:        a.CurrentModel(),
		EmbeddingDimensions: a.Dimensions(),
		AvailableModels:     append([]string(nil), a.models...),
	}
	if a.provider != nil {
		info.Provider = a.provider.Kind()
	}
	return info
}

// Close releases the provider.
func (a *Adapter) Close() error {
	if a.provider == nil {
		return nil
	}
	return a.provider.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
