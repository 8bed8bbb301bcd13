package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"google.golang.org/api/option"
)

// Provider is an abstraction over embedding APIs. EmbedText returns the raw vector as
// received so that the adapter can validate it; providers do not validate.
type Provider interface {
	Kind() ProviderKind
	EmbedText(ctx context.Context, model, text string) (any, error)
	Close() error
}

// NewProvider creates a provider based on configuration
func NewProvider(ctx context.Context, config *Config) (Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(config)
	case ProviderGemini, "":
		return NewGeminiProvider(ctx, config.APIKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
}

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Kind implements Provider.
func (p *GeminiProvider) Kind() ProviderKind { return ProviderGemini }

// EmbedText embeds text with the named Gemini embedding model
func (p *GeminiProvider) EmbedText(ctx context.Context, model, text string) (any, error) {
	resp, err := p.client.EmbeddingModel(model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &APICallError{Provider: ProviderGemini, Model: model, Cause: err}
	}
	if resp == nil || resp.Embedding == nil {
		return nil, nil
	}
	return resp.Embedding.Values, nil
}

// Close releases resources held by the client
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// OpenAIProvider implements Provider using the official OpenAI SDK. A custom base URL
// points it at any compatible gateway.
type OpenAIProvider struct {
	client     *openai.Client
	dimensions int
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config *Config) (*OpenAIProvider, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(config.BaseURL))
	}
	// Retries are owned by the adapter.
	opts = append(opts, openaiopt.WithMaxRetries(0))

	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, dimensions: config.Dimensions}, nil
}

// Kind implements Provider.
func (p *OpenAIProvider) Kind() ProviderKind { return ProviderOpenAI }

// EmbedText embeds text with the named OpenAI embedding model
func (p *OpenAIProvider) EmbedText(ctx context.Context, model, text string) (any, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(model),
	}
	if p.dimensions > 0 && acceptsDimensions(model) {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, &APICallError{Provider: ProviderOpenAI, Model: model, Cause: err}
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}

// Close implements Provider.
func (p *OpenAIProvider) Close() error { return nil }

// acceptsDimensions reports whether model takes the dimensions parameter. Only the
// text-embedding-3 family does; ada-002 rejects it.
func acceptsDimensions(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}
