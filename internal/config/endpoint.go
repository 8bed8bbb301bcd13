package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/compute/metadata"
	"go.uber.org/zap"
)

// EndpointEnvVar is the environment variable consulted by the default resolver.
const EndpointEnvVar = "INDEX_ENDPOINT"

// maxEndpointLength rejects values that are clearly not an endpoint (e.g. a pasted blob).
const maxEndpointLength = 2048

// ErrNoEndpoint is returned by a strategy that has nothing to offer.
var ErrNoEndpoint = errors.New("no endpoint available")

// EndpointStrategy is one step of the endpoint fallback chain.
type EndpointStrategy interface {
	Name() string
	Endpoint(ctx context.Context) (string, error)
}

// EnvStrategy reads the endpoint from an environment variable.
type EnvStrategy struct {
	Var    string
	Lookup func(string) (string, bool)
}

// Name implements EndpointStrategy.
func (s EnvStrategy) Name() string { return "env:" + s.Var }

// Endpoint implements EndpointStrategy.
func (s EnvStrategy) Endpoint(_ context.Context) (string, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(s.Var)
	if !ok {
		return "", ErrNoEndpoint
	}
	return clean(value)
}

// MetadataClient is the subset of the compute metadata API used to look up an instance
// attribute.
type MetadataClient interface {
	OnGCE() bool
	InstanceAttributeValue(attr string) (string, error)
}

type gceMetadata struct{}

func (gceMetadata) OnGCE() bool { return metadata.OnGCE() }

func (gceMetadata) InstanceAttributeValue(attr string) (string, error) {
	return metadata.InstanceAttributeValue(attr)
}

// MetadataStrategy reads the endpoint from a compute instance attribute. Off-cloud it
// reports ErrNoEndpoint without making a request.
type MetadataStrategy struct {
	Attribute string
	Client    MetadataClient
}

// Name implements EndpointStrategy.
func (s MetadataStrategy) Name() string { return "metadata:" + s.Attribute }

// Endpoint implements EndpointStrategy.
func (s MetadataStrategy) Endpoint(_ context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = gceMetadata{}
	}
	if !client.OnGCE() {
		return "", ErrNoEndpoint
	}
	value, err := client.InstanceAttributeValue(s.Attribute)
	if err != nil {
		var notDefined metadata.NotDefinedError
		if errors.As(err, &notDefined) {
			return "", ErrNoEndpoint
		}
		return "", fmt.Errorf("failed to read instance attribute %s: %w", s.Attribute, err)
	}
	return clean(value)
}

// StaticStrategy always returns a fixed endpoint.
type StaticStrategy struct {
	Label string
	Value string
}

// Name implements EndpointStrategy.
func (s StaticStrategy) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "static"
}

// Endpoint implements EndpointStrategy.
func (s StaticStrategy) Endpoint(_ context.Context) (string, error) {
	return clean(s.Value)
}

func clean(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNoEndpoint
	}
	if len(value) > maxEndpointLength {
		return "", fmt.Errorf("endpoint is %d characters long", len(value))
	}
	return value, nil
}

// Resolver walks its strategies in order and returns the first endpoint found.
type Resolver struct {
	Strategies []EndpointStrategy
	Logger     *zap.Logger
}

// NewResolver builds the default chain: an explicitly configured endpoint, then the
// INDEX_ENDPOINT variable, then the instance metadata attribute, then the built-in default.
func NewResolver(cfg IndexConfig, log *zap.Logger) *Resolver {
	strategies := make([]EndpointStrategy, 0, 4)
	if cfg.Endpoint != "" {
		strategies = append(strategies, StaticStrategy{Label: "config", Value: cfg.Endpoint})
	}
	strategies = append(strategies, EnvStrategy{Var: EndpointEnvVar})
	if cfg.MetadataAttribute != "" {
		strategies = append(strategies, MetadataStrategy{Attribute: cfg.MetadataAttribute})
	}
	strategies = append(strategies, StaticStrategy{Label: "default", Value: cfg.DefaultEndpoint})
	return &Resolver{Strategies: strategies, Logger: log}
}

// Resolve returns the first endpoint any strategy yields. Strategy failures are logged and
// skipped; an error is returned only when the chain is exhausted.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var errs []error
	for _, s := range r.Strategies {
		endpoint, err := s.Endpoint(ctx)
		if err == nil {
			log.Info("resolved index endpoint", zap.String("strategy", s.Name()))
			return endpoint, nil
		}
		if !errors.Is(err, ErrNoEndpoint) {
			log.Warn("endpoint strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == 0 {
		return "", ErrNoEndpoint
	}
	return "", fmt.Errorf("failed to resolve endpoint: %w", errors.Join(errs...))
}
