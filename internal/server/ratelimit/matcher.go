package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one endpoint.
type EndpointConfig struct {
	// Path is matched exactly, or as a prefix when it ends in "/".
	Path   string
	Method string
	Limit  int
	Window time.Duration
	// Burst defaults to Limit when zero.
	Burst int
}

// DefaultEndpointConfigs returns the endpoint limits. Scrape and ingestion triggers are the
// most expensive; search and recommendations are moderate.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/events", Method: http.MethodPost, Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/cvs", Method: http.MethodPost, Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/test", Method: http.MethodPost, Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/recommendations", Method: http.MethodPost, Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/search", Method: http.MethodPost, Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/aggregations", Method: http.MethodPost, Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// MatchEndpoint returns the configuration for path and method, or nil when the default
// applies. GET /health is never limited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == http.MethodGet {
		return &EndpointConfig{}
	}
	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}
	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}
	return nil
}
