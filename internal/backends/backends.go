// Package backends opens the index engine named by an endpoint.
package backends

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/db"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index/blevestore"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index/boltstore"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/logger"
)

// Endpoint schemes
const (
	SchemePostgres   = "postgres"
	SchemePostgreSQL = "postgresql"
	SchemeBolt       = "bolt"
	SchemeBleve      = "bleve"
)

// UnsupportedSchemeError is returned for an endpoint no engine understands.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	if e.Scheme == "" {
		return "endpoint has no scheme (expected postgres://, bolt:// or bleve://)"
	}
	return fmt.Sprintf("unsupported endpoint scheme %q (expected postgres://, bolt:// or bleve://)", e.Scheme)
}

// Split returns the scheme and the remainder of endpoint. "bolt://data/x.db" and
// "bolt:data/x.db" both yield ("bolt", "data/x.db").
func Split(endpoint string) (scheme, rest string) {
	scheme, rest, ok := strings.Cut(endpoint, ":")
	if !ok {
		return "", endpoint
	}
	return strings.ToLower(scheme), strings.TrimPrefix(rest, "//")
}

// Open connects to the engine named by endpoint. Postgres engines are migrated on open.
func Open(ctx context.Context, endpoint string, log *zap.Logger) (index.Engine, error) {
	log = logger.OrNop(log)
	scheme, rest := Split(endpoint)

	switch scheme {
	case SchemePostgres, SchemePostgreSQL:
		pg, err := db.Connect(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		log.Info("opened index engine", zap.String("engine", pg.Name()), zap.String("host", pg.Host()))
		return pg, nil

	case SchemeBolt:
		if rest == "" {
			return nil, fmt.Errorf("bolt endpoint needs a file path")
		}
		s, err := boltstore.Open(rest)
		if err != nil {
			return nil, err
		}
		log.Info("opened index engine", zap.String("engine", s.Name()), zap.String("host", s.Host()))
		return s, nil

	case SchemeBleve:
		if rest == "" {
			return nil, fmt.Errorf("bleve endpoint needs a directory")
		}
		s, err := blevestore.Open(rest)
		if err != nil {
			return nil, err
		}
		log.Info("opened index engine", zap.String("engine", s.Name()), zap.String("host", s.Host()))
		return s, nil
	}
	return nil, &UnsupportedSchemeError{Scheme: scheme}
}
