package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/api/iterator"
)

// GCSSource reads text objects from a Cloud Storage bucket.
type GCSSource struct {
	client *gcs.Client
	bucket string
}

var _ TextSource = (*GCSSource)(nil)

// NewGCSSource creates a source over bucket using application default credentials.
func NewGCSSource(ctx context.Context, bucket string) (*GCSSource, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSSource{client: c, bucket: bucket}, nil
}

// Close implements TextSource.
func (s *GCSSource) Close() error { return s.client.Close() }

// objectName accepts a bare key or a gs://bucket/key URL for this source's bucket.
func (s *GCSSource) objectName(location string) (string, error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket != s.bucket {
			return "", fmt.Errorf("location %s is not in bucket %s", location, s.bucket)
		}
		location = key
	}
	return cleanLocation(location)
}

// ReadText implements TextSource.
func (s *GCSSource) ReadText(ctx context.Context, location string) (string, error) {
	name, err := s.objectName(location)
	if err != nil {
		return "", err
	}

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", fmt.Errorf("gs://%s/%s: %w", s.bucket, name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, MaxTextSize))
	if err != nil {
		return "", fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket, name, err)
	}
	return string(data), nil
}

// List implements TextSource. The listing is narrowed server-side to the pattern's literal
// prefix and filtered locally.
func (s *GCSSource) List(ctx context.Context, pattern string) ([]string, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: literalPrefix(pattern)})
	var matches []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s: %w", s.bucket, err)
		}
		if ok, _ := doublestar.Match(pattern, attrs.Name); ok {
			matches = append(matches, attrs.Name)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// literalPrefix returns the part of pattern before its first glob meta character.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[{\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
