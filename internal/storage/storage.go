// Package storage reads extracted résumé text from object storage or the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MaxTextSize caps how much of one object is read.
const MaxTextSize = 10 << 20

// ErrNotFound is returned when a location does not exist.
var ErrNotFound = errors.New("text not found")

// TextSource supplies raw candidate text keyed by a hierarchical location such as
// structured/<id>/resume.txt.
type TextSource interface {
	ReadText(ctx context.Context, location string) (string, error)
	// List returns the locations matching a doublestar pattern, sorted.
	List(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// cleanLocation normalizes a location to a slash-separated relative key and rejects keys that
// would escape the source root.
func cleanLocation(location string) (string, error) {
	loc := strings.TrimSpace(strings.ReplaceAll(location, "\\", "/"))
	loc = strings.TrimLeft(path.Clean("/"+loc), "/")
	if loc == "" || loc == "." {
		return "", fmt.Errorf("invalid location %q", location)
	}
	return loc, nil
}

// validatePattern checks a doublestar pattern once so that per-key matching can ignore errors.
func validatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid pattern %q", pattern)
	}
	return nil
}
