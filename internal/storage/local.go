package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// LocalSource reads text files below a root directory.
type LocalSource struct {
	root string
}

var _ TextSource = (*LocalSource)(nil)

// NewLocalSource creates a source rooted at dir.
func NewLocalSource(dir string) (*LocalSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &LocalSource{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *LocalSource) Root() string { return s.root }

// ReadText implements TextSource.
func (s *LocalSource) ReadText(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc, err := cleanLocation(location)
	if err != nil {
		return "", err
	}

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(loc)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", loc, ErrNotFound)
		}
		return "", fmt.Errorf("failed to open %s: %w", loc, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxTextSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", loc, err)
	}
	return string(data), nil
}

// List implements TextSource.
func (s *LocalSource) List(ctx context.Context, pattern string) ([]string, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}

	var matches []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Close implements TextSource.
func (s *LocalSource) Close() error { return nil }
