package backends

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		endpoint, scheme, rest string
	}{
		{"bolt://data/jobrec.db", "bolt", "data/jobrec.db"},
		{"bolt:data/jobrec.db", "bolt", "data/jobrec.db"},
		{"bolt:///var/lib/jobrec.db", "bolt", "/var/lib/jobrec.db"},
		{"BLEVE://idx", "bleve", "idx"},
		{"postgres://u:p@db:5432/jobs", "postgres", "u:p@db:5432/jobs"},
		{"plain-path", "", "plain-path"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			scheme, rest := Split(tt.endpoint)
			assert.Equal(t, tt.scheme, scheme)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestOpen_Embedded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bolt, err := Open(ctx, "bolt://"+filepath.Join(dir, "jobs.db"), nil)
	require.NoError(t, err)
	defer bolt.Close()
	assert.Equal(t, "bolt", bolt.Name())
	require.NoError(t, bolt.Ping(ctx))

	bleve, err := Open(ctx, "bleve://"+filepath.Join(dir, "bleve"), nil)
	require.NoError(t, err)
	defer bleve.Close()
	assert.Equal(t, "bleve", bleve.Name())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "https://search.example.com", nil)
	var unsupported *UnsupportedSchemeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "https", unsupported.Scheme)

	_, err = Open(ctx, "no-scheme", nil)
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), "no scheme")

	_, err = Open(ctx, "bolt://", nil)
	assert.Error(t, err)
}
