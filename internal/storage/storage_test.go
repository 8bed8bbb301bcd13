package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestLocalSource_ReadText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "structured/user-1/resume.txt", "Python developer")

	s, err := NewLocalSource(root)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := s.ReadText(ctx, "structured/user-1/resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "Python developer", text)

	_, err = s.ReadText(ctx, "structured/user-2/resume.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// Locations cannot climb out of the root.
	_, err = s.ReadText(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReadText(ctx, "  ")
	assert.Error(t, err)
}

func TestLocalSource_List(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "structured/b/resume.txt", "b")
	writeFile(t, root, "structured/a/resume.txt", "a")
	writeFile(t, root, "structured/a/photo.png", "x")
	writeFile(t, root, "raw/c/resume.txt", "c")

	s, err := NewLocalSource(root)
	require.NoError(t, err)

	got, err := s.List(context.Background(), "structured/**/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"structured/a/resume.txt", "structured/b/resume.txt"}, got)

	_, err = s.List(context.Background(), "structured/[")
	assert.Error(t, err)
}

func TestLocalSource_ListMissingRoot(t *testing.T) {
	s, err := NewLocalSource(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	got, err := s.List(context.Background(), "**/*.txt")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocalSource_ReadTextCapsSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", strings.Repeat("a", MaxTextSize+10))
	s, err := NewLocalSource(root)
	require.NoError(t, err)

	text, err := s.ReadText(context.Background(), "big.txt")
	require.NoError(t, err)
	assert.Len(t, text, MaxTextSize)
}

func TestCleanLocation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"structured/u/r.txt", "structured/u/r.txt"},
		{"/structured/u/r.txt", "structured/u/r.txt"},
		{`structured\u\r.txt`, "structured/u/r.txt"},
		{"structured/../../x.txt", "x.txt"},
	}
	for _, tt := range tests {
		got, err := cleanLocation(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := cleanLocation("/")
	assert.Error(t, err)
}

func TestGCSObjectName(t *testing.T) {
	s := &GCSSource{bucket: "cvs"}

	name, err := s.objectName("gs://cvs/structured/u/r.txt")
	require.NoError(t, err)
	assert.Equal(t, "structured/u/r.txt", name)

	name, err = s.objectName("structured/u/r.txt")
	require.NoError(t, err)
	assert.Equal(t, "structured/u/r.txt", name)

	_, err = s.objectName("gs://other/structured/u/r.txt")
	assert.Error(t, err)
}

func TestLiteralPrefix(t *testing.T) {
	assert.Equal(t, "structured/", literalPrefix("structured/**/*.txt"))
	assert.Equal(t, "", literalPrefix("**/*.txt"))
	assert.Equal(t, "a/b.txt", literalPrefix("a/b.txt"))
}
