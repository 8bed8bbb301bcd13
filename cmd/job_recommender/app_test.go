package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/config"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
)

func TestEmbeddingConfig(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = "k"
	cfg.Cache.TTL = time.Hour

	ec := embeddingConfig(cfg)
	assert.Equal(t, llm.ProviderOpenAI, ec.Provider)
	assert.Equal(t, "k", ec.APIKey)
	assert.Equal(t, cfg.Embedding.Models, ec.Models)
	assert.Equal(t, time.Hour, ec.CacheTTL)
	assert.Equal(t, 3, ec.MaxAttempts)
}

func TestEmbeddingConfig_ProviderModels(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JOBREC_EMBEDDING_PROVIDER", "openai")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	info := llm.NewAdapter(nil, embeddingConfig(cfg)).ModelInfo()
	assert.Equal(t, []string{"text-embedding-3-small", "text-embedding-ada-002"}, info.AvailableModels)

	t.Setenv("JOBREC_EMBEDDING_PROVIDER", "gemini")
	cfg, err = config.LoadConfig("")
	require.NoError(t, err)
	info = llm.NewAdapter(nil, embeddingConfig(cfg)).ModelInfo()
	assert.Equal(t, []string{"text-embedding-004", "embedding-001"}, info.AvailableModels)
}

func TestReadEvent(t *testing.T) {
	event, err := readEvent(strings.NewReader(`{"task": "health_check"}`))
	require.NoError(t, err)
	assert.Equal(t, "health_check", event["task"])

	event, err = readEvent(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, event)

	event, err = readEvent(strings.NewReader("null"))
	require.NoError(t, err)
	assert.NotNil(t, event)

	_, err = readEvent(strings.NewReader("[1, 2]"))
	assert.Error(t, err)
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResponse(&buf, dispatch.Response{StatusCode: 200, Body: map[string]int{"n": 1}}))
	assert.Contains(t, buf.String(), `"n": 1`)

	buf.Reset()
	err := printResponse(&buf, dispatch.Response{StatusCode: 404, Body: dispatch.ErrorBody{Error: "gone"}})
	assert.ErrorContains(t, err, "404")
	assert.Contains(t, buf.String(), "gone")
}

func TestOpenStore_Bolt(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Index.Endpoint = "bolt://" + filepath.Join(t.TempDir(), "index.db")

	store, err := openStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "cv-index", store.CandidateCollection())
	assert.Equal(t, "job-index", store.JobCollection())
}

func TestNewApp_WithoutEmbeddingKey(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "job-recommender.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(
		"index:\n  endpoint: bolt://"+filepath.Join(dir, "index.db")+"\n"+
			"storage:\n  root: "+dir+"\n"), 0o644))
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JOBREC_EMBEDDING_API_KEY", "")
	t.Setenv("INDEX_ENDPOINT", "")

	prev := configPath
	configPath = cfgFile
	t.Cleanup(func() { configPath = prev })

	a, err := newApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.adapter)
	assert.Nil(t, a.cvs)
	resp := a.svc.Ingest(context.Background(), dispatch.IngestRequest{Location: "structured/x.txt"})
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, 200, a.svc.Status(context.Background()).StatusCode)
}
