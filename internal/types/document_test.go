package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateProfile_ToDocumentOmitsMissingEmbedding(t *testing.T) {
	c := &CandidateProfile{
		CandidateID: "user-42",
		SourceText:  "Senior Software Engineer",
		Skills:      []string{"Python"},
		Title:       "Senior Software Engineer",
	}

	doc, err := c.ToDocument()
	require.NoError(t, err)

	assert.Equal(t, "user-42", doc[FieldCandidateID])
	_, hasEmbedding := doc[FieldEmbedding]
	assert.False(t, hasEmbedding, "absent embedding must not be stored as null")
	_, hasIngested := doc[FieldIngestedAt]
	assert.False(t, hasIngested)
}

func TestCandidateFromDocument_DecodesEngineValues(t *testing.T) {
	// Documents read back from an engine carry JSON-decoded values.
	raw := `{
		"candidate_id": "user-1",
		"embedding": [0.5, 0.25, 1],
		"skills": ["Go", "Aws"],
		"experience_years": 6,
		"ingested_at": "2025-03-01T10:00:00Z"
	}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	c, err := CandidateFromDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, "user-1", c.CandidateID)
	assert.Equal(t, []float32{0.5, 0.25, 1}, c.Embedding)
	assert.Equal(t, 6, c.ExperienceYears)
	assert.Equal(t, NotSpecified, c.Title)
	assert.True(t, c.HasEmbedding())
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), c.IngestedAt.UTC())
}

func TestJobFromDocument_EpochMillis(t *testing.T) {
	doc := Document{
		"job_id":     "abc",
		"title":      "Backend Developer",
		"scraped_at": float64(1700000000000),
	}

	j, err := JobFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), j.ScrapedAt.UnixMilli())
	assert.Nil(t, j.Embedding)
}

func TestDocument_Helpers(t *testing.T) {
	doc := Document{"a": "x", "b": nil, "embedding": []float32{1}}

	assert.True(t, doc.Has("a"))
	assert.False(t, doc.Has("b"))
	assert.Equal(t, "x", doc.String("a"))
	assert.Equal(t, "", doc.String("embedding"))

	stripped := doc.Without(FieldEmbedding)
	assert.NotContains(t, stripped, FieldEmbedding)
	assert.Contains(t, doc, FieldEmbedding, "original must not be mutated")
}

func TestEmbeddingFailed_TruncatesMessage(t *testing.T) {
	status := EmbeddingFailed(errors.New(strings.Repeat("x", 80)))
	assert.Equal(t, "failed_exception: "+strings.Repeat("x", 50), string(status))
	assert.True(t, status.IsFailure())
	assert.False(t, EmbeddingSuccess.IsFailure())
}
