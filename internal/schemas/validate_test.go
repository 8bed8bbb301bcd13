package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemas_AreValidJSON(t *testing.T) {
	for _, name := range []string{CandidateProfile, JobPosting} {
		t.Run(name, func(t *testing.T) {
			data, err := Raw(name)
			require.NoError(t, err)
			var v map[string]any
			require.NoError(t, json.Unmarshal(data, &v))
			assert.Equal(t, name, v["$id"])
		})
	}

	_, err := Raw("nope")
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateDocument_Candidate(t *testing.T) {
	tests := []struct {
		name      string
		doc       map[string]any
		wantError bool
	}{
		{
			name: "minimal",
			doc:  map[string]any{"candidate_id": "u1", "source_text": "some text"},
		},
		{
			name: "full",
			doc: map[string]any{
				"candidate_id":     "u1",
				"source_text":      "some text",
				"embedding":        []float32{0.1, 0.2},
				"skills":           []string{"Python"},
				"experience_years": 6,
				"title":            "Senior Software Engineer",
				"ingested_at":      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339),
			},
		},
		{
			name:      "missing source_text",
			doc:       map[string]any{"candidate_id": "u1"},
			wantError: true,
		},
		{
			name:      "empty embedding",
			doc:       map[string]any{"candidate_id": "u1", "source_text": "x", "embedding": []float32{}},
			wantError: true,
		},
		{
			name:      "non-numeric embedding",
			doc:       map[string]any{"candidate_id": "u1", "source_text": "x", "embedding": []any{"a"}},
			wantError: true,
		},
		{
			name:      "negative experience",
			doc:       map[string]any{"candidate_id": "u1", "source_text": "x", "experience_years": -1},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(CandidateProfile, tt.doc)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Fields())
			assert.Contains(t, verr.Error(), CandidateProfile)
		})
	}
}

func TestValidateDocument_Job(t *testing.T) {
	ok := map[string]any{
		"job_id":           "abc",
		"title":            "Data Analyst",
		"experience_level": "mid",
		"skills_required":  []string{"sql"},
	}
	assert.NoError(t, ValidateDocument(JobPosting, ok))

	bad := map[string]any{"job_id": "abc", "title": "x", "experience_level": "principal"}
	err := ValidateDocument(JobPosting, bad)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "experience_level")

	nullEmbedding := map[string]any{"job_id": "abc", "title": "x", "embedding": []any{0.1, nil}}
	err = ValidateDocument(JobPosting, nullEmbedding)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "embedding.1")
}

func TestValidateDocument_UnknownSchema(t *testing.T) {
	err := ValidateDocument("resume", map[string]any{})
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}
