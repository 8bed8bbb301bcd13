package llm

import (
	"context"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/vector"
)

var probeTexts = []string{
	"This is a test for the embedding service.",
	"Software engineer with Python experience",
	"Data analyst position at tech company",
}

// ProbeResult is the outcome of one diagnostic embedding.
type ProbeResult struct {
	TestCase            int     `json:"test_case"`
	TextLength          int     `json:"text_length"`
	EmbeddingDimensions int     `json:"embedding_dimensions,omitempty"`
	AllNumeric          bool    `json:"all_numeric,omitempty"`
	MinValue            float32 `json:"min_value,omitempty"`
	MaxValue            float32 `json:"max_value,omitempty"`
	Status              string  `json:"status"`
	Error               string  `json:"error,omitempty"`
}

// Diagnostics summarizes a Diagnose run.
type Diagnostics struct {
	OverallStatus      string        `json:"overall_status"`
	ModelUsed          string        `json:"model_used"`
	ExpectedDimensions int           `json:"expected_dimensions"`
	TestResults        []ProbeResult `json:"test_results"`
}

// Diagnose embeds a few fixed probe texts and reports per-probe results. It never fails;
// failures are reported in the result.
func (a *Adapter) Diagnose(ctx context.Context) Diagnostics {
	results := make([]ProbeResult, 0, len(probeTexts))
	succeeded := 0
	for i, text := range probeTexts {
		r := ProbeResult{TestCase: i + 1, TextLength: len(text)}
		v, err := a.Embed(ctx, text)
		if err != nil {
			r.Status = "failed"
			r.Error = err.Error()
			results = append(results, r)
			continue
		}
		r.Status = "success"
		r.EmbeddingDimensions = len(v)
		r.AllNumeric = vector.IsValid(v)
		r.MinValue, r.MaxValue = v[0], v[0]
		for _, f := range v[1:] {
			r.MinValue = min(r.MinValue, f)
			r.MaxValue = max(r.MaxValue, f)
		}
		succeeded++
		results = append(results, r)
	}

	status := "partial_failure"
	switch succeeded {
	case len(probeTexts):
		status = "success"
	case 0:
		status = "failed"
	}

	return Diagnostics{
		OverallStatus:      status,
		ModelUsed:          a.CurrentModel(),
		ExpectedDimensions: a.Dimensions(),
		TestResults:        results,
	}
}
