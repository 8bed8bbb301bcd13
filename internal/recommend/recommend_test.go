package recommend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index/boltstore"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/parsing"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

type fakeStore struct {
	candidate    *types.CandidateProfile
	candidateErr error
	similar      *index.SimilarJobs
	searchErr    error
	gotLimit     int
}

func (f *fakeStore) GetCandidate(_ context.Context, id string) (*types.CandidateProfile, error) {
	if f.candidateErr != nil {
		return nil, f.candidateErr
	}
	if f.candidate == nil {
		return nil, &index.NotFoundError{Kind: index.KindCandidate, ID: id}
	}
	return f.candidate, nil
}

func (f *fakeStore) SearchSimilarJobs(_ context.Context, _ []float32, limit int) (*index.SimilarJobs, error) {
	f.gotLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.similar == nil {
		return &index.SimilarJobs{Mode: index.ModeVector}, nil
	}
	return f.similar, nil
}

func withEmbedding() *types.CandidateProfile {
	return &types.CandidateProfile{
		CandidateID:     "u1",
		Embedding:       []float32{0.1, 0.2},
		Skills:          []string{"Python"},
		ExperienceYears: 4,
		Title:           "Backend Engineer",
	}
}

func TestRecommend_CandidateNotFound(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil)

	_, err := e.Recommend(context.Background(), "unknown-id", 10)
	var nf *index.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, index.KindCandidate, nf.Kind)
	assert.Equal(t, MsgCandidateNotFound, Message(err))
}

func TestRecommend_EmbeddingMissing(t *testing.T) {
	e := NewEngine(&fakeStore{candidate: &types.CandidateProfile{CandidateID: "u1"}}, nil)

	_, err := e.Recommend(context.Background(), "u1", 10)
	var nf *index.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, index.KindEmbedding, nf.Kind)
	assert.Equal(t, MsgEmbeddingMissing, Message(err))
}

func TestRecommend_RequiresCandidateID(t *testing.T) {
	e := NewEngine(&fakeStore{}, nil)
	_, err := e.Recommend(context.Background(), "  ", 10)
	var ve *index.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, Message(err))
}

func TestRecommend_NoMatches(t *testing.T) {
	e := NewEngine(&fakeStore{candidate: withEmbedding()}, nil)

	resp, err := e.Recommend(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalRecommendations)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, MsgNoMatches, resp.Message)
	assert.Equal(t, []string{"Python"}, resp.UserProfile.SkillsExtracted)
}

func TestRecommend_ClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{5, 5},
		{50, 50},
		{500, MaxLimit},
	}
	for _, tt := range tests {
		store := &fakeStore{candidate: withEmbedding()}
		_, err := NewEngine(store, nil).Recommend(context.Background(), "u1", tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, store.gotLimit, "limit %d", tt.in)
	}
}

func TestRecommend_SearchErrorPassesThrough(t *testing.T) {
	upstream := &index.UpstreamUnavailableError{Engine: "postgres", Cause: errors.New("connection refused")}
	e := NewEngine(&fakeStore{candidate: withEmbedding(), searchErr: upstream}, nil)

	_, err := e.Recommend(context.Background(), "u1", 10)
	assert.ErrorIs(t, err, upstream)
}

func TestRecommend_Sentinels(t *testing.T) {
	store := &fakeStore{
		candidate: withEmbedding(),
		similar: &index.SimilarJobs{
			Mode:      index.ModeVector,
			TotalJobs: 7,
			Took:      12 * time.Millisecond,
			Hits: []index.Hit{
				{ID: "doc-1", Score: 0.42, Source: types.Document{}},
				{ID: "doc-2", Score: 0.9, Source: types.Document{
					"job_id":           "job-2",
					"title":            "Go Developer",
					"company":          "Acme",
					"description":      strings.Repeat("Build services ", 60),
					"location":         "Cairo",
					"url":              "https://example.com/jobs/2",
					"skills_required":  []any{"go", "sql"},
					"experience_level": "senior",
					"salary_range":     "10k-20k",
					"scraped_at":       "2024-05-01T00:00:00Z",
				}},
			},
		},
	}

	resp, err := NewEngine(store, nil).Recommend(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 2)
	assert.Empty(t, resp.Message)
	assert.Equal(t, 7, resp.SearchMetadata.TotalJobsInDatabase)
	assert.Equal(t, int64(12), resp.SearchMetadata.SearchTookMS)
	assert.Equal(t, index.ModeVector, resp.SearchMetadata.SearchMode)

	bare := resp.Recommendations[0]
	assert.Equal(t, "doc-1", bare.JobID)
	assert.Equal(t, NoTitle, bare.Title)
	assert.Equal(t, NoCompany, bare.Company)
	assert.Equal(t, NoDescription, bare.Description)
	assert.Equal(t, NoLocation, bare.Location)
	assert.Equal(t, types.NotSpecified, bare.ExperienceLevel)
	assert.Equal(t, types.NotSpecified, bare.SalaryRange)
	assert.Equal(t, []string{}, bare.SkillsRequired)
	assert.Equal(t, 42, bare.MatchPercentage)

	full := resp.Recommendations[1]
	assert.Equal(t, "job-2", full.JobID)
	assert.Equal(t, "https://example.com/jobs/2", full.JobURL)
	assert.True(t, strings.HasSuffix(full.Description, "..."))
	assert.LessOrEqual(t, len([]rune(full.Description)), DescriptionPreview+3)
	assert.Equal(t, []string{"go", "sql"}, full.SkillsRequired)
	assert.Equal(t, 90, full.MatchPercentage)
	assert.Equal(t, "2024-05-01T00:00:00Z", full.ScrapedDate)
}

func TestRecommend_RecentModeHasNoMatchPercentage(t *testing.T) {
	store := &fakeStore{
		candidate: withEmbedding(),
		similar: &index.SimilarJobs{
			Mode: index.ModeRecent,
			Hits: []index.Hit{{ID: "a", Score: 1, Source: types.Document{"title": "Anything"}}},
		},
	}
	resp, err := NewEngine(store, nil).Recommend(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Recommendations[0].MatchPercentage)
	assert.Equal(t, index.ModeRecent, resp.SearchMetadata.SearchMode)
}

func TestMatchPercentage(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{-0.3, 0},
		{0, 0},
		{0.004, 0},
		{0.5, 50},
		{0.876, 88},
		{1, 100},
		{7.5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchPercentage(tt.score), "score %v", tt.score)
	}
}

// topicProvider embeds text into 1024 dimensions with one hot axis per known topic.
type topicProvider struct{}

func (topicProvider) Kind() llm.ProviderKind { return llm.ProviderGemini }

func (topicProvider) EmbedText(_ context.Context, _ string, text string) (any, error) {
	v := make([]float32, 1024)
	for i := range v {
		v[i] = 0.01
	}
	lower := strings.ToLower(text)
	for axis, topic := range []string{"python", "aws", "account"} {
		if strings.Contains(lower, topic) {
			v[axis] += 1
		}
	}
	return v, nil
}

func (topicProvider) Close() error { return nil }

func TestRecommend_EndToEnd(t *testing.T) {
	ctx := context.Background()
	engine, err := boltstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer engine.Close()
	store := index.NewStore(engine, index.Options{})
	adapter := llm.NewAdapter(topicProvider{}, &llm.Config{Models: []string{"test-model"}})

	cvText := "Senior Software Engineer with 6 years experience in Python and AWS"
	vec, err := adapter.Embed(ctx, cvText)
	require.NoError(t, err)
	require.Len(t, vec, 1024)

	profile := &types.CandidateProfile{
		CandidateID:     "u-42",
		SourceText:      cvText,
		Embedding:       vec,
		Skills:          parsing.ExtractSkills(cvText),
		ExperienceYears: parsing.ExtractExperienceYears(cvText),
		Title:           parsing.ExtractTitle(cvText),
	}
	assert.Equal(t, 6, profile.ExperienceYears)
	assert.Subset(t, profile.Skills, []string{"Python", "Aws"})

	doc, err := profile.ToDocument()
	require.NoError(t, err)
	_, err = store.UpsertCandidate(ctx, profile.CandidateID, doc)
	require.NoError(t, err)

	jobs := []types.JobPosting{
		{Title: "Python Developer", Company: "Cloudy", Description: "Build AWS services in Python"},
		{Title: "Accountant", Company: "Ledger", Description: "Accounting and payroll"},
	}
	var pythonJobID string
	for i := range jobs {
		j := &jobs[i]
		j.JobID = parsing.GenerateID(j.Title, j.Company, "")
		j.Embedding, err = adapter.Embed(ctx, parsing.CleanText(j.Title+" "+j.Description))
		require.NoError(t, err)
		j.EmbeddingStatus = types.EmbeddingSuccess
		j.ExperienceLevel = parsing.ExtractExperienceLevel(j.Description)
		j.SkillsRequired = parsing.ExtractJobSkills(j.Description)
		jd, err := j.ToDocument()
		require.NoError(t, err)
		_, err = store.UpsertJob(ctx, j.JobID, jd)
		require.NoError(t, err)
		if i == 0 {
			pythonJobID = j.JobID
		}
	}

	resp, err := NewEngine(store, nil).Recommend(ctx, "u-42", 10)
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalRecommendations)
	assert.Equal(t, index.ModeVector, resp.SearchMetadata.SearchMode)

	top := resp.Recommendations[0]
	assert.Equal(t, pythonJobID, top.JobID)
	assert.GreaterOrEqual(t, top.SimilarityScore, 0.8)
	assert.GreaterOrEqual(t, top.MatchPercentage, 0)
	assert.LessOrEqual(t, top.MatchPercentage, 100)
	assert.Less(t, resp.Recommendations[1].SimilarityScore, 0.8)

	assert.Equal(t, 6, resp.UserProfile.ExperienceYears)
	assert.Equal(t, "Senior Software Engineer with 6 years experience in Python and AWS", resp.UserProfile.JobTitle)
}
