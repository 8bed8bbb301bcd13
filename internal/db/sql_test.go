package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
)

func TestWhere_Leaves(t *testing.T) {
	tests := []struct {
		name     string
		query    index.Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "zero query matches all",
			query:   index.Query{},
			wantSQL: "TRUE",
		},
		{
			name:     "match ORs tokens",
			query:    index.Match("title", "Senior Go-Developer"),
			wantSQL:  "to_tsvector('simple', COALESCE(doc->>$1::text, '')) @@ to_tsquery('simple', $2)",
			wantArgs: []any{"title", "senior | go | developer"},
		},
		{
			name:    "match without tokens matches nothing",
			query:   index.Match("title", "  --  "),
			wantSQL: "FALSE",
		},
		{
			name:     "term encodes the value as json",
			query:    index.Term("experience_level", "senior"),
			wantSQL:  "(doc @> jsonb_build_object($1::text, $2::jsonb) OR doc @> jsonb_build_object($1::text, jsonb_build_array($2::jsonb)))",
			wantArgs: []any{"experience_level", `"senior"`},
		},
		{
			name:    "embedding existence uses the column",
			query:   index.Exists("embedding"),
			wantSQL: "embedding IS NOT NULL",
		},
		{
			name:     "field existence excludes null and empty arrays",
			query:    index.Exists("description"),
			wantSQL:  "(doc ? $1::text AND doc->$1::text NOT IN ('null'::jsonb, '[]'::jsonb))",
			wantArgs: []any{"description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &sqlBuilder{}
			got, err := b.where(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}
}

func TestWhere_Terms(t *testing.T) {
	b := &sqlBuilder{}
	got, err := b.where(index.Query{Kind: index.KindTerms, Field: "skills", Values: []any{"go", 3.0}})
	require.NoError(t, err)
	assert.Contains(t, got, " OR ")
	assert.Equal(t, []any{"skills", `"go"`, "skills", "3"}, b.args)

	_, err = b.where(index.Query{Kind: "fuzzy"})
	assert.Error(t, err)
}

func TestWhere_Bool(t *testing.T) {
	b := &sqlBuilder{}
	got, err := b.where(index.Bool{
		Must:    []index.Query{index.Exists("embedding")},
		MustNot: []index.Query{index.Term("url", "")},
	}.Query())
	require.NoError(t, err)
	assert.Equal(t,
		"(embedding IS NOT NULL AND NOT (doc @> jsonb_build_object($1::text, $2::jsonb) OR doc @> jsonb_build_object($1::text, jsonb_build_array($2::jsonb))))",
		got)

	// Should only filters when nothing else is required.
	b = &sqlBuilder{}
	got, err = b.where(index.Bool{
		Filter: []index.Query{index.Exists("embedding")},
		Should: []index.Query{index.Match("title", "go")},
	}.Query())
	require.NoError(t, err)
	assert.Equal(t, "embedding IS NOT NULL", got)

	b = &sqlBuilder{}
	got, err = b.where(index.Bool{
		Should: []index.Query{index.Exists("embedding"), index.Exists("title")},
	}.Query())
	require.NoError(t, err)
	assert.Contains(t, got, "embedding IS NOT NULL OR ")

	b = &sqlBuilder{}
	got, err = b.where(index.Bool{}.Query())
	require.NoError(t, err)
	assert.Equal(t, "TRUE", got)
}

func TestScore(t *testing.T) {
	b := &sqlBuilder{}
	assert.Equal(t, "1.0", b.score(index.MatchAll()))

	b = &sqlBuilder{}
	got := b.score(index.Bool{
		Must:    []index.Query{index.Match("title", "go")},
		Should:  []index.Query{index.Match("description", "cloud")},
		MustNot: []index.Query{index.Match("title", "intern")},
	}.Query())
	assert.Contains(t, got, " + ")
	assert.Len(t, b.args, 4, "must_not clauses never contribute to the score")
}

func TestOrderBy(t *testing.T) {
	b := &sqlBuilder{}
	assert.Equal(t, "score DESC, id ASC", b.orderBy(nil))

	b = &sqlBuilder{}
	got := b.orderBy([]index.SortField{
		{Field: "scraped_at", Desc: true},
		{Field: index.ScoreField, Desc: true},
		{Field: "title"},
	})
	assert.Equal(t,
		"try_timestamptz(doc->>$1::text) DESC NULLS LAST, score DESC NULLS LAST, doc->$2::text ASC NULLS LAST, id ASC",
		got)
	assert.Equal(t, []any{"scraped_at", "title"}, b.args)
}
