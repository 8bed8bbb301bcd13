package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// sqlBuilder accumulates positional arguments while a query is rendered.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// where renders q as a boolean SQL expression over the documents table.
func (b *sqlBuilder) where(q index.Query) (string, error) {
	switch q.Kind {
	case "", index.KindMatchAll:
		return "TRUE", nil

	case index.KindMatch:
		tsq := tsQuery(q.Text)
		if tsq == "" {
			return "FALSE", nil
		}
		return fmt.Sprintf("to_tsvector('simple', COALESCE(doc->>%s::text, '')) @@ to_tsquery('simple', %s)",
			b.arg(q.Field), b.arg(tsq)), nil

	case index.KindTerm, index.KindTerms:
		if len(q.Values) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, 0, len(q.Values))
		for _, v := range q.Values {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("failed to encode term value for %s: %w", q.Field, err)
			}
			field := b.arg(q.Field)
			value := b.arg(string(raw))
			// Scalar equality or membership in an array field.
			parts = append(parts, fmt.Sprintf(
				"(doc @> jsonb_build_object(%[1]s::text, %[2]s::jsonb) OR doc @> jsonb_build_object(%[1]s::text, jsonb_build_array(%[2]s::jsonb)))",
				field, value))
		}
		return joinClauses(parts, " OR "), nil

	case index.KindExists:
		if q.Field == types.FieldEmbedding {
			return "embedding IS NOT NULL", nil
		}
		field := b.arg(q.Field)
		return fmt.Sprintf("(doc ? %[1]s::text AND doc->%[1]s::text NOT IN ('null'::jsonb, '[]'::jsonb))", field), nil

	case index.KindBool:
		return b.boolWhere(q)
	}
	return "", fmt.Errorf("unsupported query kind %q", q.Kind)
}

func (b *sqlBuilder) boolWhere(q index.Query) (string, error) {
	var required []string
	for _, sub := range append(append([]index.Query{}, q.Must...), q.Filter...) {
		s, err := b.where(sub)
		if err != nil {
			return "", err
		}
		required = append(required, s)
	}

	if len(q.Should) > 0 && len(required) == 0 {
		var alts []string
		for _, sub := range q.Should {
			s, err := b.where(sub)
			if err != nil {
				return "", err
			}
			alts = append(alts, s)
		}
		required = append(required, joinClauses(alts, " OR "))
	}

	for _, sub := range q.MustNot {
		s, err := b.where(sub)
		if err != nil {
			return "", err
		}
		required = append(required, "NOT "+s)
	}

	if len(required) == 0 {
		return "TRUE", nil
	}
	return joinClauses(required, " AND "), nil
}

// score renders a relevance expression: the summed text rank of the positive match clauses,
// or a constant when the query has none.
func (b *sqlBuilder) score(q index.Query) string {
	var ranks []string
	b.collectRanks(q, &ranks)
	if len(ranks) == 0 {
		return "1.0"
	}
	return "(" + strings.Join(ranks, " + ") + ")"
}

func (b *sqlBuilder) collectRanks(q index.Query, ranks *[]string) {
	switch q.Kind {
	case index.KindMatch:
		if tsq := tsQuery(q.Text); tsq != "" {
			*ranks = append(*ranks, fmt.Sprintf(
				"ts_rank(to_tsvector('simple', COALESCE(doc->>%s::text, '')), to_tsquery('simple', %s))",
				b.arg(q.Field), b.arg(tsq)))
		}
	case index.KindBool:
		for _, group := range [][]index.Query{q.Must, q.Should} {
			for _, sub := range group {
				b.collectRanks(sub, ranks)
			}
		}
	}
}

// orderBy renders sort fields. Timestamp fields are compared as instants, others with JSONB
// ordering which compares numbers numerically.
func (b *sqlBuilder) orderBy(fields []index.SortField) string {
	if len(fields) == 0 {
		return "score DESC, id ASC"
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		var expr string
		switch {
		case f.Field == index.ScoreField:
			expr = "score"
		case strings.HasSuffix(f.Field, "_at"):
			expr = fmt.Sprintf("try_timestamptz(doc->>%s::text)", b.arg(f.Field))
		default:
			expr = fmt.Sprintf("doc->%s::text", b.arg(f.Field))
		}
		parts = append(parts, expr+" "+dir+" NULLS LAST")
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", ")
}

// tsQuery turns free text into an OR of its tokens, mirroring match semantics elsewhere.
func tsQuery(text string) string {
	return strings.Join(index.Tokenize(text), " | ")
}

func joinClauses(parts []string, sep string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}
