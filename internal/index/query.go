package index

import (
	"fmt"
	"sort"
	"strings"
)

// QueryKind names a query clause type.
type QueryKind string

// Query kinds
const (
	KindMatchAll QueryKind = "match_all"
	KindMatch    QueryKind = "match"
	KindTerm     QueryKind = "term"
	KindTerms    QueryKind = "terms"
	KindExists   QueryKind = "exists"
	KindBool     QueryKind = "bool"
)

// Query is a parsed search clause. Engines translate it into their native form; engines
// without a query language evaluate it with Query.Evaluate.
type Query struct {
	Kind  QueryKind
	Field string
	// Text is the analyzed input of a match query.
	Text string
	// Values holds the exact value(s) of a term or terms query.
	Values []any

	Must    []Query
	Filter  []Query
	Should  []Query
	MustNot []Query
}

// MatchAll returns a query matching every document.
func MatchAll() Query { return Query{Kind: KindMatchAll} }

// Match returns a full-text query on field.
func Match(field, text string) Query { return Query{Kind: KindMatch, Field: field, Text: text} }

// Term returns an exact-value query on field.
func Term(field string, value any) Query {
	return Query{Kind: KindTerm, Field: field, Values: []any{value}}
}

// Exists returns a query matching documents where field is present and non-null.
func Exists(field string) Query { return Query{Kind: KindExists, Field: field} }

// Bool combines clauses.
type Bool struct {
	Must, Filter, Should, MustNot []Query
}

// Query converts b into a Query.
func (b Bool) Query() Query {
	return Query{Kind: KindBool, Must: b.Must, Filter: b.Filter, Should: b.Should, MustNot: b.MustNot}
}

// ParseQuery parses the JSON query DSL:
//
//	{"match_all": {}}
//	{"match": {"title": "python developer"}}   or {"match": {"title": {"query": "..."}}}
//	{"term": {"experience_level": "senior"}}   or {"term": {"f": {"value": v}}}
//	{"terms": {"skills_required": ["go", "sql"]}}
//	{"exists": {"field": "embedding"}}
//	{"bool": {"must": ..., "filter": ..., "should": ..., "must_not": ...}}
//
// A nil or empty query is match_all. Bool clause lists accept a single object or an array.
func ParseQuery(raw map[string]any) (Query, error) {
	if len(raw) == 0 {
		return MatchAll(), nil
	}
	if len(raw) != 1 {
		return Query{}, &ValidationError{Field: "query", Message: "query must have exactly one clause"}
	}

	for kind, body := range raw {
		switch QueryKind(kind) {
		case KindMatchAll:
			return MatchAll(), nil
		case KindMatch:
			field, value, err := singleField(kind, body)
			if err != nil {
				return Query{}, err
			}
			if m, ok := value.(map[string]any); ok {
				value = m["query"]
			}
			text, ok := value.(string)
			if !ok {
				return Query{}, &ValidationError{Field: "query.match." + field, Message: "match text must be a string"}
			}
			return Match(field, text), nil
		case KindTerm:
			field, value, err := singleField(kind, body)
			if err != nil {
				return Query{}, err
			}
			if m, ok := value.(map[string]any); ok {
				value = m["value"]
			}
			if value == nil {
				return Query{}, &ValidationError{Field: "query.term." + field, Message: "term value is required"}
			}
			return Term(field, value), nil
		case KindTerms:
			field, value, err := singleField(kind, body)
			if err != nil {
				return Query{}, err
			}
			values, ok := value.([]any)
			if !ok || len(values) == 0 {
				return Query{}, &ValidationError{Field: "query.terms." + field, Message: "terms value must be a non-empty array"}
			}
			return Query{Kind: KindTerms, Field: field, Values: values}, nil
		case KindExists:
			m, ok := body.(map[string]any)
			if !ok {
				return Query{}, &ValidationError{Field: "query.exists", Message: "exists must be an object"}
			}
			field, _ := m["field"].(string)
			if field == "" {
				return Query{}, &ValidationError{Field: "query.exists.field", Message: "field is required"}
			}
			return Exists(field), nil
		case KindBool:
			return parseBool(body)
		default:
			return Query{}, &ValidationError{Field: "query", Message: fmt.Sprintf("unsupported query type %q", kind)}
		}
	}
	return MatchAll(), nil
}

func singleField(kind string, body any) (string, any, error) {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, &ValidationError{Field: "query." + kind, Message: "expected an object with exactly one field"}
	}
	for field, value := range m {
		return field, value, nil
	}
	return "", nil, nil
}

func parseBool(body any) (Query, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return Query{}, &ValidationError{Field: "query.bool", Message: "bool must be an object"}
	}

	q := Query{Kind: KindBool}
	for key, raw := range m {
		var target *[]Query
		switch key {
		case "must":
			target = &q.Must
		case "filter":
			target = &q.Filter
		case "should":
			target = &q.Should
		case "must_not":
			target = &q.MustNot
		case "minimum_should_match", "boost":
			continue
		default:
			return Query{}, &ValidationError{Field: "query.bool." + key, Message: "unsupported bool clause"}
		}

		var items []any
		switch v := raw.(type) {
		case []any:
			items = v
		case map[string]any:
			items = []any{v}
		default:
			return Query{}, &ValidationError{Field: "query.bool." + key, Message: "clause must be an object or an array"}
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return Query{}, &ValidationError{Field: "query.bool." + key, Message: "clause must be an object"}
			}
			sub, err := ParseQuery(obj)
			if err != nil {
				return Query{}, err
			}
			*target = append(*target, sub)
		}
	}
	return q, nil
}

// ScoreField is the pseudo-field that sorts by relevance.
const ScoreField = "_score"

// SortField orders hits by one field.
type SortField struct {
	Field string
	Desc  bool
}

// DefaultSort orders by relevance, best first.
func DefaultSort() []SortField {
	return []SortField{{Field: ScoreField, Desc: true}}
}

// ParseSort accepts "field", "field:desc", {"field": "asc"}, {"field": {"order": "desc"}} and
// arrays of those. nil yields DefaultSort.
func ParseSort(raw any) ([]SortField, error) {
	switch v := raw.(type) {
	case nil:
		return DefaultSort(), nil
	case string:
		return []SortField{parseSortString(v)}, nil
	case map[string]any:
		return parseSortObject(v)
	case []any:
		if len(v) == 0 {
			return DefaultSort(), nil
		}
		var out []SortField
		for _, item := range v {
			fields, err := ParseSort(item)
			if err != nil {
				return nil, err
			}
			out = append(out, fields...)
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: "sort", Message: fmt.Sprintf("unsupported sort value of type %T", raw)}
	}
}

func parseSortString(s string) SortField {
	field, order, _ := strings.Cut(s, ":")
	sf := SortField{Field: field, Desc: strings.EqualFold(order, "desc")}
	if field == ScoreField && order == "" {
		sf.Desc = true
	}
	return sf
}

func parseSortObject(m map[string]any) ([]SortField, error) {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]SortField, 0, len(m))
	for _, field := range fields {
		var order string
		switch o := m[field].(type) {
		case string:
			order = o
		case map[string]any:
			order, _ = o["order"].(string)
		default:
			return nil, &ValidationError{Field: "sort." + field, Message: "order must be a string or an object"}
		}
		switch strings.ToLower(order) {
		case "asc":
			out = append(out, SortField{Field: field})
		case "desc":
			out = append(out, SortField{Field: field, Desc: true})
		case "":
			out = append(out, SortField{Field: field, Desc: field == ScoreField})
		default:
			return nil, &ValidationError{Field: "sort." + field, Message: fmt.Sprintf("invalid order %q", order)}
		}
	}
	return out, nil
}

// TermsAggregation buckets documents by the distinct values of Field.
type TermsAggregation struct {
	Name  string
	Field string
	Size  int
}

// DefaultBucketCount is used when a terms aggregation does not set a size.
const DefaultBucketCount = 10

// ParseAggregations parses {"name": {"terms": {"field": "f", "size": n}}}.
func ParseAggregations(raw map[string]any) ([]TermsAggregation, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "aggregations", Message: "at least one aggregation is required"}
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	aggs := make([]TermsAggregation, 0, len(raw))
	for _, name := range names {
		body, ok := raw[name].(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: "aggregations." + name, Message: "aggregation must be an object"}
		}
		terms, ok := body["terms"].(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: "aggregations." + name, Message: "only terms aggregations are supported"}
		}
		field, _ := terms["field"].(string)
		if field == "" {
			return nil, &ValidationError{Field: "aggregations." + name + ".terms.field", Message: "field is required"}
		}
		// Keyword sub-fields are an artifact of other engines; documents store the raw field.
		field = strings.TrimSuffix(field, ".keyword")
		size := DefaultBucketCount
		if n, ok := toFloat(terms["size"]); ok && n > 0 {
			size = int(n)
		}
		aggs = append(aggs, TermsAggregation{Name: name, Field: field, Size: size})
	}
	return aggs, nil
}

// Bucket is one terms aggregation bucket.
type Bucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}
