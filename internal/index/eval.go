package index

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/types"
)

// Evaluate reports whether doc matches q and its relevance score. Scores are only
// comparable between documents evaluated against the same query.
func (q Query) Evaluate(doc types.Document) (bool, float64) {
	switch q.Kind {
	case KindMatchAll, "":
		return true, 1
	case KindMatch:
		return matchText(lookup(doc, q.Field), q.Text)
	case KindTerm, KindTerms:
		v := lookup(doc, q.Field)
		for _, want := range q.Values {
			if containsValue(v, want) {
				return true, 1
			}
		}
		return false, 0
	case KindExists:
		return exists(lookup(doc, q.Field)), 1
	case KindBool:
		return q.evaluateBool(doc)
	}
	return false, 0
}

func (q Query) evaluateBool(doc types.Document) (bool, float64) {
	var score float64
	for _, c := range q.Must {
		ok, s := c.Evaluate(doc)
		if !ok {
			return false, 0
		}
		score += s
	}
	for _, c := range q.Filter {
		if ok, _ := c.Evaluate(doc); !ok {
			return false, 0
		}
	}
	for _, c := range q.MustNot {
		if ok, _ := c.Evaluate(doc); ok {
			return false, 0
		}
	}

	matchedShould := 0
	for _, c := range q.Should {
		if ok, s := c.Evaluate(doc); ok {
			matchedShould++
			score += s
		}
	}
	if len(q.Should) > 0 && len(q.Must) == 0 && len(q.Filter) == 0 && matchedShould == 0 {
		return false, 0
	}
	if score == 0 {
		score = 1
	}
	return true, score
}

// lookup resolves a dotted field path.
func lookup(doc types.Document, field string) any {
	if v, ok := doc[field]; ok {
		return v
	}
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if d, isDoc := cur.(types.Document); isDoc {
				m = d
			} else {
				return nil
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func exists(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case []any:
		return len(t) > 0
	case []float32:
		return len(t) > 0
	case []string:
		return len(t) > 0
	}
	return true
}

// Tokenize lowercases text and splits it on anything that is not a letter or a digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchText(v any, text string) (bool, float64) {
	queryTokens := Tokenize(text)
	if len(queryTokens) == 0 {
		return false, 0
	}
	docTokens := make(map[string]struct{})
	for _, s := range stringsOf(v) {
		for _, tok := range Tokenize(s) {
			docTokens[tok] = struct{}{}
		}
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := docTokens[tok]; ok {
			matched++
		}
	}
	if matched == 0 {
		return false, 0
	}
	return true, float64(matched) / float64(len(queryTokens))
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, stringsOf(item)...)
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

func containsValue(v, want any) bool {
	if items, ok := v.([]any); ok {
		for _, item := range items {
			if equalValues(item, want) {
				return true
			}
		}
		return false
	}
	if items, ok := v.([]string); ok {
		for _, item := range items {
			if equalValues(item, want) {
				return true
			}
		}
		return false
	}
	return equalValues(v, want)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// compareValues orders two field values: numbers numerically, RFC3339 timestamps
// chronologically, everything else as strings. Missing values compare as nil.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

// SortHits orders hits in place. Hits missing a sort field always sort last.
func SortHits(hits []Hit, fields []SortField) {
	if len(fields) == 0 {
		fields = DefaultSort()
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, f := range fields {
			var a, b any
			if f.Field == ScoreField {
				a, b = hits[i].Score, hits[j].Score
			} else {
				a, b = lookup(hits[i].Source, f.Field), lookup(hits[j].Source, f.Field)
				if a == nil && b != nil {
					return false
				}
				if b == nil && a != nil {
					return true
				}
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Paginate applies from/size to already sorted hits.
func Paginate(hits []Hit, from, size int) []Hit {
	if from >= len(hits) {
		return []Hit{}
	}
	end := len(hits)
	if size >= 0 && from+size < end {
		end = from + size
	}
	return hits[from:end]
}

// BucketCounter accumulates terms aggregation buckets.
type BucketCounter struct {
	agg    TermsAggregation
	counts map[string]int
}

// NewBucketCounter starts an empty counter for agg.
func NewBucketCounter(agg TermsAggregation) *BucketCounter {
	return &BucketCounter{agg: agg, counts: make(map[string]int)}
}

// Add counts the distinct values of the aggregation field in doc.
func (c *BucketCounter) Add(doc types.Document) {
	seen := make(map[string]struct{})
	for _, key := range bucketKeys(lookup(doc, c.agg.Field)) {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.counts[key]++
	}
}

// Buckets returns the top buckets by document count, ties broken by key.
func (c *BucketCounter) Buckets() []Bucket {
	return TopBuckets(c.counts, c.agg.Size)
}

// TopBuckets sorts counts into at most size buckets.
func TopBuckets(counts map[string]int, size int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, Bucket{Key: k, DocCount: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key < buckets[j].Key
	})
	if size > 0 && len(buckets) > size {
		buckets = buckets[:size]
	}
	return buckets
}

func bucketKeys(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, bucketKeys(item)...)
		}
		return out
	case []string:
		return t
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(t)}
	}
	return []string{fmt.Sprint(v)}
}
