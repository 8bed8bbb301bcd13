// Package vector validates raw embedding payloads and scores vectors against each other.
package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// InvalidError describes why a raw value is not a usable embedding.
type InvalidError struct {
	Reason string
	Index  int
}

func (e *InvalidError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid embedding: %s at index %d", e.Reason, e.Index)
	}
	return fmt.Sprintf("invalid embedding: %s", e.Reason)
}

func invalid(reason string) error {
	return &InvalidError{Reason: reason, Index: -1}
}

// Validate converts a raw embedding into a []float32. The value must be a non-empty sequence
// whose entries are all finite numbers; nil entries, strings and other types are rejected.
func Validate(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case nil:
		return nil, invalid("embedding is nil")
	case []float32:
		return checkFloat32(v)
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		if len(v) == 0 {
			return nil, invalid("embedding is empty")
		}
		for i, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
				return nil, &InvalidError{Reason: "non-finite value", Index: i}
			}
		}
		return out, nil
	case []any:
		return fromAny(v)
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalid(fmt.Sprintf("embedding is not a list (%T)", raw))
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return fromAny(items)
}

func checkFloat32(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, invalid("embedding is empty")
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, &InvalidError{Reason: "non-finite value", Index: i}
		}
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

func fromAny(items []any) ([]float32, error) {
	if len(items) == 0 {
		return nil, invalid("embedding is empty")
	}
	out := make([]float32, len(items))
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, &InvalidError{Reason: err.Error(), Index: i}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil, &InvalidError{Reason: "non-finite value", Index: i}
		}
		out[i] = float32(f)
	}
	return out, nil
}

func toFloat(item any) (float64, error) {
	switch n := item.(type) {
	case nil:
		return 0, fmt.Errorf("null value")
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case bool:
		return 0, fmt.Errorf("boolean value")
	default:
		return 0, fmt.Errorf("non-numeric value of type %T", item)
	}
}

// IsValid reports whether raw would pass Validate.
func IsValid(raw any) bool {
	_, err := Validate(raw)
	return err == nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different length or zero
// magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
