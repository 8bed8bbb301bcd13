// Package types provides the records shared by the normalizer, the index store and the
// recommendation engine.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Document is a schemaless record as stored in an index collection.
type Document map[string]any

// Field names shared by both collections.
const (
	FieldEmbedding       = "embedding"
	FieldEmbeddingStatus = "embedding_status"
)

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Without returns a copy of the document with the given keys removed.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// String returns the string value stored under key, or "" when absent or not a string.
func (d Document) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Has reports whether key is present with a non-nil value.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// toDocument converts a tagged struct into a Document through its JSON form so that
// omitempty fields never show up as null keys.
func toDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// fromDocument decodes a Document into a tagged struct. Engines hand back numbers as
// float64 and timestamps as strings, so decoding is weakly typed.
func fromDocument(doc Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create document decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// timeHook accepts epoch milliseconds for time fields.
func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return data, nil
}
