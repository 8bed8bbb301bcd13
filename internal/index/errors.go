package index

import (
	"errors"
	"fmt"
	"strings"
)

// Engine-level sentinels. Engines wrap these; the Store translates them into the typed
// errors below.
var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrCollectionNotFound = errors.New("collection not found")
)

// ValidationError indicates a caller supplied a document or request missing required data.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Not-found kinds
const (
	KindCandidate = "candidate"
	KindEmbedding = "embedding"
	KindJob       = "job"
)

// NotFoundError indicates a candidate, a job or a candidate's embedding is absent.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// WriteFailedError indicates the engine rejected a document even after the write was
// retried without its embedding.
type WriteFailedError struct {
	Collection string
	ID         string
	Cause      error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("failed to index document %s in %s: %v", e.ID, e.Collection, e.Cause)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Cause
}

// UpstreamUnavailableError indicates the engine could not be reached.
type UpstreamUnavailableError struct {
	Engine string
	Cause  error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("index engine %s unavailable: %v", e.Engine, e.Cause)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Cause
}

// DimensionMismatchError indicates the query vector and the stored vectors come from
// different embedding spaces.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index holds %d-dimensional vectors, query has %d", e.Expected, e.Got)
}

// FieldRejectedError is returned by engines that refuse a specific field of a document.
type FieldRejectedError struct {
	Field  string
	Reason string
}

func (e *FieldRejectedError) Error() string {
	return fmt.Sprintf("field %s rejected: %s", e.Field, e.Reason)
}

// IsEmbeddingRejection reports whether a failed write looks like it was caused by the
// embedding field.
func IsEmbeddingRejection(err error) bool {
	if err == nil {
		return false
	}
	var rejected *FieldRejectedError
	if errors.As(err, &rejected) {
		return rejected.Field == "embedding"
	}
	var mismatch *DimensionMismatchError
	if errors.As(err, &mismatch) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, token := range []string{"embedding", "vector", "null"} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
