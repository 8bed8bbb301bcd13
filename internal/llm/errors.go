package llm

import (
	"errors"
	"fmt"
	"strings"
)

// InputError indicates the text cannot be embedded at all. It is never retried.
type InputError struct {
	Length int
}

func (e *InputError) Error() string {
	return fmt.Sprintf("text too short for embedding generation: %d characters (minimum %d)", e.Length, MinInputLength)
}

// EmbeddingUnavailableError indicates every model exhausted its attempts.
type EmbeddingUnavailableError struct {
	Models   []string
	Attempts int
	Cause    error
}

func (e *EmbeddingUnavailableError) Error() string {
	msg := fmt.Sprintf("embedding unavailable after %d attempts across models [%s]", e.Attempts, strings.Join(e.Models, ", "))
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err is or wraps an EmbeddingUnavailableError.
func IsUnavailable(err error) bool {
	var unavailable *EmbeddingUnavailableError
	return errors.As(err, &unavailable)
}

// APICallError represents a failed call to the provider
type APICallError struct {
	Provider ProviderKind
	Model    string
	Cause    error
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("%s embedding call failed for model %s: %v", e.Provider, e.Model, e.Cause)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}
