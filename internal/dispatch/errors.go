package dispatch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/ingestion"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/llm"
)

// ErrNotConfigured is returned by operations whose collaborator was not wired.
var ErrNotConfigured = errors.New("service not configured")

// HTTPStatus returns the status code for an error returned by a core operation.
func HTTPStatus(err error) int {
	var (
		validation  *index.ValidationError
		notFound    *index.NotFoundError
		unavailable *llm.EmbeddingUnavailableError
		input       *llm.InputError
		writeFailed *index.WriteFailedError
		upstream    *index.UpstreamUnavailableError
		mismatch    *index.DimensionMismatchError
		tooShort    *ingestion.TooShortError
		invalid     validator.ValidationErrors
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation), errors.As(err, &input), errors.As(err, &tooShort), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unavailable), errors.As(err, &upstream), errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &writeFailed), errors.As(err, &mismatch):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ValidationMessage renders validator errors as a single message. Other errors are returned
// unchanged.
func ValidationMessage(err error) string {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		fe := invalid[0]
		return fmt.Sprintf("validation error: %s - %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
