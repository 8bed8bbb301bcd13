// Package schemas validates index documents against the embedded JSON Schemas.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names
const (
	CandidateProfile = "candidate_profile"
	JobPosting       = "job_posting"
)

//go:embed files/*.schema.json
var files embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "document does not match schema %s:", ve.Schema)
	for _, err := range ve.Errors {
		fmt.Fprintf(&sb, " %s: %s;", err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Fields returns the offending field paths.
func (ve *ValidationError) Fields() []string {
	fields := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func compile() {
	compiled = make(map[string]*gojsonschema.Schema)
	for _, name := range []string{CandidateProfile, JobPosting} {
		data, err := files.ReadFile("files/" + name + ".schema.json")
		if err != nil {
			compileErr = &SchemaLoadError{Name: name, Message: "schema file missing", Cause: err}
			return
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			compileErr = &SchemaLoadError{Name: name, Message: "invalid schema", Cause: err}
			return
		}
		compiled[name] = schema
	}
}

// Raw returns the embedded schema source.
func Raw(name string) ([]byte, error) {
	data, err := files.ReadFile("files/" + name + ".schema.json")
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "unknown schema", Cause: err}
	}
	return data, nil
}

// ValidateDocument validates doc (any JSON-marshalable value) against the named schema.
func ValidateDocument(name string, doc any) error {
	compileOnce.Do(compile)
	if compileErr != nil {
		return compileErr
	}
	schema, ok := compiled[name]
	if !ok {
		return &SchemaLoadError{Name: name, Message: "unknown schema"}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate document against %s: %w", name, err)
	}
	return toValidationError(name, result)
}

func toValidationError(name string, result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
