package types

import (
	"strings"
	"time"
)

// ExperienceLevel is the seniority bucket derived from a job posting.
type ExperienceLevel string

const (
	ExperienceJunior ExperienceLevel = "junior"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
)

// EmbeddingStatus records why a job posting does or does not carry an embedding.
type EmbeddingStatus string

const (
	EmbeddingSuccess        EmbeddingStatus = "success"
	EmbeddingInvalid        EmbeddingStatus = "failed_invalid_embedding"
	EmbeddingSkippedShort   EmbeddingStatus = "skipped_short_text"
	EmbeddingInvalidRemoved EmbeddingStatus = "invalid_embedding_removed"
	EmbeddingRemovedOnError EmbeddingStatus = "removed_due_to_indexing_error"
	EmbeddingNullRemoved    EmbeddingStatus = "null_field_removed"
)

// EmbeddingFailed builds the status recorded when generation raised an error.
// The message is cut to 50 characters to keep the tag short.
func EmbeddingFailed(err error) EmbeddingStatus {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if r := []rune(msg); len(r) > 50 {
		msg = string(r[:50])
	}
	return EmbeddingStatus("failed_exception: " + msg)
}

// IsFailure reports whether the status describes a missing embedding.
func (s EmbeddingStatus) IsFailure() bool {
	return s != EmbeddingSuccess && s != ""
}

// Job posting document keys.
const (
	FieldJobID       = "job_id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldScrapedAt   = "scraped_at"
)

// Defaults applied by the scraping pipeline.
const (
	DefaultCompany  = "Unknown Company"
	DefaultLocation = "Egypt"
)

// JobPosting represents a scraped listing as stored in the job collection.
type JobPosting struct {
	JobID           string          `json:"job_id"`
	Title           string          `json:"title"`
	Company         string          `json:"company"`
	Description     string          `json:"description"`
	Location        string          `json:"location"`
	URL             string          `json:"url"`
	SalaryRange     string          `json:"salary_range"`
	SkillsRequired  []string        `json:"skills_required"`
	ExperienceLevel ExperienceLevel `json:"experience_level,omitempty"`
	Embedding       []float32       `json:"embedding,omitempty"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status,omitempty"`
	ScrapedAt       time.Time       `json:"scraped_at"`
}

// ToDocument converts the posting into its stored form. A zero ScrapedAt is left out so
// the store can stamp it.
func (j *JobPosting) ToDocument() (Document, error) {
	doc, err := toDocument(j)
	if err != nil {
		return nil, err
	}
	if j.ScrapedAt.IsZero() {
		delete(doc, FieldScrapedAt)
	}
	return doc, nil
}

// JobFromDocument decodes a stored job document.
func JobFromDocument(doc Document) (*JobPosting, error) {
	var j JobPosting
	if err := fromDocument(doc, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// RawListing is a listing tuple as delivered by a listing source, before normalization.
type RawListing struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Location    string    `json:"location"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Valid reports whether the listing has enough data to be indexed.
func (r RawListing) Valid() bool {
	return strings.TrimSpace(r.Title) != ""
}
