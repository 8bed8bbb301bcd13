package types

import "time"

// NotSpecified is the sentinel used for derived string fields that could not be determined.
const NotSpecified = "Not specified"

// Candidate profile document keys.
const (
	FieldCandidateID = "candidate_id"
	FieldSourceText  = "source_text"
	FieldIngestedAt  = "ingested_at"
)

// CandidateProfile represents an ingested résumé.
type CandidateProfile struct {
	CandidateID     string    `json:"candidate_id"`
	SourceText      string    `json:"source_text,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	Skills          []string  `json:"skills"`
	ExperienceYears int       `json:"experience_years"`
	Title           string    `json:"title"`
	IngestedAt      time.Time `json:"ingested_at"`
	SourceLocation  string    `json:"source_location,omitempty"`
	TextLength      int       `json:"text_length,omitempty"`
	HasEmail        bool      `json:"has_email"`
	HasPhone        bool      `json:"has_phone"`
}

// HasEmbedding reports whether the profile carries a usable vector.
func (c *CandidateProfile) HasEmbedding() bool {
	return c != nil && len(c.Embedding) > 0
}

// ToDocument converts the profile into its stored form.
func (c *CandidateProfile) ToDocument() (Document, error) {
	doc, err := toDocument(c)
	if err != nil {
		return nil, err
	}
	if c.IngestedAt.IsZero() {
		delete(doc, FieldIngestedAt)
	}
	return doc, nil
}

// CandidateFromDocument decodes a stored candidate document.
func CandidateFromDocument(doc Document) (*CandidateProfile, error) {
	var c CandidateProfile
	if err := fromDocument(doc, &c); err != nil {
		return nil, err
	}
	if c.Title == "" {
		c.Title = NotSpecified
	}
	if c.Skills == nil {
		c.Skills = []string{}
	}
	return &c, nil
}
