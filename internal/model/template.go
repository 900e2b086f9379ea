package model

import "time"

// TemplateStatus is the review state of a community template.
type TemplateStatus string

// Template review states. A template transitions pending -> approved exactly
// once and is never silently auto-approved.
const (
	TemplatePending  TemplateStatus = "pending"
	TemplateApproved TemplateStatus = "approved"
)

// CommunityTemplate is a data-only bank recognizer contributed by a third
// party. Patterns are regex source strings, never executable code, and have
// zero effect on detection or extraction until approved.
type CommunityTemplate struct {
	BankKey            string            `json:"bank_key"`
	DisplayName        string            `json:"display_name"`
	CNPJ               string            `json:"cnpj"`
	DetectionPatterns  []string          `json:"detection_patterns"`
	ExtractionPatterns map[string]string `json:"extraction_patterns"`
	Author             string            `json:"author"`
	Description        string            `json:"description,omitempty"`
	Hash               string            `json:"hash"`
	Status             TemplateStatus    `json:"status"`
	Reviewer           string            `json:"reviewer,omitempty"`
	SubmittedAt        time.Time         `json:"submitted_at"`
	ApprovedAt         *time.Time        `json:"approved_at,omitempty"`
}
