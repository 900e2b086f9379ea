package model

// DetectionSource records which mechanism produced a detection result.
type DetectionSource string

// Detection sources.
const (
	SourceRule      DetectionSource = "rule"
	SourceML        DetectionSource = "ml"
	SourceCache     DetectionSource = "cache"
	SourceCommunity DetectionSource = "community"
)

// DetectionResult is the outcome of bank identification for one document.
// An empty BankKey means no bank cleared the minimum confidence threshold;
// Confidence still carries the best score so callers can inspect near misses.
type DetectionResult struct {
	BankKey     string          `json:"bank_key,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Confidence  float64         `json:"confidence"`
	Source      DetectionSource `json:"source"`
}

// BankIdentity describes a registered financial institution. Immutable once
// registered; community templates add new identities after approval.
type BankIdentity struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	CNPJ        string `json:"cnpj,omitempty"`
}
