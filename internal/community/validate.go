// Package community validates, stores and applies bank recognizers
// contributed by third parties. Templates are pure data (regex source
// strings and field mappings) and are never executed as code. A template
// has zero effect on detection or extraction until a reviewer approves it.
package community

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	bankKeyRe    = regexp.MustCompile(`^[a-z0-9_]+$`)
	cnpjFormatRe = regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`)
)

// denylist rejects pattern sources carrying code-like substrings. Patterns
// are never interpolated or executed, but a future templating feature must
// not inherit a poisoned corpus.
var denylist = []string{"exec", "eval", "import", "__", "system", "subprocess"}

// allowedFields is the closed set of extraction targets a template may name.
var allowedFields = map[string]bool{
	"empresa":          true,
	"cnpj":             true,
	"cpf":              true,
	"data_emissao":     true,
	"data_vencimento":  true,
	"valor_total":      true,
	"numero_documento": true,
	"items":            true,
}

// Submission is the raw template payload from a contributor.
type Submission struct {
	BankKey            string            `json:"bank_key"`
	DisplayName        string            `json:"bank_name"`
	CNPJ               string            `json:"cnpj"`
	DetectionPatterns  []string          `json:"detection_patterns"`
	ExtractionPatterns map[string]string `json:"extraction_patterns"`
	Author             string            `json:"author"`
	Description        string            `json:"description,omitempty"`
}

// validate checks a submission against every admission rule in order,
// stopping at the first failure. An empty return means the submission is
// admissible.
func validate(sub Submission) []string {
	if !bankKeyRe.MatchString(sub.BankKey) {
		return []string{"bank_key must contain only lowercase letters, digits and underscore"}
	}

	if sub.DisplayName == "" {
		return []string{"bank_name is required"}
	}

	if !cnpjFormatRe.MatchString(sub.CNPJ) {
		return []string{"cnpj must use the canonical XX.XXX.XXX/XXXX-XX format"}
	}

	if len(sub.DetectionPatterns) == 0 {
		return []string{"at least one detection pattern is required"}
	}

	allPatterns := make([]string, 0, len(sub.DetectionPatterns)+len(sub.ExtractionPatterns))
	allPatterns = append(allPatterns, sub.DetectionPatterns...)
	for _, p := range sub.ExtractionPatterns {
		allPatterns = append(allPatterns, p)
	}

	for _, p := range allPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return []string{fmt.Sprintf("invalid regex pattern %q: %v", p, err)}
		}
	}

	for _, p := range allPatterns {
		lower := strings.ToLower(p)
		for _, banned := range denylist {
			if strings.Contains(lower, banned) {
				return []string{fmt.Sprintf("pattern contains denylisted substring %q", banned)}
			}
		}
	}

	for field := range sub.ExtractionPatterns {
		if !allowedFields[field] {
			return []string{fmt.Sprintf("unknown extraction field %q: not in the known-fields whitelist", field)}
		}
	}

	return nil
}
