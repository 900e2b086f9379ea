package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() Submission {
	return Submission{
		BankKey:           "banco_xyz",
		DisplayName:       "Banco XYZ S.A.",
		CNPJ:              "12.345.678/0001-90",
		DetectionPatterns: []string{`banco xyz`, `xyz pagamentos`},
		ExtractionPatterns: map[string]string{
			"valor_total": `total[:\s]+r\$\s*([\d.,]+)`,
		},
		Author: "contribuidor",
	}
}

func TestValidate_Accepts(t *testing.T) {
	assert.Empty(t, validate(validSubmission()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Submission)
		wantReason string
	}{
		{
			name:       "uppercase bank key",
			mutate:     func(s *Submission) { s.BankKey = "BancoXYZ" },
			wantReason: "bank_key must contain only lowercase letters, digits and underscore",
		},
		{
			name:       "empty bank key",
			mutate:     func(s *Submission) { s.BankKey = "" },
			wantReason: "bank_key must contain only lowercase letters, digits and underscore",
		},
		{
			name:       "bank key with spaces",
			mutate:     func(s *Submission) { s.BankKey = "banco xyz" },
			wantReason: "bank_key must contain only lowercase letters, digits and underscore",
		},
		{
			name:       "missing display name",
			mutate:     func(s *Submission) { s.DisplayName = "" },
			wantReason: "bank_name is required",
		},
		{
			name:       "unformatted cnpj",
			mutate:     func(s *Submission) { s.CNPJ = "12345678000190" },
			wantReason: "cnpj must use the canonical XX.XXX.XXX/XXXX-XX format",
		},
		{
			name:       "no detection patterns",
			mutate:     func(s *Submission) { s.DetectionPatterns = nil },
			wantReason: "at least one detection pattern is required",
		},
		{
			name:   "broken detection regex",
			mutate: func(s *Submission) { s.DetectionPatterns = []string{`([unclosed`} },
		},
		{
			name:   "broken extraction regex",
			mutate: func(s *Submission) { s.ExtractionPatterns["cnpj"] = `(*bad)` },
		},
		{
			name:       "denylisted detection pattern",
			mutate:     func(s *Submission) { s.DetectionPatterns = []string{`eval\(`} },
			wantReason: `pattern contains denylisted substring "eval"`,
		},
		{
			name:       "denylisted extraction pattern",
			mutate:     func(s *Submission) { s.ExtractionPatterns["empresa"] = `__import__` },
			wantReason: `pattern contains denylisted substring "import"`,
		},
		{
			name:       "denylist is case insensitive",
			mutate:     func(s *Submission) { s.DetectionPatterns = []string{`SUBPROCESS`} },
			wantReason: `pattern contains denylisted substring "subprocess"`,
		},
		{
			name:       "unknown extraction field",
			mutate:     func(s *Submission) { s.ExtractionPatterns = map[string]string{"senha": `(\d+)`} },
			wantReason: `unknown extraction field "senha": not in the known-fields whitelist`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.mutate(&sub)

			reasons := validate(sub)
			require.NotEmpty(t, reasons)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reasons[0])
			}
		})
	}
}

func TestValidate_ItemsFieldAllowed(t *testing.T) {
	sub := validSubmission()
	sub.ExtractionPatterns["items"] = `^(.+?)\s+r\$\s*([\d.,]+)$`
	assert.Empty(t, validate(sub))
}
