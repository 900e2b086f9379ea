package parser

import (
	"regexp"
	"strings"

	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

// maxGenericItems caps the line-item scan; beyond this the scanner is almost
// certainly matching noise.
const maxGenericItems = 20

var (
	genericCNPJRe  = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	genericCPFRe   = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	genericValorRe = regexp.MustCompile(`R?\$?\s*\d{1,3}(?:\.\d{3})*(?:,\d{2})`)
	barcodeRe      = regexp.MustCompile(`\b\d{47,48}\b`)
	linhaDigRe     = regexp.MustCompile(`\b\d{5}\.\d{5}\s+\d{5}\.\d{6}\s+\d{5}\.\d{6}\s+\d\s+\d{14}\b`)

	cpfDigitsRe = regexp.MustCompile(`\D`)

	totalValueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:valor )?total[:\s]*R?\$?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2}))`),
		regexp.MustCompile(`(?i)(?:valor )?a pagar[:\s]*R?\$?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2}))`),
		regexp.MustCompile(`(?i)total geral[:\s]*R?\$?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2}))`),
	}

	docNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:n[úu]mero|n[ºo°]|numero)[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)(?:fatura|documento|nota)[:\s]*n[ºo°]?\s*(\d+)`),
		regexp.MustCompile(`(?i)(?:nf-e|nfe)[:\s]*(\d+)`),
	}

	companyMarkers = []string{"ltda", "s.a.", "s/a", "eireli", " me", " epp"}

	// Date fragments standing alone on a line, e.g. "17 OUT" or
	// "17/10/2025". Statement layouts put the date on its own line above the
	// description+amount line; the scanner carries it forward.
	standaloneDateRe = regexp.MustCompile(`(?i)^(\d{1,2}\s+(?:` + monthAbbrAlt + `)|\d{1,2}[/-]\d{1,2}[/-]\d{4})$`)

	itemLineRe = regexp.MustCompile(`^(.+?)\s+R?\$?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2}))\s*$`)
)

// GenericParser is the bank-agnostic fallback: broad regex extraction of
// identifiers, dates, amounts and line items.
type GenericParser struct {
	banks *registry.Registry
}

// NewGenericParser creates the fallback parser.
func NewGenericParser(banks *registry.Registry) *GenericParser {
	return &GenericParser{banks: banks}
}

// Bank returns the empty key; the generic parser is bank-agnostic.
func (p *GenericParser) Bank() string { return "" }

// CanParse always succeeds; the generic parser is the extraction of last
// resort.
func (p *GenericParser) CanParse(_ string) bool { return true }

// Parse extracts whatever broad heuristics can find. Unmatched fields stay
// empty.
func (p *GenericParser) Parse(text string, refYear int) *model.DadosFinanceiros {
	data := model.NewDadosFinanceiros()

	data.Empresa = p.extractCompanyName(text)
	data.CNPJ = ExtractCNPJ(text)
	data.CPF = ExtractCPF(text)

	if refYear <= 0 {
		refYear = dates.InferYear(text)
	}
	if iso, ok := dates.ExtractEmissionDate(text, refYear); ok {
		data.DataEmissao = iso
	}
	if iso, ok := dates.ExtractDueDate(text, refYear); ok {
		data.DataVencimento = iso
	}

	if v, ok := p.extractTotalValue(text); ok {
		data.ValorTotal = &v
	}
	data.NumeroDocumento = extractFirst(docNumberRes, text)
	data.CodigoBarras = barcodeRe.FindString(text)
	data.LinhaDigitavel = linhaDigRe.FindString(text)
	data.Itens = p.extractItems(text, refYear)

	return data
}

// ExtractCNPJ finds and canonicalizes the first CNPJ in the text.
func ExtractCNPJ(text string) string {
	m := genericCNPJRe.FindString(text)
	if m == "" {
		return ""
	}
	digits := cpfDigitsRe.ReplaceAllString(m, "")
	if len(digits) != 14 {
		return ""
	}
	return registry.FormatCNPJ(digits)
}

// ExtractCPF finds and canonicalizes the first CPF in the text.
func ExtractCPF(text string) string {
	for _, m := range genericCPFRe.FindAllString(text, -1) {
		digits := cpfDigitsRe.ReplaceAllString(m, "")
		if len(digits) != 11 {
			continue
		}
		return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
	}
	return ""
}

func (p *GenericParser) extractTotalValue(text string) (float64, bool) {
	for _, re := range totalValueRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseValor(m[1]); ok {
				return v, true
			}
		}
	}

	// No labeled total: take the largest amount on the document.
	best := 0.0
	found := false
	for _, m := range genericValorRe.FindAllString(text, -1) {
		if v, ok := parseValor(m); ok && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

func (p *GenericParser) extractCompanyName(text string) string {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if i >= 10 {
			break
		}
		line = strings.TrimSpace(line)

		nextHasCNPJ := i+1 < len(lines) && genericCNPJRe.MatchString(lines[i+1])
		if genericCNPJRe.MatchString(line) || nextHasCNPJ {
			if i > 0 {
				if prev := strings.TrimSpace(lines[i-1]); len(prev) > 3 {
					return prev
				}
			}
			if len(line) > 3 {
				return line
			}
		}

		lower := strings.ToLower(line)
		for _, marker := range companyMarkers {
			if strings.Contains(lower, marker) {
				return line
			}
		}
	}

	for i, line := range lines {
		if i >= 5 {
			break
		}
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 5 && len(trimmed) < 100 {
			return trimmed
		}
	}
	return ""
}

// extractItems scans description+amount lines. A date fragment on its own
// line applies to every following item line until the next date fragment.
func (p *GenericParser) extractItems(text string, refYear int) []model.ItemFinanceiro {
	var items []model.ItemFinanceiro
	currentDate := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if standaloneDateRe.MatchString(line) {
			if iso, ok := dates.Normalize(line, refYear); ok {
				currentDate = iso
			}
			continue
		}

		m := itemLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		descricao := strings.TrimSpace(m[1])
		valor, ok := parseValor(m[2])
		if !ok || len(descricao) <= 5 || len(descricao) >= 100 {
			continue
		}

		items = append(items, model.ItemFinanceiro{
			Descricao: descricao,
			Valor:     valor,
			Data:      currentDate,
		})
		if len(items) >= maxGenericItems {
			break
		}
	}

	return items
}

func extractFirst(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}
