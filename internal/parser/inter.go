package parser

import (
	"regexp"
	"strings"

	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

// maxInterItems caps the Inter transaction scan.
const maxInterItems = 50

var (
	interIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)banco inter`),
		regexp.MustCompile(`(?i)\binter\b`),
		regexp.MustCompile(`(?i)inter s\.?a\.?`),
		regexp.MustCompile(`(?i)fatura.*cart[aã]o.*cr[eé]dito`),
		regexp.MustCompile(`00\.416\.968/0001-01`),
	}

	interEmissionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:data de )?emiss[aã]o[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)(?:data de )?emiss[aã]o[:\s]*(\d{1,2}\s+(?:` + monthAbbrAlt + `))`),
		regexp.MustCompile(`(?i)emitid[ao] em[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
	}

	interDueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:data de )?vencimento[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)(?:data de )?vencimento[:\s]*(\d{1,2}\s+(?:` + monthAbbrAlt + `))`),
		regexp.MustCompile(`(?i)vence em[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(?i)pagar at[eé][:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
	}

	interTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:valor )?total[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)total a pagar[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)total da fatura[:\s]*R?\$?\s*([\d.,]+)`),
	}

	interDocNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)fatura[:\s]*n[°º]?\s*(\d+)`),
		regexp.MustCompile(`(?i)n[úu]mero[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)documento[:\s]*n[°º]?\s*(\d+)`),
	}

	interHolderRes = []*regexp.Regexp{
		regexp.MustCompile(`([A-ZÀÂÉÊÍÓÔÕÚ][A-Za-zÀ-ÿ\s]{2,50})\s*(?:FATURA|CPF)`),
		regexp.MustCompile(`(?i)titular[:\s]*([A-ZÀÂÉÊÍÓÔÕÚ][A-Za-zÀ-ÿ\s]{2,50})`),
	}

	interDatePrefixRe = regexp.MustCompile(`(?i)^(\d{1,2})\s+(` + monthAbbrAlt + `)`)
	interValueTailRe  = regexp.MustCompile(`R?\$?\s*([\d.]+,\d{2})\s*$`)

	// Summary and payment rows are not purchases.
	interExcludeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total`),
		regexp.MustCompile(`(?i)pagamento`),
		regexp.MustCompile(`(?i)saldo`),
		regexp.MustCompile(`(?i)limite`),
		regexp.MustCompile(`(?i)juros`),
		regexp.MustCompile(`^-`),
	}
)

// InterParser is the specialized extractor for Banco Inter statements.
type InterParser struct {
	banks *registry.Registry
}

// NewInterParser creates the Banco Inter parser.
func NewInterParser(banks *registry.Registry) *InterParser {
	return &InterParser{banks: banks}
}

// Bank returns the bank key this parser handles.
func (p *InterParser) Bank() string { return "inter" }

// CanParse requires at least two Inter layout indicators.
func (p *InterParser) CanParse(text string) bool {
	matches := 0
	for _, re := range interIndicators {
		if re.MatchString(text) {
			matches++
		}
	}
	return matches >= 2
}

// Parse extracts a Banco Inter statement.
func (p *InterParser) Parse(text string, refYear int) *model.DadosFinanceiros {
	data := model.NewDadosFinanceiros()

	data.Empresa = "Banco Inter S.A."
	data.CNPJ = p.banks.CNPJ("inter")

	if refYear <= 0 {
		refYear = dates.InferYear(text)
	}

	data.DataEmissao = firstNormalized(interEmissionRes, text, refYear)
	if data.DataEmissao == "" {
		if iso, ok := dates.ExtractEmissionDate(text, refYear); ok {
			data.DataEmissao = iso
		}
	}
	data.DataVencimento = firstNormalized(interDueRes, text, refYear)
	if data.DataVencimento == "" {
		if iso, ok := dates.ExtractDueDate(text, refYear); ok {
			data.DataVencimento = iso
		}
	}

	for _, re := range interTotalRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseValor(m[1]); ok {
				data.ValorTotal = &v
				break
			}
		}
	}

	data.NumeroDocumento = extractFirst(interDocNumberRes, text)
	if holder := p.extractHolderName(text); holder != "" {
		data.NumeroDocumento = "Fatura " + holder
	}

	data.Itens = p.extractTransactions(text, refYear)
	return data
}

func (p *InterParser) extractHolderName(text string) string {
	for _, re := range interHolderRes {
		if m := re.FindStringSubmatch(text); m != nil {
			name := strings.TrimSpace(m[1])
			lower := strings.ToLower(name)
			if len(name) > 5 && lower != "fatura" && lower != "extrato" && lower != "cartão" {
				return name
			}
		}
	}
	return ""
}

// extractTransactions handles the Inter layout where an abbreviated date
// prefixes the line and the amount closes it.
func (p *InterParser) extractTransactions(text string, refYear int) []model.ItemFinanceiro {
	var items []model.ItemFinanceiro
	currentDate := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := interDatePrefixRe.FindStringSubmatch(line); m != nil {
			currentDate, _ = dates.Normalize(m[1]+" "+m[2], refYear)
			line = strings.TrimSpace(line[len(m[0]):])
		}

		if excluded(line, interExcludeRes) {
			continue
		}

		m := interValueTailRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		valor, ok := parseValor(m[1])
		if !ok {
			continue
		}

		descricao := strings.TrimSpace(line[:interValueTailRe.FindStringIndex(line)[0]])
		descricao = strings.TrimSpace(strings.ReplaceAll(descricao, "•", ""))
		if len(descricao) <= 3 || len(descricao) >= 200 {
			continue
		}

		items = append(items, model.ItemFinanceiro{
			Descricao: descricao,
			Valor:     valor,
			Data:      currentDate,
		})
	}

	items = dedupeItems(items)
	if len(items) > maxInterItems {
		items = items[:maxInterItems]
	}
	return items
}

func firstNormalized(res []*regexp.Regexp, text string, refYear int) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			if iso, ok := dates.Normalize(m[1], refYear); ok {
				return iso
			}
		}
	}
	return ""
}
