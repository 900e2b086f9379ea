package parser

import (
	"regexp"
	"strings"

	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

var (
	nubankIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)nubank`),
		regexp.MustCompile(`(?i)nu pagamentos`),
		regexp.MustCompile(`(?i)olá.*esta é a sua fatura`),
		regexp.MustCompile(`(?i)total a pagar R\$`),
		regexp.MustCompile(`(?i)data de vencimento:.*(?:` + monthAbbrAlt + `)`),
	}

	nubankDueRe      = regexp.MustCompile(`(?i)data de vencimento:\s*(\d{1,2})\s+(\w+)\s+(\d{4})`)
	nubankDueAltRe   = regexp.MustCompile(`(?i)vencimento:\s*(\d{1,2}\s+\w+)`)
	nubankEmissionRe = regexp.MustCompile(`(?i)EMISS[AÃ]O E ENVIO\s+(\d{1,2})\s+(\w+)\s+(\d{4})`)
	nubankTotalRe    = regexp.MustCompile(`(?i)total a pagar\s+R\$\s*([\d.,]+)`)
	nubankTotalAltRe = regexp.MustCompile(`(?i)no valor de\s+R\$\s*([\d.,]+)`)
	nubankHolderRe   = regexp.MustCompile(`([A-ZÀÁÂÃÉÊÍÓÔÕÚÇ ]{10,}) FATURA`)

	// Transaction with date, masked card and amount all on one line:
	// "17 OUT •••• 2300 Moreira Vidracaria - Parcela 2/3 R$ 250,00"
	nubankSingleLineRe = regexp.MustCompile(`(?i)^(\d{1,2})\s+(` + monthAbbrAlt + `)\s+[•●*]+\s+\d{4}\s+(.+?)\s+R\$\s*([\d.,]+)$`)
	// Older layout: date alone on one line, transactions on the following
	// lines.
	nubankDateLineRe = regexp.MustCompile(`(?i)^(\d{1,2})\s+(` + monthAbbrAlt + `)$`)
	nubankTxnLineRe  = regexp.MustCompile(`(?i)^\s*[•●*]+\s+\d{4}\s+(.+?)\s+R\$\s*([\d.,]+)$`)

	// Rows that are not purchases: payments, credits, interest, IOF and
	// negative amounts.
	nubankExcludeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)pagamento`),
		regexp.MustCompile(`(?i)crédito`),
		regexp.MustCompile(`(?i)juros`),
		regexp.MustCompile(`(?i)IOF`),
		regexp.MustCompile(`(?i)saldo`),
		regexp.MustCompile(`^-`),
		regexp.MustCompile(`−`),
	}

	nubankHolderExclude = []string{"RESUMO", "TRANSAÇÕES", "PRÓXIMAS", "LIMITES"}
)

// NubankParser is the specialized extractor for Nubank credit card
// statements. The CNPJ never appears on the statement itself; it is enriched
// from the bank registry.
type NubankParser struct {
	banks *registry.Registry
}

// NewNubankParser creates the Nubank parser.
func NewNubankParser(banks *registry.Registry) *NubankParser {
	return &NubankParser{banks: banks}
}

// Bank returns the bank key this parser handles.
func (p *NubankParser) Bank() string { return "nubank" }

// CanParse requires at least two Nubank layout indicators.
func (p *NubankParser) CanParse(text string) bool {
	matches := 0
	for _, re := range nubankIndicators {
		if re.MatchString(text) {
			matches++
		}
	}
	return matches >= 2
}

// Parse extracts a Nubank statement.
func (p *NubankParser) Parse(text string, refYear int) *model.DadosFinanceiros {
	data := model.NewDadosFinanceiros()

	data.Empresa = "Nu Pagamentos S.A."
	data.CNPJ = p.banks.CNPJ("nubank")

	if refYear <= 0 {
		refYear = dates.InferYear(text)
	}

	data.DataVencimento = p.extractDueDate(text, refYear)
	data.DataEmissao = p.extractEmissionDate(text)

	if v, ok := p.extractTotalValue(text); ok {
		data.ValorTotal = &v
	}

	if holder := p.extractHolderName(text); holder != "" {
		data.NumeroDocumento = "Fatura " + holder
	}

	data.Itens = p.extractTransactions(text, refYear)
	return data
}

func (p *NubankParser) extractDueDate(text string, refYear int) string {
	if m := nubankDueRe.FindStringSubmatch(text); m != nil {
		// "24 NOV 2025": normalize the abbreviated part against the explicit year.
		if year, ok := atoiYear(m[3]); ok {
			if iso, ok := dates.Normalize(m[1]+" "+m[2], year); ok {
				return iso
			}
		}
	}
	if m := nubankDueAltRe.FindStringSubmatch(text); m != nil {
		if iso, ok := dates.Normalize(m[1], refYear); ok {
			return iso
		}
	}
	return ""
}

func (p *NubankParser) extractEmissionDate(text string) string {
	if m := nubankEmissionRe.FindStringSubmatch(text); m != nil {
		if year, ok := atoiYear(m[3]); ok {
			if iso, ok := dates.Normalize(m[1]+" "+m[2], year); ok {
				return iso
			}
		}
	}
	return ""
}

func (p *NubankParser) extractTotalValue(text string) (float64, bool) {
	if m := nubankTotalRe.FindStringSubmatch(text); m != nil {
		return parseValor(m[1])
	}
	if m := nubankTotalAltRe.FindStringSubmatch(text); m != nil {
		return parseValor(m[1])
	}
	return 0, false
}

func (p *NubankParser) extractHolderName(text string) string {
	m := nubankHolderRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	for _, word := range nubankHolderExclude {
		if strings.Contains(name, word) {
			return ""
		}
	}
	return titleCase(name)
}

func (p *NubankParser) extractTransactions(text string, refYear int) []model.ItemFinanceiro {
	var items []model.ItemFinanceiro
	currentDate := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if m := nubankSingleLineRe.FindStringSubmatch(line); m != nil {
			if excluded(line, nubankExcludeRes) {
				continue
			}
			valor, ok := parseValor(m[4])
			if !ok || valor <= 0 || len(m[3]) <= 2 {
				continue
			}
			data, _ := dates.Normalize(m[1]+" "+m[2], refYear)
			items = append(items, model.ItemFinanceiro{
				Descricao: strings.TrimSpace(m[3]),
				Valor:     valor,
				Data:      data,
			})
			continue
		}

		if m := nubankDateLineRe.FindStringSubmatch(line); m != nil {
			currentDate, _ = dates.Normalize(m[1]+" "+m[2], refYear)
			continue
		}

		if m := nubankTxnLineRe.FindStringSubmatch(line); m != nil && currentDate != "" {
			if excluded(line, nubankExcludeRes) {
				continue
			}
			valor, ok := parseValor(m[2])
			if !ok || valor <= 0 || len(m[1]) <= 2 {
				continue
			}
			items = append(items, model.ItemFinanceiro{
				Descricao: strings.TrimSpace(m[1]),
				Valor:     valor,
				Data:      currentDate,
			})
		}
	}

	return dedupeItems(items)
}

func excluded(line string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func atoiYear(s string) (int, bool) {
	year := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		year = year*10 + int(r-'0')
	}
	return year, year >= 1900 && year <= 2100
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
