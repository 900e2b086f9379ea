package parser

import (
	"regexp"

	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

var (
	c6Indicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)c6\s*bank`),
		regexp.MustCompile(`(?i)c6bank`),
		regexp.MustCompile(`(?i)banco c6`),
		regexp.MustCompile(`31\.872\.495/0001-72`),
		regexp.MustCompile(`(?i)fatura.*c6`),
	}

	c6TotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total desta fatura[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)total a pagar[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)(?:valor )?total[:\s]*R?\$?\s*([\d.,]+)`),
	}
)

// C6Parser is the specialized extractor for C6 Bank statements.
type C6Parser struct {
	banks *registry.Registry
}

// NewC6Parser creates the C6 Bank parser.
func NewC6Parser(banks *registry.Registry) *C6Parser {
	return &C6Parser{banks: banks}
}

// Bank returns the bank key this parser handles.
func (p *C6Parser) Bank() string { return "c6" }

// CanParse requires at least two C6 layout indicators.
func (p *C6Parser) CanParse(text string) bool {
	matches := 0
	for _, re := range c6Indicators {
		if re.MatchString(text) {
			matches++
		}
	}
	return matches >= 2
}

// Parse extracts a C6 Bank statement. The transaction table shares the
// date-prefixed layout the Inter parser handles, so the scan is shared.
func (p *C6Parser) Parse(text string, refYear int) *model.DadosFinanceiros {
	data := model.NewDadosFinanceiros()

	data.Empresa = "C6 Bank"
	data.CNPJ = p.banks.CNPJ("c6")

	if refYear <= 0 {
		refYear = dates.InferYear(text)
	}

	if iso, ok := dates.ExtractEmissionDate(text, refYear); ok {
		data.DataEmissao = iso
	}
	if iso, ok := dates.ExtractDueDate(text, refYear); ok {
		data.DataVencimento = iso
	}

	for _, re := range c6TotalRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseValor(m[1]); ok {
				data.ValorTotal = &v
				break
			}
		}
	}

	data.NumeroDocumento = extractFirst(interDocNumberRes, text)

	inter := InterParser{banks: p.banks}
	data.Itens = inter.extractTransactions(text, refYear)
	return data
}
