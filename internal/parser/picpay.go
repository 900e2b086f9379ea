package parser

import (
	"regexp"

	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

var (
	picpayIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)picpay`),
		regexp.MustCompile(`(?i)pic pay`),
		regexp.MustCompile(`14\.176\.050/0001-70`),
		regexp.MustCompile(`(?i)fatura.*picpay`),
	}

	picpayTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total a pagar[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)total da fatura[:\s]*R?\$?\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)(?:valor )?total[:\s]*R?\$?\s*([\d.,]+)`),
	}
)

// PicPayParser is the specialized extractor for PicPay statements.
type PicPayParser struct {
	banks *registry.Registry
}

// NewPicPayParser creates the PicPay parser.
func NewPicPayParser(banks *registry.Registry) *PicPayParser {
	return &PicPayParser{banks: banks}
}

// Bank returns the bank key this parser handles.
func (p *PicPayParser) Bank() string { return "picpay" }

// CanParse requires at least two PicPay layout indicators.
func (p *PicPayParser) CanParse(text string) bool {
	matches := 0
	for _, re := range picpayIndicators {
		if re.MatchString(text) {
			matches++
		}
	}
	return matches >= 2
}

// Parse extracts a PicPay statement.
func (p *PicPayParser) Parse(text string, refYear int) *model.DadosFinanceiros {
	data := model.NewDadosFinanceiros()

	data.Empresa = "PicPay"
	data.CNPJ = p.banks.CNPJ("picpay")

	if refYear <= 0 {
		refYear = dates.InferYear(text)
	}

	if iso, ok := dates.ExtractEmissionDate(text, refYear); ok {
		data.DataEmissao = iso
	}
	if iso, ok := dates.ExtractDueDate(text, refYear); ok {
		data.DataVencimento = iso
	}

	for _, re := range picpayTotalRes {
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
