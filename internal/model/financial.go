// Package model defines the core domain types shared across the application.
package model

// DocumentType identifies the kind of financial document.
type DocumentType string

// Known document types.
const (
	DocumentBoleto       DocumentType = "boleto"
	DocumentFaturaCartao DocumentType = "fatura_cartao"
	DocumentNotaFiscal   DocumentType = "nota_fiscal"
	DocumentExtrato      DocumentType = "extrato"
	DocumentDesconhecido DocumentType = "desconhecido"
)

// ItemFinanceiro is a single line item (invoice transaction, product, etc.).
type ItemFinanceiro struct {
	Descricao  string   `json:"descricao"`
	Valor      float64  `json:"valor"`
	Quantidade *float64 `json:"quantidade,omitempty"`
	Data       string   `json:"data,omitempty"` // ISO date, empty when unknown
}

// DadosFinanceiros holds the structured data extracted from a document.
// Every field except Itens is optional; an absent field means "not found",
// never an error.
type DadosFinanceiros struct {
	Empresa         string           `json:"empresa,omitempty"`
	CNPJ            string           `json:"cnpj,omitempty"`
	CPF             string           `json:"cpf,omitempty"`
	DataEmissao     string           `json:"data_emissao,omitempty"`
	DataVencimento  string           `json:"data_vencimento,omitempty"`
	ValorTotal      *float64         `json:"valor_total,omitempty"`
	Moeda           string           `json:"moeda"`
	NumeroDocumento string           `json:"numero_documento,omitempty"`
	CodigoBarras    string           `json:"codigo_barras,omitempty"`
	LinhaDigitavel  string           `json:"linha_digitavel,omitempty"`
	Itens           []ItemFinanceiro `json:"itens"`
}

// NewDadosFinanceiros returns an empty record with the default currency set.
func NewDadosFinanceiros() *DadosFinanceiros {
	return &DadosFinanceiros{Moeda: "BRL"}
}
