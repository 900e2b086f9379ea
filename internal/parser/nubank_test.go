package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintext/fatura/internal/registry"
)

const nubankStatement = `NUBANK
MARIA DA SILVA FATURA
Olá, Maria! Esta é a sua fatura
EMISSÃO E ENVIO 17 OUT 2025
Data de vencimento: 24 NOV 2025
Total a pagar R$ 2.150,75

TRANSAÇÕES
17 OUT •••• 2300 Moreira Vidracaria - Parcela 2/3 R$ 250,00
18 OUT •••• 2300 Mercado Central R$ 89,90
18 OUT •••• 2300 Pagamento recebido R$ 500,00`

func TestNubankParser_CanParse(t *testing.T) {
	p := NewNubankParser(registry.New())

	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "full statement",
			text: nubankStatement,
			want: true,
		},
		{
			name: "single weak indicator",
			text: "transferência recebida do nubank",
			want: false,
		},
		{
			name: "two indicators",
			text: "NUBANK\nTotal a pagar R$ 100,00",
			want: true,
		},
		{
			name: "unrelated document",
			text: "Banco Inter S.A. extrato",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanParse(tt.text))
		})
	}
}

func TestNubankParser_Parse(t *testing.T) {
	p := NewNubankParser(registry.New())

	data := p.Parse(nubankStatement, 2025)

	assert.Equal(t, "Nu Pagamentos S.A.", data.Empresa)
	assert.Equal(t, "18.236.120/0001-58", data.CNPJ)
	assert.Equal(t, "2025-10-17", data.DataEmissao)
	assert.Equal(t, "2025-11-24", data.DataVencimento)

	require.NotNil(t, data.ValorTotal)
	assert.InDelta(t, 2150.75, *data.ValorTotal, 1e-9)

	// The payment row must be excluded; purchases kept with their dates.
	require.Len(t, data.Itens, 2)
	assert.Equal(t, "Moreira Vidracaria - Parcela 2/3", data.Itens[0].Descricao)
	assert.InDelta(t, 250.00, data.Itens[0].Valor, 1e-9)
	assert.Equal(t, "2025-10-17", data.Itens[0].Data)
	assert.Equal(t, "Mercado Central", data.Itens[1].Descricao)
	assert.Equal(t, "2025-10-18", data.Itens[1].Data)
}

func TestNubankParser_DueDateUsesExplicitYear(t *testing.T) {
	p := NewNubankParser(registry.New())

	// The statement year (2025) must not leak into a due date that names
	// its own year.
	data := p.Parse("NUBANK\nOlá! Esta é a sua fatura\nData de vencimento: 05 JAN 2026", 2025)
	assert.Equal(t, "2026-01-05", data.DataVencimento)
}

func TestNubankParser_MultiLineLayout(t *testing.T) {
	p := NewNubankParser(registry.New())

	text := `NUBANK
Total a pagar R$ 400,00
17 OUT
•••• 2300 Livraria Cultura R$ 120,00
•••• 2300 Pagamento em débito R$ 80,00
18 OUT
•••• 2300 Restaurante Bom Prato R$ 64,30`

	data := p.Parse(text, 2025)

	require.Len(t, data.Itens, 2)
	assert.Equal(t, "Livraria Cultura", data.Itens[0].Descricao)
	assert.Equal(t, "2025-10-17", data.Itens[0].Data)
	assert.Equal(t, "Restaurante Bom Prato", data.Itens[1].Descricao)
	assert.Equal(t, "2025-10-18", data.Itens[1].Data)
}

func TestNubankParser_HolderName(t *testing.T) {
	p := NewNubankParser(registry.New())

	data := p.Parse(nubankStatement, 2025)
	assert.Equal(t, "Fatura Maria Da Silva", data.NumeroDocumento)
}

func TestNubankParser_DedupesRepeatedTransactions(t *testing.T) {
	p := NewNubankParser(registry.New())

	text := `NUBANK
Total a pagar R$ 500,00
17 OUT •••• 2300 Mercado Central R$ 89,90
17 OUT •••• 2300 Mercado Central R$ 89,90`

	data := p.Parse(text, 2025)
	assert.Len(t, data.Itens, 1)
}
