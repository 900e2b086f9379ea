package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintext/fatura/internal/registry"
)

const interStatement = `Banco Inter S.A.
Fatura do cartão de crédito
Vencimento: 15/11/2025
Total da fatura: R$ 842,10

05 NOV Supermercado Pão de Açúcar R$ 310,45
06 NOV Posto Ipiranga R$ 200,00
Restaurante Sabor Mineiro R$ 75,90`

func TestInterParser_CanParse(t *testing.T) {
	p := NewInterParser(registry.New())

	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "full statement",
			text: interStatement,
			want: true,
		},
		{
			name: "cnpj plus name",
			text: "Banco Inter\n00.416.968/0001-01",
			want: true,
		},
		{
			name: "lone mention",
			text: "pix recebido de conta inter",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanParse(tt.text))
		})
	}
}

func TestInterParser_Parse(t *testing.T) {
	p := NewInterParser(registry.New())

	data := p.Parse(interStatement, 2025)

	assert.Equal(t, "Banco Inter S.A.", data.Empresa)
	assert.Equal(t, "00.416.968/0001-01", data.CNPJ)
	assert.Equal(t, "2025-11-15", data.DataVencimento)

	require.NotNil(t, data.ValorTotal)
	assert.InDelta(t, 842.10, *data.ValorTotal, 1e-9)

	require.Len(t, data.Itens, 3)
	assert.Equal(t, "Supermercado Pão de Açúcar", data.Itens[0].Descricao)
	assert.Equal(t, "2025-11-05", data.Itens[0].Data)
	assert.Equal(t, "Posto Ipiranga", data.Itens[1].Descricao)
	assert.Equal(t, "2025-11-06", data.Itens[1].Data)

	// A line without its own date inherits the last seen one.
	assert.Equal(t, "Restaurante Sabor Mineiro", data.Itens[2].Descricao)
	assert.Equal(t, "2025-11-06", data.Itens[2].Data)
}

func TestInterParser_BulletLayout(t *testing.T) {
	p := NewInterParser(registry.New())

	text := `Banco Inter S.A.
Fatura do cartão de crédito
05 NOV • Farmácia Droga Raia • R$ 48,20`

	data := p.Parse(text, 2025)

	require.Len(t, data.Itens, 1)
	assert.Equal(t, "Farmácia Droga Raia", data.Itens[0].Descricao)
	assert.InDelta(t, 48.20, data.Itens[0].Valor, 1e-9)
}
