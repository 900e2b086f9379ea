package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintext/fatura/internal/registry"
)

func TestC6Parser_CanParse(t *testing.T) {
	p := NewC6Parser(registry.New())

	assert.True(t, p.CanParse("C6 Bank\nBanco C6 S.A.\nfatura"))
	assert.False(t, p.CanParse("compra no c6 bank"))
	assert.False(t, p.CanParse("extrato nubank"))
}

func TestC6Parser_Parse(t *testing.T) {
	p := NewC6Parser(registry.New())

	text := `C6 Bank
Banco C6 S.A.
Vencimento: 10/12/2025
Total desta fatura: R$ 980,00
03 DEZ Loja de Departamentos R$ 450,00`

	data := p.Parse(text, 2025)

	assert.Equal(t, "C6 Bank", data.Empresa)
	assert.Equal(t, "31.872.495/0001-72", data.CNPJ)
	assert.Equal(t, "2025-12-10", data.DataVencimento)
	require.NotNil(t, data.ValorTotal)
	assert.InDelta(t, 980.00, *data.ValorTotal, 1e-9)
	require.Len(t, data.Itens, 1)
	assert.Equal(t, "Loja de Departamentos", data.Itens[0].Descricao)
	assert.Equal(t, "2025-12-03", data.Itens[0].Data)
}

func TestPicPayParser_CanParse(t *testing.T) {
	p := NewPicPayParser(registry.New())

	assert.True(t, p.CanParse("PicPay\nfatura picpay de novembro"))
	assert.False(t, p.CanParse("pagamento via picpay"))
}

func TestPicPayParser_Parse(t *testing.T) {
	p := NewPicPayParser(registry.New())

	text := `PicPay
Fatura PicPay
Vencimento: 05/11/2025
Total a pagar: R$ 120,50`

	data := p.Parse(text, 2025)

	assert.Equal(t, "PicPay", data.Empresa)
	assert.Equal(t, "14.176.050/0001-70", data.CNPJ)
	assert.Equal(t, "2025-11-05", data.DataVencimento)
	require.NotNil(t, data.ValorTotal)
	assert.InDelta(t, 120.50, *data.ValorTotal, 1e-9)
}
