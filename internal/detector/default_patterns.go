package detector

// Indicator is one weighted detection clue for a bank.
type Indicator struct {
	Regex  string
	Weight float64
}

// defaultIndicators maps bank keys to their built-in detection indicators.
// Patterns are matched case-insensitively against the whole document text.
var defaultIndicators = map[string][]Indicator{
	"nubank": {
		{Regex: `nubank`, Weight: 1.0},
		{Regex: `nu pagamentos`, Weight: 1.0},
		{Regex: `roxinho`, Weight: 1.0},
		{Regex: `olá.*esta é a sua fatura`, Weight: 1.0},
	},
	"inter": {
		{Regex: `banco inter`, Weight: 1.0},
		{Regex: `\binter\b`, Weight: 1.0},
		{Regex: `banco inter s\.?a\.?`, Weight: 1.0},
	},
	"c6": {
		{Regex: `c6 bank`, Weight: 1.0},
		{Regex: `c6bank`, Weight: 1.0},
		{Regex: `banco c6`, Weight: 1.0},
	},
	"picpay": {
		{Regex: `picpay`, Weight: 1.0},
		{Regex: `pic pay`, Weight: 1.0},
	},
	"itau": {
		{Regex: `ita[uú]\b`, Weight: 1.0},
		{Regex: `ita[uú] unibanco`, Weight: 1.0},
	},
	"bradesco": {
		{Regex: `bradesco`, Weight: 1.0},
	},
	"santander": {
		{Regex: `santander`, Weight: 1.0},
	},
	"bb": {
		{Regex: `banco do brasil`, Weight: 1.0},
		{Regex: `\bbb\b`, Weight: 1.0},
	},
	"caixa": {
		{Regex: `caixa econ[oô]mica`, Weight: 1.0},
		{Regex: `\bcaixa\b`, Weight: 1.0},
	},
}

// documentKeywords drives document-type classification.
var documentKeywords = map[string][]string{
	"boleto":        {"boleto", "código de barras", "linha digitável", "cedente", "sacado"},
	"fatura_cartao": {"fatura", "cartão de crédito", "limite disponível", "pagamento mínimo", "vencimento da fatura"},
	"nota_fiscal":   {"nota fiscal", "nf-e", "danfe", "destinatário", "natureza da operação"},
	"extrato":       {"extrato", "saldo anterior", "saldo atual", "lançamentos"},
}
