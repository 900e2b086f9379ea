package assist

import (
	"regexp"
	"strings"
)

// NumFeatures is the fixed length of the feature vector. Positions are
// stable: trained weight vectors index into the same layout.
const NumFeatures = 17

// Feature vector positions.
const (
	featDocLength = iota
	featNumLines
	featHasNubank
	featHasInter
	featHasC6
	featHasPicpay
	featHasItau
	featHasBradesco
	featHasFatura
	featHasCartao
	featHasTotalPagar
	featCurrencyCount
	featValueCount
	featDateCount
	featHasCNPJ
	featRoxinhoGreeting
	featInterLayout
)

var (
	currencyRe = regexp.MustCompile(`R\$`)
	valueRe    = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
	dateRe     = regexp.MustCompile(`\d{2}[/-]\d{2}[/-]\d{4}`)
	cnpjRe     = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)
)

func boolFeat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ExtractFeatures maps document text to the fixed-length numeric vector the
// per-bank weight vectors are trained against: keyword hits, structural
// markers and layout tokens.
func ExtractFeatures(text string) [NumFeatures]float64 {
	lower := strings.ToLower(text)

	var f [NumFeatures]float64
	f[featDocLength] = float64(len(text))
	f[featNumLines] = float64(strings.Count(text, "\n") + 1)
	f[featHasNubank] = boolFeat(strings.Contains(lower, "nubank"))
	f[featHasInter] = boolFeat(strings.Contains(lower, "inter"))
	f[featHasC6] = boolFeat(strings.Contains(lower, "c6"))
	f[featHasPicpay] = boolFeat(strings.Contains(lower, "picpay"))
	f[featHasItau] = boolFeat(strings.Contains(lower, "itaú") || strings.Contains(lower, "itau"))
	f[featHasBradesco] = boolFeat(strings.Contains(lower, "bradesco"))
	f[featHasFatura] = boolFeat(strings.Contains(lower, "fatura"))
	f[featHasCartao] = boolFeat(strings.Contains(lower, "cartão") || strings.Contains(lower, "cartao"))
	f[featHasTotalPagar] = boolFeat(strings.Contains(lower, "total a pagar") || strings.Contains(lower, "total:"))
	f[featCurrencyCount] = float64(len(currencyRe.FindAllString(text, -1)))
	f[featValueCount] = float64(len(valueRe.FindAllString(text, -1)))
	f[featDateCount] = float64(len(dateRe.FindAllString(text, -1)))
	f[featHasCNPJ] = boolFeat(cnpjRe.MatchString(text))
	f[featRoxinhoGreeting] = boolFeat(strings.Contains(lower, "olá") && strings.Contains(lower, "esta é a sua fatura"))
	f[featInterLayout] = boolFeat(strings.Contains(lower, "banco inter"))
	return f
}
