// Package registry holds the reference data for known financial
// institutions: stable bank identities plus a CNPJ lookup table.
package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/model"
)

// defaultIdentities seeds the registry. Order matters: score ties during
// detection resolve to the earliest-registered identity.
var defaultIdentities = []model.BankIdentity{
	{Key: "nubank", DisplayName: "Nubank", CNPJ: "18.236.120/0001-58"},
	{Key: "inter", DisplayName: "Banco Inter", CNPJ: "00.416.968/0001-01"},
	{Key: "c6", DisplayName: "C6 Bank", CNPJ: "31.872.495/0001-72"},
	{Key: "picpay", DisplayName: "PicPay", CNPJ: "14.176.050/0001-70"},
	{Key: "itau", DisplayName: "Itaú Unibanco", CNPJ: "60.701.190/0001-04"},
	{Key: "bradesco", DisplayName: "Bradesco", CNPJ: "60.746.948/0001-12"},
	{Key: "santander", DisplayName: "Santander", CNPJ: "90.400.888/0001-42"},
	{Key: "bb", DisplayName: "Banco do Brasil", CNPJ: "00.000.000/0001-91"},
	{Key: "caixa", DisplayName: "Caixa Econômica Federal", CNPJ: "00.360.305/0001-04"},
}

// knownCNPJs maps institution names to formatted CNPJs, beyond the banks that
// have full identities. Used for enrichment by name.
var knownCNPJs = map[string]string{
	"nubank":           "18.236.120/0001-58",
	"nu pagamentos":    "18.236.120/0001-58",
	"inter":            "00.416.968/0001-01",
	"banco inter":      "00.416.968/0001-01",
	"c6 bank":          "31.872.495/0001-72",
	"c6":               "31.872.495/0001-72",
	"picpay":           "14.176.050/0001-70",
	"neon":             "20.855.875/0001-40",
	"next":             "92.894.922/0001-08",
	"banco original":   "92.894.922/0001-08",
	"will bank":        "36.113.876/0001-91",
	"banco do brasil":  "00.000.000/0001-91",
	"bb":               "00.000.000/0001-91",
	"itau":             "60.701.190/0001-04",
	"itaú":             "60.701.190/0001-04",
	"bradesco":         "60.746.948/0001-12",
	"santander":        "90.400.888/0001-42",
	"caixa":            "00.360.305/0001-04",
	"caixa economica":  "00.360.305/0001-04",
	"safra":            "58.160.789/0001-28",
	"btg":              "30.306.294/0001-45",
	"btg pactual":      "30.306.294/0001-45",
	"citibank":         "33.479.023/0001-80",
	"hsbc":             "01.701.201/0001-89",
	"banrisul":         "92.702.067/0001-96",
	"creditas":         "17.262.245/0001-78",
	"stone":            "16.501.555/0001-57",
	"pagseguro":        "08.561.701/0001-01",
	"mercado pago":     "10.573.521/0001-91",
	"american express": "74.173.113/0001-00",
	"amex":             "74.173.113/0001-00",
}

// nameAliases maps common corporate-name variants to identity keys.
var nameAliases = map[string]string{
	"nu pagamentos sa":  "nubank",
	"nu pagamentos":     "nubank",
	"banco inter sa":    "inter",
	"itau unibanco":     "itau",
	"itaú unibanco":     "itau",
	"banco bradesco sa": "bradesco",
	"c6 bank":           "c6",
	"banco c6":          "c6",
}

var nonDigitRe = regexp.MustCompile(`\D`)

// Registry is the set of known bank identities. Static entries are seeded at
// construction; approved community templates register additional identities.
type Registry struct {
	identities map[string]model.BankIdentity
	order      []string
	builtin    map[string]bool
	mu         sync.RWMutex
}

// New creates a registry seeded with the built-in identities.
func New() *Registry {
	r := &Registry{
		identities: make(map[string]model.BankIdentity),
		builtin:    make(map[string]bool),
	}
	for _, id := range defaultIdentities {
		r.identities[id.Key] = id
		r.order = append(r.order, id.Key)
		r.builtin[id.Key] = true
	}
	return r
}

// IsBuiltIn reports whether key names a seeded identity. Identities added
// through Register never count as built in.
func (r *Registry) IsBuiltIn(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builtin[key]
}

// Register adds a new identity. Keys are globally unique; registering a
// duplicate key fails.
func (r *Registry) Register(id model.BankIdentity) error {
	if id.Key == "" {
		return fmt.Errorf("bank identity key is empty: %w", common.ErrInvalidConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[id.Key]; exists {
		return fmt.Errorf("bank key %q: %w", id.Key, common.ErrDuplicateEntry)
	}

	r.identities[id.Key] = id
	r.order = append(r.order, id.Key)
	return nil
}

// Identities returns every identity in registration order.
func (r *Registry) Identities() []model.BankIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.BankIdentity, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.identities[key])
	}
	return out
}

// Lookup returns the identity registered under key.
func (r *Registry) Lookup(key string) (model.BankIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identities[key]
	return id, ok
}

// DisplayName returns the friendly name for a bank key, or the key itself
// when unregistered.
func (r *Registry) DisplayName(key string) string {
	if id, ok := r.Lookup(key); ok {
		return id.DisplayName
	}
	return key
}

// CNPJ returns the known CNPJ for a bank key, or empty when unknown.
func (r *Registry) CNPJ(key string) string {
	if id, ok := r.Lookup(key); ok && id.CNPJ != "" {
		return id.CNPJ
	}
	return LookupCNPJByName(key)
}

// LookupCNPJByName resolves a CNPJ from an institution name, trying direct,
// alias and partial matches against the reference table.
func LookupCNPJByName(name string) string {
	if name == "" {
		return ""
	}

	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.TrimSpace(normalized)

	if cnpj, ok := knownCNPJs[normalized]; ok {
		return cnpj
	}
	if alias, ok := nameAliases[normalized]; ok {
		return knownCNPJs[alias]
	}

	for key, cnpj := range knownCNPJs {
		if strings.Contains(normalized, key) {
			return cnpj
		}
	}
	return ""
}

// ResolveAlias maps a corporate-name variant to its identity key, or returns
// the normalized input unchanged.
func ResolveAlias(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, ".", "")
	if key, ok := nameAliases[normalized]; ok {
		return key
	}
	return normalized
}

// FormatCNPJ canonicalizes a CNPJ into XX.XXX.XXX/XXXX-XX form. Inputs that
// do not carry exactly 14 digits are returned unchanged.
func FormatCNPJ(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) != 14 {
		return raw
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}
