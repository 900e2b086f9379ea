// Package parser extracts structured financial records from document text.
// Extraction strategies form a strict precedence: a specialized parser for
// the detected bank, then an approved community template, then the generic
// fallback.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

// Provenance records which strategy produced a parse result.
type Provenance string

// Parser provenances.
const (
	ProvenanceSpecialized Provenance = "specialized"
	ProvenanceCommunity   Provenance = "community"
	ProvenanceGeneric     Provenance = "generic"
)

// Parser is one extraction strategy. CanParse is a defensive secondary check
// run even after detection already picked the bank. Absent fields in the
// parse result are left zero, never treated as errors.
type Parser interface {
	Bank() string
	CanParse(text string) bool
	Parse(text string, refYear int) *model.DadosFinanceiros
}

// CommunityApplier applies an approved community template for a bank,
// returning a partial record. ok is false when no approved template exists.
type CommunityApplier interface {
	Apply(bankKey, text string) (*model.DadosFinanceiros, bool)
}

// Selection is the outcome of parser dispatch.
type Selection struct {
	Data       *model.DadosFinanceiros
	Provenance Provenance
	ParserName string
	Reason     string
	Fallback   bool
}

// Registry dispatches document text to the right extraction strategy.
type Registry struct {
	specialized map[string]Parser
	community   CommunityApplier
	generic     *GenericParser
	banks       *registry.Registry
}

// NewRegistry builds the dispatch registry with the closed set of
// specialized parsers. community may be nil.
func NewRegistry(banks *registry.Registry, community CommunityApplier) *Registry {
	r := &Registry{
		specialized: make(map[string]Parser),
		community:   community,
		generic:     NewGenericParser(banks),
		banks:       banks,
	}

	for _, p := range []Parser{
		NewNubankParser(banks),
		NewInterParser(banks),
		NewC6Parser(banks),
		NewPicPayParser(banks),
	} {
		r.specialized[p.Bank()] = p
	}

	return r
}

// SpecializedFor returns the specialized parser registered for a bank key.
func (r *Registry) SpecializedFor(bankKey string) (Parser, bool) {
	p, ok := r.specialized[bankKey]
	return p, ok
}

// Generic returns the fallback parser.
func (r *Registry) Generic() *GenericParser {
	return r.generic
}

// SelectAndParse runs the precedence chain for the detected bank. A missing
// or ambiguous field never aborts the extraction; the generic parser is the
// guaranteed last resort.
func (r *Registry) SelectAndParse(text string, det model.DetectionResult, refYear int) Selection {
	reason := "bank_not_detected"

	if det.BankKey != "" {
		if p, ok := r.specialized[det.BankKey]; ok {
			if p.CanParse(text) {
				data := p.Parse(text, refYear)
				r.enrich(data, det.BankKey)
				return Selection{
					Data:       data,
					Provenance: ProvenanceSpecialized,
					ParserName: parserName(det.BankKey),
				}
			}
			reason = "specialized_parser_rejected"
		} else {
			reason = "no_specialized_parser_available"
		}

		if r.community != nil {
			if data, ok := r.community.Apply(det.BankKey, text); ok {
				return Selection{
					Data:       data,
					Provenance: ProvenanceCommunity,
					ParserName: "CommunityTemplate(" + det.BankKey + ")",
				}
			}
		}
	}

	data := r.generic.Parse(text, refYear)
	if det.BankKey != "" {
		if data.Empresa == "" {
			data.Empresa = r.banks.DisplayName(det.BankKey)
		}
		r.enrich(data, det.BankKey)
	}

	return Selection{
		Data:       data,
		Provenance: ProvenanceGeneric,
		ParserName: "GenericParser",
		Reason:     reason,
		Fallback:   true,
	}
}

// Replay re-applies a parser choice recorded for the same normalized
// document. Only a specialized choice short-circuits the dispatch; community
// and generic selections carry state (template snapshots, fallback reasons)
// that is recomputed through the normal precedence chain.
func (r *Registry) Replay(choice, text string, det model.DetectionResult, refYear int) Selection {
	if det.BankKey != "" && choice == parserName(det.BankKey) {
		if p, ok := r.specialized[det.BankKey]; ok {
			data := p.Parse(text, refYear)
			r.enrich(data, det.BankKey)
			return Selection{
				Data:       data,
				Provenance: ProvenanceSpecialized,
				ParserName: choice,
			}
		}
	}
	return r.SelectAndParse(text, det, refYear)
}

// enrich fills the CNPJ from the bank registry when extraction found none.
func (r *Registry) enrich(data *model.DadosFinanceiros, bankKey string) {
	if data.CNPJ == "" {
		data.CNPJ = r.banks.CNPJ(bankKey)
	}
}

func parserName(bankKey string) string {
	switch bankKey {
	case "nubank":
		return "NubankParser"
	case "inter":
		return "InterParser"
	case "c6":
		return "C6Parser"
	case "picpay":
		return "PicPayParser"
	}
	return "GenericParser"
}

// monthAbbrAlt is the Portuguese abbreviated month alternation shared by
// several parsers.
const monthAbbrAlt = `JAN|FEV|MAR|ABR|MAI|JUN|JUL|AGO|SET|OUT|NOV|DEZ`

var valorCleanRe = regexp.MustCompile(`[R$\s]`)

// parseValor converts a Brazilian currency string ("3.038,08") to a float.
func parseValor(s string) (float64, bool) {
	s = valorCleanRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dedupeItems drops repeated (date, description, value) rows, keeping the
// first occurrence. Statement layouts sometimes repeat summary lines.
func dedupeItems(items []model.ItemFinanceiro) []model.ItemFinanceiro {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		key := it.Data + "|" + it.Descricao + "|" + strconv.FormatFloat(it.Valor, 'f', 2, 64)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
