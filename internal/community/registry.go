package community

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/dates"
	"github.com/fintext/fatura/internal/model"
)

// BankRegistrar receives identities of approved community banks and reports
// which keys the built-in set already owns, so a template can never shadow
// a known bank.
type BankRegistrar interface {
	Register(id model.BankIdentity) error
	IsBuiltIn(key string) bool
}

// DetectorRegistrar receives detection patterns of approved community banks.
type DetectorRegistrar interface {
	RegisterIndicators(bankKey string, patterns []string) error
}

// SubmissionResult reports the outcome of a template submission.
type SubmissionResult struct {
	Accepted bool     `json:"accepted"`
	Hash     string   `json:"hash,omitempty"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ApprovalResult reports the outcome of an approval request.
type ApprovalResult struct {
	Status   model.TemplateStatus `json:"status"`
	Reviewer string               `json:"reviewer"`
	Applied  bool                 `json:"applied"`
}

type compiledTemplate struct {
	displayName string
	cnpj        string
	fields      map[string]*regexp.Regexp
}

// Registry manages community-contributed bank templates: submission,
// moderation and application of approved extraction patterns.
type Registry struct {
	store    *Store
	banks    BankRegistrar
	detector DetectorRegistrar

	approved atomic.Pointer[map[string]compiledTemplate]
}

// NewRegistry wires the template store to the bank registry and detector,
// replaying already approved templates into both.
func NewRegistry(ctx context.Context, store *Store, banks BankRegistrar, detector DetectorRegistrar) (*Registry, error) {
	r := &Registry{
		store:    store,
		banks:    banks,
		detector: detector,
	}
	empty := map[string]compiledTemplate{}
	r.approved.Store(&empty)

	if err := r.loadApproved(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Submit validates a community template and persists it as pending.
// Invalid submissions are reported with reasons, never persisted.
func (r *Registry) Submit(ctx context.Context, sub Submission) (SubmissionResult, error) {
	if reasons := validate(sub); len(reasons) > 0 {
		return SubmissionResult{Accepted: false, Reasons: reasons}, nil
	}
	if r.banks != nil && r.banks.IsBuiltIn(sub.BankKey) {
		return SubmissionResult{Accepted: false, Reasons: []string{
			fmt.Sprintf("bank_key %q is reserved by a built-in bank", sub.BankKey),
		}}, nil
	}

	hash := contentHash(sub.BankKey, sub.DetectionPatterns)
	t := model.CommunityTemplate{
		BankKey:            sub.BankKey,
		DisplayName:        sub.DisplayName,
		CNPJ:               sub.CNPJ,
		DetectionPatterns:  sub.DetectionPatterns,
		ExtractionPatterns: sub.ExtractionPatterns,
		Author:             sub.Author,
		Description:        sub.Description,
		Hash:               hash,
		Status:             model.TemplatePending,
		SubmittedAt:        time.Now().UTC(),
	}

	if err := r.store.insert(ctx, t); err != nil {
		return SubmissionResult{}, err
	}

	common.LogInfo("community template submitted", common.Fields{
		"bank_key": sub.BankKey,
		"hash":     hash,
		"author":   sub.Author,
	})
	return SubmissionResult{Accepted: true, Hash: hash}, nil
}

// Approve transitions a pending template to approved and activates it.
// Approving an already approved template is a no-op that reports the
// original reviewer.
func (r *Registry) Approve(ctx context.Context, hash, reviewer string) (ApprovalResult, error) {
	if reviewer == "" {
		return ApprovalResult{}, fmt.Errorf("approve template: reviewer is required")
	}

	changed, err := r.store.approve(ctx, hash, reviewer, time.Now().UTC())
	if err != nil {
		return ApprovalResult{}, err
	}

	t, err := r.store.getByHash(ctx, hash)
	if err != nil {
		return ApprovalResult{}, err
	}

	if !changed {
		return ApprovalResult{Status: t.Status, Reviewer: t.Reviewer, Applied: false}, nil
	}

	if err := r.activate(*t); err != nil {
		return ApprovalResult{}, err
	}

	common.LogInfo("community template approved", common.Fields{
		"bank_key": t.BankKey,
		"hash":     hash,
		"reviewer": reviewer,
	})
	return ApprovalResult{Status: model.TemplateApproved, Reviewer: reviewer, Applied: true}, nil
}

// List returns templates in the given status, oldest first.
func (r *Registry) List(ctx context.Context, status model.TemplateStatus) ([]model.CommunityTemplate, error) {
	return r.store.listByStatus(ctx, status)
}

// Get returns a single template by content hash.
func (r *Registry) Get(ctx context.Context, hash string) (*model.CommunityTemplate, error) {
	return r.store.getByHash(ctx, hash)
}

// Apply runs the approved template for bankKey against text. The second
// return is false when no approved template covers the bank or nothing
// at all matched.
func (r *Registry) Apply(bankKey, text string) (*model.DadosFinanceiros, bool) {
	snapshot := *r.approved.Load()
	t, ok := snapshot[bankKey]
	if !ok {
		return nil, false
	}

	data := model.NewDadosFinanceiros()
	data.Empresa = t.displayName
	data.CNPJ = t.cnpj

	matched := false
	for field, re := range t.fields {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		if assignField(data, field, strings.TrimSpace(m[1])) {
			matched = true
		}
	}

	if !matched {
		return nil, false
	}
	return data, true
}

func (r *Registry) loadApproved(ctx context.Context) error {
	templates, err := r.store.listByStatus(ctx, model.TemplateApproved)
	if err != nil {
		return err
	}

	for _, t := range templates {
		if err := r.activate(t); err != nil {
			return fmt.Errorf("failed to restore template %s: %w", t.Hash, err)
		}
	}
	return nil
}

// activate registers the template's bank and patterns and publishes a new
// approved snapshot. Patterns were validated at submission time, so compile
// failures here indicate store corruption.
func (r *Registry) activate(t model.CommunityTemplate) error {
	compiled, err := compileTemplate(t)
	if err != nil {
		return err
	}

	// Submission already rejects built-in keys; a collision here means the
	// store predates that rule or was edited by hand.
	if r.banks != nil && r.banks.IsBuiltIn(t.BankKey) {
		return fmt.Errorf("bank %s is built in and cannot be replaced by a template", t.BankKey)
	}

	if r.banks != nil {
		err := r.banks.Register(model.BankIdentity{
			Key:         t.BankKey,
			DisplayName: t.DisplayName,
			CNPJ:        t.CNPJ,
		})
		if err != nil && !errors.Is(err, common.ErrDuplicateEntry) {
			return fmt.Errorf("failed to register bank %s: %w", t.BankKey, err)
		}
	}

	if r.detector != nil {
		if err := r.detector.RegisterIndicators(t.BankKey, t.DetectionPatterns); err != nil {
			return fmt.Errorf("failed to register detection patterns for %s: %w", t.BankKey, err)
		}
	}

	old := *r.approved.Load()
	next := make(map[string]compiledTemplate, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[t.BankKey] = compiled
	r.approved.Store(&next)
	return nil
}

func compileTemplate(t model.CommunityTemplate) (compiledTemplate, error) {
	fields := make(map[string]*regexp.Regexp, len(t.ExtractionPatterns))
	for field, pattern := range t.ExtractionPatterns {
		if field == "items" {
			// Item lists need positional context a single pattern cannot
			// express, so item captures are not applied.
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return compiledTemplate{}, fmt.Errorf("invalid extraction pattern for %s: %w", field, err)
		}
		fields[field] = re
	}
	return compiledTemplate{
		displayName: t.DisplayName,
		cnpj:        t.CNPJ,
		fields:      fields,
	}, nil
}

// assignField maps a captured value onto the financial document. Returns
// false when the value could not be used (bad number, bad date).
func assignField(data *model.DadosFinanceiros, field, value string) bool {
	switch field {
	case "empresa":
		data.Empresa = value
	case "cnpj":
		data.CNPJ = value
	case "cpf":
		data.CPF = value
	case "data_emissao":
		iso, ok := dates.Normalize(value, time.Now().Year())
		if !ok {
			return false
		}
		data.DataEmissao = iso
	case "data_vencimento":
		iso, ok := dates.Normalize(value, time.Now().Year())
		if !ok {
			return false
		}
		data.DataVencimento = iso
	case "valor_total":
		v, ok := parseAmount(value)
		if !ok {
			return false
		}
		data.ValorTotal = &v
	case "numero_documento":
		data.NumeroDocumento = value
	default:
		return false
	}
	return true
}

// parseAmount converts a Brazilian-formatted amount ("1.234,56") to a float.
func parseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func contentHash(bankKey string, detectionPatterns []string) string {
	h := sha256.New()
	h.Write([]byte(bankKey))
	for _, p := range detectionPatterns {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
