// Package detector identifies the issuing bank of a document from its text
// using weighted regex indicators, producing a bank key and a confidence.
package detector

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/fintext/fatura/internal/cache"
	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/registry"
)

// DefaultMinConfidence is the floor below which a detection reports no bank.
const DefaultMinConfidence = 0.30

// scoreNorm normalizes the raw indicator score: three weighted mentions is
// full confidence.
const scoreNorm = 3.0

type compiledIndicator struct {
	re     *regexp.Regexp
	weight float64
}

// Detector scores document text against every registered bank's indicators.
// It consults the extraction cache first when one is attached.
type Detector struct {
	registry      *registry.Registry
	cache         *cache.Cache
	indicators    map[string][]compiledIndicator
	communityKeys map[string]bool
	minConfidence float64
	mu            sync.RWMutex
}

// New creates a detector over the registry's identities with the built-in
// indicator set. The cache may be nil, in which case every call recomputes.
func New(reg *registry.Registry, c *cache.Cache, minConfidence float64) (*Detector, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	d := &Detector{
		registry:      reg,
		cache:         c,
		indicators:    make(map[string][]compiledIndicator),
		communityKeys: make(map[string]bool),
		minConfidence: minConfidence,
	}

	for key, indicators := range defaultIndicators {
		compiled, err := compileIndicators(indicators)
		if err != nil {
			return nil, fmt.Errorf("bank %s: %w", key, err)
		}
		d.indicators[key] = compiled
	}

	return d, nil
}

func compileIndicators(indicators []Indicator) ([]compiledIndicator, error) {
	compiled := make([]compiledIndicator, 0, len(indicators))
	for _, ind := range indicators {
		src := ind.Regex
		if !strings.HasPrefix(src, "(?i)") {
			src = "(?i)" + src
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to compile indicator %s: %w", ind.Regex, err)
		}
		weight := ind.Weight
		if weight == 0 {
			weight = 1.0
		}
		compiled = append(compiled, compiledIndicator{re: re, weight: weight})
	}
	return compiled, nil
}

// RegisterIndicators attaches detection patterns for a community-contributed
// bank. Patterns must already have passed template validation. The built-in
// indicator sets are immutable; only a community key may be re-registered.
func (d *Detector) RegisterIndicators(bankKey string, patterns []string) error {
	indicators := make([]Indicator, 0, len(patterns))
	for _, p := range patterns {
		indicators = append(indicators, Indicator{Regex: p, Weight: 1.0})
	}

	compiled, err := compileIndicators(indicators)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.indicators[bankKey]; exists && !d.communityKeys[bankKey] {
		return fmt.Errorf("bank %s has built-in indicators: %w", bankKey, common.ErrDuplicateEntry)
	}
	d.indicators[bankKey] = compiled
	d.communityKeys[bankKey] = true
	return nil
}

// Detect identifies the bank that issued the document. The cache is consulted
// first; a hit replays the stored result verbatim with Source set to cache.
// When the best score stays below the minimum confidence the result carries
// an empty bank key but keeps the score, so callers can see near misses.
func (d *Detector) Detect(text string) model.DetectionResult {
	if cached, ok := d.cache.GetDetection(text); ok {
		cached.Source = model.SourceCache
		return cached
	}

	result := d.compute(text)
	d.cache.SetDetection(text, result)
	return result
}

func (d *Detector) compute(text string) model.DetectionResult {
	lower := strings.ToLower(text)

	d.mu.RLock()
	defer d.mu.RUnlock()

	bestKey := ""
	bestScore := 0.0
	// Registration order makes tie-breaks stable: a later identity must
	// strictly beat the current best.
	for _, id := range d.registry.Identities() {
		score := 0.0
		for _, ind := range d.indicators[id.Key] {
			score += float64(len(ind.re.FindAllString(lower, -1))) * ind.weight
		}
		if score > bestScore {
			bestScore = score
			bestKey = id.Key
		}
	}

	confidence := math.Min(1.0, bestScore/scoreNorm)
	source := model.SourceRule
	if d.communityKeys[bestKey] {
		source = model.SourceCommunity
	}

	if bestKey == "" || confidence < d.minConfidence {
		return model.DetectionResult{Confidence: confidence, Source: model.SourceRule}
	}

	return model.DetectionResult{
		BankKey:     bestKey,
		DisplayName: d.registry.DisplayName(bestKey),
		Confidence:  confidence,
		Source:      source,
	}
}

// DetectDocumentType classifies the document kind from layout keywords.
func DetectDocumentType(text string) (model.DocumentType, float64) {
	lower := strings.ToLower(text)

	bestType := ""
	bestScore := 0
	for docType, keywords := range documentKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && docType < bestType) {
			bestScore = score
			bestType = docType
		}
	}

	if bestScore == 0 {
		return model.DocumentDesconhecido, 0.0
	}
	return model.DocumentType(bestType), math.Min(1.0, float64(bestScore)/3.0)
}
