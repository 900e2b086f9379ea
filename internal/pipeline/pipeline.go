// Package pipeline orchestrates the full extraction flow: detect the bank,
// optionally let the trained model override a weak detection, dispatch to the
// best parser and record the outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fintext/fatura/internal/assist"
	"github.com/fintext/fatura/internal/cache"
	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/detector"
	"github.com/fintext/fatura/internal/feedback"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/parser"
	"github.com/fintext/fatura/internal/registry"
)

// Config carries the tunables of a pipeline instance.
type Config struct {
	MinConfidence   float64
	AssistThreshold float64
	CacheTTL        time.Duration
	CacheMaxSize    int
	CacheEnabled    bool
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   detector.DefaultMinConfidence,
		AssistThreshold: assist.DefaultAssistThreshold,
		CacheTTL:        cache.DefaultTTL,
		CacheMaxSize:    cache.DefaultMaxSize,
		CacheEnabled:    true,
	}
}

// Result is the outcome of one extraction.
type Result struct {
	TraceID    string                  `json:"trace_id"`
	Data       *model.DadosFinanceiros `json:"data"`
	Detection  model.DetectionResult   `json:"detection"`
	Provenance parser.Provenance       `json:"provenance"`
	ParserUsed string                  `json:"parser_used"`
	Fallback   bool                    `json:"fallback"`
	Reason     string                  `json:"reason,omitempty"`
}

// Pipeline ties the detector, assistant, parsers and cache together. Any of
// assistant, feedback store, cache, metrics and observer may be absent; the
// pipeline degrades to the remaining components.
type Pipeline struct {
	banks     *registry.Registry
	detector  *detector.Detector
	assistant *assist.Assistant
	parsers   *parser.Registry
	cache     *cache.Cache
	feedback  *feedback.Store
	observer  Observer
	metrics   *Metrics
}

// Deps lists the collaborators of a pipeline. Banks, Detector and Parsers are
// required.
type Deps struct {
	Banks     *registry.Registry
	Detector  *detector.Detector
	Assistant *assist.Assistant
	Parsers   *parser.Registry
	Cache     *cache.Cache
	Feedback  *feedback.Store
	Observer  Observer
	Metrics   *Metrics
}

// New assembles a pipeline from pre-built components.
func New(deps Deps) (*Pipeline, error) {
	if deps.Banks == nil || deps.Detector == nil || deps.Parsers == nil {
		return nil, fmt.Errorf("pipeline: banks, detector and parsers are required")
	}

	obs := deps.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	return &Pipeline{
		banks:     deps.Banks,
		detector:  deps.Detector,
		assistant: deps.Assistant,
		parsers:   deps.Parsers,
		cache:     deps.Cache,
		feedback:  deps.Feedback,
		observer:  obs,
		metrics:   deps.Metrics,
	}, nil
}

// Extract runs the full flow over raw document text. refYear anchors
// year-less date fragments; pass dates.InferYear(text) or the current year
// when the caller has no better anchor.
func (p *Pipeline) Extract(ctx context.Context, text string, refYear int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if text == "" {
		return Result{}, fmt.Errorf("extract: %w", common.NewValidationError("document text is empty"))
	}

	traceID := uuid.NewString()

	det := p.detector.Detect(text)
	fromCache := det.Source == model.SourceCache
	p.metrics.observeDetection(det.Confidence, fromCache)
	if fromCache {
		p.observer.Event(traceID, EventCacheHit, common.Fields{"bank": det.BankKey})
	} else {
		p.observer.Event(traceID, EventCacheMiss, nil)
	}
	p.observer.Event(traceID, EventBankDetection, common.Fields{
		"bank":       det.BankKey,
		"confidence": det.Confidence,
		"source":     string(det.Source),
	})

	det = p.maybeAssist(traceID, text, det)

	var sel parser.Selection
	if choice, ok := p.cache.GetParserChoice(text); ok {
		sel = p.parsers.Replay(choice, text, det, refYear)
	} else {
		sel = p.parsers.SelectAndParse(text, det, refYear)
	}
	p.metrics.observeExtraction(det.BankKey, string(sel.Provenance), sel.Fallback)
	p.observer.Event(traceID, EventParserSelection, common.Fields{
		"parser":     sel.ParserName,
		"provenance": string(sel.Provenance),
		"fallback":   sel.Fallback,
		"reason":     sel.Reason,
	})
	if sel.Provenance == parser.ProvenanceCommunity {
		p.observer.Event(traceID, EventTemplateApplied, common.Fields{"bank": det.BankKey})
	}

	if p.cache.Enabled() {
		p.cache.SetParserChoice(text, sel.ParserName)
	}

	return Result{
		TraceID:    traceID,
		Data:       sel.Data,
		Detection:  det,
		Provenance: sel.Provenance,
		ParserUsed: sel.ParserName,
		Fallback:   sel.Fallback,
		Reason:     sel.Reason,
	}, nil
}

// maybeAssist lets the trained model override a weak rule detection. The
// model wins only with strictly higher confidence than the rules produced.
// Cached detections replay the stored rule result, so they pass through the
// same gate and a replayed run answers exactly like a fresh one.
func (p *Pipeline) maybeAssist(traceID, text string, det model.DetectionResult) model.DetectionResult {
	if p.assistant == nil || !p.assistant.Enabled() {
		return det
	}
	if !p.assistant.ShouldAssist(det.Confidence) {
		return det
	}

	bankKey, conf, ok := p.assistant.Predict(text)
	if !ok || conf <= det.Confidence {
		return det
	}

	p.metrics.observeOverride()
	p.observer.Event(traceID, EventAssistOverride, common.Fields{
		"rule_bank":       det.BankKey,
		"rule_confidence": det.Confidence,
		"model_bank":      bankKey,
		"model_confidence": conf,
	})

	return model.DetectionResult{
		BankKey:     bankKey,
		DisplayName: p.banks.DisplayName(bankKey),
		Confidence:  conf,
		Source:      model.SourceML,
	}
}

// SubmitFeedback records a correction for a past extraction. The pipeline
// must have a feedback store attached.
func (p *Pipeline) SubmitFeedback(ctx context.Context, detectedBank, correctBank, textSample string, confidence float64) (int64, error) {
	if p.feedback == nil {
		return 0, fmt.Errorf("submit feedback: no feedback store configured")
	}
	return p.feedback.Submit(ctx, detectedBank, correctBank, textSample, confidence, nil)
}

// Train retrains the assistant from all unprocessed feedback and marks the
// consumed records. Returns the training summary.
func (p *Pipeline) Train(ctx context.Context) (assist.TrainResult, error) {
	if p.feedback == nil {
		return assist.TrainResult{}, fmt.Errorf("train: no feedback store configured")
	}
	if p.assistant == nil {
		return assist.TrainResult{}, fmt.Errorf("train: no assistant configured")
	}

	records, err := p.feedback.Unprocessed(ctx, 0)
	if err != nil {
		return assist.TrainResult{}, err
	}

	samples := make([]model.TrainingSample, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		samples = append(samples, model.TrainingSample{
			Text:         rec.TextSample,
			CorrectBank:  rec.CorrectBank,
			DetectedBank: rec.DetectedBank,
			Confidence:   rec.Confidence,
		})
		ids = append(ids, rec.ID)
	}

	result, err := p.assistant.TrainFromFeedback(samples)
	if err != nil {
		return result, err
	}

	if err := p.feedback.MarkProcessed(ctx, ids); err != nil {
		return result, fmt.Errorf("training succeeded but marking feedback failed: %w", err)
	}

	common.LogInfo("assistant retrained", common.Fields{
		"samples_used":  result.SamplesUsed,
		"trained_banks": len(result.TrainedBanks),
	})
	return result, nil
}

// CacheStats exposes the cache counters, or zero stats when no cache is
// attached.
func (p *Pipeline) CacheStats() cache.Stats {
	if p.cache == nil {
		return cache.Stats{}
	}
	return p.cache.Stats()
}
