package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintext/fatura/internal/assist"
	"github.com/fintext/fatura/internal/cache"
	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/community"
	"github.com/fintext/fatura/internal/detector"
	"github.com/fintext/fatura/internal/feedback"
	"github.com/fintext/fatura/internal/model"
	"github.com/fintext/fatura/internal/parser"
	"github.com/fintext/fatura/internal/registry"
)

const nubankInvoice = `NUBANK
Nu Pagamentos S.A.
MARIA DA SILVA FATURA
Olá, Maria! Esta é a sua fatura
EMISSÃO E ENVIO 17 OUT 2025
Data de vencimento: 24 NOV 2025
Total a pagar R$ 2.150,75

TRANSAÇÕES
17 OUT •••• 2300 Moreira Vidracaria - Parcela 2/3 R$ 250,00
18 OUT •••• 2300 Mercado Central R$ 89,90`

type recordedEvent struct {
	traceID string
	name    string
	fields  common.Fields
}

type recordingObserver struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (o *recordingObserver) Event(traceID, name string, fields common.Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, recordedEvent{traceID: traceID, name: name, fields: fields})
}

func (o *recordingObserver) names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.name)
	}
	return out
}

type testStack struct {
	pipeline  *Pipeline
	banks     *registry.Registry
	detector  *detector.Detector
	assistant *assist.Assistant
	cache     *cache.Cache
	feedback  *feedback.Store
	templates *community.Registry
	observer  *recordingObserver
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	banks := registry.New()
	c := cache.New(time.Hour, 100, true)
	det, err := detector.New(banks, c, 0)
	require.NoError(t, err)

	assistant := assist.New(0)

	fb, err := feedback.NewStore(filepath.Join(dir, "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fb.Close() })

	templateStore, err := community.NewStore(filepath.Join(dir, "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = templateStore.Close() })

	templates, err := community.NewRegistry(ctx, templateStore, banks, det)
	require.NoError(t, err)

	obs := &recordingObserver{}
	p, err := New(Deps{
		Banks:     banks,
		Detector:  det,
		Assistant: assistant,
		Parsers:   parser.NewRegistry(banks, templates),
		Cache:     c,
		Feedback:  fb,
		Observer:  obs,
		Metrics:   NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	return &testStack{
		pipeline:  p,
		banks:     banks,
		detector:  det,
		assistant: assistant,
		cache:     c,
		feedback:  fb,
		templates: templates,
		observer:  obs,
	}
}

func TestPipeline_ExtractNubankInvoice(t *testing.T) {
	s := newTestStack(t)

	result, err := s.pipeline.Extract(context.Background(), nubankInvoice, 2025)
	require.NoError(t, err)

	assert.NotEmpty(t, result.TraceID)
	assert.Equal(t, "nubank", result.Detection.BankKey)
	assert.GreaterOrEqual(t, result.Detection.Confidence, 0.9)
	assert.Equal(t, model.SourceRule, result.Detection.Source)
	assert.Equal(t, parser.ProvenanceSpecialized, result.Provenance)
	assert.Equal(t, "NubankParser", result.ParserUsed)
	assert.False(t, result.Fallback)

	require.NotNil(t, result.Data)
	assert.Equal(t, "Nu Pagamentos S.A.", result.Data.Empresa)
	assert.Equal(t, "18.236.120/0001-58", result.Data.CNPJ)
	assert.Equal(t, "2025-11-24", result.Data.DataVencimento)
	require.NotNil(t, result.Data.ValorTotal)
	assert.InDelta(t, 2150.75, *result.Data.ValorTotal, 1e-9)
	assert.Len(t, result.Data.Itens, 2)

	assert.Contains(t, s.observer.names(), EventBankDetection)
	assert.Contains(t, s.observer.names(), EventParserSelection)
	assert.Contains(t, s.observer.names(), EventCacheMiss)
}

func TestPipeline_ExtractUnknownDocumentFallsBack(t *testing.T) {
	s := newTestStack(t)

	result, err := s.pipeline.Extract(context.Background(), "Recibo avulso\nValor Total: R$ 42,00", 2025)
	require.NoError(t, err)

	assert.Empty(t, result.Detection.BankKey)
	assert.Equal(t, parser.ProvenanceGeneric, result.Provenance)
	assert.True(t, result.Fallback)
	assert.Equal(t, "bank_not_detected", result.Reason)
	require.NotNil(t, result.Data.ValorTotal)
	assert.InDelta(t, 42.00, *result.Data.ValorTotal, 1e-9)
}

func TestPipeline_ExtractEmptyText(t *testing.T) {
	s := newTestStack(t)

	_, err := s.pipeline.Extract(context.Background(), "", 2025)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestPipeline_CachedRunMatchesFirstRun(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	first, err := s.pipeline.Extract(ctx, nubankInvoice, 2025)
	require.NoError(t, err)

	second, err := s.pipeline.Extract(ctx, nubankInvoice, 2025)
	require.NoError(t, err)

	// Same answer, different provenance of the detection.
	assert.Equal(t, model.SourceCache, second.Detection.Source)
	assert.Equal(t, first.Detection.BankKey, second.Detection.BankKey)
	assert.Equal(t, first.Detection.Confidence, second.Detection.Confidence)
	assert.Equal(t, first.ParserUsed, second.ParserUsed)
	assert.Equal(t, first.Data, second.Data)
	assert.NotEqual(t, first.TraceID, second.TraceID)

	assert.Contains(t, s.observer.names(), EventCacheHit)
}

func TestPipeline_CommunityTemplateFlow(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	sub := community.Submission{
		BankKey:           "banco_xyz",
		DisplayName:       "Banco XYZ S.A.",
		CNPJ:              "12.345.678/0001-90",
		DetectionPatterns: []string{`banco xyz`, `xyz pagamentos`},
		ExtractionPatterns: map[string]string{
			"valor_total": `total[:\s]+r\$\s*([\d.,]+)`,
		},
		Author: "contribuidora",
	}

	text := "BANCO XYZ cartões\nXYZ Pagamentos Ltda\nTotal: R$ 512,30"

	// Before approval the document has no known bank.
	before, err := s.pipeline.Extract(ctx, text, 2025)
	require.NoError(t, err)
	assert.Empty(t, before.Detection.BankKey)
	assert.True(t, before.Fallback)

	submitted, err := s.templates.Submit(ctx, sub)
	require.NoError(t, err)
	require.True(t, submitted.Accepted)
	_, err = s.templates.Approve(ctx, submitted.Hash, "moderadora")
	require.NoError(t, err)

	// The detection cache still holds the pre-approval answer; clear it so
	// the new indicators take effect immediately.
	s.cache.Clear()

	after, err := s.pipeline.Extract(ctx, text, 2025)
	require.NoError(t, err)
	assert.Equal(t, "banco_xyz", after.Detection.BankKey)
	assert.Equal(t, model.SourceCommunity, after.Detection.Source)
	assert.Equal(t, parser.ProvenanceCommunity, after.Provenance)
	assert.False(t, after.Fallback)
	assert.Equal(t, "Banco XYZ S.A.", after.Data.Empresa)
	require.NotNil(t, after.Data.ValorTotal)
	assert.InDelta(t, 512.30, *after.Data.ValorTotal, 1e-9)

	assert.Contains(t, s.observer.names(), EventTemplateApplied)
}

func TestPipeline_TemplateCannotShadowBuiltInBank(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	sub := community.Submission{
		BankKey:           "nubank",
		DisplayName:       "Nubanco Falso",
		CNPJ:              "11.111.111/1111-11",
		DetectionPatterns: []string{`boleto do malandro`},
		Author:            "atacante",
	}

	submitted, err := s.templates.Submit(ctx, sub)
	require.NoError(t, err)
	assert.False(t, submitted.Accepted)
	require.Len(t, submitted.Reasons, 1)
	assert.Contains(t, submitted.Reasons[0], "reserved")

	// The built-in indicators are untouched.
	result, err := s.pipeline.Extract(ctx, nubankInvoice, 2025)
	require.NoError(t, err)
	assert.Equal(t, "nubank", result.Detection.BankKey)
	assert.GreaterOrEqual(t, result.Detection.Confidence, 0.9)
}

func TestPipeline_ReplaysParserChoice(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	first, err := s.pipeline.Extract(ctx, nubankInvoice, 2025)
	require.NoError(t, err)

	choice, ok := s.cache.GetParserChoice(nubankInvoice)
	require.True(t, ok)
	assert.Equal(t, "NubankParser", choice)

	second, err := s.pipeline.Extract(ctx, nubankInvoice, 2025)
	require.NoError(t, err)
	assert.Equal(t, first.ParserUsed, second.ParserUsed)
	assert.Equal(t, first.Data, second.Data)

	// First run misses detection and choice; the second replays both, on top
	// of the direct read above.
	stats := s.cache.Stats()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestPipeline_AssistantOverridesWeakDetection(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// Train the assistant on inter-looking documents.
	samples := make([]model.TrainingSample, 0, assist.MinSamplesPerBank)
	for i := 0; i < assist.MinSamplesPerBank; i++ {
		samples = append(samples, model.TrainingSample{
			Text:        fmt.Sprintf("Banco Inter S.A.\nExtrato da conta\nSaldo R$ %d,00", 100+i),
			CorrectBank: "inter",
		})
	}
	_, err := s.assistant.TrainFromFeedback(samples)
	require.NoError(t, err)

	// The rules find no bank here; the trained model recognizes the layout.
	text := "Extrato da conta\nSaldo R$ 150,00"
	result, err := s.pipeline.Extract(ctx, text, 2025)
	require.NoError(t, err)

	assert.Equal(t, "inter", result.Detection.BankKey)
	assert.Equal(t, model.SourceML, result.Detection.Source)
	assert.Contains(t, s.observer.names(), EventAssistOverride)
}

func TestPipeline_CachedWeakDetectionStillAssisted(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	samples := make([]model.TrainingSample, 0, assist.MinSamplesPerBank)
	for i := 0; i < assist.MinSamplesPerBank; i++ {
		samples = append(samples, model.TrainingSample{
			Text:        fmt.Sprintf("Banco Inter S.A.\nExtrato da conta\nSaldo R$ %d,00", 100+i),
			CorrectBank: "inter",
		})
	}
	_, err := s.assistant.TrainFromFeedback(samples)
	require.NoError(t, err)

	text := "Extrato da conta\nSaldo R$ 150,00"

	first, err := s.pipeline.Extract(ctx, text, 2025)
	require.NoError(t, err)
	require.Equal(t, model.SourceML, first.Detection.Source)

	// The second run replays the cached rule result; the override gate must
	// reach the same answer as the fresh computation.
	second, err := s.pipeline.Extract(ctx, text, 2025)
	require.NoError(t, err)

	assert.Equal(t, model.SourceML, second.Detection.Source)
	assert.Equal(t, first.Detection.BankKey, second.Detection.BankKey)
	assert.Equal(t, first.Detection.Confidence, second.Detection.Confidence)
	assert.Equal(t, first.ParserUsed, second.ParserUsed)
}

func TestPipeline_AssistantNeverActsOnConfidentDetection(t *testing.T) {
	s := newTestStack(t)

	samples := make([]model.TrainingSample, 0, assist.MinSamplesPerBank)
	for i := 0; i < assist.MinSamplesPerBank; i++ {
		samples = append(samples, model.TrainingSample{
			Text:        fmt.Sprintf("NUBANK fatura roxinho %d", i),
			CorrectBank: "nubank",
		})
	}
	_, err := s.assistant.TrainFromFeedback(samples)
	require.NoError(t, err)

	result, err := s.pipeline.Extract(context.Background(), nubankInvoice, 2025)
	require.NoError(t, err)

	// Rules are confident here; the assistant must stay out.
	assert.Equal(t, model.SourceRule, result.Detection.Source)
	assert.NotContains(t, s.observer.names(), EventAssistOverride)
}

func TestPipeline_FeedbackTrainCycle(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	for i := 0; i < assist.MinSamplesPerBank; i++ {
		_, err := s.pipeline.SubmitFeedback(ctx, "", "inter",
			fmt.Sprintf("Banco Inter extrato %d", i), 0.2)
		require.NoError(t, err)
	}

	result, err := s.pipeline.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"inter"}, result.TrainedBanks)
	assert.Equal(t, assist.MinSamplesPerBank, result.SamplesUsed)
	assert.True(t, s.assistant.Enabled())

	// Consumed feedback is marked; a second run has nothing left.
	_, err = s.pipeline.Train(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientData)
}

func TestPipeline_TrainWithTooFewSamples(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.pipeline.SubmitFeedback(ctx, "itau", "nubank", "uma só correção", 0.3)
	require.NoError(t, err)

	_, err = s.pipeline.Train(ctx)
	assert.ErrorIs(t, err, common.ErrInsufficientData)
	assert.False(t, s.assistant.Enabled())
}

func TestPipeline_RequiredDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestPipeline_DegradesWithoutOptionalDeps(t *testing.T) {
	banks := registry.New()
	det, err := detector.New(banks, nil, 0)
	require.NoError(t, err)

	p, err := New(Deps{
		Banks:    banks,
		Detector: det,
		Parsers:  parser.NewRegistry(banks, nil),
	})
	require.NoError(t, err)

	result, err := p.Extract(context.Background(), nubankInvoice, 2025)
	require.NoError(t, err)
	assert.Equal(t, "nubank", result.Detection.BankKey)

	_, err = p.SubmitFeedback(context.Background(), "", "nubank", "texto", 0.1)
	assert.Error(t, err)
	_, err = p.Train(context.Background())
	assert.Error(t, err)
	assert.Zero(t, p.CacheStats())
}
