package assist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/model"
)

func nubankSamples(n int) []model.TrainingSample {
	samples := make([]model.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, model.TrainingSample{
			Text:        fmt.Sprintf("NUBANK fatura do cartão\nOlá! Esta é a sua fatura\nTotal: R$ %d,00", 100+i),
			CorrectBank: "nubank",
		})
	}
	return samples
}

func interSamples(n int) []model.TrainingSample {
	samples := make([]model.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, model.TrainingSample{
			Text:        fmt.Sprintf("Banco Inter S.A.\nExtrato da conta\nSaldo R$ %d,00", 200+i),
			CorrectBank: "inter",
		})
	}
	return samples
}

func TestShouldAssist(t *testing.T) {
	a := New(0.70)

	tests := []struct {
		name           string
		ruleConfidence float64
		want           bool
	}{
		{name: "well below threshold", ruleConfidence: 0.2, want: true},
		{name: "just below threshold", ruleConfidence: 0.69, want: true},
		{name: "exactly at threshold", ruleConfidence: 0.70, want: false},
		{name: "above threshold", ruleConfidence: 0.95, want: false},
		{name: "zero confidence", ruleConfidence: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ShouldAssist(tt.ruleConfidence))
		})
	}
}

func TestAssistant_PredictWithoutModel(t *testing.T) {
	a := New(0)

	assert.False(t, a.Enabled())
	_, _, ok := a.Predict("nubank fatura")
	assert.False(t, ok)
}

func TestTrainFromFeedback_Floor(t *testing.T) {
	tests := []struct {
		name      string
		samples   []model.TrainingSample
		wantErr   bool
		wantBanks []string
	}{
		{
			name:      "exactly at floor trains",
			samples:   nubankSamples(MinSamplesPerBank),
			wantBanks: []string{"nubank"},
		},
		{
			name:    "one below floor fails",
			samples: nubankSamples(MinSamplesPerBank - 1),
			wantErr: true,
		},
		{
			name:      "mixed banks train only those at floor",
			samples:   append(nubankSamples(MinSamplesPerBank), interSamples(MinSamplesPerBank-1)...),
			wantBanks: []string{"nubank"},
		},
		{
			name:    "empty input fails",
			samples: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(0)
			result, err := a.TrainFromFeedback(tt.samples)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrInsufficientData)
				assert.False(t, a.Enabled(), "failed training must not publish a model")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBanks, result.TrainedBanks)
			assert.True(t, a.Enabled())
		})
	}
}

func TestTrainFromFeedback_SkipsBlankSamples(t *testing.T) {
	a := New(0)

	samples := nubankSamples(MinSamplesPerBank)
	samples = append(samples,
		model.TrainingSample{Text: "", CorrectBank: "nubank"},
		model.TrainingSample{Text: "texto sem banco", CorrectBank: ""},
	)

	result, err := a.TrainFromFeedback(samples)
	require.NoError(t, err)
	assert.Equal(t, MinSamplesPerBank, result.SamplesUsed)
}

func TestTrainFromFeedback_CarriesOverUntrainedBanks(t *testing.T) {
	a := New(0)

	_, err := a.TrainFromFeedback(nubankSamples(MinSamplesPerBank))
	require.NoError(t, err)

	// A later run with only inter data must keep the nubank weights.
	result, err := a.TrainFromFeedback(interSamples(MinSamplesPerBank))
	require.NoError(t, err)
	assert.Equal(t, []string{"inter"}, result.TrainedBanks)

	info := a.Info()
	assert.ElementsMatch(t, []string{"nubank", "inter"}, info["banks"])
}

func TestTrainFromFeedback_Idempotent(t *testing.T) {
	dir := t.TempDir()
	samples := nubankSamples(MinSamplesPerBank)

	weightsAfter := func(path string) map[string][]float64 {
		a := New(0)
		_, err := a.TrainFromFeedback(samples)
		require.NoError(t, err)
		require.NoError(t, a.Save(path))

		raw, err := os.ReadFile(path) // #nosec G304 -- test temp file
		require.NoError(t, err)
		var m Model
		require.NoError(t, json.Unmarshal(raw, &m))
		return m.Weights
	}

	first := weightsAfter(filepath.Join(dir, "a.json"))
	second := weightsAfter(filepath.Join(dir, "b.json"))
	assert.Equal(t, first, second)
}

func TestAssistant_PredictTrainedBank(t *testing.T) {
	a := New(0)

	samples := append(nubankSamples(MinSamplesPerBank), interSamples(MinSamplesPerBank)...)
	_, err := a.TrainFromFeedback(samples)
	require.NoError(t, err)

	bank, confidence, ok := a.Predict("NUBANK fatura do cartão\nOlá! Esta é a sua fatura\nTotal: R$ 150,00")
	require.True(t, ok)
	assert.Equal(t, "nubank", bank)
	assert.GreaterOrEqual(t, confidence, 0.5)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestAssistant_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")

	a := New(0)
	_, err := a.TrainFromFeedback(nubankSamples(MinSamplesPerBank))
	require.NoError(t, err)
	require.NoError(t, a.Save(path))

	b := New(0)
	require.NoError(t, b.Load(path))
	assert.True(t, b.Enabled())

	text := "NUBANK fatura Total: R$ 99,00"
	bankA, confA, okA := a.Predict(text)
	bankB, confB, okB := b.Predict(text)
	assert.Equal(t, okA, okB)
	assert.Equal(t, bankA, bankB)
	assert.InDelta(t, confA, confB, 1e-12)
}

func TestAssistant_SaveWithoutModel(t *testing.T) {
	a := New(0)
	err := a.Save(filepath.Join(t.TempDir(), "model.json"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures("NUBANK fatura\nCNPJ 18.236.120/0001-58\nTotal: R$ 1.234,56 em 10/10/2025")

	assert.Equal(t, 1.0, f[featHasNubank])
	assert.Equal(t, 1.0, f[featHasFatura])
	assert.Equal(t, 1.0, f[featHasCNPJ])
	assert.Equal(t, 1.0, f[featCurrencyCount])
	assert.Equal(t, 1.0, f[featValueCount])
	assert.Equal(t, 1.0, f[featDateCount])
	assert.Equal(t, 3.0, f[featNumLines])
	assert.Zero(t, f[featHasBradesco])
}
