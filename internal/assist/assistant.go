// Package assist is the confidence assistant: a transparent, feature-based
// scorer that only intervenes when rule-based detection reports low
// confidence. The model is a per-bank weight vector serialized as data,
// never executable code.
package assist

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/model"
)

const (
	// DefaultAssistThreshold is the rule confidence below which the
	// assistant may act.
	DefaultAssistThreshold = 0.70

	// MinSamplesPerBank is the training floor: banks with fewer samples are
	// skipped and their weights left untouched.
	MinSamplesPerBank = 10

	// minPredictionConfidence gates predictions; weaker ones are dropped.
	minPredictionConfidence = 0.5

	modelVersion = "1.0"
)

// Model is the trained artifact: one weight vector per bank. It is published
// as an immutable snapshot; retraining swaps the whole structure atomically.
type Model struct {
	Version    string               `json:"version"`
	TrainedAt  time.Time            `json:"trained_at"`
	NumSamples int                  `json:"num_samples"`
	Weights    map[string][]float64 `json:"weights"`
}

// Assistant scores documents against per-bank weight vectors. Reads are
// lock-free; training publishes a new snapshot.
type Assistant struct {
	snapshot  atomic.Pointer[Model]
	threshold float64
}

// New creates an assistant with no model loaded. threshold <= 0 selects the
// default.
func New(threshold float64) *Assistant {
	if threshold <= 0 {
		threshold = DefaultAssistThreshold
	}
	return &Assistant{threshold: threshold}
}

// ShouldAssist reports whether the assistant may act for the given
// rule-based confidence. This is the hard gating invariant: the assistant is
// never consulted when rule confidence meets the threshold.
func (a *Assistant) ShouldAssist(ruleConfidence float64) bool {
	return ruleConfidence < a.threshold
}

// Enabled reports whether a trained model is loaded.
func (a *Assistant) Enabled() bool {
	return a.snapshot.Load() != nil
}

// Predict scores the text against every bank's weight vector and returns the
// best bank with a squashed [0,1] confidence. ok is false when no model is
// loaded or no prediction clears the minimum confidence.
func (a *Assistant) Predict(text string) (bankKey string, confidence float64, ok bool) {
	m := a.snapshot.Load()
	if m == nil || len(m.Weights) == 0 {
		return "", 0, false
	}

	features := ExtractFeatures(text)

	bestBank := ""
	bestScore := math.Inf(-1)
	// Iterate banks in sorted order so equal scores resolve the same way
	// every call.
	banks := make([]string, 0, len(m.Weights))
	for bank := range m.Weights {
		banks = append(banks, bank)
	}
	sort.Strings(banks)

	for _, bank := range banks {
		weights := m.Weights[bank]
		score := 0.0
		for i := 0; i < NumFeatures && i < len(weights); i++ {
			score += features[i] * weights[i]
		}
		if score > bestScore {
			bestScore = score
			bestBank = bank
		}
	}

	confidence = sigmoid(bestScore)
	if bestBank == "" || confidence < minPredictionConfidence {
		return "", 0, false
	}
	return bestBank, confidence, true
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// TrainResult reports what a training run did per bank.
type TrainResult struct {
	Insufficient map[string]int `json:"insufficient,omitempty"`
	TrainedBanks []string       `json:"trained_banks"`
	SamplesUsed  int            `json:"samples_used"`
}

// TrainFromFeedback derives a new weight vector per bank as the mean feature
// vector of that bank's samples. Banks below the floor are reported in
// Insufficient and keep their existing weights. When no bank reaches the
// floor the current model is left entirely untouched and
// common.ErrInsufficientData is returned.
//
// Training is idempotent: re-running against the same samples derives the
// same weights.
func (a *Assistant) TrainFromFeedback(samples []model.TrainingSample) (TrainResult, error) {
	byBank := make(map[string][][NumFeatures]float64)
	for _, s := range samples {
		if s.CorrectBank == "" || s.Text == "" {
			continue
		}
		byBank[s.CorrectBank] = append(byBank[s.CorrectBank], ExtractFeatures(s.Text))
	}

	result := TrainResult{Insufficient: make(map[string]int)}
	newWeights := make(map[string][]float64)

	for bank, vectors := range byBank {
		if len(vectors) < MinSamplesPerBank {
			result.Insufficient[bank] = len(vectors)
			continue
		}

		mean := make([]float64, NumFeatures)
		for _, v := range vectors {
			for i := range v {
				mean[i] += v[i]
			}
		}
		for i := range mean {
			mean[i] /= float64(len(vectors))
		}

		newWeights[bank] = mean
		result.TrainedBanks = append(result.TrainedBanks, bank)
		result.SamplesUsed += len(vectors)
	}
	sort.Strings(result.TrainedBanks)

	if len(result.TrainedBanks) == 0 {
		return result, fmt.Errorf("no bank reached %d samples: %w", MinSamplesPerBank, common.ErrInsufficientData)
	}

	// Carry over weights for banks this run could not retrain.
	if old := a.snapshot.Load(); old != nil {
		for bank, weights := range old.Weights {
			if _, retrained := newWeights[bank]; !retrained {
				newWeights[bank] = weights
			}
		}
	}

	a.snapshot.Store(&Model{
		Version:    modelVersion,
		TrainedAt:  time.Now().UTC(),
		NumSamples: result.SamplesUsed,
		Weights:    newWeights,
	})

	return result, nil
}

// Info summarizes the loaded model.
func (a *Assistant) Info() map[string]any {
	m := a.snapshot.Load()
	if m == nil {
		return map[string]any{"enabled": false}
	}

	banks := make([]string, 0, len(m.Weights))
	for bank := range m.Weights {
		banks = append(banks, bank)
	}
	sort.Strings(banks)

	return map[string]any{
		"enabled":     true,
		"version":     m.Version,
		"trained_at":  m.TrainedAt,
		"num_samples": m.NumSamples,
		"banks":       banks,
	}
}

// Save writes the model artifact as JSON.
func (a *Assistant) Save(path string) error {
	m := a.snapshot.Load()
	if m == nil {
		return fmt.Errorf("no model to save: %w", common.ErrNotFound)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Load reads a model artifact from disk and publishes it. The artifact is
// plain data; nothing in it is ever executed.
func (a *Assistant) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}

	a.snapshot.Store(&m)
	return nil
}
