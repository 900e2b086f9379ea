package model

import (
	"encoding/json"
	"time"
)

// FeedbackRecord is one user correction. Rows are append-only; the only
// mutation ever applied is flipping Processed from false to true.
type FeedbackRecord struct {
	ID            int64           `json:"id"`
	DetectedBank  string          `json:"detected_bank,omitempty"`
	CorrectBank   string          `json:"correct_bank"`
	TextSample    string          `json:"text_sample"`
	Confidence    float64         `json:"confidence"`
	ExtractedData json.RawMessage `json:"extracted_data,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Processed     bool            `json:"processed"`
}

// BankFeedbackStats aggregates feedback volume and confidence per bank.
type BankFeedbackStats struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// TrainingSample is the slice of a feedback row the assistant trains on.
type TrainingSample struct {
	Text         string  `json:"text"`
	CorrectBank  string  `json:"correct_bank"`
	DetectedBank string  `json:"detected_bank,omitempty"`
	Confidence   float64 `json:"confidence"`
}
