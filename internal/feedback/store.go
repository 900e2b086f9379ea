// Package feedback is the durable log of user corrections. Rows are
// append-only: the only mutation is flipping processed from 0 to 1 after a
// retraining run consumed the row.
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fintext/fatura/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// maxSampleLen is the cap applied to text samples before storing; the first
// 500 characters are enough to retrain bank detection.
const maxSampleLen = 500

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	detected_bank TEXT,
	correct_bank TEXT NOT NULL,
	text_sample TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	extracted_data TEXT,
	created_at DATETIME NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_feedback_correct_bank ON feedback(correct_bank);
CREATE INDEX IF NOT EXISTS idx_feedback_processed ON feedback(processed);
`

// Store is the sqlite-backed feedback log.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the feedback database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("feedback store: empty database path")
	}

	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, ":memory:") {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single writer
	// keeps concurrent submits serialized without lost rows.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Submit appends one correction and returns its id. The text sample is
// truncated to 500 characters before storing.
func (s *Store) Submit(ctx context.Context, detectedBank, correctBank, textSample string, confidence float64, extracted json.RawMessage) (int64, error) {
	if correctBank == "" {
		return 0, fmt.Errorf("feedback submit: correct_bank is required")
	}

	runes := []rune(textSample)
	if len(runes) > maxSampleLen {
		textSample = string(runes[:maxSampleLen])
	}

	var extractedStr any
	if len(extracted) > 0 {
		extractedStr = string(extracted)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (detected_bank, correct_bank, text_sample, confidence, extracted_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullable(detectedBank), correctBank, textSample, confidence, extractedStr, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read feedback id: %w", err)
	}
	return id, nil
}

// Unprocessed returns rows not yet consumed by retraining, newest first.
// A non-positive limit returns everything.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]model.FeedbackRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats a negative limit as unbounded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detected_bank, correct_bank, text_sample, confidence, extracted_data, created_at, processed
		FROM feedback
		WHERE processed = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// MarkProcessed flips the given rows to processed. Already-processed ids are
// left as they are, making the call idempotent.
func (s *Store) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE feedback SET processed = 1 WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to mark feedback processed: %w", err)
	}
	return nil
}

// StatsByBank aggregates volume and average confidence per correct bank.
func (s *Store) StatsByBank(ctx context.Context) (map[string]model.BankFeedbackStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT correct_bank, COUNT(*), AVG(confidence)
		FROM feedback
		GROUP BY correct_bank`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]model.BankFeedbackStats)
	for rows.Next() {
		var bank string
		var count int
		var avg sql.NullFloat64
		if err := rows.Scan(&bank, &count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats: %w", err)
		}
		stats[bank] = model.BankFeedbackStats{Count: count, AvgConfidence: avg.Float64}
	}
	return stats, rows.Err()
}

// ProblematicCases returns corrections whose original detection confidence
// was below the threshold, weakest first.
func (s *Store) ProblematicCases(ctx context.Context, maxConfidence float64) ([]model.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detected_bank, correct_bank, text_sample, confidence, extracted_data, created_at, processed
		FROM feedback
		WHERE confidence < ?
		ORDER BY confidence ASC
		LIMIT 50`, maxConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query problematic cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// ExportTrainingData snapshots every unprocessed correction as training
// samples for the assistant.
func (s *Store) ExportTrainingData(ctx context.Context) ([]model.TrainingSample, error) {
	records, err := s.Unprocessed(ctx, 10000)
	if err != nil {
		return nil, err
	}

	samples := make([]model.TrainingSample, 0, len(records))
	for _, r := range records {
		if r.CorrectBank == "" {
			continue
		}
		samples = append(samples, model.TrainingSample{
			Text:         r.TextSample,
			CorrectBank:  r.CorrectBank,
			DetectedBank: r.DetectedBank,
			Confidence:   r.Confidence,
		})
	}
	return samples, nil
}

func scanRecords(rows *sql.Rows) ([]model.FeedbackRecord, error) {
	var records []model.FeedbackRecord
	for rows.Next() {
		var r model.FeedbackRecord
		var detected, extracted sql.NullString
		var processed int
		if err := rows.Scan(&r.ID, &detected, &r.CorrectBank, &r.TextSample, &r.Confidence, &extracted, &r.Timestamp, &processed); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		r.DetectedBank = detected.String
		if extracted.Valid {
			r.ExtractedData = json.RawMessage(extracted.String)
		}
		r.Processed = processed != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
