package community

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fintext/fatura/internal/common"
	"github.com/fintext/fatura/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const templateSchema = `
CREATE TABLE IF NOT EXISTS templates (
	hash TEXT PRIMARY KEY,
	bank_key TEXT NOT NULL,
	display_name TEXT NOT NULL,
	cnpj TEXT NOT NULL,
	detection_patterns TEXT NOT NULL,
	extraction_patterns TEXT NOT NULL,
	author TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	reviewer TEXT,
	submitted_at DATETIME NOT NULL,
	approved_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status);
CREATE INDEX IF NOT EXISTS idx_templates_bank_key ON templates(bank_key);
`

// Store persists community templates in sqlite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the template database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("template store: empty database path")
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

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(templateSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) insert(ctx context.Context, t model.CommunityTemplate) error {
	detection, err := json.Marshal(t.DetectionPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode detection patterns: %w", err)
	}
	extraction, err := json.Marshal(t.ExtractionPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode extraction patterns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO templates
			(hash, bank_key, display_name, cnpj, detection_patterns, extraction_patterns,
			 author, description, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Hash, t.BankKey, t.DisplayName, t.CNPJ, string(detection), string(extraction),
		t.Author, t.Description, string(t.Status), t.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

func (s *Store) getByHash(ctx context.Context, hash string) (*model.CommunityTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, bank_key, display_name, cnpj, detection_patterns, extraction_patterns,
		       author, description, status, reviewer, submitted_at, approved_at
		FROM templates WHERE hash = ?`, hash)

	t, err := scanTemplate(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return t, nil
}

// approve flips a pending template to approved. Returns false when the row
// was not pending (already approved), leaving it untouched.
func (s *Store) approve(ctx context.Context, hash, reviewer string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET status = ?, reviewer = ?, approved_at = ?
		WHERE hash = ? AND status = ?`,
		string(model.TemplateApproved), reviewer, at, hash, string(model.TemplatePending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve template: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read approval result: %w", err)
	}
	return n > 0, nil
}

func (s *Store) listByStatus(ctx context.Context, status model.TemplateStatus) ([]model.CommunityTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, bank_key, display_name, cnpj, detection_patterns, extraction_patterns,
		       author, description, status, reviewer, submitted_at, approved_at
		FROM templates WHERE status = ? ORDER BY submitted_at, hash`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []model.CommunityTemplate
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func scanTemplate(scan func(...any) error) (*model.CommunityTemplate, error) {
	var t model.CommunityTemplate
	var detection, extraction string
	var description, reviewer sql.NullString
	var status string
	var approvedAt sql.NullTime

	err := scan(&t.Hash, &t.BankKey, &t.DisplayName, &t.CNPJ, &detection, &extraction,
		&t.Author, &description, &status, &reviewer, &t.SubmittedAt, &approvedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(detection), &t.DetectionPatterns); err != nil {
		return nil, fmt.Errorf("corrupt detection patterns: %w", err)
	}
	if err := json.Unmarshal([]byte(extraction), &t.ExtractionPatterns); err != nil {
		return nil, fmt.Errorf("corrupt extraction patterns: %w", err)
	}

	t.Description = description.String
	t.Reviewer = reviewer.String
	t.Status = model.TemplateStatus(status)
	if approvedAt.Valid {
		at := approvedAt.Time
		t.ApprovedAt = &at
	}
	return &t, nil
}
