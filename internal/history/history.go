// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of every conversion attempt. The
// milker consults it to tell whether an existing output came from the same
// source bytes.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/milkbottle/pkg/types"
)

// DBFile is the ledger file name under the output directory.
const DBFile = "history.db"

const defaultLimit = 50

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded conversion attempt.
type Entry struct {
	ID           string                 `json:"id" yaml:"id"`
	SourcePath   string                 `json:"source_path" yaml:"source_path"`
	SourceSHA256 string                 `json:"source_sha256,omitempty" yaml:"source_sha256,omitempty"`
	Slug         string                 `json:"slug" yaml:"slug"`
	Backend      string                 `json:"backend,omitempty" yaml:"backend,omitempty"`
	Status       types.ConversionStatus `json:"status" yaml:"status"`
	QualityScore float64                `json:"quality_score" yaml:"quality_score"`
	QualityGrade types.QualityGrade     `json:"quality_grade,omitempty" yaml:"quality_grade,omitempty"`
	Pages        int                    `json:"pages" yaml:"pages"`
	OutputPath   string                 `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	Error        string                 `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time              `json:"started_at" yaml:"started_at"`
	Duration     time.Duration          `json:"duration" yaml:"duration"`
}

// Filter narrows List results.
type Filter struct {
	// Status keeps only entries with this status when set.
	Status types.ConversionStatus
	// Limit caps the number of entries (default 50).
	Limit int
}

// Store is the SQLite-backed ledger. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// Batch workers record concurrently; one connection serialises writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			source_sha256 TEXT,
			slug TEXT NOT NULL,
			backend TEXT,
			status TEXT NOT NULL,
			quality_score REAL,
			quality_grade TEXT,
			pages INTEGER,
			output_path TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_source ON conversions(source_path, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts e. An empty ID is filled with a new UUID and a zero
// StartedAt with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, source_path, source_sha256, slug, backend, status,
			quality_score, quality_grade, pages, output_path, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourcePath, e.SourceSHA256, e.Slug, e.Backend, string(e.Status),
		e.QualityScore, string(e.QualityGrade), e.Pages, e.OutputPath, e.Error,
		e.StartedAt.UTC().Format(timeLayout), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording conversion of %s: %w", e.SourcePath, err)
	}
	return nil
}

const selectColumns = `SELECT id, source_path, source_sha256, slug, backend, status,
	quality_score, quality_grade, pages, output_path, error, started_at, duration_ms
	FROM conversions`

// Latest returns the most recent entry for sourcePath, or nil when the
// file was never recorded.
func (s *Store) Latest(ctx context.Context, sourcePath string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE source_path = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		sourcePath,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", sourcePath, err)
	}
	return e, nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(selectColumns)
	if f.Status != "" {
		qb.WriteString(` WHERE status = ?`)
		args = append(args, string(f.Status))
	}
	qb.WriteString(` ORDER BY started_at DESC, rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e                   Entry
		status, startedAt   string
		sha, backend, grade sql.NullString
		output, errText     sql.NullString
		score               sql.NullFloat64
		pages, durationMs   sql.NullInt64
	)
	if err := sc.Scan(&e.ID, &e.SourcePath, &sha, &e.Slug, &backend, &status,
		&score, &grade, &pages, &output, &errText, &startedAt, &durationMs); err != nil {
		return nil, err
	}
	e.Status = types.ConversionStatus(status)
	e.SourceSHA256 = sha.String
	e.Backend = backend.String
	e.QualityScore = score.Float64
	e.QualityGrade = types.QualityGrade(grade.String)
	e.Pages = int(pages.Int64)
	e.OutputPath = output.String
	e.Error = errText.String
	e.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	if t, err := time.Parse(timeLayout, startedAt); err == nil {
		e.StartedAt = t
	}
	return &e, nil
}

// FileSHA256 returns the hex SHA-256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
