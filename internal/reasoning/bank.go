// Package reasoning persists what the reviewer fleet learns across
// evaluations. Every judged evaluation reinforces or weakens patterns keyed
// by code signature and issue category, and retrieval surfaces the relevant
// ones before the next review.
package reasoning

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Bank is the SQLite-backed pattern store. All methods are safe for
// concurrent use from a single process; cross-process safety comes from
// SQLite's own locking plus busy_timeout.
type Bank struct {
	mu  sync.Mutex
	db  *sql.DB
	cfg config.ReasoningConfig
	log *logger.ConsoleLogger
}

// NewBank opens (or creates) the bank database at cfg.DBPath and applies
// the schema. ":memory:" is accepted for tests.
func NewBank(cfg config.ReasoningConfig, log *logger.ConsoleLogger) (*Bank, error) {
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, models.ReasoningError("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, models.ReasoningError("open database", err)
	}

	// busy_timeout must come first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, models.ReasoningError("set "+pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, models.ReasoningError("init schema", err)
	}

	return &Bank{db: db, cfg: cfg, log: log}, nil
}

// execWithRetry retries a statement with exponential backoff on
// "database is locked" errors, which can occur when two processes
// initialize the same database file.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the underlying database.
func (b *Bank) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

const patternColumns = `id, pattern_type, code_signature, language, issue_category,
	description, solution, success_count, failure_count, confidence, last_seen, created_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (models.Pattern, error) {
	var p models.Pattern
	var patternType string
	var solution sql.NullString
	var lastSeen, createdAt string

	err := row.Scan(
		&p.ID,
		&patternType,
		&p.CodeSignature,
		&p.Language,
		&p.IssueCategory,
		&p.Description,
		&solution,
		&p.SuccessCount,
		&p.FailureCount,
		&p.Confidence,
		&lastSeen,
		&createdAt,
	)
	if err != nil {
		return models.Pattern{}, err
	}

	p.Type = models.ParsePatternType(patternType)
	if solution.Valid {
		p.Solution = solution.String
	}
	p.LastSeen = parseStoredTime(lastSeen)
	p.CreatedAt = parseStoredTime(createdAt)
	return p, nil
}

// parseStoredTime accepts both RFC3339 (written by this code) and SQLite's
// datetime('now') format (written by column defaults).
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

// AllPatterns returns every stored pattern, oldest first.
func (b *Bank) AllPatterns() ([]models.Pattern, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allPatternsLocked()
}

func (b *Bank) allPatternsLocked() ([]models.Pattern, error) {
	rows, err := b.db.Query(`SELECT ` + patternColumns + ` FROM patterns ORDER BY id ASC`)
	if err != nil {
		return nil, models.ReasoningError("query patterns", err)
	}
	defer rows.Close()

	var patterns []models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, models.ReasoningError("scan pattern", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.ReasoningError("iterate patterns", err)
	}
	return patterns, nil
}

// findPatternLocked fetches one pattern by its natural key.
func (b *Bank) findPatternLocked(signature, category string) (*models.Pattern, error) {
	row := b.db.QueryRow(
		`SELECT `+patternColumns+` FROM patterns WHERE code_signature = ? AND issue_category = ?`,
		signature, category,
	)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, models.ReasoningError("query pattern", err)
	}
	return &p, nil
}

// CountPatterns returns the number of stored patterns.
func (b *Bank) CountPatterns() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return 0, models.ReasoningError("count patterns", err)
	}
	return n, nil
}

// CountTrajectories returns the number of recorded trajectories.
func (b *Bank) CountTrajectories() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countTrajectoriesLocked()
}

func (b *Bank) countTrajectoriesLocked() (int, error) {
	var n int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM trajectories`).Scan(&n); err != nil {
		return 0, models.ReasoningError("count trajectories", err)
	}
	return n, nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}
