// Package ledger records generated transfers in SQLite so repeated runs can skip
// titles that were already processed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	memoryPath         = ":memory:"
	connectionPragmas  = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	directoryMode      = 0o755
	placeholder        = "?"

	schema = `
CREATE TABLE IF NOT EXISTS transfers (
	source_title      TEXT NOT NULL,
	destination_title TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	description       TEXT NOT NULL,
	generated_at      INTEGER NOT NULL,
	PRIMARY KEY (source_title, run_id)
);
CREATE INDEX IF NOT EXISTS transfers_run_id ON transfers (run_id);
`

	insertStatement = `INSERT OR REPLACE INTO transfers
	(source_title, destination_title, run_id, description, generated_at)
	VALUES (?, ?, ?, ?, ?)`
	seenStatementFormat = `SELECT DISTINCT source_title FROM transfers WHERE source_title IN (%s)`
	runStatement        = `SELECT source_title, destination_title, run_id, description, generated_at
	FROM transfers WHERE run_id = ? ORDER BY generated_at, source_title`

	openErrorFormat   = "ledger: open %s: %w"
	schemaErrorFormat = "ledger: apply schema: %w"
	recordErrorFormat = "ledger: record %s: %w"
	seenErrorFormat   = "ledger: query seen titles: %w"
	runErrorFormat    = "ledger: query run %s: %w"
)

// ErrEmptyRunID reports an entry recorded without a run identifier.
var ErrEmptyRunID = errors.New("run id is required")

// Entry is one generated description.
type Entry struct {
	SourceTitle      string
	DestinationTitle string
	RunID            string
	Description      string
	GeneratedAt      time.Time
}

// Ledger stores entries in an SQLite database.
type Ledger struct {
	database *sql.DB
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunID returns a fresh identifier for one batch of transfers.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens or creates the ledger at path. The path ":memory:" keeps the ledger in memory.
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != memoryPath {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), directoryMode); mkdirErr != nil {
			return nil, fmt.Errorf(openErrorFormat, path, mkdirErr)
		}
	}
	// pragmas go in the DSN so every pooled connection gets them
	database, openErr := sql.Open(driverName, path+connectionPragmas)
	if openErr != nil {
		return nil, fmt.Errorf(openErrorFormat, path, openErr)
	}
	if path == memoryPath {
		database.SetMaxOpenConns(1)
	}
	if _, schemaErr := database.Exec(schema); schemaErr != nil {
		database.Close()
		return nil, fmt.Errorf(schemaErrorFormat, schemaErr)
	}
	logger.Debug("ledger opened", zap.String("path", path))
	return &Ledger{database: database, logger: logger, now: time.Now}, nil
}

// Close releases the database.
func (ledger *Ledger) Close() error {
	return ledger.database.Close()
}

// Record stores entry. A zero GeneratedAt is set to the current time.
func (ledger *Ledger) Record(ctx context.Context, entry Entry) error {
	if entry.RunID == "" {
		return fmt.Errorf(recordErrorFormat, entry.SourceTitle, ErrEmptyRunID)
	}
	if entry.GeneratedAt.IsZero() {
		entry.GeneratedAt = ledger.now()
	}
	_, execErr := ledger.database.ExecContext(ctx, insertStatement,
		entry.SourceTitle, entry.DestinationTitle, entry.RunID, entry.Description, entry.GeneratedAt.UnixMilli())
	if execErr != nil {
		return fmt.Errorf(recordErrorFormat, entry.SourceTitle, execErr)
	}
	return nil
}

// Seen returns the subset of titles recorded by any earlier run.
func (ledger *Ledger) Seen(ctx context.Context, titles []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(titles))
	if len(titles) == 0 {
		return seen, nil
	}
	placeholders := make([]string, len(titles))
	arguments := make([]any, len(titles))
	for index, title := range titles {
		placeholders[index] = placeholder
		arguments[index] = title
	}
	rows, queryErr := ledger.database.QueryContext(ctx, fmt.Sprintf(seenStatementFormat, strings.Join(placeholders, ",")), arguments...)
	if queryErr != nil {
		return nil, fmt.Errorf(seenErrorFormat, queryErr)
	}
	defer rows.Close()
	for rows.Next() {
		var title string
		if scanErr := rows.Scan(&title); scanErr != nil {
			return nil, fmt.Errorf(seenErrorFormat, scanErr)
		}
		seen[title] = true
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf(seenErrorFormat, rowsErr)
	}
	return seen, nil
}

// Run returns the entries recorded under runID, oldest first.
func (ledger *Ledger) Run(ctx context.Context, runID string) ([]Entry, error) {
	rows, queryErr := ledger.database.QueryContext(ctx, runStatement, runID)
	if queryErr != nil {
		return nil, fmt.Errorf(runErrorFormat, runID, queryErr)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var generatedAt int64
		if scanErr := rows.Scan(&entry.SourceTitle, &entry.DestinationTitle, &entry.RunID, &entry.Description, &generatedAt); scanErr != nil {
			return nil, fmt.Errorf(runErrorFormat, runID, scanErr)
		}
		entry.GeneratedAt = time.UnixMilli(generatedAt).UTC()
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf(runErrorFormat, runID, rowsErr)
	}
	return entries, nil
}
