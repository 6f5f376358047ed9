package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scantpaper/internal/model"
)

// FileName is the database file inside a session directory.
const FileName = "session.db"

// ErrNotFound is returned by Open when CreateIfNotExists is false and the
// directory holds no database.
var ErrNotFound = errors.New("session database not found")

// Store is the SQLite store of one session.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	// Restoring a session sets it to false.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dir.
func Open(dir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	-- The document list, one row per page in display order
	CREATE TABLE IF NOT EXISTS pages (
		uuid TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		version INTEGER NOT NULL,
		image_path TEXT NOT NULL,
		page_json TEXT NOT NULL,
		updated DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_position ON pages(position);

	-- Every submitted job and how it ended
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		op TEXT NOT NULL,
		state TEXT NOT NULL,
		pages INTEGER DEFAULT 0,
		output TEXT,
		error TEXT,
		submitted DATETIME NOT NULL,
		finished DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_submitted ON jobs(submitted);
	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// SavePages replaces the stored document list with pages, in order.
func (s *Store) SavePages(ctx context.Context, pages []model.Page) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM pages"); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (uuid, position, version, image_path, page_json)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range pages {
		pageJSON, jerr := json.Marshal(p)
		if jerr != nil {
			err = fmt.Errorf("failed to serialize page %s: %w", p.UUID, jerr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, p.UUID.String(), i, p.Version, p.ImagePath, string(pageJSON)); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.UUID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pages: %w", err)
	}
	return nil
}

// LoadPages returns the stored document list in order.
func (s *Store) LoadPages(ctx context.Context) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT page_json FROM pages ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var pageJSON string
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		var p model.Page
		if err := json.Unmarshal([]byte(pageJSON), &p); err != nil {
			return nil, fmt.Errorf("failed to parse page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// JobRecord is one row of the job log.
type JobRecord struct {
	ID        string
	Op        string
	State     string
	Pages     int
	Output    string
	Error     string
	Submitted time.Time

	// Finished is zero while the job has not reached a terminal state.
	Finished time.Time
}

// Duration is how long the job took from submission to its end.
func (r JobRecord) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Submitted)
}

// RecordJob inserts a job or updates it when it changes state.
func (s *Store) RecordJob(ctx context.Context, r *JobRecord) error {
	query := `
	INSERT INTO jobs (id, op, state, pages, output, error, submitted, finished)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		output = excluded.output,
		error = excluded.error,
		finished = excluded.finished
	`

	var finished sql.NullString
	if !r.Finished.IsZero() {
		finished = sql.NullString{String: formatTimestamp(r.Finished), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Op,
		r.State,
		r.Pages,
		r.Output,
		r.Error,
		formatTimestamp(r.Submitted),
		finished,
	)
	if err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}
	return nil
}

// Jobs returns the job log in submission order.
func (s *Store) Jobs(ctx context.Context) ([]JobRecord, error) {
	query := `
	SELECT id, op, state, pages, output, error, submitted, finished
	FROM jobs
	ORDER BY submitted, rowid
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var results []JobRecord
	for rows.Next() {
		var (
			r               JobRecord
			output, errText sql.NullString
			submitted       string
			finished        sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Op, &r.State, &r.Pages, &output, &errText, &submitted, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		r.Output = output.String
		r.Error = errText.String
		r.Submitted = parseTimestamp(submitted)
		if finished.Valid {
			r.Finished = parseTimestamp(finished.String)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// JobSummary counts jobs by state.
func (s *Store) JobSummary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM jobs GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to summarize jobs: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job summary: %w", err)
		}
		summary[state] = count
	}
	return summary, rows.Err()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries each known format and returns the zero time if none
// matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
