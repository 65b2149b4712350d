package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/svgfit/svgfit/internal/optimize"
)

// Schema for the runs table, applied by Open.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	source TEXT NOT NULL,
	state TEXT NOT NULL,
	best_similarity REAL NOT NULL,
	iterations INTEGER NOT NULL,
	result BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// ErrNotFound reports a run ID with no archived row.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Record is one archived fitting run.
type Record struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	Source         string           `json:"source"`
	State          optimize.State   `json:"state"`
	BestSimilarity float64          `json:"best_similarity"`
	Iterations     int              `json:"iterations"`
	Result         *optimize.Result `json:"result,omitempty"`
}

// Store is a handle on one archive database. It is safe for concurrent use;
// the underlying pool serializes writers.
type Store struct {
	db *sql.DB
}

// Open opens the archive at path, creating the file and schema as needed.
// Use ":memory:" for an ephemeral archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a record and returns it as stored. An empty ID gets a fresh
// UUID; a zero CreatedAt gets the current time.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	blob, err := json.Marshal(rec.Result)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode result for run %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, state, best_similarity, iterations, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixMilli(), rec.Source, string(rec.State),
		rec.BestSimilarity, rec.Iterations, blob)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Get loads one run including its full result. A missing ID returns an error
// wrapping ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, state, best_similarity, iterations, result
		 FROM runs WHERE id = ?`, id)

	var (
		rec  Record
		ms   int64
		st   string
		blob []byte
	)
	err := row.Scan(&rec.ID, &ms, &rec.Source, &st, &rec.BestSimilarity, &rec.Iterations, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	rec.CreatedAt = time.UnixMilli(ms).UTC()
	rec.State = optimize.State(st)
	if err := json.Unmarshal(blob, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result for run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns run summaries, newest first. Result blobs are not loaded;
// fetch a single run with Get for the full history. A non-positive limit
// falls back to DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, source, state, best_similarity, iterations
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			ms  int64
			st  string
		)
		if err := rows.Scan(&rec.ID, &ms, &rec.Source, &st, &rec.BestSimilarity, &rec.Iterations); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(ms).UTC()
		rec.State = optimize.State(st)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}
