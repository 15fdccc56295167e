package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

const (
	busyTimeout = 5 * time.Second

	// SQLite-native timestamp format, always UTC. Millisecond precision,
	// lexicographic order equals chronological order.
	timeLayout = "2006-01-02 15:04:05.999"
)

// sentinels used in place of unbounded query endpoints.
var (
	queryMin = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	queryMax = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// FileEntry is a row of the segment index.
type FileEntry struct {
	ID       string    // file name, extension included
	Start    time.Time // wall-clock start, UTC
	Duration float64   // seconds
}

// Index is the durable index of recorded segments.
// A single serialized connection is shared between the ingest loop
// (writer) and the HTTP handlers (readers).
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index database at the given path.
func OpenIndex(path string) (*Index, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds())
	return openIndex(dsn)
}

// OpenMemoryIndex opens a private in-memory index.
func OpenMemoryIndex() (*Index, error) {
	return openIndex("file::memory:")
}

func openIndex(dsn string) (*Index, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open failed: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ix := &Index{db: db}
	if err := ix.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: migration failed: %w", err)
	}

	return ix, nil
}

func (ix *Index) migrate() error {
	_, err := ix.db.Exec(`
	CREATE TABLE IF NOT EXISTS video_files (
		file_id   TEXT,
		start_time DATETIME,
		duration  REAL
	)`)
	return err
}

// Append inserts a row for a finalized segment. Rows are never updated
// or deleted; id uniqueness is guaranteed by the recorder's monotonic
// naming, not by the schema.
func (ix *Index) Append(ctx context.Context, e FileEntry) error {
	_, err := ix.db.ExecContext(ctx,
		"INSERT INTO video_files (file_id, start_time, duration) VALUES (?1, ?2, ?3)",
		e.ID, e.Start.UTC().Format(timeLayout), e.Duration)
	return err
}

// Query returns all rows whose start time falls in [start, end], both
// inclusive, ordered by start time. A zero endpoint means unbounded.
func (ix *Index) Query(ctx context.Context, start, end time.Time) ([]FileEntry, error) {
	if start.IsZero() {
		start = queryMin
	}
	if end.IsZero() {
		end = queryMax
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT file_id, start_time, duration FROM video_files
		WHERE datetime(start_time) BETWEEN datetime(?1) AND datetime(?2)
		ORDER BY start_time`,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []FileEntry

	for rows.Next() {
		var e FileEntry
		var rawStart string
		if err := rows.Scan(&e.ID, &rawStart, &e.Duration); err != nil {
			return nil, err
		}

		e.Start, err = time.Parse(timeLayout, rawStart)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the index.
func (ix *Index) Close() error {
	return ix.db.Close()
}
