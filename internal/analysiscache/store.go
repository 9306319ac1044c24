package analysiscache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"librarian/internal/logging"
	"librarian/internal/media"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever the table layout changes. A database with a
// different version is rebuilt, since its contents can always be re-probed.
const schemaVersion = 1

// payloadVersion guards the JSON stored per row.
const payloadVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Entry is one cached analysis.
type Entry struct {
	Path           string
	ModTime        time.Time
	Size           int64
	Status         media.Status
	Attributes     media.Attributes
	Classification media.Classification
	UpdatedAt      time.Time
}

// Matches reports whether the entry is still valid for a file with the given
// modification time and size.
func (e Entry) Matches(modTime time.Time, size int64) bool {
	return e.ModTime.UnixNano() == modTime.UnixNano() && e.Size == size
}

type payload struct {
	Version        int                  `json:"v"`
	Attributes     media.Attributes     `json:"attributes"`
	Classification media.Classification `json:"classification"`
}

// Store is the SQLite-backed analysis cache.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]Entry
}

// Open creates or opens the cache database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("analysis cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:      db,
		path:    path,
		logger:  logging.NewComponentLogger(logger, "analysis-cache"),
		pending: make(map[string]Entry),
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	flushErr := s.Flush(context.Background())
	closeErr := s.db.Close()
	return errors.Join(flushErr, closeErr)
}

// Get returns the cached entry for path when it matches the live file's
// modification time and size. A stale entry is deleted. Read failures and
// undecodable rows are logged and reported as a miss.
func (s *Store) Get(ctx context.Context, path string, modTime time.Time, size int64) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}

	s.mu.Lock()
	entry, ok := s.pending[path]
	s.mu.Unlock()
	if ok {
		if entry.Matches(modTime, size) {
			return entry, true
		}
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
	}

	entry, found, err := s.load(ctx, path)
	if err != nil {
		logging.WarnWithContext(s.logger, "analysis cache read failed; treating as miss",
			"cache_read_failed", "file will be re-probed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
		)
		if errors.Is(err, errCorruptEntry) {
			s.Invalidate(ctx, path)
		}
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}
	if !entry.Matches(modTime, size) {
		s.logger.Debug("analysis cache entry stale",
			logging.String(logging.FieldPath, path),
			logging.Int64("cached_size", entry.Size),
			logging.Int64("live_size", size),
		)
		s.Invalidate(ctx, path)
		return Entry{}, false
	}
	return entry, true
}

var errCorruptEntry = errors.New("corrupt cache entry")

func (s *Store) load(ctx context.Context, path string) (Entry, bool, error) {
	var (
		mtimeNS   int64
		size      int64
		status    string
		raw       string
		updatedAt string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT mtime_ns, size, status, payload, updated_at FROM analysis_entries WHERE path = ?`, path)
	if err := row.Scan(&mtimeNS, &size, &status, &raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("query entry: %w", err)
	}
	entry, err := decodeEntry(path, mtimeNS, size, status, raw, updatedAt)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func decodeEntry(path string, mtimeNS, size int64, status, raw, updatedAt string) (Entry, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	if p.Version != payloadVersion {
		return Entry{}, fmt.Errorf("%w: payload version %d, expected %d", errCorruptEntry, p.Version, payloadVersion)
	}
	if _, ok := media.ParseCategory(string(p.Classification.Category)); !ok {
		return Entry{}, fmt.Errorf("%w: unknown category %q", errCorruptEntry, p.Classification.Category)
	}
	parsedStatus, ok := media.ParseStatus(status)
	if !ok {
		return Entry{}, fmt.Errorf("%w: unknown status %q", errCorruptEntry, status)
	}
	entry := Entry{
		Path:           path,
		ModTime:        time.Unix(0, mtimeNS),
		Size:           size,
		Status:         parsedStatus,
		Attributes:     p.Attributes,
		Classification: p.Classification,
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		entry.UpdatedAt = ts
	}
	return entry, nil
}

// Put buffers an entry for the next Flush.
func (s *Store) Put(entry Entry) {
	if s == nil || entry.Path == "" {
		return
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.pending[entry.Path] = entry
	s.mu.Unlock()
}

// PutRecord buffers the current state of a probed record.
func (s *Store) PutRecord(rec *media.Record) {
	if s == nil || rec == nil {
		return
	}
	view := rec.View()
	s.Put(Entry{
		Path:           view.Path,
		ModTime:        view.ModTime,
		Size:           view.Size,
		Status:         view.Status,
		Attributes:     view.Attributes,
		Classification: view.Classification,
	})
}

// Flush commits buffered entries in one transaction. On failure the entries
// stay buffered for a later attempt.
func (s *Store) Flush(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	batch := make([]Entry, 0, len(s.pending))
	for _, entry := range s.pending {
		batch = append(batch, entry)
	}
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	err := retryOnBusy(ctx, func() error {
		return s.writeBatch(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("flush analysis cache: %w", err)
	}

	s.mu.Lock()
	for _, entry := range batch {
		if current, ok := s.pending[entry.Path]; ok && current.UpdatedAt.Equal(entry.UpdatedAt) {
			delete(s.pending, entry.Path)
		}
	}
	s.mu.Unlock()
	s.logger.Debug("analysis cache flushed", logging.Int("entries", len(batch)))
	return nil
}

func (s *Store) writeBatch(ctx context.Context, batch []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO analysis_entries (path, mtime_ns, size, status, payload, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            mtime_ns = excluded.mtime_ns,
            size = excluded.size,
            status = excluded.status,
            payload = excluded.payload,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range batch {
		raw, err := json.Marshal(payload{
			Version:        payloadVersion,
			Attributes:     entry.Attributes,
			Classification: entry.Classification,
		})
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", entry.Path, err)
		}
		status := entry.Status
		if status == "" {
			status = media.StatusUnknown
		}
		if _, err := stmt.ExecContext(ctx,
			entry.Path,
			entry.ModTime.UnixNano(),
			entry.Size,
			string(status),
			string(raw),
			entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", entry.Path, err)
		}
	}
	return tx.Commit()
}

// Invalidate removes any cached entry for path.
func (s *Store) Invalidate(ctx context.Context, path string) {
	if s == nil || s.db == nil {
		return
	}
	s.mu.Lock()
	delete(s.pending, path)
	s.mu.Unlock()
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM analysis_entries WHERE path = ?`, path)
		return err
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "analysis cache invalidate failed",
			"cache_write_failed", "stale entry will be discarded on next read",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
		)
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
