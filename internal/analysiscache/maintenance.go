package analysiscache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"librarian/internal/logging"
	"librarian/internal/media"
)

// Stats summarises the cache contents.
type Stats struct {
	Entries   int
	ByStatus  map[media.Status]int
	Oldest    time.Time
	Newest    time.Time
	FileBytes int64
}

// Stats reports entry counts and the on-disk size of the database.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[media.Status]int)}
	if s == nil || s.db == nil {
		return stats, nil
	}
	if err := s.Flush(ctx); err != nil {
		return stats, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM analysis_entries GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan count: %w", err)
		}
		stats.ByStatus[media.Status(status)] += count
		stats.Entries += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate counts: %w", err)
	}

	if stats.Entries > 0 {
		var oldest, newest string
		if err := s.db.QueryRowContext(ctx, `SELECT MIN(updated_at), MAX(updated_at) FROM analysis_entries`).Scan(&oldest, &newest); err != nil {
			return stats, fmt.Errorf("read timestamps: %w", err)
		}
		stats.Oldest, _ = time.Parse(time.RFC3339Nano, oldest)
		stats.Newest, _ = time.Parse(time.RFC3339Nano, newest)
	}

	for _, suffix := range []string{"", "-wal"} {
		if info, err := os.Stat(s.path + suffix); err == nil {
			stats.FileBytes += info.Size()
		}
	}
	return stats, nil
}

// Entries returns every stored entry, skipping rows that cannot be decoded.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path, mtime_ns, size, status, payload, updated_at FROM analysis_entries ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			path, status, raw, updatedAt string
			mtimeNS, size                int64
		)
		if err := rows.Scan(&path, &mtimeNS, &size, &status, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry, err := decodeEntry(path, mtimeNS, size, status, raw, updatedAt)
		if err != nil {
			logging.WarnWithContext(s.logger, "dropping undecodable cache entry",
				"cache_entry_corrupt", "file will be re-probed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune removes entries whose file no longer exists or no longer matches the
// cached modification time and size. It returns the number of removed rows.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path, mtime_ns, size FROM analysis_entries`)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	var stale []string
	for rows.Next() {
		var (
			path          string
			mtimeNS, size int64
		)
		if err := rows.Scan(&path, &mtimeNS, &size); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan entry: %w", err)
		}
		info, statErr := os.Stat(path)
		switch {
		case errors.Is(statErr, fs.ErrNotExist):
			stale = append(stale, path)
		case statErr != nil:
			continue
		case info.ModTime().UnixNano() != mtimeNS || info.Size() != size:
			stale = append(stale, path)
		}
	}
	iterErr := rows.Err()
	rows.Close()
	if iterErr != nil {
		return 0, fmt.Errorf("iterate entries: %w", iterErr)
	}

	for _, path := range stale {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.Invalidate(ctx, path)
	}
	if len(stale) > 0 {
		s.logger.Info("analysis cache pruned", logging.Int("removed", len(stale)))
	}
	return len(stale), nil
}

// Clear removes every entry, including buffered ones.
func (s *Store) Clear(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	s.mu.Lock()
	s.pending = make(map[string]Entry)
	s.mu.Unlock()

	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_entries`)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear analysis cache: %w", err)
	}
	return int(removed), nil
}
