package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stock-research/models"
	"stock-research/observability"
)

// SeriesStore persists one analyzed series per symbol as a flat JSON file.
// The file's modification time is the freshness signal.
type SeriesStore struct {
	dir string
	now func() time.Time
}

// NewSeriesStore creates a store rooted at dir, creating the directory if needed
func NewSeriesStore(dir string) (*SeriesStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &SeriesStore{dir: dir, now: time.Now}, nil
}

// WithClock returns a copy of the store that reads time from now (for testing)
func (s *SeriesStore) WithClock(now func() time.Time) *SeriesStore {
	return &SeriesStore{dir: s.dir, now: now}
}

// Dir returns the backing directory
func (s *SeriesStore) Dir() string {
	return s.dir
}

// Path returns the backing file path for symbol
func (s *SeriesStore) Path(symbol string) string {
	return filepath.Join(s.dir, fileName(symbol))
}

// Load reads the persisted entry for symbol. A missing or corrupted file is
// reported as absent; corruption is logged and counted but never returned.
func (s *SeriesStore) Load(symbol string) (*models.CacheEntry, bool) {
	entry, err := s.read(symbol)
	if err == nil {
		return entry, true
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}

	observability.WithSymbol(symbol).Warn("ignoring unreadable cache record",
		"path", s.Path(symbol),
		"error", err)
	if errors.Is(err, models.ErrCacheCorrupted) {
		observability.GetMetrics().RecordCacheCorruption(symbol)
	}
	return nil, false
}

func (s *SeriesStore) read(symbol string) (*models.CacheEntry, error) {
	data, err := os.ReadFile(s.Path(symbol))
	if err != nil {
		return nil, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCacheCorrupted, err)
	}
	if entry.Symbol != symbol {
		return nil, fmt.Errorf("%w: record is for %q", models.ErrCacheCorrupted, entry.Symbol)
	}
	if len(entry.Series) == 0 {
		return nil, fmt.Errorf("%w: empty series", models.ErrCacheCorrupted)
	}
	if err := entry.Series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCacheCorrupted, err)
	}
	return &entry, nil
}

// Freshness returns the time elapsed since the symbol's file was last written
func (s *SeriesStore) Freshness(symbol string) (time.Duration, bool) {
	info, err := os.Stat(s.Path(symbol))
	if err != nil {
		return 0, false
	}
	age := s.now().Sub(info.ModTime())
	if age < 0 {
		age = 0
	}
	return age, true
}

// Save overwrites the record for symbol. The entry is written to a temporary
// file in the same directory and renamed into place, so readers observe either
// the previous record or the new one.
func (s *SeriesStore) Save(symbol string, entry *models.CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("nil cache entry for %s", symbol)
	}
	if entry.Symbol != symbol {
		return fmt.Errorf("cache entry symbol %q does not match %q", entry.Symbol, symbol)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+fileName(symbol)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	written := s.now()
	if err := os.Chtimes(tmpPath, written, written); err != nil {
		return fmt.Errorf("failed to stamp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(symbol)); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// fileName maps a symbol to a safe flat file name
func fileName(symbol string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(symbol) + ".json"
}
