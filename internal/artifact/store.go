// Package artifact owns the on-disk receipt image store: naming, existence,
// listing, and retention pruning. Filenames are derived from the capture date
// alone, which is what makes re-runs idempotent.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

const (
	filePrefix = "하이패스("
	fileSuffix = ").png"
)

// Store is a directory of receipt images, one per captured date.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore creates the directory if needed and returns the store.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &Store{dir: dir, log: log.Named("artifact_store")}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Filename returns the canonical artifact name for a date.
func (s *Store) Filename(d capture.Date) string {
	return filePrefix + d.Display() + fileSuffix
}

// Path returns the absolute artifact path for a date.
func (s *Store) Path(d capture.Date) string {
	return filepath.Join(s.dir, s.Filename(d))
}

// Exists reports whether the artifact for a date is already on disk.
func (s *Store) Exists(d capture.Date) bool {
	_, err := os.Stat(s.Path(d))
	return err == nil
}

// DateOf parses the capture date back out of an artifact filename.
func DateOf(name string) (capture.Date, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return capture.Date{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	d, err := capture.ParseDate(raw)
	if err != nil {
		return capture.Date{}, false
	}
	return d, true
}

// Entry describes one date in a listing window.
type Entry struct {
	Date     string `json:"date"`
	Filename string `json:"filename"`
	Exists   bool   `json:"exists"`
}

// ListWindow reports the most recent n days (today first) and whether each
// day's artifact is present.
func (s *Store) ListWindow(now time.Time, days int) []Entry {
	entries := make([]Entry, 0, days)
	for i := 0; i < days; i++ {
		d := capture.DateOf(now.AddDate(0, 0, -i))
		entries = append(entries, Entry{
			Date:     d.Display(),
			Filename: s.Filename(d),
			Exists:   s.Exists(d),
		})
	}
	return entries
}

// Prune deletes artifacts older than the retention window and returns how
// many were removed. Files that do not follow the artifact naming scheme are
// left alone.
func (s *Store) Prune(now time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := capture.DateOf(now.AddDate(0, 0, -retentionDays))

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	removed := 0
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		d, ok := DateOf(entry.Name())
		if !ok || !d.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.log.Warn("failed to remove expired artifact",
				zap.String("filename", entry.Name()), zap.Error(err))
			continue
		}
		s.log.Info("removed expired artifact", zap.String("filename", entry.Name()))
		removed++
	}
	return removed, nil
}
