package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/clsizeof/internal/sizeof"
)

const reportExt = ".json"

// FSStore implements Store on the filesystem: <baseDir>/reports/<key>.json.
//
// Thread-safety: each write goes through its own temp file + rename, so
// readers never see a partial report and concurrent saves of one key leave
// the last complete report in place.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-backed store, creating baseDir if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) reportsDir() string {
	return filepath.Join(fs.baseDir, "reports")
}

func (fs *FSStore) reportPath(key string) string {
	return filepath.Join(fs.reportsDir(), key+reportExt)
}

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// SaveReport atomically saves a report using temp file + rename.
func (fs *FSStore) SaveReport(key string, report *sizeof.Report) error {
	if err := validKey(key); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if err := os.MkdirAll(fs.reportsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	finalPath := fs.reportPath(key)
	tmp, err := os.CreateTemp(fs.reportsDir(), key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp report file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	slog.Debug("Report saved", "key", key, "path", finalPath)
	return nil
}

// LoadReport retrieves the report saved under key.
func (fs *FSStore) LoadReport(key string) (*sizeof.Report, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	path := fs.reportPath(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Key: key}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report sizeof.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	slog.Debug("Report loaded", "key", key, "path", path)
	return &report, nil
}

// ListReports returns metadata for every readable report, sorted by key.
// Corrupt files are skipped with a warning.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	entries, err := os.ReadDir(fs.reportsDir())
	if os.IsNotExist(err) {
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	infos := []ReportInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), reportExt) {
			continue
		}

		key := strings.TrimSuffix(entry.Name(), reportExt)
		report, err := fs.LoadReport(key)
		if err != nil {
			slog.Warn("Failed to load report for listing", "key", key, "error", err)
			continue
		}
		infos = append(infos, InfoOf(key, report))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

// DeleteReport removes the report saved under key.
func (fs *FSStore) DeleteReport(key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	path := fs.reportPath(key)
	if err := os.Remove(path); os.IsNotExist(err) {
		return &NotFoundError{Key: key}
	} else if err != nil {
		return fmt.Errorf("failed to remove report file: %w", err)
	}

	slog.Debug("Report deleted", "key", key, "path", path)
	return nil
}
