// Package diagnostics persists error reports as JSON files.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/i474232898/weather-display/internal/cycle"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644

	fileTimeLayout = "20060102_150405"
	filePattern    = "error_*.json"
)

var errNoDirectory = errors.New("diagnostics directory not configured")

// FileSink writes one error_<timestamp>_<id>.json file per report and keeps
// at most maxFiles of them. maxFiles <= 0 keeps everything.
type FileSink struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
}

func NewFileSink(dir string, maxFiles int, logger *slog.Logger) (*FileSink, error) {
	if dir == "" {
		return nil, errNoDirectory
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create diagnostics directory: %w", err)
	}
	return &FileSink{dir: dir, maxFiles: maxFiles, logger: logger}, nil
}

// Write stores report. The id suffix keeps two reports from the same second apart.
func (s *FileSink) Write(report cycle.DiagnosticReport) error {
	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal diagnostic report: %w", err)
	}

	name := fmt.Sprintf("error_%s_%s.json",
		report.Timestamp.UTC().Format(fileTimeLayout),
		uuid.NewString()[:8],
	)
	path := filepath.Join(s.dir, name)
	if err := writeAtomic(path, content); err != nil {
		return err
	}
	s.logger.Info("diagnostics written", "path", path)
	s.prune()
	return nil
}

// prune removes the oldest reports beyond maxFiles. Names start with a UTC
// timestamp, so lexical order is chronological.
func (s *FileSink) prune() {
	if s.maxFiles <= 0 {
		return
	}
	names, err := filepath.Glob(filepath.Join(s.dir, filePattern))
	if err != nil || len(names) <= s.maxFiles {
		return
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-s.maxFiles] {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to prune diagnostics", "path", name, "error", err)
		}
	}
}

func (s *FileSink) Dir() string {
	return s.dir
}

// writeAtomic writes content to a temp file in the target directory and renames
// it into place, so readers never observe a partial report.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".diag-tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename diagnostics file: %w", err)
	}
	return nil
}
