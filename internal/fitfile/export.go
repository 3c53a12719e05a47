package fitfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// ExportToDir writes summary into dir as <YYYYMMDD-HHMMSS>_<title>.fit and
// returns the path. The directory is created when missing.
func ExportToDir(dir string, summary session.Summary, exportTimestamp time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := exportTimestamp.UTC().Format("20060102-150405") + "_" + FileName(summary.Title)
	path := filepath.Join(dir, name)

	// O_EXCL keeps an earlier export with the same name intact
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create fit file: %w", err)
	}
	if err := Write(f, summary, exportTimestamp); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close fit file: %w", err)
	}
	return path, nil
}
