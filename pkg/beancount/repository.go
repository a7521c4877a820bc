package beancount

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zahanm/collect-beans/pkg/pathutil"
)

// SnapshotRepository defines the interface for local ledger snapshots taken
// before the backend overwrites a ledger file.
type SnapshotRepository interface {
	// Save writes contents as a snapshot of ledgerFile and returns its path
	Save(ledgerFile, contents string, at time.Time) (string, error)

	// Read reads the content of a snapshot
	Read(path string) (string, error)

	// ListMonth lists snapshot paths for the month of t, oldest first
	ListMonth(t time.Time) ([]string, error)
}

// FileSystemRepository is a file system implementation of SnapshotRepository.
type FileSystemRepository struct {
	pathResolver *pathutil.PathResolver
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(pathResolver *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{
		pathResolver: pathResolver,
	}
}

// Save writes a snapshot with a header comment naming the source file.
func (r *FileSystemRepository) Save(ledgerFile, contents string, at time.Time) (string, error) {
	filePath, err := r.pathResolver.GetSnapshotPath(ledgerFile, at)
	if err != nil {
		return "", fmt.Errorf("failed to get snapshot path: %w", err)
	}

	if err := r.pathResolver.EnsureParentDir(filePath); err != nil {
		return "", fmt.Errorf("failed to ensure parent directory: %w", err)
	}

	content := generateSnapshotHeader(ledgerFile, at) + contents
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return filePath, nil
}

// Read reads the content of a snapshot.
// Returns empty string if the file doesn't exist.
func (r *FileSystemRepository) Read(path string) (string, error) {
	if !r.pathResolver.FileExists(path) {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	return string(data), nil
}

// ListMonth lists the snapshots taken in the month of t.
func (r *FileSystemRepository) ListMonth(t time.Time) ([]string, error) {
	monthDir := r.pathResolver.GetMonthDir(t)
	if !r.pathResolver.FileExists(monthDir) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(monthDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(monthDir, entry.Name()))
	}
	// Names start with a sortable timestamp.
	sort.Strings(paths)

	return paths, nil
}

func generateSnapshotHeader(ledgerFile string, at time.Time) string {
	return fmt.Sprintf("; Snapshot of %s\n; Taken at %s\n\n", ledgerFile, at.Format(time.RFC3339))
}
