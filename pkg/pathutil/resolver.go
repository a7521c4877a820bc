// Package pathutil provides centralized path management for local state:
// the history database and ledger snapshots.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PathResolver manages paths for the history database and ledger snapshots.
type PathResolver struct {
	dataDir      string
	databasePath string
	snapshotsDir string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataDir is the root directory for local state (e.g., ~/.collect-beans)
	DataDir string
	// DatabasePath is the path to the SQLite database file for run history
	DatabasePath string
	// SnapshotsDir is the directory ledger contents are copied to before a commit
	SnapshotsDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {DataDir}/history.db
// If SnapshotsDir is empty, it defaults to {DataDir}/snapshots
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataDir, "history.db")
	}

	snapshotsDir := config.SnapshotsDir
	if snapshotsDir == "" {
		snapshotsDir = filepath.Join(config.DataDir, "snapshots")
	}

	return &PathResolver{
		dataDir:      config.DataDir,
		databasePath: dbPath,
		snapshotsDir: snapshotsDir,
	}
}

// GetDataDir returns the local state root directory.
func (p *PathResolver) GetDataDir() string {
	return p.dataDir
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetSnapshotsDir returns the snapshots directory.
func (p *PathResolver) GetSnapshotsDir() string {
	return p.snapshotsDir
}

// GetMonthDir returns the snapshot directory for the month of t.
// Example: ~/.collect-beans/snapshots/2024-01
func (p *PathResolver) GetMonthDir(t time.Time) string {
	return filepath.Join(p.snapshotsDir, t.Format("2006-01"))
}

// GetSnapshotPath returns the file path a ledger file is snapshotted to at time t.
// Only the base name of ledgerFile is used.
// Example: snapshots/2024-01/20240115T093000-current.beancount
func (p *PathResolver) GetSnapshotPath(ledgerFile string, t time.Time) (string, error) {
	name := filepath.Base(ledgerFile)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid ledger file name: %q", ledgerFile)
	}

	filename := fmt.Sprintf("%s-%s", t.Format("20060102T150405"), name)
	return filepath.Join(p.GetMonthDir(t), filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
