// Package commit drives the last step of sorting: previewing the change to
// the destination ledger file, running the ledger checker and writing.
package commit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/progress"
)

var (
	// ErrNotChecked is returned by Write before Check has run.
	ErrNotChecked = errors.New("run check before writing")
	// ErrCheckFailed is returned by Write when the last check failed.
	ErrCheckFailed = errors.New("ledger check failed")
)

// Backend is the part of the bookkeeping API the flow drives.
type Backend interface {
	CommitPreview(ctx context.Context) (*bookkeeper.CommitResponse, error)
	Check(ctx context.Context) (*bookkeeper.CheckResponse, error)
	CommitWrite(ctx context.Context) (*bookkeeper.CommitResponse, error)
}

// Recorder stores a line of history per write.
type Recorder interface {
	RecordCommit(record db.CommitRecord) error
}

// Preview is the destination file before and after the submitted mods.
type Preview struct {
	Before string
	After  string
	Diff   string // unified diff, empty when nothing changes
}

// CheckError is one message from the ledger checker.
type CheckError struct {
	Hash    string
	Message string
}

// CheckResult is the checker's verdict. Errors are ordered by hash.
type CheckResult struct {
	Passed bool
	Errors []CheckError
}

// WriteResult describes a completed write.
type WriteResult struct {
	After        string
	SnapshotPath string // empty when snapshots are disabled
	Forced       bool
}

// Flow holds the commit state for one destination file. Write is only
// allowed after Check.
type Flow struct {
	backend     Backend
	destination string
	snapshots   beancount.SnapshotRepository
	history     Recorder
	now         func() time.Time

	preview *Preview
	check   *CheckResult

	checkProgress *progress.Tracker
	writeProgress *progress.Tracker
}

// Option configures a Flow.
type Option func(*Flow)

// WithSnapshots copies the destination file aside before every write.
func WithSnapshots(repo beancount.SnapshotRepository) Option {
	return func(f *Flow) { f.snapshots = repo }
}

// WithHistory records every write.
func WithHistory(rec Recorder) Option {
	return func(f *Flow) { f.history = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithProgress supplies the trackers for the check and write actions.
func WithProgress(check, write *progress.Tracker) Option {
	return func(f *Flow) {
		f.checkProgress = check
		f.writeProgress = write
	}
}

// NewFlow creates a flow for destination, the ledger file being sorted into.
func NewFlow(backend Backend, destination string, opts ...Option) *Flow {
	f := &Flow{
		backend:       backend,
		destination:   destination,
		now:           time.Now,
		checkProgress: progress.NewTracker(),
		writeProgress: progress.NewTracker(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CheckProgress returns the tracker for Check.
func (f *Flow) CheckProgress() *progress.Tracker {
	return f.checkProgress
}

// WriteProgress returns the tracker for Write.
func (f *Flow) WriteProgress() *progress.Tracker {
	return f.writeProgress
}

// LastCheck returns the result of the last Check, or nil.
func (f *Flow) LastCheck() *CheckResult {
	return f.check
}

// CanWrite reports whether Write would be attempted without forcing.
func (f *Flow) CanWrite() bool {
	return f.check != nil && f.check.Passed
}

// Preview fetches the before/after contents and diffs them.
func (f *Flow) Preview(ctx context.Context) (*Preview, error) {
	resp, err := f.backend.CommitPreview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commit preview: %w", err)
	}

	diff, err := UnifiedDiff(f.destination, resp.Before, resp.After)
	if err != nil {
		return nil, err
	}

	f.preview = &Preview{Before: resp.Before, After: resp.After, Diff: diff}
	return f.preview, nil
}

// Check runs the backend's ledger checker on the pending contents.
func (f *Flow) Check(ctx context.Context) (*CheckResult, error) {
	var result *CheckResult
	err := f.checkProgress.Track(func() error {
		resp, err := f.backend.Check(ctx)
		if err != nil {
			return fmt.Errorf("failed to run check: %w", err)
		}
		result = newCheckResult(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.check = result
	slog.Info("ledger check finished", "passed", result.Passed, "errors", len(result.Errors))
	return result, nil
}

// Write writes the new contents of the destination file. It requires a
// prior Check, and a passing one unless force is set.
func (f *Flow) Write(ctx context.Context, force bool) (*WriteResult, error) {
	if f.check == nil {
		return nil, ErrNotChecked
	}
	if !f.check.Passed && !force {
		return nil, fmt.Errorf("%w with %d errors", ErrCheckFailed, len(f.check.Errors))
	}

	var result *WriteResult
	err := f.writeProgress.Track(func() error {
		snapshotPath, err := f.snapshot(ctx)
		if err != nil {
			return err
		}

		resp, err := f.backend.CommitWrite(ctx)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", f.destination, err)
		}

		result = &WriteResult{After: resp.After, SnapshotPath: snapshotPath, Forced: !f.check.Passed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if f.history != nil {
		record := db.CommitRecord{
			DestinationFile: f.destination,
			SnapshotPath:    sql.NullString{String: result.SnapshotPath, Valid: result.SnapshotPath != ""},
			CheckPassed:     f.check.Passed,
			CheckErrors:     len(f.check.Errors),
			Forced:          result.Forced,
		}
		if err := f.history.RecordCommit(record); err != nil {
			slog.Warn("failed to record commit", "error", err)
		}
	}

	slog.Info("wrote destination file", "file", f.destination, "forced", result.Forced)

	// The written file is the new baseline; the next write needs a new check.
	f.check = nil
	f.preview = nil
	return result, nil
}

func (f *Flow) snapshot(ctx context.Context) (string, error) {
	if f.snapshots == nil {
		return "", nil
	}

	if f.preview == nil {
		if _, err := f.Preview(ctx); err != nil {
			return "", err
		}
	}

	path, err := f.snapshots.Save(f.destination, f.preview.Before, f.now())
	if err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", f.destination, err)
	}
	slog.Debug("saved snapshot", "path", path)
	return path, nil
}

func newCheckResult(resp *bookkeeper.CheckResponse) *CheckResult {
	result := &CheckResult{Passed: resp.Check}
	for hash, msg := range resp.Errors {
		result.Errors = append(result.Errors, CheckError{Hash: hash, Message: msg})
	}
	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Hash < result.Errors[j].Hash
	})
	return result
}

// UnifiedDiff renders the change from before to after with three lines of
// context. It returns an empty string when the contents are equal.
func UnifiedDiff(name, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", name, err)
	}
	return diff, nil
}
