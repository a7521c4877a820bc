// Package collect triggers importer runs on the bookkeeping backend and
// tracks their progress.
package collect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/progress"
)

const dateLayout = "2006-01-02"

// Defaults for the proposed start date.
const (
	DefaultOverlapDays  = 3
	DefaultLookbackDays = 30
)

// ImportError is returned for a run the backend completed but reported as failed.
type ImportError struct {
	Importer   string
	Returncode int
	Errors     []string
}

func (e *ImportError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("importer %s exited with code %d", e.Importer, e.Returncode)
	}
	return fmt.Sprintf("importer %s exited with code %d: %s", e.Importer, e.Returncode, strings.Join(e.Errors, "; "))
}

// RunOptions selects what a run collects. Start and End are ignored in
// balance mode. A zero Start means DefaultStart; a zero End means today.
type RunOptions struct {
	Mode  bookkeeper.CollectMode
	Start time.Time
	End   time.Time
}

// Result is the outcome of one importer run.
type Result struct {
	Importer string
	Response *bookkeeper.CollectRunResponse
	Err      error
}

// Runner runs the configured importers. It is safe for concurrent use, but
// RunAll only issues one backend request at a time.
type Runner struct {
	backend   Backend
	importers []bookkeeper.Importer
	history   Recorder
	overlap   int
	lookback  int
	now       func() time.Time

	mu       sync.Mutex
	trackers map[string]*progress.Tracker
	results  map[string]Result
	backup   *progress.Tracker
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records every run.
func WithHistory(rec Recorder) Option {
	return func(r *Runner) { r.history = rec }
}

// WithWindow sets the overlap and lookback in days used by DefaultStart.
func WithWindow(overlapDays, lookbackDays int) Option {
	return func(r *Runner) {
		if overlapDays >= 0 {
			r.overlap = overlapDays
		}
		if lookbackDays > 0 {
			r.lookback = lookbackDays
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner over importers.
func NewRunner(backend Backend, importers []bookkeeper.Importer, opts ...Option) *Runner {
	r := &Runner{
		backend:   backend,
		importers: importers,
		overlap:   DefaultOverlapDays,
		lookback:  DefaultLookbackDays,
		now:       time.Now,
		trackers:  make(map[string]*progress.Tracker),
		results:   make(map[string]Result),
		backup:    progress.NewTracker(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, imp := range importers {
		r.trackers[imp.Name] = progress.NewTracker()
	}
	return r
}

// Importers returns the configured importers in order.
func (r *Runner) Importers() []bookkeeper.Importer {
	return append([]bookkeeper.Importer(nil), r.importers...)
}

// Importer looks an importer up by name.
func (r *Runner) Importer(name string) (bookkeeper.Importer, bool) {
	for _, imp := range r.importers {
		if imp.Name == name {
			return imp, true
		}
	}
	return bookkeeper.Importer{}, false
}

// Progress returns the tracker for importer, or nil if it is unknown.
func (r *Runner) Progress(importer string) *progress.Tracker {
	return r.trackers[importer]
}

// BackupProgress returns the tracker for RunBackup.
func (r *Runner) BackupProgress() *progress.Tracker {
	return r.backup
}

// LastResult returns the outcome of the latest run of importer.
func (r *Runner) LastResult(importer string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[importer]
	return res, ok
}

// DefaultStart proposes a start date for importer: the earliest last-imported
// date across its accounts minus the overlap window, or today minus the
// lookback when any account has never been imported.
func (r *Runner) DefaultStart(ctx context.Context, imp bookkeeper.Importer) (time.Time, error) {
	today := truncateDay(r.now())
	fallback := today.AddDate(0, 0, -r.lookback)

	accounts := imp.AccountNames()
	if len(accounts) == 0 {
		return fallback, nil
	}

	resp, err := r.backend.LastImported(ctx, accounts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last imported dates: %w", err)
	}

	var earliest time.Time
	for _, acc := range accounts {
		last := resp.Last[acc]
		if last == nil {
			return fallback, nil
		}
		t, err := time.Parse(dateLayout, *last)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid last imported date %q for %s: %w", *last, acc, err)
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}

	return earliest.AddDate(0, 0, -r.overlap), nil
}

// Run runs one importer. A run the backend reports as failed returns the
// response together with an *ImportError.
func (r *Runner) Run(ctx context.Context, name string, opts RunOptions) (*bookkeeper.CollectRunResponse, error) {
	imp, ok := r.Importer(name)
	if !ok {
		return nil, fmt.Errorf("unknown importer: %s", name)
	}
	tracker := r.trackers[name]
	if err := tracker.Start(); err != nil {
		return nil, fmt.Errorf("importer %s: %w", name, err)
	}

	req, err := r.request(ctx, imp, opts)
	if err != nil {
		tracker.Fail(err)
		r.store(Result{Importer: name, Err: err})
		return nil, err
	}

	slog.Info("running importer", "importer", name, "mode", req.Mode, "start", req.Start, "end", req.End)

	resp, err := r.backend.CollectRun(ctx, req)
	if err != nil {
		err = fmt.Errorf("failed to run importer %s: %w", name, err)
		tracker.Fail(err)
		r.store(Result{Importer: name, Err: err})
		return nil, err
	}

	r.record(req, resp)

	if resp.Returncode != 0 || len(resp.Errors) > 0 {
		err = &ImportError{Importer: name, Returncode: resp.Returncode, Errors: resp.Errors}
		tracker.Fail(err)
		r.store(Result{Importer: name, Response: resp, Err: err})
		return resp, err
	}

	tracker.Succeed()
	r.store(Result{Importer: name, Response: resp})
	slog.Info("importer finished", "importer", name)
	return resp, nil
}

// RunAll runs every importer one after another. Each request is issued only
// after the previous response arrived. A failing importer does not stop the
// loop; its error is reported in its Result.
func (r *Runner) RunAll(ctx context.Context, opts RunOptions) []Result {
	results := make([]Result, 0, len(r.importers))
	for _, imp := range r.importers {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Importer: imp.Name, Err: err})
			continue
		}
		resp, err := r.Run(ctx, imp.Name, opts)
		if err != nil {
			slog.Warn("importer failed, continuing", "importer", imp.Name, "error", err)
		}
		results = append(results, Result{Importer: imp.Name, Response: resp, Err: err})
	}
	return results
}

// LastImported returns the last imported date per account.
func (r *Runner) LastImported(ctx context.Context, accounts []string) (map[string]*string, error) {
	resp, err := r.backend.LastImported(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to get last imported dates: %w", err)
	}
	return resp.Last, nil
}

// OtherImporters lists the importers that have to be run by hand.
func (r *Runner) OtherImporters(ctx context.Context, mode bookkeeper.CollectMode) ([]bookkeeper.OtherImporter, error) {
	resp, err := r.backend.OtherImporters(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list other importers: %w", err)
	}
	return resp.Importers, nil
}

// BackupDiff compares the ledger with its last backup.
func (r *Runner) BackupDiff(ctx context.Context) (*bookkeeper.BackupResponse, error) {
	resp, err := r.backend.BackupDiff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup diff: %w", err)
	}
	return resp, nil
}

// RunBackup takes a new backup of the ledger.
func (r *Runner) RunBackup(ctx context.Context) (*bookkeeper.BackupResponse, error) {
	var resp *bookkeeper.BackupResponse
	err := r.backup.Track(func() error {
		var err error
		resp, err = r.backend.RunBackup(ctx)
		if err != nil {
			return fmt.Errorf("failed to run backup: %w", err)
		}
		return nil
	})
	return resp, err
}

func (r *Runner) request(ctx context.Context, imp bookkeeper.Importer, opts RunOptions) (bookkeeper.CollectRunRequest, error) {
	mode := opts.Mode
	if mode == "" {
		mode = bookkeeper.ModeTransactions
	}
	req := bookkeeper.CollectRunRequest{Mode: mode, Importer: imp}
	if mode == bookkeeper.ModeBalance {
		return req, nil
	}

	start := opts.Start
	if start.IsZero() {
		var err error
		start, err = r.DefaultStart(ctx, imp)
		if err != nil {
			return req, err
		}
	}
	end := opts.End
	if end.IsZero() {
		end = r.now()
	}
	if end.Before(start) {
		return req, fmt.Errorf("end date %s is before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	req.Start = start.Format(dateLayout)
	req.End = end.Format(dateLayout)
	return req, nil
}

func (r *Runner) record(req bookkeeper.CollectRunRequest, resp *bookkeeper.CollectRunResponse) {
	if r.history == nil {
		return
	}
	record := db.RunRecord{
		Importer:   req.Importer.Name,
		Mode:       string(req.Mode),
		StartDate:  sql.NullString{String: req.Start, Valid: req.Start != ""},
		EndDate:    sql.NullString{String: req.End, Valid: req.End != ""},
		Returncode: resp.Returncode,
		Errors:     resp.Errors,
	}
	if err := r.history.RecordRun(record); err != nil {
		slog.Warn("failed to record run", "importer", req.Importer.Name, "error", err)
	}
}

func (r *Runner) store(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.Importer] = res
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
