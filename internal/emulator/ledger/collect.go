package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/zahanm/collect-beans/internal/emulator/store"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

const dateLayout = "2006-01-02"

// Collector simulates the importers: a run copies the configured feed
// items of the importer's accounts into the current journal file.
type Collector struct {
	mu     sync.Mutex
	ledger *Ledger
	now    func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(l *Ledger) *Collector {
	return &Collector{ledger: l, now: time.Now}
}

// Run imports one importer's feed. Problems with a single account are
// reported in the response and do not stop the others.
func (c *Collector) Run(req bookkeeper.CollectRunRequest) (*bookkeeper.CollectRunResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Mode != bookkeeper.ModeTransactions && req.Mode != bookkeeper.ModeBalance {
		return nil, badRequest("unknown mode %q", req.Mode)
	}
	if req.Importer.Name == "" {
		return nil, badRequest("importer is required")
	}

	resp := &bookkeeper.CollectRunResponse{Importer: req.Importer.Name, Errors: make([]string, 0)}
	if req.Importer.AccessToken == "" {
		resp.Errors = append(resp.Errors, fmt.Sprintf("INVALID_ACCESS_TOKEN: no access token for %s", req.Importer.Name))
		resp.Returncode = len(resp.Errors)
		return resp, nil
	}

	if req.Mode == bookkeeper.ModeBalance {
		// balances are not tracked by the emulator
		return resp, nil
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		return nil, badRequest("invalid start date %q", req.Start)
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		return nil, badRequest("invalid end date %q", req.End)
	}

	c.ledger.files.Lock()
	defer c.ledger.files.Unlock()

	cfg := c.ledger.Config()
	current, err := c.ledger.ReadFile(cfg.CurrentFile)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, d := range current {
		known[entryKey(d)] = true
	}

	inserted := 0
	for _, acc := range req.Importer.Accounts {
		feed, ok := cfg.Feeds[acc.Name]
		if !ok {
			resp.Errors = append(resp.Errors, fmt.Sprintf("no feed for account %s", acc.Name))
			continue
		}
		for _, item := range feed {
			day, err := time.Parse(dateLayout, item.Date)
			if err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("%s: invalid date %q", acc.Name, item.Date))
				continue
			}
			if day.Before(start) || day.After(end) {
				continue
			}
			d, err := item.Directive(acc.Name)
			if err != nil {
				resp.Errors = append(resp.Errors, err.Error())
				continue
			}
			if known[entryKey(d)] {
				continue
			}
			known[entryKey(d)] = true
			current = append(current, d)
			inserted++
		}
	}

	if inserted > 0 {
		if err := c.ledger.WriteFile(cfg.CurrentFile, current); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", cfg.CurrentFile, err)
		}
	}
	resp.Returncode = len(resp.Errors)
	slog.Info("import finished", "importer", req.Importer.Name, "inserted", inserted, "errors", len(resp.Errors))
	return resp, nil
}

// entryKey identifies an imported entry for de-duplication.
func entryKey(d beancount.Directive) string {
	key := d.Date + "|" + d.Payee
	for _, p := range d.Postings {
		key += "|" + p.Account + " " + p.Units.String()
	}
	return key
}

// LastImported returns, per account, the date of the latest entry posting
// to it, or nil when there is none.
func (c *Collector) LastImported(accounts []string) (*bookkeeper.LastImportedResponse, error) {
	files, err := c.ledger.AllFiles()
	if err != nil {
		return nil, err
	}

	last := make(map[string]*string, len(accounts))
	for _, acc := range accounts {
		last[acc] = nil
	}
	for _, entries := range files {
		for _, d := range entries {
			for _, p := range d.Postings {
				prev, wanted := last[p.Account]
				if !wanted {
					continue
				}
				if prev == nil || d.Date > *prev {
					date := d.Date
					last[p.Account] = &date
				}
			}
		}
	}
	return &bookkeeper.LastImportedResponse{Last: last}, nil
}

// OtherImporters lists the importers that are run by hand.
func (c *Collector) OtherImporters() *bookkeeper.OtherImportersResponse {
	importers := c.ledger.Config().OtherImporters
	if importers == nil {
		importers = make([]bookkeeper.OtherImporter, 0)
	}
	return &bookkeeper.OtherImportersResponse{Importers: importers}
}

// Backup compares the current file with its last backup, taking a new
// backup first when run is set.
func (c *Collector) Backup(run bool) (*bookkeeper.BackupResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.ledger.store
	if run {
		if err := st.CopyBucket(store.BucketFiles, store.BucketBackup); err != nil {
			return nil, fmt.Errorf("failed to back up: %w", err)
		}
		at := float64(c.now().Unix())
		if err := st.PutString(store.BucketMeta, store.KeyLastBackup, strconv.FormatFloat(at, 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("failed to record backup time: %w", err)
		}
		slog.Info("backup taken")
	}

	current := c.ledger.Config().CurrentFile
	resp := &bookkeeper.BackupResponse{}

	newContents, err := c.ledger.Contents(current)
	if err != nil {
		return nil, err
	}
	resp.Contents.New = newContents

	old, err := st.ReadFile(store.BucketBackup, current)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		resp.Contents.Old = beancount.FormatDirectives(old)
	}

	if resp.Timestamps.LastBackup, err = st.LastBackup(); err != nil {
		return nil, err
	}
	return resp, nil
}
