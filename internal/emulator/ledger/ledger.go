package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/zahanm/collect-beans/internal/emulator/store"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

// ErrBadRequest marks errors caused by the caller rather than the backend.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// Ledger holds the configuration and gives access to the journal files.
type Ledger struct {
	mu         sync.RWMutex
	files      sync.Mutex // held across read-modify-write of a journal file
	store      *store.Store
	configPath string
	config     Config
}

// New loads the configuration and seeds the store with its journal files
// when the store holds none yet.
func New(st *store.Store, configPath string) (*Ledger, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	l := &Ledger{store: st, configPath: configPath, config: cfg}
	if err := l.seed(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) seed() error {
	existing, err := l.store.Files()
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	names := make([]string, 0, len(l.config.Files))
	for name := range l.config.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entries := make([]beancount.Directive, 0, len(l.config.Files[name]))
		for _, e := range l.config.Files[name] {
			d, err := e.Directive()
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", name, err)
			}
			entries = append(entries, d)
		}
		if err := l.store.WriteFile(name, entries); err != nil {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
		slog.Info("seeded journal file", "file", name, "entries", len(entries))
	}
	return nil
}

// Reload re-reads the configuration file. Journal files are left alone.
func (l *Ledger) Reload() error {
	cfg, err := LoadConfig(l.configPath)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()

	slog.Info("config reloaded", "path", l.configPath)
	return nil
}

// Config returns the current configuration.
func (l *Ledger) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Accounts returns the open accounts, sorted.
func (l *Ledger) Accounts() []string {
	accounts := append([]string(nil), l.Config().Accounts...)
	sort.Strings(accounts)
	return accounts
}

// Files lists the journal file names.
func (l *Ledger) Files() ([]string, error) {
	return l.store.Files()
}

// ReadFile returns the entries of a journal file.
func (l *Ledger) ReadFile(name string) ([]beancount.Directive, error) {
	entries, err := l.store.ReadFile(store.BucketFiles, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, badRequest("unknown journal file %q", name)
	}
	return entries, err
}

// WriteFile replaces the entries of a journal file.
func (l *Ledger) WriteFile(name string, entries []beancount.Directive) error {
	return l.store.WriteFile(name, entries)
}

// Contents renders a journal file as text.
func (l *Ledger) Contents(name string) (string, error) {
	entries, err := l.ReadFile(name)
	if err != nil {
		return "", err
	}
	return beancount.FormatDirectives(entries), nil
}

// AllFiles returns every journal file's entries keyed by name.
func (l *Ledger) AllFiles() (map[string][]beancount.Directive, error) {
	names, err := l.Files()
	if err != nil {
		return nil, err
	}
	files := make(map[string][]beancount.Directive, len(names))
	for _, name := range names {
		entries, err := l.ReadFile(name)
		if err != nil {
			return nil, err
		}
		files[name] = entries
	}
	return files, nil
}
