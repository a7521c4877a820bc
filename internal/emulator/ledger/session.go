package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/internal/emulator/store"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// DefaultMax is the page size when the caller does not ask for one.
const DefaultMax = 20

// linkTolerance is how close a posting must be to the searched amount.
var linkTolerance = decimal.RequireFromString("0.01")

type sortedEntry struct {
	drs beancount.DirectiveForSort
	mod beancount.Mod
}

// Session is the sorting state over the destination file. Submitted mods
// are held in memory and only reach the file on commit.
type Session struct {
	mu          sync.Mutex
	ledger      *Ledger
	destination string
	unsorted    []beancount.DirectiveForSort // nil until loaded
	sorted      []sortedEntry
	total       int
}

// NewSession creates a session, restoring the destination file chosen
// before a restart.
func NewSession(l *Ledger) *Session {
	s := &Session{ledger: l}
	if dest, err := l.store.GetString(store.BucketMeta, store.KeyDestination); err == nil {
		s.destination = dest
	}
	return s
}

// Progress reports the destination and the files that can be chosen.
func (s *Session) Progress() (*bookkeeper.ProgressResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

func (s *Session) progress() (*bookkeeper.ProgressResponse, error) {
	files, err := s.ledger.Files()
	if err != nil {
		return nil, err
	}
	resp := &bookkeeper.ProgressResponse{
		MainFile:     s.ledger.Config().MainFile,
		JournalFiles: files,
	}
	if s.destination != "" {
		dest := s.destination
		resp.DestinationFile = &dest
	}
	return resp, nil
}

// SetDestination chooses the file to sort and discards the current session.
func (s *Session) SetDestination(name string) (*bookkeeper.ProgressResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return nil, badRequest("destination_file is required")
	}
	if _, err := s.ledger.ReadFile(name); err != nil {
		return nil, err
	}
	if err := s.ledger.store.PutString(store.BucketMeta, store.KeyDestination, name); err != nil {
		return nil, fmt.Errorf("failed to save destination: %w", err)
	}

	s.destination = name
	s.reset()
	slog.Info("destination selected", "file", name)
	return s.progress()
}

func (s *Session) reset() {
	s.unsorted = nil
	s.sorted = nil
	s.total = 0
}

// Next applies the submitted mods and returns up to max unsorted entries.
// Mods are validated as a whole before any is applied.
func (s *Session) Next(mods []beancount.Mod, max int) (*bookkeeper.NextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(mods))
	for _, mod := range mods {
		if err := mod.Validate(); err != nil {
			return nil, badRequest("%s", err.Error())
		}
		if seen[mod.ID] || s.indexOf(mod.ID) < 0 {
			return nil, badRequest("transaction %s is not awaiting sorting", mod.ID)
		}
		seen[mod.ID] = true
	}
	for _, mod := range mods {
		i := s.indexOf(mod.ID)
		s.sorted = append(s.sorted, sortedEntry{drs: s.unsorted[i], mod: mod})
		s.unsorted = append(s.unsorted[:i], s.unsorted[i+1:]...)
	}
	if len(mods) > 0 {
		slog.Info("mods submitted", "count", len(mods), "remaining", len(s.unsorted))
	}

	return &bookkeeper.NextResponse{
		ToSort:      page(s.unsorted, max),
		Accounts:    s.ledger.Accounts(),
		CountTotal:  s.total,
		CountSorted: s.total - len(s.unsorted),
	}, nil
}

// load builds the unsorted list from the destination file on first use.
func (s *Session) load() error {
	if s.destination == "" {
		return badRequest("no destination file")
	}
	if s.unsorted != nil {
		return nil
	}

	entries, err := s.ledger.ReadFile(s.destination)
	if err != nil {
		return err
	}

	categories := s.ledger.Config().Categories
	toSort := make([]beancount.DirectiveForSort, 0)
	for _, e := range entries {
		if e.TodoPosting() < 0 || e.HasTag(beancount.SkipTag) {
			continue
		}
		toSort = append(toSort, beancount.DirectiveForSort{
			ID:           uuid.NewString(),
			AutoCategory: autoCategory(categories, e.Payee),
			Entry:        e,
		})
	}

	s.unsorted = rankOrder(toSort)
	s.total = len(s.unsorted)
	return nil
}

// Link finds unsorted entries other than txnID with a posting whose size is
// within a cent of amount.
func (s *Session) Link(txnID string, amount decimal.Decimal) (*bookkeeper.LinkResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	target := amount.Abs()
	results := make([]beancount.DirectiveForSort, 0)
	for _, drs := range s.unsorted {
		if drs.ID == txnID {
			continue
		}
		for _, p := range drs.Entry.Postings {
			if p.Units.Number != nil && p.Units.Number.Abs().Sub(target).Abs().LessThan(linkTolerance) {
				results = append(results, drs)
				break
			}
		}
	}
	return &bookkeeper.LinkResponse{Results: results}, nil
}

// Sorted returns up to max submitted entries with their mods.
func (s *Session) Sorted(max int) *bookkeeper.SortedResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPage(max)
}

// Revert puts a submitted entry back at the front of the unsorted list.
func (s *Session) Revert(txnID string, max int) (*bookkeeper.SortedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.sorted {
		if e.drs.ID == txnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, badRequest("transaction %s has not been sorted", txnID)
	}

	s.unsorted = append([]beancount.DirectiveForSort{s.sorted[idx].drs}, s.unsorted...)
	s.sorted = append(s.sorted[:idx], s.sorted[idx+1:]...)
	return s.sortedPage(max), nil
}

func (s *Session) sortedPage(max int) *bookkeeper.SortedResponse {
	if max <= 0 {
		max = DefaultMax
	}
	resp := &bookkeeper.SortedResponse{
		Sorted: make([]beancount.DirectiveForSort, 0),
		Mods:   make(map[string]beancount.Mod),
	}
	for i, e := range s.sorted {
		if i >= max {
			break
		}
		resp.Sorted = append(resp.Sorted, e.drs)
		resp.Mods[e.mod.ID] = e.mod
	}
	return resp
}

// Commit renders the destination file before and after the submitted mods.
// With write set the new contents replace the file and the session starts
// over, since the stored entries now carry the mods.
func (s *Session) Commit(write bool) (*bookkeeper.CommitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destination == "" {
		return nil, badRequest("no destination file")
	}

	s.ledger.files.Lock()
	defer s.ledger.files.Unlock()

	before, err := s.ledger.ReadFile(s.destination)
	if err != nil {
		return nil, err
	}
	after := s.apply(before)

	resp := &bookkeeper.CommitResponse{
		Before: beancount.FormatDirectives(before),
		After:  beancount.FormatDirectives(after),
	}
	if !write {
		return resp, nil
	}

	if err := s.ledger.WriteFile(s.destination, after); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", s.destination, err)
	}
	slog.Info("destination written", "file", s.destination, "mods", len(s.sorted))
	s.reset()
	return resp, nil
}

// Check runs the checker over every journal file with the destination
// replaced by its pending contents.
func (s *Session) Check() (*bookkeeper.CheckResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destination == "" {
		return nil, badRequest("no destination file")
	}

	files, err := s.ledger.AllFiles()
	if err != nil {
		return nil, err
	}
	files[s.destination] = store.Renumber(s.destination, s.apply(files[s.destination]))

	errs := Check(files, s.ledger.Config().Accounts)
	resp := &bookkeeper.CheckResponse{Check: len(errs) == 0, Errors: make(map[string]string, len(errs))}
	for _, e := range errs {
		resp.Errors[e.Hash()] = e.String()
	}
	return resp, nil
}

// apply returns the entries with the submitted mods applied. Mods are
// matched to entries by line number, which stays stable until a write.
func (s *Session) apply(entries []beancount.Directive) []beancount.Directive {
	mods := make(map[int]beancount.Mod, len(s.sorted))
	for _, e := range s.sorted {
		mods[e.drs.Entry.Lineno] = e.mod
	}

	out := make([]beancount.Directive, 0, len(entries))
	for _, d := range entries {
		mod, ok := mods[d.Lineno]
		if !ok {
			out = append(out, d)
			continue
		}
		if applied, keep := mod.Apply(d); keep {
			out = append(out, applied)
		}
	}
	return out
}

func (s *Session) indexOf(id string) int {
	for i, drs := range s.unsorted {
		if drs.ID == id {
			return i
		}
	}
	return -1
}

func page(items []beancount.DirectiveForSort, max int) []beancount.DirectiveForSort {
	if max <= 0 {
		max = DefaultMax
	}
	if len(items) > max {
		items = items[:max]
	}
	return append(make([]beancount.DirectiveForSort, 0, len(items)), items...)
}
