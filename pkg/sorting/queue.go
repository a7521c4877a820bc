// Package sorting holds the client-side state of the categorization workflow:
// the queue of transactions still to sort, the pending mods made locally,
// the per-transaction posting editor and account autocomplete.
package sorting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// DefaultTarget is the number of unsorted transactions the queue keeps on hand.
const DefaultTarget = 20

var (
	// ErrNothingToSave is returned by Save when no mods are pending.
	ErrNothingToSave = errors.New("no sorted transactions to save")
	// ErrUnknownTransaction is returned for ids the queue does not hold.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrAlreadySorted is returned when applying a mod to a sorted transaction.
	ErrAlreadySorted = errors.New("transaction already sorted")
	// ErrNoTodoPosting is returned for entries without an Equity:TODO posting.
	ErrNoTodoPosting = errors.New("transaction has no " + beancount.TodoAccount + " posting")
)

// Backend is the part of the bookkeeping API the queue drives.
type Backend interface {
	NextBatch(ctx context.Context, max int) (*bookkeeper.NextResponse, error)
	SubmitMods(ctx context.Context, mods []beancount.Mod, max int) (*bookkeeper.NextResponse, error)
	Link(ctx context.Context, txnID string, amount decimal.Decimal) (*bookkeeper.LinkResponse, error)
}

// FocusFunc is told which transaction the view should focus after the
// lists change. The id is empty when nothing is left to sort.
type FocusFunc func(id string)

// Counts summarises progress through the whole backlog.
type Counts struct {
	Total      int // transactions to sort, as reported by the backend
	Saved      int // sorted and saved to the backend
	Pending    int // sorted locally, not yet saved
	Unsorted   int // waiting in the local queue
	RemainTodo int // Total - Saved - Pending
}

// Queue partitions the visible transactions into unsorted and sorted and
// holds one mod per sorted transaction. A transaction is sorted iff it has a
// mod. It is not safe for concurrent use.
type Queue struct {
	backend  Backend
	target   int
	onFocus  FocusFunc
	unsorted []beancount.DirectiveForSort
	sorted   []beancount.DirectiveForSort
	mods     map[string]beancount.Mod
	accounts []string

	countTotal  int
	countSorted int
}

// Option configures a Queue.
type Option func(*Queue)

// WithTarget sets how many unsorted transactions Fetch backfills to.
func WithTarget(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.target = n
		}
	}
}

// WithFocus registers the focus hook.
func WithFocus(fn FocusFunc) Option {
	return func(q *Queue) { q.onFocus = fn }
}

// NewQueue creates an empty queue. Call Fetch to load the first batch.
func NewQueue(backend Backend, opts ...Option) *Queue {
	q := &Queue{
		backend: backend,
		target:  DefaultTarget,
		mods:    make(map[string]beancount.Mod),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Target returns the backfill size.
func (q *Queue) Target() int {
	return q.target
}

// Unsorted returns the transactions still to sort, in display order.
func (q *Queue) Unsorted() []beancount.DirectiveForSort {
	return append([]beancount.DirectiveForSort(nil), q.unsorted...)
}

// Sorted returns the locally sorted transactions, in the order they were sorted.
func (q *Queue) Sorted() []beancount.DirectiveForSort {
	return append([]beancount.DirectiveForSort(nil), q.sorted...)
}

// Mod returns the pending mod for id.
func (q *Queue) Mod(id string) (beancount.Mod, bool) {
	m, ok := q.mods[id]
	return m, ok
}

// Mods returns the pending mods in the order their transactions were sorted.
func (q *Queue) Mods() []beancount.Mod {
	mods := make([]beancount.Mod, 0, len(q.sorted))
	for _, drs := range q.sorted {
		mods = append(mods, q.mods[drs.ID])
	}
	return mods
}

// Accounts returns the ledger accounts the backend knows about.
func (q *Queue) Accounts() []string {
	return append([]string(nil), q.accounts...)
}

// Get looks id up in either list.
func (q *Queue) Get(id string) (beancount.DirectiveForSort, bool) {
	if i := indexOf(q.unsorted, id); i >= 0 {
		return q.unsorted[i], true
	}
	if i := indexOf(q.sorted, id); i >= 0 {
		return q.sorted[i], true
	}
	return beancount.DirectiveForSort{}, false
}

// IsUnsorted reports whether id is still waiting to be sorted.
func (q *Queue) IsUnsorted(id string) bool {
	return indexOf(q.unsorted, id) >= 0
}

// Counts returns the progress counters.
func (q *Queue) Counts() Counts {
	c := Counts{
		Total:    q.countTotal,
		Saved:    q.countSorted,
		Pending:  len(q.sorted),
		Unsorted: len(q.unsorted),
	}
	c.RemainTodo = c.Total - c.Saved - c.Pending
	if c.RemainTodo < 0 {
		c.RemainTodo = 0
	}
	return c
}

// Fetch backfills the unsorted list up to the target size. Transactions
// already known locally, sorted or not, are never added twice. It returns
// the number of transactions added.
func (q *Queue) Fetch(ctx context.Context) (int, error) {
	// The backend has not seen the local mods, so it may hand back
	// transactions that are already sorted here. Ask for enough to cover them.
	resp, err := q.backend.NextBatch(ctx, q.target+len(q.sorted))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	added := q.merge(resp.ToSort)
	q.updateMeta(resp)

	slog.Debug("fetched transactions", "received", len(resp.ToSort), "added", added, "unsorted", len(q.unsorted))
	q.focus()
	return added, nil
}

// Apply records mod for a transaction in the unsorted list and moves the
// transaction to the sorted list.
func (q *Queue) Apply(mod beancount.Mod) error {
	idx, err := q.applicable(mod)
	if err != nil {
		return err
	}

	drs := q.unsorted[idx]
	q.unsorted = append(q.unsorted[:idx], q.unsorted[idx+1:]...)
	q.sorted = append(q.sorted, drs)
	q.mods[mod.ID] = mod

	slog.Debug("sorted transaction", "id", mod.ID, "type", mod.Type)
	q.focus()
	return nil
}

// applicable returns the unsorted index mod would sort.
func (q *Queue) applicable(mod beancount.Mod) (int, error) {
	if err := mod.Validate(); err != nil {
		return -1, err
	}
	idx := indexOf(q.unsorted, mod.ID)
	if idx < 0 {
		if _, ok := q.mods[mod.ID]; ok {
			return -1, fmt.Errorf("%w: %s", ErrAlreadySorted, mod.ID)
		}
		return -1, fmt.Errorf("%w: %s", ErrUnknownTransaction, mod.ID)
	}
	return idx, nil
}

// Revert drops the mod for id and puts the transaction back at the front of
// the unsorted list.
func (q *Queue) Revert(id string) error {
	idx := indexOf(q.sorted, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}

	drs := q.sorted[idx]
	q.sorted = append(q.sorted[:idx], q.sorted[idx+1:]...)
	delete(q.mods, id)
	q.unsorted = append([]beancount.DirectiveForSort{drs}, q.unsorted...)

	slog.Debug("reverted transaction", "id", id)
	q.focus()
	return nil
}

// Save submits a snapshot of the pending mods. On success the local state is
// replaced by the batch the backend returns; on failure nothing changes.
func (q *Queue) Save(ctx context.Context) error {
	if len(q.sorted) == 0 {
		return ErrNothingToSave
	}

	mods := q.Mods()
	resp, err := q.backend.SubmitMods(ctx, mods, q.target)
	if err != nil {
		return fmt.Errorf("failed to save %d sorted transactions: %w", len(mods), err)
	}

	q.unsorted = nil
	q.sorted = nil
	q.mods = make(map[string]beancount.Mod)
	q.merge(resp.ToSort)
	q.updateMeta(resp)

	slog.Info("saved sorted transactions", "count", len(mods), "next_batch", len(q.unsorted))
	q.focus()
	return nil
}

// Link searches the backend for transactions whose postings match
// the to-do amount of id. Candidates already sorted locally are dropped.
func (q *Queue) Link(ctx context.Context, id string) ([]beancount.DirectiveForSort, error) {
	drs, ok := q.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}
	todo, ok := drs.TodoAmount()
	if !ok || todo.Number == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTodoPosting, id)
	}

	resp, err := q.backend.Link(ctx, id, *todo.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to search linked transactions: %w", err)
	}

	var results []beancount.DirectiveForSort
	for _, cand := range resp.Results {
		if cand.ID == id {
			continue
		}
		if _, sorted := q.mods[cand.ID]; sorted {
			continue
		}
		results = append(results, cand)
	}
	return results, nil
}

// LinkWith resolves id as the other side of other: the to-do amount of id is
// posted to other's first non-TODO account, and other is deleted when it is
// in the local queue since it duplicates the same movement of money.
func (q *Queue) LinkWith(id string, other beancount.DirectiveForSort) ([]beancount.Mod, error) {
	if other.ID == id {
		return nil, fmt.Errorf("cannot link transaction %s to itself", id)
	}
	drs, ok := q.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}
	todo, ok := drs.TodoAmount()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTodoPosting, id)
	}

	account := ""
	for _, p := range other.Entry.Postings {
		if p.Account != beancount.TodoAccount {
			account = p.Account
			break
		}
	}
	if account == "" {
		return nil, fmt.Errorf("linked transaction %s has no account to post to", other.ID)
	}

	mods := []beancount.Mod{{
		ID:       id,
		Type:     beancount.ModReplace,
		Postings: []beancount.Posting{{Account: account, Units: todo}},
	}}
	if indexOf(q.unsorted, other.ID) >= 0 {
		mods = append(mods, beancount.Mod{ID: other.ID, Type: beancount.ModDelete})
	}

	// Both mods go in or neither does.
	for _, mod := range mods {
		if _, err := q.applicable(mod); err != nil {
			return nil, err
		}
	}
	for _, mod := range mods {
		if err := q.Apply(mod); err != nil {
			return nil, err
		}
	}
	return mods, nil
}

// Check verifies the partition invariants. It is meant for tests and debugging.
func (q *Queue) Check() error {
	seen := make(map[string]string)
	for _, drs := range q.unsorted {
		if where, dup := seen[drs.ID]; dup {
			return fmt.Errorf("transaction %s is in unsorted and %s", drs.ID, where)
		}
		seen[drs.ID] = "unsorted"
		if _, ok := q.mods[drs.ID]; ok {
			return fmt.Errorf("unsorted transaction %s has a mod", drs.ID)
		}
	}
	for _, drs := range q.sorted {
		if where, dup := seen[drs.ID]; dup {
			return fmt.Errorf("transaction %s is in sorted and %s", drs.ID, where)
		}
		seen[drs.ID] = "sorted"
		if _, ok := q.mods[drs.ID]; !ok {
			return fmt.Errorf("sorted transaction %s has no mod", drs.ID)
		}
	}
	if len(q.mods) != len(q.sorted) {
		return fmt.Errorf("%d mods for %d sorted transactions", len(q.mods), len(q.sorted))
	}
	return nil
}

// merge appends incoming transactions that are not yet known, up to target.
func (q *Queue) merge(incoming []beancount.DirectiveForSort) int {
	known := make(map[string]bool, len(q.unsorted)+len(q.sorted))
	for _, drs := range q.unsorted {
		known[drs.ID] = true
	}
	for _, drs := range q.sorted {
		known[drs.ID] = true
	}
	for id := range q.mods {
		known[id] = true
	}

	added := 0
	for _, drs := range incoming {
		if len(q.unsorted) >= q.target {
			break
		}
		if known[drs.ID] {
			continue
		}
		known[drs.ID] = true
		q.unsorted = append(q.unsorted, drs)
		added++
	}
	return added
}

func (q *Queue) updateMeta(resp *bookkeeper.NextResponse) {
	if len(resp.Accounts) > 0 {
		q.accounts = append([]string(nil), resp.Accounts...)
	}
	q.countTotal = resp.CountTotal
	q.countSorted = resp.CountSorted
}

func (q *Queue) focus() {
	if q.onFocus == nil {
		return
	}
	if len(q.unsorted) == 0 {
		q.onFocus("")
		return
	}
	q.onFocus(q.unsorted[0].ID)
}

func indexOf(items []beancount.DirectiveForSort, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
