package sorting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

// Epsilon is the largest difference tolerated between the posting rows and
// the to-do amount they replace.
var Epsilon = decimal.RequireFromString("0.005")

var (
	// ErrUnbalanced is returned when the rows do not add up to the to-do amount.
	ErrUnbalanced = errors.New("postings do not balance")
	// ErrEmptyAccount is returned for a row without an account.
	ErrEmptyAccount = errors.New("account is required")
	// ErrInvalidAmount is returned for a row whose amount is not a number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrRowIndex is returned for a row index out of range.
	ErrRowIndex = errors.New("no such row")
	// ErrLastRow is returned when removing the only row.
	ErrLastRow = errors.New("cannot remove the last row")
)

// Row is one posting line of the editor form. Amount is kept as typed.
type Row struct {
	Account string
	Amount  string
}

// Editor allocates the to-do amount of one transaction across posting rows.
type Editor struct {
	txn       beancount.DirectiveForSort
	todo      beancount.Amount
	rows      []Row
	payee     *string
	narration *string
}

// NewEditor creates an editor with one row holding the suggested category
// and the whole to-do amount.
func NewEditor(txn beancount.DirectiveForSort) (*Editor, error) {
	todo, ok := txn.TodoAmount()
	if !ok || todo.Number == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTodoPosting, txn.ID)
	}

	return &Editor{
		txn:  txn,
		todo: todo,
		rows: []Row{{Account: txn.Category(), Amount: todo.Number.StringFixed(2)}},
	}, nil
}

// Transaction returns the transaction being edited.
func (e *Editor) Transaction() beancount.DirectiveForSort {
	return e.txn
}

// Todo returns the amount the rows must add up to.
func (e *Editor) Todo() beancount.Amount {
	return e.todo
}

// Rows returns a copy of the current rows.
func (e *Editor) Rows() []Row {
	return append([]Row(nil), e.rows...)
}

// AddRow appends a row pre-filled with the remaining balance. Rows whose
// amount does not parse count as zero.
func (e *Editor) AddRow() Row {
	sum := decimal.Zero
	for _, r := range e.rows {
		if d, err := parseAmount(r.Amount); err == nil {
			sum = sum.Add(d)
		}
	}
	row := Row{Amount: e.todo.Number.Sub(sum).StringFixed(2)}
	e.rows = append(e.rows, row)
	return row
}

// RemoveRow deletes row i. The editor always keeps at least one row.
func (e *Editor) RemoveRow(i int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	if len(e.rows) == 1 {
		return ErrLastRow
	}
	e.rows = append(e.rows[:i], e.rows[i+1:]...)
	return nil
}

// SetAccount sets the account of row i.
func (e *Editor) SetAccount(i int, account string) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.rows[i].Account = strings.TrimSpace(account)
	return nil
}

// SetAmount sets the amount of row i. It is validated on submit.
func (e *Editor) SetAmount(i int, amount string) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.rows[i].Amount = strings.TrimSpace(amount)
	return nil
}

// SetPayee overrides the payee. Setting it back to the original clears the override.
func (e *Editor) SetPayee(payee string) {
	e.payee = override(e.txn.Entry.Payee, payee)
}

// SetNarration overrides the narration. Setting it back to the original clears the override.
func (e *Editor) SetNarration(narration string) {
	e.narration = override(e.txn.Entry.Narration, narration)
}

// Remaining returns the to-do amount minus the sum of the rows.
func (e *Editor) Remaining() (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, r := range e.rows {
		d, err := parseAmount(r.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("row %d: %w", i+1, err)
		}
		sum = sum.Add(d)
	}
	return e.todo.Number.Sub(sum), nil
}

// Validate checks every row and the balance.
func (e *Editor) Validate() error {
	for i, r := range e.rows {
		if r.Account == "" {
			return fmt.Errorf("row %d: %w", i+1, ErrEmptyAccount)
		}
	}
	remaining, err := e.Remaining()
	if err != nil {
		return err
	}
	if remaining.Abs().GreaterThanOrEqual(Epsilon) {
		return fmt.Errorf("%w: %s %s left to allocate", ErrUnbalanced, remaining.StringFixed(2), e.todo.Currency)
	}
	return nil
}

// Submit validates the form and returns the replace mod for the transaction.
func (e *Editor) Submit() (beancount.Mod, error) {
	if err := e.Validate(); err != nil {
		return beancount.Mod{}, err
	}

	postings := make([]beancount.Posting, 0, len(e.rows))
	for _, r := range e.rows {
		d, _ := parseAmount(r.Amount)
		postings = append(postings, beancount.Posting{
			Account: r.Account,
			Units:   beancount.Amount{Number: &d, Currency: e.todo.Currency},
		})
	}

	return beancount.Mod{
		ID:        e.txn.ID,
		Type:      beancount.ModReplace,
		Postings:  postings,
		Payee:     e.payee,
		Narration: e.narration,
	}, nil
}

// Skip returns a skip mod for the transaction.
func (e *Editor) Skip() beancount.Mod {
	return beancount.Mod{ID: e.txn.ID, Type: beancount.ModSkip}
}

// Delete returns a delete mod for the transaction.
func (e *Editor) Delete() beancount.Mod {
	return beancount.Mod{ID: e.txn.ID, Type: beancount.ModDelete}
}

func (e *Editor) checkIndex(i int) error {
	if i < 0 || i >= len(e.rows) {
		return fmt.Errorf("%w: %d", ErrRowIndex, i+1)
	}
	return nil
}

// parseAmount accepts thousands separators as the ledger prints them.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

func override(original, value string) *string {
	value = strings.TrimSpace(value)
	if value == original {
		return nil
	}
	return &value
}
