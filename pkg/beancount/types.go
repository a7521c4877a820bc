// Package beancount provides the ledger entry model shared with the
// bookkeeping backend, plus text formatting and local snapshot storage.
package beancount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TodoAccount is the placeholder account for postings awaiting categorization.
const TodoAccount = "Equity:TODO"

// SkipTag is set on entries the user chose to skip during sorting.
const SkipTag = "skip-sort"

// Amount is a number with a currency. Number is nil when the amount is left
// for the ledger to infer.
type Amount struct {
	Number   *decimal.Decimal `json:"number"`
	Currency string           `json:"currency"`
}

// NewAmount creates an Amount from a decimal string. It panics on a malformed
// number and is meant for literals.
func NewAmount(number, currency string) Amount {
	d := decimal.RequireFromString(number)
	return Amount{Number: &d, Currency: currency}
}

// Inferred reports whether the number is missing.
func (a Amount) Inferred() bool {
	return a.Number == nil
}

// String renders the amount as "<number> <currency>", or an empty string when inferred.
func (a Amount) String() string {
	if a.Number == nil {
		return ""
	}
	return a.Number.StringFixed(2) + " " + a.Currency
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account string `json:"account"` // e.g. "Assets:Bank:Checking"
	Units   Amount `json:"units"`
}

// TopLevel returns the first component of the account path.
func (p Posting) TopLevel() string {
	top, _, _ := strings.Cut(p.Account, ":")
	return top
}

// Directive represents a Beancount transaction as the backend reports it.
type Directive struct {
	Date      string    `json:"date"` // YYYY-MM-DD
	Filename  string    `json:"filename"`
	Lineno    int       `json:"lineno"`
	Payee     string    `json:"payee"`
	Narration string    `json:"narration"`
	Flag      string    `json:"flag"`
	Tags      []string  `json:"tags"`
	Links     []string  `json:"links"`
	Postings  []Posting `json:"postings"`
}

// TodoPosting returns the index of the Equity:TODO posting, or -1.
func (d Directive) TodoPosting() int {
	for i, p := range d.Postings {
		if p.Account == TodoAccount {
			return i
		}
	}
	return -1
}

// HasTag reports whether the directive carries tag.
func (d Directive) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DirectiveForSort is a transaction queued for categorization.
type DirectiveForSort struct {
	ID           string    `json:"id"`
	AutoCategory *string   `json:"auto_category"`
	Entry        Directive `json:"entry"`
}

// Category returns the suggested account, or an empty string.
func (d DirectiveForSort) Category() string {
	if d.AutoCategory == nil {
		return ""
	}
	return *d.AutoCategory
}

// TodoAmount returns the amount that new postings must add up to when they
// replace the Equity:TODO posting. When the TODO number is elided it is
// inferred from the remaining postings of the same currency.
func (d DirectiveForSort) TodoAmount() (Amount, bool) {
	idx := d.Entry.TodoPosting()
	if idx < 0 {
		return Amount{}, false
	}
	todo := d.Entry.Postings[idx].Units
	if todo.Number != nil {
		return todo, true
	}

	sum := decimal.Zero
	currency := todo.Currency
	for i, p := range d.Entry.Postings {
		if i == idx || p.Units.Number == nil {
			continue
		}
		if currency == "" {
			currency = p.Units.Currency
		}
		if p.Units.Currency != currency {
			continue
		}
		sum = sum.Add(*p.Units.Number)
	}
	inferred := sum.Neg()
	return Amount{Number: &inferred, Currency: currency}, true
}
