package ledger

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

// tolerance is the largest per-currency residual a transaction may carry.
var tolerance = decimal.RequireFromString("0.005")

// CheckError is a problem found by the checker, located in a journal file.
type CheckError struct {
	Filename string
	Lineno   int
	Message  string
}

// Hash identifies the error across runs.
func (e CheckError) Hash() string {
	h := sha1.New()
	h.Write([]byte(e.Filename))
	h.Write([]byte(strconv.Itoa(e.Lineno)))
	h.Write([]byte(e.Message))
	return hex.EncodeToString(h.Sum(nil))
}

// String formats the error with its location.
func (e CheckError) String() string {
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Lineno, e.Message)
}

// Check validates every transaction: accounts must be open, at most one
// posting may leave its number to be inferred, and a transaction without
// one must balance in each currency.
func Check(files map[string][]beancount.Directive, accounts []string) []CheckError {
	open := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		open[acc] = true
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []CheckError
	for _, name := range names {
		for _, d := range files[name] {
			for _, msg := range checkDirective(d, open) {
				errs = append(errs, CheckError{Filename: d.Filename, Lineno: d.Lineno, Message: msg})
			}
		}
	}
	return errs
}

func checkDirective(d beancount.Directive, open map[string]bool) []string {
	var msgs []string

	sums := make(map[string]decimal.Decimal)
	var currencies []string
	inferred := 0
	for _, p := range d.Postings {
		if !open[p.Account] {
			msgs = append(msgs, fmt.Sprintf("Invalid reference to unknown account '%s'", p.Account))
		}
		if p.Units.Number == nil {
			inferred++
			continue
		}
		if _, ok := sums[p.Units.Currency]; !ok {
			currencies = append(currencies, p.Units.Currency)
		}
		sums[p.Units.Currency] = sums[p.Units.Currency].Add(*p.Units.Number)
	}

	switch {
	case inferred > 1:
		msgs = append(msgs, "Too many missing numbers for postings")
	case inferred == 0:
		for _, cur := range currencies {
			if sums[cur].Abs().GreaterThanOrEqual(tolerance) {
				msgs = append(msgs, fmt.Sprintf("Transaction does not balance: (%s %s)", sums[cur].String(), cur))
			}
		}
	}
	return msgs
}
