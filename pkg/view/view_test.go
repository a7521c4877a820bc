package view

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/collect"
	"github.com/zahanm/collect-beans/pkg/commit"
	"github.com/zahanm/collect-beans/pkg/progress"
	"github.com/zahanm/collect-beans/pkg/sorting"
)

func sampleTxn() beancount.DirectiveForSort {
	category := "Expenses:Food:Coffee"
	return beancount.DirectiveForSort{
		ID:           "abc",
		AutoCategory: &category,
		Entry: beancount.Directive{
			Date:      "2024-03-01",
			Filename:  "2024.beancount",
			Lineno:    42,
			Payee:     "Blue Bottle",
			Narration: "latte",
			Postings: []beancount.Posting{
				{Account: "Liabilities:Card", Units: beancount.NewAmount("-5.25", "USD")},
				{Account: beancount.TodoAccount, Units: beancount.Amount{Currency: "USD"}},
			},
		},
	}
}

func TestTransaction(t *testing.T) {
	out := Transaction(1, sampleTxn())

	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "2024-03-01 Blue Bottle")
	assert.Contains(t, out, "2024.beancount:42")
	assert.Contains(t, out, "Liabilities:Card")
	assert.Contains(t, out, "5.25 USD", "inferred TODO amount is shown")
	assert.Contains(t, out, "suggested: Expenses:Food:Coffee")
}

func TestMod(t *testing.T) {
	drs := sampleTxn()
	payee := "Blue Bottle Coffee"

	tests := []struct {
		name string
		mod  beancount.Mod
		want []string
	}{
		{
			name: "replace",
			mod: beancount.Mod{ID: "abc", Type: beancount.ModReplace, Payee: &payee, Postings: []beancount.Posting{
				{Account: "Expenses:Food:Coffee", Units: beancount.NewAmount("5.25", "USD")},
			}},
			want: []string{"sorted", "Expenses:Food:Coffee", "5.25 USD", `"Blue Bottle Coffee"`},
		},
		{name: "skip", mod: beancount.Mod{ID: "abc", Type: beancount.ModSkip}, want: []string{"skipped", "#skip-sort"}},
		{name: "delete", mod: beancount.Mod{ID: "abc", Type: beancount.ModDelete}, want: []string{"deleted", "Blue Bottle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Mod(drs, tt.mod)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	out := Counts(sorting.Counts{Total: 50, Saved: 10, Pending: 2, Unsorted: 18, RemainTodo: 38})
	assert.Contains(t, out, "sorted 12/50")
	assert.Contains(t, out, "2 unsaved")
	assert.Contains(t, out, "18 in queue, 38 left")
}

func TestRows(t *testing.T) {
	e, err := sorting.NewEditor(sampleTxn())
	require.NoError(t, err)
	assert.Contains(t, Rows(e), "balanced")

	require.NoError(t, e.SetAmount(0, "5.00"))
	assert.Contains(t, Rows(e), "0.25 USD left to allocate")

	require.NoError(t, e.SetAmount(0, "five"))
	assert.Contains(t, Rows(e), "invalid amount")
}

func TestState(t *testing.T) {
	assert.Contains(t, State(progress.Idle, nil), "idle")
	assert.Contains(t, State(progress.InProcess, nil), "running")
	assert.Contains(t, State(progress.Success, nil), "done")
	assert.Contains(t, State(progress.Error, errors.New("timeout")), "failed: timeout")
}

func TestDiff(t *testing.T) {
	diff, err := commit.UnifiedDiff("f", "a\nb\n", "a\nc\n")
	require.NoError(t, err)

	out := Diff(diff)
	assert.Contains(t, out, "-b")
	assert.Contains(t, out, "+c")
	assert.Contains(t, out, "@@")
	assert.Equal(t, strings.Count(diff, "\n"), strings.Count(out, "\n"))

	assert.Contains(t, Diff(""), "no changes")
}

func TestCheck(t *testing.T) {
	assert.Contains(t, Check(&commit.CheckResult{Passed: true}), "check passed")

	out := Check(&commit.CheckResult{Errors: []commit.CheckError{
		{Hash: "0123456789abcdef", Message: "Transaction does not balance"},
	}})
	assert.Contains(t, out, "check failed with 1 errors")
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "Transaction does not balance")
}

func TestResults(t *testing.T) {
	out := Results([]collect.Result{
		{Importer: "bank"},
		{Importer: "card", Response: &bookkeeper.CollectRunResponse{Errors: []string{"ITEM_LOGIN_REQUIRED"}}, Err: errors.New("exit 1")},
		{Importer: "brokerage", Err: errors.New("connection refused")},
	})

	assert.Contains(t, out, "✓ bank")
	assert.Contains(t, out, "✗ card")
	assert.Contains(t, out, "ITEM_LOGIN_REQUIRED")
	assert.NotContains(t, out, "exit 1")
	assert.Contains(t, out, "connection refused")
}

func TestLastImported(t *testing.T) {
	d1, d2 := "2024-03-01", "2024-02-01"
	out := LastImported(map[string]*string{
		"Assets:Checking":  &d1,
		"Assets:Savings":   &d2,
		"Liabilities:Card": nil,
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Liabilities:Card")
	assert.Contains(t, lines[0], "never")
	assert.Contains(t, lines[1], "Assets:Savings")
	assert.Contains(t, lines[2], "Assets:Checking")
}

func TestOtherImporters(t *testing.T) {
	instructions := "Download the CSV from the website"
	imp := bookkeeper.OtherImporter{Name: "401k", Downloader: "manual", Instructions: &instructions}
	imp.Accounts = append(imp.Accounts, struct {
		Name     string `json:"name"`
		Currency string `json:"currency"`
	}{Name: "Assets:Retirement", Currency: "USD"})

	out := OtherImporters([]bookkeeper.OtherImporter{imp})
	assert.Contains(t, out, "401k")
	assert.Contains(t, out, "Assets:Retirement (USD)")
	assert.Contains(t, out, "Download the CSV")
}
