package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zahanm/collect-beans/internal/emulator/api"
	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/internal/emulator/store"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/collect"
	"github.com/zahanm/collect-beans/pkg/commit"
	"github.com/zahanm/collect-beans/pkg/sorting"
)

const destination = "2024.beancount"

func setupTestServer(t *testing.T) *bookkeeper.Client {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	l, err := ledger.New(st, filepath.Join("..", "ledger", "testdata", "config.yml"))
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(l, ledger.NewSession(l), ledger.NewCollector(l)))
	t.Cleanup(server.Close)

	return bookkeeper.NewClient(bookkeeper.ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
}

func withDestination(t *testing.T) *bookkeeper.Client {
	t.Helper()
	client := setupTestServer(t)
	progress, err := client.SetDestination(context.Background(), destination)
	require.NoError(t, err)
	require.NotNil(t, progress.DestinationFile)
	require.Equal(t, destination, *progress.DestinationFile)
	return client
}

func find(t *testing.T, items []beancount.DirectiveForSort, payee string) beancount.DirectiveForSort {
	t.Helper()
	for _, drs := range items {
		if drs.Entry.Payee == payee {
			return drs
		}
	}
	t.Fatalf("no transaction for %s", payee)
	return beancount.DirectiveForSort{}
}

func TestProgress(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	progress, err := client.SortProgress(ctx)
	require.NoError(t, err)
	assert.Nil(t, progress.DestinationFile)
	assert.Equal(t, "main.beancount", progress.MainFile)
	assert.Equal(t, []string{"2024.beancount", "main.beancount"}, progress.JournalFiles)

	_, err = client.SetDestination(ctx, "missing.beancount")
	var apiErr *bookkeeper.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, `bad_request - unknown journal file "missing.beancount"`, apiErr.Message)
}

func TestNextWithoutDestination(t *testing.T) {
	client := setupTestServer(t)

	_, err := client.NextBatch(context.Background(), 10)
	var apiErr *bookkeeper.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad_request - no destination file", apiErr.Message)
}

func TestSortAndCommit(t *testing.T) {
	client := withDestination(t)
	ctx := context.Background()

	var focused []string
	q := sorting.NewQueue(client, sorting.WithTarget(3), sorting.WithFocus(func(id string) { focused = append(focused, id) }))

	added, err := q.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, sorting.Counts{Total: 5, Unsorted: 3, RemainTodo: 5}, q.Counts())
	assert.Contains(t, q.Accounts(), "Expenses:Food:Coffee")

	bottle := find(t, q.Unsorted(), "Blue Bottle")
	safeway := find(t, q.Unsorted(), "Safeway")
	assert.Equal(t, []string{bottle.ID}, focused)

	editor, err := sorting.NewEditor(bottle)
	require.NoError(t, err)
	mod, err := editor.Submit()
	require.NoError(t, err)
	require.NoError(t, q.Apply(mod))

	candidates, err := q.Link(ctx, safeway.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Card payment", candidates[0].Entry.Payee)

	mods, err := q.LinkWith(safeway.ID, candidates[0])
	require.NoError(t, err)
	require.Len(t, mods, 1, "the counterpart is not in the local queue")
	assert.Equal(t, "Assets:Checking", mods[0].Postings[0].Account)
	require.NoError(t, q.Check())

	require.NoError(t, q.Save(ctx))
	require.NoError(t, q.Check())
	assert.Equal(t, sorting.Counts{Total: 5, Saved: 2, Unsorted: 3, RemainTodo: 3}, q.Counts())
	assert.ElementsMatch(t, []string{"Starbucks", "Card payment", "Mystery Shop"}, []string{
		q.Unsorted()[0].Entry.Payee, q.Unsorted()[1].Entry.Payee, q.Unsorted()[2].Entry.Payee,
	})

	sorted, err := client.Sorted(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sorted.Sorted, 2)
	assert.Equal(t, beancount.ModReplace, sorted.Mods[bottle.ID].Type)

	flow := commit.NewFlow(client, destination)

	_, err = flow.Write(ctx, false)
	assert.ErrorIs(t, err, commit.ErrNotChecked)

	preview, err := flow.Preview(ctx)
	require.NoError(t, err)
	assert.Contains(t, preview.Diff, "--- a/2024.beancount")
	assert.Contains(t, preview.Diff, "+  Expenses:Food:Coffee")
	assert.Contains(t, preview.Diff, "-  Equity:TODO")

	result, err := flow.Check(ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Errors)

	written, err := flow.Write(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, preview.After, written.After)
	assert.False(t, flow.CanWrite(), "a write needs a new check")

	next, err := client.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, next.CountTotal)
	assert.Zero(t, next.CountSorted)

	again, err := flow.Preview(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Diff)
}

func TestCheckFailureBlocksWrite(t *testing.T) {
	client := withDestination(t)
	ctx := context.Background()

	batch, err := client.NextBatch(ctx, 10)
	require.NoError(t, err)
	bottle := find(t, batch.ToSort, "Blue Bottle")

	_, err = client.SubmitMods(ctx, []beancount.Mod{{
		ID:       bottle.ID,
		Type:     beancount.ModReplace,
		Postings: []beancount.Posting{{Account: "Expenses:Unknown", Units: beancount.NewAmount("5.25", "USD")}},
	}}, 10)
	require.NoError(t, err)

	flow := commit.NewFlow(client, destination)
	result, err := flow.Check(ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Len(t, result.Errors[0].Hash, 40)
	assert.Contains(t, result.Errors[0].Message, "unknown account 'Expenses:Unknown'")

	_, err = flow.Write(ctx, false)
	assert.ErrorIs(t, err, commit.ErrCheckFailed)

	written, err := flow.Write(ctx, true)
	require.NoError(t, err)
	assert.True(t, written.Forced)
	assert.Contains(t, written.After, "Expenses:Unknown")
}

func TestRevert(t *testing.T) {
	client := withDestination(t)
	ctx := context.Background()

	batch, err := client.NextBatch(ctx, 10)
	require.NoError(t, err)
	mystery := find(t, batch.ToSort, "Mystery Shop")

	batch, err = client.SubmitMods(ctx, []beancount.Mod{{ID: mystery.ID, Type: beancount.ModSkip}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CountSorted)

	preview, err := client.CommitPreview(ctx)
	require.NoError(t, err)
	assert.Contains(t, lineWith(t, preview.After, "Mystery Shop"), "#skip-sort")

	_, err = client.SubmitMods(ctx, []beancount.Mod{{ID: mystery.ID, Type: beancount.ModSkip}}, 10)
	var apiErr *bookkeeper.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	sorted, err := client.RevertSorted(ctx, mystery.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, sorted.Sorted)

	preview, err = client.CommitPreview(ctx)
	require.NoError(t, err)
	assert.Equal(t, preview.Before, preview.After)
	assert.NotContains(t, lineWith(t, preview.After, "Mystery Shop"), "#skip-sort")

	batch, err = client.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, mystery.ID, batch.ToSort[0].ID)
	assert.Zero(t, batch.CountSorted)
}

func TestRevertReplace(t *testing.T) {
	client := withDestination(t)
	ctx := context.Background()

	batch, err := client.NextBatch(ctx, 10)
	require.NoError(t, err)
	bottle := find(t, batch.ToSort, "Blue Bottle")

	editor, err := sorting.NewEditor(bottle)
	require.NoError(t, err)
	require.NoError(t, editor.SetAccount(0, "Expenses:Food:Coffee"))
	mod, err := editor.Submit()
	require.NoError(t, err)

	_, err = client.SubmitMods(ctx, []beancount.Mod{mod}, 10)
	require.NoError(t, err)

	preview, err := client.CommitPreview(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, preview.Before, preview.After)
	assert.Contains(t, preview.After, "Expenses:Food:Coffee")

	_, err = client.RevertSorted(ctx, bottle.ID, 10)
	require.NoError(t, err)

	preview, err = client.CommitPreview(ctx)
	require.NoError(t, err)
	assert.Equal(t, preview.Before, preview.After)

	batch, err = client.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, bottle.ID, batch.ToSort[0].ID)
}

func lineWith(t *testing.T, contents, needle string) string {
	t.Helper()
	for _, line := range strings.Split(contents, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	t.Fatalf("no line containing %q", needle)
	return ""
}

func TestCollect(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	bank := bookkeeper.Importer{Name: "bank", AccessToken: "token-bank", Accounts: []bookkeeper.ImporterAccount{{Name: "Assets:Checking", Currency: "USD"}}}
	card := bookkeeper.Importer{Name: "card", Accounts: []bookkeeper.ImporterAccount{{Name: "Liabilities:Card", Currency: "USD"}}}
	today := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	r := collect.NewRunner(client, []bookkeeper.Importer{bank, card}, collect.WithClock(func() time.Time { return today }))

	start, err := r.DefaultStart(ctx, bank)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", start.Format("2006-01-02"), "last Assets:Checking entry is 2024-03-06")

	results := r.RunAll(ctx, collect.RunOptions{})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)

	var importErr *collect.ImportError
	require.ErrorAs(t, results[1].Err, &importErr)
	assert.Contains(t, importErr.Errors[0], "INVALID_ACCESS_TOKEN")

	last, err := r.LastImported(ctx, []string{"Assets:Checking"})
	require.NoError(t, err)
	require.NotNil(t, last["Assets:Checking"])
	assert.Equal(t, "2024-03-10", *last["Assets:Checking"])

	others, err := r.OtherImporters(ctx, bookkeeper.ModeTransactions)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "401k", others[0].Name)

	diff, err := r.BackupDiff(ctx)
	require.NoError(t, err)
	assert.Empty(t, diff.Contents.Old)
	assert.Contains(t, diff.Contents.New, "Landlord")

	backup, err := r.RunBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, backup.Contents.New, backup.Contents.Old)
	assert.Positive(t, backup.Timestamps.LastBackup)
}

func TestConfigReload(t *testing.T) {
	client := setupTestServer(t)

	resp, err := client.ReloadConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
