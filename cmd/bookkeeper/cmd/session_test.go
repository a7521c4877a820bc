package cmd

import (
	"bytes"
	"context"
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
)

func setupBackend(t *testing.T) *bookkeeper.Client {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	l, err := ledger.New(st, filepath.Join("..", "..", "..", "internal", "emulator", "ledger", "testdata", "config.yml"))
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(l, ledger.NewSession(l), ledger.NewCollector(l)))
	t.Cleanup(server.Close)

	client := bookkeeper.NewClient(bookkeeper.ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	_, err = client.SetDestination(context.Background(), "2024.beancount")
	require.NoError(t, err)
	return client
}

func runScript(t *testing.T, client *bookkeeper.Client, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	s := newSession(context.Background(), client, 10, &out)
	require.NoError(t, s.run(strings.NewReader(strings.Join(lines, "\n")+"\n")))
	return out.String()
}

func sortedByPayee(t *testing.T, client *bookkeeper.Client) map[string]beancount.Mod {
	t.Helper()
	resp, err := client.Sorted(context.Background(), 20)
	require.NoError(t, err)
	mods := make(map[string]beancount.Mod, len(resp.Sorted))
	for _, drs := range resp.Sorted {
		mods[drs.Entry.Payee] = resp.Mods[drs.ID]
	}
	return mods
}

func TestSession_SortAndSave(t *testing.T) {
	client := setupBackend(t)

	out := runScript(t, client,
		"submit",
		"account 1 groceries",
		"submit",
		"skip",
		"save",
		"quit",
	)

	assert.Contains(t, out, "Blue Bottle")
	assert.Contains(t, out, "sorted 3/5")

	mods := sortedByPayee(t, client)
	require.Len(t, mods, 3)
	assert.Equal(t, "Expenses:Food:Coffee", mods["Blue Bottle"].Postings[0].Account)
	assert.Equal(t, "Expenses:Food:Groceries", mods["Starbucks"].Postings[0].Account)
	assert.Equal(t, beancount.ModSkip, mods["Safeway"].Type)
}

func TestSession_Link(t *testing.T) {
	client := setupBackend(t)

	out := runScript(t, client,
		"focus 3",
		"link",
		"link 1",
		"save",
		"quit",
	)

	assert.Contains(t, out, "Card payment")

	mods := sortedByPayee(t, client)
	require.Len(t, mods, 2)
	assert.Equal(t, "Assets:Checking", mods["Safeway"].Postings[0].Account)
	assert.Equal(t, beancount.ModDelete, mods["Card payment"].Type)
}

func TestSession_FetchKeepsFocusedEdit(t *testing.T) {
	client := setupBackend(t)

	runScript(t, client,
		"focus 3",
		"amount 1 80.00",
		"more",
		"add",
		"account 2 transport",
		"submit",
		"save",
		"quit",
	)

	mods := sortedByPayee(t, client)
	require.Len(t, mods, 1)
	safeway := mods["Safeway"]
	require.Len(t, safeway.Postings, 2)
	assert.Equal(t, "80.00 USD", safeway.Postings[0].Units.String())
	assert.Equal(t, "Expenses:Transport", safeway.Postings[1].Account)
	assert.Equal(t, "2.10 USD", safeway.Postings[1].Units.String())
}

func TestSession_ReportsErrorsAndGuardsUnsaved(t *testing.T) {
	client := setupBackend(t)

	out := runScript(t, client,
		"frobnicate",
		"focus 9",
		"amount 1 abc",
		"skip",
		"quit",
		"quit!",
	)

	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "position 9 out of range 1-5")
	assert.Contains(t, out, "1 sorted transactions are not saved")
	assert.Empty(t, sortedByPayee(t, client))
}

func TestSession_RevertAndEndOfInput(t *testing.T) {
	client := setupBackend(t)

	out := runScript(t, client,
		"delete",
		"sorted",
		"revert 1",
		"sorted",
	)

	assert.Contains(t, out, "deleted")
	assert.Contains(t, out, "nothing sorted yet")
	assert.Empty(t, sortedByPayee(t, client))
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{name: "first", args: []string{"1"}, want: 0},
		{name: "last", args: []string{"3"}, want: 2},
		{name: "zero", args: []string{"0"}, wantErr: true},
		{name: "too big", args: []string{"4"}, wantErr: true},
		{name: "not a number", args: []string{"x"}, wantErr: true},
		{name: "missing", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := index(tt.args, 0, 3)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
