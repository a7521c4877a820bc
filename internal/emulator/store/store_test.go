package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func entry(payee string, postings int) beancount.Directive {
	d := beancount.Directive{Date: "2024-03-01", Payee: payee}
	for i := 0; i < postings; i++ {
		d.Postings = append(d.Postings, beancount.Posting{Account: "Assets:Checking"})
	}
	return d
}

func TestStore_PutGet(t *testing.T) {
	st := newTestStore(t)

	var missing []string
	assert.ErrorIs(t, st.Get(BucketMeta, "nope", &missing), ErrNotFound)

	require.NoError(t, st.Put(BucketMeta, "list", []string{"a", "b"}))
	var got []string
	require.NoError(t, st.Get(BucketMeta, "list", &got))
	assert.Equal(t, []string{"a", "b"}, got)

	_, err := st.GetString(BucketMeta, KeyDestination)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, st.PutString(BucketMeta, KeyDestination, "2024.beancount"))
	dest, err := st.GetString(BucketMeta, KeyDestination)
	require.NoError(t, err)
	assert.Equal(t, "2024.beancount", dest)

	assert.Error(t, st.Put("unknown", "k", 1))
}

func TestStore_FilesAreRenumbered(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.WriteFile("b.beancount", []beancount.Directive{entry("one", 2), entry("two", 3), entry("three", 2)}))
	require.NoError(t, st.WriteFile("a.beancount", nil))

	names, err := st.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.beancount", "b.beancount"}, names)

	entries, err := st.ReadFile(BucketFiles, "b.beancount")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 5, 10}, []int{entries[0].Lineno, entries[1].Lineno, entries[2].Lineno})
	assert.Equal(t, "b.beancount", entries[2].Filename)
}

func TestRenumber_MatchesFormattedText(t *testing.T) {
	entries := Renumber("f", []beancount.Directive{entry("one", 2), entry("two", 1), entry("three", 2)})
	lines := strings.Split(beancount.FormatDirectives(entries), "\n")

	for _, e := range entries {
		require.Less(t, e.Lineno-1, len(lines))
		assert.Contains(t, lines[e.Lineno-1], e.Payee, "entry %s starts on line %d", e.Payee, e.Lineno)
	}
}

func TestStore_CopyBucket(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.WriteFile("a.beancount", []beancount.Directive{entry("one", 2)}))
	require.NoError(t, st.Put(BucketBackup, "stale.beancount", []beancount.Directive{}))
	require.NoError(t, st.CopyBucket(BucketFiles, BucketBackup))

	keys, err := st.Keys(BucketBackup)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.beancount"}, keys)

	backup, err := st.ReadFile(BucketBackup, "a.beancount")
	require.NoError(t, err)
	assert.Equal(t, "one", backup[0].Payee)

	at, err := st.LastBackup()
	require.NoError(t, err)
	assert.Zero(t, at)
}
