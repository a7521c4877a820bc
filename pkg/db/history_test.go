package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *History {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewHistory(conn)
}

func TestHistory_RecordRun(t *testing.T) {
	h := openTestDB(t)

	require.NoError(t, h.RecordRun(RunRecord{
		Importer:   "bank",
		Mode:       "transactions",
		StartDate:  sql.NullString{String: "2024-01-01", Valid: true},
		EndDate:    sql.NullString{String: "2024-01-31", Valid: true},
		Returncode: 0,
	}))
	require.NoError(t, h.RecordRun(RunRecord{
		Importer:   "card",
		Mode:       "balance",
		Returncode: 1,
		Errors:     []string{"login required", "timeout"},
	}))

	runs, err := h.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "card", runs[0].Importer)
	assert.False(t, runs[0].StartDate.Valid)
	assert.Equal(t, []string{"login required", "timeout"}, runs[0].Errors)
	assert.False(t, runs[0].Succeeded())

	assert.Equal(t, "bank", runs[1].Importer)
	assert.Equal(t, "2024-01-01", runs[1].StartDate.String)
	assert.Empty(t, runs[1].Errors)
	assert.True(t, runs[1].Succeeded())
	assert.False(t, runs[1].RunAt.IsZero())
}

func TestHistory_LastRun(t *testing.T) {
	h := openTestDB(t)

	last, err := h.LastRun("bank")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, h.RecordRun(RunRecord{Importer: "bank", Mode: "transactions", Returncode: 2}))
	require.NoError(t, h.RecordRun(RunRecord{Importer: "bank", Mode: "transactions"}))

	last, err = h.LastRun("bank")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 0, last.Returncode)
}

func TestHistory_Commits(t *testing.T) {
	h := openTestDB(t)

	require.NoError(t, h.RecordCommit(CommitRecord{
		DestinationFile: "2024.beancount",
		SnapshotPath:    sql.NullString{String: "/tmp/snap", Valid: true},
		CheckPassed:     true,
	}))
	require.NoError(t, h.RecordCommit(CommitRecord{
		DestinationFile: "2024.beancount",
		CheckErrors:     3,
		Forced:          true,
	}))

	commits, err := h.RecentCommits(1)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.True(t, commits[0].Forced)
	assert.False(t, commits[0].CheckPassed)
	assert.Equal(t, 3, commits[0].CheckErrors)
	assert.False(t, commits[0].SnapshotPath.Valid)
}

func TestHistory_GetStats(t *testing.T) {
	h := openTestDB(t)

	stats, err := h.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRuns)
	assert.False(t, stats.LastRun.Valid)

	require.NoError(t, h.RecordRun(RunRecord{Importer: "a", Mode: "transactions"}))
	require.NoError(t, h.RecordRun(RunRecord{Importer: "b", Mode: "transactions", Errors: []string{"x"}}))
	require.NoError(t, h.RecordCommit(CommitRecord{DestinationFile: "f", CheckPassed: true}))

	stats, err = h.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 1, stats.TotalCommits)
	assert.True(t, stats.LastRun.Valid)
	assert.True(t, stats.LastCommit.Valid)
}

func TestHistory_Metadata(t *testing.T) {
	h := openTestDB(t)

	value, err := h.GetMetadata(KeyDestinationFile)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, h.SetMetadata(KeyDestinationFile, "2023.beancount"))
	require.NoError(t, h.SetMetadata(KeyDestinationFile, "2024.beancount"))

	value, err = h.GetMetadata(KeyDestinationFile)
	require.NoError(t, err)
	assert.Equal(t, "2024.beancount", value)
}
