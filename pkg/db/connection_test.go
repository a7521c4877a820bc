package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	conn, err := Open(path)
	require.NoError(t, err)
	v, err := conn.Version()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
	assert.Equal(t, path, conn.Path())

	require.NoError(t, NewHistory(conn).SetMetadata(KeyDestinationFile, "2024.beancount"))
	require.NoError(t, conn.Close())

	conn, err = Open(path)
	require.NoError(t, err)
	defer conn.Close()

	value, err := NewHistory(conn).GetMetadata(KeyDestinationFile)
	require.NoError(t, err)
	assert.Equal(t, "2024.beancount", value, "reopening keeps data")
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	conn, err := Open(path)
	require.NoError(t, err)
	_, err = conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than this build")
}

func TestWithTx_RollsBack(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer conn.Close()

	boom := errors.New("boom")
	err = conn.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	value, err := NewHistory(conn).GetMetadata("k")
	require.NoError(t, err)
	assert.Empty(t, value)
}
