package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hkcovid/internal/etl"
	"hkcovid/internal/storage"
)

func openStore(t *testing.T, path string) (*storage.DB, *storage.RunLogStore) {
	t.Helper()
	db, err := storage.New(path)
	require.NoError(t, err)
	return db, storage.NewRunLogStore(db)
}

func TestRunLogStore_CreateAndList(t *testing.T) {
	db, store := openStore(t, filepath.Join(t.TempDir(), "runs", "etl.db"))
	defer db.Close()

	base := time.Date(2021, 3, 2, 9, 0, 0, 0, time.UTC)
	first := &etl.SyncRunLog{
		RunID: "run-1", Job: "building_list", Version: "20210301-0923",
		StartedAt: base, FinishedAt: base.Add(3 * time.Second),
		Status: etl.StatusSuccess, RowsRead: 10, RowsWritten: 14, Rejected: 2,
	}
	second := &etl.SyncRunLog{
		RunID: "run-2", Job: "case_details",
		StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
		Status: etl.StatusError, Error: "fetch case_details: http 500",
	}
	require.NoError(t, store.CreateRunLog(first))
	require.NoError(t, store.CreateRunLog(second))
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	logs, err := store.ListRunLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "run-2", logs[0].RunID)
	assert.Equal(t, "fetch case_details: http 500", logs[0].Error)
	assert.Equal(t, "20210301-0923", logs[1].Version)
	assert.Equal(t, 2, logs[1].Rejected)
	assert.True(t, logs[1].StartedAt.Equal(base))

	logs, err = store.ListRunLogs(1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestNew_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.db")

	db, store := openStore(t, path)
	now := time.Now()
	require.NoError(t, store.CreateRunLog(&etl.SyncRunLog{RunID: "r", Job: "j", StartedAt: now, FinishedAt: now, Status: etl.StatusSuccess}))
	require.NoError(t, db.Close())

	// migrations run again on reopen, including the ALTER TABLE
	db, store = openStore(t, path)
	defer db.Close()
	logs, err := store.ListRunLogs(0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
