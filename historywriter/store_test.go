package historywriter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", clog.NewLogger("test"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertBasicRecord(t *testing.T) {
	store := openTestStore(t)

	rec := Record{
		BatteryID: 1,
		Timestamp: time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC),
		Source:    "live_monitor",
		Fields: map[string]interface{}{
			"pack_voltage":    48.1,
			"battery_current": 1.2,
			"soc":             85,
			"soh":             99,
		},
	}
	assert.NoError(t, store.Insert(rec))
}

func TestInsertDuplicateKeyIsDroppedSilently(t *testing.T) {
	store := openTestStore(t)
	ts := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	rec := Record{BatteryID: 1, Timestamp: ts, Source: "live_monitor", Fields: map[string]interface{}{"pack_voltage": 48.0}}

	require.NoError(t, store.Insert(rec))
	assert.NoError(t, store.Insert(rec))
}

func TestInsertAutoExpandsMissingColumn(t *testing.T) {
	store := openTestStore(t)
	rec := Record{
		BatteryID: 2,
		Timestamp: time.Date(2026, 7, 29, 13, 0, 0, 0, time.UTC),
		Source:    "live_monitor",
		Fields: map[string]interface{}{
			"pack_voltage":          48.0,
			"discharge_times_total": 42,
		},
	}
	require.NoError(t, store.Insert(rec))

	var count int
	err := store.db.Get(&count, "SELECT discharge_times_total FROM battery_history WHERE battery_id = 2")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestDetectColumnType(t *testing.T) {
	assert.Equal(t, "INTEGER", detectColumnType(42))
	assert.Equal(t, "INTEGER", detectColumnType(true))
	assert.Equal(t, "REAL", detectColumnType(1.5))
	assert.Equal(t, "TEXT", detectColumnType("x"))
	assert.Equal(t, "INTEGER", detectColumnType(nil))
}

func TestNewCellStatsSummarizesOnlyOKCells(t *testing.T) {
	voltages := []Cell{
		{CellNumber: 1, Value: 3.3, Status: "OK"},
		{CellNumber: 2, Value: 3.5, Status: "OK"},
		{CellNumber: 3, Value: 0, Status: "DISCONNECTED"},
	}
	stats := NewCellStats(voltages, nil)

	require.NotNil(t, stats.VoltageMin)
	require.NotNil(t, stats.VoltageMax)
	assert.Equal(t, 3.3, *stats.VoltageMin)
	assert.Equal(t, 3.5, *stats.VoltageMax)
	assert.Equal(t, 3, stats.Count)
}

func TestUpsertInitialSyncMarksCompleted(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpsertInitialSync(5, "HUAWEI", "ESM-48150B1", "ABC123", 15))

	var completed int
	require.NoError(t, store.db.Get(&completed, "SELECT initial_sync_completed FROM sync_status WHERE battery_id = 5"))
	assert.Equal(t, 1, completed)
}
