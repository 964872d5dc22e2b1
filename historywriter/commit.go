package historywriter

import (
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/monitor"
)

// CommitSample builds and inserts a Record from a live monitor sample. When
// the scheduler's history trigger has populated sample.Extended or the cell
// arrays, they are folded into the record's auto-expanding field map and its
// min/max/avg cell stats respectively; a plain poll sample (no extras) still
// commits the six basic telemetry fields. This is the concrete type behind
// monitor.HistorySink.
func (s *Store) CommitSample(id byte, sample monitor.Sample) error {
	fields := map[string]interface{}{
		"pack_voltage":    sample.PackVoltage,
		"battery_current": sample.Current,
		"soc":             int(sample.SOC),
		"soh":             int(sample.SOH),
		"temp_min":        int(sample.TempMin),
		"temp_max":        int(sample.TempMax),
	}
	for name, value := range sample.Extended {
		fields[name] = int64(value)
	}
	rec := Record{
		BatteryID: id,
		Timestamp: sample.Timestamp,
		Source:    "live_monitor",
		Fields:    fields,
		Cells:     NewCellStats(cellsFromReadings(sample.VoltageCells), cellsFromReadings(sample.TemperatureCells)),
	}
	if err := s.Insert(rec); err != nil {
		return err
	}
	return s.touchSyncStatusMonitor(id, rec.Timestamp)
}

func cellsFromReadings(readings []monitor.CellReading) []Cell {
	if len(readings) == 0 {
		return nil
	}
	cells := make([]Cell, len(readings))
	for i, r := range readings {
		cells[i] = Cell{CellNumber: r.CellNumber, Value: r.Value, Status: r.Status, RawValue: int(r.RawValue)}
	}
	return cells
}

func (s *Store) touchSyncStatusMonitor(id byte, ts time.Time) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO sync_status (battery_id, continuous_monitoring, monitoring_start_date, last_monitor_reading, total_monitor_records, created_at, updated_at)
		VALUES (?, 1, ?, ?, 1, ?, ?)
		ON CONFLICT(battery_id) DO UPDATE SET
			continuous_monitoring = 1,
			last_monitor_reading = excluded.last_monitor_reading,
			total_monitor_records = total_monitor_records + 1,
			updated_at = excluded.updated_at
	`, id, now, ts.Format(time.RFC3339), now, now)
	return err
}

// UpsertInitialSync records that a battery's device-info read completed,
// called by the initializer once a battery's identification block is known.
func (s *Store) UpsertInitialSync(id byte, manufacturer, model, serialNumber string, cellCount int) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO sync_status (battery_id, manufacturer, model, serial_number, cell_count, initial_sync_completed, initial_sync_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(battery_id) DO UPDATE SET
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			serial_number = excluded.serial_number,
			cell_count = excluded.cell_count,
			initial_sync_completed = 1,
			initial_sync_date = excluded.initial_sync_date,
			updated_at = excluded.updated_at
	`, id, manufacturer, model, serialNumber, cellCount, now, now, now)
	return err
}
