// Package historywriter persists sampled battery telemetry to SQLite,
// automatically extending the schema when a new field appears, and
// maintains the per-battery sync-status bookkeeping row.
package historywriter

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS battery_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	battery_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	source TEXT NOT NULL,
	pack_voltage REAL,
	battery_current REAL,
	soc INTEGER,
	soh INTEGER,
	temp_min INTEGER,
	temp_max INTEGER,
	cell_count INTEGER,
	cell_voltage_min REAL,
	cell_voltage_max REAL,
	cell_voltage_avg REAL,
	cell_temp_min REAL,
	cell_temp_max REAL,
	cell_temp_avg REAL,
	created_at TEXT NOT NULL,
	UNIQUE(battery_id, timestamp)
);

CREATE TABLE IF NOT EXISTS cell_voltages_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	battery_history_id INTEGER NOT NULL,
	cell_number INTEGER NOT NULL,
	voltage REAL,
	status TEXT,
	raw_value INTEGER
);

CREATE TABLE IF NOT EXISTS cell_temperatures_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	battery_history_id INTEGER NOT NULL,
	cell_number INTEGER NOT NULL,
	temperature REAL,
	status TEXT,
	raw_value INTEGER
);

CREATE TABLE IF NOT EXISTS sync_status (
	battery_id INTEGER PRIMARY KEY,
	manufacturer TEXT,
	model TEXT,
	serial_number TEXT,
	cell_count INTEGER,
	initial_sync_completed INTEGER DEFAULT 0,
	initial_sync_date TEXT,
	total_records_imported INTEGER DEFAULT 0,
	last_record_number INTEGER DEFAULT 0,
	continuous_monitoring INTEGER DEFAULT 0,
	monitoring_start_date TEXT,
	last_monitor_reading TEXT,
	total_monitor_records INTEGER DEFAULT 0,
	created_at TEXT,
	updated_at TEXT
);
`

const createIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_battery_history_battery_ts ON battery_history(battery_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_battery_history_source ON battery_history(battery_id, source);
CREATE INDEX IF NOT EXISTS idx_battery_history_ts ON battery_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_cell_voltages_history ON cell_voltages_history(battery_history_id, cell_number);
CREATE INDEX IF NOT EXISTS idx_cell_temperatures_history ON cell_temperatures_history(battery_history_id, cell_number);
`
