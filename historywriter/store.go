package historywriter

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
)

// Store is the sole owner of the relational connection; no other package
// touches the database directly.
type Store struct {
	db  *sqlx.DB
	log clog.Clog
}

// Open creates (if needed) and opens the SQLite database at path, enabling
// WAL journaling, then ensures the schema exists.
func Open(path string, log clog.Clog) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("historywriter: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("historywriter: enable WAL: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		return nil, fmt.Errorf("historywriter: create tables: %w", err)
	}
	if _, err := db.Exec(createIndexesSQL); err != nil {
		return nil, fmt.Errorf("historywriter: create indexes: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record is one sampled or imported history entry.
type Record struct {
	BatteryID byte
	Timestamp time.Time
	Source    string // "initial_sync" or "live_monitor"
	Fields    map[string]interface{}
	Cells     CellStats
}

// Cell is one per-cell reading.
type Cell struct {
	CellNumber int
	Value      float64
	Status     string // "OK" or "DISCONNECTED"
	RawValue   int
}

// CellStats is the min/max/avg summary computed over OK cells only.
type CellStats struct {
	Count               int
	VoltageMin          *float64
	VoltageMax          *float64
	VoltageAvg          *float64
	TempMin             *float64
	TempMax             *float64
	TempAvg             *float64
	voltageCells        []Cell
	temperatureCells    []Cell
	hasVoltageCells     bool
	hasTemperatureCells bool
}

// NewCellStats computes CellStats from raw voltage/temperature cell lists,
// keeping the raw cells so Insert can also persist per-cell rows.
func NewCellStats(voltages, temperatures []Cell) CellStats {
	stats := CellStats{voltageCells: voltages, temperatureCells: temperatures}
	stats.hasVoltageCells = len(voltages) > 0
	stats.hasTemperatureCells = len(temperatures) > 0

	if vs := okValues(voltages); len(vs) > 0 {
		min, max, avg := minMaxAvg(vs)
		stats.VoltageMin, stats.VoltageMax, stats.VoltageAvg = &min, &max, &avg
		stats.Count = len(voltages)
	}
	if ts := okValues(temperatures); len(ts) > 0 {
		min, max, avg := minMaxAvg(ts)
		stats.TempMin, stats.TempMax, stats.TempAvg = &min, &max, &avg
		if stats.Count == 0 {
			stats.Count = len(temperatures)
		}
	}
	return stats
}

func okValues(cells []Cell) []float64 {
	var out []float64
	for _, c := range cells {
		if c.Status == "OK" {
			out = append(out, c.Value)
		}
	}
	return out
}

func minMaxAvg(vals []float64) (min, max, avg float64) {
	min, max = vals[0], vals[0]
	sum := 0.0
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(vals))
}

// Insert commits rec, first attempting a direct insert. On a missing-column
// error it infers the column's SQL type from the Go value, adds the
// column, and retries exactly once. A duplicate (battery_id, timestamp) is
// dropped silently (not an error).
func (s *Store) Insert(rec Record) error {
	historyID, err := s.insertNormal(rec)
	if err == nil {
		s.insertCells(historyID, rec.Cells)
		return nil
	}
	if isDuplicateKey(err) {
		s.log.Debug("battery %d: duplicate history row at %s dropped", rec.BatteryID, rec.Timestamp)
		return nil
	}
	missing, ok := extractMissingColumn(err)
	if !ok {
		return err
	}
	value, present := rec.Fields[missing]
	if !present {
		return err
	}
	colType := detectColumnType(value)
	if addErr := s.autoAddColumn(missing, colType); addErr != nil {
		return fmt.Errorf("historywriter: auto-add column %s failed: %w (original: %v)", missing, addErr, err)
	}
	s.log.Debug("auto-expand: added column %s (%s)", missing, colType)
	historyID, err = s.insertNormal(rec)
	if err != nil {
		return err
	}
	s.insertCells(historyID, rec.Cells)
	return nil
}

func (s *Store) insertNormal(rec Record) (int64, error) {
	base := map[string]interface{}{
		"battery_id":        rec.BatteryID,
		"timestamp":         rec.Timestamp.Format(time.RFC3339),
		"source":            rec.Source,
		"cell_count":        rec.Cells.Count,
		"cell_voltage_min":  rec.Cells.VoltageMin,
		"cell_voltage_max":  rec.Cells.VoltageMax,
		"cell_voltage_avg":  rec.Cells.VoltageAvg,
		"cell_temp_min":     rec.Cells.TempMin,
		"cell_temp_max":     rec.Cells.TempMax,
		"cell_temp_avg":     rec.Cells.TempAvg,
		"created_at":        time.Now().Format(time.RFC3339),
	}
	for k, v := range rec.Fields {
		if _, exists := base[k]; !exists {
			base[k] = v
		}
	}

	cols := make([]string, 0, len(base))
	placeholders := make([]string, 0, len(base))
	values := make([]interface{}, 0, len(base))
	for k, v := range base {
		cols = append(cols, k)
		placeholders = append(placeholders, "?")
		values = append(values, v)
	}

	query := fmt.Sprintf("INSERT INTO battery_history (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.Exec(query, values...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) insertCells(historyID int64, stats CellStats) {
	if historyID == 0 {
		return
	}
	for _, c := range stats.voltageCells {
		if _, err := s.db.Exec(
			`INSERT INTO cell_voltages_history (battery_history_id, cell_number, voltage, status, raw_value) VALUES (?, ?, ?, ?, ?)`,
			historyID, c.CellNumber, c.Value, c.Status, c.RawValue); err != nil {
			s.log.Warn("insert cell voltage failed: %v", err)
		}
	}
	for _, c := range stats.temperatureCells {
		if _, err := s.db.Exec(
			`INSERT INTO cell_temperatures_history (battery_history_id, cell_number, temperature, status, raw_value) VALUES (?, ?, ?, ?, ?)`,
			historyID, c.CellNumber, c.Value, c.Status, c.RawValue); err != nil {
			s.log.Warn("insert cell temperature failed: %v", err)
		}
	}
}

func (s *Store) autoAddColumn(column, sqlType string) error {
	_, err := s.db.Exec(fmt.Sprintf("ALTER TABLE battery_history ADD COLUMN %s %s", column, sqlType))
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
		return nil
	}
	return err
}

// extractMissingColumn parses SQLite's missing-column error shapes: "table
// T has no column named X" (raised by INSERT) and "no such column: X".
func extractMissingColumn(err error) (string, bool) {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"has no column named", "no such column:"} {
		if idx := strings.Index(msg, marker); idx != -1 {
			rest := err.Error()[idx+len(marker):]
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func isDuplicateKey(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// detectColumnType infers a SQLite column type from a Go runtime value:
// bool and integer kinds map to INTEGER, floats to REAL, strings and every
// other type to TEXT, and nil to INTEGER per the original's convention.
func detectColumnType(value interface{}) string {
	switch value.(type) {
	case nil:
		return "INTEGER"
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case string:
		return "TEXT"
	default:
		return "TEXT"
	}
}
