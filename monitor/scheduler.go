// Package monitor implements the round-robin telemetry polling loop and
// the live status cache it maintains for each battery.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/deviceinfo"
)

// Engine is the subset of protocol.Engine the Scheduler reads through.
type Engine interface {
	ReadHolding(slave byte, address, count uint16) ([]uint16, error)
}

// HistorySink receives a Sample whenever the history period has elapsed
// for a battery, grounded on historywriter.Store.CommitSample.
type HistorySink interface {
	CommitSample(id byte, s Sample) error
}

// Status describes the charge/discharge direction derived from current.
type Status string

const (
	Charging    Status = "charging"
	Discharging Status = "discharging"
	Idle        Status = "idle"
)

// Sample is one battery's most recently polled telemetry, or an error if
// the last poll failed. Extended and the cell arrays are only populated
// when a sample is built for the history pipeline (§4.9); the live
// telemetry cache entry never carries them.
type Sample struct {
	BatteryID        byte
	Timestamp        time.Time
	Voltage          float64
	PackVoltage      float64
	Current          float64
	SOC              uint16
	SOH              uint16
	TempMax          uint16
	TempMin          uint16
	Status           Status
	Err              error
	Extended         map[string]uint32
	VoltageCells     []CellReading
	TemperatureCells []CellReading
}

// CellReading is one raw cell voltage or temperature reading, decoded with
// the disconnected-sensor sentinel for its kind already applied.
type CellReading struct {
	CellNumber int
	RawValue   uint16
	Value      float64
	Status     string // "OK" or "DISCONNECTED"
}

// AdditionalRegister describes one extended telemetry field read after the
// live 7-register sample whenever a battery enters the history pipeline.
type AdditionalRegister struct {
	Name    string
	Address uint16
	Words   int // 1 (16-bit direct) or 2 (32-bit, (msw<<16)|lsw)
}

// DefaultAdditionalRegisters is the extended-field set read opportunistically
// alongside every history commit, grounded in the Huawei register map
// (operations.py / history/database.py): discharge counters, accumulated
// charge cycles, and the fault/mode/subsystem status words.
var DefaultAdditionalRegisters = []AdditionalRegister{
	{Name: "discharge_times_total", Address: 0x0042, Words: 2},
	{Name: "discharge_ah_accumulated", Address: 0x0044, Words: 2},
	{Name: "hardware_faults", Address: 0x0046, Words: 1},
	{Name: "sensor_status", Address: 0x0048, Words: 1},
	{Name: "operation_mode", Address: 0x0049, Words: 1},
	{Name: "subsystem_status", Address: 0x004A, Words: 1},
	{Name: "charge_cycles_accumulated", Address: 0x7D6B, Words: 2},
}

// Cell voltage/temperature block addresses. Block 1 (cells 1-16) is the
// confirmed register range; block 2 (cells 17-24) is experimental and
// absent on some firmware, so its read is tolerated as a partial miss.
const (
	cellVoltageBlock1Address     = 0x0022
	cellTemperatureBlock1Address = 0x0012
	cellBlock1Count              = 16
	cellVoltageBlock2Address     = 0x0310
	cellTemperatureBlock2Address = 0x0300
	cellBlock2Count              = 8

	voltageDisconnected = 0xFFFF
)

func isTemperatureDisconnected(raw uint16) bool {
	return raw == 0x7FFF || raw == 0xFC19
}

func deriveStatus(current float64) Status {
	switch {
	case current > 0.05:
		return Charging
	case current < -0.05:
		return Discharging
	default:
		return Idle
	}
}

func sampleFromRegisters(id byte, regs []uint16) Sample {
	current := float64(int16(regs[2])) * 0.01
	return Sample{
		BatteryID:   id,
		Timestamp:   time.Now(),
		Voltage:     float64(regs[0]) * 0.01,
		PackVoltage: float64(regs[1]) * 0.01,
		Current:     current,
		SOC:         regs[3],
		SOH:         regs[4],
		TempMax:     regs[5],
		TempMin:     regs[6],
		Status:      deriveStatus(current),
	}
}

const interBatterySleep = 500 * time.Millisecond

// Config holds the Scheduler's tunables.
type Config struct {
	BatteryIDs     []byte
	PollingPeriod  time.Duration
	HistoryPeriod  time.Duration
	HistoryEnabled bool
}

// DefaultConfig returns the documented defaults: an 8s poll period and a
// 120s history period.
func DefaultConfig(ids []byte) Config {
	return Config{
		BatteryIDs:    ids,
		PollingPeriod: 8 * time.Second,
		HistoryPeriod: 120 * time.Second,
	}
}

// Scheduler is the long-lived polling worker.
type Scheduler struct {
	cfg     Config
	engine  Engine
	cache   *deviceinfo.Cache
	history HistorySink
	log     clog.Clog

	mu           sync.RWMutex
	latest       map[byte]Sample
	lastHistory  map[byte]time.Time
	running      int32
	cancel       context.CancelFunc
	loopDone     chan struct{}
	detailActive int32
	detailTotal  int
	detailDone   int
	detailCur    byte
}

// NewScheduler returns a Scheduler ready to Start.
func NewScheduler(cfg Config, engine Engine, cache *deviceinfo.Cache, history HistorySink, log clog.Clog) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		engine:      engine,
		cache:       cache,
		history:     history,
		log:         log,
		latest:      make(map[byte]Sample),
		lastHistory: make(map[byte]time.Time),
	}
}

// Start launches the polling loop in a new goroutine. It is a no-op if
// already running.
func (s *Scheduler) Start() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits up to 2s for it to join.
func (s *Scheduler) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}
	s.cancel()
	select {
	case <-s.loopDone:
	case <-time.After(2 * time.Second):
		s.log.Warn("monitor: loop did not stop within 2s")
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)
	for {
		for _, id := range s.cfg.BatteryIDs {
			if ctx.Err() != nil {
				return
			}
			s.pollOne(id)
			select {
			case <-ctx.Done():
				return
			case <-time.After(interBatterySleep):
			}
		}
		if !s.sleepPollingPeriod(ctx) {
			return
		}
	}
}

// sleepPollingPeriod sleeps in 1s increments, returning false if cancelled
// mid-sleep.
func (s *Scheduler) sleepPollingPeriod(ctx context.Context) bool {
	remaining := s.cfg.PollingPeriod
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return true
}

func (s *Scheduler) pollOne(id byte) {
	regs, err := s.engine.ReadHolding(id, 0, 7)
	var sample Sample
	if err != nil || len(regs) != 7 {
		if err == nil {
			err = shortReplyError{}
		}
		sample = Sample{BatteryID: id, Timestamp: time.Now(), Err: err}
		s.log.Warn("battery %d: poll failed: %v", id, err)
	} else {
		sample = sampleFromRegisters(id, regs)
	}

	s.mu.Lock()
	s.latest[id] = sample
	due := s.cfg.HistoryEnabled && time.Since(s.lastHistory[id]) >= s.cfg.HistoryPeriod
	s.mu.Unlock()

	if sample.Err == nil && due && s.history != nil {
		histSample := sample
		histSample.Extended = s.readAdditionalRegisters(id)
		histSample.VoltageCells = s.readCellBlocks(id, cellVoltageBlock1Address, cellVoltageBlock2Address, 0.001, false)
		histSample.TemperatureCells = s.readCellBlocks(id, cellTemperatureBlock1Address, cellTemperatureBlock2Address, 1, true)
		if err := s.history.CommitSample(id, histSample); err != nil {
			s.log.Error("battery %d: history commit failed: %v", id, err)
		} else {
			s.mu.Lock()
			s.lastHistory[id] = time.Now()
			s.mu.Unlock()
		}
	}
}

// readAdditionalRegisters sweeps DefaultAdditionalRegisters for id,
// recording whatever fields answer and silently skipping the rest — a
// battery's firmware may not implement all of them.
func (s *Scheduler) readAdditionalRegisters(id byte) map[string]uint32 {
	extended := make(map[string]uint32, len(DefaultAdditionalRegisters))
	for _, reg := range DefaultAdditionalRegisters {
		regs, err := s.engine.ReadHolding(id, reg.Address, uint16(reg.Words))
		if err != nil || len(regs) != reg.Words {
			s.log.Debug("battery %d: additional register %s (0x%04X) unavailable: %v", id, reg.Name, reg.Address, err)
			continue
		}
		if reg.Words == 2 {
			extended[reg.Name] = uint32(regs[0])<<16 | uint32(regs[1])
		} else {
			extended[reg.Name] = uint32(regs[0])
		}
	}
	return extended
}

// readCellBlocks reads the confirmed block-1 range (cells 1-16) and, on a
// best-effort basis, the experimental block-2 range (cells 17-24), tagging
// each reading OK/DISCONNECTED per its kind's sentinel value.
func (s *Scheduler) readCellBlocks(id byte, block1Address, block2Address uint16, factor float64, temperature bool) []CellReading {
	cells := s.readCellBlock(id, block1Address, cellBlock1Count, 1, factor, temperature)
	cells = append(cells, s.readCellBlock(id, block2Address, cellBlock2Count, cellBlock1Count+1, factor, temperature)...)
	return cells
}

func (s *Scheduler) readCellBlock(id byte, address uint16, count, firstCellNumber int, factor float64, temperature bool) []CellReading {
	regs, err := s.engine.ReadHolding(id, address, uint16(count))
	if err != nil || len(regs) != count {
		s.log.Debug("battery %d: cell block at 0x%04X unavailable: %v", id, address, err)
		return nil
	}
	out := make([]CellReading, count)
	for i, raw := range regs {
		status := "OK"
		if temperature && isTemperatureDisconnected(raw) {
			status = "DISCONNECTED"
		} else if !temperature && raw == voltageDisconnected {
			status = "DISCONNECTED"
		}
		out[i] = CellReading{CellNumber: firstCellNumber + i, RawValue: raw, Value: float64(raw) * factor, Status: status}
	}
	return out
}

type shortReplyError struct{}

func (shortReplyError) Error() string { return "poll reply did not contain 7 registers" }

// Latest returns the most recent sample for id, if any.
func (s *Scheduler) Latest(id byte) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.latest[id]
	return sample, ok
}

// AllLatest returns every currently cached sample.
func (s *Scheduler) AllLatest() map[byte]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[byte]Sample, len(s.latest))
	for id, sample := range s.latest {
		out[id] = sample
	}
	return out
}
