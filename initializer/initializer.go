// Package initializer brings a fleet of batteries online: wake-up probe,
// authentication handshake, and device-info read, in that order per id.
package initializer

import (
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/deviceinfo"
)

// Authenticator is the subset of auth.Authenticator the Initializer drives.
type Authenticator interface {
	Run(slave byte) error
}

// Engine is the subset of protocol.Engine the Initializer reads through.
type Engine interface {
	ReadHolding(slave byte, address, count uint16) ([]uint16, error)
	ReadAllDeviceInfo(slave byte) ([]byte, error)
}

// HistorySync is the subset of historywriter.Store the Initializer upserts
// sync-status bookkeeping through once a battery's identification read
// succeeds. A nil HistorySync disables the upsert.
type HistorySync interface {
	UpsertInitialSync(id byte, manufacturer, model, serialNumber string, cellCount int) error
}

// defaultMaxAttempts is how many wake-up reads are tried before giving up,
// per SPEC_FULL.md's exponential back-off requirement.
const defaultMaxAttempts = 5

const interBatteryPause = 1 * time.Second

// cellCountAddress holds a battery's cell count; batteries that don't
// answer it fall back to defaultCellCount.
const cellCountAddress = 0x010F
const defaultCellCount = 16

// Sleeper abstracts time.Sleep so tests run without real delays.
type Sleeper func(time.Duration)

// Initializer drives the bring-up pipeline for a list of battery ids.
type Initializer struct {
	engine      Engine
	auth        Authenticator
	registry    *authstatus.Registry
	cache       *deviceinfo.Cache
	history     HistorySync
	log         clog.Clog
	maxAttempts int
	sleep       Sleeper
}

// New returns an Initializer wired to its collaborators, using the default
// max wake-up attempts (5) and a real time.Sleep. history may be nil, in
// which case the sync-status upsert after a successful read-info is
// skipped.
func New(engine Engine, auth Authenticator, registry *authstatus.Registry, cache *deviceinfo.Cache, history HistorySync, log clog.Clog) *Initializer {
	return &Initializer{
		engine:      engine,
		auth:        auth,
		registry:    registry,
		cache:       cache,
		history:     history,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		sleep:       time.Sleep,
	}
}

// WithMaxAttempts overrides the wake-up retry budget.
func (ini *Initializer) WithMaxAttempts(n int) *Initializer {
	ini.maxAttempts = n
	return ini
}

// WithSleeper overrides the sleep function; intended for tests.
func (ini *Initializer) WithSleeper(s Sleeper) *Initializer {
	ini.sleep = s
	return ini
}

// BatteryResult is the outcome of bringing up one battery.
type BatteryResult struct {
	ID      byte
	Status  string // "success", "failed"
	Voltage float64
	Detail  string
}

// Result aggregates the outcome of initializing a set of batteries.
type Result struct {
	Status           string // "success", "partial", "error"
	InitializedCount int
	FailedCount      int
	Batteries        []BatteryResult
}

// InitializeBatteries runs the bring-up pipeline for each id in order,
// pausing interBatteryPause between ids.
func (ini *Initializer) InitializeBatteries(ids []byte) Result {
	res := Result{Status: "success"}
	for i, id := range ids {
		ini.log.Debug("initializing battery %d/%d: id=%d", i+1, len(ids), id)
		br := ini.initializeSingle(id)
		res.Batteries = append(res.Batteries, br)
		if br.Status == "success" {
			res.InitializedCount++
		} else {
			res.FailedCount++
		}
		if i < len(ids)-1 {
			ini.sleep(interBatteryPause)
		}
	}
	switch {
	case res.FailedCount == 0:
		res.Status = "success"
	case res.InitializedCount == 0:
		res.Status = "error"
	default:
		res.Status = "partial"
	}
	return res
}

func (ini *Initializer) initializeSingle(id byte) BatteryResult {
	ini.registry.Initialize(id)

	voltage, err := ini.wakeUp(id)
	if err != nil {
		ini.registry.UpdatePhase(id, authstatus.PhaseWakeUp, authstatus.Failed, err.Error())
		return BatteryResult{ID: id, Status: "failed", Detail: "wake_up: " + err.Error()}
	}
	ini.registry.UpdatePhase(id, authstatus.PhaseWakeUp, authstatus.Success, "battery responded")

	ini.registry.UpdatePhase(id, authstatus.PhaseAuthenticate, authstatus.InProgress, "running handshake")
	if err := ini.auth.Run(id); err != nil {
		ini.registry.UpdatePhase(id, authstatus.PhaseAuthenticate, authstatus.Failed, err.Error())
		return BatteryResult{ID: id, Status: "failed", Voltage: voltage, Detail: "authenticate: " + err.Error()}
	}
	ini.registry.UpdatePhase(id, authstatus.PhaseAuthenticate, authstatus.Success, "handshake accepted")

	ini.registry.UpdatePhase(id, authstatus.PhaseReadInfo, authstatus.InProgress, "reading device info")
	combined, err := ini.engine.ReadAllDeviceInfo(id)
	if err != nil || len(combined) == 0 {
		detail := "no device-info data returned"
		if err != nil {
			detail = err.Error()
		}
		ini.registry.UpdatePhase(id, authstatus.PhaseReadInfo, authstatus.Failed, detail)
		return BatteryResult{ID: id, Status: "failed", Voltage: voltage, Detail: "read_info: " + detail}
	}
	info := ini.cache.Update(id, string(combined))
	ini.registry.UpdatePhase(id, authstatus.PhaseReadInfo, authstatus.Success, "device info parsed")
	ini.upsertSyncStatus(id, info)

	status := "success"
	detail := ""
	if !info.IsHuawei {
		detail = "device responded but is not a recognized Huawei ESM battery"
	}
	return BatteryResult{ID: id, Status: status, Voltage: voltage, Detail: detail}
}

// upsertSyncStatus records the battery's identification and cell count in
// the history store's sync_status bookkeeping row, once read-info has
// succeeded. A read failure on the cell-count register falls back to
// defaultCellCount rather than failing the whole bring-up.
func (ini *Initializer) upsertSyncStatus(id byte, info deviceinfo.Info) {
	if ini.history == nil {
		return
	}
	cellCount := defaultCellCount
	if regs, err := ini.engine.ReadHolding(id, cellCountAddress, 1); err == nil && len(regs) == 1 {
		cellCount = int(regs[0])
	}
	if err := ini.history.UpsertInitialSync(id, info.Manufacturer, info.Model, info.Barcode, cellCount); err != nil {
		ini.log.Warn("battery %d: upsert sync status failed: %v", id, err)
	}
}

// wakeUp probes register 0 up to maxAttempts times with exponential
// back-off, sleeping 2^(n-1)s after failed attempt n (1,2,4,8s with the
// default 5 attempts; no sleep follows the last one), releasing the
// caller's hold on the bus between attempts so concurrent monitor polls
// can interleave.
func (ini *Initializer) wakeUp(id byte) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= ini.maxAttempts; attempt++ {
		regs, err := ini.engine.ReadHolding(id, 0, 1)
		if err == nil && len(regs) == 1 {
			return float64(regs[0]) * 0.01, nil
		}
		lastErr = err
		if attempt == ini.maxAttempts {
			break
		}
		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		ini.log.Debug("battery %d: wake-up attempt %d failed, retrying in %v", id, attempt, backoff)
		ini.sleep(backoff)
	}
	if lastErr == nil {
		lastErr = errNoResponse
	}
	return 0, lastErr
}

type noResponse struct{}

func (noResponse) Error() string { return "battery did not respond to wake-up probe" }

var errNoResponse error = noResponse{}
