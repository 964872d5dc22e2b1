// Package fleet wires the bus, protocol engine, authentication handshake,
// status registry, device-info cache, initializer, monitor scheduler, and
// history writer into one owned handle, replacing the module-level
// singletons the controller this is based on used for the same
// collaborators.
package fleet

import (
	"fmt"
	"time"

	"github.com/williamsioSapo/esm-battery-gateway/auth"
	"github.com/williamsioSapo/esm-battery-gateway/authstatus"
	"github.com/williamsioSapo/esm-battery-gateway/clog"
	"github.com/williamsioSapo/esm-battery-gateway/config"
	"github.com/williamsioSapo/esm-battery-gateway/deviceinfo"
	"github.com/williamsioSapo/esm-battery-gateway/gate"
	"github.com/williamsioSapo/esm-battery-gateway/historywriter"
	"github.com/williamsioSapo/esm-battery-gateway/initializer"
	"github.com/williamsioSapo/esm-battery-gateway/monitor"
	"github.com/williamsioSapo/esm-battery-gateway/protocol"
	"github.com/williamsioSapo/esm-battery-gateway/transport"

	"github.com/tarm/serial"
)

// Fleet is the top-level handle a process builds once at startup and
// passes down to whatever drives it (a CLI command, a scan routine, a
// future presentation layer).
type Fleet struct {
	Bus     *transport.Bus
	Engine  *protocol.Engine
	Auth    *auth.Authenticator
	Status  *authstatus.Registry
	Info    *deviceinfo.Cache
	Init    *initializer.Initializer
	Monitor *monitor.Scheduler
	History *historywriter.Store
	// Ops is the gated façade over Engine: every call first consults the
	// fleet-wide authentication gate and generates no bus traffic when
	// blocked. This is the surface a request-driven caller uses; the
	// monitor loop and the initializer keep talking to Engine directly.
	Ops     *gate.Gated
	IDs     []byte
	serial  config.SerialConfig
	log     clog.Clog
}

// Options collects everything New needs besides the battery id list.
type Options struct {
	Serial      config.SerialConfig
	Scanning    config.ScanningConfig
	Monitoring  config.MonitoringConfig
	HistoryPath string
	Log         clog.Clog
}

// New builds every collaborator, opening the history store at
// opts.HistoryPath, and returns an assembled Fleet. It does not open the
// serial port: the caller calls Open separately from wiring since a
// dry-run (config validation, tests) may not want a real port.
func New(ids []byte, opts Options) (*Fleet, error) {
	bus := transport.NewBus(opts.Log)
	engine := protocol.NewEngine(bus, opts.Log)
	authenticator := auth.NewAuthenticator(bus, opts.Log)
	registry := authstatus.NewRegistry()
	cache := deviceinfo.NewCache()
	engine.WithAuthentication(registry, authenticator)

	history, err := historywriter.Open(opts.HistoryPath, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("fleet: open history store: %w", err)
	}

	ini := initializer.New(engine, authenticator, registry, cache, history, opts.Log).
		WithMaxAttempts(opts.Scanning.MaxAttempts)

	monCfg := monitor.DefaultConfig(ids)
	monCfg.PollingPeriod = opts.Monitoring.PollingPeriod
	monCfg.HistoryEnabled = opts.Monitoring.HistoryEnabled
	monCfg.HistoryPeriod = time.Duration(opts.Monitoring.HistoryIntervalMinutes) * time.Minute
	sched := monitor.NewScheduler(monCfg, engine, cache, history, opts.Log)

	for _, id := range ids {
		registry.Initialize(id)
	}

	return &Fleet{
		Bus:     bus,
		Engine:  engine,
		Auth:    authenticator,
		Status:  registry,
		Info:    cache,
		Init:    ini,
		Monitor: sched,
		History: history,
		Ops:     gate.NewGated(engine, ids, registry),
		IDs:     ids,
		serial:  opts.Serial,
		log:     opts.Log,
	}, nil
}

// Open establishes the serial link using the configuration passed to New.
func (f *Fleet) Open() error {
	return f.Bus.Open(transport.SerialConfig{
		Port:     f.serial.Port,
		Baud:     f.serial.Baudrate,
		Parity:   toSerialParity(f.serial.Parity),
		StopBits: toSerialStopBits(f.serial.StopBits),
		Size:     byte(f.serial.ByteSize),
		Timeout:  f.serial.Timeout,
	})
}

func toSerialParity(p string) serial.Parity {
	switch p {
	case "E":
		return serial.ParityEven
	case "O":
		return serial.ParityOdd
	default:
		return serial.ParityNone
	}
}

func toSerialStopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.Stop2
	}
	return serial.Stop1
}

// Close releases the history store and the serial port. Safe to call even
// if Open was never called on the bus.
func (f *Fleet) Close() error {
	f.Monitor.Stop()
	busErr := f.Bus.Close()
	histErr := f.History.Close()
	if busErr != nil {
		return busErr
	}
	return histErr
}

// Ready reports whether every configured battery has finished
// authenticating, using the same gate a request-driven operation must
// pass.
func (f *Fleet) Ready() error {
	return gate.Check(f.IDs, f.Status)
}
