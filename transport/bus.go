// Package transport owns exclusive access to the RS-485 serial link and
// serializes every request/reply exchange that crosses it.
package transport

import (
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/williamsioSapo/esm-battery-gateway/clog"
)

// SerialConfig describes how to open the RS-485 port.
type SerialConfig struct {
	Port     string
	Baud     int
	Parity   serial.Parity
	StopBits serial.StopBits
	Size     byte
	Timeout  time.Duration
}

// port is the subset of *serial.Port this package depends on, so tests can
// substitute a fake without opening a real device.
type port interface {
	io.ReadWriteCloser
	Flush() error
}

// Bus is the sole owner of the serial handle. Every Transact call is
// serialized by ticket, so concurrent callers from the initializer and the
// monitor loop never interleave bytes on the wire (I2).
type Bus struct {
	log    clog.Clog
	mu     sync.Mutex
	ticket chan struct{}
	port   port
}

// NewBus returns an unopened Bus. Open must be called before Transact.
func NewBus(log clog.Clog) *Bus {
	b := &Bus{log: log, ticket: make(chan struct{}, 1)}
	b.ticket <- struct{}{}
	return b
}

// Open establishes the serial connection described by cfg.
func (b *Bus) Open(cfg SerialConfig) error {
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Parity:      cfg.Parity,
		StopBits:    cfg.StopBits,
		Size:        cfg.Size,
		ReadTimeout: cfg.Timeout,
	})
	if err != nil {
		return &TransportError{Cause: err}
	}
	b.mu.Lock()
	b.port = p
	b.mu.Unlock()
	return nil
}

// Close releases the serial handle.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

// settleDelay is the pause after writing a request before reading begins,
// giving the slave device time to start its reply.
const settleDelay = 200 * time.Millisecond

// Transact acquires the bus ticket, writes request, and reads a reply of up
// to expectedLen bytes (or, if expectedLen <= 0, whatever arrives before a
// read returns nothing or readTimeout elapses). It releases the ticket
// before returning.
func (b *Bus) Transact(request []byte, expectedLen int, readTimeout time.Duration) ([]byte, error) {
	<-b.ticket
	defer func() { b.ticket <- struct{}{} }()

	b.mu.Lock()
	p := b.port
	b.mu.Unlock()
	if p == nil {
		return nil, ErrNotConnected
	}

	if err := p.Flush(); err != nil {
		b.log.Warn("flush before transact failed: %v", err)
	}
	if _, err := p.Write(request); err != nil {
		return nil, &TransportError{Cause: err}
	}

	time.Sleep(settleDelay)

	reply, err := readReply(p, expectedLen, readTimeout)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	return reply, nil
}

// readReply reads until expectedLen bytes have arrived (returning exactly
// that many), a read returns no bytes, or readTimeout has elapsed since
// reading began, whichever comes first; expectedLen <= 0 disables the
// first condition.
func readReply(p port, expectedLen int, readTimeout time.Duration) ([]byte, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		n, err := p.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if expectedLen > 0 && len(buf) >= expectedLen {
				return buf[:expectedLen], nil
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			if len(buf) > 0 {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}
