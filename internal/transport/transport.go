// Package transport wraps the shared Modbus/TCP connection used by every
// Device. It is the only mutable resource the collector shares across
// goroutines: one connection, exclusive-at-a-time use, serialized by the
// caller holding Lock for the full span of a device's sample.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"
)

// ErrorKind distinguishes a TCP/transport-level failure (timeout, reset,
// refused connection) from a Modbus protocol-level exception response
// (illegal address, illegal function, ...), so the two can be told apart
// in logs. Both count as one ordinary failure.
type ErrorKind int

const (
	TransportIO ErrorKind = iota
	ModbusProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case TransportIO:
		return "transport_io"
	case ModbusProtocol:
		return "modbus_protocol"
	default:
		return "unknown"
	}
}

// Error wraps a failed Modbus request with its ErrorKind classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// classify wraps err from the goburrow/modbus client: a *mb.ModbusError
// means the remote device answered with an exception response
// (ModbusProtocol); anything else is a transport-level failure
// (TransportIO).
func classify(err error) error {
	var mbErr *mb.ModbusError
	if errors.As(err, &mbErr) {
		return &Error{Kind: ModbusProtocol, Err: err}
	}
	return &Error{Kind: TransportIO, Err: err}
}

// Transport owns the single TCP connection to the Modbus server and
// serializes all access to it.
type Transport struct {
	mu      sync.Mutex
	handler *mb.TCPClientHandler
	client  mb.Client
}

// Dial opens the TCP connection to hostname:port with connect/read/write
// timeouts all equal to timeout. Failure to connect is fatal at startup.
func Dial(hostname string, port int, timeout time.Duration) (*Transport, error) {
	handler := mb.NewTCPClientHandler(fmt.Sprintf("%s:%d", hostname, port))
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", hostname, port, err)
	}
	return &Transport{handler: handler, client: mb.NewClient(handler)}, nil
}

// Close closes the underlying TCP connection.
func (t *Transport) Close() error {
	return t.handler.Close()
}

// Lock acquires exclusive use of the transport for the duration of one
// device's sample. Callers must call Unlock when done.
func (t *Transport) Lock() { t.mu.Lock() }

// Unlock releases exclusive use of the transport.
func (t *Transport) Unlock() { t.mu.Unlock() }

// SetUnitID selects the Modbus unit id for subsequent requests. Must be
// called while holding Lock.
func (t *Transport) SetUnitID(id uint8) {
	t.handler.SlaveId = id
}

// ReadInputRegisters issues function code 0x04 for the [start, start+count)
// word range and returns the decoded big-endian words. Must be called while
// holding Lock.
func (t *Transport) ReadInputRegisters(start, count uint16) ([]uint16, error) {
	raw, err := t.client.ReadInputRegisters(start, count)
	if err != nil {
		return nil, classify(err)
	}
	words := make([]uint16, count)
	for i := range words {
		words[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	return words, nil
}
