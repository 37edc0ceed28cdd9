// Package port implements byte transports for NE-series pumps.
//
// The SerialPort type adapts a physical RS-232 port to the [nesp.Port]
// contract: blocking fixed-length receives plus a count of bytes already
// buffered and unread.
package port

import (
	"bufio"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/fluidlab/go-nesp/nesp"
)

// DefaultBaudRate is the factory-set baud rate of NE-series pumps.
const DefaultBaudRate = 9600

// SerialPort is a serial transport for one or more daisy-chained pumps.
type SerialPort struct {
	port serial.Port
	r    *bufio.Reader
}

var _ nesp.Port = (*SerialPort)(nil)

// serialConfig holds configuration for a SerialPort.
type serialConfig struct {
	baudRate int
}

// SerialOption is a functional option for configuring a SerialPort.
type SerialOption interface {
	apply(*serialConfig) error
}

type serialOptFunc func(*serialConfig) error

func (f serialOptFunc) apply(cfg *serialConfig) error { return f(cfg) }

// WithBaudRate sets the baud rate. NE-series pumps support 300 to 19200 baud.
func WithBaudRate(baudRate int) SerialOption {
	return serialOptFunc(func(cfg *serialConfig) error {
		if baudRate <= 0 {
			return fmt.Errorf("port: baud rate %d must be positive", baudRate)
		}
		cfg.baudRate = baudRate

		return nil
	})
}

// OpenSerial opens the named serial port with 8 data bits, no parity, and one
// stop bit, the frame format NE-series pumps use.
func OpenSerial(name string, opts ...SerialOption) (*SerialPort, error) {
	cfg := &serialConfig{baudRate: DefaultBaudRate}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("port: open %s: %w", name, err)
	}

	return &SerialPort{port: sp, r: bufio.NewReader(sp)}, nil
}

// Send writes the whole frame to the port.
func (s *SerialPort) Send(data []byte) error {
	n, err := s.port.Write(data)
	if err != nil {
		return fmt.Errorf("port: write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("port: short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Receive blocks until exactly n bytes have been read.
func (s *SerialPort) Receive(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, fmt.Errorf("port: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// Pending returns the number of received bytes already buffered and unread.
func (s *SerialPort) Pending() (int, error) {
	return s.r.Buffered(), nil
}

// Close closes the underlying serial port. Stop any pump heartbeats first.
func (s *SerialPort) Close() error {
	return s.port.Close()
}
