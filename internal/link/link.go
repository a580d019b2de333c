// Package link opens the byte sinks that carry telemetry frames to a
// receiver: a local serial port or a serial terminal server reached over
// TCP or UDP.
package link

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Link types.
const (
	Serial = "serial"
	TCP    = "tcp"
	UDP    = "udp"
)

const (
	DefaultBaud         = 9600
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = time.Second
)

var ErrUnknownType = errors.New("unknown link type")

// Config for a link
type Config struct {
	Type    string // "serial", "tcp" or "udp"
	Address string // device path for serial, host:port otherwise
	Baud    int    // serial only, default 9600

	// WriteTimeout bounds each network write so a stalled terminal
	// server surfaces as an error instead of blocking the transmitter.
	WriteTimeout time.Duration
}

// Open opens the sink described by cfg.
func Open(cfg Config) (io.WriteCloser, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("link address is required")
	}
	switch cfg.Type {
	case Serial, "":
		return openSerial(cfg)
	case TCP, UDP:
		return dial(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
}

func openSerial(cfg Config) (io.WriteCloser, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(cfg.Address, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Address, err)
	}
	return port, nil
}

func dial(cfg Config) (io.WriteCloser, error) {
	conn, err := net.DialTimeout(cfg.Type, cfg.Address, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s over %s: %w", cfg.Address, cfg.Type, err)
	}
	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = DefaultWriteTimeout
	}
	return &deadlineConn{Conn: conn, timeout: timeout}, nil
}

// deadlineConn arms a write deadline before every write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// Ports lists the serial ports present on this machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
