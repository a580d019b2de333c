package ptz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRange is returned when a semantic value cannot be represented in the
// frame: receiver address, auxiliary channel, preset number or speed
// magnitude outside what its bit field holds.
var ErrRange = errors.New("value out of range")

// MinReceiver and MaxReceiver bound the receiver address of both protocols.
const (
	MinReceiver = 1
	MaxReceiver = 255
)

// Frame is an encoded command ready for the wire.
type Frame interface {
	// Octets returns the frame bytes exactly as transmitted.
	Octets() []byte
}

// CheckReceiver validates a receiver address.
func CheckReceiver(receiver int) error {
	if receiver < MinReceiver || receiver > MaxReceiver {
		return fmt.Errorf("%w: receiver %d not in %d-%d", ErrRange, receiver, MinReceiver, MaxReceiver)
	}
	return nil
}

// Hex formats frame bytes as colon separated hex, e.g. "80:1C:02".
func Hex(octets []byte) string {
	parts := make([]string, len(octets))
	for i, o := range octets {
		parts[i] = fmt.Sprintf("%02X", o)
	}
	return strings.Join(parts, ":")
}

// Magnitude returns |v|, failing with ErrRange when it exceeds max.
func Magnitude(v, max int) (uint32, error) {
	if v < 0 {
		v = -v
	}
	if v > max {
		return 0, fmt.Errorf("%w: magnitude %d exceeds %d", ErrRange, v, max)
	}
	return uint32(v), nil
}
