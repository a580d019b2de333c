// Package vicon encodes and decodes the Vicon PTZ telemetry protocol.
//
// Every frame starts with a two byte header holding the receiver address
// and the frame type. Command frames add four bytes of direction and
// switch flags; extended frames add four more carrying 11-bit pan/tilt
// speeds or an extended preset.
package vicon

import (
	"fmt"

	"ptz-telemetry/internal/bitbuf"
	"ptz-telemetry/internal/ptz"
)

// Frame sizes in bytes.
const (
	StatusSize   = 2
	CommandSize  = 6
	ExtendedSize = 10
)

const (
	headerBits   = StatusSize * 8
	commandBits  = 32 // beyond the header
	extendedBits = 64 // beyond the header
)

// Bit positions within a frame.
const (
	bitReceiverHi = 0 // 4-bit high nibble
	bitFlag       = 7
	bitReceiverLo = 8 // 4-bit low nibble
	bitCommand    = 12
	bitAckAlarm   = 13
	bitExtended   = 14

	bitAutoIris  = 17
	bitAutoPan   = 18
	bitTiltDown  = 19
	bitTiltUp    = 20
	bitPanRight  = 21
	bitPanLeft   = 22
	bitLensSpeed = 24
	bitIrisClose = 25
	bitIrisOpen  = 26
	bitFocusNear = 27
	bitFocusFar  = 28
	bitZoomIn    = 29
	bitZoomOut   = 30
	bitAux6      = 33 // aux 1 is bit 38, aux 6 bit 33
	bitPreset    = 40 // 4-bit preset number
	bitRecall    = 45
	bitStore     = 46

	bitPanSpeedHi  = 48 // 4 bits
	bitExStore     = 48
	bitExStatus    = 49
	bitExRequest   = 52
	bitPanSpeedLo  = 56 // 7 bits
	bitExPreset    = 56 // 7 bits
	bitTiltSpeedHi = 64 // 4 bits
	bitExPanSpeed  = 64 // 7 bits
	bitTiltSpeedLo = 72 // 7 bits
	bitExTiltSpeed = 72 // 7 bits
)

// Limits of the numeric fields.
const (
	MaxSpeed          = 1<<11 - 1 // pan/tilt speed in extended frames
	MaxPreset         = 1<<4 - 1  // preset number in command frames
	MaxExtendedPreset = 1<<7 - 1
	MaxExtendedSpeed  = 1<<7 - 1 // preset move speed
	AuxChannels       = 6
)

// header holds the bits shared by every Vicon frame.
type header struct {
	bits *bitbuf.Buffer
}

// newHeader allocates a frame of the header plus extension bits.
func newHeader(extension int) header {
	h := header{bits: bitbuf.New(headerBits + extension)}
	h.set(bitFlag, true)
	return h
}

// write stores a field at a fixed offset; the offsets above all fit their
// frame so a failure is a programming error.
func (h *header) write(first, count int, value uint32) {
	if err := h.bits.WriteField(first, count, value); err != nil {
		panic(fmt.Sprintf("vicon: %v", err))
	}
}

func (h *header) set(bit int, on bool) {
	var v uint8
	if on {
		v = 1
	}
	if err := h.bits.Set(bit, v); err != nil {
		panic(fmt.Sprintf("vicon: %v", err))
	}
}

// SetReceiver addresses the frame to a receiver (1-255).
func (h *header) SetReceiver(receiver int) error {
	if err := ptz.CheckReceiver(receiver); err != nil {
		return err
	}
	r := uint32(receiver)
	h.write(bitReceiverHi, 4, r>>4)
	h.write(bitReceiverLo, 4, r)
	return nil
}

// Octets returns the frame bytes.
func (h *header) Octets() []byte {
	return h.bits.Bytes()
}

func (h *header) String() string {
	return ptz.Hex(h.Octets())
}

// Status is a header-only frame used to poll or idle a receiver.
type Status struct {
	header
}

// NewStatus creates a status frame.
func NewStatus() *Status {
	return &Status{header: newHeader(0)}
}

// Command carries direction flags, lens and switch functions.
type Command struct {
	header
}

// NewCommand creates a command frame with no functions set.
func NewCommand() *Command {
	c := newCommand(commandBits)
	return &c
}

func newCommand(extension int) Command {
	c := Command{header: newHeader(extension)}
	c.set(bitCommand, true)
	return c
}

// pair clears both flags of a direction pair, then sets the one selected
// by the sign of v. Zero leaves both clear.
func (c *Command) pair(v int, negative, positive int) {
	c.set(negative, false)
	c.set(positive, false)
	if v < 0 {
		c.set(negative, true)
	} else if v > 0 {
		c.set(positive, true)
	}
}

// SetPan selects pan left (v < 0), right (v > 0) or neither.
func (c *Command) SetPan(v int) {
	c.pair(v, bitPanLeft, bitPanRight)
}

// SetTilt selects tilt down (v < 0), up (v > 0) or neither.
func (c *Command) SetTilt(v int) {
	c.pair(v, bitTiltDown, bitTiltUp)
}

// SetZoom selects zoom out (v < 0), in (v > 0) or neither.
func (c *Command) SetZoom(v int) {
	c.pair(v, bitZoomOut, bitZoomIn)
}

// SetFocus selects focus near (v < 0), far (v > 0) or neither.
func (c *Command) SetFocus(v int) {
	c.pair(v, bitFocusNear, bitFocusFar)
}

// SetIris selects iris close (v < 0), open (v > 0) or neither.
func (c *Command) SetIris(v int) {
	c.pair(v, bitIrisClose, bitIrisOpen)
}

// SetAutoIris switches the lens to automatic iris.
func (c *Command) SetAutoIris(on bool) { c.set(bitAutoIris, on) }

// SetAutoPan starts the receiver's own pan scan.
func (c *Command) SetAutoPan(on bool) { c.set(bitAutoPan, on) }

// SetLensSpeed selects the fast lens motor speed.
func (c *Command) SetLensSpeed(on bool) { c.set(bitLensSpeed, on) }

// SetAckAlarm acknowledges an alarm raised by the receiver.
func (c *Command) SetAckAlarm(on bool) { c.set(bitAckAlarm, on) }

// SetAux switches auxiliary channel 1-6.
func (c *Command) SetAux(channel int, on bool) error {
	if channel < 1 || channel > AuxChannels {
		return fmt.Errorf("%w: aux channel %d not in 1-%d", ptz.ErrRange, channel, AuxChannels)
	}
	c.set(bitAux6+AuxChannels-channel, on)
	return nil
}

// RecallPreset asks the receiver to move to preset (0-15).
func (c *Command) RecallPreset(preset int) error {
	return c.preset(preset, bitRecall, bitStore)
}

// StorePreset asks the receiver to save its position as preset (0-15).
func (c *Command) StorePreset(preset int) error {
	return c.preset(preset, bitStore, bitRecall)
}

func (c *Command) preset(preset int, on, off int) error {
	if preset < 0 || preset > MaxPreset {
		return fmt.Errorf("%w: preset %d not in 0-%d", ptz.ErrRange, preset, MaxPreset)
	}
	c.set(off, false)
	c.set(on, true)
	c.write(bitPreset, 4, uint32(preset))
	return nil
}

// SpeedCommand is an extended command carrying pan and tilt speeds.
type SpeedCommand struct {
	Command
}

// NewSpeedCommand creates an extended speed frame.
func NewSpeedCommand() *SpeedCommand {
	s := &SpeedCommand{Command: newCommand(extendedBits)}
	s.set(bitExtended, true)
	return s
}

// SetPan sets the pan direction flags and a speed of |v| (0-2047).
func (s *SpeedCommand) SetPan(v int) error {
	speed, err := ptz.Magnitude(v, MaxSpeed)
	if err != nil {
		return err
	}
	s.Command.SetPan(v)
	s.write(bitPanSpeedHi, 4, speed>>7)
	s.write(bitPanSpeedLo, 7, speed)
	return nil
}

// SetTilt sets the tilt direction flags and a speed of |v| (0-2047).
func (s *SpeedCommand) SetTilt(v int) error {
	speed, err := ptz.Magnitude(v, MaxSpeed)
	if err != nil {
		return err
	}
	s.Command.SetTilt(v)
	s.write(bitTiltSpeedHi, 4, speed>>7)
	s.write(bitTiltSpeedLo, 7, speed)
	return nil
}

// ExtendedPreset recalls or stores presets beyond 15, optionally with
// the pan/tilt speed to use for the move.
type ExtendedPreset struct {
	header
}

// NewExtendedPreset creates an extended preset recall frame.
func NewExtendedPreset() *ExtendedPreset {
	p := &ExtendedPreset{header: newHeader(extendedBits)}
	p.set(bitCommand, true)
	p.set(bitExtended, true)
	p.set(bitExRequest, true)
	return p
}

// SetPreset selects the preset number (0-127).
func (p *ExtendedPreset) SetPreset(preset int) error {
	if preset < 0 || preset > MaxExtendedPreset {
		return fmt.Errorf("%w: preset %d not in 0-%d", ptz.ErrRange, preset, MaxExtendedPreset)
	}
	p.write(bitExPreset, 7, uint32(preset))
	return nil
}

// SetStore switches between store (true) and recall (false).
func (p *ExtendedPreset) SetStore(store bool) {
	p.set(bitExStore, store)
}

// SetSpeeds sets the move speeds (0-127) used when recalling.
func (p *ExtendedPreset) SetSpeeds(pan, tilt int) error {
	ps, err := ptz.Magnitude(pan, MaxExtendedSpeed)
	if err != nil {
		return err
	}
	ts, err := ptz.Magnitude(tilt, MaxExtendedSpeed)
	if err != nil {
		return err
	}
	p.write(bitExPanSpeed, 7, ps)
	p.write(bitExTiltSpeed, 7, ts)
	return nil
}
