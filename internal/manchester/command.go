// Package manchester encodes and decodes the Manchester PTZ telemetry
// protocol: fixed three byte frames carrying either a pan/tilt move or
// one extended function (lens, auxiliary, preset).
package manchester

import (
	"fmt"

	"ptz-telemetry/internal/bitbuf"
	"ptz-telemetry/internal/ptz"
)

// FrameSize is the length of every Manchester frame in bytes.
const FrameSize = 3

const frameBits = FrameSize * 8

// Bit positions within a frame.
const (
	bitReceiverHi  = 0  // 2-bit receiver address, high part
	bitFlag        = 7  // frame sync, always set
	bitReceiverMid = 8  // 1-bit receiver address, middle part
	bitExtra       = 9  // 3-bit speed or extended function argument
	bitFunction    = 12 // 2-bit function or pan/tilt direction
	bitPanTilt     = 17 // set for pan/tilt frames
	bitReceiverLo  = 18 // 5-bit receiver address, low part
)

// Extended function codes, carried in the function field when the
// pan/tilt bit is clear.
const (
	funcLens   = 0
	funcAux    = 1
	funcRecall = 2
	funcStore  = 3
)

// Pan/tilt direction codes, carried in the function field when the
// pan/tilt bit is set.
const (
	dirTiltDown = 0
	dirTiltUp   = 1
	dirPanLeft  = 2
	dirPanRight = 3
)

// Lens function codes, carried in the extra field.
const (
	lensFullTiltDown = 0 // not a lens function: full speed tilt down
	lensIrisOpen     = 1
	lensFocusFar     = 2
	lensZoomIn       = 3
	lensIrisClose    = 4
	lensFocusNear    = 5
	lensZoomOut      = 6
	lensFullPanLeft  = 7 // not a lens function: full speed pan left
)

// Auxiliary masks that are not auxiliary channels.
const (
	auxFullTiltUp   = 0
	auxFullPanRight = 1
)

// MaxSpeed is the largest pan/tilt speed a frame can carry.
const MaxSpeed = 1<<3 - 1

// Preset numbers accepted by preset frames.
const (
	MinPreset = 1
	MaxPreset = 8
)

// auxMask maps auxiliary channels to their extra field encoding.
var auxMask = map[int]uint32{
	1: 2,
	2: 4,
	3: 6,
	4: 3,
	5: 5,
	6: 7,
}

// command holds the bits shared by every Manchester variant.
type command struct {
	bits *bitbuf.Buffer
}

func newCommand(panTilt bool, function uint32) command {
	c := command{bits: bitbuf.New(frameBits)}
	c.set(bitFlag, true)
	c.set(bitPanTilt, panTilt)
	c.write(bitFunction, 2, function)
	return c
}

// write stores a field at a fixed offset; the offsets above all fit the
// frame so a failure is a programming error.
func (c *command) write(first, count int, value uint32) {
	if err := c.bits.WriteField(first, count, value); err != nil {
		panic(fmt.Sprintf("manchester: %v", err))
	}
}

func (c *command) set(bit int, on bool) {
	var v uint8
	if on {
		v = 1
	}
	if err := c.bits.Set(bit, v); err != nil {
		panic(fmt.Sprintf("manchester: %v", err))
	}
}

// SetReceiver addresses the frame to a receiver (1-255). The address is
// sent zero based, split over three fields.
func (c *command) SetReceiver(receiver int) error {
	if err := ptz.CheckReceiver(receiver); err != nil {
		return err
	}
	r := uint32(receiver - 1)
	c.write(bitReceiverHi, 2, r>>6)
	c.write(bitReceiverMid, 1, r>>5)
	c.write(bitReceiverLo, 5, r)
	return nil
}

// Octets returns the frame bytes.
func (c *command) Octets() []byte {
	return c.bits.Bytes()
}

func (c *command) String() string {
	return ptz.Hex(c.Octets())
}

// PanTiltCommand moves the camera along one axis.
//
// Pan and tilt share the direction and speed fields, so only the last of
// SetPan and SetTilt is carried by the frame. Callers send one axis per
// frame.
type PanTiltCommand struct {
	command
}

// NewPanTilt creates a pan/tilt frame with no direction and zero speed.
func NewPanTilt() *PanTiltCommand {
	return &PanTiltCommand{command: newCommand(true, dirTiltDown)}
}

// SetPan selects pan left (v < 0) or right (v > 0) at speed |v|.
// A zero v keeps the previous direction and sets the speed to zero.
func (c *PanTiltCommand) SetPan(v int) error {
	return c.move(v, dirPanLeft, dirPanRight)
}

// SetTilt selects tilt down (v < 0) or up (v > 0) at speed |v|.
// A zero v keeps the previous direction and sets the speed to zero.
func (c *PanTiltCommand) SetTilt(v int) error {
	return c.move(v, dirTiltDown, dirTiltUp)
}

func (c *PanTiltCommand) move(v int, negative, positive uint32) error {
	speed, err := ptz.Magnitude(v, MaxSpeed)
	if err != nil {
		return err
	}
	if v < 0 {
		c.write(bitFunction, 2, negative)
	} else if v > 0 {
		c.write(bitFunction, 2, positive)
	}
	c.write(bitExtra, 3, speed)
	return nil
}

// LensCommand drives one lens function: zoom, focus or iris.
// The last non-zero setter wins.
type LensCommand struct {
	command
}

// NewLens creates a lens frame.
func NewLens() *LensCommand {
	return &LensCommand{command: newCommand(false, funcLens)}
}

// SetZoom selects zoom in (v > 0) or out (v < 0); zero is a no-op.
func (c *LensCommand) SetZoom(v int) {
	c.lens(v, lensZoomOut, lensZoomIn)
}

// SetFocus selects focus near (v < 0) or far (v > 0); zero is a no-op.
func (c *LensCommand) SetFocus(v int) {
	c.lens(v, lensFocusNear, lensFocusFar)
}

// SetIris selects iris close (v < 0) or open (v > 0); zero is a no-op.
func (c *LensCommand) SetIris(v int) {
	c.lens(v, lensIrisClose, lensIrisOpen)
}

func (c *LensCommand) lens(v int, negative, positive uint32) {
	if v < 0 {
		c.write(bitExtra, 3, negative)
	} else if v > 0 {
		c.write(bitExtra, 3, positive)
	}
}

// AuxCommand switches one auxiliary output.
type AuxCommand struct {
	command
}

// NewAux creates an auxiliary frame.
func NewAux() *AuxCommand {
	return &AuxCommand{command: newCommand(false, funcAux)}
}

// SetAux selects the auxiliary channel (1-6).
func (c *AuxCommand) SetAux(channel int) error {
	mask, ok := auxMask[channel]
	if !ok {
		return fmt.Errorf("%w: aux channel %d not in 1-6", ptz.ErrRange, channel)
	}
	c.write(bitExtra, 3, mask)
	return nil
}

// PresetCommand recalls or stores a preset position.
type PresetCommand struct {
	command
}

// NewRecallPreset creates a preset recall frame.
func NewRecallPreset() *PresetCommand {
	return &PresetCommand{command: newCommand(false, funcRecall)}
}

// NewStorePreset creates a preset store frame.
func NewStorePreset() *PresetCommand {
	return &PresetCommand{command: newCommand(false, funcStore)}
}

// SetPreset selects the preset number (1-8).
func (c *PresetCommand) SetPreset(preset int) error {
	if preset < MinPreset || preset > MaxPreset {
		return fmt.Errorf("%w: preset %d not in %d-%d", ptz.ErrRange, preset, MinPreset, MaxPreset)
	}
	c.write(bitExtra, 3, uint32(preset-1))
	return nil
}
