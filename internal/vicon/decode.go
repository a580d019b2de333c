package vicon

import (
	"errors"
	"fmt"

	"ptz-telemetry/internal/bitbuf"
)

var (
	ErrShortFrame = errors.New("vicon: short frame")
	ErrNoFlag     = errors.New("vicon: flag bit not set")
)

// Kind identifies the frame type.
type Kind int

const (
	KindStatus Kind = iota
	KindCommand
	KindSpeedCommand
	KindExtendedPreset
	KindExtendedStatus
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindCommand:
		return "command"
	case KindSpeedCommand:
		return "speed-command"
	case KindExtendedPreset:
		return "extended-preset"
	case KindExtendedStatus:
		return "extended-status"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PresetAction says what a frame asks of its preset number.
type PresetAction int

const (
	PresetNone PresetAction = iota
	PresetRecall
	PresetStore
)

// Message is a decoded Vicon frame. Direction fields are -1, 0 or 1;
// speeds are only present in extended frames.
type Message struct {
	Receiver int
	Kind     Kind
	AckAlarm bool

	Pan, Tilt         int
	Zoom, Focus, Iris int
	AutoIris          bool
	AutoPan           bool
	LensSpeed         bool
	Aux               [AuxChannels]bool // Aux[0] is channel 1

	PanSpeed, TiltSpeed int

	Preset       int
	PresetAction PresetAction
}

// Decode parses the frame at the start of data and reports how many bytes
// it used, so a captured stream can be walked frame by frame.
func Decode(data []byte) (Message, int, error) {
	if len(data) > 0 && data[0]&(1<<bitFlag) == 0 {
		return Message{}, 0, fmt.Errorf("%w: first byte %02X", ErrNoFlag, data[0])
	}
	if len(data) < StatusSize {
		return Message{}, 0, ErrShortFrame
	}
	size := StatusSize
	if data[1]&(1<<(bitCommand-8)) != 0 {
		size = CommandSize
		if data[1]&(1<<(bitExtended-8)) != 0 {
			size = ExtendedSize
		}
	}
	if len(data) < size {
		return Message{}, 0, fmt.Errorf("%w: %d of %d bytes", ErrShortFrame, len(data), size)
	}

	b, err := bitbuf.FromBytes(size*8, data[:size])
	if err != nil {
		return Message{}, 0, err
	}
	hi, _ := b.Field(bitReceiverHi, 4)
	lo, _ := b.Field(bitReceiverLo, 4)
	msg := Message{
		Receiver: int(hi<<4 | lo),
		AckAlarm: bit(b, bitAckAlarm),
	}
	if size == StatusSize {
		msg.Kind = KindStatus
		return msg, size, nil
	}

	// bit 49 doubles as a pan speed bit, so it marks a status reply only
	// together with the request bit
	if size == ExtendedSize && bit(b, bitExRequest) {
		if bit(b, bitExStatus) {
			msg.Kind = KindExtendedStatus
			return msg, size, nil
		}
		msg.Kind = KindExtendedPreset
		msg.decodeFunctions(b)
		msg.Pan = pair(b, bitPanLeft, bitPanRight)
		msg.Tilt = pair(b, bitTiltDown, bitTiltUp)
		preset, _ := b.Field(bitExPreset, 7)
		pan, _ := b.Field(bitExPanSpeed, 7)
		tilt, _ := b.Field(bitExTiltSpeed, 7)
		msg.Preset = int(preset)
		msg.PresetAction = PresetRecall
		if bit(b, bitExStore) {
			msg.PresetAction = PresetStore
		}
		msg.PanSpeed, msg.TiltSpeed = int(pan), int(tilt)
		return msg, size, nil
	}
	msg.Kind = KindCommand
	msg.decodeFunctions(b)
	msg.Pan = pair(b, bitPanLeft, bitPanRight)
	msg.Tilt = pair(b, bitTiltDown, bitTiltUp)
	switch {
	case bit(b, bitRecall):
		msg.PresetAction = PresetRecall
	case bit(b, bitStore):
		msg.PresetAction = PresetStore
	}
	if msg.PresetAction != PresetNone {
		preset, _ := b.Field(bitPreset, 4)
		msg.Preset = int(preset)
	}

	if size == ExtendedSize {
		msg.Kind = KindSpeedCommand
		msg.PanSpeed = speed(b, bitPanSpeedHi, bitPanSpeedLo)
		msg.TiltSpeed = speed(b, bitTiltSpeedHi, bitTiltSpeedLo)
	}
	return msg, size, nil
}

// decodeFunctions reads the lens, switch and aux flags of a command frame.
func (m *Message) decodeFunctions(b *bitbuf.Buffer) {
	m.Zoom = pair(b, bitZoomOut, bitZoomIn)
	m.Focus = pair(b, bitFocusNear, bitFocusFar)
	m.Iris = pair(b, bitIrisClose, bitIrisOpen)
	m.AutoIris = bit(b, bitAutoIris)
	m.AutoPan = bit(b, bitAutoPan)
	m.LensSpeed = bit(b, bitLensSpeed)
	for ch := 1; ch <= AuxChannels; ch++ {
		m.Aux[ch-1] = bit(b, bitAux6+AuxChannels-ch)
	}
}

func bit(b *bitbuf.Buffer, i int) bool {
	v, _ := b.Get(i)
	return v == 1
}

func pair(b *bitbuf.Buffer, negative, positive int) int {
	switch {
	case bit(b, negative):
		return -1
	case bit(b, positive):
		return 1
	}
	return 0
}

func speed(b *bitbuf.Buffer, hiBit, loBit int) int {
	hi, _ := b.Field(hiBit, 4)
	lo, _ := b.Field(loBit, 7)
	return int(hi<<7 | lo)
}
