package manchester

import (
	"errors"
	"fmt"

	"ptz-telemetry/internal/bitbuf"
)

var (
	ErrShortFrame = errors.New("manchester: short frame")
	ErrNoFlag     = errors.New("manchester: flag bit not set")
)

// FullSpeed is reported for the full speed pan/tilt escapes that some
// keyboards send as lens or auxiliary functions. It is one more than
// MaxSpeed, which a regular pan/tilt frame cannot carry.
const FullSpeed = MaxSpeed + 1

// Kind identifies the function of a frame.
type Kind int

const (
	KindPanTilt Kind = iota
	KindLens
	KindAux
	KindRecallPreset
	KindStorePreset
)

func (k Kind) String() string {
	switch k {
	case KindPanTilt:
		return "pan/tilt"
	case KindLens:
		return "lens"
	case KindAux:
		return "aux"
	case KindRecallPreset:
		return "recall-preset"
	case KindStorePreset:
		return "store-preset"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is a decoded frame. Directional fields are signed: negative is
// left, down, out, near or close.
type Message struct {
	Receiver int
	Kind     Kind
	Pan      int
	Tilt     int
	Zoom     int
	Focus    int
	Iris     int
	Aux      int
	Preset   int
}

// auxChannel is the inverse of auxMask.
var auxChannel = func() map[uint32]int {
	m := make(map[uint32]int, len(auxMask))
	for ch, mask := range auxMask {
		m[mask] = ch
	}
	return m
}()

// Decode parses the first frame in data.
func Decode(data []byte) (Message, error) {
	var msg Message
	if len(data) > 0 && data[0]&(1<<bitFlag) == 0 {
		return msg, fmt.Errorf("%w: first byte %02X", ErrNoFlag, data[0])
	}
	if len(data) < FrameSize {
		return msg, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	bits, err := bitbuf.FromBytes(frameBits, data)
	if err != nil {
		return msg, err
	}
	field := func(first, count int) uint32 {
		v, _ := bits.Field(first, count)
		return v
	}

	hi := field(bitReceiverHi, 2)
	mid := field(bitReceiverMid, 1)
	lo := field(bitReceiverLo, 5)
	msg.Receiver = int(hi<<6|mid<<5|lo) + 1

	function := field(bitFunction, 2)
	extra := field(bitExtra, 3)

	if field(bitPanTilt, 1) == 1 {
		msg.Kind = KindPanTilt
		speed := int(extra)
		switch function {
		case dirTiltDown:
			msg.Tilt = -speed
		case dirTiltUp:
			msg.Tilt = speed
		case dirPanLeft:
			msg.Pan = -speed
		case dirPanRight:
			msg.Pan = speed
		}
		return msg, nil
	}

	switch function {
	case funcLens:
		msg.Kind = KindLens
		decodeLens(&msg, extra)
	case funcAux:
		msg.Kind = KindAux
		switch extra {
		case auxFullTiltUp:
			msg.Tilt = FullSpeed
		case auxFullPanRight:
			msg.Pan = FullSpeed
		default:
			msg.Aux = auxChannel[extra]
		}
	case funcRecall:
		msg.Kind = KindRecallPreset
		msg.Preset = int(extra) + 1
	case funcStore:
		msg.Kind = KindStorePreset
		msg.Preset = int(extra) + 1
	}
	return msg, nil
}

func decodeLens(msg *Message, extra uint32) {
	switch extra {
	case lensFullTiltDown:
		msg.Tilt = -FullSpeed
	case lensIrisOpen:
		msg.Iris = 1
	case lensFocusFar:
		msg.Focus = 1
	case lensZoomIn:
		msg.Zoom = 1
	case lensIrisClose:
		msg.Iris = -1
	case lensFocusNear:
		msg.Focus = -1
	case lensZoomOut:
		msg.Zoom = -1
	case lensFullPanLeft:
		msg.Pan = -FullSpeed
	}
}
