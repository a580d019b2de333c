package manchester

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptz-telemetry/internal/ptz"
)

func TestPanTiltGoldenFrame(t *testing.T) {
	cmd := NewPanTilt()
	require.NoError(t, cmd.SetPan(-6))
	require.NoError(t, cmd.SetTilt(6))
	require.NoError(t, cmd.SetReceiver(1))

	assert.Equal(t, []byte{0x80, 0x1c, 0x02}, cmd.Octets())
	assert.Equal(t, "80:1C:02", cmd.String())
}

func TestPanTiltLastAxisWins(t *testing.T) {
	cmd := NewPanTilt()
	require.NoError(t, cmd.SetPan(-6))
	assert.Equal(t, []byte{0x80, 0x2c, 0x02}, cmd.Octets(), "pan left, speed 6")

	require.NoError(t, cmd.SetTilt(6))
	assert.Equal(t, []byte{0x80, 0x1c, 0x02}, cmd.Octets(), "tilt up replaced pan left")

	msg, err := Decode(cmd.Octets())
	require.NoError(t, err)
	assert.Zero(t, msg.Pan)
	assert.Equal(t, 6, msg.Tilt)
}

func TestPanTiltZeroKeepsDirection(t *testing.T) {
	cmd := NewPanTilt()
	assert.Equal(t, []byte{0x80, 0x00, 0x02}, cmd.Octets())

	require.NoError(t, cmd.SetPan(-6))
	require.NoError(t, cmd.SetPan(0))
	assert.Equal(t, []byte{0x80, 0x20, 0x02}, cmd.Octets(), "pan left kept, speed cleared")
}

func TestPanTiltSpeedRange(t *testing.T) {
	cmd := NewPanTilt()
	require.NoError(t, cmd.SetPan(MaxSpeed))
	require.NoError(t, cmd.SetTilt(-MaxSpeed))
	before := cmd.Octets()

	assert.ErrorIs(t, cmd.SetPan(8), ptz.ErrRange)
	assert.ErrorIs(t, cmd.SetTilt(-8), ptz.ErrRange)
	assert.Equal(t, before, cmd.Octets(), "rejected speed changed the frame")
}

func TestReceiver(t *testing.T) {
	cmd := NewPanTilt()
	require.NoError(t, cmd.SetReceiver(255))
	assert.Equal(t, []byte{0x83, 0x01, 0x7a}, cmd.Octets())

	for _, r := range []int{0, -1, 256} {
		assert.ErrorIs(t, cmd.SetReceiver(r), ptz.ErrRange, "receiver %d", r)
	}
	assert.Equal(t, []byte{0x83, 0x01, 0x7a}, cmd.Octets())
}

func TestReceiverRoundTrip(t *testing.T) {
	for r := ptz.MinReceiver; r <= ptz.MaxReceiver; r++ {
		cmd := NewPanTilt()
		require.NoError(t, cmd.SetPan(3))
		require.NoError(t, cmd.SetReceiver(r))
		octets := cmd.Octets()

		hi := int(octets[0] & 0x03)
		mid := int(octets[1] & 0x01)
		lo := int(octets[2]>>2) & 0x1f
		assert.Equal(t, r, (hi<<6|mid<<5|lo)+1, "receiver %d", r)
		assert.NotZero(t, octets[0]&0x80, "flag bit missing for receiver %d", r)

		msg, err := Decode(octets)
		require.NoError(t, err)
		assert.Equal(t, r, msg.Receiver)
		assert.Equal(t, 3, msg.Pan)
	}
}

func TestLens(t *testing.T) {
	tests := []struct {
		name string
		set  func(*LensCommand)
		want byte
	}{
		{"zoom in", func(c *LensCommand) { c.SetZoom(1) }, 0x06},
		{"zoom out", func(c *LensCommand) { c.SetZoom(-1) }, 0x0c},
		{"focus far", func(c *LensCommand) { c.SetFocus(1) }, 0x04},
		{"focus near", func(c *LensCommand) { c.SetFocus(-1) }, 0x0a},
		{"iris open", func(c *LensCommand) { c.SetIris(2) }, 0x02},
		{"iris close", func(c *LensCommand) { c.SetIris(-2) }, 0x08},
		{"zero is a no-op", func(c *LensCommand) { c.SetZoom(1); c.SetFocus(0); c.SetIris(0) }, 0x06},
		{"last write wins", func(c *LensCommand) { c.SetZoom(1); c.SetFocus(-1) }, 0x0a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewLens()
			tt.set(cmd)
			require.NoError(t, cmd.SetReceiver(1))
			assert.Equal(t, []byte{0x80, tt.want, 0x00}, cmd.Octets())
		})
	}
}

func TestAuxTable(t *testing.T) {
	want := map[int]byte{1: 0x14, 2: 0x18, 3: 0x1c, 4: 0x16, 5: 0x1a, 6: 0x1e}
	for ch := 1; ch <= 6; ch++ {
		cmd := NewAux()
		require.NoError(t, cmd.SetAux(ch))
		assert.Equal(t, []byte{0x80, want[ch], 0x00}, cmd.Octets(), "aux %d", ch)

		msg, err := Decode(cmd.Octets())
		require.NoError(t, err)
		assert.Equal(t, KindAux, msg.Kind)
		assert.Equal(t, ch, msg.Aux)
	}

	cmd := NewAux()
	assert.ErrorIs(t, cmd.SetAux(0), ptz.ErrRange)
	assert.ErrorIs(t, cmd.SetAux(7), ptz.ErrRange)
}

func TestPreset(t *testing.T) {
	recall := NewRecallPreset()
	require.NoError(t, recall.SetPreset(1))
	assert.Equal(t, []byte{0x80, 0x20, 0x00}, recall.Octets())
	require.NoError(t, recall.SetPreset(8))
	assert.Equal(t, []byte{0x80, 0x2e, 0x00}, recall.Octets())

	store := NewStorePreset()
	require.NoError(t, store.SetPreset(3))
	assert.Equal(t, []byte{0x80, 0x34, 0x00}, store.Octets())

	msg, err := Decode(store.Octets())
	require.NoError(t, err)
	assert.Equal(t, KindStorePreset, msg.Kind)
	assert.Equal(t, 3, msg.Preset)

	assert.ErrorIs(t, recall.SetPreset(0), ptz.ErrRange)
	assert.ErrorIs(t, recall.SetPreset(9), ptz.ErrRange)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  Message
	}{
		{"golden", []byte{0x80, 0x1c, 0x02}, Message{Receiver: 1, Kind: KindPanTilt, Tilt: 6}},
		{"pan right", []byte{0x80, 0x3a, 0x06}, Message{Receiver: 2, Kind: KindPanTilt, Pan: 5}},
		{"tilt down", []byte{0x80, 0x02, 0x02}, Message{Receiver: 1, Kind: KindPanTilt, Tilt: -1}},
		{"zoom out", []byte{0x80, 0x0c, 0x00}, Message{Receiver: 1, Kind: KindLens, Zoom: -1}},
		{"iris open", []byte{0x80, 0x02, 0x00}, Message{Receiver: 1, Kind: KindLens, Iris: 1}},
		{"full tilt down", []byte{0x80, 0x00, 0x00}, Message{Receiver: 1, Kind: KindLens, Tilt: -FullSpeed}},
		{"full pan left", []byte{0x80, 0x0e, 0x00}, Message{Receiver: 1, Kind: KindLens, Pan: -FullSpeed}},
		{"full tilt up", []byte{0x80, 0x10, 0x00}, Message{Receiver: 1, Kind: KindAux, Tilt: FullSpeed}},
		{"full pan right", []byte{0x80, 0x12, 0x00}, Message{Receiver: 1, Kind: KindAux, Pan: FullSpeed}},
		{"recall 2", []byte{0x80, 0x22, 0x00}, Message{Receiver: 1, Kind: KindRecallPreset, Preset: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0x80, 0x1c})
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode([]byte{0x00, 0x1c, 0x02})
	assert.ErrorIs(t, err, ErrNoFlag)

	// a lone stray byte is reported as such, not as a short frame
	_, err = Decode([]byte{0x02})
	assert.ErrorIs(t, err, ErrNoFlag)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pan/tilt", KindPanTilt.String())
	assert.Equal(t, "store-preset", KindStorePreset.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
