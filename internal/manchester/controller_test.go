package manchester

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/transmit"
)

type chanSink chan []byte

func (s chanSink) Write(p []byte) (int, error) {
	s <- append([]byte(nil), p...)
	return len(p), nil
}

func (s chanSink) next(t *testing.T) Message {
	t.Helper()
	select {
	case b := <-s:
		msg, err := Decode(b)
		require.NoError(t, err)
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no frame written")
	}
	return Message{}
}

func newTestController(t *testing.T, receiver int) (*Controller, chanSink) {
	t.Helper()
	sink := make(chanSink, 64)
	// a long interval leaves only the immediate write of each frame
	driver := transmit.NewDriver(transmit.New(sink, transmit.WithInterval(time.Hour)))
	c, err := NewController(Config{Receiver: receiver}, driver)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, sink
}

func TestControllerRejectsReceiver(t *testing.T) {
	_, err := NewController(Config{Receiver: 0}, nil)
	assert.ErrorIs(t, err, ptz.ErrRange)
}

func TestControllerPriorities(t *testing.T) {
	c, sink := newTestController(t, 12)

	require.NoError(t, c.PanTilt(-1, 0.2))
	msg := sink.next(t)
	assert.Equal(t, Message{Receiver: 12, Kind: KindPanTilt, Pan: -7}, msg)

	require.NoError(t, c.PanTilt(0.1, -0.5))
	assert.Equal(t, -4, sink.next(t).Tilt)

	// pan/tilt still outranks the lens
	require.NoError(t, c.Zoom(1))
	assert.Equal(t, KindPanTilt, sink.next(t).Kind)

	require.NoError(t, c.PanTilt(0, 0))
	msg = sink.next(t)
	assert.Equal(t, KindLens, msg.Kind)
	assert.Equal(t, 1, msg.Zoom)

	require.NoError(t, c.Zoom(0))
	require.NoError(t, c.Aux(4, true))
	// Zoom(0) halted the driver, so the aux frame is next
	msg = sink.next(t)
	assert.Equal(t, KindAux, msg.Kind)
	assert.Equal(t, 4, msg.Aux)

	require.NoError(t, c.Aux(4, false))
	assert.Nil(t, c.driver.Last())
}

func TestControllerPresets(t *testing.T) {
	c, sink := newTestController(t, 1)

	require.NoError(t, c.RecallPreset(5))
	msg := sink.next(t)
	assert.Equal(t, KindRecallPreset, msg.Kind)
	assert.Equal(t, 5, msg.Preset)

	require.NoError(t, c.SavePreset(8))
	msg = sink.next(t)
	assert.Equal(t, KindStorePreset, msg.Kind)
	assert.Equal(t, 8, msg.Preset)

	assert.ErrorIs(t, c.RecallPreset(0), ptz.ErrRange)
	assert.ErrorIs(t, c.SavePreset(9), ptz.ErrRange)
}

func TestControllerStop(t *testing.T) {
	c, sink := newTestController(t, 1)

	require.NoError(t, c.PanTilt(1, 0))
	sink.next(t)
	require.NoError(t, c.Stop())
	assert.Nil(t, c.driver.Last())

	assert.ErrorIs(t, c.Aux(7, true), ptz.ErrRange)
}
