package rtsp

import (
	"testing"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 16*time.Second, backoff(5))
	assert.Equal(t, maxBackoff, backoff(6))
	assert.Equal(t, maxBackoff, backoff(40))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient("rtsp://127.0.0.1:8554/stream")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, c.Connect(), errClosed)
}

func TestFindVideo(t *testing.T) {
	h264 := &format.H264{PayloadTyp: 96, PacketizationMode: 1}
	vp8 := &format.VP8{PayloadTyp: 98}

	media, forma := findVideo(&description.Session{Medias: []*description.Media{
		{Type: description.MediaTypeVideo, Formats: []format.Format{vp8}},
		{Type: description.MediaTypeVideo, Formats: []format.Format{h264}},
	}})
	require.NotNil(t, media)
	assert.Same(t, h264, forma)

	_, forma = findVideo(&description.Session{Medias: []*description.Media{
		{Type: description.MediaTypeVideo, Formats: []format.Format{vp8}},
	}})
	assert.Same(t, vp8, forma)

	media, forma = findVideo(&description.Session{})
	assert.Nil(t, media)
	assert.Nil(t, forma)
}

func TestMetrics(t *testing.T) {
	var none *Metrics
	none.packet(true)
	none.setConnected(true)
	none.reconnected()

	m := NewMetrics(prometheus.NewRegistry())
	m.packet(false)
	m.packet(true)
	m.setConnected(true)
	m.reconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.packets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))

	m.setConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
}
