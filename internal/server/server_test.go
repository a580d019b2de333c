package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptz-telemetry/internal/protocol"
)

// fakeController records every call as a line of text.
type fakeController struct {
	calls chan string

	mu          sync.Mutex
	failPanTilt error // returned once by the next PanTilt
}

func newFakeController() *fakeController {
	return &fakeController{calls: make(chan string, 64)}
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls <- fmt.Sprintf(format, args...)
	return nil
}

func (f *fakeController) PanTilt(pan, tilt float64) error {
	f.record("pantilt %.2f %.2f", pan, tilt)
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failPanTilt
	f.failPanTilt = nil
	return err
}
func (f *fakeController) Zoom(v float64) error { return f.record("zoom %.2f", v) }
func (f *fakeController) Focus(v float64) error { return f.record("focus %.2f", v) }
func (f *fakeController) Iris(v float64) error { return f.record("iris %.2f", v) }
func (f *fakeController) Aux(ch int, on bool) error {
	if ch > 6 {
		return errors.New("aux channel out of range")
	}
	return f.record("aux %d %t", ch, on)
}
func (f *fakeController) Stop() error { return f.record("stop") }
func (f *fakeController) RecallPreset(n int) error { return f.record("recall %d", n) }
func (f *fakeController) SavePreset(n int) error { return f.record("save %d", n) }
func (f *fakeController) Close() error { return f.record("close") }

func (f *fakeController) next(t *testing.T) string {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(5 * time.Second):
		require.FailNow(t, "controller not called")
	}
	return ""
}

type fakeFrames struct {
	last []byte
	err  error
}

func (f fakeFrames) Last() []byte { return f.last }
func (f fakeFrames) Err() error { return f.err }

var webFS = fstest.MapFS{
	"web/index.html": {Data: []byte("<html>console</html>")},
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeController, *httptest.Server) {
	t.Helper()
	ctrl := newFakeController()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := New(Config{Protocol: "vicon", Receiver: 3}, ctrl, webFS, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ctrl, ts
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStaticAndFrame(t *testing.T) {
	_, _, ts := newTestServer(t, WithFrameSource(fakeFrames{
		last: []byte{0x80, 0x1c, 0x02},
		err:  errors.New("port gone"),
	}))

	assert.Contains(t, get(t, ts.URL+"/"), "console")

	var frame protocol.FramePayload
	require.NoError(t, json.Unmarshal([]byte(get(t, ts.URL+"/api/frame")), &frame))
	assert.Equal(t, protocol.FramePayload{Protocol: "vicon", Frame: "80:1C:02", Error: "port gone"}, frame)
}

func TestFrameIdle(t *testing.T) {
	_, _, ts := newTestServer(t, WithFrameSource(fakeFrames{}))
	assert.JSONEq(t, `{"protocol":"vicon"}`, get(t, ts.URL+"/api/frame"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "ptz_test_total", Help: "test"}).Inc()
	_, _, ts := newTestServer(t, WithGatherer(reg))

	assert.Contains(t, get(t, ts.URL+"/metrics"), "ptz_test_total 1")
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType protocol.Type, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketControl(t *testing.T) {
	s, ctrl, ts := newTestServer(t)
	conn := dial(t, ts)

	msg := receive(t, conn)
	require.Equal(t, protocol.TypeStatus, msg.Type)
	var status protocol.StatusPayload
	require.NoError(t, msg.ParsePayload(&status))
	assert.Equal(t, "vicon", status.ControlProtocol)
	assert.Equal(t, 3, status.Receiver)
	assert.False(t, status.CameraConnected)

	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5})
	assert.Equal(t, "pantilt 0.50 0.00", ctrl.next(t))

	// only the changed axis is forwarded
	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5, Zoom: 1})
	assert.Equal(t, "zoom 1.00", ctrl.next(t))

	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5, Zoom: 1, Focus: -1, Iris: 1})
	assert.Equal(t, "focus -1.00", ctrl.next(t))
	assert.Equal(t, "iris 1.00", ctrl.next(t))

	send(t, conn, protocol.TypePTZStop, nil)
	assert.Equal(t, "stop", ctrl.next(t))

	// out-of-range axes are clamped
	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Tilt: -4})
	assert.Equal(t, "pantilt 0.00 -1.00", ctrl.next(t))
	send(t, conn, protocol.TypePTZStop, nil)
	assert.Equal(t, "stop", ctrl.next(t))

	// stop forgets the last command, so the same pan is sent again
	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5})
	assert.Equal(t, "pantilt 0.50 0.00", ctrl.next(t))

	send(t, conn, protocol.TypePTZAux, protocol.PTZAuxPayload{Channel: 2, On: true})
	assert.Equal(t, "aux 2 true", ctrl.next(t))

	send(t, conn, protocol.TypePTZPreset, protocol.PTZPresetPayload{Action: "recall", PresetNumber: 4})
	assert.Equal(t, "recall 4", ctrl.next(t))
	send(t, conn, protocol.TypePTZPreset, protocol.PTZPresetPayload{Action: "save", PresetNumber: 20})
	assert.Equal(t, "save 20", ctrl.next(t))

	send(t, conn, protocol.TypePing, protocol.PingPayload{Timestamp: 42})
	msg = receive(t, conn)
	require.Equal(t, protocol.TypePong, msg.Type)
	var pong protocol.PongPayload
	require.NoError(t, msg.ParsePayload(&pong))
	assert.Equal(t, int64(42), pong.ClientTimestamp)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "close", ctrl.next(t))
}

func TestWebSocketErrors(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)
	receive(t, conn) // status

	send(t, conn, protocol.TypePTZAux, protocol.PTZAuxPayload{Channel: 9, On: true})
	msg := receive(t, conn)
	require.Equal(t, protocol.TypeError, msg.Type)
	var payload protocol.ErrorPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, protocol.ErrTelemetry, payload.Code)

	send(t, conn, protocol.TypePTZPreset, protocol.PTZPresetPayload{Action: "forget", PresetNumber: 1})
	msg = receive(t, conn)
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, `unknown preset action "forget"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = receive(t, conn)
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, protocol.ErrInvalidMessage, payload.Code)
}

func TestFailedAxisIsRetried(t *testing.T) {
	_, ctrl, ts := newTestServer(t)
	conn := dial(t, ts)
	receive(t, conn) // status

	ctrl.mu.Lock()
	ctrl.failPanTilt = errors.New("transient")
	ctrl.mu.Unlock()

	// zoom still goes out when pan/tilt fails
	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5, Zoom: 1})
	assert.Equal(t, "pantilt 0.50 0.00", ctrl.next(t))
	assert.Equal(t, "zoom 1.00", ctrl.next(t))
	msg := receive(t, conn)
	require.Equal(t, protocol.TypeError, msg.Type)
	var payload protocol.ErrorPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, protocol.ErrTelemetry, payload.Code)
	assert.Contains(t, payload.Message, "transient")

	// the same command retries only the failed axis
	send(t, conn, protocol.TypePTZCommand, protocol.PTZCommandPayload{Pan: 0.5, Zoom: 1})
	assert.Equal(t, "pantilt 0.50 0.00", ctrl.next(t))
	send(t, conn, protocol.TypePTZStop, nil)
	assert.Equal(t, "stop", ctrl.next(t))
}
