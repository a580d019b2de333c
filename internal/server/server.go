// Package server is the operator console: a WebSocket control channel that
// drives the telemetry controller, plus the camera video relayed over
// WebRTC and a Prometheus endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ptz-telemetry/internal/protocol"
	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/rtsp"
	"ptz-telemetry/internal/webrtc"
)

// offerTimeout bounds ICE gathering for a new console.
const offerTimeout = 10 * time.Second

// Config for the server
type Config struct {
	ListenAddr string
	RTSPURL    string
	ICEServers []string
	Protocol   string // telemetry protocol, reported to clients
	Receiver   int
}

// FrameSource reports the frame currently being repeated.
// *transmit.Driver implements it.
type FrameSource interface {
	Last() []byte
	Err() error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFrameSource exposes the transmitted frame on /api/frame.
func WithFrameSource(f FrameSource) Option {
	return func(s *Server) { s.frames = f }
}

// WithVideoMetrics records RTSP relay statistics.
func WithVideoMetrics(m *rtsp.Metrics) Option {
	return func(s *Server) { s.videoMetrics = m }
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server is the operator console server
type Server struct {
	cfg      Config
	ctrl     ptz.Controller
	frames   FrameSource
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	root     *slog.Logger // logger before the component attribute

	videoMetrics *rtsp.Metrics

	clients    map[*Client]bool
	clientsMu  sync.RWMutex
	rtspClient *rtsp.Client
	upgrader   websocket.Upgrader
	staticFS   fs.FS
	httpServer *http.Server

	// last console command, so unchanged axes are not re-sent
	cmdMu   sync.Mutex
	lastCmd protocol.PTZCommandPayload

	// guards rtspClient and httpServer between Start and Stop
	runMu   sync.Mutex
	stopped bool
}

// Client represents a connected WebSocket client
type Client struct {
	conn    *websocket.Conn
	server  *Server
	webrtc  *webrtc.Session
	send    chan []byte
	rtpChan chan []byte // Per-client RTP channel
	stopRTP chan struct{}
	mu      sync.Mutex
	closed  bool
}

// New creates a server driving ctrl. staticFS must hold the console
// under web/.
func New(cfg Config, ctrl ptz.Controller, staticFS fs.FS, opts ...Option) (*Server, error) {
	webFS, err := fs.Sub(staticFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded web files: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
		clients:  make(map[*Client]bool),
		staticFS: webFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.root = s.logger
	s.logger = s.logger.With("component", "server")

	return s, nil
}

// Handler returns the console routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/frame", s.handleFrame)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Handle("/*", http.FileServer(http.FS(s.staticFS)))
	return r
}

// Start connects the video relay and serves until Stop.
func (s *Server) Start() error {
	s.runMu.Lock()
	if s.stopped {
		s.runMu.Unlock()
		return http.ErrServerClosed
	}
	if s.cfg.RTSPURL != "" {
		client, err := rtsp.NewClient(s.cfg.RTSPURL,
			rtsp.WithLogger(s.root), rtsp.WithMetrics(s.videoMetrics))
		if err != nil {
			s.logger.Warn("Failed to create RTSP client", "error", err)
		} else if err := client.Connect(); err != nil {
			s.logger.Warn("Failed to connect to RTSP", "url", s.cfg.RTSPURL, "error", err)
		} else {
			s.rtspClient = client
			go s.broadcastRTP(client)
		}
	}

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv
	s.runMu.Unlock()

	s.logger.Info("Server starting", "listen", s.cfg.ListenAddr,
		"protocol", s.cfg.Protocol, "receiver", s.cfg.Receiver)
	return srv.ListenAndServe()
}

func (s *Server) videoConnected() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.rtspClient != nil
}

// broadcastRTP reads from RTSP and sends to all connected clients
func (s *Server) broadcastRTP(client *rtsp.Client) {
	rtpChan := client.RTPChannel()
	done := client.Done()

	for {
		var packet []byte
		select {
		case <-done:
			return
		case packet = <-rtpChan:
		}

		s.clientsMu.RLock()
		for c := range s.clients {
			select {
			case c.rtpChan <- packet:
			default:
				// Client's buffer full, drop packet for this client
			}
		}
		s.clientsMu.RUnlock()
	}
}

// Stop closes every client, the video relay and the controller.
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	s.runMu.Lock()
	s.stopped = true
	rtspClient, httpServer := s.rtspClient, s.httpServer
	s.runMu.Unlock()

	if rtspClient != nil {
		rtspClient.Close()
	}
	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}
	if cerr := s.ctrl.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	payload := protocol.FramePayload{Protocol: s.cfg.Protocol}
	if s.frames != nil {
		if last := s.frames.Last(); last != nil {
			payload.Frame = ptz.Hex(last)
		}
		if err := s.frames.Err(); err != nil {
			payload.Error = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write frame response", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		conn:    conn,
		server:  s,
		send:    make(chan []byte, 256),
		rtpChan: make(chan []byte, 500),
		stopRTP: make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()

	go client.writePump()
	go client.readPump()

	client.sendStatus()

	if s.cfg.RTSPURL != "" {
		if err := client.initWebRTC(); err != nil {
			s.logger.Warn("Failed to initialize WebRTC", "error", err)
		}
	}
}

func (c *Client) initWebRTC() error {
	session, err := webrtc.NewSession(webrtc.Config{
		ICEServers: c.server.cfg.ICEServers,
		Logger:     c.server.root,
	}, func(cand webrtc.Candidate) {
		c.sendMessage(protocol.TypeICECandidate, protocol.ICECandidatePayload{
			Candidate:     cand.Candidate,
			SDPMid:        cand.SDPMid,
			SDPMLineIndex: cand.SDPMLineIndex,
		})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return session.Close()
	}
	c.webrtc = session
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), offerTimeout)
	defer cancel()
	offer, err := session.Offer(ctx)
	if err != nil {
		return err
	}
	c.sendMessage(protocol.TypeOffer, protocol.SDPPayload{SDP: offer})

	if c.server.videoConnected() {
		go c.forwardRTP(session)
	}
	return nil
}

func (c *Client) forwardRTP(session *webrtc.Session) {
	for {
		select {
		case <-c.stopRTP:
			return
		case packet := <-c.rtpChan:
			if err := session.WriteRTP(packet); err != nil {
				// Client disconnected or track closed
				return
			}
		}
	}
}

func (c *Client) sendStatus() {
	status := protocol.StatusPayload{
		CameraConnected: c.server.videoConnected(),
		RTSPURL:         c.server.cfg.RTSPURL,
		ControlProtocol: c.server.cfg.Protocol,
		Receiver:        c.server.cfg.Receiver,
		VideoProtocol:   "rtsp",
	}
	c.sendMessage(protocol.TypeStatus, status)
}

func (c *Client) sendMessage(msgType protocol.Type, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.server.logger.Warn("Failed to create message", "type", msgType, "error", err)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Warn("Failed to marshal message", "type", msgType, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.server.logger.Warn("Client send buffer full, dropping message", "type", msgType)
	}
}

func (c *Client) sendError(code string, err error) {
	c.sendMessage(protocol.TypeError, protocol.ErrorPayload{Code: code, Message: err.Error()})
}

func (c *Client) readPump() {
	defer func() {
		c.server.clientsMu.Lock()
		delete(c.server.clients, c)
		c.server.clientsMu.Unlock()
		c.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.sendMessage(protocol.TypeError, protocol.ErrorPayload{
			Code:    protocol.ErrInvalidMessage,
			Message: "Failed to parse message",
		})
		return
	}

	s := c.server
	switch msg.Type {
	case protocol.TypePing:
		var payload protocol.PingPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		c.sendMessage(protocol.TypePong, protocol.PongPayload{
			ClientTimestamp: payload.Timestamp,
			ServerTimestamp: time.Now().UnixMilli(),
		})

	case protocol.TypeAnswer:
		var payload protocol.SDPPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			if err := session.Accept(payload.SDP); err != nil {
				s.logger.Warn("Failed to set answer", "error", err)
			}
		}

	case protocol.TypeICECandidate:
		var payload protocol.ICECandidatePayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if session := c.session(); session != nil {
			cand := webrtc.Candidate{
				Candidate:     payload.Candidate,
				SDPMid:        payload.SDPMid,
				SDPMLineIndex: payload.SDPMLineIndex,
			}
			if err := session.AddCandidate(cand); err != nil {
				s.logger.Warn("Failed to add ICE candidate", "error", err)
			}
		}

	case protocol.TypePTZCommand:
		var payload protocol.PTZCommandPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if err := s.command(payload); err != nil {
			s.logger.Warn("PTZ command failed", "error", err)
			c.sendError(protocol.ErrTelemetry, err)
		}

	case protocol.TypePTZStop:
		s.cmdMu.Lock()
		s.lastCmd = protocol.PTZCommandPayload{}
		err := s.ctrl.Stop()
		s.cmdMu.Unlock()
		if err != nil {
			s.logger.Warn("Failed to stop PTZ", "error", err)
			c.sendError(protocol.ErrTelemetry, err)
		}

	case protocol.TypePTZPreset:
		var payload protocol.PTZPresetPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if err := s.preset(payload); err != nil {
			s.logger.Warn("Preset failed", "action", payload.Action, "preset", payload.PresetNumber, "error", err)
			c.sendError(protocol.ErrTelemetry, err)
		}

	case protocol.TypePTZAux:
		var payload protocol.PTZAuxPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return
		}
		if err := s.ctrl.Aux(payload.Channel, payload.On); err != nil {
			s.logger.Warn("Aux failed", "channel", payload.Channel, "error", err)
			c.sendError(protocol.ErrTelemetry, err)
		}

	default:
		s.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// command forwards only the axes that changed since the last command;
// every controller call restarts the transmitter with a new frame. An axis
// is remembered only once its call succeeded, so a failed axis is retried
// by the next command and does not block the others.
func (s *Server) command(cmd protocol.PTZCommandPayload) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	cmd = cmd.Clamp()
	last := &s.lastCmd
	var errs []error
	if cmd.Pan != last.Pan || cmd.Tilt != last.Tilt {
		if err := s.ctrl.PanTilt(cmd.Pan, cmd.Tilt); err != nil {
			errs = append(errs, err)
		} else {
			last.Pan, last.Tilt = cmd.Pan, cmd.Tilt
		}
	}
	axes := []struct {
		want float64
		have *float64
		set  func(float64) error
	}{
		{cmd.Zoom, &last.Zoom, s.ctrl.Zoom},
		{cmd.Focus, &last.Focus, s.ctrl.Focus},
		{cmd.Iris, &last.Iris, s.ctrl.Iris},
	}
	for _, axis := range axes {
		if axis.want == *axis.have {
			continue
		}
		if err := axis.set(axis.want); err != nil {
			errs = append(errs, err)
			continue
		}
		*axis.have = axis.want
	}
	return errors.Join(errs...)
}

func (s *Server) preset(p protocol.PTZPresetPayload) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.lastCmd = protocol.PTZCommandPayload{}

	switch p.Action {
	case protocol.PresetRecall:
		return s.ctrl.RecallPreset(p.PresetNumber)
	case protocol.PresetSave:
		return s.ctrl.SavePreset(p.PresetNumber)
	}
	return fmt.Errorf("unknown preset action %q", p.Action)
}

func (c *Client) session() *webrtc.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webrtc
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stopRTP)
	close(c.send)
	session := c.webrtc
	c.webrtc = nil
	c.mu.Unlock()

	// pion may be calling back into sendMessage, so close unlocked
	if session != nil {
		session.Close()
	}
}
