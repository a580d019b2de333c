// Package webrtc sends the relayed camera video to a browser console.
// Each console gets one send-only Session; RTP packets from the camera
// are written to it unchanged apart from SSRC and payload type.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("webrtc: session closed")

// Candidate is a local or remote ICE candidate as the console exchanges it.
type Candidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
}

// Config for a session.
type Config struct {
	ICEServers []string // STUN/TURN server URLs
	Logger     *slog.Logger
}

// Session is the video half of one console connection.
type Session struct {
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticRTP
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSession creates a peer connection with a send-only H264 track.
// onCandidate receives each gathered local candidate.
func NewSession(cfg Config, onCandidate func(Candidate)) (*Session, error) {
	var servers []webrtc.ICEServer
	for _, url := range cfg.ICEServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video",
		"ptz-camera",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}
	transceiver, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add video track: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		pc:     pc,
		track:  track,
		logger: logger.With("component", "webrtc"),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || onCandidate == nil {
			return
		}
		init := c.ToJSON()
		cand := Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = *init.SDPMLineIndex
		}
		onCandidate(cand)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Info("WebRTC: connection state", "state", state.String())
	})

	// RTCP must be drained for pion's interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := transceiver.Sender().Read(buf); err != nil {
				return
			}
		}
	}()

	return s, nil
}

// Offer creates the SDP offer and waits until ICE gathering completes or
// ctx is done.
func (s *Session) Offer(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	s.mu.Unlock()

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("ICE gathering: %w", ctx.Err())
	}
	return s.pc.LocalDescription().SDP, nil
}

// Accept applies the browser's SDP answer.
func (s *Session) Accept(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// AddCandidate adds a remote ICE candidate.
func (s *Session) AddCandidate(c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &c.SDPMid,
		SDPMLineIndex: &c.SDPMLineIndex,
	})
	if err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

// WriteRTP writes one marshalled RTP packet to the video track.
func (s *Session) WriteRTP(packet []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	_, err := s.track.Write(packet)
	return err
}

// Close closes the peer connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.pc.Close()
}
