// Package protocol defines the JSON messages exchanged with the operator
// console over its WebSocket. Every message is an envelope
// {"type": ..., "payload": ...}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Type names a console message.
type Type string

const (
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypeStatus       Type = "status"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice_candidate"
	TypePTZCommand   Type = "ptz_command"
	TypePTZStop      Type = "ptz_stop"
	TypePTZPreset    Type = "ptz_preset"
	TypePTZAux       Type = "ptz_aux"
	TypeError        Type = "error"
)

// Error codes carried in ErrorPayload.
const (
	ErrTelemetry      = "TELEMETRY_ERROR"
	ErrInvalidMessage = "INVALID_MESSAGE"
)

// Preset actions.
const (
	PresetRecall = "recall"
	PresetSave   = "save"
)

// ErrNoType is returned by Decode for an envelope without a type.
var ErrNoType = errors.New("protocol: message has no type")

// Message is the envelope of every WebSocket message.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// StatusPayload is sent once when a console connects.
type StatusPayload struct {
	CameraConnected bool   `json:"camera_connected"`
	RTSPURL         string `json:"rtsp_url,omitempty"`
	ControlProtocol string `json:"control_protocol"`
	Receiver        int    `json:"receiver"`
	VideoProtocol   string `json:"video_protocol"`
}

// SDPPayload carries a WebRTC offer or answer.
type SDPPayload struct {
	SDP string `json:"sdp"`
}

type ICECandidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid"`
	SDPMLineIndex uint16 `json:"sdp_mline_index"`
}

// PTZCommandPayload is the operator's joystick and lens state. Every axis
// runs from -1.0 to 1.0; zero is at rest.
type PTZCommandPayload struct {
	Pan   float64 `json:"pan"`
	Tilt  float64 `json:"tilt"`
	Zoom  float64 `json:"zoom"`
	Focus float64 `json:"focus"`
	Iris  float64 `json:"iris"`
}

// Clamp limits every axis to -1.0..1.0.
func (p PTZCommandPayload) Clamp() PTZCommandPayload {
	return PTZCommandPayload{
		Pan:   clamp(p.Pan),
		Tilt:  clamp(p.Tilt),
		Zoom:  clamp(p.Zoom),
		Focus: clamp(p.Focus),
		Iris:  clamp(p.Iris),
	}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// PTZPresetPayload recalls or saves a preset.
type PTZPresetPayload struct {
	Action       string `json:"action"` // PresetRecall or PresetSave
	PresetNumber int    `json:"preset_number"`
}

// PTZAuxPayload switches an auxiliary output (wiper, washer, lights).
type PTZAuxPayload struct {
	Channel int  `json:"channel"`
	On      bool `json:"on"`
}

// FramePayload is served on /api/frame.
type FramePayload struct {
	Protocol string `json:"protocol"`
	Frame    string `json:"frame,omitempty"` // hex, empty when idle
	Error    string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage wraps payload in an envelope. A nil payload is omitted.
func NewMessage(t Type, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode parses an envelope received from a console.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrNoType
	}
	return &msg, nil
}

// ParsePayload unmarshals the payload into v. An absent payload leaves v
// untouched.
func (m *Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", m.Type, err)
	}
	return nil
}
