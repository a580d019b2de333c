package ptz

// Controller defines the interface for PTZ camera control.
// Analog and proportional inputs are normalized to -1.0..1.0; values
// inside Deadzone are treated as zero.
type Controller interface {
	// PanTilt sends a pan/tilt command
	// pan: -1.0 (left) to 1.0 (right)
	// tilt: -1.0 (down) to 1.0 (up)
	PanTilt(pan, tilt float64) error

	// Zoom sends a zoom command
	// zoom: -1.0 (wide/out) to 1.0 (tele/in)
	Zoom(zoom float64) error

	// Focus sends a focus command
	// focus: -1.0 (near) to 1.0 (far)
	Focus(focus float64) error

	// Iris sends an iris command
	// iris: -1.0 (close) to 1.0 (open)
	Iris(iris float64) error

	// Aux switches an auxiliary output (1-6)
	Aux(channel int, on bool) error

	// Stop stops all PTZ movement immediately
	Stop() error

	// RecallPreset recalls a preset position
	RecallPreset(preset int) error

	// SavePreset saves current position to a preset
	SavePreset(preset int) error

	// Close closes the controller connection
	Close() error
}

// Deadzone is the magnitude below which a normalized input means "stop".
const Deadzone = 0.05

// Direction reduces a normalized input to -1, 0 or 1.
func Direction(v float64) int {
	switch {
	case v <= -Deadzone:
		return -1
	case v >= Deadzone:
		return 1
	}
	return 0
}

// Scale maps a normalized input onto a signed speed of at most max,
// returning 0 inside the deadzone and at least 1 outside it.
func Scale(v float64, max int) int {
	dir := Direction(v)
	if dir == 0 {
		return 0
	}
	mag := abs(v)
	if mag > 1 {
		mag = 1
	}
	speed := int(mag*float64(max) + 0.5)
	if speed < 1 {
		speed = 1
	}
	return dir * speed
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
