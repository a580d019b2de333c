package manchester

import (
	"fmt"
	"sync"

	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/transmit"
)

// Controller drives a Manchester receiver through a transmit.Driver.
//
// A Manchester frame carries a single function, so the controller keeps
// the operator's latest intent and repeats the most important part of
// it: pan/tilt first, then lens, then auxiliary.
type Controller struct {
	mu       sync.Mutex
	driver   *transmit.Driver
	receiver int

	pan, tilt         int // signed speed, -MaxSpeed..MaxSpeed
	zoom, focus, iris int // -1, 0, 1
	aux               int // active channel, 0 for none
}

// Config for Manchester controller
type Config struct {
	Receiver int // Receiver address (1-255)
}

// NewController creates a controller that sends frames through driver.
func NewController(cfg Config, driver *transmit.Driver) (*Controller, error) {
	if err := ptz.CheckReceiver(cfg.Receiver); err != nil {
		return nil, err
	}
	return &Controller{
		driver:   driver,
		receiver: cfg.Receiver,
	}, nil
}

// PanTilt sets the pan/tilt intent. Only the dominant axis is sent.
// pan: -1.0 (left) to 1.0 (right)
// tilt: -1.0 (down) to 1.0 (up)
func (c *Controller) PanTilt(pan, tilt float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan = ptz.Scale(pan, MaxSpeed)
	c.tilt = ptz.Scale(tilt, MaxSpeed)
	return c.update()
}

// Zoom sets the zoom intent
// zoom: -1.0 (wide/out) to 1.0 (tele/in)
func (c *Controller) Zoom(zoom float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = ptz.Direction(zoom)
	return c.update()
}

// Focus sets the focus intent
func (c *Controller) Focus(focus float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focus = ptz.Direction(focus)
	return c.update()
}

// Iris sets the iris intent
func (c *Controller) Iris(iris float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iris = ptz.Direction(iris)
	return c.update()
}

// Aux switches an auxiliary channel. Only one channel can be active.
func (c *Controller) Aux(channel int, on bool) error {
	if _, ok := auxMask[channel]; !ok {
		return fmt.Errorf("%w: aux channel %d not in 1-6", ptz.ErrRange, channel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.aux = channel
	} else if c.aux == channel {
		c.aux = 0
	}
	return c.update()
}

// Stop clears every intent and stops transmitting; the receiver stops
// once frames stop arriving.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
	c.driver.Halt()
	return nil
}

// RecallPreset recalls a preset position (1-8 for Manchester)
func (c *Controller) RecallPreset(preset int) error {
	return c.preset(NewRecallPreset(), preset)
}

// SavePreset saves current position to a preset (1-8 for Manchester)
func (c *Controller) SavePreset(preset int) error {
	return c.preset(NewStorePreset(), preset)
}

func (c *Controller) preset(cmd *PresetCommand, preset int) error {
	if err := cmd.SetPreset(preset); err != nil {
		return err
	}
	if err := cmd.SetReceiver(c.receiver); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
	return c.driver.Send(cmd)
}

// Close stops the driver.
func (c *Controller) Close() error {
	return c.driver.Close()
}

func (c *Controller) clear() {
	c.pan, c.tilt = 0, 0
	c.zoom, c.focus, c.iris = 0, 0, 0
	c.aux = 0
}

// frame builds the frame for the current intent, or nil when idle.
func (c *Controller) frame() (ptz.Frame, error) {
	switch {
	case c.pan != 0 || c.tilt != 0:
		cmd := NewPanTilt()
		var err error
		if abs(c.pan) >= abs(c.tilt) {
			err = cmd.SetPan(c.pan)
		} else {
			err = cmd.SetTilt(c.tilt)
		}
		if err != nil {
			return nil, err
		}
		return cmd, cmd.SetReceiver(c.receiver)

	case c.zoom != 0 || c.focus != 0 || c.iris != 0:
		cmd := NewLens()
		switch {
		case c.zoom != 0:
			cmd.SetZoom(c.zoom)
		case c.focus != 0:
			cmd.SetFocus(c.focus)
		default:
			cmd.SetIris(c.iris)
		}
		return cmd, cmd.SetReceiver(c.receiver)

	case c.aux != 0:
		cmd := NewAux()
		if err := cmd.SetAux(c.aux); err != nil {
			return nil, err
		}
		return cmd, cmd.SetReceiver(c.receiver)
	}
	return nil, nil
}

func (c *Controller) update() error {
	f, err := c.frame()
	if err != nil {
		return err
	}
	if f == nil {
		c.driver.Halt()
		return nil
	}
	return c.driver.Send(f)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
