package vicon

import (
	"sync"

	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/transmit"
)

// Controller drives a Vicon receiver through a transmit.Driver.
//
// Unlike Manchester, a Vicon command carries every function at once, so
// the controller always repeats a full snapshot of the operator's state.
// An idle snapshot is still sent; it is what stops the receiver.
type Controller struct {
	mu       sync.Mutex
	driver   *transmit.Driver
	receiver int

	pan, tilt         int // signed speed, -MaxSpeed..MaxSpeed
	zoom, focus, iris int
	aux               [AuxChannels]bool
}

// Config for Vicon controller
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

// PanTilt sets pan/tilt speeds.
// pan: -1.0 (left) to 1.0 (right)
// tilt: -1.0 (down) to 1.0 (up)
func (c *Controller) PanTilt(pan, tilt float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan = ptz.Scale(pan, MaxSpeed)
	c.tilt = ptz.Scale(tilt, MaxSpeed)
	return c.update()
}

// Zoom sets the zoom direction
func (c *Controller) Zoom(zoom float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = ptz.Direction(zoom)
	return c.update()
}

// Focus sets the focus direction
func (c *Controller) Focus(focus float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focus = ptz.Direction(focus)
	return c.update()
}

// Iris sets the iris direction
func (c *Controller) Iris(iris float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iris = ptz.Direction(iris)
	return c.update()
}

// Aux switches an auxiliary channel (1-6). Channels are independent.
func (c *Controller) Aux(channel int, on bool) error {
	if err := NewCommand().SetAux(channel, on); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aux[channel-1] = on
	return c.update()
}

// Stop clears motion and lens functions and sends an idle command.
// Auxiliary switches stay as they are.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan, c.tilt = 0, 0
	c.zoom, c.focus, c.iris = 0, 0, 0
	return c.update()
}

// RecallPreset recalls a preset position (0-127 for Vicon)
func (c *Controller) RecallPreset(preset int) error {
	return c.preset(preset, false)
}

// SavePreset saves current position to a preset (0-127 for Vicon)
func (c *Controller) SavePreset(preset int) error {
	return c.preset(preset, true)
}

func (c *Controller) preset(preset int, store bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var frame ptz.Frame
	if preset >= 0 && preset <= MaxPreset {
		cmd := NewCommand()
		var err error
		if store {
			err = cmd.StorePreset(preset)
		} else {
			err = cmd.RecallPreset(preset)
		}
		if err != nil {
			return err
		}
		c.apply(cmd)
		if err := cmd.SetReceiver(c.receiver); err != nil {
			return err
		}
		frame = cmd
	} else {
		cmd := NewExtendedPreset()
		if err := cmd.SetPreset(preset); err != nil {
			return err
		}
		cmd.SetStore(store)
		if err := cmd.SetReceiver(c.receiver); err != nil {
			return err
		}
		frame = cmd
	}

	c.pan, c.tilt = 0, 0
	return c.driver.Send(frame)
}

// Close stops the driver.
func (c *Controller) Close() error {
	return c.driver.Close()
}

// apply copies the lens and aux state onto cmd.
func (c *Controller) apply(cmd *Command) {
	cmd.SetZoom(c.zoom)
	cmd.SetFocus(c.focus)
	cmd.SetIris(c.iris)
	for i, on := range c.aux {
		_ = cmd.SetAux(i+1, on)
	}
}

// frame builds the snapshot for the current state. Motion needs the
// extended frame to carry speeds; anything else fits a plain command.
func (c *Controller) frame() (ptz.Frame, error) {
	if c.pan != 0 || c.tilt != 0 {
		cmd := NewSpeedCommand()
		if err := cmd.SetPan(c.pan); err != nil {
			return nil, err
		}
		if err := cmd.SetTilt(c.tilt); err != nil {
			return nil, err
		}
		c.apply(&cmd.Command)
		return cmd, cmd.SetReceiver(c.receiver)
	}
	cmd := NewCommand()
	c.apply(cmd)
	return cmd, cmd.SetReceiver(c.receiver)
}

func (c *Controller) update() error {
	f, err := c.frame()
	if err != nil {
		return err
	}
	return c.driver.Send(f)
}
