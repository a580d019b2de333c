package main

import (
	"errors"
	"fmt"

	"ptz-telemetry/internal/manchester"
	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/vicon"
)

// FrameFlags describe a single frame on the command line.
type FrameFlags struct {
	Protocol string `required:"" short:"p" help:"Telemetry protocol: manchester or vicon."`
	Receiver int    `short:"r" type:"int" default:"1" help:"Receiver address (1-255)."`

	Pan   int   `optional:"" help:"Pan speed, negative is left (Manchester 0-7, Vicon 0-2047)."`
	Tilt  int   `optional:"" help:"Tilt speed, negative is down."`
	Zoom  int   `optional:"" help:"Zoom direction: -1 out, 1 in."`
	Focus int   `optional:"" help:"Focus direction: -1 near, 1 far."`
	Iris  int   `optional:"" help:"Iris direction: -1 close, 1 open."`
	Aux   []int `optional:"" help:"Auxiliary channels to switch on (1-6)."`

	Preset int  `optional:"" default:"-1" help:"Recall this preset instead of moving."`
	Store  bool `optional:"" help:"Store the preset instead of recalling it."`
	Status bool `optional:"" help:"Send a Vicon status frame."`
}

var errConflict = errors.New("conflicting frame options")

// Build encodes the options into a frame of the selected protocol.
func (f *FrameFlags) Build() (ptz.Frame, error) {
	switch f.Protocol {
	case "manchester":
		return f.manchester()
	case "vicon":
		return f.vicon()
	}
	return nil, fmt.Errorf("unknown protocol %q", f.Protocol)
}

// manchester builds one of the single-function Manchester frames. Pan and
// tilt share a field, so tilt wins when both are given, as it is written last.
func (f *FrameFlags) manchester() (ptz.Frame, error) {
	if f.Status {
		return nil, fmt.Errorf("%w: manchester has no status frame", errConflict)
	}
	moving := f.Pan != 0 || f.Tilt != 0
	lens := f.Zoom != 0 || f.Focus != 0 || f.Iris != 0

	switch {
	case f.Preset >= 0:
		if moving || lens || len(f.Aux) > 0 {
			return nil, fmt.Errorf("%w: a preset frame carries nothing else", errConflict)
		}
		cmd := manchester.NewRecallPreset()
		if f.Store {
			cmd = manchester.NewStorePreset()
		}
		if err := cmd.SetPreset(f.Preset); err != nil {
			return nil, err
		}
		return cmd, cmd.SetReceiver(f.Receiver)

	case len(f.Aux) > 0:
		if moving || lens || len(f.Aux) > 1 {
			return nil, fmt.Errorf("%w: a manchester aux frame carries one channel", errConflict)
		}
		cmd := manchester.NewAux()
		if err := cmd.SetAux(f.Aux[0]); err != nil {
			return nil, err
		}
		return cmd, cmd.SetReceiver(f.Receiver)

	case lens:
		if moving {
			return nil, fmt.Errorf("%w: a manchester frame is either lens or pan/tilt", errConflict)
		}
		cmd := manchester.NewLens()
		cmd.SetZoom(f.Zoom)
		cmd.SetFocus(f.Focus)
		cmd.SetIris(f.Iris)
		return cmd, cmd.SetReceiver(f.Receiver)
	}

	cmd := manchester.NewPanTilt()
	if err := cmd.SetPan(f.Pan); err != nil {
		return nil, err
	}
	if f.Tilt != 0 {
		if err := cmd.SetTilt(f.Tilt); err != nil {
			return nil, err
		}
	}
	return cmd, cmd.SetReceiver(f.Receiver)
}

func (f *FrameFlags) vicon() (ptz.Frame, error) {
	if f.Status {
		cmd := vicon.NewStatus()
		return cmd, cmd.SetReceiver(f.Receiver)
	}

	if f.Preset > vicon.MaxPreset {
		if f.Pan != 0 || f.Tilt != 0 {
			return nil, fmt.Errorf("%w: an extended preset carries no motion", errConflict)
		}
		cmd := vicon.NewExtendedPreset()
		if err := cmd.SetPreset(f.Preset); err != nil {
			return nil, err
		}
		cmd.SetStore(f.Store)
		return cmd, cmd.SetReceiver(f.Receiver)
	}

	var cmd *vicon.Command
	var frame ptz.Frame
	if f.Pan != 0 || f.Tilt != 0 {
		speed := vicon.NewSpeedCommand()
		if err := speed.SetPan(f.Pan); err != nil {
			return nil, err
		}
		if err := speed.SetTilt(f.Tilt); err != nil {
			return nil, err
		}
		cmd, frame = &speed.Command, speed
	} else {
		cmd = vicon.NewCommand()
		frame = cmd
	}

	cmd.SetZoom(f.Zoom)
	cmd.SetFocus(f.Focus)
	cmd.SetIris(f.Iris)
	for _, ch := range f.Aux {
		if err := cmd.SetAux(ch, true); err != nil {
			return nil, err
		}
	}
	if f.Preset >= 0 {
		var err error
		if f.Store {
			err = cmd.StorePreset(f.Preset)
		} else {
			err = cmd.RecallPreset(f.Preset)
		}
		if err != nil {
			return nil, err
		}
	}
	return frame, cmd.SetReceiver(f.Receiver)
}
