package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"ptz-telemetry/internal/manchester"
	"ptz-telemetry/internal/vicon"
)

type DecodeCmd struct {
	Protocol string   `required:"" short:"p" help:"Telemetry protocol: manchester or vicon."`
	Frames   []string `arg:"" name:"hex" help:"Captured bytes, e.g. 80:1C:02 or 801c02. Several frames may be concatenated."`
}

func (d *DecodeCmd) Run(c *Context) error {
	data, err := parseHex(strings.Join(d.Frames, ""))
	if err != nil {
		return err
	}
	lines, err := decodeStream(d.Protocol, data)
	for _, l := range lines {
		fmt.Fprintln(c.out, l)
	}
	return err
}

// parseHex accepts bytes separated by colons, spaces or nothing.
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(":", "", " ", "", "-", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

// decodeStream decodes consecutive frames and describes each on one line.
// A byte without the flag bit cannot start a frame; it is reported and
// skipped so a capture that begins mid-frame resynchronises.
func decodeStream(protocol string, data []byte) ([]string, error) {
	var lines []string
	for len(data) > 0 {
		var line string
		var n int
		var err error
		switch protocol {
		case "manchester":
			var msg manchester.Message
			msg, err = manchester.Decode(data)
			line, n = fmt.Sprintf("%s %+v", msg.Kind, msg), manchester.FrameSize
		case "vicon":
			var msg vicon.Message
			msg, n, err = vicon.Decode(data)
			line = fmt.Sprintf("%s %+v", msg.Kind, msg)
		default:
			return nil, fmt.Errorf("unknown protocol %q", protocol)
		}
		if errors.Is(err, manchester.ErrNoFlag) || errors.Is(err, vicon.ErrNoFlag) {
			line, n = fmt.Sprintf("unexpected byte %02X", data[0]), 1
		} else if err != nil {
			return lines, err
		}
		lines = append(lines, line)
		data = data[n:]
	}
	return lines, nil
}
