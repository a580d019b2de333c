package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"ptz-telemetry/internal/ptz"
)

type EncodeCmd struct {
	Frame FrameFlags `embed:""`
}

func (e *EncodeCmd) Run(c *Context) error {
	frame, err := e.Frame.Build()
	if err != nil {
		return err
	}
	octets := frame.Octets()
	fmt.Fprintln(c.out, ptz.Hex(octets))
	fmt.Fprint(c.out, bitmap(octets))
	return nil
}

func disableColor() {
	color.NoColor = true
}

// bitmap lists every byte with its bits in transmission order, LSB first,
// numbered from the start of the frame. Set bits are highlighted.
func bitmap(octets []byte) string {
	var b strings.Builder
	set := color.New(color.FgGreen, color.Bold)
	unset := color.New(color.Faint)

	for i, o := range octets {
		fmt.Fprintf(&b, "%2d..%-2d  %02X  ", i*8, i*8+7, o)
		for bit := 0; bit < 8; bit++ {
			if o>>bit&1 == 1 {
				b.WriteString(set.Sprint("1"))
			} else {
				b.WriteString(unset.Sprint("0"))
			}
			if bit == 3 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
