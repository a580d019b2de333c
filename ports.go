package main

import (
	"fmt"

	"ptz-telemetry/internal/link"
)

type PortsCmd struct{}

func (p *PortsCmd) Run(c *Context) error {
	ports, err := link.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.out, "No serial ports found")
	}
	for _, port := range ports {
		fmt.Fprintln(c.out, port)
	}
	return nil
}
