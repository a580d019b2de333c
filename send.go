package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ptz-telemetry/internal/link"
	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/transmit"
)

// LinkFlags select the byte sink.
type LinkFlags struct {
	LinkType string `name:"link-type" default:"serial" help:"Link type: serial, tcp or udp."`
	Address  string `required:"" short:"a" help:"Serial device, or host:port of a terminal server."`
	Baud     int    `default:"9600" help:"Serial baud rate."`
}

func (l *LinkFlags) config() link.Config {
	return link.Config{Type: l.LinkType, Address: l.Address, Baud: l.Baud}
}

type SendCmd struct {
	Frame FrameFlags `embed:""`
	Link  LinkFlags  `embed:""`

	Interval time.Duration `default:"150ms" help:"Delay between repeated frames."`
	Duration time.Duration `optional:"" help:"Stop after this long; 0 repeats until interrupted."`
}

func (s *SendCmd) Run(c *Context) error {
	frame, err := s.Frame.Build()
	if err != nil {
		return err
	}

	sink, err := link.Open(s.Link.config())
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if s.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Duration)
		defer cancel()
	}

	tx := transmit.New(sink,
		transmit.WithInterval(s.Interval),
		transmit.WithLogger(c.logger),
		transmit.WithLabel(s.Frame.Protocol))

	fmt.Fprintf(c.out, "Sending %s to %s every %v\n", ptz.Hex(frame.Octets()), s.Link.Address, tx.Interval())
	return repeatUntilDone(ctx, tx, frame)
}

// repeatUntilDone treats the end of ctx as a normal exit.
func repeatUntilDone(ctx context.Context, tx *transmit.Transmitter, frame ptz.Frame) error {
	err := tx.Repeat(ctx, frame)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
