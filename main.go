package main

import (
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

//go:embed web/*
var staticFiles embed.FS

// Context is passed to every command's Run method.
type Context struct {
	logger *slog.Logger
	out    io.Writer
}

var CLI struct {
	LogLevel string `optional:"" help:"Log level: debug, info, warn or error." default:"info"`
	NoColor  bool   `optional:"" help:"Disable coloured output."`

	Serve  ServeCmd  `cmd:"" help:"Run the operator console."`
	Send   SendCmd   `cmd:"" help:"Repeat one frame to a receiver until interrupted."`
	Encode EncodeCmd `cmd:"" help:"Print the bytes and bit map of a frame."`
	Decode DecodeCmd `cmd:"" help:"Decode frames given in hex."`
	Ports  PortsCmd  `cmd:"" help:"List serial ports."`
}

func main() {
	k, err := kong.New(&CLI,
		kong.Name("ptz-telemetry"),
		kong.Description("Manchester and Vicon PTZ telemetry transmitter."),
		kong.NamedMapper("int", intMapper{}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, err := k.Parse(os.Args[1:])
	k.FatalIfErrorf(err)

	var level slog.Level
	if err := level.UnmarshalText([]byte(CLI.LogLevel)); err != nil {
		k.Fatalf("invalid log level %q", CLI.LogLevel)
	}
	if CLI.NoColor {
		disableColor()
	}

	c := &Context{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		out:    os.Stdout,
	}
	err = ctx.Run(c)
	ctx.FatalIfErrorf(err)
}
