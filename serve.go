package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ptz-telemetry/internal/config"
	"ptz-telemetry/internal/link"
	"ptz-telemetry/internal/manchester"
	"ptz-telemetry/internal/ptz"
	"ptz-telemetry/internal/rtsp"
	"ptz-telemetry/internal/server"
	"ptz-telemetry/internal/transmit"
	"ptz-telemetry/internal/vicon"
)

type ServeCmd struct {
	Config string `short:"c" default:"ptz.yaml" help:"Path to the YAML configuration."`
}

func (s *ServeCmd) Run(c *Context) error {
	cfg, err := config.LoadFile(s.Config)
	if err != nil {
		return err
	}
	logger := c.logger

	sink, err := link.Open(link.Config{
		Type:         cfg.Link.Type,
		Address:      cfg.Link.Address,
		Baud:         cfg.Link.Baud,
		WriteTimeout: cfg.Link.WriteTimeout,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tx := transmit.New(sink,
		transmit.WithInterval(cfg.Camera.Interval),
		transmit.WithLogger(logger),
		transmit.WithMetrics(transmit.NewMetrics(reg)),
		transmit.WithLabel(cfg.Camera.Protocol))
	driver := transmit.NewDriver(tx)

	var ctrl ptz.Controller
	switch cfg.Camera.Protocol {
	case config.Manchester:
		ctrl, err = manchester.NewController(manchester.Config{Receiver: cfg.Camera.Receiver}, driver)
	default:
		ctrl, err = vicon.NewController(vicon.Config{Receiver: cfg.Camera.Receiver}, driver)
	}
	if err != nil {
		driver.Close()
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr: cfg.Listen,
		RTSPURL:    cfg.RTSP,
		ICEServers: cfg.ICEServers,
		Protocol:   cfg.Camera.Protocol,
		Receiver:   cfg.Camera.Receiver,
	}, ctrl, staticFiles,
		server.WithLogger(logger),
		server.WithFrameSource(driver),
		server.WithVideoMetrics(rtsp.NewMetrics(reg)),
		server.WithGatherer(reg))
	if err != nil {
		ctrl.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdown); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("PTZ telemetry console",
		"listen", cfg.Listen,
		"protocol", cfg.Camera.Protocol,
		"receiver", cfg.Camera.Receiver,
		"link", cfg.Link.Type,
		"address", cfg.Link.Address,
		"video", cfg.RTSP != "")

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
