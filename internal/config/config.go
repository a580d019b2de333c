// Package config loads the telemetry console configuration.
//
// Configuration comes from a single YAML file named on the command line.
// Values not present in the file keep the defaults from Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera protocols.
const (
	Manchester = "manchester"
	Vicon      = "vicon"
)

// Config is the top-level configuration.
type Config struct {
	// Listen is the HTTP listen address of the operator console.
	Listen string `yaml:"listen"`

	// RTSP is the camera stream relayed to the console. Empty disables video.
	// ${VAR} references are expanded so credentials can stay out of the file.
	RTSP string `yaml:"rtsp"`

	// ICEServers are the STUN/TURN URLs offered to browsers.
	ICEServers []string `yaml:"ice_servers"`

	// Camera selects the telemetry protocol and receiver.
	Camera CameraConfig `yaml:"camera"`

	// Link describes where frames are written.
	Link LinkConfig `yaml:"link"`
}

// CameraConfig selects the telemetry protocol and receiver.
type CameraConfig struct {
	// Protocol is "manchester" or "vicon".
	Protocol string `yaml:"protocol"`

	// Receiver is the receiver address, 1-255.
	Receiver int `yaml:"receiver"`

	// Interval is the repeat interval of the transmitter.
	// Default: 150ms
	Interval time.Duration `yaml:"interval"`
}

// LinkConfig describes the byte sink.
type LinkConfig struct {
	// Type is "serial", "tcp" or "udp".
	Type string `yaml:"type"`

	// Address is a device path for serial links, host:port otherwise.
	Address string `yaml:"address"`

	// Baud applies to serial links.
	// Default: 9600
	Baud int `yaml:"baud"`

	// WriteTimeout bounds each network write.
	// Default: 1s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the configuration used as a base before the file is read.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		ICEServers: []string{
			"stun:stun.l.google.com:19302",
		},
		Camera: CameraConfig{
			Protocol: Vicon,
			Receiver: 1,
			Interval: 150 * time.Millisecond,
		},
		Link: LinkConfig{
			Type:         "serial",
			Baud:         9600,
			WriteTimeout: time.Second,
		},
	}
}

// LoadFile loads and validates configuration from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.RTSP = os.ExpandEnv(cfg.RTSP)
	cfg.Link.Address = os.ExpandEnv(cfg.Link.Address)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}

	switch c.Camera.Protocol {
	case Manchester, Vicon:
	default:
		errs = append(errs, fmt.Errorf("invalid camera.protocol: %q", c.Camera.Protocol))
	}
	if c.Camera.Receiver < 1 || c.Camera.Receiver > 255 {
		errs = append(errs, fmt.Errorf("camera.receiver must be 1-255, got %d", c.Camera.Receiver))
	}
	if c.Camera.Interval <= 0 {
		errs = append(errs, fmt.Errorf("camera.interval must be positive"))
	}

	switch c.Link.Type {
	case "serial", "tcp", "udp":
	default:
		errs = append(errs, fmt.Errorf("invalid link.type: %q", c.Link.Type))
	}
	if c.Link.Address == "" {
		errs = append(errs, fmt.Errorf("link.address is required"))
	}
	if c.Link.Type == "serial" && c.Link.Baud <= 0 {
		errs = append(errs, fmt.Errorf("link.baud must be positive"))
	}

	return errors.Join(errs...)
}
