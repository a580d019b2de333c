// Package rtsp pulls the camera's video over RTSP so the operator console
// can watch the picture while steering the head.
package rtsp

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
)

// ErrNoVideo is returned when the stream offers no video media.
var ErrNoVideo = errors.New("rtsp: stream has no video media")

var errClosed = errors.New("rtsp: client closed")

const maxBackoff = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records packet and connection counts.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client handles RTSP connection and RTP streaming using gortsplib
type Client struct {
	url     string
	logger  *slog.Logger
	metrics *Metrics
	rtpChan chan []byte
	stopCh  chan struct{}

	mu      sync.Mutex
	client  *gortsplib.Client
	stopped bool
}

// NewClient creates a new RTSP client
func NewClient(rtspURL string, opts ...Option) (*Client, error) {
	if _, err := base.ParseURL(rtspURL); err != nil {
		return nil, err
	}

	c := &Client{
		url:     rtspURL,
		logger:  slog.Default(),
		rtpChan: make(chan []byte, 500),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "rtsp")
	return c, nil
}

// Connect establishes the RTSP connection and starts streaming. A dropped
// connection is re-established in the background until Close.
func (c *Client) Connect() error {
	return c.connect()
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return errClosed
	}

	transport := gortsplib.TransportTCP
	client := &gortsplib.Client{
		Transport:    &transport,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		OnDecodeError: func(err error) {
			c.logger.Warn("RTSP: decode error", "error", err)
		},
	}

	u, err := base.ParseURL(c.url)
	if err != nil {
		return err
	}

	if err := client.Start(u.Scheme, u.Host); err != nil {
		return err
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		client.Close()
		return err
	}

	videoMedia, videoFormat := findVideo(desc)
	if videoFormat == nil {
		client.Close()
		return ErrNoVideo
	}

	if _, err := client.Setup(desc.BaseURL, videoMedia, 0, 0); err != nil {
		client.Close()
		return err
	}

	client.OnPacketRTPAny(func(media *description.Media, forma format.Format, pkt *rtp.Packet) {
		buf, err := pkt.Marshal()
		if err != nil {
			return
		}

		select {
		case c.rtpChan <- buf:
			c.metrics.packet(false)
		case <-c.stopCh:
		default:
			// receiver is behind; drop
			c.metrics.packet(true)
		}
	})

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return err
	}

	c.client = client
	c.metrics.setConnected(true)
	c.logger.Info("RTSP: connected and playing", "codec", videoFormat.Codec())

	go c.monitorConnection(client)

	return nil
}

// findVideo prefers H264/H265 and falls back to the first video media.
func findVideo(desc *description.Session) (*description.Media, format.Format) {
	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			switch forma.(type) {
			case *format.H264, *format.H265:
				return media, forma
			}
		}
	}
	for _, media := range desc.Medias {
		if media.Type == description.MediaTypeVideo && len(media.Formats) > 0 {
			return media, media.Formats[0]
		}
	}
	return nil, nil
}

// monitorConnection watches for disconnection and reconnects
func (c *Client) monitorConnection(client *gortsplib.Client) {
	err := client.Wait()
	c.metrics.setConnected(false)

	select {
	case <-c.stopCh:
		return
	default:
	}

	c.logger.Warn("RTSP: connection lost", "error", err)

	for attempt := 1; ; attempt++ {
		delay := backoff(attempt)
		c.logger.Info("RTSP: reconnecting", "attempt", attempt, "delay", delay)

		select {
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("RTSP: reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		c.metrics.reconnected()
		c.logger.Info("RTSP: reconnected")
		return
	}
}

// backoff doubles from one second up to maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt > 6 {
		return maxBackoff
	}
	return min(time.Duration(1<<uint(attempt-1))*time.Second, maxBackoff)
}

// RTPChannel returns the channel for receiving RTP packets
func (c *Client) RTPChannel() <-chan []byte {
	return c.rtpChan
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.stopCh
}

// Close closes the RTSP connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	client := c.client
	close(c.stopCh)
	c.mu.Unlock()

	if client != nil {
		client.Close()
	}
	return nil
}
