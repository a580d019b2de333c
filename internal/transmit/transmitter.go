// Package transmit repeats encoded frames over a byte sink.
//
// The legacy receivers keep no state and send no acknowledgement: a camera
// moves only while frames keep arriving. The transmitter therefore
// re-asserts the current frame at a fixed cadence until told to stop.
package transmit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ptz-telemetry/internal/clock"
	"ptz-telemetry/internal/ptz"
)

// DefaultInterval is the delay between repeated frames.
const DefaultInterval = 150 * time.Millisecond

// Transmitter writes frames to a sink at a fixed interval.
// Only one Repeat loop may use a sink at a time; Driver enforces this.
type Transmitter struct {
	sink     io.Writer
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
	label    string
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithInterval sets the repeat interval.
func WithInterval(d time.Duration) Option {
	return func(t *Transmitter) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock replaces the real clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(t *Transmitter) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transmitter) { t.logger = l }
}

// WithMetrics records frame and error counts.
func WithMetrics(m *Metrics) Option {
	return func(t *Transmitter) { t.metrics = m }
}

// WithLabel names the protocol in logs and metrics.
func WithLabel(label string) Option {
	return func(t *Transmitter) { t.label = label }
}

// New creates a transmitter writing to sink.
func New(sink io.Writer, opts ...Option) *Transmitter {
	t := &Transmitter{
		sink:     sink,
		interval: DefaultInterval,
		clock:    clock.Real(),
		logger:   slog.Default(),
		label:    "frame",
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "transmit", "protocol", t.label)
	return t
}

// Interval returns the repeat interval.
func (t *Transmitter) Interval() time.Duration {
	return t.interval
}

// Repeat encodes frame once, then writes it to the sink every interval
// until ctx is done. It returns ctx.Err() on cancellation, or the first
// write error; a failed write is never retried.
func (t *Transmitter) Repeat(ctx context.Context, frame ptz.Frame) error {
	octets := frame.Octets()
	t.logger.Debug("Transmit: starting", "frame", ptz.Hex(octets), "interval", t.interval)

	t.metrics.loopStarted(t.label)
	defer t.metrics.loopStopped(t.label)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.write(octets); err != nil {
			t.metrics.writeFailed(t.label)
			t.logger.Error("Transmit: write failed", "frame", ptz.Hex(octets), "error", err)
			return err
		}
		t.metrics.frameWritten(t.label)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(t.interval):
		}
	}
}

func (t *Transmitter) write(octets []byte) error {
	n, err := t.sink.Write(octets)
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if n != len(octets) {
		return fmt.Errorf("failed to write frame: %w (%d of %d bytes)", io.ErrShortWrite, n, len(octets))
	}
	return nil
}
