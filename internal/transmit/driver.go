package transmit

import (
	"context"
	"errors"
	"sync"

	"ptz-telemetry/internal/ptz"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transmit: driver closed")

// Driver keeps at most one Repeat loop running on a transmitter and
// swaps the repeated frame when the desired state changes.
type Driver struct {
	tx *Transmitter

	// ops serializes Send, Halt and Close.
	ops    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	mu   sync.Mutex
	last []byte
	err  error
}

// NewDriver creates an idle driver.
func NewDriver(tx *Transmitter) *Driver {
	return &Driver{tx: tx}
}

// Send replaces the repeated frame. The new frame goes out immediately
// and then at the transmitter's interval. A sink error that stopped the
// previous loop is logged and cleared; it does not fail the new frame,
// whose own errors are reported by Err.
func (d *Driver) Send(frame ptz.Frame) error {
	d.ops.Lock()
	defer d.ops.Unlock()

	if d.closed {
		return ErrClosed
	}
	d.halt()

	octets := frame.Octets()
	d.mu.Lock()
	if d.err != nil {
		d.tx.logger.Warn("Transmit: restarting after write failure", "error", d.err)
	}
	d.err = nil
	d.last = octets
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	go func() {
		defer close(done)
		err := d.tx.Repeat(ctx, frame)
		if err != nil && !errors.Is(err, context.Canceled) {
			// nothing is repeated any more
			d.mu.Lock()
			d.err = err
			d.last = nil
			d.mu.Unlock()
		}
	}()

	return nil
}

// Halt stops transmitting. The receiver stops moving once frames stop.
func (d *Driver) Halt() {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.halt()
}

// halt cancels the running loop and waits for it. Callers hold ops.
func (d *Driver) halt() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel = nil
	d.done = nil

	d.mu.Lock()
	d.last = nil
	d.mu.Unlock()
}

// Err returns the error that stopped the current loop, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Last returns the frame being repeated, or nil when idle.
func (d *Driver) Last() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	out := make([]byte, len(d.last))
	copy(out, d.last)
	return out
}

// Close halts the driver and rejects further frames.
func (d *Driver) Close() error {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.halt()
	d.closed = true
	return nil
}
