// Package coalescer batches rapid document edits into periodic writes.
//
// Edits accumulate into one pending patch (last value wins per field). A
// trailing timer closes the window after a quiet period and moves the
// pending patch onto a FIFO outbox drained by a single sender goroutine, so
// patches reach storage in the order their windows closed. Edits that
// arrive while a send is in flight start a fresh pending patch.
package coalescer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/models"
)

// DefaultDelay is the quiet period used when Config.Delay is not set.
const DefaultDelay = time.Second

// ErrClosed is returned by operations on a closed coalescer.
var ErrClosed = errors.New("coalescer: closed")

// State is the observable timer state.
type State int

const (
	// StateIdle means nothing is pending.
	StateIdle State = iota
	// StateWaiting means a window is open and the timer is armed.
	StateWaiting
	// StateClosed means no further edits are accepted.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Sender persists one coalesced patch.
type Sender func(ctx context.Context, p models.DocumentPatch) error

// Config configures a Coalescer.
type Config struct {
	Delay time.Duration
	// OnFailure is called from the sender goroutine when a send fails. The
	// patch is not retried.
	OnFailure func(p models.DocumentPatch, err error)
	Logger    *slog.Logger
}

type job struct {
	patch   models.DocumentPatch
	barrier bool
	result  chan error
}

// Coalescer is the debounce timer and outbox of one edit session.
type Coalescer struct {
	delay     time.Duration
	send      Sender
	onFailure func(models.DocumentPatch, error)
	logger    *slog.Logger

	mu         sync.Mutex
	pending    models.DocumentPatch
	hasPending bool
	timer      *time.Timer
	gen        uint64
	queue      []job
	sending    *models.DocumentPatch
	closed     bool

	wake chan struct{}
	done chan struct{}
}

// New creates a coalescer and starts its sender goroutine.
func New(send Sender, cfg Config) *Coalescer {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Coalescer{
		delay:     cfg.Delay,
		send:      send,
		onFailure: cfg.OnFailure,
		logger:    cfg.Logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

// Accumulate merges p into the pending patch and re-arms the timer.
func (c *Coalescer) Accumulate(p models.DocumentPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if p.IsEmpty() {
		return nil
	}
	c.pending = c.pending.Merge(p)
	c.hasPending = true
	c.arm()
	return nil
}

// arm (re)starts the trailing timer. Fires from earlier generations are
// ignored. Callers hold mu.
func (c *Coalescer) arm() {
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

// disarm stops the timer. Callers hold mu.
func (c *Coalescer) disarm() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.hasPending {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.enqueue(job{patch: c.takePending()})
	c.mu.Unlock()
}

// takePending returns and clears the pending patch. Callers hold mu.
func (c *Coalescer) takePending() models.DocumentPatch {
	p := c.pending
	c.pending = models.DocumentPatch{}
	c.hasPending = false
	return p
}

// enqueue appends to the outbox and wakes the sender. Callers hold mu.
func (c *Coalescer) enqueue(j job) {
	c.queue = append(c.queue, j)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// FlushNow closes the current window immediately and waits until it, and
// every patch queued before it, has been sent. It returns the error of the
// flushed patch, or nil when nothing was pending.
func (c *Coalescer) FlushNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	result := c.flushLocked()
	c.mu.Unlock()

	return wait(ctx, result)
}

// flushLocked moves the pending patch (or a barrier) onto the outbox.
// Callers hold mu.
func (c *Coalescer) flushLocked() chan error {
	c.disarm()
	result := make(chan error, 1)
	if c.hasPending {
		c.enqueue(job{patch: c.takePending(), result: result})
	} else {
		c.enqueue(job{barrier: true, result: result})
	}
	return result
}

// Cancel disarms the timer and returns the pending patch without sending
// it. Patches already in the outbox are unaffected.
func (c *Coalescer) Cancel() (models.DocumentPatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarm()
	had := c.hasPending
	return c.takePending(), had
}

// Close flushes the pending patch, waits for the outbox to drain and stops
// the sender. Further Accumulate calls return ErrClosed. Closing an already
// closed coalescer is a no-op.
func (c *Coalescer) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	result := c.flushLocked()
	c.closed = true
	c.mu.Unlock()

	err := wait(ctx, result)
	select {
	case <-c.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// State reports the timer state.
func (c *Coalescer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return StateClosed
	case c.hasPending:
		return StateWaiting
	}
	return StateIdle
}

// Outstanding returns everything accepted but not yet confirmed, merged in
// send order: the in-flight patch, the outbox, then the pending window.
func (c *Coalescer) Outstanding() models.DocumentPatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out models.DocumentPatch
	if c.sending != nil {
		out = out.Merge(*c.sending)
	}
	for _, j := range c.queue {
		if !j.barrier {
			out = out.Merge(j.patch)
		}
	}
	if c.hasPending {
		out = out.Merge(c.pending)
	}
	return out
}

// run is the single sender goroutine.
func (c *Coalescer) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 {
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			<-c.wake
			c.mu.Lock()
		}
		j := c.queue[0]
		c.queue = c.queue[1:]
		if !j.barrier {
			p := j.patch
			c.sending = &p
		}
		c.mu.Unlock()

		var err error
		if !j.barrier {
			err = c.send(context.Background(), j.patch)
			if err != nil {
				c.logger.Warn("coalescer: send failed",
					slog.Any("fields", j.patch.Fields()),
					slog.String("error", err.Error()))
				if c.onFailure != nil {
					c.onFailure(j.patch, err)
				}
			}
		}

		c.mu.Lock()
		c.sending = nil
		c.mu.Unlock()

		if j.result != nil {
			j.result <- err
		}
	}
}

func wait(ctx context.Context, result chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
