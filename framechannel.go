package cameracapture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// OverflowPolicy decides what a bounded FrameChannel does when full
type OverflowPolicy int

const (
	// OverflowBlock makes Send wait until the consumer frees a slot
	OverflowBlock OverflowPolicy = iota
	// OverflowDropOldest evicts the oldest queued frame
	OverflowDropOldest
)

// String returns a human-readable string representation of the policy
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowDropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// QueueOptions bounds the frame queue. The zero value is unbounded.
type QueueOptions struct {
	// Capacity is the maximum number of queued frames (0 = unbounded)
	Capacity int
	// Overflow applies when Capacity is reached
	Overflow OverflowPolicy
}

// FrameChannel hands decoded frames from the pipeline's streaming thread to
// a pulling consumer, in order.
//
// Close discards queued frames and makes every pending and future Receive
// fail with ErrChannelClosed.
type FrameChannel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Frame
	head   int
	closed bool
	cause  error

	opts    QueueOptions
	dropped atomic.Uint64
}

// NewFrameChannel returns an open channel
func NewFrameChannel(opts QueueOptions) *FrameChannel {
	c := &FrameChannel{opts: opts}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send enqueues frame. With OverflowBlock and a full queue it waits until
// space frees up or the channel closes.
func (c *FrameChannel) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.Capacity > 0 && c.opts.Overflow == OverflowBlock {
		for !c.closed && c.lenLocked() >= c.opts.Capacity {
			c.cond.Wait()
		}
	}
	if c.closed {
		return ErrChannelClosed
	}

	if c.opts.Capacity > 0 && c.opts.Overflow == OverflowDropOldest && c.lenLocked() >= c.opts.Capacity {
		c.queue[c.head] = Frame{}
		c.head++
		c.compactLocked()
		c.dropped.Add(1)
	}

	c.queue = append(c.queue, frame)
	c.cond.Broadcast()
	return nil
}

// Receive pops the oldest frame, blocking until one arrives, the channel is
// closed, or ctx is done.
func (c *FrameChannel) Receive(ctx context.Context) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.closed && c.lenLocked() == 0 {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		c.cond.Wait()
	}
	if c.closed {
		if c.cause != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrChannelClosed, c.cause)
		}
		return Frame{}, ErrChannelClosed
	}

	frame := c.queue[c.head]
	c.queue[c.head] = Frame{}
	c.head++
	c.compactLocked()

	c.cond.Broadcast()
	return frame, nil
}

// Close is idempotent
func (c *FrameChannel) Close() {
	c.CloseWithError(nil)
}

// CloseWithError closes the channel and makes Receive report cause along
// with ErrChannelClosed. Only the first close records a cause.
func (c *FrameChannel) CloseWithError(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cause = cause
	c.queue = nil
	c.head = 0
	c.cond.Broadcast()
}

// Closed reports whether Close was called
func (c *FrameChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of queued frames
func (c *FrameChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

// Dropped returns the number of frames evicted by OverflowDropOldest
func (c *FrameChannel) Dropped() uint64 {
	return c.dropped.Load()
}

// compactLocked reclaims the consumed prefix once it passes half the slice
func (c *FrameChannel) compactLocked() {
	if c.head == len(c.queue) {
		c.queue = c.queue[:0]
		c.head = 0
	} else if c.head > len(c.queue)/2 {
		n := copy(c.queue, c.queue[c.head:])
		c.queue = c.queue[:n]
		c.head = 0
	}
}

func (c *FrameChannel) lenLocked() int {
	return len(c.queue) - c.head
}
