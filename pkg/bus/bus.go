// Package bus implements the message bus from spec.md §4.E: a bounded
// in-queue carrying DispatchEnvelopes from the scheduler to the worker
// pool, and a bounded out-queue carrying Report/TaskExecuted/
// TaskFinished Messages back. Both are single Go channels, which is
// what gives the bus its per-task ordering guarantee: as long as one
// worker only ever sends its own task's messages serially (true, since
// a worker executes one task at a time per spec.md §4.D), a channel's
// FIFO delivery preserves that task's message order end to end.
package bus

import (
	"context"
	"errors"
)

// ErrFull is returned by a non-blocking push when the queue is at
// capacity.
var ErrFull = errors.New("bus: queue full")

// ErrClosed is returned by a push to a closed bus.
var ErrClosed = errors.New("bus: closed")

// Bus is a bounded MPMC transport between the scheduler and the
// worker pool. Dispatch carries work in; Messages carries results,
// progress reports, and lifecycle notifications out.
type Bus[In, Out any] struct {
	in     chan In
	out    chan Out
	closed chan struct{}
}

// New creates a Bus with the given in-queue and out-queue capacities.
// A capacity of 0 is rejected by callers at config-validation time,
// not here; the zero value still behaves as an unbuffered channel.
func New[In, Out any](inCapacity, outCapacity int) *Bus[In, Out] {
	return &Bus[In, Out]{
		in:     make(chan In, inCapacity),
		out:    make(chan Out, outCapacity),
		closed: make(chan struct{}),
	}
}

// Close unblocks any pending Push/PushOut/receive calls. It is safe to
// call at most once.
func (b *Bus[In, Out]) Close() {
	close(b.closed)
}

// PushIn enqueues a dispatch envelope without blocking. It returns
// ErrFull if the in-queue is saturated and ErrClosed if the bus has
// been shut down.
func (b *Bus[In, Out]) PushIn(v In) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	select {
	case b.in <- v:
		return nil
	case <-b.closed:
		return ErrClosed
	default:
		return ErrFull
	}
}

// PopIn blocks until a dispatch envelope is available, the bus closes,
// or ctx is done. ok is false in the latter two cases.
func (b *Bus[In, Out]) PopIn(ctx context.Context) (In, bool) {
	var zero In
	select {
	case v := <-b.in:
		return v, true
	case <-b.closed:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// PushOut enqueues an outbound message without blocking. Workers call
// this; spec.md §4.D.3 requires the worker to degrade by dropping
// Report messages under backpressure rather than blocking the
// command it is running, so callers that can tolerate loss should
// treat ErrFull as non-fatal.
func (b *Bus[In, Out]) PushOut(v Out) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}
	select {
	case b.out <- v:
		return nil
	case <-b.closed:
		return ErrClosed
	default:
		return ErrFull
	}
}

// DrainOut removes and returns every message currently queued on the
// out-queue without blocking. The scheduler tick's first step (spec.md
// §4.C.1) calls this once per tick.
func (b *Bus[In, Out]) DrainOut() []Out {
	var out []Out
	for {
		select {
		case v := <-b.out:
			out = append(out, v)
		default:
			return out
		}
	}
}

// InLen and OutLen report current queue depth, for metrics.
func (b *Bus[In, Out]) InLen() int  { return len(b.in) }
func (b *Bus[In, Out]) OutLen() int { return len(b.out) }
