package bridge

import (
	"sync"

	"github.com/Evildoersudo/back-end/internal/infrastructure/logging"
)

// Sink receives events from the fan-out consumer, one at a time.
type Sink interface {
	Deliver(event interface{})
}

// Fanout decouples message handling from event delivery. Emit never
// blocks: events queue on a bounded channel and a dedicated goroutine
// drains them into the sink. When the queue is full the oldest queued
// event is dropped to make room, so a slow sink loses history rather
// than stalling the bus callbacks.
type Fanout struct {
	sink Sink
	log  *logging.Logger

	mu      sync.Mutex
	ch      chan interface{}
	closed  bool
	dropped uint64

	done chan struct{}
}

// NewFanout creates a Fanout with the given queue capacity and starts
// its consumer goroutine.
func NewFanout(size int, sink Sink, log *logging.Logger) *Fanout {
	if size < 1 {
		size = 1
	}
	f := &Fanout{
		sink: sink,
		log:  log,
		ch:   make(chan interface{}, size),
		done: make(chan struct{}),
	}
	go f.consume()
	return f
}

func (f *Fanout) consume() {
	defer close(f.done)
	for event := range f.ch {
		f.sink.Deliver(event)
	}
}

// Emit queues an event for delivery. On overflow the oldest queued
// event is discarded.
func (f *Fanout) Emit(event interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	select {
	case f.ch <- event:
		return
	default:
	}

	// Queue full: drop the oldest and retry. The consumer may have
	// drained one in between, so the retry can still race; give up
	// quietly in that case rather than block.
	select {
	case <-f.ch:
		f.dropped++
		f.log.Warn("event queue full, dropped oldest event", "dropped_total", f.dropped)
	default:
	}
	select {
	case f.ch <- event:
	default:
	}
}

// Dropped returns how many events have been discarded on overflow.
func (f *Fanout) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops accepting events and waits for the consumer to drain the
// queue.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	<-f.done
}
