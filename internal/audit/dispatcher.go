package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of blocking
	// the caller until there is room or its context ends.
	DropIfFull bool
	// OnDrop is called synchronously for every dropped event.
	OnDrop func(Event)
}

// Dispatcher forwards events to a sink from a single worker goroutine.
type Dispatcher struct {
	cfg  Config
	sink Sink
	now  func() time.Time

	// mu guards closed and the queue send, so Close never races a send on
	// a closed channel.
	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	stopped chan struct{}

	emitted atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg.Enabled is
// false; a nil *Dispatcher accepts and ignores every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		now:     time.Now,
		queue:   make(chan Event, max(cfg.BufferSize, 1)),
		stopped: make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *Dispatcher) work() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.emitted.Add(1)
	}
}

// Emit queues event, assigning an ID and timestamp when missing. Without
// DropIfFull it waits for room until ctx ends.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if !d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-ctx.Done():
		}
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		if d.cfg.OnDrop != nil {
			d.cfg.OnDrop(event)
		}
	}
}

// Close stops accepting events and returns once the queued ones have
// reached the sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped counts events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Emitted counts events delivered to the sink.
func (d *Dispatcher) Emitted() uint64 {
	if d == nil {
		return 0
	}
	return d.emitted.Load()
}
