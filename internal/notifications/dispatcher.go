package notifications

import (
	"context"
	"roombook/pkg/logger"
	"sync"
	"time"
)

// Dispatcher decouples transitions from delivery. Enqueue never blocks: when
// the queue is full the notification is dropped and logged. Delivery errors
// are logged and never reach the caller.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     *logger.Logger

	mu     sync.RWMutex
	queue  chan Notification
	closed bool
	done   chan struct{}
}

func NewDispatcher(sink Sink, queueSize int, timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		timeout: timeout,
		log:     log,
		queue:   make(chan Notification, queueSize),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Enqueue(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Notification dropped, dispatcher closed",
			"kind", n.Kind,
			"reservation_id", n.ReservationID,
		)
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.log.Warn("Notification dropped, queue full",
			"kind", n.Kind,
			"reservation_id", n.ReservationID,
			"queue_size", cap(d.queue),
		)
		return false
	}
}

// Run delivers queued notifications until Close is called and the queue is
// drained. ctx bounds individual deliveries only.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(context.WithoutCancel(ctx), n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Send(ctx, n); err != nil {
		d.log.Error("Notification delivery failed",
			"kind", n.Kind,
			"reservation_id", n.ReservationID,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
}

// Close stops intake and waits for the queue to drain or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
