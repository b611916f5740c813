package notify

import (
	"context"
	"log/slog"
)

// DefaultQueueSize is used when a dispatcher is created with a zero size.
const DefaultQueueSize = 256

// Sender delivers a single event.
type Sender interface {
	Send(e Event) error
}

// Dispatcher decouples request handling from event delivery. Events are
// queued by Publish and delivered one by one by Run. Delivery errors are
// logged and never reach the publisher.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	queue  chan Event
}

func NewDispatcher(logger *slog.Logger, sender Sender, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Event, size),
	}
}

// Publish enqueues e without blocking. It returns false when the queue is
// full and the event was dropped.
func (d *Dispatcher) Publish(e Event) bool {
	select {
	case d.queue <- e:
		return true
	default:
		d.logger.Warn("notification queue is full, dropping event", "channel", e.Channel, "event", e.Name)
		return false
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case e := <-d.queue:
			d.deliver(e)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(e Event) {
	if err := d.sender.Send(e); err != nil {
		d.logger.Error("failed to deliver notification", "channel", e.Channel, "event", e.Name, "error", err)
		return
	}

	d.logger.Debug("delivered notification", "channel", e.Channel, "event", e.Name)
}
