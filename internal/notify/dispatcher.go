// Package notify decouples outbound mail from the request path. Producers
// enqueue without blocking; a background worker performs delivery. Delivery
// is best-effort: a full queue or a transport failure drops the message with
// a log line and a metric, never an error to the caller.
package notify

import (
	"context"

	"vendorhub.org/internal/obs"
)

// Kind identifies the notification template.
type Kind string

const (
	KindSupplierApproved Kind = "supplier.approved"
	KindSupplierRejected Kind = "supplier.rejected"
)

// Message is one outbound notification job.
type Message struct {
	Kind      Kind
	Email     string
	ProfileID string
	Reason    string
}

const defaultQueueSize = 256

// Dispatcher is a multi-producer single-consumer queue in front of a Mailer.
type Dispatcher struct {
	mailer Mailer
	queue  chan Message
}

// NewDispatcher constructs a dispatcher with a bounded queue.
func NewDispatcher(mailer Mailer, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		mailer: mailer,
		queue:  make(chan Message, queueSize),
	}
}

// Enqueue hands a message to the worker. Never blocks: when the queue is
// full the message is dropped and counted.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		obs.NotificationDropped("queue_full")
		obs.Error("notification queue full, message dropped", map[string]any{
			"kind":       string(msg.Kind),
			"profile_id": msg.ProfileID,
		})
	}
}

// SupplierApproved enqueues an approval notification.
func (d *Dispatcher) SupplierApproved(email, profileID string) {
	d.Enqueue(Message{Kind: KindSupplierApproved, Email: email, ProfileID: profileID})
}

// SupplierRejected enqueues a rejection notification.
func (d *Dispatcher) SupplierRejected(email, profileID, reason string) {
	d.Enqueue(Message{Kind: KindSupplierRejected, Email: email, ProfileID: profileID, Reason: reason})
}

// Run consumes the queue until the context ends, delivering one message at a
// time. A delivery failure is logged and the message dropped; there is no
// retry.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			if err := d.mailer.Send(ctx, msg); err != nil {
				obs.NotificationDropped("delivery_failed")
				obs.Error("notification delivery failed", map[string]any{
					"kind":       string(msg.Kind),
					"profile_id": msg.ProfileID,
					"error":      err.Error(),
				})
				continue
			}
			obs.NotificationDelivered()
		}
	}
}
