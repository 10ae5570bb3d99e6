package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
)

// OverflowPolicy decides what a producer does when the event queue is full.
type OverflowPolicy string

const (
	// Block makes every producer wait for room in the queue.
	Block OverflowPolicy = "block"
	// DropNewest discards the incoming chat message when the queue is full.
	// Admission and disconnect events are never dropped, they always block.
	DropNewest OverflowPolicy = "drop-newest"
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case Block, DropNewest:
		return OverflowPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

var _ contract.Publisher = (*EventQueue)(nil)

// EventQueue is the ordered hand-off between many producers and the dispatcher.
type EventQueue struct {
	log    *slog.Logger
	policy OverflowPolicy
	events chan event.DomainEvent
}

func NewEventQueue(log *slog.Logger, size int, policy OverflowPolicy) *EventQueue {
	return &EventQueue{
		log:    log,
		policy: policy,
		events: make(chan event.DomainEvent, size),
	}
}

// Publish enqueues evt according to the overflow policy.
// It returns ErrQueueFull when a message was dropped, or the context error when ctx ends first.
func (q *EventQueue) Publish(ctx context.Context, evt event.DomainEvent) error {
	if q.policy == DropNewest && !evt.Control() {
		select {
		case q.events <- evt:
			return nil
		default:
			q.log.Warn("Event queue full, dropping message", "address", evt.Origin())
			return errors.ErrQueueFull
		}
	}
	select {
	case q.events <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the consumer end, read only by the dispatcher.
func (q *EventQueue) Events() <-chan event.DomainEvent {
	return q.events
}

// Channel exposes the raw channel for capacity sampling.
func (q *EventQueue) Channel() chan event.DomainEvent {
	return q.events
}
