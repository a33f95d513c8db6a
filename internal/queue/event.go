// Package queue defines message payloads exchanged over the message broker.
package queue

import "context"

// RegistrationConfirmedQueue is the durable queue for confirmed payments.
const RegistrationConfirmedQueue = "registration.confirmed"

// RegistrationConfirmedEvent is published when a registration moves to
// success. It carries enough for downstream consumers to log or notify
// without querying the primary store.
type RegistrationConfirmedEvent struct {
	OrderID     string   `json:"order_id"`
	UserID      string   `json:"user_id"`
	UserEmail   string   `json:"user_email"`
	UserName    string   `json:"user_name"`
	EventIDs    []string `json:"event_ids"`
	EventNames  []string `json:"event_names"`
	TotalAmount int64    `json:"total_amount"`
	Source      string   `json:"source"` // checkout | reconcile | patch
	ConfirmedAt string   `json:"confirmed_at"`
}

// Publisher delivers domain events. Implementations must not block the
// request path for long; failures are reported, never retried inline.
type Publisher interface {
	PublishRegistrationConfirmed(ctx context.Context, ev RegistrationConfirmedEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishRegistrationConfirmed(context.Context, RegistrationConfirmedEvent) error { return nil }
