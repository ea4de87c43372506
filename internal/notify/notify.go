// Package notify publishes harvest run summaries to interested consumers.
package notify

import "context"

// Publisher pushes one run summary payload and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
	Close() error
}

// NoOp discards payloads. Used when notification is disabled.
type NoOp struct{}

// Publish for NoOp does nothing.
func (NoOp) Publish(_ context.Context, _ any) (string, error) { return "", nil }

// Close for NoOp does nothing.
func (NoOp) Close() error { return nil }
