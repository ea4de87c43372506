// Package archive persists raw remote payloads for later inspection.
package archive

import "context"

// Store writes one raw payload under a key and returns its URI.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// NoOp discards payloads. Used when archiving is disabled.
type NoOp struct{}

// Put for NoOp does nothing.
func (NoOp) Put(_ context.Context, _ string, _ []byte) (string, error) {
	return "", nil
}
