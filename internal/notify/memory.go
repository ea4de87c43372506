package notify

import (
	"context"
	"fmt"
	"sync"
)

// Memory stores published payloads for inspection in tests.
type Memory struct {
	mu       sync.RWMutex
	payloads []any
}

// NewMemory returns a memory Publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the payload and returns a pseudo ID.
func (p *Memory) Publish(_ context.Context, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("memory-%d", len(p.payloads)), nil
}

// Close for Memory does nothing.
func (p *Memory) Close() error { return nil }

// Payloads returns the recorded publishes.
func (p *Memory) Payloads() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]any, len(p.payloads))
	copy(out, p.payloads)
	return out
}
