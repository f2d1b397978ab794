package transport

import (
	"context"
	"sync"
)

// MemTransport is an in-process Transport fake for tests: sent messages
// are appended to a buffered queue instead of leaving the process,
// grounded on the retrieved pack's local, non-networked net.Provider
// (shaimo-keep-core's pkg/net/local) — a mutex-guarded in-memory stand-in
// for a real wire transport, used the same way there for protocol tests.
type MemTransport struct {
	mu   sync.Mutex
	sent []OutboundMessage
	fail error // when set, Send always returns this error
}

// NewMem returns an empty MemTransport.
func NewMem() *MemTransport {
	return &MemTransport{}
}

func (t *MemTransport) Send(ctx context.Context, msg OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail != nil {
		return t.fail
	}
	t.sent = append(t.sent, msg)
	return nil
}

// Sent returns a snapshot copy of every message handed to Send so far.
func (t *MemTransport) Sent() []OutboundMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OutboundMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// FailWith makes every subsequent Send return err, for exercising
// per-recipient fan-out failure handling.
func (t *MemTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = err
}

// Reset clears the sent queue and any configured failure.
func (t *MemTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.fail = nil
}
