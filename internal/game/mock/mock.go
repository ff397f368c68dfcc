// Package mock provides test doubles for the game transport interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/pkg/world"
)

var _ game.Bus = (*Bus)(nil)

// Bus records submitted chat lines and reputation grants and serves events
// and link requests from channels the test controls.
type Bus struct {
	mu     sync.Mutex
	chat   []game.ChatMessage
	grants []game.ReputationGrant
	closed bool

	// SubmitErr and GrantErr are returned by the sinks when non-nil. The
	// call is still recorded.
	SubmitErr error
	GrantErr  error

	// PingErr is returned by Ping.
	PingErr error

	EventCh chan world.Event
	LinkCh  chan game.LinkRequest
}

// NewBus returns a Bus with buffered event and link channels.
func NewBus() *Bus {
	return &Bus{
		EventCh: make(chan world.Event, 16),
		LinkCh:  make(chan game.LinkRequest, 16),
	}
}

// Submit records msg after validating it like a real sink.
func (b *Bus) Submit(_ context.Context, msg game.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat = append(b.chat, msg)
	return b.SubmitErr
}

// GrantReputation records g.
func (b *Bus) GrantReputation(_ context.Context, g game.ReputationGrant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grants = append(b.grants, g)
	return b.GrantErr
}

// Events returns EventCh.
func (b *Bus) Events(context.Context) (<-chan world.Event, error) { return b.EventCh, nil }

// LinkRequests returns LinkCh.
func (b *Bus) LinkRequests(context.Context) (<-chan game.LinkRequest, error) { return b.LinkCh, nil }

// Ping returns PingErr.
func (b *Bus) Ping(context.Context) error { return b.PingErr }

// Close marks the bus closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Chat returns a copy of the submitted chat lines.
func (b *Bus) Chat() []game.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]game.ChatMessage(nil), b.chat...)
}

// Grants returns a copy of the recorded grants.
func (b *Bus) Grants() []game.ReputationGrant {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]game.ReputationGrant(nil), b.grants...)
}

// Closed reports whether Close was called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
