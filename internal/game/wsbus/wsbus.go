// Package wsbus implements [game.Bus] over a websocket the game plugin dials
// into. Both directions exchange JSON frames of the form
// {"type": ..., "data": ...}:
//
//   - game → bridge: "event" (a world event envelope) and "link" (a link
//     request);
//   - bridge → game: "chat" (a chat message) and "reputation" (a grant).
//
// One plugin connection is served at a time; a new connection replaces the
// previous one.
package wsbus

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/pkg/world"
)

// Path is where the bus is mounted by the HTTP server.
const Path = "/game/ws"

// Frame types.
const (
	FrameEvent      = "event"
	FrameLink       = "link"
	FrameChat       = "chat"
	FrameReputation = "reputation"
)

// streamBuffer is the capacity of the inbound event and link queues.
const streamBuffer = 64

// ErrNotConnected is returned when no game plugin is connected.
var ErrNotConnected = errors.New("wsbus: game not connected")

// ErrClosed is returned after [Bus.Close].
var ErrClosed = errors.New("wsbus: closed")

// Frame is one websocket message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var (
	_ game.Bus     = (*Bus)(nil)
	_ http.Handler = (*Bus)(nil)
)

// Bus accepts the game plugin connection and relays frames.
type Bus struct {
	token string

	events chan world.Event
	links  chan game.LinkRequest

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New returns a Bus. A non-empty token must be presented as a bearer token.
func New(token string) *Bus {
	return &Bus{
		token:  token,
		events: make(chan world.Event, streamBuffer),
		links:  make(chan game.LinkRequest, streamBuffer),
	}
}

// Connected reports whether a game plugin is attached.
func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// ServeHTTP upgrades the request and reads frames until the connection
// ends.
func (b *Bus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("wsbus: accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	b.attach(conn)
	defer b.detach(conn)
	slog.Info("wsbus: game connected", "remote", r.RemoteAddr)

	ctx := r.Context()
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				slog.Info("wsbus: game disconnected", "remote", r.RemoteAddr)
			} else {
				slog.Warn("wsbus: read failed", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		if err := b.dispatch(ctx, f); err != nil {
			slog.Warn("wsbus: dropping frame", "type", f.Type, "err", err)
		}
	}
}

func (b *Bus) authorized(r *http.Request) bool {
	if b.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(b.token)) == 1
}

func (b *Bus) dispatch(ctx context.Context, f Frame) error {
	switch f.Type {
	case FrameEvent:
		var env world.Envelope
		if err := json.Unmarshal(f.Data, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		ev, err := world.Decode(env)
		if err != nil {
			return err
		}
		select {
		case b.events <- ev:
		case <-ctx.Done():
		}
	case FrameLink:
		var lr game.LinkRequest
		if err := json.Unmarshal(f.Data, &lr); err != nil {
			return fmt.Errorf("decode link request: %w", err)
		}
		if lr.PlayerID == "" || strings.TrimSpace(lr.DiscordName) == "" {
			return errors.New("link request without player_id or discord_name")
		}
		select {
		case b.links <- lr:
		case <-ctx.Done():
		}
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

func (b *Bus) attach(conn *websocket.Conn) {
	b.mu.Lock()
	prev := b.conn
	b.conn = conn
	b.mu.Unlock()
	if prev != nil {
		_ = prev.Close(websocket.StatusPolicyViolation, "replaced by a new connection")
	}
}

func (b *Bus) detach(conn *websocket.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
	_ = conn.CloseNow()
}

func (b *Bus) current() (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.conn == nil {
		return nil, ErrNotConnected
	}
	return b.conn, nil
}

func (b *Bus) send(ctx context.Context, typ string, v any) error {
	conn, err := b.current()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsbus: encode %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, Frame{Type: typ, Data: data}); err != nil {
		return fmt.Errorf("wsbus: write %s: %w", typ, err)
	}
	return nil
}

// Submit sends a chat frame to the game.
func (b *Bus) Submit(ctx context.Context, msg game.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return b.send(ctx, FrameChat, msg)
}

// GrantReputation sends a reputation frame to the game.
func (b *Bus) GrantReputation(ctx context.Context, g game.ReputationGrant) error {
	if strings.TrimSpace(g.Giver) == "" || strings.TrimSpace(g.Receiver) == "" {
		return fmt.Errorf("%w: grant without giver or receiver", game.ErrMalformed)
	}
	return b.send(ctx, FrameReputation, g)
}

// Events returns the stream of world events. It closes when ctx is
// cancelled.
func (b *Bus) Events(ctx context.Context) (<-chan world.Event, error) {
	return forward(ctx, b.events), nil
}

// LinkRequests returns the stream of link requests.
func (b *Bus) LinkRequests(ctx context.Context) (<-chan game.LinkRequest, error) {
	return forward(ctx, b.links), nil
}

// Ping reports [ErrNotConnected] while no plugin is attached.
func (b *Bus) Ping(ctx context.Context) error {
	conn, err := b.current()
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("wsbus: ping: %w", err)
	}
	return nil
}

// Close disconnects the plugin and refuses new connections.
func (b *Bus) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.closed = true
	b.mu.Unlock()
	if conn != nil {
		return conn.Close(websocket.StatusGoingAway, "bridge shutting down")
	}
	return nil
}

func forward[T any](ctx context.Context, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-in:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
