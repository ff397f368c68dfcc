// Package game defines what the bridge consumes from the game server: a user
// directory, a chat sink, a reputation sink, and the streams of world events
// and link requests.
//
// Concrete transports live in sub-packages: redisbus (Redis pub/sub),
// wsbus (the game plugin dials a websocket) and postgres (the directory).
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/crossing/pkg/world"
)

// ErrUserNotFound is returned by [Directory] lookups that match no account.
var ErrUserNotFound = errors.New("game: user not found")

// ErrNoListing is returned when a client has no contract or work party on
// record.
var ErrNoListing = errors.New("game: no listing found")

// ErrMalformed is returned by sinks for messages that cannot be delivered.
var ErrMalformed = errors.New("game: malformed message")

// User is a game account.
type User struct {
	StableID string
	Name     string

	// Link is the game's rich-text reference for the account. Empty means the
	// plain name is used.
	Link string
}

// Ref converts u into the event payload form.
func (u User) Ref() world.UserRef { return world.UserRef{StableID: u.StableID, Name: u.Name} }

// Category selects how the game displays a chat line.
type Category string

// Chat categories.
const (
	CategoryGeneral Category = "general"
	CategoryDirect  Category = "direct"
)

// ChatMessage is a line submitted into game chat. It is a value type and is
// never mutated after construction.
type ChatMessage struct {
	Sender     string   `json:"sender"`
	SenderLink string   `json:"sender_link"`
	Text       string   `json:"text"`
	Category   Category `json:"category"`
	Timestamp  int64    `json:"timestamp"`

	// Recipient is the stable id of the receiving player for direct
	// messages. Empty for general chat.
	Recipient string `json:"recipient,omitempty"`
}

// NewChatMessage builds a general-chat message from u at time at.
func NewChatMessage(u User, ref, text string, at time.Time) ChatMessage {
	return ChatMessage{
		Sender:     u.Name,
		SenderLink: ref,
		Text:       text,
		Category:   CategoryGeneral,
		Timestamp:  at.Unix(),
	}
}

// Validate reports whether the message can be submitted.
func (m ChatMessage) Validate() error {
	switch {
	case strings.TrimSpace(m.Sender) == "":
		return fmt.Errorf("%w: empty sender", ErrMalformed)
	case strings.TrimSpace(m.Text) == "":
		return fmt.Errorf("%w: empty text", ErrMalformed)
	case m.Category == CategoryDirect && m.Recipient == "":
		return fmt.Errorf("%w: direct message without recipient", ErrMalformed)
	}
	return nil
}

// ReputationGrant awards reputation from one player to another.
type ReputationGrant struct {
	Giver    string  `json:"giver"`
	Receiver string  `json:"receiver"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason,omitempty"`
}

// LinkRequest is sent by a player asking to link their account to a Discord
// user identified by name.
type LinkRequest struct {
	PlayerID    string `json:"player_id"`
	DiscordName string `json:"discord_name"`
}

// Listing is the latest contract or work party posted by a client.
type Listing struct {
	ID          string
	ClientID    string
	Description string
	CreatedAt   time.Time
}

// Directory resolves game accounts and listings. Implementations must be
// safe for concurrent use.
type Directory interface {
	// FindUserByStableID returns [ErrUserNotFound] when no account matches.
	FindUserByStableID(ctx context.Context, id string) (User, error)

	// FindUserByName matches the display name case-insensitively.
	FindUserByName(ctx context.Context, name string) (User, error)

	// Reference returns the rich-text reference rendered in game chat.
	Reference(u User) string

	// LatestContract returns the most recently created contract posted by
	// clientID, or [ErrNoListing].
	LatestContract(ctx context.Context, clientID string) (Listing, error)

	// LatestWorkParty returns the most recently created work party posted by
	// clientID, or [ErrNoListing].
	LatestWorkParty(ctx context.Context, clientID string) (Listing, error)
}

// UserRecorder stores accounts the bridge learns about from world events.
type UserRecorder interface {
	RecordUser(ctx context.Context, u User) error
}

// ChatSink accepts chat lines for the game.
type ChatSink interface {
	Submit(ctx context.Context, msg ChatMessage) error
}

// ReputationSink accepts reputation grants.
type ReputationSink interface {
	GrantReputation(ctx context.Context, g ReputationGrant) error
}

// EventSource delivers world events until ctx is cancelled, then closes the
// channel.
type EventSource interface {
	Events(ctx context.Context) (<-chan world.Event, error)
}

// LinkSource delivers link requests until ctx is cancelled.
type LinkSource interface {
	LinkRequests(ctx context.Context) (<-chan LinkRequest, error)
}

// Bus is the full transport surface a game connection provides.
type Bus interface {
	ChatSink
	ReputationSink
	EventSource
	LinkSource
	Ping(ctx context.Context) error
	Close() error
}

// DefaultReference renders the game's user link markup.
func DefaultReference(u User) string {
	if u.Link != "" {
		return u.Link
	}
	if u.StableID == "" {
		return u.Name
	}
	return fmt.Sprintf(`<link="User:%s">%s</link>`, u.StableID, u.Name)
}
