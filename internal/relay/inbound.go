// Package relay carries Discord chat into the game.
//
// [Inbound] consumes the bot's message channel. Each message is filtered
// (automated authors, source channel), resolved to the author's linked game
// account, has its mentions rewritten and is submitted to the game's chat
// sink. Messages that thank other linked members additionally award
// reputation.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/mention"
	"github.com/MrWong99/crossing/internal/observe"
)

// ThankEmoji is the reaction added to a message whose thanks awarded
// reputation.
const ThankEmoji = "🏅"

// thankReason is attached to every grant the relay sends.
const thankReason = "Thanked on Discord"

// Links resolves Discord users to linked game accounts.
type Links interface {
	LookupInternal(discordID string) (string, bool)
}

// Users resolves game accounts and renders chat references.
type Users interface {
	FindUserByStableID(ctx context.Context, id string) (game.User, error)
	Reference(u game.User) string
}

// Reactor adds reactions to Discord messages.
type Reactor interface {
	React(ctx context.Context, channelID, messageID, emoji string) error
}

// Config holds the hot-reloadable relay settings.
type Config struct {
	// SourceChannel is the channel name relayed into the game. Empty relays
	// nothing.
	SourceChannel string

	// ThankWords trigger reputation grants.
	ThankWords []string
}

// Option configures an [Inbound].
type Option func(*Inbound)

// WithReputation enables thank reputation: grants go to sink and rewarded
// messages get a reaction through reactor.
func WithReputation(sink game.ReputationSink, reactor Reactor) Option {
	return func(in *Inbound) {
		in.reputation = sink
		in.reactor = reactor
	}
}

// WithMetrics sets the metrics instance. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(in *Inbound) { in.metrics = m }
}

// Inbound relays Discord messages into game chat. It is safe for concurrent
// use.
type Inbound struct {
	links      Links
	users      Users
	rewriter   *mention.Rewriter
	chat       game.ChatSink
	reputation game.ReputationSink
	reactor    Reactor
	metrics    *observe.Metrics

	mu     sync.RWMutex
	source string
	thanks *thankMatcher
}

// New returns an Inbound relay submitting to chat.
func New(cfg Config, links Links, users Users, chat game.ChatSink, opts ...Option) *Inbound {
	in := &Inbound{
		links:    links,
		users:    users,
		rewriter: mention.New(links, users),
		chat:     chat,
		source:   cfg.SourceChannel,
		thanks:   newThankMatcher(cfg.ThankWords),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.metrics == nil {
		in.metrics = observe.DefaultMetrics()
	}
	return in
}

// SetSourceChannel replaces the relayed channel name.
func (in *Inbound) SetSourceChannel(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.source = name
}

// SetThankWords replaces the thank words.
func (in *Inbound) SetThankWords(words []string) {
	m := newThankMatcher(words)
	in.mu.Lock()
	defer in.mu.Unlock()
	in.thanks = m
}

func (in *Inbound) settings() (string, *thankMatcher) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.source, in.thanks
}

// Run handles every message from msgs on its own goroutine until ctx is
// cancelled or msgs is closed, then waits for in-flight messages.
func (in *Inbound) Run(ctx context.Context, msgs <-chan discord.Message) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			wg.Go(func() { in.Handle(ctx, msg) })
		}
	}
}

// Handle relays one message and returns the outcome recorded in metrics.
func (in *Inbound) Handle(ctx context.Context, msg discord.Message) string {
	ctx, span := observe.StartSpan(ctx, "relay.inbound",
		trace.WithAttributes(
			attribute.String("discord.message_id", msg.ID),
			attribute.String("discord.channel", msg.ChannelName),
		),
	)
	defer span.End()

	outcome := in.handle(ctx, span, msg)
	span.SetAttributes(attribute.String("outcome", outcome))
	in.metrics.RecordInbound(ctx, outcome)
	return outcome
}

func (in *Inbound) handle(ctx context.Context, span trace.Span, msg discord.Message) string {
	log := observe.Logger(ctx, "message_id", msg.ID, "author", msg.AuthorID)

	if msg.Automated {
		return observe.OutcomeAutomated
	}

	source, thanks := in.settings()
	in.rewardThanks(ctx, msg, thanks)

	if source == "" || msg.ChannelName != source {
		return observe.OutcomeChannel
	}

	gameID, ok := in.links.LookupInternal(msg.AuthorID)
	if !ok {
		log.Debug("relay: author not linked", "name", msg.AuthorName)
		return observe.OutcomeUnlinked
	}
	user, err := in.users.FindUserByStableID(ctx, gameID)
	if err != nil {
		log.Info("relay: linked game account not found", "game_id", gameID, "err", err)
		return observe.OutcomeUnlinked
	}

	text := in.rewriter.Rewrite(ctx, msg.Content, mention.Mentions{
		Users:    msg.Mentions.Users,
		Roles:    msg.Mentions.Roles,
		Channels: msg.Mentions.Channels,
	})
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	chat := game.NewChatMessage(user, in.users.Reference(user), text, at)

	if err := in.chat.Submit(ctx, chat); err != nil {
		if errors.Is(err, game.ErrMalformed) {
			log.Debug("relay: dropping message", "err", err)
			return observe.OutcomeDropped
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("relay: submit to game failed", "err", err)
		return observe.OutcomeFailed
	}
	return observe.OutcomeForwarded
}

// rewardThanks grants reputation from a linked author to every other linked
// user the message mentions, when it contains a thank word. The message
// gets [ThankEmoji] if any grant went through.
func (in *Inbound) rewardThanks(ctx context.Context, msg discord.Message, thanks *thankMatcher) {
	if in.reputation == nil || len(msg.Mentions.Users) == 0 || !thanks.Match(msg.Content) {
		return
	}
	giver, ok := in.links.LookupInternal(msg.AuthorID)
	if !ok {
		return
	}

	granted := false
	for discordID := range msg.Mentions.Users {
		if discordID == msg.AuthorID {
			continue
		}
		receiver, ok := in.links.LookupInternal(discordID)
		if !ok || receiver == giver {
			continue
		}
		g := game.ReputationGrant{Giver: giver, Receiver: receiver, Amount: 1, Reason: thankReason}
		if err := in.reputation.GrantReputation(ctx, g); err != nil {
			slog.Warn("relay: reputation grant failed", "giver", giver, "receiver", receiver, "err", err)
			in.metrics.RecordReputation(ctx, observe.OutcomeFailed)
			continue
		}
		in.metrics.RecordReputation(ctx, observe.OutcomeSent)
		granted = true
	}

	if granted && in.reactor != nil {
		if err := in.reactor.React(ctx, msg.ChannelID, msg.ID, ThankEmoji); err != nil {
			slog.Debug("relay: react failed", "message_id", msg.ID, "err", err)
		}
	}
}
