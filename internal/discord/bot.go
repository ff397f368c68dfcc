// Package discord owns the bridge's Discord connection: the gateway session
// lifecycle, the typed stream of guild messages, member lookups, webhook
// delivery and slash command routing.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/config"
)

// ConnectedNotice is posted to the anchor channel the first time the bot
// becomes ready.
const ConnectedNotice = "Crossing connected."

// messageBuffer is the capacity of the [Bot.Messages] channel.
const messageBuffer = 256

// readyTimeout bounds the REST lookups made when the gateway reports ready.
const readyTimeout = 15 * time.Second

// State is the connection lifecycle state of a [Bot].
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedIn
	StateReady
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLoggedIn:
		return "logged_in"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrAlreadyStarted is returned by [Bot.Start] when the bot is not
// disconnected.
var ErrAlreadyStarted = errors.New("discord: bot already started")

// Option configures a [Bot].
type Option func(*Bot)

// WithOpener replaces the gateway open call.
func WithOpener(open func() error) Option {
	return func(b *Bot) { b.open = open }
}

// WithNotifier replaces how the connected notice is posted.
func WithNotifier(notify func(ctx context.Context, channelID, content string) error) Option {
	return func(b *Bot) { b.notify = notify }
}

// WithRouter sets the slash command router. Commands registered on it are
// published to the guild once the bot is ready.
func WithRouter(r *CommandRouter) Option {
	return func(b *Bot) { b.router = r }
}

// Bot owns the Discord gateway connection. Gateway callbacks only convert
// and enqueue; consumers read [Bot.Messages] and [Bot.Fatal].
type Bot struct {
	session *discordgo.Session
	router  *CommandRouter
	cfg     config.DiscordConfig

	open   func() error
	notify func(ctx context.Context, channelID, content string) error

	// rest allows falling back to REST lookups when state misses.
	rest bool

	state      atomic.Int32
	notifyOnce sync.Once
	fatal      chan error
	fatalOnce  sync.Once

	mu        sync.RWMutex
	msgs      chan Message
	closed    bool
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot for the guild in cfg. The gateway is not opened until
// [Bot.Start].
func New(cfg config.DiscordConfig, opts ...Option) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.StateEnabled = true
	session.State.TrackMembers = true
	session.LogLevel = discordgo.LogWarning
	discordgo.Logger = bridgeLogger

	b := &Bot{
		session: session,
		router:  NewCommandRouter(),
		cfg:     cfg,
		open:    session.Open,
		rest:    true,
		fatal:   make(chan error, 1),
		msgs:    make(chan Message, messageBuffer),
	}
	b.notify = func(ctx context.Context, channelID, content string) error {
		_, err := session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		return err
	}
	for _, o := range opts {
		o(b)
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	return b, nil
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session { return b.session }

// GuildID returns the served guild.
func (b *Bot) GuildID() string { return b.cfg.GuildID }

// State returns the current lifecycle state.
func (b *Bot) State() State { return State(b.state.Load()) }

// Ready reports whether the gateway is ready and the anchor resolved.
func (b *Bot) Ready() bool { return b.State() == StateReady }

// Messages returns the stream of guild messages. It is closed by
// [Bot.Close].
func (b *Bot) Messages() <-chan Message { return b.msgs }

// Fatal delivers at most one error that should stop the process, such as
// an unresolvable anchor channel.
func (b *Bot) Fatal() <-chan error { return b.fatal }

// Start opens the gateway. A failed login returns the bot to
// [StateDisconnected] and the error is returned; the caller may keep running
// without Discord.
func (b *Bot) Start(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		b.state.Store(int32(StateDisconnected))
		return err
	}
	if err := b.open(); err != nil {
		b.state.Store(int32(StateDisconnected))
		slog.Error("discord: login failed", "err", err)
		return fmt.Errorf("discord: open session: %w", err)
	}
	// Ready may already have arrived.
	b.state.CompareAndSwap(int32(StateConnecting), int32(StateLoggedIn))
	slog.Info("discord: logged in", "guild", b.cfg.GuildID)
	return nil
}

// Run starts the bot and blocks until ctx is cancelled or a fatal error is
// published. A failed login is logged and Run keeps waiting, leaving the
// bridge degraded.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Token == "" {
		slog.Warn("discord: no token configured; running without Discord")
	} else if err := b.Start(ctx); err != nil {
		slog.Warn("discord: running without Discord", "err", err)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-b.fatal:
		return err
	}
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Debug("discord: gateway ready", "session_id", r.SessionID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
		defer cancel()
		b.becomeReady(ctx)
	}()
}

// becomeReady resolves the guild and anchor channel, then enters
// [StateReady] and posts the connected notice once per process.
func (b *Bot) becomeReady(ctx context.Context) {
	guild, err := b.guild(ctx)
	if err != nil {
		b.fail(fmt.Errorf("discord: resolve guild %q: %w", b.cfg.GuildID, err))
		return
	}
	anchor, err := b.channel(ctx, b.cfg.AnchorChannelID)
	if err != nil {
		b.fail(fmt.Errorf("discord: resolve anchor channel %q: %w", b.cfg.AnchorChannelID, err))
		return
	}

	b.state.Store(int32(StateReady))
	slog.Info("discord: ready", "guild", guild.Name, "anchor", anchor.Name)

	b.registerCommands(ctx)

	b.notifyOnce.Do(func() {
		if err := b.notify(ctx, anchor.ID, ConnectedNotice); err != nil {
			slog.Warn("discord: failed to post connected notice", "channel", anchor.ID, "err", err)
		}
	})
}

func (b *Bot) fail(err error) {
	b.state.Store(int32(StateDisconnected))
	slog.Error("discord: fatal", "err", err)
	b.fatalOnce.Do(func() { b.fatal <- err })
}

func (b *Bot) guild(ctx context.Context) (*discordgo.Guild, error) {
	if g, err := b.session.State.Guild(b.cfg.GuildID); err == nil {
		return g, nil
	}
	if !b.rest {
		return nil, discordgo.ErrStateNotFound
	}
	return b.session.Guild(b.cfg.GuildID, discordgo.WithContext(ctx))
}

func (b *Bot) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if id == "" {
		return nil, errors.New("no channel configured")
	}
	if ch, err := b.session.State.Channel(id); err == nil {
		return ch, nil
	}
	if !b.rest {
		return nil, discordgo.ErrStateNotFound
	}
	return b.session.Channel(id, discordgo.WithContext(ctx))
}

func (b *Bot) registerCommands(ctx context.Context) {
	cmds := b.router.ApplicationCommands()
	if len(cmds) == 0 {
		return
	}
	user := b.session.State.User
	if user == nil {
		slog.Warn("discord: cannot register commands without an application user")
		return
	}
	registered, err := b.session.ApplicationCommandBulkOverwrite(user.ID, b.cfg.GuildID, cmds, discordgo.WithContext(ctx))
	if err != nil {
		slog.Warn("discord: register commands", "err", err)
		return
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord: commands registered", "count", len(registered))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || (b.cfg.GuildID != "" && m.GuildID != b.cfg.GuildID) {
		return
	}
	b.enqueue(convertMessage(s.State, m.Message))
}

// enqueue hands msg to the consumer without blocking the gateway. A full
// buffer drops the message.
func (b *Bot) enqueue(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.msgs <- msg:
	default:
		slog.Warn("discord: message buffer full, dropping", "message_id", msg.ID, "channel", msg.ChannelName)
	}
}

// Close unregisters commands, disconnects and closes [Bot.Messages].
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if user := b.session.State.User; user != nil {
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(user.ID, b.cfg.GuildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.State() != StateDisconnected {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		b.state.Store(int32(StateDisconnected))

		b.closed = true
		close(b.msgs)
		slog.Info("discord: bot closed")
	})
	return closeErr
}
