// Package app wires the Crossing subsystems into a running bridge.
//
// The App struct owns the full lifecycle: New loads the identity tables and
// connects the game directory and bus, Run executes every relay loop under
// one errgroup, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithBus,
// WithDirectory, WithBotOptions, ...). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/discord/commands"
	"github.com/MrWong99/crossing/internal/dispatch"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/game/postgres"
	"github.com/MrWong99/crossing/internal/health"
	"github.com/MrWong99/crossing/internal/identity"
	"github.com/MrWong99/crossing/internal/link"
	"github.com/MrWong99/crossing/internal/observe"
	"github.com/MrWong99/crossing/internal/relay"
)

// Directory is the game directory the bridge reads and feeds with accounts
// seen in events.
type Directory interface {
	game.Directory
	game.UserRecorder
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	identities *identity.Store
	dir        Directory
	bus        game.Bus
	bot        *discord.Bot
	botOpts    []discord.Option
	webhooks   discord.WebhookExecutor
	links      *link.Service
	inbound    *relay.Inbound
	dispatcher *dispatch.Dispatcher
	health     *health.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBus injects a game bus instead of creating one through the registry.
func WithBus(b game.Bus) Option {
	return func(a *App) { a.bus = b }
}

// WithDirectory injects a game directory instead of connecting to Postgres.
func WithDirectory(d Directory) Option {
	return func(a *App) { a.dir = d }
}

// WithBotOptions passes extra options to the Discord bot.
func WithBotOptions(opts ...discord.Option) Option {
	return func(a *App) { a.botOpts = append(a.botOpts, opts...) }
}

// WithWebhookExecutor replaces the discordgo session as webhook executor.
func WithWebhookExecutor(e discord.WebhookExecutor) Option {
	return func(a *App) { a.webhooks = e }
}

// WithMetrics sets the metrics instance. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The registry builds
// the game bus for cfg.Game.Transport unless one is injected.
//
// New fails when the identity tables are corrupt, when the directory or bus
// cannot be created, or when a webhook URL is invalid.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, registry: registry}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.health = health.New()

	if err := a.initIdentity(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init identity: %w", err)
	}
	if err := a.initDirectory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init directory: %w", err)
	}
	if err := a.initBus(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init game bus: %w", err)
	}
	if err := a.initDiscord(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init discord: %w", err)
	}
	if err := a.initRelays(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init relays: %w", err)
	}
	return a, nil
}

func (a *App) initIdentity() error {
	a.identities = identity.NewStore(a.cfg.Identity.Dir)
	if err := a.identities.Load(); err != nil {
		return err
	}
	slog.Info("app: identity tables loaded", "dir", a.cfg.Identity.Dir, "links", a.identities.Len())
	a.health.Add(health.Flag("identity", a.identities.Loaded, "identity tables not loaded"))
	return nil
}

// initDirectory connects the Postgres directory, or falls back to an
// in-memory one that learns users from events and links.
func (a *App) initDirectory(ctx context.Context) error {
	if a.dir != nil {
		return nil
	}
	dsn := a.cfg.Game.PostgresDSN
	if dsn == "" {
		mem := game.NewMemDirectory()
		// Linked players resolve before the game reports them.
		mem.SetKnown(func(id string) bool {
			_, ok := a.identities.LookupExternal(id)
			return ok
		})
		a.dir = mem
		return nil
	}
	pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	dir := postgres.New(pool)
	if err := dir.Migrate(ctx); err != nil {
		return err
	}
	a.dir = dir
	a.health.Add(health.Checker{Name: "postgres", Check: pool.Ping})
	return nil
}

func (a *App) initBus() error {
	if a.bus == nil {
		if a.registry == nil {
			return fmt.Errorf("no registry to create %q bus", a.cfg.Game.Transport)
		}
		bus, err := a.registry.CreateBus(a.cfg.Game)
		if err != nil {
			return err
		}
		a.bus = bus
	}
	a.closers = append(a.closers, a.bus.Close)
	a.health.Add(health.Checker{Name: string(a.cfg.Game.Transport), Check: a.bus.Ping})
	return nil
}

// initDiscord creates the bot, the link service behind /link and the slash
// commands.
func (a *App) initDiscord() error {
	router := discord.NewCommandRouter()
	bot, err := discord.New(a.cfg.Discord, append([]discord.Option{discord.WithRouter(router)}, a.botOpts...)...)
	if err != nil {
		return err
	}
	a.bot = bot
	a.health.Add(health.Flag("discord", bot.Ready, "discord gateway not ready"))

	a.links = link.New(bot, a.identities, a.dir, a.bus, a.cfg.Discord.BotName, a.metrics)

	perms := discord.NewPermissionChecker(a.cfg.Discord.AdminRoleID)
	commands.NewLinkCommand(perms, a.links).Register(router)
	commands.NewWhoisCommand(a.identities, a.dir).Register(router)
	return nil
}

func (a *App) initRelays() error {
	exec := a.webhooks
	if exec == nil {
		exec = a.bot.Session()
	}
	sender, err := discord.NewWebhookSender(exec, a.cfg.Webhooks, a.cfg.Discord.Staging, a.cfg.Relay.SendTimeout, a.metrics)
	if err != nil {
		return err
	}

	a.inbound = relay.New(
		relay.Config{
			SourceChannel: a.cfg.Discord.ActiveSourceChannel(),
			ThankWords:    a.cfg.Relay.ThankWords,
		},
		a.identities, a.dir, a.bus,
		relay.WithReputation(a.bus, a.bot),
		relay.WithMetrics(a.metrics),
	)

	a.dispatcher = dispatch.New(
		dispatch.Config{
			BotName:       a.cfg.Discord.BotName,
			AvatarURL:     a.cfg.Discord.AvatarURL,
			ChatAvatarURL: a.cfg.Discord.ChatAvatarURL,
			ChatTag:       a.cfg.Game.ChatTag,
			Concurrency:   a.cfg.Relay.DispatchConcurrency,
		},
		sender, a.bot, a.identities, a.dir,
		dispatch.WithRecorder(a.dir),
		dispatch.WithMetrics(a.metrics),
	)
	return nil
}

// Health returns the health handler with one checker per subsystem.
func (a *App) Health() *health.Handler { return a.health }

// Bus returns the game bus. The websocket transport also serves HTTP.
func (a *App) Bus() game.Bus { return a.bus }

// Bot returns the Discord bot.
func (a *App) Bot() *discord.Bot { return a.bot }

// ApplyDiff applies the hot-reloadable parts of a config change. The log
// level is owned by the binary.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.SourceChannelChanged {
		a.inbound.SetSourceChannel(d.NewSourceChannel)
		slog.Info("app: source channel changed", "channel", d.NewSourceChannel)
	}
	if d.ThankWordsChanged {
		a.inbound.SetThankWords(d.NewThankWords)
		slog.Info("app: thank words changed", "words", d.NewThankWords)
	}
}

// Run starts every relay loop and blocks until ctx is cancelled or one loop
// fails. A fatal Discord error (missing anchor channel or guild) ends Run
// with that error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	events, err := a.bus.Events(ctx)
	if err != nil {
		return fmt.Errorf("app: subscribe to world events: %w", err)
	}
	linkReqs, err := a.bus.LinkRequests(ctx)
	if err != nil {
		return fmt.Errorf("app: subscribe to link requests: %w", err)
	}

	g.Go(func() error { return a.bot.Run(ctx) })
	g.Go(func() error { return a.inbound.Run(ctx, a.bot.Messages()) })
	g.Go(func() error { return a.dispatcher.Run(ctx, events) })
	g.Go(func() error { return a.links.Run(ctx, linkReqs) })

	slog.Info("app: running", "transport", a.cfg.Game.Transport, "source_channel", a.cfg.Discord.ActiveSourceChannel())
	return g.Wait()
}

// Shutdown closes the Discord connection, then every other subsystem in
// init order. If ctx expires first, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		if a.bot != nil {
			if err := a.bot.Close(); err != nil {
				slog.Warn("app: discord close", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what a failed New already opened.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Debug("app: cleanup after failed init", "err", err)
		}
	}
}
