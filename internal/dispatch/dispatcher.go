// Package dispatch renders game world events as Discord notices.
//
// [Dispatcher] implements [world.Handler]: every event kind has a method, so
// a new kind does not compile until it has been given a template. Notices
// are routed to one webhook per [discord.Category].
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/observe"
	"github.com/MrWong99/crossing/pkg/world"
)

// Sender posts a notice.
type Sender interface {
	Send(ctx context.Context, n discord.Notice) error
}

// Members resolves guild members and reports whether the bot is ready.
type Members interface {
	Ready() bool
	Member(ctx context.Context, userID string) (*discordgo.Member, error)
}

// Identities maps game accounts to linked Discord users.
type Identities interface {
	LookupExternal(gameID string) (string, bool)
}

// Directory is the part of [game.Directory] the dispatcher reads.
type Directory interface {
	FindUserByName(ctx context.Context, name string) (game.User, error)
	LatestContract(ctx context.Context, clientID string) (game.Listing, error)
	LatestWorkParty(ctx context.Context, clientID string) (game.Listing, error)
}

// Config holds presentation settings.
type Config struct {
	// BotName and AvatarURL author every world notice.
	BotName   string
	AvatarURL string

	// ChatAvatarURL is the avatar on relayed game chat lines.
	ChatAvatarURL string

	// ChatTag is the in-game chat tag relayed to Discord.
	ChatTag string

	// Concurrency bounds notices being sent at once. Events always begin
	// handling when received; only their sends wait for a slot.
	Concurrency int
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithRecorder stores every account seen in an event through r, so the
// directory learns names and ids the game reports.
func WithRecorder(r game.UserRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithMetrics sets the metrics instance. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher turns world events into notices. It is safe for concurrent use.
type Dispatcher struct {
	cfg        Config
	sender     Sender
	members    Members
	identities Identities
	dir        Directory
	recorder   game.UserRecorder
	metrics    *observe.Metrics
	sends      *semaphore.Weighted
}

var _ world.Handler = (*Dispatcher)(nil)

// New returns a Dispatcher posting through sender.
func New(cfg Config, sender Sender, members Members, identities Identities, dir Directory, opts ...Option) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	d := &Dispatcher{
		cfg:        cfg,
		sender:     sender,
		members:    members,
		identities: identities,
		dir:        dir,
		sends:      semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Run handles every event from events on its own goroutine until ctx is
// cancelled or events is closed, then waits for in-flight events. Receiving
// never waits on a slow send; at most Config.Concurrency sends run at once.
func (d *Dispatcher) Run(ctx context.Context, events <-chan world.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			wg.Go(func() { d.Handle(ctx, ev) })
		}
	}
}

// Handle renders and sends one event. Failures are logged and counted.
func (d *Dispatcher) Handle(ctx context.Context, ev world.Event) {
	kind := string(ev.Kind())
	ctx, span := observe.StartSpan(ctx, "dispatch.event",
		trace.WithAttributes(attribute.String("world.kind", kind)),
	)
	defer span.End()

	d.record(ctx, ev)

	if !d.members.Ready() {
		d.metrics.RecordOutbound(ctx, kind, observe.OutcomeNotReady)
		return
	}

	d.metrics.InFlightEvents.Add(ctx, 1)
	defer d.metrics.InFlightEvents.Add(ctx, -1)

	if err := ev.Accept(ctx, d); err != nil {
		span.RecordError(err)
		observe.Logger(ctx).Warn("dispatch: handle event", "kind", kind, "err", err)
	}
}

// record stores the accounts an event names.
func (d *Dispatcher) record(ctx context.Context, ev world.Event) {
	if d.recorder == nil {
		return
	}
	refs := []*world.UserRef{ev.Actor()}
	switch e := ev.(type) {
	case world.ContractPosted:
		refs = append(refs, e.Client)
	case world.WorkPartyPosted:
		refs = append(refs, e.Client)
	}
	for _, ref := range refs {
		if ref == nil || ref.StableID == "" || ref.Name == "" {
			continue
		}
		u := game.User{StableID: ref.StableID, Name: ref.Name}
		if err := d.recorder.RecordUser(ctx, u); err != nil {
			slog.Debug("dispatch: record user", "stable_id", ref.StableID, "err", err)
		}
	}
}

// notice builds a world notice authored by the configured bot.
func (d *Dispatcher) notice(c discord.Category, content string, embeds ...*discordgo.MessageEmbed) discord.Notice {
	return discord.Notice{
		Category:  c,
		Content:   content,
		Username:  d.cfg.BotName,
		AvatarURL: d.cfg.AvatarURL,
		Embeds:    embeds,
	}
}

// send posts n and records the outcome under kind. Errors are swallowed so
// the caller moves on to the next event.
func (d *Dispatcher) send(ctx context.Context, kind world.Kind, n discord.Notice) error {
	if err := d.sends.Acquire(ctx, 1); err != nil {
		d.metrics.RecordOutbound(ctx, string(kind), observe.OutcomeFailed)
		observe.Logger(ctx).Debug("dispatch: send abandoned", "kind", kind, "err", err)
		return nil
	}
	defer d.sends.Release(1)

	if err := d.sender.Send(ctx, n); err != nil {
		d.metrics.RecordOutbound(ctx, string(kind), observe.OutcomeFailed)
		level := slog.LevelWarn
		if errors.Is(err, discord.ErrNoWebhook) {
			level = slog.LevelDebug
		}
		observe.Logger(ctx).Log(ctx, level, "dispatch: send failed", "kind", kind, "category", n.Category, "err", err)
		return nil
	}
	d.metrics.RecordOutbound(ctx, string(kind), observe.OutcomeSent)
	return nil
}

// drop records a deliberately skipped event.
func (d *Dispatcher) drop(ctx context.Context, kind world.Kind, reason string) error {
	d.metrics.RecordOutbound(ctx, string(kind), observe.OutcomeDropped)
	slog.Debug("dispatch: dropping event", "kind", kind, "reason", reason)
	return nil
}

// displayName prefers the guild display name of the linked Discord member
// and falls back to the game name.
func (d *Dispatcher) displayName(ctx context.Context, ref *world.UserRef) string {
	if ref == nil {
		return ""
	}
	if m := d.linkedMember(ctx, ref.StableID); m != nil {
		return m.DisplayName()
	}
	return ref.Name
}

func (d *Dispatcher) linkedMember(ctx context.Context, stableID string) *discordgo.Member {
	if stableID == "" {
		return nil
	}
	discordID, ok := d.identities.LookupExternal(stableID)
	if !ok {
		return nil
	}
	m, err := d.members.Member(ctx, discordID)
	if err != nil || m == nil || m.User == nil {
		return nil
	}
	return m
}

// ownerName resolves a property owner reported by display name.
func (d *Dispatcher) ownerName(ctx context.Context, name string) string {
	u, err := d.dir.FindUserByName(ctx, name)
	if err != nil {
		return name
	}
	ref := u.Ref()
	return d.displayName(ctx, &ref)
}

// author renders an embed author for ref with the linked member's avatar.
func (d *Dispatcher) author(ctx context.Context, ref *world.UserRef) *discordgo.MessageEmbedAuthor {
	a := &discordgo.MessageEmbedAuthor{Name: ref.Name}
	if m := d.linkedMember(ctx, ref.StableID); m != nil {
		a.Name = m.DisplayName()
		a.IconURL = m.AvatarURL("")
	}
	return a
}

var tagPattern = regexp.MustCompile(`<[^<>]*>`)

// StripTags removes the game's rich-text markup from s.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// formatAmount renders a currency or labor amount without trailing zeros.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
