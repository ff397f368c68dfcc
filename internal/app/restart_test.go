package app

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/discord/mock"
	gamemock "github.com/MrWong99/crossing/internal/game/mock"
	"github.com/MrWong99/crossing/internal/identity"
	"github.com/MrWong99/crossing/internal/observe"
)

func TestNew_LinkedUserRelaysAfterRestartWithoutDatabase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prev := identity.NewStore(dir)
	if err := prev.Load(); err != nil {
		t.Fatal(err)
	}
	if err := prev.Link(context.Background(), "u1", "p1"); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Identity: config.IdentityConfig{Dir: dir},
		Discord:  config.DiscordConfig{SourceChannel: "general"},
	}
	config.ApplyDefaults(cfg)
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	bus := gamemock.NewBus()
	a, err := New(context.Background(), cfg, nil,
		WithBus(bus),
		WithWebhookExecutor(&mock.WebhookExecutor{}),
		WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := discord.Message{ID: "m1", ChannelName: "general", AuthorID: "u1", Content: "back again"}
	if got := a.inbound.Handle(context.Background(), msg); got != observe.OutcomeForwarded {
		t.Fatalf("outcome = %q, want %q", got, observe.OutcomeForwarded)
	}
	if chat := bus.Chat(); len(chat) != 1 || chat[0].Text != "back again" {
		t.Errorf("chat = %+v", chat)
	}
}
