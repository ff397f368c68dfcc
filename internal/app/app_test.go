package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/crossing/internal/app"
	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/discord/mock"
	"github.com/MrWong99/crossing/internal/game"
	gamemock "github.com/MrWong99/crossing/internal/game/mock"
	"github.com/MrWong99/crossing/internal/identity"
	"github.com/MrWong99/crossing/internal/link"
	"github.com/MrWong99/crossing/internal/observe"
)

// testConfig returns a minimal config without a Discord token.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Identity: config.IdentityConfig{Dir: t.TempDir()},
		Discord: config.DiscordConfig{
			SourceChannel: "bridge",
		},
		Game: config.GameConfig{Transport: config.TransportRedis},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newApp(t *testing.T, cfg *config.Config, bus *gamemock.Bus) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, nil,
		app.WithBus(bus),
		app.WithDirectory(game.NewMemDirectory(game.User{StableID: "p1", Name: "Alicia"})),
		app.WithWebhookExecutor(&mock.WebhookExecutor{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return a
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t), gamemock.NewBus())
	if a.Bot() == nil {
		t.Fatal("Bot() is nil")
	}
	if a.Bot().Ready() {
		t.Error("bot ready before start")
	}

	rec := httptest.NewRecorder()
	a.Health().Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want %d while discord is not ready", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestNew_CorruptIdentity(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Identity.Dir, "discord_to_game.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	bus := gamemock.NewBus()
	_, err := app.New(context.Background(), cfg, nil, app.WithBus(bus), app.WithMetrics(testMetrics(t)))
	if !errors.Is(err, identity.ErrCorrupt) {
		t.Fatalf("New() err = %v, want ErrCorrupt", err)
	}
}

func TestNew_BusFromRegistry(t *testing.T) {
	t.Parallel()

	bus := gamemock.NewBus()
	reg := config.NewRegistry()
	reg.RegisterBus(config.TransportRedis, func(config.GameConfig) (game.Bus, error) { return bus, nil })

	a, err := app.New(context.Background(), testConfig(t), reg,
		app.WithDirectory(game.NewMemDirectory()),
		app.WithWebhookExecutor(&mock.WebhookExecutor{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if a.Bus() != bus {
		t.Error("Bus() is not the registered bus")
	}
}

func TestNew_UnregisteredTransport(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), testConfig(t), config.NewRegistry(),
		app.WithDirectory(game.NewMemDirectory()),
		app.WithMetrics(testMetrics(t)),
	)
	if !errors.Is(err, config.ErrTransportNotRegistered) {
		t.Fatalf("New() err = %v, want ErrTransportNotRegistered", err)
	}
}

func TestNew_InvalidWebhook(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Webhooks.General = "https://example.com/not-a-webhook"
	bus := gamemock.NewBus()
	_, err := app.New(context.Background(), cfg, nil,
		app.WithBus(bus),
		app.WithDirectory(game.NewMemDirectory()),
		app.WithWebhookExecutor(&mock.WebhookExecutor{}),
		app.WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("New() succeeded with an invalid webhook url")
	}
	if !bus.Closed() {
		t.Error("bus not closed after failed init")
	}
}

func TestRun_GameLinkRequestRepliesNotReady(t *testing.T) {
	t.Parallel()

	bus := gamemock.NewBus()
	a := newApp(t, testConfig(t), bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	bus.LinkCh <- game.LinkRequest{PlayerID: "p1", DiscordName: "alice"}

	deadline := time.After(2 * time.Second)
	for {
		chat := bus.Chat()
		if len(chat) == 1 {
			if chat[0].Text != link.ReplyNotReady || chat[0].Recipient != "p1" {
				t.Errorf("reply = %+v", chat[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reply to link request")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdown_ClosesBus(t *testing.T) {
	t.Parallel()

	bus := gamemock.NewBus()
	a := newApp(t, testConfig(t), bus)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if !bus.Closed() {
		t.Error("bus not closed")
	}
	// Second call is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestShutdown_ExpiredContext(t *testing.T) {
	t.Parallel()

	bus := gamemock.NewBus()
	a := newApp(t, testConfig(t), bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() = %v, want context.Canceled", err)
	}
}
