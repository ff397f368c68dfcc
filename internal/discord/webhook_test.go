package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/discord/mock"
	"github.com/MrWong99/crossing/internal/observe"
	"github.com/MrWong99/crossing/internal/resilience"
)

var testHooks = config.WebhookConfig{
	General:    "https://discord.com/api/webhooks/1/general-token",
	Activity:   "https://discord.com/api/webhooks/2/activity-token",
	Governance: "https://discord.com/api/webhooks/3/gov-token",
	Staging:    "https://discord.com/api/webhooks/9/staging-token",
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestWebhookSender_RoutesByCategory(t *testing.T) {
	t.Parallel()

	exec := &mock.WebhookExecutor{}
	ws, err := NewWebhookSender(exec, testHooks, false, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}

	embed := &discordgo.MessageEmbed{Description: "Plant trees"}
	err = ws.Send(context.Background(), Notice{
		Category:  CategoryGovernance,
		Content:   "**alice** has won the election for **Mayor**!",
		Username:  "ECO",
		AvatarURL: "https://example.com/eco.png",
		Embeds:    []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	calls := exec.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	c := calls[0]
	if c.ID != "3" || c.Token != "gov-token" {
		t.Errorf("webhook = %s/%s, want 3/gov-token", c.ID, c.Token)
	}
	if c.Params.Username != "ECO" || c.Params.AvatarURL != "https://example.com/eco.png" {
		t.Errorf("author = %q %q", c.Params.Username, c.Params.AvatarURL)
	}
	if len(c.Params.Embeds) != 1 || c.Params.Embeds[0] != embed {
		t.Errorf("embeds = %v", c.Params.Embeds)
	}
	if c.Params.AllowedMentions == nil || len(c.Params.AllowedMentions.Parse) != 0 {
		t.Errorf("AllowedMentions = %+v, want no parsed mentions", c.Params.AllowedMentions)
	}
}

func TestWebhookSender_Staging(t *testing.T) {
	t.Parallel()

	exec := &mock.WebhookExecutor{}
	ws, err := NewWebhookSender(exec, testHooks, true, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	for _, c := range []Category{CategoryGeneral, CategoryActivity, CategoryGovernance, CategoryWork} {
		if err := ws.Send(context.Background(), Notice{Category: c, Content: "x"}); err != nil {
			t.Fatalf("Send(%s): %v", c, err)
		}
	}
	for _, call := range exec.Calls() {
		if call.ID != "9" {
			t.Errorf("staging sent to webhook %s, want 9", call.ID)
		}
	}
}

func TestWebhookSender_SharesLimiterPerWebhook(t *testing.T) {
	t.Parallel()

	staged, err := NewWebhookSender(&mock.WebhookExecutor{}, testHooks, true, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	if staged.routes[CategoryGeneral].limiter != staged.routes[CategoryWork].limiter {
		t.Error("staging categories do not share the staging webhook limiter")
	}

	live, err := NewWebhookSender(&mock.WebhookExecutor{}, testHooks, false, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	if live.routes[CategoryGeneral].limiter == live.routes[CategoryActivity].limiter {
		t.Error("distinct webhooks share a limiter")
	}
}

func TestWebhookSender_LimiterHonoursContext(t *testing.T) {
	t.Parallel()

	exec := &mock.WebhookExecutor{}
	ws, err := NewWebhookSender(exec, testHooks, false, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ws.Send(ctx, Notice{Category: CategoryGeneral, Content: "x"}); err == nil {
		t.Error("Send succeeded with a cancelled context")
	}
	if n := len(exec.Calls()); n != 0 {
		t.Errorf("executed %d webhooks, want 0", n)
	}
}

func TestWebhookSender_MissingCategory(t *testing.T) {
	t.Parallel()

	exec := &mock.WebhookExecutor{}
	ws, err := NewWebhookSender(exec, testHooks, false, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	if ws.Has(CategoryWork) {
		t.Error("Has(work) = true without a work webhook")
	}
	err = ws.Send(context.Background(), Notice{Category: CategoryWork, Content: "x"})
	if !errors.Is(err, ErrNoWebhook) {
		t.Errorf("Send err = %v, want ErrNoWebhook", err)
	}
	if len(exec.Calls()) != 0 {
		t.Error("executor called for an unconfigured category")
	}
}

func TestWebhookSender_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookSender(&mock.WebhookExecutor{}, config.WebhookConfig{General: "https://example.com/nothing"}, false, 0, testMetrics(t))
	if err == nil {
		t.Fatal("NewWebhookSender accepted a url without /webhooks/{id}/{token}")
	}
}

func TestWebhookSender_BreakerOpensPerCategory(t *testing.T) {
	t.Parallel()

	exec := &mock.WebhookExecutor{ErrFn: func(c mock.WebhookCall) error {
		if c.ID == "1" {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}}
	ws, err := NewWebhookSender(exec, testHooks, false, time.Second, testMetrics(t))
	if err != nil {
		t.Fatalf("NewWebhookSender: %v", err)
	}
	ctx := context.Background()

	for range 5 {
		_ = ws.Send(ctx, Notice{Category: CategoryGeneral, Content: "x"})
	}
	err = ws.Send(ctx, Notice{Category: CategoryGeneral, Content: "x"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Send after failures = %v, want ErrCircuitOpen", err)
	}
	if got := len(exec.Calls()); got != 5 {
		t.Errorf("executor calls = %d, want 5", got)
	}
	if err := ws.Send(ctx, Notice{Category: CategoryActivity, Content: "x"}); err != nil {
		t.Errorf("activity Send = %v, want nil", err)
	}
}

func TestIsWebhookFailure(t *testing.T) {
	t.Parallel()

	restErr := func(code int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", errors.New("timeout"), true},
		{"server error", restErr(http.StatusBadGateway), true},
		{"rate limited", restErr(http.StatusTooManyRequests), true},
		{"bad request", restErr(http.StatusBadRequest), false},
		{"unknown webhook", restErr(http.StatusNotFound), false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := isWebhookFailure(tt.err); got != tt.want {
			t.Errorf("%s: isWebhookFailure = %v, want %v", tt.name, got, tt.want)
		}
	}
}
