package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/observe"
	"github.com/MrWong99/crossing/internal/resilience"
)

// Category routes a notice to one of the configured webhooks.
type Category string

// Notice categories.
const (
	CategoryGeneral    Category = "general"
	CategoryActivity   Category = "activity"
	CategoryGovernance Category = "governance"
	CategoryWork       Category = "work"
)

// ErrNoWebhook is returned by [WebhookSender.Send] for a category without a
// configured webhook.
var ErrNoWebhook = errors.New("discord: no webhook for category")

// Notice is one outbound webhook message.
type Notice struct {
	Category  Category
	Content   string
	Username  string
	AvatarURL string
	Embeds    []*discordgo.MessageEmbed
}

// WebhookExecutor executes a webhook. [*discordgo.Session] satisfies it.
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord allows five executions per two seconds on one webhook.
const (
	webhookBurst    = 5
	webhookInterval = 400 * time.Millisecond
)

type webhookRoute struct {
	id, token string
	breaker   *resilience.CircuitBreaker

	// limiter is shared by every category posting to the same webhook.
	limiter *rate.Limiter
}

// WebhookSender posts notices to per-category webhooks. Each webhook has its
// own circuit breaker so a dead endpoint fails fast without affecting the
// others. It is safe for concurrent use.
type WebhookSender struct {
	exec    WebhookExecutor
	routes  map[Category]*webhookRoute
	timeout time.Duration
	metrics *observe.Metrics
}

// NewWebhookSender builds a sender from the webhook config. When staging is
// set every category routes to the staging webhook.
func NewWebhookSender(exec WebhookExecutor, hooks config.WebhookConfig, staging bool, timeout time.Duration, metrics *observe.Metrics) (*WebhookSender, error) {
	urls := map[Category]string{
		CategoryGeneral:    hooks.General,
		CategoryActivity:   hooks.Activity,
		CategoryGovernance: hooks.Governance,
		CategoryWork:       hooks.Work,
	}
	if staging {
		for c := range urls {
			urls[c] = hooks.Staging
		}
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	ws := &WebhookSender{
		exec:    exec,
		routes:  make(map[Category]*webhookRoute, len(urls)),
		timeout: timeout,
		metrics: metrics,
	}
	limiters := make(map[string]*rate.Limiter)
	for c, raw := range urls {
		if raw == "" {
			continue
		}
		id, token, err := config.ParseWebhookURL(raw)
		if err != nil {
			return nil, fmt.Errorf("discord: webhook %s: %w", c, err)
		}
		lim, ok := limiters[id]
		if !ok {
			lim = rate.NewLimiter(rate.Every(webhookInterval), webhookBurst)
			limiters[id] = lim
		}
		ws.routes[c] = &webhookRoute{
			id:      id,
			token:   token,
			limiter: lim,
			breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:      "webhook:" + string(c),
				IsFailure: isWebhookFailure,
			}),
		}
	}
	return ws, nil
}

// Has reports whether c has a configured webhook.
func (ws *WebhookSender) Has(c Category) bool {
	_, ok := ws.routes[c]
	return ok
}

// Send posts n to its category webhook. Mentions in the content never ping
// anyone.
func (ws *WebhookSender) Send(ctx context.Context, n Notice) error {
	route, ok := ws.routes[n.Category]
	if !ok {
		return fmt.Errorf("%w %q", ErrNoWebhook, n.Category)
	}
	params := &discordgo.WebhookParams{
		Content:         n.Content,
		Username:        n.Username,
		AvatarURL:       n.AvatarURL,
		Embeds:          n.Embeds,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}

	if err := route.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("discord: send %s notice: %w", n.Category, err)
	}

	start := time.Now()
	err := route.breaker.Execute(ctx, func(ctx context.Context) error {
		if ws.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, ws.timeout)
			defer cancel()
		}
		_, err := ws.exec.WebhookExecute(route.id, route.token, false, params, discordgo.WithContext(ctx))
		return err
	})
	ws.metrics.RecordSend(ctx, string(n.Category), time.Since(start))
	if err != nil {
		slog.Debug("discord: webhook send failed", "category", n.Category, "err", err)
		return fmt.Errorf("discord: send %s notice: %w", n.Category, err)
	}
	return nil
}

// isWebhookFailure counts transport errors, rate limits and 5xx responses.
// Other 4xx responses are rejected payloads.
func isWebhookFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		code := rest.Response.StatusCode
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}
	return true
}
