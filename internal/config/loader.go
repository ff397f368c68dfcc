package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc matches the signature of [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// Environment variables that override file values. Each also has a legacy
// alias (ISABELLE_TOKEN, STAGING, GENERAL_TOKEN, ...) checked second.
const (
	EnvDiscordToken      = "CROSSING_DISCORD_TOKEN"
	EnvStaging           = "CROSSING_STAGING"
	EnvWebhookGeneral    = "CROSSING_WEBHOOK_GENERAL"
	EnvWebhookActivity   = "CROSSING_WEBHOOK_ACTIVITY"
	EnvWebhookGovernance = "CROSSING_WEBHOOK_GOVERNANCE"
	EnvWebhookWork       = "CROSSING_WEBHOOK_WORK"
	EnvWebhookStaging    = "CROSSING_WEBHOOK_STAGING"
	EnvRedisAddr         = "CROSSING_REDIS_ADDR"
	EnvPostgresDSN       = "CROSSING_POSTGRES_DSN"
	EnvGameToken         = "CROSSING_GAME_TOKEN"
)

// Load reads the YAML configuration file at path, applies environment
// overrides from the process environment and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReaderWithEnv(bytes.NewReader(data), os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies the process
// environment and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	return LoadFromReaderWithEnv(r, os.LookupEnv)
}

// LoadFromReaderWithEnv is [LoadFromReader] with an explicit environment.
// Useful in tests where configs are constructed from string literals.
func LoadFromReaderWithEnv(r io.Reader, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if lookup != nil {
		if err := ApplyEnv(cfg, lookup); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with values found through lookup.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&cfg.Discord.Token, EnvDiscordToken, "ISABELLE_TOKEN")
	str(&cfg.Webhooks.General, EnvWebhookGeneral, "GENERAL_TOKEN")
	str(&cfg.Webhooks.Activity, EnvWebhookActivity, "ACTIVITY_TOKEN")
	str(&cfg.Webhooks.Governance, EnvWebhookGovernance, "GOV_TOKEN")
	str(&cfg.Webhooks.Work, EnvWebhookWork, "WORK_TOKEN")
	str(&cfg.Webhooks.Staging, EnvWebhookStaging, "STAGING_TOKEN")
	str(&cfg.Game.Redis.Addr, EnvRedisAddr)
	str(&cfg.Game.PostgresDSN, EnvPostgresDSN)
	str(&cfg.Game.WebSocketToken, EnvGameToken)

	for _, k := range []string{EnvStaging, "STAGING"} {
		v, ok := lookup(k)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a boolean: %w", k, v, err)
		}
		cfg.Discord.Staging = b
		break
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	d := cfg.Discord
	if d.Token == "" {
		slog.Warn("discord.token is empty; the bridge will run without a Discord connection")
	} else {
		if d.GuildID == "" {
			errs = append(errs, errors.New("discord.guild_id is required when a token is configured"))
		}
		if d.AnchorChannelID == "" {
			errs = append(errs, errors.New("discord.anchor_channel_id is required when a token is configured"))
		}
	}
	if d.Staging {
		if d.StagingSourceChannel == "" {
			errs = append(errs, errors.New("discord.staging_source_channel is required when staging is enabled"))
		}
		if cfg.Webhooks.Staging == "" {
			errs = append(errs, errors.New("webhooks.staging is required when staging is enabled"))
		}
	} else if d.SourceChannel == "" {
		slog.Warn("discord.source_channel is empty; no Discord messages will be relayed into the game")
	}

	// Webhooks
	for _, w := range []struct{ name, url string }{
		{"general", cfg.Webhooks.General},
		{"activity", cfg.Webhooks.Activity},
		{"governance", cfg.Webhooks.Governance},
		{"work", cfg.Webhooks.Work},
		{"staging", cfg.Webhooks.Staging},
	} {
		if w.url == "" {
			if !d.Staging && w.name != "staging" {
				slog.Warn("webhook not configured; notices in this category will be dropped", "category", w.name)
			}
			continue
		}
		if err := validateWebhookURL(w.url); err != nil {
			errs = append(errs, fmt.Errorf("webhooks.%s: %w", w.name, err))
		}
	}

	// Game
	if !cfg.Game.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("game.transport %q is invalid; valid values: redis, websocket", cfg.Game.Transport))
	}
	if cfg.Game.Transport == TransportRedis && cfg.Game.Redis.Addr == "" {
		errs = append(errs, errors.New("game.redis.addr is required when transport is redis"))
	}
	if cfg.Game.Transport == TransportWebSocket && cfg.Game.WebSocketToken == "" {
		slog.Warn("game.websocket_token is empty; any client reaching /game/ws can act as the game")
	}
	if cfg.Game.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("game.redis.db %d must not be negative", cfg.Game.Redis.DB))
	}
	if cfg.Game.PostgresDSN == "" {
		slog.Warn("game.postgres_dsn is empty; using the in-memory user directory")
	}

	// Relay
	if cfg.Relay.DispatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("relay.dispatch_concurrency %d must not be negative", cfg.Relay.DispatchConcurrency))
	}
	for i, w := range cfg.Relay.ThankWords {
		if strings.TrimSpace(w) == "" {
			errs = append(errs, fmt.Errorf("relay.thank_words[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

// validateWebhookURL checks for a Discord webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func validateWebhookURL(raw string) error {
	_, _, err := ParseWebhookURL(raw)
	return err
}

// ParseWebhookURL extracts the webhook id and token from a webhook URL.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("webhook url %q must use http or https", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q does not contain /webhooks/{id}/{token}", raw)
}
