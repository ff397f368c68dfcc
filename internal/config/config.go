// Package config provides the configuration schema, loader, and transport
// registry for the Crossing bridge.
package config

import "time"

// LogLevel controls log verbosity for the bridge.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the bridge talks to the game server.
type Transport string

const (
	// TransportRedis exchanges events and chat over Redis pub/sub.
	TransportRedis Transport = "redis"

	// TransportWebSocket accepts a connection from the game plugin on
	// /game/ws.
	TransportWebSocket Transport = "websocket"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportRedis || t == TransportWebSocket
}

// Config is the root configuration structure for Crossing.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Identity IdentityConfig `yaml:"identity"`
	Game     GameConfig     `yaml:"game"`
	Relay    RelayConfig    `yaml:"relay"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for health, metrics and the game
	// websocket (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the bot credentials and the guild it serves.
type DiscordConfig struct {
	// Token is the bot token. Usually supplied via CROSSING_DISCORD_TOKEN.
	Token string `yaml:"token"`

	// GuildID is the guild the bridge serves.
	GuildID string `yaml:"guild_id"`

	// AnchorChannelID receives the connected notice. The bridge refuses to
	// start if it cannot be resolved once the gateway is ready.
	AnchorChannelID string `yaml:"anchor_channel_id"`

	// AdminRoleID gates the /link command. Empty allows guild administrators
	// only.
	AdminRoleID string `yaml:"admin_role_id"`

	// SourceChannel is the channel name relayed into game chat.
	SourceChannel string `yaml:"source_channel"`

	// StagingSourceChannel replaces SourceChannel when Staging is set.
	StagingSourceChannel string `yaml:"staging_source_channel"`

	// Staging switches both the source channel and every webhook to their
	// staging counterparts.
	Staging bool `yaml:"staging"`

	// BotName and AvatarURL are the author shown on world notices.
	BotName   string `yaml:"bot_name"`
	AvatarURL string `yaml:"avatar_url"`

	// ChatAvatarURL is the avatar shown on relayed game chat lines.
	ChatAvatarURL string `yaml:"chat_avatar_url"`
}

// ActiveSourceChannel returns the channel name admitted by the inbound relay.
func (d DiscordConfig) ActiveSourceChannel() string {
	if d.Staging {
		return d.StagingSourceChannel
	}
	return d.SourceChannel
}

// WebhookConfig holds one webhook URL per notification category.
type WebhookConfig struct {
	General    string `yaml:"general"`
	Activity   string `yaml:"activity"`
	Governance string `yaml:"governance"`
	Work       string `yaml:"work"`

	// Staging receives every category while discord.staging is set.
	Staging string `yaml:"staging"`
}

// IdentityConfig locates the persisted identity tables.
type IdentityConfig struct {
	// Dir holds discord_to_game.json and game_to_discord.json.
	Dir string `yaml:"dir"`
}

// GameConfig selects the game transport and directory.
type GameConfig struct {
	Transport Transport `yaml:"transport"`

	Redis RedisConfig `yaml:"redis"`

	// WebSocketToken, when set, must be presented by the game plugin as a
	// bearer token on /game/ws.
	WebSocketToken string `yaml:"websocket_token"`

	// PostgresDSN points at the game's user and listing tables. Empty uses
	// an in-memory directory that only knows users seen in events.
	PostgresDSN string `yaml:"postgres_dsn"`

	// ChatTag is the in-game chat tag relayed to Discord.
	ChatTag string `yaml:"chat_tag"`
}

// RedisConfig configures the Redis pub/sub transport.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Channel names. Defaults are applied by [ApplyDefaults].
	EventsChannel     string `yaml:"events_channel"`
	LinkChannel       string `yaml:"link_channel"`
	ChatChannel       string `yaml:"chat_channel"`
	ReputationChannel string `yaml:"reputation_channel"`
}

// RelayConfig tunes the relay loops.
type RelayConfig struct {
	// ThankWords trigger reputation grants when a message mentions users.
	// Words match whole words case-insensitively; a trailing "*" matches any
	// word with that prefix.
	ThankWords []string `yaml:"thank_words"`

	// DispatchConcurrency bounds webhook sends in flight. Events are always
	// received and handled; only their sends wait.
	DispatchConcurrency int `yaml:"dispatch_concurrency"`

	// SendTimeout bounds a single webhook call.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// Defaults applied by [ApplyDefaults].
var (
	DefaultThankWords = []string{"thank*", "ty", "thx", "appreciate*", "cheers"}
)

const (
	DefaultListenAddr          = ":8080"
	DefaultIdentityDir         = "./data"
	DefaultChatTag             = "General"
	DefaultBotName             = "ECO"
	DefaultDispatchConcurrency = 32
	DefaultSendTimeout         = 10 * time.Second
)

// ApplyDefaults fills unset optional fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Discord.BotName == "" {
		cfg.Discord.BotName = DefaultBotName
	}
	if cfg.Identity.Dir == "" {
		cfg.Identity.Dir = DefaultIdentityDir
	}
	if cfg.Game.Transport == "" {
		cfg.Game.Transport = TransportRedis
	}
	if cfg.Game.ChatTag == "" {
		cfg.Game.ChatTag = DefaultChatTag
	}
	r := &cfg.Game.Redis
	if r.EventsChannel == "" {
		r.EventsChannel = "crossing:events"
	}
	if r.LinkChannel == "" {
		r.LinkChannel = "crossing:link"
	}
	if r.ChatChannel == "" {
		r.ChatChannel = "crossing:chat"
	}
	if r.ReputationChannel == "" {
		r.ReputationChannel = "crossing:reputation"
	}
	if len(cfg.Relay.ThankWords) == 0 {
		cfg.Relay.ThankWords = append([]string(nil), DefaultThankWords...)
	}
	if cfg.Relay.DispatchConcurrency <= 0 {
		cfg.Relay.DispatchConcurrency = DefaultDispatchConcurrency
	}
	if cfg.Relay.SendTimeout <= 0 {
		cfg.Relay.SendTimeout = DefaultSendTimeout
	}
}
