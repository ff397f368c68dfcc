package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// bridgeLogger routes discordgo's internal logging into slog. Install it by
// assigning to [discordgo.Logger].
func bridgeLogger(msgL, _ int, format string, a ...any) {
	level := slog.LevelDebug
	switch msgL {
	case discordgo.LogError:
		level = slog.LevelError
	case discordgo.LogWarning:
		level = slog.LevelWarn
	case discordgo.LogInformational:
		level = slog.LevelInfo
	}
	slog.Log(context.Background(), level, "discord: gateway", "msg", fmt.Sprintf(format, a...))
}
