package commands

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/link"
)

// LinkQueue accepts link requests for serialized handling.
type LinkQueue interface {
	Enqueue(req link.Request) bool
}

// LinkCommand handles /link, which lets admins link a member to a game
// account.
type LinkCommand struct {
	perms *discord.PermissionChecker
	queue LinkQueue
}

// NewLinkCommand creates a LinkCommand.
func NewLinkCommand(perms *discord.PermissionChecker, queue LinkQueue) *LinkCommand {
	return &LinkCommand{perms: perms, queue: queue}
}

// Register registers /link with the router.
func (c *LinkCommand) Register(router *discord.CommandRouter) {
	router.RegisterCommand(c.Definition(), c.handle)
}

// Definition returns the /link ApplicationCommand.
func (c *LinkCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "link",
		Description: "Link a Discord member to a game account",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: "Discord member",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
			{
				Name:        "player",
				Description: "Game account name",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
		},
	}
}

func (c *LinkCommand) handle(r discord.Responder, i *discordgo.InteractionCreate) {
	if !c.perms.IsAdmin(i) {
		discord.RespondEphemeral(r, i, "You need the admin role to link accounts.")
		return
	}

	opts := options(i)
	userID := userOption(opts, "user")
	player := strings.TrimSpace(stringOption(opts, "player"))
	if userID == "" || player == "" {
		discord.RespondEphemeral(r, i, "Both a member and a player name are required.")
		return
	}

	discord.DeferReply(r, i)
	req := link.Request{
		Source:     link.SourceDiscord,
		DiscordID:  userID,
		PlayerName: player,
		Reply: func(_ context.Context, text string) {
			discord.FollowUp(r, i, text)
		},
	}
	if !c.queue.Enqueue(req) {
		discord.FollowUp(r, i, link.ReplyBusy)
	}
}
