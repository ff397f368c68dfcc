package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/game"
)

// whoisTimeout keeps the reply inside Discord's interaction deadline.
const whoisTimeout = 2 * time.Second

// Identities resolves Discord ids to linked game ids.
type Identities interface {
	LookupInternal(discordID string) (string, bool)
}

// Users resolves game accounts.
type Users interface {
	FindUserByStableID(ctx context.Context, id string) (game.User, error)
}

// WhoisCommand handles /whois, which shows the game account linked to a
// member.
type WhoisCommand struct {
	ids   Identities
	users Users
}

// NewWhoisCommand creates a WhoisCommand.
func NewWhoisCommand(ids Identities, users Users) *WhoisCommand {
	return &WhoisCommand{ids: ids, users: users}
}

// Register registers /whois with the router.
func (c *WhoisCommand) Register(router *discord.CommandRouter) {
	router.RegisterCommand(c.Definition(), c.handle)
}

// Definition returns the /whois ApplicationCommand.
func (c *WhoisCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "whois",
		Description: "Show the game account linked to a member",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "user",
				Description: "Discord member",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
		},
	}
}

func (c *WhoisCommand) handle(r discord.Responder, i *discordgo.InteractionCreate) {
	userID := userOption(options(i), "user")
	if userID == "" {
		discord.RespondEphemeral(r, i, "Please pick a member.")
		return
	}

	gameID, ok := c.ids.LookupInternal(userID)
	if !ok {
		discord.RespondEphemeral(r, i, fmt.Sprintf("<@%s> is not linked to a game account.", userID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), whoisTimeout)
	defer cancel()
	u, err := c.users.FindUserByStableID(ctx, gameID)
	if err != nil {
		discord.RespondEphemeral(r, i, fmt.Sprintf("<@%s> is linked to game account `%s`.", userID, gameID))
		return
	}
	discord.RespondEphemeral(r, i, fmt.Sprintf("<@%s> is linked to game account **%s** (`%s`).", userID, u.Name, gameID))
}
