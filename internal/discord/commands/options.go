// Package commands implements the bridge's slash commands.
package commands

import "github.com/bwmarrin/discordgo"

// options indexes the top-level options of a slash command by name.
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, o := range data.Options {
		out[o.Name] = o
	}
	return out
}

// userOption returns the id of a user option, or "" when absent.
func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionUser {
		return ""
	}
	if u := o.UserValue(nil); u != nil {
		return u.ID
	}
	return ""
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok || o.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return o.StringValue()
}
