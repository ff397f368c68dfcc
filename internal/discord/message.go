package discord

import (
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Mentions holds the id→name sets Discord resolved for a message.
type Mentions struct {
	Users    map[string]string
	Roles    map[string]string
	Channels map[string]string
}

// Message is a guild message as seen by the bridge. It is detached from
// discordgo types so consumers never touch session state.
type Message struct {
	ID          string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string

	// Automated is set for bot and webhook authors.
	Automated bool

	Content   string
	Mentions  Mentions
	Timestamp time.Time
}

var channelToken = regexp.MustCompile(`<#(\d+)>`)

// convertMessage builds a [Message] from a gateway event, resolving names
// through state. Unknown roles and channels are left out of the mention
// sets.
func convertMessage(state *discordgo.State, m *discordgo.Message) Message {
	msg := Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Automated: m.WebhookID != "",
		Timestamp: m.Timestamp,
		Mentions: Mentions{
			Users:    make(map[string]string, len(m.Mentions)),
			Roles:    make(map[string]string, len(m.MentionRoles)),
			Channels: make(map[string]string),
		},
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.Automated = msg.Automated || m.Author.Bot
	}
	for _, u := range m.Mentions {
		if u != nil {
			msg.Mentions.Users[u.ID] = u.Username
		}
	}
	if state == nil {
		return msg
	}

	if ch, err := state.Channel(m.ChannelID); err == nil {
		msg.ChannelName = ch.Name
	}
	for _, id := range m.MentionRoles {
		if r, err := state.Role(m.GuildID, id); err == nil {
			msg.Mentions.Roles[id] = r.Name
		}
	}
	for _, sub := range channelToken.FindAllStringSubmatch(m.Content, -1) {
		if ch, err := state.Channel(sub[1]); err == nil {
			msg.Mentions.Channels[sub[1]] = ch.Name
		}
	}
	return msg
}
