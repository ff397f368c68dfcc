// Package mention rewrites Discord reference tokens into text the game chat
// can display.
package mention

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MrWong99/crossing/internal/game"
)

// tokenPattern matches <@123>, <@!123>, <@&123>, <#123>, <:name:123> and
// <a:name:123>. Group 1 is the emote label including colons, group 2 the id.
var tokenPattern = regexp.MustCompile(`<[@#!&]*a?(:\w*:)?(\d+)>`)

// minEmoteLabel is the label length (colons included) above which a token is
// rendered as an emote rather than resolved as an id.
const minEmoteLabel = 2

// Mentions holds the id→name sets Discord resolved for a message.
type Mentions struct {
	Users    map[string]string
	Roles    map[string]string
	Channels map[string]string
}

// Links resolves a Discord user id to a linked game account id.
type Links interface {
	LookupInternal(discordID string) (string, bool)
}

// Users resolves game accounts and renders their chat references.
type Users interface {
	FindUserByStableID(ctx context.Context, id string) (game.User, error)
	Reference(u game.User) string
}

// Rewriter replaces reference tokens with readable names. It is safe for
// concurrent use.
type Rewriter struct {
	links Links
	users Users
}

// New returns a Rewriter resolving user mentions through links and users.
func New(links Links, users Users) *Rewriter {
	return &Rewriter{links: links, users: users}
}

// Rewrite returns text with every reference token replaced. Tokens whose id
// is in none of the mention sets are removed. Text without tokens is returned
// unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, text string, m Mentions) string {
	matches := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range matches {
		b.WriteString(text[last:loc[0]])
		last = loc[1]

		var label string
		if loc[2] >= 0 {
			label = text[loc[2]:loc[3]]
		}
		id := text[loc[4]:loc[5]]

		if len(label) > minEmoteLabel {
			b.WriteString(label)
			continue
		}
		b.WriteString(r.resolve(ctx, id, m))
	}
	b.WriteString(text[last:])
	return b.String()
}

func (r *Rewriter) resolve(ctx context.Context, id string, m Mentions) string {
	if name, ok := m.Users[id]; ok {
		if ref, ok := r.userReference(ctx, id); ok {
			return ref
		}
		return "@" + name
	}
	if name, ok := m.Roles[id]; ok {
		return "@" + name
	}
	if name, ok := m.Channels[id]; ok {
		return "#" + name
	}
	slog.Debug("mention: dropping unresolved reference", "id", id)
	return ""
}

func (r *Rewriter) userReference(ctx context.Context, discordID string) (string, bool) {
	if r.links == nil || r.users == nil {
		return "", false
	}
	gameID, ok := r.links.LookupInternal(discordID)
	if !ok {
		return "", false
	}
	u, err := r.users.FindUserByStableID(ctx, gameID)
	if err != nil {
		slog.Debug("mention: linked account not found", "discord_id", discordID, "game_id", gameID, "err", err)
		return "", false
	}
	return r.users.Reference(u), true
}
