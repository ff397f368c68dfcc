package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/namematch"
)

// ErrMemberNotFound is returned when no guild member matches a lookup.
var ErrMemberNotFound = errors.New("discord: member not found")

// memberPage is the REST page size used when state holds no members.
const memberPage = 1000

var matcher = namematch.New()

// Member returns the guild member with the given user id.
func (b *Bot) Member(ctx context.Context, userID string) (*discordgo.Member, error) {
	if m, err := b.session.State.Member(b.cfg.GuildID, userID); err == nil {
		return m, nil
	}
	if !b.rest || !b.Ready() {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, userID)
	}
	m, err := b.session.GuildMember(b.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, userID)
		}
		return nil, fmt.Errorf("discord: fetch member %s: %w", userID, err)
	}
	return m, nil
}

// Members returns the cached guild members, fetching one page over REST when
// the cache is empty.
func (b *Bot) Members(ctx context.Context) ([]*discordgo.Member, error) {
	if g, err := b.session.State.Guild(b.cfg.GuildID); err == nil {
		b.session.State.RLock()
		cached := append([]*discordgo.Member(nil), g.Members...)
		b.session.State.RUnlock()
		if len(cached) > 0 {
			return cached, nil
		}
	}
	if !b.rest || !b.Ready() {
		return nil, nil
	}
	ms, err := b.session.GuildMembers(b.cfg.GuildID, "", memberPage, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: list members: %w", err)
	}
	return ms, nil
}

// FindMember resolves a typed name to a guild member: an exact
// case-insensitive username first, then display name, then the closest
// fuzzy match.
func (b *Bot) FindMember(ctx context.Context, name string) (*discordgo.Member, error) {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "@"))
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrMemberNotFound)
	}
	members, err := b.Members(ctx)
	if err != nil {
		return nil, err
	}
	return matchMember(name, members)
}

func matchMember(name string, members []*discordgo.Member) (*discordgo.Member, error) {
	for _, m := range members {
		if m.User != nil && strings.EqualFold(m.User.Username, name) {
			return m, nil
		}
	}
	for _, m := range members {
		if m.User != nil && strings.EqualFold(m.DisplayName(), name) {
			return m, nil
		}
	}

	names := make([]string, 0, len(members))
	candidates := make([]*discordgo.Member, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		names = append(names, m.DisplayName())
		candidates = append(candidates, m)
		if m.User.Username != m.DisplayName() {
			names = append(names, m.User.Username)
			candidates = append(candidates, m)
		}
	}
	if res, ok := matcher.Best(name, names); ok {
		return candidates[res.Index], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
}

// DirectMessage sends content to a user's DM channel.
func (b *Bot) DirectMessage(ctx context.Context, userID, content string) error {
	ch, err := b.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: open dm with %s: %w", userID, err)
	}
	if _, err := b.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send dm to %s: %w", userID, err)
	}
	return nil
}

// React adds emoji to a message.
func (b *Bot) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := b.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: react to %s: %w", messageID, err)
	}
	return nil
}
