package commands

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/discord/mock"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/link"
)

type fakeIdentities map[string]string

func (f fakeIdentities) LookupInternal(id string) (string, bool) {
	v, ok := f[id]
	return v, ok
}

type fakeQueue struct {
	reqs []link.Request
	full bool
}

func (q *fakeQueue) Enqueue(req link.Request) bool {
	if q.full {
		return false
	}
	q.reqs = append(q.reqs, req)
	return true
}

func interaction(name string, member *discordgo.Member, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: member,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: opts,
		},
	}}
}

func userOpt(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func playerOpt(name string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "player", Type: discordgo.ApplicationCommandOptionString, Value: name}
}

var admin = &discordgo.Member{Roles: []string{"admins"}}

func TestLinkDefinition(t *testing.T) {
	t.Parallel()

	def := NewLinkCommand(discord.NewPermissionChecker("admins"), &fakeQueue{}).Definition()
	if def.Name != "link" {
		t.Errorf("Name = %q, want link", def.Name)
	}
	if len(def.Options) != 2 || def.Options[0].Name != "user" || def.Options[1].Name != "player" {
		t.Fatalf("Options = %+v", def.Options)
	}
	for _, o := range def.Options {
		if !o.Required {
			t.Errorf("option %q is optional", o.Name)
		}
	}
}

func TestLink_RequiresAdmin(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	c := NewLinkCommand(discord.NewPermissionChecker("admins"), q)
	resp := &mock.InteractionResponder{}

	c.handle(resp, interaction("link", &discordgo.Member{Roles: []string{"players"}}, userOpt("d1"), playerOpt("Alicia")))

	if len(q.reqs) != 0 {
		t.Error("request enqueued for a non-admin")
	}
	if got := resp.LastResponse(); got == nil || got.Data.Content != "You need the admin role to link accounts." {
		t.Errorf("response = %+v", got)
	}
}

func TestLink_EnqueuesAndRepliesByFollowUp(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	c := NewLinkCommand(discord.NewPermissionChecker("admins"), q)
	resp := &mock.InteractionResponder{}

	c.handle(resp, interaction("link", admin, userOpt("d1"), playerOpt("  Alicia ")))

	if got := resp.LastResponse(); got == nil || got.Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("response = %+v, want deferred", got)
	}
	if len(q.reqs) != 1 {
		t.Fatalf("enqueued %d requests, want 1", len(q.reqs))
	}
	req := q.reqs[0]
	if req.Source != link.SourceDiscord || req.DiscordID != "d1" || req.PlayerName != "Alicia" {
		t.Errorf("request = %+v", req)
	}

	req.Reply(t.Context(), "Linked to Discord user alice.")
	if got := resp.LastFollowUp(); got == nil || got.Content != "Linked to Discord user alice." {
		t.Errorf("follow-up = %+v", got)
	}
}

func TestLink_QueueFull(t *testing.T) {
	t.Parallel()

	c := NewLinkCommand(discord.NewPermissionChecker("admins"), &fakeQueue{full: true})
	resp := &mock.InteractionResponder{}

	c.handle(resp, interaction("link", admin, userOpt("d1"), playerOpt("Alicia")))

	if got := resp.LastFollowUp(); got == nil || got.Content != link.ReplyBusy {
		t.Errorf("follow-up = %+v, want busy reply", got)
	}
}

func TestLink_MissingOptions(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	c := NewLinkCommand(discord.NewPermissionChecker("admins"), q)
	resp := &mock.InteractionResponder{}

	c.handle(resp, interaction("link", admin, userOpt("d1")))

	if len(q.reqs) != 0 {
		t.Error("request enqueued without a player")
	}
	if got := resp.LastResponse(); got == nil || got.Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Errorf("response = %+v", got)
	}
}

func TestWhois(t *testing.T) {
	t.Parallel()

	ids := fakeIdentities{"d1": "p1", "d2": "p-gone"}
	users := game.NewMemDirectory(game.User{StableID: "p1", Name: "Alicia"})
	c := NewWhoisCommand(ids, users)

	tests := []struct {
		name string
		opts []*discordgo.ApplicationCommandInteractionDataOption
		want string
	}{
		{name: "linked", opts: []*discordgo.ApplicationCommandInteractionDataOption{userOpt("d1")}, want: "<@d1> is linked to game account **Alicia** (`p1`)."},
		{name: "linked but unknown to directory", opts: []*discordgo.ApplicationCommandInteractionDataOption{userOpt("d2")}, want: "<@d2> is linked to game account `p-gone`."},
		{name: "not linked", opts: []*discordgo.ApplicationCommandInteractionDataOption{userOpt("d3")}, want: "<@d3> is not linked to a game account."},
		{name: "no user", want: "Please pick a member."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &mock.InteractionResponder{}
			c.handle(resp, interaction("whois", nil, tt.opts...))
			got := resp.LastResponse()
			if got == nil {
				t.Fatal("no response")
			}
			if got.Data.Content != tt.want {
				t.Errorf("content = %q, want %q", got.Data.Content, tt.want)
			}
			if got.Data.Flags != discordgo.MessageFlagsEphemeral {
				t.Error("response is not ephemeral")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	r := discord.NewCommandRouter()
	NewLinkCommand(discord.NewPermissionChecker(""), &fakeQueue{}).Register(r)
	NewWhoisCommand(fakeIdentities{}, game.NewMemDirectory()).Register(r)

	if got := len(r.ApplicationCommands()); got != 2 {
		t.Errorf("registered %d commands, want 2", got)
	}
}
