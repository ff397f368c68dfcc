package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/discord"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/observe"
	"github.com/MrWong99/crossing/pkg/world"
)

// ChatSent relays a game chat line under the author's display name.
func (d *Dispatcher) ChatSent(ctx context.Context, e world.ChatSent) error {
	if e.Tag != d.cfg.ChatTag {
		return d.drop(ctx, e.Kind(), "untracked tag")
	}
	if e.Citizen == nil || e.Message == "" {
		return d.drop(ctx, e.Kind(), "missing author or text")
	}
	return d.send(ctx, e.Kind(), discord.Notice{
		Category:  discord.CategoryGeneral,
		Content:   e.Message,
		Username:  d.displayName(ctx, e.Citizen),
		AvatarURL: d.cfg.ChatAvatarURL,
	})
}

// ElectionStarted announces a new election on the governance channel.
func (d *Dispatcher) ElectionStarted(ctx context.Context, e world.ElectionStarted) error {
	if e.Title == "" {
		return d.drop(ctx, e.Kind(), "no title")
	}
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
		fmt.Sprintf("**%s** started an election for **%s**!", d.displayName(ctx, e.Citizen), e.Title)))
}

// ElectionJoined announces a candidate entering an election.
func (d *Dispatcher) ElectionJoined(ctx context.Context, e world.ElectionJoined) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
		fmt.Sprintf("**%s** has entered the election for **%s**!", d.displayName(ctx, e.Citizen), e.Position)))
}

// ElectionLeft announces a candidate withdrawing from an election.
func (d *Dispatcher) ElectionLeft(ctx context.Context, e world.ElectionLeft) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
		fmt.Sprintf("**%s** has left the election for **%s**.", d.displayName(ctx, e.Citizen), e.Position)))
}

// ElectionWon announces the winner of an election.
func (d *Dispatcher) ElectionWon(ctx context.Context, e world.ElectionWon) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
		fmt.Sprintf("**%s** has won the election for **%s**!", d.displayName(ctx, e.Citizen), e.Position)))
}

// DemographicChanged announces a citizen joining or leaving a demographic.
// Joining attaches the demographic description.
func (d *Dispatcher) DemographicChanged(ctx context.Context, e world.DemographicChanged) error {
	name := d.displayName(ctx, e.Citizen)
	if !e.Entered {
		return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
			fmt.Sprintf("**%s** is no longer a part of **%s**.", name, e.Demographic)))
	}
	var embeds []*discordgo.MessageEmbed
	if desc := StripTags(e.Description); desc != "" {
		embeds = append(embeds, &discordgo.MessageEmbed{Description: desc})
	}
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryGovernance,
		fmt.Sprintf("**%s** became a part of **%s**!", name, e.Demographic), embeds...))
}

// PropertyTransferred announces a deed changing owner.
func (d *Dispatcher) PropertyTransferred(ctx context.Context, e world.PropertyTransferred) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** transferred a property of **%s** to **%s**.",
			d.displayName(ctx, e.Citizen), d.ownerName(ctx, e.CurrentOwner), d.ownerName(ctx, e.NewOwner))))
}

// LandClaimed announces a claimed plot.
func (d *Dispatcher) LandClaimed(ctx context.Context, e world.LandClaimed) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** claimed land at **%s**.", d.displayName(ctx, e.Citizen), e.Location)))
}

// LandUnclaimed announces a released plot.
func (d *Dispatcher) LandUnclaimed(ctx context.Context, e world.LandUnclaimed) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** unclaimed land at **%s**.", d.displayName(ctx, e.Citizen), e.Location)))
}

// GovernmentFundsReceived announces a treasury payment.
func (d *Dispatcher) GovernmentFundsReceived(ctx context.Context, e world.GovernmentFundsReceived) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** has received **%s %s** for government work.",
			d.displayName(ctx, e.Citizen), formatAmount(e.Amount), e.Currency)))
}

// ContractPosted announces a contract with its description attached.
func (d *Dispatcher) ContractPosted(ctx context.Context, e world.ContractPosted) error {
	return d.posted(ctx, e.Kind(), "contract", e.Client, e.Amount, e.Currency, d.dir.LatestContract)
}

// WorkPartyPosted announces a work party with its description attached.
func (d *Dispatcher) WorkPartyPosted(ctx context.Context, e world.WorkPartyPosted) error {
	return d.posted(ctx, e.Kind(), "work party", e.Client, e.Amount, e.Currency, d.dir.LatestWorkParty)
}

// posted announces a listing, attaching the client's latest one of that
// kind as an embed when the directory has it.
func (d *Dispatcher) posted(ctx context.Context, kind world.Kind, noun string, client *world.UserRef, amount float64, currency string,
	latest func(context.Context, string) (game.Listing, error),
) error {
	if client == nil || currency == "" {
		return d.drop(ctx, kind, "no client or currency")
	}

	var embeds []*discordgo.MessageEmbed
	l, err := latest(ctx, client.StableID)
	switch {
	case err == nil:
		embeds = append(embeds, &discordgo.MessageEmbed{
			Author:      d.author(ctx, client),
			Description: StripTags(l.Description),
		})
	case errors.Is(err, game.ErrNoListing):
	default:
		observe.Logger(ctx).Warn("dispatch: latest listing lookup", "kind", kind, "client", client.StableID, "err", err)
	}

	return d.send(ctx, kind, d.notice(discord.CategoryWork,
		fmt.Sprintf("**%s** has posted a %s for **%s %s**!", d.displayName(ctx, client), noun, formatAmount(amount), currency),
		embeds...))
}

// SpecialtyGained announces a newly learned specialty.
func (d *Dispatcher) SpecialtyGained(ctx context.Context, e world.SpecialtyGained) error {
	if e.Specialty == "" {
		return d.drop(ctx, e.Kind(), "no specialty")
	}
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** took a new specialty in **%s**.", d.displayName(ctx, e.Citizen), e.Specialty)))
}

// ProfessionGained is never announced.
func (d *Dispatcher) ProfessionGained(ctx context.Context, e world.ProfessionGained) error {
	return d.drop(ctx, e.Kind(), "not announced")
}

// WorkOrderCreated announces a started work order.
func (d *Dispatcher) WorkOrderCreated(ctx context.Context, e world.WorkOrderCreated) error {
	if e.WorkOrder == "" {
		return d.drop(ctx, e.Kind(), "no work order")
	}
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** started a work order for **%s**.", d.displayName(ctx, e.Citizen), e.WorkOrder)))
}

// LaborPerformed announces labor contributed to a work order.
func (d *Dispatcher) LaborPerformed(ctx context.Context, e world.LaborPerformed) error {
	if e.WorkOrder == "" {
		return d.drop(ctx, e.Kind(), "no work order")
	}
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** performed **%s** units of labor on **%s**.",
			d.displayName(ctx, e.Citizen), formatAmount(e.Labor), e.WorkOrder)))
}

// UserLoggedIn announces a citizen joining the server.
func (d *Dispatcher) UserLoggedIn(ctx context.Context, e world.UserLoggedIn) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** has logged in.", d.displayName(ctx, e.Citizen))))
}

// UserLoggedOut announces a citizen leaving the server.
func (d *Dispatcher) UserLoggedOut(ctx context.Context, e world.UserLoggedOut) error {
	return d.send(ctx, e.Kind(), d.notice(discord.CategoryActivity,
		fmt.Sprintf("**%s** has logged out.", d.displayName(ctx, e.Citizen))))
}
