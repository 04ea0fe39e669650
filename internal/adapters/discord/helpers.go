package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/verification-bot/internal/app/service"
)

// actorFrom builds the acting identity. ok is false outside a guild.
func (r *Router) actorFrom(ic *discordgo.InteractionCreate) (service.Actor, bool) {
	if ic.GuildID == "" || ic.Member == nil || ic.Member.User == nil {
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:     ic.Member.User.ID,
		GuildID:    ic.GuildID,
		RoleIDs:    ic.Member.Roles,
		GuildAdmin: r.isGuildAdmin(ic),
	}, true
}

func applicantFrom(ic *discordgo.InteractionCreate) service.Applicant {
	u := ic.Member.User
	a := service.Applicant{UserID: u.ID, Tag: userTag(u), JoinedAt: ic.Member.JoinedAt}
	if t, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		a.CreatedAt = t
	}
	return a
}

// userTag is name#1234 for legacy accounts, the bare username otherwise.
func userTag(u *discordgo.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func findOpt(ic *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name {
			return o
		}
		// subcommand
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name {
					return so
				}
			}
		}
	}
	return nil
}

// optID reads a channel, role or user option; Discord sends those as snowflake strings.
func optID(ic *discordgo.InteractionCreate, name string) (string, bool) {
	o := findOpt(ic, name)
	if o == nil {
		return "", false
	}
	id, ok := o.Value.(string)
	return id, ok && id != ""
}

func subcmdName(ic *discordgo.InteractionCreate) (string, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name, true
		}
	}
	return "", false
}
