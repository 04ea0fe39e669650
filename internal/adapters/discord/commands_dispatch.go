package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/verification-bot/internal/app/service"
)

// handleSlashCommand turns a slash command into a workflow call and answers
// the caller ephemerally.
func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	cmd := ic.ApplicationCommandData()
	log := r.log.WithField("cmd", cmd.Name).WithField("guild", ic.GuildID)

	defer r.recoverInteraction(ic, log)

	actor, ok := r.actorFrom(ic)
	if !ok {
		_ = r.SendEphemeral(ic, "❌ This command only works inside a server.")
		return
	}
	log.WithField("by", actor.UserID).Info("slash command")

	_ = r.DeferEphemeral(ic)
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	defer r.step("cmd." + cmd.Name)()

	switch cmd.Name {

	case cmdSetup:
		var patch service.ConfigPatch
		if id, ok := optID(ic, "review_channel"); ok {
			patch.ReviewChannelID = &id
		}
		if id, ok := optID(ic, "verified_role"); ok {
			patch.VerifiedRoleID = &id
		}
		// omitted admin role keeps the existing ones
		if id, ok := optID(ic, "admin_role"); ok {
			patch.AdminRoleIDs = &[]string{id}
		}
		if patch.ReviewChannelID == nil && patch.VerifiedRoleID == nil && patch.AdminRoleIDs == nil {
			r.ReplyEphemeral(ic, "Pass at least one of `review_channel`, `verified_role` or `admin_role`.")
			return
		}
		r.replyConfig(ctx, ic, actor, patch)

	case cmdAdmins:
		sub, _ := subcmdName(ic)
		id, _ := optID(ic, "role")
		var patch service.ConfigPatch
		switch sub {
		case "add":
			patch.AddAdminRoleIDs = []string{id}
		case "remove":
			patch.RemoveAdminRoleIDs = []string{id}
		default:
			r.ReplyEphemeral(ic, "Use `/verify-admins add` or `/verify-admins remove`.")
			return
		}
		r.replyConfig(ctx, ic, actor, patch)

	case cmdReset:
		if err := r.flow.ResetConfig(ctx, actor); err != nil {
			r.ReplyEphemeral(ic, service.UserMessage(err))
			return
		}
		r.ReplyEphemeral(ic, "🗑️ Verification settings cleared for this server.")

	case cmdPanel:
		channelID, ok := optID(ic, "channel")
		if !ok {
			channelID = ic.ChannelID
		}
		if _, err := r.flow.OpenPanel(ctx, actor, channelID); err != nil {
			log.WithError(err).Warn("open panel")
			r.ReplyEphemeral(ic, service.UserMessage(err))
			return
		}
		r.ReplyEphemeral(ic, fmt.Sprintf("✅ Verification panel posted in <#%s>.", channelID))

	case cmdConfig:
		view, err := r.flow.ViewConfig(ctx, actor)
		if err != nil {
			r.ReplyEphemeral(ic, service.UserMessage(err))
			return
		}
		r.ReplyEphemeral(ic, "", embedFor(service.ConfigCard(view)))

	default:
		r.ReplyEphemeral(ic, "Unknown command.")
	}
}

func (r *Router) replyConfig(ctx context.Context, ic *discordgo.InteractionCreate, actor service.Actor, patch service.ConfigPatch) {
	cfg, err := r.flow.Configure(ctx, actor, patch)
	if err != nil {
		r.ReplyEphemeral(ic, service.UserMessage(err))
		return
	}
	r.ReplyEphemeral(ic, "", embedFor(service.SetupCard(cfg)))
}
