package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const codeUnknownWebhook = 10015

// SendEphemeral answers an interaction directly, visible to the caller only.
func (r *Router) SendEphemeral(ic *discordgo.InteractionCreate, msg string) error {
	err := r.s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.log.WithError(err).Warn("SendEphemeral")
	}
	return err
}

// DeferEphemeral acks within the 3s window; the real answer goes through ReplyEphemeral.
func (r *Router) DeferEphemeral(ic *discordgo.InteractionCreate) error {
	err := r.s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.log.WithError(err).Warn("DeferEphemeral")
	}
	return err
}

func (r *Router) ReplyEphemeral(ic *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	_, err := r.s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content:         content,
		Embeds:          embeds,
		Flags:           discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err == nil {
		return
	}

	// Fallback only when nothing was sent yet (unknown webhook).
	var reqErr *discordgo.RESTError
	if errors.As(err, &reqErr) && reqErr.Message != nil && reqErr.Message.Code == codeUnknownWebhook {
		_ = r.s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
				Embeds:  embeds,
			},
		})
		return
	}
	r.log.WithError(err).Warn("ReplyEphemeral")
}

// RespondModal opens a form. Must be the first response to the interaction.
func (r *Router) RespondModal(ic *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) error {
	err := r.s.InteractionRespond(ic.Interaction, resp)
	if err != nil {
		r.log.WithError(err).Warn("RespondModal")
	}
	return err
}

// recoverInteraction must be deferred directly by each interaction handler.
func (r *Router) recoverInteraction(ic *discordgo.InteractionCreate, log *logrus.Entry) {
	if rec := recover(); rec != nil {
		log.WithField("panic", rec).Error("panic in interaction handler")
		r.ReplyEphemeral(ic, "⚠️ Something went wrong. Please try again.")
	}
}
