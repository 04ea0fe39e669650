package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/domain"
)

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()
	log := r.log.WithField("component", data.CustomID).WithField("guild", ic.GuildID)
	defer r.recoverInteraction(ic, log)

	actor, ok := r.actorFrom(ic)
	if !ok {
		_ = r.SendEphemeral(ic, "❌ This only works inside a server.")
		return
	}

	// Apply answers with a modal, which cannot follow a deferral.
	if data.CustomID == service.ActionApply {
		form, err := r.flow.Apply(context.Background(), actor)
		if err != nil {
			_ = r.SendEphemeral(ic, service.UserMessage(err))
			return
		}
		_ = r.RespondModal(ic, modalFor(form))
		return
	}

	decision, appID, ok := service.ParseReviewAction(data.CustomID)
	if !ok {
		log.Debug("unhandled component")
		return
	}

	_ = r.DeferEphemeral(ic)
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	defer r.step("component." + string(decision))()

	var (
		app domain.Application
		err error
	)
	switch decision {
	case domain.StatusApproved:
		app, err = r.flow.Approve(ctx, actor, appID)
	case domain.StatusRejected:
		app, err = r.flow.Reject(ctx, actor, appID)
	}
	if err != nil {
		r.ReplyEphemeral(ic, service.UserMessage(err))
		return
	}

	if decision == domain.StatusApproved {
		r.ReplyEphemeral(ic, fmt.Sprintf("✅ Approved <@%s>.", app.ApplicantID))
		return
	}
	r.ReplyEphemeral(ic, fmt.Sprintf("❌ Rejected <@%s>.", app.ApplicantID))
}

func (r *Router) handleModalSubmit(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ModalSubmitData()
	if data.CustomID != service.FormApplication {
		return
	}
	defer r.recoverInteraction(ic, r.log.WithField("modal", data.CustomID).WithField("guild", ic.GuildID))

	actor, ok := r.actorFrom(ic)
	if !ok {
		_ = r.SendEphemeral(ic, "❌ This only works inside a server.")
		return
	}

	_ = r.DeferEphemeral(ic)
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	defer r.step("modal.submit")()

	reason := textInputValue(data, service.FieldReason)
	if _, err := r.flow.Submit(ctx, actor, applicantFrom(ic), reason); err != nil {
		r.log.WithError(err).WithField("user", actor.UserID).Warn("submit application")
		r.ReplyEphemeral(ic, service.UserMessage(err))
		return
	}
	r.ReplyEphemeral(ic, "✅ Your application has been submitted! An admin will review it soon.")
}
