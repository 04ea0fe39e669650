package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/domain"
	"github.com/jose-valero/verification-bot/internal/infra/metrics"
)

// Workflow is the entry point for every verification interaction. Each
// method takes the acting identity and returns either a result for the
// adapter to render or a taxonomy error (see UserMessage).
type Workflow struct {
	configs  *ConfigStore
	policy   Policy
	registry *Registry
	platform Platform
	notifier *Notifier
	log      *logrus.Entry

	now   func() time.Time
	newID func() string
}

func NewWorkflow(configs *ConfigStore, registry *Registry, platform Platform, notifier *Notifier, log *logrus.Entry) *Workflow {
	return &Workflow{
		configs:  configs,
		policy:   NewPolicy(configs),
		registry: registry,
		platform: platform,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// ---------- configuration ----------

// Configure merges p into the guild's settings. Guild administrators only.
// A new verified role must sit below the bot's highest role; otherwise
// nothing is written.
func (w *Workflow) Configure(ctx context.Context, actor Actor, p ConfigPatch) (domain.GuildConfig, error) {
	if !w.policy.CanConfigure(actor) {
		return domain.GuildConfig{}, ErrUnauthorized
	}
	if p.VerifiedRoleID != nil && strings.TrimSpace(*p.VerifiedRoleID) != "" {
		if err := w.checkHierarchy(ctx, actor.GuildID, strings.TrimSpace(*p.VerifiedRoleID)); err != nil {
			return domain.GuildConfig{}, err
		}
	}

	cfg, err := w.configs.Update(actor.GuildID, p)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	w.log.WithFields(logrus.Fields{
		"guild":    actor.GuildID,
		"by":       actor.UserID,
		"complete": cfg.IsComplete(),
	}).Info("guild config updated")
	return cfg, nil
}

func (w *Workflow) checkHierarchy(ctx context.Context, guildID, roleID string) error {
	role, err := w.platform.ResolveRole(ctx, guildID, roleID)
	if errors.Is(err, ErrRoleNotFound) {
		return ErrRoleMissing
	}
	if err != nil {
		return fmt.Errorf("resolve role %s: %w", roleID, err)
	}
	top, err := w.platform.BotHighestRolePosition(ctx, guildID)
	if err != nil {
		return fmt.Errorf("bot role position: %w", err)
	}
	if role.Position >= top {
		return ErrInsufficientRoleHierarchy
	}
	return nil
}

// ResetConfig forgets everything stored for the actor's guild.
func (w *Workflow) ResetConfig(ctx context.Context, actor Actor) error {
	if !w.policy.CanConfigure(actor) {
		return ErrUnauthorized
	}
	if err := w.configs.Delete(actor.GuildID); err != nil {
		return err
	}
	w.log.WithField("guild", actor.GuildID).WithField("by", actor.UserID).Info("guild config reset")
	return nil
}

// ConfigView is the read-only projection for /verify-config.
type ConfigView struct {
	Config        domain.GuildConfig
	Complete      bool
	ReviewChannel ResolvedRef
	VerifiedRole  ResolvedRef
	AdminRoles    []ResolvedRef
	Pending       int
}

// ResolvedRef is a configured id plus whether it still exists on the platform.
type ResolvedRef struct {
	ID    string
	Name  string
	Found bool
}

func (w *Workflow) ViewConfig(ctx context.Context, actor Actor) (ConfigView, error) {
	if !w.policy.CanView(actor) {
		return ConfigView{}, ErrUnauthorized
	}
	cfg := w.configs.Get(actor.GuildID)
	v := ConfigView{Config: cfg, Complete: cfg.IsComplete()}

	if cfg.ReviewChannelID != "" {
		v.ReviewChannel = ResolvedRef{ID: cfg.ReviewChannelID}
		if ch, err := w.platform.ResolveChannel(ctx, actor.GuildID, cfg.ReviewChannelID); err == nil {
			v.ReviewChannel.Name, v.ReviewChannel.Found = ch.Name, true
		}
	}
	if cfg.VerifiedRoleID != "" {
		v.VerifiedRole = w.resolveRoleRef(ctx, actor.GuildID, cfg.VerifiedRoleID)
	}
	for _, id := range cfg.AdminRoleIDs {
		v.AdminRoles = append(v.AdminRoles, w.resolveRoleRef(ctx, actor.GuildID, id))
	}

	pending, err := w.registry.ListPending(ctx, actor.GuildID)
	if err != nil {
		w.log.WithError(err).WithField("guild", actor.GuildID).Warn("list pending failed")
	}
	v.Pending = len(pending)
	return v, nil
}

func (w *Workflow) resolveRoleRef(ctx context.Context, guildID, id string) ResolvedRef {
	ref := ResolvedRef{ID: id}
	if r, err := w.platform.ResolveRole(ctx, guildID, id); err == nil {
		ref.Name, ref.Found = r.Name, true
	}
	return ref
}

// ---------- panel & application ----------

// OpenPanel posts the standing Apply panel into channelID.
func (w *Workflow) OpenPanel(ctx context.Context, actor Actor, channelID string) (domain.CardRef, error) {
	if !w.policy.CanView(actor) {
		return domain.CardRef{}, ErrUnauthorized
	}
	if !w.configs.IsComplete(actor.GuildID) {
		return domain.CardRef{}, ErrConfigIncomplete
	}
	ref, err := w.platform.RenderCard(ctx, channelID, PanelCard())
	if err != nil {
		return domain.CardRef{}, fmt.Errorf("render panel: %w", err)
	}
	w.log.WithField("guild", actor.GuildID).WithField("channel", channelID).Info("panel published")
	return ref, nil
}

// Apply answers the panel button: either the collection form or ErrAlreadyVerified.
func (w *Workflow) Apply(_ context.Context, actor Actor) (FormSpec, error) {
	if w.alreadyVerified(actor) {
		return FormSpec{}, ErrAlreadyVerified
	}
	return ApplicationForm(), nil
}

func (w *Workflow) alreadyVerified(actor Actor) bool {
	verified := w.configs.Get(actor.GuildID).VerifiedRoleID
	return verified != "" && slices.Contains(actor.RoleIDs, verified)
}

// Submit turns a filled form into a pending application with a review card.
// Nothing is recorded unless the card was rendered.
func (w *Workflow) Submit(ctx context.Context, actor Actor, who Applicant, reason string) (domain.Application, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n == 0 || n > MaxReasonRunes {
		return domain.Application{}, ErrInvalidReason
	}
	if w.alreadyVerified(actor) {
		return domain.Application{}, ErrAlreadyVerified
	}

	cfg := w.configs.Get(actor.GuildID)
	if cfg.ReviewChannelID == "" {
		return domain.Application{}, ErrReviewChannelMissing
	}
	ch, err := w.platform.ResolveChannel(ctx, actor.GuildID, cfg.ReviewChannelID)
	if errors.Is(err, ErrChannelNotFound) {
		return domain.Application{}, ErrReviewChannelMissing
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("resolve review channel: %w", err)
	}

	app := domain.Application{
		ID:          w.newID(),
		GuildID:     actor.GuildID,
		ApplicantID: actor.UserID,
		Reason:      reason,
		Status:      domain.StatusPending,
		CreatedAt:   w.now().UTC(),
	}
	ref, err := w.platform.RenderCard(ctx, ch.ID, ReviewCard(app, who))
	if errors.Is(err, ErrChannelNotFound) {
		return domain.Application{}, ErrReviewChannelMissing
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("render review card: %w", err)
	}
	app.ReviewCard = ref

	if err := w.registry.Submit(ctx, app); err != nil {
		if mErr := w.platform.MutateCard(ctx, ref, WithdrawnCard(app)); mErr != nil {
			w.log.WithError(mErr).WithField("application", app.ID).Error("withdraw review card failed")
		}
		return domain.Application{}, err
	}

	metrics.ApplicationSubmitted(app.GuildID)
	w.log.WithFields(logrus.Fields{
		"guild":       app.GuildID,
		"applicant":   app.ApplicantID,
		"application": app.ID,
	}).Info("application submitted")
	return app, nil
}

// ---------- adjudication ----------

// Approve grants the verified role exactly once. Failures before the grant
// leave the application pending so a reviewer can retry.
func (w *Workflow) Approve(ctx context.Context, actor Actor, appID string) (domain.Application, error) {
	if !w.policy.CanAdjudicate(actor) {
		return domain.Application{}, ErrUnauthorized
	}

	var (
		role    Role
		member  Member
		granted bool
	)
	app, err := w.registry.Adjudicate(ctx, actor.GuildID, appID, domain.StatusApproved, actor.UserID,
		func(ctx context.Context, a domain.Application) error {
			m, err := w.platform.ResolveMember(ctx, a.GuildID, a.ApplicantID)
			if errors.Is(err, ErrMemberNotFound) {
				return ErrApplicantGone
			}
			if err != nil {
				return fmt.Errorf("resolve applicant %s: %w", a.ApplicantID, err)
			}

			roleID := w.configs.Get(a.GuildID).VerifiedRoleID
			if roleID == "" {
				return ErrRoleUnconfigured
			}
			r, err := w.platform.ResolveRole(ctx, a.GuildID, roleID)
			if errors.Is(err, ErrRoleNotFound) {
				return ErrRoleMissing
			}
			if err != nil {
				return fmt.Errorf("resolve role %s: %w", roleID, err)
			}

			role, member = r, m

			// held already: an earlier approve granted it but did not get recorded
			if slices.Contains(m.RoleIDs, r.ID) {
				granted = true
				return nil
			}
			if err := w.platform.GrantRole(ctx, a.GuildID, a.ApplicantID, r.ID); err != nil {
				metrics.RoleGrant("failed")
				switch {
				case errors.Is(err, ErrForbidden):
					return ErrInsufficientPermission
				case errors.Is(err, ErrMemberNotFound):
					return ErrApplicantGone
				}
				return fmt.Errorf("grant role: %w", err)
			}
			metrics.RoleGrant("ok")
			granted = true
			return nil
		})
	if err != nil {
		entry := w.log.WithError(err).WithField("application", appID).WithField("by", actor.UserID)
		if granted {
			entry.Error("role granted but approval not recorded")
		} else {
			entry.Warn("approve failed")
		}
		return app, err
	}

	metrics.ApplicationResolved(app.GuildID, string(app.Status))
	w.log.WithFields(logrus.Fields{
		"guild":       app.GuildID,
		"applicant":   app.ApplicantID,
		"application": app.ID,
		"by":          actor.UserID,
		"role":        role.Name,
	}).Info("application approved")

	w.notifier.Dispatch(app.ApplicantID, ApprovalNotice(member.GuildName, role, *app.ResolvedAt))
	w.mutateCard(ctx, app, ApprovedCard(app, role))
	return app, nil
}

// Reject closes the application without touching roles or notifying anyone.
func (w *Workflow) Reject(ctx context.Context, actor Actor, appID string) (domain.Application, error) {
	if !w.policy.CanAdjudicate(actor) {
		return domain.Application{}, ErrUnauthorized
	}
	app, err := w.registry.Adjudicate(ctx, actor.GuildID, appID, domain.StatusRejected, actor.UserID, nil)
	if err != nil {
		w.log.WithError(err).WithField("application", appID).WithField("by", actor.UserID).Warn("reject failed")
		return app, err
	}

	metrics.ApplicationResolved(app.GuildID, string(app.Status))
	w.log.WithFields(logrus.Fields{
		"guild":       app.GuildID,
		"applicant":   app.ApplicantID,
		"application": app.ID,
		"by":          actor.UserID,
	}).Info("application rejected")

	w.mutateCard(ctx, app, RejectedCard(app))
	return app, nil
}

// mutateCard runs after the transition is committed, so a failure is only logged.
func (w *Workflow) mutateCard(ctx context.Context, app domain.Application, card Card) {
	if app.ReviewCard.IsZero() {
		return
	}
	if err := w.platform.MutateCard(ctx, app.ReviewCard, card); err != nil {
		w.log.WithError(err).WithField("application", app.ID).Error("update review card failed")
	}
}
