package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jose-valero/verification-bot/internal/domain"
)

// Component ids. Review buttons carry the application id after the prefix.
const (
	ActionApply       = "verification:apply"
	FormApplication   = "verification:modal"
	FieldReason       = "verification:reason"
	actionApprovePref = "verification:approve:"
	actionRejectPref  = "verification:reject:"
	MaxReasonRunes    = 1000
	colorInfo         = 0x3498DB
	colorApproved     = 0x2ECC71
	colorRejected     = 0xE74C3C
	colorWithdrawn    = 0x95A5A6
	colorWarning      = 0xF1C40F
	accountTimeLayout = "2006-01-02 15:04:05"
)

type ActionStyle int

const (
	StylePrimary ActionStyle = iota
	StyleSuccess
	StyleDanger
)

// Card is what the platform layer turns into an embed plus buttons.
type Card struct {
	Title       string
	Description string
	Color       int
	Fields      []CardField
	Actions     []CardAction // empty: no interactive components
	Timestamp   time.Time
}

type CardField struct {
	Name   string
	Value  string
	Inline bool
}

type CardAction struct {
	ID    string
	Label string
	Emoji string
	Style ActionStyle
}

// FormSpec is the single-field collection form shown on Apply.
type FormSpec struct {
	ID          string
	Title       string
	FieldID     string
	Label       string
	Placeholder string
	MinLength   int
	MaxLength   int
}

func ApproveActionID(appID string) string { return actionApprovePref + appID }
func RejectActionID(appID string) string  { return actionRejectPref + appID }

// ParseReviewAction splits a review button id into its decision and application id.
func ParseReviewAction(customID string) (domain.Status, string, bool) {
	switch {
	case strings.HasPrefix(customID, actionApprovePref):
		id := strings.TrimPrefix(customID, actionApprovePref)
		return domain.StatusApproved, id, id != ""
	case strings.HasPrefix(customID, actionRejectPref):
		id := strings.TrimPrefix(customID, actionRejectPref)
		return domain.StatusRejected, id, id != ""
	}
	return "", "", false
}

func ApplicationForm() FormSpec {
	return FormSpec{
		ID:          FormApplication,
		Title:       "Verification application",
		FieldID:     FieldReason,
		Label:       "Why do you want to join?",
		Placeholder: "Tell us a bit about why you'd like to join this server...",
		MinLength:   1,
		MaxLength:   MaxReasonRunes,
	}
}

func PanelCard() Card {
	return Card{
		Title:       "🔐 Verification",
		Description: "Welcome to the server!\n\nClick the button below to apply for verification. An admin will review your application.",
		Color:       colorInfo,
		Fields: []CardField{{
			Name:  "📝 Notes",
			Value: "• Please answer honestly\n• Wait patiently for a review\n• Duplicate applications may be rejected\n• You'll receive the verified role once approved",
		}},
		Actions: []CardAction{{ID: ActionApply, Label: "Apply for verification", Emoji: "✅", Style: StylePrimary}},
	}
}

func ReviewCard(a domain.Application, who Applicant) Card {
	tag := who.Tag
	if tag == "" {
		tag = who.UserID
	}
	return Card{
		Title:     "🔍 New verification application",
		Color:     colorInfo,
		Timestamp: a.CreatedAt,
		Fields: []CardField{
			{Name: "Applicant", Value: fmt.Sprintf("<@%s>\n`%s (ID: %s)`", a.ApplicantID, tag, a.ApplicantID)},
			{Name: "Reason", Value: a.Reason},
			{Name: "Account", Value: fmt.Sprintf("Created: %s\nJoined: %s", fmtAccountTime(who.CreatedAt), fmtAccountTime(who.JoinedAt))},
		},
		Actions: []CardAction{
			{ID: ApproveActionID(a.ID), Label: "Approve", Emoji: "✅", Style: StyleSuccess},
			{ID: RejectActionID(a.ID), Label: "Reject", Emoji: "❌", Style: StyleDanger},
		},
	}
}

func ApprovedCard(a domain.Application, role Role) Card {
	return Card{
		Title:       "✅ Verification approved",
		Description: fmt.Sprintf("Applicant: <@%s>", a.ApplicantID),
		Color:       colorApproved,
		Timestamp:   resolvedAt(a),
		Fields: []CardField{
			{Name: "Reviewer", Value: fmt.Sprintf("<@%s>", a.ResolvedBy), Inline: true},
			{Name: "Role granted", Value: role.Name, Inline: true},
			{Name: "Reason", Value: a.Reason},
		},
	}
}

func RejectedCard(a domain.Application) Card {
	return Card{
		Title:       "❌ Verification rejected",
		Description: fmt.Sprintf("Applicant: <@%s>", a.ApplicantID),
		Color:       colorRejected,
		Timestamp:   resolvedAt(a),
		Fields: []CardField{
			{Name: "Reviewer", Value: fmt.Sprintf("<@%s>", a.ResolvedBy), Inline: true},
			{Name: "Reason", Value: a.Reason},
		},
	}
}

// WithdrawnCard replaces a review card whose application could not be recorded.
func WithdrawnCard(a domain.Application) Card {
	return Card{
		Title:       "⚠️ Application withdrawn",
		Description: fmt.Sprintf("Applicant: <@%s>\nThis submission could not be saved; the applicant was asked to retry.", a.ApplicantID),
		Color:       colorWithdrawn,
		Timestamp:   a.CreatedAt,
	}
}

func ApprovalNotice(guildName string, role Role, at time.Time) Card {
	if guildName == "" {
		guildName = "the server"
	}
	return Card{
		Title:       "🎉 Verification approved!",
		Description: fmt.Sprintf("Congratulations! Your verification application in **%s** has been approved!", guildName),
		Color:       colorApproved,
		Timestamp:   at,
		Fields:      []CardField{{Name: "Role granted", Value: role.Name}},
	}
}

func resolvedAt(a domain.Application) time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return time.Time{}
}

func fmtAccountTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(accountTimeLayout)
}

// SetupCard summarizes a guild config right after it was changed.
func SetupCard(cfg domain.GuildConfig) Card {
	c := Card{
		Title:     "✅ Verification setup saved",
		Color:     colorApproved,
		Timestamp: cfg.UpdatedAt,
		Fields: []CardField{
			{Name: "Review channel", Value: mentionOr(cfg.ReviewChannelID, "<#%s>"), Inline: true},
			{Name: "Verified role", Value: mentionOr(cfg.VerifiedRoleID, "<@&%s>"), Inline: true},
			{Name: "Admin roles", Value: adminList(cfg.AdminRoleIDs)},
		},
	}
	if cfg.IsComplete() {
		c.Fields = append(c.Fields, CardField{Name: "Next step", Value: "Use `/verify-panel` to post the verification panel."})
	} else {
		c.Color = colorWarning
		c.Fields = append(c.Fields, CardField{Name: "Next step", Value: "Setup is incomplete. Set a review channel, a verified role and at least one admin role."})
	}
	return c
}

// ConfigCard renders /verify-config. Ids that no longer resolve are flagged.
func ConfigCard(v ConfigView) Card {
	status := "✅ Complete"
	color := colorInfo
	if !v.Complete {
		status = "⚠️ Incomplete, use `/verify-setup`"
		color = colorWarning
	}

	admins := make([]string, 0, len(v.AdminRoles))
	for _, r := range v.AdminRoles {
		admins = append(admins, refValue(r, "<@&%s>", "role"))
	}
	adminValue := "Not set"
	if len(admins) > 0 {
		adminValue = strings.Join(admins, "\n")
	}

	return Card{
		Title:     "⚙️ Verification config",
		Color:     color,
		Timestamp: v.Config.UpdatedAt,
		Fields: []CardField{
			{Name: "Review channel", Value: refValue(v.ReviewChannel, "<#%s>", "channel"), Inline: true},
			{Name: "Verified role", Value: refValue(v.VerifiedRole, "<@&%s>", "role"), Inline: true},
			{Name: "Admin roles", Value: adminValue},
			{Name: "Pending applications", Value: fmt.Sprint(v.Pending), Inline: true},
			{Name: "Status", Value: status, Inline: true},
		},
	}
}

func refValue(r ResolvedRef, mention, kind string) string {
	switch {
	case r.ID == "":
		return "Not set"
	case !r.Found:
		return fmt.Sprintf("⚠️ %s missing (ID: %s)", kind, r.ID)
	default:
		return fmt.Sprintf(mention, r.ID)
	}
}

func mentionOr(id, mention string) string {
	if id == "" {
		return "Not set"
	}
	return fmt.Sprintf(mention, id)
}

func adminList(ids []string) string {
	if len(ids) == 0 {
		return "Not set"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("<@&%s>", id)
	}
	return strings.Join(out, " ")
}
