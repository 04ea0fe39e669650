package domain

import (
	"slices"
	"time"
)

// Status is the lifecycle of a single verification application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// GuildConfig is the per-guild verification setup. Empty ids mean "unset".
type GuildConfig struct {
	GuildID         string
	ReviewChannelID string
	VerifiedRoleID  string
	AdminRoleIDs    []string
	UpdatedAt       time.Time
}

func (c GuildConfig) IsComplete() bool {
	return c.ReviewChannelID != "" && c.VerifiedRoleID != "" && len(c.AdminRoleIDs) > 0
}

// HasAdminRole is true when any of roles is a configured verification admin role.
// An empty admin set never matches.
func (c GuildConfig) HasAdminRole(roles []string) bool {
	for _, rid := range roles {
		if slices.Contains(c.AdminRoleIDs, rid) {
			return true
		}
	}
	return false
}

// CardRef points at a rendered message so it can be edited later.
type CardRef struct {
	ChannelID string
	MessageID string
}

func (r CardRef) IsZero() bool { return r.ChannelID == "" && r.MessageID == "" }

type Application struct {
	ID          string
	GuildID     string
	ApplicantID string
	Reason      string
	Status      Status
	ReviewCard  CardRef
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	ResolvedBy  string
}
