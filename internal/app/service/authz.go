package service

// Actor is whoever triggered an interaction, as seen from one guild.
type Actor struct {
	UserID  string
	GuildID string
	RoleIDs []string
	// GuildAdmin is the platform's own administrator capability (owner or
	// Administrator permission). Never derived from the verification admin roles.
	GuildAdmin bool
}

type AdminChecker interface {
	IsAuthorizedAdmin(roles []string, guildID string) bool
}

// Policy holds no state of its own.
type Policy struct {
	admins AdminChecker
}

func NewPolicy(admins AdminChecker) Policy { return Policy{admins: admins} }

func (p Policy) CanConfigure(a Actor) bool { return a.GuildAdmin }

func (p Policy) CanAdjudicate(a Actor) bool {
	return p.admins.IsAuthorizedAdmin(a.RoleIDs, a.GuildID)
}

// CanView: either capability is enough for read-only access and the panel.
func (p Policy) CanView(a Actor) bool {
	return p.CanConfigure(a) || p.CanAdjudicate(a)
}
