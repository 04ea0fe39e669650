package discord

import "github.com/bwmarrin/discordgo"

// isGuildAdmin is the platform-native capability: guild owner or the
// Administrator bit. Verification admin roles play no part here.
func (r *Router) isGuildAdmin(ic *discordgo.InteractionCreate) bool {
	if ic.Member == nil || ic.Member.User == nil {
		return false
	}

	// Owner
	if g, _ := r.s.State.Guild(ic.GuildID); g != nil && ic.Member.User.ID == g.OwnerID {
		return true
	}

	// Resolved permissions arrive with the interaction.
	if ic.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	// Administrator bit from the member's roles
	roles, _ := r.s.GuildRoles(ic.GuildID)
	var perms int64
	for _, rid := range ic.Member.Roles {
		for _, ro := range roles {
			if ro.ID == rid {
				perms |= ro.Permissions
			}
		}
	}
	return perms&discordgo.PermissionAdministrator != 0
}
