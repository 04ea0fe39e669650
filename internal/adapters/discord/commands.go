package discord

import "github.com/bwmarrin/discordgo"

const (
	cmdSetup  = "verify-setup"
	cmdAdmins = "verify-admins"
	cmdReset  = "verify-reset"
	cmdPanel  = "verify-panel"
	cmdConfig = "verify-config"
)

var textChannels = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        cmdSetup,
		Description: "Set up verification (server admins). Only the options you pass change.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "review_channel",
				Description:  "Channel where applications are reviewed",
				ChannelTypes: textChannels,
			},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "verified_role", Description: "Role granted on approval"},
			{Type: discordgo.ApplicationCommandOptionRole, Name: "admin_role", Description: "Role allowed to review applications"},
		},
	},
	{
		Name:        cmdAdmins,
		Description: "Manage the roles allowed to review applications (server admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a reviewer role",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Reviewer role", Required: true},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a reviewer role",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Reviewer role", Required: true},
				},
			},
		},
	},
	{
		Name:        cmdReset,
		Description: "Forget this server's verification settings (server admins)",
	},
	{
		Name:        cmdPanel,
		Description: "Post the verification panel",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Where to post it (defaults to this channel)",
			ChannelTypes: textChannels,
		}},
	},
	{
		Name:        cmdConfig,
		Description: "Show the current verification settings",
	},
}
