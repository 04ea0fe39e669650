package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/app/service"
)

// Presence is the status line shown under the bot's name.
type Presence struct {
	Type string // playing | watching | listening | competing
	Name string
}

type Router struct {
	s       *discordgo.Session
	guildID string // empty: commands are registered globally

	flow     *service.Workflow
	presence Presence
	log      *logrus.Entry
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	flow *service.Workflow,
	presence Presence,
	log *logrus.Entry,
) *Router {
	return &Router{
		s:        s,
		guildID:  guildID,
		flow:     flow,
		presence: presence,
		log:      log,
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	r.log.WithField("count", len(Commands)).WithField("guild", r.guildID).Info("commands registered")
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		r.log.WithField("user", ev.User.Username).WithField("guilds", len(ev.Guilds)).Info("connected")
		if err := s.UpdateStatusComplex(presenceUpdate(r.presence)); err != nil {
			r.log.WithError(err).Warn("set presence")
		}
	})

	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			r.handleSlashCommand(s, ic)
		case discordgo.InteractionMessageComponent:
			r.handleMessageComponent(s, ic)
		case discordgo.InteractionModalSubmit:
			r.handleModalSubmit(s, ic)
		}
	})
}

var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"watching":  discordgo.ActivityTypeWatching,
	"listening": discordgo.ActivityTypeListening,
	"competing": discordgo.ActivityTypeCompeting,
}

func presenceUpdate(p Presence) discordgo.UpdateStatusData {
	data := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if p.Name == "" {
		return data
	}
	t, ok := activityTypes[strings.ToLower(p.Type)]
	if !ok {
		t = discordgo.ActivityTypeGame
	}
	data.Activities = []*discordgo.Activity{{Name: p.Name, Type: t}}
	return data
}
