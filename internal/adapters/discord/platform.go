package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/domain"
)

// JSON error codes from the Discord API that we translate.
const (
	codeUnknownChannel = 10003
	codeUnknownMember  = 10007
	codeUnknownRole    = 10011
	codeUnknownUser    = 10013
	codeMissingAccess  = 50001
	codeCannotDMUser   = 50007
	codeMissingPerms   = 50013
)

// Platform implements service.Platform on a live session. Reads go to the
// state cache first and fall back to REST.
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform { return &Platform{s: s} }

var _ service.Platform = (*Platform)(nil)

func (p *Platform) ResolveChannel(ctx context.Context, guildID, channelID string) (service.Channel, error) {
	ch, err := p.s.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = p.s.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return service.Channel{}, classify(err, service.ErrChannelNotFound)
		}
		_ = p.s.State.ChannelAdd(ch)
	}
	if ch.GuildID != guildID {
		return service.Channel{}, service.ErrChannelNotFound
	}
	return service.Channel{ID: ch.ID, Name: ch.Name}, nil
}

func (p *Platform) ResolveRole(ctx context.Context, guildID, roleID string) (service.Role, error) {
	if r, err := p.s.State.Role(guildID, roleID); err == nil && r != nil {
		return toRole(r), nil
	}
	roles, err := p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return service.Role{}, classify(err, service.ErrRoleNotFound)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return toRole(r), nil
		}
	}
	return service.Role{}, service.ErrRoleNotFound
}

func (p *Platform) ResolveMember(ctx context.Context, guildID, userID string) (service.Member, error) {
	m, err := p.member(ctx, guildID, userID)
	if err != nil {
		return service.Member{}, err
	}
	return service.Member{UserID: userID, GuildName: p.guildName(ctx, guildID), RoleIDs: m.Roles}, nil
}

func (p *Platform) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := p.s.State.Member(guildID, userID); err == nil && m != nil {
		return m, nil
	}
	m, err := p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, service.ErrMemberNotFound)
	}
	return m, nil
}

func (p *Platform) guildName(ctx context.Context, guildID string) string {
	if g, err := p.s.State.Guild(guildID); err == nil && g != nil && g.Name != "" {
		return g.Name
	}
	if g, err := p.s.Guild(guildID, discordgo.WithContext(ctx)); err == nil {
		return g.Name
	}
	return ""
}

func (p *Platform) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := p.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify(err, service.ErrMemberNotFound)
	}
	return nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, card service.Card) error {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, service.ErrMemberNotFound)
	}
	if _, err := p.s.ChannelMessageSendComplex(ch.ID, messageFor(card), discordgo.WithContext(ctx)); err != nil {
		return classify(err, service.ErrMemberNotFound)
	}
	return nil
}

func (p *Platform) RenderCard(ctx context.Context, channelID string, card service.Card) (domain.CardRef, error) {
	msg, err := p.s.ChannelMessageSendComplex(channelID, messageFor(card), discordgo.WithContext(ctx))
	if err != nil {
		return domain.CardRef{}, classify(err, service.ErrChannelNotFound)
	}
	return domain.CardRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (p *Platform) MutateCard(ctx context.Context, ref domain.CardRef, card service.Card) error {
	if _, err := p.s.ChannelMessageEditComplex(editFor(ref, card), discordgo.WithContext(ctx)); err != nil {
		return classify(err, service.ErrChannelNotFound)
	}
	return nil
}

// BotHighestRolePosition is the top position among the bot's own roles (0 with none).
func (p *Platform) BotHighestRolePosition(ctx context.Context, guildID string) (int, error) {
	if p.s.State == nil || p.s.State.User == nil {
		return 0, errors.New("session not ready")
	}
	m, err := p.member(ctx, guildID, p.s.State.User.ID)
	if err != nil {
		return 0, fmt.Errorf("bot member: %w", err)
	}
	top := 0
	for _, rid := range m.Roles {
		r, err := p.ResolveRole(ctx, guildID, rid)
		if err != nil {
			continue
		}
		top = max(top, r.Position)
	}
	return top, nil
}

func toRole(r *discordgo.Role) service.Role {
	return service.Role{ID: r.ID, Name: r.Name, Position: r.Position}
}

// classify maps Discord REST failures onto the platform sentinels. notFound
// is what an unknown-entity answer means for the call at hand.
func classify(err error, notFound error) error {
	var re *discordgo.RESTError
	if !errors.As(err, &re) {
		return err
	}
	if re.Message != nil {
		switch re.Message.Code {
		case codeUnknownChannel, codeUnknownMember, codeUnknownRole, codeUnknownUser:
			return fmt.Errorf("%w: %v", notFound, err)
		case codeMissingAccess, codeCannotDMUser, codeMissingPerms:
			return fmt.Errorf("%w: %v", service.ErrForbidden, err)
		}
	}
	if re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", notFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", service.ErrForbidden, err)
		}
	}
	return err
}
