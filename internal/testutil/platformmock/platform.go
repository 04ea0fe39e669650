package platformmock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/domain"
)

// Platform is a function-backed mock that satisfies service.Platform.
// Unset funcs succeed with a plausible value; every call is counted.
type Platform struct {
	ResolveChannelFn         func(ctx context.Context, guildID, channelID string) (service.Channel, error)
	ResolveRoleFn            func(ctx context.Context, guildID, roleID string) (service.Role, error)
	ResolveMemberFn          func(ctx context.Context, guildID, userID string) (service.Member, error)
	GrantRoleFn              func(ctx context.Context, guildID, userID, roleID string) error
	SendDirectFn             func(ctx context.Context, userID string, card service.Card) error
	RenderCardFn             func(ctx context.Context, channelID string, card service.Card) (domain.CardRef, error)
	MutateCardFn             func(ctx context.Context, ref domain.CardRef, card service.Card) error
	BotHighestRolePositionFn func(ctx context.Context, guildID string) (int, error)

	Grants  atomic.Int32
	Renders atomic.Int32
	Directs atomic.Int32
	msgSeq  atomic.Int64

	mu        sync.Mutex
	mutations []Mutation
}

// Mutation is one recorded MutateCard call.
type Mutation struct {
	Ref  domain.CardRef
	Card service.Card
}

var _ service.Platform = (*Platform)(nil)

func (m *Platform) ResolveChannel(ctx context.Context, guildID, channelID string) (service.Channel, error) {
	if m.ResolveChannelFn != nil {
		return m.ResolveChannelFn(ctx, guildID, channelID)
	}
	return service.Channel{ID: channelID, Name: "channel-" + channelID}, nil
}

func (m *Platform) ResolveRole(ctx context.Context, guildID, roleID string) (service.Role, error) {
	if m.ResolveRoleFn != nil {
		return m.ResolveRoleFn(ctx, guildID, roleID)
	}
	return service.Role{ID: roleID, Name: "role-" + roleID, Position: 1}, nil
}

func (m *Platform) ResolveMember(ctx context.Context, guildID, userID string) (service.Member, error) {
	if m.ResolveMemberFn != nil {
		return m.ResolveMemberFn(ctx, guildID, userID)
	}
	return service.Member{UserID: userID, GuildName: "guild-" + guildID}, nil
}

func (m *Platform) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if m.GrantRoleFn != nil {
		if err := m.GrantRoleFn(ctx, guildID, userID, roleID); err != nil {
			return err
		}
	}
	m.Grants.Add(1)
	return nil
}

func (m *Platform) SendDirect(ctx context.Context, userID string, card service.Card) error {
	m.Directs.Add(1)
	if m.SendDirectFn != nil {
		return m.SendDirectFn(ctx, userID, card)
	}
	return nil
}

func (m *Platform) RenderCard(ctx context.Context, channelID string, card service.Card) (domain.CardRef, error) {
	if m.RenderCardFn != nil {
		ref, err := m.RenderCardFn(ctx, channelID, card)
		if err == nil {
			m.Renders.Add(1)
		}
		return ref, err
	}
	m.Renders.Add(1)
	return domain.CardRef{ChannelID: channelID, MessageID: fmt.Sprintf("msg-%d", m.msgSeq.Add(1))}, nil
}

func (m *Platform) MutateCard(ctx context.Context, ref domain.CardRef, card service.Card) error {
	if m.MutateCardFn != nil {
		if err := m.MutateCardFn(ctx, ref, card); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.mutations = append(m.mutations, Mutation{Ref: ref, Card: card})
	m.mu.Unlock()
	return nil
}

func (m *Platform) BotHighestRolePosition(ctx context.Context, guildID string) (int, error) {
	if m.BotHighestRolePositionFn != nil {
		return m.BotHighestRolePositionFn(ctx, guildID)
	}
	return 10, nil
}

// Mutations returns the successful MutateCard calls in order.
func (m *Platform) Mutations() []Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mutation(nil), m.mutations...)
}
