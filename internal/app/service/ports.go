package service

import (
	"context"
	"errors"
	"time"

	"github.com/jose-valero/verification-bot/internal/domain"
	"github.com/jose-valero/verification-bot/internal/infra/storage"
)

// Returned by Platform implementations; the workflow maps them onto its own taxonomy.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrForbidden       = errors.New("forbidden")
)

type Channel struct {
	ID   string
	Name string
}

type Role struct {
	ID       string
	Name     string
	Position int
}

type Member struct {
	UserID    string
	GuildName string
	RoleIDs   []string
}

// Applicant is what the review card shows about who applied.
type Applicant struct {
	UserID    string
	Tag       string
	CreatedAt time.Time
	JoinedAt  time.Time
}

// Platform is the chat-platform side. Implemented by internal/adapters/discord.
type Platform interface {
	ResolveChannel(ctx context.Context, guildID, channelID string) (Channel, error)
	ResolveRole(ctx context.Context, guildID, roleID string) (Role, error)
	// ResolveMember may hit the API; ErrMemberNotFound only when the user isn't in the guild.
	ResolveMember(ctx context.Context, guildID, userID string) (Member, error)
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	SendDirect(ctx context.Context, userID string, card Card) error
	RenderCard(ctx context.Context, channelID string, card Card) (domain.CardRef, error)
	MutateCard(ctx context.Context, ref domain.CardRef, card Card) error
	BotHighestRolePosition(ctx context.Context, guildID string) (int, error)
}

// Implemented by storage.ApplicationRepo and storage.MemoryApplicationRepo.
type ApplicationRepo interface {
	Create(ctx context.Context, a domain.Application) error
	Get(ctx context.Context, id string) (domain.Application, error)
	Resolve(ctx context.Context, id string, status domain.Status, by string, at time.Time) error
	ListPending(ctx context.Context, guildID string) ([]domain.Application, error)
}

// Implemented by storage.Document.
type ConfigDocument interface {
	Get(key string) (storage.Fields, bool)
	Update(key string, fn func(f storage.Fields) error) error
	Delete(key string) error
}
