package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jose-valero/verification-bot/internal/domain"
)

// MemoryApplicationRepo keeps applications for the life of the process.
// Used when no DATABASE_URL is configured, and in tests.
type MemoryApplicationRepo struct {
	mu   sync.RWMutex
	apps map[string]domain.Application
}

func NewMemoryApplicationRepo() *MemoryApplicationRepo {
	return &MemoryApplicationRepo{apps: map[string]domain.Application{}}
}

func (r *MemoryApplicationRepo) Create(_ context.Context, a domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[a.ID]; ok {
		return ErrConflict
	}
	r.apps[a.ID] = a
	return nil
}

func (r *MemoryApplicationRepo) Get(_ context.Context, id string) (domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	if !ok {
		return domain.Application{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryApplicationRepo) Resolve(_ context.Context, id string, status domain.Status, by string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != domain.StatusPending {
		return ErrConflict
	}
	a.Status = status
	a.ResolvedAt = &at
	a.ResolvedBy = by
	r.apps[id] = a
	return nil
}

func (r *MemoryApplicationRepo) ListPending(_ context.Context, guildID string) ([]domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Application
	for _, a := range r.apps {
		if a.GuildID == guildID && a.Status == domain.StatusPending {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Application) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *MemoryApplicationRepo) PurgeResolved(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, a := range r.apps {
		if a.Status.Terminal() && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(r.apps, id)
			n++
		}
	}
	return n, nil
}
