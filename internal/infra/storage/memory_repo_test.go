package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/verification-bot/internal/domain"
)

func TestMemoryApplicationRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryApplicationRepo()
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Create(ctx, domain.Application{ID: "b", GuildID: "g", Status: domain.StatusPending, CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, r.Create(ctx, domain.Application{ID: "a", GuildID: "g", Status: domain.StatusPending, CreatedAt: t0}))
	require.NoError(t, r.Create(ctx, domain.Application{ID: "x", GuildID: "other", Status: domain.StatusPending, CreatedAt: t0}))
	assert.ErrorIs(t, r.Create(ctx, domain.Application{ID: "a"}), ErrConflict)

	pending, err := r.ListPending(ctx, "g")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)

	require.NoError(t, r.Resolve(ctx, "a", domain.StatusApproved, "rev", t0.Add(time.Hour)))
	assert.ErrorIs(t, r.Resolve(ctx, "a", domain.StatusRejected, "rev", t0), ErrConflict)
	assert.ErrorIs(t, r.Resolve(ctx, "zzz", domain.StatusRejected, "rev", t0), ErrNotFound)

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "rev", got.ResolvedBy)

	n, err := r.PurgeResolved(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = r.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
