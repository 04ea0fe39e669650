package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jose-valero/verification-bot/internal/domain"
	"github.com/jose-valero/verification-bot/internal/infra/storage"
)

// Registry owns application state and its transitions. Adjudication on one
// application is serialized; everything else is a plain repo call.
type Registry struct {
	repo  ApplicationRepo
	locks *keyedMutex
	now   func() time.Time

	// commitBackoff paces Resolve retries once an effect has already run.
	commitBackoff func() retry.Backoff
}

func NewRegistry(repo ApplicationRepo) *Registry {
	return &Registry{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
		commitBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
		},
	}
}

// Submit records a new pending application.
func (r *Registry) Submit(ctx context.Context, a domain.Application) error {
	if a.Status != domain.StatusPending {
		return fmt.Errorf("submit %s: status %q", a.ID, a.Status)
	}
	if err := r.repo.Create(ctx, a); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.Application, error) {
	a, err := r.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Application{}, ErrApplicationNotFound
	}
	return a, err
}

func (r *Registry) ListPending(ctx context.Context, guildID string) ([]domain.Application, error) {
	return r.repo.ListPending(ctx, guildID)
}

// Adjudicate moves application id (which must belong to guildID) from
// Pending to status. effect runs under the per-application lock before the
// transition is committed; if it fails the application stays Pending and the
// error is returned as is. Once effect has succeeded the commit no longer
// follows ctx cancellation and transient write failures are retried.
// A terminal application yields ErrAlreadyResolved without calling effect.
func (r *Registry) Adjudicate(
	ctx context.Context,
	guildID, id string,
	status domain.Status,
	reviewerID string,
	effect func(ctx context.Context, a domain.Application) error,
) (domain.Application, error) {
	if !status.Terminal() {
		return domain.Application{}, fmt.Errorf("adjudicate %s: %q is not terminal", id, status)
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	a, err := r.Get(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if a.GuildID != guildID {
		return domain.Application{}, ErrApplicationNotFound
	}
	if a.Status.Terminal() {
		return a, ErrAlreadyResolved
	}

	if effect != nil {
		if err := effect(ctx, a); err != nil {
			return a, err
		}
	}

	at := r.now().UTC()
	err = retry.Do(context.WithoutCancel(ctx), r.commitBackoff(), func(ctx context.Context) error {
		err := r.repo.Resolve(ctx, id, status, reviewerID, at)
		if err == nil || errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	switch {
	case errors.Is(err, storage.ErrConflict):
		return a, ErrAlreadyResolved
	case errors.Is(err, storage.ErrNotFound):
		return a, ErrApplicationNotFound
	case err != nil:
		return a, &PersistError{Err: err}
	}

	a.Status = status
	a.ResolvedAt = &at
	a.ResolvedBy = reviewerID
	return a, nil
}
