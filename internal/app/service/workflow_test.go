package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/domain"
	"github.com/jose-valero/verification-bot/internal/infra/storage"
	"github.com/jose-valero/verification-bot/internal/testutil/platformmock"
)

const (
	guild        = "g1"
	reviewChan   = "C"
	verifiedRole = "R"
	adminRole    = "A"
)

type fixture struct {
	flow     *service.Workflow
	configs  *service.ConfigStore
	platform *platformmock.Platform
	notifier *service.Notifier
	hook     *test.Hook
}

func newFixture(t *testing.T, p *platformmock.Platform) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, p, storage.NewMemoryApplicationRepo())
}

func newFixtureWithRepo(t *testing.T, p *platformmock.Platform, repo service.ApplicationRepo) *fixture {
	t.Helper()
	l, hook := test.NewNullLogger()
	log := logrus.NewEntry(l)

	doc := storage.OpenDocument(filepath.Join(t.TempDir(), "server_data.json"), log)
	configs := service.NewConfigStore(doc, log)
	notifier := service.NewNotifier(p, log)
	flow := service.NewWorkflow(configs, service.NewRegistry(repo), p, notifier, log)
	return &fixture{flow: flow, configs: configs, platform: p, notifier: notifier, hook: hook}
}

func strp(s string) *string { return &s }

func owner() service.Actor {
	return service.Actor{UserID: "owner", GuildID: guild, GuildAdmin: true}
}

func reviewer() service.Actor {
	return service.Actor{UserID: "rev", GuildID: guild, RoleIDs: []string{adminRole}}
}

func applicant() service.Actor {
	return service.Actor{UserID: "newbie", GuildID: guild}
}

func (f *fixture) configure(t *testing.T) {
	t.Helper()
	_, err := f.flow.Configure(context.Background(), owner(), service.ConfigPatch{
		ReviewChannelID: strp(reviewChan),
		VerifiedRoleID:  strp(verifiedRole),
		AdminRoleIDs:    &[]string{adminRole},
	})
	require.NoError(t, err)
}

func (f *fixture) submit(t *testing.T) domain.Application {
	t.Helper()
	a := applicant()
	app, err := f.flow.Submit(context.Background(), a, service.Applicant{UserID: a.UserID, Tag: "newbie"}, "test")
	require.NoError(t, err)
	return app
}

func TestWorkflow_FullScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &platformmock.Platform{})

	_, err := f.flow.OpenPanel(ctx, owner(), "lobby")
	assert.ErrorIs(t, err, service.ErrConfigIncomplete)

	f.configure(t)
	assert.True(t, f.configs.IsComplete(guild))

	ref, err := f.flow.OpenPanel(ctx, owner(), "lobby")
	require.NoError(t, err)
	assert.Equal(t, "lobby", ref.ChannelID)

	form, err := f.flow.Apply(ctx, applicant())
	require.NoError(t, err)
	assert.Equal(t, service.FormApplication, form.ID)

	app := f.submit(t)
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Equal(t, reviewChan, app.ReviewCard.ChannelID)
	assert.EqualValues(t, 2, f.platform.Renders.Load())

	approved, err := f.flow.Approve(ctx, reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "rev", approved.ResolvedBy)
	assert.EqualValues(t, 1, f.platform.Grants.Load())

	muts := f.platform.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, app.ReviewCard, muts[0].Ref)
	assert.Empty(t, muts[0].Card.Actions)

	_, err = f.flow.Approve(ctx, reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
	assert.EqualValues(t, 1, f.platform.Grants.Load())
	assert.Len(t, f.platform.Mutations(), 1)

	f.notifier.Wait()
	assert.EqualValues(t, 1, f.platform.Directs.Load())
}

func TestWorkflow_RejectIsTerminalToo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	app := f.submit(t)

	rejected, err := f.flow.Reject(ctx, reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	muts := f.platform.Mutations()
	require.Len(t, muts, 1)
	assert.Empty(t, muts[0].Card.Actions)

	_, err = f.flow.Approve(ctx, reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
	_, err = f.flow.Reject(ctx, reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)

	assert.Zero(t, f.platform.Grants.Load())
	f.notifier.Wait()
	assert.Zero(t, f.platform.Directs.Load())
}

func TestWorkflow_ConcurrentApproveGrantsOnce(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	app := f.submit(t)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.flow.Approve(context.Background(), reviewer(), app.ID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, service.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, ok)
	assert.EqualValues(t, 1, f.platform.Grants.Load())
	assert.Len(t, f.platform.Mutations(), 1)
	f.notifier.Wait()
}

func TestWorkflow_ApproveRejectRaceHasOneWinner(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	app := f.submit(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.flow.Approve(context.Background(), reviewer(), app.ID)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.flow.Reject(context.Background(), reviewer(), app.ID)
	}()
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, service.ErrAlreadyResolved)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Len(t, f.platform.Mutations(), 1)
	f.notifier.Wait()
}

func TestWorkflow_ReviewChannelGoneCreatesNothing(t *testing.T) {
	p := &platformmock.Platform{
		ResolveChannelFn: func(context.Context, string, string) (service.Channel, error) {
			return service.Channel{}, service.ErrChannelNotFound
		},
	}
	f := newFixture(t, p)
	f.configure(t)

	a := applicant()
	_, err := f.flow.Submit(context.Background(), a, service.Applicant{UserID: a.UserID}, "test")
	assert.ErrorIs(t, err, service.ErrReviewChannelMissing)
	assert.Zero(t, p.Renders.Load())

	v, err := f.flow.ViewConfig(context.Background(), reviewer())
	require.NoError(t, err)
	assert.Zero(t, v.Pending)
	assert.False(t, v.ReviewChannel.Found)
}

func TestWorkflow_SubmitPersistFailureWithdrawsCard(t *testing.T) {
	l, _ := test.NewNullLogger()
	log := logrus.NewEntry(l)
	p := &platformmock.Platform{}

	doc := storage.OpenDocument(filepath.Join(t.TempDir(), "server_data.json"), log)
	configs := service.NewConfigStore(doc, log)
	flow := service.NewWorkflow(configs, service.NewRegistry(failingRepo{}), p, service.NewNotifier(p, log), log)
	_, err := flow.Configure(context.Background(), owner(), service.ConfigPatch{
		ReviewChannelID: strp(reviewChan),
		VerifiedRoleID:  strp(verifiedRole),
		AdminRoleIDs:    &[]string{adminRole},
	})
	require.NoError(t, err)

	a := applicant()
	_, err = flow.Submit(context.Background(), a, service.Applicant{UserID: a.UserID}, "test")
	var pe *service.PersistError
	require.True(t, errors.As(err, &pe))

	muts := p.Mutations()
	require.Len(t, muts, 1)
	assert.Empty(t, muts[0].Card.Actions)
}

func TestWorkflow_SubmitValidatesReason(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	a := applicant()

	for _, reason := range []string{"", "   ", string(make([]rune, service.MaxReasonRunes+1))} {
		_, err := f.flow.Submit(context.Background(), a, service.Applicant{UserID: a.UserID}, reason)
		assert.ErrorIs(t, err, service.ErrInvalidReason)
	}
	assert.Zero(t, f.platform.Renders.Load())
}

func TestWorkflow_AlreadyVerified(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	a := service.Actor{UserID: "vet", GuildID: guild, RoleIDs: []string{verifiedRole}}

	_, err := f.flow.Apply(context.Background(), a)
	assert.ErrorIs(t, err, service.ErrAlreadyVerified)
	_, err = f.flow.Submit(context.Background(), a, service.Applicant{UserID: a.UserID}, "again")
	assert.ErrorIs(t, err, service.ErrAlreadyVerified)
}

func TestWorkflow_ApproveFailuresKeepPending(t *testing.T) {
	tests := []struct {
		name string
		p    *platformmock.Platform
		want error
	}{
		{
			name: "applicant left",
			p: &platformmock.Platform{ResolveMemberFn: func(context.Context, string, string) (service.Member, error) {
				return service.Member{}, service.ErrMemberNotFound
			}},
			want: service.ErrApplicantGone,
		},
		{
			name: "role deleted",
			p: &platformmock.Platform{ResolveRoleFn: func(context.Context, string, string) (service.Role, error) {
				return service.Role{}, service.ErrRoleNotFound
			}},
			want: service.ErrRoleMissing,
		},
		{
			name: "applicant left before grant",
			p: &platformmock.Platform{GrantRoleFn: func(context.Context, string, string, string) error {
				return service.ErrMemberNotFound
			}},
			want: service.ErrApplicantGone,
		},
		{
			name: "grant forbidden",
			p: &platformmock.Platform{GrantRoleFn: func(context.Context, string, string, string) error {
				return service.ErrForbidden
			}},
			want: service.ErrInsufficientPermission,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.p)
			// straight to the store: Configure's hierarchy check would trip over the failing lookup
			_, err := f.configs.Update(guild, service.ConfigPatch{
				ReviewChannelID: strp(reviewChan),
				VerifiedRoleID:  strp(verifiedRole),
				AdminRoleIDs:    &[]string{adminRole},
			})
			require.NoError(t, err)
			app := f.submit(t)

			_, err = f.flow.Approve(context.Background(), reviewer(), app.ID)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, tt.p.Grants.Load())
			assert.Empty(t, tt.p.Mutations())

			v, err := f.flow.ViewConfig(context.Background(), reviewer())
			require.NoError(t, err)
			assert.Equal(t, 1, v.Pending)

			// once the platform recovers the same application can be approved
			tt.p.ResolveMemberFn, tt.p.ResolveRoleFn, tt.p.GrantRoleFn = nil, nil, nil
			_, err = f.flow.Approve(context.Background(), reviewer(), app.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 1, tt.p.Grants.Load())
			f.notifier.Wait()
		})
	}
}

func TestWorkflow_ApproveWithoutRoleConfigured(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	app := f.submit(t)

	_, err := f.flow.Configure(context.Background(), owner(), service.ConfigPatch{VerifiedRoleID: strp("")})
	require.NoError(t, err)

	_, err = f.flow.Approve(context.Background(), reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrRoleUnconfigured)
}

func TestWorkflow_NotifyFailureDoesNotFailApprove(t *testing.T) {
	p := &platformmock.Platform{SendDirectFn: func(context.Context, string, service.Card) error {
		return service.ErrForbidden
	}}
	f := newFixture(t, p)
	f.configure(t)
	app := f.submit(t)

	approved, err := f.flow.Approve(context.Background(), reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	f.notifier.Wait()
	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == service.ErrNotifyFailed.Error() {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestWorkflow_CardMutationFailureKeepsTransition(t *testing.T) {
	p := &platformmock.Platform{MutateCardFn: func(context.Context, domain.CardRef, service.Card) error {
		return errors.New("message deleted")
	}}
	f := newFixture(t, p)
	f.configure(t)
	app := f.submit(t)

	rejected, err := f.flow.Reject(context.Background(), reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.flow.Reject(context.Background(), reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
}

func TestWorkflow_AuthorizationSeparation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	app := f.submit(t)

	_, err := f.flow.Approve(ctx, owner(), app.ID)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = f.flow.Reject(ctx, owner(), app.ID)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = f.flow.Configure(ctx, reviewer(), service.ConfigPatch{ReviewChannelID: strp("other")})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.ErrorIs(t, f.flow.ResetConfig(ctx, reviewer()), service.ErrUnauthorized)

	_, err = f.flow.OpenPanel(ctx, applicant(), "lobby")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = f.flow.ViewConfig(ctx, applicant())
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = f.flow.OpenPanel(ctx, reviewer(), "lobby")
	assert.NoError(t, err)
}

func TestWorkflow_ConfigureChecksRoleHierarchy(t *testing.T) {
	p := &platformmock.Platform{
		ResolveRoleFn: func(_ context.Context, _, id string) (service.Role, error) {
			return service.Role{ID: id, Name: "Verified", Position: 10}, nil
		},
		BotHighestRolePositionFn: func(context.Context, string) (int, error) { return 10, nil },
	}
	f := newFixture(t, p)

	_, err := f.flow.Configure(context.Background(), owner(), service.ConfigPatch{
		ReviewChannelID: strp(reviewChan),
		VerifiedRoleID:  strp(verifiedRole),
	})
	assert.ErrorIs(t, err, service.ErrInsufficientRoleHierarchy)

	cfg := f.configs.Get(guild)
	assert.Empty(t, cfg.ReviewChannelID)
	assert.Empty(t, cfg.VerifiedRoleID)
}

func TestWorkflow_ViewConfigFlagsMissingRefs(t *testing.T) {
	p := &platformmock.Platform{}
	f := newFixture(t, p)
	f.configure(t)
	f.submit(t)

	// verified role deleted after setup
	p.ResolveRoleFn = func(_ context.Context, _, id string) (service.Role, error) {
		if id == verifiedRole {
			return service.Role{}, service.ErrRoleNotFound
		}
		return service.Role{ID: id, Name: "role-" + id, Position: 1}, nil
	}

	v, err := f.flow.ViewConfig(context.Background(), reviewer())
	require.NoError(t, err)
	assert.True(t, v.Complete)
	assert.True(t, v.ReviewChannel.Found)
	assert.Equal(t, "channel-"+reviewChan, v.ReviewChannel.Name)
	assert.False(t, v.VerifiedRole.Found)
	assert.Equal(t, verifiedRole, v.VerifiedRole.ID)
	require.Len(t, v.AdminRoles, 1)
	assert.True(t, v.AdminRoles[0].Found)
	assert.Equal(t, 1, v.Pending)
}

func TestWorkflow_ResetConfig(t *testing.T) {
	f := newFixture(t, &platformmock.Platform{})
	f.configure(t)
	require.NoError(t, f.flow.ResetConfig(context.Background(), owner()))
	assert.False(t, f.configs.IsComplete(guild))
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, domain.Application) error {
	return errors.New("db down")
}

func (failingRepo) Get(context.Context, string) (domain.Application, error) {
	return domain.Application{}, storage.ErrNotFound
}

func (failingRepo) Resolve(context.Context, string, domain.Status, string, time.Time) error {
	return errors.New("db down")
}

func (failingRepo) ListPending(context.Context, string) ([]domain.Application, error) {
	return nil, errors.New("db down")
}

// flakyRepo fails the next n Resolve calls.
type flakyRepo struct {
	*storage.MemoryApplicationRepo
	failures atomic.Int32
}

func (r *flakyRepo) Resolve(ctx context.Context, id string, status domain.Status, by string, at time.Time) error {
	if r.failures.Add(-1) >= 0 {
		return errors.New("db down")
	}
	return r.MemoryApplicationRepo.Resolve(ctx, id, status, by, at)
}

// grantingPlatform reports the verified role on the member once it was granted.
func grantingPlatform() *platformmock.Platform {
	var held atomic.Bool
	p := &platformmock.Platform{}
	p.GrantRoleFn = func(context.Context, string, string, string) error {
		held.Store(true)
		return nil
	}
	p.ResolveMemberFn = func(_ context.Context, gid, uid string) (service.Member, error) {
		m := service.Member{UserID: uid, GuildName: "guild-" + gid}
		if held.Load() {
			m.RoleIDs = []string{verifiedRole}
		}
		return m, nil
	}
	return p
}

func TestWorkflow_ApproveCommitRetriedAfterGrant(t *testing.T) {
	repo := &flakyRepo{MemoryApplicationRepo: storage.NewMemoryApplicationRepo()}
	p := grantingPlatform()
	f := newFixtureWithRepo(t, p, repo)
	f.configure(t)
	app := f.submit(t)

	repo.failures.Store(1)
	approved, err := f.flow.Approve(context.Background(), reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.EqualValues(t, 1, p.Grants.Load())
	f.notifier.Wait()
}

func TestWorkflow_ApproveAfterLostCommitDoesNotGrantTwice(t *testing.T) {
	repo := &flakyRepo{MemoryApplicationRepo: storage.NewMemoryApplicationRepo()}
	p := grantingPlatform()
	f := newFixtureWithRepo(t, p, repo)
	f.configure(t)
	app := f.submit(t)

	repo.failures.Store(100)
	_, err := f.flow.Approve(context.Background(), reviewer(), app.ID)
	var pe *service.PersistError
	require.ErrorAs(t, err, &pe)
	assert.EqualValues(t, 1, p.Grants.Load())
	assert.Empty(t, p.Mutations())

	repo.failures.Store(0)
	approved, err := f.flow.Approve(context.Background(), reviewer(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.EqualValues(t, 1, p.Grants.Load())
	assert.Len(t, p.Mutations(), 1)
	f.notifier.Wait()
}

// ctxRepo refuses writes on a done context, like a database driver would.
type ctxRepo struct {
	*storage.MemoryApplicationRepo
}

func (r ctxRepo) Resolve(ctx context.Context, id string, status domain.Status, by string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryApplicationRepo.Resolve(ctx, id, status, by, at)
}

func TestWorkflow_ApproveCommitsAfterCallerGivesUp(t *testing.T) {
	p := grantingPlatform()
	f := newFixtureWithRepo(t, p, ctxRepo{storage.NewMemoryApplicationRepo()})
	f.configure(t)
	app := f.submit(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.GrantRoleFn = func(context.Context, string, string, string) error {
		// the interaction deadline passes while the grant is in flight
		cancel()
		return nil
	}

	_, err := f.flow.Approve(ctx, reviewer(), app.ID)
	require.NoError(t, err)

	_, err = f.flow.Approve(context.Background(), reviewer(), app.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
	assert.EqualValues(t, 1, p.Grants.Load())
	f.notifier.Wait()
}
