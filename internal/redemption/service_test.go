// AngelaMos | 2026
// service_test.go

package redemption_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/catalog"
	"github.com/carterperez-dev/entitlement-engine/internal/core/coretest"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption/redemptiontest"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription/subscriptiontest"
)

type fakeUsers struct {
	mu        sync.Mutex
	byDevice  map[string]string
	trialUsed map[string]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byDevice:  make(map[string]string),
		trialUsed: make(map[string]bool),
	}
}

func (f *fakeUsers) bind(deviceID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDevice[deviceID] = userID
}

func (f *fakeUsers) ResolveUser(_ context.Context, deviceID, _ string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byDevice[deviceID]
	if !ok {
		id = "user-" + deviceID
		f.byDevice[deviceID] = id
	}
	return &identity.User{ID: id, Role: identity.RoleUser, TrialUsed: f.trialUsed[id]}, nil
}

func (f *fakeUsers) MarkTrialUsed(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trialUsed[userID] = true
	return nil
}

type tokenResolver struct{}

func (tokenResolver) Resolve(_ context.Context, input string) (catalog.Resolution, error) {
	return catalog.Resolution{
		ContentID: catalog.NormalizeToken(input),
		Aliases:   catalog.Aliases(input),
	}, nil
}

type fixture struct {
	svc   *redemption.Service
	codes *redemptiontest.Repository
	subs  *subscriptiontest.Repository
	users *fakeUsers
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codes := redemptiontest.NewRepository()
	subs := subscriptiontest.NewRepository()
	users := newFakeUsers()

	svc := redemption.NewService(
		codes,
		&coretest.Transactor{},
		users,
		tokenResolver{},
		subscription.NewService(subs, logger),
		logger,
	)

	return &fixture{svc: svc, codes: codes, subs: subs, users: users}
}

func ptr[T any](v T) *T { return &v }

func TestRedeemCreatesSubscriptionFromCode(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{
		ID: "c1", Code: "ABCD2345", Plan: subscription.PlanWeekly,
		DurationDays: 7, MaxDevices: 2, Source: redemption.SourceAdmin,
	})

	before := time.Now()
	res, err := f.svc.Redeem(context.Background(), "  abcd2345 ", "device-aaaa", "tv")
	require.NoError(t, err)

	assert.Equal(t, redemption.KindSubscription, res.Kind)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, "user-device-aaaa", res.Subscription.UserID)
	assert.Equal(t, 2, res.Subscription.MaxDevices)
	assert.WithinDuration(t, before.Add(7*24*time.Hour), res.ExpiresAt(), 5*time.Second)
	require.NotNil(t, res.Subscription.CodeID)
	assert.Equal(t, "c1", *res.Subscription.CodeID)

	code, err := f.codes.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, code.UsedByUserID)
	assert.Equal(t, "user-device-aaaa", *code.UsedByUserID)

	_, err = f.svc.Redeem(context.Background(), "ABCD2345", "device-bbbb", "")
	require.ErrorIs(t, err, redemption.ErrAlreadyUsed)
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{
		ID: "c1", Code: "RACE2345", Plan: subscription.PlanMonthly,
		DurationDays: 30, MaxDevices: 3,
	})

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Redeem(context.Background(), "RACE2345",
				"device-"+strings.Repeat(string(rune('a'+i)), 8), "")
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, redemption.ErrAlreadyUsed)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.subs.Len())
}

func TestRedeemRejections(t *testing.T) {
	f := newFixture()
	past := time.Now().Add(-time.Hour)
	f.codes.Put(redemption.Code{ID: "exp", Code: "EXPIRED2", Plan: subscription.PlanWeekly, DurationDays: 7, MaxDevices: 2, ExpiresAt: &past})
	f.codes.Put(redemption.Code{ID: "rev", Code: "REVOKED2", Plan: subscription.PlanWeekly, DurationDays: 7, MaxDevices: 2, RevokedAt: &past})

	ctx := context.Background()

	_, err := f.svc.Redeem(ctx, "EXPIRED2", "device-0001", "")
	require.ErrorIs(t, err, redemption.ErrCodeExpired)

	_, err = f.svc.Redeem(ctx, "REVOKED2", "device-0001", "")
	require.ErrorIs(t, err, redemption.ErrCodeNotFound)

	_, err = f.svc.Redeem(ctx, "NOPE2345", "device-0001", "")
	require.ErrorIs(t, err, redemption.ErrCodeNotFound)

	assert.Zero(t, f.subs.Len())
}

func TestRedeemIgnoresBoundDeviceCount(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{ID: "lim", Code: "LIMITED2", Plan: subscription.PlanMatch, DurationDays: 1, MaxDevices: 1})
	f.users.bind("device-0002", "family")
	f.users.bind("device-0003", "family")

	res, err := f.svc.Redeem(context.Background(), "LIMITED2", "device-0002", "")
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, "family", res.Subscription.UserID)
	assert.Equal(t, 1, res.Subscription.MaxDevices)
	assert.Equal(t, 1, f.subs.Len())
}

func TestTrialCodeGrantsOncePerUserAndDevice(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{
		ID: "t1", Code: "TRIAL234", Plan: subscription.PlanMatch, DurationDays: 1, MaxDevices: 1,
		TrialHours: 2, TrialContentID: "/movies/The-Matrix/play", TrialTitle: "The Matrix",
	})
	ctx := context.Background()

	res, err := f.svc.Redeem(ctx, "trial234", "device-0001", "")
	require.NoError(t, err)
	assert.Equal(t, redemption.KindTrial, res.Kind)
	require.NotNil(t, res.Trial)
	assert.Equal(t, "the-matrix", res.Trial.ContentID)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), res.ExpiresAt(), 5*time.Second)
	assert.True(t, f.users.trialUsed["user-device-0001"])

	_, err = f.svc.Redeem(ctx, "TRIAL234", "device-0001", "")
	require.ErrorIs(t, err, redemption.ErrTrialAlreadyUsed)

	_, err = f.svc.Redeem(ctx, "TRIAL234", "device-0002", "")
	require.NoError(t, err, "campaign codes serve every new viewer")
	assert.Equal(t, 2, f.codes.Grants())

	code, err := f.codes.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, code.UsedByUserID)
	assert.Zero(t, f.subs.Len())
}

func TestTrialAccessMatchesAliases(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{
		ID: "t1", Code: "TRIAL234", Plan: subscription.PlanMatch, DurationDays: 1, MaxDevices: 1,
		TrialHours: 4, TrialContentID: "the-matrix",
	})
	ctx := context.Background()

	_, err := f.svc.Redeem(ctx, "TRIAL234", "device-0001", "")
	require.NoError(t, err)

	status, err := f.svc.TrialAccess(ctx, "user-device-0001", "The Matrix")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.InDelta(t, 4*3600, status.RemainingSeconds, 5)

	other, err := f.svc.TrialAccess(ctx, "user-device-0001", "inception")
	require.NoError(t, err)
	assert.False(t, other.Active)

	nobody, err := f.svc.TrialAccess(ctx, "user-device-0009", "the-matrix")
	require.NoError(t, err)
	assert.False(t, nobody.Active)
}

func TestRevokeCodeRevokesSubscription(t *testing.T) {
	f := newFixture()
	f.codes.Put(redemption.Code{ID: "c1", Code: "REVOKE23", Plan: subscription.PlanYearly, DurationDays: 365, MaxDevices: 5})
	ctx := context.Background()

	res, err := f.svc.Redeem(ctx, "REVOKE23", "device-0001", "")
	require.NoError(t, err)

	n, err := f.svc.RevokeCode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sub, err := f.subs.GetByID(ctx, res.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusRevoked, sub.Status)

	_, err = f.svc.RevokeCode(ctx, "missing")
	require.Error(t, err)
}

func TestGenerateCodes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	codes, err := f.svc.GenerateCodes(ctx, redemption.GenerateParams{Plan: "monthly", Count: 25})
	require.NoError(t, err)
	require.Len(t, codes, 25)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Len(t, c, 8)
		for _, r := range c {
			assert.Contains(t, "ABCDEFGHJKLMNPQRSTUVWXYZ23456789", string(r))
		}
		assert.False(t, seen[c])
		seen[c] = true
	}

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Available)
	assert.Equal(t, 25, stats.ByPlan["monthly"])

	listed, err := f.svc.List(ctx, redemption.ListFilter{Plan: "monthly", Used: ptr(false), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, listed, 10)
	assert.Equal(t, 30, listed[0].DurationDays)
	assert.Equal(t, 3, listed[0].MaxDevices)

	_, err = f.svc.GenerateCodes(ctx, redemption.GenerateParams{Plan: "match", Count: 1, TrialHours: 2})
	require.Error(t, err)
}

func TestPaymentAccessCodeIsStablePerOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	spec, err := subscription.LookupPlan("weekly")
	require.NoError(t, err)

	first, err := f.svc.GetOrCreatePaymentAccessCode(ctx, redemption.AccessCodeParams{
		OrderID: "FBJ-SIFALO-WEEKLY-1", UserID: "u1", Plan: spec,
	})
	require.NoError(t, err)

	second, err := f.svc.GetOrCreatePaymentAccessCode(ctx, redemption.AccessCodeParams{
		OrderID: "FBJ-SIFALO-WEEKLY-1", UserID: "u2", Plan: spec,
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	code, err := f.codes.GetByPaymentOrder(ctx, "FBJ-SIFALO-WEEKLY-1")
	require.NoError(t, err)
	assert.Equal(t, redemption.SourceAutoPayment, code.Source)
	assert.Equal(t, "u2", *code.UsedByUserID)

	_, err = f.svc.Redeem(ctx, first, "device-0001", "")
	require.ErrorIs(t, err, redemption.ErrAlreadyUsed)
}

func TestTrialMergeStep(t *testing.T) {
	ctx := context.Background()

	t.Run("target without grant inherits it", func(t *testing.T) {
		repo := redemptiontest.NewRepository()
		_, err := repo.InsertTrialGrant(ctx, &redemption.TrialGrant{ID: "g1", UserID: "guest", DeviceID: "device-0001"})
		require.NoError(t, err)
		repo.TrialFlags["guest"] = true

		step := redemption.NewTrialMergeStep(repo)
		moved, err := step.MoveFrom(ctx, "guest", "account")
		require.NoError(t, err)
		assert.Equal(t, 1, moved)

		g, err := repo.TrialGrantFor(ctx, "account")
		require.NoError(t, err)
		assert.Equal(t, "g1", g.ID)
		assert.True(t, repo.TrialFlags["account"])

		again, err := step.MoveFrom(ctx, "guest", "account")
		require.NoError(t, err)
		assert.Zero(t, again)
	})

	t.Run("target with grant archives source", func(t *testing.T) {
		repo := redemptiontest.NewRepository()
		_, err := repo.InsertTrialGrant(ctx, &redemption.TrialGrant{ID: "g1", UserID: "guest", DeviceID: "device-0001"})
		require.NoError(t, err)
		_, err = repo.InsertTrialGrant(ctx, &redemption.TrialGrant{ID: "g2", UserID: "account", DeviceID: "device-0002"})
		require.NoError(t, err)

		step := redemption.NewTrialMergeStep(repo)
		moved, err := step.MoveFrom(ctx, "guest", "account")
		require.NoError(t, err)
		assert.Zero(t, moved)

		g, err := repo.TrialGrantFor(ctx, "account")
		require.NoError(t, err)
		assert.Equal(t, "g2", g.ID)

		history := repo.History()
		require.Len(t, history, 1)
		assert.Equal(t, "account", history[0].UserID)

		used, err := repo.HasTrial(ctx, "someone-new", "device-0001")
		require.NoError(t, err)
		assert.True(t, used, "device keeps its trial history after a merge")
	})
}

func TestUsageMergeStep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.codes.Put(redemption.Code{ID: "c1", Code: "USAGE234", Plan: subscription.PlanWeekly, DurationDays: 7, MaxDevices: 2, UsedByUserID: ptr("guest")})

	step := redemption.NewUsageMergeStep(f.codes)
	moved, err := step.MoveFrom(ctx, "guest", "account")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	code, err := f.codes.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "account", *code.UsedByUserID)
}
