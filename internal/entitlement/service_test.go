// AngelaMos | 2026
// service_test.go

package entitlement_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/entitlement"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type fakeUsers struct {
	devices int
}

func (f fakeUsers) ResolveUser(_ context.Context, deviceID, _ string) (*identity.User, error) {
	return &identity.User{ID: "user-" + deviceID}, nil
}

func (f fakeUsers) DeviceCount(context.Context, string) (int, error) {
	return f.devices, nil
}

type fakeSubs struct {
	sub *subscription.Subscription
}

func (f fakeSubs) Active(context.Context, string) (*subscription.Subscription, error) {
	return f.sub, nil
}

type fakeTrials struct {
	status redemption.TrialStatus
}

func (f fakeTrials) TrialAccess(context.Context, string, string) (redemption.TrialStatus, error) {
	return f.status, nil
}

func newService(devices int, sub *subscription.Subscription, trial redemption.TrialStatus) *entitlement.Service {
	return entitlement.NewService(
		fakeUsers{devices: devices},
		fakeSubs{sub: sub},
		fakeTrials{status: trial},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestDecide(t *testing.T) {
	expires := time.Now().Add(48 * time.Hour)
	weekly := &subscription.Subscription{
		Plan:       subscription.PlanWeekly,
		MaxDevices: 2,
		Status:     subscription.StatusActive,
		ExpiresAt:  expires,
	}

	tests := []struct {
		name        string
		devices     int
		sub         *subscription.Subscription
		premium     bool
		limitExceed bool
	}{
		{"no subscription", 1, nil, false, false},
		{"within device limit", 2, weekly, true, false},
		{"over device limit", 3, weekly, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newService(tt.devices, tt.sub, redemption.TrialStatus{}).
				Decide(context.Background(), "device-1", "", "")
			require.NoError(t, err)

			assert.Equal(t, "user-device-1", d.UserID)
			assert.Equal(t, tt.premium, d.Premium)
			assert.Equal(t, tt.limitExceed, d.DeviceLimitExceeded)
			assert.Equal(t, tt.devices, d.Devices)
			if tt.sub != nil {
				assert.Equal(t, "weekly", d.Plan)
				assert.Equal(t, expires.UnixMilli(), d.ExpiresAt)
			}
		})
	}
}

func TestDecideReportsTrial(t *testing.T) {
	trialEnd := time.Now().Add(3 * time.Hour)
	svc := newService(1, nil, redemption.TrialStatus{
		Active:           true,
		ContentID:        "the-matrix",
		ExpiresAt:        trialEnd,
		RemainingSeconds: 10800,
	})

	d, err := svc.Decide(context.Background(), "device-1", "the-matrix", "")
	require.NoError(t, err)
	assert.False(t, d.Premium)
	assert.True(t, d.Trial.Active)
	assert.Equal(t, "the-matrix", d.Trial.ContentID)
	assert.Equal(t, trialEnd.UnixMilli(), d.Trial.ExpiresAt)

	d, err = svc.Decide(context.Background(), "device-1", "", "")
	require.NoError(t, err)
	assert.False(t, d.Trial.Active, "trial is only reported for a title")
}

func TestDecideRequiresDevice(t *testing.T) {
	_, err := newService(0, nil, redemption.TrialStatus{}).Decide(context.Background(), " ", "", "")
	require.Error(t, err)
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	entitlement.NewHandler(newService(1, nil, redemption.TrialStatus{})).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entitlement?deviceId=device-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["premium"])
	assert.Equal(t, "user-device-1", body["userId"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entitlement", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
