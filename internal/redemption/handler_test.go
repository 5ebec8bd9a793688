// AngelaMos | 2026
// handler_test.go

package redemption_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/core/coretest"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption/redemptiontest"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription/subscriptiontest"
)

// uuidColumns fails lookups the way a uuid typed column does.
type uuidColumns struct {
	*redemptiontest.Repository
}

func (u uuidColumns) TrialGrantFor(ctx context.Context, userID string) (*redemption.TrialGrant, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid input syntax for type uuid: %q", userID)
	}
	return u.Repository.TrialGrantFor(ctx, userID)
}

func TestTrialAccessHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codes := redemptiontest.NewRepository()
	users := newFakeUsers()

	svc := redemption.NewService(
		uuidColumns{codes},
		&coretest.Transactor{},
		users,
		tokenResolver{},
		subscription.NewService(subscriptiontest.NewRepository(), logger),
		logger,
	)

	viewer := uuid.NewString()
	users.bind("device-0001", viewer)
	codes.Put(redemption.Code{
		ID: "t1", Code: "TRIAL234", Plan: subscription.PlanMatch, DurationDays: 1, MaxDevices: 1,
		TrialHours: 2, TrialContentID: "the-matrix",
	})
	_, err := svc.Redeem(context.Background(), "TRIAL234", "device-0001", "")
	require.NoError(t, err)

	r := chi.NewRouter()
	redemption.NewHandler(svc).RegisterRoutes(r)

	tests := []struct {
		name   string
		query  string
		active bool
	}{
		{"active trial", "userId=" + viewer + "&movieId=The%20Matrix", true},
		{"other content", "userId=" + viewer + "&contentId=inception", false},
		{"malformed user id", "userId=not-a-uuid&movieId=the-matrix", false},
		{"missing user id", "movieId=the-matrix", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/trial-access?"+tt.query, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				Active    bool  `json:"active"`
				ExpiresAt int64 `json:"expiresAt"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.active, resp.Active)
			if tt.active {
				assert.Positive(t, resp.ExpiresAt)
			} else {
				assert.Zero(t, resp.ExpiresAt)
			}
		})
	}
}
