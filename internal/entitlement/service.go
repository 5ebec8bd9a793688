// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type Users interface {
	ResolveUser(ctx context.Context, deviceID, userAgent string) (*identity.User, error)
	DeviceCount(ctx context.Context, userID string) (int, error)
}

type Subscriptions interface {
	Active(ctx context.Context, userID string) (*subscription.Subscription, error)
}

type Trials interface {
	TrialAccess(ctx context.Context, userID, contentID string) (redemption.TrialStatus, error)
}

type Trial struct {
	Active           bool   `json:"active"`
	ContentID        string `json:"contentId,omitempty"`
	ExpiresAt        int64  `json:"expiresAt,omitempty"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

type Decision struct {
	UserID              string `json:"userId"`
	Premium             bool   `json:"premium"`
	Plan                string `json:"plan,omitempty"`
	ExpiresAt           int64  `json:"expiresAt,omitempty"`
	MaxDevices          int    `json:"maxDevices,omitempty"`
	Devices             int    `json:"devices"`
	DeviceLimitExceeded bool   `json:"deviceLimitExceeded"`
	Trial               Trial  `json:"trial"`
}

type Service struct {
	users  Users
	subs   Subscriptions
	trials Trials
	logger *slog.Logger
}

func NewService(users Users, subs Subscriptions, trials Trials, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		subs:   subs,
		trials: trials,
		logger: logger,
	}
}

// Decide answers whether deviceID may play contentID. Premium needs an
// active subscription whose device limit the user has not exceeded; a
// matching unexpired trial covers a single title.
func (s *Service) Decide(ctx context.Context, deviceID, contentID, userAgent string) (*Decision, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("entitlement: device id: %w", core.ErrInvalidInput)
	}

	user, err := s.users.ResolveUser(ctx, deviceID, userAgent)
	if err != nil {
		return nil, err
	}

	devices, err := s.users.DeviceCount(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	d := &Decision{UserID: user.ID, Devices: devices}

	sub, err := s.subs.Active(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		d.Plan = string(sub.Plan)
		d.ExpiresAt = sub.ExpiresAt.UnixMilli()
		d.MaxDevices = sub.MaxDevices
		d.DeviceLimitExceeded = devices > sub.MaxDevices
		d.Premium = !d.DeviceLimitExceeded
	}

	if contentID = strings.TrimSpace(contentID); contentID != "" {
		trial, err := s.trials.TrialAccess(ctx, user.ID, contentID)
		if err != nil {
			return nil, err
		}
		if trial.Active {
			d.Trial = Trial{
				Active:           true,
				ContentID:        trial.ContentID,
				ExpiresAt:        trial.ExpiresAt.UnixMilli(),
				RemainingSeconds: trial.RemainingSeconds,
			}
		}
	}

	if d.DeviceLimitExceeded {
		s.logger.Info("device limit exceeded",
			"user_id", user.ID,
			"devices", devices,
			"max_devices", d.MaxDevices,
		)
	}

	return d, nil
}
