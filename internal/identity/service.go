// AngelaMos | 2026
// service.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/entitlement-engine/internal/auth"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/merge"
)

const maxReferralAttempts = 5

var errClaimLost = errors.New("device claimed concurrently")

type Merger interface {
	MergeIdentity(ctx context.Context, fromUserID, toUserID string) (merge.Report, error)
}

type Service struct {
	repo   Repository
	tx     core.Transactor
	merger Merger
	logger *slog.Logger
}

func NewService(
	repo Repository,
	tx core.Transactor,
	merger Merger,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		merger: merger,
		logger: logger,
	}
}

// ResolveUser returns the user bound to deviceID, creating a guest
// account and binding the device on first sight. It opens its own
// transaction and must not be called from inside one.
func (s *Service) ResolveUser(
	ctx context.Context,
	deviceID, userAgent string,
) (*User, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("resolve user: device id: %w", core.ErrInvalidInput)
	}

	device, err := s.repo.TouchDevice(ctx, deviceID, userAgent)
	if err != nil {
		return nil, err
	}

	if device.UserID != nil {
		return s.repo.GetByID(ctx, *device.UserID)
	}

	var guest *User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.createUser(ctx, nil, "")
		if err != nil {
			return err
		}

		claimed, err := s.repo.ClaimDevice(ctx, deviceID, u.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		guest = u
		return nil
	})

	if errors.Is(err, errClaimLost) {
		device, err = s.repo.GetDevice(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		if device.UserID == nil {
			return nil, fmt.Errorf("resolve user: device %s unbound after claim race: %w",
				deviceID, core.ErrConflict)
		}
		return s.repo.GetByID(ctx, *device.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	s.logger.Debug("guest user created",
		"user_id", guest.ID,
		"device_id", deviceID,
	)

	return guest, nil
}

// BindDevice points deviceID at userID. When the device previously
// belonged to someone else, that identity is merged into userID first.
func (s *Service) BindDevice(
	ctx context.Context,
	deviceID, userID, userAgent string,
) (merge.Report, error) {
	report := merge.Report{ToUserID: userID}

	device, err := s.repo.TouchDevice(ctx, deviceID, userAgent)
	if err != nil {
		return report, err
	}

	if device.BoundTo(userID) {
		return report, nil
	}

	if device.UserID == nil {
		claimed, err := s.repo.ClaimDevice(ctx, deviceID, userID)
		if err != nil {
			return report, err
		}
		if claimed {
			return report, nil
		}

		device, err = s.repo.GetDevice(ctx, deviceID)
		if err != nil {
			return report, err
		}
		if device.BoundTo(userID) {
			return report, nil
		}
	}

	previous := *device.UserID

	report, err = s.merger.MergeIdentity(ctx, previous, userID)
	if err != nil {
		return report, fmt.Errorf("bind device: %w", err)
	}

	if err := s.repo.RebindDevice(ctx, deviceID, userID); err != nil {
		return report, fmt.Errorf("bind device: %w", err)
	}

	s.logger.Info("device rebound",
		"device_id", deviceID,
		"from_user_id", previous,
		"to_user_id", userID,
	)

	return report, nil
}

func (s *Service) DeviceCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountDevices(ctx, userID)
}

func (s *Service) MarkTrialUsed(ctx context.Context, userID string) error {
	return s.repo.MarkTrialUsed(ctx, userID)
}

func (s *Service) User(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateRole(ctx context.Context, id, role string) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("update role %q: %w", role, core.ErrInvalidInput)
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash string,
) (*auth.UserInfo, error) {
	lower := strings.ToLower(email)

	user, err := s.createUser(ctx, &lower, passwordHash)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// createUser retries on referral code collisions. An email collision is
// returned as is.
func (s *Service) createUser(
	ctx context.Context,
	email *string,
	passwordHash string,
) (*User, error) {
	var lastErr error

	for range maxReferralAttempts {
		code, err := core.GenerateCode(referralAlphabet, referralLength)
		if err != nil {
			return nil, fmt.Errorf("referral code: %w", err)
		}

		user := &User{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: passwordHash,
			ReferralCode: code,
			Role:         RoleUser,
		}

		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, core.ErrDuplicateKey) {
			return nil, err
		}

		if email != nil {
			if _, lookupErr := s.repo.GetByEmail(ctx, *email); lookupErr == nil {
				return nil, err
			}
		}
		lastErr = err
	}

	return nil, fmt.Errorf("create user after %d attempts: %w", maxReferralAttempts, lastErr)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.EmailOrEmpty(),
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
	}
}
