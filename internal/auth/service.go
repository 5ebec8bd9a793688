// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/merge"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

type UserInfo struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	ReferralCode string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, email, passwordHash string) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// DeviceBinder attaches a device to an account, merging whatever the
// device's previous owner accumulated.
type DeviceBinder interface {
	BindDevice(
		ctx context.Context,
		deviceID, userID, userAgent string,
	) (merge.Report, error)
}

type TokenIssuer interface {
	CreateAccessToken(claims AccessTokenClaims) (string, error)
	AccessTokenTTL() time.Duration
}

type Service struct {
	tokens       TokenIssuer
	userProvider UserProvider
	devices      DeviceBinder
	logger       *slog.Logger
}

func NewService(
	tokens TokenIssuer,
	userProvider UserProvider,
	devices DeviceBinder,
	logger *slog.Logger,
) *Service {
	return &Service{
		tokens:       tokens,
		userProvider: userProvider,
		devices:      devices,
		logger:       logger,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	return s.createAuthResponse(ctx, user, req.DeviceID, userAgent)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, strings.ToLower(req.Email), passwordHash)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createAuthResponse(ctx, user, req.DeviceID, userAgent)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	deviceID, userAgent string,
) (*AuthResponse, error) {
	var report *merge.Report
	if deviceID != "" {
		r, err := s.devices.BindDevice(ctx, deviceID, user.ID, userAgent)
		if err != nil {
			return nil, fmt.Errorf("bind device: %w", err)
		}
		if r.Merged {
			report = &r
			s.logger.Info("guest identity merged on sign-in",
				"user_id", user.ID,
				"device_id", deviceID,
				"from_user_id", r.FromUserID,
			)
		}
	}

	accessToken, err := s.tokens.CreateAccessToken(AccessTokenClaims{
		UserID:   user.ID,
		Role:     user.Role,
		DeviceID: deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	ttl := s.tokens.AccessTokenTTL()

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(ttl / time.Second),
			ExpiresAt:   time.Now().Add(ttl),
		},
		Merge: report,
	}, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
	}
}
