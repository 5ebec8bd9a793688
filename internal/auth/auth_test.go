// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/merge"
)

func newJWTManager(t *testing.T, ttl time.Duration) *JWTManager {
	t.Helper()
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:    priv,
		PublicKeyPath:     pub,
		AccessTokenExpire: ttl,
		Issuer:            "entitlement-engine",
		Audience:          "entitlement-clients",
	})
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newJWTManager(t, 15*time.Minute)

	token, err := m.CreateAccessToken(AccessTokenClaims{
		UserID:   "user-1",
		Role:     "user",
		DeviceID: "device-abc-123",
	})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "device-abc-123", claims.DeviceID)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	m := newJWTManager(t, 15*time.Minute)
	other := newJWTManager(t, 15*time.Minute)

	foreign, err := other.CreateAccessToken(AccessTokenClaims{UserID: "u", Role: "user"})
	require.NoError(t, err)
	_, err = m.VerifyAccessToken(context.Background(), foreign)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = m.VerifyAccessToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	expired := newJWTManager(t, -time.Minute)
	stale, err := expired.CreateAccessToken(AccessTokenClaims{UserID: "u", Role: "user"})
	require.NoError(t, err)
	_, err = expired.VerifyAccessToken(context.Background(), stale)
	require.Error(t, err)
	assert.True(t,
		errors.Is(err, core.ErrTokenExpired) || errors.Is(err, core.ErrTokenInvalid),
		"unexpected error: %v", err)
}

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*UserInfo
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, email, hash string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, core.ErrDuplicateKey
	}
	u := &UserInfo{ID: "user-" + email, Email: email, PasswordHash: hash, Role: "user"}
	m.byEmail[email] = u
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return core.ErrNotFound
}

type recordingBinder struct {
	calls  []string
	merged bool
}

func (b *recordingBinder) BindDevice(
	_ context.Context,
	deviceID, userID, _ string,
) (merge.Report, error) {
	b.calls = append(b.calls, deviceID+"->"+userID)
	return merge.Report{
		FromUserID: "guest-" + deviceID,
		ToUserID:   userID,
		Merged:     b.merged,
	}, nil
}

func newService(t *testing.T) (*Service, *memUsers, *recordingBinder) {
	t.Helper()
	users := &memUsers{byEmail: make(map[string]*UserInfo)}
	binder := &recordingBinder{}
	svc := NewService(
		newJWTManager(t, 15*time.Minute),
		users,
		binder,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, users, binder
}

func TestRegisterThenLoginBindsDevice(t *testing.T) {
	svc, _, binder := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email:    "Viewer@Example.com",
		Password: "correct horse",
	}, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, "viewer@example.com", reg.User.Email)
	assert.Empty(t, binder.calls)
	assert.Nil(t, reg.Merge)

	binder.merged = true
	login, err := svc.Login(ctx, LoginRequest{
		Email:    "viewer@example.com",
		Password: "correct horse",
		DeviceID: "device-0001",
	}, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-0001->" + reg.User.ID}, binder.calls)
	require.NotNil(t, login.Merge)
	assert.Equal(t, "guest-device-0001", login.Merge.FromUserID)
	assert.Equal(t, "Bearer", login.Tokens.TokenType)
	assert.Equal(t, 900, login.Tokens.ExpiresIn)
}

func TestLoginFailures(t *testing.T) {
	svc, _, binder := newService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever1",
	}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:    "viewer@example.com",
		Password: "correct horse",
	}, "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{
		Email:    "viewer@example.com",
		Password: "wrong horse",
		DeviceID: "device-0001",
	}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, binder.calls)

	_, err = svc.Register(ctx, RegisterRequest{
		Email:    "viewer@example.com",
		Password: "another one",
	}, "")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestChangePassword(t *testing.T) {
	svc, users, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{
		Email:    "viewer@example.com",
		Password: "correct horse",
	}, "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, reg.User.ID, "wrong horse", "battery staple")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, reg.User.ID, "correct horse", "battery staple"))
	ok, err := core.VerifyPassword("battery staple", users.byEmail["viewer@example.com"].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
