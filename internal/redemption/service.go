// AngelaMos | 2026
// service.go

package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/entitlement-engine/internal/catalog"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type UserResolver interface {
	ResolveUser(ctx context.Context, deviceID, userAgent string) (*identity.User, error)
	MarkTrialUsed(ctx context.Context, userID string) error
}

type ContentResolver interface {
	Resolve(ctx context.Context, input string) (catalog.Resolution, error)
}

type Subscriptions interface {
	Create(ctx context.Context, p subscription.CreateParams) (*subscription.Subscription, error)
	RevokeByCode(ctx context.Context, codeID string) (int, error)
}

type Service struct {
	repo    Repository
	tx      core.Transactor
	users   UserResolver
	content ContentResolver
	subs    Subscriptions
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	repo Repository,
	tx core.Transactor,
	users UserResolver,
	content ContentResolver,
	subs Subscriptions,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		tx:      tx,
		users:   users,
		content: content,
		subs:    subs,
		logger:  logger,
		now:     time.Now,
	}
}

const (
	KindSubscription = "subscription"
	KindTrial        = "trial"
)

type Result struct {
	Kind         string
	Code         *Code
	UserID       string
	Subscription *subscription.Subscription
	Trial        *TrialGrant
}

func (r *Result) ExpiresAt() time.Time {
	if r.Trial != nil {
		return r.Trial.ExpiresAt
	}
	return r.Subscription.ExpiresAt
}

func (s *Service) Redeem(
	ctx context.Context,
	rawCode, deviceID, userAgent string,
) (*Result, error) {
	ctx, span := core.StartSpan(ctx, "redemption.redeem")
	defer span.End()

	res, err := s.redeem(ctx, rawCode, deviceID, userAgent)

	kind := KindSubscription
	if res != nil {
		kind = res.Kind
	}
	core.RedemptionsTotal.WithLabelValues(kind, outcome(err)).Inc()

	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	core.AddSpanEvent(ctx, "redeemed",
		attribute.String("redemption.kind", res.Kind),
		attribute.String("user.id", res.UserID),
	)

	return res, nil
}

func (s *Service) redeem(
	ctx context.Context,
	rawCode, deviceID, userAgent string,
) (*Result, error) {
	code := NormalizeCode(rawCode)
	if code == "" || deviceID == "" {
		return nil, fmt.Errorf("redeem: code and device id: %w", core.ErrInvalidInput)
	}

	rec, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}

	now := s.now().UTC()
	if err := rec.Check(now); err != nil {
		return &Result{Kind: kindOf(rec)}, err
	}

	user, err := s.users.ResolveUser(ctx, deviceID, userAgent)
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}

	if rec.IsTrial() {
		return s.redeemTrial(ctx, rec, user, deviceID, now)
	}

	result := &Result{Kind: KindSubscription, Code: rec, UserID: user.ID}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.repo.Claim(ctx, rec.Code, user.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return s.classifyLostClaim(ctx, rec.Code, now)
		}

		sub, err := s.subs.Create(ctx, subscription.CreateParams{
			UserID: user.ID,
			Plan: subscription.PlanSpec{
				Plan:         rec.Plan,
				DurationDays: rec.DurationDays,
				MaxDevices:   rec.MaxDevices,
			},
			CodeID: &rec.ID,
		})
		if err != nil {
			return err
		}

		result.Subscription = sub
		return nil
	})
	if err != nil {
		return result, err
	}

	s.logger.Info("code redeemed",
		"code_id", rec.ID,
		"plan", rec.Plan,
		"user_id", user.ID,
		"device_id", deviceID,
	)

	return result, nil
}

// classifyLostClaim explains a claim that matched no row by re-reading
// the code inside the same transaction.
func (s *Service) classifyLostClaim(ctx context.Context, code string, now time.Time) error {
	current, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if err := current.Check(now); err != nil {
		return err
	}
	return ErrAlreadyUsed
}

func (s *Service) redeemTrial(
	ctx context.Context,
	rec *Code,
	user *identity.User,
	deviceID string,
	now time.Time,
) (*Result, error) {
	result := &Result{Kind: KindTrial, Code: rec, UserID: user.ID}

	if user.TrialUsed {
		return result, ErrTrialAlreadyUsed
	}

	used, err := s.repo.HasTrial(ctx, user.ID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("redeem trial: %w", err)
	}
	if used {
		return result, ErrTrialAlreadyUsed
	}

	resolved, err := s.content.Resolve(ctx, rec.TrialContentID)
	if err != nil {
		return nil, fmt.Errorf("redeem trial: %w", err)
	}

	grant := &TrialGrant{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		DeviceID:   deviceID,
		ContentID:  resolved.ContentID,
		Aliases:    core.StringArray(resolved.Aliases),
		Code:       rec.Code,
		TrialHours: rec.TrialHours,
		GrantedAt:  now,
		ExpiresAt:  now.Add(time.Duration(rec.TrialHours) * time.Hour),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inserted, err := s.repo.InsertTrialGrant(ctx, grant)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrTrialAlreadyUsed
		}
		return s.users.MarkTrialUsed(ctx, user.ID)
	})
	if err != nil {
		return result, err
	}

	result.Trial = grant

	s.logger.Info("trial granted",
		"code", rec.Code,
		"content_id", grant.ContentID,
		"user_id", user.ID,
		"device_id", deviceID,
		"hours", rec.TrialHours,
	)

	return result, nil
}

type TrialStatus struct {
	Active           bool      `json:"active"`
	ContentID        string    `json:"contentId,omitempty"`
	Code             string    `json:"code,omitempty"`
	TrialHours       int       `json:"trialHours"`
	ExpiresAt        time.Time `json:"-"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

// TrialAccess reports whether userID holds an unexpired trial that
// covers contentID under any of its spellings.
func (s *Service) TrialAccess(ctx context.Context, userID, contentID string) (TrialStatus, error) {
	if userID == "" || contentID == "" {
		return TrialStatus{}, nil
	}

	grant, err := s.repo.TrialGrantFor(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return TrialStatus{}, nil
	}
	if err != nil {
		return TrialStatus{}, err
	}

	now := s.now()
	if !grant.ExpiresAt.After(now) {
		return TrialStatus{}, nil
	}

	if grant.ContentID != contentID && !catalog.Matches(grant.Aliases, contentID) {
		return TrialStatus{}, nil
	}

	return TrialStatus{
		Active:           true,
		ContentID:        grant.ContentID,
		Code:             grant.Code,
		TrialHours:       grant.TrialHours,
		ExpiresAt:        grant.ExpiresAt,
		RemainingSeconds: int64(grant.ExpiresAt.Sub(now) / time.Second),
	}, nil
}

type GenerateParams struct {
	Plan           string
	Count          int
	DurationDays   int
	MaxDevices     int
	TrialHours     int
	TrialContentID string
	TrialTitle     string
	ExpiresInDays  int
	Source         string
}

// GenerateCodes creates count fresh codes. Durations and device limits
// default to the plan table.
func (s *Service) GenerateCodes(ctx context.Context, p GenerateParams) ([]string, error) {
	spec, err := subscription.LookupPlan(p.Plan)
	if err != nil {
		return nil, err
	}

	if p.TrialHours > 0 && p.TrialContentID == "" {
		return nil, fmt.Errorf("generate codes: trial content: %w", core.ErrInvalidInput)
	}

	duration := p.DurationDays
	if duration <= 0 {
		duration = spec.DurationDays
	}
	maxDevices := p.MaxDevices
	if maxDevices <= 0 {
		maxDevices = spec.MaxDevices
	}
	source := p.Source
	if source == "" {
		source = SourceAdmin
	}

	var expiresAt *time.Time
	if p.ExpiresInDays > 0 {
		t := s.now().UTC().Add(time.Duration(p.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	codes := make([]string, 0, p.Count)
	for range p.Count {
		c := &Code{
			Plan:           spec.Plan,
			DurationDays:   duration,
			MaxDevices:     maxDevices,
			TrialHours:     p.TrialHours,
			TrialContentID: p.TrialContentID,
			TrialTitle:     p.TrialTitle,
			Source:         source,
			ExpiresAt:      expiresAt,
		}
		if err := s.createUnique(ctx, c); err != nil {
			return codes, err
		}
		codes = append(codes, c.Code)
	}

	s.logger.Info("codes generated",
		"plan", spec.Plan,
		"count", len(codes),
		"trial_hours", p.TrialHours,
	)

	return codes, nil
}

func (s *Service) createUnique(ctx context.Context, c *Code) error {
	for range maxGenerateAttempts {
		value, err := core.GenerateCode(codeAlphabet, codeLength)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		c.ID = uuid.New().String()
		c.Code = value

		err = s.repo.Create(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrDuplicateKey) {
			return err
		}
	}

	return fmt.Errorf("generate code after %d attempts: %w", maxGenerateAttempts, core.ErrConflict)
}

// RevokeCode disables a code and any subscription it created.
func (s *Service) RevokeCode(ctx context.Context, id string) (int, error) {
	var revoked int

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Revoke(ctx, id, s.now().UTC()); err != nil {
			return err
		}

		n, err := s.subs.RevokeByCode(ctx, id)
		if err != nil {
			return err
		}
		revoked = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("code revoked", "code_id", id, "subscriptions_revoked", revoked)

	return revoked, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Code, error) {
	return s.repo.List(ctx, f)
}

type AccessCodeParams struct {
	OrderID string
	UserID  string
	Plan    subscription.PlanSpec
}

// GetOrCreatePaymentAccessCode returns the human-readable code tied to a
// paid order, creating it on first activation. It joins the caller's
// transaction.
func (s *Service) GetOrCreatePaymentAccessCode(
	ctx context.Context,
	p AccessCodeParams,
) (string, error) {
	now := s.now().UTC()

	existing, err := s.repo.GetByPaymentOrder(ctx, p.OrderID)
	switch {
	case err == nil:
		if existing.UsedByUserID == nil || *existing.UsedByUserID != p.UserID || existing.UsedAt == nil {
			if err := s.repo.AttachToUser(ctx, existing.ID, p.UserID, now); err != nil {
				return "", err
			}
		}
		return existing.Code, nil
	case !errors.Is(err, core.ErrNotFound):
		return "", err
	}

	orderID := p.OrderID
	userID := p.UserID
	c := &Code{
		Plan:           p.Plan.Plan,
		DurationDays:   p.Plan.DurationDays,
		MaxDevices:     p.Plan.MaxDevices,
		Source:         SourceAutoPayment,
		PaymentOrderID: &orderID,
		UsedByUserID:   &userID,
		UsedAt:         &now,
	}
	if err := s.createUnique(ctx, c); err != nil {
		return "", fmt.Errorf("payment access code: %w", err)
	}

	return c.Code, nil
}

func kindOf(c *Code) string {
	if c.IsTrial() {
		return KindTrial
	}
	return KindSubscription
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrTrialAlreadyUsed):
		return "trial_used"
	default:
		return "error"
	}
}
