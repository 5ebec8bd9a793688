// AngelaMos | 2026
// settings.go

package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

// Snapshot is one immutable version of the admin-tunable settings. Callers
// read it once at the start of an operation and never see it change.
type Snapshot struct {
	Version            int64           `db:"version"`
	PriceMatch         decimal.Decimal `db:"price_match"`
	PriceWeekly        decimal.Decimal `db:"price_weekly"`
	PriceMonthly       decimal.Decimal `db:"price_monthly"`
	PriceYearly        decimal.Decimal `db:"price_yearly"`
	FreePreviewsPerDay int             `db:"free_previews_per_day"`
	UpdatedBy          string          `db:"updated_by"`
	CreatedAt          time.Time       `db:"created_at"`
}

func (s Snapshot) BasePrice(plan string) decimal.Decimal {
	switch plan {
	case "match":
		return s.PriceMatch
	case "weekly":
		return s.PriceWeekly
	case "monthly":
		return s.PriceMonthly
	case "yearly":
		return s.PriceYearly
	default:
		return decimal.Zero
	}
}

type Repository interface {
	Latest(ctx context.Context) (*Snapshot, error)
	Insert(ctx context.Context, s *Snapshot) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Latest(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT version, price_match, price_weekly, price_monthly, price_yearly,
		       free_previews_per_day, updated_by, created_at
		FROM settings
		ORDER BY version DESC
		LIMIT 1`

	var s Snapshot
	err := core.Conn(ctx, r.db).GetContext(ctx, &s, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest settings: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest settings: %w", err)
	}

	return &s, nil
}

func (r *repository) Insert(ctx context.Context, s *Snapshot) error {
	query := `
		INSERT INTO settings (price_match, price_weekly, price_monthly,
		                      price_yearly, free_previews_per_day, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		s.PriceMatch,
		s.PriceWeekly,
		s.PriceMonthly,
		s.PriceYearly,
		s.FreePreviewsPerDay,
		s.UpdatedBy,
	).Scan(&s.Version, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}

	return nil
}

type Service struct {
	repo     Repository
	defaults Snapshot
}

func NewService(repo Repository, cfg config.PricingConfig) *Service {
	return &Service{
		repo: repo,
		defaults: Snapshot{
			PriceMatch:         decimal.NewFromFloat(cfg.Match),
			PriceWeekly:        decimal.NewFromFloat(cfg.Weekly),
			PriceMonthly:       decimal.NewFromFloat(cfg.Monthly),
			PriceYearly:        decimal.NewFromFloat(cfg.Yearly),
			FreePreviewsPerDay: cfg.FreePreviews,
		},
	}
}

// Current falls back to the configured defaults until an admin has saved
// the first version.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	snap, err := s.repo.Latest(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return *snap, nil
}

type UpdateRequest struct {
	PriceMatch         *decimal.Decimal `json:"priceMatch,omitempty"`
	PriceWeekly        *decimal.Decimal `json:"priceWeekly,omitempty"`
	PriceMonthly       *decimal.Decimal `json:"priceMonthly,omitempty"`
	PriceYearly        *decimal.Decimal `json:"priceYearly,omitempty"`
	FreePreviewsPerDay *int             `json:"freePreviewsPerDay,omitempty" validate:"omitempty,min=0,max=100"`
}

func (s *Service) Update(
	ctx context.Context,
	req UpdateRequest,
	updatedBy string,
) (Snapshot, error) {
	next, err := s.Current(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	for _, p := range []*decimal.Decimal{
		req.PriceMatch, req.PriceWeekly, req.PriceMonthly, req.PriceYearly,
	} {
		if p != nil && p.IsNegative() {
			return Snapshot{}, fmt.Errorf("update settings: negative price: %w", core.ErrInvalidInput)
		}
	}

	if req.PriceMatch != nil {
		next.PriceMatch = req.PriceMatch.Round(2)
	}
	if req.PriceWeekly != nil {
		next.PriceWeekly = req.PriceWeekly.Round(2)
	}
	if req.PriceMonthly != nil {
		next.PriceMonthly = req.PriceMonthly.Round(2)
	}
	if req.PriceYearly != nil {
		next.PriceYearly = req.PriceYearly.Round(2)
	}
	if req.FreePreviewsPerDay != nil {
		next.FreePreviewsPerDay = *req.FreePreviewsPerDay
	}
	next.UpdatedBy = updatedBy

	if err := s.repo.Insert(ctx, &next); err != nil {
		return Snapshot{}, err
	}

	return next, nil
}
