// AngelaMos | 2026
// repository.go

package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	GetBySifaloSID(ctx context.Context, sid string) (*Payment, error)
	GetBySifaloKey(ctx context.Context, key string) (*Payment, error)
	ListPendingManual(ctx context.Context, limit int) ([]Payment, error)
	GetForUpdate(ctx context.Context, orderID string) (*Payment, error)
	MarkSuccess(ctx context.Context, p *Payment, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string, now time.Time) (bool, error)
	RecordVerify(ctx context.Context, orderID, sid, gatewayStatus string, now time.Time) error
	ListForUser(ctx context.Context, userID, deviceID string, limit int) ([]Payment, error)
	ReassignUser(ctx context.Context, fromUserID, toUserID string) (int, error)
	FailStale(ctx context.Context, olderThan time.Time, reason string) (int, error)
	RecordWebhookEvent(ctx context.Context, eventID, eventType, orderID string) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const columns = `order_id, device_id, user_id, plan, amount, currency, base_amount,
		       geo_country, geo_multiplier, gateway, stripe_session_id,
		       stripe_payment_intent_id, sifalo_sid, sifalo_key, sifalo_token,
		       manual_tx_id, status, bonus_days, offer_code, subscription_id, access_code,
		       verify_attempts, last_gateway_status, last_checked_at,
		       failure_reason, created_at, completed_at, failed_at`

func (r *repository) Create(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (order_id, device_id, plan, amount, currency,
		                      base_amount, geo_country, geo_multiplier, gateway,
		                      stripe_session_id, sifalo_key, sifalo_token,
		                      manual_tx_id, status, bonus_days, offer_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		p.OrderID,
		p.DeviceID,
		p.Plan,
		p.Amount,
		p.Currency,
		p.BaseAmount,
		p.GeoCountry,
		p.GeoMultiplier,
		p.Gateway,
		p.StripeSessionID,
		p.SifaloKey,
		p.SifaloToken,
		p.ManualTxID,
		p.Status,
		p.BonusDays,
		p.OfferCode,
	).Scan(&p.CreatedAt)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create payment: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	query := `SELECT ` + columns + ` FROM payments WHERE order_id = $1`
	return r.getOne(ctx, "get payment", query, orderID)
}

func (r *repository) GetBySifaloSID(ctx context.Context, sid string) (*Payment, error) {
	query := `
		SELECT ` + columns + ` FROM payments
		WHERE sifalo_sid = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "get payment by sid", query, sid)
}

func (r *repository) GetBySifaloKey(ctx context.Context, key string) (*Payment, error) {
	query := `
		SELECT ` + columns + ` FROM payments
		WHERE sifalo_key = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "get payment by key", query, key)
}

func (r *repository) GetForUpdate(ctx context.Context, orderID string) (*Payment, error) {
	query := `SELECT ` + columns + ` FROM payments WHERE order_id = $1 FOR UPDATE`
	return r.getOne(ctx, "lock payment", query, orderID)
}

func (r *repository) getOne(ctx context.Context, op, query string, arg any) (*Payment, error) {
	var p Payment
	err := core.Conn(ctx, r.db).GetContext(ctx, &p, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// MarkSuccess flips a pending payment to success. It reports false when
// the row had already left pending.
func (r *repository) MarkSuccess(ctx context.Context, p *Payment, now time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'success',
		    user_id = $2,
		    subscription_id = $3,
		    access_code = $4,
		    stripe_payment_intent_id = COALESCE($5, stripe_payment_intent_id),
		    sifalo_sid = COALESCE($6, sifalo_sid),
		    last_gateway_status = COALESCE(NULLIF($7, ''), last_gateway_status),
		    failure_reason = '',
		    completed_at = $8
		WHERE order_id = $1 AND status = 'pending'`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query,
		p.OrderID,
		p.UserID,
		p.SubscriptionID,
		p.AccessCode,
		p.StripePaymentIntentID,
		p.SifaloSID,
		p.LastGatewayStatus,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("mark payment success: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment success: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) MarkFailed(ctx context.Context, orderID, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, failed_at = $3
		WHERE order_id = $1 AND status = 'pending'`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, orderID, reason, now)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) RecordVerify(
	ctx context.Context,
	orderID, sid, gatewayStatus string,
	now time.Time,
) error {
	query := `
		UPDATE payments
		SET verify_attempts = verify_attempts + 1,
		    last_gateway_status = $3,
		    last_checked_at = $4,
		    sifalo_sid = COALESCE(NULLIF($2, ''), sifalo_sid)
		WHERE order_id = $1`

	_, err := core.Conn(ctx, r.db).ExecContext(ctx, query, orderID, sid, gatewayStatus, now)
	if err != nil {
		return fmt.Errorf("record verify attempt: %w", err)
	}

	return nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID, deviceID string,
	limit int,
) ([]Payment, error) {
	query := `
		SELECT ` + columns + ` FROM payments
		WHERE user_id = $1 OR device_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	var out []Payment
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &out, query, userID, deviceID, limit); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return out, nil
}

// ListPendingManual returns manual submissions waiting for an admin,
// oldest first.
func (r *repository) ListPendingManual(ctx context.Context, limit int) ([]Payment, error) {
	query := `
		SELECT ` + columns + ` FROM payments
		WHERE status = 'pending' AND manual_tx_id IS NOT NULL
		ORDER BY created_at
		LIMIT $1`

	var out []Payment
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("list pending manual payments: %w", err)
	}

	return out, nil
}

func (r *repository) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int, error) {
	query := `UPDATE payments SET user_id = $2 WHERE user_id = $1`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, fromUserID, toUserID)
	if err != nil {
		return 0, fmt.Errorf("reassign payments: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign payments: %w", err)
	}

	return int(rows), nil
}

func (r *repository) FailStale(ctx context.Context, olderThan time.Time, reason string) (int, error) {
	query := `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, failed_at = NOW()
		WHERE status = 'pending' AND created_at < $1 AND manual_tx_id IS NULL`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, olderThan, reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale payments: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale payments: %w", err)
	}

	return int(rows), nil
}

// RecordWebhookEvent stores a delivered event id and reports whether it
// was new.
func (r *repository) RecordWebhookEvent(
	ctx context.Context,
	eventID, eventType, orderID string,
) (bool, error) {
	query := `
		INSERT INTO webhook_events (event_id, event_type, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, eventID, eventType, orderID)
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT status, currency, COUNT(*) AS n, COALESCE(SUM(amount), 0) AS total
		FROM payments
		GROUP BY status, currency`

	rows, err := core.Conn(ctx, r.db).QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("payment stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	stats := &Stats{Revenue: make(map[string]decimal.Decimal)}
	for rows.Next() {
		var (
			status, currency string
			n                int
			total            decimal.Decimal
		)
		if err := rows.Scan(&status, &currency, &n, &total); err != nil {
			return nil, fmt.Errorf("payment stats: %w", err)
		}

		stats.Total += n
		switch status {
		case StatusPending:
			stats.Pending += n
		case StatusSuccess:
			stats.Success += n
			stats.Revenue[currency] = stats.Revenue[currency].Add(total)
		case StatusFailed:
			stats.Failed += n
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment stats: %w", err)
	}

	return stats, nil
}

type EventSink interface {
	Record(ctx context.Context, e ConversionEvent) error
}

type eventRepository struct {
	db core.DBTX
}

func NewEventRepository(db core.DBTX) EventSink {
	return &eventRepository{db: db}
}

func (r *eventRepository) Record(ctx context.Context, e ConversionEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}

	var userID *string
	if e.UserID != "" {
		userID = &e.UserID
	}

	query := `
		INSERT INTO conversion_events (event_name, user_id, device_id, plan,
		                               source, metadata, day_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = core.Conn(ctx, r.db).ExecContext(ctx, query,
		e.Name,
		userID,
		e.DeviceID,
		e.Plan,
		e.Source,
		string(metadata),
		e.DayKey(),
		e.At,
	)
	if err != nil {
		return fmt.Errorf("record conversion event: %w", err)
	}

	return nil
}
