// AngelaMos | 2026
// memory_test.go

package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type memRepo struct {
	mu       sync.Mutex
	payments map[string]*Payment
	events   map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		payments: make(map[string]*Payment),
		events:   make(map[string]string),
	}
}

func (r *memRepo) put(p Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.payments[p.OrderID] = &p
}

func (r *memRepo) get(orderID string) Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.payments[orderID]
}

func (r *memRepo) Create(_ context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.OrderID]; ok {
		return fmt.Errorf("create payment: %w", core.ErrDuplicateKey)
	}
	if p.ManualTxID != nil {
		for _, existing := range r.payments {
			if existing.Gateway == p.Gateway && existing.ManualTxID != nil &&
				*existing.ManualTxID == *p.ManualTxID {
				return fmt.Errorf("create payment: %w", core.ErrDuplicateKey)
			}
		}
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.payments[p.OrderID] = &cp
	return nil
}

func (r *memRepo) GetByOrderID(_ context.Context, orderID string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, fmt.Errorf("get payment: %w", ErrPaymentNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetBySifaloSID(_ context.Context, sid string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.SifaloSID != nil && *p.SifaloSID == sid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get payment by sid: %w", ErrPaymentNotFound)
}

func (r *memRepo) GetBySifaloKey(_ context.Context, key string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.SifaloKey != nil && *p.SifaloKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get payment by key: %w", ErrPaymentNotFound)
}

func (r *memRepo) ListPendingManual(_ context.Context, limit int) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if p.Status == StatusPending && p.ManualTxID != nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, orderID string) (*Payment, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r *memRepo) MarkSuccess(_ context.Context, p *Payment, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.payments[p.OrderID]
	if !ok || cur.Status != StatusPending {
		return false, nil
	}
	cur.Status = StatusSuccess
	cur.UserID = p.UserID
	cur.SubscriptionID = p.SubscriptionID
	cur.AccessCode = p.AccessCode
	if p.StripePaymentIntentID != nil {
		cur.StripePaymentIntentID = p.StripePaymentIntentID
	}
	if p.SifaloSID != nil {
		cur.SifaloSID = p.SifaloSID
	}
	if p.LastGatewayStatus != "" {
		cur.LastGatewayStatus = p.LastGatewayStatus
	}
	cur.FailureReason = ""
	cur.CompletedAt = &now
	return true, nil
}

func (r *memRepo) MarkFailed(_ context.Context, orderID, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.payments[orderID]
	if !ok || cur.Status != StatusPending {
		return false, nil
	}
	cur.Status = StatusFailed
	cur.FailureReason = reason
	cur.FailedAt = &now
	return true, nil
}

func (r *memRepo) RecordVerify(_ context.Context, orderID, sid, gatewayStatus string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.payments[orderID]
	if !ok {
		return nil
	}
	cur.VerifyAttempts++
	cur.LastGatewayStatus = gatewayStatus
	cur.LastCheckedAt = &now
	if sid != "" {
		s := sid
		cur.SifaloSID = &s
	}
	return nil
}

func (r *memRepo) ListForUser(_ context.Context, userID, deviceID string, limit int) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if (p.UserID != nil && *p.UserID == userID) || p.DeviceID == deviceID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) ReassignUser(_ context.Context, fromUserID, toUserID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.payments {
		if p.UserID != nil && *p.UserID == fromUserID {
			uid := toUserID
			p.UserID = &uid
			n++
		}
	}
	return n, nil
}

func (r *memRepo) FailStale(_ context.Context, olderThan time.Time, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := time.Now()
	for _, p := range r.payments {
		if p.Status == StatusPending && p.CreatedAt.Before(olderThan) && p.ManualTxID == nil {
			p.Status = StatusFailed
			p.FailureReason = reason
			p.FailedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memRepo) RecordWebhookEvent(_ context.Context, eventID, _, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[eventID]; ok {
		return false, nil
	}
	r.events[eventID] = orderID
	return true, nil
}

func (r *memRepo) Stats(_ context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &Stats{Revenue: make(map[string]decimal.Decimal)}
	for _, p := range r.payments {
		stats.Total++
		switch p.Status {
		case StatusPending:
			stats.Pending++
		case StatusSuccess:
			stats.Success++
			stats.Revenue[p.Currency] = stats.Revenue[p.Currency].Add(p.Amount)
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
