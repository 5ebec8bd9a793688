// AngelaMos | 2026
// memory.go

package redemptiontest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
)

// Repository is an in-memory redemption.Repository. TrialFlags stands in
// for users.trial_used.
type Repository struct {
	mu         sync.Mutex
	codes      map[string]*redemption.Code
	grants     map[string]*redemption.TrialGrant
	history    []redemption.TrialGrant
	TrialFlags map[string]bool
}

func NewRepository() *Repository {
	return &Repository{
		codes:      make(map[string]*redemption.Code),
		grants:     make(map[string]*redemption.TrialGrant),
		TrialFlags: make(map[string]bool),
	}
}

func (r *Repository) Put(c redemption.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[c.ID] = &c
}

func (r *Repository) History() []redemption.TrialGrant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]redemption.TrialGrant(nil), r.history...)
}

func (r *Repository) Grants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.grants)
}

func (r *Repository) Create(_ context.Context, c *redemption.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.codes {
		if existing.Code == c.Code {
			return fmt.Errorf("create code: %w", core.ErrDuplicateKey)
		}
		if c.PaymentOrderID != nil && existing.PaymentOrderID != nil &&
			*existing.PaymentOrderID == *c.PaymentOrderID {
			return fmt.Errorf("create code: %w", core.ErrDuplicateKey)
		}
	}

	c.CreatedAt = time.Now()
	cp := *c
	r.codes[c.ID] = &cp
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*redemption.Code, error) {
	return r.find(func(c *redemption.Code) bool { return c.ID == id })
}

func (r *Repository) GetByCode(_ context.Context, code string) (*redemption.Code, error) {
	return r.find(func(c *redemption.Code) bool { return c.Code == code })
}

func (r *Repository) GetByPaymentOrder(_ context.Context, orderID string) (*redemption.Code, error) {
	return r.find(func(c *redemption.Code) bool {
		return c.PaymentOrderID != nil && *c.PaymentOrderID == orderID
	})
}

func (r *Repository) List(_ context.Context, f redemption.ListFilter) ([]redemption.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []redemption.Code
	for _, c := range r.codes {
		if f.Plan != "" && string(c.Plan) != f.Plan {
			continue
		}
		if f.Used != nil && c.IsUsed() != *f.Used {
			continue
		}
		if f.Revoked != nil && (c.RevokedAt != nil) != *f.Revoked {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repository) Claim(_ context.Context, code, userID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.codes {
		if c.Code != code {
			continue
		}
		if c.UsedByUserID != nil || c.RevokedAt != nil {
			return false, nil
		}
		if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			return false, nil
		}
		uid := userID
		at := now
		c.UsedByUserID = &uid
		c.UsedAt = &at
		return true, nil
	}
	return false, nil
}

func (r *Repository) AttachToUser(_ context.Context, id, userID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[id]
	if !ok {
		return core.ErrNotFound
	}
	uid := userID
	c.UsedByUserID = &uid
	if c.UsedAt == nil {
		at := now
		c.UsedAt = &at
	}
	return nil
}

func (r *Repository) Revoke(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[id]
	if !ok {
		return fmt.Errorf("revoke code: %w", core.ErrNotFound)
	}
	if c.RevokedAt == nil {
		at := now
		c.RevokedAt = &at
	}
	return nil
}

func (r *Repository) ReassignUsage(_ context.Context, fromUserID, toUserID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.codes {
		if c.UsedByUserID != nil && *c.UsedByUserID == fromUserID {
			uid := toUserID
			c.UsedByUserID = &uid
			n++
		}
	}
	return n, nil
}

func (r *Repository) Stats(_ context.Context) (*redemption.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &redemption.Stats{ByPlan: make(map[string]int)}
	for _, c := range r.codes {
		stats.Total++
		stats.ByPlan[string(c.Plan)]++
		if c.IsUsed() {
			stats.Used++
		}
		if c.RevokedAt != nil {
			stats.Revoked++
		}
		if !c.IsUsed() && c.RevokedAt == nil {
			stats.Available++
		}
	}
	return stats, nil
}

func (r *Repository) HasTrial(_ context.Context, userID, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.grants {
		if g.UserID == userID || g.DeviceID == deviceID {
			return true, nil
		}
	}
	for _, g := range r.history {
		if g.UserID == userID || g.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) TrialGrantFor(_ context.Context, userID string) (*redemption.TrialGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.grants[userID]
	if !ok {
		return nil, fmt.Errorf("trial grant: %w", core.ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (r *Repository) InsertTrialGrant(_ context.Context, g *redemption.TrialGrant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.grants[g.UserID]; ok {
		return false, nil
	}
	cp := *g
	r.grants[g.UserID] = &cp
	return true, nil
}

func (r *Repository) ReassignTrialGrant(_ context.Context, fromUserID, toUserID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.grants[fromUserID]
	if !ok {
		return 0, nil
	}
	if _, taken := r.grants[toUserID]; taken {
		return 0, fmt.Errorf("reassign trial grant: %w", core.ErrDuplicateKey)
	}
	delete(r.grants, fromUserID)
	g.UserID = toUserID
	r.grants[toUserID] = g
	return 1, nil
}

func (r *Repository) ArchiveTrialGrant(_ context.Context, fromUserID, toUserID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.grants[fromUserID]
	if !ok {
		return 0, nil
	}
	archived := *g
	archived.UserID = toUserID
	r.history = append(r.history, archived)
	delete(r.grants, fromUserID)
	return 1, nil
}

func (r *Repository) CarryTrialFlag(_ context.Context, fromUserID, toUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.TrialFlags[fromUserID] {
		r.TrialFlags[toUserID] = true
	}
	return nil
}

func (r *Repository) find(match func(*redemption.Code) bool) (*redemption.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.codes {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get code: %w", core.ErrNotFound)
}
