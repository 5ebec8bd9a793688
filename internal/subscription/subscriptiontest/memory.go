// AngelaMos | 2026
// memory.go

package subscriptiontest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

// Repository is an in-memory subscription.Repository for tests.
type Repository struct {
	mu   sync.Mutex
	rows map[string]*subscription.Subscription
}

func NewRepository() *Repository {
	return &Repository{rows: make(map[string]*subscription.Subscription)}
}

// Put stores a copy of sub as is.
func (r *Repository) Put(sub subscription.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sub.ID] = &sub
}

// ForUser returns copies of the user's rows, latest expiry first.
func (r *Repository) ForUser(userID string) []subscription.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []subscription.Subscription
	for _, s := range r.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.After(out[j].ExpiresAt)
	})
	return out
}

func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Repository) Create(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	cp := *sub
	r.rows[sub.ID] = &cp
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) Active(
	_ context.Context,
	userID string,
	now time.Time,
) (*subscription.Subscription, error) {
	return r.latest(userID, func(s *subscription.Subscription) bool {
		return s.ActiveAt(now)
	})
}

func (r *Repository) LatestActiveForUpdate(
	_ context.Context,
	userID string,
) (*subscription.Subscription, error) {
	return r.latest(userID, func(s *subscription.Subscription) bool {
		return s.Status == subscription.StatusActive
	})
}

func (r *Repository) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return core.ErrNotFound
	}
	s.Status = status
	return nil
}

func (r *Repository) Reassign(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return core.ErrNotFound
	}
	s.UserID = userID
	return nil
}

func (r *Repository) ExpireActiveForUser(_ context.Context, userID string) (int, error) {
	return r.update(func(s *subscription.Subscription) bool {
		if s.UserID == userID && s.Status == subscription.StatusActive {
			s.Status = subscription.StatusExpired
			return true
		}
		return false
	}), nil
}

func (r *Repository) ExpireOthers(_ context.Context, userID, keepID string) (int, error) {
	return r.update(func(s *subscription.Subscription) bool {
		if s.UserID == userID && s.ID != keepID && s.Status == subscription.StatusActive {
			s.Status = subscription.StatusExpired
			return true
		}
		return false
	}), nil
}

func (r *Repository) ReassignAll(_ context.Context, fromUserID, toUserID string) (int, error) {
	return r.update(func(s *subscription.Subscription) bool {
		if s.UserID == fromUserID {
			s.UserID = toUserID
			return true
		}
		return false
	}), nil
}

func (r *Repository) ExpireDue(_ context.Context, now time.Time) (int, error) {
	return r.update(func(s *subscription.Subscription) bool {
		if s.Status == subscription.StatusActive && !s.ExpiresAt.After(now) {
			s.Status = subscription.StatusExpired
			return true
		}
		return false
	}), nil
}

func (r *Repository) RevokeByCode(_ context.Context, codeID string) (int, error) {
	return r.update(func(s *subscription.Subscription) bool {
		if s.CodeID != nil && *s.CodeID == codeID && s.Status == subscription.StatusActive {
			s.Status = subscription.StatusRevoked
			return true
		}
		return false
	}), nil
}

func (r *Repository) Stats(_ context.Context, now time.Time) (*subscription.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &subscription.Stats{ByPlan: make(map[string]int)}
	for _, s := range r.rows {
		switch {
		case s.ActiveAt(now):
			stats.Active++
			stats.ByPlan[string(s.Plan)]++
		case s.Status == subscription.StatusRevoked:
			stats.Revoked++
		default:
			stats.Expired++
		}
	}
	return stats, nil
}

func (r *Repository) latest(
	userID string,
	match func(*subscription.Subscription) bool,
) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *subscription.Subscription
	for _, s := range r.rows {
		if s.UserID != userID || !match(s) {
			continue
		}
		if best == nil || s.ExpiresAt.After(best.ExpiresAt) {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("latest subscription: %w", core.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (r *Repository) update(fn func(*subscription.Subscription) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.rows {
		if fn(s) {
			n++
		}
	}
	return n
}
