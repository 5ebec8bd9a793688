// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/payment"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type SubscriptionStats interface {
	Stats(ctx context.Context) (*subscription.Stats, error)
}

type PaymentStats interface {
	Stats(ctx context.Context) (*payment.Stats, error)
}

type CodeStats interface {
	Stats(ctx context.Context) (*redemption.Stats, error)
}

type Handler struct {
	subs       SubscriptionStats
	payments   PaymentStats
	codes      CodeStats
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
}

type HandlerConfig struct {
	Subscriptions SubscriptionStats
	Payments      PaymentStats
	Codes         CodeStats
	DBStats       func() sql.DBStats
	RedisStats    func() *redis.PoolStats
	RedisPing     func(ctx context.Context) error
	DBPing        func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		subs:       cfg.Subscriptions,
		payments:   cfg.Payments,
		codes:      cfg.Codes,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/stats", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.GetStats)
		r.Get("/system", h.GetSystemStats)
	})
}

// GetStats is the dashboard summary: subscriptions, payments and
// redemption codes, gathered concurrently.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	var resp BusinessStatsResponse

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		s, err := h.subs.Stats(ctx)
		resp.Subscriptions = s
		return err
	})
	g.Go(func() error {
		s, err := h.payments.Stats(ctx)
		if s != nil {
			resp.Payments = toPaymentSummary(s)
		}
		return err
	})
	g.Go(func() error {
		s, err := h.codes.Stats(ctx)
		resp.Codes = s
		return err
	})

	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

// GetSystemStats reports dependency health, connection pools and runtime.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: runtimeStats(),
	})
}

func runtimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

func toPaymentSummary(s *payment.Stats) *PaymentSummary {
	revenue := make(map[string]string, len(s.Revenue))
	for currency, amount := range s.Revenue {
		revenue[currency] = amount.StringFixed(2)
	}
	return &PaymentSummary{
		Total:   s.Total,
		Pending: s.Pending,
		Success: s.Success,
		Failed:  s.Failed,
		Revenue: revenue,
	}
}

type BusinessStatsResponse struct {
	Subscriptions *subscription.Stats `json:"subscriptions"`
	Payments      *PaymentSummary     `json:"payments"`
	Codes         *redemption.Stats   `json:"codes"`
}

type PaymentSummary struct {
	Total   int               `json:"total"`
	Pending int               `json:"pending"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Revenue map[string]string `json:"revenue"`
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
