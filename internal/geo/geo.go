// AngelaMos | 2026
// geo.go

package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

var ErrLookupFailed = errors.New("geo lookup failed")

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(
	ctx context.Context,
	key, value string,
	ttl time.Duration,
) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

type Quote struct {
	Country    string
	Multiplier float64
	Base       decimal.Decimal
	Amount     decimal.Decimal
	Fallback   bool
}

type Locator struct {
	client  *http.Client
	baseURL string
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
}

func NewLocator(cfg config.GeoConfig, cache Cache, logger *slog.Logger) *Locator {
	return &Locator{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.LookupURL, "/"),
		cache:   cache,
		ttl:     cfg.CacheTTL,
		logger:  logger,
	}
}

type lookupResponse struct {
	Status      string `json:"status"`
	CountryCode string `json:"countryCode"`
}

// Country resolves ip to an ISO country code. Results are cached and
// concurrent lookups for one address share a single upstream call.
func (l *Locator) Country(ctx context.Context, ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() ||
		parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return "", fmt.Errorf("country %q: not routable: %w", ip, ErrLookupFailed)
	}
	ip = parsed.String()
	key := "geo:country:" + ip

	if l.cache != nil {
		country, ok, err := l.cache.Get(ctx, key)
		if err != nil {
			l.logger.Warn("geo cache read failed", "error", err)
		} else if ok {
			core.GeoLookupsTotal.WithLabelValues("cache").Inc()
			return country, nil
		}
	}

	v, err, _ := l.group.Do(ip, func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx), ip)
	})
	if err != nil {
		core.GeoLookupsTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	country, _ := v.(string)
	core.GeoLookupsTotal.WithLabelValues("upstream").Inc()

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, country, l.ttl); err != nil {
			l.logger.Warn("geo cache write failed", "error", err)
		}
	}

	return country, nil
}

func (l *Locator) fetch(ctx context.Context, ip string) (string, error) {
	endpoint := fmt.Sprintf(
		"%s/%s?fields=status,countryCode",
		l.baseURL,
		url.PathEscape(ip),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", ip, errors.Join(ErrLookupFailed, err))
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("lookup %s: status %d: %w", ip, resp.StatusCode, ErrLookupFailed)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode lookup: %w", errors.Join(ErrLookupFailed, err))
	}

	if body.Status != "success" || body.CountryCode == "" {
		return "", fmt.Errorf("lookup %s: status %q: %w", ip, body.Status, ErrLookupFailed)
	}

	return strings.ToUpper(body.CountryCode), nil
}

// Quote prices base for the caller at ip. A failed lookup never blocks a
// purchase; it prices at the home rate.
func (l *Locator) Quote(ctx context.Context, ip string, base decimal.Decimal) Quote {
	country, err := l.Country(ctx, ip)
	if err != nil {
		l.logger.Debug("geo lookup degraded to home pricing", "ip", ip, "error", err)
		return Quote{
			Multiplier: FallbackMultiplier,
			Base:       base,
			Amount:     Price(base, FallbackMultiplier),
			Fallback:   true,
		}
	}

	mult := MultiplierFor(country)
	return Quote{
		Country:    country,
		Multiplier: mult,
		Base:       base,
		Amount:     Price(base, mult),
	}
}

func MultiplierFor(country string) float64 {
	c, ok := Lookup(country)
	if !ok {
		return DefaultMultiplier
	}
	return c.Multiplier
}

func Lookup(country string) (Country, bool) {
	c, ok := countries[strings.ToUpper(strings.TrimSpace(country))]
	return c, ok
}

func Price(base decimal.Decimal, multiplier float64) decimal.Decimal {
	return base.Mul(decimal.NewFromFloat(multiplier)).Round(2)
}
