// AngelaMos | 2026
// geo_test.go

package geo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLocator(t *testing.T, handler http.HandlerFunc) (*Locator, *memCache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cache := newMemCache()
	loc := NewLocator(config.GeoConfig{
		LookupURL: srv.URL + "/json",
		Timeout:   time.Second,
		CacheTTL:  time.Hour,
	}, cache, discardLogger())
	return loc, cache
}

func TestPriceRounding(t *testing.T) {
	base := decimal.RequireFromString("3.50")

	assert.Equal(t, "10.50", Price(base, 3.0).StringFixed(2))
	assert.Equal(t, "5.25", Price(base, DefaultMultiplier).StringFixed(2))
	assert.Equal(t, "3.50", Price(base, FallbackMultiplier).StringFixed(2))
	assert.Equal(t, "6.30", Price(base, 1.8).StringFixed(2))
}

func TestMultiplierFor(t *testing.T) {
	tests := []struct {
		country string
		want    float64
	}{
		{"SO", 1.0},
		{"so", 1.0},
		{"KE", 1.8},
		{"AE", 2.5},
		{"US", 3.0},
		{"IT", 2.5},
		{"ZZ", DefaultMultiplier},
		{"", DefaultMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			assert.InDelta(t, tt.want, MultiplierFor(tt.country), 0.0001)
		})
	}
}

func TestQuoteKnownCountry(t *testing.T) {
	loc, _ := newTestLocator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/203.0.113.9", r.URL.Path)
		assert.Equal(t, "status,countryCode", r.URL.Query().Get("fields"))
		_, _ = io.WriteString(w, `{"status":"success","countryCode":"US"}`)
	})

	q := loc.Quote(context.Background(), "203.0.113.9", decimal.RequireFromString("3.50"))

	assert.Equal(t, "US", q.Country)
	assert.False(t, q.Fallback)
	assert.Equal(t, "10.50", q.Amount.StringFixed(2))
}

func TestQuoteUnknownCountry(t *testing.T) {
	loc, _ := newTestLocator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","countryCode":"ZZ"}`)
	})

	q := loc.Quote(context.Background(), "203.0.113.9", decimal.RequireFromString("3.50"))

	assert.Equal(t, "ZZ", q.Country)
	assert.Equal(t, "5.25", q.Amount.StringFixed(2))
}

func TestQuoteLookupFailureFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"fail status": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"status":"fail"}`)
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `not json`)
		},
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			loc, cache := newTestLocator(t, h)

			q := loc.Quote(context.Background(), "203.0.113.9", decimal.RequireFromString("3.50"))

			assert.True(t, q.Fallback)
			assert.InDelta(t, 1.0, q.Multiplier, 0.0001)
			assert.Equal(t, "3.50", q.Amount.StringFixed(2))
			assert.Empty(t, cache.data)
		})
	}
}

func TestCountrySkipsPrivateAddresses(t *testing.T) {
	var calls atomic.Int32
	loc, _ := newTestLocator(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"status":"success","countryCode":"US"}`)
	})

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.4", "unknown", ""} {
		_, err := loc.Country(context.Background(), ip)
		require.ErrorIs(t, err, ErrLookupFailed)
	}
	assert.Zero(t, calls.Load())
}

func TestCountryIsCached(t *testing.T) {
	var calls atomic.Int32
	loc, cache := newTestLocator(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"status":"success","countryCode":"ke"}`)
	})

	for range 3 {
		country, err := loc.Country(context.Background(), "203.0.113.20")
		require.NoError(t, err)
		assert.Equal(t, "KE", country)
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "KE", cache.data["geo:country:203.0.113.20"])
}

func TestCountryDeduplicatesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	loc, _ := newTestLocator(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"status":"success","countryCode":"SO"}`)
	})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := loc.Country(context.Background(), "203.0.113.30")
			if err == nil {
				results[i] = c
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
	assert.Equal(t, "SO", strings.Join(uniq(results), ""))
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
