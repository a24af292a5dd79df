// Package geolocation resolves a network address to a country name through an
// external lookup service, shielding callers from that dependency with
// retries, a circuit breaker and a fixed fallback value.
package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"complaint-service/config"
	"complaint-service/metrics"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

const (
	// FallbackCountry is returned when the lookup cannot be completed at all,
	// whether through retry exhaustion or an open breaker.
	FallbackCountry = "Fallback Country"
	// UnknownCountry is returned on a successful response that carries no
	// country field. Distinct from FallbackCountry: the dependency was
	// healthy, it just had no answer.
	UnknownCountry = "Unknown"

	cacheKeyPrefix = "geo:country:"
)

type geoResponse struct {
	Country string `json:"country"`
}

// Resolver resolves IP addresses to country names. The cache client is
// optional; nil disables caching.
type Resolver struct {
	baseURL     string
	client      *http.Client
	breaker     *Breaker
	maxAttempts int
	backoff     time.Duration
	cache       *redis.Client
	cacheTTL    time.Duration
}

// NewResolver creates a resolver from the service configuration.
func NewResolver(cfg *config.Config, cache *redis.Client) *Resolver {
	return &Resolver{
		baseURL:     strings.TrimSuffix(cfg.GeoAPIURL, "/"),
		client:      &http.Client{Timeout: cfg.GeoRequestTimeout},
		breaker:     NewBreaker(cfg.GeoBreakerThreshold, cfg.GeoBreakerCooldown),
		maxAttempts: cfg.GeoMaxAttempts,
		backoff:     cfg.GeoRetryBackoff,
		cache:       cache,
		cacheTTL:    cfg.GeoCacheTTL,
	}
}

// CountryByIP resolves ip to a country name. It never fails: every path
// terminates in a country string.
func (r *Resolver) CountryByIP(ctx context.Context, ip string) string {
	start := time.Now()
	defer func() {
		metrics.GeoLookupDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if country, ok := r.cachedCountry(ctx, ip); ok {
		metrics.GeoLookupsTotal.WithLabelValues("cache_hit").Inc()
		return country
	}

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				log.Warnf("Geolocation lookup for %s canceled: %v", ip, ctx.Err())
				metrics.GeoLookupsTotal.WithLabelValues("fallback").Inc()
				return FallbackCountry
			case <-time.After(r.backoff):
			}
		}

		if !r.breaker.Allow() {
			log.Warnf("Geolocation breaker open, short-circuiting lookup for %s", ip)
			metrics.GeoLookupsTotal.WithLabelValues("short_circuited").Inc()
			return FallbackCountry
		}

		country, err := r.fetchCountry(ctx, ip)
		if err != nil {
			lastErr = err
			r.breaker.RecordFailure()
			continue
		}
		r.breaker.RecordSuccess()

		if country == "" {
			metrics.GeoLookupsTotal.WithLabelValues("unknown").Inc()
			country = UnknownCountry
		} else {
			metrics.GeoLookupsTotal.WithLabelValues("success").Inc()
		}
		r.storeCached(ctx, ip, country)
		return country
	}

	log.Errorf("Geolocation lookup for %s failed after %d attempts: %v", ip, r.maxAttempts, lastErr)
	metrics.GeoLookupsTotal.WithLabelValues("fallback").Inc()
	return FallbackCountry
}

func (r *Resolver) fetchCountry(ctx context.Context, ip string) (string, error) {
	url := fmt.Sprintf("%s/json/%s?fields=country", r.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build geolocation request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation API returned status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode geolocation response: %w", err)
	}
	return strings.TrimSpace(body.Country), nil
}

func (r *Resolver) cachedCountry(ctx context.Context, ip string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	country, err := r.cache.Get(ctx, cacheKeyPrefix+ip).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Warnf("Geolocation cache read for %s failed: %v", ip, err)
		return "", false
	}
	return country, country != ""
}

func (r *Resolver) storeCached(ctx context.Context, ip, country string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKeyPrefix+ip, country, r.cacheTTL).Err(); err != nil {
		log.Warnf("Geolocation cache write for %s failed: %v", ip, err)
	}
}
