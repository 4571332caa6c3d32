package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"strava-activity-mapper/internal/metrics"
)

// RateLimiter paces outgoing requests and tracks the usage Strava reports
// in its X-RateLimit-* headers
type RateLimiter struct {
	pacer *rate.Limiter

	mu          sync.RWMutex
	limit15Min  int
	usage15Min  int
	limitDaily  int
	usageDaily  int
	lastUpdated time.Time
}

// RateLimitStatus represents the current rate limit status
type RateLimitStatus struct {
	Limit15Min    int
	Usage15Min    int
	LimitDaily    int
	UsageDaily    int
	Usage15MinPct float64
	UsageDailyPct float64
	LastUpdated   time.Time
}

// NewRateLimiter creates a rate limiter allowing perSecond requests with the
// given burst. perSecond <= 0 disables pacing.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		pacer: rate.NewLimiter(limit, burst),
		// Default Strava limits
		limit15Min: 200,
		limitDaily: 2000,
	}
}

// Wait blocks until a request may be sent or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.pacer.Wait(ctx)
}

// Update updates the rate limit information
func (rl *RateLimiter) Update(limit15Min, usage15Min, limitDaily, usageDaily int) {
	rl.mu.Lock()
	rl.limit15Min = limit15Min
	rl.usage15Min = usage15Min
	rl.limitDaily = limitDaily
	rl.usageDaily = usageDaily
	rl.lastUpdated = time.Now()
	rl.mu.Unlock()

	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverall15Min, metrics.BucketLimit).Set(float64(limit15Min))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverall15Min, metrics.BucketUsage).Set(float64(usage15Min))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverallDaily, metrics.BucketLimit).Set(float64(limitDaily))
	metrics.StravaRateLimitUsage.WithLabelValues(metrics.RateLimitOverallDaily, metrics.BucketUsage).Set(float64(usageDaily))
}

// Observe parses the "15min,daily" limit and usage headers of a response.
// It reports false when the headers are missing or malformed.
func (rl *RateLimiter) Observe(headers http.Header) bool {
	limits, ok := parsePair(headers.Get("X-RateLimit-Limit"))
	if !ok {
		return false
	}
	usages, ok := parsePair(headers.Get("X-RateLimit-Usage"))
	if !ok {
		return false
	}
	rl.Update(limits[0], usages[0], limits[1], usages[1])
	return true
}

func parsePair(header string) ([2]int, bool) {
	var out [2]int
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// Status returns the current rate limit status
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	usage15MinPct := 0.0
	if rl.limit15Min > 0 {
		usage15MinPct = float64(rl.usage15Min) / float64(rl.limit15Min) * 100
	}

	usageDailyPct := 0.0
	if rl.limitDaily > 0 {
		usageDailyPct = float64(rl.usageDaily) / float64(rl.limitDaily) * 100
	}

	return RateLimitStatus{
		Limit15Min:    rl.limit15Min,
		Usage15Min:    rl.usage15Min,
		LimitDaily:    rl.limitDaily,
		UsageDaily:    rl.usageDaily,
		Usage15MinPct: usage15MinPct,
		UsageDailyPct: usageDailyPct,
		LastUpdated:   rl.lastUpdated,
	}
}

// IsNearLimit returns true if we're approaching rate limits
func (rl *RateLimiter) IsNearLimit(threshold float64) bool {
	status := rl.Status()
	return status.Usage15MinPct >= threshold || status.UsageDailyPct >= threshold
}
