// Package ratelimit composes a per-indexer and a per-host token-bucket
// limiter, the two independent layers a search dispatch checks before
// issuing an upstream call.
package ratelimit

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CheckResult is returned by Check: if CanProceed is false, WaitMs is how
// long the caller would have to wait and Reason explains which layer
// refused.
type CheckResult struct {
	CanProceed bool
	WaitMs     int64
	Reason     string
}

// Limiter owns one token bucket per key (indexer ID or host name), created
// lazily on first use.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*rate.Limiter
	ratePerMin   int
	burst        int
}

// NewLimiter builds a Limiter whose buckets refill at ratePerMinute tokens
// per minute with the given burst size.
func NewLimiter(ratePerMinute, burst int) *Limiter {
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets:    make(map[string]*rate.Limiter),
		ratePerMin: ratePerMinute,
		burst:      burst,
	}
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		every := time.Minute / time.Duration(l.ratePerMin)
		b = rate.NewLimiter(rate.Every(every), l.burst)
		l.buckets[key] = b
	}
	return b
}

// Check reports whether a request against key can proceed immediately. When
// it cannot, WaitMs reports how long the caller would need to wait for a
// token to become available, without reserving one.
func (l *Limiter) Check(key string) CheckResult {
	b := l.bucketFor(key)
	now := time.Now()
	r := b.ReserveN(now, 1)
	if !r.OK() {
		return CheckResult{CanProceed: false, Reason: "rate limit: burst exceeded"}
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		r.CancelAt(now)
		return CheckResult{CanProceed: true}
	}
	r.CancelAt(now)
	return CheckResult{
		CanProceed: false,
		WaitMs:     delay.Milliseconds(),
		Reason:     fmt.Sprintf("rate limit: wait %s", delay),
	}
}

// RecordRequest marks one unit of capacity as consumed for key. Check never
// consumes capacity, so callers record each request they actually dispatch
// with this.
func (l *Limiter) RecordRequest(key string) {
	l.bucketFor(key).AllowN(time.Now(), 1)
}

// HostKey derives the per-host limiter key from an indexer base URL, so
// indexers that share an upstream host are coalesced onto one bucket.
func HostKey(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(baseURL))
	}
	return strings.ToLower(u.Hostname())
}

// Registry composes the per-indexer and per-host limiters a search dispatch
// needs, and honors whichever layer's wait is larger.
type Registry struct {
	Indexer *Limiter
	Host    *Limiter
}

// NewRegistry builds a Registry from the configured rates.
func NewRegistry(indexerPerMin, hostPerMin, burst int) *Registry {
	return &Registry{
		Indexer: NewLimiter(indexerPerMin, burst),
		Host:    NewLimiter(hostPerMin, burst),
	}
}

// Check runs both layers and returns the larger of the two waits. The
// indexerID and baseURL identify the two bucket keys.
func (r *Registry) Check(indexerID, baseURL string) CheckResult {
	ic := r.Indexer.Check(indexerID)
	hc := r.Host.Check(HostKey(baseURL))
	switch {
	case !ic.CanProceed && !hc.CanProceed:
		if ic.WaitMs >= hc.WaitMs {
			return ic
		}
		return hc
	case !ic.CanProceed:
		return ic
	case !hc.CanProceed:
		return hc
	default:
		return CheckResult{CanProceed: true}
	}
}

// RecordSuccess marks one unit of capacity as consumed on both layers after
// a dispatch actually went out.
func (r *Registry) RecordSuccess(indexerID, baseURL string) {
	r.Indexer.RecordRequest(indexerID)
	r.Host.RecordRequest(HostKey(baseURL))
}
