// Package pipeline coordinates the per-business enrichment run.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

// auditCall is one in-flight or completed audit future.
type auditCall struct {
	done chan struct{}
	res  enrich.PerformanceResult
	err  error
}

// AuditCache deduplicates performance audits within a single run: the first
// caller for a URL schedules the audit on a bounded worker pool and every
// later caller for the same URL awaits that same result. The cache is scoped
// to one run and must be constructed fresh per invocation; sharing it across
// runs would leak results between businesses.
type AuditCache struct {
	auditor enrich.PerformanceAuditor
	runCtx  context.Context
	sem     chan struct{}
	mu      sync.Mutex
	calls   map[string]*auditCall
}

// NewAuditCache builds a per-run cache. runCtx bounds the lifetime of every
// scheduled audit, so a caller-side cancellation does not strand other
// waiters mid-call. concurrency bounds simultaneous underlying audits.
func NewAuditCache(runCtx context.Context, auditor enrich.PerformanceAuditor, concurrency int) *AuditCache {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &AuditCache{
		auditor: auditor,
		runCtx:  runCtx,
		sem:     make(chan struct{}, concurrency),
		calls:   make(map[string]*auditCall),
	}
}

// Audit returns the audit result for url, invoking the underlying auditor at
// most once per URL for the lifetime of the cache.
func (c *AuditCache) Audit(ctx context.Context, url string) (enrich.PerformanceResult, error) {
	c.mu.Lock()
	if call, ok := c.calls[url]; ok {
		c.mu.Unlock()
		metrics.ObserveAuditDedupHit()
		return c.await(ctx, call)
	}
	call := &auditCall{done: make(chan struct{})}
	c.calls[url] = call
	c.mu.Unlock()

	go c.execute(call, url)
	return c.await(ctx, call)
}

func (c *AuditCache) execute(call *auditCall, url string) {
	defer close(call.done)

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-c.runCtx.Done():
		call.err = fmt.Errorf("acquire audit slot: %w", c.runCtx.Err())
		return
	}

	call.res, call.err = c.auditor.Audit(c.runCtx, url)
}

func (c *AuditCache) await(ctx context.Context, call *auditCall) (enrich.PerformanceResult, error) {
	select {
	case <-call.done:
		return call.res, call.err
	case <-ctx.Done():
		return enrich.PerformanceResult{}, ctx.Err()
	}
}
