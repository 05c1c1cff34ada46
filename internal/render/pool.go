package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

// Backend performs a single render attempt against one URL.
type Backend interface {
	Render(ctx context.Context, rawURL string) (enrich.Page, error)
}

// PoolConfig controls pool capacity and retry behavior.
type PoolConfig struct {
	// Concurrency bounds in-flight renders across every caller sharing the
	// pool. Rendering is the most expensive operation in the pipeline, so
	// the default is deliberately small.
	Concurrency int
	// Attempts is the per-URL attempt budget, including the first try.
	Attempts int
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c *PoolConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 60 * time.Second
	}
}

// Pool wraps a Backend with a shared concurrency bound, bounded retries, and
// the documented HTTPS-to-HTTP fallback on connection resets.
type Pool struct {
	backend Backend
	sem     chan struct{}
	cfg     PoolConfig
	backoff backoffPolicy
	logger  *zap.Logger
}

// NewPool constructs a Pool around the given backend.
func NewPool(backend Backend, cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if backend == nil {
		return nil, fmt.Errorf("render backend is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		backend: backend,
		sem:     make(chan struct{}, cfg.Concurrency),
		cfg:     cfg,
		backoff: newBackoffPolicy(cfg.BackoffInitial, cfg.BackoffMax),
		logger:  logger,
	}, nil
}

// Render implements enrich.Renderer. It acquires a pool slot, then retries
// the backend up to the attempt budget. When an attempt fails with a
// reset-class error over HTTPS, subsequent attempts are issued against the
// HTTP variant of the same URL. This protocol downgrade is preserved,
// documented behavior of the source system, not a recommendation; every
// occurrence is logged and counted.
func (p *Pool) Render(ctx context.Context, rawURL string) (enrich.Page, error) {
	release, err := p.acquireSlot(ctx)
	if err != nil {
		return enrich.Page{}, err
	}
	defer release()

	target := rawURL
	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt < p.cfg.Attempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts++
		page, attemptErr := p.renderOnce(ctx, target)
		if attemptErr == nil {
			page.Downgraded = target != rawURL
			if page.URL == "" {
				page.URL = rawURL
			}
			return page, nil
		}
		lastErr = attemptErr
		metrics.ObserveRenderRetry()
		p.logger.Warn("render attempt failed",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Error(attemptErr),
		)

		if isPermanentStatus(attemptErr) {
			break
		}

		if isResetClass(attemptErr) && strings.HasPrefix(target, "https://") {
			target = "http://" + strings.TrimPrefix(target, "https://")
			metrics.ObserveProtocolDowngrade()
			p.logger.Warn("downgrading to http after connection reset",
				zap.String("url", rawURL),
				zap.String("fallback", target),
			)
		}

		if attempt < p.cfg.Attempts-1 {
			if waitErr := sleepCtx(ctx, p.backoff.Backoff(attempt)); waitErr != nil {
				lastErr = waitErr
				break
			}
		}
	}

	return enrich.Page{}, &Error{
		Kind:     classify(lastErr),
		URL:      rawURL,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (p *Pool) renderOnce(ctx context.Context, target string) (enrich.Page, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()
	return p.backend.Render(attemptCtx, target)
}

func (p *Pool) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
