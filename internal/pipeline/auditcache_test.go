package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

type auditorFunc func(ctx context.Context, url string) (enrich.PerformanceResult, error)

func (f auditorFunc) Audit(ctx context.Context, url string) (enrich.PerformanceResult, error) {
	return f(ctx, url)
}

func intp(v int) *int { return &v }

func TestAuditCacheSingleCallPerURL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	auditor := auditorFunc(func(_ context.Context, _ string) (enrich.PerformanceResult, error) {
		calls.Add(1)
		return enrich.PerformanceResult{Score: intp(88)}, nil
	})
	cache := NewAuditCache(context.Background(), auditor, 4)

	for i := 0; i < 3; i++ {
		res, err := cache.Audit(context.Background(), "https://a.test/menu")
		require.NoError(t, err)
		require.Equal(t, 88, *res.Score)
	}
	require.Equal(t, int64(1), calls.Load())

	_, err := cache.Audit(context.Background(), "https://a.test/about")
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestAuditCacheConcurrentCallersShareOneCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	auditor := auditorFunc(func(_ context.Context, _ string) (enrich.PerformanceResult, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return enrich.PerformanceResult{Score: intp(42)}, nil
	})
	cache := NewAuditCache(context.Background(), auditor, 4)

	results := make(chan *int, 3)
	errs := make(chan error, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Audit(context.Background(), "https://a.test")
			results <- res.Score
			errs <- err
		}()
	}

	<-started
	// Give the remaining callers a moment to attach to the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)
	close(errs)

	require.Equal(t, int64(1), calls.Load())
	for err := range errs {
		require.NoError(t, err)
	}
	for score := range results {
		require.Equal(t, 42, *score)
	}
}

func TestAuditCacheSharesErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	auditor := auditorFunc(func(_ context.Context, url string) (enrich.PerformanceResult, error) {
		calls.Add(1)
		return enrich.PerformanceResult{}, fmt.Errorf("audit %s: upstream 500", url)
	})
	cache := NewAuditCache(context.Background(), auditor, 4)

	_, err1 := cache.Audit(context.Background(), "https://a.test")
	_, err2 := cache.Audit(context.Background(), "https://a.test")
	require.Error(t, err1)
	require.Equal(t, err1, err2)
	require.Equal(t, int64(1), calls.Load())
}

func TestAuditCacheBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	release := make(chan struct{})
	auditor := auditorFunc(func(_ context.Context, _ string) (enrich.PerformanceResult, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		<-release
		return enrich.PerformanceResult{}, nil
	})
	cache := NewAuditCache(context.Background(), auditor, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		url := fmt.Sprintf("https://a.test/p%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Audit(context.Background(), url)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(2))
}

func TestAuditCacheCallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	auditor := auditorFunc(func(_ context.Context, _ string) (enrich.PerformanceResult, error) {
		<-release
		return enrich.PerformanceResult{Score: intp(61)}, nil
	})
	cache := NewAuditCache(context.Background(), auditor, 4)

	callerCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Audit(callerCtx, "https://a.test")
		first <- err
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	// The underlying call is bound to the run context, not the cancelled
	// caller, so a second caller still gets the result.
	close(release)
	res, err := cache.Audit(context.Background(), "https://a.test")
	require.NoError(t, err)
	require.Equal(t, 61, *res.Score)
}
