// Package dispatcher manages worker fan-out over the enrichment queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

// Enricher runs the full pipeline for one business.
type Enricher interface {
	EnrichBusiness(ctx context.Context, biz enrich.Business) (enrich.RunSummary, error)
}

// Dispatcher fans out queued businesses to a pool of workers. Each worker
// runs one business at a time; businesses never interleave within a worker,
// so a slow site delays only its own slot.
type Dispatcher struct {
	queue    enrich.Queue
	enricher Enricher
	workers  int
	logger   *zap.Logger
}

// New creates a Dispatcher with the given worker count.
func New(queue enrich.Queue, enricher Enricher, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    queue,
		enricher: enricher,
		workers:  workers,
		logger:   logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.workerLoop(ctx, n)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, n int) {
	log := d.logger.With(zap.Int("worker", n))
	for {
		biz, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("queue dequeue failed", zap.Error(err))
			return
		}
		d.runBusiness(ctx, biz, log)
	}
}

func (d *Dispatcher) runBusiness(ctx context.Context, biz enrich.Business, log *zap.Logger) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	summary, err := d.enricher.EnrichBusiness(ctx, biz)
	if err != nil {
		metrics.ObserveRun("failed", 0)
		log.Error("business enrichment failed",
			zap.String("business_id", biz.ID),
			zap.Error(err),
		)
		return
	}
	log.Info("business enrichment finished",
		zap.String("business_id", biz.ID),
		zap.String("run_id", summary.RunID),
		zap.Bool("skipped", summary.Skipped),
		zap.Int("pages_persisted", summary.PagesPersisted),
		zap.Int("pages_failed", len(summary.Failures)),
	)
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, biz enrich.Business) error {
	if err := d.queue.Enqueue(ctx, biz); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
