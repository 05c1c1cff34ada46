package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Michaelfleck/paradane-business-bot/internal/analysis"
	"github.com/Michaelfleck/paradane-business-bot/internal/crawl"
	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/freshness"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

// Config controls one Orchestrator instance.
type Config struct {
	// PageCap bounds the pages analyzed per business, root included.
	PageCap int
	// BusinessWindow is the skip-the-whole-run freshness window.
	BusinessWindow time.Duration
	// PageAIWindow is the reuse window for stored summary/classification.
	PageAIWindow time.Duration
	// AuditConcurrency bounds simultaneous performance audits.
	AuditConcurrency int
	// SnapshotPrefix is the blob path prefix for HTML snapshots.
	SnapshotPrefix string
	// Topic, when set, receives a run-completed event per business.
	Topic string
}

func (c *Config) applyDefaults() {
	if c.PageCap <= 0 {
		c.PageCap = 20
	}
	if c.BusinessWindow <= 0 {
		c.BusinessWindow = 24 * time.Hour
	}
	if c.PageAIWindow <= 0 {
		c.PageAIWindow = 7 * 24 * time.Hour
	}
	if c.AuditConcurrency <= 0 {
		c.AuditConcurrency = 4
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = "businesses"
	}
}

// Orchestrator runs the full enrichment pipeline for one business at a time:
// gate, plan, fan out one task per page, await, persist. All collaborators are
// constructor-injected; the orchestrator owns no global state.
type Orchestrator struct {
	renderer   enrich.Renderer
	planner    *crawl.Planner
	summarizer enrich.Summarizer
	classifier enrich.Classifier
	seo        enrich.SEOAuditor
	auditor    enrich.PerformanceAuditor
	store      enrich.PageStore
	blobs      enrich.BlobStore
	publisher  enrich.Publisher
	hasher     enrich.Hasher
	clock      enrich.Clock
	ids        enrich.IDGenerator
	cfg        Config
	logger     *zap.Logger
}

// Deps bundles the orchestrator's collaborators. Renderer, Summarizer,
// Classifier, SEO, Auditor, Store, Clock, and IDs are required; Blobs,
// Publisher, and Hasher are optional (snapshots and events are skipped when
// absent).
type Deps struct {
	Renderer   enrich.Renderer
	Summarizer enrich.Summarizer
	Classifier enrich.Classifier
	SEO        enrich.SEOAuditor
	Auditor    enrich.PerformanceAuditor
	Store      enrich.PageStore
	Blobs      enrich.BlobStore
	Publisher  enrich.Publisher
	Hasher     enrich.Hasher
	Clock      enrich.Clock
	IDs        enrich.IDGenerator
}

// New constructs an Orchestrator, failing fast on missing required deps.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("summarizer is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.SEO == nil:
		return nil, fmt.Errorf("seo auditor is required")
	case deps.Auditor == nil:
		return nil, fmt.Errorf("performance auditor is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("page store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		renderer:   deps.Renderer,
		planner:    crawl.NewPlanner(deps.Renderer, cfg.PageCap, logger),
		summarizer: deps.Summarizer,
		classifier: deps.Classifier,
		seo:        deps.SEO,
		auditor:    deps.Auditor,
		store:      deps.Store,
		blobs:      deps.Blobs,
		publisher:  deps.Publisher,
		hasher:     deps.Hasher,
		clock:      deps.Clock,
		ids:        deps.IDs,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// runState is the mutable per-run bookkeeping shared by page tasks.
type runState struct {
	audits *AuditCache

	mu        sync.Mutex
	persisted int
	failures  []enrich.PageFailure
}

func (s *runState) fail(url string, err error) {
	metrics.ObservePage("failed")
	s.mu.Lock()
	s.failures = append(s.failures, enrich.PageFailure{URL: url, Reason: err.Error()})
	s.mu.Unlock()
}

func (s *runState) success() {
	metrics.ObservePage("persisted")
	s.mu.Lock()
	s.persisted++
	s.mu.Unlock()
}

// EnrichBusiness runs the pipeline for one business. Page-scoped failures are
// collected into the summary; only gate-read, cancellation, and configuration
// faults are returned as errors. Partial success is a normal outcome.
func (o *Orchestrator) EnrichBusiness(ctx context.Context, biz enrich.Business) (enrich.RunSummary, error) {
	if biz.ID == "" || biz.WebsiteURL == "" {
		return enrich.RunSummary{}, fmt.Errorf("business id and website url are required")
	}

	runID, err := o.ids.NewID()
	if err != nil {
		return enrich.RunSummary{}, fmt.Errorf("new run id: %w", err)
	}

	summary := enrich.RunSummary{
		RunID:      runID,
		BusinessID: biz.ID,
		StartedAt:  o.clock.Now(),
	}
	log := o.logger.With(zap.String("run_id", runID), zap.String("business_id", biz.ID))

	// Gated. The record's own timestamp is checked first; the store catches
	// runs the caller does not know about.
	recent := biz.LastEnrichedAt != nil &&
		freshness.Fresh(*biz.LastEnrichedAt, o.cfg.BusinessWindow, o.clock.Now())
	if !recent {
		recent, err = o.store.IsBusinessRecentlyUpdated(ctx, biz.ID, o.cfg.BusinessWindow)
		if err != nil {
			return summary, fmt.Errorf("business freshness check: %w", err)
		}
	}
	if recent {
		log.Info("business enriched recently, skipping run")
		metrics.ObserveBusinessGateSkip()
		summary.Skipped = true
		summary.FinishedAt = o.clock.Now()
		metrics.ObserveRun("skipped", summary.FinishedAt.Sub(summary.StartedAt))
		return summary, nil
	}

	// Discovering
	root := enrich.HomepageURL(biz.WebsiteURL)
	plan, err := o.planner.Plan(ctx, root)
	if err != nil {
		return summary, fmt.Errorf("plan crawl: %w", err)
	}
	summary.PagesAttempted = len(plan.Targets)
	log.Info("crawl planned", zap.Int("pages", len(plan.Targets)))

	// Fanning-Out / Awaiting
	state := &runState{audits: NewAuditCache(ctx, o.auditor, o.cfg.AuditConcurrency)}
	domain := enrich.Host(plan.Targets[0].URL)

	g, taskCtx := errgroup.WithContext(ctx)
	for _, target := range plan.Targets {
		if ctx.Err() != nil {
			state.fail(target.URL, ctx.Err())
			continue
		}
		g.Go(func() error {
			if err := o.processPage(taskCtx, biz, target, plan, domain, state, log); err != nil {
				state.fail(target.URL, err)
				log.Warn("page failed",
					zap.String("url", target.URL),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Persisted
	if err := o.store.TouchBusiness(ctx, biz.ID); err != nil {
		log.Warn("touch business failed", zap.Error(err))
	}

	state.mu.Lock()
	summary.PagesPersisted = state.persisted
	summary.Failures = state.failures
	state.mu.Unlock()
	summary.FinishedAt = o.clock.Now()

	o.publishRunEvent(ctx, summary, log)
	metrics.ObserveRun("completed", summary.FinishedAt.Sub(summary.StartedAt))
	log.Info("run finished",
		zap.Int("attempted", summary.PagesAttempted),
		zap.Int("persisted", summary.PagesPersisted),
		zap.Int("failed", len(summary.Failures)),
	)
	return summary, nil
}

// processPage runs the per-page task: render, extract, gate, analyze,
// persist. Any returned error is page-scoped by construction.
func (o *Orchestrator) processPage(
	ctx context.Context,
	biz enrich.Business,
	target enrich.CrawlTarget,
	plan crawl.Plan,
	domain string,
	state *runState,
	log *zap.Logger,
) error {
	page, err := o.renderTarget(ctx, target, plan)
	if err != nil {
		return err
	}

	rec := enrich.PageRecord{
		BusinessID:  biz.ID,
		URL:         target.URL,
		SocialLinks: analysis.ExtractSocialLinks(page.HTML),
	}
	if email := analysis.ExtractEmails(page.Text, domain); email != "" {
		rec.Email = &email
	}

	o.fillAIFields(ctx, &rec, target.URL, page.Text, log)

	seoRes := o.seo.Audit(page.HTML)
	rec.SEOScore = seoRes.Score
	rec.SEOExplanation = seoRes.Explanation

	perf, err := state.audits.Audit(ctx, target.URL)
	if err != nil {
		log.Warn("performance audit failed", zap.String("url", target.URL), zap.Error(err))
	} else {
		rec.PerformanceScore = perf.Score
		rec.TimeToInteractiveMs = perf.TimeToInteractiveMs
	}

	rec.SnapshotURI = o.snapshotHTML(ctx, biz.ID, page.HTML, log)
	rec.UpdatedAt = o.clock.Now()

	if err := o.store.UpsertPage(ctx, rec); err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	state.success()
	return nil
}

func (o *Orchestrator) renderTarget(ctx context.Context, target enrich.CrawlTarget, plan crawl.Plan) (enrich.Page, error) {
	if target.Source == enrich.SourceRoot && plan.RootPage != nil {
		return *plan.RootPage, nil
	}
	page, err := o.renderer.Render(ctx, target.URL)
	if err != nil {
		return enrich.Page{}, fmt.Errorf("render: %w", err)
	}
	return page, nil
}

// fillAIFields decides between reusing the stored summary/classification and
// recomputing them. Stored AI text younger than the configured window is
// copied forward; everything else is recomputed. Vendor failures degrade to
// the safe defaults rather than failing the page.
func (o *Orchestrator) fillAIFields(ctx context.Context, rec *enrich.PageRecord, url, text string, log *zap.Logger) {
	existing, found, err := o.store.GetPage(ctx, rec.BusinessID, url)
	if err != nil {
		log.Warn("page lookup failed, recomputing", zap.String("url", url), zap.Error(err))
	}
	if found && freshness.Fresh(existing.UpdatedAt, o.cfg.PageAIWindow, o.clock.Now()) {
		metrics.ObservePageAIReuse()
		rec.Summary = existing.Summary
		rec.PageType = existing.PageType
		return
	}

	summary, err := o.summarizer.Summarize(ctx, url, text)
	if err != nil {
		log.Warn("summarize failed", zap.String("url", url), zap.Error(err))
		summary = ""
	}
	rec.Summary = summary

	pageType, err := o.classifier.Classify(ctx, url, summary)
	if err != nil {
		log.Warn("classify failed", zap.String("url", url), zap.Error(err))
		pageType = enrich.PageTypeOther
	}
	if pageType == "" {
		pageType = enrich.PageTypeOther
	}
	rec.PageType = pageType
}

func (o *Orchestrator) snapshotHTML(ctx context.Context, businessID, html string, log *zap.Logger) string {
	if o.blobs == nil || o.hasher == nil || html == "" {
		return ""
	}
	hash, err := o.hasher.Hash([]byte(html))
	if err != nil {
		log.Warn("hash snapshot failed", zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s/%s/%s.html", o.cfg.SnapshotPrefix, businessID, hash)
	uri, err := o.blobs.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		log.Warn("snapshot upload failed", zap.Error(err))
		return ""
	}
	return uri
}

func (o *Orchestrator) publishRunEvent(ctx context.Context, summary enrich.RunSummary, log *zap.Logger) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":          summary.RunID,
		"business_id":     summary.BusinessID,
		"pages_attempted": summary.PagesAttempted,
		"pages_persisted": summary.PagesPersisted,
		"pages_failed":    len(summary.Failures),
		"at":              summary.FinishedAt.Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		log.Warn("publish run event failed", zap.Error(err))
	}
}
