package crawl

import (
	"context"

	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// Plan is the bounded set of pages to analyze for one business. RootPage
// carries the root's rendered content when the render succeeded, so the
// pipeline does not pay for a second render of the same URL.
type Plan struct {
	Targets  []enrich.CrawlTarget
	RootPage *enrich.Page
}

// Planner produces the depth-1 crawl plan: the root page plus up to cap-1
// same-domain links discovered on it. Discovered pages are analyzed but never
// mined for further links.
type Planner struct {
	renderer   enrich.Renderer
	discoverer *Discoverer
	pageCap    int
	logger     *zap.Logger
}

// NewPlanner constructs a Planner. pageCap bounds the total page count,
// root included.
func NewPlanner(renderer enrich.Renderer, pageCap int, logger *zap.Logger) *Planner {
	if pageCap <= 0 {
		pageCap = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		renderer:   renderer,
		discoverer: NewDiscoverer(pageCap - 1),
		pageCap:    pageCap,
		logger:     logger,
	}
}

// Plan renders the root once, discovers its links, and returns the capped
// target set. The root target is always present, even when its render fails;
// in that case discovery is skipped and the failure surfaces later as a
// page-scoped failure in the pipeline. Only context cancellation is returned
// as an error.
func (p *Planner) Plan(ctx context.Context, rootURL string) (Plan, error) {
	root := enrich.NormalizeURL(rootURL)
	plan := Plan{
		Targets: []enrich.CrawlTarget{{URL: root, Source: enrich.SourceRoot}},
	}

	if err := ctx.Err(); err != nil {
		return plan, err
	}

	page, err := p.renderer.Render(ctx, root)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return plan, ctxErr
		}
		p.logger.Warn("root render failed, planning root only",
			zap.String("url", root),
			zap.Error(err),
		)
		return plan, nil
	}
	plan.RootPage = &page

	for _, link := range p.discoverer.Discover(root, page.HTML) {
		if len(plan.Targets) >= p.pageCap {
			break
		}
		plan.Targets = append(plan.Targets, enrich.CrawlTarget{
			URL:    link,
			Source: enrich.SourceDiscovered,
		})
	}
	return plan, nil
}
