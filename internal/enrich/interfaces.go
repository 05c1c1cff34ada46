package enrich

import (
	"context"
	"time"
)

// Renderer loads a URL and returns its rendered content.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}

// Summarizer produces a one-line summary of a page's text.
// Implementations must tolerate empty input and return "" rather than fail hard.
type Summarizer interface {
	Summarize(ctx context.Context, url, text string) (string, error)
}

// Classifier assigns a page type given its URL and summary.
// Implementations return PageTypeOther when uncertain.
type Classifier interface {
	Classify(ctx context.Context, url, summary string) (PageType, error)
}

// SEOAuditor scores raw HTML for on-page SEO quality.
type SEOAuditor interface {
	Audit(html string) SEOResult
}

// PerformanceAuditor runs a performance audit against a live URL. This is the
// expensive call that sits behind per-run deduplication.
type PerformanceAuditor interface {
	Audit(ctx context.Context, url string) (PerformanceResult, error)
}

// PageStore persists page records and answers the freshness questions the
// staleness gates need.
type PageStore interface {
	UpsertPage(ctx context.Context, rec PageRecord) error
	GetPage(ctx context.Context, businessID, url string) (PageRecord, bool, error)
	IsBusinessRecentlyUpdated(ctx context.Context, businessID string, within time.Duration) (bool, error)
	TouchBusiness(ctx context.Context, businessID string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue hands enrichment jobs from the API to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, biz Business) error
	Dequeue(ctx context.Context) (Business, error)
}

// Hasher computes digests for snapshot paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
