// Package enrich defines core types shared across the enrichment subsystems.
package enrich

import "time"

// Business is the unit of work for one enrichment run.
type Business struct {
	ID             string     `json:"id"`
	WebsiteURL     string     `json:"website_url"`
	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`
}

// TargetSource records how a crawl target was found.
type TargetSource string

// Target sources.
const (
	SourceRoot       TargetSource = "root"
	SourceDiscovered TargetSource = "discovered"
)

// CrawlTarget is a normalized URL selected for analysis. It lives only for
// the duration of one run and is never persisted.
type CrawlTarget struct {
	URL    string
	Source TargetSource
}

// PageType classifies what a page is for.
type PageType string

// Well-known page types. Classification may return other single-word values;
// PageTypeOther is the safe default.
const (
	PageTypeHomepage PageType = "Homepage"
	PageTypeAbout    PageType = "About"
	PageTypeContact  PageType = "Contact"
	PageTypeMenu     PageType = "Menu"
	PageTypeOther    PageType = "Other"
)

// PageRecord is the persisted analysis result for one (business, url) pair.
// Upserts are idempotent on that pair; UpdatedAt reflects the last touch,
// whether or not the AI-derived fields were recomputed.
type PageRecord struct {
	BusinessID          string    `json:"business_id"`
	URL                 string    `json:"url"`
	PageType            PageType  `json:"page_type"`
	Summary             string    `json:"summary"`
	Email               *string   `json:"email,omitempty"`
	SocialLinks         []string  `json:"social_links,omitempty"`
	SEOScore            int       `json:"seo_score"`
	SEOExplanation      string    `json:"seo_explanation"`
	PerformanceScore    *int      `json:"page_speed_score,omitempty"`
	TimeToInteractiveMs *int64    `json:"time_to_interactive_ms,omitempty"`
	SnapshotURI         string    `json:"snapshot_uri,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Page is the rendered form of a URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Text       string
	Downgraded bool
}

// SEOResult is produced by the SEO auditor.
type SEOResult struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// PerformanceResult is produced by the performance auditor. Either field may
// be absent when the upstream audit omits it.
type PerformanceResult struct {
	Score               *int   `json:"page_speed_score"`
	TimeToInteractiveMs *int64 `json:"time_to_interactive_ms"`
}

// PageFailure describes one page-scoped failure inside a run.
type PageFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunSummary is returned to the caller of one business run. Partial page
// failure is an accepted outcome, not an error.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	BusinessID     string        `json:"business_id"`
	Skipped        bool          `json:"skipped"`
	PagesAttempted int           `json:"pages_attempted"`
	PagesPersisted int           `json:"pages_persisted"`
	Failures       []PageFailure `json:"failures,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}
