// Package crawl produces the bounded page set analyzed for one business.
package crawl

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// assetExtensions are link suffixes that never lead to analyzable pages.
var assetExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg",
	".webp", ".ico", ".tiff", ".pdf", ".doc", ".docx",
	".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".rar",
	".css", ".js", ".json", ".xml",
}

// Discoverer extracts same-domain page links from rendered HTML.
type Discoverer struct {
	maxLinks int
}

// NewDiscoverer builds a Discoverer that returns at most maxLinks links.
func NewDiscoverer(maxLinks int) *Discoverer {
	if maxLinks <= 0 {
		maxLinks = 20
	}
	return &Discoverer{maxLinks: maxLinks}
}

// Discover returns normalized, deduplicated, same-host, non-asset links found
// in html, in document order, capped at the configured maximum. The page's own
// URL is excluded. Discovery is not exhaustive: first seen wins.
func (d *Discoverer) Discover(pageURL, html string) []string {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	host := strings.ToLower(base.Host)
	self := enrich.NormalizeURL(pageURL)
	seen := map[string]struct{}{self: {}}
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if strings.ToLower(abs.Host) != host {
			return true
		}
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		normalized := enrich.NormalizeURL(abs.String())
		if isAssetLink(normalized) {
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
		return len(links) < d.maxLinks
	})

	return links
}

func isAssetLink(link string) bool {
	lower := strings.ToLower(link)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
