package analysis

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// SEOAuditor scores raw HTML against a fixed set of on-page checks. Each
// failed check deducts points from a starting score of 100 and contributes
// one line to the explanation.
type SEOAuditor struct{}

// NewSEOAuditor constructs an SEOAuditor.
func NewSEOAuditor() *SEOAuditor {
	return &SEOAuditor{}
}

// Audit implements enrich.SEOAuditor.
func (a *SEOAuditor) Audit(html string) enrich.SEOResult {
	if strings.TrimSpace(html) == "" {
		return enrich.SEOResult{Score: 0, Explanation: "Empty or invalid HTML input."}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return enrich.SEOResult{Score: 0, Explanation: "Empty or invalid HTML input."}
	}

	score := 100
	var issues []string
	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	switch {
	case title == "":
		deduct(10, "Missing <title> tag.")
	case len(title) < 50 || len(title) > 60:
		deduct(5, fmt.Sprintf("<title> length is %d chars (ideal 50-60).", len(title)))
	}

	desc, hasDesc := doc.Find(`meta[name="description"]`).Attr("content")
	desc = strings.TrimSpace(desc)
	switch {
	case !hasDesc || desc == "":
		deduct(10, "Missing meta description.")
	case len(desc) < 50 || len(desc) > 160:
		deduct(5, fmt.Sprintf("Meta description length is %d chars (ideal 50-160).", len(desc)))
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); !ok || href == "" {
		deduct(5, "Missing canonical link.")
	}

	h1s := doc.Find("h1")
	switch {
	case h1s.Length() == 0:
		deduct(10, "Missing <h1> tag.")
	case h1s.Length() > 1:
		deduct(5, "Multiple <h1> tags found (only one preferred).")
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || alt == "" {
			deduct(2, "Image missing alt attribute.")
		}
	})

	a.auditCharset(doc, deduct)

	if doc.Find(`meta[name="viewport"]`).Length() == 0 {
		deduct(5, "Missing viewport meta tag for responsiveness.")
	}

	for _, og := range []string{"og:title", "og:description", "og:image"} {
		if doc.Find(fmt.Sprintf(`meta[property="%s"]`, og)).Length() == 0 {
			deduct(3, fmt.Sprintf("Missing OpenGraph tag: %s.", og))
		}
	}

	a.auditRobotsMeta(doc, deduct)

	bodyText := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	wordCount := 0
	if bodyText != "" {
		wordCount = len(strings.Fields(bodyText))
	}
	if doc.Find("body").Length() > 0 && wordCount < 300 {
		deduct(5, fmt.Sprintf("Low word count (%d, recommended 300+).", wordCount))
	}

	if doc.Find("h2").Length() == 0 {
		deduct(3, "Missing <h2> tags for content structure.")
	}

	if !hasFavicon(doc) {
		deduct(2, "Missing favicon link.")
	}

	if doc.Find(`meta[name="keywords"]`).Length() > 0 {
		issues = append(issues, "Meta keywords tag found (deprecated, should be removed).")
	}

	if doc.Find(`script[type="application/ld+json"]`).Length() == 0 {
		deduct(3, "Missing structured data (JSON-LD).")
	}

	if len(html) > 0 {
		ratio := float64(len(bodyText)) / float64(len(html)) * 100
		if ratio < 10 {
			deduct(5, fmt.Sprintf("Low text-to-HTML ratio (%.1f%%).", ratio))
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	explanation := "All key SEO checks passed."
	if len(issues) > 0 {
		explanation = strings.Join(issues, "; ")
	}
	return enrich.SEOResult{Score: score, Explanation: explanation}
}

func (a *SEOAuditor) auditCharset(doc *goquery.Document, deduct func(int, string)) {
	if charset, ok := doc.Find("meta[charset]").Attr("charset"); ok {
		if !strings.EqualFold(charset, "utf-8") {
			deduct(3, "Charset is not UTF-8.")
		}
		return
	}
	content, ok := doc.Find(`meta[http-equiv="Content-Type"]`).Attr("content")
	if !ok {
		deduct(5, "Missing meta charset tag.")
		return
	}
	if !strings.Contains(strings.ToLower(content), "utf-8") {
		deduct(3, "Meta charset not set to UTF-8.")
	}
}

func (a *SEOAuditor) auditRobotsMeta(doc *goquery.Document, deduct func(int, string)) {
	content, ok := doc.Find(`meta[name="robots"]`).Attr("content")
	if !ok {
		deduct(5, "Missing robots meta tag (recommended: index, follow).")
		return
	}
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "index") || !strings.Contains(lower, "follow") {
		deduct(3, fmt.Sprintf("Robots meta not best practice: '%s'.", lower))
	}
}

func hasFavicon(doc *goquery.Document) bool {
	found := false
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if strings.Contains(strings.ToLower(rel), "icon") {
			found = true
			return false
		}
		return true
	})
	return found
}
