// Package analysis implements the cheap per-page analyzers: contact
// extraction and on-page SEO scoring.
package analysis

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailPattern = regexp.MustCompile(`[\w._%+-]+@[\w.-]+\.[a-zA-Z]{2,}`)

// socialHosts are the platforms whose profile links we surface on a page record.
var socialHosts = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"yelp.com",
}

// ExtractEmails pulls email addresses out of page text, deduplicated in
// first-seen order with addresses on the business domain listed first.
// Returns "" when the page has no addresses.
func ExtractEmails(text, businessDomain string) string {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(matches))
	var sameDomain, others []string
	for _, email := range matches {
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if businessDomain != "" && strings.Contains(email, businessDomain) {
			sameDomain = append(sameDomain, email)
		} else {
			others = append(others, email)
		}
	}
	return strings.Join(append(sameDomain, others...), ",")
}

// ExtractSocialLinks collects outbound links to known social platforms,
// deduplicated in document order.
func ExtractSocialLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		lower := strings.ToLower(href)
		for _, host := range socialHosts {
			if strings.Contains(lower, host) {
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}
					links = append(links, href)
				}
				return
			}
		}
	})
	return links
}
