package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func wellFormedPage() string {
	words := strings.Repeat("charlotte dining reservations private events bourbon cellar ", 60)
	return `<!DOCTYPE html><html><head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>The Crunkleton Charlotte - Cocktails and Fine Dining NC</title>
<meta name="description" content="A classic cocktail lounge and restaurant in Charlotte offering craft drinks, fine dining and private events.">
<meta name="robots" content="index, follow">
<link rel="canonical" href="https://example.com/">
<link rel="icon" href="/favicon.ico">
<meta property="og:title" content="The Crunkleton">
<meta property="og:description" content="Cocktail lounge">
<meta property="og:image" content="https://example.com/og.jpg">
<script type="application/ld+json">{"@type":"Restaurant"}</script>
</head><body>
<h1>Welcome</h1>
<h2>Hours</h2>
<p>` + words + `</p>
</body></html>`
}

func TestSEOAuditorWellFormedPagePasses(t *testing.T) {
	t.Parallel()

	res := NewSEOAuditor().Audit(wellFormedPage())
	require.Equal(t, 100, res.Score)
	require.Equal(t, "All key SEO checks passed.", res.Explanation)
}

func TestSEOAuditorEmptyInput(t *testing.T) {
	t.Parallel()

	res := NewSEOAuditor().Audit("   ")
	require.Equal(t, 0, res.Score)
	require.Equal(t, "Empty or invalid HTML input.", res.Explanation)
}

func TestSEOAuditorFlagsMissingElements(t *testing.T) {
	t.Parallel()

	res := NewSEOAuditor().Audit(`<html><head></head><body><p>thin page</p><img src="x.png"></body></html>`)
	require.Less(t, res.Score, 60)
	require.Contains(t, res.Explanation, "Missing <title> tag.")
	require.Contains(t, res.Explanation, "Missing meta description.")
	require.Contains(t, res.Explanation, "Missing <h1> tag.")
	require.Contains(t, res.Explanation, "Image missing alt attribute.")
	require.Contains(t, res.Explanation, "Missing viewport meta tag")
}

func TestSEOAuditorScoreNeverNegative(t *testing.T) {
	t.Parallel()

	imgs := strings.Repeat(`<img src="a.png">`, 60)
	res := NewSEOAuditor().Audit(`<html><body>` + imgs + `</body></html>`)
	require.Equal(t, 0, res.Score)
}
