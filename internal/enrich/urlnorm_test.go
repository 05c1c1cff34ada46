package enrich

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/Path", "http://example.com/Path"},
		{"strips default http port", "http://example.com:80/foo", "http://example.com/foo"},
		{"strips default https port", "https://example.com:443/foo", "https://example.com/foo"},
		{"keeps explicit port", "https://example.com:8443/foo", "https://example.com:8443/foo"},
		{"strips fragment", "https://example.com/foo#section", "https://example.com/foo"},
		{"strips query", "https://example.com/foo?utm_source=x", "https://example.com/foo"},
		{"collapses trailing slash", "https://example.com/foo/", "https://example.com/foo"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"bare host untouched", "https://example.com", "https://example.com"},
		{"unparsable passes through", "http://exa mple.com/%zz", "http://exa mple.com/%zz"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://Example.com:80/Foo/",
		"https://example.com/a/b/?q=1#frag",
		"https://example.com",
		"not a url at all",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		require.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestNormalizeURLEquivalence(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		NormalizeURL("http://Example.com:80/foo/"),
		NormalizeURL("http://example.com/foo"),
	)
}

func TestHomepageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://thecrunkleton.com", HomepageURL("https://thecrunkleton.com/locations/charlotte/menus"))
	require.Equal(t, "https://example.com", HomepageURL("HTTPS://Example.com/about"))
	require.Equal(t, "/relative/path", HomepageURL("/relative/path"))
	require.Equal(t, "", HomepageURL(""))
}

func TestHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", Host("https://Example.com/foo"))
	require.Equal(t, "", Host("http://exa mple.com/%zz"))
}
