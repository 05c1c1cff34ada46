package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func newTestClient(serverURL string, attempts int) *Client {
	return New(Config{
		APIKey:      "test-key",
		BaseURL:     serverURL,
		MaxAttempts: attempts,
		Timeout:     5 * time.Second,
	}, nil, nil)
}

func TestSummarizeCleansContentAndReturnsSentence(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		chatReply(t, w, "  A cocktail bar in Lisbon.  ")
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	summary, err := client.Summarize(context.Background(), "https://a.test", "Welcome!  <to> the\tbar...")
	require.NoError(t, err)
	require.Equal(t, "A cocktail bar in Lisbon.", summary)

	require.Len(t, gotReq.Messages, 2)
	require.Equal(t, 100, gotReq.MaxTokens)
	require.Contains(t, gotReq.Messages[1].Content, "Content: Welcome to the bar")
}

func TestSummarizeRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		chatReply(t, w, "Recovered summary.")
	}))
	defer srv.Close()

	client := New(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
	}, nil, nil)

	summary, err := client.Summarize(context.Background(), "https://a.test", "text")
	require.NoError(t, err)
	require.Equal(t, "Recovered summary.", summary)
	require.Equal(t, int64(3), hits.Load())
}

func TestSummarizeDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
	}, nil, nil)

	_, err := client.Summarize(context.Background(), "https://a.test", "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
	require.Equal(t, int64(1), hits.Load())
}

func TestSummarizeExhaustedAttemptsReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	_, err := client.Summarize(context.Background(), "https://a.test", "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

func TestSummarizeWithoutKeyIsNoop(t *testing.T) {
	t.Parallel()

	client := New(Config{}, nil, nil)
	summary, err := client.Summarize(context.Background(), "https://a.test", "text")
	require.NoError(t, err)
	require.Empty(t, summary)
}

func TestClassifyReturnsSingleWordLabel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		chatReply(t, w, "Menu")
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	pageType, err := client.Classify(context.Background(), "https://a.test/menu", "The dinner menu.")
	require.NoError(t, err)
	require.Equal(t, enrich.PageTypeMenu, pageType)
}

func TestClassifyMapsNoiseToOther(t *testing.T) {
	t.Parallel()

	for _, noisy := range []string{"", "Menu page", "Menu.", "404", "Menu\nAbout"} {
		noisy := noisy
		t.Run(fmt.Sprintf("%q", noisy), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				chatReply(t, w, noisy)
			}))
			defer srv.Close()

			client := newTestClient(srv.URL, 1)
			pageType, err := client.Classify(context.Background(), "https://a.test", "summary")
			require.NoError(t, err)
			require.Equal(t, enrich.PageTypeOther, pageType)
		})
	}
}

func TestClassifyWithoutKeyReturnsOther(t *testing.T) {
	t.Parallel()

	client := New(Config{}, nil, nil)
	pageType, err := client.Classify(context.Background(), "https://a.test", "summary")
	require.NoError(t, err)
	require.Equal(t, enrich.PageTypeOther, pageType)
}
