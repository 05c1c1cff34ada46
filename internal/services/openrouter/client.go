// Package openrouter implements the Summarizer and Classifier interfaces on
// top of the OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "meta-llama/llama-3.3-70b-instruct"
)

// Config controls the OpenRouter client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
	Timeout     time.Duration
	// RetryBase is the first retry delay; attempt n waits n*RetryBase.
	RetryBase time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
}

// Client calls OpenRouter chat completions. A client without an API key is
// valid and degrades to the safe defaults without any network calls, so the
// pipeline can run with AI analysis disabled.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New constructs a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var wordPattern = regexp.MustCompile(`\w+`)

const summarizeInstruction = "You write one-sentence summaries of webpages stating what it is about. " +
	"Focus only on the main subject or purpose of the page. " +
	"Prefer concrete details over fluff. " +
	"Avoid marketing language and avoid lists. " +
	"Output exactly one sentence without quotes."

// Summarize implements enrich.Summarizer. The page text is collapsed to bare
// words before prompting so markup noise never reaches the model.
func (c *Client) Summarize(ctx context.Context, url, text string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", nil
	}
	cleaned := strings.Join(wordPattern.FindAllString(text, -1), " ")
	prompt := fmt.Sprintf("Summarize the following based on the URL and content below.\n\nURL: %s\nContent: %s", url, cleaned)

	out, err := c.complete(ctx, summarizeInstruction, prompt, 100)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", url, err)
	}
	return strings.TrimSpace(out), nil
}

const classifyInstruction = "You are a page classifier for sites. " +
	"Classify the page into exactly one canonical category term. " +
	"For example: Homepage, About, Contact, Menu, Press, Blog, Article, Product, Services, Gallery, Events, Reservations, Careers, FAQ, Reviews, Location, Legal, etc. " +
	"Rules: Output only the single category word from the set. No punctuation, no sentences, no explanations. " +
	"If uncertain, output Other."

// Classify implements enrich.Classifier. Anything that is not a single
// alphabetic word is treated as model noise and mapped to Other.
func (c *Client) Classify(ctx context.Context, url, summary string) (enrich.PageType, error) {
	if c.cfg.APIKey == "" {
		return enrich.PageTypeOther, nil
	}
	prompt := fmt.Sprintf("URL: %s\nSummary: %s", url, summary)

	out, err := c.complete(ctx, classifyInstruction, prompt, 5)
	if err != nil {
		return enrich.PageTypeOther, fmt.Errorf("classify %s: %w", url, err)
	}
	label := strings.TrimSpace(out)
	if !isSingleWord(label) {
		return enrich.PageTypeOther, nil
	}
	return enrich.PageType(label), nil
}

func isSingleWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			return false
		}
	}
	return true
}

func (c *Client) complete(ctx context.Context, instruction, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		out, err := c.post(ctx, body)
		if err == nil {
			metrics.ObserveExternalCall("openrouter", "ok")
			return out, nil
		}
		lastErr = err
		metrics.ObserveExternalCall("openrouter", "error")
		c.logger.Warn("openrouter call failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !retryable(err) {
			break
		}
		if attempt < c.cfg.MaxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.cfg.RetryBase); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openrouter status %d: %s", e.status, e.body)
}

// retryable reports whether another attempt might succeed. Client errors
// other than rate limiting are terminal.
func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
