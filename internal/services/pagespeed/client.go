// Package pagespeed implements the PerformanceAuditor interface on top of the
// Google PageSpeed Insights API.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
	"github.com/Michaelfleck/paradane-business-bot/internal/metrics"
)

const defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Config controls the PageSpeed client.
type Config struct {
	APIKey  string
	BaseURL string
	// Strategy selects the lighthouse device profile, desktop or mobile.
	Strategy string
	// Timeout bounds one audit attempt. Lighthouse runs are slow; the
	// default is deliberately generous.
	Timeout     time.Duration
	MaxAttempts int
	// RetryBase is the first retry delay; attempt n waits n*RetryBase.
	RetryBase time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Strategy == "" {
		c.Strategy = "desktop"
	}
	if c.Timeout <= 0 {
		c.Timeout = 6 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
}

// Client runs PageSpeed audits against live URLs. This call is the expensive
// leg of the pipeline and sits behind per-run deduplication upstream.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New constructs a Client. An API key is required; PageSpeed rejects
// anonymous audit volume almost immediately.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pagespeed api key is required")
	}
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}, nil
}

type auditResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits struct {
			Interactive struct {
				NumericValue *float64 `json:"numericValue"`
			} `json:"interactive"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// Audit implements enrich.PerformanceAuditor. The lighthouse performance
// score is scaled to 0-100; time-to-interactive is reported in whole
// milliseconds. Either field may be absent in the upstream response and is
// then left nil. Transport errors and 5xx responses are retried; client
// errors other than rate limiting are not.
func (c *Client) Audit(ctx context.Context, target string) (enrich.PerformanceResult, error) {
	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		result, err := c.auditOnce(ctx, target)
		if err == nil {
			metrics.ObserveExternalCall("pagespeed", "ok")
			c.logger.Debug("pagespeed audit finished",
				zap.String("url", target),
				zap.Duration("took", time.Since(started)),
			)
			return result, nil
		}
		lastErr = err
		metrics.ObserveExternalCall("pagespeed", "error")
		c.logger.Warn("pagespeed call failed",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !retryable(err) {
			break
		}
		if attempt < c.cfg.MaxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.cfg.RetryBase); err != nil {
				return enrich.PerformanceResult{}, err
			}
		}
	}
	return enrich.PerformanceResult{}, lastErr
}

func (c *Client) auditOnce(ctx context.Context, target string) (enrich.PerformanceResult, error) {
	q := url.Values{}
	q.Set("url", target)
	q.Set("strategy", c.cfg.Strategy)
	q.Set("key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return enrich.PerformanceResult{}, fmt.Errorf("build pagespeed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return enrich.PerformanceResult{}, fmt.Errorf("pagespeed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return enrich.PerformanceResult{}, &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	var parsed auditResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return enrich.PerformanceResult{}, fmt.Errorf("decode pagespeed response: %w", err)
	}

	var result enrich.PerformanceResult
	if s := parsed.LighthouseResult.Categories.Performance.Score; s != nil {
		score := int(*s * 100)
		result.Score = &score
	}
	if v := parsed.LighthouseResult.Audits.Interactive.NumericValue; v != nil {
		tti := int64(*v)
		result.TimeToInteractiveMs = &tti
	}
	return result, nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pagespeed status %d: %s", e.status, e.body)
}

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
