package render

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// CollyConfig controls the plain-HTTP backend.
type CollyConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	Parallelism    int
}

// CollyBackend fetches pages over plain HTTP via colly. It is the non-headless
// rendering mode for sites that do not need a browser, and for local and test
// environments where Chrome is unavailable.
type CollyBackend struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type fetchResult struct {
	page enrich.Page
	err  error
}

// NewCollyBackend constructs a configured colly-based backend.
func NewCollyBackend(cfg CollyConfig, logger *zap.Logger) (*CollyBackend, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, err
	}

	return &CollyBackend{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Render implements Backend. Body text is derived from the fetched HTML.
func (b *CollyBackend) Render(ctx context.Context, rawURL string) (enrich.Page, error) {
	collector := b.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= 400 {
			send(fetchResult{err: &StatusError{URL: rawURL, StatusCode: r.StatusCode}})
			return
		}
		html := string(r.Body)
		send(fetchResult{page: enrich.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       html,
			Text:       bodyText(html),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode >= 400 {
			err = &StatusError{URL: rawURL, StatusCode: r.StatusCode}
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return enrich.Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return enrich.Page{}, err
		}
		return res.page, res.err
	case <-ctx.Done():
		return enrich.Page{}, ctx.Err()
	}
}

// bodyText flattens the page body to whitespace-normalized text.
func bodyText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}
