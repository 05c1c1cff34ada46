package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// ErrRendererDisabled indicates headless rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// ChromedpConfig controls the headless Chrome backend.
type ChromedpConfig struct {
	UserAgent   string
	NavTimeout  time.Duration
	PerHostQPS  float64
	HeadlessOff bool
}

// ChromedpBackend renders pages with headless Chrome via chromedp. One
// browser process is shared; each render runs in its own tab. Concurrency is
// bounded by the Pool, not here.
type ChromedpBackend struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	navTimeout      time.Duration
	userAgent       string
	perHostQPS      float64
	hostLimiters    sync.Map
}

// NewChromedpBackend launches the shared browser process.
func NewChromedpBackend(cfg ChromedpConfig, logger *zap.Logger) (*ChromedpBackend, error) {
	if cfg.HeadlessOff {
		return nil, ErrRendererDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpBackend{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		navTimeout:      cfg.NavTimeout,
		userAgent:       cfg.UserAgent,
		perHostQPS:      cfg.PerHostQPS,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (b *ChromedpBackend) Close() {
	if b == nil {
		return
	}
	b.browserCancel()
	b.allocatorCancel()
}

// Render implements Backend.
func (b *ChromedpBackend) Render(ctx context.Context, rawURL string) (enrich.Page, error) {
	if waitErr := b.waitHostBudget(ctx, rawURL); waitErr != nil {
		return enrich.Page{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, b.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	b.recordResponse(tabCtx, meta)

	var html, text string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(b.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	}
	if runErr := chromedp.Run(taskCtx, tasks); runErr != nil {
		return enrich.Page{}, fmt.Errorf("chromedp run: %w", runErr)
	}

	if meta.statusCode >= 400 {
		return enrich.Page{}, &StatusError{URL: rawURL, StatusCode: meta.statusCode}
	}

	return enrich.Page{
		URL:        rawURL,
		FinalURL:   meta.finalURL(rawURL),
		StatusCode: meta.statusCode,
		HTML:       html,
		Text:       text,
	}, nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}

func (b *ChromedpBackend) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
		})
	})
}

func (b *ChromedpBackend) waitHostBudget(ctx context.Context, rawURL string) error {
	if b.perHostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := b.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(b.perHostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
