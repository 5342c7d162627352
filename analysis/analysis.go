// Package analysis runs post-crawl checks over a set of page URLs: broken links
// and redirects, duplicate content and meta tags, the internal link graph, and
// content uniqueness.
//
// Each check samples a bounded prefix of the URL list. Page bodies are fetched
// through one rate-limited fetcher and cached, so running several checks over
// the same URLs fetches each page once.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/cache"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "seoscan-bot/1.0"

	brokenLinkSample = 100
	duplicateSample  = 200
	structureSample  = 200
	uniqueSample     = 100
)

var (
	ErrHTTPClientRequired = errors.New("http client is required")

	errNotHTML    = errors.New("not an html page")
	errPageStatus = errors.New("page returned error status")
)

// ProgressFunc receives the number of processed sample items and the sample size.
type ProgressFunc func(done, total int)

// Config configures an Analyzer. RPS <= 0 disables rate limiting.
type Config struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Retries    int
	RPS        float64
	Clock      limiter.Timer
	Logger     *zap.Logger
}

// Analyzer runs the checks. It is safe for concurrent use.
type Analyzer struct {
	pages  *fetcher.Fetcher
	links  *fetcher.Fetcher
	logger *zap.Logger
	cache  *cache.Cache[*page]
	group  singleflight.Group
}

type page struct {
	url    *url.URL
	status int
	doc    *goquery.Document
}

// New creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.HTTPClient == nil {
		return nil, ErrHTTPClientRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Clock == nil {
		cfg.Clock = limiter.NewClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	waiter := limiter.ForRate(cfg.RPS, 0, cfg.Clock)

	return &Analyzer{
		pages: fetcher.New(cfg.HTTPClient, cfg.Timeout, cfg.UserAgent, waiter, cfg.Retries, 0, cfg.Clock),
		links: fetcher.New(fetcher.NoRedirectClient(cfg.HTTPClient), cfg.Timeout, cfg.UserAgent, waiter,
			cfg.Retries, 0, cfg.Clock),
		logger: cfg.Logger,
		cache:  cache.New[*page](),
	}, nil
}

// load returns the parsed page for rawURL, fetching it at most once per Analyzer.
func (a *Analyzer) load(ctx context.Context, rawURL string) (*page, error) {
	if cached, ok := a.cache.Get(rawURL); ok {
		return cached, nil
	}

	value, err, _ := a.group.Do(rawURL, func() (any, error) {
		if cached, ok := a.cache.Get(rawURL); ok {
			return cached, nil
		}

		loaded, err := a.fetchPage(ctx, rawURL)
		if err != nil {
			return nil, err
		}

		a.cache.Set(rawURL, loaded)

		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*page), nil
}

func (a *Analyzer) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	result, err := a.pages.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	if result.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s %d", errPageStatus, rawURL, result.StatusCode)
	}

	if !result.IsHTML() {
		return nil, fmt.Errorf("%w: %s", errNotHTML, rawURL)
	}

	doc, err := parser.Document(result.Body, result.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	base, err := url.Parse(result.FinalURL)
	if err != nil || result.FinalURL == "" {
		base, err = url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", rawURL, err)
		}
	}

	return &page{url: base, status: result.StatusCode, doc: doc}, nil
}

// loadOrSkip loads a sampled page and logs failures. It returns nil when the
// page cannot be analyzed; callers check ctx themselves.
func (a *Analyzer) loadOrSkip(ctx context.Context, check string, rawURL string) *page {
	loaded, err := a.load(ctx, rawURL)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("page skipped", zap.String("check", check), zap.String("url", rawURL), zap.Error(err))
		}

		return nil
	}

	return loaded
}

// sample returns at most limit distinct non-empty URLs in input order.
func sample(urls []string, limit int) []string {
	seen := make(map[string]bool, min(len(urls), limit))
	sampled := make([]string, 0, min(len(urls), limit))
	for _, raw := range urls {
		if len(sampled) == limit {
			break
		}

		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			continue
		}

		seen[raw] = true
		sampled = append(sampled, raw)
	}

	return sampled
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

func report(onProgress ProgressFunc, done, total int) {
	if onProgress != nil {
		onProgress(done, total)
	}
}
