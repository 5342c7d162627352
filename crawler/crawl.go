// Package crawler implements a sequential breadth-first site crawler.
//
// One crawl runs one fetch at a time, spaced by the crawl delay. The
// frontier and the visited set belong to a single call, so concurrent crawls
// share nothing but the optional robots.txt policy.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/frontier"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/robots"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
)

type crawl struct {
	opts    Options
	base    *url.URL
	fetch   *fetcher.Fetcher
	policy  *robots.Policy
	queue   *frontier.Frontier
	visited map[string]bool
	result  Result
}

// Crawl traverses baseURL breadth-first and returns the visited URLs with per-page details.
// Per-page failures are recorded on the page and never abort the crawl.
// When ctx is cancelled the partial result is returned together with ctx.Err().
func Crawl(ctx context.Context, baseURL string, opts Options) (Result, error) {
	if opts.HTTPClient == nil {
		return Result{}, ErrHTTPClientRequired
	}

	base, err := parseRootURL(baseURL)
	if err != nil {
		return Result{}, err
	}

	opts = withDefaults(opts)
	delay := limiter.ForRate(0, opts.CrawlDelay, opts.Clock)
	c := &crawl{
		opts:    opts,
		base:    base,
		fetch:   fetcher.New(opts.HTTPClient, opts.Timeout, opts.UserAgent, delay, opts.Retries, 0, opts.Clock),
		queue:   frontier.New(),
		visited: map[string]bool{},
		result:  Result{URLs: []string{}, Pages: []PageDetail{}},
	}

	if !opts.IgnoreRobotsTxt {
		c.policy = opts.Robots
		if c.policy == nil {
			c.policy = robots.New(c.fetch, opts.Logger)
		}
		c.policy.Load(ctx, base.String())
	}

	err = c.run(ctx)
	c.result.Discovered = c.queue.Drain()
	c.result.Truncated = len(c.result.Discovered) > 0

	return c.result, err
}

func parseRootURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Path == "/" {
		parsed.Path = ""
		parsed.RawPath = ""
	}

	return parsed, nil
}

func (c *crawl) run(ctx context.Context) error {
	c.queue.Push(frontier.Item{URL: c.base.String(), Depth: 0})

	for c.queue.Len() > 0 && len(c.visited) < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, ok := c.queue.Pop()
		if !ok {
			break
		}

		if c.visited[item.URL] || item.Depth > c.opts.MaxDepth {
			continue
		}

		if c.disallowed(ctx, item.URL) {
			c.opts.Logger.Debug("skipped by robots.txt", zap.String("url", item.URL))

			continue
		}

		if err := c.visit(ctx, item); err != nil {
			return err
		}

		c.reportProgress(item.URL)
	}

	return nil
}

// disallowed checks rawURL against the robots.txt of its own origin and, for
// hosts that count as the crawled domain, against the rules of the base URL.
func (c *crawl) disallowed(ctx context.Context, rawURL string) bool {
	if c.policy == nil {
		return false
	}

	c.policy.Load(ctx, rawURL)
	if c.policy.IsDisallowed(rawURL) {
		return true
	}

	if !urlutil.SameDomain(c.base.Host, rawURL) {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return robots.Disallows(c.policy.Rules(c.base.String()), parsed.Path)
}

func (c *crawl) visit(ctx context.Context, item frontier.Item) error {
	c.visited[item.URL] = true
	c.result.URLs = append(c.result.URLs, item.URL)

	page := PageDetail{URL: item.URL, Depth: item.Depth}
	defer func() { c.result.Pages = append(c.result.Pages, page) }()

	result, err := c.fetch.Fetch(ctx, item.URL)
	if ctx.Err() != nil {
		page.Error = ctx.Err().Error()

		return ctx.Err()
	}

	if result.StatusCode != 0 {
		status := result.StatusCode
		loadTime := float64(result.Duration.Microseconds()) / 1000
		page.StatusCode = &status
		page.LoadTime = &loadTime
		page.ContentType = result.ContentType()
	}

	if err != nil {
		c.opts.Logger.Warn("page fetch failed", zap.String("url", item.URL), zap.Error(err))
		page.Error = err.Error()

		return nil
	}

	if !result.IsHTML() {
		return nil
	}

	parsed, err := parser.ParseHTML(result.Body, result.Header.Get("Content-Type"))
	if err != nil {
		c.opts.Logger.Warn("page parse failed", zap.String("url", item.URL), zap.Error(err))
		page.Error = err.Error()

		return nil
	}

	page.Title = parsed.SEO.Title
	page.MetaDescription = parsed.SEO.Description
	page.H1Count = parsed.SEO.H1Count
	page.ImageCount = parsed.SEO.ImageCount
	page.WordCount = parsed.WordCount

	c.enqueueLinks(item, pageBase(item.URL, result.FinalURL), parsed.Links)

	return nil
}

// pageBase is the URL relative links on a page resolve against: the final URL
// after redirects, or the requested one.
func pageBase(requested, final string) *url.URL {
	for _, candidate := range []string{final, requested} {
		if candidate == "" {
			continue
		}
		if parsed, err := url.Parse(candidate); err == nil {
			return parsed
		}
	}

	return &url.URL{}
}

func (c *crawl) enqueueLinks(item frontier.Item, base *url.URL, links []parser.Link) {
	for _, link := range links {
		target, ok := c.crawlable(base, link.Href)
		if !ok {
			continue
		}

		if c.opts.OnLink != nil {
			c.opts.OnLink(target)
		}

		if item.Depth+1 > c.opts.MaxDepth || c.visited[target] {
			continue
		}

		c.queue.Push(frontier.Item{URL: target, Depth: item.Depth + 1})
	}
}

func (c *crawl) crawlable(base *url.URL, href string) (string, bool) {
	if urlutil.IsSamePageVariant(href) {
		return "", false
	}

	target, ok := urlutil.Resolve(base, href)
	if !ok || urlutil.HasBinaryExtension(target) {
		return "", false
	}

	if !c.opts.FollowExternalLinks && !urlutil.SameDomain(c.base.Host, target) {
		return "", false
	}

	return target, true
}

func (c *crawl) reportProgress(currentURL string) {
	if c.opts.OnProgress == nil {
		return
	}

	scanned := len(c.visited)
	c.opts.OnProgress(scanned, min(c.opts.MaxPages, scanned+c.queue.Len()), currentURL)
}
