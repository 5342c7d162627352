package crawler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/robots"
)

const (
	DefaultMaxPages   = 100
	DefaultMaxDepth   = 5
	DefaultTimeout    = 10 * time.Second
	DefaultCrawlDelay = 300 * time.Millisecond
	DefaultUserAgent  = "seoscan-bot/1.0"
)

var (
	ErrInvalidURL         = errors.New("invalid url")
	ErrHTTPClientRequired = errors.New("http client is required")
)

// ProgressFunc receives the visited count, the current size estimate and the URL just visited.
type ProgressFunc func(pagesScanned, totalEstimated int, currentURL string)

// LinkFunc observes every crawlable link discovered on a page, including repeats.
type LinkFunc func(rawURL string)

// Options configures a crawl.
// MaxDepth counts link hops from the base URL; zero means DefaultMaxDepth and a negative value crawls the base URL only.
// CrawlDelay is the minimum spacing between fetches; zero means DefaultCrawlDelay and a negative value disables it.
// IgnoreRobotsTxt turns off robots.txt compliance, which is on by default.
type Options struct {
	MaxPages            int
	MaxDepth            int
	Timeout             time.Duration
	Retries             int
	CrawlDelay          time.Duration
	FollowExternalLinks bool
	IgnoreRobotsTxt     bool
	UserAgent           string
	HTTPClient          *http.Client
	Clock               limiter.Timer
	Logger              *zap.Logger
	// Robots shares loaded robots.txt rules across crawls; nil builds a private policy.
	Robots     *robots.Policy
	OnProgress ProgressFunc
	OnLink     LinkFunc
}

// PageDetail describes one visited URL.
// StatusCode is nil when the request failed at the transport level.
type PageDetail struct {
	URL             string   `json:"url"`
	Depth           int      `json:"depth"`
	Title           string   `json:"title,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	H1Count         int      `json:"h1Count"`
	ImageCount      int      `json:"imageCount"`
	WordCount       int      `json:"wordCount"`
	StatusCode      *int     `json:"statusCode"`
	LoadTime        *float64 `json:"loadTime,omitempty"`
	ContentType     string   `json:"contentType,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Result is the outcome of a crawl.
// URLs lists visited pages in visit order; Discovered lists same-scope URLs that
// were queued but never visited; Truncated is set when the crawl stopped with work left.
type Result struct {
	URLs       []string     `json:"urls"`
	Pages      []PageDetail `json:"pages"`
	Discovered []string     `json:"discovered"`
	Truncated  bool         `json:"truncated"`
}

func withDefaults(opts Options) Options {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	switch {
	case opts.MaxDepth == 0:
		opts.MaxDepth = DefaultMaxDepth
	case opts.MaxDepth < 0:
		opts.MaxDepth = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CrawlDelay == 0 {
		opts.CrawlDelay = DefaultCrawlDelay
	}
	if opts.CrawlDelay < 0 {
		opts.CrawlDelay = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = limiter.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return opts
}
