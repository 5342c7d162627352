// Package service orchestrates crawl tasks: it creates task records, runs one
// crawler per task in the background, and serves sitemaps, reports and analyses
// for finished tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/analysis"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/cache"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/config"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/logging"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/robots"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/report"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/sitemap"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

var (
	ErrNotCompleted = errors.New("task is not completed")
	ErrInvalidURL   = errors.New("invalid url")
)

// StartOptions tunes a single crawl. Zero values fall back to the configuration.
// A task is treated as a large site when LargeSite is set or SizeHint reaches
// the configured threshold.
type StartOptions struct {
	MaxPages  int
	LargeSite bool
	SizeHint  int
}

// Service runs crawl tasks against a task.Store.
type Service struct {
	store    task.Store
	cfg      config.Config
	client   *http.Client
	clock    limiter.Timer
	logger   *zap.Logger
	robots   *robots.Policy
	analyses *cache.Cache[*analysis.Report]
	slots    *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Service. clock and logger may be nil.
func New(store task.Store, cfg config.Config, client *http.Client, clock limiter.Timer, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, crawler.ErrHTTPClientRequired
	}
	if clock == nil {
		clock = limiter.NewClock()
	}
	logger = logging.OrNop(logger)
	cfg.Normalize()

	robotsFetcher := fetcher.New(client, cfg.Crawl.Timeout, cfg.Crawl.UserAgent, nil, cfg.Crawl.Retries, 0, clock)

	return &Service{
		store:    store,
		cfg:      cfg,
		client:   client,
		clock:    clock,
		logger:   logger,
		robots:   robots.New(robotsFetcher, logger.Named("robots")),
		analyses: cache.New[*analysis.Report](),
		slots:    semaphore.NewWeighted(int64(cfg.Server.MaxConcurrentCrawls)),
		cancels:  map[string]context.CancelFunc{},
	}, nil
}

// StartCrawl registers a pending task and crawls it in the background.
// A bare domain is crawled over https. A URL the crawler rejects produces a failed task.
func (s *Service) StartCrawl(ctx context.Context, rawURL string, opts StartOptions) (*task.Task, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created := task.New(uuid.NewString(), target, urlutil.Hostname(target), now)
	created.IsLargeSite = opts.LargeSite || (opts.SizeHint > 0 && opts.SizeHint >= s.cfg.LargeSite.Threshold)
	created.EstimatedURLCount = max(opts.SizeHint, 0)

	if err := s.store.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[created.ID] = cancel
	s.mu.Unlock()

	s.logger.Info("crawl task created",
		zap.String("task_id", created.ID),
		zap.String("url", target),
		zap.Bool("large_site", created.IsLargeSite))

	s.wg.Add(1)
	go s.run(runCtx, created.Clone(), opts)

	return created, nil
}

func normalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return parsed.String(), nil
}

// GetStatus returns the current task record.
func (s *Service) GetStatus(ctx context.Context, id string) (*task.Task, error) {
	return s.store.Get(ctx, id)
}

// List returns every task ordered by start time.
func (s *Service) List(ctx context.Context) ([]*task.Task, error) {
	return s.store.List(ctx)
}

// CancelCrawl asks the task's crawler to stop. The in-flight request finishes and
// the task then moves to cancelled. Finished tasks return task.ErrInvalidTransition.
func (s *Service) CancelCrawl(ctx context.Context, id string) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if current.Status.Terminal() {
		return fmt.Errorf("%w: task %s is %s", task.ErrInvalidTransition, id, current.Status)
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()

	if !ok {
		// The runner belongs to another process or has already exited.
		return fmt.Errorf("%w: task %s has no running crawler", task.ErrInvalidTransition, id)
	}

	s.logger.Info("crawl task cancellation requested", zap.String("task_id", id))
	cancel()

	return nil
}

// DownloadSitemap renders the sitemap of a completed task.
func (s *Service) DownloadSitemap(ctx context.Context, id string) ([]byte, error) {
	finished, err := s.completed(ctx, id)
	if err != nil {
		return nil, err
	}

	return sitemap.Encode(finished.URLs, sitemap.Options{LastMod: s.clock.Now()})
}

// DownloadReport renders a finished task in the given format. Analysis results are
// included when Analyze ran for the task.
func (s *Service) DownloadReport(ctx context.Context, id string, reportType string) ([]byte, report.Type, error) {
	parsed, err := report.ParseType(reportType)
	if err != nil {
		return nil, "", err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !current.Status.Terminal() {
		return nil, "", fmt.Errorf("%w: task %s is %s", ErrNotCompleted, id, current.Status)
	}

	result, _ := s.analyses.Get(id)
	data, err := report.Render(report.Build(current, result, s.clock.Now()), parsed)
	if err != nil {
		return nil, "", err
	}

	return data, parsed, nil
}

// Analyze runs every analysis check over the URLs of a completed task and keeps
// the result for later reports.
func (s *Service) Analyze(ctx context.Context, id string) (*analysis.Report, error) {
	finished, err := s.completed(ctx, id)
	if err != nil {
		return nil, err
	}

	// The analyzer page cache lives for one run only.
	analyzer, err := analysis.New(analysis.Config{
		HTTPClient: s.client,
		Timeout:    s.cfg.Analysis.Timeout,
		UserAgent:  s.cfg.Crawl.UserAgent,
		Retries:    s.cfg.Analysis.Retries,
		RPS:        s.cfg.Analysis.RPS,
		Clock:      s.clock,
		Logger:     s.logger.Named("analysis").With(zap.String("task_id", id)),
	})
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	result, err := analyzer.RunAll(ctx, finished.Domain, finished.URLs)
	if err != nil {
		return nil, fmt.Errorf("analyze task %s: %w", id, err)
	}

	s.analyses.Set(id, &result)

	return &result, nil
}

// Wait blocks until every background crawl has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels every running crawl and waits for the runners to exit.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	s.Wait()
}

func (s *Service) completed(ctx context.Context, id string) (*task.Task, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != task.StatusCompleted {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNotCompleted, id, current.Status)
	}

	return current, nil
}
