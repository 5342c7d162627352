package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/estimate"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

// runner owns the task record for the lifetime of one crawl; it is the only writer.
type runner struct {
	service *Service
	task    *task.Task
	opts    StartOptions
	tracker *estimate.Tracker
	logger  *zap.Logger
}

func (s *Service) run(ctx context.Context, current *task.Task, opts StartOptions) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[current.ID]; ok {
			cancel()
			delete(s.cancels, current.ID)
		}
		s.mu.Unlock()
	}()

	r := &runner{
		service: s,
		task:    current,
		opts:    opts,
		tracker: estimate.NewTracker(),
		logger:  s.logger.With(zap.String("task_id", current.ID)),
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		r.transition(task.StatusInProgress)
		r.finish(crawler.Result{}, err)

		return
	}
	defer s.slots.Release(1)

	r.transition(task.StatusInProgress)
	result, err := crawler.Crawl(ctx, current.URL, r.crawlOptions())
	r.finish(result, err)
}

func (r *runner) crawlOptions() crawler.Options {
	cfg := r.service.cfg

	opts := crawler.Options{
		MaxPages:            cfg.Crawl.MaxPages,
		MaxDepth:            cfg.Crawl.MaxDepth,
		Timeout:             cfg.Crawl.Timeout,
		Retries:             cfg.Crawl.Retries,
		CrawlDelay:          cfg.Crawl.Delay,
		FollowExternalLinks: cfg.Crawl.FollowExternal,
		IgnoreRobotsTxt:     cfg.Crawl.IgnoreRobots,
		UserAgent:           cfg.Crawl.UserAgent,
		HTTPClient:          r.service.client,
		Clock:               r.service.clock,
		Logger:              r.logger.Named("crawler"),
		Robots:              r.service.robots,
		OnProgress:          r.progress,
	}

	if r.opts.MaxPages > 0 {
		opts.MaxPages = r.opts.MaxPages
	}

	if r.task.IsLargeSite {
		opts.MaxPages = cfg.LargeSite.RequestBudget
		opts.OnLink = r.tracker.Observe
	}

	return opts
}

func (r *runner) progress(scanned, total int, currentURL string) {
	now := r.service.clock.Now()
	r.task.PagesScanned = scanned
	r.task.UpdatedAt = now

	if r.task.IsLargeSite {
		signals := r.tracker.Signals()
		r.task.EstimatedTotalPages = estimate.Estimate(signals, r.opts.SizeHint)
		r.task.EstimatedURLCount = r.task.EstimatedTotalPages
		r.task.SetProgress(estimate.LargeSiteProgress(signals.DiscoveredURLs), now)
	} else {
		r.task.EstimatedTotalPages = total
		r.task.EstimatedURLCount = total
		if total > 0 {
			r.task.SetProgress(scanned*100/total, now)
		}
	}

	r.logger.Debug("crawl progress",
		zap.Int("pages_scanned", scanned),
		zap.Int("estimated_total_pages", r.task.EstimatedTotalPages),
		zap.String("url", currentURL))
	r.save()
}

func (r *runner) finish(result crawler.Result, err error) {
	r.task.URLs = result.URLs
	if r.task.URLs == nil {
		r.task.URLs = []string{}
	}
	r.task.Pages = result.Pages
	r.task.PagesScanned = len(result.URLs)

	if r.task.IsLargeSite {
		for _, discovered := range result.Discovered {
			r.tracker.Observe(discovered)
		}
		r.task.EstimatedTotalPages = estimate.Estimate(r.tracker.Signals(), r.opts.SizeHint)
	} else {
		r.task.EstimatedTotalPages = len(result.URLs) + len(result.Discovered)
	}
	r.task.EstimatedTotalPages = max(r.task.EstimatedTotalPages, r.task.PagesScanned)
	r.task.EstimatedURLCount = r.task.EstimatedTotalPages

	switch {
	case err == nil:
		r.transition(task.StatusCompleted)
	case errors.Is(err, context.Canceled):
		r.transition(task.StatusCancelled)
	default:
		r.logger.Warn("crawl failed", zap.Error(err))
		if failErr := r.task.Fail(err.Error(), r.service.clock.Now()); failErr != nil {
			r.logger.Error("record crawl failure", zap.Error(failErr))
		}
		r.save()
	}
}

func (r *runner) transition(next task.Status) {
	if err := r.task.Transition(next, r.service.clock.Now()); err != nil {
		r.logger.Error("status transition rejected", zap.Error(err))

		return
	}

	r.logger.Info("crawl task status changed",
		zap.String("status", string(next)),
		zap.Int("pages_scanned", r.task.PagesScanned))
	r.save()
}

func (r *runner) save() {
	// The request context may be gone; the record must still be written.
	if err := r.service.store.Update(context.Background(), r.task); err != nil {
		r.logger.Error("save task", zap.Error(err))
	}
}
