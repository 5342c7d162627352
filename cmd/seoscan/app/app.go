package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/api"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/config"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/logging"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/service"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/sitemap"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task/sqlstore"
)

const shutdownTimeout = 10 * time.Second

var errCrawlNotCompleted = errors.New("crawl did not complete")

type env struct {
	stdout io.Writer
	stderr io.Writer
	client *http.Client
	clock  limiter.Timer
}

// Run executes the CLI. Reports and sitemaps go to stdout, logs to stderr.
func Run(args []string, stdout, stderr io.Writer, client *http.Client, clock limiter.Timer) error {
	e := env{stdout: stdout, stderr: stderr, client: client, clock: clock}

	app := cli.NewApp()
	app.Name = "seoscan"
	app.Usage = "crawl a website, build its sitemap and audit its SEO"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a YAML config file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides the config file)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "crawl",
			Usage:     "crawl a site and print its report",
			ArgsUsage: "<url>",
			Flags:     append(crawlFlags(), reportFlags()...),
			Action:    e.crawl,
		},
		{
			Name:      "analyze",
			Usage:     "crawl a site and print the link, duplicate, structure and uniqueness analysis",
			ArgsUsage: "<url>",
			Flags:     crawlFlags(),
			Action:    e.analyze,
		},
		{
			Name:      "sitemap",
			Usage:     "print the page URLs listed by a remote sitemap",
			ArgsUsage: "<sitemap-url>",
			Action:    e.sitemap,
		},
		{
			Name:   "serve",
			Usage:  "run the HTTP API",
			Flags:  []cli.Flag{cli.StringFlag{Name: "addr", Usage: "listen address"}},
			Action: e.serve,
		},
	}

	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}

func crawlFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "max-pages", Usage: "maximum pages to visit"},
		cli.IntFlag{Name: "depth", Usage: "maximum link depth (0 crawls the base URL only)"},
		cli.DurationFlag{Name: "delay", Usage: "delay between requests (example: 200ms, 1s)"},
		cli.DurationFlag{Name: "timeout", Usage: "per-request timeout"},
		cli.IntFlag{Name: "retries", Usage: "number of retries for failed requests"},
		cli.StringFlag{Name: "user-agent", Usage: "custom user agent"},
		cli.BoolFlag{Name: "ignore-robots", Usage: "do not consult robots.txt"},
		cli.BoolFlag{Name: "follow-external", Usage: "follow links to other hosts"},
		cli.BoolFlag{Name: "large-site", Usage: "sample the site and estimate its size"},
		cli.IntFlag{Name: "size-hint", Usage: "known or guessed number of pages"},
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "format", Usage: "report format: json, yaml or xlsx", Value: "json"},
		cli.StringFlag{Name: "sitemap", Usage: "also write the sitemap XML to this file"},
		cli.BoolFlag{Name: "with-analysis", Usage: "include the analysis in the report"},
	}
}

func (e env) loadConfig(c *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	if level := c.GlobalString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	applyCrawlFlags(c, &cfg)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development, e.stderr)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, logger, nil
}

func applyCrawlFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("max-pages") {
		cfg.Crawl.MaxPages = c.Int("max-pages")
	}
	if c.IsSet("depth") {
		cfg.Crawl.MaxDepth = c.Int("depth")
		if cfg.Crawl.MaxDepth <= 0 {
			cfg.Crawl.MaxDepth = -1
		}
	}
	if c.IsSet("delay") {
		cfg.Crawl.Delay = c.Duration("delay")
	}
	if c.IsSet("timeout") {
		cfg.Crawl.Timeout = c.Duration("timeout")
	}
	if c.IsSet("retries") {
		cfg.Crawl.Retries = c.Int("retries")
	}
	if c.IsSet("user-agent") {
		cfg.Crawl.UserAgent = c.String("user-agent")
	}
	if c.Bool("ignore-robots") {
		cfg.Crawl.IgnoreRobots = true
	}
	if c.Bool("follow-external") {
		cfg.Crawl.FollowExternal = true
	}
}

// runCrawl crawls rootURL with an in-memory store and waits for the task to finish.
func (e env) runCrawl(c *cli.Context) (*service.Service, *task.Task, *zap.Logger, error) {
	rootURL := c.Args().First()
	if rootURL == "" {
		_ = cli.ShowCommandHelp(c, c.Command.Name)

		return nil, nil, nil, nil
	}

	cfg, logger, err := e.loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	svc, err := service.New(task.NewMemoryStore(), cfg, e.client, e.clock, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started, err := svc.StartCrawl(ctx, rootURL, service.StartOptions{
		LargeSite: c.Bool("large-site"),
		SizeHint:  c.Int("size-hint"),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("interrupted, stopping crawl", zap.String("task_id", started.ID))
		_ = svc.CancelCrawl(context.Background(), started.ID)
		<-done
	}

	finished, err := svc.GetStatus(context.Background(), started.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	return svc, finished, logger, nil
}

func (e env) crawl(c *cli.Context) error {
	svc, finished, logger, err := e.runCrawl(c)
	if err != nil || svc == nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	if finished.Status == task.StatusCompleted {
		if path := c.String("sitemap"); path != "" {
			data, err := svc.DownloadSitemap(ctx, finished.ID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write sitemap: %w", err)
			}
		}

		if c.Bool("with-analysis") {
			if _, err := svc.Analyze(ctx, finished.ID); err != nil {
				return err
			}
		}
	}

	data, _, err := svc.DownloadReport(ctx, finished.ID, c.String("format"))
	if err != nil {
		return err
	}

	if _, err := e.stdout.Write(data); err != nil {
		return err
	}

	return statusError(finished)
}

func (e env) analyze(c *cli.Context) error {
	svc, finished, logger, err := e.runCrawl(c)
	if err != nil || svc == nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := statusError(finished); err != nil {
		return err
	}

	result, err := svc.Analyze(context.Background(), finished.ID)
	if err != nil {
		return err
	}

	return writeJSON(e.stdout, result)
}

func statusError(t *task.Task) error {
	if t.Status == task.StatusCompleted {
		return nil
	}
	if t.Error != "" {
		return fmt.Errorf("%w: %s: %s", errCrawlNotCompleted, t.Status, t.Error)
	}

	return fmt.Errorf("%w: %s", errCrawlNotCompleted, t.Status)
}

func (e env) sitemap(c *cli.Context) error {
	sitemapURL := c.Args().First()
	if sitemapURL == "" {
		_ = cli.ShowCommandHelp(c, c.Command.Name)

		return nil
	}

	cfg, logger, err := e.loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	getter := fetcher.New(e.client, cfg.Crawl.Timeout, cfg.Crawl.UserAgent, nil, cfg.Crawl.Retries, 0, e.clock)
	entries, err := sitemap.NewDecoder(getter, logger).DecodeURL(context.Background(), sitemapURL)
	if err != nil && len(entries) == 0 {
		return err
	}
	if err != nil {
		logger.Warn("sitemap partially decoded", zap.Error(err))
	}

	for _, loc := range sitemap.Locations(entries) {
		if _, err := fmt.Fprintln(e.stdout, loc); err != nil {
			return err
		}
	}

	return nil
}

func (e env) serve(c *cli.Context) error {
	cfg, logger, err := e.loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := service.New(store, cfg, e.client, e.clock, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(svc, logger.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		svc.Shutdown()

		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	svc.Shutdown()

	return err
}

// openStore returns the task store selected by cfg and a function releasing it.
func openStore(ctx context.Context, cfg config.Store) (task.Store, func(), error) {
	if cfg.Driver == "" || cfg.Driver == "memory" {
		return task.NewMemoryStore(), func() {}, nil
	}

	store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	return store, func() { _ = store.Close() }, nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
