// Package robots evaluates robots.txt Disallow rules for crawl candidates.
//
// Only "User-agent:" and "Disallow:" directives are honored. Rules apply when the
// user-agent value is "*" or contains "bot" (case-insensitive). Any failure to
// retrieve robots.txt fails open: no restriction is applied and a warning is logged.
package robots

import (
	"bufio"
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/cache"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
)

const (
	userAgentDirective = "User-agent:"
	disallowDirective  = "Disallow:"
)

// Getter fetches a URL. *fetcher.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Result, error)
}

// Policy caches parsed rules per origin.
type Policy struct {
	getter Getter
	logger *zap.Logger
	rules  *cache.Cache[[]string]
}

// New creates a Policy that loads robots.txt through getter.
func New(getter Getter, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Policy{
		getter: getter,
		logger: logger,
		rules:  cache.New[[]string](),
	}
}

// Load fetches {origin}/robots.txt for baseURL once and caches its rules.
// Repeated calls for the same origin do not refetch.
func (p *Policy) Load(ctx context.Context, baseURL string) {
	origin, ok := originOf(baseURL)
	if !ok {
		p.logger.Warn("robots.txt skipped: invalid base url", zap.String("url", baseURL))

		return
	}

	if _, loaded := p.rules.Get(origin); loaded {
		return
	}

	rules := p.fetchRules(ctx, origin)
	if ctx.Err() != nil {
		return
	}
	p.rules.SetIfAbsent(origin, rules)
}

func (p *Policy) fetchRules(ctx context.Context, origin string) []string {
	robotsURL := origin + "/robots.txt"

	result, err := p.getter.Fetch(ctx, robotsURL)
	if err != nil {
		p.logger.Warn("robots.txt unavailable, crawling unrestricted",
			zap.String("url", robotsURL), zap.Error(err))

		return nil
	}

	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		p.logger.Warn("robots.txt unavailable, crawling unrestricted",
			zap.String("url", robotsURL), zap.Int("status", result.StatusCode))

		return nil
	}

	rules := Parse(string(result.Body))
	p.logger.Debug("robots.txt loaded", zap.String("url", robotsURL), zap.Int("rules", len(rules)))

	return rules
}

// Rules returns the cached rules for the origin of baseURL.
func (p *Policy) Rules(baseURL string) []string {
	origin, ok := originOf(baseURL)
	if !ok {
		return nil
	}

	rules, _ := p.rules.Get(origin)

	return rules
}

// IsDisallowed reports whether rawURL is excluded by the loaded rules of its origin.
// Origins that were never loaded are unrestricted.
func (p *Policy) IsDisallowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return Disallows(p.Rules(rawURL), parsed.Path)
}

// Disallows reports whether urlPath matches any rule: an exact match, a directory
// prefix, a trailing-wildcard prefix, or a blanket "/" rule.
func Disallows(rules []string, urlPath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}

	for _, rule := range rules {
		if matches(rule, urlPath) {
			return true
		}
	}

	return false
}

func matches(rule string, urlPath string) bool {
	switch {
	case rule == "/":
		return true
	case strings.HasSuffix(rule, "*"):
		return strings.HasPrefix(urlPath, strings.TrimSuffix(rule, "*"))
	case urlPath == rule:
		return true
	default:
		dir := strings.TrimSuffix(rule, "/") + "/"

		return strings.HasPrefix(urlPath, dir)
	}
}

// Parse extracts Disallow rules that apply to "*" or bot user agents.
func Parse(body string) []string {
	rules := []string{}
	applies := false
	inAgentGroup := false

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, userAgentDirective):
			agent := strings.TrimSpace(strings.TrimPrefix(line, userAgentDirective))
			if !inAgentGroup {
				applies = false
			}
			applies = applies || agentApplies(agent)
			inAgentGroup = true
		case strings.HasPrefix(line, disallowDirective):
			inAgentGroup = false
			rule := strings.TrimSpace(strings.TrimPrefix(line, disallowDirective))
			if applies && rule != "" {
				rules = append(rules, rule)
			}
		default:
			inAgentGroup = false
		}
	}

	return rules
}

func agentApplies(agent string) bool {
	return agent == "*" || strings.Contains(strings.ToLower(agent), "bot")
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = line[:idx]
	}

	return strings.TrimSpace(line)
}

func originOf(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return parsed.Scheme + "://" + parsed.Host, true
}
