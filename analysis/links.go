package analysis

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
)

// BrokenLink is a link whose target answered 4xx/5xx or failed at the transport
// level (StatusCode 0).
type BrokenLink struct {
	URL        string `json:"url" yaml:"url"`
	StatusCode int    `json:"statusCode" yaml:"statusCode"`
	FromPage   string `json:"fromPage" yaml:"fromPage"`
	LinkText   string `json:"linkText" yaml:"linkText"`
}

// Redirect is a link whose target answered 3xx.
type Redirect struct {
	URL         string `json:"url" yaml:"url"`
	RedirectsTo string `json:"redirectsTo" yaml:"redirectsTo"`
	StatusCode  int    `json:"statusCode" yaml:"statusCode"`
	FromPage    string `json:"fromPage" yaml:"fromPage"`
}

// LinkReport is the outcome of BrokenLinks.
type LinkReport struct {
	BrokenLinks  []BrokenLink `json:"brokenLinks" yaml:"brokenLinks"`
	Redirects    []Redirect   `json:"redirects" yaml:"redirects"`
	SampledPages int          `json:"sampledPages" yaml:"sampledPages"`
	CheckedLinks int          `json:"checkedLinks" yaml:"checkedLinks"`
}

// BrokenLinks checks every anchor on up to 100 pages of domain without following
// redirects. Each distinct target is requested once; a finding is recorded for every
// page that links to it. Progress is reported once per sampled page.
func (a *Analyzer) BrokenLinks(
	ctx context.Context,
	domain string,
	urls []string,
	onProgress ProgressFunc,
) (LinkReport, error) {
	sampled := sample(urls, brokenLinkSample)
	result := LinkReport{BrokenLinks: []BrokenLink{}, Redirects: []Redirect{}}
	checked := map[string]fetcher.Result{}

	for i, source := range sampled {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if domain != "" && !urlutil.SameDomain(domain, source) {
			report(onProgress, i+1, len(sampled))

			continue
		}

		loaded := a.loadOrSkip(ctx, "broken_links", source)
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if loaded != nil {
			result.SampledPages++
			if err := a.checkLinks(ctx, source, loaded, checked, &result); err != nil {
				return result, err
			}
		}

		report(onProgress, i+1, len(sampled))
	}

	result.CheckedLinks = len(checked)

	return result, nil
}

func (a *Analyzer) checkLinks(
	ctx context.Context,
	source string,
	loaded *page,
	checked map[string]fetcher.Result,
	result *LinkReport,
) error {
	reported := map[string]bool{}

	for _, link := range parser.Links(loaded.doc) {
		if urlutil.IsSamePageVariant(link.Href) {
			continue
		}

		target, ok := urlutil.Resolve(loaded.url, link.Href)
		if !ok || reported[target] {
			continue
		}
		reported[target] = true

		outcome, ok := checked[target]
		if !ok {
			outcome = a.checkLink(ctx, target)
			if err := ctx.Err(); err != nil {
				return err
			}
			checked[target] = outcome
		}

		switch {
		case outcome.IsRedirect():
			result.Redirects = append(result.Redirects, Redirect{
				URL:         target,
				RedirectsTo: outcome.Location(target),
				StatusCode:  outcome.StatusCode,
				FromPage:    source,
			})
		case outcome.StatusCode == 0 || outcome.StatusCode >= http.StatusBadRequest:
			result.BrokenLinks = append(result.BrokenLinks, BrokenLink{
				URL:        target,
				StatusCode: outcome.StatusCode,
				FromPage:   source,
				LinkText:   link.Text,
			})
		}
	}

	return nil
}

// checkLink returns the response of target without its body, or a zero Result
// when no response arrived.
func (a *Analyzer) checkLink(ctx context.Context, target string) fetcher.Result {
	response, err := a.links.Fetch(ctx, target)
	if err != nil && response.StatusCode == 0 {
		a.logger.Debug("link check failed", zap.String("url", target), zap.Error(err))

		return fetcher.Result{}
	}

	response.Body = nil

	return response
}
