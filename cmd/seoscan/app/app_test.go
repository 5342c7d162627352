package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/config"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

const cliFixtureBaseURL = "https://example.com"

var fixturePages = map[string]string{
	"/":  `<html><head><title>Home</title></head><body><h1>Home</h1><a href="/a">A</a><a href="/missing">Missing</a></body></html>`,
	"/a": `<html><head><title>A</title></head><body><h1>A</h1><a href="/">Home</a></body></html>`,
	"/sitemap.xml": `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/a</loc></url>
</urlset>`,
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (c fixedClock) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func fixtureTime() time.Time {
	return time.Date(2024, time.June, 1, 12, 34, 56, 0, time.UTC)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func newFixtureClient() *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.EqualFold(req.URL.Hostname(), "example.com") {
				return nil, fmt.Errorf("unexpected host %q", req.URL.Host)
			}

			path := req.URL.Path
			if path == "" {
				path = "/"
			}

			body, ok := fixturePages[path]
			if !ok {
				return responseWithBody(http.StatusNotFound, "not found", "text/plain"), nil
			}
			if strings.HasSuffix(path, ".xml") {
				return responseWithBody(http.StatusOK, body, "application/xml"), nil
			}

			return responseWithBody(http.StatusOK, body, "text/html; charset=utf-8"), nil
		}),
	}
}

func responseWithBody(status int, body, contentType string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	err := Run(append([]string{"seoscan"}, args...), &stdout, &stderr, newFixtureClient(), fixedClock{now: fixtureTime()})

	return stdout.String(), stderr.String(), err
}

func TestCLI_CrawlPrintsJSONReport(t *testing.T) {
	t.Parallel()

	sitemapPath := filepath.Join(t.TempDir(), "sitemap.xml")

	stdout, _, err := run(t, "--log-level=error", "crawl", "--retries=0", "--sitemap="+sitemapPath, cliFixtureBaseURL)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(stdout, "\n"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))

	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok)
	require.InDelta(t, 3, summary["pages_scanned"], 0)
	require.Equal(t, "completed", doc["status"])

	data, err := os.ReadFile(sitemapPath)
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(data), "<url>"))
	require.Contains(t, string(data), "<loc>https://example.com/a</loc>")
}

func TestCLI_CrawlDepthZeroVisitsBaseOnly(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "crawl", "--depth=0", cliFixtureBaseURL)
	require.NoError(t, err)

	var doc struct {
		Summary struct {
			PagesScanned int `json:"pages_scanned"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	require.Equal(t, 1, doc.Summary.PagesScanned)
}

func TestCLI_CrawlFormats(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "crawl", "--format=yaml", "--with-analysis", cliFixtureBaseURL)
	require.NoError(t, err)
	require.Contains(t, stdout, "pages_scanned: 3")
	require.Contains(t, stdout, "analysis:")

	_, _, err = run(t, "crawl", "--format=pdf", cliFixtureBaseURL)
	require.Error(t, err)
}

func TestCLI_CrawlFailedTaskStillPrintsReport(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "crawl", "ftp://example.com")
	require.ErrorIs(t, err, errCrawlNotCompleted)
	require.Contains(t, err.Error(), "failed")
	require.True(t, json.Valid([]byte(stdout)))
}

func TestCLI_Analyze(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "analyze", "--max-pages=10", cliFixtureBaseURL)
	require.NoError(t, err)

	var result struct {
		Links struct {
			BrokenLinks []struct {
				URL        string `json:"url"`
				StatusCode int    `json:"statusCode"`
			} `json:"brokenLinks"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	require.Len(t, result.Links.BrokenLinks, 1)
	require.Equal(t, "https://example.com/missing", result.Links.BrokenLinks[0].URL)
	require.Equal(t, http.StatusNotFound, result.Links.BrokenLinks[0].StatusCode)
}

func TestCLI_Sitemap(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "sitemap", cliFixtureBaseURL+"/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/\nhttps://example.com/a\n", stdout)
}

func TestCLI_MissingURLPrintsHelp(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "crawl")
	require.NoError(t, err)
	require.Contains(t, stdout, "crawl")
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, "--log-level=loud", "crawl", cliFixtureBaseURL)
	require.Error(t, err)
}

func TestCLI_LogsGoToStderr(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := run(t, "--log-level=info", "crawl", cliFixtureBaseURL)
	require.NoError(t, err)
	require.Contains(t, stderr, "crawl task created")
	require.NotContains(t, stdout, "crawl task created")
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Store
		wantErr bool
	}{
		{name: "memory", cfg: config.Store{Driver: "memory"}},
		{name: "default", cfg: config.Store{}},
		{name: "sqlite", cfg: config.Store{Driver: "sqlite", DSN: ":memory:"}},
		{name: "unknown", cfg: config.Store{Driver: "bolt", DSN: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store, closeStore, err := openStore(ctx, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)

				return
			}
			require.NoError(t, err)
			defer closeStore()

			created := task.New("t1", cliFixtureBaseURL, "example.com", fixtureTime())
			require.NoError(t, store.Create(ctx, created))

			got, err := store.Get(ctx, "t1")
			require.NoError(t, err)
			require.Equal(t, created.URL, got.URL)

			_, err = store.Get(ctx, "t2")
			require.True(t, errors.Is(err, task.ErrNotFound))
		})
	}
}
