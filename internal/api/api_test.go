package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/config"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/service"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

type testClock struct{}

func (testClock) Now() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }

func (testClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

var sitePages = map[string]string{
	"/":      `<html><head><title>Home</title></head><body><a href="/a">A</a><a href="/gone">Gone</a></body></html>`,
	"/a":     `<html><head><title>A</title></head><body><a href="/">Home</a></body></html>`,
	"/block": `<html><head><title>Block</title></head><body></body></html>`,
}

func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()

	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Host == "slow.test" {
				<-req.Context().Done()

				return nil, req.Context().Err()
			}

			body, ok := sitePages[req.URL.Path]
			status := http.StatusOK
			if !ok {
				status = http.StatusNotFound
			}

			return &http.Response{
				StatusCode: status,
				Header:     http.Header{"Content-Type": []string{"text/html"}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    req,
			}, nil
		}),
	}

	cfg := config.Default()
	cfg.Crawl.Delay = -1
	cfg.Analysis.RPS = -1

	svc, err := service.New(task.NewMemoryStore(), cfg, client, testClock{}, nil)
	require.NoError(t, err)

	server := httptest.NewServer(New(svc, nil))
	t.Cleanup(func() {
		server.Close()
		svc.Shutdown()
	})

	return server, svc
}

func do(t *testing.T, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, target, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestCrawlLifecycle(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	resp, body := do(t, http.MethodPost, server.URL+"/crawl", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created task.Task
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, task.StatusPending, created.Status)
	require.Equal(t, "example.com", created.Domain)

	svc.Wait()

	resp, body = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	require.Equal(t, "completed", fields["status"])
	require.InDelta(t, 100, fields["progress"], 0)
	require.InDelta(t, 3, fields["pages_scanned"], 0)
	require.Contains(t, fields, "estimatedUrlCount")
	require.NotContains(t, fields, "error")

	resp, body = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID+"/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/xml; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, 3, strings.Count(string(body), "<url>"))

	resp, body = do(t, http.MethodPost, server.URL+"/tasks/"+created.ID+"/analysis", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"brokenLinks":[{"url":"https://example.com/gone"`)

	resp, _ = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID+"/report?type=xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "report-"+created.ID+".xlsx")

	resp, _ = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID+"/report?type=pdf", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, server.URL+"/tasks/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodGet, server.URL+"/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), created.ID)
}

func TestCancelRunningCrawl(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(t)

	resp, body := do(t, http.MethodPost, server.URL+"/crawl", map[string]any{"url": "https://slow.test"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created task.Task
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID+"/sitemap.xml", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, server.URL+"/tasks/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	svc.Wait()

	resp, body = do(t, http.MethodGet, server.URL+"/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"status":"cancelled"`)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "unknown task", method: http.MethodGet, path: "/tasks/missing", status: http.StatusNotFound},
		{name: "unknown sitemap", method: http.MethodGet, path: "/tasks/missing/sitemap.xml", status: http.StatusNotFound},
		{name: "empty url", method: http.MethodPost, path: "/crawl", body: map[string]any{"url": ""}, status: http.StatusBadRequest},
		{name: "bad body", method: http.MethodPost, path: "/crawl", body: "not an object", status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, path: "/crawl", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := do(t, tt.method, server.URL+tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusMethodNotAllowed {
				require.Contains(t, string(body), `"error":`)
			}
		})
	}
}
