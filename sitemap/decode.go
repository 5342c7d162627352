package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/fetcher"
)

// MaxIndexDepth bounds how many sitemap index levels are followed.
const MaxIndexDepth = 3

var ErrUnexpectedStatus = errors.New("unexpected sitemap status")

// Entry is one <url> element of a urlset.
type Entry struct {
	Loc        string  `json:"loc"`
	LastMod    string  `json:"lastmod,omitempty"`
	ChangeFreq string  `json:"changefreq,omitempty"`
	Priority   float64 `json:"priority,omitempty"`
}

// Getter fetches a URL. *fetcher.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Result, error)
}

// Decoder reads urlsets and follows sitemap indexes.
type Decoder struct {
	getter Getter
	logger *zap.Logger
}

// NewDecoder creates a Decoder. getter may be nil, in which case index entries are not followed.
func NewDecoder(getter Getter, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Decoder{getter: getter, logger: logger}
}

// DecodeURL fetches rawURL and decodes it.
func (d *Decoder) DecodeURL(ctx context.Context, rawURL string) ([]Entry, error) {
	data, err := d.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return d.decode(ctx, data, 0, map[string]bool{rawURL: true})
}

// Decode parses a urlset or a sitemap index. Entries without a <loc> are skipped.
// Child sitemaps of an index are fetched once each, up to MaxIndexDepth levels;
// a child that fails to load is logged and skipped.
func (d *Decoder) Decode(ctx context.Context, data []byte) ([]Entry, error) {
	return d.decode(ctx, data, 0, map[string]bool{})
}

func (d *Decoder) decode(ctx context.Context, data []byte, depth int, fetched map[string]bool) ([]Entry, error) {
	entries, children, err := scan(data)
	if err != nil {
		return entries, err
	}

	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		if fetched[child] {
			continue
		}
		fetched[child] = true

		if depth+1 > MaxIndexDepth || d.getter == nil {
			d.logger.Warn("sitemap index not followed", zap.String("url", child), zap.Int("depth", depth+1))

			continue
		}

		childData, err := d.fetch(ctx, child)
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			d.logger.Warn("sitemap fetch failed", zap.String("url", child), zap.Error(err))

			continue
		}

		childEntries, err := d.decode(ctx, childData, depth+1, fetched)
		if err != nil && ctx.Err() != nil {
			return entries, ctx.Err()
		}
		if err != nil {
			d.logger.Warn("sitemap decode failed", zap.String("url", child), zap.Error(err))
		}
		entries = append(entries, childEntries...)
	}

	return entries, nil
}

func (d *Decoder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if d.getter == nil {
		return nil, fmt.Errorf("fetch %s: no getter configured", rawURL)
	}

	result, err := d.getter.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %d", ErrUnexpectedStatus, rawURL, result.StatusCode)
	}

	return result.Body, nil
}

// scan streams the document and returns its url entries and the locations of child sitemaps.
// On a syntax error the entries read so far are returned with the error.
func scan(data []byte) ([]Entry, []string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel

	entries := []Entry{}
	var children []string

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return entries, children, nil
		}
		if err != nil {
			return entries, children, fmt.Errorf("decode sitemap: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "url":
			var raw urlEntry
			if err := decoder.DecodeElement(&raw, &start); err != nil {
				return entries, children, fmt.Errorf("decode sitemap url: %w", err)
			}
			if entry, ok := toEntry(raw); ok {
				entries = append(entries, entry)
			}
		case "sitemap":
			var raw sitemapEntry
			if err := decoder.DecodeElement(&raw, &start); err != nil {
				return entries, children, fmt.Errorf("decode sitemap entry: %w", err)
			}
			if loc := strings.TrimSpace(raw.Loc); loc != "" {
				children = append(children, loc)
			}
		}
	}
}

func toEntry(raw urlEntry) (Entry, bool) {
	loc := strings.TrimSpace(raw.Loc)
	if loc == "" {
		return Entry{}, false
	}

	entry := Entry{
		Loc:        loc,
		LastMod:    strings.TrimSpace(raw.LastMod),
		ChangeFreq: strings.TrimSpace(raw.ChangeFreq),
	}
	if priority, err := strconv.ParseFloat(strings.TrimSpace(raw.Priority), 64); err == nil {
		entry.Priority = priority
	}

	return entry, true
}

// Locations returns the loc of every entry.
func Locations(entries []Entry) []string {
	locs := make([]string, 0, len(entries))
	for _, entry := range entries {
		locs = append(locs, entry.Loc)
	}

	return locs
}
