// Package sitemap encodes crawl results as sitemap XML and decodes remote sitemaps.
package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
)

const (
	Namespace         = "http://www.sitemaps.org/schemas/sitemap/0.9"
	DefaultChangeFreq = "weekly"
	// MaxURLsPerFile is the protocol limit for a single urlset.
	MaxURLsPerFile = 50000

	dateLayout = "2006-01-02"
)

var ErrNoURLs = errors.New("no urls to encode")

// Options controls the optional fields written for every URL.
// A zero LastMod means today; a nil Priority derives one from the URL path depth.
// A set Priority is clamped to [0, 1].
type Options struct {
	IncludeStylesheet bool
	StylesheetHref    string
	LastMod           time.Time
	ChangeFreq        string
	Priority          *float64
}

// File is one generated sitemap document.
type File struct {
	Name string
	Data []byte
}

// Index is a sitemap index together with the sitemaps it references.
type Index struct {
	Index []byte
	Files []File
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Xmlns    string         `xml:"xmlns,attr"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Encode renders urls as a single urlset document. Empty and repeated URLs are dropped.
func Encode(urls []string, opts Options) ([]byte, error) {
	opts = withDefaults(opts)
	lastMod := opts.LastMod.Format(dateLayout)

	set := urlSet{Xmlns: Namespace, URLs: []urlEntry{}}
	for _, loc := range uniqueURLs(urls) {
		set.URLs = append(set.URLs, urlEntry{
			Loc:        loc,
			LastMod:    lastMod,
			ChangeFreq: opts.ChangeFreq,
			Priority:   formatPriority(priorityFor(loc, opts.Priority)),
		})
	}

	return marshalDocument(set, opts)
}

// EncodeIndex splits urls into files of at most maxPerFile entries named
// sitemap-1.xml, sitemap-2.xml and so on, and an index that points at
// {baseURL}/sitemap-N.xml for each of them. maxPerFile <= 0 means MaxURLsPerFile.
func EncodeIndex(urls []string, baseURL string, maxPerFile int, opts Options) (Index, error) {
	if maxPerFile <= 0 || maxPerFile > MaxURLsPerFile {
		maxPerFile = MaxURLsPerFile
	}

	unique := uniqueURLs(urls)
	if len(unique) == 0 {
		return Index{}, ErrNoURLs
	}

	opts = withDefaults(opts)
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	index := sitemapIndex{Xmlns: Namespace}
	files := make([]File, 0, (len(unique)+maxPerFile-1)/maxPerFile)

	for start := 0; start < len(unique); start += maxPerFile {
		end := min(start+maxPerFile, len(unique))
		name := "sitemap-" + strconv.Itoa(len(files)+1) + ".xml"

		data, err := Encode(unique[start:end], opts)
		if err != nil {
			return Index{}, fmt.Errorf("encode %s: %w", name, err)
		}

		files = append(files, File{Name: name, Data: data})
		index.Sitemaps = append(index.Sitemaps, sitemapEntry{
			Loc:     base + "/" + name,
			LastMod: opts.LastMod.Format(dateLayout),
		})
	}

	data, err := marshalDocument(index, opts)
	if err != nil {
		return Index{}, err
	}

	return Index{Index: data, Files: files}, nil
}

func withDefaults(opts Options) Options {
	if opts.LastMod.IsZero() {
		opts.LastMod = time.Now()
	}
	if opts.ChangeFreq == "" {
		opts.ChangeFreq = DefaultChangeFreq
	}
	if opts.IncludeStylesheet && opts.StylesheetHref == "" {
		opts.StylesheetHref = "/sitemap.xsl"
	}

	return opts
}

func marshalDocument(document any, opts Options) ([]byte, error) {
	body, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	if opts.IncludeStylesheet {
		var href strings.Builder
		if err := xml.EscapeText(&href, []byte(opts.StylesheetHref)); err != nil {
			return nil, fmt.Errorf("escape stylesheet href: %w", err)
		}
		b.WriteString(`<?xml-stylesheet type="text/xsl" href="` + href.String() + `"?>` + "\n")
	}
	b.Write(body)
	b.WriteString("\n")

	return []byte(b.String()), nil
}

func uniqueURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	unique := make([]string, 0, len(urls))
	for _, raw := range urls {
		loc := strings.TrimSpace(raw)
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		unique = append(unique, loc)
	}

	return unique
}

// Priority returns 1.0 for the site root, 0.2 less per path segment, and never less than 0.4.
func Priority(loc string) float64 {
	return math.Max(0.4, 1.0-0.2*float64(urlutil.PathDepth(loc)))
}

func priorityFor(loc string, fixed *float64) float64 {
	if fixed != nil {
		return math.Min(math.Max(*fixed, 0), 1)
	}

	return Priority(loc)
}

func formatPriority(priority float64) string {
	return strconv.FormatFloat(priority, 'f', 1, 64)
}
