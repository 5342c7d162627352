package analysis

import (
	"context"
	"unicode/utf8"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
)

const (
	TagTitle       = "title"
	TagDescription = "description"
)

// DuplicatePage groups pages whose normalized text is identical.
type DuplicatePage struct {
	URLs          []string `json:"urls" yaml:"urls"`
	ContentHash   string   `json:"contentHash" yaml:"contentHash"`
	ContentLength int      `json:"contentLength" yaml:"contentLength"`
	Title         string   `json:"title" yaml:"title"`
}

// DuplicateMetaTag groups pages sharing the same title or meta description.
type DuplicateMetaTag struct {
	Tag   string   `json:"tag" yaml:"tag"`
	Value string   `json:"value" yaml:"value"`
	Pages []string `json:"pages" yaml:"pages"`
}

// DuplicateReport is the outcome of Duplicates. Only groups with two or more pages are listed.
type DuplicateReport struct {
	Pages        []DuplicatePage    `json:"duplicatePages" yaml:"duplicatePages"`
	MetaTags     []DuplicateMetaTag `json:"duplicateMetaTags" yaml:"duplicateMetaTags"`
	SampledPages int                `json:"sampledPages" yaml:"sampledPages"`
}

// grouping keeps keys in first-seen order.
type grouping struct {
	order   []string
	members map[string][]string
}

func newGrouping() *grouping {
	return &grouping{members: map[string][]string{}}
}

func (g *grouping) add(key, member string) {
	if _, ok := g.members[key]; !ok {
		g.order = append(g.order, key)
	}
	g.members[key] = append(g.members[key], member)
}

func (g *grouping) each(fn func(key string, members []string)) {
	for _, key := range g.order {
		if members := g.members[key]; len(members) > 1 {
			fn(key, members)
		}
	}
}

// Duplicates hashes the visible text of up to 200 pages and groups identical
// pages, titles and meta descriptions. Pages without text are not grouped.
func (a *Analyzer) Duplicates(ctx context.Context, urls []string, onProgress ProgressFunc) (DuplicateReport, error) {
	sampled := sample(urls, duplicateSample)
	result := DuplicateReport{Pages: []DuplicatePage{}, MetaTags: []DuplicateMetaTag{}}

	contents := newGrouping()
	titles := newGrouping()
	descriptions := newGrouping()
	lengths := map[string]int{}
	firstTitle := map[string]string{}

	for i, rawURL := range sampled {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		loaded := a.loadOrSkip(ctx, "duplicates", rawURL)
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if loaded != nil {
			result.SampledPages++

			title := parser.Title(loaded.doc)
			if text := parser.RenderedText(loaded.doc.Find("body")); text != "" {
				hash := contentHash(text)
				contents.add(hash, rawURL)
				lengths[hash] = utf8.RuneCountInString(text)
				if _, ok := firstTitle[hash]; !ok {
					firstTitle[hash] = title
				}
			}
			if title != "" {
				titles.add(title, rawURL)
			}
			if description := parser.MetaDescription(loaded.doc); description != "" {
				descriptions.add(description, rawURL)
			}
		}

		report(onProgress, i+1, len(sampled))
	}

	contents.each(func(hash string, members []string) {
		result.Pages = append(result.Pages, DuplicatePage{
			URLs:          members,
			ContentHash:   hash,
			ContentLength: lengths[hash],
			Title:         firstTitle[hash],
		})
	})
	titles.each(func(value string, members []string) {
		result.MetaTags = append(result.MetaTags, DuplicateMetaTag{Tag: TagTitle, Value: value, Pages: members})
	})
	descriptions.each(func(value string, members []string) {
		result.MetaTags = append(result.MetaTags, DuplicateMetaTag{Tag: TagDescription, Value: value, Pages: members})
	})

	return result, nil
}
