package analysis

import (
	"context"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
)

// contentBudget is the number of runes of main content that are hashed.
const contentBudget = 5000

// PageUniqueness scores one page: 100 for unique content, 100/n when n pages share it.
type PageUniqueness struct {
	URL             string  `json:"url" yaml:"url"`
	ContentHash     string  `json:"contentHash" yaml:"contentHash"`
	UniquenessScore float64 `json:"uniquenessScore" yaml:"uniquenessScore"`
}

// UniquenessReport is the outcome of Uniqueness.
type UniquenessReport struct {
	Pages             []PageUniqueness `json:"pages" yaml:"pages"`
	DuplicateGroups   [][]string       `json:"duplicateGroups" yaml:"duplicateGroups"`
	UniquePages       int              `json:"uniquePages" yaml:"uniquePages"`
	TotalSampled      int              `json:"totalSampled" yaml:"totalSampled"`
	UniquenessPercent float64          `json:"uniquenessPercent" yaml:"uniquenessPercent"`
}

// Uniqueness hashes the main content region of up to 100 pages.
// TotalSampled counts pages that could be analyzed and have main content;
// UniquePages counts distinct hashes among them.
func (a *Analyzer) Uniqueness(ctx context.Context, urls []string, onProgress ProgressFunc) (UniquenessReport, error) {
	sampled := sample(urls, uniqueSample)
	result := UniquenessReport{Pages: []PageUniqueness{}, DuplicateGroups: [][]string{}}
	groups := newGrouping()

	for i, rawURL := range sampled {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		loaded := a.loadOrSkip(ctx, "uniqueness", rawURL)
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var content string
		if loaded != nil {
			content = parser.Truncate(parser.MainContent(loaded.doc), contentBudget)
		}
		if content != "" {
			hash := contentHash(content)
			groups.add(hash, rawURL)
			result.Pages = append(result.Pages, PageUniqueness{URL: rawURL, ContentHash: hash, UniquenessScore: 100})
		}

		report(onProgress, i+1, len(sampled))
	}

	for i, scored := range result.Pages {
		result.Pages[i].UniquenessScore = 100 / float64(len(groups.members[scored.ContentHash]))
	}
	groups.each(func(_ string, members []string) {
		result.DuplicateGroups = append(result.DuplicateGroups, members)
	})

	result.TotalSampled = len(result.Pages)
	result.UniquePages = len(groups.order)
	if result.TotalSampled > 0 {
		result.UniquenessPercent = float64(result.UniquePages) / float64(result.TotalSampled) * 100
	}

	return result, nil
}
