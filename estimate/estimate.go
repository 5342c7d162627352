// Package estimate extrapolates the total size of a site from a bounded crawl sample.
//
// The result is approximate and depends on the order in which links were sampled.
package estimate

import (
	"math"
	"strings"
	"sync"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
)

// Kind classifies a URL by its path pattern.
type Kind int

const (
	Other Kind = iota
	Category
	Product
)

const baseMultiplier = 5.0

var (
	categoryKeywords = []string{
		"category", "categories", "catalog", "catalogue", "collection", "collections",
		"section", "department", "shop", "tag", "tags", "brand", "brands",
	}
	productKeywords = []string{
		"product", "products", "item", "items", "p", "sku", "dp", "goods", "detail", "buy",
	}
)

// Signals summarizes what a sample revealed about a site.
type Signals struct {
	DiscoveredURLs int
	CategoryLinks  int
	ProductLinks   int
	MaxPathDepth   int
}

// Classify reports whether rawURL looks like a category listing or a product page.
// Product markers win when both are present.
func Classify(rawURL string) Kind {
	segments := urlutil.PathSegments(rawURL)

	kind := Other
	for _, segment := range segments {
		segment = strings.ToLower(segment)
		switch {
		case hasKeyword(segment, productKeywords):
			return Product
		case hasKeyword(segment, categoryKeywords):
			kind = Category
		}
	}

	return kind
}

func hasKeyword(segment string, keywords []string) bool {
	for _, keyword := range keywords {
		if segment == keyword {
			return true
		}
		if len(keyword) > 2 && (strings.HasPrefix(segment, keyword+"-") || strings.HasPrefix(segment, keyword+"_")) {
			return true
		}
	}

	return false
}

// Multiplier maps sampled signals to the factor applied to the discovered URL count.
func Multiplier(s Signals) float64 {
	multiplier := baseMultiplier

	multiplier *= ratioFactor(s.CategoryLinks, s.ProductLinks)

	switch {
	case s.MaxPathDepth >= 7:
		multiplier *= 2
	case s.MaxPathDepth >= 5:
		multiplier *= 1.5
	}

	switch {
	case s.DiscoveredURLs < 100:
		multiplier *= 3
	case s.DiscoveredURLs < 500:
		multiplier *= 1.5
	}

	return multiplier
}

func ratioFactor(categories, products int) float64 {
	if products <= 0 {
		return 1
	}

	ratio := math.Inf(1)
	if categories > 0 {
		ratio = float64(products) / float64(categories)
	}

	switch {
	case ratio > 10:
		return 4
	case ratio > 5:
		return 3
	case ratio > 2:
		return 2
	case ratio > 1:
		return 1.5
	case ratio > 0.5:
		return 1.2
	default:
		return 1
	}
}

// Estimate returns the larger of hint and the extrapolated page count.
func Estimate(s Signals, hint int) int {
	extrapolated := int(math.Round(float64(s.DiscoveredURLs) * Multiplier(s)))

	return max(hint, extrapolated, 0)
}

// LargeSiteProgress maps the number of distinct URLs found while sampling to a
// progress percentage. This is the count Estimate extrapolates from, not the
// number of fetched pages, which a request budget keeps small.
// It climbs quickly to 5 over the first 100 URLs, reaches 20 at 1000, grows
// logarithmically afterwards and never exceeds 95.
func LargeSiteProgress(sampledURLs int) int {
	var progress float64

	switch {
	case sampledURLs <= 0:
		return 0
	case sampledURLs <= 100:
		progress = float64(sampledURLs) / 100 * 5
	case sampledURLs <= 1000:
		progress = 5 + float64(sampledURLs-100)/900*15
	default:
		progress = 20 + 15*math.Log10(float64(sampledURLs)/1000)
	}

	return min(int(progress), 95)
}

// Tracker accumulates signals from links seen during a crawl. It is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	seen       map[string]Kind
	categories int
	products   int
	maxDepth   int
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: map[string]Kind{}}
}

// Observe records rawURL once; repeated observations are ignored.
func (t *Tracker) Observe(rawURL string) {
	key := urlutil.StripQueryAndFragment(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[key]; ok {
		return
	}

	kind := Classify(key)
	t.seen[key] = kind

	switch kind {
	case Category:
		t.categories++
	case Product:
		t.products++
	case Other:
	}

	t.maxDepth = max(t.maxDepth, urlutil.PathDepth(key))
}

// Signals returns a snapshot of the accumulated signals.
func (t *Tracker) Signals() Signals {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Signals{
		DiscoveredURLs: len(t.seen),
		CategoryLinks:  t.categories,
		ProductLinks:   t.products,
		MaxPathDepth:   t.maxDepth,
	}
}
