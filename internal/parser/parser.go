package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// contentSelectors are tried in order when locating the primary content region.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	".main-content",
	".post-content",
	".entry-content",
}

// SEOData represents extracted SEO information.
type SEOData struct {
	HasTitle       bool
	Title          string
	HasDescription bool
	Description    string
	H1Count        int
	ImageCount     int
}

// Link is an anchor target together with its visible text.
type Link struct {
	Href string
	Text string
}

// ParseResult aggregates HTML analysis results.
type ParseResult struct {
	SEO       SEOData
	Links     []Link
	Text      string
	WordCount int
}

// ParseHTML parses HTML and extracts SEO fields, anchors and rendered text.
// contentType selects the body encoding; an empty value lets the charset sniffer decide.
// Missing SEO elements yield false flags and empty strings; text is HTML-decoded.
func ParseHTML(body []byte, contentType string) (ParseResult, error) {
	doc, err := Document(body, contentType)
	if err != nil {
		return ParseResult{}, err
	}

	text := RenderedText(doc.Selection)

	return ParseResult{
		SEO:       parseSEO(doc),
		Links:     parseLinks(doc),
		Text:      text,
		WordCount: len(strings.Fields(text)),
	}, nil
}

// Document decodes body into a goquery document.
func Document(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := decodedReader(body, contentType)
	if err != nil {
		return nil, err
	}

	return goquery.NewDocumentFromReader(reader)
}

func decodedReader(body []byte, contentType string) (io.Reader, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Unknown labels fall back to the raw bytes.
		return bytes.NewReader(body), nil
	}

	return reader, nil
}

// Title returns the cleaned <title> text, or "" when missing.
func Title(doc *goquery.Document) string {
	return cleanHumanText(doc.Find("title").First().Text())
}

// MetaDescription returns the cleaned description meta content, or "" when missing.
func MetaDescription(doc *goquery.Document) string {
	_, description := findMetaDescription(doc)

	return description
}

// RenderedText returns the whitespace-collapsed visible text of selection,
// ignoring script, style and noscript contents.
func RenderedText(selection *goquery.Selection) string {
	clone := selection.Clone()
	clone.Find("script, style, noscript, template").Remove()

	return cleanHumanText(clone.Text())
}

// MainContent returns the text of the primary content region: the first
// matching semantic container with text, or the whole body.
func MainContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		selection := doc.Find(selector).First()
		if selection.Length() == 0 {
			continue
		}

		text := RenderedText(selection)
		if text != "" {
			return text
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return RenderedText(doc.Selection)
	}

	return RenderedText(body)
}

func parseSEO(doc *goquery.Document) SEOData {
	seo := SEOData{}

	titleSelection := doc.Find("title").First()
	seo.HasTitle = titleSelection.Length() > 0
	if seo.HasTitle {
		seo.Title = cleanHumanText(titleSelection.Text())
	}

	hasDescription, description := findMetaDescription(doc)
	seo.HasDescription = hasDescription
	seo.Description = description

	seo.H1Count = doc.Find("h1").Length()
	seo.ImageCount = doc.Find("img").Length()

	return seo
}

func findMetaDescription(doc *goquery.Document) (bool, string) {
	var (
		found       bool
		description string
	)

	doc.Find("meta[name]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		name, ok := selection.Attr("name")
		if !ok {
			return true
		}

		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}

		found = true
		content, _ := selection.Attr("content")
		description = cleanHumanText(content)

		return false
	})

	return found, description
}

// Links returns every anchor href in document order with its visible text.
func Links(doc *goquery.Document) []Link {
	return parseLinks(doc)
}

func parseLinks(doc *goquery.Document) []Link {
	links := []Link{}
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, ok := selection.Attr("href")
		if !ok {
			return
		}

		links = append(links, Link{
			Href: strings.TrimSpace(href),
			Text: cleanHumanText(selection.Text()),
		})
	})

	return links
}
