// Package report renders a crawl task and its analysis as json, yaml or xlsx.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/analysis"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

// Type names a report format.
type Type string

const (
	TypeJSON Type = "json"
	TypeYAML Type = "yaml"
	TypeXLSX Type = "xlsx"
)

var ErrUnknownType = errors.New("unknown report type")

// Document is the rendered view of a task.
type Document struct {
	TaskID      string           `json:"task_id" yaml:"task_id"`
	RootURL     string           `json:"root_url" yaml:"root_url"`
	Domain      string           `json:"domain" yaml:"domain"`
	Status      task.Status      `json:"status" yaml:"status"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	StartTime   string           `json:"start_time" yaml:"start_time"`
	UpdatedAt   string           `json:"updated_at" yaml:"updated_at"`
	GeneratedAt string           `json:"generated_at" yaml:"generated_at"`
	Summary     Summary          `json:"summary" yaml:"summary"`
	Pages       []Page           `json:"pages" yaml:"pages"`
	Analysis    *analysis.Report `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Summary aggregates counts over the task.
// When EstimateIsApproximate is set, EstimatedTotalPages is an extrapolation from a sample.
type Summary struct {
	PagesScanned          int            `json:"pages_scanned" yaml:"pages_scanned"`
	EstimatedTotalPages   int            `json:"estimated_total_pages" yaml:"estimated_total_pages"`
	EstimateIsApproximate bool           `json:"estimate_is_approximate" yaml:"estimate_is_approximate"`
	LargeSite             bool           `json:"large_site" yaml:"large_site"`
	FailedPages           int            `json:"failed_pages" yaml:"failed_pages"`
	StatusCounts          map[string]int `json:"status_counts" yaml:"status_counts"`
	AverageLoadTimeMs     float64        `json:"average_load_time_ms" yaml:"average_load_time_ms"`
	BrokenLinks           int            `json:"broken_links" yaml:"broken_links"`
	Redirects             int            `json:"redirects" yaml:"redirects"`
	DuplicatePages        int            `json:"duplicate_pages" yaml:"duplicate_pages"`
}

// Page is one crawled page.
type Page struct {
	URL             string   `json:"url" yaml:"url"`
	Depth           int      `json:"depth" yaml:"depth"`
	StatusCode      *int     `json:"status_code" yaml:"status_code"`
	Title           string   `json:"title" yaml:"title"`
	MetaDescription string   `json:"meta_description" yaml:"meta_description"`
	H1Count         int      `json:"h1_count" yaml:"h1_count"`
	ImageCount      int      `json:"image_count" yaml:"image_count"`
	WordCount       int      `json:"word_count" yaml:"word_count"`
	LoadTimeMs      *float64 `json:"load_time_ms,omitempty" yaml:"load_time_ms,omitempty"`
	ContentType     string   `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Error           string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ParseType validates a report type name.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeJSON, TypeYAML, TypeXLSX:
		return t, nil
	case "":
		return TypeJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
	}
}

// ContentType returns the MIME type of a rendered report.
func (t Type) ContentType() string {
	switch t {
	case TypeYAML:
		return "application/yaml"
	case TypeXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Build assembles the document for t. result may be nil when no analysis ran.
func Build(t *task.Task, result *analysis.Report, generatedAt time.Time) Document {
	doc := Document{
		TaskID:      t.ID,
		RootURL:     t.URL,
		Domain:      t.Domain,
		Status:      t.Status,
		Error:       t.Error,
		StartTime:   formatTime(t.StartTime),
		UpdatedAt:   formatTime(t.UpdatedAt),
		GeneratedAt: formatTime(generatedAt),
		Pages:       make([]Page, 0, len(t.Pages)),
		Analysis:    result,
		Summary: Summary{
			PagesScanned:          t.PagesScanned,
			EstimatedTotalPages:   max(t.EstimatedTotalPages, t.PagesScanned),
			EstimateIsApproximate: t.IsLargeSite,
			LargeSite:             t.IsLargeSite,
			StatusCounts:          map[string]int{},
		},
	}

	var totalLoad float64
	var timed int
	for _, detail := range t.Pages {
		doc.Pages = append(doc.Pages, toPage(detail))
		doc.Summary.StatusCounts[statusClass(detail.StatusCode)]++

		if detail.Error != "" {
			doc.Summary.FailedPages++
		}
		if detail.LoadTime != nil {
			totalLoad += *detail.LoadTime
			timed++
		}
	}
	if timed > 0 {
		doc.Summary.AverageLoadTimeMs = totalLoad / float64(timed)
	}

	if result != nil {
		doc.Summary.BrokenLinks = len(result.Links.BrokenLinks)
		doc.Summary.Redirects = len(result.Links.Redirects)
		for _, group := range result.Duplicates.Pages {
			doc.Summary.DuplicatePages += len(group.URLs)
		}
	}

	return doc
}

func toPage(detail crawler.PageDetail) Page {
	return Page{
		URL:             detail.URL,
		Depth:           detail.Depth,
		StatusCode:      detail.StatusCode,
		Title:           detail.Title,
		MetaDescription: detail.MetaDescription,
		H1Count:         detail.H1Count,
		ImageCount:      detail.ImageCount,
		WordCount:       detail.WordCount,
		LoadTimeMs:      detail.LoadTime,
		ContentType:     detail.ContentType,
		Error:           detail.Error,
	}
}

func statusClass(status *int) string {
	if status == nil {
		return "error"
	}

	return fmt.Sprintf("%dxx", *status/100)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// Render encodes doc in the requested format.
func Render(doc Document, t Type) ([]byte, error) {
	switch t {
	case TypeJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json report: %w", err)
		}

		return append(data, '\n'), nil
	case TypeYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml report: %w", err)
		}

		return data, nil
	case TypeXLSX:
		return renderXLSX(doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}
