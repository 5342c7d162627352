package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary     = "Summary"
	sheetPages       = "Pages"
	sheetBrokenLinks = "BrokenLinks"
	sheetRedirects   = "Redirects"
	sheetDuplicates  = "Duplicates"

	defaultSheet = "Sheet1"
)

func renderXLSX(doc Document) ([]byte, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := file.SetSheetName(defaultSheet, sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{name: sheetSummary, rows: summaryRows(doc)},
		{name: sheetPages, rows: pageRows(doc)},
		{name: sheetBrokenLinks, rows: brokenLinkRows(doc)},
		{name: sheetRedirects, rows: redirectRows(doc)},
		{name: sheetDuplicates, rows: duplicateRows(doc)},
	}

	for _, sheet := range sheets {
		if sheet.name != sheetSummary {
			if _, err := file.NewSheet(sheet.name); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet.name, err)
			}
		}

		if err := writeRows(file, sheet.name, sheet.rows); err != nil {
			return nil, err
		}
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx report: %w", err)
	}

	return buffer.Bytes(), nil
}

func writeRows(file *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}

		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	return nil
}

func summaryRows(doc Document) [][]any {
	estimateLabel := "estimated_total_pages"
	if doc.Summary.EstimateIsApproximate {
		estimateLabel = "estimated_total_pages (approximate)"
	}

	return [][]any{
		{"field", "value"},
		{"task_id", doc.TaskID},
		{"root_url", doc.RootURL},
		{"domain", doc.Domain},
		{"status", string(doc.Status)},
		{"error", doc.Error},
		{"start_time", doc.StartTime},
		{"updated_at", doc.UpdatedAt},
		{"generated_at", doc.GeneratedAt},
		{"pages_scanned", doc.Summary.PagesScanned},
		{estimateLabel, doc.Summary.EstimatedTotalPages},
		{"large_site", doc.Summary.LargeSite},
		{"failed_pages", doc.Summary.FailedPages},
		{"average_load_time_ms", doc.Summary.AverageLoadTimeMs},
		{"broken_links", doc.Summary.BrokenLinks},
		{"redirects", doc.Summary.Redirects},
		{"duplicate_pages", doc.Summary.DuplicatePages},
	}
}

func pageRows(doc Document) [][]any {
	rows := [][]any{{
		"url", "depth", "status_code", "title", "meta_description",
		"h1_count", "image_count", "word_count", "load_time_ms", "content_type", "error",
	}}

	for _, page := range doc.Pages {
		var status any = ""
		if page.StatusCode != nil {
			status = *page.StatusCode
		}
		var loadTime any = ""
		if page.LoadTimeMs != nil {
			loadTime = *page.LoadTimeMs
		}

		rows = append(rows, []any{
			page.URL, page.Depth, status, page.Title, page.MetaDescription,
			page.H1Count, page.ImageCount, page.WordCount, loadTime, page.ContentType, page.Error,
		})
	}

	return rows
}

func brokenLinkRows(doc Document) [][]any {
	rows := [][]any{{"url", "status_code", "from_page", "link_text"}}
	if doc.Analysis == nil {
		return rows
	}

	for _, link := range doc.Analysis.Links.BrokenLinks {
		rows = append(rows, []any{link.URL, link.StatusCode, link.FromPage, link.LinkText})
	}

	return rows
}

func redirectRows(doc Document) [][]any {
	rows := [][]any{{"url", "redirects_to", "status_code", "from_page"}}
	if doc.Analysis == nil {
		return rows
	}

	for _, redirect := range doc.Analysis.Links.Redirects {
		rows = append(rows, []any{redirect.URL, redirect.RedirectsTo, redirect.StatusCode, redirect.FromPage})
	}

	return rows
}

func duplicateRows(doc Document) [][]any {
	rows := [][]any{{"kind", "key", "title", "pages"}}
	if doc.Analysis == nil {
		return rows
	}

	for _, group := range doc.Analysis.Duplicates.Pages {
		rows = append(rows, []any{"content", group.ContentHash, group.Title, strings.Join(group.URLs, "\n")})
	}
	for _, group := range doc.Analysis.Duplicates.MetaTags {
		rows = append(rows, []any{group.Tag, group.Value, "", strings.Join(group.Pages, "\n")})
	}

	return rows
}
