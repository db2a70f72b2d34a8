package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// BBox is a text run's bounding box in page coordinates (PDF points,
// origin at the bottom-left of the page).
type BBox struct {
	X float64 // left edge
	Y float64 // baseline
	W float64 // width
	H float64 // height (approximated by the font size for PDF sources)
}

// TextRun is a single positioned, styled fragment of text on one page.
// Runs are immutable once extracted; downstream stages only read them.
type TextRun struct {
	Text     string
	Page     int // 1-based page index
	Font     string
	FontSize float64
	Bold     bool
	Italic   bool
	Link     string // external link target, empty if none
	BBox     BBox
}

// Page holds one page's extracted runs and dimensions.
type Page struct {
	Index  int // 1-based
	Width  float64
	Height float64
	Runs   []TextRun
}

// Document is the full extraction result, pages in document order.
// Warnings records per-page extraction failures; a failed page is
// simply absent from Pages.
type Document struct {
	Pages    []Page
	Warnings []string
}

// TotalPages returns the number of successfully extracted pages.
func (d *Document) TotalPages() int {
	return len(d.Pages)
}

// Source extracts positioned text runs from a document file.
type Source interface {
	Extract(ctx context.Context) (*Document, error)
}

// ForFile returns the appropriate source for a filename.
func ForFile(path string, workers int) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return &PDFSource{Path: path, Workers: workers}, nil
	case ".docx":
		return &DOCXSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}
