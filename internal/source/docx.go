package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXSource extracts runs from a .docx file. Word documents carry
// explicit paragraph styles instead of physical layout, so this backend
// synthesizes font metrics from the styles (Title, Heading1, Heading2)
// and stacks paragraphs down synthetic pages. The downstream pipeline
// then treats both backends identically.
type DOCXSource struct {
	Path string
}

// Synthetic layout constants, US letter at 72 dpi.
const (
	docxPageWidth  = 612.0
	docxPageHeight = 792.0
	docxTopY       = 720.0
	docxBottomY    = 72.0
	docxLeftX      = 72.0
)

func (s *DOCXSource) Extract(ctx context.Context) (*Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var (
		pages   []Page
		runs    []TextRun
		pageIdx = 1
		y       = docxTopY
	)
	flushPage := func() {
		pages = append(pages, Page{
			Index:  pageIdx,
			Width:  docxPageWidth,
			Height: docxPageHeight,
			Runs:   runs,
		})
		pageIdx++
		runs = nil
		y = docxTopY
	}

	for _, item := range doc.Document.Body.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}

		size, bold := styleMetrics(docxParagraphStyle(para))
		x := docxLeftX
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			text := strings.TrimSpace(docxRunText(run))
			if text == "" {
				continue
			}
			w := float64(len([]rune(text))) * size * 0.5
			runs = append(runs, TextRun{
				Text:     text,
				Page:     pageIdx,
				Font:     "docx",
				FontSize: size,
				Bold:     bold || docxRunBold(run),
				Italic:   docxRunItalic(run),
				BBox:     BBox{X: x, Y: y, W: w, H: size},
			})
			x += w
		}

		// Paragraph gap well above the reflow break threshold, so each
		// Word paragraph stays a logical paragraph downstream.
		y -= size * 2.6
		if y < docxBottomY {
			flushPage()
		}
	}
	if len(runs) > 0 {
		flushPage()
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("docx has no text content")
	}
	return &Document{Pages: pages}, nil
}

// styleMetrics maps a paragraph style to synthetic font metrics sized
// so the classifier recovers the same hierarchy it infers for PDFs:
// Title > Heading1 > Heading2 > body.
func styleMetrics(style string) (size float64, bold bool) {
	switch {
	case strings.EqualFold(style, "Title"):
		return 18, true
	case strings.EqualFold(style, "Heading1"), strings.EqualFold(style, "heading 1"):
		return 14, true
	case strings.EqualFold(style, "Heading2"), strings.EqualFold(style, "heading 2"):
		return 12, true
	}
	return 10, false
}

func docxParagraphStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxRunText(run *docx.Run) string {
	var buf strings.Builder
	for _, rc := range run.Children {
		if t, ok := rc.(*docx.Text); ok {
			buf.WriteString(t.Text)
		}
	}
	return buf.String()
}

func docxRunBold(run *docx.Run) bool {
	return run.RunProperties != nil && run.RunProperties.Bold != nil
}

func docxRunItalic(run *docx.Run) bool {
	return run.RunProperties != nil && run.RunProperties.Italic != nil
}
