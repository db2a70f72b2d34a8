package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFSource extracts positioned text runs from a PDF file using
// ledongthuc/pdf. Pages are extracted under a bounded worker pool and
// merged back in page order; a page that fails to decode is skipped
// with a warning instead of aborting the whole run.
type PDFSource struct {
	Path    string
	Workers int
}

func (s *PDFSource) Extract(ctx context.Context) (*Document, error) {
	f, reader, err := pdflib.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}

	type pageResult struct {
		page Page
		err  error
		idx  int
	}
	results := make(chan pageResult, numPages)
	sem := make(chan struct{}, workers)

	launched := 0
	for i := 1; i <= numPages; i++ {
		select {
		case <-ctx.Done():
			// Drain what is already in flight before giving up.
			for j := 0; j < launched; j++ {
				<-results
			}
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		launched++
		go func(i int) {
			defer func() { <-sem }()
			page, err := extractPage(reader, i)
			results <- pageResult{page: page, err: err, idx: i}
		}(i)
	}

	doc := &Document{}
	byIndex := make([]*Page, numPages+1)
	for range launched {
		r := <-results
		if r.err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("page %d: %s", r.idx, r.err))
			continue
		}
		p := r.page
		byIndex[r.idx] = &p
	}
	for i := 1; i <= numPages; i++ {
		if byIndex[i] != nil {
			doc.Pages = append(doc.Pages, *byIndex[i])
		}
	}
	return doc, nil
}

// extractPage decodes one page into line-level runs. The underlying
// library panics on some malformed content streams, so the failure is
// contained here and reported as a per-page error.
func extractPage(reader *pdflib.Reader, idx int) (page Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream: %v", r)
		}
	}()

	p := reader.Page(idx)
	if p.V.IsNull() {
		return Page{}, fmt.Errorf("missing page object")
	}

	width, height := pageSize(p)

	content := p.Content()
	frags := make([]TextRun, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		frags = append(frags, TextRun{
			Text:     t.S,
			Page:     idx,
			Font:     t.Font,
			FontSize: t.FontSize,
			Bold:     fontIsBold(t.Font),
			Italic:   fontIsItalic(t.Font),
			BBox:     BBox{X: t.X, Y: t.Y, W: t.W, H: t.FontSize},
		})
	}

	runs := assembleLines(frags)
	attachLinks(p, runs)

	return Page{Index: idx, Width: width, Height: height, Runs: runs}, nil
}

func pageSize(p pdflib.Page) (width, height float64) {
	mb := p.V.Key("MediaBox")
	if mb.Kind() == pdflib.Array && mb.Len() >= 4 {
		width = mb.Index(2).Float64() - mb.Index(0).Float64()
		height = mb.Index(3).Float64() - mb.Index(1).Float64()
	}
	if width <= 0 || height <= 0 {
		// US letter at 72 dpi.
		width, height = 612.0, 792.0
	}
	return width, height
}

// assembleLines groups character/word fragments into line-level runs.
// The library emits one fragment per text-showing operator, which for
// many PDFs means one fragment per glyph; pattern detection and reflow
// need whole lines. A style change (font, size, bold, italic) inside a
// line starts a new run so inline emphasis survives assembly.
func assembleLines(frags []TextRun) []TextRun {
	if len(frags) == 0 {
		return nil
	}

	sorted := make([]TextRun, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		yDiff := sorted[i].BBox.Y - sorted[j].BBox.Y
		if abs(yDiff) > sorted[i].BBox.H*0.5 {
			return yDiff > 0 // higher on the page first
		}
		return sorted[i].BBox.X < sorted[j].BBox.X
	})

	var lines [][]TextRun
	var current []TextRun
	for _, frag := range sorted {
		if len(current) == 0 {
			current = append(current, frag)
			continue
		}
		last := current[len(current)-1]
		if abs(frag.BBox.Y-last.BBox.Y) <= last.BBox.H*0.5 {
			current = append(current, frag)
		} else {
			lines = append(lines, current)
			current = []TextRun{frag}
		}
	}
	lines = append(lines, current)

	var runs []TextRun
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].BBox.X < line[j].BBox.X
		})
		runs = append(runs, mergeLine(line)...)
	}
	return runs
}

// mergeLine joins same-style fragments on one line, inserting a space
// when the horizontal gap is wide enough to separate words.
func mergeLine(line []TextRun) []TextRun {
	var out []TextRun
	var b strings.Builder
	var cur TextRun
	var lastEndX float64

	flush := func() {
		if b.Len() == 0 {
			return
		}
		cur.Text = b.String()
		cur.BBox.W = lastEndX - cur.BBox.X
		out = append(out, cur)
		b.Reset()
	}

	for _, frag := range line {
		if b.Len() > 0 && !sameStyle(cur, frag) {
			flush()
		}
		if b.Len() == 0 {
			cur = frag
			b.WriteString(frag.Text)
			lastEndX = frag.BBox.X + frag.BBox.W
			continue
		}
		gap := frag.BBox.X - lastEndX
		if gap > frag.FontSize*0.3 {
			b.WriteString(" ")
		}
		b.WriteString(frag.Text)
		lastEndX = frag.BBox.X + frag.BBox.W
	}
	flush()
	return out
}

func sameStyle(a, b TextRun) bool {
	return a.Font == b.Font &&
		abs(a.FontSize-b.FontSize) < 0.01 &&
		a.Bold == b.Bold &&
		a.Italic == b.Italic
}

// attachLinks resolves URI link annotations to the runs their
// rectangles cover. Only external URIs are kept; internal GoTo
// destinations carry no value for card output.
func attachLinks(p pdflib.Page, runs []TextRun) {
	annots := p.V.Key("Annots")
	if annots.Kind() != pdflib.Array {
		return
	}
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Key("Subtype").Name() != "Link" {
			continue
		}
		uri := a.Key("A").Key("URI")
		if uri.Kind() != pdflib.String {
			continue
		}
		rect := a.Key("Rect")
		if rect.Kind() != pdflib.Array || rect.Len() < 4 {
			continue
		}
		minX := min(rect.Index(0).Float64(), rect.Index(2).Float64())
		maxX := max(rect.Index(0).Float64(), rect.Index(2).Float64())
		minY := min(rect.Index(1).Float64(), rect.Index(3).Float64())
		maxY := max(rect.Index(1).Float64(), rect.Index(3).Float64())

		for j := range runs {
			r := &runs[j]
			cx := r.BBox.X + r.BBox.W/2
			cy := r.BBox.Y + r.BBox.H/2
			if cx >= minX && cx <= maxX && cy >= minY-1 && cy <= maxY+1 {
				r.Link = uri.RawString()
			}
		}
	}
}

func fontIsBold(font string) bool {
	f := strings.ToLower(font)
	return strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.Contains(f, "heavy")
}

func fontIsItalic(font string) bool {
	f := strings.ToLower(font)
	return strings.Contains(f, "italic") || strings.Contains(f, "oblique")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
