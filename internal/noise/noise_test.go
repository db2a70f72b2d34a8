package noise

import (
	"fmt"
	"testing"

	"github.com/stahldeck/stahldeck/internal/source"
)

func runAt(text string, page int, x, y float64) source.TextRun {
	return source.TextRun{
		Text:     text,
		Page:     page,
		FontSize: 10,
		BBox:     source.BBox{X: x, Y: y, W: float64(len(text)) * 5, H: 10},
	}
}

func pagesWithHeader(n int, header string) []source.Page {
	pages := make([]source.Page, n)
	for i := range pages {
		pages[i] = source.Page{
			Index:  i + 1,
			Width:  612,
			Height: 792,
			Runs: []source.TextRun{
				runAt(header, i+1, 72, 760),
				runAt(fmt.Sprintf("Unique body content for page %d.", i+1), i+1, 72, 400-float64(10*i)),
			},
		}
	}
	return pages
}

func TestFilter_StripsRecurringHeader(t *testing.T) {
	// The header repeats on 19 of 20 pages at the same position.
	pages := pagesWithHeader(20, "Essential Psychopharmacology — Prescriber's Guide")
	pages[7].Runs = pages[7].Runs[1:]

	filtered, removed := Filter(pages, DefaultConfig())
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed group, got %v", removed)
	}
	if removed[0].Pages != 19 {
		t.Errorf("expected header counted on 19 pages, got %d", removed[0].Pages)
	}
	for _, p := range filtered {
		for _, r := range p.Runs {
			if r.Text == "Essential Psychopharmacology — Prescriber's Guide" {
				t.Fatalf("expected header stripped from page %d", p.Index)
			}
		}
	}
}

func TestFilter_KeepsUniqueContent(t *testing.T) {
	pages := pagesWithHeader(10, "Running Header")
	filtered, _ := Filter(pages, DefaultConfig())
	for i, p := range filtered {
		if len(p.Runs) != 1 {
			t.Fatalf("page %d: expected body run kept, got %d runs", i+1, len(p.Runs))
		}
	}
}

func TestFilter_GroupsDriftingPageNumbers(t *testing.T) {
	// "Page 1", "Page 2", ... normalize to the same group even though
	// the digits differ and the position drifts a little.
	pages := make([]source.Page, 8)
	for i := range pages {
		pages[i] = source.Page{
			Index:  i + 1,
			Width:  612,
			Height: 792,
			Runs: []source.TextRun{
				runAt(fmt.Sprintf("Page %d", i+1), i+1, 290, 40+float64(i%3)),
				runAt(fmt.Sprintf("Distinct content line for page %d here.", i+1), i+1, 72, 400-float64(10*i)),
			},
		}
	}

	_, removed := Filter(pages, DefaultConfig())
	if len(removed) != 1 {
		t.Fatalf("expected page-number group removed, got %v", removed)
	}
}

func TestFilter_MarginPageNumberAlwaysStripped(t *testing.T) {
	// A bare page number in the bottom margin goes even when the
	// document is too short for frequency analysis.
	pages := []source.Page{{
		Index:  1,
		Width:  612,
		Height: 792,
		Runs: []source.TextRun{
			runAt("42", 1, 300, 20),
			runAt("Real content in the middle of the page.", 1, 72, 400),
		},
	}}

	filtered, _ := Filter(pages, DefaultConfig())
	if len(filtered[0].Runs) != 1 || filtered[0].Runs[0].Text != "Real content in the middle of the page." {
		t.Errorf("expected only content kept, got %v", filtered[0].Runs)
	}
}

func TestFilter_ShortDocumentKeepsRepeatedTitles(t *testing.T) {
	// Two pages sharing a section title must not lose it: the absolute
	// occurrence floor protects short documents.
	pages := pagesWithHeader(2, "Therapeutics")
	filtered, removed := Filter(pages, DefaultConfig())
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed from a 2-page document, got %v", removed)
	}
	if len(filtered[0].Runs) != 2 {
		t.Errorf("expected all runs kept, got %d", len(filtered[0].Runs))
	}
}

func TestFilter_NumericBodyContentKept(t *testing.T) {
	pages := []source.Page{{
		Index:  1,
		Width:  612,
		Height: 792,
		Runs: []source.TextRun{
			runAt("26", 1, 300, 400), // mid-page number is content
		},
	}}
	filtered, _ := Filter(pages, DefaultConfig())
	if len(filtered[0].Runs) != 1 {
		t.Error("expected mid-page numeric run kept")
	}
}
