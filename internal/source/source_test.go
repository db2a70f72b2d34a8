package source

import (
	"testing"
)

func frag(text string, x, y, w, size float64, font string) TextRun {
	return TextRun{
		Text:     text,
		Page:     1,
		Font:     font,
		FontSize: size,
		Bold:     fontIsBold(font),
		Italic:   fontIsItalic(font),
		BBox:     BBox{X: x, Y: y, W: w, H: size},
	}
}

func TestAssembleLines_GroupsGlyphFragments(t *testing.T) {
	// One glyph per fragment, as many PDFs emit them.
	frags := []TextRun{
		frag("H", 72, 700, 6, 10, "Times"),
		frag("a", 78, 700, 5, 10, "Times"),
		frag("l", 83, 700, 3, 10, "Times"),
		frag("f", 86, 700, 4, 10, "Times"),
	}

	runs := assembleLines(frags)
	if len(runs) != 1 {
		t.Fatalf("expected 1 merged run, got %d: %v", len(runs), runs)
	}
	if runs[0].Text != "Half" {
		t.Errorf("expected %q, got %q", "Half", runs[0].Text)
	}
}

func TestAssembleLines_InsertsWordGaps(t *testing.T) {
	frags := []TextRun{
		frag("Half-life", 72, 700, 40, 10, "Times"),
		frag("is", 117, 700, 9, 10, "Times"), // 5pt gap, wider than 0.3em
	}

	runs := assembleLines(frags)
	if len(runs) != 1 || runs[0].Text != "Half-life is" {
		t.Fatalf("expected space inserted, got %v", runs)
	}
}

func TestAssembleLines_SeparatesBaselines(t *testing.T) {
	frags := []TextRun{
		frag("second line", 72, 688, 50, 10, "Times"),
		frag("first line", 72, 700, 45, 10, "Times"),
	}

	runs := assembleLines(frags)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Text != "first line" || runs[1].Text != "second line" {
		t.Errorf("expected top-down order, got %q then %q", runs[0].Text, runs[1].Text)
	}
}

func TestAssembleLines_SplitsOnStyleChange(t *testing.T) {
	frags := []TextRun{
		frag("Dose is ", 72, 700, 40, 10, "Times-Roman"),
		frag("50 mg", 112, 700, 25, 10, "Times-Bold"),
		frag(" daily", 137, 700, 28, 10, "Times-Roman"),
	}

	runs := assembleLines(frags)
	if len(runs) != 3 {
		t.Fatalf("expected 3 style runs, got %d: %v", len(runs), runs)
	}
	if !runs[1].Bold {
		t.Errorf("expected middle run bold, got %+v", runs[1])
	}
	if runs[0].Bold || runs[2].Bold {
		t.Error("expected surrounding runs regular")
	}
}

func TestFontStyleDetection(t *testing.T) {
	cases := []struct {
		font   string
		bold   bool
		italic bool
	}{
		{"Times-Bold", true, false},
		{"Helvetica-BoldOblique", true, true},
		{"Minion-Italic", false, true},
		{"ArialBlack", true, false},
		{"Times-Roman", false, false},
	}
	for _, tc := range cases {
		if got := fontIsBold(tc.font); got != tc.bold {
			t.Errorf("fontIsBold(%q): expected %v, got %v", tc.font, tc.bold, got)
		}
		if got := fontIsItalic(tc.font); got != tc.italic {
			t.Errorf("fontIsItalic(%q): expected %v, got %v", tc.font, tc.italic, got)
		}
	}
}

func TestForFile_DispatchesByExtension(t *testing.T) {
	src, err := ForFile("guide.pdf", 4)
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if _, ok := src.(*PDFSource); !ok {
		t.Errorf("expected PDFSource, got %T", src)
	}

	src, err = ForFile("guide.docx", 4)
	if err != nil {
		t.Fatalf("docx: %v", err)
	}
	if _, ok := src.(*DOCXSource); !ok {
		t.Errorf("expected DOCXSource, got %T", src)
	}

	if _, err := ForFile("guide.epub", 4); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestImageFilename_StablePerPage(t *testing.T) {
	if got := ImageFilename(12); got != "page_0012.jpg" {
		t.Errorf("expected page_0012.jpg, got %q", got)
	}
	if ImageFilename(1) == ImageFilename(2) {
		t.Error("expected distinct filenames per page")
	}
}

func TestStyleMetrics_RecoversHierarchy(t *testing.T) {
	title, _ := styleMetrics("Title")
	h1, _ := styleMetrics("Heading1")
	h2, _ := styleMetrics("Heading2")
	body, bodyBold := styleMetrics("")
	if !(title > h1 && h1 > h2 && h2 > body) {
		t.Errorf("expected strictly decreasing sizes, got %v %v %v %v", title, h1, h2, body)
	}
	if bodyBold {
		t.Error("expected body style not bold")
	}
}
