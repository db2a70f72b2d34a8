package reflow

import (
	"reflect"
	"testing"

	"github.com/stahldeck/stahldeck/internal/source"
)

func bodyRun(text string, page int, x, y float64) source.TextRun {
	return source.TextRun{
		Text:     text,
		Page:     page,
		Font:     "Times",
		FontSize: 10,
		BBox:     source.BBox{X: x, Y: y, W: float64(len(text)) * 5, H: 10},
	}
}

func texts(paras []Paragraph) []string {
	out := make([]string, len(paras))
	for i, p := range paras {
		out[i] = p.Text()
	}
	return out
}

func TestFlow_MergesWrappedLines(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("Half-life is", 1, 72, 700),
		bodyRun("approximately 26 hours.", 1, 72, 688),
	}

	paras := Flow(runs, DefaultConfig())
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	if got := paras[0].Text(); got != "Half-life is approximately 26 hours." {
		t.Errorf("expected merged text, got %q", got)
	}
	if paras[0].Page != 1 {
		t.Errorf("expected page 1, got %d", paras[0].Page)
	}
}

func TestFlow_BreaksOnVerticalGap(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("First paragraph line one.", 1, 72, 700),
		bodyRun("First paragraph line two.", 1, 72, 688),
		bodyRun("Second paragraph after a gap.", 1, 72, 640),
	}

	paras := Flow(runs, DefaultConfig())
	want := []string{
		"First paragraph line one. First paragraph line two.",
		"Second paragraph after a gap.",
	}
	if got := texts(paras); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFlow_JoinsHyphenatedWordCut(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("Half-life is approxi-", 1, 72, 700),
		bodyRun("mately 26 hours.", 1, 72, 688),
	}

	paras := Flow(runs, DefaultConfig())
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	if got := paras[0].Text(); got != "Half-life is approximately 26 hours." {
		t.Errorf("expected hyphen dropped, got %q", got)
	}
}

func TestFlow_KeepsAmbiguousHyphen(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("Risk of SSRI-", 1, 72, 700),
		bodyRun("induced side effects.", 1, 72, 688),
	}

	paras := Flow(runs, DefaultConfig())
	if got := paras[0].Text(); got != "Risk of SSRI-induced side effects." {
		t.Errorf("expected hyphen kept for likely compound, got %q", got)
	}
}

func TestFlow_BulletStartsParagraph(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("• insomnia, sedation", 1, 72, 700),
		bodyRun("• sexual dysfunction", 1, 72, 688),
	}

	paras := Flow(runs, DefaultConfig())
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %v", len(paras), texts(paras))
	}
}

func TestFlow_IndentIncreaseStartsParagraph(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("Flush left line.", 1, 72, 700),
		bodyRun("Indented start of something new.", 1, 92, 688),
	}

	paras := Flow(runs, DefaultConfig())
	if len(paras) != 2 {
		t.Fatalf("expected indent change to break, got %d paragraphs", len(paras))
	}
}

func TestFlow_PreservesInlineSpans(t *testing.T) {
	plain := bodyRun("Dose is", 1, 72, 700)
	bold := bodyRun("50 mg", 1, 72+plain.BBox.W+4, 700)
	bold.Bold = true
	tail := bodyRun("once daily.", 1, bold.BBox.X+bold.BBox.W+4, 700)

	paras := Flow([]source.TextRun{plain, bold, tail}, DefaultConfig())
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	spans := paras[0].Spans
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d: %#v", len(spans), spans)
	}
	if !spans[1].Bold || spans[0].Bold || spans[2].Bold {
		t.Errorf("expected only middle span bold, got %#v", spans)
	}
	if got := paras[0].Text(); got != "Dose is 50 mg once daily." {
		t.Errorf("expected spacing preserved across spans, got %q", got)
	}
}

func TestFlow_Idempotent(t *testing.T) {
	runs := []source.TextRun{
		bodyRun("Half-life is approxi-", 1, 72, 700),
		bodyRun("mately 26 hours.", 1, 72, 688),
		bodyRun("A second paragraph follows here.", 1, 72, 640),
	}
	first := Flow(runs, DefaultConfig())

	// Feed each paragraph back as a single run on its own baseline.
	var again []source.TextRun
	y := 700.0
	for _, p := range first {
		again = append(again, bodyRun(p.Text(), p.Page, 72, y))
		y -= 100
	}
	second := Flow(again, DefaultConfig())

	if !reflect.DeepEqual(texts(first), texts(second)) {
		t.Errorf("expected reflow of reflowed output to be a no-op:\nfirst  %v\nsecond %v", texts(first), texts(second))
	}
}

func TestFlow_EmptyInput(t *testing.T) {
	if got := Flow(nil, DefaultConfig()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
