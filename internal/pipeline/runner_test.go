package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stahldeck/stahldeck/internal/cards"
	"github.com/stahldeck/stahldeck/internal/config"
	"github.com/stahldeck/stahldeck/internal/source"
)

// fakeSource feeds a fixed document into the pipeline.
type fakeSource struct {
	doc *source.Document
	err error
}

func (f *fakeSource) Extract(ctx context.Context) (*source.Document, error) {
	return f.doc, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunner(doc *source.Document, err error) *Runner {
	r := NewRunner(config.Load(), testLogger())
	r.open = func(string, int) (source.Source, error) {
		return &fakeSource{doc: doc, err: err}, nil
	}
	return r
}

func stahlDocument() *source.Document {
	y := 700.0
	mk := func(text string, size float64, bold bool) source.TextRun {
		r := source.TextRun{
			Text:     text,
			Page:     1,
			Font:     "Helvetica",
			FontSize: size,
			Bold:     bold,
			BBox:     source.BBox{X: 72, Y: y, W: float64(len(text)) * size * 0.5, H: size},
		}
		y -= 30
		return r
	}
	return &source.Document{Pages: []source.Page{{
		Index:  1,
		Width:  612,
		Height: 792,
		Runs: []source.TextRun{
			mk("SERTRALINE", 18, true),
			mk("Pharmacokinetics", 14, true),
			mk("Half-life", 12, true),
			mk("Half-life is approximately 26 hours in adult patients.", 10, false),
			mk("Therapeutics", 14, true),
			mk("Indicated for major depressive disorder and several others.", 10, false),
		},
	}}}
}

func TestRun_WritesDeck(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(stahlDocument(), nil)

	res, err := r.Run(context.Background(), "guide.pdf", Options{
		Mode:    cards.ModeBasic,
		OutDir:  outDir,
		Version: "1.0.0",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := filepath.Join(outDir, "stahl_drugs_v1.0.0.apkg"); res.OutputPath != want {
		t.Errorf("expected output %q, got %q", want, res.OutputPath)
	}
	if len(res.Cards) != 2 {
		t.Errorf("expected 2 cards, got %d", len(res.Cards))
	}

	f, err := os.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("expected deck file on disk: %v", err)
	}
	info, _ := f.Stat()
	if _, err := zip.NewReader(f, info.Size()); err != nil {
		t.Errorf("expected a valid zip package: %v", err)
	}
	f.Close()

	snap := res.Report.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Errorf("expected completed phase, got %v", snap.Phase)
	}
	if snap.Counts.Cards != 2 || snap.Counts.Drugs != 1 {
		t.Errorf("unexpected counts %+v", snap.Counts)
	}
}

func TestRun_SkipDeckAnalyzesOnly(t *testing.T) {
	r := testRunner(stahlDocument(), nil)
	res, err := r.Run(context.Background(), "guide.pdf", Options{
		Mode:     cards.ModeMultiCloze,
		SkipDeck: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.OutputPath != "" {
		t.Errorf("expected no output file, got %q", res.OutputPath)
	}
	if res.Book == nil || len(res.Book.Drugs) != 1 {
		t.Fatalf("expected analyzed tree, got %+v", res.Book)
	}
}

func TestRun_EmptyDocumentIsFatal(t *testing.T) {
	r := testRunner(&source.Document{Pages: []source.Page{{Index: 1, Width: 612, Height: 792}}}, nil)
	_, err := r.Run(context.Background(), "empty.pdf", Options{Mode: cards.ModeBasic, OutDir: t.TempDir(), Version: "1.0.0"})
	if !errors.Is(err, ErrNoCards) {
		t.Fatalf("expected ErrNoCards, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(t.TempDir(), "stahl_drugs_v1.0.0.apkg")); statErr == nil {
		t.Error("expected no output file for a failed run")
	}
}

func TestRun_ExtractErrorSurfaced(t *testing.T) {
	r := testRunner(nil, errors.New("bad xref table"))
	_, err := r.Run(context.Background(), "broken.pdf", Options{Mode: cards.ModeBasic})
	if err == nil || !strings.Contains(err.Error(), "bad xref table") {
		t.Fatalf("expected extract error, got %v", err)
	}
}

func TestRun_ImagesDegradeWithWarning(t *testing.T) {
	cfg := config.Load()
	cfg.RenderTool = "definitely-not-a-real-tool"
	r := NewRunner(cfg, testLogger())
	r.open = func(string, int) (source.Source, error) {
		return &fakeSource{doc: stahlDocument()}, nil
	}

	res, err := r.Run(context.Background(), "guide.pdf", Options{
		Mode:          cards.ModeBasic,
		IncludeImages: true,
		OutDir:        t.TempDir(),
		Version:       "1.0.0",
	})
	if err != nil {
		t.Fatalf("expected degraded run to succeed, got %v", err)
	}
	for _, c := range res.Cards {
		if c.Image != "" {
			t.Errorf("expected imageless cards, got %q", c.Image)
		}
	}
	found := false
	for _, w := range res.Report.Snapshot().Warnings {
		if strings.Contains(w, "imageless") {
			found = true
		}
	}
	if !found {
		t.Error("expected an imageless-deck warning")
	}
}

