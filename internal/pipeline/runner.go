// Package pipeline wires the conversion stages together: extract,
// filter, classify, build, generate, render, assemble.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/stahldeck/stahldeck/internal/cards"
	"github.com/stahldeck/stahldeck/internal/classify"
	"github.com/stahldeck/stahldeck/internal/config"
	"github.com/stahldeck/stahldeck/internal/deck"
	"github.com/stahldeck/stahldeck/internal/doctree"
	"github.com/stahldeck/stahldeck/internal/noise"
	"github.com/stahldeck/stahldeck/internal/reflow"
	"github.com/stahldeck/stahldeck/internal/source"
)

// ErrNoCards reports total structural failure: the document yielded no
// card at all, so no deck file is written.
var ErrNoCards = errors.New("no cards produced from input document")

// Options selects what a run produces.
type Options struct {
	Mode          cards.Mode
	IncludeImages bool
	OutDir        string
	Version       string
	SkipDeck      bool // analyze only, write nothing
}

// Result is the outcome of a completed run. The tree and cards are
// frozen; callers may share them freely.
type Result struct {
	Book       *doctree.Book
	Cards      []cards.Card
	Stats      classify.Stats
	OutputPath string
	Report     *Report
}

// Runner executes the conversion pipeline.
type Runner struct {
	cfg  config.Config
	log  *slog.Logger
	open func(path string, workers int) (source.Source, error)
}

func NewRunner(cfg config.Config, log *slog.Logger) *Runner {
	return &Runner{cfg: cfg, log: log, open: source.ForFile}
}

// Run converts one input document. Partial failures (unreadable pages,
// flat structure, missing render tool) degrade with warnings; only an
// unreadable input or an empty card list is fatal.
func (r *Runner) Run(ctx context.Context, inputPath string, opts Options) (*Result, error) {
	report := NewReport(inputPath, string(opts.Mode))
	result := &Result{Report: report}
	log := r.log.With("input", filepath.Base(inputPath), "mode", opts.Mode)

	src, err := r.open(inputPath, r.cfg.ExtractWorkers)
	if err != nil {
		report.SetPhase(PhaseFailed)
		return result, err
	}

	doc, err := src.Extract(ctx)
	if err != nil {
		report.SetPhase(PhaseFailed)
		return result, fmt.Errorf("extract %s: %w", inputPath, err)
	}
	report.AddWarnings(doc.Warnings...)
	report.Update(func(c *Counts) {
		c.Pages = len(doc.Pages)
		c.PagesSkipped = len(doc.Warnings)
	})
	log.Info("extracted", "pages", len(doc.Pages), "skipped", len(doc.Warnings))

	report.SetPhase(PhaseFiltering)
	pages, removed := noise.Filter(doc.Pages, noise.Config{
		MinOccurrenceRatio: r.cfg.NoiseRatio,
		MinOccurrences:     r.cfg.NoiseMinOccurrences,
		PositionQuantum:    r.cfg.NoiseQuantum,
		MarginFraction:     r.cfg.NoiseMarginFraction,
	})
	report.Update(func(c *Counts) { c.NoiseGroups = len(removed) })
	for _, rm := range removed {
		log.Debug("stripped recurring run", "text", rm.Text, "pages", rm.Pages)
	}

	report.SetPhase(PhaseClassifying)
	classified, stats, warnings := classify.Classify(pages, classify.Config{
		SizeTolerance: r.cfg.SizeTolerance,
	})
	result.Stats = stats
	report.AddWarnings(warnings...)
	for _, w := range warnings {
		log.Warn(w)
	}

	report.SetPhase(PhaseBuilding)
	builder := &doctree.Builder{Reflow: reflow.Config{
		PitchFactor:   r.cfg.PitchFactor,
		IndentEpsilon: r.cfg.IndentEpsilon,
	}}
	book, warnings := builder.Build(bookTitle(inputPath), classified)
	result.Book = book
	report.AddWarnings(warnings...)
	for _, w := range warnings {
		log.Warn(w)
	}
	report.Update(func(c *Counts) { c.Drugs = len(book.Drugs) })

	report.SetPhase(PhaseGenerating)
	includeImages := opts.IncludeImages
	renderer := source.NewPageRenderer(r.cfg.RenderTool, r.cfg.RenderDPI, r.cfg.RenderQuality)
	if includeImages && (!isPDF(inputPath) || !renderer.Available()) {
		includeImages = false
		w := fmt.Sprintf("page images unavailable (%s not usable for this input); building imageless deck", renderer.Tool)
		report.AddWarnings(w)
		log.Warn(w)
	}
	result.Cards = cards.Generate(book, cards.Options{Mode: opts.Mode, IncludeImages: includeImages})
	report.Update(func(c *Counts) { c.Cards = len(result.Cards) })
	if len(result.Cards) == 0 {
		report.SetPhase(PhaseFailed)
		return result, ErrNoCards
	}
	log.Info("generated", "cards", len(result.Cards), "drugs", len(book.Drugs))

	if opts.SkipDeck {
		report.SetPhase(PhaseCompleted)
		return result, nil
	}

	var media map[int][]byte
	if includeImages {
		report.SetPhase(PhaseRendering)
		media, err = r.renderImages(ctx, renderer, inputPath, result.Cards)
		if err != nil {
			return result, err
		}
		report.Update(func(c *Counts) { c.Images = len(media) })
	}

	report.SetPhase(PhaseAssembling)
	outPath := filepath.Join(opts.OutDir, deck.Filename(opts.Version))
	assembler := deck.NewAssembler(opts.Mode)
	if err := assembler.WriteFile(outPath, result.Cards, media); err != nil {
		report.SetPhase(PhaseFailed)
		return result, fmt.Errorf("assemble deck: %w", err)
	}
	result.OutputPath = outPath
	report.SetOutput(outPath)
	report.SetPhase(PhaseCompleted)
	log.Info("deck written", "path", outPath)
	return result, nil
}

// renderImages rasterizes every page referenced by a card, once per
// page. Per-page render failures degrade to a smaller media set.
func (r *Runner) renderImages(ctx context.Context, renderer *source.PageRenderer, inputPath string, list []cards.Card) (map[int][]byte, error) {
	seen := make(map[int]bool)
	var pages []int
	for _, c := range list {
		if c.Page > 0 && !seen[c.Page] {
			seen[c.Page] = true
			pages = append(pages, c.Page)
		}
	}
	media, warnings, err := renderer.Render(ctx, inputPath, pages)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	for _, w := range warnings {
		r.log.Warn(w)
	}
	return media, nil
}

func bookTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
