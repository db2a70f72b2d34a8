// Command stahldeck converts a drug monograph document (PDF or DOCX)
// into an Anki flashcard deck.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/stahldeck/stahldeck/internal/api"
	"github.com/stahldeck/stahldeck/internal/cards"
	"github.com/stahldeck/stahldeck/internal/config"
	"github.com/stahldeck/stahldeck/internal/pipeline"
)

const version = "1.0.0"

var CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging."`

	Build   BuildCmd   `cmd:"" help:"Convert a document into an Anki deck."`
	Inspect InspectCmd `cmd:"" help:"Analyze a document and print the recovered tree without writing a deck."`
	Preview PreviewCmd `cmd:"" help:"Analyze a document and serve an HTTP preview of the tree and cards."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRunner(log *slog.Logger) (*pipeline.Runner, config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return pipeline.NewRunner(cfg, log), cfg, nil
}

// BuildCmd runs the full pipeline and writes the deck file.
type BuildCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Path to the source document (.pdf or .docx)."`
	Mode   string `default:"basic" enum:"basic,singlecloze,onecloze,multicloze" help:"Card generation mode."`
	Images bool   `default:"true" negatable:"" help:"Attach rendered page images to cards."`
	Out    string `default:"." type:"existingdir" help:"Output directory for the deck file."`
}

func (c *BuildCmd) Run() error {
	log := newLogger()
	runner, _, err := newRunner(log)
	if err != nil {
		return err
	}
	mode, err := cards.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, c.Input, pipeline.Options{
		Mode:          mode,
		IncludeImages: c.Images,
		OutDir:        c.Out,
		Version:       version,
	})
	if err != nil {
		return err
	}

	snap := res.Report.Snapshot()
	fmt.Printf("wrote %s (%d cards, %d drugs", res.OutputPath, snap.Counts.Cards, snap.Counts.Drugs)
	if snap.Counts.Images > 0 {
		fmt.Printf(", %d page images", snap.Counts.Images)
	}
	fmt.Println(")")
	for _, w := range snap.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

// InspectCmd analyzes the document and dumps the recovered tree as
// markdown, or the run report as JSON with --report.
type InspectCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Path to the source document."`
	Mode   string `default:"basic" enum:"basic,singlecloze,onecloze,multicloze" help:"Card generation mode to simulate."`
	Report bool   `help:"Print the run report as JSON instead of the tree."`
}

func (c *InspectCmd) Run() error {
	log := newLogger()
	runner, _, err := newRunner(log)
	if err != nil {
		return err
	}
	mode, err := cards.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, c.Input, pipeline.Options{Mode: mode, SkipDeck: true})
	if err != nil {
		return err
	}

	if c.Report {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report.Snapshot())
	}
	fmt.Print(res.Book.Markdown())
	for _, w := range res.Report.Snapshot().Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

// PreviewCmd analyzes the document and serves the preview UI.
type PreviewCmd struct {
	Input string `arg:"" type:"existingfile" help:"Path to the source document."`
	Mode  string `default:"basic" enum:"basic,singlecloze,onecloze,multicloze" help:"Card generation mode to preview."`
	Addr  string `help:"Listen address (defaults to STAHLDECK_LISTEN_ADDR)."`
}

func (c *PreviewCmd) Run() error {
	log := newLogger()
	runner, cfg, err := newRunner(log)
	if err != nil {
		return err
	}
	mode, err := cards.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, c.Input, pipeline.Options{Mode: mode, SkipDeck: true})
	if err != nil {
		return err
	}

	addr := c.Addr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(res, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("preview listening", "addr", addr, "cards", len(res.Cards))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("stahldeck " + version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("stahldeck"),
		kong.Description("Convert a prescriber's guide into Anki flashcards."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
