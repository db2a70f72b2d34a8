package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// PageRenderer rasterizes PDF pages to JPEG by shelling out to the
// external pdftoppm tool, the same way the text side can fall back to
// pdftotext. When the tool is missing the caller degrades to an
// imageless deck rather than failing the run.
type PageRenderer struct {
	Tool    string // pdftoppm binary name or path
	DPI     int    // render resolution; grayscale keeps decks small
	Quality int    // JPEG quality 1-100
}

func NewPageRenderer(tool string, dpi, quality int) *PageRenderer {
	if tool == "" {
		tool = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 75
	}
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	return &PageRenderer{Tool: tool, DPI: dpi, Quality: quality}
}

// Available reports whether the render tool can be found.
func (r *PageRenderer) Available() bool {
	_, err := exec.LookPath(r.Tool)
	return err == nil
}

// Render rasterizes the given 1-based pages of pdfPath. It returns the
// JPEG bytes per page plus per-page warnings; only a completely
// unusable tool is an error.
func (r *PageRenderer) Render(ctx context.Context, pdfPath string, pages []int) (map[int][]byte, []string, error) {
	if !r.Available() {
		return nil, nil, fmt.Errorf("%s not found in PATH", r.Tool)
	}

	tmpDir, err := os.MkdirTemp("", "stahldeck-img-")
	if err != nil {
		return nil, nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	out := make(map[int][]byte, len(pages))
	var warnings []string
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return out, warnings, err
		}
		prefix := filepath.Join(tmpDir, fmt.Sprintf("page_%04d", p))
		cmd := exec.CommandContext(ctx, r.Tool,
			"-jpeg", "-gray",
			"-r", strconv.Itoa(r.DPI),
			"-jpegopt", "quality="+strconv.Itoa(r.Quality),
			"-f", strconv.Itoa(p),
			"-l", strconv.Itoa(p),
			"-singlefile",
			pdfPath, prefix,
		)
		if err := cmd.Run(); err != nil {
			warnings = append(warnings, fmt.Sprintf("render page %d: %s", p, err))
			continue
		}
		data, err := os.ReadFile(prefix + ".jpg")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("render page %d: %s", p, err))
			continue
		}
		out[p] = data
	}
	return out, warnings, nil
}

// ImageFilename returns the stable media filename for a page image.
// Keyed by page index so the same page referenced by many cards maps
// to a single media entry.
func ImageFilename(page int) string {
	return fmt.Sprintf("page_%04d.jpg", page)
}
