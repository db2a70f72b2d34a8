// Package noise strips runs that recur near-identically at the same
// position across many pages: running headers, footers, and page
// numbers. Real content never repeats at a fixed position page after
// page, so frequency at a quantized position is the signal.
package noise

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/stahldeck/stahldeck/internal/source"
)

// Config controls noise detection.
type Config struct {
	// MinOccurrenceRatio is the fraction of pages a run must repeat on
	// to count as noise.
	MinOccurrenceRatio float64

	// MinOccurrences is an absolute floor so short documents do not
	// lose legitimate repeated titles to an aggressive ratio.
	MinOccurrences int

	// PositionQuantum is the grid size in points used to bucket run
	// positions, tolerating minor page-to-page drift.
	PositionQuantum float64

	// MarginFraction is the top/bottom band (fraction of page height)
	// where numeric-only runs are always treated as page numbers.
	MarginFraction float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinOccurrenceRatio: 0.5,
		MinOccurrences:     3,
		PositionQuantum:    6.0,
		MarginFraction:     0.08,
	}
}

// Removed describes one stripped noise group, for run summaries.
type Removed struct {
	Text  string // representative text
	Pages int    // number of pages it appeared on
}

var digitsRe = regexp.MustCompile(`\d+`)

// Filter returns the pages with recurring header/footer runs removed,
// plus a description of what was stripped.
func Filter(pages []source.Page, cfg Config) ([]source.Page, []Removed) {
	if cfg.MinOccurrenceRatio <= 0 {
		cfg.MinOccurrenceRatio = 0.5
	}
	if cfg.MinOccurrences < 2 {
		cfg.MinOccurrences = 2
	}
	if cfg.PositionQuantum <= 0 {
		cfg.PositionQuantum = 6.0
	}
	if cfg.MarginFraction <= 0 {
		cfg.MarginFraction = 0.08
	}

	type group struct {
		text    string
		pageSet map[int]bool
	}
	groups := make(map[string]*group)
	for _, page := range pages {
		for _, run := range page.Runs {
			key := groupKey(run, cfg.PositionQuantum)
			g := groups[key]
			if g == nil {
				g = &group{text: strings.TrimSpace(run.Text), pageSet: make(map[int]bool)}
				groups[key] = g
			}
			g.pageSet[run.Page] = true
		}
	}

	// Threshold scales with document length; the floor protects short
	// documents from losing repeated section titles.
	threshold := int(math.Ceil(cfg.MinOccurrenceRatio * float64(len(pages))))
	if threshold < cfg.MinOccurrences {
		threshold = cfg.MinOccurrences
	}

	noisy := make(map[string]bool)
	var removed []Removed
	for key, g := range groups {
		if len(g.pageSet) < threshold {
			continue
		}
		// Very short non-numeric fragments are more likely stray
		// glyphs than headers; leave them to the classifier.
		norm := normalizeText(g.text)
		if len(norm) <= 2 && norm != "#" {
			continue
		}
		noisy[key] = true
		removed = append(removed, Removed{Text: g.text, Pages: len(g.pageSet)})
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Pages > removed[j].Pages })

	out := make([]source.Page, 0, len(pages))
	for _, page := range pages {
		kept := make([]source.TextRun, 0, len(page.Runs))
		for _, run := range page.Runs {
			if noisy[groupKey(run, cfg.PositionQuantum)] {
				continue
			}
			if isMarginPageNumber(run, page.Height, cfg.MarginFraction) {
				continue
			}
			kept = append(kept, run)
		}
		page.Runs = kept
		out = append(out, page)
	}
	return out, removed
}

// groupKey buckets a run by normalized text and quantized position.
func groupKey(run source.TextRun, quantum float64) string {
	qx := math.Round(run.BBox.X / quantum)
	qy := math.Round(run.BBox.Y / quantum)
	var b strings.Builder
	b.WriteString(normalizeText(run.Text))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(qx)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(qy)))
	return b.String()
}

// normalizeText collapses whitespace and replaces digit sequences with
// a placeholder so "Page 12" and "Page 13" fall into the same group.
func normalizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return digitsRe.ReplaceAllString(s, "#")
}

// isMarginPageNumber reports whether a run is numeric-only and sits in
// the extreme top or bottom margin. Such runs are page numbers
// regardless of how often they repeat.
func isMarginPageNumber(run source.TextRun, pageHeight, marginFraction float64) bool {
	text := strings.TrimSpace(run.Text)
	if text == "" || !isNumeric(text) {
		return false
	}
	if pageHeight <= 0 {
		return false
	}
	margin := pageHeight * marginFraction
	top := run.BBox.Y+run.BBox.H >= pageHeight-margin
	bottom := run.BBox.Y <= margin
	return top || bottom
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
