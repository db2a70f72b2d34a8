// Package classify assigns a semantic role to each text run from font
// metrics alone. Headings are not tagged in PDF content streams; the
// only evidence is that heading text is set larger than body text, and
// drug chapter titles larger (and bolder) still.
package classify

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/stahldeck/stahldeck/internal/source"
)

// Role is the semantic classification of a run.
type Role int

const (
	Body Role = iota
	DrugTitle
	H1
	H2
	Noise
)

func (r Role) String() string {
	switch r {
	case DrugTitle:
		return "drug_title"
	case H1:
		return "h1"
	case H2:
		return "h2"
	case Noise:
		return "noise"
	default:
		return "body"
	}
}

// ClassifiedRun is a run plus its role. Roles are assigned once and
// never revised downstream; reflow only merges Body runs.
type ClassifiedRun struct {
	source.TextRun
	Role Role
}

// Stats is the font-size snapshot classification is decided from. It
// is exposed so the heuristic can be inspected and tuned in isolation
// rather than buried in extraction code.
type Stats struct {
	BodySize      float64   // modal font size, weighted by text length
	HeadingSizes  []float64 // distinct sizes above body, descending, tolerance-merged
	DrugTitleSize float64   // 0 when no separate drug-title size exists
	Flat          bool      // no usable size separation found
}

// Config controls classification.
type Config struct {
	// SizeTolerance is the relative tolerance under which two font
	// sizes count as the same heading rank. Absorbs rendering jitter
	// so 13.98pt and 14.02pt do not become two heading levels.
	SizeTolerance float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SizeTolerance: 0.05}
}

// Classify assigns roles to every run of the given pages, in document
// order. When no clean size separation exists the document degrades to
// a single flat body sequence and a structural warning is returned
// instead of an error.
func Classify(pages []source.Page, cfg Config) ([]ClassifiedRun, Stats, []string) {
	if cfg.SizeTolerance <= 0 {
		cfg.SizeTolerance = 0.05
	}

	var runs []source.TextRun
	for _, page := range pages {
		runs = append(runs, page.Runs...)
	}
	if len(runs) == 0 {
		return nil, Stats{Flat: true}, []string{"document contains no text runs"}
	}

	stats := buildStats(runs, cfg.SizeTolerance)

	var warnings []string
	if stats.Flat {
		warnings = append(warnings,
			"no heading/body font size separation; treating everything as body text under a single section")
	}

	out := make([]ClassifiedRun, len(runs))
	for i, run := range runs {
		out[i] = ClassifiedRun{TextRun: run, Role: roleFor(run, stats, cfg.SizeTolerance)}
	}

	demoteInlineEmphasis(out)
	return out, stats, warnings
}

// buildStats computes the size histogram and derives the body size and
// heading ranks from it.
func buildStats(runs []source.TextRun, tol float64) Stats {
	// Weight by rune count: body text dominates by volume even when
	// heading runs outnumber it.
	weight := make(map[float64]int)
	for _, r := range runs {
		size := math.Round(r.FontSize*10) / 10
		weight[size] += len([]rune(r.Text))
	}

	var body float64
	best := -1
	for size, w := range weight {
		if w > best || (w == best && size < body) {
			best = w
			body = size
		}
	}

	var above []float64
	for size := range weight {
		if size > body*(1+tol) {
			above = append(above, size)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(above)))

	// Merge ranks closer than the tolerance: rendering jitter, not
	// distinct heading levels.
	var ranks []float64
	for _, size := range above {
		if len(ranks) > 0 && !distinctSizes(ranks[len(ranks)-1], size, tol) {
			continue
		}
		ranks = append(ranks, size)
	}

	stats := Stats{BodySize: body}
	if len(ranks) == 0 {
		stats.Flat = true
		return stats
	}

	// Three or more ranks above body: the largest is the drug chapter
	// title, then H1, then H2. With fewer ranks the drug title shares
	// the H1 size and is told apart by its all-caps styling.
	if len(ranks) >= 3 {
		stats.DrugTitleSize = ranks[0]
		stats.HeadingSizes = ranks[1:]
	} else {
		stats.HeadingSizes = ranks
	}
	return stats
}

func roleFor(run source.TextRun, stats Stats, tol float64) Role {
	if stats.Flat {
		return Body
	}
	size := run.FontSize

	if stats.DrugTitleSize > 0 && !distinctSizes(size, stats.DrugTitleSize, tol) {
		return DrugTitle
	}
	for rank, hs := range stats.HeadingSizes {
		if distinctSizes(size, hs, tol) {
			continue
		}
		if rank == 0 {
			// No dedicated drug-title size: an all-caps H1-ranked run
			// is the chapter title.
			if stats.DrugTitleSize == 0 && isAllCaps(run.Text) && run.Bold {
				return DrugTitle
			}
			return H1
		}
		return H2
	}
	return Body
}

// demoteInlineEmphasis reclassifies a heading-sized run back to body
// when body text continues on the same baseline. A single oversized
// word inside a paragraph line is emphasis, not a heading.
func demoteInlineEmphasis(runs []ClassifiedRun) {
	for i := 0; i < len(runs)-1; i++ {
		if runs[i].Role != H1 && runs[i].Role != H2 {
			continue
		}
		next := runs[i+1]
		if next.Role != Body || next.Page != runs[i].Page {
			continue
		}
		if math.Abs(next.BBox.Y-runs[i].BBox.Y) <= runs[i].BBox.H*0.5 {
			runs[i].Role = Body
		}
	}
}

// distinctSizes reports whether two font sizes differ by more than the
// relative tolerance.
func distinctSizes(a, b float64, tol float64) bool {
	larger := math.Max(a, b)
	if larger == 0 {
		return false
	}
	return math.Abs(a-b)/larger > tol
}

// isAllCaps reports whether the text contains letters and none of them
// are lowercase. Drug names appear fully uppercase in the source.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter && len(strings.TrimSpace(s)) >= 3
}
