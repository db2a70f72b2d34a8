// Package reflow merges physically wrapped body lines back into logical
// paragraphs. PDF text carries no paragraph structure; the evidence is
// vertical line pitch, indentation, bullets, and trailing hyphens.
package reflow

import (
	"sort"
	"strings"
	"unicode"

	"github.com/stahldeck/stahldeck/internal/source"
)

// Span is one styled fragment inside a paragraph. Adjacent runs with
// identical styling collapse into a single span.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Link   string
}

// Paragraph is an ordered sequence of styled spans. Page is the page
// index of the first contributing run, kept for image attribution.
type Paragraph struct {
	Spans []Span
	Page  int
}

// Text returns the paragraph's plain text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, s := range p.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Config controls paragraph break detection.
type Config struct {
	// PitchFactor scales the prevailing line pitch; a vertical gap
	// larger than factor*pitch breaks the paragraph.
	PitchFactor float64

	// IndentEpsilon is the leading-indent increase in points that
	// starts a new paragraph even without a vertical gap.
	IndentEpsilon float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PitchFactor: 1.5, IndentEpsilon: 8.0}
}

// line is one baseline worth of runs.
type line struct {
	page int
	x    float64 // leftmost edge
	y    float64 // baseline
	h    float64 // tallest run height
	runs []source.TextRun
}

// Flow merges an ordered sequence of body runs into paragraphs. Runs
// are grouped into baselines first; paragraph breaks are then decided
// line by line against the estimated pitch.
func Flow(runs []source.TextRun, cfg Config) []Paragraph {
	if cfg.PitchFactor <= 0 {
		cfg.PitchFactor = 1.5
	}
	if cfg.IndentEpsilon <= 0 {
		cfg.IndentEpsilon = 8.0
	}

	lines := groupLines(runs)
	if len(lines) == 0 {
		return nil
	}
	pitch := estimatePitch(lines)

	var paras []Paragraph
	var cur *Paragraph
	for i, ln := range lines {
		if cur == nil || breakBefore(lines[i-1], ln, pitch, cfg) {
			if cur != nil {
				paras = append(paras, *cur)
			}
			cur = &Paragraph{Page: ln.page}
		}
		appendLine(cur, ln)
	}
	if cur != nil {
		paras = append(paras, *cur)
	}
	return paras
}

// groupLines buckets runs by page and baseline, preserving document
// order of the baselines and left-to-right order within each.
func groupLines(runs []source.TextRun) []line {
	var lines []line
	for _, run := range runs {
		text := strings.TrimSpace(run.Text)
		if text == "" {
			continue
		}
		run.Text = text
		if n := len(lines); n > 0 {
			last := &lines[n-1]
			if run.Page == last.page && absf(run.BBox.Y-last.y) <= last.h*0.5 {
				last.runs = append(last.runs, run)
				if run.BBox.X < last.x {
					last.x = run.BBox.X
				}
				if run.BBox.H > last.h {
					last.h = run.BBox.H
				}
				continue
			}
		}
		lines = append(lines, line{
			page: run.Page,
			x:    run.BBox.X,
			y:    run.BBox.Y,
			h:    run.BBox.H,
			runs: []source.TextRun{run},
		})
	}
	for i := range lines {
		sort.SliceStable(lines[i].runs, func(a, b int) bool {
			return lines[i].runs[a].BBox.X < lines[i].runs[b].BBox.X
		})
	}
	return lines
}

// estimatePitch returns the prevailing baseline-to-baseline distance:
// the median of successive same-page deltas small enough to be line
// wraps rather than paragraph gaps. Falls back to 1.2x the line height
// when the unit is too short to measure.
func estimatePitch(lines []line) float64 {
	var deltas []float64
	for i := 1; i < len(lines); i++ {
		if lines[i].page != lines[i-1].page {
			continue
		}
		d := lines[i-1].y - lines[i].y
		if d > 0 && d <= lines[i-1].h*1.6 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return lines[0].h * 1.2
	}
	sort.Float64s(deltas)
	return deltas[len(deltas)/2]
}

// breakBefore reports whether cur starts a new paragraph after prev.
func breakBefore(prev, cur line, pitch float64, cfg Config) bool {
	if startsBullet(cur) {
		return true
	}
	if prev.page != cur.page {
		// A page boundary breaks the paragraph unless the previous
		// line was cut mid-word.
		return !endsWithHyphen(prev)
	}
	if prev.y-cur.y > cfg.PitchFactor*pitch {
		return true
	}
	if cur.x > prev.x+cfg.IndentEpsilon {
		return true
	}
	return false
}

func startsBullet(ln line) bool {
	if len(ln.runs) == 0 {
		return false
	}
	return strings.HasPrefix(ln.runs[0].Text, "•") || strings.HasPrefix(ln.runs[0].Text, "◦")
}

func endsWithHyphen(ln line) bool {
	if len(ln.runs) == 0 {
		return false
	}
	return strings.HasSuffix(ln.runs[len(ln.runs)-1].Text, "-")
}

// appendLine merges one line's runs into the paragraph, deciding the
// separator per run: hyphen joining across a line break, bbox-gap
// spacing within a line, a plain space otherwise.
func appendLine(p *Paragraph, ln line) {
	for i, run := range ln.runs {
		sep := " "
		switch {
		case len(p.Spans) == 0:
			sep = ""
		case i > 0:
			// Within a line, style changes split runs mid-phrase; the
			// bbox gap says whether a word boundary sits between them.
			prev := ln.runs[i-1]
			if run.BBox.X-(prev.BBox.X+prev.BBox.W) <= run.FontSize*0.3 {
				sep = ""
			}
		default:
			// First run of a wrapped line: join a hyphenated word cut.
			if tail := lastSpanText(p); strings.HasSuffix(tail, "-") && startsLower(run.Text) {
				sep = ""
				if wrapArtifact(tail, run.Text) {
					trimTrailingHyphen(p)
				}
			}
		}
		appendSpan(p, run, sep)
	}
}

// wrapArtifact reports whether a trailing hyphen is a line-wrap cut
// rather than a real compound: both word halves must be plain
// lowercase letters. Ambiguous cases keep the hyphen, since a false
// removal corrupts text silently.
func wrapArtifact(tail, next string) bool {
	before := tail[:len(tail)-1]
	if i := strings.LastIndexFunc(before, unicode.IsSpace); i >= 0 {
		before = before[i+1:]
	}
	after := next
	if i := strings.IndexFunc(after, unicode.IsSpace); i >= 0 {
		after = after[:i]
	}
	return isLowerWord(before) && isLowerWord(after)
}

func isLowerWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

func lastSpanText(p *Paragraph) string {
	if len(p.Spans) == 0 {
		return ""
	}
	return p.Spans[len(p.Spans)-1].Text
}

func trimTrailingHyphen(p *Paragraph) {
	last := &p.Spans[len(p.Spans)-1]
	last.Text = strings.TrimSuffix(last.Text, "-")
}

// appendSpan adds run text to the paragraph, extending the last span
// when the styling matches and opening a new one otherwise.
func appendSpan(p *Paragraph, run source.TextRun, sep string) {
	if n := len(p.Spans); n > 0 {
		last := &p.Spans[n-1]
		if last.Bold == run.Bold && last.Italic == run.Italic && last.Link == run.Link {
			last.Text += sep + run.Text
			return
		}
		// The separator belongs to neither style; attach it to the
		// span that is ending so emphasis doesn't swallow a space.
		last.Text += sep
	}
	p.Spans = append(p.Spans, Span{
		Text:   run.Text,
		Bold:   run.Bold,
		Italic: run.Italic,
		Link:   run.Link,
	})
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
