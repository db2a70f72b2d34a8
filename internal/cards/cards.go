// Package cards walks the document tree and emits flashcard records.
// All four output modes share the same walk; they differ only in how
// cloze markers are applied to a topic's answer body.
package cards

import (
	"fmt"
	"html"
	"strings"

	"github.com/stahldeck/stahldeck/internal/doctree"
	"github.com/stahldeck/stahldeck/internal/reflow"
	"github.com/stahldeck/stahldeck/internal/source"
)

// Mode selects the card generation strategy.
type Mode string

const (
	ModeBasic       Mode = "basic"
	ModeSingleCloze Mode = "singlecloze"
	ModeOneCloze    Mode = "onecloze"
	ModeMultiCloze  Mode = "multicloze"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBasic, ModeSingleCloze, ModeOneCloze, ModeMultiCloze:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want basic, singlecloze, onecloze or multicloze)", s)
}

// Cloze reports whether the mode embeds cloze markers.
func (m Mode) Cloze() bool { return m != ModeBasic }

// Card is one generated flashcard record. Basic mode fills Question
// and Answer; cloze modes fill Text with embedded {{cN::...}} markers.
// Never mutated after creation.
type Card struct {
	Drug     string
	Section  string // H1 title
	Path     []string
	Question string
	Answer   string
	Text     string
	Tags     []string
	Page     int    // first contributing page, 0 when unknown
	Image    string // media filename, empty when images are off
}

// Options controls generation.
type Options struct {
	Mode          Mode
	IncludeImages bool
}

// Generate walks the tree in document order and emits one card per
// leaf topic. The tree is read-only, so calls for different modes may
// share a single Book.
func Generate(book *doctree.Book, opts Options) []Card {
	var out []Card
	for _, drug := range book.Drugs {
		for _, topic := range drug.Topics() {
			out = append(out, buildCard(topic, opts))
		}
	}
	return out
}

func buildCard(t doctree.Topic, opts Options) Card {
	card := Card{
		Drug:    t.Drug.Name,
		Section: t.H1.Title,
		Path:    t.Path(),
		Tags:    []string{Tag(t.Drug.Name, t.Path())},
	}
	if pages := t.Section.Pages; len(pages) > 0 {
		card.Page = pages[0]
		if opts.IncludeImages {
			card.Image = source.ImageFilename(card.Page)
		}
	}

	paras := make([]string, 0, len(t.Section.Paragraphs))
	for _, p := range t.Section.Paragraphs {
		paras = append(paras, spansHTML(p))
	}

	switch opts.Mode {
	case ModeSingleCloze:
		card.Text = "{{c1::" + strings.Join(paras, "<br><br>") + "}}"
	case ModeOneCloze:
		// All paragraphs share number 1 so they reveal together.
		for i, p := range paras {
			paras[i] = "{{c1::" + p + "}}"
		}
		card.Text = strings.Join(paras, "<br><br>")
	case ModeMultiCloze:
		for i, p := range paras {
			paras[i] = fmt.Sprintf("{{c%d::%s}}", i+1, p)
		}
		card.Text = strings.Join(paras, "<br><br>")
	default:
		card.Question = question(t)
		card.Answer = strings.Join(paras, "<br><br>")
	}
	return card
}

// question phrases the topic title as a prompt, appending a question
// mark when the title doesn't already end in one.
func question(t doctree.Topic) string {
	title := t.H1.Title
	if t.H2 != nil {
		title = t.H2.Title
	}
	q := fmt.Sprintf("%s: %s", t.Drug.Name, title)
	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return q
}

// spansHTML renders a paragraph's styled spans as inline HTML,
// escaping the text so source content can never inject markup.
func spansHTML(p reflow.Paragraph) string {
	var b strings.Builder
	for _, s := range p.Spans {
		text := html.EscapeString(s.Text)
		if s.Bold {
			text = "<b>" + text + "</b>"
		}
		if s.Italic {
			text = "<i>" + text + "</i>"
		}
		if s.Link != "" {
			text = `<a href="` + html.EscapeString(s.Link) + `">` + text + "</a>"
		}
		b.WriteString(text)
	}
	return b.String()
}

// Tag derives the hierarchical tag for a topic. Pure function of the
// path, so identical paths always produce identical tags.
func Tag(drug string, path []string) string {
	parts := make([]string, 0, len(path)+2)
	parts = append(parts, "Stahl", normTagPart(drug))
	for _, p := range path {
		parts = append(parts, normTagPart(p))
	}
	return strings.Join(parts, "::")
}

// normTagPart lowercases and collapses whitespace to underscores so
// tags stay stable and filterable inside the study application.
func normTagPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ":", "")
	fields := strings.Fields(s)
	return strings.Join(fields, "_")
}
