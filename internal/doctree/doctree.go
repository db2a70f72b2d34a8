// Package doctree assembles classified runs into the semantic document
// hierarchy: Book -> Drug -> H1 section -> H2 topic -> paragraphs.
package doctree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stahldeck/stahldeck/internal/classify"
	"github.com/stahldeck/stahldeck/internal/reflow"
	"github.com/stahldeck/stahldeck/internal/source"
)

// Synthetic bucket titles for content arriving before its heading.
const (
	UnknownDrug    = "Unknown Drug"
	GeneralSection = "General"
)

// Book is the root of the document tree. Built in a single pass and
// read-only afterwards, so card generation for different modes can
// share it freely.
type Book struct {
	Title string
	Drugs []*Drug
}

// Drug is one chapter.
type Drug struct {
	Name     string
	Page     int // page the chapter opens on
	Sections []*Section
}

// Section is an H1 section or an H2 topic. H1 sections may hold
// paragraphs directly or nest H2 children; H2 topics hold paragraphs
// only. Pages is the sorted set of contributing page indices.
type Section struct {
	Title      string
	Level      int // 1 or 2
	Children   []*Section
	Paragraphs []reflow.Paragraph
	Pages      []int
}

// Builder turns a classified run stream into a Book.
type Builder struct {
	Reflow reflow.Config
}

// Build scans the runs left to right, maintaining the open
// drug/H1/H2 path. Malformed nesting degrades with a warning instead
// of failing: headings before their parent go into synthetic buckets,
// and an H2 with no open H1 is promoted to H1.
func (b *Builder) Build(title string, runs []classify.ClassifiedRun) (*Book, []string) {
	book := &Book{Title: title}
	var warnings []string

	var (
		curDrug *Drug
		curH1   *Section
		curH2   *Section
		pending []source.TextRun
		// role of the last heading opened with no body attached yet,
		// for joining wrapped multi-line heading titles
		openHeading classify.Role
	)

	ensureDrug := func(page int) {
		if curDrug == nil {
			curDrug = &Drug{Name: UnknownDrug, Page: page}
			book.Drugs = append(book.Drugs, curDrug)
			warnings = append(warnings, fmt.Sprintf("content before any drug title on page %d; filing under %q", page, UnknownDrug))
		}
	}
	ensureH1 := func(page int) {
		ensureDrug(page)
		if curH1 == nil {
			curH1 = &Section{Title: GeneralSection, Level: 1}
			curDrug.Sections = append(curDrug.Sections, curH1)
		}
	}

	flush := func() {
		paras := reflow.Flow(pending, b.Reflow)
		pending = nil
		openHeading = classify.Body
		if len(paras) == 0 {
			return
		}
		ensureH1(paras[0].Page)
		target := curH1
		if curH2 != nil {
			target = curH2
		}
		target.Paragraphs = append(target.Paragraphs, paras...)
		for _, p := range paras {
			target.addPage(p.Page)
			if curH2 != nil {
				curH1.addPage(p.Page)
			}
		}
	}

	for _, run := range runs {
		switch run.Role {
		case classify.DrugTitle:
			if openHeading == classify.DrugTitle && curDrug != nil {
				curDrug.Name += " " + strings.TrimSpace(run.Text)
				continue
			}
			flush()
			curDrug = &Drug{Name: strings.TrimSpace(run.Text), Page: run.Page}
			book.Drugs = append(book.Drugs, curDrug)
			curH1, curH2 = nil, nil
			openHeading = classify.DrugTitle

		case classify.H1:
			if openHeading == classify.H1 && curH1 != nil {
				curH1.Title += " " + strings.TrimSpace(run.Text)
				curH1.addPage(run.Page)
				continue
			}
			flush()
			ensureDrug(run.Page)
			curH1 = &Section{Title: strings.TrimSpace(run.Text), Level: 1, Pages: []int{run.Page}}
			curDrug.Sections = append(curDrug.Sections, curH1)
			curH2 = nil
			openHeading = classify.H1

		case classify.H2:
			if openHeading == classify.H2 && curH2 != nil {
				curH2.Title += " " + strings.TrimSpace(run.Text)
				curH2.addPage(run.Page)
				continue
			}
			flush()
			if curH1 == nil {
				warnings = append(warnings, fmt.Sprintf("h2 %q on page %d with no open h1; promoting to h1", strings.TrimSpace(run.Text), run.Page))
				ensureDrug(run.Page)
				curH1 = &Section{Title: strings.TrimSpace(run.Text), Level: 1, Pages: []int{run.Page}}
				curDrug.Sections = append(curDrug.Sections, curH1)
				openHeading = classify.H1
				continue
			}
			curH2 = &Section{Title: strings.TrimSpace(run.Text), Level: 2, Pages: []int{run.Page}}
			curH1.Children = append(curH1.Children, curH2)
			curH1.addPage(run.Page)
			openHeading = classify.H2

		case classify.Body:
			pending = append(pending, run.TextRun)
			openHeading = classify.Body
		}
	}
	flush()

	return book, warnings
}

func (s *Section) addPage(page int) {
	i := sort.SearchInts(s.Pages, page)
	if i < len(s.Pages) && s.Pages[i] == page {
		return
	}
	s.Pages = append(s.Pages, 0)
	copy(s.Pages[i+1:], s.Pages[i:])
	s.Pages[i] = page
}

// Topic is one leaf content unit: the paragraphs under an H2, or
// under an H1 with no H2 nesting. Section points at whichever of the
// two owns the paragraphs.
type Topic struct {
	Drug    *Drug
	H1      *Section
	H2      *Section // nil when the H1 owns the paragraphs directly
	Section *Section
}

// Path returns the section path, H1 then optional H2.
func (t Topic) Path() []string {
	if t.H2 != nil {
		return []string{t.H1.Title, t.H2.Title}
	}
	return []string{t.H1.Title}
}

// Topics returns the leaf content units of a drug in document order:
// each H2 topic, plus each H1 that holds paragraphs directly.
func (d *Drug) Topics() []Topic {
	var topics []Topic
	for _, h1 := range d.Sections {
		if len(h1.Paragraphs) > 0 {
			topics = append(topics, Topic{Drug: d, H1: h1, Section: h1})
		}
		for _, h2 := range h1.Children {
			if len(h2.Paragraphs) > 0 {
				topics = append(topics, Topic{Drug: d, H1: h1, H2: h2, Section: h2})
			}
		}
	}
	return topics
}

// Markdown renders the book for the preview surface.
func (b *Book) Markdown() string {
	var sb strings.Builder
	for _, d := range b.Drugs {
		fmt.Fprintf(&sb, "# %s\n\n", d.Name)
		for _, h1 := range d.Sections {
			fmt.Fprintf(&sb, "## %s\n\n", h1.Title)
			writeParagraphs(&sb, h1.Paragraphs)
			for _, h2 := range h1.Children {
				fmt.Fprintf(&sb, "### %s\n\n", h2.Title)
				writeParagraphs(&sb, h2.Paragraphs)
			}
		}
	}
	return sb.String()
}

func writeParagraphs(sb *strings.Builder, paras []reflow.Paragraph) {
	for _, p := range paras {
		for _, s := range p.Spans {
			text := s.Text
			switch {
			case s.Link != "":
				text = "[" + text + "](" + s.Link + ")"
			case s.Bold:
				text = "**" + strings.TrimSpace(text) + "** "
			case s.Italic:
				text = "*" + strings.TrimSpace(text) + "* "
			}
			sb.WriteString(text)
		}
		sb.WriteString("\n\n")
	}
}
