package deck

import (
	"strconv"

	"github.com/stahldeck/stahldeck/internal/cards"
)

// Stable identifiers. Anki deduplicates notetypes and decks by ID, so
// re-importing a rebuilt deck updates cards in place instead of
// duplicating them.
const (
	DeckID   = 2059400110
	DeckName = "Stahl Essential Psychopharmacology"

	basicModelID       = 1607392319
	singleClozeModelID = 1607392320
	oneClozeModelID    = 1607392321
	multiClozeModelID  = 1607392322
)

const deckCSS = `.card {
 font-family: arial;
 font-size: 20px;
 text-align: left;
 color: black;
 background-color: white;
}
.cloze {
 font-weight: bold;
 color: blue;
}`

// ModelID returns the notetype ID for a mode.
func ModelID(mode cards.Mode) int64 {
	switch mode {
	case cards.ModeSingleCloze:
		return singleClozeModelID
	case cards.ModeOneCloze:
		return oneClozeModelID
	case cards.ModeMultiCloze:
		return multiClozeModelID
	default:
		return basicModelID
	}
}

// FieldNames returns the note field order for a mode. The field joined
// first is also the sort field.
func FieldNames(mode cards.Mode) []string {
	if mode.Cloze() {
		return []string{"Drug", "Section", "Text", "Source", "Tags"}
	}
	return []string{"Drug", "Section", "Question", "Answer", "Tags", "PageImages"}
}

func fieldDefs(names []string) []map[string]any {
	defs := make([]map[string]any, len(names))
	for i, name := range names {
		defs[i] = map[string]any{
			"name":   name,
			"ord":    i,
			"sticky": false,
			"rtl":    false,
			"font":   "Arial",
			"size":   20,
			"media":  []any{},
		}
	}
	return defs
}

// modelJSON builds the schema-11 notetype definition for a mode.
func modelJSON(mode cards.Mode, mod int64) map[string]any {
	names := FieldNames(mode)
	m := map[string]any{
		"id":        ModelID(mode),
		"name":      "Stahl " + string(mode),
		"type":      0,
		"mod":       mod,
		"usn":       0,
		"sortf":     0,
		"did":       DeckID,
		"flds":      fieldDefs(names),
		"css":       deckCSS,
		"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
		"latexPost": "\\end{document}",
		"vers":      []any{},
		"tags":      []any{},
	}

	if mode.Cloze() {
		m["type"] = 1
		m["tmpls"] = []map[string]any{{
			"name":  "Cloze",
			"ord":   0,
			"qfmt":  "<b>{{Drug}}</b> — {{Section}}<br><br>{{cloze:Text}}",
			"afmt":  "<b>{{Drug}}</b> — {{Section}}<br><br>{{cloze:Text}}<br><br>{{Source}}",
			"bqfmt": "",
			"bafmt": "",
			"did":   nil,
		}}
	} else {
		m["tmpls"] = []map[string]any{{
			"name":  "Card 1",
			"ord":   0,
			"qfmt":  "{{Question}}",
			"afmt":  "{{FrontSide}}<hr id=answer>{{Answer}}<br>{{PageImages}}",
			"bqfmt": "",
			"bafmt": "",
			"did":   nil,
		}}
		m["req"] = []any{[]any{0, "any", []any{2}}}
	}
	return m
}

func deckJSON(mod int64) map[string]any {
	mk := func(id int64, name string) map[string]any {
		return map[string]any{
			"id":        id,
			"name":      name,
			"mod":       mod,
			"usn":       0,
			"desc":      "",
			"dyn":       0,
			"conf":      1,
			"collapsed": false,
			"extendNew": 10,
			"extendRev": 50,
			"newToday":  []any{0, 0},
			"revToday":  []any{0, 0},
			"lrnToday":  []any{0, 0},
			"timeToday": []any{0, 0},
		}
	}
	return map[string]any{
		"1":                  mk(1, "Default"),
		strconv.Itoa(DeckID): mk(DeckID, DeckName),
	}
}

func confJSON(mode cards.Mode) map[string]any {
	return map[string]any{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []any{1},
		"sortType":      "noteFld",
		"timeLim":       0,
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       1,
		"newBury":       true,
		"newSpread":     0,
		"dueCounts":     true,
		"curModel":      strconv.FormatInt(ModelID(mode), 10),
		"collapseTime":  1200,
	}
}

func dconfJSON(mod int64) map[string]any {
	return map[string]any{
		"1": map[string]any{
			"id":       1,
			"name":     "Default",
			"mod":      mod,
			"usn":      0,
			"autoplay": true,
			"timer":    0,
			"replayq":  true,
			"maxTaken": 60,
			"dyn":      false,
			"new": map[string]any{
				"bury":          true,
				"delays":        []any{1, 10},
				"initialFactor": 2500,
				"ints":          []any{1, 4, 7},
				"order":         1,
				"perDay":        20,
				"separate":      true,
			},
			"rev": map[string]any{
				"bury":     true,
				"ease4":    1.3,
				"fuzz":     0.05,
				"ivlFct":   1,
				"maxIvl":   36500,
				"minSpace": 1,
				"perDay":   100,
			},
			"lapse": map[string]any{
				"delays":      []any{10},
				"leechAction": 0,
				"leechFails":  8,
				"minInt":      1,
				"mult":        0,
			},
		},
	}
}
