// Package deck serializes card records into an Anki .apkg package: a
// zip holding a schema-11 SQLite collection plus numbered media
// entries and their manifest.
package deck

import (
	"archive/zip"
	"crypto/sha1"
	"crypto/sha256"
	"database/sql"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"
	_ "modernc.org/sqlite"

	"github.com/stahldeck/stahldeck/internal/cards"
	"github.com/stahldeck/stahldeck/internal/source"
)

// Filename returns the output deck filename for a semantic version.
func Filename(version string) string {
	return fmt.Sprintf("stahl_drugs_v%s.apkg", version)
}

// Assembler writes .apkg packages. Clock is injectable so tests get
// stable identifiers.
type Assembler struct {
	Mode  cards.Mode
	Clock func() time.Time
}

func NewAssembler(mode cards.Mode) *Assembler {
	return &Assembler{Mode: mode, Clock: time.Now}
}

// WriteFile assembles the deck at path. Media maps page index to JPEG
// bytes; a nil map produces an imageless deck.
func (a *Assembler) WriteFile(path string, list []cards.Card, media map[int][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create deck file: %w", err)
	}
	if err := a.Write(f, list, media); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Write assembles the deck package onto w.
func (a *Assembler) Write(w io.Writer, list []cards.Card, media map[int][]byte) error {
	if len(list) == 0 {
		return fmt.Errorf("no cards to assemble")
	}

	dbBytes, err := a.buildCollection(list)
	if err != nil {
		return fmt.Errorf("build collection: %w", err)
	}

	zw := zip.NewWriter(w)
	entry, err := zw.Create("collection.anki2")
	if err != nil {
		return err
	}
	if _, err := entry.Write(dbBytes); err != nil {
		return err
	}

	manifest := make(map[string]string, len(media))
	pages := make([]int, 0, len(media))
	for page := range media {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	for i, page := range pages {
		name := strconv.Itoa(i)
		entry, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := entry.Write(media[page]); err != nil {
			return err
		}
		manifest[name] = source.ImageFilename(page)
	}

	entry, err = zw.Create("media")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(entry).Encode(manifest); err != nil {
		return err
	}
	return zw.Close()
}

// buildCollection writes the SQLite collection into a temp file and
// returns its bytes. The pure Go driver needs a real file; the file
// never outlives the call.
func (a *Assembler) buildCollection(list []cards.Card) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "stahldeck-col-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)
	dbPath := filepath.Join(tmpDir, "collection.anki2")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := a.fill(db, list); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(dbPath)
}

func (a *Assembler) fill(db *sql.DB, list []cards.Card) error {
	now := a.Clock()
	crt := now.Unix()
	ms := now.UnixMilli()

	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	conf, err := json.Marshal(confJSON(a.Mode))
	if err != nil {
		return err
	}
	models, err := json.Marshal(map[string]any{
		strconv.FormatInt(ModelID(a.Mode), 10): modelJSON(a.Mode, ms),
	})
	if err != nil {
		return err
	}
	decks, err := json.Marshal(deckJSON(ms))
	if err != nil {
		return err
	}
	dconf, err := json.Marshal(dconfJSON(ms))
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		 VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		crt, ms, ms, string(conf), string(models), string(decks), string(dconf),
	)
	if err != nil {
		return fmt.Errorf("col row: %w", err)
	}

	insertNote, err := db.Prepare(
		`INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		 VALUES (?, ?, ?, ?, -1, ?, ?, ?, ?, 0, '')`)
	if err != nil {
		return err
	}
	defer insertNote.Close()

	insertCard, err := db.Prepare(
		`INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
		 VALUES (?, ?, ?, ?, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')`)
	if err != nil {
		return err
	}
	defer insertCard.Close()

	mid := ModelID(a.Mode)
	cardID := ms + 1_000_000
	for i, c := range list {
		fields := a.noteFields(c)
		flds := strings.Join(fields, "\x1f")
		sfld := fields[0]
		noteID := ms + int64(i)

		_, err := insertNote.Exec(noteID, noteGUID(flds), mid, crt, noteTags(c), flds, sfld, fieldChecksum(sfld))
		if err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}

		for _, ord := range cardOrds(a.Mode, fields) {
			_, err := insertCard.Exec(cardID, noteID, DeckID, ord, crt, i+1)
			if err != nil {
				return fmt.Errorf("card for note %d: %w", i, err)
			}
			cardID++
		}
	}
	return nil
}

// noteFields lays a card record out in the mode's field order.
func (a *Assembler) noteFields(c cards.Card) []string {
	tags := strings.Join(c.Tags, " ")
	img := ""
	if c.Image != "" {
		img = `<img src="` + c.Image + `">`
	}
	if a.Mode.Cloze() {
		src := img
		if src == "" && c.Page > 0 {
			src = fmt.Sprintf("p. %d", c.Page)
		}
		return []string{c.Drug, c.Section, c.Text, src, tags}
	}
	return []string{c.Drug, c.Section, c.Question, c.Answer, tags, img}
}

// cardOrds returns the template ordinals to instantiate for a note:
// ordinal 0 for basic notes, one ordinal per distinct cloze number for
// cloze notes.
func cardOrds(mode cards.Mode, fields []string) []int {
	if !mode.Cloze() {
		return []int{0}
	}
	nums := clozeNumbers(fields[2])
	if len(nums) == 0 {
		return []int{0}
	}
	ords := make([]int, len(nums))
	for i, n := range nums {
		ords[i] = n - 1
	}
	return ords
}

var clozeRe = regexp.MustCompile(`\{\{c(\d+)::`)

func clozeNumbers(text string) []int {
	seen := make(map[int]bool)
	for _, m := range clozeRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			seen[n] = true
		}
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// noteTags formats the tags column: space separated, space padded.
func noteTags(c cards.Card) string {
	if len(c.Tags) == 0 {
		return ""
	}
	return " " + strings.Join(c.Tags, " ") + " "
}

// noteGUID derives a stable identifier from the note content, so
// rebuilding the same deck updates notes instead of duplicating them.
func noteGUID(flds string) string {
	sum := sha256.Sum256([]byte(flds))
	return strings.ToLower(base32.StdEncoding.EncodeToString(sum[:]))[:10]
}

// fieldChecksum is the integer value of the first 8 hex digits of the
// SHA1 of the sort field with HTML stripped, matching how the study
// application detects duplicates.
func fieldChecksum(sfld string) int64 {
	sum := sha1.Sum([]byte(StripHTML(sfld)))
	n, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return n
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	node, err := xhtml.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}
