package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/stahldeck/stahldeck/internal/cards"
)

// cardSummary is the list view of one card.
type cardSummary struct {
	ID      int      `json:"id"`
	Drug    string   `json:"drug"`
	Path    []string `json:"path"`
	Tags    []string `json:"tags"`
	Page    int      `json:"page,omitempty"`
	Preview string   `json:"preview"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.result.Report.Snapshot())
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	summaries := make([]cardSummary, len(s.result.Cards))
	for i, c := range s.result.Cards {
		summaries[i] = cardSummary{
			ID:      i,
			Drug:    c.Drug,
			Path:    c.Path,
			Tags:    c.Tags,
			Page:    c.Page,
			Preview: preview(c),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count": len(summaries),
		"cards": summaries,
	})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id >= len(s.result.Cards) {
		jsonError(w, "card not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.result.Cards[id])
}

// handleTree renders the document tree as HTML via its markdown form.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s.result.Book.Markdown()), &buf); err != nil {
		jsonError(w, "render tree: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><title>%s</title></head><body>", s.result.Book.Title)
	w.Write(buf.Bytes())
	w.Write([]byte("</body></html>"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><body>
<h1>stahldeck preview</h1>
<p>%d drugs, %d cards.</p>
<ul>
<li><a href="/tree">document tree</a></li>
<li><a href="/api/cards">cards (JSON)</a></li>
<li><a href="/api/report">run report (JSON)</a></li>
</ul>
</body></html>`, len(s.result.Book.Drugs), len(s.result.Cards))
}

// preview returns the first characters of a card's answer side.
func preview(c cards.Card) string {
	text := c.Answer
	if text == "" {
		text = c.Text
	}
	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120]) + "…"
	}
	return text
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
