package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stahldeck/stahldeck/internal/cards"
	"github.com/stahldeck/stahldeck/internal/doctree"
	"github.com/stahldeck/stahldeck/internal/pipeline"
	"github.com/stahldeck/stahldeck/internal/reflow"
)

func testServer() *Server {
	book := &doctree.Book{
		Title: "guide",
		Drugs: []*doctree.Drug{{
			Name: "Sertraline",
			Page: 1,
			Sections: []*doctree.Section{{
				Title: "Pharmacokinetics",
				Level: 1,
				Pages: []int{1},
				Paragraphs: []reflow.Paragraph{
					{Spans: []reflow.Span{{Text: "Half-life is approximately 26 hours."}}, Page: 1},
				},
			}},
		}},
	}
	result := &pipeline.Result{
		Book: book,
		Cards: []cards.Card{{
			Drug:     "Sertraline",
			Section:  "Pharmacokinetics",
			Path:     []string{"Pharmacokinetics"},
			Question: "Sertraline: Pharmacokinetics?",
			Answer:   "Half-life is approximately 26 hours.",
			Tags:     []string{"Stahl::sertraline::pharmacokinetics"},
			Page:     1,
		}},
		Report: pipeline.NewReport("guide.pdf", "basic"),
	}
	return NewServer(result, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, testServer(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHandleListCards(t *testing.T) {
	rec := get(t, testServer(), "/api/cards")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
		Cards []struct {
			Drug    string `json:"drug"`
			Preview string `json:"preview"`
		} `json:"cards"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Cards[0].Drug != "Sertraline" {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Cards[0].Preview, "26 hours") {
		t.Errorf("expected answer preview, got %q", resp.Cards[0].Preview)
	}
}

func TestHandleGetCard_NotFound(t *testing.T) {
	rec := get(t, testServer(), "/api/cards/99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleTree_RendersHTML(t *testing.T) {
	rec := get(t, testServer(), "/tree")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1") || !strings.Contains(body, "Sertraline") {
		t.Errorf("expected rendered heading, got %q", body)
	}
}

func TestHandleReport(t *testing.T) {
	rec := get(t, testServer(), "/api/report")
	var snap pipeline.ReportSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Input != "guide.pdf" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
