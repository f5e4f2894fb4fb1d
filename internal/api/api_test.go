package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mediaspinner/internal/catalog"
	"github.com/friendsincode/mediaspinner/internal/config"
	"github.com/friendsincode/mediaspinner/internal/events"
	"github.com/friendsincode/mediaspinner/internal/history"
	"github.com/friendsincode/mediaspinner/internal/library"
	"github.com/friendsincode/mediaspinner/internal/logbuffer"
	"github.com/friendsincode/mediaspinner/internal/selector"
)

func newTestAPI(t *testing.T) (*API, *events.Bus) {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{"music", "jingles"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := []string{"music/a.mp3", "music/b.mp3", "jingles/s.ogg"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(root, f), []byte("media-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	lib := library.New(root, zerolog.Nop())
	scan, err := lib.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	spin := &config.SpinConfig{SameMediaBackoff: 1}
	cat, err := catalog.Build(scan, spin)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	hist := history.NewTracker(spin.SameMediaBackoff)
	sel := selector.New(cat, spin.SameMediaBackoff, hist, rand.New(rand.NewSource(1)), zerolog.Nop())

	bus := events.NewBus()
	return New(sel, hist, lib, bus, logbuffer.New(100), zerolog.Nop()), bus
}

func newTestRouter(t *testing.T) (chi.Router, *events.Bus) {
	t.Helper()
	a, bus := newTestAPI(t)
	r := chi.NewRouter()
	a.Routes(r)
	return r, bus
}

func TestHandleNext(t *testing.T) {
	router, bus := newTestRouter(t)
	sub := bus.Subscribe(events.EventNowPlaying)

	req := httptest.NewRequest(http.MethodPost, "/playlist/next", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	collection, item, ok := strings.Cut(body.Path, "/")
	if !ok || collection == "" || item == "" {
		t.Fatalf("path = %q, want collection/item", body.Path)
	}

	select {
	case payload := <-sub:
		if payload["path"] != body.Path {
			t.Errorf("event path = %v, want %q", payload["path"], body.Path)
		}
	default:
		t.Error("no now_playing event published")
	}
}

func TestHandleNextHonorsBackoff(t *testing.T) {
	router, _ := newTestRouter(t)

	prev := ""
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/playlist/next", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Path == prev {
			t.Fatalf("request %d repeated %s back to back", i, prev)
		}
		prev = body.Path
	}
}

func TestHandleHistory(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/playlist/next", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/playlist/history?limit=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []struct {
			ID   string `json:"id"`
			Path string `json:"path"`
			Seq  uint64 `json:"seq"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(body.Entries))
	}
	if body.Entries[0].Seq != 2 || body.Entries[1].Seq != 1 {
		t.Errorf("entries not newest first: %+v", body.Entries)
	}
}

func TestHandleHistoryRejectsBadLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/playlist/history?limit=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleMedia(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/media?path=music/a.mp3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "media-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleMediaRejectsTraversal(t *testing.T) {
	router, _ := newTestRouter(t)

	paths := []string{
		"../etc/passwd",
		"music/../../etc/passwd",
		"music",
		"music/a.mp3/extra",
		"",
	}
	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, "/media?path="+p, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: status = %d, want 400", p, rec.Code)
		}
	}
}

func TestHandleLogsUnavailableWithoutBuffer(t *testing.T) {
	a, _ := newTestAPI(t)
	a.logBuffer = nil
	r := chi.NewRouter()
	a.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleLogs(t *testing.T) {
	a, _ := newTestAPI(t)
	a.logBuffer.Add(logbuffer.Entry{Level: "info", Message: "selected next item"})
	a.logBuffer.Add(logbuffer.Entry{Level: "warn", Message: "media path rejected"})
	r := chi.NewRouter()
	a.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/logs?level=warn", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []logbuffer.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Entries[0].Message != "media path rejected" {
		t.Errorf("logs = %+v", body)
	}
}

func TestHandleMediaNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/media?path=music/missing.mp3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
