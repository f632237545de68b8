package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"scratchcard/internal/card"
	"scratchcard/internal/config"
	"scratchcard/internal/prize"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Card: config.CardConfig{
			Width: 100, Height: 50, BrushRadius: 10, RevealThreshold: 0.6,
			EraseMode: "line", MaxPixelRatio: 2,
		},
		Session: config.SessionConfig{FadeAfter: 20 * time.Millisecond},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *card.Store) {
	t.Helper()
	catalog, err := prize.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	store := card.NewStore(catalog, card.Settings{
		FadeAfter: cfg.Session.FadeAfter,
		RNG:       prize.NewSeededRNG(3),
	})
	r := chi.NewRouter()
	NewHomeHandler(store, cfg).RegisterRoutes(r)
	NewCardHandler(store, cfg).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func createCard(t *testing.T, srv *httptest.Server, dpr string) string {
	t.Helper()
	client := &http.Client{CheckRedirect: noRedirect}
	resp, err := client.PostForm(srv.URL+"/cards", url.Values{"dpr": {dpr}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d, want 303", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/card/") || !strings.HasSuffix(loc, "/") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	return strings.TrimSuffix(strings.TrimPrefix(loc, "/card/"), "/")
}

func postPointer(t *testing.T, srv *httptest.Server, id, body string) (*http.Response, pointerResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/card/"+id+"/pointer", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out pointerResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp, out
}

func TestHomePage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type %q", ct)
	}
	body := readAll(t, resp)
	if !strings.Contains(body, "60%") || !strings.Contains(body, "39.55%") {
		t.Errorf("home page missing threshold or odds: %s", body)
	}
}

func TestCreateCardClampsPixelRatio(t *testing.T) {
	srv, store := newTestServer(t)
	id := createCard(t, srv, "5")
	c, ok := store.GetCard(id)
	if !ok {
		t.Fatal("card not stored")
	}
	if got := c.Snapshot().PixelRatio; got != 2 {
		t.Errorf("pixel ratio %v, want 2", got)
	}
	id = createCard(t, srv, "nonsense")
	c, _ = store.GetCard(id)
	if got := c.Snapshot().PixelRatio; got != 1 {
		t.Errorf("pixel ratio %v, want 1", got)
	}
}

func TestCardPageAndFragments(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createCard(t, srv, "1")
	for _, path := range []string{"/", "/progress", "/prize"} {
		resp, err := http.Get(srv.URL + "/card/" + id + path)
		if err != nil {
			t.Fatal(err)
		}
		body := readAll(t, resp)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if path == "/" && !strings.Contains(body, `/card/`+id+`/mask.png`) {
			t.Errorf("card page does not reference the mask")
		}
		if path == "/progress" && !strings.Contains(body, "Scratched: 0%") {
			t.Errorf("progress fragment: %s", body)
		}
	}
}

func TestPrizeHiddenUntilReveal(t *testing.T) {
	srv, store := newTestServer(t)
	id := createCard(t, srv, "1")
	c, _ := store.GetCard(id)
	tier := c.Snapshot().Prize
	name, desc := templ.EscapeString(tier.Name), templ.EscapeString(tier.Description)

	get := func(path string) string {
		t.Helper()
		resp, err := http.Get(srv.URL + "/card/" + id + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		return readAll(t, resp)
	}
	for _, path := range []string{"/", "/prize"} {
		body := get(path)
		if strings.Contains(body, desc) || strings.Contains(body, ">"+name+"<") {
			t.Errorf("%s leaks the prize before reveal", path)
		}
		if !strings.Contains(body, card.HiddenPrize.Name) {
			t.Errorf("%s missing the placeholder", path)
		}
	}

	body := `{"viewport":{},"events":[{"kind":"start","x":0,"y":5},{"kind":"move","x":100,"y":5},` +
		`{"kind":"move","x":100,"y":25},{"kind":"move","x":0,"y":25},{"kind":"move","x":0,"y":45},{"kind":"move","x":100,"y":45}]}`
	if _, out := postPointer(t, srv, id, body); !out.Revealed {
		t.Fatalf("expected reveal, got %+v", out)
	}
	fragment := get("/prize")
	if !strings.Contains(fragment, ">"+name+"<") || !strings.Contains(fragment, desc) {
		t.Errorf("revealed fragment missing the prize: %s", fragment)
	}
	if !strings.Contains(fragment, `data-revealed="true"`) {
		t.Errorf("revealed fragment not marked: %s", fragment)
	}
}

func TestMaskPNG(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createCard(t, srv, "1")
	resp, err := http.Get(srv.URL + "/card/" + id + "/mask.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q, want image/png", ct)
	}
	if body := readAll(t, resp); !strings.HasPrefix(body, "\x89PNG") {
		t.Error("body is not a PNG")
	}
}

func TestPointerErodesAndReveals(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createCard(t, srv, "1")

	resp, out := postPointer(t, srv, id, `{"viewport":{"left":10,"top":20},"events":[{"kind":"start","x":60,"y":45}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if out.ClearedRatio <= 0 || out.Revealed {
		t.Fatalf("after a tap: %+v", out)
	}
	tap := out.ClearedRatio

	body := `{"viewport":{"left":10,"top":20},"events":[` +
		`{"kind":"move","x":10,"y":25},{"kind":"move","x":110,"y":25},` +
		`{"kind":"move","x":110,"y":45},{"kind":"move","x":10,"y":45},` +
		`{"kind":"move","x":10,"y":65},{"kind":"move","x":110,"y":65},{"kind":"end"}]}`
	_, out = postPointer(t, srv, id, body)
	if out.ClearedRatio < tap {
		t.Errorf("ratio decreased %v -> %v", tap, out.ClearedRatio)
	}
	if !out.Revealed || out.Percent < 60 {
		t.Errorf("expected reveal, got %+v", out)
	}
}

func TestPointerRejectsBadInput(t *testing.T) {
	srv, store := newTestServer(t)
	id := createCard(t, srv, "1")
	if resp, _ := postPointer(t, srv, id, `{not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON: status %d, want 400", resp.StatusCode)
	}
	if resp, _ := postPointer(t, srv, id, `{"events":[{"kind":"hover","x":1,"y":1}]}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad kind: status %d, want 400", resp.StatusCode)
	}
	for _, vp := range []string{`{"width":1e-308,"height":50}`, `{"width":100,"height":-4}`, `{"width":0.5}`} {
		body := `{"viewport":` + vp + `,"events":[{"kind":"start","x":1,"y":1}]}`
		if resp, _ := postPointer(t, srv, id, body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("viewport %s: status %d, want 400", vp, resp.StatusCode)
		}
	}
	c, _ := store.GetCard(id)
	if got := c.Snapshot().ClearedRatio; got != 0 {
		t.Errorf("rejected batches erased the mask: ratio %v", got)
	}
}

func TestUnknownCard(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/", "/mask.png", "/progress", "/prize", "/stream"} {
		resp, err := http.Get(srv.URL + "/card/missing" + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", path, resp.StatusCode)
		}
	}
	if resp, _ := postPointer(t, srv, "missing", `{}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("pointer: status %d, want 404", resp.StatusCode)
	}
}

func TestTeardown(t *testing.T) {
	srv, store := newTestServer(t)
	id := createCard(t, srv, "1")
	resp, err := http.Post(srv.URL+"/card/"+id+"/teardown", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", resp.StatusCode)
	}
	if _, ok := store.GetCard(id); ok {
		t.Error("card still present after teardown")
	}
	resp, err = http.Post(srv.URL+"/card/"+id+"/teardown", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second teardown status %d, want 404", resp.StatusCode)
	}
}

func TestStreamSendsRevealAndFade(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createCard(t, srv, "1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/card/"+id+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
		close(events)
	}()

	want := func(name string) {
		t.Helper()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					t.Fatalf("stream closed before %s", name)
				}
				if ev == name {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %s", name)
			}
		}
	}
	want(card.EventProgress)
	want(card.EventPrize)

	body := `{"viewport":{},"events":[{"kind":"start","x":0,"y":5},{"kind":"move","x":100,"y":5},` +
		`{"kind":"move","x":100,"y":25},{"kind":"move","x":0,"y":25},{"kind":"move","x":0,"y":45},{"kind":"move","x":100,"y":45}]}`
	if _, out := postPointer(t, srv, id, body); !out.Revealed {
		t.Fatalf("expected reveal, got %+v", out)
	}
	want(card.EventPrize)
	want(card.EventFade)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
