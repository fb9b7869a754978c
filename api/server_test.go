package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bogband/website/api/models"
	"github.com/bogband/website/assets"
	"github.com/bogband/website/clock"
	"github.com/bogband/website/config"
)

var testSlides = []string{
	"/press/bb_press0.png",
	"/press/bb_press1.jpg",
	"/press/bb_press2.jpg",
	"/press/bb_press3.png",
}

var sessionAttr = regexp.MustCompile(`data-session="([0-9a-f-]{36})"`)

type memSource map[string][]byte

func (m memSource) Fetch(_ context.Context, name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, assets.ErrNotFound
	}
	return data, nil
}

func newTestServer(t *testing.T) (*WebServer, *clock.Fake) {
	return newTestServerWith(t, func(*config.Config) {})
}

func newTestServerWith(t *testing.T, mutate func(*config.Config)) (*WebServer, *clock.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	mutate(cfg)
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := assets.NewCache(memSource{
		"/press/bb_press0.png": []byte("\x89PNG\r\n\x1a\npress0"),
		"/nav/music.png":       []byte("\x89PNG\r\n\x1a\nmusic"),
	})

	ws, err := NewWebServer(cfg, testSlides, cache, fake)
	if err != nil {
		t.Fatalf("NewWebServer: %v", err)
	}
	t.Cleanup(ws.Sessions().Purge)
	return ws, fake
}

// do sends a request carrying the session id header, if any, and returns the recorder.
func do(ws *WebServer, method, target, sid string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if sid != "" {
		req.Header.Set(sessionHeader, sid)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ws.Router().ServeHTTP(w, req)
	return w
}

func sessionIDFrom(t *testing.T, body string) string {
	t.Helper()
	m := sessionAttr.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("page carries no session id")
	}
	return m[1]
}

// mount loads the page and returns the session id it was rendered with.
func mount(t *testing.T, ws *WebServer) string {
	t.Helper()
	w := do(ws, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	return sessionIDFrom(t, w.Body.String())
}

func getState(t *testing.T, ws *WebServer, sid string) models.StateResponse {
	t.Helper()
	w := do(ws, http.MethodGet, "/api/state", sid)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/state = %d", w.Code)
	}
	var state models.StateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestIndexCreatesSession(t *testing.T) {
	ws, _ := newTestServer(t)

	w := do(ws, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	sid := sessionIDFrom(t, body)
	for _, want := range []string{
		"<title>Bog Band</title>",
		`<nav id="navbar"`,
		`<img src="/press/bb_press0.png" alt="Bog Band Press 1" class="slide-image active">`,
		`sse-connect="/slideshow/events?sid=` + sid + `"`,
		`<div id="section-panel"></div>`,
		config.DefaultPlayerSrc,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("page set a cookie")
	}
	if _, ok := ws.Sessions().Get(sid); !ok {
		t.Fatal("rendered session not registered")
	}

	// every load is its own mount
	if other := mount(t, ws); other == sid {
		t.Error("second load reused the first session")
	}
	if ws.Sessions().Len() != 2 {
		t.Errorf("sessions = %d, want 2", ws.Sessions().Len())
	}
}

func TestSetSection(t *testing.T) {
	ws, _ := newTestServer(t)
	sid := mount(t, ws)

	w := do(ws, http.MethodPost, "/sections/music", sid, "HX-Request", "true")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /sections/music = %d", w.Code)
	}

	w = do(ws, http.MethodPost, "/sections/shows", sid, "HX-Request", "true")
	body := w.Body.String()
	if !strings.Contains(body, "Upcoming Shows") {
		t.Errorf("shows panel missing: %s", body)
	}
	if strings.Contains(body, "<h2>Music</h2>") {
		t.Errorf("music panel still rendered: %s", body)
	}
	if !strings.Contains(body, `hx-swap-oob="true"`) {
		t.Error("nav bar not swapped out of band")
	}
	if state := getState(t, ws, sid); state.Section != "shows" {
		t.Errorf("section = %q, want shows", state.Section)
	}

	// a reload is a new mount and starts over at home
	reloaded := do(ws, http.MethodGet, "/", "").Body.String()
	if strings.Contains(reloaded, "Upcoming Shows") {
		t.Error("reloaded page kept the previous mount's section")
	}
	if state := getState(t, ws, sessionIDFrom(t, reloaded)); state.Section != "home" {
		t.Errorf("reloaded section = %q, want home", state.Section)
	}
	if state := getState(t, ws, sid); state.Section != "shows" {
		t.Errorf("first mount section = %q after reload, want shows", state.Section)
	}

	w = do(ws, http.MethodPost, "/sections/home", sid, "HX-Request", "true")
	if strings.Contains(w.Body.String(), `class="component"`) {
		t.Errorf("home rendered a panel: %s", w.Body.String())
	}
}

func TestSetSectionUnknown(t *testing.T) {
	ws, _ := newTestServer(t)
	sid := mount(t, ws)

	w := do(ws, http.MethodPost, "/sections/blog", sid)
	if w.Code != http.StatusNotFound {
		t.Fatalf("POST /sections/blog = %d, want 404", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Errorf("expected error response, got %q", w.Body.String())
	}

	w = do(ws, http.MethodPost, "/sections/blog", sid, "HX-Request", "true")
	if w.Code != http.StatusNotFound || !strings.HasPrefix(w.Body.String(), "Error: ") {
		t.Errorf("htmx error = %d %q", w.Code, w.Body.String())
	}

	if state := getState(t, ws, sid); state.Section != "home" {
		t.Errorf("section = %q after rejected navigation, want home", state.Section)
	}
}

func TestSessionIDRequired(t *testing.T) {
	ws, _ := newTestServer(t)

	tests := []struct {
		method string
		target string
		sid    string
		want   int
	}{
		{http.MethodPost, "/sections/merch", "", http.StatusBadRequest},
		{http.MethodPost, "/sections/merch", "expired", http.StatusBadRequest},
		{http.MethodPost, "/slideshow/pointer-enter", "", http.StatusBadRequest},
		{http.MethodGet, "/slideshow/events", "", http.StatusBadRequest},
		{http.MethodGet, "/slideshow/events?sid=nope", "", http.StatusBadRequest},
		{http.MethodGet, "/api/state", "", http.StatusBadRequest},
		{http.MethodGet, "/api/state", "6a3c1f0e-2b4d-4e8f-9a1b-3c5d7e9f1a2b", http.StatusNotFound},
	}

	for _, tt := range tests {
		if w := do(ws, tt.method, tt.target, tt.sid); w.Code != tt.want {
			t.Errorf("%s %s sid=%q = %d, want %d", tt.method, tt.target, tt.sid, w.Code, tt.want)
		}
	}
	if ws.Sessions().Len() != 0 {
		t.Errorf("rejected requests created %d sessions", ws.Sessions().Len())
	}
}

func TestExpiredSessionIsRestored(t *testing.T) {
	ws, _ := newTestServer(t)
	const sid = "6a3c1f0e-2b4d-4e8f-9a1b-3c5d7e9f1a2b"

	w := do(ws, http.MethodPost, "/sections/merch", sid, "HX-Request", "true")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /sections/merch = %d", w.Code)
	}
	if state := getState(t, ws, sid); state.Section != "merch" || state.Index != 0 {
		t.Errorf("restored state = %+v, want merch at slide 0", state)
	}
}

func TestSlideshowPauseResume(t *testing.T) {
	ws, fake := newTestServer(t)
	sid := mount(t, ws)

	fake.Advance(4 * time.Second)
	if state := getState(t, ws, sid); state.Index != 1 || state.Slide != testSlides[1] {
		t.Fatalf("after one period state = %+v, want index 1", state)
	}

	if w := do(ws, http.MethodPost, "/slideshow/pointer-enter", sid); w.Code != http.StatusNoContent {
		t.Fatalf("pointer-enter = %d", w.Code)
	}
	fake.Advance(20 * time.Second)
	state := getState(t, ws, sid)
	if state.Index != 1 || !state.Paused || state.State != "paused" {
		t.Fatalf("paused state = %+v", state)
	}

	// site.js posts carry the id in the query
	if w := do(ws, http.MethodPost, "/slideshow/pointer-leave?sid="+sid, ""); w.Code != http.StatusNoContent {
		t.Fatalf("pointer-leave = %d", w.Code)
	}
	fake.Advance(3999 * time.Millisecond)
	if state := getState(t, ws, sid); state.Index != 1 || state.Paused {
		t.Fatalf("resumed state before full period = %+v", state)
	}
	fake.Advance(time.Millisecond)
	if state := getState(t, ws, sid); state.Index != 2 {
		t.Fatalf("index = %d after full period, want 2", state.Index)
	}
}

func TestMountsAreIndependent(t *testing.T) {
	ws, fake := newTestServer(t)
	first := mount(t, ws)
	second := mount(t, ws)

	do(ws, http.MethodPost, "/slideshow/pointer-enter", first)
	do(ws, http.MethodPost, "/sections/contact", first)
	fake.Advance(4 * time.Second)

	if state := getState(t, ws, first); !state.Paused || state.Index != 0 || state.Section != "contact" {
		t.Errorf("first mount = %+v, want paused at 0 on contact", state)
	}
	if state := getState(t, ws, second); state.Paused || state.Index != 1 || state.Section != "home" {
		t.Errorf("second mount = %+v, want running at 1 on home", state)
	}

	// one tab leaving does not end the other
	if w := do(ws, http.MethodPost, "/session/close?sid="+first, ""); w.Code != http.StatusNoContent {
		t.Fatalf("close = %d", w.Code)
	}
	s, ok := ws.Sessions().Get(second)
	if !ok || s.Slides.Closed() {
		t.Fatal("closing one mount closed another")
	}
	fake.Advance(4 * time.Second)
	if state := getState(t, ws, second); state.Index != 2 {
		t.Errorf("second mount index = %d, want 2", state.Index)
	}
}

func TestCloseSession(t *testing.T) {
	ws, fake := newTestServer(t)
	sid := mount(t, ws)
	s, ok := ws.Sessions().Get(sid)
	if !ok {
		t.Fatal("session not found")
	}

	// sendBeacon cannot set headers, so the id travels in the query
	if w := do(ws, http.MethodPost, "/session/close?sid="+sid, ""); w.Code != http.StatusNoContent {
		t.Fatalf("POST /session/close = %d", w.Code)
	}
	if !s.Slides.Closed() {
		t.Error("closing the session did not close its slideshow")
	}
	if fake.Pending() != 0 {
		t.Errorf("pending timers = %d after close, want 0", fake.Pending())
	}
	index := s.Slides.Index()
	fake.Advance(time.Minute)
	if s.Slides.Index() != index {
		t.Error("closed slideshow advanced")
	}
	if ws.Sessions().Len() != 0 {
		t.Errorf("sessions = %d, want 0", ws.Sessions().Len())
	}

	// closing twice or without an id is harmless
	if w := do(ws, http.MethodPost, "/session/close", sid); w.Code != http.StatusNoContent {
		t.Errorf("second close = %d", w.Code)
	}
	if w := do(ws, http.MethodPost, "/session/close", ""); w.Code != http.StatusNoContent {
		t.Errorf("close without id = %d", w.Code)
	}
}

func TestAssets(t *testing.T) {
	ws, _ := newTestServer(t)

	w := do(ws, http.MethodGet, "/press/bb_press0.png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET press image = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	if w := do(ws, http.MethodGet, "/nav/music.png", ""); w.Code != http.StatusOK {
		t.Errorf("GET nav image = %d", w.Code)
	}

	for _, target := range []string{"/press/bb_press1.jpg", "/press/notes.txt", "/nav/../press/missing.png"} {
		if w := do(ws, http.MethodGet, target, ""); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, w.Code)
		}
	}

	w = do(ws, http.MethodGet, "/static/css/site.css", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), ".slide-image") {
		t.Errorf("GET site.css = %d", w.Code)
	}
	w = do(ws, http.MethodGet, "/static/js/site.js", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "?sid=") {
		t.Errorf("GET site.js = %d, or its posts carry no session id", w.Code)
	}
	w = do(ws, http.MethodGet, "/favicon.ico", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Errorf("GET favicon = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestHealth(t *testing.T) {
	ws, _ := newTestServer(t)
	mount(t, ws)

	w := do(ws, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Sessions != 1 || resp.Slides != 4 {
		t.Errorf("health = %+v", resp)
	}
}

type eventStream struct {
	status     int
	events     chan string
	keepalives atomic.Int32
}

// openEvents connects to the slide event stream of sid. Data lines arrive on events,
// which is closed when the stream ends.
func openEvents(ctx context.Context, t *testing.T, baseURL, sid string) *eventStream {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/slideshow/events?sid="+sid, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /slideshow/events: %v", err)
	}

	es := &eventStream{status: resp.StatusCode, events: make(chan string, 16)}
	go func() {
		defer close(es.events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data:"):
				es.events <- line
			case strings.HasPrefix(line, ":"):
				es.keepalives.Add(1)
			}
		}
	}()
	return es
}

func (es *eventStream) next(t *testing.T) string {
	t.Helper()
	select {
	case ev, ok := <-es.events:
		if !ok {
			t.Fatal("event stream ended")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for slide event")
	}
	return ""
}

func (es *eventStream) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case _, ok := <-es.events:
		if ok {
			t.Error("unexpected event after close")
		}
	case <-time.After(5 * time.Second):
		t.Error("stream still open after session close")
	}
}

func mountRemote(t *testing.T, baseURL string) string {
	t.Helper()
	resp, err := http.Get(baseURL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return sessionIDFrom(t, string(body))
}

func TestSlideEvents(t *testing.T) {
	ws, fake := newTestServer(t)
	srv := httptest.NewServer(ws.Router())
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := openEvents(ctx, t, srv.URL, mountRemote(t, srv.URL))
	if stream.status != http.StatusOK {
		t.Fatalf("GET /slideshow/events = %d", stream.status)
	}

	// the stream opens with the current slide
	if ev := stream.next(t); !strings.Contains(ev, `<img src="/press/bb_press0.png" alt="Bog Band Press 1" class="slide-image active">`) {
		t.Fatalf("first event = %q", ev)
	}

	fake.Advance(4 * time.Second)
	if ev := stream.next(t); !strings.Contains(ev, `<img src="/press/bb_press1.jpg" alt="Bog Band Press 2" class="slide-image active">`) {
		t.Fatalf("second event = %q", ev)
	}

	// closing every session ends the stream
	ws.Sessions().Purge()
	stream.waitClosed(t)
}

func TestSlideEventsKeepSessionAlive(t *testing.T) {
	const ttl = 300 * time.Millisecond
	ws, _ := newTestServerWith(t, func(cfg *config.Config) {
		cfg.Session.TTL = ttl
	})
	srv := httptest.NewServer(ws.Router())
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watched := mountRemote(t, srv.URL)
	idle := mountRemote(t, srv.URL)
	s, ok := ws.Sessions().Get(watched)
	if !ok {
		t.Fatal("session not found")
	}

	stream := openEvents(ctx, t, srv.URL, watched)
	stream.next(t)

	time.Sleep(4 * ttl)

	if _, ok := ws.Sessions().Get(idle); ok {
		t.Fatal("idle session outlived its ttl")
	}
	got, ok := ws.Sessions().Get(watched)
	if !ok || got != s || s.Slides.Closed() {
		t.Fatal("session expired while its event stream was open")
	}
	if stream.keepalives.Load() == 0 {
		t.Error("no keepalive written")
	}
	select {
	case _, ok := <-stream.events:
		if !ok {
			t.Fatal("event stream ended while the session was live")
		}
	default:
	}
}

func TestSlideEventsReconnectRestoresSession(t *testing.T) {
	ws, fake := newTestServer(t)
	srv := httptest.NewServer(ws.Router())
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sid := mountRemote(t, srv.URL)
	stream := openEvents(ctx, t, srv.URL, sid)
	stream.next(t)
	fake.Advance(4 * time.Second)
	stream.next(t)

	ws.Sessions().Close(sid)
	stream.waitClosed(t)

	// EventSource reconnects to the same url
	again := openEvents(ctx, t, srv.URL, sid)
	if again.status != http.StatusOK {
		t.Fatalf("reconnect = %d, want 200", again.status)
	}
	if ev := again.next(t); !strings.Contains(ev, `<img src="/press/bb_press0.png" alt="Bog Band Press 1" class="slide-image active">`) {
		t.Fatalf("first event after reconnect = %q", ev)
	}
	if s, ok := ws.Sessions().Get(sid); !ok || s.Slides.Closed() {
		t.Error("reconnect did not restore the session")
	}
	ws.Sessions().Purge()
	again.waitClosed(t)
}

func TestNewWebServerNeedsSlides(t *testing.T) {
	if _, err := NewWebServer(config.DefaultConfig(), nil, nil, nil); err == nil {
		t.Error("expected error without slides")
	}
}
