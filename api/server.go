// Package api is the main api web server
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"

	"github.com/bogband/website/api/models"
	"github.com/bogband/website/api/web/templates"
	"github.com/bogband/website/assets"
	"github.com/bogband/website/clock"
	"github.com/bogband/website/config"
	"github.com/bogband/website/navigation"
	"github.com/bogband/website/slideshow"
)

//go:embed web/static
var webFiles embed.FS

const sessionHeader = "X-Session-Id"

type WebServer struct {
	router   *gin.Engine
	cfg      *config.Config
	slides   []string
	cache    *assets.Cache
	sessions *SessionManager
}

// NewWebServer builds the site router. Every session rotates slides on clk; a nil clk
// uses the wall clock.
func NewWebServer(cfg *config.Config, slides []string, cache *assets.Cache, clk clock.Clock) (*WebServer, error) {
	if len(slides) == 0 {
		return nil, slideshow.ErrNoSlides
	}
	if clk == nil {
		clk = clock.Real{}
	}

	ws := &WebServer{
		router: gin.Default(),
		cfg:    cfg,
		slides: append([]string(nil), slides...),
		cache:  cache,
	}

	var preloader slideshow.Preloader
	if cache != nil {
		preloader = cache
	}
	ws.sessions = NewSessionManager(cfg.Session.Capacity, cfg.Session.TTL, func() (*slideshow.Controller, error) {
		return slideshow.New(slideshow.Config{
			Slides:    ws.slides,
			Period:    cfg.Slideshow.Period,
			Clock:     clk,
			Preloader: preloader,
		})
	})

	if err := ws.setupRoutes(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *WebServer) setupRoutes() error {
	// Create filesystem for static files (strip "web/" prefix)
	staticFS, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}

	// Serve static files from embedded filesystem
	ws.router.StaticFS("/static", http.FS(staticFS))

	// Serve favicon
	ws.router.GET("/favicon.ico", func(c *gin.Context) {
		data, err := webFiles.ReadFile("web/static/images/favicon.svg")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "image/svg+xml", data)
	})

	ws.router.GET("/", ws.handleIndex)
	ws.router.POST("/sections/:section", ws.handleSetSection)
	ws.router.POST("/slideshow/pointer-enter", ws.handlePointerEnter)
	ws.router.POST("/slideshow/pointer-leave", ws.handlePointerLeave)
	ws.router.GET("/slideshow/events", ws.handleSlideEvents)
	ws.router.POST("/session/close", ws.handleCloseSession)

	// Images
	ws.router.GET("/press/*file", ws.handleAsset("/press"))
	ws.router.GET("/nav/*file", ws.handleAsset("/nav"))

	// API routes
	ws.router.GET("/api/state", ws.handleGetState)
	ws.router.GET("/healthz", ws.handleHealth)
	return nil
}

// Router exposes the handler, mainly for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

func (ws *WebServer) Sessions() *SessionManager {
	return ws.sessions
}

// Start serves on addr until ctx is done, then closes every session and shuts the
// server down gracefully.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr, "slides", len(ws.slides))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		ws.sessions.Purge()
		return fmt.Errorf("web server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down web server", "sessions", ws.sessions.Len())
	// closing the sessions ends the event streams so Shutdown does not wait on them
	ws.sessions.Purge()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

// sessionID returns the page mount's session id. htmx sends it as a header; the event
// stream and site.js posts carry it in the query.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	return c.Query("sid")
}

// session resolves the caller's session, restoring it with default state under the same
// id when it has expired. On failure the response has been written.
func (ws *WebServer) session(c *gin.Context) (*Session, bool) {
	s, created, err := ws.sessions.Acquire(sessionID(c))
	if errors.Is(err, ErrInvalidSessionID) {
		ws.fail(c, http.StatusBadRequest, "missing or invalid session id")
		return nil, false
	}
	if err != nil {
		ws.fail(c, http.StatusInternalServerError, fmt.Sprintf("Failed to create session: %v", err))
		return nil, false
	}
	if created {
		slog.Debug("session restored", "id", s.ID, "path", c.Request.URL.Path)
	}
	return s, true
}

// heartbeat is how often an open event stream renews its session, always well inside
// the session TTL.
func (ws *WebServer) heartbeat() time.Duration {
	hb := ws.cfg.Session.Heartbeat
	if hb <= 0 {
		hb = config.DefaultHeartbeat
	}
	if limit := ws.cfg.Session.TTL / 3; limit > 0 && hb > limit {
		hb = limit
	}
	return hb
}

func (ws *WebServer) fail(c *gin.Context, status int, msg string) {
	// Check if this is an HTMX request
	if c.GetHeader("HX-Request") == "true" {
		c.String(status, "Error: "+msg)
		return
	}
	c.JSON(status, models.ErrorResponse{Error: msg})
}

func (ws *WebServer) render(c *gin.Context, status int, component templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render page", "path", c.Request.URL.Path, "error", err)
	}
}

func (ws *WebServer) pageData(s *Session) templates.PageData {
	return templates.PageData{
		SessionID:   s.ID,
		Title:       ws.cfg.Site.Title,
		Description: ws.cfg.Site.Description,
		Active:      s.Nav.Active(),
		Slides:      s.Slides.Slides(),
		Current:     s.Slides.Index(),
		Player: templates.PlayerConfig{
			Src:    ws.cfg.Player.Src,
			Link:   ws.cfg.Player.Link,
			Label:  ws.cfg.Player.Label,
			Height: ws.cfg.Player.Height,
		},
	}
}

// handleIndex starts a new session for every load of the page, so tabs and reloads
// never share view state.
func (ws *WebServer) handleIndex(c *gin.Context) {
	s, err := ws.sessions.Create()
	if err != nil {
		slog.Error("failed to create session", "error", err)
		c.String(http.StatusInternalServerError, "Failed to load page")
		return
	}
	c.Header("Cache-Control", "no-store")
	ws.render(c, http.StatusOK, templates.Page(ws.pageData(s)))
}

func (ws *WebServer) handleSetSection(c *gin.Context) {
	section, err := navigation.ParseSection(c.Param("section"))
	if err != nil {
		ws.fail(c, http.StatusNotFound, err.Error())
		return
	}

	s, ok := ws.session(c)
	if !ok {
		return
	}
	s.Nav.SetActiveSection(section)

	ws.render(c, http.StatusOK, templates.SectionUpdate(s.Nav.Active()))
}

func (ws *WebServer) handlePointerEnter(c *gin.Context) {
	s, ok := ws.session(c)
	if !ok {
		return
	}
	s.Slides.PointerEnter()
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handlePointerLeave(c *gin.Context) {
	s, ok := ws.session(c)
	if !ok {
		return
	}
	s.Slides.PointerLeave()
	c.Status(http.StatusNoContent)
}

// handleSlideEvents streams the rendered slides as "slide" events, starting with the
// current one. While the stream is open it renews the session on every heartbeat. The
// stream ends when the client leaves or the session closes; a reconnect restores it.
func (ws *WebServer) handleSlideEvents(c *gin.Context) {
	s, ok := ws.session(c)
	if !ok {
		return
	}

	updates, cancel := s.Slides.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	slides := s.Slides.Slides()
	send := func(idx int) bool {
		html, err := templates.RenderString(c.Request.Context(), templates.Slides(ws.cfg.Site.Title, slides, idx))
		if err != nil {
			slog.Error("failed to render slides", "session", s.ID, "error", err)
			return false
		}
		c.SSEvent("slide", html)
		return true
	}

	if !send(s.Slides.Index()) {
		return
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(ws.heartbeat())
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case idx, ok := <-updates:
			if !ok {
				return false
			}
			return send(idx)
		case <-heartbeat.C:
			if cur, ok := ws.sessions.Get(s.ID); !ok || cur != s {
				return false
			}
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}

func (ws *WebServer) handleCloseSession(c *gin.Context) {
	if id := sessionID(c); ws.sessions.Close(id) {
		slog.Debug("session closed by client", "id", id)
	}
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleAsset(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ws.cache == nil {
			c.Status(http.StatusNotFound)
			return
		}

		asset, err := ws.cache.Get(c.Request.Context(), prefix+c.Param("file"))
		if err != nil {
			if !errors.Is(err, assets.ErrNotFound) && !errors.Is(err, assets.ErrUnsupported) {
				slog.Debug("failed to load asset", "path", c.Request.URL.Path, "error", err)
			}
			c.Status(http.StatusNotFound)
			return
		}

		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, asset.ContentType, asset.Data)
	}
}

func (ws *WebServer) handleGetState(c *gin.Context) {
	id := sessionID(c)
	if !ValidSessionID(id) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing or invalid session id"})
		return
	}
	s, ok := ws.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}

	c.JSON(http.StatusOK, models.StateResponse{
		Section: string(s.Nav.Active()),
		Slide:   s.Slides.Current(),
		Index:   s.Slides.Index(),
		Paused:  s.Slides.Paused(),
		State:   s.Slides.State().String(),
		Slides:  s.Slides.Slides(),
	})
}

func (ws *WebServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Sessions: ws.sessions.Len(),
		Slides:   len(ws.slides),
	})
}
