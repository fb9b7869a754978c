package api

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bogband/website/navigation"
	"github.com/bogband/website/slideshow"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// Session is the view state of one page mount. Every load of the page gets its own.
type Session struct {
	ID        string
	Nav       *navigation.Model
	Slides    *slideshow.Controller
	CreatedAt time.Time
}

// SessionManager keeps sessions in an expiring LRU. A session leaves the cache on idle
// expiry, capacity eviction, Close or Purge, and its slideshow is closed every time.
type SessionManager struct {
	// mu serialises lookups with inserts so a session id maps to one live session.
	// Expiry runs on the LRU's own goroutine and is not covered.
	mu           sync.Mutex
	sessions     *expirable.LRU[string, *Session]
	newSlideshow func() (*slideshow.Controller, error)
}

func NewSessionManager(capacity int, ttl time.Duration, newSlideshow func() (*slideshow.Controller, error)) *SessionManager {
	m := &SessionManager{newSlideshow: newSlideshow}
	m.sessions = expirable.NewLRU[string, *Session](capacity, m.onEvict, ttl)
	return m
}

func (m *SessionManager) onEvict(id string, s *Session) {
	s.Slides.Close()
	slog.Debug("session closed", "id", id, "age", time.Since(s.CreatedAt).Round(time.Second))
}

// ValidSessionID reports whether id has the form Create hands out.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create starts a new session with the home section active and a running slideshow.
func (m *SessionManager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(uuid.NewString())
}

// Acquire returns the live session for id, or starts a fresh one under the same id
// when it has expired or was closed. created reports the latter.
func (m *SessionManager) Acquire(id string) (s *Session, created bool, err error) {
	if !ValidSessionID(id) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.get(id); ok {
		return s, false, nil
	}
	s, err = m.create(id)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Get returns a live session and renews its expiry.
func (m *SessionManager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *SessionManager) get(id string) (*Session, bool) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	if s.Slides.Closed() {
		m.sessions.Remove(id)
		return nil, false
	}

	// Add renews the expiry. If the session expired between Get and Add it is
	// re-inserted with a closed slideshow, so check again and drop it.
	m.sessions.Add(id, s)
	if s.Slides.Closed() {
		m.sessions.Remove(id)
		return nil, false
	}
	return s, true
}

func (m *SessionManager) create(id string) (*Session, error) {
	slides, err := m.newSlideshow()
	if err != nil {
		return nil, fmt.Errorf("failed to create slideshow: %w", err)
	}

	s := &Session{
		ID:        id,
		Nav:       navigation.NewModel(),
		Slides:    slides,
		CreatedAt: time.Now(),
	}
	s.Nav.OnChange(func(section navigation.Section) {
		slog.Debug("section changed", "session", s.ID, "section", section)
	})

	m.sessions.Add(s.ID, s)
	slog.Debug("session created", "id", s.ID, "sessions", m.sessions.Len())
	return s, nil
}

// Close removes the session, closing its slideshow. Unknown ids are ignored.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Remove(id)
}

func (m *SessionManager) Len() int {
	return m.sessions.Len()
}

// Purge closes every session.
func (m *SessionManager) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Purge()
}
