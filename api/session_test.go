package api

import (
	"errors"
	"testing"
	"time"

	"github.com/bogband/website/clock"
	"github.com/bogband/website/navigation"
	"github.com/bogband/website/slideshow"
)

func newTestSessions(capacity int, ttl time.Duration) (*SessionManager, *clock.Fake) {
	fake := clock.NewFake(time.Unix(0, 0))
	m := NewSessionManager(capacity, ttl, func() (*slideshow.Controller, error) {
		return slideshow.New(slideshow.Config{Slides: testSlides, Clock: fake})
	})
	return m, fake
}

func TestSessionCreateAndGet(t *testing.T) {
	m, _ := newTestSessions(4, time.Hour)
	defer m.Purge()

	s, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("session has no id")
	}
	if s.Nav.Active() != navigation.Home {
		t.Errorf("new session section = %q, want home", s.Nav.Active())
	}
	if s.Slides.State() != slideshow.Running || s.Slides.Index() != 0 {
		t.Errorf("new session slideshow = %v at %d", s.Slides.State(), s.Slides.Index())
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v", s.ID, got, ok)
	}
	if _, ok := m.Get("unknown"); ok {
		t.Error("Get returned a session for an unknown id")
	}
	if _, ok := m.Get(""); ok {
		t.Error("Get returned a session for an empty id")
	}
}

func TestSessionCapacityEvictionClosesSlideshow(t *testing.T) {
	m, fake := newTestSessions(2, time.Hour)
	defer m.Purge()

	first, _ := m.Create()
	second, _ := m.Create()
	// touching first makes second the least recently used
	if _, ok := m.Get(first.ID); !ok {
		t.Fatal("first session missing")
	}
	third, _ := m.Create()

	if !second.Slides.Closed() {
		t.Error("evicted session's slideshow still running")
	}
	if first.Slides.Closed() || third.Slides.Closed() {
		t.Error("live session closed")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if fake.Pending() != 2 {
		t.Errorf("pending timers = %d, want 2", fake.Pending())
	}
}

func TestSessionExpiryClosesSlideshow(t *testing.T) {
	m, _ := newTestSessions(4, 20*time.Millisecond)
	defer m.Purge()

	s, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !s.Slides.Closed() {
		if time.Now().After(deadline) {
			t.Fatal("expired session was never closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("expired session still returned")
	}
}

func TestSessionCloseAndPurge(t *testing.T) {
	m, fake := newTestSessions(4, time.Hour)

	a, _ := m.Create()
	b, _ := m.Create()

	if !m.Close(a.ID) {
		t.Error("Close reported unknown session")
	}
	if m.Close(a.ID) {
		t.Error("second Close reported a removal")
	}
	if !a.Slides.Closed() {
		t.Error("closed session's slideshow still running")
	}

	m.Purge()
	if !b.Slides.Closed() {
		t.Error("purge left a slideshow running")
	}
	if m.Len() != 0 || fake.Pending() != 0 {
		t.Errorf("after purge Len() = %d pending = %d", m.Len(), fake.Pending())
	}
}

func TestSessionGetDropsClosedSlideshow(t *testing.T) {
	m, fake := newTestSessions(4, time.Hour)
	defer m.Purge()

	s, _ := m.Create()
	// the slideshow closes behind the manager's back, as an expiry racing a renewal does
	s.Slides.Close()

	if _, ok := m.Get(s.ID); ok {
		t.Fatal("Get returned a session with a closed slideshow")
	}
	if m.Len() != 0 {
		t.Errorf("closed session still cached, Len() = %d", m.Len())
	}
	if fake.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", fake.Pending())
	}
}

func TestSessionAcquire(t *testing.T) {
	m, _ := newTestSessions(4, time.Hour)
	defer m.Purge()

	const id = "0b1e5d2c-3f4a-4b6c-8d7e-9f0a1b2c3d4e"
	s, created, err := m.Acquire(id)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !created || s.ID != id {
		t.Fatalf("Acquire(%q) = %q created=%v", id, s.ID, created)
	}

	s.Nav.SetActiveSection(navigation.Merch)
	again, created, err := m.Acquire(id)
	if err != nil || created || again != s {
		t.Fatalf("second Acquire = %p created=%v err=%v, want %p", again, created, err, s)
	}

	m.Close(id)
	fresh, created, err := m.Acquire(id)
	if err != nil || !created {
		t.Fatalf("Acquire after Close created=%v err=%v", created, err)
	}
	if fresh == s || fresh.Slides.Closed() {
		t.Error("Acquire after Close returned the closed session")
	}
	if fresh.Nav.Active() != navigation.Home {
		t.Errorf("recreated session section = %q, want home", fresh.Nav.Active())
	}

	for _, bad := range []string{"", "not-a-uuid", "../etc"} {
		if _, _, err := m.Acquire(bad); !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Acquire(%q) err = %v, want ErrInvalidSessionID", bad, err)
		}
	}
}
