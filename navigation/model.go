package navigation

import "sync"

// Model holds the currently selected section. The zero value is not usable, use NewModel.
type Model struct {
	mu        sync.RWMutex
	active    Section
	observers []func(Section)
}

// NewModel returns a Model with Home active.
func NewModel() *Model {
	return &Model{active: Home}
}

// Active returns the current section.
func (m *Model) Active() Section {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetActiveSection replaces the active section and notifies observers. Setting the
// same section again is allowed and still notifies, so dependent views re-render.
func (m *Model) SetActiveSection(s Section) {
	m.mu.Lock()
	m.active = s
	observers := make([]func(Section), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// OnChange registers fn to be called after every SetActiveSection.
func (m *Model) OnChange(fn func(Section)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}
