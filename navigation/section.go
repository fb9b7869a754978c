// Package navigation holds the active section of the page and the fixed set of sections it can show
package navigation

import (
	"errors"
	"fmt"
)

var ErrUnknownSection = errors.New("unknown section")

// Section identifies one content area of the page.
type Section string

const (
	Home    Section = "home"
	Music   Section = "music"
	Shows   Section = "shows"
	Merch   Section = "merch"
	Contact Section = "contact"
)

var sections = []Section{Home, Music, Shows, Merch, Contact}

// Sections returns every section in navigation order.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// ParseSection maps a section identifier onto the closed Section set.
func ParseSection(id string) (Section, error) {
	for _, s := range sections {
		if string(s) == id {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, id)
}

// NavItem is the activation control rendered for a section.
type NavItem struct {
	Section Section
	Label   string
	Image   string
}

var items = []NavItem{
	{Section: Home, Label: "Home", Image: "/nav/bog_band.png"},
	{Section: Music, Label: "Music", Image: "/nav/music.png"},
	{Section: Shows, Label: "Shows", Image: "/nav/shows.png"},
	{Section: Merch, Label: "Merch", Image: "/nav/merch.png"},
	{Section: Contact, Label: "Contact", Image: "/nav/contact.png"},
}

// Items returns one navigation control per section, in navigation order.
func Items() []NavItem {
	out := make([]NavItem, len(items))
	copy(out, items)
	return out
}
