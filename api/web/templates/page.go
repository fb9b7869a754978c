package templates

import "github.com/bogband/website/navigation"

type PlayerConfig struct {
	Src    string
	Link   string
	Label  string
	Height int
}

type PageData struct {
	// SessionID identifies this page mount. Every request the page makes carries it.
	SessionID   string
	Title       string
	Description string
	Active      navigation.Section
	Slides      []string
	Current     int
	Player      PlayerConfig
}
