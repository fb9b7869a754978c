package templates

import "github.com/bogband/website/navigation"

type panel struct {
	heading string
	body    string
}

// home has no panel: the slideshow occupies that space
var panels = map[navigation.Section]panel{
	navigation.Music:   {heading: "Music", body: "Music content placeholder - coming soon!"},
	navigation.Shows:   {heading: "Upcoming Shows", body: "Gigs content placeholder - coming soon!"},
	navigation.Merch:   {heading: "Merchandise", body: "Merch content placeholder - coming soon!"},
	navigation.Contact: {heading: "Contact", body: "Contact content placeholder - coming soon!"},
}
