package store

import "time"

type Slide struct {
	Path  string `json:"path"`
	Order int    `json:"order"`
}

// SyncState describes the last completed press-image sync.
type SyncState struct {
	Bucket   string    `json:"bucket"`
	Prefix   string    `json:"prefix"`
	SyncedAt time.Time `json:"synced_at"`
	Slides   int       `json:"slides"`
}
