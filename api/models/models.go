// Package models tracks all api models for request and responses
package models

type ErrorResponse struct {
	Error string `json:"error"`
}

// StateResponse is the view state of one visitor session.
type StateResponse struct {
	Section string   `json:"section"`
	Slide   string   `json:"slide"`
	Index   int      `json:"index"`
	Paused  bool     `json:"paused"`
	State   string   `json:"state"`
	Slides  []string `json:"slides"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Slides   int    `json:"slides"`
}
