// Package models defines the domain types for notepub.
package models

import "time"

// FileMeta describes one file under a storage root.
type FileMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportedNote is a Markdown file written by the exporter into the content directory.
type ExportedNote struct {
	Path     string   `json:"path"`
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Checksum string   `json:"checksum"`
}

// CapturedRequest is the persisted form of one inbound callback request.
type CapturedRequest struct {
	ID         string              `json:"id"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	Path       string              `json:"path"`
	RemoteAddr string              `json:"remote_addr,omitempty"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body"`
	ReceivedAt time.Time           `json:"received_at"`
}
