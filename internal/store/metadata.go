package store

import "time"

// Metadata is the sidecar record kept next to every screenshot. The image
// file is the source of truth for pixels; this record is the source of
// truth for everything else.
type Metadata struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"` // relative to the storage root, forward slashes
	CapturedAt    time.Time `json:"captured_at"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Format        string    `json:"format"`
	CaptureMode   string    `json:"capture_mode"`
	DisplayServer string    `json:"display_server"`
	FileSize      int64     `json:"file_size"`
	Tags          []string  `json:"tags"`
	Notes         string    `json:"notes,omitempty"`
	Trashed       bool      `json:"trashed,omitempty"`
}

// HasTag reports whether the record carries the tag.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
