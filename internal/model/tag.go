package model

// Tag is a user-defined label, many-to-many with videos
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
