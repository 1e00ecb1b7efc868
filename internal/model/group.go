package model

// VideoGroup is an ordered, user-curated collection of videos.
// Videos holds the strict member order; no video id appears twice.
type VideoGroup struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Videos      []Video `json:"videos"`
	ShareToken  string  `json:"shareToken,omitempty"`
	ShareURL    string  `json:"shareUrl,omitempty"`
}

// VideoIDs returns the member ids in display order
func (g *VideoGroup) VideoIDs() []string {
	ids := make([]string, len(g.Videos))
	for i, v := range g.Videos {
		ids[i] = v.ID
	}
	return ids
}

// Shared reports whether the group currently has an active share link
func (g *VideoGroup) Shared() bool {
	return g.ShareToken != ""
}

// GroupPatch carries the editable fields of a group. Nil means "leave unchanged".
type GroupPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// BulkAddResult reports the outcome of adding several videos to a group in one
// request. Videos that were already members are skipped server-side.
type BulkAddResult struct {
	AddedCount   int `json:"addedCount"`
	SkippedCount int `json:"skippedCount"`
}

// ShareLink is the response of creating a share link for a group
type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}
