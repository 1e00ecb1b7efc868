package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Feedback is the tri-state rating attached to an assistant answer.
// The empty value means "no feedback" and travels as JSON null.
type Feedback string

const (
	FeedbackGood Feedback = "good"
	FeedbackBad  Feedback = "bad"
	FeedbackNone Feedback = ""
)

// MarshalJSON encodes the empty feedback state as null
func (f Feedback) MarshalJSON() ([]byte, error) {
	if f == FeedbackNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

// UnmarshalJSON accepts null as well as the two string values
func (f *Feedback) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FeedbackNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Feedback(s)
	return nil
}

// Valid reports whether f is one of good, bad or none
func (f Feedback) Valid() bool {
	return f == FeedbackGood || f == FeedbackBad || f == FeedbackNone
}

// RelatedVideo is a chat answer's citation of a specific moment in a video.
// StartTime is a clock string, "HH:MM:SS[,mmm]" or "MM:SS".
type RelatedVideo struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
}

// ChatMessage is one entry of the visible chat transcript
type ChatMessage struct {
	Role          Role           `json:"role"`
	Content       string         `json:"content"`
	RelatedVideos []RelatedVideo `json:"relatedVideos,omitempty"`
	LogID         string         `json:"logId,omitempty"`
	Feedback      Feedback       `json:"feedback,omitempty"`
	IsError       bool           `json:"isError,omitempty"`
}

// ChatRequest carries a single user turn. The backend keeps the conversation
// history itself, so only the latest message travels, plus either the group
// context or a share token (never both).
type ChatRequest struct {
	Message    string `json:"message"`
	GroupID    string `json:"groupId,omitempty"`
	ShareToken string `json:"shareToken,omitempty"`
}

// ChatReply is the backend's answer to one chat request
type ChatReply struct {
	Content       string         `json:"content"`
	RelatedVideos []RelatedVideo `json:"relatedVideos,omitempty"`
	LogID         string         `json:"logId"`
}

// FeedbackResult is the server-confirmed feedback state for a log entry
type FeedbackResult struct {
	LogID    string   `json:"logId"`
	Feedback Feedback `json:"feedback"`
}

// ChatLogEntry is one row of the persisted chat history
type ChatLogEntry struct {
	LogID         string         `json:"logId"`
	Question      string         `json:"question"`
	Answer        string         `json:"answer"`
	Feedback      Feedback       `json:"feedback"`
	RelatedVideos []RelatedVideo `json:"relatedVideos,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// PopularScene is a frequently-cited video moment, prefetched for the
// "popular scenes" panel of a group.
type PopularScene struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	Question  string `json:"question,omitempty"`
}
