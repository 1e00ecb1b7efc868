package model

import (
	"time"
)

// VideoStatus describes where a video is in the external processing pipeline
type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusProcessing VideoStatus = "processing"
	StatusCompleted  VideoStatus = "completed"
	StatusError      VideoStatus = "error"
)

// Terminal reports whether the pipeline will not advance this status further
func (s VideoStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Video represents a video entity owned by the backend API.
// The client only ever holds transient copies of it.
type Video struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Status       VideoStatus `json:"status"`
	FileName     string      `json:"fileName,omitempty"`
	UploadedAt   time.Time   `json:"uploadedAt"`
	Transcript   string      `json:"transcript,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	Tags         []Tag       `json:"tags,omitempty"`
}

// VideoPatch carries the editable fields of a video. Nil means "leave unchanged".
type VideoPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// VideoList is the paginated response of the video listing endpoint
type VideoList struct {
	Videos []Video `json:"videos"`
	Total  int     `json:"total"`
}
