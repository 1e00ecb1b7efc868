package push

import (
	"strings"
	"testing"

	"github.com/user/vidlib-bot-go/internal/model"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Conference keynote",
			want:  "Conference keynote",
		},
		{
			name:  "dots and dashes escaped",
			input: "v1.2-final",
			want:  "v1\\.2\\-final",
		},
		{
			name:  "markdown control characters escaped",
			input: "*bold* _it_ [link](x)",
			want:  "\\*bold\\* \\_it\\_ \\[link\\]\\(x\\)",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeMarkdown(tt.input); got != tt.want {
				t.Errorf("EscapeMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatVideoReady(t *testing.T) {
	webBase := "https://app.vidlib.example"

	t.Run("completed with transcript", func(t *testing.T) {
		video := &model.Video{
			ID:         "vid1",
			Title:      "Intro to Go",
			Status:     model.StatusCompleted,
			Transcript: "hello world",
		}
		msg := FormatVideoReady(video, webBase)

		if !strings.Contains(msg, "✅") {
			t.Errorf("message %q missing completed marker", msg)
		}
		if !strings.Contains(msg, EscapeMarkdown("Intro to Go")) {
			t.Errorf("message %q missing title", msg)
		}
		if !strings.Contains(msg, "Transcript is ready") {
			t.Errorf("message %q missing transcript note", msg)
		}
		if !strings.Contains(msg, EscapeMarkdown("https://app.vidlib.example/videos/vid1?t=0")) {
			t.Errorf("message %q missing deep link", msg)
		}
	})

	t.Run("completed without transcript omits note", func(t *testing.T) {
		video := &model.Video{ID: "vid1", Title: "Clip", Status: model.StatusCompleted}
		msg := FormatVideoReady(video, webBase)
		if strings.Contains(msg, "Transcript is ready") {
			t.Errorf("message %q should not mention transcript", msg)
		}
	})

	t.Run("error carries pipeline message", func(t *testing.T) {
		video := &model.Video{
			ID:           "vid2",
			Title:        "Broken upload",
			Status:       model.StatusError,
			ErrorMessage: "unsupported codec",
		}
		msg := FormatVideoReady(video, webBase)

		if !strings.Contains(msg, "❌") {
			t.Errorf("message %q missing error marker", msg)
		}
		if !strings.Contains(msg, "unsupported codec") {
			t.Errorf("message %q missing error detail", msg)
		}
		if strings.Contains(msg, "🔗") {
			t.Errorf("message %q should not carry a deep link for a failed video", msg)
		}
	})

	t.Run("nil video yields empty string", func(t *testing.T) {
		if got := FormatVideoReady(nil, webBase); got != "" {
			t.Errorf("FormatVideoReady(nil) = %q, want empty", got)
		}
	})
}
