package bot

import (
	"testing"

	"github.com/user/vidlib-bot-go/internal/model"
)

func TestParseMove(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantFrom int
		wantTo   int
		wantOK   bool
	}{
		{name: "down", data: "mv:0:1", wantFrom: 0, wantTo: 1, wantOK: true},
		{name: "up", data: "mv:5:2", wantFrom: 5, wantTo: 2, wantOK: true},
		{name: "negative survives parsing", data: "mv:-1:0", wantFrom: -1, wantTo: 0, wantOK: true},
		{name: "wrong prefix", data: "fb:0:1", wantOK: false},
		{name: "missing field", data: "mv:3", wantOK: false},
		{name: "not a number", data: "mv:a:b", wantOK: false},
		{name: "empty", data: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := ParseMove(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ParseMove(%q) ok = %v, want %v", tt.data, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("ParseMove(%q) = (%d, %d), want (%d, %d)", tt.data, from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantLogID string
		wantValue model.Feedback
		wantOK    bool
	}{
		{name: "good", data: "fb:log-1:good", wantLogID: "log-1", wantValue: model.FeedbackGood, wantOK: true},
		{name: "bad", data: "fb:log-1:bad", wantLogID: "log-1", wantValue: model.FeedbackBad, wantOK: true},
		{name: "log id with colon", data: "fb:a:b:good", wantLogID: "a:b", wantValue: model.FeedbackGood, wantOK: true},
		{name: "unknown value", data: "fb:log-1:meh", wantOK: false},
		{name: "clearing is not encoded", data: "fb:log-1:", wantOK: false},
		{name: "wrong prefix", data: "mv:log-1:good", wantOK: false},
		{name: "no value", data: "fb:log-1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logID, value, ok := ParseFeedback(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ParseFeedback(%q) ok = %v, want %v", tt.data, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if logID != tt.wantLogID || value != tt.wantValue {
				t.Errorf("ParseFeedback(%q) = (%q, %q), want (%q, %q)",
					tt.data, logID, value, tt.wantLogID, tt.wantValue)
			}
		})
	}
}

func TestParseSelect(t *testing.T) {
	if id, ok := ParseSelect("sel:vid-42"); !ok || id != "vid-42" {
		t.Errorf("ParseSelect(sel:vid-42) = (%q, %v), want (vid-42, true)", id, ok)
	}
	// The page and done actions share the sel prefix characters but not
	// the separator, so they must not parse as selections.
	if _, ok := ParseSelect("selpg:2"); ok {
		t.Error("ParseSelect accepted a select-page payload")
	}
	if _, ok := ParseSelect("seldone"); ok {
		t.Error("ParseSelect accepted the done payload")
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		data     string
		wantPage int
		wantOK   bool
	}{
		{data: "pg:1", wantPage: 1, wantOK: true},
		{data: "pg:17", wantPage: 17, wantOK: true},
		{data: "pg:0", wantOK: false},
		{data: "pg:-2", wantOK: false},
		{data: "pg:x", wantOK: false},
		{data: "selpg:3", wantOK: false},
	}
	for _, tt := range tests {
		page, ok := ParsePage(tt.data)
		if ok != tt.wantOK || (ok && page != tt.wantPage) {
			t.Errorf("ParsePage(%q) = (%d, %v), want (%d, %v)", tt.data, page, ok, tt.wantPage, tt.wantOK)
		}
	}

	if page, ok := ParseSelectPage("selpg:3"); !ok || page != 3 {
		t.Errorf("ParseSelectPage(selpg:3) = (%d, %v), want (3, true)", page, ok)
	}
	if _, ok := ParseSelectPage("pg:3"); ok {
		t.Error("ParseSelectPage accepted a library page payload")
	}
}

func TestParseShareToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare token", in: "abc123", want: "abc123"},
		{name: "full url", in: "https://lib.example.com/share/abc123", want: "abc123"},
		{name: "url with video query", in: "https://lib.example.com/share/abc123?v=vid-1&t=90", want: "abc123"},
		{name: "url with fragment", in: "https://lib.example.com/share/abc123#top", want: "abc123"},
		{name: "trailing slash", in: "https://lib.example.com/share/abc123/", want: "abc123"},
		{name: "whitespace", in: "  abc123  ", want: "abc123"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseShareToken(tt.in); got != tt.want {
				t.Errorf("parseShareToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitTitleDescription(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantDesc  string
	}{
		{in: "Standup recording | weekly sync", wantTitle: "Standup recording", wantDesc: "weekly sync"},
		{in: "Just a title", wantTitle: "Just a title", wantDesc: ""},
		{in: "a | b | c", wantTitle: "a", wantDesc: "b | c"},
		{in: "", wantTitle: "", wantDesc: ""},
	}
	for _, tt := range tests {
		title, desc := splitTitleDescription(tt.in)
		if title != tt.wantTitle || desc != tt.wantDesc {
			t.Errorf("splitTitleDescription(%q) = (%q, %q), want (%q, %q)",
				tt.in, title, desc, tt.wantTitle, tt.wantDesc)
		}
	}
}
