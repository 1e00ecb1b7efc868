package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/user/vidlib-bot-go/internal/model"
)

// Callback data for inline keyboard buttons. Telegram caps the payload
// at 64 bytes, so actions are encoded as a short prefix plus raw ids.
const (
	cbMove         = "mv"
	cbFeedback     = "fb"
	cbSelect       = "sel"
	cbSelectDone   = "seldone"
	cbSelectCancel = "selcancel"
	cbPage         = "pg"
	cbSelectPage   = "selpg"
	cbScenes       = "scenes"
)

// FormatMove encodes a reorder of the open group's list from one
// zero-based index to another.
func FormatMove(from, to int) string {
	return fmt.Sprintf("%s:%d:%d", cbMove, from, to)
}

// ParseMove decodes callback data produced by FormatMove.
func ParseMove(data string) (from, to int, ok bool) {
	rest, found := strings.CutPrefix(data, cbMove+":")
	if !found {
		return 0, 0, false
	}
	fromStr, toStr, found := strings.Cut(rest, ":")
	if !found {
		return 0, 0, false
	}
	from, err := strconv.Atoi(fromStr)
	if err != nil {
		return 0, 0, false
	}
	to, err = strconv.Atoi(toStr)
	if err != nil {
		return 0, 0, false
	}
	return from, to, true
}

// FormatFeedback encodes a thumbs vote on a chat exchange.
func FormatFeedback(logID string, value model.Feedback) string {
	return fmt.Sprintf("%s:%s:%s", cbFeedback, logID, value)
}

// ParseFeedback decodes callback data produced by FormatFeedback. The
// value is taken from the last colon-separated field so log ids may
// themselves contain colons.
func ParseFeedback(data string) (logID string, value model.Feedback, ok bool) {
	rest, found := strings.CutPrefix(data, cbFeedback+":")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", "", false
	}
	logID = rest[:i]
	value = model.Feedback(rest[i+1:])
	if value != model.FeedbackGood && value != model.FeedbackBad {
		return "", "", false
	}
	return logID, value, true
}

// FormatSelect encodes toggling one video in the bulk-add picker.
func FormatSelect(videoID string) string {
	return cbSelect + ":" + videoID
}

// ParseSelect decodes callback data produced by FormatSelect.
func ParseSelect(data string) (videoID string, ok bool) {
	return strings.CutPrefix(data, cbSelect+":")
}

// FormatPage encodes flipping the library listing to a page.
func FormatPage(page int) string {
	return fmt.Sprintf("%s:%d", cbPage, page)
}

// ParsePage decodes callback data produced by FormatPage.
func ParsePage(data string) (page int, ok bool) {
	return parsePageAfter(data, cbPage)
}

// FormatSelectPage encodes flipping the bulk-add picker to a page.
func FormatSelectPage(page int) string {
	return fmt.Sprintf("%s:%d", cbSelectPage, page)
}

// ParseSelectPage decodes callback data produced by FormatSelectPage.
func ParseSelectPage(data string) (page int, ok bool) {
	return parsePageAfter(data, cbSelectPage)
}

func parsePageAfter(data, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(data, prefix+":")
	if !found {
		return 0, false
	}
	page, err := strconv.Atoi(rest)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
