package push

import (
	"fmt"
	"strings"

	"github.com/user/vidlib-bot-go/internal/chat"
	"github.com/user/vidlib-bot-go/internal/model"
)

// EscapeMarkdown escapes special characters for Telegram MarkdownV2 format
func EscapeMarkdown(text string) string {
	// Characters that need to be escaped in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}
	return result
}

// FormatVideoReady formats the notification sent when a watched upload
// reaches a terminal status. Completed videos get a player deep link and a
// transcript note; failed ones carry the pipeline's error message.
func FormatVideoReady(video *model.Video, webBase string) string {
	if video == nil {
		return ""
	}

	var parts []string

	switch video.Status {
	case model.StatusCompleted:
		parts = append(parts, fmt.Sprintf("✅ *%s* finished processing", EscapeMarkdown(video.Title)))
		if video.Transcript != "" {
			parts = append(parts, "📝 Transcript is ready, you can chat about it now")
		}
		if webBase != "" {
			parts = append(parts, fmt.Sprintf("🔗 %s", EscapeMarkdown(chat.WatchLink(webBase, video.ID, 0))))
		}
	case model.StatusError:
		parts = append(parts, fmt.Sprintf("❌ *%s* failed processing", EscapeMarkdown(video.Title)))
		if video.ErrorMessage != "" {
			parts = append(parts, EscapeMarkdown(video.ErrorMessage))
		}
	default:
		parts = append(parts, fmt.Sprintf("ℹ️ *%s* is %s", EscapeMarkdown(video.Title), EscapeMarkdown(string(video.Status))))
	}

	return strings.Join(parts, "\n")
}
