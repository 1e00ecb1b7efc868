package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/chat"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/push"
	"github.com/user/vidlib-bot-go/internal/server"
)

const historyPageSize = 10

// handleChat turns on chat mode. The context is the argument group, or
// whatever /group or /open last established.
func (h *Handler) handleChat(ctx context.Context, chatID int64, args string) {
	s := h.session(ctx, chatID)

	if args != "" {
		if !s.LoggedIn() {
			h.telegram.SendMessage(chatID, "🔒 You are not logged in. Use /login email password first.")
			return
		}
		if _, err := h.userClient(s).GetGroup(ctx, args); err != nil {
			if api.IsNotFound(err) {
				h.telegram.SendMessage(chatID, "🔍 No group with that id.")
				return
			}
			h.reportError(ctx, chatID, err, "open the group")
			return
		}
		s.ActiveGroupID = args
		s.ShareToken = ""
	}

	if s.ActiveGroupID == "" && s.ShareToken == "" {
		h.telegram.SendMessage(chatID, "Open a group (/group id) or a share link (/open link) first.")
		return
	}
	if s.ShareToken == "" && !s.LoggedIn() {
		h.telegram.SendMessage(chatID, "🔒 You are not logged in. Use /login email password first.")
		return
	}

	s.ChatMode = true
	h.saveSession(ctx, s)

	// Rebind so an explicit argument replaces a previous context.
	st := h.state(chatID)
	h.mu.Lock()
	st.chat = nil
	h.mu.Unlock()
	if h.chatSession(ctx, chatID, s) == nil {
		h.telegram.SendMessage(chatID, "Open a group (/group id) or a share link (/open link) first.")
		return
	}

	text := "💬 *Chat mode on*\n" +
		"Ask me anything about the videos; answers cite the exact moments they are based on\\. " +
		"/endchat to leave\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send chat mode message")
	}
}

func (h *Handler) handleEndChat(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)
	s.ChatMode = false
	h.saveSession(ctx, s)

	st := h.state(chatID)
	h.mu.Lock()
	st.chat = nil
	h.mu.Unlock()

	h.telegram.SendMessage(chatID, "💬 Chat mode off.")
}

// chatSession returns the live chat session for a chat, rebuilding it
// from the durable session row after a restart. Returns nil when the
// chat has no usable context.
func (h *Handler) chatSession(ctx context.Context, chatID int64, s *model.Session) *chat.Session {
	st := h.state(chatID)
	h.mu.Lock()
	cs := st.chat
	h.mu.Unlock()
	if cs != nil {
		return cs
	}

	switch {
	case s.ShareToken != "":
		cs = chat.NewSharedSession(h.client.WithShareToken(s.ShareToken), s.ShareToken, h.config.WebBaseURL)
	case s.ActiveGroupID != "" && s.LoggedIn():
		cs = chat.NewSession(h.userClient(s), s.ActiveGroupID, h.config.WebBaseURL)
	default:
		return nil
	}

	h.mu.Lock()
	st.chat = cs
	h.mu.Unlock()
	return cs
}

// handleChatText answers one chat-mode question. A placeholder goes out
// immediately and is edited into the answer, or into the inline error
// entry when the backend call fails.
func (h *Handler) handleChatText(ctx context.Context, chatID int64, s *model.Session, text string) {
	cs := h.chatSession(ctx, chatID, s)
	if cs == nil {
		s.ChatMode = false
		h.saveSession(ctx, s)
		h.telegram.SendMessage(chatID, "The chat context is gone. Open a group or share link, then /chat again.")
		return
	}

	msgID, err := h.telegram.SendMarkdownWithKeyboard(chatID, "🤔 Thinking\\.\\.\\.", nil)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send thinking placeholder")
	}

	reply, err := cs.Send(ctx, text)
	if err != nil {
		server.RecordChatMessage("failed")
		if api.IsAuth(err) {
			h.expireSession(ctx, chatID)
		}
		errText := "⚠️ " + push.EscapeMarkdown(reply.Content)
		if msgID != 0 {
			if err := h.telegram.EditMarkdown(chatID, msgID, errText, nil); err != nil {
				log.Error().Err(err).Int64("chat", chatID).Msg("Failed to edit chat error")
			}
		} else {
			h.telegram.SendMarkdown(chatID, errText)
		}
		return
	}

	server.RecordChatMessage("answered")
	body := formatAnswer(reply)
	keyboard := answerKeyboard(cs, reply)
	if msgID != 0 {
		if err := h.telegram.EditMarkdown(chatID, msgID, body, keyboard); err != nil {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to edit chat answer")
		}
		return
	}
	if _, err := h.telegram.SendMarkdownWithKeyboard(chatID, body, keyboard); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send chat answer")
	}
}

func formatAnswer(msg model.ChatMessage) string {
	var b strings.Builder
	b.WriteString(push.EscapeMarkdown(msg.Content))
	if len(msg.RelatedVideos) > 0 {
		b.WriteString("\n\n🎬 *Cited moments*")
		for _, rv := range msg.RelatedVideos {
			fmt.Fprintf(&b, "\n• %s at %s",
				push.EscapeMarkdown(rv.Title), push.EscapeMarkdown(rv.StartTime))
		}
	}
	return b.String()
}

// answerKeyboard builds the citation links plus the feedback row for an
// assistant answer. Citations resolve to deep links for the session's
// context, group or shared.
func answerKeyboard(cs *chat.Session, msg model.ChatMessage) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, rv := range msg.RelatedVideos {
		if i >= 3 {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(
				"▶️ "+rv.StartTime+" · "+trimLabel(rv.Title, 32),
				cs.OpenCitation(rv))))
	}
	if msg.LogID != "" {
		rows = append(rows, feedbackRow(msg.LogID, msg.Feedback))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// feedbackRow renders the tri-state thumbs pair; the active value gets a
// check mark. Tapping the active value clears it.
func feedbackRow(logID string, current model.Feedback) []tgbotapi.InlineKeyboardButton {
	good := "👍"
	bad := "👎"
	switch current {
	case model.FeedbackGood:
		good = "👍 ✓"
	case model.FeedbackBad:
		bad = "👎 ✓"
	}
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(good, FormatFeedback(logID, model.FeedbackGood)),
		tgbotapi.NewInlineKeyboardButtonData(bad, FormatFeedback(logID, model.FeedbackBad)),
	)
}

// callbackFeedback handles a thumbs tap. Failures are non-fatal: the
// keyboard keeps its previous state and the tap is answered with a
// toast; only the server-confirmed value ever changes the check mark.
func (h *Handler) callbackFeedback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	logID, value, ok := ParseFeedback(cb.Data)
	if !ok {
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}

	s := h.session(ctx, chatID)
	cs := h.chatSession(ctx, chatID, s)
	if cs == nil {
		h.telegram.AnswerCallback(cb.ID, "Start a chat with /chat first")
		return
	}

	confirmed, err := cs.ToggleFeedback(ctx, logID, value)
	if err != nil {
		h.telegram.AnswerCallback(cb.ID, "Could not save feedback")
		return
	}

	if confirmed == model.FeedbackNone {
		server.RecordFeedback("cleared")
		h.telegram.AnswerCallback(cb.ID, "Feedback cleared")
	} else {
		server.RecordFeedback(string(confirmed))
		h.telegram.AnswerCallback(cb.ID, "Thanks for the feedback!")
	}

	if cb.Message != nil && cb.Message.ReplyMarkup != nil {
		kb := patchFeedbackRow(*cb.Message.ReplyMarkup, logID, confirmed)
		err := h.telegram.EditKeyboard(chatID, cb.Message.MessageID, kb)
		if err != nil && !strings.Contains(err.Error(), "message is not modified") {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to update feedback keyboard")
		}
	}
}

// patchFeedbackRow rebuilds only the feedback row of an existing answer
// keyboard, leaving citation links untouched.
func patchFeedbackRow(kb tgbotapi.InlineKeyboardMarkup, logID string, value model.Feedback) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, len(kb.InlineKeyboard))
	for i, row := range kb.InlineKeyboard {
		isFeedback := false
		for _, btn := range row {
			if btn.CallbackData != nil && strings.HasPrefix(*btn.CallbackData, cbFeedback+":") {
				isFeedback = true
				break
			}
		}
		if isFeedback {
			rows[i] = feedbackRow(logID, value)
		} else {
			rows[i] = row
		}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (h *Handler) handleHistory(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)
	cs := h.chatSession(ctx, chatID, s)
	if cs == nil {
		h.telegram.SendMessage(chatID, "Open a group and start a /chat first.")
		return
	}
	if cs.Shared() {
		h.telegram.SendMessage(chatID, "History is only available for your own groups.")
		return
	}

	entries, err := cs.History(ctx)
	if err != nil {
		h.reportError(ctx, chatID, err, "load the chat history")
		return
	}
	if len(entries) == 0 {
		h.telegram.SendMessage(chatID, "🗒 No chat history for this group yet.")
		return
	}

	shown := entries
	if len(shown) > historyPageSize {
		shown = shown[len(shown)-historyPageSize:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗒 *Chat history* \\(last %d of %d\\)\n\n", len(shown), len(entries))
	for _, e := range shown {
		fmt.Fprintf(&b, "❓ _%s_\n%s\n", push.EscapeMarkdown(e.Question),
			push.EscapeMarkdown(trimLabel(e.Answer, 200)))
		meta := e.CreatedAt.Format("Jan 2 15:04")
		switch e.Feedback {
		case model.FeedbackGood:
			meta += " · 👍"
		case model.FeedbackBad:
			meta += " · 👎"
		}
		fmt.Fprintf(&b, "_%s_\n\n", push.EscapeMarkdown(meta))
	}
	b.WriteString("/export for the full log as CSV\\.")
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send chat history")
	}
}

// handleExport sends the group's chat log as a CSV document. Export
// failures are non-fatal; nothing about the chat state changes.
func (h *Handler) handleExport(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)
	cs := h.chatSession(ctx, chatID, s)
	if cs == nil {
		h.telegram.SendMessage(chatID, "Open a group and start a /chat first.")
		return
	}
	if cs.Shared() {
		h.telegram.SendMessage(chatID, "Export is only available for your own groups.")
		return
	}

	data, err := cs.ExportCSV(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Str("group", cs.GroupID()).Msg("Chat export failed")
		h.telegram.SendMessage(chatID, "⚠️ Export did not go through, try again later.")
		return
	}

	name := "chat-history-" + cs.GroupID() + ".csv"
	if err := h.telegram.SendDocument(chatID, name, data, "Chat history export"); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send export document")
	}
}

func trimLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
