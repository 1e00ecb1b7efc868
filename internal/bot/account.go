package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/fetch"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/push"
)

// handleLogin signs the chat in. The message carrying the credentials is
// deleted right away so neither email nor password stays in the chat
// history.
func (h *Handler) handleLogin(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID

	if !msg.Chat.IsPrivate() {
		h.telegram.SendMessage(chatID, "🔒 Please log in from a private chat with me.")
		return
	}

	email, password, found := strings.Cut(args, " ")
	password = strings.TrimSpace(password)
	if !found || email == "" || password == "" {
		h.telegram.SendMessage(chatID, "Usage: /login email password")
		return
	}

	if err := h.telegram.DeleteMessage(chatID, msg.MessageID); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("Failed to delete credentials message")
	}

	result, err := h.client.Login(ctx, email, password)
	if err != nil {
		if api.IsAuth(err) || api.IsValidation(err) {
			h.telegram.SendMessage(chatID, "❌ Invalid email or password.")
			return
		}
		h.reportError(ctx, chatID, err, "log you in")
		return
	}

	// A fresh login may be a different account; context bound to the old
	// one is dropped.
	s := h.session(ctx, chatID)
	s.Token = result.Token
	s.Email = result.User.Email
	s.ActiveGroupID = ""
	s.ChatMode = false
	h.saveSession(ctx, s)
	h.closeGroup(chatID)

	text := "✅ Logged in as *" + push.EscapeMarkdown(result.User.Email) + "*\n" +
		"I deleted your message so the password is not left in the chat\\.\n\n" +
		"/videos to browse your library, /upload to add to it\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send login confirmation")
	}
}

func (h *Handler) handleLogout(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)
	if s.LoggedIn() {
		if err := h.userClient(s).Logout(ctx); err != nil {
			log.Warn().Err(err).Int64("chat", chatID).Msg("Backend logout failed")
		}
	}

	if err := h.store.DeleteSession(ctx, chatID); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to delete session")
	}
	if err := h.store.DeleteWatches(ctx, chatID); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to delete watches")
	}

	h.closeGroup(chatID)
	st := h.state(chatID)
	h.mu.Lock()
	st.chat = nil
	st.selection = nil
	st.prefill = nil
	h.mu.Unlock()

	// Cached listings may belong to the account that just left.
	h.scenes.Clear()
	h.plans.Clear()

	h.telegram.SendMessage(chatID, "👋 Logged out. Your session and upload watches are gone.")
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)

	var lines []string
	lines = append(lines, "📊 *Bot Status*\n")

	if s.LoggedIn() {
		lines = append(lines, "👤 Logged in as "+push.EscapeMarkdown(s.Email))
	} else {
		lines = append(lines, "👤 Not logged in")
	}

	switch {
	case s.ActiveGroupID != "":
		lines = append(lines, "📁 Active group: `"+s.ActiveGroupID+"`")
	case s.ShareToken != "":
		lines = append(lines, "🌐 Viewing a shared group")
	}
	if s.ChatMode {
		lines = append(lines, "💬 Chat mode is on")
	}

	watches, err := h.store.GetWatches(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to count watches")
	} else if len(watches) > 0 {
		lines = append(lines, fmt.Sprintf("⏳ Waiting on %s to finish processing",
			push.EscapeMarkdown(formatCount(len(watches), "upload", "uploads"))))
	}

	if err := h.client.Health(ctx); err != nil {
		lines = append(lines, "🔴 Backend: unreachable")
	} else {
		lines = append(lines, "🟢 Backend: ok")
	}
	if err := h.store.Ping(ctx); err != nil {
		lines = append(lines, "🔴 Store: unreachable")
	} else {
		lines = append(lines, "🟢 Store: ok")
	}

	lines = append(lines, fmt.Sprintf("⏱ Uptime: %s", formatDuration(time.Since(h.startTime))))
	lines = append(lines, fmt.Sprintf("🕐 Started: %s", h.startTime.Format("2006\\-01\\-02 15:04:05")))

	if err := h.telegram.SendMarkdown(chatID, strings.Join(lines, "\n")); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send status")
	}
}

func (h *Handler) handleTags(ctx context.Context, chatID int64) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	tags, err := h.userClient(s).ListTags(ctx)
	if err != nil {
		h.reportError(ctx, chatID, err, "list your tags")
		return
	}
	if len(tags) == 0 {
		h.telegram.SendMessage(chatID, "🏷 No tags yet. Create one with /newtag name color.")
		return
	}

	var b strings.Builder
	b.WriteString("🏷 *Your tags*\n\n")
	for _, t := range tags {
		fmt.Fprintf(&b, "• *%s*", push.EscapeMarkdown(t.Name))
		if t.Color != "" {
			fmt.Fprintf(&b, " \\(%s\\)", push.EscapeMarkdown(t.Color))
		}
		fmt.Fprintf(&b, " `%s`\n", t.ID)
	}
	b.WriteString("\nAttach with /tagvideo videoId tagIds\\.")
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send tag listing")
	}
}

func (h *Handler) handleNewTag(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		h.telegram.SendMessage(chatID, "Usage: /newtag name [color]")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	color := ""
	if len(fields) > 1 {
		color = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}
	name := strings.Join(fields, " ")

	tag, err := h.userClient(s).CreateTag(ctx, name, color)
	if err != nil {
		h.reportError(ctx, chatID, err, "create the tag")
		return
	}
	h.telegram.SendMarkdown(chatID, "🏷 Created *"+push.EscapeMarkdown(tag.Name)+"* `"+tag.ID+"`")
}

func (h *Handler) handleEditTag(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.telegram.SendMessage(chatID, "Usage: /edittag id name [color]")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	id := fields[0]
	rest := fields[1:]
	color := ""
	if len(rest) > 1 {
		color = rest[len(rest)-1]
		rest = rest[:len(rest)-1]
	}
	name := strings.Join(rest, " ")

	tag, err := h.userClient(s).UpdateTag(ctx, id, name, color)
	if err != nil {
		h.reportError(ctx, chatID, err, "update the tag")
		return
	}
	h.telegram.SendMarkdown(chatID, "✏️ Tag is now *"+push.EscapeMarkdown(tag.Name)+"*")
}

func (h *Handler) handleDeleteTag(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /deltag id")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	if err := h.userClient(s).DeleteTag(ctx, args); err != nil {
		h.reportError(ctx, chatID, err, "delete the tag")
		return
	}
	h.telegram.SendMessage(chatID, "🗑 Tag deleted. It is detached from all videos.")
}

func (h *Handler) handleTagVideo(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		h.telegram.SendMessage(chatID, "Usage: /tagvideo videoId [tagIds...] (none clears)")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	videoID := fields[0]
	tagIDs := fields[1:]

	video, err := h.userClient(s).SetVideoTags(ctx, videoID, tagIDs)
	if err != nil {
		h.reportError(ctx, chatID, err, "retag the video")
		return
	}

	if len(video.Tags) == 0 {
		h.telegram.SendMarkdown(chatID, "🏷 *"+push.EscapeMarkdown(video.Title)+"* has no tags now\\.")
		return
	}
	names := make([]string, len(video.Tags))
	for i, t := range video.Tags {
		names[i] = t.Name
	}
	h.telegram.SendMarkdown(chatID, "🏷 *"+push.EscapeMarkdown(video.Title)+"*: "+
		push.EscapeMarkdown(strings.Join(names, ", ")))
}

// handlePlan shows the plan catalog, or starts checkout ("/plan id") or
// the billing portal ("/plan portal"). The catalog is public and cached;
// the current subscription is attached when the chat is logged in.
func (h *Handler) handlePlan(ctx context.Context, chatID int64, args string) {
	switch args {
	case "":
		h.sendPlanOverview(ctx, chatID)
	case "portal":
		s, ok := h.requireLogin(ctx, chatID)
		if !ok {
			return
		}
		session, err := h.userClient(s).CreatePortal(ctx)
		if err != nil {
			h.reportError(ctx, chatID, err, "open the billing portal")
			return
		}
		h.telegram.SendMarkdown(chatID, "💳 Manage your subscription here:\n"+push.EscapeMarkdown(session.URL))
	default:
		s, ok := h.requireLogin(ctx, chatID)
		if !ok {
			return
		}
		session, err := h.userClient(s).CreateCheckout(ctx, args)
		if err != nil {
			if api.IsNotFound(err) {
				h.telegram.SendMessage(chatID, "🔍 No plan with that id. /plan lists them.")
				return
			}
			h.reportError(ctx, chatID, err, "start the checkout")
			return
		}
		h.telegram.SendMarkdown(chatID, "💳 Complete the upgrade here:\n"+push.EscapeMarkdown(session.URL))
	}
}

func (h *Handler) sendPlanOverview(ctx context.Context, chatID int64) {
	plans, err := h.plans.Get(ctx, "plans", func(ctx context.Context) ([]model.Plan, error) {
		return fetch.WithRetry(ctx, h.config.MaxRetries, retryBaseWait, func(ctx context.Context) ([]model.Plan, error) {
			return h.client.ListPlans(ctx)
		})
	})
	if err != nil {
		h.reportError(ctx, chatID, err, "load the plans")
		return
	}

	currentPlan := ""
	s := h.session(ctx, chatID)
	if s.LoggedIn() {
		if sub, err := h.userClient(s).Subscription(ctx); err != nil {
			log.Warn().Err(err).Int64("chat", chatID).Msg("Failed to load subscription")
		} else {
			currentPlan = sub.PlanID
		}
	}

	var b strings.Builder
	b.WriteString("💳 *Plans*\n\n")
	for _, p := range plans {
		marker := ""
		if p.ID == currentPlan {
			marker = " ✅ current"
		}
		fmt.Fprintf(&b, "*%s*%s · %s\n", push.EscapeMarkdown(p.Name), marker,
			push.EscapeMarkdown(formatPrice(p.PriceCents, p.Currency)))
		fmt.Fprintf(&b, "%s videos, %s chats per day\n",
			push.EscapeMarkdown(formatLimit(p.VideoLimit)), push.EscapeMarkdown(formatLimit(p.ChatsPerDay)))
		if p.Description != "" {
			fmt.Fprintf(&b, "_%s_\n", push.EscapeMarkdown(p.Description))
		}
		fmt.Fprintf(&b, "`%s`\n\n", p.ID)
	}
	b.WriteString("Upgrade with /plan id, manage billing with /plan portal\\.")
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send plan overview")
	}
}

func formatPrice(cents int, currency string) string {
	if cents == 0 {
		return "free"
	}
	return fmt.Sprintf("%d.%02d %s/month", cents/100, cents%100, currency)
}

func formatLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

// handleSetKey stores the account's own OpenAI key on the backend. Like
// /login, the message carrying the secret is deleted immediately.
func (h *Handler) handleSetKey(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /setkey sk-...")
		return
	}

	if err := h.telegram.DeleteMessage(chatID, msg.MessageID); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("Failed to delete key message")
	}

	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	if err := h.userClient(s).SetOpenAIKey(ctx, args); err != nil {
		h.reportError(ctx, chatID, err, "store the key")
		return
	}
	h.telegram.SendMarkdown(chatID, "🔐 OpenAI key saved\\. I deleted your message so the key "+
		"is not left in the chat\\. Chat answers now use your own quota\\.")
}

func (h *Handler) handleDeleteKey(ctx context.Context, chatID int64) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	if err := h.userClient(s).DeleteOpenAIKey(ctx); err != nil {
		h.reportError(ctx, chatID, err, "remove the key")
		return
	}
	h.telegram.SendMessage(chatID, "🗑 OpenAI key removed.")
}

func (h *Handler) handleKeyStatus(ctx context.Context, chatID int64) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	status, err := h.userClient(s).OpenAIKeyStatus(ctx)
	if err != nil {
		h.reportError(ctx, chatID, err, "check the key")
		return
	}
	if !status.Configured {
		h.telegram.SendMessage(chatID, "🔓 No OpenAI key configured. /setkey to add one.")
		return
	}
	h.telegram.SendMarkdown(chatID, "🔐 Key configured, ends in `"+status.Last4+"`")
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
