package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/chat"
	"github.com/user/vidlib-bot-go/internal/fetch"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/push"
	"github.com/user/vidlib-bot-go/internal/server"
)

func (h *Handler) handleVideos(ctx context.Context, chatID int64, args string) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	page := 1
	if args != "" {
		p, err := strconv.Atoi(args)
		if err != nil || p < 1 {
			h.telegram.SendMessage(chatID, "Usage: /videos [page]")
			return
		}
		page = p
	}

	h.sendVideoPage(ctx, chatID, s, page, 0)
}

// sendVideoPage renders one page of the library. With editMsgID set the
// existing listing message is edited in place instead of sending a new
// one; page flips via the arrow buttons go through that path.
func (h *Handler) sendVideoPage(ctx context.Context, chatID int64, s *model.Session, page, editMsgID int) {
	client := h.userClient(s)
	list, err := fetch.WithRetry(ctx, h.config.MaxRetries, retryBaseWait, func(ctx context.Context) (*model.VideoList, error) {
		return client.ListVideos(ctx, api.ListVideosOptions{
			Sort:  "uploaded_desc",
			Page:  page,
			Limit: videoPageSize,
		})
	})
	if err != nil {
		h.reportError(ctx, chatID, err, "list your videos")
		return
	}

	if list.Total == 0 {
		h.telegram.SendMessage(chatID, "📭 Your library is empty. Send me a video file or see /upload.")
		return
	}

	pages := (list.Total + videoPageSize - 1) / videoPageSize
	if page > pages {
		page = pages
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎬 *Your videos* \\(page %d of %d, %s\\)\n\n",
		page, pages, push.EscapeMarkdown(formatCount(list.Total, "video", "videos")))
	for i, v := range list.Videos {
		fmt.Fprintf(&b, "%d\\. %s *%s*\n    `%s`\n",
			(page-1)*videoPageSize+i+1, statusIcon(v.Status), push.EscapeMarkdown(v.Title), v.ID)
	}
	b.WriteString("\nUse /video id for details\\.")

	var nav []tgbotapi.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️ Prev", FormatPage(page-1)))
	}
	if page < pages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ▶️", FormatPage(page+1)))
	}

	var keyboard *tgbotapi.InlineKeyboardMarkup
	if len(nav) > 0 {
		kb := tgbotapi.NewInlineKeyboardMarkup(nav)
		keyboard = &kb
	}

	if editMsgID != 0 {
		if err := h.telegram.EditMarkdown(chatID, editMsgID, b.String(), keyboard); err != nil {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to edit video listing")
		}
		return
	}
	if _, err := h.telegram.SendMarkdownWithKeyboard(chatID, b.String(), keyboard); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send video listing")
	}
}

func (h *Handler) callbackPage(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	page, ok := ParsePage(cb.Data)
	if !ok {
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}
	s, loggedIn := h.requireLogin(ctx, chatID)
	if !loggedIn {
		h.telegram.AnswerCallback(cb.ID, "Not logged in")
		return
	}
	h.telegram.AnswerCallback(cb.ID, "")
	h.sendVideoPage(ctx, chatID, s, page, cb.Message.MessageID)
}

func (h *Handler) handleVideo(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /video id")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	video, err := h.userClient(s).GetVideo(ctx, args)
	if err != nil {
		if api.IsNotFound(err) {
			h.telegram.SendMessage(chatID, "🔍 No video with that id.")
			return
		}
		h.reportError(ctx, chatID, err, "load the video")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n`%s`\n", statusIcon(video.Status), push.EscapeMarkdown(video.Title), video.ID)
	if video.Description != "" {
		fmt.Fprintf(&b, "_%s_\n", push.EscapeMarkdown(video.Description))
	}
	fmt.Fprintf(&b, "\nStatus: %s\n", push.EscapeMarkdown(string(video.Status)))
	fmt.Fprintf(&b, "Uploaded: %s\n", push.EscapeMarkdown(video.UploadedAt.Format("2006-01-02 15:04")))
	if len(video.Tags) > 0 {
		names := make([]string, len(video.Tags))
		for i, t := range video.Tags {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, "Tags: %s\n", push.EscapeMarkdown(strings.Join(names, ", ")))
	}
	switch {
	case video.Status == model.StatusError && video.ErrorMessage != "":
		fmt.Fprintf(&b, "\n❌ %s\n", push.EscapeMarkdown(video.ErrorMessage))
	case video.Transcript != "":
		b.WriteString("\n📝 Transcript is ready, ask about it with /chat\\.\n")
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("▶️ Watch", chat.WatchLink(h.config.WebBaseURL, video.ID, 0)),
		),
	)
	if _, err := h.telegram.SendMarkdownWithKeyboard(chatID, b.String(), &kb); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send video details")
	}
}

func (h *Handler) handleSearch(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /search query")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	list, err := h.userClient(s).ListVideos(ctx, api.ListVideosOptions{Query: args, Limit: 5})
	if err != nil {
		h.reportError(ctx, chatID, err, "search your videos")
		return
	}
	if len(list.Videos) == 0 {
		h.telegram.SendMessage(chatID, "🔍 Nothing matched \""+args+"\".")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Results for* _%s_\n\n", push.EscapeMarkdown(args))
	for i, v := range list.Videos {
		fmt.Fprintf(&b, "%d\\. %s *%s*\n    `%s`\n", i+1, statusIcon(v.Status), push.EscapeMarkdown(v.Title), v.ID)
	}
	if list.Total > len(list.Videos) {
		fmt.Fprintf(&b, "\n%s in total\\.", push.EscapeMarkdown(formatCount(list.Total, "match", "matches")))
	}
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send search results")
	}
}

func (h *Handler) handleUploadHelp(ctx context.Context, chatID int64) {
	st := h.state(chatID)
	h.mu.Lock()
	prefill := st.prefill
	h.mu.Unlock()

	text := "⬆️ *Uploading*\n\n" +
		"Send me a video file \\(as video or document\\) and I add it to your library\\. " +
		"Use the caption as the title, or `title | description` for both\\.\n\n" +
		"Processing runs on the backend; I message you when the transcript is ready\\."
	if prefill != nil {
		text += "\n\n📋 Next upload is prefilled from /import: *" + push.EscapeMarkdown(prefill.Title) + "*"
	}
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send upload help")
	}
}

func (h *Handler) handleImport(ctx context.Context, chatID int64, args string) {
	if !strings.HasPrefix(args, "http://") && !strings.HasPrefix(args, "https://") {
		h.telegram.SendMessage(chatID, "Usage: /import url")
		return
	}
	if _, ok := h.requireLogin(ctx, chatID); !ok {
		return
	}

	meta, err := h.links.Fetch(ctx, args)
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Str("url", args).Msg("Link metadata fetch failed")
		h.telegram.SendMessage(chatID, "⚠️ Could not read metadata from that page.")
		return
	}
	if meta.Title == "" {
		h.telegram.SendMessage(chatID, "⚠️ That page has no usable title metadata.")
		return
	}

	st := h.state(chatID)
	h.mu.Lock()
	st.prefill = meta
	h.mu.Unlock()

	text := "📋 Prefilled from the link: *" + push.EscapeMarkdown(meta.Title) + "*\n" +
		"Send your video file now and I use it as title and description\\. " +
		"A caption on the file overrides the prefill\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send import confirmation")
	}
}

// handleUpload ingests a video or document attachment: download from
// Telegram, stream to the backend, then watch the new record so the chat
// hears about the processing outcome.
func (h *Handler) handleUpload(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	var fileID, fileName string
	switch {
	case msg.Video != nil:
		fileID = msg.Video.FileID
		fileName = msg.Video.FileName
		if fileName == "" {
			fileName = "video.mp4"
		}
	case msg.Document != nil:
		fileID = msg.Document.FileID
		fileName = msg.Document.FileName
		if fileName == "" {
			fileName = "upload.bin"
		}
	default:
		return
	}

	title, description := splitTitleDescription(msg.Caption)
	st := h.state(chatID)
	h.mu.Lock()
	if title == "" && st.prefill != nil {
		title = st.prefill.Title
		description = st.prefill.Description
	}
	st.prefill = nil
	h.mu.Unlock()
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	h.telegram.SendMessage(chatID, "⬆️ Uploading \""+title+"\" to your library...")

	reader, err := h.telegram.FileReader(ctx, fileID)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to download attachment")
		h.telegram.SendMessage(chatID, "⚠️ Could not download that file from Telegram.")
		return
	}
	defer reader.Close()

	video, err := h.userClient(s).UploadVideo(ctx, title, description, fileName, reader)
	if err != nil {
		h.reportError(ctx, chatID, err, "upload the video")
		return
	}

	if err := h.store.AddWatch(ctx, &model.Watch{
		ChatID:  chatID,
		VideoID: video.ID,
		Title:   video.Title,
	}); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Str("video", video.ID).Msg("Failed to add watch")
	} else {
		server.RecordUploadWatched()
	}

	text := "✅ *" + push.EscapeMarkdown(video.Title) + "* uploaded\n" +
		"`" + video.ID + "`\n\n" +
		"⏳ Processing has started\\. I message you here when the transcript is ready\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send upload confirmation")
	}
}

func (h *Handler) handleEditVideo(ctx context.Context, chatID int64, args string) {
	id, title, _ := strings.Cut(args, " ")
	title = strings.TrimSpace(title)
	if id == "" || title == "" {
		h.telegram.SendMessage(chatID, "Usage: /editvideo id new title")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	video, err := h.userClient(s).UpdateVideo(ctx, id, model.VideoPatch{Title: &title})
	if err != nil {
		h.reportError(ctx, chatID, err, "rename the video")
		return
	}
	h.telegram.SendMarkdown(chatID, "✏️ Renamed to *"+push.EscapeMarkdown(video.Title)+"*")
}

func (h *Handler) handleDeleteVideo(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /delvideo id")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	if err := h.userClient(s).DeleteVideo(ctx, args); err != nil {
		h.reportError(ctx, chatID, err, "delete the video")
		return
	}
	// The processing watch, if any, is now pointless.
	if err := h.store.DeleteWatch(ctx, chatID, args); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Str("video", args).Msg("Failed to delete watch")
	}
	h.telegram.SendMessage(chatID, "🗑 Video deleted.")
}

// handleInlineQuery serves @botname searches. Keystrokes arrive as a
// burst of queries; the per-user debouncer collapses them into one
// backend search whose result answers every pending query.
func (h *Handler) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) {
	userID := q.From.ID
	query := strings.TrimSpace(q.Query)

	s := h.session(ctx, userID)
	if !s.LoggedIn() || query == "" {
		h.telegram.AnswerInline(q.ID, nil)
		return
	}

	st := h.state(userID)
	h.mu.Lock()
	if st.search == nil {
		st.search = fetch.NewDebouncer[[]model.Video](h.config.SearchDebounce)
	}
	deb := st.search
	h.mu.Unlock()

	client := h.userClient(s)
	videos, err := deb.Do(ctx, func(ctx context.Context) ([]model.Video, error) {
		list, err := client.ListVideos(ctx, api.ListVideosOptions{Query: query, Limit: 5})
		if err != nil {
			return nil, err
		}
		return list.Videos, nil
	})
	if err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Inline search failed")
		h.telegram.AnswerInline(q.ID, nil)
		return
	}

	results := make([]interface{}, 0, len(videos))
	for _, v := range videos {
		article := tgbotapi.NewInlineQueryResultArticle(
			v.ID,
			v.Title,
			fmt.Sprintf("🎬 %s\n%s", v.Title, chat.WatchLink(h.config.WebBaseURL, v.ID, 0)),
		)
		article.Description = statusIcon(v.Status) + " " + string(v.Status)
		results = append(results, article)
	}
	if err := h.telegram.AnswerInline(q.ID, results); err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("Failed to answer inline query")
	}
}
