package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/chat"
	"github.com/user/vidlib-bot-go/internal/fetch"
	"github.com/user/vidlib-bot-go/internal/grouplist"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/push"
	"github.com/user/vidlib-bot-go/internal/server"
)

// maxReorderButtons caps how many rows get arrow buttons; longer groups
// are reordered with /move.
const maxReorderButtons = 8

// scenesPrefetchTimeout bounds the popular-scenes warmup that runs in
// the background after a group is opened.
const scenesPrefetchTimeout = 15 * time.Second

func (h *Handler) handleGroups(ctx context.Context, chatID int64) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	groups, err := h.userClient(s).ListGroups(ctx)
	if err != nil {
		h.reportError(ctx, chatID, err, "list your groups")
		return
	}
	if len(groups) == 0 {
		h.telegram.SendMessage(chatID, "📭 You have no groups yet. Create one with /newgroup name.")
		return
	}

	var b strings.Builder
	b.WriteString("📂 *Your groups*\n\n")
	for i, g := range groups {
		marker := ""
		if g.Shared() {
			marker = " 🔗"
		}
		fmt.Fprintf(&b, "%d\\. 📁 *%s*%s \\(%s\\)\n    `%s`\n",
			i+1, push.EscapeMarkdown(g.Name), marker,
			push.EscapeMarkdown(formatCount(len(g.Videos), "video", "videos")), g.ID)
	}
	b.WriteString("\nOpen one with /group id\\.")
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send group listing")
	}
}

func (h *Handler) handleGroup(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /group id")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	gs, err := h.openGroupStore(ctx, chatID, s, args)
	if err != nil {
		if api.IsNotFound(err) {
			h.telegram.SendMessage(chatID, "🔍 No group with that id.")
			return
		}
		h.reportError(ctx, chatID, err, "open the group")
		return
	}

	// Opening a group makes it the chat context and replaces any share
	// context; the two are mutually exclusive.
	s = h.session(ctx, chatID)
	s.ActiveGroupID = args
	s.ShareToken = ""
	h.saveSession(ctx, s)

	// Warm the popular-scenes cache so the panel opens instantly, but
	// only for groups that have members to cite.
	group := gs.Group()
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), scenesPrefetchTimeout)
		defer cancel()
		fetch.Conditional(pctx, group != nil && len(group.Videos) > 0, nil,
			func(ctx context.Context) ([]model.PopularScene, error) {
				return h.loadScenes(ctx, s, gs.GroupID())
			})
	}()
}

// openGroupStore returns the chat's group store for groupID, opening a
// fresh one (and closing the previous) when a different group was open.
// Load renders the view through the OnChange hook.
func (h *Handler) openGroupStore(ctx context.Context, chatID int64, s *model.Session, groupID string) (*grouplist.Store, error) {
	st := h.state(chatID)

	h.mu.Lock()
	if st.group != nil && st.group.GroupID() == groupID {
		gs := st.group
		h.mu.Unlock()
		if err := gs.Refresh(ctx); err != nil {
			return nil, err
		}
		return gs, nil
	}
	h.mu.Unlock()

	gs := grouplist.NewStore(h.userClient(s), groupID)
	gs.OnChange = func(g *model.VideoGroup) {
		h.renderGroupView(chatID, gs, g)
	}
	gs.OnError = func(err error) {
		server.RecordReorder("reverted")
		h.telegram.SendMessage(chatID, "⚠️ Saving the new order failed, I restored the server's order.")
	}

	h.mu.Lock()
	if st.group != nil {
		st.group.Close()
	}
	st.group = gs
	st.groupMsgID = 0
	h.mu.Unlock()

	if err := gs.Load(ctx); err != nil {
		h.mu.Lock()
		if st.group == gs {
			st.group = nil
		}
		h.mu.Unlock()
		return nil, err
	}
	return gs, nil
}

// renderGroupView sends or edits the pinned group message. It runs on
// every snapshot change, including ones from background reconciles, so
// it ignores notifications from stores that are no longer open.
func (h *Handler) renderGroupView(chatID int64, gs *grouplist.Store, g *model.VideoGroup) {
	st := h.state(chatID)

	h.mu.Lock()
	if st.group != gs {
		h.mu.Unlock()
		return
	}
	msgID := st.groupMsgID
	h.mu.Unlock()

	text, keyboard := formatGroupView(g)

	if msgID != 0 {
		err := h.telegram.EditMarkdown(chatID, msgID, text, &keyboard)
		if err != nil && !strings.Contains(err.Error(), "message is not modified") {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to edit group view")
		}
		return
	}

	sent, err := h.telegram.SendMarkdownWithKeyboard(chatID, text, &keyboard)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send group view")
		return
	}
	h.mu.Lock()
	if st.group == gs {
		st.groupMsgID = sent
	}
	h.mu.Unlock()
}

func formatGroupView(g *model.VideoGroup) (string, tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "📁 *%s*\n", push.EscapeMarkdown(g.Name))
	if g.Description != "" {
		fmt.Fprintf(&b, "_%s_\n", push.EscapeMarkdown(g.Description))
	}
	if g.Shared() {
		fmt.Fprintf(&b, "🔗 Shared: %s\n", push.EscapeMarkdown(g.ShareURL))
	}
	b.WriteString("\n")

	if len(g.Videos) == 0 {
		b.WriteString("📭 No videos yet\\. Add some with /addvideos\\.")
	} else {
		for i, v := range g.Videos {
			fmt.Fprintf(&b, "%d\\. %s *%s*\n", i+1, statusIcon(v.Status), push.EscapeMarkdown(v.Title))
		}
		b.WriteString("\nReorder with the arrows or /move from to\\. /chat to ask about the group\\.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range g.Videos {
		if i >= maxReorderButtons {
			break
		}
		var row []tgbotapi.InlineKeyboardButton
		if i > 0 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("⬆️ %d", i+1), FormatMove(i, i-1)))
		}
		if i < len(g.Videos)-1 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("⬇️ %d", i+1), FormatMove(i, i+1)))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(g.Videos) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔥 Popular scenes", cbScenes)))
	}

	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) handleNewGroup(ctx context.Context, chatID int64, args string) {
	name, description := splitTitleDescription(args)
	if name == "" {
		h.telegram.SendMessage(chatID, "Usage: /newgroup name | description")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	group, err := h.userClient(s).CreateGroup(ctx, name, description)
	if err != nil {
		h.reportError(ctx, chatID, err, "create the group")
		return
	}
	text := "📁 Created *" + push.EscapeMarkdown(group.Name) + "*\n`" + group.ID + "`\n\n" +
		"Open it with /group " + push.EscapeMarkdown(group.ID) + ", then /addvideos\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send group created message")
	}
}

func (h *Handler) handleRenameGroup(ctx context.Context, chatID int64, args string) {
	name, description := splitTitleDescription(args)
	if name == "" {
		h.telegram.SendMessage(chatID, "Usage: /renamegroup name | description")
		return
	}
	if _, ok := h.requireLogin(ctx, chatID); !ok {
		return
	}

	gs := h.openGroup(chatID)
	if gs == nil {
		h.telegram.SendMessage(chatID, "Open a group first with /group id.")
		return
	}

	patch := model.GroupPatch{Name: &name}
	if description != "" {
		patch.Description = &description
	}
	if err := gs.Update(ctx, patch); err != nil {
		h.reportError(ctx, chatID, err, "update the group")
		return
	}
	h.telegram.SendMessage(chatID, "✏️ Group updated.")
}

func (h *Handler) handleDeleteGroup(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /delgroup id")
		return
	}
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	if err := h.userClient(s).DeleteGroup(ctx, args); err != nil {
		h.reportError(ctx, chatID, err, "delete the group")
		return
	}

	if gs := h.openGroup(chatID); gs != nil && gs.GroupID() == args {
		h.closeGroup(chatID)
		s = h.session(ctx, chatID)
		if s.ActiveGroupID == args {
			s.ActiveGroupID = ""
			h.saveSession(ctx, s)
		}
	}
	h.telegram.SendMessage(chatID, "🗑 Group deleted.")
}

// openGroup returns the chat's currently open group store, or nil.
func (h *Handler) openGroup(chatID int64) *grouplist.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[chatID]
	if !ok {
		return nil
	}
	return st.group
}

func (h *Handler) handleMove(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.telegram.SendMessage(chatID, "Usage: /move from to (1-based positions)")
		return
	}
	from, err1 := strconv.Atoi(fields[0])
	to, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		h.telegram.SendMessage(chatID, "Usage: /move from to (1-based positions)")
		return
	}
	if _, ok := h.requireLogin(ctx, chatID); !ok {
		return
	}

	gs := h.openGroup(chatID)
	if gs == nil {
		h.telegram.SendMessage(chatID, "Open a group first with /group id.")
		return
	}

	h.submitMove(ctx, gs, from-1, to-1)
	h.telegram.SendMessage(chatID, "↕️ Order updated.")
}

func (h *Handler) callbackMove(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	from, to, ok := ParseMove(cb.Data)
	if !ok {
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}
	gs := h.openGroup(chatID)
	if gs == nil {
		h.telegram.AnswerCallback(cb.ID, "Open the group again with /group id")
		return
	}
	h.submitMove(ctx, gs, from, to)
	h.telegram.AnswerCallback(cb.ID, "Order updated")
}

// submitMove commits a reorder locally and watches the background
// reconcile for the metrics counter. The view updates through OnChange;
// failures are reported through OnError.
func (h *Handler) submitMove(ctx context.Context, gs *grouplist.Store, from, to int) {
	done := gs.Move(ctx, from, to)
	go func() {
		if err := <-done; err == nil {
			server.RecordReorder("applied")
		}
	}()
}

func (h *Handler) handleRemove(ctx context.Context, chatID int64, args string) {
	if args == "" {
		h.telegram.SendMessage(chatID, "Usage: /remove videoId")
		return
	}
	if _, ok := h.requireLogin(ctx, chatID); !ok {
		return
	}

	gs := h.openGroup(chatID)
	if gs == nil {
		h.telegram.SendMessage(chatID, "Open a group first with /group id.")
		return
	}

	if err := gs.RemoveVideo(ctx, args); err != nil {
		if api.IsNotFound(err) {
			h.telegram.SendMessage(chatID, "🔍 That video is not in the group.")
			return
		}
		h.reportError(ctx, chatID, err, "remove the video")
		return
	}
	h.telegram.SendMessage(chatID, "➖ Removed from the group.")
}

// handleAddVideos opens the checkbox picker for adding library videos to
// a group. With no id the currently open group is used.
func (h *Handler) handleAddVideos(ctx context.Context, chatID int64, args string) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	fields := strings.Fields(args)
	groupID := ""
	query := ""
	if len(fields) > 0 {
		groupID = fields[0]
		query = strings.Join(fields[1:], " ")
	}
	if groupID == "" {
		if gs := h.openGroup(chatID); gs != nil {
			groupID = gs.GroupID()
		}
	}
	if groupID == "" {
		h.telegram.SendMessage(chatID, "Usage: /addvideos groupId [query]")
		return
	}

	if _, err := h.openGroupStore(ctx, chatID, s, groupID); err != nil {
		h.reportError(ctx, chatID, err, "open the group")
		return
	}

	st := h.state(chatID)
	h.mu.Lock()
	st.selection = make(map[string]bool)
	st.selQuery = query
	st.selPage = 1
	st.selMsgID = 0
	h.mu.Unlock()

	h.renderSelection(ctx, chatID, s)
}

// renderSelection draws the bulk-add picker: one page of library videos
// as checkbox buttons plus navigation and Done/Cancel controls.
func (h *Handler) renderSelection(ctx context.Context, chatID int64, s *model.Session) {
	st := h.state(chatID)
	h.mu.Lock()
	gs := st.group
	selection := st.selection
	query := st.selQuery
	page := st.selPage
	msgID := st.selMsgID
	h.mu.Unlock()

	if gs == nil || selection == nil {
		return
	}

	list, err := h.userClient(s).ListVideos(ctx, api.ListVideosOptions{
		Query: query,
		Sort:  "uploaded_desc",
		Page:  page,
		Limit: selectPageSize,
	})
	if err != nil {
		h.reportError(ctx, chatID, err, "list videos to add")
		return
	}

	group := gs.Group()
	groupName := gs.GroupID()
	if group != nil {
		groupName = group.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "➕ *Add videos to %s*\n", push.EscapeMarkdown(groupName))
	if query != "" {
		fmt.Fprintf(&b, "Filter: _%s_\n", push.EscapeMarkdown(query))
	}
	fmt.Fprintf(&b, "Selected: %d\n\nTap videos to select, then Done\\.", countSelected(selection))

	pages := (list.Total + selectPageSize - 1) / selectPageSize
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, v := range list.Videos {
		box := "⬜"
		if selection[v.ID] {
			box = "☑️"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(box+" "+v.Title, FormatSelect(v.ID))))
	}
	var nav []tgbotapi.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️", FormatSelectPage(page-1)))
	}
	if page < pages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", FormatSelectPage(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbSelectDone),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbSelectCancel)))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)

	if msgID != 0 {
		err := h.telegram.EditMarkdown(chatID, msgID, b.String(), &keyboard)
		if err != nil && !strings.Contains(err.Error(), "message is not modified") {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to edit selection picker")
		}
		return
	}
	sent, err := h.telegram.SendMarkdownWithKeyboard(chatID, b.String(), &keyboard)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send selection picker")
		return
	}
	h.mu.Lock()
	st.selMsgID = sent
	h.mu.Unlock()
}

func countSelected(selection map[string]bool) int {
	n := 0
	for _, on := range selection {
		if on {
			n++
		}
	}
	return n
}

func (h *Handler) callbackSelect(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	videoID, ok := ParseSelect(cb.Data)
	if !ok {
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}

	st := h.state(chatID)
	h.mu.Lock()
	if st.selection == nil {
		h.mu.Unlock()
		h.telegram.AnswerCallback(cb.ID, "Start over with /addvideos")
		return
	}
	st.selection[videoID] = !st.selection[videoID]
	selected := st.selection[videoID]
	h.mu.Unlock()

	if selected {
		h.telegram.AnswerCallback(cb.ID, "Selected")
	} else {
		h.telegram.AnswerCallback(cb.ID, "Removed from selection")
	}

	s := h.session(ctx, chatID)
	h.renderSelection(ctx, chatID, s)
}

func (h *Handler) callbackSelectPage(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	page, ok := ParseSelectPage(cb.Data)
	if !ok {
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}

	st := h.state(chatID)
	h.mu.Lock()
	active := st.selection != nil
	st.selPage = page
	h.mu.Unlock()

	h.telegram.AnswerCallback(cb.ID, "")
	if active {
		s := h.session(ctx, chatID)
		h.renderSelection(ctx, chatID, s)
	}
}

// callbackSelectDone submits the picked videos as one bulk request. An
// empty selection never reaches the backend: the picker stays open and
// the tap is answered with a validation toast.
func (h *Handler) callbackSelectDone(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	st := h.state(chatID)
	h.mu.Lock()
	gs := st.group
	var ids []string
	for id, on := range st.selection {
		if on {
			ids = append(ids, id)
		}
	}
	msgID := st.selMsgID
	h.mu.Unlock()

	if gs == nil {
		h.telegram.AnswerCallback(cb.ID, "Start over with /addvideos")
		return
	}
	if len(ids) == 0 {
		h.telegram.AnswerCallback(cb.ID, "Select at least one video first")
		return
	}

	res, err := gs.AddVideos(ctx, ids)
	if err != nil {
		h.telegram.AnswerCallback(cb.ID, "Adding failed")
		h.reportError(ctx, chatID, err, "add the videos")
		return
	}

	h.mu.Lock()
	st.selection = nil
	st.selQuery = ""
	st.selMsgID = 0
	h.mu.Unlock()

	h.telegram.AnswerCallback(cb.ID, "Added")
	text := fmt.Sprintf("✅ Added %s, skipped %d already in the group\\.",
		push.EscapeMarkdown(formatCount(res.AddedCount, "video", "videos")), res.SkippedCount)
	if msgID != 0 {
		if err := h.telegram.EditMarkdown(chatID, msgID, text, nil); err != nil {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to close selection picker")
		}
	}
}

func (h *Handler) callbackSelectCancel(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	st := h.state(chatID)
	h.mu.Lock()
	msgID := st.selMsgID
	st.selection = nil
	st.selQuery = ""
	st.selMsgID = 0
	h.mu.Unlock()

	h.telegram.AnswerCallback(cb.ID, "")
	if msgID != 0 {
		if err := h.telegram.EditMarkdown(chatID, msgID, "Selection cancelled\\.", nil); err != nil {
			log.Error().Err(err).Int64("chat", chatID).Msg("Failed to close selection picker")
		}
	}
}

// handleScenes shows the most-cited moments of the open group. Results
// come from the TTL cache; a fresh load retries like any other listing.
func (h *Handler) handleScenes(ctx context.Context, chatID int64) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	gs := h.openGroup(chatID)
	if gs == nil {
		h.telegram.SendMessage(chatID, "Open a group first with /group id.")
		return
	}

	scenes, err := h.loadScenes(ctx, s, gs.GroupID())
	if err != nil {
		h.reportError(ctx, chatID, err, "load popular scenes")
		return
	}
	if len(scenes) == 0 {
		h.telegram.SendMessage(chatID, "🔥 No popular scenes yet. Ask some questions with /chat first.")
		return
	}

	group := gs.Group()
	groupName := gs.GroupID()
	if group != nil {
		groupName = group.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔥 *Popular scenes of %s*\n\n", push.EscapeMarkdown(groupName))
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, scene := range scenes {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%d\\. *%s* at %s\n", i+1,
			push.EscapeMarkdown(scene.Title), push.EscapeMarkdown(scene.StartTime))
		if scene.Question != "" {
			fmt.Fprintf(&b, "    _asked: %s_\n", push.EscapeMarkdown(scene.Question))
		}
		seconds := chat.ParseTimestamp(scene.StartTime)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(
				fmt.Sprintf("▶️ %d · %s", i+1, scene.StartTime),
				chat.WatchLink(h.config.WebBaseURL, scene.VideoID, seconds))))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.telegram.SendMarkdownWithKeyboard(chatID, b.String(), &keyboard); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send popular scenes")
	}
}

// loadScenes reads the popular scenes of a group through the TTL cache.
func (h *Handler) loadScenes(ctx context.Context, s *model.Session, groupID string) ([]model.PopularScene, error) {
	return h.scenes.Get(ctx, groupID, func(ctx context.Context) ([]model.PopularScene, error) {
		return fetch.WithRetry(ctx, h.config.MaxRetries, retryBaseWait, func(ctx context.Context) ([]model.PopularScene, error) {
			return h.userClient(s).PopularScenes(ctx, groupID)
		})
	})
}

func (h *Handler) handleShare(ctx context.Context, chatID int64, args string) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	var link *model.ShareLink
	var err error
	gs := h.openGroup(chatID)
	switch {
	case args == "" && gs == nil:
		h.telegram.SendMessage(chatID, "Usage: /share groupId (or open a group first)")
		return
	case args == "" || (gs != nil && gs.GroupID() == args):
		link, err = gs.Share(ctx)
	default:
		link, err = h.userClient(s).ShareGroup(ctx, args)
	}
	if err != nil {
		h.reportError(ctx, chatID, err, "share the group")
		return
	}

	text := "🔗 *Share link*\n" + push.EscapeMarkdown(link.URL) + "\n\n" +
		"Anyone with the link can view the group and chat about its videos, no account needed\\. " +
		"Revoke it with /unshare\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send share link")
	}
}

func (h *Handler) handleUnshare(ctx context.Context, chatID int64, args string) {
	s, ok := h.requireLogin(ctx, chatID)
	if !ok {
		return
	}

	var err error
	gs := h.openGroup(chatID)
	switch {
	case args == "" && gs == nil:
		h.telegram.SendMessage(chatID, "Usage: /unshare groupId (or open a group first)")
		return
	case args == "" || (gs != nil && gs.GroupID() == args):
		err = gs.Unshare(ctx)
	default:
		err = h.userClient(s).UnshareGroup(ctx, args)
	}
	if err != nil {
		h.reportError(ctx, chatID, err, "revoke the share link")
		return
	}
	h.telegram.SendMessage(chatID, "🔒 Share link revoked. Existing links stop working immediately.")
}

// handleOpen resolves a share link or bare token and makes it the chat
// context. Works without a login; shared access is read-only plus chat.
func (h *Handler) handleOpen(ctx context.Context, chatID int64, args string) {
	token := parseShareToken(args)
	if token == "" {
		h.telegram.SendMessage(chatID, "Usage: /open share-link-or-token")
		return
	}

	group, err := h.client.SharedGroup(ctx, token)
	if err != nil {
		if api.IsNotFound(err) {
			h.telegram.SendMessage(chatID, "🔍 That share link is unknown or was revoked.")
			return
		}
		h.reportError(ctx, chatID, err, "open the shared group")
		return
	}

	s := h.session(ctx, chatID)
	s.ShareToken = token
	s.ActiveGroupID = ""
	h.saveSession(ctx, s)
	h.closeGroup(chatID)

	var b strings.Builder
	fmt.Fprintf(&b, "🌐 *%s* \\(shared\\)\n", push.EscapeMarkdown(group.Name))
	if group.Description != "" {
		fmt.Fprintf(&b, "_%s_\n", push.EscapeMarkdown(group.Description))
	}
	b.WriteString("\n")
	for i, v := range group.Videos {
		fmt.Fprintf(&b, "%d\\. %s *%s*\n", i+1, statusIcon(v.Status), push.EscapeMarkdown(v.Title))
	}
	b.WriteString("\n💬 /chat to ask about these videos\\.")
	if err := h.telegram.SendMarkdown(chatID, b.String()); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send shared group")
	}
}

// parseShareToken accepts either a bare token or a full share URL of the
// form {base}/share/{token}[?query][#fragment].
func parseShareToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "/share/"); i >= 0 {
		s = s[i+len("/share/"):]
		if j := strings.IndexAny(s, "?#/"); j >= 0 {
			s = s[:j]
		}
	}
	return s
}
