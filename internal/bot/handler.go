// Package bot implements the Telegram front-end: command routing, inline
// keyboards and the per-chat UI state that glues the backend client, the
// group list store and chat sessions together.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/cache"
	"github.com/user/vidlib-bot-go/internal/chat"
	"github.com/user/vidlib-bot-go/internal/fetch"
	"github.com/user/vidlib-bot-go/internal/grouplist"
	"github.com/user/vidlib-bot-go/internal/linkmeta"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/push"
	"github.com/user/vidlib-bot-go/internal/server"
	"github.com/user/vidlib-bot-go/internal/store"
)

const (
	videoPageSize  = 8
	selectPageSize = 6
	retryBaseWait  = 500 * time.Millisecond
)

// Config holds handler settings.
type Config struct {
	Username       string
	WebBaseURL     string
	SearchDebounce time.Duration
	ScenesTTL      time.Duration
	PlansTTL       time.Duration
	MaxRetries     int
}

// chatState is the transient per-chat UI state. The durable part of a
// chat's context (token, active group, chat mode) lives in the session
// store; everything here is rebuilt lazily after a restart. All fields
// are guarded by Handler.mu.
type chatState struct {
	group      *grouplist.Store
	groupMsgID int

	chat *chat.Session

	selection map[string]bool
	selQuery  string
	selPage   int
	selMsgID  int

	prefill *linkmeta.Meta
	search  *fetch.Debouncer[[]model.Video]
}

// Handler processes Telegram updates.
type Handler struct {
	store    store.Store
	client   *api.Client
	telegram Telegram
	links    *linkmeta.Fetcher
	config   *Config

	scenes *cache.Store[[]model.PopularScene]
	plans  *cache.Store[[]model.Plan]

	startTime time.Time

	mu     sync.Mutex
	states map[int64]*chatState
}

// NewHandler creates a new update handler. The client must be the
// unauthenticated base client; per-chat tokens are attached on demand.
func NewHandler(st store.Store, client *api.Client, telegram Telegram, links *linkmeta.Fetcher, config *Config) *Handler {
	scenes := cache.New[[]model.PopularScene](config.ScenesTTL)
	scenes.OnEvent = server.RecordCacheEvent
	plans := cache.New[[]model.Plan](config.PlansTTL)
	plans.OnEvent = server.RecordCacheEvent

	return &Handler{
		store:     st,
		client:    client,
		telegram:  telegram,
		links:     links,
		config:    config,
		scenes:    scenes,
		plans:     plans,
		startTime: time.Now(),
		states:    make(map[int64]*chatState),
	}
}

// HandleUpdate processes a single Telegram update.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.InlineQuery != nil:
		h.handleInlineQuery(ctx, update.InlineQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, msg)
	case msg.Video != nil || msg.Document != nil:
		h.handleUpload(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		s := h.session(ctx, chatID)
		if s.ChatMode {
			h.handleChatText(ctx, chatID, s, msg.Text)
			return
		}
		if msg.Chat.IsPrivate() {
			h.telegram.SendMessage(chatID, "Not in chat mode. Use /chat to talk about a group, or /help for commands.")
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	log.Debug().
		Int64("chat", chatID).
		Str("command", msg.Command()).
		Msg("Handling command")

	switch msg.Command() {
	case "start":
		h.handleStart(chatID)
	case "help":
		h.handleHelp(chatID)
	case "login":
		h.handleLogin(ctx, msg, args)
	case "logout":
		h.handleLogout(ctx, chatID)
	case "status":
		h.handleStatus(ctx, chatID)
	case "videos":
		h.handleVideos(ctx, chatID, args)
	case "video":
		h.handleVideo(ctx, chatID, args)
	case "search":
		h.handleSearch(ctx, chatID, args)
	case "upload":
		h.handleUploadHelp(ctx, chatID)
	case "import":
		h.handleImport(ctx, chatID, args)
	case "editvideo":
		h.handleEditVideo(ctx, chatID, args)
	case "delvideo":
		h.handleDeleteVideo(ctx, chatID, args)
	case "groups":
		h.handleGroups(ctx, chatID)
	case "group":
		h.handleGroup(ctx, chatID, args)
	case "newgroup":
		h.handleNewGroup(ctx, chatID, args)
	case "renamegroup":
		h.handleRenameGroup(ctx, chatID, args)
	case "delgroup":
		h.handleDeleteGroup(ctx, chatID, args)
	case "addvideos":
		h.handleAddVideos(ctx, chatID, args)
	case "move":
		h.handleMove(ctx, chatID, args)
	case "remove":
		h.handleRemove(ctx, chatID, args)
	case "scenes":
		h.handleScenes(ctx, chatID)
	case "share":
		h.handleShare(ctx, chatID, args)
	case "unshare":
		h.handleUnshare(ctx, chatID, args)
	case "open":
		h.handleOpen(ctx, chatID, args)
	case "chat":
		h.handleChat(ctx, chatID, args)
	case "endchat":
		h.handleEndChat(ctx, chatID)
	case "history":
		h.handleHistory(ctx, chatID)
	case "export":
		h.handleExport(ctx, chatID)
	case "tags":
		h.handleTags(ctx, chatID)
	case "newtag":
		h.handleNewTag(ctx, chatID, args)
	case "edittag":
		h.handleEditTag(ctx, chatID, args)
	case "deltag":
		h.handleDeleteTag(ctx, chatID, args)
	case "tagvideo":
		h.handleTagVideo(ctx, chatID, args)
	case "plan":
		h.handlePlan(ctx, chatID, args)
	case "setkey":
		h.handleSetKey(ctx, msg, args)
	case "delkey":
		h.handleDeleteKey(ctx, chatID)
	case "keystatus":
		h.handleKeyStatus(ctx, chatID)
	default:
		h.telegram.SendMessage(chatID, "Unknown command. Use /help to see what I can do.")
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		// Buttons on inline-mode results carry no chat context.
		h.telegram.AnswerCallback(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case data == cbScenes:
		h.telegram.AnswerCallback(cb.ID, "")
		h.handleScenes(ctx, chatID)
	case data == cbSelectDone:
		h.callbackSelectDone(ctx, chatID, cb)
	case data == cbSelectCancel:
		h.callbackSelectCancel(ctx, chatID, cb)
	case strings.HasPrefix(data, cbMove+":"):
		h.callbackMove(ctx, chatID, cb)
	case strings.HasPrefix(data, cbFeedback+":"):
		h.callbackFeedback(ctx, chatID, cb)
	case strings.HasPrefix(data, cbSelectPage+":"):
		h.callbackSelectPage(ctx, chatID, cb)
	case strings.HasPrefix(data, cbSelect+":"):
		h.callbackSelect(ctx, chatID, cb)
	case strings.HasPrefix(data, cbPage+":"):
		h.callbackPage(ctx, chatID, cb)
	default:
		h.telegram.AnswerCallback(cb.ID, "")
	}
}

func (h *Handler) handleStart(chatID int64) {
	text := "👋 *Welcome\\!*\n\n" +
		"I am the Telegram front\\-end for your video library\\. Upload videos, " +
		"organize them into groups and ask questions about what was said in them\\.\n\n" +
		"Start with /login, then /upload a video or /videos to browse\\. " +
		"/help lists everything I can do\\."
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send start message")
	}
}

func (h *Handler) handleHelp(chatID int64) {
	text := "🤖 *Video Library Bot*\n\n" +
		"*Account*\n" +
		"/login email password \\- sign in to the backend\n" +
		"/logout \\- sign out and forget the session\n" +
		"/status \\- session, backend and watch overview\n\n" +
		"*Library*\n" +
		"/videos \\- list your videos\n" +
		"/video id \\- show one video\n" +
		"/search query \\- search the library\n" +
		"/upload \\- how to upload a video\n" +
		"/import url \\- prefill the next upload from a page link\n" +
		"/editvideo id title \\- rename a video\n" +
		"/delvideo id \\- delete a video\n\n" +
		"*Groups*\n" +
		"/groups \\- list your groups\n" +
		"/group id \\- open a group\n" +
		"/newgroup name \\- create a group\n" +
		"/renamegroup name \\- rename the open group\n" +
		"/delgroup id \\- delete a group\n" +
		"/addvideos id \\- pick videos to add\n" +
		"/move from to \\- reorder the open group\n" +
		"/remove id \\- remove a video from the open group\n" +
		"/scenes \\- popular scenes of the open group\n" +
		"/share and /unshare \\- manage the public link\n" +
		"/open link \\- open a shared group\n\n" +
		"*Chat*\n" +
		"/chat \\- ask about the open group or shared link\n" +
		"/endchat \\- leave chat mode\n" +
		"/history \\- recent questions and answers\n" +
		"/export \\- download the chat log as CSV\n\n" +
		"*Tags*\n" +
		"/tags, /newtag name color, /edittag id name, /deltag id\n" +
		"/tagvideo videoId tagIds \\- retag a video\n\n" +
		"*Billing and keys*\n" +
		"/plan \\- plans, /plan id \\- checkout, /plan portal \\- billing portal\n" +
		"/setkey key \\- store your OpenAI key, /delkey, /keystatus\n\n" +
		"You can also mention me inline in any chat to search: " +
		"@" + push.EscapeMarkdown(h.config.Username) + " query"
	if err := h.telegram.SendMarkdown(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send help message")
	}
}

// state returns the transient UI state for a chat, creating it on first
// use. Callers must not hold h.mu.
func (h *Handler) state(chatID int64) *chatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[chatID]
	if !ok {
		st = &chatState{}
		h.states[chatID] = st
	}
	return st
}

// session loads the durable session row for a chat. A chat that never
// logged in gets a fresh zero-value session.
func (h *Handler) session(ctx context.Context, chatID int64) *model.Session {
	s, err := h.store.GetSession(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("Failed to load session")
	}
	if s == nil {
		s = &model.Session{ChatID: chatID}
	}
	return s
}

func (h *Handler) saveSession(ctx context.Context, s *model.Session) {
	if err := h.store.SaveSession(ctx, s); err != nil {
		log.Error().Err(err).Int64("chat", s.ChatID).Msg("Failed to save session")
	}
}

// requireLogin loads the session and prompts for /login when the chat
// holds no backend token.
func (h *Handler) requireLogin(ctx context.Context, chatID int64) (*model.Session, bool) {
	s := h.session(ctx, chatID)
	if !s.LoggedIn() {
		h.telegram.SendMessage(chatID, "🔒 You are not logged in. Use /login email password first.")
		return s, false
	}
	return s, true
}

// userClient returns an API client carrying the chat's backend token.
func (h *Handler) userClient(s *model.Session) *api.Client {
	return h.client.WithToken(s.Token)
}

// reportError tells the user an action failed. Auth failures clear the
// stored token and prompt for a fresh login instead of a generic error.
func (h *Handler) reportError(ctx context.Context, chatID int64, err error, action string) {
	log.Error().Err(err).Int64("chat", chatID).Msg("Failed to " + action)
	if api.IsAuth(err) {
		h.expireSession(ctx, chatID)
		h.telegram.SendMessage(chatID, "🔑 Your session has expired. Use /login email password to sign in again.")
		return
	}
	h.telegram.SendMessage(chatID, "⚠️ Could not "+action+". Please try again.")
}

// expireSession drops the backend token but keeps the rest of the
// session row, so an /open share context survives an expired login.
func (h *Handler) expireSession(ctx context.Context, chatID int64) {
	s := h.session(ctx, chatID)
	if s.Token == "" {
		return
	}
	s.Token = ""
	h.saveSession(ctx, s)
}

// closeGroup drops the open group store of a chat, if any.
func (h *Handler) closeGroup(chatID int64) {
	h.mu.Lock()
	st, ok := h.states[chatID]
	if ok && st.group != nil {
		st.group.Close()
		st.group = nil
		st.groupMsgID = 0
	}
	h.mu.Unlock()
}

func statusIcon(status model.VideoStatus) string {
	switch status {
	case model.StatusPending:
		return "⏳"
	case model.StatusProcessing:
		return "⚙️"
	case model.StatusCompleted:
		return "✅"
	case model.StatusError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// splitTitleDescription splits "title | description" captions.
func splitTitleDescription(s string) (title, description string) {
	title, description, found := strings.Cut(s, "|")
	if !found {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(title), strings.TrimSpace(description)
}

func formatCount(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
