package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/linkmeta"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/store"
	"github.com/user/vidlib-bot-go/internal/stubapi"
)

// fakeTelegram records outgoing traffic instead of talking to Telegram.
type fakeTelegram struct {
	mu        sync.Mutex
	nextID    int
	sent      []fakeMessage
	toasts    []string
	keyboards []tgbotapi.InlineKeyboardMarkup
	deleted   []int
	documents []string
	inline    [][]interface{}
}

type fakeMessage struct {
	chatID   int64
	msgID    int
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
	edited   bool
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{nextID: 100}
}

var _ Telegram = (*fakeTelegram)(nil)

func (f *fakeTelegram) record(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup, edited bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgID == 0 {
		f.nextID++
		msgID = f.nextID
	}
	f.sent = append(f.sent, fakeMessage{chatID: chatID, msgID: msgID, text: text, keyboard: kb, edited: edited})
	return msgID
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) error {
	f.record(chatID, 0, text, nil, false)
	return nil
}

func (f *fakeTelegram) SendMarkdown(chatID int64, text string) error {
	f.record(chatID, 0, text, nil, false)
	return nil
}

func (f *fakeTelegram) SendMarkdownWithKeyboard(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	return f.record(chatID, 0, text, keyboard, false), nil
}

func (f *fakeTelegram) EditMarkdown(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	f.record(chatID, messageID, text, keyboard, true)
	return nil
}

func (f *fakeTelegram) EditKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyboards = append(f.keyboards, keyboard)
	return nil
}

func (f *fakeTelegram) SendDocument(chatID int64, fileName string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, fileName)
	return nil
}

func (f *fakeTelegram) DeleteMessage(chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTelegram) AnswerCallback(callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, text)
	return nil
}

func (f *fakeTelegram) AnswerInline(queryID string, results []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inline = append(f.inline, results)
	return nil
}

func (f *fakeTelegram) FileReader(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("fake video bytes")), nil
}

// lastText returns the text of the most recent send or edit.
func (f *fakeTelegram) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].text
}

// find returns the most recent message whose text contains substr.
func (f *fakeTelegram) find(substr string) (fakeMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if strings.Contains(f.sent[i].text, substr) {
			return f.sent[i], true
		}
	}
	return fakeMessage{}, false
}

func (f *fakeTelegram) lastToast() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toasts) == 0 {
		return ""
	}
	return f.toasts[len(f.toasts)-1]
}

func (f *fakeTelegram) lastKeyboard() (tgbotapi.InlineKeyboardMarkup, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keyboards) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return f.keyboards[len(f.keyboards)-1], true
}

type testEnv struct {
	handler *Handler
	tg      *fakeTelegram
	client  *api.Client
	store   store.Store

	// bulkAdds counts POST /api/groups/{id}/videos requests seen by the
	// backend.
	bulkAdds *int32
}

// newTestEnv wires a handler to a fresh stub backend with synchronous
// upload processing.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stub := stubapi.NewServer(&stubapi.Config{
		ProcessDelay: 0,
		WebBaseURL:   "https://app.vidlib.example",
	})

	var bulkAdds int32
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost &&
			strings.HasPrefix(r.URL.Path, "/api/groups/") &&
			strings.HasSuffix(r.URL.Path, "/videos") {
			atomic.AddInt32(&bulkAdds, 1)
		}
		stub.Handler().ServeHTTP(w, r)
	})
	ts := httptest.NewServer(counted)
	t.Cleanup(ts.Close)

	client := api.New(&api.Config{
		BaseURL:   ts.URL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		UserAgent: "vidlib-bot-test/1.0",
	})
	st := store.NewMemoryStore()

	tg := newFakeTelegram()
	h := NewHandler(st, client, tg, linkmeta.NewFetcher(time.Second, "vidlib-bot-test/1.0"), &Config{
		Username:       "vidlibbot",
		WebBaseURL:     "https://app.vidlib.example",
		SearchDebounce: 10 * time.Millisecond,
		ScenesTTL:      time.Minute,
		PlansTTL:       time.Minute,
		MaxRetries:     1,
	})

	return &testEnv{handler: h, tg: tg, client: client, store: st, bulkAdds: &bulkAdds}
}

func (e *testEnv) handle(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	e.handler.HandleUpdate(context.Background(), update)
}

// authedClient returns an API client carrying the chat's stored token,
// for inspecting backend state directly.
func (e *testEnv) authedClient(t *testing.T, chatID int64) *api.Client {
	t.Helper()
	s, err := e.store.GetSession(context.Background(), chatID)
	if err != nil || s == nil || s.Token == "" {
		t.Fatalf("chat %d has no stored token (session=%v err=%v)", chatID, s, err)
	}
	return e.client.WithToken(s.Token)
}

func (e *testEnv) login(t *testing.T, chatID int64) {
	t.Helper()
	e.handle(t, commandUpdate(chatID, 1, "/login "+stubapi.SeedEmail+" "+stubapi.SeedPassword))
	if _, ok := e.tg.find("Logged in as"); !ok {
		t.Fatalf("login did not confirm, last message: %q", e.tg.lastText())
	}
}

func commandUpdate(chatID int64, msgID int, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: msgID,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, msgID int, data string, kb *tgbotapi.InlineKeyboardMarkup) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: &tgbotapi.Message{
			MessageID:   msgID,
			Chat:        &tgbotapi.Chat{ID: chatID, Type: "private"},
			ReplyMarkup: kb,
		},
	}}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHandlerLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := int64(1001)

	env.login(t, chatID)

	// The credentials message must be scrubbed from the chat.
	if len(env.tg.deleted) != 1 || env.tg.deleted[0] != 1 {
		t.Fatalf("expected credentials message 1 deleted, got %v", env.tg.deleted)
	}

	s, err := env.store.GetSession(ctx, chatID)
	if err != nil || s == nil {
		t.Fatalf("GetSession() = %v, %v", s, err)
	}
	if s.Token == "" || s.Email != stubapi.SeedEmail {
		t.Fatalf("session not populated: %+v", s)
	}

	env.handle(t, commandUpdate(chatID, 3, "/logout"))
	if !strings.Contains(env.tg.lastText(), "Logged out") {
		t.Fatalf("logout reply = %q", env.tg.lastText())
	}
	s, err = env.store.GetSession(ctx, chatID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if s != nil {
		t.Fatalf("session should be gone after logout, got %+v", s)
	}
}

func TestHandlerRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	chatID := int64(1002)

	env.handle(t, commandUpdate(chatID, 1, "/videos"))
	if !strings.Contains(env.tg.lastText(), "not logged in") {
		t.Fatalf("expected login prompt, got %q", env.tg.lastText())
	}
}

func TestHandlerUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	chatID := int64(1003)

	env.handle(t, commandUpdate(chatID, 1, "/frobnicate"))
	if !strings.Contains(env.tg.lastText(), "Unknown command") {
		t.Fatalf("expected unknown-command reply, got %q", env.tg.lastText())
	}
}

func TestHandlerVideoListing(t *testing.T) {
	env := newTestEnv(t)
	chatID := int64(1004)
	env.login(t, chatID)

	env.handle(t, commandUpdate(chatID, 3, "/videos"))
	msg, ok := env.tg.find("Your videos")
	if !ok {
		t.Fatalf("no listing sent, last message: %q", env.tg.lastText())
	}
	// The seed library fits one page, so no pagination buttons.
	if msg.keyboard != nil {
		t.Fatalf("single-page listing should have no keyboard, got %+v", msg.keyboard)
	}
	if !strings.Contains(msg.text, "Intro to the Platform") {
		t.Fatalf("listing misses seeded video: %q", msg.text)
	}
}

func TestHandlerGroupMove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := int64(1005)
	env.login(t, chatID)

	authed := env.authedClient(t, chatID)
	groups, err := authed.ListGroups(ctx)
	if err != nil || len(groups) == 0 {
		t.Fatalf("ListGroups() = %v, %v", groups, err)
	}
	group := groups[0]
	originalOrder := group.VideoIDs()
	if len(originalOrder) < 2 {
		t.Fatalf("seed group needs at least 2 videos, has %d", len(originalOrder))
	}

	env.handle(t, commandUpdate(chatID, 3, "/group "+group.ID))
	view, ok := env.tg.find(group.Videos[0].Title)
	if !ok || view.keyboard == nil {
		t.Fatalf("group view not rendered with keyboard")
	}

	// The session context must follow the open group.
	s, _ := env.store.GetSession(ctx, chatID)
	if s.ActiveGroupID != group.ID {
		t.Fatalf("ActiveGroupID = %q, want %q", s.ActiveGroupID, group.ID)
	}

	env.handle(t, commandUpdate(chatID, 4, "/move 1 2"))
	if _, ok := env.tg.find("Order updated"); !ok {
		t.Fatalf("move not confirmed, last message: %q", env.tg.lastText())
	}

	// The view updates optimistically: the former second video leads now.
	edited, ok := env.tg.find("1\\. " + statusIcon(group.Videos[1].Status) + " *" + group.Videos[1].Title + "*")
	if !ok {
		t.Fatalf("optimistic reorder not rendered")
	}
	if !edited.edited {
		t.Fatalf("reorder should edit the existing view, not send a new one")
	}

	// The background submit lands on the backend.
	want := append([]string{originalOrder[1], originalOrder[0]}, originalOrder[2:]...)
	waitFor(t, 3*time.Second, func() bool {
		got, err := authed.GetGroup(ctx, group.ID)
		if err != nil {
			return false
		}
		ids := got.VideoIDs()
		if len(ids) != len(want) {
			return false
		}
		for i := range ids {
			if ids[i] != want[i] {
				return false
			}
		}
		return true
	}, "backend never received the new order")
}

func TestHandlerSelectionFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := int64(1006)
	env.login(t, chatID)

	authed := env.authedClient(t, chatID)
	groups, err := authed.ListGroups(ctx)
	if err != nil || len(groups) == 0 {
		t.Fatalf("ListGroups() = %v, %v", groups, err)
	}
	group := groups[0]
	memberCount := len(group.Videos)

	env.handle(t, commandUpdate(chatID, 3, "/addvideos "+group.ID))
	picker, ok := env.tg.find("Add videos to")
	if !ok || picker.keyboard == nil {
		t.Fatalf("selection picker not rendered")
	}

	// Done with nothing selected is rejected client-side: no request, the
	// picker stays open.
	before := atomic.LoadInt32(env.bulkAdds)
	env.handle(t, callbackUpdate(chatID, picker.msgID, "seldone", picker.keyboard))
	if got := env.tg.lastToast(); !strings.Contains(got, "Select at least one video") {
		t.Fatalf("empty Done toast = %q", got)
	}
	if atomic.LoadInt32(env.bulkAdds) != before {
		t.Fatalf("empty selection must not reach the backend")
	}

	// Pick the first non-member video and submit.
	var selectData string
	for _, row := range picker.keyboard.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData == nil {
				continue
			}
			if _, ok := ParseSelect(*btn.CallbackData); ok {
				selectData = *btn.CallbackData
				break
			}
		}
		if selectData != "" {
			break
		}
	}
	if selectData == "" {
		t.Fatalf("picker has no selectable videos")
	}

	env.handle(t, callbackUpdate(chatID, picker.msgID, selectData, picker.keyboard))
	if got := env.tg.lastToast(); got != "Selected" {
		t.Fatalf("select toast = %q", got)
	}
	env.handle(t, callbackUpdate(chatID, picker.msgID, "seldone", picker.keyboard))
	if _, ok := env.tg.find("Added 1 video"); !ok {
		t.Fatalf("bulk add not confirmed, last message: %q", env.tg.lastText())
	}
	if atomic.LoadInt32(env.bulkAdds) != before+1 {
		t.Fatalf("expected exactly one bulk-add request")
	}

	got, err := authed.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	videoID, _ := ParseSelect(selectData)
	found := false
	for _, v := range got.Videos {
		if v.ID == videoID {
			found = true
		}
	}
	if !found || len(got.Videos) != memberCount+1 {
		t.Fatalf("video %s not added, members now %d", videoID, len(got.Videos))
	}
}

func TestHandlerChatFeedbackToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := int64(1007)
	env.login(t, chatID)

	authed := env.authedClient(t, chatID)
	groups, err := authed.ListGroups(ctx)
	if err != nil || len(groups) == 0 {
		t.Fatalf("ListGroups() = %v, %v", groups, err)
	}

	env.handle(t, commandUpdate(chatID, 3, "/group "+groups[0].ID))
	env.handle(t, commandUpdate(chatID, 4, "/chat"))
	if _, ok := env.tg.find("Chat mode on"); !ok {
		t.Fatalf("chat mode not confirmed, last message: %q", env.tg.lastText())
	}

	env.handle(t, textUpdate(chatID, "What were the main takeaways about preparation?"))

	// The thinking placeholder is edited into the answer with a feedback
	// keyboard.
	var fbData string
	var answer fakeMessage
	env.tg.mu.Lock()
	for i := len(env.tg.sent) - 1; i >= 0 && fbData == ""; i-- {
		m := env.tg.sent[i]
		if m.keyboard == nil {
			continue
		}
		for _, row := range m.keyboard.InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil {
					if _, _, ok := ParseFeedback(*btn.CallbackData); ok {
						fbData = *btn.CallbackData
						answer = m
					}
				}
			}
		}
	}
	env.tg.mu.Unlock()
	if fbData == "" {
		t.Fatalf("no answer with feedback keyboard, last message: %q", env.tg.lastText())
	}
	if !answer.edited {
		t.Fatalf("answer should edit the thinking placeholder")
	}
	logID, value, _ := ParseFeedback(fbData)
	if value != model.FeedbackGood {
		fbData = FormatFeedback(logID, model.FeedbackGood)
	}

	// First tap sets good and marks the button.
	env.handle(t, callbackUpdate(chatID, answer.msgID, fbData, answer.keyboard))
	if got := env.tg.lastToast(); !strings.Contains(got, "Thanks for the feedback") {
		t.Fatalf("feedback toast = %q", got)
	}
	kb, ok := env.tg.lastKeyboard()
	if !ok {
		t.Fatalf("feedback did not update the keyboard")
	}
	if !keyboardHasButton(kb, "👍 ✓") {
		t.Fatalf("good button not checked: %+v", kb)
	}

	// Tapping the active value clears it.
	env.handle(t, callbackUpdate(chatID, answer.msgID, fbData, &kb))
	if got := env.tg.lastToast(); !strings.Contains(got, "Feedback cleared") {
		t.Fatalf("clear toast = %q", got)
	}
	kb, _ = env.tg.lastKeyboard()
	if keyboardHasButton(kb, "👍 ✓") || keyboardHasButton(kb, "👎 ✓") {
		t.Fatalf("cleared feedback should uncheck both buttons: %+v", kb)
	}

	// The backend agrees with the final state.
	history, err := authed.ChatHistory(ctx, groups[0].ID)
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	seen := false
	for _, e := range history {
		if e.LogID != logID {
			continue
		}
		seen = true
		if e.Feedback != model.FeedbackNone {
			t.Fatalf("feedback not cleared on backend: %+v", e)
		}
	}
	if !seen {
		t.Fatalf("log %s missing from history", logID)
	}
}

func keyboardHasButton(kb tgbotapi.InlineKeyboardMarkup, label string) bool {
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.Text == label {
				return true
			}
		}
	}
	return false
}

func TestHandlerOpenSharedGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ownerChat := int64(1008)
	visitorChat := int64(1009)
	env.login(t, ownerChat)

	authed := env.authedClient(t, ownerChat)
	groups, err := authed.ListGroups(ctx)
	if err != nil || len(groups) == 0 {
		t.Fatalf("ListGroups() = %v, %v", groups, err)
	}
	link, err := authed.ShareGroup(ctx, groups[0].ID)
	if err != nil {
		t.Fatalf("ShareGroup() error = %v", err)
	}

	// A visitor without any login opens the link and chats.
	env.handle(t, commandUpdate(visitorChat, 1, "/open "+link.URL))
	if _, ok := env.tg.find("shared"); !ok {
		t.Fatalf("shared view not rendered, last message: %q", env.tg.lastText())
	}

	s, _ := env.store.GetSession(ctx, visitorChat)
	if s == nil || s.ShareToken != link.Token {
		t.Fatalf("share token not stored: %+v", s)
	}
	if s.ActiveGroupID != "" {
		t.Fatalf("share context must clear the active group")
	}

	env.handle(t, commandUpdate(visitorChat, 2, "/chat"))
	if _, ok := env.tg.find("Chat mode on"); !ok {
		t.Fatalf("chat mode over share link failed, last message: %q", env.tg.lastText())
	}

	env.handle(t, textUpdate(visitorChat, "What background was covered about planning?"))
	if _, ok := env.tg.find("Cited moments"); !ok {
		t.Fatalf("no cited answer for share visitor, last message: %q", env.tg.lastText())
	}

	// History stays owner-only.
	env.handle(t, commandUpdate(visitorChat, 3, "/history"))
	if !strings.Contains(env.tg.lastText(), "only available for your own groups") {
		t.Fatalf("history over share link should be refused, got %q", env.tg.lastText())
	}
}

func TestHandlerUploadFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := int64(1010)
	env.login(t, chatID)

	env.handle(t, tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Caption:   "Standup Recording | Monday sync",
		Document:  &tgbotapi.Document{FileID: "file-1", FileName: "standup.mp4"},
	}})

	if _, ok := env.tg.find("uploaded"); !ok {
		t.Fatalf("upload not confirmed, last message: %q", env.tg.lastText())
	}

	authed := env.authedClient(t, chatID)
	list, err := authed.ListVideos(ctx, api.ListVideosOptions{Query: "Standup"})
	if err != nil || list.Total != 1 {
		t.Fatalf("uploaded video not in library: %v, %v", list, err)
	}
	if list.Videos[0].Description != "Monday sync" {
		t.Fatalf("caption description lost: %+v", list.Videos[0])
	}

	// The upload is watched so the chat hears about processing.
	watches, err := env.store.GetWatches(ctx, chatID)
	if err != nil || len(watches) != 1 {
		t.Fatalf("GetWatches() = %v, %v", watches, err)
	}
	if watches[0].VideoID != list.Videos[0].ID {
		t.Fatalf("watch bound to %q, want %q", watches[0].VideoID, list.Videos[0].ID)
	}
}

func TestHandlerInlineQuery(t *testing.T) {
	env := newTestEnv(t)
	chatID := int64(1011)
	env.login(t, chatID)

	env.handle(t, tgbotapi.Update{InlineQuery: &tgbotapi.InlineQuery{
		ID:    "iq1",
		From:  &tgbotapi.User{ID: chatID},
		Query: "intro",
	}})

	env.tg.mu.Lock()
	defer env.tg.mu.Unlock()
	if len(env.tg.inline) == 0 {
		t.Fatalf("inline query not answered")
	}
	results := env.tg.inline[len(env.tg.inline)-1]
	if len(results) == 0 {
		t.Fatalf("inline search found nothing for seeded video")
	}
}

func TestHandlerStatus(t *testing.T) {
	env := newTestEnv(t)
	chatID := int64(1012)
	env.login(t, chatID)

	env.handle(t, commandUpdate(chatID, 3, "/status"))
	text := env.tg.lastText()
	for _, want := range []string{"Bot Status", "Logged in as", "Backend: ok", "Store: ok", "Uptime"} {
		if !strings.Contains(text, want) {
			t.Fatalf("status misses %q: %q", want, text)
		}
	}
}
