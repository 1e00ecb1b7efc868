package watch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/store"
)

type notified struct {
	chatID  int64
	videoID string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notified
	err   error
	block chan struct{}
}

func (f *fakeNotifier) VideoReady(ctx context.Context, chatID int64, video *model.Video) error {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.calls = append(f.calls, notified{chatID: chatID, videoID: video.ID})
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ Notifier = (*fakeNotifier)(nil)

// newBackend serves GET /api/videos/{id} from the given map. Missing ids
// answer 404; a wrong bearer token answers 401.
func newBackend(t *testing.T, videos map[string]model.Video, wantToken string) *api.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantToken != "" && r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"invalid_token","message":"token expired"}}`))
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/videos/")
		video, ok := videos[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"video_not_found","message":"no such video"}}`))
			return
		}
		json.NewEncoder(w).Encode(video)
	}))
	t.Cleanup(srv.Close)

	return api.New(&api.Config{
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		UserAgent: "vidlib-bot-test/1.0",
	})
}

func seedWatch(t *testing.T, st store.Store, chatID int64, token, videoID string) {
	t.Helper()
	ctx := context.Background()
	if token != "" {
		if err := st.SaveSession(ctx, &model.Session{ChatID: chatID, Token: token}); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}
	if err := st.AddWatch(ctx, &model.Watch{ChatID: chatID, VideoID: videoID, Title: "t"}); err != nil {
		t.Fatalf("AddWatch() error = %v", err)
	}
}

func TestWatcher_PollOnceNotifiesTerminal(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, map[string]model.Video{
		"vid-done": {ID: "vid-done", Title: "Done", Status: model.StatusCompleted},
		"vid-run":  {ID: "vid-run", Title: "Running", Status: model.StatusProcessing},
	}, "tok-1")
	notifier := &fakeNotifier{}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	seedWatch(t, st, 1, "tok-1", "vid-done")
	seedWatch(t, st, 1, "", "vid-run")

	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	if notifier.count() != 1 {
		t.Fatalf("notified %d times, want 1", notifier.count())
	}
	if notifier.calls[0].videoID != "vid-done" {
		t.Errorf("notified video = %q, want vid-done", notifier.calls[0].videoID)
	}

	watches, _ := st.GetWatches(context.Background(), 1)
	if len(watches) != 1 || watches[0].VideoID != "vid-run" {
		t.Errorf("remaining watches = %+v, want only vid-run", watches)
	}
}

func TestWatcher_PollOnceDropsOrphanedWatches(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, nil, "")
	notifier := &fakeNotifier{}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	// Watch without any stored session.
	if err := st.AddWatch(context.Background(), &model.Watch{ChatID: 7, VideoID: "vid-x"}); err != nil {
		t.Fatalf("AddWatch() error = %v", err)
	}

	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	if notifier.count() != 0 {
		t.Errorf("notified %d times, want 0", notifier.count())
	}
	watches, _ := st.GetAllWatches(context.Background())
	if len(watches) != 0 {
		t.Errorf("watches left = %d, want 0", len(watches))
	}
}

func TestWatcher_PollOnceKeepsWatchWhenNotifyFails(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, map[string]model.Video{
		"vid-done": {ID: "vid-done", Title: "Done", Status: model.StatusCompleted},
	}, "tok-1")
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	seedWatch(t, st, 1, "tok-1", "vid-done")

	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	watches, _ := st.GetWatches(context.Background(), 1)
	if len(watches) != 1 {
		t.Errorf("watches left = %d, want 1 after failed notify", len(watches))
	}
}

func TestWatcher_PollOnceClearsDeletedVideo(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, map[string]model.Video{}, "tok-1")
	notifier := &fakeNotifier{}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	seedWatch(t, st, 1, "tok-1", "vid-gone")

	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	if notifier.count() != 0 {
		t.Errorf("notified %d times, want 0", notifier.count())
	}
	watches, _ := st.GetWatches(context.Background(), 1)
	if len(watches) != 0 {
		t.Errorf("watches left = %d, want 0 for deleted video", len(watches))
	}
}

func TestWatcher_PollOnceKeepsWatchOnRejectedToken(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, map[string]model.Video{
		"vid-done": {ID: "vid-done", Status: model.StatusCompleted},
	}, "tok-valid")
	notifier := &fakeNotifier{}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	// Stored token no longer matches what the backend accepts.
	seedWatch(t, st, 1, "tok-stale", "vid-done")

	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	if notifier.count() != 0 {
		t.Errorf("notified %d times, want 0", notifier.count())
	}
	watches, _ := st.GetWatches(context.Background(), 1)
	if len(watches) != 1 {
		t.Errorf("watches left = %d, want 1 until the user logs in again", len(watches))
	}
}

func TestWatcher_PollCyclesNeverOverlap(t *testing.T) {
	st := store.NewMemoryStore()
	client := newBackend(t, map[string]model.Video{
		"vid-done": {ID: "vid-done", Title: "Done", Status: model.StatusCompleted},
	}, "tok-1")

	release := make(chan struct{})
	notifier := &fakeNotifier{block: release}
	w := NewWatcher(st, client, notifier, DefaultConfig())

	seedWatch(t, st, 1, "tok-1", "vid-done")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.executePoll(context.Background())
	}()

	// Wait until the first cycle is inside the notifier.
	deadline := time.After(2 * time.Second)
	for !w.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("first poll cycle never started")
		case <-time.After(time.Millisecond):
		}
	}

	// A second trigger while the first cycle runs must skip.
	w.executePoll(context.Background())

	close(release)
	wg.Wait()

	if notifier.count() != 1 {
		t.Errorf("notified %d times, want exactly 1", notifier.count())
	}
}
