// Package watch polls the backend for uploads whose processing is still
// running and tells the owning chat once a video reaches a terminal
// status.
package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/fetch"
	"github.com/user/vidlib-bot-go/internal/model"
	"github.com/user/vidlib-bot-go/internal/store"
)

// pollBatchSize is how many watched videos one backend round handles;
// chunks of a chat's watches are polled concurrently.
const pollBatchSize = 4

// Config holds configuration for the upload watcher
type Config struct {
	// Enabled indicates if watching is enabled
	Enabled bool
	// Interval between poll cycles
	Interval time.Duration
	// InitialDelay before the first poll
	InitialDelay time.Duration
}

// DefaultConfig returns default watcher configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		Interval:     30 * time.Second,
		InitialDelay: 5 * time.Second,
	}
}

// Notifier delivers a "your upload finished" message to a chat. The push
// service implements this and paces the sends.
type Notifier interface {
	VideoReady(ctx context.Context, chatID int64, video *model.Video) error
}

// Watcher runs the poll loop. Each cycle loads all open watches, polls
// the backend with the owning session's token and notifies on
// completed/error. Cycles never overlap; a slow cycle makes the next
// trigger skip.
type Watcher struct {
	store    store.Store
	client   *api.Client
	notifier Notifier
	config   *Config
	running  atomic.Bool
	mu       sync.Mutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a new watcher instance
func NewWatcher(st store.Store, client *api.Client, notifier Notifier, cfg *Config) *Watcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Watcher{
		store:    st,
		client:   client,
		notifier: notifier,
		config:   cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the watcher with initial delay and periodic polling
func (w *Watcher) Start(ctx context.Context) {
	if !w.config.Enabled {
		log.Info().Msg("Upload watcher is disabled")
		return
	}

	w.wg.Add(1)
	go w.run(ctx)
}

// run is the main watcher loop
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	log.Info().Dur("delay", w.config.InitialDelay).Msg("Upload watcher starting with initial delay")

	select {
	case <-time.After(w.config.InitialDelay):
		w.executePoll(ctx)
	case <-w.stopCh:
		log.Info().Msg("Upload watcher stopped during initial delay")
		return
	case <-ctx.Done():
		log.Info().Msg("Upload watcher context cancelled during initial delay")
		return
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", w.config.Interval).Msg("Upload watcher started periodic polling")

	for {
		select {
		case <-ticker.C:
			w.executePoll(ctx)
		case <-w.stopCh:
			log.Info().Msg("Upload watcher stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Upload watcher context cancelled")
			return
		}
	}
}

// executePoll runs a single poll cycle with mutex protection so cycles
// never overlap.
func (w *Watcher) executePoll(ctx context.Context) {
	if !w.mu.TryLock() {
		log.Warn().Msg("Poll cycle already running, skipping this trigger")
		return
	}
	defer w.mu.Unlock()

	w.running.Store(true)
	defer w.running.Store(false)

	startTime := time.Now()
	if err := w.PollOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Poll cycle failed")
	}
	log.Debug().Dur("duration", time.Since(startTime)).Msg("Poll cycle completed")
}

// PollOnce checks every open watch once. Watches whose video reached a
// terminal status are notified and cleared; a failed notification keeps
// the watch for the next cycle.
func (w *Watcher) PollOnce(ctx context.Context) error {
	watches, err := w.store.GetAllWatches(ctx)
	if err != nil {
		return fmt.Errorf("load watches: %w", err)
	}
	if len(watches) == 0 {
		return nil
	}

	byChat := make(map[int64][]*model.Watch)
	for _, wt := range watches {
		byChat[wt.ChatID] = append(byChat[wt.ChatID], wt)
	}

	for chatID, chatWatches := range byChat {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		session, err := w.store.GetSession(ctx, chatID)
		if err != nil {
			log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to load session for watch poll")
			continue
		}
		if session == nil || !session.LoggedIn() {
			// No credential left to poll with; drop the orphans.
			log.Debug().Int64("chatId", chatID).Msg("Dropping watches without a session")
			if err := w.store.DeleteWatches(ctx, chatID); err != nil {
				log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to drop orphaned watches")
			}
			continue
		}

		w.pollChat(ctx, chatID, session.Token, chatWatches)
	}
	return nil
}

// pollResult pairs a watch with its polled video. Per-video errors stay
// inside the result so one bad id never cancels the rest of the cycle.
type pollResult struct {
	watch *model.Watch
	video *model.Video
	err   error
}

func (w *Watcher) pollChat(ctx context.Context, chatID int64, token string, watches []*model.Watch) {
	client := w.client.WithToken(token)

	results, err := fetch.InBatches(ctx, watches, pollBatchSize, func(ctx context.Context, chunk []*model.Watch) ([]pollResult, error) {
		out := make([]pollResult, 0, len(chunk))
		for _, wt := range chunk {
			video, err := client.GetVideo(ctx, wt.VideoID)
			out = append(out, pollResult{watch: wt, video: video, err: err})
		}
		return out, nil
	})
	if err != nil {
		// Only a cancelled context reaches here.
		return
	}

	for _, res := range results {
		wt := res.watch
		if res.err != nil {
			if api.IsNotFound(res.err) {
				// Deleted before processing finished; nothing to report.
				if derr := w.store.DeleteWatch(ctx, chatID, wt.VideoID); derr != nil {
					log.Warn().Err(derr).Str("videoId", wt.VideoID).Msg("Failed to clear watch for deleted video")
				}
				continue
			}
			if api.IsAuth(res.err) {
				log.Warn().Int64("chatId", chatID).Msg("Session token rejected during watch poll")
				return
			}
			log.Warn().Err(res.err).Str("videoId", wt.VideoID).Msg("Watch poll failed")
			continue
		}

		if !res.video.Status.Terminal() {
			continue
		}

		if err := w.notifier.VideoReady(ctx, chatID, res.video); err != nil {
			// Keep the watch; the next cycle retries the notification.
			log.Error().Err(err).Int64("chatId", chatID).Str("videoId", res.video.ID).Msg("Failed to notify chat")
			continue
		}

		log.Info().
			Int64("chatId", chatID).
			Str("videoId", res.video.ID).
			Str("status", string(res.video.Status)).
			Msg("Upload watch resolved")

		if err := w.store.DeleteWatch(ctx, chatID, wt.VideoID); err != nil {
			log.Warn().Err(err).Str("videoId", wt.VideoID).Msg("Failed to clear resolved watch")
		}
	}
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() {
	log.Info().Msg("Stopping upload watcher...")
	close(w.stopCh)
	w.wg.Wait()
	log.Info().Msg("Upload watcher stopped")
}

// IsRunning returns true if a poll cycle is currently running
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}
