package grouplist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/vidlib-bot-go/internal/model"
)

var (
	// ErrClosed is returned for operations on an abandoned store.
	ErrClosed = errors.New("group store closed")
	// ErrNotLoaded is returned when no snapshot has been loaded yet.
	ErrNotLoaded = errors.New("group not loaded")
	// ErrEmptySelection rejects a bulk add with no videos before any
	// request is sent.
	ErrEmptySelection = errors.New("no videos selected")
)

// revertTimeout bounds the authoritative refetch after a failed order
// submit. Reconciliation must finish even when the triggering context is
// already gone.
const revertTimeout = 10 * time.Second

// Backend is the slice of the API client the store needs.
type Backend interface {
	GetGroup(ctx context.Context, id string) (*model.VideoGroup, error)
	SubmitGroupOrder(ctx context.Context, groupID string, videoIDs []string) error
	AddGroupVideos(ctx context.Context, groupID string, videoIDs []string) (*model.BulkAddResult, error)
	RemoveGroupVideo(ctx context.Context, groupID, videoID string) error
	UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.VideoGroup, error)
	ShareGroup(ctx context.Context, groupID string) (*model.ShareLink, error)
	UnshareGroup(ctx context.Context, groupID string) error
}

// Store holds the local ordered snapshot of one group. Moves commit
// locally first and reconcile with the backend in the background; every
// other mutation is request-then-refresh. After Close, in-flight
// completions are dropped instead of committed.
type Store struct {
	// OnChange, when set, receives a snapshot after every local commit.
	OnChange func(*model.VideoGroup)
	// OnError, when set, receives reconciliation failures.
	OnError func(error)

	backend Backend
	groupID string

	mu     sync.Mutex
	group  *model.VideoGroup
	closed bool
}

// NewStore creates a store for one group. Call Load before reading.
func NewStore(backend Backend, groupID string) *Store {
	return &Store{
		backend: backend,
		groupID: groupID,
	}
}

// GroupID returns the bound group id.
func (s *Store) GroupID() string {
	return s.groupID
}

// Load fetches the authoritative group state and replaces the local
// snapshot.
func (s *Store) Load(ctx context.Context) error {
	group, err := s.backend.GetGroup(ctx, s.groupID)
	if err != nil {
		return err
	}
	if !s.replace(group) {
		return ErrClosed
	}
	return nil
}

// Group returns a copy of the current snapshot, or nil before Load.
func (s *Store) Group() *model.VideoGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Move commits the reordered list locally and synchronously, then submits
// the full id order in the background. The returned channel resolves
// exactly once: nil on success or no-op, the submit error after a failed
// reconcile. On failure the authoritative state is refetched and replaces
// the local snapshot wholesale.
func (s *Store) Move(ctx context.Context, from, to int) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrClosed
		return done
	}
	if s.group == nil {
		s.mu.Unlock()
		done <- ErrNotLoaded
		return done
	}

	next, ok := Reorder(s.group.VideoIDs(), from, to)
	if !ok {
		// Same position or invalid indices: skip the network call.
		s.mu.Unlock()
		done <- nil
		return done
	}

	s.applyOrderLocked(next)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notifyChange(snapshot)

	go func() {
		err := s.backend.SubmitGroupOrder(ctx, s.groupID, next)
		if err == nil {
			done <- nil
			return
		}
		log.Warn().Err(err).Str("group", s.groupID).Msg("Order submit failed, reverting to server state")
		s.revert(err)
		done <- err
	}()
	return done
}

// AddVideos submits one bulk request for the selected ids and refreshes
// the snapshot. The result reports how many were added and how many the
// backend skipped as already-members.
func (s *Store) AddVideos(ctx context.Context, videoIDs []string) (*model.BulkAddResult, error) {
	if len(videoIDs) == 0 {
		return nil, ErrEmptySelection
	}

	res, err := s.backend.AddGroupVideos(ctx, s.groupID, videoIDs)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("group", s.groupID).Msg("Refresh after bulk add failed")
	}
	return res, nil
}

// RemoveVideo removes one video from the group and refreshes.
func (s *Store) RemoveVideo(ctx context.Context, videoID string) error {
	if err := s.backend.RemoveGroupVideo(ctx, s.groupID, videoID); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		// The removal went through; drop the row locally so the view
		// does not show a deleted member.
		log.Warn().Err(err).Str("group", s.groupID).Msg("Refresh after remove failed, dropping row locally")
		s.dropVideo(videoID)
	}
	return nil
}

// Update patches name/description and replaces the snapshot with the
// backend's response.
func (s *Store) Update(ctx context.Context, patch model.GroupPatch) error {
	group, err := s.backend.UpdateGroup(ctx, s.groupID, patch)
	if err != nil {
		return err
	}
	if !s.replace(group) {
		return ErrClosed
	}
	return nil
}

// Share enables public access and returns the share link.
func (s *Store) Share(ctx context.Context) (*model.ShareLink, error) {
	link, err := s.backend.ShareGroup(ctx, s.groupID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.closed && s.group != nil {
		s.group.ShareToken = link.Token
		s.group.ShareURL = link.URL
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notifyChange(snapshot)
	return link, nil
}

// Unshare revokes the share token.
func (s *Store) Unshare(ctx context.Context) error {
	if err := s.backend.UnshareGroup(ctx, s.groupID); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.closed && s.group != nil {
		s.group.ShareToken = ""
		s.group.ShareURL = ""
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notifyChange(snapshot)
	return nil
}

// Refresh refetches authoritative state and replaces the snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	group, err := s.backend.GetGroup(ctx, s.groupID)
	if err != nil {
		return err
	}
	if !s.replace(group) {
		return ErrClosed
	}
	return nil
}

// Close marks the store abandoned. Async completions arriving afterwards
// are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// revert discards local optimism after a failed submit by refetching the
// authoritative order.
func (s *Store) revert(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), revertTimeout)
	defer cancel()

	group, err := s.backend.GetGroup(ctx, s.groupID)
	if err != nil {
		log.Error().Err(err).Str("group", s.groupID).Msg("Revert refetch failed, local order may diverge")
		s.notifyError(cause)
		return
	}
	if s.replace(group) {
		s.notifyError(cause)
	}
}

// replace swaps in a new authoritative snapshot unless the store was
// closed while the fetch was in flight.
func (s *Store) replace(group *model.VideoGroup) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.group = group
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notifyChange(snapshot)
	return true
}

func (s *Store) dropVideo(videoID string) {
	s.mu.Lock()
	if s.closed || s.group == nil {
		s.mu.Unlock()
		return
	}
	videos := s.group.Videos[:0]
	for _, v := range s.group.Videos {
		if v.ID != videoID {
			videos = append(videos, v)
		}
	}
	s.group.Videos = videos
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notifyChange(snapshot)
}

// applyOrderLocked rearranges the member videos to match the id order.
func (s *Store) applyOrderLocked(order []string) {
	byID := make(map[string]model.Video, len(s.group.Videos))
	for _, v := range s.group.Videos {
		byID[v.ID] = v
	}
	videos := make([]model.Video, 0, len(order))
	for _, id := range order {
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
		}
	}
	s.group.Videos = videos
}

func (s *Store) snapshotLocked() *model.VideoGroup {
	if s.group == nil {
		return nil
	}
	cp := *s.group
	cp.Videos = append([]model.Video(nil), s.group.Videos...)
	return &cp
}

func (s *Store) notifyChange(group *model.VideoGroup) {
	if s.OnChange != nil && group != nil {
		s.OnChange(group)
	}
}

func (s *Store) notifyError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}
