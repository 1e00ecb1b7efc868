package store

import (
	"context"
	"sync"
	"time"

	"github.com/user/vidlib-bot-go/internal/model"
)

// MemoryStore implements Store in process memory. It backs the bot when
// no database is configured; sessions then last until restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]model.Session
	watches  map[int64][]model.Watch
	nextID   uint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]model.Session),
		watches:  make(map[int64][]model.Watch),
		nextID:   1,
	}
}

func (s *MemoryStore) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored, ok := s.sessions[session.ChatID]
	if ok {
		session.ID = stored.ID
		session.CreatedAt = stored.CreatedAt
	} else {
		session.ID = s.nextID
		s.nextID++
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	s.sessions[session.ChatID] = *session
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, chatID int64) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	cp := session
	return &cp, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

func (s *MemoryStore) GetAllSessions(ctx context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := session
		sessions = append(sessions, &cp)
	}
	return sessions, nil
}

func (s *MemoryStore) AddWatch(ctx context.Context, watch *model.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watches[watch.ChatID] {
		if w.VideoID == watch.VideoID {
			return nil
		}
	}
	watch.ID = s.nextID
	s.nextID++
	watch.CreatedAt = time.Now()
	s.watches[watch.ChatID] = append(s.watches[watch.ChatID], *watch)
	return nil
}

func (s *MemoryStore) GetWatches(ctx context.Context, chatID int64) ([]*model.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watches := make([]*model.Watch, 0, len(s.watches[chatID]))
	for _, w := range s.watches[chatID] {
		cp := w
		watches = append(watches, &cp)
	}
	return watches, nil
}

func (s *MemoryStore) GetAllWatches(ctx context.Context) ([]*model.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var watches []*model.Watch
	for _, chatWatches := range s.watches {
		for _, w := range chatWatches {
			cp := w
			watches = append(watches, &cp)
		}
	}
	return watches, nil
}

func (s *MemoryStore) DeleteWatch(ctx context.Context, chatID int64, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	watches := s.watches[chatID][:0]
	for _, w := range s.watches[chatID] {
		if w.VideoID != videoID {
			watches = append(watches, w)
		}
	}
	s.watches[chatID] = watches
	return nil
}

func (s *MemoryStore) DeleteWatches(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches, chatID)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
