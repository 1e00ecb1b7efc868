// Package stubapi is a self-contained development backend implementing
// the API the bot talks to: accounts, a video library with a fake
// processing pipeline, ordered groups, share links, transcript chat,
// tags and billing. Everything lives in memory; restarting resets it to
// the seed data.
package stubapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/vidlib-bot-go/internal/model"
)

// Seed account available after every restart.
const (
	SeedEmail    = "dev@vidlib.example"
	SeedPassword = "password"
)

// failMarker in an upload title makes its processing end in an error,
// for exercising the failure path without a real pipeline.
const failMarker = "[fail]"

// User is one stub account.
type User struct {
	ID        string
	Email     string
	Password  string
	PlanID    string
	OpenAIKey string
}

type videoRec struct {
	model.Video
	OwnerID string
	TagIDs  []string
}

type groupRec struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	VideoIDs    []string
	ShareToken  string
}

type tagRec struct {
	model.Tag
	OwnerID string
}

type logRec struct {
	model.ChatLogEntry
	OwnerID string
	GroupID string
}

// Store holds all backend state behind one mutex. Handler latency is
// dominated by the fake pipeline timers, not lock contention, so a
// single lock keeps the invariants easy to see.
type Store struct {
	mu sync.Mutex

	processDelay time.Duration
	webBase      string

	users   map[string]*User
	byEmail map[string]string
	tokens  map[string]string
	videos  map[string]*videoRec
	groups  map[string]*groupRec
	tags    map[string]*tagRec
	shares  map[string]string
	logs    []*logRec
	plans   []model.Plan
}

// NewStore creates a seeded store. processDelay is the time an upload
// takes from pending to its terminal status; zero completes uploads
// synchronously, which the tests rely on.
func NewStore(processDelay time.Duration, webBase string) *Store {
	s := &Store{
		processDelay: processDelay,
		webBase:      strings.TrimRight(webBase, "/"),
		users:        make(map[string]*User),
		byEmail:      make(map[string]string),
		tokens:       make(map[string]string),
		videos:       make(map[string]*videoRec),
		groups:       make(map[string]*groupRec),
		tags:         make(map[string]*tagRec),
		shares:       make(map[string]string),
	}
	s.seed()
	return s
}

func newID(prefix string) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return prefix + "-" + hex.EncodeToString(b)
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// seed installs the development account, a processed starter library,
// one group and a bit of chat history so every panel has content.
func (s *Store) seed() {
	user := &User{
		ID:       newID("usr"),
		Email:    SeedEmail,
		Password: SeedPassword,
		PlanID:   "pro",
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID

	s.plans = []model.Plan{
		{ID: "free", Name: "Free", PriceCents: 0, Currency: "USD", VideoLimit: 10, ChatsPerDay: 20,
			Description: "Try it out"},
		{ID: "pro", Name: "Pro", PriceCents: 1900, Currency: "USD", VideoLimit: 200, ChatsPerDay: 500,
			Description: "For individual creators"},
		{ID: "team", Name: "Team", PriceCents: 4900, Currency: "USD", VideoLimit: 0, ChatsPerDay: 0,
			Description: "Unlimited videos and chats"},
	}

	titles := []string{
		"Intro to the Platform",
		"Quarterly Planning Session",
		"Incident Review: March Outage",
	}
	now := time.Now()
	var memberIDs []string
	for i, title := range titles {
		v := &videoRec{
			Video: model.Video{
				ID:         newID("vid"),
				Title:      title,
				Status:     model.StatusCompleted,
				FileName:   fmt.Sprintf("seed-%d.mp4", i+1),
				UploadedAt: now.Add(-time.Duration(len(titles)-i) * 24 * time.Hour),
				Transcript: syntheticTranscript(title),
			},
			OwnerID: user.ID,
		}
		s.videos[v.ID] = v
		memberIDs = append(memberIDs, v.ID)
	}

	// One upload mid-pipeline, so a freshly started bot has something
	// to watch.
	pending := &videoRec{
		Video: model.Video{
			ID:         newID("vid"),
			Title:      "Customer Interview Raw Cut",
			Status:     model.StatusPending,
			FileName:   "interview.mp4",
			UploadedAt: now,
		},
		OwnerID: user.ID,
	}
	s.videos[pending.ID] = pending
	s.schedulePipeline(pending.ID)

	group := &groupRec{
		ID:          newID("grp"),
		OwnerID:     user.ID,
		Name:        "Onboarding Library",
		Description: "Everything a new teammate should watch",
		VideoIDs:    memberIDs,
	}
	s.groups[group.ID] = group

	for _, t := range []model.Tag{
		{Name: "training", Color: "#22cc88"},
		{Name: "internal", Color: "#8888ff"},
	} {
		rec := &tagRec{Tag: t, OwnerID: user.ID}
		rec.ID = newID("tag")
		s.tags[rec.ID] = rec
	}

	seedQuestions := []string{
		"What does the onboarding cover first?",
		"How did the outage get resolved?",
	}
	for i, q := range seedQuestions {
		v := s.videos[memberIDs[i%len(memberIDs)]]
		s.logs = append(s.logs, &logRec{
			ChatLogEntry: model.ChatLogEntry{
				LogID:    newID("log"),
				Question: q,
				Answer:   "Based on the recordings: " + firstSentence(v.Transcript),
				RelatedVideos: []model.RelatedVideo{
					{VideoID: v.ID, Title: v.Title, StartTime: "00:45"},
				},
				CreatedAt: now.Add(-time.Duration(len(seedQuestions)-i) * time.Hour),
			},
			OwnerID: user.ID,
			GroupID: group.ID,
		})
	}
}

// --- auth ---

// Login checks credentials and mints a bearer token.
func (s *Store) Login(email, password string) (string, model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return "", model.User{}, false
	}
	user := s.users[userID]
	if user.Password != password {
		return "", model.User{}, false
	}

	token := newToken()
	s.tokens[token] = userID
	return token, model.User{ID: user.ID, Email: user.Email, Plan: user.PlanID}, true
}

// Logout invalidates one token.
func (s *Store) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Authenticate resolves a bearer token to a user id.
func (s *Store) Authenticate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	return userID, ok
}

// UserView returns the wire shape of an account.
func (s *Store) UserView(userID string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return model.User{}, false
	}
	return model.User{ID: user.ID, Email: user.Email, Plan: user.PlanID}, true
}

// --- videos and the fake pipeline ---

// CreateVideo records an upload in status pending and schedules its
// processing.
func (s *Store) CreateVideo(ownerID, title, description, fileName string) model.Video {
	s.mu.Lock()
	v := &videoRec{
		Video: model.Video{
			ID:          newID("vid"),
			Title:       title,
			Description: description,
			Status:      model.StatusPending,
			FileName:    fileName,
			UploadedAt:  time.Now(),
		},
		OwnerID: ownerID,
	}
	s.videos[v.ID] = v
	id := v.ID
	view := s.videoViewLocked(v)
	s.mu.Unlock()

	s.schedulePipeline(id)
	return view
}

// schedulePipeline walks a video through pending → processing → its
// terminal status. With a zero delay the walk happens inline.
func (s *Store) schedulePipeline(videoID string) {
	if s.processDelay <= 0 {
		s.advance(videoID, model.StatusProcessing)
		s.advance(videoID, model.StatusCompleted)
		return
	}
	time.AfterFunc(s.processDelay/2, func() {
		s.advance(videoID, model.StatusProcessing)
	})
	time.AfterFunc(s.processDelay, func() {
		s.advance(videoID, model.StatusCompleted)
	})
}

func (s *Store) advance(videoID string, to model.VideoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[videoID]
	if !ok || v.Status.Terminal() {
		return
	}
	if to == model.StatusCompleted {
		if strings.Contains(v.Title, failMarker) {
			v.Status = model.StatusError
			v.ErrorMessage = "transcription failed: audio track unreadable"
			return
		}
		v.Status = model.StatusCompleted
		v.Transcript = syntheticTranscript(v.Title)
		return
	}
	v.Status = to
}

func (s *Store) videoViewLocked(v *videoRec) model.Video {
	out := v.Video
	out.Tags = nil
	for _, tagID := range v.TagIDs {
		if t, ok := s.tags[tagID]; ok {
			out.Tags = append(out.Tags, t.Tag)
		}
	}
	return out
}

// Video returns one of the owner's videos.
func (s *Store) Video(ownerID, id string) (model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.OwnerID != ownerID {
		return model.Video{}, false
	}
	return s.videoViewLocked(v), true
}

// ListVideos filters, sorts and pages the owner's library.
func (s *Store) ListVideos(ownerID, query string, status model.VideoStatus, sortKey string, page, limit int) ([]model.Video, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.ToLower(query)
	var all []model.Video
	for _, v := range s.videos {
		if v.OwnerID != ownerID {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(v.Title), query) &&
			!strings.Contains(strings.ToLower(v.Description), query) {
			continue
		}
		all = append(all, s.videoViewLocked(v))
	}

	switch sortKey {
	case "uploaded_asc":
		sort.Slice(all, func(i, j int) bool { return all[i].UploadedAt.Before(all[j].UploadedAt) })
	case "title":
		sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	default: // uploaded_desc
		sort.Slice(all, func(i, j int) bool { return all[i].UploadedAt.After(all[j].UploadedAt) })
	}

	total := len(all)
	if limit <= 0 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total
}

// UpdateVideo patches title and/or description.
func (s *Store) UpdateVideo(ownerID, id string, patch model.VideoPatch) (model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.OwnerID != ownerID {
		return model.Video{}, false
	}
	if patch.Title != nil && *patch.Title != "" {
		v.Title = *patch.Title
	}
	if patch.Description != nil {
		v.Description = *patch.Description
	}
	return s.videoViewLocked(v), true
}

// DeleteVideo removes a video from the library and from every group.
func (s *Store) DeleteVideo(ownerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.OwnerID != ownerID {
		return false
	}
	delete(s.videos, id)
	for _, g := range s.groups {
		g.VideoIDs = removeID(g.VideoIDs, id)
	}
	return true
}

// SetVideoTags replaces the video's tag set. Unknown or foreign tag ids
// are rejected.
func (s *Store) SetVideoTags(ownerID, videoID string, tagIDs []string) (model.Video, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok || v.OwnerID != ownerID {
		return model.Video{}, false, false
	}
	for _, tagID := range tagIDs {
		t, ok := s.tags[tagID]
		if !ok || t.OwnerID != ownerID {
			return model.Video{}, true, false
		}
	}
	v.TagIDs = append([]string(nil), tagIDs...)
	return s.videoViewLocked(v), true, true
}

// --- groups ---

// CreateGroup creates an empty group.
func (s *Store) CreateGroup(ownerID, name, description string) model.VideoGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &groupRec{
		ID:          newID("grp"),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
	}
	s.groups[g.ID] = g
	return s.groupViewLocked(g)
}

func (s *Store) groupViewLocked(g *groupRec) model.VideoGroup {
	out := model.VideoGroup{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		ShareToken:  g.ShareToken,
		Videos:      []model.Video{},
	}
	if g.ShareToken != "" {
		out.ShareURL = s.webBase + "/share/" + g.ShareToken
	}
	for _, id := range g.VideoIDs {
		if v, ok := s.videos[id]; ok {
			out.Videos = append(out.Videos, s.videoViewLocked(v))
		}
	}
	return out
}

// ListGroups returns the owner's groups sorted by name.
func (s *Store) ListGroups(ownerID string) []model.VideoGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VideoGroup
	for _, g := range s.groups {
		if g.OwnerID == ownerID {
			out = append(out, s.groupViewLocked(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Group returns one of the owner's groups.
func (s *Store) Group(ownerID, id string) (model.VideoGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return model.VideoGroup{}, false
	}
	return s.groupViewLocked(g), true
}

// UpdateGroup patches name and/or description.
func (s *Store) UpdateGroup(ownerID, id string, patch model.GroupPatch) (model.VideoGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return model.VideoGroup{}, false
	}
	if patch.Name != nil && *patch.Name != "" {
		g.Name = *patch.Name
	}
	if patch.Description != nil {
		g.Description = *patch.Description
	}
	return s.groupViewLocked(g), true
}

// DeleteGroup removes a group; member videos stay in the library.
func (s *Store) DeleteGroup(ownerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok || g.OwnerID != ownerID {
		return false
	}
	if g.ShareToken != "" {
		delete(s.shares, g.ShareToken)
	}
	delete(s.groups, id)
	return true
}

// AddGroupVideos appends videos that are not members yet; already-member
// ids are counted as skipped. Unknown ids reject the whole request.
func (s *Store) AddGroupVideos(ownerID, groupID string, videoIDs []string) (model.BulkAddResult, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return model.BulkAddResult{}, false, false
	}
	for _, id := range videoIDs {
		v, ok := s.videos[id]
		if !ok || v.OwnerID != ownerID {
			return model.BulkAddResult{}, true, false
		}
	}

	members := make(map[string]bool, len(g.VideoIDs))
	for _, id := range g.VideoIDs {
		members[id] = true
	}

	var res model.BulkAddResult
	for _, id := range videoIDs {
		if members[id] {
			res.SkippedCount++
			continue
		}
		g.VideoIDs = append(g.VideoIDs, id)
		members[id] = true
		res.AddedCount++
	}
	return res, true, true
}

// RemoveGroupVideo removes one member.
func (s *Store) RemoveGroupVideo(ownerID, groupID, videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return false
	}
	before := len(g.VideoIDs)
	g.VideoIDs = removeID(g.VideoIDs, videoID)
	return len(g.VideoIDs) < before
}

// SetGroupOrder replaces the display order. The submitted ids must be a
// permutation of the current membership; anything else is a conflict and
// changes nothing.
func (s *Store) SetGroupOrder(ownerID, groupID string, videoIDs []string) (found, conflict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return false, false
	}
	if !samePermutation(g.VideoIDs, videoIDs) {
		return true, true
	}
	g.VideoIDs = append([]string(nil), videoIDs...)
	return true, false
}

func samePermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	seen := make(map[string]int, len(current))
	for _, id := range current {
		seen[id]++
	}
	for _, id := range proposed {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

// ShareGroup mints (or returns the existing) share token for a group.
func (s *Store) ShareGroup(ownerID, groupID string) (model.ShareLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return model.ShareLink{}, false
	}
	if g.ShareToken == "" {
		g.ShareToken = newToken()
		s.shares[g.ShareToken] = g.ID
	}
	return model.ShareLink{
		Token: g.ShareToken,
		URL:   s.webBase + "/share/" + g.ShareToken,
	}, true
}

// UnshareGroup revokes the share token; existing links die immediately.
func (s *Store) UnshareGroup(ownerID, groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return false
	}
	if g.ShareToken != "" {
		delete(s.shares, g.ShareToken)
		g.ShareToken = ""
	}
	return true
}

// SharedGroup resolves a share token to its group view.
func (s *Store) SharedGroup(token string) (model.VideoGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.shares[token]
	if !ok {
		return model.VideoGroup{}, false
	}
	g, ok := s.groups[groupID]
	if !ok {
		return model.VideoGroup{}, false
	}
	return s.groupViewLocked(g), true
}

// SharedVideo returns one member video of a shared group.
func (s *Store) SharedVideo(token, videoID string) (model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.shares[token]
	if !ok {
		return model.Video{}, false
	}
	g := s.groups[groupID]
	for _, id := range g.VideoIDs {
		if id == videoID {
			if v, ok := s.videos[id]; ok {
				return s.videoViewLocked(v), true
			}
		}
	}
	return model.Video{}, false
}

// shareContext resolves a share token to (groupID, owner, members).
func (s *Store) shareContext(token string) (string, string, []model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.shares[token]
	if !ok {
		return "", "", nil, false
	}
	g := s.groups[groupID]
	view := s.groupViewLocked(g)
	return groupID, g.OwnerID, view.Videos, true
}

// groupContext returns the member videos of an owned group.
func (s *Store) groupContext(ownerID, groupID string) ([]model.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || g.OwnerID != ownerID {
		return nil, false
	}
	return s.groupViewLocked(g).Videos, true
}

// --- tags ---

// ListTags returns the owner's tags sorted by name.
func (s *Store) ListTags(ownerID string) []model.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Tag
	for _, t := range s.tags {
		if t.OwnerID == ownerID {
			out = append(out, t.Tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateTag creates a tag.
func (s *Store) CreateTag(ownerID, name, color string) model.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &tagRec{Tag: model.Tag{ID: newID("tag"), Name: name, Color: color}, OwnerID: ownerID}
	s.tags[rec.ID] = rec
	return rec.Tag
}

// UpdateTag renames and/or recolors a tag.
func (s *Store) UpdateTag(ownerID, id, name, color string) (model.Tag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok || t.OwnerID != ownerID {
		return model.Tag{}, false
	}
	if name != "" {
		t.Name = name
	}
	if color != "" {
		t.Color = color
	}
	return t.Tag, true
}

// DeleteTag removes the tag and detaches it from every video.
func (s *Store) DeleteTag(ownerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok || t.OwnerID != ownerID {
		return false
	}
	delete(s.tags, id)
	for _, v := range s.videos {
		v.TagIDs = removeID(v.TagIDs, id)
	}
	return true
}

// --- chat logs ---

// AppendLog stores one answered exchange and returns its log id.
func (s *Store) AppendLog(ownerID, groupID, question, answer string, related []model.RelatedVideo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &logRec{
		ChatLogEntry: model.ChatLogEntry{
			LogID:         newID("log"),
			Question:      question,
			Answer:        answer,
			RelatedVideos: related,
			CreatedAt:     time.Now(),
		},
		OwnerID: ownerID,
		GroupID: groupID,
	}
	s.logs = append(s.logs, rec)
	return rec.LogID
}

// History returns the owner's exchanges, oldest first, optionally
// filtered to one group.
func (s *Store) History(ownerID, groupID string) []model.ChatLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChatLogEntry
	for _, rec := range s.logs {
		if rec.OwnerID != ownerID {
			continue
		}
		if groupID != "" && rec.GroupID != groupID {
			continue
		}
		out = append(out, rec.ChatLogEntry)
	}
	return out
}

// SetFeedback stores the feedback value on one exchange. The caller must
// either own the log or present the share token of its group.
func (s *Store) SetFeedback(logID string, value model.Feedback, ownerID, shareToken string) (model.FeedbackResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sharedGroup string
	if shareToken != "" {
		sharedGroup = s.shares[shareToken]
	}
	for _, rec := range s.logs {
		if rec.LogID != logID {
			continue
		}
		if rec.OwnerID != ownerID && (sharedGroup == "" || rec.GroupID != sharedGroup) {
			return model.FeedbackResult{}, false
		}
		rec.Feedback = value
		return model.FeedbackResult{LogID: logID, Feedback: value}, true
	}
	return model.FeedbackResult{}, false
}

// PopularScenes aggregates citation frequency across a group's chat
// log. Groups without any chat yet fall back to the opening moment of
// each member video so the panel is never empty.
func (s *Store) PopularScenes(groupID string) []model.PopularScene {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		videoID   string
		startTime string
	}
	counts := make(map[key]int)
	scenes := make(map[key]model.PopularScene)
	for _, rec := range s.logs {
		if rec.GroupID != groupID {
			continue
		}
		for _, rv := range rec.RelatedVideos {
			k := key{rv.VideoID, rv.StartTime}
			counts[k]++
			if _, ok := scenes[k]; !ok {
				scenes[k] = model.PopularScene{
					VideoID:   rv.VideoID,
					Title:     rv.Title,
					StartTime: rv.StartTime,
					Question:  rec.Question,
				}
			}
		}
	}

	if len(scenes) == 0 {
		g, ok := s.groups[groupID]
		if !ok {
			return nil
		}
		var out []model.PopularScene
		for i, id := range g.VideoIDs {
			if i >= 3 {
				break
			}
			if v, ok := s.videos[id]; ok && v.Status == model.StatusCompleted {
				out = append(out, model.PopularScene{
					VideoID:   v.ID,
					Title:     v.Title,
					StartTime: "00:30",
				})
			}
		}
		return out
	}

	out := make([]model.PopularScene, 0, len(scenes))
	keys := make([]key, 0, len(scenes))
	for k := range scenes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i].startTime < keys[j].startTime
	})
	for i, k := range keys {
		if i >= 10 {
			break
		}
		out = append(out, scenes[k])
	}
	return out
}

// --- billing and settings ---

// Plans returns the plan catalog.
func (s *Store) Plans() []model.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Plan(nil), s.plans...)
}

// PlanExists reports whether a plan id is in the catalog.
func (s *Store) PlanExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Subscription returns the user's current billing state.
func (s *Store) Subscription(userID string) (model.SubscriptionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return model.SubscriptionInfo{}, false
	}
	renews := time.Now().AddDate(0, 1, 0)
	return model.SubscriptionInfo{
		PlanID:   user.PlanID,
		Status:   "active",
		RenewsAt: &renews,
	}, true
}

// SetOpenAIKey stores the user's key.
func (s *Store) SetOpenAIKey(userID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false
	}
	user.OpenAIKey = key
	return true
}

// DeleteOpenAIKey removes the user's key.
func (s *Store) DeleteOpenAIKey(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false
	}
	user.OpenAIKey = ""
	return true
}

// KeyStatus reports whether a key is stored, exposing only its tail.
func (s *Store) KeyStatus(userID string) (model.KeyStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return model.KeyStatus{}, false
	}
	if user.OpenAIKey == "" {
		return model.KeyStatus{}, true
	}
	last4 := user.OpenAIKey
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return model.KeyStatus{Configured: true, Last4: last4}, true
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
