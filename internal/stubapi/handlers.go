package stubapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	token, user, ok := s.store.Login(req.Email, req.Password)
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
		return
	}
	respondJSON(w, http.StatusOK, model.LoginResult{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		s.store.Logout(token)
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.store.UserView(userID(r))
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]model.User{"user": user})
}

// --- videos ---

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	videos, total := s.store.ListVideos(
		userID(r),
		q.Get("query"),
		model.VideoStatus(q.Get("status")),
		q.Get("sort"),
		page, limit,
	)
	if videos == nil {
		videos = []model.Video{}
	}
	respondJSON(w, http.StatusOK, model.VideoList{Videos: videos, Total: total})
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	// The stub discards the bytes; only metadata matters for development.
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "validation", "file part is required")
		return
	}
	file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	video := s.store.CreateVideo(userID(r), title, r.FormValue("description"), header.Filename)
	respondJSON(w, http.StatusCreated, video)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := s.store.Video(userID(r), mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "video_not_found", "no such video")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

func (s *Server) handlePatchVideo(w http.ResponseWriter, r *http.Request) {
	var patch model.VideoPatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	video, ok := s.store.UpdateVideo(userID(r), mux.Vars(r)["id"], patch)
	if !ok {
		respondError(w, http.StatusNotFound, "video_not_found", "no such video")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteVideo(userID(r), mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "video_not_found", "no such video")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetVideoTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TagIDs []string `json:"tagIds"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	video, found, ok := s.store.SetVideoTags(userID(r), mux.Vars(r)["id"], req.TagIDs)
	if !found {
		respondError(w, http.StatusNotFound, "video_not_found", "no such video")
		return
	}
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "unknown_tag", "one of the tag ids does not exist")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// --- groups ---

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.store.ListGroups(userID(r))
	if groups == nil {
		groups = []model.VideoGroup{}
	}
	respondJSON(w, http.StatusOK, map[string][]model.VideoGroup{"groups": groups})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusUnprocessableEntity, "validation", "name is required")
		return
	}
	respondJSON(w, http.StatusCreated, s.store.CreateGroup(userID(r), req.Name, req.Description))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := s.store.Group(userID(r), mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handlePatchGroup(w http.ResponseWriter, r *http.Request) {
	var patch model.GroupPatch
	if err := decodeBody(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	group, ok := s.store.UpdateGroup(userID(r), mux.Vars(r)["id"], patch)
	if !ok {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteGroup(userID(r), mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAddGroupVideos(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoIDs []string `json:"videoIds"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if len(req.VideoIDs) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "validation", "videoIds must not be empty")
		return
	}
	result, found, ok := s.store.AddGroupVideos(userID(r), mux.Vars(r)["id"], req.VideoIDs)
	if !found {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "video_not_found", "one of the video ids does not exist")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveGroupVideo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.store.RemoveGroupVideo(userID(r), vars["id"], vars["videoId"]) {
		respondError(w, http.StatusNotFound, "video_not_found", "video is not in this group")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetGroupOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoIDs []string `json:"videoIds"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	found, conflict := s.store.SetGroupOrder(userID(r), mux.Vars(r)["id"], req.VideoIDs)
	if !found {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	if conflict {
		respondError(w, http.StatusConflict, "order_mismatch",
			"submitted order does not match the group's membership")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePopularScenes(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	if _, ok := s.store.Group(userID(r), groupID); !ok {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	scenes := s.store.PopularScenes(groupID)
	if scenes == nil {
		scenes = []model.PopularScene{}
	}
	respondJSON(w, http.StatusOK, map[string][]model.PopularScene{"scenes": scenes})
}

func (s *Server) handleShareGroup(w http.ResponseWriter, r *http.Request) {
	link, ok := s.store.ShareGroup(userID(r), mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (s *Server) handleUnshareGroup(w http.ResponseWriter, r *http.Request) {
	if !s.store.UnshareGroup(userID(r), mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "group_not_found", "no such group")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- shared views ---

func (s *Server) handleSharedGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := s.store.SharedGroup(mux.Vars(r)["token"])
	if !ok {
		respondError(w, http.StatusNotFound, "share_not_found", "share link is gone")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleSharedVideo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	video, ok := s.store.SharedVideo(vars["token"], vars["videoId"])
	if !ok {
		respondError(w, http.StatusNotFound, "share_not_found", "share link is gone")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// --- chat ---

// handleChat answers one user turn. The context is either an owned group
// (bearer token required) or a shared group (share token suffices).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusUnprocessableEntity, "validation", "message is required")
		return
	}

	var (
		ownerID string
		groupID string
		videos  []model.Video
	)
	switch {
	case req.ShareToken != "":
		var ok bool
		groupID, ownerID, videos, ok = s.store.shareContext(req.ShareToken)
		if !ok {
			respondError(w, http.StatusNotFound, "share_not_found", "share link is gone")
			return
		}
	case req.GroupID != "":
		callerID, ok := s.bearerUser(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		videos, ok = s.store.groupContext(callerID, req.GroupID)
		if !ok {
			respondError(w, http.StatusNotFound, "group_not_found", "no such group")
			return
		}
		ownerID, groupID = callerID, req.GroupID
	default:
		respondError(w, http.StatusUnprocessableEntity, "validation", "groupId or shareToken is required")
		return
	}

	content, related, err := s.answer.Answer(r.Context(), req.Message, videos)
	if err != nil {
		log.Error().Err(err).Msg("Failed to answer chat message")
		respondError(w, http.StatusInternalServerError, "answer_failed", "could not produce an answer")
		return
	}

	logID := s.store.AppendLog(ownerID, groupID, req.Message, content, related)
	respondJSON(w, http.StatusOK, model.ChatReply{
		Content:       content,
		RelatedVideos: related,
		LogID:         logID,
	})
}

func (s *Server) handleChatFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LogID      string         `json:"logId"`
		Feedback   model.Feedback `json:"feedback"`
		ShareToken string         `json:"shareToken"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.LogID == "" {
		respondError(w, http.StatusUnprocessableEntity, "validation", "logId is required")
		return
	}
	if !req.Feedback.Valid() {
		respondError(w, http.StatusUnprocessableEntity, "validation", "feedback must be good, bad or null")
		return
	}

	callerID, _ := s.bearerUser(r)
	result, ok := s.store.SetFeedback(req.LogID, req.Feedback, callerID, req.ShareToken)
	if !ok {
		respondError(w, http.StatusNotFound, "log_not_found", "no such chat log entry")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.store.History(userID(r), r.URL.Query().Get("groupId"))
	if entries == nil {
		entries = []model.ChatLogEntry{}
	}
	respondJSON(w, http.StatusOK, map[string][]model.ChatLogEntry{"entries": entries})
}

func (s *Server) handleChatExport(w http.ResponseWriter, r *http.Request) {
	entries := s.store.History(userID(r), r.URL.Query().Get("groupId"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chat-history.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"question", "answer", "feedback", "createdAt"})
	for _, e := range entries {
		_ = cw.Write([]string{
			e.Question,
			e.Answer,
			string(e.Feedback),
			e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// --- tags ---

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags := s.store.ListTags(userID(r))
	if tags == nil {
		tags = []model.Tag{}
	}
	respondJSON(w, http.StatusOK, map[string][]model.Tag{"tags": tags})
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusUnprocessableEntity, "validation", "name is required")
		return
	}
	respondJSON(w, http.StatusCreated, s.store.CreateTag(userID(r), req.Name, req.Color))
}

func (s *Server) handlePatchTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	tag, ok := s.store.UpdateTag(userID(r), mux.Vars(r)["id"], req.Name, req.Color)
	if !ok {
		respondError(w, http.StatusNotFound, "tag_not_found", "no such tag")
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteTag(userID(r), mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "tag_not_found", "no such tag")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- billing and settings ---

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]model.Plan{"plans": s.store.Plans()})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.store.Subscription(userID(r))
	if !ok {
		respondError(w, http.StatusNotFound, "subscription_not_found", "no subscription on file")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !s.store.PlanExists(req.PlanID) {
		respondError(w, http.StatusNotFound, "plan_not_found", "no such plan")
		return
	}
	respondJSON(w, http.StatusOK, model.CheckoutSession{
		URL: "https://billing.vidlib.example/checkout/" + req.PlanID + "?session=" + newToken(),
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, model.CheckoutSession{
		URL: "https://billing.vidlib.example/portal?session=" + newToken(),
	})
}

func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.APIKey == "" {
		respondError(w, http.StatusUnprocessableEntity, "validation", "apiKey is required")
		return
	}
	if !s.store.SetOpenAIKey(userID(r), req.APIKey) {
		respondError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteOpenAIKey(userID(r)) {
		respondError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleKeyStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.store.KeyStatus(userID(r))
	if !ok {
		respondError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return
	}
	respondJSON(w, http.StatusOK, status)
}
