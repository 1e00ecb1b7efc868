package stubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Server is the stub backend's HTTP server.
type Server struct {
	store      *Store
	answer     Answerer
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a stub backend around a fresh seeded store.
func NewServer(cfg *Config) *Server {
	s := &Server{
		store:  NewStore(cfg.ProcessDelay, cfg.WebBaseURL),
		answer: NewAnswerer(cfg.OpenAIKey),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	// Public routes. Chat and feedback stay public because share-token
	// visitors have no account; the handlers check access themselves.
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/feedback", s.handleChatFeedback).Methods(http.MethodPost)
	r.HandleFunc("/api/shared/{token}", s.handleSharedGroup).Methods(http.MethodGet)
	r.HandleFunc("/api/shared/{token}/videos/{videoId}", s.handleSharedVideo).Methods(http.MethodGet)
	r.HandleFunc("/api/billing/plans", s.handlePlans).Methods(http.MethodGet)

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(s.requireAuth)

	authed.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/session", s.handleSession).Methods(http.MethodGet)

	authed.HandleFunc("/videos", s.handleListVideos).Methods(http.MethodGet)
	authed.HandleFunc("/videos", s.handleUploadVideo).Methods(http.MethodPost)
	authed.HandleFunc("/videos/{id}", s.handleGetVideo).Methods(http.MethodGet)
	authed.HandleFunc("/videos/{id}", s.handlePatchVideo).Methods(http.MethodPatch)
	authed.HandleFunc("/videos/{id}", s.handleDeleteVideo).Methods(http.MethodDelete)
	authed.HandleFunc("/videos/{id}/tags", s.handleSetVideoTags).Methods(http.MethodPut)

	authed.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	authed.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	authed.HandleFunc("/groups/{id}", s.handleGetGroup).Methods(http.MethodGet)
	authed.HandleFunc("/groups/{id}", s.handlePatchGroup).Methods(http.MethodPatch)
	authed.HandleFunc("/groups/{id}", s.handleDeleteGroup).Methods(http.MethodDelete)
	authed.HandleFunc("/groups/{id}/videos", s.handleAddGroupVideos).Methods(http.MethodPost)
	authed.HandleFunc("/groups/{id}/videos/{videoId}", s.handleRemoveGroupVideo).Methods(http.MethodDelete)
	authed.HandleFunc("/groups/{id}/order", s.handleSetGroupOrder).Methods(http.MethodPut)
	authed.HandleFunc("/groups/{id}/scenes/popular", s.handlePopularScenes).Methods(http.MethodGet)
	authed.HandleFunc("/groups/{id}/share", s.handleShareGroup).Methods(http.MethodPost)
	authed.HandleFunc("/groups/{id}/share", s.handleUnshareGroup).Methods(http.MethodDelete)

	authed.HandleFunc("/chat/history", s.handleChatHistory).Methods(http.MethodGet)
	authed.HandleFunc("/chat/history/export", s.handleChatExport).Methods(http.MethodGet)

	authed.HandleFunc("/tags", s.handleListTags).Methods(http.MethodGet)
	authed.HandleFunc("/tags", s.handleCreateTag).Methods(http.MethodPost)
	authed.HandleFunc("/tags/{id}", s.handlePatchTag).Methods(http.MethodPatch)
	authed.HandleFunc("/tags/{id}", s.handleDeleteTag).Methods(http.MethodDelete)

	authed.HandleFunc("/billing/subscription", s.handleSubscription).Methods(http.MethodGet)
	authed.HandleFunc("/billing/checkout", s.handleCheckout).Methods(http.MethodPost)
	authed.HandleFunc("/billing/portal", s.handlePortal).Methods(http.MethodPost)

	authed.HandleFunc("/settings/openai-key", s.handleSetKey).Methods(http.MethodPut)
	authed.HandleFunc("/settings/openai-key", s.handleDeleteKey).Methods(http.MethodDelete)
	authed.HandleFunc("/settings/openai-key/status", s.handleKeyStatus).Methods(http.MethodGet)

	s.router = r
}

// Handler exposes the route table, mainly for tests that run the stub
// behind httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Int("port", port).Msg("Starting stub backend")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info().Msg("Stopping stub backend")
	return s.httpServer.Shutdown(ctx)
}

type contextKey string

const userIDKey contextKey = "userID"

// requireAuth resolves the bearer token and stores the user id in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.bearerUser(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// bearerUser resolves the Authorization header to a user id, if any.
func (s *Server) bearerUser(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return s.store.Authenticate(token)
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
