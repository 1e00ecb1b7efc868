// Package server exposes the bot's health and Prometheus metrics
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/vidlib-bot-go/internal/store"
)

// Metrics for Prometheus
var (
	apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlib_bot_api_requests_total",
		Help: "Total number of backend API requests",
	}, []string{"method", "status"})

	apiRequestSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidlib_bot_api_request_seconds",
		Help:    "Duration of backend API requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	cacheEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlib_bot_cache_events_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlib_bot_chat_messages_total",
		Help: "Chat questions sent, by outcome",
	}, []string{"outcome"})

	feedbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlib_bot_feedback_total",
		Help: "Chat feedback updates, by stored value",
	}, []string{"value"})

	reordersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidlib_bot_reorders_total",
		Help: "Group reorder submissions, by outcome",
	}, []string{"outcome"})

	uploadsWatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidlib_bot_uploads_watched_total",
		Help: "Uploads registered for status watching",
	})
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestSeconds)
	prometheus.MustRegister(cacheEventsTotal)
	prometheus.MustRegister(chatMessagesTotal)
	prometheus.MustRegister(feedbackTotal)
	prometheus.MustRegister(reordersTotal)
	prometheus.MustRegister(uploadsWatchedTotal)
}

// Backend is the slice of the API client the health check needs.
type Backend interface {
	Health(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
	Uptime  string `json:"uptime"`
}

// Server handles HTTP requests for health checks and metrics
type Server struct {
	store     store.Store
	backend   Backend
	router    *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(store store.Store, backend Backend) *Server {
	s := &Server{
		store:     store,
		backend:   backend,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles the /health endpoint. The bot is healthy when both
// its session store and the backend API answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		storeStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	backendStatus := "healthy"
	if s.backend != nil {
		if err := s.backend.Health(ctx); err != nil {
			backendStatus = fmt.Sprintf("unreachable: %v", err)
		}
	}

	uptime := time.Since(s.startTime).Round(time.Second).String()

	status := "healthy"
	if storeStatus != "healthy" || backendStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:  status,
		Backend: backendStatus,
		Store:   storeStatus,
		Uptime:  uptime,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RecordAPIRequest records one completed backend request. Wired as the
// API client's OnRequest hook.
func RecordAPIRequest(method string, status int, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	apiRequestSeconds.Observe(elapsed.Seconds())
}

// RecordCacheEvent records a cache hit or miss
func RecordCacheEvent(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheEventsTotal.WithLabelValues(result).Inc()
}

// RecordChatMessage records one chat question by outcome ("answered" or
// "failed")
func RecordChatMessage(outcome string) {
	chatMessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordFeedback records a stored feedback value ("good", "bad" or
// "cleared")
func RecordFeedback(value string) {
	feedbackTotal.WithLabelValues(value).Inc()
}

// RecordReorder records a reorder submission outcome ("applied" or
// "reverted")
func RecordReorder(outcome string) {
	reordersTotal.WithLabelValues(outcome).Inc()
}

// RecordUploadWatched counts an upload registered with the watcher
func RecordUploadWatched() {
	uploadsWatchedTotal.Inc()
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
