// Package api is the admin HTTP surface: trigger a reminder run on demand
// and inspect the notification log.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/circuitbreaker"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/reminder"
)

// LogRepository reads the notification log
type LogRepository interface {
	ListNotificationLogs(ctx context.Context, subscriptionID uuid.UUID, limit, offset int) ([]*db.NotificationLog, error)
}

// Runner triggers one reminder run
type Runner interface {
	Run(ctx context.Context) reminder.RunReport
}

// HealthChecker is satisfied by *db.DB
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Breakers []circuitbreaker.Stats `json:"breakers"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger   *zap.Logger
	repo     LogRepository
	runner   Runner
	health   HealthChecker
	breakers []*circuitbreaker.CircuitBreaker
}

// NewHandler creates a new API handler. health may be nil.
func NewHandler(logger *zap.Logger, repo LogRepository, runner Runner, health HealthChecker, breakers ...*circuitbreaker.CircuitBreaker) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		runner:   runner,
		health:   health,
		breakers: breakers,
	}
}

// RunReminders handles POST /v1/reminders/run. The run is synchronous and
// detached from the request context so a client disconnect cannot abort it
// halfway through the candidate list.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	report := h.runner.Run(context.WithoutCancel(r.Context()))

	status := http.StatusOK
	switch report.Result {
	case reminder.ResultSkipped:
		status = http.StatusConflict
	case reminder.ResultAborted, reminder.ResultPanicked:
		status = http.StatusInternalServerError
	}

	h.logger.Info("manual reminder run finished",
		zap.String("result", report.Result),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)

	h.writeJSON(w, status, report)
}

// ListNotificationLogs handles GET /v1/subscriptions/{id}/notifications?limit=20&offset=0
func (h *Handler) ListNotificationLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	subID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid subscription ID", "ID must be a valid UUID")
		return
	}

	limit, offset := pagination(r)

	logs, err := h.repo.ListNotificationLogs(ctx, subID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notification logs",
			zap.Error(err),
			zap.String("subscription_id", idStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notification logs", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   logs,
		"limit":  limit,
		"offset": offset,
		"count":  len(logs),
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Breakers: make([]circuitbreaker.Stats, 0, len(h.breakers)),
	}

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Health(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Database = "unreachable"
		}
	}

	for _, cb := range h.breakers {
		resp.Breakers = append(resp.Breakers, cb.Stats())
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

// pagination reads limit (1..100, default 20) and offset (default 0);
// out-of-range values fall back to the defaults
func pagination(r *http.Request) (limit, offset int) {
	limit = 20

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
