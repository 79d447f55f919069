package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"secmon-service/internal/search"
	"secmon-service/internal/service"
	"secmon-service/internal/util"
)

// SecurityHandler serves the security monitoring API.
type SecurityHandler struct {
	securityService *service.SecurityService
	logger          *zap.Logger
}

func NewSecurityHandler(securityService *service.SecurityService, logger *zap.Logger) *SecurityHandler {
	return &SecurityHandler{
		securityService: securityService,
		logger:          logger,
	}
}

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries paging metadata.
type Meta struct {
	Total    int `json:"total,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

// RegisterRoutes registers the security monitoring routes.
func (h *SecurityHandler) RegisterRoutes(router chi.Router) {
	router.Route("/security", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Get("/events/search", h.SearchEvents)
		r.Get("/stats", h.GetStats)
		r.Post("/refresh", h.Refresh)
	})
}

// ListEvents returns the latest page of normalized security events.
func (h *SecurityHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	limit := queryInt(r, "limit", 100)

	events, err := h.securityService.Events(ctx, limit)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to load security events")
		return
	}

	resp := successResponse(events, "Security events loaded")
	resp.Meta = &Meta{Total: len(events), PageSize: limit}
	h.respondWithJSON(w, http.StatusOK, resp)

	h.logger.Info("Security events served",
		util.Int("event_count", len(events)),
		util.Duration("duration", time.Since(startTime)),
	)
}

// GetStats returns the aggregated snapshot for a timeframe.
func (h *SecurityHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	timeframe := r.URL.Query().Get("timeframe")

	stats, err := h.securityService.Snapshot(ctx, timeframe, false)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to compute security stats")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(stats, "Security stats computed"))

	h.logger.Info("Security stats served",
		util.String("timeframe", timeframe),
		util.Int("total_events", stats.TotalEvents),
		util.Duration("duration", time.Since(startTime)),
	)
}

// Refresh recomputes the snapshot, bypassing the cache.
func (h *SecurityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timeframe := r.URL.Query().Get("timeframe")

	stats, err := h.securityService.Snapshot(ctx, timeframe, true)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to refresh security stats")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(stats, "Security stats refreshed"))
}

// SearchEvents queries the event search index by type/severity/ip/user.
func (h *SecurityHandler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	filters := search.Filters{
		Type:     q.Get("type"),
		Severity: q.Get("severity"),
		IP:       q.Get("ip"),
		UserID:   q.Get("user_id"),
	}
	limit := queryInt(r, "limit", 100)

	events, err := h.securityService.SearchEvents(ctx, filters, limit)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to search security events")
		return
	}

	resp := successResponse(events, "Security events found")
	resp.Meta = &Meta{Total: len(events), PageSize: limit}
	h.respondWithJSON(w, http.StatusOK, resp)
}

func (h *SecurityHandler) respondWithJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

func (h *SecurityHandler) respondWithError(w http.ResponseWriter, status int, err error, message string) {
	h.logger.Warn("Request failed",
		util.Int("status", status),
		util.ErrorField(err),
	)
	h.respondWithJSON(w, status, errorResponse(err, message))
}

func (h *SecurityHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
