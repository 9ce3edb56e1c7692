package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/service"
)

// ThrottleHandler handles HTTP requests for rate-limit operations
type ThrottleHandler struct {
	throttleService *service.ThrottleService
	logger          *zap.Logger
}

// NewThrottleHandler creates a new throttle handler
func NewThrottleHandler(throttleService *service.ThrottleService, logger *zap.Logger) *ThrottleHandler {
	return &ThrottleHandler{
		throttleService: throttleService,
		logger:          logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
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

// CheckRequest is the body of a rate-limit check
type CheckRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

// CheckResponse mirrors ratelimit.Result for the wire
type CheckResponse struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// CleanupResponse reports a cleanup run
type CleanupResponse struct {
	RecordsRemoved int64 `json:"records_removed"`
}

// LimitEntry is one row of the action limit table
type LimitEntry struct {
	Action      string `json:"action"`
	MaxRequests int    `json:"max_requests"`
	WindowMs    int64  `json:"window_ms"`
}

// RegisterRoutes registers all throttle routes
func (h *ThrottleHandler) RegisterRoutes(router chi.Router) {
	router.Route("/throttle", func(r chi.Router) {
		r.Post("/check", h.CheckRateLimit)
		r.Post("/cleanup", h.Cleanup)
		r.Get("/limits", h.GetLimits)
	})
}

// CheckRateLimit decides one (user, action) check. A denied check is a 429
// with the same payload shape; callers read allowed/reset_at either way.
func (h *ThrottleHandler) CheckRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request body"))
		return
	}

	result, err := h.throttleService.CheckRateLimit(ctx, req.UserID, req.Action)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUserID) || errors.Is(err, service.ErrInvalidAction) {
			h.writeJSON(w, http.StatusBadRequest, errorResponse(err, "invalid request"))
			return
		}
		h.logger.Error("rate limit check failed",
			zap.String("user_id", req.UserID),
			zap.String("action", req.Action),
			zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse(err, "rate limit check failed"))
		return
	}

	payload := CheckResponse{
		Allowed:   result.Allowed,
		Remaining: result.Remaining,
		ResetAt:   result.ResetAt,
	}

	if !result.Allowed {
		retryIn := time.Until(result.ResetAt).Round(time.Second)
		w.Header().Set("Retry-After", formatSeconds(retryIn))
		h.writeJSON(w, http.StatusTooManyRequests,
			Response{Success: true, Data: payload, Message: "rate limit exceeded, try again in " + retryIn.String()})
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse(payload, "allowed"))
}

// Cleanup triggers the retention sweep. Intended for the out-of-band
// scheduler; idempotent.
func (h *ThrottleHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.throttleService.Cleanup(ctx)
	if err != nil {
		h.logger.Error("cleanup failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse(err, "cleanup failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse(CleanupResponse{RecordsRemoved: removed}, "cleanup completed"))
}

// GetLimits returns the configured action limit table.
func (h *ThrottleHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	rules := h.throttleService.Rules()

	entries := make([]LimitEntry, 0, len(rules))
	for _, action := range ratelimit.KnownActions() {
		rule, ok := rules[action]
		if !ok {
			continue
		}
		entries = append(entries, LimitEntry{
			Action:      string(action),
			MaxRequests: rule.MaxRequests,
			WindowMs:    rule.Window.Milliseconds(),
		})
	}

	h.writeJSON(w, http.StatusOK, successResponse(entries, ""))
}

func (h *ThrottleHandler) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
