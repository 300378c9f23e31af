package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viewtube/backend/internal/assets"
	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/repositories"
)

// apiResponse is the uniform success envelope.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// apiErrorBody is the uniform failure envelope.
type apiErrorBody struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	Success    bool     `json:"success"`
}

// errUnauthorized covers missing or rejected credentials outside the token
// service (e.g. a failed password comparison).
var errUnauthorized = errors.New("invalid credentials")

// errAssetDeletion marks a remote deletion that answered neither ok nor
// not-found; the surrounding update must abort rather than risk asset drift.
var errAssetDeletion = errors.New("remote asset deletion failed")

// errRateLimited marks a request rejected by the per-IP limiter.
var errRateLimited = errors.New("rate limit exceeded")

// badRequestError carries a validation message to the response boundary.
// Validation happens before any I/O, so these never wrap dependency errors.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return badRequestError{msg: msg} }

func respondData(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// respondError is the single boundary converting internal failures into the
// error envelope. Every controller-level failure funnels through here.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var br badRequestError
	switch {
	case errors.As(err, &br):
		status = http.StatusBadRequest
		message = br.msg
	case errors.Is(err, errUnauthorized),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenReused):
		status = http.StatusUnauthorized
		message = "unauthorized request"
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
		message = "you are not allowed to modify this resource"
	case errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
		message = "resource not found"
	case errors.Is(err, repositories.ErrConflict):
		status = http.StatusConflict
		message = "resource already exists"
	case errors.Is(err, errRateLimited):
		status = http.StatusTooManyRequests
		message = "too many requests, slow down"
	case errors.Is(err, assets.ErrUnavailable), errors.Is(err, errAssetDeletion):
		status = http.StatusServiceUnavailable
		message = "media storage unavailable"
	}

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	writeJSON(ctx, w, status, apiErrorBody{
		StatusCode: status,
		Message:    message,
		Errors:     []string{err.Error()},
		Success:    false,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
