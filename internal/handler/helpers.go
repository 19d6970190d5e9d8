package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
)

var (
	errBadBody      = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

// writeJSON serializes v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, model.Success(message, data))
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Failure(message))
}

// readJSON decodes the request body into v. With strict set, unknown fields
// are rejected so only allow-listed fields reach the service.
func readJSON(r *http.Request, v interface{}, strict bool) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return errBadBody
	}
	return nil
}

// writeServiceError maps service and decode errors onto the envelope.
// Unrecognized errors are logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, errBadBody):
		writeError(w, http.StatusBadRequest, "Invalid request body")
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	case errors.Is(err, service.ErrTokenMissing),
		errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "Not authorized to access this route. Please login.")
	case errors.Is(err, service.ErrIdentityNotFound):
		writeError(w, http.StatusNotFound, "Admin not found")
	case errors.Is(err, service.ErrEmailInUse):
		writeError(w, http.StatusBadRequest, "Email already in use")
	case errors.Is(err, service.ErrIncorrectPassword):
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, service.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrUnknownCollection):
		writeError(w, http.StatusNotFound, "Route not found")
	default:
		logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampInt constrains val to be within [lo, hi].
func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
