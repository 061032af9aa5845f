package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"metroplan/internal/domain"
	"metroplan/internal/planner"
	"metroplan/internal/store"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type validationErrorResponse struct {
	Error  string                  `json:"error"`
	Errors domain.ValidationErrors `json:"errors"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps planner errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		respondJSON(w, http.StatusBadRequest, validationErrorResponse{Error: "validation failed", Errors: verrs})
	case errors.Is(err, planner.ErrRouteNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrNoSegments),
		errors.Is(err, planner.ErrNoRoutes),
		errors.Is(err, planner.ErrTooManyRoutes):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotLoaded):
		respondError(w, http.StatusServiceUnavailable, "network not loaded")
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a request body on top of dst, so fields absent from
// the body keep whatever dst already holds.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
