package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/storage"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
)

var (
	// ErrBadRequest is returned when the provided HTTP request
	// is malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrNotFound is returned for unknown routes.
	ErrNotFound         = errors.New("route not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

func HttpCodeForError(err error) int {
	var unsupported *postgres.UnsupportedTypeError
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound),
		errors.Is(err, common.ErrChainNotRegistered),
		errors.Is(err, storage.ErrEngineNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pgErr):
		// Errors raised by the server while running a user query.
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("x-content-type-options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as a failed ResponseMeta with the matching status.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HttpCodeForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", r.Context().Value(common.RequestIDContextKey),
			"err", err,
		)
	}
	writeJSON(w, status, ErrorResponse{Meta: ResponseMeta{
		Code:    CodeError,
		Message: http.StatusText(status),
		Reason:  err.Error(),
	}})
}
