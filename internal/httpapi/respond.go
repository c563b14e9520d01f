// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package httpapi exposes the REST surface: user registration and
// sessions under /api/v1/user, the book catalog under /api/v1/book.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/store"
	"github.com/libretto/libretto/pkg/errutil"
)

// SuccessResponse is the envelope for successful responses.
type SuccessResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope for error responses. Internal error
// detail never leaves the server; Message is safe for clients.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, SuccessResponse{Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError maps a service error onto the HTTP status taxonomy
// and writes the response. Unrecognized errors become an opaque 500.
func writeServiceError(logger *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, "Invalid input data")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Token is invalid or session has expired")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Duplicate entry")
	default:
		errutil.LogError(logger, "request failed", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// isValidationError reports whether err came from input validation
// rather than from a downstream dependency.
func isValidationError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return false
	}
	return strings.HasSuffix(code, "_INVALID_INPUT")
}
