// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/libretto/libretto/internal/auth"
)

type contextKey int

const (
	principalKey contextKey = iota
	requestIDKey
)

// Principal is the authenticated caller attached to the request context
// by the auth gate.
type Principal struct {
	User      *auth.User
	SessionID uuid.UUID
}

// PrincipalFrom extracts the authenticated principal from a request
// context. The second return is false on requests that did not pass
// through the auth gate.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// RequestIDFrom extracts the request id from a request context.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// withRequestID assigns a ULID to each request, honoring an inbound
// X-Request-Id header when present.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// withAccessLog logs one line per request and feeds the request counter.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := routeLabel(r)
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		}
		s.logger.Info("request",
			"request_id", RequestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// routeLabel returns the matched mux pattern without the method prefix,
// so metrics cardinality stays bounded by the route table.
func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return "unmatched"
	}
	if _, route, ok := strings.Cut(pattern, " "); ok {
		return route
	}
	return pattern
}

// authenticate gates a handler behind a valid access token and, when
// allowed is non-empty, one of the listed roles. The token comes from
// the access_token cookie or an Authorization bearer header; the session
// id inside it must still be live in the registry, and the user it maps
// to must still exist.
func (s *Server) authenticate(allowed ...auth.Role) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				s.rejectAuth(w, "missing_token", http.StatusUnauthorized,
					"You are not logged in, please provide token")
				return
			}

			sessionID, _, err := auth.VerifyToken(token, s.accessPublicKey)
			if err != nil {
				s.rejectAuth(w, "invalid_token", http.StatusUnauthorized,
					"Token is invalid or session has expired")
				return
			}

			// The registry, not the token, decides whether the session
			// is still live. The user id stored at login is the one
			// trusted from here on.
			userID, err := s.registry.Get(r.Context(), sessionID)
			if err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					s.rejectAuth(w, "expired_session", http.StatusUnauthorized,
						"Token is invalid or session has expired")
					return
				}
				writeServiceError(s.logger, w, err)
				return
			}

			user, err := s.users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					s.rejectAuth(w, "unknown_user", http.StatusUnauthorized,
						"The user belonging to this token no longer exists")
					return
				}
				writeServiceError(s.logger, w, err)
				return
			}

			if len(allowed) > 0 && !slices.Contains(allowed, user.Role) {
				s.rejectAuth(w, "forbidden_role", http.StatusForbidden,
					"You do not have permission to access this resource")
				return
			}

			principal := &Principal{User: user, SessionID: sessionID}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) rejectAuth(w http.ResponseWriter, reason string, status int, message string) {
	if s.metrics != nil {
		s.metrics.AuthRejections.WithLabelValues(reason).Inc()
	}
	writeError(w, status, message)
}

// tokenFromRequest pulls the access token from the access_token cookie,
// falling back to an Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}
