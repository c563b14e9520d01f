// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/libretto/libretto/internal/auth"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	loggedInCookie     = "logged_in"
)

// registerRequest is the registration body. It mirrors
// auth.RegisterInput with wire names.
type registerRequest struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	MiddleName *string `json:"middle_name,omitempty"`
	Age        int     `json:"age"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// userResponse is the public view of a user. The password digest never
// appears in a response.
type userResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	MiddleName *string   `json:"middle_name,omitempty"`
	Age        int       `json:"age"`
	Email      string    `json:"email"`
	Verified   bool      `json:"verified"`
	Role       string    `json:"role"`
	Balance    float64   `json:"balance"`
	Rating     float64   `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		MiddleName: u.MiddleName,
		Age:        u.Age,
		Email:      u.Email,
		Verified:   u.Verified,
		Role:       string(u.Role),
		Balance:    u.Balance,
		Rating:     u.Rating,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// handleRegister creates a new account with the default role.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeRequest(r, "user_register", &req); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		MiddleName: req.MiddleName,
		Age:        req.Age,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, newUserResponse(user), "User registered successfully")
}

// handleLogin verifies credentials and establishes a session. The token
// pair travels in cookies; the access token is additionally returned in
// the body for clients that prefer the Authorization header.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(r, "user_login", &req); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	_, pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	setSessionCookie(w, accessTokenCookie, pair.Access.Token, s.auth.AccessTTL(), true)
	setSessionCookie(w, refreshTokenCookie, pair.Refresh.Token, s.auth.RefreshTTL(), true)
	// logged_in is readable by frontend scripts so they can tell a
	// session exists without holding the token itself.
	setSessionCookie(w, loggedInCookie, "true", s.auth.AccessTTL(), false)

	writeSuccess(w, http.StatusOK, loginResponse{AccessToken: pair.Access.Token}, "Logged in successfully")
}

// handleLogout revokes the refresh session named by the refresh_token
// cookie plus the caller's current access session, then clears all
// session cookies.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You are not logged in, please provide token")
		return
	}

	refresh, err := r.Cookie(refreshTokenCookie)
	if err != nil || refresh.Value == "" {
		writeError(w, http.StatusForbidden, "Token is invalid or session has expired")
		return
	}

	if err := s.auth.Logout(r.Context(), refresh.Value, principal.SessionID); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	clearSessionCookie(w, accessTokenCookie, true)
	clearSessionCookie(w, refreshTokenCookie, true)
	clearSessionCookie(w, loggedInCookie, false)

	writeSuccess(w, http.StatusOK, nil, "Logged out successfully")
}

func setSessionCookie(w http.ResponseWriter, name, value string, ttl time.Duration, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	})
}
