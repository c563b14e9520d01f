// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/httpapi"
	"github.com/libretto/libretto/internal/session"
)

type env struct {
	ts     *httptest.Server
	users  *memUserRepo
	books  *memBookRepo
	genres *memGenreRepo
	mr     *miniredis.Miniredis
	auth   *auth.Service
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func newEnv(t *testing.T) *env {
	t.Helper()

	accessKey := testKey(t)
	refreshKey := testKey(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := newMemUserRepo()
	books := newMemBookRepo()
	genres := newMemGenreRepo()
	registry := session.NewRedisRegistry(client)

	svc, err := auth.NewService(users, registry, auth.NewArgon2idHasher(), auth.TokenConfig{
		AccessPrivateKey:  accessKey,
		AccessPublicKey:   &accessKey.PublicKey,
		RefreshPrivateKey: refreshKey,
		RefreshPublicKey:  &refreshKey.PublicKey,
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        time.Hour,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            "127.0.0.1:0",
		Logger:          logger,
		Auth:            svc,
		Users:           users,
		Books:           books,
		Genres:          genres,
		Registry:        registry,
		Cache:           httpapi.NewCache(client, time.Minute, logger),
		AccessPublicKey: &accessKey.PublicKey,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &env{ts: ts, users: users, books: books, genres: genres, mr: mr, auth: svc}
}

func (e *env) do(t *testing.T, client *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Message
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"first_name": "Mikhail",
		"last_name":  "Bulgakov",
		"age":        48,
		"email":      email,
		"password":   "correct horse battery",
	}
}

// register creates an account through the API and returns its id,
// optionally promoting it to the given role afterwards.
func (e *env) register(t *testing.T, email string, role auth.Role) uuid.UUID {
	t.Helper()
	resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/register/", registerBody(email))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var user struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))

	if role != auth.RoleUser {
		e.users.setRole(user.ID, role)
	}
	return user.ID
}

// login authenticates and returns a cookie-carrying client plus the raw
// access token.
func (e *env) login(t *testing.T, email string) (*http.Client, string) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp := e.do(t, client, http.MethodPost, "/api/v1/user/login/", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.NotEmpty(t, body.AccessToken)
	return client, body.AccessToken
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/register/", registerBody("mikhail@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, "User registered successfully", env.Message)

	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "mikhail@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "password_hash")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.register(t, "dup@example.com", auth.RoleUser)

	resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/register/", registerBody("DUP@example.com"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already registered", errorMessage(t, resp))
}

func TestRegister_InvalidInput(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing fields", map[string]any{"email": "a@example.com"}},
		{"wrong type for age", func() map[string]any {
			b := registerBody("typed@example.com")
			b["age"] = "forty-eight"
			return b
		}()},
		{"bad email", func() map[string]any {
			b := registerBody("not-an-email")
			return b
		}()},
		{"short password", func() map[string]any {
			b := registerBody("short@example.com")
			b["password"] = "short"
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/register/", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Invalid input data", errorMessage(t, resp))
		})
	}
}

func TestLogin_SetsCookies(t *testing.T) {
	e := newEnv(t)
	e.register(t, "reader@example.com", auth.RoleUser)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp := e.do(t, client, http.MethodPost, "/api/v1/user/login/", map[string]string{
		"email":    "reader@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() { _ = resp.Body.Close() }()

	cookies := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, "access_token")
	require.Contains(t, cookies, "refresh_token")
	require.Contains(t, cookies, "logged_in")

	assert.True(t, cookies["access_token"].HttpOnly)
	assert.True(t, cookies["refresh_token"].HttpOnly)
	assert.False(t, cookies["logged_in"].HttpOnly)
	assert.Equal(t, "true", cookies["logged_in"].Value)
	assert.Equal(t, "/", cookies["access_token"].Path)
	assert.Equal(t, int((15 * time.Minute).Seconds()), cookies["access_token"].MaxAge)
	assert.Equal(t, int(time.Hour.Seconds()), cookies["refresh_token"].MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t)
	e.register(t, "known@example.com", auth.RoleUser)

	tests := []struct {
		name  string
		email string
	}{
		{"wrong password", "known@example.com"},
		{"unknown email", "nobody@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/login/", map[string]string{
				"email":    tt.email,
				"password": "wrong password",
			})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Invalid email or password", errorMessage(t, resp))
		})
	}
}

func TestAuthGate(t *testing.T) {
	e := newEnv(t)
	e.register(t, "reader@example.com", auth.RoleUser)
	e.register(t, "author@example.com", auth.RoleAuthor)

	t.Run("missing token", func(t *testing.T) {
		resp := e.do(t, http.DefaultClient, http.MethodPost, "/api/v1/user/logout/", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "You are not logged in, please provide token", errorMessage(t, resp))
	})

	t.Run("forged token", func(t *testing.T) {
		otherKey := testKey(t)
		minted, err := auth.MintToken(uuid.New(), time.Minute, otherKey)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/user/logout/", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+minted.Token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Token is invalid or session has expired", errorMessage(t, resp))
	})

	t.Run("revoked session via bearer header", func(t *testing.T) {
		_, token := e.login(t, "reader@example.com")
		e.mr.FlushAll()

		req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/user/logout/", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Token is invalid or session has expired", errorMessage(t, resp))
	})

	t.Run("vanished user", func(t *testing.T) {
		id := e.register(t, "gone@example.com", auth.RoleUser)
		_, token := e.login(t, "gone@example.com")
		e.users.delete(id)

		req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/user/logout/", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "The user belonging to this token no longer exists", errorMessage(t, resp))
	})

	t.Run("insufficient role", func(t *testing.T) {
		client, _ := e.login(t, "reader@example.com")
		resp := e.do(t, client, http.MethodPost, "/api/v1/book/genres/create/", map[string]string{"name": "Satire"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "You do not have permission to access this resource", errorMessage(t, resp))
	})
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	e.register(t, "reader@example.com", auth.RoleUser)
	client, token := e.login(t, "reader@example.com")

	resp := e.do(t, client, http.MethodPost, "/api/v1/user/logout/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cleared := map[string]bool{}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	_ = resp.Body.Close()
	assert.True(t, cleared["access_token"])
	assert.True(t, cleared["refresh_token"])
	assert.True(t, cleared["logged_in"])

	// The access session is revoked: the same token no longer passes
	// the gate, and the failure is a 401, never a 500.
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/user/logout/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Equal(t, "Token is invalid or session has expired", errorMessage(t, resp2))
}

func TestLogout_MissingRefreshCookie(t *testing.T) {
	e := newEnv(t)
	e.register(t, "reader@example.com", auth.RoleUser)
	_, token := e.login(t, "reader@example.com")

	// Bearer auth passes the gate, but logout insists on the refresh
	// cookie.
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/user/logout/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Token is invalid or session has expired", errorMessage(t, resp))
}

func TestServerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	accessKey := testKey(t)
	refreshKey := testKey(t)

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	users := newMemUserRepo()
	registry := session.NewRedisRegistry(client)
	svc, err := auth.NewService(users, registry, auth.NewArgon2idHasher(), auth.TokenConfig{
		AccessPrivateKey:  accessKey,
		AccessPublicKey:   &accessKey.PublicKey,
		RefreshPrivateKey: refreshKey,
		RefreshPublicKey:  &refreshKey.PublicKey,
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        time.Hour,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            "127.0.0.1:0",
		Logger:          logger,
		Auth:            svc,
		Users:           users,
		Books:           newMemBookRepo(),
		Genres:          newMemGenreRepo(),
		Registry:        registry,
		Cache:           httpapi.NewCache(client, time.Minute, logger),
		AccessPublicKey: &accessKey.PublicKey,
	})
	require.NoError(t, err)

	errCh, err := srv.Start()
	require.NoError(t, err)
	require.NotEmpty(t, srv.Addr())

	// Double start must fail while running.
	_, err = srv.Start()
	require.Error(t, err)

	httpClient := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := httpClient.Get("http://" + srv.Addr() + "/api/v1/book")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}
