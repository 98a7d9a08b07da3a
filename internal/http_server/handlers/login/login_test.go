package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"session_auth/internal/auth"
	"session_auth/internal/http_server/cookies"
	"session_auth/internal/lib/api/response"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/lib/validation"
	"session_auth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	pair models.TokenPair
	err  error
}

func (s stubAuthenticator) Login(context.Context, string, string) (models.TokenPair, error) {
	return s.pair, s.err
}

func do(t *testing.T, a stubAuthenticator, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	h := New(sl.NewDiscardLogger(), validation.New(""), a, cookies.Policy{Secure: true, SameSite: http.SameSiteLaxMode})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return rec, resp
}

func TestLogin_SetsCookies(t *testing.T) {
	now := time.Now()
	a := stubAuthenticator{pair: models.TokenPair{
		AccessToken:      "access",
		AccessExpiresAt:  now.Add(time.Minute),
		RefreshToken:     "refresh",
		RefreshExpiresAt: now.Add(time.Hour),
	}}

	rec, resp := do(t, a, `{"email":"user@example.com","password":"whatever"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, response.OK(), resp)

	got := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		got[c.Name] = c
	}

	require.Contains(t, got, cookies.AccessTokenName)
	require.Contains(t, got, cookies.RefreshTokenName)
	assert.Equal(t, "access", got[cookies.AccessTokenName].Value)
	assert.Equal(t, "refresh", got[cookies.RefreshTokenName].Value)
	assert.True(t, got[cookies.AccessTokenName].HttpOnly)
	assert.True(t, got[cookies.RefreshTokenName].HttpOnly)

	// tokens travel in cookies only
	assert.NotContains(t, rec.Body.String(), "access")
}

func TestLogin_Errors(t *testing.T) {
	valid := `{"email":"user@example.com","password":"whatever"}`

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"undecodable", `nope`, nil, http.StatusBadRequest, "Failed to decode request"},
		{"invalid email", `{"email":"nope","password":"x"}`, nil, http.StatusUnprocessableEntity, "field email is not a valid email"},
		{"user not exists", valid, fmt.Errorf("op: %w", auth.ErrUserNotExists), http.StatusBadRequest, "User not exists"},
		{"incorrect password", valid, fmt.Errorf("op: %w", auth.ErrIncorrectPassword), http.StatusBadRequest, "Incorrect password"},
		{"unified", valid, fmt.Errorf("op: %w", auth.ErrInvalidCredentials), http.StatusBadRequest, "Invalid credentials"},
		{"internal", valid, errors.New("boom"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, stubAuthenticator{err: tt.err}, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}
