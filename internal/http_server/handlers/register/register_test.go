package register

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"session_auth/internal/auth"
	"session_auth/internal/lib/api/response"
	sl "session_auth/internal/lib/logger"
	"session_auth/internal/lib/password"
	"session_auth/internal/lib/validation"
	"session_auth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistrar struct {
	calls int
	email string
	phone string
	err   error
}

func (s *stubRegistrar) RegisterNewUser(_ context.Context, email, _ string, phoneNumber string) (models.User, error) {
	s.calls++
	s.email = email
	s.phone = phoneNumber

	if s.err != nil {
		return models.User{}, s.err
	}

	return models.User{ID: "id-1", Email: email}, nil
}

func do(t *testing.T, registrar *stubRegistrar, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	h := New(sl.NewDiscardLogger(), validation.New(""), registrar)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return rec, resp
}

func TestRegister_Created(t *testing.T) {
	registrar := &stubRegistrar{}

	rec, resp := do(t, registrar, `{"email":"user@example.com","password":"Sup3rSecret","phone_number":"+16502530000"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.Equal(t, "id-1", resp.UserID)
	assert.Equal(t, "+16502530000", registrar.phone)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegister_Errors(t *testing.T) {
	valid := `{"email":"user@example.com","password":"Sup3rSecret"}`

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
		called   bool
	}{
		{"undecodable body", `{"email":`, nil, http.StatusBadRequest, "Failed to decode request", false},
		{"missing email", `{"password":"Sup3rSecret"}`, nil, http.StatusUnprocessableEntity, "field email is a required field", false},
		{"weak password", `{"email":"user@example.com","password":"short"}`, nil, http.StatusUnprocessableEntity, "field password must be", false},
		{"bad phone", `{"email":"user@example.com","password":"Sup3rSecret","phone_number":"12"}`, nil, http.StatusUnprocessableEntity, "field phone_number is not a valid phone number", false},
		{"email taken", valid, fmt.Errorf("op: %w", auth.ErrEmailTaken), http.StatusBadRequest, "Email is already taken", true},
		{"phone taken", valid, fmt.Errorf("op: %w", auth.ErrPhoneNumberTaken), http.StatusBadRequest, "Phone number is already taken", true},
		{"policy", valid, fmt.Errorf("op: %w: %w", auth.ErrInvalidPassword, password.ErrNoDigit), http.StatusUnprocessableEntity, password.ErrNoDigit.Error(), true},
		{"store failure", valid, errors.New("db down"), http.StatusInternalServerError, "Internal error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registrar := &stubRegistrar{err: tt.err}

			rec, resp := do(t, registrar, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, response.StatusError, resp.Status)
			assert.Contains(t, resp.Error, tt.wantErr)
			assert.Equal(t, tt.called, registrar.calls == 1)
		})
	}
}
