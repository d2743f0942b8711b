package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/types"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query               string
		page, limit, offset int
		wantErr             bool
	}{
		{"", 1, defaultLimit, 0, false},
		{"page=3&limit=10", 3, 10, 20, false},
		{"per_page=5", 1, 5, 0, false},
		{"limit=1000", 1, maxLimit, 0, false},
		{"page=0", 0, 0, 0, true},
		{"limit=abc", 0, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			page, limit, offset, err := parsePagination(req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.page, page)
			assert.Equal(t, tc.limit, limit)
			assert.Equal(t, tc.offset, offset)
		})
	}
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"field validation", &services.FieldError{Field: "score", Message: "bad", Kind: services.ErrValidation}, http.StatusBadRequest, "score"},
		{"conflict", &services.FieldError{Field: "slug", Message: "taken", Kind: services.ErrConflict}, http.StatusBadRequest, "slug"},
		{"not found", services.ErrNotFound, http.StatusNotFound, ""},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), discard, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.field, body.Field)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		ok    bool
		field string
	}{
		{"valid", `{"text":"hi","score":5}`, true, ""},
		{"empty", ``, false, ""},
		{"wrong type", `{"score":"ten"}`, false, "score"},
		{"out of range", `{"score":0}`, false, "score"},
		{"blank text", `{"text":""}`, false, "text"},
		{"unknown field ignored", `{"text":"hi","score":5,"author":"mallory"}`, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst ReviewRequest
			ok := decodeJSON(rec, req, &dst)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, tc.field, decodeError(t, rec).Field)
			}
		})
	}
}

func TestUsernameValidation(t *testing.T) {
	valid := []string{"alice", "a.b@c+d-e_f"}
	invalid := []string{"me", "with space", "semi;colon"}

	for _, name := range valid {
		_, _, ok := validateRequest(SignupRequest{Username: name, Email: "x@example.com"})
		assert.True(t, ok, name)
	}
	for _, name := range invalid {
		field, _, ok := validateRequest(SignupRequest{Username: name, Email: "x@example.com"})
		assert.False(t, ok, name)
		assert.Equal(t, "username", field)
	}
}

func TestCatalogSlugValidation(t *testing.T) {
	_, _, ok := validateRequest(CatalogRequest{Name: "Rock", Slug: "rock_n-roll"})
	assert.True(t, ok)

	field, _, ok := validateRequest(CatalogRequest{Name: "Rock", Slug: "rock n roll"})
	assert.False(t, ok)
	assert.Equal(t, "slug", field)
}

type stubTokens map[string]int

func (s stubTokens) Parse(token string) (int, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

type stubUsers map[int]types.User

func (s stubUsers) GetByID(_ context.Context, id int) (types.User, error) {
	if user, ok := s[id]; ok {
		return user, nil
	}
	return types.User{}, services.ErrNotFound
}

func TestAuthenticate(t *testing.T) {
	alice := types.User{ID: 1, Username: "alice", Role: types.RoleUser}
	mw := Authenticate(
		stubTokens{"good": 1, "orphan": 2},
		stubUsers{1: alice},
		discard,
	)
	var seen types.User
	var authenticated bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, authenticated = userFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		status int
		authed bool
	}{
		{"anonymous", "", http.StatusOK, false},
		{"valid", "Bearer good", http.StatusOK, true},
		{"lowercase scheme", "bearer good", http.StatusOK, true},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, false},
		{"bad token", "Bearer nope", http.StatusUnauthorized, false},
		{"deleted account", "Bearer orphan", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen, authenticated = types.User{}, false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.authed, authenticated)
			if tc.authed {
				assert.Equal(t, "alice", seen.Username)
			}
		})
	}
}
