package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yamdb/apiserver/internal/auth"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/internal/store/storetest"
	"github.com/yamdb/apiserver/types"
)

type outbox struct {
	mu   sync.Mutex
	body map[string]string
}

func (o *outbox) Send(_ context.Context, to, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.body[to] = body
	return nil
}

func (o *outbox) code(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.TrimPrefix(o.body[to], "Your confirmation code: ")
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	users  *storetest.Users
	tokens *auth.TokenIssuer
	mail   *outbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenIssuer("router-test-secret", time.Hour)
	require.NoError(t, err)
	codes, err := auth.NewCodeGenerator("router-test-secret")
	require.NoError(t, err)

	users := storetest.NewUsers()
	categories := storetest.NewCatalog()
	genres := storetest.NewCatalog()
	titles := storetest.NewTitles(categories, genres)
	mail := &outbox{body: map[string]string{}}

	reviewRepo := storetest.NewReviews()
	titles.RateFrom(reviewRepo)

	reviews := services.NewReviewService(reviewRepo, titles)
	router := NewRouter(Services{
		Users:      services.NewUserService(users),
		Identity:   services.NewIdentityService(users, codes, tokens, mail, log),
		Categories: services.NewCategoryService(categories),
		Genres:     services.NewGenreService(genres),
		Titles:     services.NewTitleService(titles, categories, genres),
		Reviews:    reviews,
		Comments:   services.NewCommentService(storetest.NewComments(), reviews),
		Tokens:     tokens,
	}, RouterOptions{Log: log})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv, users: users, tokens: tokens, mail: mail}
}

// account creates a user with role directly in the repository and returns a
// bearer token for it.
func (a *testAPI) account(username string, role types.Role) string {
	a.t.Helper()
	user, err := a.users.Create(context.Background(), types.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	})
	require.NoError(a.t, err)
	token, err := a.tokens.Issue(user.ID)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

// seedTitle creates category "films" and one title as admin and returns the
// title path.
func (a *testAPI) seedTitle(admin string) string {
	a.t.Helper()
	status, _ := a.do(http.MethodPost, "/api/v1/categories/", admin, map[string]string{"name": "Films", "slug": "films"})
	require.Equal(a.t, http.StatusCreated, status)
	status, body := a.do(http.MethodPost, "/api/v1/titles/", admin, map[string]any{
		"name":     "Solaris",
		"year":     1972,
		"category": "films",
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	return fmt.Sprintf("/api/v1/titles/%d", int(body["id"].(float64)))
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestSignupTokenFlow(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	code := api.mail.code("alice@example.com")
	require.NotEmpty(t, code)

	status, body = api.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"username":          "alice",
		"confirmation_code": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "confirmation_code", body["field"])

	status, body = api.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"username":          "alice",
		"confirmation_code": code,
	})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = api.do(http.MethodGet, "/api/v1/users/me/", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "user", body["role"])
}

func TestTokenUnknownUser(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"username":          "ghost",
		"confirmation_code": "ABC",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSignupValidation(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "me",
		"email":    "me@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "username", body["field"])

	status, body = api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "bob",
		"email":    "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email", body["field"])
}

func TestInvalidTokenRejected(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodGet, "/api/v1/categories/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCatalogAccess(t *testing.T) {
	api := newTestAPI(t)
	user := api.account("alice", types.RoleUser)
	admin := api.account("root", types.RoleAdmin)
	entry := map[string]string{"name": "Drama", "slug": "drama"}

	status, _ := api.do(http.MethodPost, "/api/v1/genres/", "", entry)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/api/v1/genres/", user, entry)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodPost, "/api/v1/genres/", admin, entry)
	assert.Equal(t, http.StatusCreated, status)

	status, body := api.do(http.MethodGet, "/api/v1/genres/", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, _ = api.do(http.MethodDelete, "/api/v1/genres/drama", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodDelete, "/api/v1/genres/drama", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTitleWritesNeedAdmin(t *testing.T) {
	api := newTestAPI(t)
	moderator := api.account("mod", types.RoleModerator)
	admin := api.account("root", types.RoleAdmin)
	titlePath := api.seedTitle(admin)

	status, _ := api.do(http.MethodPatch, titlePath+"/", moderator, map[string]string{"description": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := api.do(http.MethodGet, titlePath+"/", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Solaris", body["name"])
	assert.Nil(t, body["rating"])

	status, _ = api.do(http.MethodGet, "/api/v1/titles/999/", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTitleFiltersAndRating(t *testing.T) {
	api := newTestAPI(t)
	admin := api.account("root", types.RoleAdmin)
	alice := api.account("alice", types.RoleUser)
	solaris := api.seedTitle(admin)

	status, _ := api.do(http.MethodPost, "/api/v1/genres/", admin, map[string]string{"name": "Drama", "slug": "drama"})
	require.Equal(t, http.StatusCreated, status)
	status, body := api.do(http.MethodPost, "/api/v1/titles/", admin, map[string]any{
		"name":     "Stalker",
		"year":     1979,
		"category": "films",
		"genre":    []string{"drama"},
	})
	require.Equal(t, http.StatusCreated, status, body)

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"Solaris", "Stalker"}},
		{"?genre=drama", []string{"Stalker"}},
		{"?category=films", []string{"Solaris", "Stalker"}},
		{"?category=books", nil},
		{"?name=SOLA", []string{"Solaris"}},
		{"?year=1972", []string{"Solaris"}},
		{"?genre=drama&year=1972", nil},
	}
	for _, tc := range cases {
		status, body := api.do(http.MethodGet, "/api/v1/titles/"+tc.query, "", nil)
		require.Equal(t, http.StatusOK, status, tc.query)
		var names []string
		for _, item := range body["items"].([]any) {
			names = append(names, item.(map[string]any)["name"].(string))
		}
		assert.ElementsMatch(t, tc.want, names, tc.query)
	}

	status, _ = api.do(http.MethodGet, "/api/v1/titles/?year=soon", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPost, solaris+"/reviews/", alice, map[string]any{"text": "great", "score": 10})
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPost, solaris+"/reviews/", admin, map[string]any{"text": "long", "score": 5})
	require.Equal(t, http.StatusCreated, status)

	status, body = api.do(http.MethodGet, solaris+"/", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 7.5, body["rating"])
}

func TestReviewAuthorship(t *testing.T) {
	api := newTestAPI(t)
	alice := api.account("alice", types.RoleUser)
	bob := api.account("bob", types.RoleUser)
	moderator := api.account("mod", types.RoleModerator)
	admin := api.account("root", types.RoleAdmin)
	reviews := api.seedTitle(admin) + "/reviews/"

	status, _ := api.do(http.MethodPost, reviews, "", map[string]any{"text": "nice", "score": 8})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := api.do(http.MethodPost, reviews, alice, map[string]any{"text": "nice", "score": 8})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", body["author"])
	reviewPath := fmt.Sprintf("%s%d/", reviews, int(body["id"].(float64)))

	status, body = api.do(http.MethodPost, reviews, alice, map[string]any{"text": "again", "score": 9})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "you have already reviewed this title", body["error"])

	status, body = api.do(http.MethodPost, reviews, bob, map[string]any{"text": "meh", "score": 11})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "score", body["field"])

	status, _ = api.do(http.MethodPatch, reviewPath, bob, map[string]any{"score": 1})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodPatch, reviewPath, moderator, map[string]any{"score": 5})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, body["score"])
	assert.Equal(t, "nice", body["text"])

	status, _ = api.do(http.MethodPut, reviewPath, alice, map[string]any{"text": "changed"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodGet, reviews, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, _ = api.do(http.MethodDelete, reviewPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodGet, reviewPath, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCommentAccess(t *testing.T) {
	api := newTestAPI(t)
	alice := api.account("alice", types.RoleUser)
	bob := api.account("bob", types.RoleUser)
	admin := api.account("root", types.RoleAdmin)
	reviews := api.seedTitle(admin) + "/reviews/"

	status, body := api.do(http.MethodPost, reviews, alice, map[string]any{"text": "nice", "score": 8})
	require.Equal(t, http.StatusCreated, status)
	comments := fmt.Sprintf("%s%d/comments/", reviews, int(body["id"].(float64)))

	status, body = api.do(http.MethodPost, comments, bob, map[string]string{"text": "agreed"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "bob", body["author"])
	commentPath := fmt.Sprintf("%s%d", comments, int(body["id"].(float64)))

	status, _ = api.do(http.MethodPatch, commentPath, alice, map[string]string{"text": "edited"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodDelete, commentPath, admin, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(http.MethodGet, reviews+"999/comments/", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProfileIgnoresRole(t *testing.T) {
	api := newTestAPI(t)
	alice := api.account("alice", types.RoleUser)

	status, body := api.do(http.MethodPatch, "/api/v1/users/me/", alice, map[string]string{
		"role": "admin",
		"bio":  "hello",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "hello", body["bio"])

	status, _ = api.do(http.MethodGet, "/api/v1/users/", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodGet, "/api/v1/users/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminManagesUsers(t *testing.T) {
	api := newTestAPI(t)
	admin := api.account("root", types.RoleAdmin)

	status, body := api.do(http.MethodPost, "/api/v1/users/", admin, map[string]string{
		"username": "mod",
		"email":    "mod@example.com",
		"role":     "moderator",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "moderator", body["role"])

	status, body = api.do(http.MethodPost, "/api/v1/users/", admin, map[string]string{
		"username": "mod2",
		"email":    "mod@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email", body["field"])

	status, body = api.do(http.MethodGet, "/api/v1/users/?search=mo", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, _ = api.do(http.MethodDelete, "/api/v1/users/mod", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodGet, "/api/v1/users/mod", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
