package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/types"
)

// UserHandler serves account management and the caller's own profile.
type UserHandler struct {
	users *services.UserService
	log   *slog.Logger
}

func NewUserHandler(users *services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// UserRouter registers user routes. /me is registered before /{username} so
// it never resolves to an account named "me".
func UserRouter(r chi.Router, users *services.UserService, log *slog.Logger) {
	handler := NewUserHandler(users, log)

	r.Route("/me", func(r chi.Router) {
		r.Use(requireAccess(access.Profile))
		r.Get("/", handler.GetMe)
		r.Patch("/", handler.UpdateMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAccess(access.Account))
		r.Get("/", handler.ListUsers)
		r.Post("/", handler.CreateUser)
		r.Get("/{username}", handler.GetUser)
		r.Patch("/{username}", handler.UpdateUser)
		r.Delete("/{username}", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	items, total, err := h.users.List(r.Context(), search, offset, limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.users.Create(r.Context(), types.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      req.Role,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UserPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.users.Update(r.Context(), chi.URLParam(r, "username"), req.patch())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "username")); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe edits the caller's profile. role and email in the body are
// ignored.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req ProfilePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, _ := userFromContext(r.Context())
	updated, err := h.users.UpdateProfile(r.Context(), user.ID, services.UserPatch{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type UserCreateRequest struct {
	Username  string     `json:"username" validate:"required,max=150,username"`
	Email     string     `json:"email" validate:"required,max=254,email"`
	FirstName string     `json:"first_name" validate:"max=150"`
	LastName  string     `json:"last_name" validate:"max=150"`
	Bio       string     `json:"bio"`
	Role      types.Role `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

type UserPatchRequest struct {
	Username  *string     `json:"username" validate:"omitnil,max=150,username"`
	Email     *string     `json:"email" validate:"omitnil,max=254,email"`
	FirstName *string     `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string     `json:"last_name" validate:"omitnil,max=150"`
	Bio       *string     `json:"bio"`
	Role      *types.Role `json:"role" validate:"omitnil,oneof=user moderator admin"`
}

// ProfilePatchRequest has no role or email: those are read-only on /me.
type ProfilePatchRequest struct {
	Username  *string `json:"username" validate:"omitnil,max=150,username"`
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,max=150"`
	Bio       *string `json:"bio"`
}

func (req UserPatchRequest) patch() services.UserPatch {
	return services.UserPatch{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      req.Role,
	}
}
