package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yamdb/apiserver/internal/services"
)

// AuthHandler serves the signup and token exchange endpoints.
type AuthHandler struct {
	identity *services.IdentityService
	log      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(identity *services.IdentityService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, identity *services.IdentityService, log *slog.Logger) {
	handler := NewAuthHandler(identity, log)

	r.Post("/signup", handler.Signup)
	r.Post("/token", handler.Token)
}

// Signup registers or re-confirms a (username, email) pair and mails a
// confirmation code.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.identity.Signup(r.Context(), strings.TrimSpace(req.Username), strings.TrimSpace(req.Email))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, SignupResponse{Username: user.Username, Email: user.Email})
}

// Token exchanges a confirmation code for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.identity.RedeemCode(r.Context(), strings.TrimSpace(req.Username), req.ConfirmationCode)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

type SignupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type TokenRequest struct {
	Username         string `json:"username" validate:"required,max=150"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
