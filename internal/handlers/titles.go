package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/types"
)

// TitleHandler provides HTTP handlers for titles.
type TitleHandler struct {
	titles *services.TitleService
	log    *slog.Logger
}

func NewTitleHandler(titles *services.TitleService, log *slog.Logger) *TitleHandler {
	return &TitleHandler{titles: titles, log: log}
}

// TitleRouter registers title routes. reviews, when non-nil, is mounted at
// /{titleID}/reviews with its own access rules.
func TitleRouter(r chi.Router, titles *services.TitleService, log *slog.Logger, reviews func(chi.Router)) {
	handler := NewTitleHandler(titles, log)

	r.Group(func(r chi.Router) {
		r.Use(requireAccess(access.Title))
		r.Get("/", handler.ListTitles)
		r.Post("/", handler.CreateTitle)
	})
	r.Route("/{titleID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAccess(access.Title))
			r.Get("/", handler.GetTitle)
			r.Patch("/", handler.PatchTitle)
			r.Put("/", handler.PutTitle)
			r.Delete("/", handler.DeleteTitle)
		})
		if reviews != nil {
			r.Route("/reviews", reviews)
		}
	})
}

func (h *TitleHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := types.TitleFilter{
		Genre:    strings.TrimSpace(query.Get("genre")),
		Category: strings.TrimSpace(query.Get("category")),
		Name:     strings.TrimSpace(query.Get("name")),
	}
	if raw := strings.TrimSpace(query.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "year", "invalid year")
			return
		}
		filter.Year = &year
	}

	items, total, err := h.titles.List(r.Context(), filter, offset, limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *TitleHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := h.titles.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, title)
}

func (h *TitleHandler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.titles.Create(r.Context(), req.input())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TitleHandler) PatchTitle(w http.ResponseWriter, r *http.Request) {
	h.updateTitle(w, r, true)
}

func (h *TitleHandler) PutTitle(w http.ResponseWriter, r *http.Request) {
	h.updateTitle(w, r, false)
}

func (h *TitleHandler) updateTitle(w http.ResponseWriter, r *http.Request, partial bool) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req TitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.titles.Update(r.Context(), id, req.input(), partial)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TitleHandler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.titles.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TitleRequest is the write form of a title. genre and category are slugs.
// An absent genre list leaves the links unchanged on PATCH; an empty one
// clears them.
type TitleRequest struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=256"`
	Year        *int     `json:"year"`
	Description *string  `json:"description"`
	Genre       []string `json:"genre" validate:"omitempty,dive,required"`
	Category    *string  `json:"category" validate:"omitnil,min=1"`
}

func (req TitleRequest) input() services.TitleInput {
	return services.TitleInput{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		Genre:       req.Genre,
		GenreSet:    req.Genre != nil,
		Category:    req.Category,
	}
}
