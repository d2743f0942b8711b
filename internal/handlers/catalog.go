package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/internal/store"
)

// CatalogHandler serves one slugged catalog: categories or genres.
type CatalogHandler struct {
	catalog *services.CatalogService
	kind    access.Kind
	log     *slog.Logger
}

func NewCatalogHandler(catalog *services.CatalogService, kind access.Kind, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, kind: kind, log: log}
}

// CatalogRouter registers list, create and delete-by-slug. Reads are public;
// writes need an administrator.
func CatalogRouter(r chi.Router, catalog *services.CatalogService, kind access.Kind, log *slog.Logger) {
	handler := NewCatalogHandler(catalog, kind, log)

	r.Use(requireAccess(kind))
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Delete("/{slug}", handler.Delete)
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	entries, total, err := h.catalog.List(r.Context(), search, offset, limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	items := make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, newCatalogEntry(e))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CatalogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.catalog.Create(r.Context(), req.Name, req.Slug)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCatalogEntry(created))
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CatalogRequest struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"omitempty,max=50,slug"`
}

// CatalogEntry is the JSON form of a category or genre.
type CatalogEntry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func newCatalogEntry(e store.Entry) CatalogEntry {
	return CatalogEntry{Name: e.Name, Slug: e.Slug}
}
