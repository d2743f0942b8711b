package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/types"
)

// ReviewHandler serves reviews of a title and the comments on them.
type ReviewHandler struct {
	reviews  *services.ReviewService
	comments *services.CommentService
	log      *slog.Logger
}

func NewReviewHandler(reviews *services.ReviewService, comments *services.CommentService, log *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, comments: comments, log: log}
}

// ReviewRouter returns the routes mounted under /titles/{titleID}/reviews.
// Instance writes load the review or comment first and check authorship
// against it.
func ReviewRouter(reviews *services.ReviewService, comments *services.CommentService, log *slog.Logger) func(chi.Router) {
	handler := NewReviewHandler(reviews, comments, log)

	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAccess(access.Review))
			r.Get("/", handler.ListReviews)
			r.Post("/", handler.CreateReview)
		})
		r.Route("/{reviewID}", func(r chi.Router) {
			r.Get("/", handler.GetReview)
			r.Patch("/", handler.PatchReview)
			r.Put("/", handler.PutReview)
			r.Delete("/", handler.DeleteReview)

			r.Route("/comments", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(requireAccess(access.Comment))
					r.Get("/", handler.ListComments)
					r.Post("/", handler.CreateComment)
				})
				r.Get("/{commentID}", handler.GetComment)
				r.Patch("/{commentID}", handler.PatchComment)
				r.Put("/{commentID}", handler.PutComment)
				r.Delete("/{commentID}", handler.DeleteComment)
			})
		})
	}
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	titleID, ok := h.pathID(w, r, "titleID")
	if !ok {
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.reviews.List(r.Context(), titleID, offset, limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	titleID, ok := h.pathID(w, r, "titleID")
	if !ok {
		return
	}
	var req ReviewRequest
	if !decodeJSON(w, r, &req) || !req.complete(w) {
		return
	}

	author, _ := userFromContext(r.Context())
	created, err := h.reviews.Create(r.Context(), titleID, author, *req.Text, *req.Score)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) PatchReview(w http.ResponseWriter, r *http.Request) {
	h.updateReview(w, r, true)
}

func (h *ReviewHandler) PutReview(w http.ResponseWriter, r *http.Request) {
	h.updateReview(w, r, false)
}

func (h *ReviewHandler) updateReview(w http.ResponseWriter, r *http.Request, partial bool) {
	review, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	var req ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !partial && !req.complete(w) {
		return
	}

	updated, err := h.reviews.Update(r.Context(), review, req.Text, req.Score)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	review, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	if err := h.reviews.Delete(r.Context(), review.ID); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.comments.List(r.Context(), titleID, reviewID, offset, limit)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *ReviewHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeFieldError(w, http.StatusBadRequest, "text", "this field is required")
		return
	}

	author, _ := userFromContext(r.Context())
	created, err := h.comments.Create(r.Context(), titleID, reviewID, author, *req.Text)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *ReviewHandler) PatchComment(w http.ResponseWriter, r *http.Request) {
	h.updateComment(w, r, true)
}

func (h *ReviewHandler) PutComment(w http.ResponseWriter, r *http.Request) {
	h.updateComment(w, r, false)
}

func (h *ReviewHandler) updateComment(w http.ResponseWriter, r *http.Request, partial bool) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !partial && req.Text == nil {
		writeFieldError(w, http.StatusBadRequest, "text", "this field is required")
		return
	}

	updated, err := h.comments.Update(r.Context(), comment, req.Text)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	if err := h.comments.Delete(r.Context(), comment.ID); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadReview resolves the review in the path and checks access to it.
func (h *ReviewHandler) loadReview(w http.ResponseWriter, r *http.Request) (types.Review, bool) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return types.Review{}, false
	}
	review, err := h.reviews.Get(r.Context(), titleID, reviewID)
	if err != nil {
		respondError(w, r, h.log, err)
		return types.Review{}, false
	}
	if !authorize(w, r, access.Review, &access.Target{AuthorID: review.AuthorID}) {
		return types.Review{}, false
	}
	return review, true
}

// loadComment resolves the comment in the path and checks access to it.
func (h *ReviewHandler) loadComment(w http.ResponseWriter, r *http.Request) (types.Comment, bool) {
	titleID, reviewID, ok := h.reviewPath(w, r)
	if !ok {
		return types.Comment{}, false
	}
	commentID, ok := h.pathID(w, r, "commentID")
	if !ok {
		return types.Comment{}, false
	}
	comment, err := h.comments.Get(r.Context(), titleID, reviewID, commentID)
	if err != nil {
		respondError(w, r, h.log, err)
		return types.Comment{}, false
	}
	if !authorize(w, r, access.Comment, &access.Target{AuthorID: comment.AuthorID}) {
		return types.Comment{}, false
	}
	return comment, true
}

func (h *ReviewHandler) reviewPath(w http.ResponseWriter, r *http.Request) (titleID, reviewID int, ok bool) {
	if titleID, ok = h.pathID(w, r, "titleID"); !ok {
		return 0, 0, false
	}
	if reviewID, ok = h.pathID(w, r, "reviewID"); !ok {
		return 0, 0, false
	}
	return titleID, reviewID, true
}

func (h *ReviewHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := parseIDParam(r, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

type ReviewRequest struct {
	Text  *string `json:"text" validate:"omitnil,min=1"`
	Score *int    `json:"score" validate:"omitnil,min=1,max=10"`
}

// complete reports whether both fields are present, writing a 400 if not.
func (req ReviewRequest) complete(w http.ResponseWriter) bool {
	switch {
	case req.Text == nil:
		writeFieldError(w, http.StatusBadRequest, "text", "this field is required")
		return false
	case req.Score == nil:
		writeFieldError(w, http.StatusBadRequest, "score", "this field is required")
		return false
	}
	return true
}

type CommentRequest struct {
	Text *string `json:"text" validate:"omitnil,min=1"`
}
