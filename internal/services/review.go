package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

// ErrDuplicateReview is returned when an author reviews the same title twice.
var ErrDuplicateReview = &FieldError{
	Message: "you have already reviewed this title",
	Kind:    ErrValidation,
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	ListByTitle(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error)
	Get(ctx context.Context, titleID, id int) (types.Review, error)
	ExistsForAuthor(ctx context.Context, titleID, authorID int) (bool, error)
	Create(ctx context.Context, review types.Review) (types.Review, error)
	Update(ctx context.Context, review types.Review) error
	Delete(ctx context.Context, id int) error
}

// TitleLookup checks that a parent title exists.
type TitleLookup interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// ReviewService encapsulates review use-cases. Callers authorize writes
// before calling in; the service enforces data invariants only.
type ReviewService struct {
	repo   ReviewRepository
	titles TitleLookup
}

func NewReviewService(repo ReviewRepository, titles TitleLookup) *ReviewService {
	return &ReviewService{repo: repo, titles: titles}
}

func (s *ReviewService) List(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error) {
	if err := s.requireTitle(ctx, titleID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByTitle(ctx, titleID, offset, limit)
}

func (s *ReviewService) Get(ctx context.Context, titleID, id int) (types.Review, error) {
	if err := s.requireTitle(ctx, titleID); err != nil {
		return types.Review{}, err
	}
	review, err := s.repo.Get(ctx, titleID, id)
	return review, normalize(err, "review not found")
}

// Create adds author's review of titleID.
func (s *ReviewService) Create(ctx context.Context, titleID int, author types.User, text string, score int) (types.Review, error) {
	if err := s.requireTitle(ctx, titleID); err != nil {
		return types.Review{}, err
	}
	if err := validateReview(text, score); err != nil {
		return types.Review{}, err
	}

	exists, err := s.repo.ExistsForAuthor(ctx, titleID, author.ID)
	if err != nil {
		return types.Review{}, err
	}
	if exists {
		return types.Review{}, ErrDuplicateReview
	}

	created, err := s.repo.Create(ctx, types.Review{
		TitleID:  titleID,
		AuthorID: author.ID,
		Text:     text,
		Score:    score,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Review{}, ErrDuplicateReview
		}
		return types.Review{}, reviewWriteError(err)
	}
	created.Author = author.Username
	return created, nil
}

// Update changes text and score of a loaded review. Nil arguments keep the
// current value.
func (s *ReviewService) Update(ctx context.Context, review types.Review, text *string, score *int) (types.Review, error) {
	if text != nil {
		review.Text = *text
	}
	if score != nil {
		review.Score = *score
	}
	if err := validateReview(review.Text, review.Score); err != nil {
		return types.Review{}, err
	}
	if err := s.repo.Update(ctx, review); err != nil {
		return types.Review{}, reviewWriteError(err)
	}
	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, id int) error {
	return normalize(s.repo.Delete(ctx, id), "review not found")
}

func (s *ReviewService) requireTitle(ctx context.Context, titleID int) error {
	exists, err := s.titles.Exists(ctx, titleID)
	if err != nil {
		return err
	}
	if !exists {
		return notFound("title not found")
	}
	return nil
}

func validateReview(text string, score int) error {
	if strings.TrimSpace(text) == "" {
		return invalid("text", "text is required")
	}
	if score < types.MinScore || score > types.MaxScore {
		return invalid("score", fmt.Sprintf("score must be between %d and %d", types.MinScore, types.MaxScore))
	}
	return nil
}

func reviewWriteError(err error) error {
	if errors.Is(err, store.ErrInvalid) {
		return invalid("score", fmt.Sprintf("score must be between %d and %d", types.MinScore, types.MaxScore))
	}
	return normalize(err, "review not found")
}
