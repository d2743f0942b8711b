package services

import (
	"context"
	"strings"

	"github.com/yamdb/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByReview(ctx context.Context, reviewID, offset, limit int) ([]types.Comment, int, error)
	Get(ctx context.Context, reviewID, id int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) error
	Delete(ctx context.Context, id int) error
}

// CommentService encapsulates comment use-cases. Every call resolves the
// parent review through its title, so a review id under the wrong title is
// not found.
type CommentService struct {
	repo    CommentRepository
	reviews *ReviewService
}

func NewCommentService(repo CommentRepository, reviews *ReviewService) *CommentService {
	return &CommentService{repo: repo, reviews: reviews}
}

func (s *CommentService) List(ctx context.Context, titleID, reviewID, offset, limit int) ([]types.Comment, int, error) {
	if _, err := s.reviews.Get(ctx, titleID, reviewID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByReview(ctx, reviewID, offset, limit)
}

func (s *CommentService) Get(ctx context.Context, titleID, reviewID, id int) (types.Comment, error) {
	if _, err := s.reviews.Get(ctx, titleID, reviewID); err != nil {
		return types.Comment{}, err
	}
	comment, err := s.repo.Get(ctx, reviewID, id)
	return comment, normalize(err, "comment not found")
}

func (s *CommentService) Create(ctx context.Context, titleID, reviewID int, author types.User, text string) (types.Comment, error) {
	if _, err := s.reviews.Get(ctx, titleID, reviewID); err != nil {
		return types.Comment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, invalid("text", "text is required")
	}

	created, err := s.repo.Create(ctx, types.Comment{
		ReviewID: reviewID,
		AuthorID: author.ID,
		Text:     text,
	})
	if err != nil {
		return types.Comment{}, normalize(err, "review not found")
	}
	created.Author = author.Username
	return created, nil
}

// Update changes the text of a loaded comment.
func (s *CommentService) Update(ctx context.Context, comment types.Comment, text *string) (types.Comment, error) {
	if text != nil {
		comment.Text = *text
	}
	if strings.TrimSpace(comment.Text) == "" {
		return types.Comment{}, invalid("text", "text is required")
	}
	if err := s.repo.Update(ctx, comment); err != nil {
		return types.Comment{}, normalize(err, "comment not found")
	}
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, id int) error {
	return normalize(s.repo.Delete(ctx, id), "comment not found")
}
