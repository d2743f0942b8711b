package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

// TitleRepository defines persistence operations for titles.
type TitleRepository interface {
	List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error)
	Get(ctx context.Context, id int) (types.Title, error)
	Exists(ctx context.Context, id int) (bool, error)
	Create(ctx context.Context, rec store.TitleRecord) (int, error)
	Update(ctx context.Context, rec store.TitleRecord) error
	Delete(ctx context.Context, id int) error
}

// TitleInput is a title write. Genre and Category are slugs. Nil fields are
// absent from the request.
type TitleInput struct {
	Name        *string
	Year        *int
	Description *string
	Genre       []string
	GenreSet    bool
	Category    *string
}

// TitleService encapsulates title use-cases.
type TitleService struct {
	repo       TitleRepository
	categories CatalogRepository
	genres     CatalogRepository
	now        func() time.Time
}

func NewTitleService(repo TitleRepository, categories, genres CatalogRepository) *TitleService {
	return &TitleService{
		repo:       repo,
		categories: categories,
		genres:     genres,
		now:        time.Now,
	}
}

func (s *TitleService) List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error) {
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *TitleService) Get(ctx context.Context, id int) (types.Title, error) {
	title, err := s.repo.Get(ctx, id)
	return title, normalize(err, "title not found")
}

// Create validates in and inserts a title. Name and category are required.
func (s *TitleService) Create(ctx context.Context, in TitleInput) (types.Title, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return types.Title{}, invalid("name", "name is required")
	}
	if in.Category == nil {
		return types.Title{}, invalid("category", "category is required")
	}

	var rec store.TitleRecord
	if err := s.apply(ctx, &rec, in); err != nil {
		return types.Title{}, err
	}

	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return types.Title{}, titleWriteError(err)
	}
	return s.Get(ctx, id)
}

// Update changes title id. With partial false (PUT) the same fields as
// Create are required.
func (s *TitleService) Update(ctx context.Context, id int, in TitleInput, partial bool) (types.Title, error) {
	if !partial {
		if in.Name == nil {
			return types.Title{}, invalid("name", "name is required")
		}
		if in.Category == nil {
			return types.Title{}, invalid("category", "category is required")
		}
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Title{}, normalize(err, "title not found")
	}

	rec := store.TitleRecord{
		ID:          current.ID,
		Name:        current.Name,
		Year:        current.Year,
		Description: current.Description,
	}
	if current.Category != nil {
		categoryID := current.Category.ID
		rec.CategoryID = &categoryID
	}
	for _, genre := range current.Genre {
		rec.GenreIDs = append(rec.GenreIDs, genre.ID)
	}

	if err := s.apply(ctx, &rec, in); err != nil {
		return types.Title{}, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return types.Title{}, titleWriteError(err)
	}
	return s.Get(ctx, id)
}

func (s *TitleService) Delete(ctx context.Context, id int) error {
	return normalize(s.repo.Delete(ctx, id), "title not found")
}

// apply validates the present fields of in and copies them onto rec,
// resolving slugs to ids.
func (s *TitleService) apply(ctx context.Context, rec *store.TitleRecord, in TitleInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name", "name is required")
		}
		rec.Name = name
	}
	if in.Year != nil {
		if *in.Year > s.now().Year() {
			return invalid("year", "release year is in the future")
		}
		year := *in.Year
		rec.Year = &year
	}
	if in.Description != nil {
		rec.Description = *in.Description
	}
	if in.Category != nil {
		category, err := s.categories.GetBySlug(ctx, *in.Category)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("category", fmt.Sprintf("category %q does not exist", *in.Category))
			}
			return err
		}
		rec.CategoryID = &category.ID
	}
	if in.GenreSet {
		ids := make([]int, 0, len(in.Genre))
		seen := make(map[int]bool, len(in.Genre))
		for _, genreSlug := range in.Genre {
			genre, err := s.genres.GetBySlug(ctx, genreSlug)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return invalid("genre", fmt.Sprintf("genre %q does not exist", genreSlug))
				}
				return err
			}
			if !seen[genre.ID] {
				seen[genre.ID] = true
				ids = append(ids, genre.ID)
			}
		}
		rec.GenreIDs = ids
	}
	return nil
}

func titleWriteError(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return conflict("name", "title with this name already exists")
	}
	return normalize(err, "title not found")
}
