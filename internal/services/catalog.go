package services

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yamdb/apiserver/internal/store"
)

const maxSlugLength = 50

// CatalogRepository defines persistence operations for a slugged catalog
// table.
type CatalogRepository interface {
	List(ctx context.Context, search string, offset, limit int) ([]store.Entry, int, error)
	GetBySlug(ctx context.Context, slug string) (store.Entry, error)
	Create(ctx context.Context, e store.Entry) (store.Entry, error)
	DeleteBySlug(ctx context.Context, slug string) error
}

// CatalogService encapsulates category and genre use-cases. noun names the
// entry in error messages.
type CatalogService struct {
	repo CatalogRepository
	noun string
}

func NewCategoryService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo, noun: "category"}
}

func NewGenreService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo, noun: "genre"}
}

func (s *CatalogService) List(ctx context.Context, search string, offset, limit int) ([]store.Entry, int, error) {
	return s.repo.List(ctx, search, offset, limit)
}

func (s *CatalogService) Get(ctx context.Context, slug string) (store.Entry, error) {
	e, err := s.repo.GetBySlug(ctx, slug)
	return e, normalize(err, s.noun+" not found")
}

// Create adds an entry. An empty slug is derived from the name.
func (s *CatalogService) Create(ctx context.Context, name, entrySlug string) (store.Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Entry{}, invalid("name", "name is required")
	}
	entrySlug = strings.TrimSpace(entrySlug)
	if entrySlug == "" {
		entrySlug = makeSlug(name)
		if entrySlug == "" {
			return store.Entry{}, invalid("slug", "slug can't be derived from name")
		}
	}

	created, err := s.repo.Create(ctx, store.Entry{Name: name, Slug: entrySlug})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.Entry{}, conflict("slug", s.noun+" with this slug already exists")
		}
		return store.Entry{}, err
	}
	return created, nil
}

func (s *CatalogService) Delete(ctx context.Context, slug string) error {
	return normalize(s.repo.DeleteBySlug(ctx, slug), s.noun+" not found")
}

func makeSlug(name string) string {
	out := slug.Make(name)
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "-")
	}
	return out
}
