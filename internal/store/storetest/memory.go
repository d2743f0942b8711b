// Package storetest provides in-memory repositories with the same error
// contract as the Postgres ones in package store.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

// Epoch is the first timestamp the in-memory repositories hand out.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Users is an in-memory user repository. Every write advances a fake clock
// by one second so updated_at always changes.
type Users struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
	clock  time.Time
}

func NewUsers() *Users {
	return &Users{users: map[int]types.User{}, clock: Epoch}
}

// Len returns the number of stored accounts.
func (r *Users) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Users) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *Users) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) find(match func(types.User) bool) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) GetByUsername(_ context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *Users) List(_ context.Context, search string, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.User
	for _, user := range r.users {
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(search)) {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r *Users) checkUnique(user types.User) error {
	for id, other := range r.users {
		if id == user.ID {
			continue
		}
		if other.Username == user.Username {
			return store.NewConstraintError(store.ConstraintUsersUsername, store.ErrConflict)
		}
		if other.Email == user.Email {
			return store.NewConstraintError(store.ConstraintUsersEmail, store.ErrConflict)
		}
	}
	return nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}
	r.nextID++
	user.ID = r.nextID
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *Users) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}
	user.UpdatedAt = r.tick()
	r.users[user.ID] = user
	return user, nil
}

func (r *Users) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// Catalog is an in-memory category or genre repository.
type Catalog struct {
	mu      sync.Mutex
	nextID  int
	entries []store.Entry
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

func (r *Catalog) List(_ context.Context, search string, offset, limit int) ([]store.Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Entry
	for _, e := range r.entries {
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(search)) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (r *Catalog) GetBySlug(_ context.Context, slug string) (store.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return store.Entry{}, store.ErrNotFound
}

func (r *Catalog) Create(_ context.Context, e store.Entry) (store.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.entries {
		if other.Slug == e.Slug {
			return store.Entry{}, store.NewConstraintError(store.ConstraintCategoriesSlug, store.ErrConflict)
		}
	}
	r.nextID++
	e.ID = r.nextID
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *Catalog) DeleteBySlug(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Slug == slug {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *Catalog) byID(id int) (store.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return store.Entry{}, false
}

// Titles resolves category and genre ids against the given catalogs. Ratings
// are computed only after RateFrom.
type Titles struct {
	mu         sync.Mutex
	nextID     int
	records    map[int]store.TitleRecord
	categories *Catalog
	genres     *Catalog
	reviews    *Reviews
}

func NewTitles(categories, genres *Catalog) *Titles {
	return &Titles{records: map[int]store.TitleRecord{}, categories: categories, genres: genres}
}

// RateFrom makes titles carry the mean score of their reviews in reviews.
func (r *Titles) RateFrom(reviews *Reviews) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = reviews
}

func (r *Titles) view(rec store.TitleRecord) types.Title {
	title := types.Title{
		ID:          rec.ID,
		Name:        rec.Name,
		Year:        rec.Year,
		Description: rec.Description,
		Genre:       []types.Genre{},
	}
	if rec.CategoryID != nil {
		if e, ok := r.categories.byID(*rec.CategoryID); ok {
			title.Category = &types.Category{ID: e.ID, Name: e.Name, Slug: e.Slug}
		}
	}
	for _, id := range rec.GenreIDs {
		if e, ok := r.genres.byID(id); ok {
			title.Genre = append(title.Genre, types.Genre{ID: e.ID, Name: e.Name, Slug: e.Slug})
		}
	}
	if r.reviews != nil {
		title.Rating = r.reviews.mean(rec.ID)
	}
	return title
}

func matches(title types.Title, filter types.TitleFilter) bool {
	if filter.Category != "" && (title.Category == nil || title.Category.Slug != filter.Category) {
		return false
	}
	if filter.Name != "" && !strings.Contains(strings.ToLower(title.Name), strings.ToLower(filter.Name)) {
		return false
	}
	if filter.Year != nil && (title.Year == nil || *title.Year != *filter.Year) {
		return false
	}
	if filter.Genre == "" {
		return true
	}
	for _, g := range title.Genre {
		if g.Slug == filter.Genre {
			return true
		}
	}
	return false
}

func (r *Titles) List(_ context.Context, filter types.TitleFilter, _, _ int) ([]types.Title, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Title
	for _, rec := range r.records {
		if title := r.view(rec); matches(title, filter) {
			out = append(out, title)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *Titles) Get(_ context.Context, id int) (types.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return types.Title{}, store.ErrNotFound
	}
	return r.view(rec), nil
}

func (r *Titles) Exists(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[id]
	return ok, nil
}

func (r *Titles) checkName(rec store.TitleRecord) error {
	for id, other := range r.records {
		if id != rec.ID && other.Name == rec.Name {
			return store.NewConstraintError(store.ConstraintTitlesName, store.ErrConflict)
		}
	}
	return nil
}

func (r *Titles) Create(_ context.Context, rec store.TitleRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkName(rec); err != nil {
		return 0, err
	}
	r.nextID++
	rec.ID = r.nextID
	r.records[rec.ID] = rec
	return rec.ID, nil
}

func (r *Titles) Update(_ context.Context, rec store.TitleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return store.ErrNotFound
	}
	if err := r.checkName(rec); err != nil {
		return err
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *Titles) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// Reviews enforces the one-review-per-author constraint on Create.
type Reviews struct {
	mu      sync.Mutex
	nextID  int
	reviews map[int]types.Review

	// SkipExistsCheck hides existing reviews from ExistsForAuthor to simulate a
	// concurrent insert slipping past the pre-check.
	SkipExistsCheck bool
}

func NewReviews() *Reviews {
	return &Reviews{reviews: map[int]types.Review{}}
}

func (r *Reviews) mean(titleID int) *float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, n := 0, 0
	for _, review := range r.reviews {
		if review.TitleID == titleID {
			sum += review.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

func (r *Reviews) ListByTitle(_ context.Context, titleID, _, _ int) ([]types.Review, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Review
	for _, review := range r.reviews {
		if review.TitleID == titleID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (r *Reviews) Get(_ context.Context, titleID, id int) (types.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok || review.TitleID != titleID {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (r *Reviews) ExistsForAuthor(_ context.Context, titleID, authorID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SkipExistsCheck {
		return false, nil
	}
	for _, review := range r.reviews {
		if review.TitleID == titleID && review.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Reviews) Create(_ context.Context, review types.Review) (types.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.reviews {
		if other.TitleID == review.TitleID && other.AuthorID == review.AuthorID {
			return types.Review{}, store.NewConstraintError(store.ConstraintReviewsAuthor, store.ErrConflict)
		}
	}
	r.nextID++
	review.ID = r.nextID
	if review.PubDate.IsZero() {
		review.PubDate = Epoch
	}
	r.reviews[review.ID] = review
	return review, nil
}

func (r *Reviews) Update(_ context.Context, review types.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[review.ID]; !ok {
		return store.ErrNotFound
	}
	r.reviews[review.ID] = review
	return nil
}

func (r *Reviews) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.reviews, id)
	return nil
}

// Comments is an in-memory comment repository.
type Comments struct {
	mu       sync.Mutex
	nextID   int
	comments map[int]types.Comment
}

func NewComments() *Comments {
	return &Comments{comments: map[int]types.Comment{}}
}

func (r *Comments) ListByReview(_ context.Context, reviewID, _, _ int) ([]types.Comment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Comment
	for _, c := range r.comments {
		if c.ReviewID == reviewID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *Comments) Get(_ context.Context, reviewID, id int) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok || c.ReviewID != reviewID {
		return types.Comment{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Comments) Create(_ context.Context, c types.Comment) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.PubDate.IsZero() {
		c.PubDate = Epoch
	}
	r.comments[c.ID] = c
	return c, nil
}

func (r *Comments) Update(_ context.Context, c types.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[c.ID]; !ok {
		return store.ErrNotFound
	}
	r.comments[c.ID] = c
	return nil
}

func (r *Comments) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}
