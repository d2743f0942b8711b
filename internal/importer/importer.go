// Package importer loads the CSV fixture set into the database. Fixture ids
// are remapped to the ids the database assigns, and rows that violate a
// constraint or reference a skipped row are reported and skipped.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

// Fixture file names, in import order. genre_title.csv is read before
// titles.csv so links can be written with each title.
const (
	FileUsers      = "users.csv"
	FileCategories = "category.csv"
	FileGenres     = "genre.csv"
	FileGenreTitle = "genre_title.csv"
	FileTitles     = "titles.csv"
	FileReviews    = "review.csv"
	FileComments   = "comments.csv"
)

type UserWriter interface {
	Create(ctx context.Context, user types.User) (types.User, error)
}

type EntryWriter interface {
	Create(ctx context.Context, e store.Entry) (store.Entry, error)
}

type TitleWriter interface {
	Create(ctx context.Context, rec store.TitleRecord) (int, error)
}

type ReviewWriter interface {
	Create(ctx context.Context, review types.Review) (types.Review, error)
}

type CommentWriter interface {
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
}

// Repositories are the write targets of an import.
type Repositories struct {
	Users      UserWriter
	Categories EntryWriter
	Genres     EntryWriter
	Titles     TitleWriter
	Reviews    ReviewWriter
	Comments   CommentWriter
}

// Report summarizes one fixture file.
type Report struct {
	File     string
	Imported int
	Skipped  int
	Missing  bool
}

// Importer runs a fixture import. It is not safe for concurrent use.
type Importer struct {
	repos Repositories
	log   *slog.Logger

	// fixture id -> database id
	users      map[int]int
	categories map[int]int
	genres     map[int]int
	titles     map[int]int
	reviews    map[int]int

	// fixture title id -> fixture genre ids
	links map[int][]int
}

func New(repos Repositories, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{repos: repos, log: log}
}

// Run imports every fixture file src has. Missing files are reported, not
// fatal. Any error other than a constraint violation aborts the import.
func (im *Importer) Run(ctx context.Context, src Source) ([]Report, error) {
	im.users = map[int]int{}
	im.categories = map[int]int{}
	im.genres = map[int]int{}
	im.titles = map[int]int{}
	im.reviews = map[int]int{}
	im.links = map[int][]int{}

	steps := []struct {
		file   string
		handle func(context.Context, row) error
	}{
		{FileUsers, im.importUser},
		{FileCategories, im.entryImporter(im.repos.Categories, im.categories)},
		{FileGenres, im.entryImporter(im.repos.Genres, im.genres)},
		{FileGenreTitle, im.collectLink},
		{FileTitles, im.importTitle},
		{FileReviews, im.importReview},
		{FileComments, im.importComment},
	}

	reports := make([]Report, 0, len(steps))
	for _, step := range steps {
		report, err := im.importFile(ctx, src, step.file, step.handle)
		if err != nil {
			return reports, err
		}
		im.log.InfoContext(ctx, "fixture imported",
			"file", report.File, "imported", report.Imported, "skipped", report.Skipped, "missing", report.Missing)
		reports = append(reports, report)
	}
	return reports, nil
}

// errSkip marks a row that is reported and skipped.
type errSkip struct {
	reason string
}

func (e errSkip) Error() string { return e.reason }

func skip(format string, args ...any) error {
	return errSkip{reason: fmt.Sprintf(format, args...)}
}

func (im *Importer) importFile(ctx context.Context, src Source, name string, handle func(context.Context, row) error) (Report, error) {
	report := Report{File: name}

	rc, err := src.Open(ctx, name)
	if errors.Is(err, ErrMissing) {
		report.Missing = true
		return report, nil
	}
	if err != nil {
		return report, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("%s: read header: %w", name, err)
	}
	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return report, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err = handle(ctx, row{columns: columns, values: record})
		var skipped errSkip
		switch {
		case err == nil:
			report.Imported++
		case errors.As(err, &skipped), isConstraint(err):
			report.Skipped++
			im.log.WarnContext(ctx, "fixture row skipped", "file", name, "line", line, "reason", err.Error())
		default:
			return report, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
	}
	return report, nil
}

func isConstraint(err error) bool {
	return errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrInvalid) ||
		errors.Is(err, store.ErrReference)
}

func (im *Importer) importUser(ctx context.Context, r row) error {
	id, err := r.integer("id")
	if err != nil {
		return err
	}
	role := types.Role(strings.ToLower(r.str("role")))
	if role == "" {
		role = types.RoleUser
	}
	if !role.Valid() {
		return skip("unknown role %q", role)
	}
	username := r.str("username")
	if username == "" || username == services.ReservedUsername {
		return skip("invalid username %q", username)
	}

	user, err := im.repos.Users.Create(ctx, types.User{
		Username:  username,
		Email:     r.str("email"),
		FirstName: r.str("first_name"),
		LastName:  r.str("last_name"),
		Bio:       r.str("bio"),
		Role:      role,
	})
	if err != nil {
		return err
	}
	im.users[id] = user.ID
	return nil
}

func (im *Importer) entryImporter(repo EntryWriter, ids map[int]int) func(context.Context, row) error {
	return func(ctx context.Context, r row) error {
		id, err := r.integer("id")
		if err != nil {
			return err
		}
		entry, err := repo.Create(ctx, store.Entry{Name: r.str("name"), Slug: r.str("slug")})
		if err != nil {
			return err
		}
		ids[id] = entry.ID
		return nil
	}
}

func (im *Importer) collectLink(_ context.Context, r row) error {
	titleID, err := r.integer("title_id")
	if err != nil {
		return err
	}
	genreID, err := r.integer("genre_id")
	if err != nil {
		return err
	}
	im.links[titleID] = append(im.links[titleID], genreID)
	return nil
}

func (im *Importer) importTitle(ctx context.Context, r row) error {
	id, err := r.integer("id")
	if err != nil {
		return err
	}
	rec := store.TitleRecord{
		Name:        r.str("name"),
		Description: r.str("description"),
	}
	if rec.Year, err = r.optInt("year"); err != nil {
		return err
	}

	category, err := r.optInt("category")
	if err != nil {
		return err
	}
	if category != nil {
		mapped, ok := im.categories[*category]
		if !ok {
			return skip("unknown category %d", *category)
		}
		rec.CategoryID = &mapped
	}
	for _, genre := range im.links[id] {
		if mapped, ok := im.genres[genre]; ok {
			rec.GenreIDs = append(rec.GenreIDs, mapped)
		}
	}

	newID, err := im.repos.Titles.Create(ctx, rec)
	if err != nil {
		return err
	}
	im.titles[id] = newID
	return nil
}

func (im *Importer) importReview(ctx context.Context, r row) error {
	id, err := r.integer("id")
	if err != nil {
		return err
	}
	titleID, err := r.ref("title_id", im.titles)
	if err != nil {
		return err
	}
	authorID, err := r.ref("author", im.users)
	if err != nil {
		return err
	}
	score, err := r.integer("score")
	if err != nil {
		return err
	}
	pubDate, err := r.timestamp("pub_date")
	if err != nil {
		return err
	}

	review, err := im.repos.Reviews.Create(ctx, types.Review{
		TitleID:  titleID,
		AuthorID: authorID,
		Text:     r.str("text"),
		Score:    score,
		PubDate:  pubDate,
	})
	if err != nil {
		return err
	}
	im.reviews[id] = review.ID
	return nil
}

func (im *Importer) importComment(ctx context.Context, r row) error {
	reviewID, err := r.ref("review_id", im.reviews)
	if err != nil {
		return err
	}
	authorID, err := r.ref("author", im.users)
	if err != nil {
		return err
	}
	pubDate, err := r.timestamp("pub_date")
	if err != nil {
		return err
	}

	_, err = im.repos.Comments.Create(ctx, types.Comment{
		ReviewID: reviewID,
		AuthorID: authorID,
		Text:     r.str("text"),
		PubDate:  pubDate,
	})
	return err
}

type row struct {
	columns map[string]int
	values  []string
}

func (r row) str(col string) string {
	i, ok := r.columns[col]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

func (r row) integer(col string) (int, error) {
	raw := r.str(col)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, skip("%s: invalid integer %q", col, raw)
	}
	return n, nil
}

func (r row) optInt(col string) (*int, error) {
	if r.str(col) == "" {
		return nil, nil
	}
	n, err := r.integer(col)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ref resolves a fixture id through ids.
func (r row) ref(col string, ids map[int]int) (int, error) {
	n, err := r.integer(col)
	if err != nil {
		return 0, err
	}
	mapped, ok := ids[n]
	if !ok {
		return 0, skip("%s: unknown reference %d", col, n)
	}
	return mapped, nil
}

// timestamp parses an RFC 3339 timestamp. An empty value yields the zero time,
// which the repositories replace with the current time.
func (r row) timestamp(col string) (time.Time, error) {
	raw := r.str(col)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, skip("%s: invalid timestamp %q", col, raw)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}
