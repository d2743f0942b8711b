package store

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// Entry is a named, slugged catalog row. Categories and genres share the shape.
type Entry struct {
	ID   int
	Name string
	Slug string
}

// CatalogRepository handles persistence for one catalog table
// (categories or genres).
type CatalogRepository struct {
	db    *sql.DB
	table string
}

func NewCategoryRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, table: "categories"}
}

func NewGenreRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, table: "genres"}
}

// List returns entries newest first. search filters by a case-insensitive
// name substring.
func (r *CatalogRepository) List(ctx context.Context, search string, offset, limit int) ([]Entry, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := sq.And{}
	if search != "" {
		where = append(where, sq.ILike{"name": "%" + escapeLike(search) + "%"})
	}

	countQuery, countArgs, err := sq.Select("COUNT(1)").
		From(r.table).
		Where(where).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery, listArgs, err := sq.Select("id", "name", "slug").
		From(r.table).
		Where(where).
		OrderBy("id DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.Slug); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *CatalogRepository) GetBySlug(ctx context.Context, slug string) (Entry, error) {
	query, args, err := sq.Select("id", "name", "slug").
		From(r.table).
		Where(sq.Eq{"slug": slug}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID, &e.Name, &e.Slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *CatalogRepository) Create(ctx context.Context, e Entry) (Entry, error) {
	query, args, err := sq.Insert(r.table).
		Columns("name", "slug").
		Values(e.Name, e.Slug).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return Entry{}, err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return Entry{}, translate(err)
	}
	return e, nil
}

func (r *CatalogRepository) DeleteBySlug(ctx context.Context, slug string) error {
	query, args, err := sq.Delete(r.table).
		Where(sq.Eq{"slug": slug}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	return execAffectingOne(ctx, r.db, query, args...)
}
