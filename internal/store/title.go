package store

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/yamdb/apiserver/types"
)

// TitleRecord is the writable shape of a title. Genres and category are
// referenced by id.
type TitleRecord struct {
	ID          int
	Name        string
	Year        *int
	Description string
	CategoryID  *int
	GenreIDs    []int
}

// TitleRepository handles persistence for titles and their genre links.
type TitleRepository struct {
	db *sql.DB
}

func NewTitleRepository(db *sql.DB) *TitleRepository {
	return &TitleRepository{db: db}
}

func titleSelect() sq.SelectBuilder {
	return sq.Select(
		"t.id", "t.name", "t.year", "t.description",
		"c.id", "c.name", "c.slug",
		"(SELECT AVG(r.score)::float8 FROM reviews r WHERE r.title_id = t.id) AS rating",
	).
		From("titles t").
		LeftJoin("categories c ON c.id = t.category_id").
		PlaceholderFormat(sq.Dollar)
}

func titleWhere(filter types.TitleFilter) sq.And {
	where := sq.And{}
	if filter.Genre != "" {
		where = append(where, sq.Expr(
			"EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id WHERE tg.title_id = t.id AND g.slug = ?)",
			filter.Genre,
		))
	}
	if filter.Category != "" {
		where = append(where, sq.Eq{"c.slug": filter.Category})
	}
	if filter.Name != "" {
		where = append(where, sq.ILike{"t.name": "%" + escapeLike(filter.Name) + "%"})
	}
	if filter.Year != nil {
		where = append(where, sq.Eq{"t.year": *filter.Year})
	}
	return where
}

// List returns titles matching filter, newest first, with genres, category
// and rating populated.
func (r *TitleRepository) List(ctx context.Context, filter types.TitleFilter, offset, limit int) ([]types.Title, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	where := titleWhere(filter)

	countQuery, countArgs, err := sq.Select("COUNT(1)").
		From("titles t").
		LeftJoin("categories c ON c.id = t.category_id").
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

	query, args, err := titleSelect().
		Where(where).
		OrderBy("t.id DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	titles := make([]types.Title, 0, limit)
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, 0, err
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachGenres(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

func (r *TitleRepository) Get(ctx context.Context, id int) (types.Title, error) {
	query, args, err := titleSelect().Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return types.Title{}, err
	}
	title, err := scanTitle(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Title{}, ErrNotFound
		}
		return types.Title{}, err
	}
	titles := []types.Title{title}
	if err := r.attachGenres(ctx, titles); err != nil {
		return types.Title{}, err
	}
	return titles[0], nil
}

// Exists reports whether a title with id exists.
func (r *TitleRepository) Exists(ctx context.Context, id int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM titles WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts the title and its genre links in one transaction and
// returns the new id.
func (r *TitleRepository) Create(ctx context.Context, rec TitleRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO titles (name, year, description, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int
	if err := tx.QueryRowContext(ctx, query, rec.Name, nullInt(rec.Year), rec.Description, nullInt(rec.CategoryID)).Scan(&id); err != nil {
		return 0, translate(err)
	}
	if err := insertGenreLinks(ctx, tx, id, rec.GenreIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the title row and replaces its genre links.
func (r *TitleRepository) Update(ctx context.Context, rec TitleRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		UPDATE titles
		SET name = $1,
			year = $2,
			description = $3,
			category_id = $4
		WHERE id = $5`
	result, err := tx.ExecContext(ctx, query, rec.Name, nullInt(rec.Year), rec.Description, nullInt(rec.CategoryID), rec.ID)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM title_genres WHERE title_id = $1`, rec.ID); err != nil {
		return err
	}
	if err := insertGenreLinks(ctx, tx, rec.ID, rec.GenreIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TitleRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM titles WHERE id = $1`
	return execAffectingOne(ctx, r.db, query, id)
}

// GenreIDs returns the ids of the genres linked to title id.
func (r *TitleRepository) GenreIDs(ctx context.Context, id int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT genre_id FROM title_genres WHERE title_id = $1 ORDER BY genre_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var gid int
		if err := rows.Scan(&gid); err != nil {
			return nil, err
		}
		ids = append(ids, gid)
	}
	return ids, rows.Err()
}

func insertGenreLinks(ctx context.Context, tx *sql.Tx, titleID int, genreIDs []int) error {
	if len(genreIDs) == 0 {
		return nil
	}
	builder := sq.Insert("title_genres").
		Columns("title_id", "genre_id").
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(sq.Dollar)
	for _, gid := range genreIDs {
		builder = builder.Values(titleID, gid)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (r *TitleRepository) attachGenres(ctx context.Context, titles []types.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]int, 0, len(titles))
	index := make(map[int]int, len(titles))
	for i, title := range titles {
		ids = append(ids, title.ID)
		index[title.ID] = i
		titles[i].Genre = []types.Genre{}
	}

	query, args, err := sq.Select("tg.title_id", "g.id", "g.name", "g.slug").
		From("title_genres tg").
		Join("genres g ON g.id = tg.genre_id").
		Where(sq.Eq{"tg.title_id": ids}).
		OrderBy("g.name").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var titleID int
		var genre types.Genre
		if err := rows.Scan(&titleID, &genre.ID, &genre.Name, &genre.Slug); err != nil {
			return err
		}
		if i, ok := index[titleID]; ok {
			titles[i].Genre = append(titles[i].Genre, genre)
		}
	}
	return rows.Err()
}

func scanTitle(row rowScanner) (types.Title, error) {
	var (
		title        types.Title
		year         sql.NullInt64
		categoryID   sql.NullInt64
		categoryName sql.NullString
		categorySlug sql.NullString
		rating       sql.NullFloat64
	)
	if err := row.Scan(
		&title.ID,
		&title.Name,
		&year,
		&title.Description,
		&categoryID,
		&categoryName,
		&categorySlug,
		&rating,
	); err != nil {
		return types.Title{}, err
	}
	if year.Valid {
		y := int(year.Int64)
		title.Year = &y
	}
	if categoryID.Valid {
		title.Category = &types.Category{
			ID:   int(categoryID.Int64),
			Name: categoryName.String,
			Slug: categorySlug.String,
		}
	}
	if rating.Valid {
		v := rating.Float64
		title.Rating = &v
	}
	return title, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
