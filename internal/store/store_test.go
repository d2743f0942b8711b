package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yamdb/apiserver/types"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

var userCols = []string{"id", "username", "email", "first_name", "last_name", "bio", "role", "is_staff", "created_at", "updated_at"}

func TestUserGetByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "alice", "a@x.com", "", "", "bio", "moderator", false, ts, ts))

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, types.RoleModerator, user.Role)
	assert.Equal(t, "bio", user.Bio)
	assert.Equal(t, ts, user.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDefaultsRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "a@x.com", "", "", "", "user", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	user, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.False(t, user.UpdatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintUsersEmail})

	_, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "a@x.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var constraintErr *ConstraintError
	require.True(t, errors.As(err, &constraintErr))
	assert.Equal(t, ConstraintUsersEmail, constraintErr.Constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.User{ID: 9, Username: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateBumpsUpdatedAt(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Update(context.Background(), types.User{ID: 1, Username: "alice", UpdatedAt: old})
	require.NoError(t, err)
	assert.True(t, user.UpdatedAt.After(old))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGenreRepository(db)

	mock.ExpectQuery("INSERT INTO genres").
		WithArgs("Drama", "drama").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintGenresSlug})

	_, err := repo.Create(context.Background(), Entry{Name: "Drama", Slug: "drama"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectExec("DELETE FROM categories").
		WithArgs("film").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteBySlug(context.Background(), "film")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateRaceIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepository(db)

	mock.ExpectQuery("INSERT INTO reviews").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintReviewsAuthor})

	_, err := repo.Create(context.Background(), types.Review{TitleID: 1, AuthorID: 2, Text: "ok", Score: 5})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateScoreCheck(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReviewRepository(db)

	mock.ExpectQuery("INSERT INTO reviews").
		WillReturnError(&pq.Error{Code: "23514", Constraint: ConstraintReviewsScore})

	_, err := repo.Create(context.Background(), types.Review{TitleID: 1, AuthorID: 2, Text: "ok", Score: 11})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTitleCreateRollsBackOnGenreFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTitleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO titles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec("INSERT INTO title_genres").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "title_genres_genre_id_fkey"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), TitleRecord{Name: "Dune", GenreIDs: []int{99}})
	assert.ErrorIs(t, err, ErrReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}

var titleCols = []string{"id", "name", "year", "description", "id", "name", "slug", "rating"}

const genreFilterSQL = "EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id WHERE tg.title_id = t.id AND g.slug = $1)"

// expectTitleList queues the count, page and genre queries List issues for
// a single matching title with id 7.
func expectTitleList(mock sqlmock.Sqlmock, where string, args []driver.Value, rating any) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM titles t LEFT JOIN categories c ON c.id = t.category_id " + where)).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT AVG(r.score)::float8 FROM reviews r WHERE r.title_id = t.id) AS rating FROM titles t LEFT JOIN categories c ON c.id = t.category_id " + where + " ORDER BY t.id DESC")).
		WithArgs(args...).
		WillReturnRows(sqlmock.NewRows(titleCols).
			AddRow(7, "Solaris", 1972, "", 1, "Films", "films", rating))
	mock.ExpectQuery(regexp.QuoteMeta("FROM title_genres tg JOIN genres g ON g.id = tg.genre_id WHERE tg.title_id IN ($1)")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"title_id", "id", "name", "slug"}).AddRow(7, 2, "Drama", "drama"))
}

func TestTitleListFilters(t *testing.T) {
	year := 1972
	cases := []struct {
		name   string
		filter types.TitleFilter
		where  string
		args   []driver.Value
	}{
		{
			name:   "genre",
			filter: types.TitleFilter{Genre: "drama"},
			where:  "WHERE (" + genreFilterSQL + ")",
			args:   []driver.Value{"drama"},
		},
		{
			name:   "category",
			filter: types.TitleFilter{Category: "films"},
			where:  "WHERE (c.slug = $1)",
			args:   []driver.Value{"films"},
		},
		{
			name:   "name is case-insensitive and escaped",
			filter: types.TitleFilter{Name: "50%_off"},
			where:  "WHERE (t.name ILIKE $1)",
			args:   []driver.Value{`%50\%\_off%`},
		},
		{
			name:   "year",
			filter: types.TitleFilter{Year: &year},
			where:  "WHERE (t.year = $1)",
			args:   []driver.Value{1972},
		},
		{
			name:   "combined",
			filter: types.TitleFilter{Genre: "drama", Category: "films", Name: "sol", Year: &year},
			where:  "WHERE (" + genreFilterSQL + " AND c.slug = $2 AND t.name ILIKE $3 AND t.year = $4)",
			args:   []driver.Value{"drama", "films", "%sol%", 1972},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewTitleRepository(db)
			expectTitleList(mock, tc.where, tc.args, nil)

			titles, total, err := repo.List(context.Background(), tc.filter, 0, 20)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, titles, 1)
			assert.Equal(t, "films", titles[0].Category.Slug)
			require.Len(t, titles[0].Genre, 1)
			assert.Equal(t, "drama", titles[0].Genre[0].Slug)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTitleRating(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTitleRepository(db)
	expectTitleList(mock, "WHERE (c.slug = $1)", []driver.Value{"films"}, 7.5)

	titles, _, err := repo.List(context.Background(), types.TitleFilter{Category: "films"}, 0, 20)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	require.NotNil(t, titles[0].Rating)
	assert.InDelta(t, 7.5, *titles[0].Rating, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTitleRatingNullWithoutReviews(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTitleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AS rating FROM titles t LEFT JOIN categories c ON c.id = t.category_id WHERE t.id = $1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(titleCols).
			AddRow(7, "Solaris", nil, "", nil, nil, nil, nil))
	mock.ExpectQuery("FROM title_genres tg").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"title_id", "id", "name", "slug"}))

	title, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, title.Rating)
	assert.Nil(t, title.Year)
	assert.Nil(t, title.Category)
	assert.Empty(t, title.Genre)
	assert.NoError(t, mock.ExpectationsWereMet())
}
