package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yamdb/apiserver/types"
)

// ReviewRepository handles persistence for reviews.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewSelect = `
		SELECT r.id, r.title_id, r.text, r.score, r.author_id, u.username, r.pub_date
		FROM reviews r
		JOIN users u ON u.id = r.author_id`

// ListByTitle returns a title's reviews, newest first.
func (r *ReviewRepository) ListByTitle(ctx context.Context, titleID, offset, limit int) ([]types.Review, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM reviews WHERE title_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, titleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = reviewSelect + `
		WHERE r.title_id = $1
		ORDER BY r.pub_date DESC, r.id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, titleID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0, limit)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// Get returns review id of title titleID.
func (r *ReviewRepository) Get(ctx context.Context, titleID, id int) (types.Review, error) {
	const query = reviewSelect + `
		WHERE r.title_id = $1 AND r.id = $2`
	review, err := scanReview(r.db.QueryRowContext(ctx, query, titleID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// ExistsForAuthor reports whether authorID already reviewed titleID.
func (r *ReviewRepository) ExistsForAuthor(ctx context.Context, titleID, authorID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reviews WHERE title_id = $1 AND author_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, titleID, authorID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts review. A zero PubDate is stamped with the current time.
func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	if review.PubDate.IsZero() {
		review.PubDate = now()
	}

	const query = `
		INSERT INTO reviews (title_id, author_id, text, score, pub_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		review.TitleID,
		review.AuthorID,
		review.Text,
		review.Score,
		review.PubDate,
	).Scan(&review.ID); err != nil {
		return types.Review{}, translate(err)
	}
	return review, nil
}

// Update changes text and score. Title, author and pub_date are immutable.
func (r *ReviewRepository) Update(ctx context.Context, review types.Review) error {
	const query = `
		UPDATE reviews
		SET text = $1,
			score = $2
		WHERE id = $3`
	return execAffectingOne(ctx, r.db, query, review.Text, review.Score, review.ID)
}

func (r *ReviewRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	return execAffectingOne(ctx, r.db, query, id)
}

func scanReview(row rowScanner) (types.Review, error) {
	var review types.Review
	err := row.Scan(
		&review.ID,
		&review.TitleID,
		&review.Text,
		&review.Score,
		&review.AuthorID,
		&review.Author,
		&review.PubDate,
	)
	return review, err
}
