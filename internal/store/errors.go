package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("conflict")

// ErrInvalid is returned when a write violates a check constraint.
var ErrInvalid = errors.New("check violation")

// ErrReference is returned when a write points at a row that doesn't exist.
var ErrReference = errors.New("missing reference")

// Constraint names from the migrations, surfaced through ConstraintError.
const (
	ConstraintUsersUsername  = "users_username_key"
	ConstraintUsersEmail     = "users_email_key"
	ConstraintCategoriesSlug = "categories_slug_key"
	ConstraintGenresSlug     = "genres_slug_key"
	ConstraintTitlesName     = "titles_name_key"
	ConstraintReviewsAuthor  = "reviews_title_author_key"
	ConstraintReviewsScore   = "reviews_score_check"
)

// ConstraintError carries the name of the violated constraint.
type ConstraintError struct {
	Constraint string
	kind       error
}

// NewConstraintError returns a ConstraintError wrapping one of ErrConflict,
// ErrInvalid or ErrReference.
func NewConstraintError(constraint string, kind error) *ConstraintError {
	return &ConstraintError{Constraint: constraint, kind: kind}
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error {
	return e.kind
}

// translate maps Postgres errors onto the store sentinels and leaves the rest
// untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return &ConstraintError{Constraint: pqErr.Constraint, kind: ErrConflict}
	case "23514":
		return &ConstraintError{Constraint: pqErr.Constraint, kind: ErrInvalid}
	case "23503":
		return &ConstraintError{Constraint: pqErr.Constraint, kind: ErrReference}
	}
	return err
}

// now returns the current time at the precision Postgres stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
