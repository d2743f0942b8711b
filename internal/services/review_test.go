package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/internal/store/storetest"
	"github.com/yamdb/apiserver/types"
)

type reviewFixture struct {
	titles   *storetest.Titles
	reviews  *storetest.Reviews
	svc      *ReviewService
	comments *CommentService
	titleID  int
}

func newReviewFixture(t *testing.T) reviewFixture {
	t.Helper()
	titles := storetest.NewTitles(storetest.NewCatalog(), storetest.NewCatalog())
	titleID, err := titles.Create(context.Background(), store.TitleRecord{Name: "Solaris"})
	require.NoError(t, err)
	reviews := storetest.NewReviews()
	svc := NewReviewService(reviews, titles)
	return reviewFixture{
		titles:   titles,
		reviews:  reviews,
		svc:      svc,
		comments: NewCommentService(storetest.NewComments(), svc),
		titleID:  titleID,
	}
}

var (
	alice = types.User{ID: 1, Username: "alice"}
	bob   = types.User{ID: 2, Username: "bob"}
)

func TestReviewCreate(t *testing.T) {
	f := newReviewFixture(t)

	review, err := f.svc.Create(context.Background(), f.titleID, alice, "great", 9)
	require.NoError(t, err)
	assert.Equal(t, "alice", review.Author)
	assert.Equal(t, f.titleID, review.TitleID)
	assert.Equal(t, 9, review.Score)
	assert.False(t, review.PubDate.IsZero())
}

func TestReviewScoreBounds(t *testing.T) {
	cases := []struct {
		score int
		ok    bool
	}{
		{0, false},
		{1, true},
		{10, true},
		{11, false},
	}
	for _, tc := range cases {
		f := newReviewFixture(t)
		_, err := f.svc.Create(context.Background(), f.titleID, alice, "text", tc.score)
		if tc.ok {
			assert.NoError(t, err, "score %d", tc.score)
			continue
		}
		var fieldErr *FieldError
		require.ErrorAs(t, err, &fieldErr, "score %d", tc.score)
		assert.Equal(t, "score", fieldErr.Field)
	}
}

func TestReviewDuplicate(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.titleID, alice, "first", 5)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.titleID, alice, "second", 6)
	assert.Equal(t, ErrDuplicateReview, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Create(ctx, f.titleID, bob, "other author", 6)
	assert.NoError(t, err)
}

func TestReviewDuplicateRace(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.titleID, alice, "first", 5)
	require.NoError(t, err)

	f.reviews.SkipExistsCheck = true
	_, err = f.svc.Create(ctx, f.titleID, alice, "second", 6)
	assert.Equal(t, ErrDuplicateReview, err)
}

func TestReviewMissingTitle(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 404, alice, "text", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = f.svc.List(ctx, 404, 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewGetUnderWrongTitle(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	otherID, err := f.titles.Create(ctx, store.TitleRecord{Name: "Stalker"})
	require.NoError(t, err)
	review, err := f.svc.Create(ctx, f.titleID, alice, "text", 5)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, otherID, review.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewUpdate(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.Create(ctx, f.titleID, alice, "text", 5)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, review, nil, intPtr(7))
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Score)
	assert.Equal(t, "text", updated.Text)

	_, err = f.svc.Update(ctx, review, nil, intPtr(11))
	assert.ErrorIs(t, err, ErrValidation)
	stored, err := f.reviews.Get(ctx, f.titleID, review.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Score)
}

func TestCommentLifecycle(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.Create(ctx, f.titleID, alice, "text", 5)
	require.NoError(t, err)

	comment, err := f.comments.Create(ctx, f.titleID, review.ID, bob, "agree")
	require.NoError(t, err)
	assert.Equal(t, "bob", comment.Author)
	assert.Equal(t, review.ID, comment.ReviewID)

	items, total, err := f.comments.List(ctx, f.titleID, review.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	updated, err := f.comments.Update(ctx, comment, strPtr("disagree"))
	require.NoError(t, err)
	assert.Equal(t, "disagree", updated.Text)

	_, err = f.comments.Update(ctx, comment, strPtr(" "))
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.comments.Delete(ctx, comment.ID))
	_, err = f.comments.Get(ctx, f.titleID, review.ID, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentUnderMissingReview(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.comments.Create(context.Background(), f.titleID, 77, bob, "hello")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "review not found")
}
