package types

import "time"

// Score bounds for a review, inclusive.
const (
	MinScore = 1
	MaxScore = 10
)

// Review is a user's scored opinion of a title. A user reviews a title at most once.
type Review struct {
	ID      int `json:"id" db:"id"`
	TitleID int `json:"title" db:"title_id"`

	Text  string `json:"text" db:"text"`
	Score int    `json:"score" db:"score"`

	// AuthorID owns the review. Author is the author's username.
	AuthorID int    `json:"-" db:"author_id"`
	Author   string `json:"author" db:"author"`

	// PubDate is assigned by the server at creation and never changes.
	PubDate time.Time `json:"pub_date" db:"pub_date"`
}

// Comment is a reply to a review.
type Comment struct {
	ID       int `json:"id" db:"id"`
	ReviewID int `json:"review" db:"review_id"`

	Text string `json:"text" db:"text"`

	AuthorID int    `json:"-" db:"author_id"`
	Author   string `json:"author" db:"author"`

	PubDate time.Time `json:"pub_date" db:"pub_date"`
}
