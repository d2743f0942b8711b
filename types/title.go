package types

// Category groups titles by medium (film, book, music, ...).
type Category struct {
	ID   int    `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre is a many-to-many label on titles.
type Genre struct {
	ID   int    `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Title is a work that users review.
type Title struct {
	// ID is the unique identifier of the title.
	ID int `json:"id" db:"id"`

	// Name is unique across titles.
	Name string `json:"name" db:"name"`

	// Year is the release year. Nil when unknown.
	Year *int `json:"year" db:"year"`

	Description string `json:"description" db:"description"`

	// Genre lists every genre linked to the title.
	Genre []Genre `json:"genre" db:"-"`

	// Category is nil when the title has none or the category was deleted.
	Category *Category `json:"category" db:"-"`

	// Rating is the average review score, nil until the first review.
	Rating *float64 `json:"rating" db:"rating"`
}

// TitleFilter narrows GET /titles. Empty fields don't filter.
type TitleFilter struct {
	Genre    string
	Category string
	Name     string
	Year     *int
}
