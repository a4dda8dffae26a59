package articles

import "time"

// Article is one published post. Likes and LikedByViewer are derived for the
// requesting viewer, AuthorName is joined from the author record.
type Article struct {
	ID            int64
	AuthorID      int64
	AuthorName    string
	Title         string
	Body          string
	ImageRef      string
	PublishedAt   time.Time
	UpdatedAt     time.Time
	Likes         int64
	LikedByViewer bool
}

// Public is the externally visible shape of an article.
type Public struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Likes       int64     `json:"likes"`
	Liked       bool      `json:"liked"`
}
