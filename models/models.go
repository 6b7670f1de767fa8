package models

import "time"

// TagCategories is the closed vocabulary the classifier is constrained to.
// Model output is filtered against this list; anything else is discarded.
var TagCategories = []string{
	"Image",
	"Video",
	"News",
	"Blog",
	"Music",
	"Social Media Post",
}

// User represents a registered account. PasswordHash is a bcrypt hash and is
// never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Link is a saved bookmark owned by exactly one user. The (UserID, URL) pair
// is unique per user; the store enforces it with a UNIQUE constraint.
type Link struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       *string   `json:"image"`
	Domain      string    `json:"domain"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PageMetadata is the extractor's output for a fetched page. PageText is the
// collapsed visible body text, capped at 3000 characters; it feeds the
// classifier and is never persisted.
type PageMetadata struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
	Domain      string  `json:"domain"`
	PageText    string  `json:"-"`
}

// Enrichment is the classifier/summarizer result. Degraded is set when the
// model call failed and fallback values were substituted; callers may log it
// but must not fail the request because of it.
type Enrichment struct {
	Tags     []string `json:"tags"`
	Summary  string   `json:"summary"`
	Degraded bool     `json:"-"`
}

// Pagination describes one page of a link listing.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalLinks  int  `json:"totalLinks"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// LinkWithSummary is a stored link plus a freshly computed summary. The
// summary is regenerated on every detail view and never written to the store.
type LinkWithSummary struct {
	Link
	Summary string `json:"summary"`
}
