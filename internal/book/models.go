package book

import (
	"strings"
	"time"
)

// Book is the persistent catalog record. CoverImage holds the stored filename
// of the cover in the file store; the file itself is not owned by the record.
type Book struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	ISBN       string    `json:"isbn" bson:"isbn"`
	Title      string    `json:"title" bson:"title"`
	Author     string    `json:"author" bson:"author"`
	Publisher  string    `json:"publisher" bson:"publisher"`
	PageCount  int       `json:"pageCount" bson:"pageCount"`
	CoverImage string    `json:"coverImage" bson:"coverImage"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateInput carries the fields of a new book.
type CreateInput struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	PageCount int    `json:"pageCount"`
}

// Book builds the unsaved record described by in.
func (in CreateInput) Book() *Book {
	return &Book{
		ISBN:      in.ISBN,
		Title:     in.Title,
		Author:    in.Author,
		Publisher: in.Publisher,
		PageCount: in.PageCount,
	}
}

// UpdateInput carries the supplied fields of a partial update. Nil fields keep
// their stored value.
type UpdateInput struct {
	ISBN      *string
	Title     *string
	Author    *string
	Publisher *string
	PageCount *int
}

// Empty reports whether no field was supplied.
func (in UpdateInput) Empty() bool {
	return in.ISBN == nil && in.Title == nil && in.Author == nil && in.Publisher == nil && in.PageCount == nil
}

// Changes is what a repository applies on update: the user supplied fields
// plus an optional replacement cover filename.
type Changes struct {
	UpdateInput
	CoverImage *string
}

// Apply merges the changes over b. UpdatedAt is left to the caller.
func (b *Book) Apply(ch Changes) {
	if ch.ISBN != nil {
		b.ISBN = *ch.ISBN
	}
	if ch.Title != nil {
		b.Title = *ch.Title
	}
	if ch.Author != nil {
		b.Author = *ch.Author
	}
	if ch.Publisher != nil {
		b.Publisher = *ch.Publisher
	}
	if ch.PageCount != nil {
		b.PageCount = *ch.PageCount
	}
	if ch.CoverImage != nil {
		b.CoverImage = *ch.CoverImage
	}
}

// SearchCriteria holds independent substring filters. Blank criteria are
// ignored; the rest must all match. Search matches any of title, author,
// publisher or isbn.
type SearchCriteria struct {
	Search    string
	Author    string
	Title     string
	Publisher string
}

// Empty reports whether every criterion is blank.
func (c SearchCriteria) Empty() bool {
	return strings.TrimSpace(c.Search) == "" && strings.TrimSpace(c.Author) == "" &&
		strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Publisher) == ""
}

// Matches evaluates the criteria against b with case-insensitive literal
// substring matching.
func (c SearchCriteria) Matches(b *Book) bool {
	if term := strings.TrimSpace(c.Search); term != "" {
		if !containsFold(b.Title, term) && !containsFold(b.Author, term) &&
			!containsFold(b.Publisher, term) && !containsFold(b.ISBN, term) {
			return false
		}
	}
	if term := strings.TrimSpace(c.Author); term != "" && !containsFold(b.Author, term) {
		return false
	}
	if term := strings.TrimSpace(c.Title); term != "" && !containsFold(b.Title, term) {
		return false
	}
	if term := strings.TrimSpace(c.Publisher); term != "" && !containsFold(b.Publisher, term) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
