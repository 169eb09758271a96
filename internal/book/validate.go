package book

import "strings"

const (
	FieldISBN      = "isbn"
	FieldTitle     = "title"
	FieldAuthor    = "author"
	FieldPublisher = "publisher"
	FieldPageCount = "pageCount"
)

const (
	msgPageCount     = FieldPageCount + " must be a positive integer"
	msgNothingToEdit = "no fields to update"
)

// RequiredMessage is the message reported for a missing or blank field.
func RequiredMessage(field string) string {
	return field + " is required"
}

// PageCountMessage is the message reported for a page count that is not a
// positive integer.
func PageCountMessage() string {
	return msgPageCount
}

// Validate checks that every field is present and the page count is positive.
func (in CreateInput) Validate() error {
	verr := &ValidationError{}
	requireText(verr, FieldISBN, in.ISBN)
	requireText(verr, FieldTitle, in.Title)
	requireText(verr, FieldAuthor, in.Author)
	requireText(verr, FieldPublisher, in.Publisher)
	if in.PageCount < 1 {
		verr.Add(FieldPageCount, msgPageCount)
	}
	return verr.Err()
}

// Validate checks the supplied fields with the same rules as CreateInput.
// An input with no fields at all is rejected unless allowEmpty is set, which
// the service does when a replacement cover accompanies the update.
func (in UpdateInput) Validate(allowEmpty bool) error {
	verr := &ValidationError{}
	if in.Empty() && !allowEmpty {
		verr.Add("body", msgNothingToEdit)
		return verr
	}
	if in.ISBN != nil {
		requireText(verr, FieldISBN, *in.ISBN)
	}
	if in.Title != nil {
		requireText(verr, FieldTitle, *in.Title)
	}
	if in.Author != nil {
		requireText(verr, FieldAuthor, *in.Author)
	}
	if in.Publisher != nil {
		requireText(verr, FieldPublisher, *in.Publisher)
	}
	if in.PageCount != nil && *in.PageCount < 1 {
		verr.Add(FieldPageCount, msgPageCount)
	}
	return verr.Err()
}

func requireText(verr *ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" && !verr.Has(field) {
		verr.Add(field, RequiredMessage(field))
	}
}
