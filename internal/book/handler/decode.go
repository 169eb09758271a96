package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
)

const defaultMemory = 32 << 20

var errMalformed = errors.New("malformed request body")

// Spanish field names used by older clients.
var fieldAliases = map[string]string{
	"ISBN":        book.FieldISBN,
	"nombreLibro": book.FieldTitle,
	"autor":       book.FieldAuthor,
	"editorial":   book.FieldPublisher,
	"paginas":     book.FieldPageCount,
}

var coverFields = []string{"cover", "portada"}

// pageCount keeps the raw page count text. JSON bodies may send it as a
// number or a string.
type pageCount string

func (p *pageCount) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*p = pageCount(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("pageCount: %w", err)
	}
	*p = pageCount(s)
	return nil
}

type createForm struct {
	ISBN      string    `form:"isbn" json:"isbn" binding:"required,notblank"`
	Title     string    `form:"title" json:"title" binding:"required,notblank"`
	Author    string    `form:"author" json:"author" binding:"required,notblank"`
	Publisher string    `form:"publisher" json:"publisher" binding:"required,notblank"`
	PageCount pageCount `form:"pageCount" json:"pageCount" binding:"required,notblank"`
}

type updateForm struct {
	ISBN      *string    `form:"isbn" json:"isbn"`
	Title     *string    `form:"title" json:"title"`
	Author    *string    `form:"author" json:"author"`
	Publisher *string    `form:"publisher" json:"publisher"`
	PageCount *pageCount `form:"pageCount" json:"pageCount"`
}

// struct field name -> wire name, for validator messages
var formNames = map[string]string{
	"ISBN":      book.FieldISBN,
	"Title":     book.FieldTitle,
	"Author":    book.FieldAuthor,
	"Publisher": book.FieldPublisher,
	"PageCount": book.FieldPageCount,
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}

// parseForm parses a multipart or urlencoded body and copies aliased fields
// to their canonical names.
func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return formErr(err)
	}
	if err := r.ParseMultipartForm(defaultMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return formErr(err)
	}
	for alias, name := range fieldAliases {
		if _, ok := r.Form[name]; ok {
			continue
		}
		if v, ok := r.Form[alias]; ok {
			r.Form[name] = v
		}
	}
	return nil
}

// aliasedJSON reads a JSON object body and renames aliased keys to their
// canonical names. A canonical key wins over its alias.
func aliasedJSON(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, formErr(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	renamed := false
	for alias, name := range fieldAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, has := fields[name]; !has {
			fields[name] = v
		}
		delete(fields, alias)
		renamed = true
	}
	if !renamed {
		return data, nil
	}
	return json.Marshal(fields)
}

// bindBody binds a JSON, multipart or urlencoded body into obj. Errors other
// than validator field errors come back classified as malformed or too large.
func bindBody(c *gin.Context, obj any) error {
	var err error
	if c.ContentType() == binding.MIMEJSON {
		data, jerr := aliasedJSON(c.Request.Body)
		if jerr != nil {
			return jerr
		}
		err = binding.JSON.BindBody(data, obj)
	} else {
		if perr := parseForm(c.Request); perr != nil {
			return perr
		}
		err = c.ShouldBindWith(obj, binding.Form)
	}
	var fieldErrs validator.ValidationErrors
	if err != nil && !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return err
}

// formErr keeps body size errors intact and marks the rest as malformed.
func formErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformed, err)
}

func decodeCreate(c *gin.Context) (book.CreateInput, error) {
	var f createForm
	verr := &book.ValidationError{}
	if err := bindBody(c, &f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return book.CreateInput{}, err
		}
		for _, fe := range fieldErrs {
			name := formNames[fe.Field()]
			verr.Add(name, book.RequiredMessage(name))
		}
	}
	in := book.CreateInput{
		ISBN:      strings.TrimSpace(f.ISBN),
		Title:     strings.TrimSpace(f.Title),
		Author:    strings.TrimSpace(f.Author),
		Publisher: strings.TrimSpace(f.Publisher),
	}
	if !verr.Has(book.FieldPageCount) {
		n, ok := parsePageCount(string(f.PageCount))
		if !ok {
			verr.Add(book.FieldPageCount, book.PageCountMessage())
		}
		in.PageCount = n
	}
	return in, verr.Err()
}

func decodeUpdate(c *gin.Context) (book.UpdateInput, error) {
	var f updateForm
	if err := bindBody(c, &f); err != nil {
		return book.UpdateInput{}, err
	}
	in := book.UpdateInput{
		ISBN:      trimmed(f.ISBN),
		Title:     trimmed(f.Title),
		Author:    trimmed(f.Author),
		Publisher: trimmed(f.Publisher),
	}
	if f.PageCount != nil {
		n, ok := parsePageCount(string(*f.PageCount))
		if !ok {
			verr := &book.ValidationError{}
			verr.Add(book.FieldPageCount, book.PageCountMessage())
			return in, verr
		}
		in.PageCount = &n
	}
	return in, nil
}

func decodeSearch(c *gin.Context) book.SearchCriteria {
	return book.SearchCriteria{
		Search:    c.Query("search"),
		Author:    firstQuery(c, "author", "autor"),
		Title:     firstQuery(c, "title", "nombreLibro"),
		Publisher: firstQuery(c, "publisher", "editorial"),
	}
}

// formUpload returns the first file part found under names, or nil when the
// request carries none. The returned func closes the part.
func formUpload(c *gin.Context, names ...string) (*storage.Upload, func(), error) {
	for _, name := range names {
		fh, err := c.FormFile(name)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				continue
			}
			return nil, func() {}, fmt.Errorf("%w: %v", errMalformed, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, func() {}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		up := &storage.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
		return up, func() { f.Close() }, nil
	}
	return nil, func() {}, nil
}

func parsePageCount(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v, ok := c.GetQuery(k); ok {
			return v
		}
	}
	return ""
}
