package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedMedia is returned by Save when the upload is not an
	// allowed image type. Nothing is written in that case.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrFileNotFound     = errors.New("file not found")
)

// AllowedContentTypes is the cover image allow-list.
var AllowedContentTypes = []string{"image/jpeg", "image/png", "image/gif"}

// sniffLen is how much of the body is inspected to detect its type.
const sniffLen = 512

// Upload is an incoming file.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object is a stored file opened for reading. Callers close Content.
type Object struct {
	Content     io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// FileStore persists cover images under generated names.
type FileStore interface {
	// Save admits and stores up, returning the generated name.
	Save(ctx context.Context, up Upload) (string, error)
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// Admit checks the declared content type and the sniffed content against the
// allow-list. The returned Upload replays the inspected bytes and carries the
// detected content type.
func Admit(up Upload) (Upload, error) {
	if up.Body == nil {
		return up, fmt.Errorf("%w: empty upload", ErrUnsupportedMedia)
	}
	if up.ContentType != "" {
		declared, _, err := mime.ParseMediaType(up.ContentType)
		if err != nil || !allowed(declared) {
			return up, fmt.Errorf("%w: declared %q", ErrUnsupportedMedia, up.ContentType)
		}
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return up, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	if !allowed(detected.String()) {
		return up, fmt.Errorf("%w: detected %q", ErrUnsupportedMedia, detected.String())
	}
	up.ContentType = detected.String()
	up.Body = io.MultiReader(bytes.NewReader(head), up.Body)
	return up, nil
}

func allowed(contentType string) bool {
	return mimetype.EqualsAny(contentType, AllowedContentTypes...)
}

// StoredName derives "{uuid}-{base name}" from the client supplied filename.
func StoredName(original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		base = "cover"
	}
	return uuid.NewString() + "-" + base
}

// ValidName reports whether name can address a stored file: a single path
// element with no traversal.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
