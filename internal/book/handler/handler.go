package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/librosapp/libros/backend/go-services/internal/book/service"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/librosapp/libros/backend/go-services/pkg/middleware"
	"go.uber.org/zap"
)

const (
	msgBookNotFound  = "book not found"
	msgNoBooks       = "no books available"
	msgBookDeleted   = "book deleted"
	msgNoFile        = "no file uploaded"
	msgFileNotFound  = "file not found"
	msgInternalError = "internal server error"
)

// Handler exposes the catalog service over HTTP.
type Handler struct {
	svc      *service.Service
	maxBytes int64
	log      *zap.Logger
}

// New returns a Handler. maxBytes caps request bodies carrying uploads; zero
// disables the cap.
func New(svc *service.Service, maxBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, maxBytes: maxBytes, log: log}
}

// RegisterBookRoutes mounts the catalog and upload routes under /api.
func RegisterBookRoutes(r gin.IRouter, h *Handler) {
	api := r.Group("/api")
	api.POST("/libros", h.create)
	api.GET("/libros", h.list)
	api.GET("/libros/buscar", h.search)
	api.GET("/libros/recientes", h.recent)
	api.GET("/libros/:id", h.get)
	api.PUT("/libros/:id", h.update)
	api.DELETE("/libros/:id", h.remove)
	api.POST("/upload", h.upload)
	api.GET("/upload/:filename", h.download)
}

func (h *Handler) create(c *gin.Context) {
	h.limitBody(c)
	in, err := decodeCreate(c)
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	cover, closeCover, err := formUpload(c, coverFields...)
	defer closeCover()
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	b, err := h.svc.Create(c.Request.Context(), in, cover)
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) search(c *gin.Context) {
	list, err := h.svc.Search(c.Request.Context(), decodeSearch(c))
	if err != nil {
		h.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) recent(c *gin.Context) {
	list, err := h.svc.ListRecent(c.Request.Context())
	if errors.Is(err, book.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgNoBooks})
		return
	}
	if err != nil {
		h.fail(c, "recent", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) update(c *gin.Context) {
	h.limitBody(c)
	in, err := decodeUpdate(c)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	cover, closeCover, err := formUpload(c, coverFields...)
	defer closeCover()
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	b, err := h.svc.Update(c.Request.Context(), c.Param("id"), in, cover)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) remove(c *gin.Context) {
	b, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgBookDeleted, "deletedBook": b})
}

func (h *Handler) upload(c *gin.Context) {
	h.limitBody(c)
	if err := parseForm(c.Request); err != nil {
		h.fail(c, "upload", err)
		return
	}
	up, closeFile, err := formUpload(c, "file")
	defer closeFile()
	if err != nil {
		h.fail(c, "upload", err)
		return
	}
	if up == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFile})
		return
	}
	name, err := h.svc.UploadCover(c.Request.Context(), *up)
	if err != nil {
		h.fail(c, "upload", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fileName": name})
}

func (h *Handler) download(c *gin.Context) {
	obj, err := h.svc.OpenCover(c.Request.Context(), c.Param("filename"))
	if err != nil {
		h.fail(c, "download", err)
		return
	}
	defer obj.Content.Close()
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Content, nil)
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
}

// fail maps service errors to responses. Unknown errors are logged and
// reported generically.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	var verr *book.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
	case errors.Is(err, book.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgBookNotFound})
	case errors.Is(err, storage.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgFileNotFound})
	case errors.Is(err, storage.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "unsupported file type, allowed: " + strings.Join(storage.AllowedContentTypes, ", "),
		})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
	case errors.Is(err, errMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternalError})
	}
}
