package uploads

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/attachments"
	"articles-backend/internal/shared/server/respond"
)

// multipart form overhead on top of the attachment size cap
const maxUploadBody = attachments.MaxBytes + 1<<20

// Handler accepts image uploads and serves the stored files back. Uploaded
// images are staged: they only become durable once an article or profile
// commits their ref.
type Handler struct {
	Attachments   *attachments.Store
	PublicBaseURL string
}

func NewHandler(store *attachments.Store, publicBaseURL string) *Handler {
	return &Handler{Attachments: store, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// RegisterRoutes wires the authed upload endpoint; RegisterServeRoute wires
// the public file route at the router root so refs resolve as plain URLs.
func (h *Handler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.POST("/uploads/image", h.upload)
}

func (h *Handler) RegisterServeRoute(r gin.IRouter) {
	r.GET("/uploads/:name", h.serve)
}

type uploadResponse struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileURL  string `json:"fileUrl"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "expected an image file field", nil)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unreadable image file", nil)
		return
	}
	defer f.Close()

	staged, err := h.Attachments.Stage(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, attachments.ErrUnsupportedMedia):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media", "image must be a jpeg, png, or gif", nil)
		case errors.Is(err, attachments.ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "image exceeds the size limit", nil)
		default:
			respond.Error(c, http.StatusBadRequest, "invalid_request", "could not store image", nil)
		}
		return
	}

	filePath := h.Attachments.PathFor(staged)
	respond.JSON(c, http.StatusCreated, uploadResponse{
		FileName: staged.Name,
		FilePath: filePath,
		FileURL:  h.PublicBaseURL + "/" + filePath,
		Size:     staged.SizeBytes,
		MimeType: staged.MimeType,
	})
}

func (h *Handler) serve(c *gin.Context) {
	ref := path.Join("uploads", c.Param("name"))

	rc, err := h.Attachments.Open(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not read file", nil)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
