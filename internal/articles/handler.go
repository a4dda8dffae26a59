package articles

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/resources"
	"articles-backend/internal/shared/server/middleware"
	"articles-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc           *Service
	PublicBaseURL string
}

func NewHandler(svc *Service, publicBaseURL string) *Handler {
	return &Handler{Svc: svc, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/articles", h.list)
	public.GET("/articles/:id", h.get)
	authed.POST("/articles", h.create)
	authed.PUT("/articles/:id", h.update)
	authed.DELETE("/articles/:id", h.remove)
	authed.POST("/articles/:id/like", h.toggleLike)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{ViewerID: middleware.PrincipalFromContext(c)}
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	q.Offset, _ = strconv.Atoi(c.Query("offset"))

	list, err := h.Svc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]Public, 0, len(list))
	for _, article := range list {
		out = append(out, h.public(article))
	}
	respond.OK(c, gin.H{"articles": out})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.articleID(c)
	if !ok {
		return
	}
	article, err := h.Svc.Get(c.Request.Context(), id, middleware.PrincipalFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, h.public(article))
}

func (h *Handler) create(c *gin.Context) {
	var body struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		ImageURL string `json:"imageUrl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "malformed JSON body", nil)
		return
	}

	article, err := h.Svc.Create(c.Request.Context(), Draft{
		AuthorID: middleware.PrincipalFromContext(c),
		Title:    body.Title,
		Body:     body.Body,
		ImageRef: h.refFromURL(body.ImageURL),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, h.public(article))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := h.articleID(c)
	if !ok {
		return
	}

	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "malformed JSON body", nil)
		return
	}
	if upd.Image.Present() && !upd.Image.Cleared() {
		upd.Image.Value = h.refFromURL(upd.Image.Value)
	}

	article, err := h.Svc.Update(c.Request.Context(), id, middleware.PrincipalFromContext(c), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, h.public(article))
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := h.articleID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id, middleware.PrincipalFromContext(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggleLike(c *gin.Context) {
	id, ok := h.articleID(c)
	if !ok {
		return
	}
	liked, likes, err := h.Svc.ToggleLike(c.Request.Context(), id, middleware.PrincipalFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{"liked": liked, "likes": likes})
}

func (h *Handler) articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid article id", nil)
		return 0, false
	}
	// Picked up by the request logging middleware.
	c.Set("articleId", id)
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "article not found", nil)
	case errors.Is(err, resources.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not your article", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected failure", nil)
	}
}

func (h *Handler) public(article Article) Public {
	p := Public{
		ID:          article.ID,
		AuthorID:    article.AuthorID,
		AuthorName:  article.AuthorName,
		Title:       article.Title,
		Body:        article.Body,
		PublishedAt: article.PublishedAt,
		UpdatedAt:   article.UpdatedAt,
		Likes:       article.Likes,
		Liked:       article.LikedByViewer,
	}
	if article.ImageRef != "" {
		p.ImageURL = h.PublicBaseURL + "/" + article.ImageRef
	}
	return p
}

// refFromURL maps a client-supplied image URL back to the stored ref,
// accepting either the bare ref or a URL under the public base.
func (h *Handler) refFromURL(raw string) string {
	ref := strings.TrimSpace(raw)
	if h.PublicBaseURL != "" {
		ref = strings.TrimPrefix(ref, h.PublicBaseURL)
	}
	return strings.TrimPrefix(ref, "/")
}
