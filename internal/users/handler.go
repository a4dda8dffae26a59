package users

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/attachments"
	"articles-backend/internal/resources"
	"articles-backend/internal/shared/auth"
	"articles-backend/internal/shared/server/middleware"
	"articles-backend/internal/shared/server/respond"
)

// multipart form overhead on top of the attachment size cap
const maxProfileBody = attachments.MaxBytes + 1<<20

type Handler struct {
	Svc           *Service
	Attachments   *attachments.Store
	PublicBaseURL string
}

func NewHandler(svc *Service, store *attachments.Store, publicBaseURL string) *Handler {
	return &Handler{Svc: svc, Attachments: store, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (h *Handler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.POST("/users/register", h.register)
	public.POST("/users/login", h.login)
	authed.GET("/users/profile", h.profile)
	authed.PUT("/users/profile", h.updateProfile)
}

func (h *Handler) register(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "malformed JSON body", nil)
		return
	}

	user, token, err := h.Svc.Register(c.Request.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"token": token,
		"user":  h.public(user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "malformed JSON body", nil)
		return
	}

	user, token, err := h.Svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{
		"token": token,
		"user":  h.public(user),
	})
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.Svc.Profile(c.Request.Context(), middleware.PrincipalFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, h.public(user))
}

// updateProfile accepts multipart form data. Text fields are tri-state:
// absent keeps the stored value, present-and-empty clears it (forms have no
// null). An "avatar" file replaces the current avatar; an empty "avatar_url"
// field removes it.
func (h *Handler) updateProfile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProfileBody)
	if err := c.Request.ParseMultipartForm(maxProfileBody); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "expected multipart form data", nil)
		return
	}
	form := url.Values(c.Request.MultipartForm.Value)

	upd := ProfileUpdate{
		Name:     resources.FormOpt(form, "name"),
		Email:    resources.FormOpt(form, "email"),
		Password: resources.FormOpt(form, "password"),
	}
	upd.ClearAvatar = resources.FormOpt(form, "avatar_url").Cleared()

	fileHeader, err := c.FormFile("avatar")
	switch {
	case err == nil:
		f, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "unreadable avatar file", nil)
			return
		}
		defer f.Close()

		staged, err := h.Attachments.Stage(c.Request.Context(), fileHeader.Filename, f)
		if err != nil {
			h.fail(c, err)
			return
		}
		upd.Avatar = &staged
	case errors.Is(err, http.ErrMissingFile):
		// no new avatar
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unreadable avatar file", nil)
		return
	}

	user, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.PrincipalFromContext(c), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, h.public(user))
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, auth.ErrBadCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", "email already registered", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	case errors.Is(err, resources.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not your account", nil)
	case errors.Is(err, attachments.ErrUnsupportedMedia):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media", "avatar must be a jpeg, png, or gif image", nil)
	case errors.Is(err, attachments.ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "avatar exceeds the size limit", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected failure", nil)
	}
}

func (h *Handler) public(user User) Public {
	p := Public{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.AvatarRef != "" {
		p.AvatarURL = h.PublicBaseURL + "/" + user.AvatarRef
	}
	return p
}
