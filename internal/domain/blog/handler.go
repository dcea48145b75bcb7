package blog

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/validate"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc           *Service
	maxUploadSize int64
}

func NewHandler(svc *Service, maxUploadSize int64) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize}
}

// RegisterRoutes mounts the article endpoints. Reads are public.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/blog", h.List)
	api.GET("/blog/:id", h.Get)
	api.POST("/blog", h.Create, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	api.PUT("/blog/:id", h.Update)
	api.DELETE("/blog/:id", h.Delete)
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.HTTP(auth.ErrInvalidToken)
	}
	return id, nil
}

func articleID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid article id")
	}
	return id, nil
}

type articlePage struct {
	Success bool       `json:"success"`
	Blogs   []*Article `json:"blogs"`
	pagination.Page
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Article{}
	}
	return c.JSON(http.StatusOK, articlePage{Success: true, Blogs: items, Page: pagination.NewPage(pg, total)})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "blog": a})
}

// Create accepts multipart/form-data with title, content and an optional
// image file.
func (h *Handler) Create(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	req := CreateRequest{Title: c.FormValue("title"), Content: c.FormValue("content")}

	var img *blobstore.Image
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		img, err = blobstore.ReadImage(fh, h.maxUploadSize)
		if err != nil {
			return apperr.HTTP(err)
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	a, err := h.svc.Publish(c.Request().Context(), who, req, img)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "blog": a})
}

func (h *Handler) Update(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := articleID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.HTTP(err)
	}
	a, err := h.svc.Update(c.Request().Context(), who, id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "blog": a})
}

func (h *Handler) Delete(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := articleID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), who, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}
