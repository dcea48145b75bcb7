package notification

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
	"github.com/clinic/clinic/pkg/pagination"
)

// Resolver accepts or rejects a booked appointment. The doctor resolves
// bookings from their notification inbox, so the endpoint lives here.
type Resolver interface {
	Resolve(ctx context.Context, caller auth.Identity, req scheduling.ResolveRequest) (*scheduling.Appointment, error)
}

type Handler struct {
	svc      *Service
	resolver Resolver
}

func NewHandler(svc *Service, resolver Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.List)
	api.PATCH("/notifications", h.Resolve, auth.RequireRole(auth.RoleDoctor))
	api.PATCH("/notifications/read-all", h.MarkAllRead)
	api.PATCH("/notifications/:id/read", h.MarkRead)
}

type notificationPage struct {
	Success       bool            `json:"success"`
	Notifications []*Notification `json:"notifications"`
	Unread        int             `json:"unread"`
	pagination.Page
}

func (h *Handler) List(c echo.Context) error {
	caller, err := scheduling.Caller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, unread, err := h.svc.List(c.Request().Context(), caller, pg)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Notification{}
	}
	return c.JSON(http.StatusOK, notificationPage{
		Success:       true,
		Notifications: items,
		Unread:        unread,
		Page:          pagination.NewPage(pg, total),
	})
}

func (h *Handler) Resolve(c echo.Context) error {
	caller, err := scheduling.Caller(c)
	if err != nil {
		return err
	}
	var req scheduling.ResolveRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.HTTP(err)
	}
	a, err := h.resolver.Resolve(c.Request().Context(), caller, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "appointment status updated",
		"appointment": a,
	})
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	caller, err := scheduling.Caller(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "updated": n})
}

func (h *Handler) MarkRead(c echo.Context) error {
	caller, err := scheduling.Caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}
	if err := h.svc.MarkRead(c.Request().Context(), caller, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}
