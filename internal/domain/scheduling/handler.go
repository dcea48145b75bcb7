package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateSlot, auth.RequireRole(auth.RoleDoctor))
	api.DELETE("/appointments", h.DeleteSlots, auth.RequireRole(auth.RoleDoctor))

	api.GET("/booking", h.BrowseSlots)
	api.PATCH("/booking", h.Book, auth.RequireRole(auth.RolePatient))
}

// Caller returns the authenticated identity on the request.
func Caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.HTTP(auth.ErrInvalidToken)
	}
	return id, nil
}

func (h *Handler) ListAppointments(c echo.Context) error {
	caller, err := Caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListSlots(c.Request().Context(), caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "appointments": items})
}

func (h *Handler) CreateSlot(c echo.Context) error {
	caller, err := Caller(c)
	if err != nil {
		return err
	}
	var req CreateSlotRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.HTTP(err)
	}
	slot, err := h.svc.CreateSlot(c.Request().Context(), caller, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "slot": slot})
}

// DeleteSlots deletes one slot when appointmentId is given, otherwise all of
// the caller's slots.
func (h *Handler) DeleteSlots(c echo.Context) error {
	caller, err := Caller(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if raw := c.QueryParam("appointmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointmentId")
		}
		if err := h.svc.DeleteSlot(ctx, caller, id); err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "appointment deleted"})
	}

	n, err := h.svc.DeleteAllSlots(ctx, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "all appointments deleted",
		"deleted": n,
	})
}

func (h *Handler) BrowseSlots(c echo.Context) error {
	caller, err := Caller(c)
	if err != nil {
		return err
	}
	var doctorID *uuid.UUID
	if raw := c.QueryParam("doctorId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
		}
		doctorID = &id
	}

	listing, err := h.svc.BrowseSlots(c.Request().Context(), caller, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp := map[string]interface{}{"success": true, "appointments": listing.Appointments}
	if listing.DoctorID != nil {
		resp["doctorId"] = listing.DoctorID
	}
	if listing.Message != "" {
		resp["message"] = listing.Message
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Book(c echo.Context) error {
	caller, err := Caller(c)
	if err != nil {
		return err
	}
	var req BookRequest
	if err := validate.Bind(c, &req); err != nil {
		return apperr.HTTP(err)
	}
	a, err := h.svc.Book(c.Request().Context(), caller, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "appointment": a})
}
