package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), e
}

func newRequest(e *echo.Echo, method, target, body string, id *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_CreateSlot(t *testing.T) {
	h, e := newTestHandler()
	doc := doctor()

	c, rec := newRequest(e, http.MethodPost, "/api/appointments", `{"date":"2025-01-10","time":"09:00"}`, &doc)
	if err := h.CreateSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var body struct {
		Success bool        `json:"success"`
		Slot    Appointment `json:"slot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Slot.Status != StatusAvailable || body.Slot.Time != "09:00" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateSlot_Errors(t *testing.T) {
	h, e := newTestHandler()
	pat := patient()
	doc := doctor()

	c, _ := newRequest(e, http.MethodPost, "/api/appointments", `{"date":"2025-01-10","time":"09:00"}`, &pat)
	assertHTTPError(t, h.CreateSlot(c), http.StatusForbidden)

	c, _ = newRequest(e, http.MethodPost, "/api/appointments", `{"date":"2025-01-10"}`, &doc)
	assertHTTPError(t, h.CreateSlot(c), http.StatusBadRequest)

	c, _ = newRequest(e, http.MethodPost, "/api/appointments", `{"date":"2025-01-10","time":"09:00"}`, nil)
	assertHTTPError(t, h.CreateSlot(c), http.StatusUnauthorized)
}

func TestHandler_RoleGate(t *testing.T) {
	e := echo.New()
	pat := patient()
	c, _ := newRequest(e, http.MethodPost, "/api/appointments", `{}`, &pat)

	called := false
	err := auth.RequireRole(auth.RoleDoctor)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	assertHTTPError(t, err, http.StatusForbidden)
	if called {
		t.Error("handler must not run for a patient")
	}
}

func TestHandler_BookAndBrowse(t *testing.T) {
	h, e := newTestHandler()
	doc, pat := doctor(), patient()

	c, rec := newRequest(e, http.MethodGet, "/api/booking", "", &pat)
	if err := h.BrowseSlots(c); err != nil {
		t.Fatalf("browse: %v", err)
	}
	if !strings.Contains(rec.Body.String(), NoAvailableMessage) {
		t.Errorf("expected empty-state message, got %s", rec.Body.String())
	}

	slot := mustCreate(t, h.svc, doc, "2025-01-10", "09:00")

	c, rec = newRequest(e, http.MethodGet, "/api/booking?doctorId="+doc.UserID.String(), "", &pat)
	if err := h.BrowseSlots(c); err != nil {
		t.Fatalf("browse: %v", err)
	}
	if !strings.Contains(rec.Body.String(), slot.ID.String()) {
		t.Errorf("expected slot in listing, got %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodGet, "/api/booking?doctorId=bogus", "", &pat)
	assertHTTPError(t, h.BrowseSlots(c), http.StatusBadRequest)

	body := `{"appointmentId":"` + slot.ID.String() + `","fullName":"Alice","phone":"555"}`
	c, rec = newRequest(e, http.MethodPatch, "/api/booking", body, &pat)
	if err := h.Book(c); err != nil {
		t.Fatalf("book: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"PENDING"`) {
		t.Errorf("expected PENDING appointment, got %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodPatch, "/api/booking", body, &pat)
	assertHTTPError(t, h.Book(c), http.StatusConflict)

	c, _ = newRequest(e, http.MethodPatch, "/api/booking", `{"appointmentId":"`+uuid.NewString()+`","fullName":"Alice","phone":"555"}`, &pat)
	assertHTTPError(t, h.Book(c), http.StatusNotFound)

	c, _ = newRequest(e, http.MethodPatch, "/api/booking", `{"appointmentId":"`+slot.ID.String()+`"}`, &pat)
	assertHTTPError(t, h.Book(c), http.StatusBadRequest)
}

func TestHandler_ListAppointments(t *testing.T) {
	h, e := newTestHandler()
	doc := doctor()
	mustCreate(t, h.svc, doc, "2025-01-10", "09:00")
	mustCreate(t, h.svc, doctor(), "2025-01-10", "10:00")

	c, rec := newRequest(e, http.MethodGet, "/api/appointments", "", &doc)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	var body struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Appointments) != 1 {
		t.Errorf("doctor should only see own slots, got %d", len(body.Appointments))
	}
}

func TestHandler_DeleteSlots(t *testing.T) {
	h, e := newTestHandler()
	doc := doctor()
	a := mustCreate(t, h.svc, doc, "2025-01-10", "09:00")
	mustCreate(t, h.svc, doc, "2025-01-10", "10:00")

	c, _ := newRequest(e, http.MethodDelete, "/api/appointments?appointmentId=nope", "", &doc)
	assertHTTPError(t, h.DeleteSlots(c), http.StatusBadRequest)

	other := doctor()
	c, _ = newRequest(e, http.MethodDelete, "/api/appointments?appointmentId="+a.ID.String(), "", &other)
	assertHTTPError(t, h.DeleteSlots(c), http.StatusNotFound)

	c, rec := newRequest(e, http.MethodDelete, "/api/appointments?appointmentId="+a.ID.String(), "", &doc)
	if err := h.DeleteSlots(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, rec = newRequest(e, http.MethodDelete, "/api/appointments", "", &doc)
	if err := h.DeleteSlots(c); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"deleted":1`) {
		t.Errorf("expected one remaining slot deleted, got %s", rec.Body.String())
	}
}
