package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		method string
		path   string
		public bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/health/db", true},
		{http.MethodPost, "/api/auth/register", true},
		{http.MethodPost, "/api/auth/login", true},
		{http.MethodGet, "/api/blog", true},
		{http.MethodGet, "/api/blog/:id", true},
		{http.MethodGet, "/api/ws", true},
		{http.MethodGet, "/uploads/*", true},
		{http.MethodPost, "/api/ai", true},
		{http.MethodPost, "/api/blog", false},
		{http.MethodDelete, "/api/blog/:id", false},
		{http.MethodGet, "/api/auth/me", false},
		{http.MethodGet, "/api/appointments", false},
		{http.MethodPatch, "/api/booking", false},
		{http.MethodGet, "/api/notifications", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(tt.method, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetPath(tt.path)

			if got := AuthSkipper(c); got != tt.public {
				t.Errorf("AuthSkipper(%s %s) = %v, want %v", tt.method, tt.path, got, tt.public)
			}
			if got := IsPublicRoute(tt.method, tt.path); got != tt.public {
				t.Errorf("IsPublicRoute(%s %s) = %v, want %v", tt.method, tt.path, got, tt.public)
			}
		})
	}
}
