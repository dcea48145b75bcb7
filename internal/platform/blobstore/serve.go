package blobstore

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ServePrefix is the route under which the in-memory store serves uploads.
const ServePrefix = "/uploads"

// RegisterRoutes serves stored images at GET /uploads/*. It only exists for
// the in-memory backend; the cloud backends return absolute CDN URLs.
func (s *InMemoryStore) RegisterRoutes(e *echo.Echo) {
	e.GET(ServePrefix+"/*", s.serve)
}

func (s *InMemoryStore) serve(c echo.Context) error {
	name := strings.TrimPrefix(c.Param("*"), "/")
	img, hash, ok := s.Get(s.baseURL + name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}

	etag := `"` + hash + `"`
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}
