package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// multipartOverhead is allowed on top of the upload limit for form fields
// and part headers.
const multipartOverhead = 64 << 10

// BodyLimit caps request body size. JSON endpoints get defaultLimit and
// multipart requests get uploadLimit plus a small allowance for the other
// form fields.
//
// Limits are human-readable strings: "1M" for 1 megabyte, "512K" and so on.
// A bare number is treated as bytes.
func BodyLimit(defaultLimit string, uploadLimit int64) echo.MiddlewareFunc {
	defaultBytes := parseLimit(defaultLimit)
	uploadBytes := uploadLimit + multipartOverhead

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := defaultBytes
			if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				limit = uploadBytes
			}

			if req.ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit))
			}

			// Enforce the limit even when Content-Length is missing or wrong.
			req.Body = &cappedBody{ReadCloser: req.Body, remaining: limit}
			return next(c)
		}
	}
}

// cappedBody fails the read that crosses the limit with a 413 so that
// binders surface it unchanged.
type cappedBody struct {
	io.ReadCloser
	remaining int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, errBodyTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return 0, errBodyTooLarge
	}
	return n, err
}

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

var sizeSuffixes = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30}, {"G", 30},
	{"MB", 20}, {"M", 20},
	{"KB", 10}, {"K", 10},
}

// parseLimit turns "1M", "512K", "10GB" or a bare byte count into bytes.
// Anything unparseable falls back to 1 MB.
func parseLimit(s string) int64 {
	const fallback = 1 << 20
	s = strings.ToUpper(strings.TrimSpace(s))
	var shift uint
	for _, sz := range sizeSuffixes {
		if strings.HasSuffix(s, sz.suffix) {
			s, shift = strings.TrimSuffix(s, sz.suffix), sz.shift
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n << shift
}
