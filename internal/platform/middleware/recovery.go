package middleware

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxStackBytes = 8 << 10

// Recovery turns a handler panic into a 500 and logs the panic value with
// the goroutine stack and the caller, when known.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				buf := make([]byte, maxStackBytes)
				buf = buf[:runtime.Stack(buf, false)]

				ev := logger.Error().
					Interface("panic", r).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Bytes("stack", buf)
				if rid, ok := c.Get("request_id").(string); ok {
					ev = ev.Str("request_id", rid)
				}
				if uid, ok := c.Get("user_id").(string); ok {
					ev = ev.Str("user_id", uid)
				}
				ev.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
