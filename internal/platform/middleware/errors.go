package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ErrorBody is the JSON envelope written for every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorHandler renders errors as {"success":false,"message":...}. Domain
// errors from apperr map to their status; anything unrecognised becomes a
// 500 whose cause is logged but never sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolve(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		body := ErrorBody{Success: false, Message: msg}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func resolve(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code == apperr.Status(he.Internal) {
			return he.Code, apperr.Message(he.Internal)
		}
		if he.Code >= http.StatusInternalServerError && he.Code != http.StatusServiceUnavailable {
			return he.Code, "internal server error"
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	return apperr.Status(err), apperr.Message(err)
}
