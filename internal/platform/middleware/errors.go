package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

const timeoutMessage = "request processing exceeded the allowed time limit"

// ErrorHandler renders errors as ErrorBody. Messages of 5xx errors are
// replaced with a generic text; the original error is logged by Logger.
// An expired request deadline renders as 504.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok && code < 500 {
				msg = m
			} else if code < 500 {
				msg = http.StatusText(code)
			}
		}
		switch {
		case he == nil && errors.Is(err, context.DeadlineExceeded):
			code = http.StatusGatewayTimeout
			msg = timeoutMessage
		case code >= 500:
			msg = "internal server error"
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, ErrorBody{Error: msg, RequestID: requestID(c)})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
