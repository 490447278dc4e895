package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/agency/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs it with the stack and
// whatever identity the request had acquired. http.ErrAbortHandler is
// re-raised so the server can abort the connection.
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

				rid, _ := c.Get("request_id").(string)
				evt := logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack())
				if tid, ok := c.Get("tenant_id").(string); ok {
					evt = evt.Str("tenant_id", tid)
				}
				if uid := auth.UserIDFromContext(c.Request().Context()); uid != uuid.Nil {
					evt = evt.Str("user_id", uid.String())
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
