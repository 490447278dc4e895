package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout sets a deadline on each request context and runs the
// handler on the calling goroutine. Handlers observe the deadline through
// ctx; an error wrapping context.DeadlineExceeded is rendered as 504 by
// ErrorHandler. A handler that ignores ctx keeps the response it writes.
func RequestTimeout(timeout time.Duration, skipper echomw.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || skipper(c) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil && !c.Response().Committed && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
	}
}
