package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on each request context. The handler runs
// on the request goroutine, so nothing touches the echo.Context after the
// middleware returns; handlers must honour the context to stop early, and
// the upstream client does. If the deadline has passed when the handler
// returns and nothing was written yet, the response is a 504 whatever the
// handler returned.
//
// The platform client timeout is kept below this deadline (see
// config.Validate) so a slow platform normally surfaces as a 502 first.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return gatewayTimeout(c, err)
			}
			return err
		}
	}
}

func gatewayTimeout(c echo.Context, err error) error {
	if c.Response().Committed {
		return err
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"message": "request processing exceeded the allowed time limit",
	})
}
