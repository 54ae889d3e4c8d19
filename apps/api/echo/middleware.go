package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware lets through the authenticated users having one of roles.
// It must run after the jwt middleware.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.HasRole(roles...) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
