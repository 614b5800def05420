package middleware

import (
	"github.com/labstack/echo/v4"

	"houseshower/pkg/errors"
	"houseshower/pkg/response"
)

// AdminOnly lets through sessions that were granted the admin capability at
// login. The product API remains the real authority.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return response.Error(c, errors.Unauthorized("Please log in first", nil))
		}
		if !user.IsAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}
		return next(c)
	}
}
