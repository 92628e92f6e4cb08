package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petfolio/petcare-auth/internal/core/domain"
)

// ctxUser extracts the user resolved by the Auth middleware. Its absence
// means the route was wired without the middleware; fail closed.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get("user").(*domain.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return user, nil
}
