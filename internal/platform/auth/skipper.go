package auth

import (
	"github.com/labstack/echo/v4"
)

// ActivatePath is the public invitation activation route.
const ActivatePath = "/api/v1/invitations/activate"

// publicPaths bypass authentication and tenant resolution.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
	ActivatePath: true,
}

// AuthSkipper returns true for requests whose route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
