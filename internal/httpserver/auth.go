package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// tokenOK accepts ?token=, "Authorization: Bearer" or X-Auth-Token. An empty
// expected token disables the check.
func tokenOK(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	if r == nil {
		return false
	}
	candidates := []string{r.URL.Query().Get("token"), r.Header.Get("X-Auth-Token")}
	if ah := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		candidates = append(candidates, strings.TrimSpace(ah[len("Bearer "):]))
	}
	for _, c := range candidates {
		if c != "" && subtle.ConstantTimeCompare([]byte(c), []byte(expected)) == 1 {
			return true
		}
	}
	return false
}

func requireToken(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tokenOK(c.Request(), expected) {
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			}
			return next(c)
		}
	}
}
