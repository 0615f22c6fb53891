package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"medbook/internal/auth"
)

const identityContextKey = "medbook.identity"

// Principal authenticates the bearer token and resolves its subject through
// the credential directory. Token issuance and password checking happen
// elsewhere; this middleware only trusts the signature.
func Principal(secret []byte, dir auth.Directory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(strings.TrimSpace(header[len(prefix):]), &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			id, err := dir.Lookup(c.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, auth.ErrUnknownIdentity) {
					return echo.NewHTTPError(http.StatusUnauthorized, "unknown identity")
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "identity lookup failed")
			}

			c.Set(identityContextKey, id)
			return next(c)
		}
	}
}

func actorFrom(c echo.Context) (auth.Identity, bool) {
	id, ok := c.Get(identityContextKey).(auth.Identity)
	return id, ok
}
