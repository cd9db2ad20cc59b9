package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvkumar/shopkart/pkg/tokens"
)

type Middleware struct {
	JWTSecret []byte
}

func New(secret []byte) *Middleware {
	return &Middleware{JWTSecret: secret}
}

type validatorFunc func(claims *tokens.AccessClaims) error

func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *Middleware) requireAuthWithValidator(next echo.HandlerFunc, validator validatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil || claims == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				return err
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set("user_id", claims.Subject)
	c.Set("role", claims.Role)
}

// UserID pulls the authenticated user out of the echo context.
func UserID(c echo.Context) (uuid.UUID, bool) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func IsAdmin(c echo.Context) bool {
	role, ok := c.Get("role").(string)
	return ok && role == "admin"
}
