package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"

	"github.com/labstack/echo/v4"
)

// UserLoader resolves the token subject to a stored user.
type UserLoader interface {
	FindByUUID(ctx context.Context, uuid string) (*models.User, error)
}

// JWTAuth rejects requests without a valid bearer token for an existing user.
func JWTAuth(tokens *auth.Tokens, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenString, ok := bearerToken(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			principal, err := resolve(c.Request().Context(), tokens, users, tokenString)
			if err != nil {
				return err
			}

			setPrincipal(c, principal)
			return next(c)
		}
	}
}

// OptionalJWTAuth attaches the principal when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalJWTAuth(tokens *auth.Tokens, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return next(c)
			}

			principal, err := resolve(c.Request().Context(), tokens, users, tokenString)
			if err == nil {
				setPrincipal(c, principal)
			}

			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c echo.Context) *models.User {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return nil
	}
	return p.User
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func resolve(ctx context.Context, tokens *auth.Tokens, users UserLoader, tokenString string) (auth.Principal, error) {
	claims, err := tokens.Parse(tokenString)
	if err != nil {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}

	user, err := users.FindByUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "token subject no longer exists")
		}
		logging.Error(ctx).Err(err).Str("user_uuid", claims.ID).Msg("failed to load token subject")
		return auth.Principal{}, err
	}

	return auth.Principal{User: user, Claims: claims}, nil
}

func setPrincipal(c echo.Context, p auth.Principal) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
}
