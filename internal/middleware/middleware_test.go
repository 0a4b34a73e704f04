package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/cache"
	"github.com/saxon-wu/living/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]*models.User

func (s stubUsers) FindByUUID(_ context.Context, uuid string) (*models.User, error) {
	if u, ok := s[uuid]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewValidator()
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJWTAuth(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	alice := &models.User{ID: 1, UUID: "11111111-1111-1111-1111-111111111111", Username: "alice"}
	users := stubUsers{alice.UUID: alice}

	e := newEcho()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CurrentUser(c).Username)
	}, JWTAuth(tokens, users))
	e.GET("/maybe", func(c echo.Context) error {
		if u := CurrentUser(c); u != nil {
			return c.String(http.StatusOK, u.Username)
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalJWTAuth(tokens, users))

	valid, err := tokens.Sign(alice.UUID, alice.Username)
	require.NoError(t, err)
	ghost, err := tokens.Sign("22222222-2222-2222-2222-222222222222", "ghost")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"valid token", "/me", "Bearer " + valid, http.StatusOK, "alice"},
		{"lowercase scheme", "/me", "bearer " + valid, http.StatusOK, "alice"},
		{"missing header", "/me", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/me", "Basic " + valid, http.StatusUnauthorized, ""},
		{"garbage token", "/me", "Bearer nope", http.StatusUnauthorized, ""},
		{"deleted subject", "/me", "Bearer " + ghost, http.StatusUnauthorized, ""},
		{"optional with token", "/maybe", "Bearer " + valid, http.StatusOK, "alice"},
		{"optional anonymous", "/maybe", "", http.StatusOK, "anonymous"},
		{"optional bad token", "/maybe", "Bearer nope", http.StatusOK, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestErrorHandlerEnvelope(t *testing.T) {
	type input struct {
		Title string `json:"title" validate:"required"`
	}

	e := newEcho()
	e.GET("/conflict", func(c echo.Context) error {
		return apperr.Conflict("tag still has child tags")
	})
	e.GET("/bad", func(c echo.Context) error {
		return apperr.BadRequest("invalid parent", "parent tag does not exist")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("database is on fire")
	})
	e.GET("/invalid", func(c echo.Context) error {
		return c.Validate(&input{})
	})

	tests := []struct {
		path    string
		status  int
		message string
		info    string
		errors  []string
	}{
		{"/conflict", http.StatusConflict, "tag still has child tags", "Conflict", []string{}},
		{"/bad", http.StatusBadRequest, "invalid parent", "BadRequest", []string{"parent tag does not exist"}},
		{"/boom", http.StatusInternalServerError, "internal server error", "InternalServerError", []string{}},
		{"/invalid", http.StatusBadRequest, "validation failed", "BadRequest", []string{"title is required"}},
		{"/missing", http.StatusNotFound, "Not Found", "Not Found", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.status, body.StatusCode)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.info, body.Result.Info)
			assert.Equal(t, tt.errors, body.Result.Errors)
			assert.NotContains(t, rec.Body.String(), "on fire")
		})
	}
}

type brokenStore struct{}

func (brokenStore) Allow(string) (bool, error) { return false, errors.New("redis down") }

func TestRateLimit(t *testing.T) {
	e := newEcho()
	e.Use(RateLimit(cache.NewMemoryWindow(2, time.Minute), nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)

	limited := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, http.StatusTooManyRequests, decodeError(t, limited).StatusCode)

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code, "budgets are per client")
}

func TestRateLimitFailsOpen(t *testing.T) {
	e := newEcho()
	e.Use(RateLimit(brokenStore{}, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsPassThroughWithoutInit(t *testing.T) {
	e := newEcho()
	e.Use(Metrics())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
