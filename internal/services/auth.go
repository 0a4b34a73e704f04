package services

import (
	"context"
	"errors"
	"strings"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = apperr.Unauthorized("invalid username or password")

type AuthService struct {
	db           *gorm.DB
	tokens       *auth.Tokens
	baseURL      string
	registration metric.Int64Counter
	logins       metric.Int64Counter
}

func NewAuthService(db *gorm.DB, tokens *auth.Tokens, baseURL string) *AuthService {
	return &AuthService{
		db:           db,
		tokens:       tokens,
		baseURL:      baseURL,
		registration: newCounter("auth.registration.total", "Total number of user registrations"),
		logins:       newCounter("auth.login.attempts", "Total number of login attempts"),
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	AccessToken string              `json:"accessToken"`
	TokenType   string              `json:"tokenType"`
	ExpiresIn   int64               `json:"expiresIn"`
	User        models.UserResponse `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.UserResponse, error) {
	ctx, span := tracer.Start(ctx, "user.register")
	defer span.End()

	username := strings.TrimSpace(input.Username)
	span.SetAttributes(attribute.String("user.username", username))

	if username == "" {
		return models.UserResponse{}, apperr.BadRequest("invalid username", "username must not be empty")
	}
	if len(input.Password) < 6 || len(input.Password) > 72 {
		return models.UserResponse{}, apperr.BadRequest("invalid password", "password must be between 6 and 72 bytes")
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Select("id").Where("username = ?", username).First(&existing).Error; err == nil {
		span.SetAttributes(attribute.Bool("user.exists", true))
		return models.UserResponse{}, apperr.Conflict("username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserResponse{}, apperr.Internal(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.UserResponse{}, apperr.Internal(err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	if err := s.db.WithContext(ctx).Omit("Avatar").Create(&user).Error; err != nil {
		return models.UserResponse{}, conflictOr(err, "username already taken")
	}

	if s.registration != nil {
		s.registration.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", true),
		))
	}

	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))

	logging.Info(ctx).
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Msg("user registered successfully")

	return user.ToResponse(s.baseURL), nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "user.login")
	defer span.End()

	span.SetAttributes(attribute.String("user.username", input.Username))

	var user models.User
	err := s.db.WithContext(ctx).Preload("Avatar").Where("username = ?", strings.TrimSpace(input.Username)).First(&user).Error
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	}
	if err != nil {
		s.countLogin(ctx, false)
		span.SetAttributes(attribute.Bool("login.success", false))
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, apperr.Internal(err)
	}

	token, err := s.tokens.Sign(user.UUID, user.Username)
	if err != nil {
		return LoginResult{}, apperr.Internal(err)
	}

	s.countLogin(ctx, true)
	span.SetAttributes(
		attribute.Int64("user.id", int64(user.ID)),
		attribute.Bool("login.success", true),
	)

	logging.Info(ctx).
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Msg("user logged in successfully")

	return LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.ExpiresIn().Seconds()),
		User:        user.ToResponse(s.baseURL),
	}, nil
}

func (s *AuthService) countLogin(ctx context.Context, success bool) {
	if s.logins != nil {
		s.logins.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	}
}
