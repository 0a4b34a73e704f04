package auth

import (
	"context"

	"github.com/saxon-wu/living/internal/models"
)

type principalKey struct{}

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	User   *models.User
	Claims *Claims
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.User != nil
}
