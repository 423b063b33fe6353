// Package account resolves the e-mail of the signed in user. Sign-in itself
// happens elsewhere; this package only hands the resolved identifier on.
package account

import (
	"context"
	"strings"

	"github.com/lomoval/plannr/internal/errs"
)

type Resolver interface {
	Email(ctx context.Context) (string, error)
}

// Static always resolves to the same address.
type Static string

func (s Static) Email(_ context.Context) (string, error) {
	email := strings.TrimSpace(string(s))
	if email == "" {
		return "", errs.ErrNoAccount
	}
	return email, nil
}

type ctxKey struct{}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(email))
}

// Context resolves the address stored with WithEmail and falls back to
// Fallback when there is none.
type Context struct {
	Fallback Resolver
}

func (c Context) Email(ctx context.Context) (string, error) {
	if email, ok := ctx.Value(ctxKey{}).(string); ok && email != "" {
		return email, nil
	}
	if c.Fallback == nil {
		return "", errs.ErrNoAccount
	}
	return c.Fallback.Email(ctx)
}
