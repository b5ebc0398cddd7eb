// Package auth resolves callers to user ids and throttles them.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/openshift"
)

var ErrMissingToken = errors.New("missing bearer token")

// Authentication modes
const (
	ModeTokenReview = "tokenreview"
	ModeTrust       = "trust"
)

const userKey = "user_id"

// Authenticator maps a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Reviewer is the part of openshift.TokenReviewer the authenticator uses.
type Reviewer interface {
	Review(ctx context.Context, token string) (openshift.Identity, error)
}

// TokenReview authenticates against the cluster's TokenReview API.
type TokenReview struct {
	reviewer Reviewer
}

func NewTokenReview(r Reviewer) *TokenReview {
	return &TokenReview{reviewer: r}
}

func (a *TokenReview) Authenticate(ctx context.Context, token string) (string, error) {
	id, err := a.reviewer.Review(ctx, token)
	if err != nil {
		return "", err
	}
	return id.Username, nil
}

// Trust accepts any token and derives a stable user id from its hash. It is
// meant for local development only.
type Trust struct{}

func (Trust) Authenticate(_ context.Context, token string) (string, error) {
	sum := sha256.Sum256([]byte(token))
	return "user-" + hex.EncodeToString(sum[:8]), nil
}

// New returns the authenticator for mode.
func New(mode string, r Reviewer) (Authenticator, error) {
	switch mode {
	case ModeTokenReview:
		if r == nil {
			return nil, errors.New("tokenreview mode requires a cluster connection")
		}
		return NewTokenReview(r), nil
	case ModeTrust:
		return Trust{}, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", mode)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// Middleware authenticates every request and stores the user id on the
// context.
func Middleware(a Authenticator, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required").SetInternal(err)
			}
			user, err := a.Authenticate(c.Request().Context(), token)
			if err != nil {
				logger.Info("authentication failed", zap.String("path", c.Path()), zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token").SetInternal(err)
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// UserID returns the authenticated user of the request, or "".
func UserID(c echo.Context) string {
	user, _ := c.Get(userKey).(string)
	return user
}
