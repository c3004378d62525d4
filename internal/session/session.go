// Package session resolves the caller's backend credentials and store scope
// from cookies or headers into an explicit value carried on the request context.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/pos-billing-gateway/internal/common"
)

// DefaultSignInPath is where clients are sent when the session is unusable.
const DefaultSignInPath = "/signin"

var (
	// ErrMissing reports that the token or store id is absent.
	ErrMissing = errors.New("session: token or store id missing")
	// ErrExpired reports a token whose exp claim has passed.
	ErrExpired = errors.New("session: token expired")
)

// Session is the resolved identity used for backend calls.
type Session struct {
	Token     string
	StoreID   string
	Roles     []string
	ExpiresAt time.Time
}

// HasRole reports whether the session carries the role, ignoring case.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// With stores the session on the context.
func With(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by With.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// ExpiredError is the canonical 401 telling the client to sign in again.
func ExpiredError(signInPath string) *common.AppError {
	if strings.TrimSpace(signInPath) == "" {
		signInPath = DefaultSignInPath
	}
	return common.NewAppError(common.CodeSessionExpired, "session expired, please sign in again", http.StatusUnauthorized, ErrExpired).
		WithDetails(map[string]any{"redirect": signInPath})
}
