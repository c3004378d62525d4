package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator inspects bearer tokens locally. Signatures are not verified:
// the backend stays the authority, this only catches tokens that are already stale.
type TokenValidator struct {
	ClockSkew time.Duration
	Now       func() time.Time
}

// Expiry returns the token's expiration time. Opaque (non-JWT) tokens yield a
// zero time and no error. Expired tokens return ErrExpired.
func (v TokenValidator) Expiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrMissing
	}
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, nil
	}
	tok, err := jwt.ParseString(raw, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return time.Time{}, nil
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(now)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return tok.Expiration(), fmt.Errorf("%w: %v", ErrExpired, err)
	}
	return tok.Expiration(), nil
}
