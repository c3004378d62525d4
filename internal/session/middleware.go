package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/pos-billing-gateway/internal/common"
)

// Resolver reads session values from cookies, falling back to headers for
// non-browser clients.
type Resolver struct {
	TokenCookie string
	StoreCookie string
	RolesCookie string
	SignInPath  string
	Tokens      TokenValidator
}

// Resolve builds a Session from the request.
func (res Resolver) Resolve(r *http.Request) (Session, error) {
	token := cookieValue(r, res.TokenCookie)
	if token == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}
	storeID := cookieValue(r, res.StoreCookie)
	if storeID == "" {
		storeID = strings.TrimSpace(r.Header.Get("X-Store-ID"))
	}
	if token == "" || storeID == "" {
		return Session{}, ErrMissing
	}
	exp, err := res.Tokens.Expiry(token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		StoreID:   storeID,
		Roles:     parseRoles(cookieValue(r, res.RolesCookie)),
		ExpiresAt: exp,
	}, nil
}

// Middleware attaches the session when one resolves and otherwise passes the request through.
func (res Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := res.Resolve(r); err == nil {
			r = r.WithContext(With(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a usable session.
func (res Resolver) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		s, err := res.Resolve(r)
		if err != nil {
			common.WriteError(w, ExpiredError(res.SignInPath))
			return
		}
		next.ServeHTTP(w, r.WithContext(With(r.Context(), s)))
	})
}

// CodeForbidden is returned when the session lacks every allowed role.
const CodeForbidden = "FORBIDDEN"

// RequireRole admits sessions carrying any of roles. With no roles every
// session passes. It must run after Require.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roles = compact(roles)
	return func(next http.Handler) http.Handler {
		if len(roles) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if ok {
				for _, role := range roles {
					if s.HasRole(role) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			common.JSONError(w, http.StatusForbidden, CodeForbidden, "forbidden", nil)
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	value := cookie.Value
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	return strings.TrimSpace(value)
}

// parseRoles accepts a JSON array or a comma separated list.
func parseRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	var roles []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &roles); err == nil {
			return compact(roles)
		}
	}
	return compact(strings.Split(raw, ","))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
