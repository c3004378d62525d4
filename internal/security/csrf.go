package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-billing-gateway/internal/common"
)

// CodeCSRF is returned when the double-submit check fails.
const CodeCSRF = "CSRF_REJECTED"

const (
	defaultCSRFHeader = "X-CSRF-Token"
	defaultCSRFCookie = "csrfToken"
)

// CSRF protects the cookie-authenticated POS endpoints with a double-submit token.
type CSRF struct {
	Header string
	Cookie string
	Secure bool
}

func (c CSRF) names() (string, string) {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = defaultCSRFHeader
	}
	cookie := strings.TrimSpace(c.Cookie)
	if cookie == "" {
		cookie = defaultCSRFCookie
	}
	return header, cookie
}

// Middleware requires unsafe requests to echo the CSRF cookie in a header.
// Requests authenticated with a bearer token carry no ambient credentials and pass.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName, cookieName := c.names()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			reject(w, "missing csrf token")
			return
		}
		cookie, err := r.Cookie(cookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			reject(w, "missing csrf cookie")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			reject(w, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Issue sets a fresh CSRF cookie and returns the token so the front end can
// echo it in the header.
func (c CSRF) Issue(w http.ResponseWriter, r *http.Request) {
	_, cookieName := c.names()
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	common.JSON(w, http.StatusOK, map[string]string{"token": token})
}

func reject(w http.ResponseWriter, message string) {
	common.JSONError(w, http.StatusForbidden, CodeCSRF, message, nil)
}
