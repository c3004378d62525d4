package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("cashier").Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("backend-secret")))
	require.NoError(t, err)
	return string(signed)
}

func testResolver(now time.Time) Resolver {
	return Resolver{
		TokenCookie: "authToken",
		StoreCookie: "storeId",
		RolesCookie: "roles",
		SignInPath:  "/signin",
		Tokens:      TokenValidator{Now: func() time.Time { return now }},
	}
}

func TestResolveFromCookies(t *testing.T) {
	now := time.Now()
	token := signedToken(t, now.Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: token})
	req.AddCookie(&http.Cookie{Name: "storeId", Value: "store-7"})
	req.AddCookie(&http.Cookie{Name: "roles", Value: `%5B%22admin%22%2C%22cashier%22%5D`})

	s, err := testResolver(now).Resolve(req)
	require.NoError(t, err)
	require.Equal(t, token, s.Token)
	require.Equal(t, "store-7", s.StoreID)
	require.Equal(t, []string{"admin", "cashier"}, s.Roles)
	require.True(t, s.HasRole("ADMIN"))
	require.WithinDuration(t, now.Add(time.Hour), s.ExpiresAt, time.Second)
}

func TestResolveBearerHeaderAndOpaqueToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	req.Header.Set("X-Store-ID", "store-1")
	req.AddCookie(&http.Cookie{Name: "roles", Value: "cashier, ,manager"})

	s, err := testResolver(time.Now()).Resolve(req)
	require.NoError(t, err)
	require.Equal(t, "opaque-token", s.Token)
	require.Equal(t, []string{"cashier", "manager"}, s.Roles)
	require.True(t, s.ExpiresAt.IsZero())
}

func TestResolveRejectsExpiredAndMissing(t *testing.T) {
	now := time.Now()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: signedToken(t, now.Add(-time.Minute))})
	req.AddCookie(&http.Cookie{Name: "storeId", Value: "store-7"})
	_, err := testResolver(now).Resolve(req)
	require.ErrorIs(t, err, ErrExpired)

	skewed := testResolver(now)
	skewed.Tokens.ClockSkew = 5 * time.Minute
	_, err = skewed.Resolve(req)
	require.NoError(t, err)

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.AddCookie(&http.Cookie{Name: "authToken", Value: "opaque"})
	_, err = testResolver(now).Resolve(bare)
	require.ErrorIs(t, err, ErrMissing)
}

func TestRequireWritesRedirect(t *testing.T) {
	called := false
	h := testResolver(time.Now()).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/pos/drafts", nil))

	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "SESSION_EXPIRED", body.Error.Code)
	require.Equal(t, "/signin", body.Error.Details["redirect"])
}

func TestMiddlewareAttachesSession(t *testing.T) {
	res := testResolver(time.Now())
	var got Session
	h := res.Middleware(res.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: "opaque"})
	req.AddCookie(&http.Cookie{Name: "storeId", Value: "store-2"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "store-2", got.StoreID)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	serve := func(h http.Handler, roles []string, attach bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if attach {
			req = req.WithContext(With(req.Context(), Session{Token: "t", StoreID: "s1", Roles: roles}))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	gated := RequireRole("cashier", " manager ")
	require.Equal(t, http.StatusNoContent, serve(gated(ok), []string{"Cashier"}, true).Code)
	require.Equal(t, http.StatusNoContent, serve(gated(ok), []string{"MANAGER"}, true).Code)

	rr := serve(gated(ok), []string{"viewer"}, true)
	require.Equal(t, http.StatusForbidden, rr.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, CodeForbidden, body.Error.Code)
	require.Equal(t, http.StatusForbidden, serve(gated(ok), nil, false).Code)

	require.Equal(t, http.StatusNoContent, serve(RequireRole()(ok), nil, true).Code)
}
