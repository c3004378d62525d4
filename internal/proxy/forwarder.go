// Package proxy relays allow-listed /api/{group}/... calls to the backend.
package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/obs"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// DefaultGroups are the backend route groups exposed through the proxy.
var DefaultGroups = []string{
	"userManagement",
	"permissionManagement",
	"storeManagement",
	"clientManagement",
	"inventoryManagement",
	"masterData",
	"billing",
	"auth",
}

// Forwarder relays requests under /api/{group}/* to the same path on the backend.
type Forwarder struct {
	Client  *backend.Client
	groups  map[string]bool
	MaxBody int64
}

// NewForwarder allows the given groups; an empty list allows DefaultGroups.
func NewForwarder(client *backend.Client, groups []string) *Forwarder {
	if len(groups) == 0 {
		groups = DefaultGroups
	}
	allowed := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			allowed[g] = true
		}
	}
	return &Forwarder{Client: client, groups: allowed, MaxBody: 1 << 20}
}

// ServeHTTP forwards the request. 2xx answers are relayed verbatim; other
// statuses become the canonical error body carrying the backend status and
// message; transport failures become a 500.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	action := strings.Trim(chi.URLParam(r, "*"), "/")
	if !f.groups[group] || !withinGroup(group, action) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "route not found", nil)
		return
	}

	var payload any
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body, err := io.ReadAll(io.LimitReader(r.Body, f.MaxBody+1))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "unable to read request body", nil)
			return
		}
		if int64(len(body)) > f.MaxBody {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return
		}
		if len(body) > 0 {
			if !json.Valid(body) {
				common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON payload", nil)
				return
			}
			payload = json.RawMessage(body)
		}
	}

	target := "/" + group + "/" + action
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	var token string
	if sess, ok := session.FromContext(r.Context()); ok {
		token = sess.Token
	}

	resp, err := f.Client.Do(r.Context(), r.Method, target, token, payload)
	if err != nil {
		f.count(group, "error")
		zerolog.Ctx(r.Context()).Error().Err(err).Str("backend_path", group+"/"+action).Msg("proxy_failed")
		common.WriteError(w, backend.AppError(err))
		return
	}
	f.count(group, strconv.Itoa(resp.Status))
	if resp.OK() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		if len(resp.Body) > 0 {
			_, _ = w.Write(resp.Body)
		}
		return
	}
	message := resp.Message()
	if message == "" {
		message = http.StatusText(resp.Status)
	}
	common.JSONError(w, resp.Status, common.CodeUpstreamRejected, message, nil)
}

// withinGroup reports whether action names a path that stays under group once
// decoded and cleaned. Dot segments are refused outright.
func withinGroup(group, action string) bool {
	if action == "" {
		return false
	}
	decoded, err := url.PathUnescape(action)
	if err != nil || strings.Contains(decoded, "\\") {
		return false
	}
	for _, seg := range strings.Split(decoded, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	prefix := "/" + group + "/"
	return strings.HasPrefix(path.Clean(prefix+decoded), prefix)
}

func (f *Forwarder) count(group, status string) {
	if obs.ProxyRequestTotal != nil {
		obs.ProxyRequestTotal.WithLabelValues(group, status).Inc()
	}
}
