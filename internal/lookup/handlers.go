package lookup

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Handler exposes catalog search and candidate selection for a draft.
type Handler struct {
	Svc        *Service
	SignInPath string
}

type searchRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type selectRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// SearchByName handles POST /drafts/{draftID}/search/name.
func (h *Handler) SearchByName(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.SearchByName(r.Context(), sess, chi.URLParam(r, "draftID"), req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

// SearchByCode handles POST /drafts/{draftID}/search/code.
func (h *Handler) SearchByCode(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.SearchByCode(r.Context(), sess, chi.URLParam(r, "draftID"), req.Field, req.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

// Select handles POST /drafts/{draftID}/lines.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		common.WriteError(w, session.ExpiredError(h.SignInPath))
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewAppError(common.CodeBadRequest, "invalid JSON payload", http.StatusBadRequest, err))
		return
	}
	d, err := h.Svc.Select(r.Context(), sess, chi.URLParam(r, "draftID"), req.ItemID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart.NewView(d)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (session.Session, searchRequest, bool) {
	var req searchRequest
	sess, ok := session.FromContext(r.Context())
	if !ok {
		common.WriteError(w, session.ExpiredError(h.SignInPath))
		return sess, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewAppError(common.CodeBadRequest, "invalid JSON payload", http.StatusBadRequest, err))
		return sess, req, false
	}
	return sess, req, true
}

func (h *Handler) writeResult(w http.ResponseWriter, res Result) {
	common.JSON(w, http.StatusOK, map[string]any{
		"data": cart.NewView(res.Draft),
		"lookup": map[string]any{
			"outcome": res.Outcome,
			"matches": res.Matches,
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		common.WriteError(w, session.ExpiredError(h.SignInPath))
	case errors.Is(err, ErrNoCandidate):
		common.WriteError(w, common.NewAppError(common.CodeNotFound, "item is not among the search results", http.StatusNotFound, err))
	default:
		common.WriteError(w, backend.AppError(cart.AppError(err)))
	}
}
