package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/lock"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Handler exposes draft operations over HTTP. Routes expect a session on the context.
type Handler struct {
	Svc        *Service
	SignInPath string
}

// Routes mounts the draft endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/{draftID}", h.Get)
	r.Patch("/{draftID}", h.Patch)
	r.Delete("/{draftID}", h.Discard)
	r.Post("/{draftID}/lines/{itemID}/increment", h.Increment)
	r.Post("/{draftID}/lines/{itemID}/decrement", h.Decrement)
	r.Delete("/{draftID}/lines/{itemID}", h.Remove)
}

// Open starts an empty draft for the session's store.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	d, err := h.Svc.Open(r.Context(), sess.StoreID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": NewView(d)})
}

// Get returns the draft with recomputed totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	d, err := h.Svc.Get(r.Context(), sess.StoreID, chi.URLParam(r, "draftID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewView(d)})
}

// Patch edits invoice-level fields.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var fields Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		common.WriteError(w, common.NewAppError(common.CodeBadRequest, "invalid JSON payload", http.StatusBadRequest, err))
		return
	}
	d, err := h.Svc.UpdateFields(r.Context(), sess.StoreID, chi.URLParam(r, "draftID"), fields)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewView(d)})
}

// Discard deletes the draft.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Discard(r.Context(), sess.StoreID, chi.URLParam(r, "draftID")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Increment adds one unit to a line.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.Svc.Increment)
}

// Decrement removes one unit from a line.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.Svc.Decrement)
}

// Remove deletes a line.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.lineOp(w, r, h.Svc.Remove)
}

func (h *Handler) lineOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string, string) (Draft, bool, error)) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	d, changed, err := op(r.Context(), sess.StoreID, chi.URLParam(r, "draftID"), chi.URLParam(r, "itemID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": NewView(d), "changed": changed})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		common.WriteError(w, session.ExpiredError(h.SignInPath))
	}
	return sess, ok
}

// AppError maps draft store failures onto response errors. Other errors pass through.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "draft not found", http.StatusNotFound, err)
	case errors.Is(err, lock.ErrNotAcquired):
		return common.NewAppError("DRAFT_BUSY", "draft is being updated, try again", http.StatusConflict, err)
	}
	return err
}

// WriteError renders draft errors in the canonical envelope.
func WriteError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
