package invoice

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Handler exposes invoice submission and read-only invoice views.
type Handler struct {
	Svc        *Service
	SignInPath string
	StoreName  string
}

// Submit handles POST /drafts/{draftID}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Submit(r.Context(), sess, chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": NewDisplay(rec)})
}

// Get handles GET /invoices/{invoiceID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	d, err := h.Svc.View(r.Context(), sess, chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// Receipt handles GET /invoices/{invoiceID}/receipt.pdf.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	pdf, name, err := h.Svc.Receipt(r.Context(), sess, chi.URLParam(r, "invoiceID"), h.StoreName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+safeFilename(name)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		common.WriteError(w, session.ExpiredError(h.SignInPath))
	}
	return sess, ok
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		common.WriteError(w, session.ExpiredError(h.SignInPath))
		return
	}
	common.WriteError(w, backend.AppError(cart.AppError(err)))
}

func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
