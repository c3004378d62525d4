// Package lookup turns debounced catalog searches into draft mutations.
package lookup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/obs"
	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Search modes, also used as metric labels.
const (
	ModeName    = "name"
	ModeBarcode = "barcode"
	ModeSKU     = "sku"
)

// Outcome describes what a search did to the draft.
type Outcome string

const (
	OutcomeCandidates Outcome = "candidates"
	OutcomeCleared    Outcome = "cleared"
	OutcomeAdded      Outcome = "added"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeAmbiguous  Outcome = "ambiguous"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeStale      Outcome = "stale"
)

var errStale = errors.New("lookup: response is stale")

// Catalog searches the backend inventory.
type Catalog interface {
	SearchItems(ctx context.Context, token string, q backend.ItemQuery) ([]backend.CatalogItem, error)
}

// Windows are the debounce delays per search mode.
type Windows struct {
	Name    time.Duration
	Barcode time.Duration
	SKU     time.Duration
}

// DefaultWindows mirror the counter UI's typing cadence.
var DefaultWindows = Windows{Name: 100 * time.Millisecond, Barcode: 300 * time.Millisecond, SKU: 700 * time.Millisecond}

// Result is the draft after a search together with what happened.
type Result struct {
	Outcome Outcome
	Matches int
	Draft   cart.Draft
}

// Service runs catalog lookups against a draft.
type Service struct {
	Catalog  Catalog
	Drafts   *cart.Service
	Debounce *Debouncer
	Windows  Windows
}

func debounceKey(draftID, mode string) string {
	return draftID + ":" + mode
}

// SearchByName records the typed name and stores the matching candidates on
// the draft. An empty value clears the candidates without a backend call.
func (s *Service) SearchByName(ctx context.Context, sess session.Session, draftID, value string) (Result, error) {
	value = strings.TrimSpace(value)
	key := debounceKey(draftID, ModeName)
	d, err := s.Drafts.Mutate(ctx, sess.StoreID, draftID, "input", func(d *cart.Draft) error {
		d.Inputs.Name = value
		if value == "" {
			d.Candidates = nil
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if value == "" {
		s.Debounce.Next(key)
		return Result{Outcome: OutcomeCleared, Draft: d}, nil
	}

	ticket, err := s.Debounce.Wait(ctx, key, s.Windows.Name)
	if errors.Is(err, ErrSuperseded) {
		obs.CountLookup(ModeName, string(OutcomeSuperseded))
		return Result{Outcome: OutcomeSuperseded, Draft: d}, nil
	}
	if err != nil {
		return Result{}, err
	}

	items, err := s.Catalog.SearchItems(ctx, sess.Token, backend.ItemQuery{StoreID: sess.StoreID, ItemName: value})
	if err != nil {
		obs.CountLookup(ModeName, "error")
		return Result{}, err
	}
	products := make([]cart.Product, 0, len(items))
	for _, it := range items {
		products = append(products, toProduct(it))
	}

	d, err = s.Drafts.Mutate(ctx, sess.StoreID, draftID, "candidates", func(d *cart.Draft) error {
		if !s.Debounce.Current(ticket) {
			return errStale
		}
		d.Candidates = products
		return nil
	})
	if errors.Is(err, errStale) {
		return s.stale(ctx, sess, draftID, ModeName, len(items))
	}
	if err != nil {
		return Result{}, err
	}
	obs.CountLookup(ModeName, string(OutcomeCandidates))
	return Result{Outcome: OutcomeCandidates, Matches: len(items), Draft: d}, nil
}

// SearchByCode looks up a barcode or SKU. Exactly one match is added to the
// draft and all search inputs are cleared; any other count leaves the draft as is.
func (s *Service) SearchByCode(ctx context.Context, sess session.Session, draftID, mode, value string) (Result, error) {
	var window time.Duration
	switch mode {
	case ModeBarcode:
		window = s.Windows.Barcode
	case ModeSKU:
		window = s.Windows.SKU
	default:
		return Result{}, common.NewAppError(common.CodeValidation, "field must be barcode or sku", http.StatusUnprocessableEntity, nil).
			WithDetails(map[string]string{"field": "must be one of barcode, sku"})
	}
	value = strings.TrimSpace(value)
	key := debounceKey(draftID, mode)
	d, err := s.Drafts.Mutate(ctx, sess.StoreID, draftID, "input", func(d *cart.Draft) error {
		if mode == ModeBarcode {
			d.Inputs.Barcode = value
		} else {
			d.Inputs.SKU = value
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if value == "" {
		s.Debounce.Next(key)
		return Result{Outcome: OutcomeCleared, Draft: d}, nil
	}

	ticket, err := s.Debounce.Wait(ctx, key, window)
	if errors.Is(err, ErrSuperseded) {
		obs.CountLookup(mode, string(OutcomeSuperseded))
		return Result{Outcome: OutcomeSuperseded, Draft: d}, nil
	}
	if err != nil {
		return Result{}, err
	}

	q := backend.ItemQuery{StoreID: sess.StoreID}
	if mode == ModeBarcode {
		q.Barcode = value
	} else {
		q.SKUCode = value
	}
	items, err := s.Catalog.SearchItems(ctx, sess.Token, q)
	if err != nil {
		obs.CountLookup(mode, "error")
		return Result{}, err
	}
	if !s.Debounce.Current(ticket) {
		return s.stale(ctx, sess, draftID, mode, len(items))
	}
	if len(items) != 1 {
		outcome := OutcomeNoMatch
		if len(items) > 1 {
			outcome = OutcomeAmbiguous
		}
		obs.CountLookup(mode, string(outcome))
		return Result{Outcome: outcome, Matches: len(items), Draft: d}, nil
	}

	match := toProduct(items[0])
	d, err = s.Drafts.Mutate(ctx, sess.StoreID, draftID, "add", func(d *cart.Draft) error {
		if !s.Debounce.Current(ticket) {
			return errStale
		}
		d.AddOrMerge(match, 1)
		d.Inputs = cart.Inputs{}
		d.Candidates = nil
		return nil
	})
	if errors.Is(err, errStale) {
		return s.stale(ctx, sess, draftID, mode, 1)
	}
	if err != nil {
		return Result{}, err
	}
	// a pending name search must not repopulate the cleared candidates
	s.Debounce.Next(debounceKey(draftID, ModeName))
	obs.CountLookup(mode, string(OutcomeAdded))
	zerolog.Ctx(ctx).Debug().Str("draft_id", draftID).Str("item_id", match.ID).Str("mode", mode).Msg("lookup_item_added")
	return Result{Outcome: OutcomeAdded, Matches: 1, Draft: d}, nil
}

// ErrNoCandidate is returned when Select names an item that is not among the
// draft's current name-search candidates.
var ErrNoCandidate = errors.New("lookup: item is not a current candidate")

// Select adds a stored name-search candidate and clears the name input and candidates.
func (s *Service) Select(ctx context.Context, sess session.Session, draftID, itemID string, quantity int) (cart.Draft, error) {
	d, err := s.Drafts.Mutate(ctx, sess.StoreID, draftID, "add", func(d *cart.Draft) error {
		for _, c := range d.Candidates {
			if c.ID == itemID {
				d.AddOrMerge(c, quantity)
				d.Inputs.Name = ""
				d.Candidates = nil
				return nil
			}
		}
		return ErrNoCandidate
	})
	if err != nil {
		return cart.Draft{}, err
	}
	s.Debounce.Next(debounceKey(draftID, ModeName))
	return d, nil
}

func (s *Service) stale(ctx context.Context, sess session.Session, draftID, mode string, matches int) (Result, error) {
	obs.CountLookup(mode, string(OutcomeStale))
	d, err := s.Drafts.Get(ctx, sess.StoreID, draftID)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeStale, Matches: matches, Draft: d}, nil
}

func toProduct(it backend.CatalogItem) cart.Product {
	return cart.Product{
		ID:   it.ID.String(),
		Name: it.ItemName,
		SKU:  it.SKUCode,
		Unit: pricing.Unit{
			BasePrice:  it.BasePrice,
			Tax:        it.TaxAmount,
			Discount:   it.DiscountAmount,
			FinalPrice: it.FinalPrice,
		},
	}
}
