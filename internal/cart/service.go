package cart

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-billing-gateway/internal/obs"
)

// Fields are the invoice-level values an operator can edit. Nil leaves a field unchanged.
type Fields struct {
	CustomerName      *string `json:"customerName"`
	CustomerContactNo *string `json:"customerContactNo"`
	CouponCode        *string `json:"couponCode"`
	DiscountOverTotal *string `json:"discountOverTotal"`
	TaxOverTotal      *string `json:"taxOverTotal"`
	DeliveryStatus    *string `json:"deliveryStatus"`
	PaymentStatus     *string `json:"paymentStatus"`
}

func (f Fields) apply(d *Draft) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&d.CustomerName, f.CustomerName)
	set(&d.CustomerContactNo, f.CustomerContactNo)
	set(&d.CouponCode, f.CouponCode)
	set(&d.DiscountOverTotal, f.DiscountOverTotal)
	set(&d.TaxOverTotal, f.TaxOverTotal)
	set(&d.DeliveryStatus, f.DeliveryStatus)
	set(&d.PaymentStatus, f.PaymentStatus)
}

// Service scopes draft access to the owning store.
type Service struct {
	Store Store
	Now   func() time.Time
}

// NewService constructs a Service over store.
func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Open creates an empty draft for storeID.
func (s *Service) Open(ctx context.Context, storeID string) (Draft, error) {
	now := s.now()
	d := Draft{ID: uuid.NewString(), StoreID: storeID, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.Create(ctx, d); err != nil {
		return Draft{}, err
	}
	obs.CountMutation("open")
	return d, nil
}

// Get returns a draft owned by storeID.
func (s *Service) Get(ctx context.Context, storeID, id string) (Draft, error) {
	d, err := s.Store.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if d.StoreID != storeID {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

// Mutate applies fn to a draft owned by storeID. The draft is unchanged when fn fails.
func (s *Service) Mutate(ctx context.Context, storeID, id, op string, fn func(*Draft) error) (Draft, error) {
	d, err := s.Store.Update(ctx, id, func(d *Draft) error {
		if d.StoreID != storeID {
			return ErrNotFound
		}
		return fn(d)
	})
	if err != nil {
		return Draft{}, err
	}
	obs.CountMutation(op)
	return d, nil
}

// Increment adds one unit of itemID. changed is false for an unknown item.
func (s *Service) Increment(ctx context.Context, storeID, id, itemID string) (d Draft, changed bool, err error) {
	d, err = s.Mutate(ctx, storeID, id, "increment", func(draft *Draft) error {
		changed = draft.Increment(itemID)
		return nil
	})
	return d, changed, err
}

// Decrement removes one unit of itemID. At quantity 1 nothing changes.
func (s *Service) Decrement(ctx context.Context, storeID, id, itemID string) (d Draft, changed bool, err error) {
	d, err = s.Mutate(ctx, storeID, id, "decrement", func(draft *Draft) error {
		changed = draft.Decrement(itemID)
		return nil
	})
	return d, changed, err
}

// Remove drops the line for itemID.
func (s *Service) Remove(ctx context.Context, storeID, id, itemID string) (d Draft, changed bool, err error) {
	d, err = s.Mutate(ctx, storeID, id, "remove", func(draft *Draft) error {
		changed = draft.Remove(itemID)
		return nil
	})
	return d, changed, err
}

// UpdateFields edits invoice-level fields.
func (s *Service) UpdateFields(ctx context.Context, storeID, id string, f Fields) (Draft, error) {
	return s.Mutate(ctx, storeID, id, "fields", func(d *Draft) error {
		f.apply(d)
		return nil
	})
}

// Discard deletes a draft owned by storeID.
func (s *Service) Discard(ctx context.Context, storeID, id string) error {
	if _, err := s.Get(ctx, storeID, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	obs.CountMutation("discard")
	return nil
}
