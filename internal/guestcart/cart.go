// Package guestcart holds a shopper's cart before login. Rows live in a
// local backend, reuse the same derivations as the server-backed cart, and
// merge into the account cart once a session exists.
package guestcart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

const bogoForcedQuantity = 2

type mergeClient interface {
	MergeCart(ctx context.Context, req types.MergeRequest) error
}

// AddInput describes a guest cart addition. Price and product data come from
// the caller since there is no server round trip to denormalize them.
type AddInput struct {
	ProductID string
	OfferID   string
	OfferType types.OfferType
	Quantity  int
	UnitPrice decimal.Decimal
	Product   *types.ProductSnapshot
}

// Cart is the pre-login cart. The backend is the source of truth so rows
// survive restarts; every mutation is load-modify-save.
type Cart struct {
	backend Backend
	logg    *logger.Logger
	mu      sync.Mutex
}

func New(backend Backend, logg *logger.Logger) (*Cart, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Cart{backend: backend, logg: logg}, nil
}

// Add creates or merges a row. Adding the same (product, offer) pair again
// increments the existing quantity; BOGO offers always hold quantity 2.
func (c *Cart) Add(ctx context.Context, input AddInput) error {
	offerType := types.NormalizeOfferType(string(input.OfferType))
	quantity := input.Quantity
	if offerType == types.OfferTypeBogo {
		quantity = bogoForcedQuantity
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.backend.Load(ctx)
	if err != nil {
		return err
	}

	at := indexOf(items, input.ProductID, input.OfferID)
	if at >= 0 {
		if offerType == types.OfferTypeBogo {
			items[at].Quantity = bogoForcedQuantity
		} else {
			items[at].Quantity += quantity
		}
	} else {
		item := types.CartItem{
			ProductID: input.ProductID,
			OfferID:   input.OfferID,
			Quantity:  quantity,
			UnitPrice: input.UnitPrice,
			Product:   input.Product,
		}
		if offerType != types.OfferTypeNone {
			item.OfferType = offerType
		}
		items = append(items, item)
	}

	return c.backend.Save(ctx, items)
}

// Update rewrites the quantity for a row; quantities below 1 remove it.
func (c *Cart) Update(ctx context.Context, productID, offerID string, quantity int) error {
	if quantity < 1 {
		return c.Remove(ctx, productID, offerID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.backend.Load(ctx)
	if err != nil {
		return err
	}
	at := indexOf(items, productID, offerID)
	if at < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart")
	}
	items[at].Quantity = quantity
	return c.backend.Save(ctx, items)
}

// Remove deletes the row for the (product, offer) pair.
func (c *Cart) Remove(ctx context.Context, productID, offerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.backend.Load(ctx)
	if err != nil {
		return err
	}
	at := indexOf(items, productID, offerID)
	if at < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart")
	}
	items = append(items[:at], items[at+1:]...)
	return c.backend.Save(ctx, items)
}

// Clear empties the guest cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Clear(ctx)
}

// Items returns the stored wire rows.
func (c *Cart) Items(ctx context.Context) ([]types.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Load(ctx)
}

// Snapshot derives the same view the server-backed cart exposes.
func (c *Cart) Snapshot(ctx context.Context) (cart.Snapshot, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return cart.FromWire(items), nil
}

// MergeInto pushes the guest rows into the account cart after login. The
// local copy is cleared only once the server confirms the merge; a failed
// merge leaves the guest cart intact for another attempt.
func (c *Cart) MergeInto(ctx context.Context, api mergeClient) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.backend.Load(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	if err := api.MergeCart(ctx, types.MergeRequest{Items: items}); err != nil {
		c.logg.Warn(ctx, "guest cart merge failed, keeping local copy")
		return err
	}

	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear guest cart after merge: %w", err)
	}
	c.logg.Info(c.logg.WithField(ctx, "items", len(items)), "guest cart merged")
	return nil
}

func indexOf(items []types.CartItem, productID, offerID string) int {
	for i, item := range items {
		if item.ProductID == productID && item.OfferID == offerID {
			return i
		}
	}
	return -1
}
