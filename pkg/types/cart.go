package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OfferType identifies the promotion attached to a cart line item.
type OfferType string

const (
	OfferTypeNone       OfferType = "none"
	OfferTypeBogo       OfferType = "bogo"
	OfferTypeFlat       OfferType = "flat_discount"
	OfferTypePercentage OfferType = "percentage_discount"
)

func (o OfferType) IsValid() bool {
	switch o {
	case OfferTypeNone, OfferTypeBogo, OfferTypeFlat, OfferTypePercentage:
		return true
	}
	return false
}

// NormalizeOfferType maps wire values onto the enum; anything unknown or
// blank degrades to "none".
func NormalizeOfferType(raw string) OfferType {
	value := OfferType(strings.ToLower(strings.TrimSpace(raw)))
	if value.IsValid() {
		return value
	}
	return OfferTypeNone
}

// ProductSnapshot is the denormalized product data carried on each line item
// so the cart renders without re-querying the catalog.
type ProductSnapshot struct {
	Name     string           `json:"name"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Category string           `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// CartItem is the wire shape exchanged with the storefront API.
type CartItem struct {
	ProductID       string           `json:"productId"`
	OfferID         string           `json:"offer_id,omitempty"`
	OfferType       OfferType        `json:"offer_type,omitempty"`
	Quantity        int              `json:"quantity"`
	DisplayQuantity int              `json:"displayQuantity,omitempty"`
	UnitPrice       decimal.Decimal  `json:"unitPrice"`
	OriginalPrice   decimal.Decimal  `json:"originalPrice"`
	FinalPrice      *decimal.Decimal `json:"finalPrice,omitempty"`
	Product         *ProductSnapshot `json:"product,omitempty"`
}

// AddItemRequest is the body for POST /api/cart/add.
type AddItemRequest struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	OfferID   string    `json:"offer_id,omitempty"`
	OfferType OfferType `json:"offer_type,omitempty"`
}

// UpdateItemRequest is the body for PUT /api/cart/update/{productId}.
type UpdateItemRequest struct {
	Quantity int    `json:"quantity"`
	OfferID  string `json:"offer_id,omitempty"`
}

// RemoveItemRequest is the body for DELETE /api/cart/remove/{productId}.
type RemoveItemRequest struct {
	OfferID string `json:"offer_id,omitempty"`
}

// MergeRequest is the body for POST /api/cart/merge.
type MergeRequest struct {
	Items []CartItem `json:"items"`
}

// ValidationResult reports per-item availability from POST /api/cart/validate.
type ValidationResult struct {
	ProductID string `json:"productId"`
	OfferID   string `json:"offer_id,omitempty"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckoutItem is the per-line shape required by order creation; offer
// metadata is preserved so the backend can re-price promotions.
type CheckoutItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	OfferID   string          `json:"offer_id,omitempty"`
	OfferType OfferType       `json:"offer_type,omitempty"`
}
